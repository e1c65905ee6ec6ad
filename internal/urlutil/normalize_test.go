package urlutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeCanonicalRules(t *testing.T) {
	n := DefaultNormalizer(nil)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases scheme and host", "HTTPS://Example.COM/Path", "https://example.com/Path"},
		{"strips default https port", "https://example.com:443/a", "https://example.com/a"},
		{"strips default http port", "http://example.com:80/a", "http://example.com/a"},
		{"strips fragment", "https://example.com/a#section", "https://example.com/a"},
		{"strips utm params", "https://example.com/a?utm_source=x&utm_medium=y&keep=1", "https://example.com/a?keep=1"},
		{"strips gclid", "https://example.com/a?gclid=abc&keep=1", "https://example.com/a?keep=1"},
		{"sorts remaining query params", "https://example.com/a?b=2&a=1", "https://example.com/a?a=1&b=2"},
		{"removes trailing slash except root", "https://example.com/a/", "https://example.com/a"},
		{"keeps root slash", "https://example.com/", "https://example.com/"},
		{"collapses double slashes", "https://example.com/a//b", "https://example.com/a/b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Normalize(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	n := DefaultNormalizer(nil)
	urls := []string{
		"HTTPS://Example.COM:443/a/b/?utm_source=x&z=1&a=2#frag",
		"http://example.com",
		"https://example.com/a/../b/./c",
	}

	for _, u := range urls {
		once, err := n.Normalize(u)
		require.NoError(t, err)
		twice, err := n.Normalize(once)
		require.NoError(t, err)
		require.Equal(t, once, twice, "normalize must be idempotent for %q", u)
	}
}

func TestNormalizeEquivalence(t *testing.T) {
	n := DefaultNormalizer(nil)

	a, err := n.Normalize("https://Example.com/path/?utm_source=ads&b=2&a=1")
	require.NoError(t, err)
	b, err := n.Normalize("HTTPS://example.com:443/path?a=1&b=2&utm_medium=cpc")
	require.NoError(t, err)

	require.Equal(t, a, b)
}
