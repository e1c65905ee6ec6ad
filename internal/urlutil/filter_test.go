package urlutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterRejectReasons(t *testing.T) {
	tests := []struct {
		name       string
		siteDomain string
		url        string
		wantOK     bool
		wantReason RejectReason
	}{
		{"accepts plain content path", "example.com", "https://example.com/blog/post-1", true, ""},
		{"rejects binary file", "example.com", "https://example.com/assets/logo.png", false, ReasonBinaryFile},
		{"rejects external domain", "example.com", "https://other.com/page", false, ReasonExternalDomain},
		{"rejects admin path", "example.com", "https://example.com/admin/dashboard", false, ReasonNonContentPath},
		{"rejects tracking params", "example.com", "https://example.com/page?session=abc123", false, ReasonTrackingParams},
		{"rejects sitemap xml", "example.com", "https://example.com/sitemap.xml", false, ReasonUselessFileType},
		{"rejects too deep nesting", "example.com", "https://example.com/a/b/c/d/e/f/g/h/i", false, ReasonTooDeepNesting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFilter(tt.siteDomain)
			ok, reason := f.Check(tt.url)
			require.Equal(t, tt.wantOK, ok)
			require.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestFilterCountsByReason(t *testing.T) {
	f := NewFilter("example.com")

	_, _ = f.Check("https://example.com/logo.png")
	_, _ = f.Check("https://example.com/icon.jpg")
	_, _ = f.Check("https://other.com/page")

	counts := f.Counts()
	require.Equal(t, 2, counts[ReasonBinaryFile])
	require.Equal(t, 1, counts[ReasonExternalDomain])
}

func TestFilterTooManySpecialChars(t *testing.T) {
	f := NewFilter("")
	ok, reason := f.Check("https://example.com/a-b-c-d-e-f-g-h-i-j-k-l-m-n-o-p-q")
	require.False(t, ok)
	require.Equal(t, ReasonTooManySpecial, reason)
}
