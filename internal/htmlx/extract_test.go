package htmlx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractLinksSkipsNonHTTPSchemes(t *testing.T) {
	page := `<html><body>
		<a href="/page1">One</a>
		<a href="javascript:void(0)">JS</a>
		<a href="mailto:[email protected]">Mail</a>
		<a href="#section">Frag</a>
		<a href="https://other.com/x">External</a>
	</body></html>`

	links, err := ExtractLinks("https://example.com/", []byte(page))
	require.NoError(t, err)
	require.Len(t, links, 2)
	require.Equal(t, "https://example.com/page1", links[0].URL)
	require.Equal(t, "https://other.com/x", links[1].URL)
}

func TestMeaningfulTextPrefersMainOverBody(t *testing.T) {
	page := `<html><head><title>My Page</title></head><body>
		<nav>Home About Contact</nav>
		<main><h1>Welcome</h1><p>This is the real content.</p></main>
		<footer>Copyright 2024</footer>
	</body></html>`

	title, text := MeaningfulText([]byte(page))
	require.Equal(t, "My Page", title)
	require.Contains(t, text, "Welcome")
	require.Contains(t, text, "real content")
	require.NotContains(t, text, "Copyright")
}

func TestMeaningfulTextSkipsScriptAndStyle(t *testing.T) {
	page := `<html><body><main>
		<p>Visible text</p>
		<script>var x = "hidden in script";</script>
		<style>.x { color: red; }</style>
	</main></body></html>`

	_, text := MeaningfulText([]byte(page))
	require.Contains(t, text, "Visible text")
	require.NotContains(t, text, "hidden in script")
}

func TestCanonicalLink(t *testing.T) {
	page := `<html><head><link rel="canonical" href="https://example.com/canonical"></head></html>`
	href, ok := CanonicalLink([]byte(page))
	require.True(t, ok)
	require.Equal(t, "https://example.com/canonical", href)
}

func TestMetaRefreshTarget(t *testing.T) {
	page := `<html><head><meta http-equiv="refresh" content="0; url=https://new.example.com/"></head></html>`
	target, found := MetaRefreshTarget([]byte(page))
	require.True(t, found)
	require.Equal(t, "https://new.example.com/", target)
}

func TestHasJSRedirectHint(t *testing.T) {
	page := `<html><body><script>window.location = "https://new.example.com/";</script></body></html>`
	require.True(t, HasJSRedirectHint([]byte(page)))

	plain := `<html><body><script>console.log("no redirect");</script></body></html>`
	require.False(t, HasJSRedirectHint([]byte(plain)))
}
