package sitemapx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func stubFetch(responses map[string]string) Fetch {
	return func(ctx context.Context, rawURL string) (int, []byte, error) {
		if body, ok := responses[rawURL]; ok {
			return 200, []byte(body), nil
		}
		return 404, nil, nil
	}
}

const sampleURLSet = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/</loc></url>
  <url><loc>https://example.com/about</loc></url>
  <url><loc>https://example.com/pricing</loc></url>
</urlset>`

const sampleIndex = `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://example.com/sitemap1.xml</loc></sitemap>
</sitemapindex>`

const sampleRobots = `User-agent: *
Disallow: /admin/
Disallow: /checkout/
Disallow: /tmp/
Crawl-delay: 5
Sitemap: https://example.com/sitemap.xml
`

func TestDiscoverSitemapFindsFirstCandidateWithMultipleURLs(t *testing.T) {
	fetch := stubFetch(map[string]string{
		"https://example.com/sitemap.xml": sampleURLSet,
		"https://example.com/robots.txt":  sampleRobots,
	})

	analysis, err := DiscoverSitemap(context.Background(), "https://example.com/", fetch)
	require.NoError(t, err)
	require.True(t, analysis.HasSitemap)
	require.Len(t, analysis.URLs, 3)
}

func TestDiscoverSitemapRecursesThroughIndex(t *testing.T) {
	fetch := stubFetch(map[string]string{
		"https://example.com/sitemap.xml":  sampleIndex,
		"https://example.com/sitemap1.xml": sampleURLSet,
		"https://example.com/robots.txt":   sampleRobots,
	})

	analysis, err := DiscoverSitemap(context.Background(), "https://example.com/", fetch)
	require.NoError(t, err)
	require.True(t, analysis.HasSitemap)
	require.Len(t, analysis.URLs, 3)
}

func TestDiscoverSitemapNoCandidateFound(t *testing.T) {
	fetch := stubFetch(map[string]string{
		"https://example.com/robots.txt": sampleRobots,
	})

	analysis, err := DiscoverSitemap(context.Background(), "https://example.com/", fetch)
	require.NoError(t, err)
	require.False(t, analysis.HasSitemap)
}

func TestDeriveRobotsIntelCapsCrawlDelayAndFlagsInterestingPaths(t *testing.T) {
	intel := deriveRobotsIntel(sampleRobots)
	require.Equal(t, 2_000_000_000, int(intel.CrawlDelay))
	require.Equal(t, "https://example.com/sitemap.xml", intel.SitemapURLs[0])
	require.Contains(t, intel.InterestingDisallow, "/admin/")
	require.Contains(t, intel.InterestingDisallow, "/checkout/")
	require.NotContains(t, intel.InterestingDisallow, "/tmp/")
	require.Equal(t, "simple", intel.Complexity)
}

func TestDeriveRobotsIntelComplexityEscalates(t *testing.T) {
	var sb string
	for i := 0; i < 25; i++ {
		sb += "Disallow: /path" + string(rune('a'+i%26)) + "/\n"
	}
	intel := deriveRobotsIntel("User-agent: *\n" + sb)
	require.Equal(t, "complex", intel.Complexity)
}

func TestCandidateSitemapPathsIncludesWWWVariants(t *testing.T) {
	candidates := candidateSitemapPaths("https://example.com/")
	require.Contains(t, candidates, "https://example.com/sitemap.xml")
	require.Contains(t, candidates, "https://www.example.com/sitemap.xml")
	require.Contains(t, candidates, "https://example.com/sitemap_index.xml")
}
