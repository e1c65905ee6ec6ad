package planner

import (
	"context"
	"testing"

	"github.com/demomirror/crawler/internal/classify"
	"github.com/demomirror/crawler/internal/model"
	"github.com/stretchr/testify/require"
)

const sitemapXML = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/a</loc></url>
  <url><loc>https://example.com/b</loc></url>
  <url><loc>https://example.com/c</loc></url>
</urlset>`

func fetchWithSitemap(status map[string]int, body map[string]string) func(ctx context.Context, rawURL string) (int, []byte, error) {
	return func(ctx context.Context, rawURL string) (int, []byte, error) {
		if b, ok := body[rawURL]; ok {
			return status[rawURL], []byte(b), nil
		}
		return 404, nil, nil
	}
}

func TestPlanPicksSitemapFirstWhenSitemapHasURLs(t *testing.T) {
	fetch := fetchWithSitemap(
		map[string]int{"https://example.com/sitemap.xml": 200},
		map[string]string{"https://example.com/sitemap.xml": sitemapXML},
	)

	plan, err := Plan(context.Background(), "https://example.com/", fetch, nil, nil)
	require.NoError(t, err)
	require.Equal(t, model.StrategySitemapFirst, plan.Strategy)
	require.Equal(t, 9, plan.MaxPages)
	require.Len(t, plan.PriorityURLs, 3)
}

func TestPlanPicksProgressiveWhenNoSitemapFound(t *testing.T) {
	fetch := fetchWithSitemap(nil, nil)

	plan, err := Plan(context.Background(), "https://example.com/", fetch, nil, nil)
	require.NoError(t, err)
	require.Equal(t, model.StrategyProgressive, plan.Strategy)
	require.Equal(t, progressiveDefaultMaxPages, plan.MaxPages)
	require.Equal(t, []string{"https://example.com/"}, plan.PriorityURLs)
}

func TestPlanUsesHomepageContentForSiteTypeDetection(t *testing.T) {
	fetch := fetchWithSitemap(nil, nil)
	homepage := func(ctx context.Context, seed string) (string, string, string, error) {
		return "Online Banking Login", "Access your account securely.", "<html></html>", nil
	}

	plan, err := Plan(context.Background(), "https://example.com/", fetch, homepage, nil)
	require.NoError(t, err)
	require.Equal(t, model.SiteBanking, plan.SiteType)
	require.Equal(t, 0.3, plan.Thresholds.WorthyThreshold)
	require.Equal(t, "html", plan.RenderMode)
}

func TestPlanRecommendsJSRenderModeForSPAMarkers(t *testing.T) {
	fetch := fetchWithSitemap(nil, nil)
	homepage := func(ctx context.Context, seed string) (string, string, string, error) {
		return "App", "", `<html><body><div id="root"></div></body></html>`, nil
	}

	plan, err := Plan(context.Background(), "https://example.com/", fetch, homepage, nil)
	require.NoError(t, err)
	require.Equal(t, "js", plan.RenderMode)
}

func TestPlanRecommendsJSRenderModeForHighScriptDensity(t *testing.T) {
	fetch := fetchWithSitemap(nil, nil)
	scripts := ""
	for i := 0; i < 6; i++ {
		scripts += `<script src="/bundle.js"></script>`
	}
	homepage := func(ctx context.Context, seed string) (string, string, string, error) {
		return "Site", "", "<html><head>" + scripts + "</head></html>", nil
	}

	plan, err := Plan(context.Background(), "https://example.com/", fetch, homepage, nil)
	require.NoError(t, err)
	require.Equal(t, "js", plan.RenderMode)
}

func TestRecommendRenderModeDefaultsToHTMLWithoutHomepage(t *testing.T) {
	require.Equal(t, "html", recommendRenderMode(""))
}

func TestPlanRanksSitemapURLsByClassifierScoreWhenAttached(t *testing.T) {
	fetch := fetchWithSitemap(
		map[string]int{"https://example.com/sitemap.xml": 200},
		map[string]string{"https://example.com/sitemap.xml": sitemapXML},
	)

	classifier := classify.New("example.com")

	plan, err := Plan(context.Background(), "https://example.com/", fetch, nil, classifier)
	require.NoError(t, err)
	require.Len(t, plan.PriorityURLs, 3)
}

func TestPlanCapsSitemapFirstPriorityURLsAtTopN(t *testing.T) {
	var entries string
	body := map[string]string{}
	status := map[string]int{"https://example.com/sitemap.xml": 200}

	for i := 0; i < 60; i++ {
		entries += "<url><loc>https://example.com/p" + string(rune('a'+i%26)) + "</loc></url>"
	}
	body["https://example.com/sitemap.xml"] = `<?xml version="1.0"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">` + entries + `</urlset>`

	fetch := fetchWithSitemap(status, body)
	plan, err := Plan(context.Background(), "https://example.com/", fetch, nil, nil)
	require.NoError(t, err)
	require.Equal(t, model.StrategySitemapFirst, plan.Strategy)
	require.LessOrEqual(t, len(plan.PriorityURLs), sitemapFirstTopN)
}
