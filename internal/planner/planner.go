// Package planner implements the hybrid strategy planner (C10): it
// consults the sitemap analyzer and the site-type detector, then decides
// between a sitemap_first or progressive crawl plan and attaches the
// winning site type's quality-plateau thresholds.
package planner

import (
	"context"
	"regexp"
	"sort"

	"github.com/demomirror/crawler/internal/classify"
	"github.com/demomirror/crawler/internal/model"
	"github.com/demomirror/crawler/internal/plateau"
	"github.com/demomirror/crawler/internal/sitemapx"
	"github.com/demomirror/crawler/internal/sitetype"
)

const sitemapFirstTopN = 50
const sitemapFirstMaxPagesMultiplier = 3
const progressiveDefaultMaxPages = 1000

// HomepageFetch retrieves the homepage so the planner can detect site type
// from real title/content when the seed alone isn't enough, and returns the
// raw HTML so the JS-complexity probe can inspect script tags and SPA root
// markers.
type HomepageFetch func(ctx context.Context, seedURL string) (title, content, rawHTML string, err error)

// Plan runs C5 (sitemap discovery) and C3 (site-type detection), then
// builds the CrawlPlan per the spec's decision table. classifier may be
// nil, in which case sitemap URLs keep their raw sitemap order instead of
// being AI-ranked.
func Plan(ctx context.Context, seed string, fetch sitemapx.Fetch, homepage HomepageFetch, classifier *classify.Classifier) (model.CrawlPlan, error) {
	analysis, err := sitemapx.DiscoverSitemap(ctx, seed, fetch)
	if err != nil {
		return model.CrawlPlan{}, err
	}

	var title, content, rawHTML string
	if homepage != nil {
		title, content, rawHTML, _ = homepage(ctx, seed)
	}
	siteType := sitetype.DetectSiteType(seed, title, content)
	thresholds := plateau.ThresholdsFor(siteType)
	renderMode := recommendRenderMode(rawHTML)

	var plan model.CrawlPlan
	if analysis.HasSitemap && len(analysis.URLs) > 0 {
		plan = buildSitemapFirstPlan(ctx, analysis, siteType, thresholds, classifier)
	} else {
		plan = buildProgressivePlan(seed, siteType, thresholds)
	}
	plan.RenderMode = renderMode
	return plan, nil
}

var (
	scriptTagRe  = regexp.MustCompile(`(?is)<script\b[^>]*>`)
	externalSrcRe = regexp.MustCompile(`(?is)<script\b[^>]*\bsrc\s*=`)
	spaRootRe    = regexp.MustCompile(`(?is)id\s*=\s*["'](app|root)["']|data-reactroot`)
)

// jsComplexityThreshold is the inline+external script count above which a
// page is considered JS-heavy enough to need rendering, mirroring the
// original reconnaissance's script-count heuristic.
const jsComplexityThreshold = 5

// recommendRenderMode inspects a homepage's raw HTML for script density and
// SPA root markers to recommend "js" or "html" rendering for the plan. An
// empty rawHTML (no homepage fetch available) defaults to "html".
func recommendRenderMode(rawHTML string) string {
	if rawHTML == "" {
		return "html"
	}
	if spaRootRe.MatchString(rawHTML) {
		return "js"
	}

	scriptCount := len(scriptTagRe.FindAllString(rawHTML, -1))
	externalCount := len(externalSrcRe.FindAllString(rawHTML, -1))
	if scriptCount+externalCount > jsComplexityThreshold {
		return "js"
	}
	return "html"
}

func buildSitemapFirstPlan(ctx context.Context, analysis sitemapx.SitemapAnalysis, siteType model.SiteType, thresholds model.SiteTypeThresholds, classifier *classify.Classifier) model.CrawlPlan {
	priority := rankedSitemapURLs(ctx, analysis, siteType, classifier)
	if len(priority) > sitemapFirstTopN {
		priority = priority[:sitemapFirstTopN]
	}

	return model.CrawlPlan{
		Strategy:     model.StrategySitemapFirst,
		PriorityURLs: priority,
		MaxPages:     len(analysis.URLs) * sitemapFirstMaxPagesMultiplier,
		SiteType:     siteType,
		Thresholds:   thresholds,
	}
}

// rankedSitemapURLs returns sitemap URLs ordered by AI confidence when a
// classifier is attached, falling back to the raw sitemap order otherwise.
func rankedSitemapURLs(ctx context.Context, analysis sitemapx.SitemapAnalysis, siteType model.SiteType, classifier *classify.Classifier) []string {
	if classifier == nil {
		return analysis.URLs
	}

	ranked := sitemapx.ClassifySitemapURLs(ctx, classifier, siteType, analysis.URLs)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	urls := make([]string, len(ranked))
	for i, r := range ranked {
		urls[i] = r.URL
	}
	return urls
}

func buildProgressivePlan(seed string, siteType model.SiteType, thresholds model.SiteTypeThresholds) model.CrawlPlan {
	return model.CrawlPlan{
		Strategy:     model.StrategyProgressive,
		PriorityURLs: []string{seed},
		MaxPages:     progressiveDefaultMaxPages,
		SiteType:     siteType,
		Thresholds:   thresholds,
	}
}
