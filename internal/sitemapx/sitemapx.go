// Package sitemapx implements the sitemap analyzer (C5): candidate sitemap
// discovery, index/urlset XML parsing, and robots.txt intelligence
// (advisory only — this system never enforces robots.txt).
package sitemapx

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/demomirror/crawler/internal/classify"
	"github.com/demomirror/crawler/internal/model"
)

// Fetch retrieves a URL and reports its status code and body. The
// orchestrator wires this to internal/fetcher; tests supply a stub.
type Fetch func(ctx context.Context, rawURL string) (status int, body []byte, err error)

// xmlURLSet and xmlSitemapIndex mirror the two sitemap XML root shapes.
type xmlURLSet struct {
	XMLName xml.Name    `xml:"urlset"`
	URLs    []xmlURLEntry `xml:"url"`
}

type xmlURLEntry struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

type xmlSitemapIndex struct {
	XMLName  xml.Name         `xml:"sitemapindex"`
	Sitemaps []xmlSitemapEntry `xml:"sitemap"`
}

type xmlSitemapEntry struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

// AIClassifiedURL is one sitemap URL pre-scored by C4 in URL-only mode.
type AIClassifiedURL struct {
	URL       string
	Score     float64
	Reasoning string
}

// RobotsIntel is advisory information extracted from robots.txt and carried
// in SitemapAnalysis. No other package reads it: it does not set the crawl
// pacing and is never used to reject a URL (this crawler does not enforce
// robots.txt).
type RobotsIntel struct {
	Found               bool
	SitemapURLs         []string
	CrawlDelay          time.Duration
	InterestingDisallow []string
	Complexity          string // "simple", "medium", "complex"
	DisallowCount       int
}

// SitemapAnalysis is C5's output.
type SitemapAnalysis struct {
	HasSitemap       bool
	URLs             []string
	RobotsIntel       RobotsIntel
	AIClassifiedURLs []AIClassifiedURL
}

// candidateSitemapPaths returns, in the order they're tried, the fixed list
// of sitemap locations probed for a given seed host: /sitemap.xml and
// /sitemap_index.xml with and without a www. prefix, plus the seed's own
// path joined with /sitemap.xml.
func candidateSitemapPaths(seed string) []string {
	u, err := url.Parse(seed)
	if err != nil {
		return nil
	}
	host := u.Host

	var hosts []string
	if strings.HasPrefix(host, "www.") {
		hosts = []string{host, strings.TrimPrefix(host, "www.")}
	} else {
		hosts = []string{host, "www." + host}
	}

	var candidates []string
	for _, h := range hosts {
		base := u.Scheme + "://" + h
		candidates = append(candidates, base+"/sitemap.xml", base+"/sitemap_index.xml")
	}

	seedSitemap := strings.TrimRight(seed, "/") + "/sitemap.xml"
	candidates = append(candidates, seedSitemap)

	return dedupeStrings(candidates)
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// DiscoverSitemap tries each candidate sitemap location in order, parsing
// as XML and recursing through sitemap-index children, stopping on the
// first candidate that yields more than one URL.
func DiscoverSitemap(ctx context.Context, seed string, fetch Fetch) (SitemapAnalysis, error) {
	analysis := SitemapAnalysis{}

	for _, candidate := range candidateSitemapPaths(seed) {
		urls, err := fetchSitemapURLs(ctx, candidate, fetch, 0)
		if err != nil {
			continue
		}
		if len(urls) > 1 {
			analysis.HasSitemap = true
			analysis.URLs = urls
			break
		}
	}

	robotsURL := rootURL(seed) + "/robots.txt"
	if status, body, err := fetch(ctx, robotsURL); err == nil && status < 400 {
		analysis.RobotsIntel = deriveRobotsIntel(string(body))
	}

	return analysis, nil
}

const maxSitemapRecursion = 3

func fetchSitemapURLs(ctx context.Context, sitemapURL string, fetch Fetch, depth int) ([]string, error) {
	if depth > maxSitemapRecursion {
		return nil, fmt.Errorf("sitemapx: recursion limit exceeded at %s", sitemapURL)
	}

	status, body, err := fetch(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, fmt.Errorf("sitemapx: %s returned status %d", sitemapURL, status)
	}

	content := string(body)

	if strings.Contains(content, "<sitemapindex") {
		var index xmlSitemapIndex
		if err := xml.Unmarshal(body, &index); err != nil {
			return nil, fmt.Errorf("sitemapx: parsing sitemap index %s: %w", sitemapURL, err)
		}
		var all []string
		for _, child := range index.Sitemaps {
			childURLs, err := fetchSitemapURLs(ctx, child.Loc, fetch, depth+1)
			if err != nil {
				continue
			}
			all = append(all, childURLs...)
		}
		return all, nil
	}

	if strings.Contains(content, "<urlset") {
		var set xmlURLSet
		if err := xml.Unmarshal(body, &set); err != nil {
			return nil, fmt.Errorf("sitemapx: parsing urlset %s: %w", sitemapURL, err)
		}
		urls := make([]string, 0, len(set.URLs))
		for _, u := range set.URLs {
			if u.Loc != "" {
				urls = append(urls, u.Loc)
			}
		}
		return urls, nil
	}

	return nil, fmt.Errorf("sitemapx: %s is not a recognized sitemap format", sitemapURL)
}

func rootURL(seed string) string {
	u, err := url.Parse(seed)
	if err != nil {
		return strings.TrimRight(seed, "/")
	}
	return u.Scheme + "://" + u.Host
}

// businessKeywords flags disallowed paths worth surfacing as "interesting"
// (likely gated business functionality, not noise like /cgi-bin/ or /tmp/).
var businessKeywords = []string{
	"account", "admin", "api", "app", "billing", "cart", "checkout",
	"dashboard", "internal", "login", "member", "order", "payment",
	"portal", "private", "profile", "secure",
}

// deriveRobotsIntel extracts advisory intelligence from robots.txt: Sitemap:
// lines, a crawl delay capped at 2 seconds, disallowed paths that look
// business-relevant, and a simple/medium/complex classification based on
// how many Disallow rules exist at all.
func deriveRobotsIntel(content string) RobotsIntel {
	intel := RobotsIntel{Found: true}

	lines := strings.Split(content, "\n")
	var disallows []string
	var crawlDelay time.Duration

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		directive := strings.ToLower(strings.TrimSpace(parts[0]))
		value := strings.TrimSpace(parts[1])

		switch directive {
		case "sitemap":
			intel.SitemapURLs = append(intel.SitemapURLs, value)
		case "disallow":
			if value != "" {
				disallows = append(disallows, value)
			}
		case "crawl-delay":
			if seconds, err := strconv.ParseFloat(value, 64); err == nil {
				d := time.Duration(seconds * float64(time.Second))
				if d > crawlDelay {
					crawlDelay = d
				}
			}
		}
	}

	if cap := 2 * time.Second; crawlDelay > cap {
		crawlDelay = cap
	}
	intel.CrawlDelay = crawlDelay
	intel.DisallowCount = len(disallows)

	for _, path := range disallows {
		lower := strings.ToLower(path)
		for _, kw := range businessKeywords {
			if strings.Contains(lower, kw) {
				intel.InterestingDisallow = append(intel.InterestingDisallow, path)
				break
			}
		}
	}

	switch {
	case intel.DisallowCount <= 5:
		intel.Complexity = "simple"
	case intel.DisallowCount <= 20:
		intel.Complexity = "medium"
	default:
		intel.Complexity = "complex"
	}

	return intel
}

// ClassifySitemapURLs pre-scores discovered sitemap URLs via C4's URL-only
// cascade, producing the priority ranking C10 seeds Scenario A from.
func ClassifySitemapURLs(ctx context.Context, classifier *classify.Classifier, siteType model.SiteType, urls []string) []AIClassifiedURL {
	out := make([]AIClassifiedURL, 0, len(urls))
	for _, u := range urls {
		result, err := classifier.ClassifyURLOnly(ctx, u, siteType)
		if err != nil {
			continue
		}
		out = append(out, AIClassifiedURL{URL: u, Score: result.Confidence, Reasoning: result.Reasoning})
	}
	return out
}
