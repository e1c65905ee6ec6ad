// Package classify implements the content classifier cascade (C4): a cheap
// basic filter, a heuristic scorer, and an optional LLM tier, each tier
// only consulted when the one before it didn't already decide, with the
// verdict cached by content fingerprint.
package classify

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/demomirror/crawler/internal/model"
	"github.com/demomirror/crawler/internal/urlutil"
)

// Cache persists classification verdicts by cache key across process
// restarts. internal/store provides a sqlite-backed implementation. Classify
// calls Get and Put unconditionally, so the Cache must not be nil.
type Cache interface {
	Get(key string) (model.ClassificationResult, bool)
	Put(key string, result model.ClassificationResult)
}

type memCache struct {
	mu sync.RWMutex
	m  map[string]model.ClassificationResult
}

func newMemCache() *memCache { return &memCache{m: make(map[string]model.ClassificationResult)} }

func (c *memCache) Get(key string) (model.ClassificationResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.m[key]
	return r, ok
}

func (c *memCache) Put(key string, result model.ClassificationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = result
}

// LLMTier is the interface the optional Tier 3 classifier satisfies;
// internal/llmclassifier.Client implements it.
type LLMTier interface {
	Classify(ctx context.Context, url, title, content string, siteType model.SiteType) (model.ClassificationResult, error)
}

// Classifier runs the three-tier cascade. Build one with New, which sets the
// reject filter and an in-process cache (a zero value has neither and
// panics in Classify); llm stays nil until WithLLMTier is applied, meaning
// the cascade stops at the heuristic tier.
type Classifier struct {
	filter *urlutil.Filter
	llm    LLMTier
	cache  Cache
}

// Option configures a Classifier at construction time.
type Option func(*Classifier)

// WithLLMTier attaches the Tier 3 LLM classifier. Without this option the
// cascade always bottoms out at the heuristic tier.
func WithLLMTier(llm LLMTier) Option {
	return func(c *Classifier) { c.llm = llm }
}

// WithCache attaches a persistent cache; without this option an in-process
// map is used, which does not survive restarts.
func WithCache(cache Cache) Option {
	return func(c *Classifier) { c.cache = cache }
}

// New builds a Classifier scoped to one site's reject-filter rules.
func New(siteDomain string, opts ...Option) *Classifier {
	c := &Classifier{filter: urlutil.NewFilter(siteDomain), cache: newMemCache()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// cacheKey mirrors the cascade's domain-scoped keying: URL-only classification
// (sitemap/discovered-link triage, content=="" && title=="") hashes just the
// path for stability across re-crawls; once content or title is known, the
// key also folds in the title, which changes far less often than body text.
func cacheKey(rawURL, title, content string) string {
	path := "/"
	if parsed, err := url.Parse(rawURL); err == nil && parsed.Path != "" {
		path = parsed.Path
	}

	if content == "" && title == "" {
		return "url_" + md5Hex(path)
	}

	data := path
	if title != "" {
		data = path + ":" + title
	}
	return "page_" + md5Hex(data)
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ClassifyURLOnly runs the fast path used for sitemap/discovered-link
// triage, before a page has been fetched.
func (c *Classifier) ClassifyURLOnly(ctx context.Context, rawURL string, siteType model.SiteType) (model.ClassificationResult, error) {
	return c.Classify(ctx, rawURL, "", "", siteType)
}

// Classify runs the cascade: a cache hit short-circuits everything; then
// Tier 1 (URL reject filter) short-circuits obvious junk; then, if an LLM
// tier is attached, Tier 3 runs and its verdict is cached and returned. Tier
// 2 (heuristic) runs only when no LLM tier is attached or the LLM call
// fails, and its verdict is cached in turn.
func (c *Classifier) Classify(ctx context.Context, rawURL, title, content string, siteType model.SiteType) (model.ClassificationResult, error) {
	key := cacheKey(rawURL, title, content)
	if cached, ok := c.cache.Get(key); ok {
		cached.Method = model.MethodCache
		return cached, nil
	}

	if ok, reason := c.filter.Check(rawURL); !ok {
		result := model.ClassificationResult{
			IsWorthy:   false,
			Confidence: 1.0,
			Reasoning:  fmt.Sprintf("Tier1 reject filter: %s", reason),
			Method:     model.MethodBasic,
		}
		c.cache.Put(key, result)
		return result, nil
	}

	if c.llm != nil {
		result, err := c.llm.Classify(ctx, rawURL, title, content, siteType)
		if err == nil {
			c.cache.Put(key, result)
			return result, nil
		}
		// Tier 3 failure falls through to the heuristic tier, same as the
		// cascade's own fallback-on-exception behavior.
	}

	result := heuristicClassify(rawURL, title, content)
	c.cache.Put(key, result)
	return result, nil
}

var demoValueTerms = []string{
	"product", "service", "about", "contact", "pricing", "solution",
	"feature", "benefit", "overview", "home", "main", "landing",
	"business", "commercial", "corporate", "professional",
}

var pdfValueKeywords = []string{"report", "guide", "brochure", "whitepaper", "manual", "overview"}
var pdfJunkKeywords = []string{"debug", "log", "temp", "cache", "backup"}
var junkIndicators = []string{"debug", "admin", "internal", "_temp", "cache", "log", "api/v", "ajax"}
var errorURLPatterns = []string{"/404", "/error", "/test", "/dev"}

// heuristicClassify is Tier 2: a baseline score of 0.5, nudged by the
// presence of business-value terms, PDF-specific signals, junk indicators,
// and URL structure, clamped to [0, 1] and thresholded at 0.5 (permissive,
// favoring inclusion over exclusion).
func heuristicClassify(rawURL, title, content string) model.ClassificationResult {
	score := 0.5
	text := strings.ToLower(rawURL + " " + title + " " + content)
	var reasoning []string

	for _, term := range demoValueTerms {
		if strings.Contains(text, term) {
			score += 0.15
			reasoning = append(reasoning, "contains valuable term: "+term)
			break
		}
	}

	if strings.HasSuffix(rawURL, ".pdf") {
		if containsAny(text, pdfValueKeywords) {
			score += 0.3
			reasoning = append(reasoning, "valuable business document PDF")
		} else if containsAny(text, pdfJunkKeywords) {
			score -= 0.4
			reasoning = append(reasoning, "technical junk PDF")
		}
	}

	for _, term := range junkIndicators {
		if strings.Contains(text, term) {
			score -= 0.3
			reasoning = append(reasoning, "contains junk indicator: "+term)
			break
		}
	}

	if strings.Contains(rawURL, "/business/") || strings.Contains(rawURL, "/commercial/") || strings.Contains(rawURL, "/corporate/") {
		score += 0.2
		reasoning = append(reasoning, "business/commercial content path")
	}

	for _, pattern := range errorURLPatterns {
		if strings.Contains(rawURL, pattern) {
			score -= 0.5
			reasoning = append(reasoning, "error/test page pattern")
			break
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	reasonText := "default scoring applied"
	if len(reasoning) > 0 {
		reasonText = strings.Join(reasoning, "; ")
	}

	return model.ClassificationResult{
		IsWorthy:   score >= 0.5,
		Confidence: score,
		Reasoning:  "Heuristic: " + reasonText,
		Method:     model.MethodHeuristic,
	}
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}
