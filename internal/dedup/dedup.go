// Package dedup implements the three-tier content deduplication pipeline
// (C2): redirect-stub detection, exact-hash matching, and SimHash-based
// near-duplicate detection.
package dedup

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"math/bits"
	"regexp"
	"strings"
	"sync"

	"github.com/demomirror/crawler/internal/htmlx"
	"github.com/demomirror/crawler/internal/model"
)

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	dateISORe     = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	dateNumericRe = regexp.MustCompile(`\b(?:\d{1,2}[/\-.]){1,2}\d{2,4}\b`)
	dateWordRe    = regexp.MustCompile(`(?i)\b(\d{1,2}\b[ ,.\-/]*)?(jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*([ ,.\-/]*\b\d{2,4}\b)?`)
	timeRe        = regexp.MustCompile(`(?i)\b(?:[01]?\d|2[0-3]):[0-5]\d(?::[0-5]\d)?(?:\s?[AP]M)?\b`)
	numericRe     = regexp.MustCompile(`\b(?:\$|€|£)?\d[\d,]*(?:\.\d+)?%?\b`)
	lastUpdatedRe = regexp.MustCompile(`(?i)\b(last|updated|as of|published)\b[^<]*?(<date>|<time>)`)

	redirectPhrases = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bthis page has moved\b`),
		regexp.MustCompile(`(?i)\bpage moved to\b`),
		regexp.MustCompile(`(?i)\bredirect(?:ing)? to\b`),
		regexp.MustCompile(`(?i)\bclick here to continue\b`),
		regexp.MustCompile(`(?i)\bhas been relocated\b`),
	}

	stopwords = map[string]bool{
		"a": true, "an": true, "the": true, "of": true, "in": true, "on": true,
		"at": true, "for": true, "to": true, "from": true, "by": true,
		"and": true, "or": true, "if": true, "this": true, "that": true,
		"with": true, "as": true, "is": true, "are": true, "be": true,
		"was": true, "were": true, "it": true,
	}
)

// Stats tallies deduplication outcomes across a run.
type Stats struct {
	TotalProcessed int
	ExactDuplicates int
	NearDuplicates  int
	RedirectStubs   int
	UniquePages     int
}

// DuplicateRate returns total_duplicates/total_processed, 0 if nothing has
// been processed yet.
func (s Stats) DuplicateRate() float64 {
	if s.TotalProcessed == 0 {
		return 0
	}
	dups := s.ExactDuplicates + s.NearDuplicates + s.RedirectStubs
	return float64(dups) / float64(s.TotalProcessed)
}

// Overflow persists dedup state beyond this process's lifetime, checked
// when the in-memory maps miss and written through for every new canonical
// page. nil is a valid Overflow: every check misses, writes are skipped.
// internal/store.DedupOverflow is the sqlite-backed implementation.
type Overflow interface {
	GetExact(exactHash string) (string, bool)
	PutExact(exactHash, canonicalURL string) error
	FuzzyBucket(fuzzyHash string) ([]struct {
		CanonicalURL string
		SimHash      uint64
	}, error)
	PutFuzzy(fuzzyHash, canonicalURL string, simhash uint64) error
}

// Deduplicator evaluates fetched pages against the three dedup tiers and
// tracks the associative structures described by spec.md's DedupState:
// exact_hash → canonical_url, fuzzy_hash → [canonical_url], canonical_url →
// simhash64.
type Deduplicator struct {
	mu sync.Mutex

	simhashThreshold int
	minContentLength int

	exactMap    map[string]string
	fuzzyBuckets map[string][]string
	simMap      map[string]uint64

	overflow Overflow

	stats Stats
}

// SetOverflow attaches a persistent overflow store consulted alongside the
// in-memory maps; pass nil to go back to in-memory-only (the default).
func (d *Deduplicator) SetOverflow(o Overflow) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.overflow = o
}

// New returns a Deduplicator with the spec's defaults: Hamming threshold 4
// (~94% similarity), minimum content length 100.
func New() *Deduplicator {
	return &Deduplicator{
		simhashThreshold: 4,
		minContentLength: 100,
		exactMap:         make(map[string]string),
		fuzzyBuckets:     make(map[string][]string),
		simMap:           make(map[string]uint64),
	}
}

// NewWithOptions allows overriding the SimHash threshold and minimum
// content length.
func NewWithOptions(simhashThreshold, minContentLength int) *Deduplicator {
	d := New()
	d.simhashThreshold = simhashThreshold
	d.minContentLength = minContentLength
	return d
}

type hashBundle struct {
	title          string
	canonical      string
	metaRefresh    bool
	jsRedirectHint bool
	bodyLen        int
	exactHash      string
	fuzzyHash      string
	simhash        uint64
}

func (d *Deduplicator) computeBundle(htmlContent string) hashBundle {
	title, text := htmlx.MeaningfulText([]byte(htmlContent))
	canonical, _ := htmlx.CanonicalLink([]byte(htmlContent))
	_, metaRefresh := htmlx.MetaRefreshTarget([]byte(htmlContent))
	jsHint := htmlx.HasJSRedirectHint([]byte(htmlContent))

	combined := text
	if title != "" {
		combined = title + " " + text
	}

	exactNorm := normalizeExact(combined)
	fuzzyNorm := normalizeFuzzy(combined)

	return hashBundle{
		title:          title,
		canonical:      canonical,
		metaRefresh:    metaRefresh,
		jsRedirectHint: jsHint,
		bodyLen:        len(exactNorm),
		exactHash:      sha256Hex(exactNorm),
		fuzzyHash:      sha256Hex(fuzzyNorm),
		simhash:        simhash64(fuzzyNorm, 3),
	}
}

func normalizeExact(text string) string {
	return whitespaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(text)), " ")
}

func normalizeFuzzy(text string) string {
	t := strings.ToLower(text)

	t = dateISORe.ReplaceAllString(t, " <date> ")
	t = dateNumericRe.ReplaceAllString(t, " <date> ")
	t = dateWordRe.ReplaceAllString(t, " <date> ")
	t = timeRe.ReplaceAllString(t, " <time> ")
	t = lastUpdatedRe.ReplaceAllString(t, " <upd> ")
	t = numericRe.ReplaceAllString(t, " <num> ")

	toks := strings.Fields(whitespaceRe.ReplaceAllString(t, " "))
	out := toks[:0]
	for _, tok := range toks {
		if !stopwords[tok] {
			out = append(out, tok)
		}
	}
	return strings.Join(out, " ")
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func ngrams(tokens []string, n int) []string {
	if len(tokens) < n {
		return tokens
	}
	grams := make([]string, 0, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		grams = append(grams, strings.Join(tokens[i:i+n], " "))
	}
	return grams
}

func hash64(s string) uint64 {
	sum := md5.Sum([]byte(s))
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(sum[i])
	}
	return v
}

// simhash64 computes a 64-bit locality-sensitive fingerprint over
// TF-weighted 3-gram tokens.
func simhash64(text string, n int) uint64 {
	toks := strings.Fields(whitespaceRe.ReplaceAllString(text, " "))
	grams := ngrams(toks, n)

	freq := make(map[string]int)
	for _, g := range grams {
		freq[g]++
	}

	var vec [64]int
	for g, w := range freq {
		h := hash64(g)
		for i := 0; i < 64; i++ {
			if (h>>uint(i))&1 == 1 {
				vec[i] += w
			} else {
				vec[i] -= w
			}
		}
	}

	var fp uint64
	for i := 0; i < 64; i++ {
		if vec[i] >= 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

func hamming64(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

func isRedirectStub(bundle hashBundle, text string) bool {
	if bundle.metaRefresh {
		return true
	}
	if bundle.jsRedirectHint && bundle.bodyLen < 240 {
		return true
	}
	if bundle.bodyLen < 180 {
		for _, re := range redirectPhrases {
			if re.MatchString(text) {
				return true
			}
		}
	}
	return false
}

// Decide evaluates one fetched page's HTML and returns the dedup verdict,
// updating internal state for canonical (non-duplicate) pages.
func (d *Deduplicator) Decide(url, htmlContent string) model.DedupVerdict {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stats.TotalProcessed++
	bundle := d.computeBundle(htmlContent)

	if bundle.bodyLen < d.minContentLength {
		return model.DedupVerdict{Status: model.DedupCanonical, CanonicalURL: url, Reason: "content_too_short"}
	}

	_, text := htmlx.MeaningfulText([]byte(htmlContent))
	if isRedirectStub(bundle, text) {
		d.stats.RedirectStubs++
		target := bundle.canonical
		if target == "" {
			target = "unknown"
		}
		return model.DedupVerdict{Status: model.DedupAlias, CanonicalURL: target, Reason: "redirect_stub"}
	}

	if canonicalURL, ok := d.exactMap[bundle.exactHash]; ok {
		d.stats.ExactDuplicates++
		return model.DedupVerdict{Status: model.DedupDuplicate, CanonicalURL: canonicalURL, Reason: "exact_hash"}
	}
	if d.overflow != nil {
		if canonicalURL, ok := d.overflow.GetExact(bundle.exactHash); ok {
			d.exactMap[bundle.exactHash] = canonicalURL
			d.stats.ExactDuplicates++
			return model.DedupVerdict{Status: model.DedupDuplicate, CanonicalURL: canonicalURL, Reason: "exact_hash"}
		}
	}

	for _, candidateURL := range d.fuzzyBuckets[bundle.fuzzyHash] {
		if candidateSim, ok := d.simMap[candidateURL]; ok {
			if hamming64(bundle.simhash, candidateSim) <= d.simhashThreshold {
				d.stats.NearDuplicates++
				return model.DedupVerdict{
					Status:       model.DedupDuplicate,
					CanonicalURL: candidateURL,
					Reason:       "near_dup_simhash<=4",
				}
			}
		}
	}
	if d.overflow != nil {
		if candidates, err := d.overflow.FuzzyBucket(bundle.fuzzyHash); err == nil {
			for _, candidate := range candidates {
				if hamming64(bundle.simhash, candidate.SimHash) <= d.simhashThreshold {
					d.stats.NearDuplicates++
					return model.DedupVerdict{
						Status:       model.DedupDuplicate,
						CanonicalURL: candidate.CanonicalURL,
						Reason:       "near_dup_simhash<=4",
					}
				}
			}
		}
	}

	d.exactMap[bundle.exactHash] = url
	d.fuzzyBuckets[bundle.fuzzyHash] = append(d.fuzzyBuckets[bundle.fuzzyHash], url)
	d.simMap[url] = bundle.simhash
	d.stats.UniquePages++
	if d.overflow != nil {
		_ = d.overflow.PutExact(bundle.exactHash, url)
		_ = d.overflow.PutFuzzy(bundle.fuzzyHash, url, bundle.simhash)
	}

	return model.DedupVerdict{Status: model.DedupCanonical, CanonicalURL: url, Reason: "unique"}
}

// Stats returns a snapshot of deduplication counters.
func (d *Deduplicator) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Reset clears all deduplication state for a fresh run.
func (d *Deduplicator) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.exactMap = make(map[string]string)
	d.fuzzyBuckets = make(map[string][]string)
	d.simMap = make(map[string]uint64)
	d.stats = Stats{}
}
