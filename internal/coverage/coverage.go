// Package coverage implements the coverage tracker (C8): four growing
// per-run URL sets, a bounded quality-score history, and the derived
// coverage/velocity/ETA/trend values recomputed on every relevant event.
package coverage

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/demomirror/crawler/internal/model"
)

const qualityHistorySize = 20
const trendWindow = 5
const trendDelta = 0.05

var (
	coveragePctGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "crawler_coverage_pct", Help: "Coverage percentage (crawled / known URLs) per run."},
		[]string{"run_id"},
	)
	velocityGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "crawler_velocity_pages_per_min", Help: "Pages crawled per minute per run."},
		[]string{"run_id"},
	)
	pagesCrawledGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "crawler_pages_crawled_total", Help: "Pages crawled so far per run."},
		[]string{"run_id"},
	)
)

func init() {
	prometheus.MustRegister(coveragePctGauge, velocityGauge, pagesCrawledGauge)
}

// Tracker holds one run's growing URL sets and quality history. All
// mutating methods are safe for concurrent use; the orchestrator's worker
// pool calls them from multiple goroutines.
type Tracker struct {
	mu sync.Mutex

	runID     string
	startedAt time.Time

	sitemapURLs   map[string]bool
	discoveredURLs map[string]bool
	crawledURLs   map[string]bool
	failedURLs    map[string]bool

	qualityHistory []float64

	phase           model.CrawlPhase
	currentURL      string
	plateauDetected bool
	stopReason      string
	totalCost       float64
}

// New builds a Tracker for one run, seeded with the sitemap URLs known at
// plan time (if any).
func New(runID string, initialSitemapURLs []string) *Tracker {
	t := &Tracker{
		runID:          runID,
		startedAt:      time.Now(),
		sitemapURLs:    make(map[string]bool, len(initialSitemapURLs)),
		discoveredURLs: make(map[string]bool),
		crawledURLs:    make(map[string]bool),
		failedURLs:     make(map[string]bool),
		phase:          model.PhaseInitializing,
	}
	for _, u := range initialSitemapURLs {
		t.sitemapURLs[u] = true
	}
	return t
}

// SetPhase transitions the tracked phase.
func (t *Tracker) SetPhase(phase model.CrawlPhase) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = phase
}

// RecordDiscovered adds a newly discovered link to the known-URL universe.
func (t *Tracker) RecordDiscovered(rawURL string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.discoveredURLs[rawURL] = true
}

// RecordCrawled marks a URL fetched successfully and folds its worthiness
// score into the bounded quality history.
func (t *Tracker) RecordCrawled(rawURL string, qualityScore float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.crawledURLs[rawURL] = true
	t.currentURL = rawURL
	t.qualityHistory = append(t.qualityHistory, qualityScore)
	if len(t.qualityHistory) > qualityHistorySize {
		t.qualityHistory = t.qualityHistory[1:]
	}
}

// RecordFailed marks a URL as permanently failed.
func (t *Tracker) RecordFailed(rawURL string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failedURLs[rawURL] = true
}

// RecordCost accumulates the LLM tier's estimated cost for this run.
func (t *Tracker) RecordCost(cost float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalCost += cost
}

// SetStop records the terminal phase and a human-readable stop reason.
func (t *Tracker) SetStop(phase model.CrawlPhase, plateauDetected bool, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = phase
	t.plateauDetected = plateauDetected
	t.stopReason = reason
}

func unionSize(a, b map[string]bool) int {
	union := make(map[string]bool, len(a)+len(b))
	for u := range a {
		union[u] = true
	}
	for u := range b {
		union[u] = true
	}
	return len(union)
}

// Snapshot computes a CoverageSnapshot from the tracker's current state.
// coverage_pct, velocity, eta, and quality_trend are all recomputed fresh
// on every call rather than cached, since the underlying sets only ever
// grow and recomputation is cheap.
func (t *Tracker) Snapshot() model.CoverageSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	knownTotal := unionSize(t.sitemapURLs, t.discoveredURLs)
	crawled := len(t.crawledURLs)

	var coveragePct float64
	if knownTotal > 0 {
		coveragePct = 100 * float64(crawled) / float64(knownTotal)
	}

	elapsedMinutes := time.Since(t.startedAt).Minutes()
	var velocity float64
	if elapsedMinutes > 0 {
		velocity = float64(crawled) / elapsedMinutes
	}

	var eta *float64
	if velocity > 0 {
		remaining := float64(knownTotal - crawled)
		if remaining < 0 {
			remaining = 0
		}
		seconds := remaining / velocity * 60
		eta = &seconds
	}

	trend := qualityTrend(t.qualityHistory)
	var recentQuality float64
	if len(t.qualityHistory) > 0 {
		recentQuality = mean(t.qualityHistory)
	}

	coveragePctGauge.WithLabelValues(t.runID).Set(coveragePct)
	velocityGauge.WithLabelValues(t.runID).Set(velocity)
	pagesCrawledGauge.WithLabelValues(t.runID).Set(float64(crawled))

	return model.CoverageSnapshot{
		RunID:              t.runID,
		Timestamp:          time.Now(),
		Phase:              t.phase,
		CoveragePct:        coveragePct,
		PagesCrawled:       crawled,
		TotalKnownURLs:     knownTotal,
		InitialSitemapURLs: len(t.sitemapURLs),
		DiscoveredURLs:     len(t.discoveredURLs),
		RecentQuality:      recentQuality,
		QualityTrend:       trend,
		VelocityPerMin:     velocity,
		ETASeconds:         eta,
		CurrentURL:         t.currentURL,
		PlateauDetected:    t.plateauDetected,
		StopReason:         t.stopReason,
		TotalEstimatedCost: t.totalCost,
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// qualityTrend compares the mean of the first half vs the second half of
// the last (up to) trendWindow scores; a ±trendDelta threshold
// distinguishes improving/declining/stable, and fewer than 3 scores is
// always insufficient.
func qualityTrend(history []float64) model.QualityTrend {
	if len(history) < 3 {
		return model.TrendInsufficient
	}

	recent := history
	if len(recent) > trendWindow {
		recent = recent[len(recent)-trendWindow:]
	}

	mid := len(recent) / 2
	firstHalf := recent[:mid]
	secondHalf := recent[mid:]

	delta := mean(secondHalf) - mean(firstHalf)
	switch {
	case delta > trendDelta:
		return model.TrendImproving
	case delta < -trendDelta:
		return model.TrendDeclining
	default:
		return model.TrendStable
	}
}
