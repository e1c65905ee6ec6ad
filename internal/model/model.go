// Package model holds the shared value types that flow between crawl
// components: canonical URLs, frontier entries, fetched pages, and the
// verdicts produced about them.
package model

import "time"

// SiteType is a closed-set business-domain classification, detected once
// per domain and reused for every page on that domain.
type SiteType string

const (
	SiteBanking       SiteType = "banking"
	SiteEcommerce     SiteType = "ecommerce"
	SiteNews          SiteType = "news"
	SiteCorporate     SiteType = "corporate"
	SiteEducational   SiteType = "educational"
	SiteHealthcare    SiteType = "healthcare"
	SiteGovernment    SiteType = "government"
	SiteNonProfit     SiteType = "non_profit"
	SiteEntertainment SiteType = "entertainment"
	SiteRealEstate    SiteType = "real_estate"
	SiteLegal         SiteType = "legal"
	SiteRestaurant    SiteType = "restaurant"
	SiteTechnology    SiteType = "technology"
	SiteUnknown       SiteType = "unknown"
)

// ConfidenceLabel describes how sure the site-type detector is of its pick.
type ConfidenceLabel string

const (
	ConfidenceHigh     ConfidenceLabel = "HIGH"
	ConfidenceMedium   ConfidenceLabel = "MEDIUM"
	ConfidenceLow      ConfidenceLabel = "LOW"
	ConfidenceFallback ConfidenceLabel = "FALLBACK"
)

// HTMLFlavor records whether a PageRecord's HTML came from a JS render or
// a raw HTTP fetch.
type HTMLFlavor string

const (
	FlavorRaw      HTMLFlavor = "raw"
	FlavorRendered HTMLFlavor = "rendered"
)

// FrontierEntry is a single unit of crawl work: a canonical URL discovered
// from some other page at some depth. It is created when a link is first
// seen, consumed at most once, and never revisited unless explicitly
// requeued.
type FrontierEntry struct {
	CanonicalURL   string
	DiscoveredFrom string
	Depth          int
	PriorityScore  float64
	AddedAt        time.Time
	RetryCount     int
}

// PageRecord is the immutable result of a successful fetch.
type PageRecord struct {
	CanonicalURL      string
	FinalURL          string
	HTTPStatus        int
	ContentType       string
	RenderedHTML      string
	RawHTML           string
	ExtractedMarkdown string
	Title             string
	DiscoveredLinks   []string
	FetchedAt         time.Time
	HTMLFlavor        HTMLFlavor
}

// ClassificationMethod records which cascade tier produced a
// ClassificationResult.
type ClassificationMethod string

const (
	MethodBasic     ClassificationMethod = "basic"
	MethodHeuristic ClassificationMethod = "heuristic"
	MethodLLM       ClassificationMethod = "llm"
	MethodCache     ClassificationMethod = "cache"
)

// ClassificationResult is produced by the content classifier (C4) and
// cached by content fingerprint; once produced it is never mutated.
type ClassificationResult struct {
	IsWorthy        bool
	Confidence      float64 // certainty of the verdict, not "how worthy" — see spec §9
	Reasoning       string
	Method          ClassificationMethod
	PromptTokens    int
	CompletionTokens int
	TotalTokens     int
	EstimatedCost   float64
}

// DedupStatus is the verdict kind produced by the content deduplicator (C2).
type DedupStatus string

const (
	DedupCanonical DedupStatus = "canonical"
	DedupDuplicate DedupStatus = "duplicate"
	DedupAlias     DedupStatus = "alias"
)

// DedupVerdict is produced by C2 per fetched page.
type DedupVerdict struct {
	Status       DedupStatus
	CanonicalURL string
	Reason       string
}

// QualityTrend summarizes how the recent worthiness window is moving.
type QualityTrend string

const (
	TrendImproving   QualityTrend = "improving"
	TrendStable      QualityTrend = "stable"
	TrendDeclining   QualityTrend = "declining"
	TrendInsufficient QualityTrend = "insufficient"
)

// CrawlPhase is the coverage tracker's run-level state machine.
type CrawlPhase string

const (
	PhaseInitializing    CrawlPhase = "initializing"
	PhaseSitemapAnalysis CrawlPhase = "sitemap_analysis"
	PhaseCrawling        CrawlPhase = "crawling"
	PhaseQualityPlateau  CrawlPhase = "quality_plateau"
	PhaseCompleted       CrawlPhase = "completed"
	PhaseFailed          CrawlPhase = "failed"
)

// CoverageSnapshot is a point-in-time immutable view of a crawl's progress,
// suitable for streaming to a subscriber. History of recent_quality is kept
// bounded (~20 entries) by the tracker that produces snapshots.
type CoverageSnapshot struct {
	RunID              string
	Timestamp          time.Time
	Phase              CrawlPhase
	CoveragePct        float64
	PagesCrawled       int
	TotalKnownURLs     int
	InitialSitemapURLs int
	DiscoveredURLs     int
	RecentQuality      float64
	QualityTrend       QualityTrend
	VelocityPerMin      float64
	ETASeconds         *float64
	CurrentURL         string
	PlateauDetected    bool
	StopReason         string
	TotalEstimatedCost float64
}

// Strategy is the crawl strategy chosen by the hybrid planner (C10).
type Strategy string

const (
	StrategySitemapFirst Strategy = "sitemap_first"
	StrategyProgressive  Strategy = "progressive"
)

// SiteTypeThresholds carries the quality-plateau thresholds attached to a
// plan for a given site type (C3 → C6).
type SiteTypeThresholds struct {
	WorthyThreshold     float64
	SimilarityThreshold float64
	WindowSize          int
}

// CrawlPlan is the output of the hybrid strategy planner (C10).
type CrawlPlan struct {
	Strategy    Strategy
	PriorityURLs []string
	MaxPages    int
	SiteType    SiteType
	Thresholds  SiteTypeThresholds
	RenderMode  string // "html" or "js", reconnaissance-informed
}

// EventKind distinguishes the three shapes the broadcaster pushes to
// subscribers (C9).
type EventKind string

const (
	EventCoverageUpdate EventKind = "coverage_update"
	EventCrawlEvent     EventKind = "crawl_event"
	EventHeartbeat      EventKind = "heartbeat"
)

// CrawlEventType enumerates the crawl_event sub-kinds.
type CrawlEventType string

const (
	CrawlStarted           CrawlEventType = "crawl_started"
	CrawlCompleted         CrawlEventType = "crawl_completed"
	QualityPlateauDetected CrawlEventType = "quality_plateau_detected"
	CrawlError             CrawlEventType = "crawl_error"
	RunCleanup             CrawlEventType = "run_cleanup"
)

// Event is the envelope pushed to every subscriber of a run.
type Event struct {
	Kind      EventKind
	RunID     string
	Timestamp time.Time

	// Populated when Kind == EventCoverageUpdate.
	Coverage *CoverageSnapshot

	// Populated when Kind == EventCrawlEvent.
	CrawlEventType CrawlEventType
	Message        string
	Detail         map[string]any
}
