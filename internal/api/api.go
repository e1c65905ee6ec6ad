// Package api exposes the five coverage operations external collaborators
// use to watch or control a crawl run: get_status, get_summary, list_active,
// subscribe and cleanup. The package itself only defines the interfaces and
// an HTTP transport over them (grounded on eduard256-Strix's
// internal/api/routes.go chi wiring); the actual bookkeeping lives in
// internal/coverage.Tracker and internal/broadcast.Hub, which Registry
// adapts to these interfaces.
package api

import (
	"time"

	"github.com/demomirror/crawler/internal/broadcast"
	"github.com/demomirror/crawler/internal/model"
	"github.com/demomirror/crawler/internal/report"
)

// RunInfo is one row of list_active(): a coverage snapshot condensed to
// what a dashboard listing every in-flight run needs.
type RunInfo struct {
	RunID        string          `json:"run_id"`
	Phase        model.CrawlPhase `json:"phase"`
	CoveragePct  float64         `json:"coverage_pct"`
	PagesCrawled int             `json:"pages_crawled"`
	Subscribers  int             `json:"subscribers"`
}

// StatusSource answers get_status and list_active.
type StatusSource interface {
	GetStatus(runID string) (model.CoverageSnapshot, bool)
	ListActive() []RunInfo
}

// SummarySource answers get_summary: a finished (or in-progress) run's
// coverage, totals, quality and timing stats plus its stop reason.
type SummarySource interface {
	GetSummary(runID string) (*report.Report, bool)
}

// StreamSource answers subscribe: a long-lived feed of the run's events.
type StreamSource interface {
	Subscribe(runID string) (*broadcast.Subscriber, bool)
}

// Cleaner answers cleanup: drop a run's subscribers and per-run state.
type Cleaner interface {
	Cleanup(runID string) bool
}

// Backend is everything the HTTP surface needs; Registry implements it.
type Backend interface {
	StatusSource
	SummarySource
	StreamSource
	Cleaner
}

// heartbeatInterval is how often a subscribe stream sends a heartbeat
// frame to keep idle connections (and proxies) alive between updates.
const heartbeatInterval = 15 * time.Second
