package api

import (
	"sync"

	"github.com/demomirror/crawler/internal/broadcast"
	"github.com/demomirror/crawler/internal/model"
	"github.com/demomirror/crawler/internal/report"
)

// RunTracker is the subset of *coverage.Tracker the registry needs.
type RunTracker interface {
	Snapshot() model.CoverageSnapshot
}

// OutcomesProvider is the subset of *orchestrator.Orchestrator the registry
// needs for get_summary's per-page breakdown.
type OutcomesProvider interface {
	Outcomes() []report.PageOutcome
}

type runEntry struct {
	tracker  RunTracker
	hub      *broadcast.Hub
	outcomes OutcomesProvider
}

// Registry is the in-process Backend: one entry per active or finished
// crawl run this process started, keyed by run_id. It owns no crawl logic
// of its own; it adapts a coverage.Tracker and broadcast.Hub pair to the
// five external operations.
type Registry struct {
	mu   sync.RWMutex
	runs map[string]*runEntry
}

// NewRegistry creates an empty run registry.
func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]*runEntry)}
}

// Register makes a run visible to get_status/get_summary/list_active/
// subscribe/cleanup. Called once the orchestrator for runID exists.
func (reg *Registry) Register(runID string, tracker RunTracker, hub *broadcast.Hub, outcomes OutcomesProvider) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.runs[runID] = &runEntry{tracker: tracker, hub: hub, outcomes: outcomes}
}

// Unregister drops a run's bookkeeping without touching its subscribers;
// callers that also want subscribers dropped should call Cleanup instead.
func (reg *Registry) Unregister(runID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.runs, runID)
}

func (reg *Registry) get(runID string) (*runEntry, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	e, ok := reg.runs[runID]
	return e, ok
}

// GetStatus implements StatusSource.
func (reg *Registry) GetStatus(runID string) (model.CoverageSnapshot, bool) {
	e, ok := reg.get(runID)
	if !ok {
		return model.CoverageSnapshot{}, false
	}
	return e.tracker.Snapshot(), true
}

// ListActive implements StatusSource.
func (reg *Registry) ListActive() []RunInfo {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	out := make([]RunInfo, 0, len(reg.runs))
	for runID, e := range reg.runs {
		snap := e.tracker.Snapshot()
		out = append(out, RunInfo{
			RunID:        runID,
			Phase:        snap.Phase,
			CoveragePct:  snap.CoveragePct,
			PagesCrawled: snap.PagesCrawled,
			Subscribers:  e.hub.SubscriberCount(),
		})
	}
	return out
}

// GetSummary implements SummarySource.
func (reg *Registry) GetSummary(runID string) (*report.Report, bool) {
	e, ok := reg.get(runID)
	if !ok {
		return nil, false
	}
	gen := report.NewGenerator(e.tracker.Snapshot(), e.outcomes.Outcomes())
	rep, err := gen.Generate(report.ReportCoverageSummary)
	if err != nil {
		return nil, false
	}
	return rep, true
}

// Subscribe implements StreamSource.
func (reg *Registry) Subscribe(runID string) (*broadcast.Subscriber, bool) {
	e, ok := reg.get(runID)
	if !ok {
		return nil, false
	}
	return e.hub.Subscribe(), true
}

// Cleanup implements Cleaner: closes every subscriber and forgets the run.
func (reg *Registry) Cleanup(runID string) bool {
	e, ok := reg.get(runID)
	if !ok {
		return false
	}
	e.hub.PublishCrawlEvent(model.RunCleanup, "run cleaned up", nil)
	e.hub.CloseAll()
	reg.Unregister(runID)
	return true
}
