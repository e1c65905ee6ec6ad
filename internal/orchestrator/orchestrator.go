// Package orchestrator implements the crawl orchestrator (C7): it drives a
// frontier with a pool of concurrent fetch workers, and funnels every fetch
// result through the single decision pipeline (classify, dedup, plateau
// check, persist, link extraction, coverage update) the plateau monitor
// requires to stay correct. The worker-pool shape, stats, and pause-free
// drain-to-completion loop are grounded on the teacher's
// internal/scheduler.Scheduler; the per-host/global rate limiting is
// golang.org/x/time/rate, the dependency the teacher declared but never
// imported.
package orchestrator

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/demomirror/crawler/internal/broadcast"
	"github.com/demomirror/crawler/internal/classify"
	"github.com/demomirror/crawler/internal/config"
	"github.com/demomirror/crawler/internal/coverage"
	"github.com/demomirror/crawler/internal/dedup"
	"github.com/demomirror/crawler/internal/fetcher"
	"github.com/demomirror/crawler/internal/frontier"
	"github.com/demomirror/crawler/internal/htmlx"
	"github.com/demomirror/crawler/internal/model"
	"github.com/demomirror/crawler/internal/pagestore"
	"github.com/demomirror/crawler/internal/plateau"
	"github.com/demomirror/crawler/internal/planner"
	"github.com/demomirror/crawler/internal/report"
	"github.com/demomirror/crawler/internal/urlutil"
)

// Orchestrator drives one crawl run end to end.
type Orchestrator struct {
	cfg    *config.CrawlConfig
	logger zerolog.Logger

	fetch    *fetcher.Fetcher
	render   renderClient
	frontier *frontier.MemoryFrontier
	normalizer *urlutil.Normalizer
	filter     *urlutil.Filter
	classifier *classify.Classifier
	dedup      *dedup.Deduplicator
	pages      *pagestore.Store
	limiter    *hostLimiter
	hub        *broadcast.Hub

	plan       model.CrawlPlan
	plateauMon *plateau.Monitor

	// coverageMu guards coverage against the one cross-goroutine access
	// pattern it has: an api.Registry reading Snapshot() concurrently with
	// Run's one-time assignment. Every access from within Run's own call
	// stack happens after that assignment and needs no further locking.
	coverageMu sync.Mutex
	coverage   *coverage.Tracker

	// decisionMu serializes every post-fetch decision (classify, dedup,
	// plateau, persistence, link discovery, coverage update); the plateau
	// monitor is documented unsafe for concurrent Record calls, and
	// serializing the whole decision keeps coverage/outcome bookkeeping
	// consistent without adding a second lock per collaborator.
	decisionMu sync.Mutex
	outcomes   []report.PageOutcome

	pagesCrawled atomic.Int64

	stopOnce        sync.Once
	stopped         atomic.Bool
	stopReason      string
	plateauDetected bool
}

// renderClient is the subset of *renderer.Renderer the orchestrator calls;
// narrowed to an interface so tests can stub it without spinning up chromedp.
type renderClient interface {
	Render(urlStr string) *renderResult
}

// renderResult mirrors the fields of renderer.RenderResult the orchestrator
// reads. A concrete adapter (rendererAdapter, in render.go) wraps the real
// *renderer.Renderer to satisfy renderClient.
type renderResult struct {
	HTML       string
	FinalURL   string
	Title      string
	StatusCode int
	Error      error
}

// New builds an Orchestrator for one run. classifier and hub may be
// preconfigured by the caller (LLM tier, persistent cache, subscriber
// registry); render may be nil to force HTML-only fetching regardless of
// cfg.RenderMode.
func New(cfg *config.CrawlConfig, logger zerolog.Logger, hub *broadcast.Hub, classifier *classify.Classifier, render renderClient) (*Orchestrator, error) {
	if len(cfg.Seeds) == 0 {
		return nil, fmt.Errorf("orchestrator: no seed URL configured")
	}

	o := &Orchestrator{
		cfg:        cfg,
		logger:     logger,
		fetch:      fetcher.NewFetcher(cfg),
		render:     render,
		frontier:   frontier.NewMemoryFrontier(cfg.TraversalMode, cfg.MaxDepth, cfg.MaxURLs),
		normalizer: urlutil.DefaultNormalizer(cfg.IgnoreQueryParams),
		filter:     urlutil.NewFilter(cfg.SiteDomain),
		classifier: classifier,
		dedup:      dedup.New(),
		pages:      pagestore.New(cfg.OutputRoot),
		limiter:    newHostLimiter(cfg.CrawlDelay, cfg.PerHostRateLimit),
		hub:        hub,
	}
	return o, nil
}

// Run executes the crawl to completion: plan, seed, drain the frontier with
// cfg.Concurrency workers, and return the final coverage snapshot.
func (o *Orchestrator) Run(ctx context.Context) (model.CoverageSnapshot, error) {
	seed := o.cfg.Seeds[0]
	o.logger.Info().Str("seed", seed).Msg("planning crawl")

	plan, err := planner.Plan(ctx, seed, o.sitemapFetch, o.homepageFetch, o.classifier)
	if err != nil {
		return model.CoverageSnapshot{}, fmt.Errorf("orchestrator: planning crawl: %w", err)
	}
	o.plan = plan
	o.plateauMon = plateau.New(plan.SiteType)
	o.coverageMu.Lock()
	o.coverage = coverage.New(o.cfg.RunID, plan.PriorityURLs)
	o.coverageMu.Unlock()
	o.coverage.SetPhase(model.PhaseCrawling)

	o.logger.Info().
		Str("strategy", string(plan.Strategy)).
		Str("site_type", string(plan.SiteType)).
		Int("max_pages", plan.MaxPages).
		Str("render_mode", plan.RenderMode).
		Msg("crawl plan ready")

	if o.hub != nil {
		o.hub.PublishCrawlEvent(model.CrawlStarted, "crawl started", map[string]any{
			"strategy":  string(plan.Strategy),
			"site_type": string(plan.SiteType),
		})
		o.hub.PublishCoverage(o.coverage.Snapshot())
	}

	maxPages := plan.MaxPages
	if o.cfg.MaxPages > 0 && o.cfg.MaxPages < maxPages {
		maxPages = o.cfg.MaxPages
	}

	for _, u := range plan.PriorityURLs {
		o.enqueue(u, "", 0)
	}

	var wg sync.WaitGroup
	var active atomic.Int32
	concurrency := o.cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.worker(ctx, &active, maxPages)
		}()
	}
	wg.Wait()

	reason := o.stopReason
	if reason == "" {
		reason = "frontier exhausted"
	}
	o.coverage.SetStop(model.PhaseCompleted, o.plateauDetected, reason)
	snap := o.coverage.Snapshot()

	o.logger.Info().
		Float64("coverage_pct", snap.CoveragePct).
		Int("pages_crawled", snap.PagesCrawled).
		Str("stop_reason", snap.StopReason).
		Msg("crawl completed")

	if o.hub != nil {
		o.hub.PublishCoverage(snap)
		o.hub.PublishCrawlEvent(model.CrawlCompleted, "crawl completed", map[string]any{
			"pages_crawled": snap.PagesCrawled,
			"coverage_pct":  snap.CoveragePct,
		})
	}
	return snap, nil
}

// Outcomes returns the per-page classification/dedup log accumulated during
// Run, for internal/report to turn into a page_outcomes report. Only safe to
// call after Run has returned.
func (o *Orchestrator) Outcomes() []report.PageOutcome {
	return o.outcomes
}

// SetDedupOverflow attaches a persistent overflow store to the run's
// deduplicator, so exact/near-duplicate state survives process restarts;
// call before Run. nil (the default) means dedup state is in-memory only.
func (o *Orchestrator) SetDedupOverflow(ov dedup.Overflow) {
	o.dedup.SetOverflow(ov)
}

// Snapshot reports the run's current coverage, satisfying api.RunTracker so
// a Registry can expose live status while Run is still in flight. Before
// planning completes it reports an empty, initializing snapshot.
func (o *Orchestrator) Snapshot() model.CoverageSnapshot {
	o.coverageMu.Lock()
	tracker := o.coverage
	o.coverageMu.Unlock()
	if tracker == nil {
		return model.CoverageSnapshot{RunID: o.cfg.RunID, Phase: model.PhaseInitializing}
	}
	return tracker.Snapshot()
}

func (o *Orchestrator) requestStop(reason string, plateau bool) {
	o.stopOnce.Do(func() {
		o.stopped.Store(true)
		o.stopReason = reason
		o.plateauDetected = plateau
	})
}

func (o *Orchestrator) worker(ctx context.Context, active *atomic.Int32, maxPages int) {
	for {
		if ctx.Err() != nil || o.stopped.Load() {
			return
		}
		if maxPages > 0 && int(o.pagesCrawled.Load()) >= maxPages {
			o.requestStop(fmt.Sprintf("page budget of %d reached", maxPages), false)
			return
		}

		item := o.frontier.Pop()
		if item == nil {
			if o.frontier.IsEmpty() && active.Load() == 0 {
				return
			}
			time.Sleep(50 * time.Millisecond)
			continue
		}

		if ok, reason := o.filter.Check(item.URL); !ok {
			o.logger.Debug().Str("url", item.URL).Str("reject_reason", string(reason)).Msg("rejected by filter")
			o.frontier.MarkVisited(item.NormalizedURL)
			continue
		}

		if err := o.limiter.wait(ctx, item.Host); err != nil {
			return
		}

		active.Add(1)
		fetched := o.fetchPage(ctx, item.URL)
		o.frontier.MarkVisited(item.NormalizedURL)
		o.handleFetchResult(ctx, item, fetched)
		active.Add(-1)
	}
}

func (o *Orchestrator) enqueue(rawURL, discoveredFrom string, depth int) {
	normalized, err := o.normalizer.Normalize(rawURL)
	if err != nil {
		return
	}
	if o.frontier.Contains(normalized) {
		return
	}
	host, err := urlutil.ExtractHost(rawURL)
	if err != nil {
		return
	}

	item := frontier.NewURLItem(rawURL, normalized, host, depth, discoveredFrom)
	if o.frontier.Push(item) {
		o.coverage.RecordDiscovered(rawURL)
	}
}

type pageFetch struct {
	status       int
	rawHTML      string
	renderedHTML string
	finalURL     string
	contentType  string
	title        string
	flavor       model.HTMLFlavor
	err          error
}

func (o *Orchestrator) fetchPage(ctx context.Context, rawURL string) pageFetch {
	resp := o.fetch.Fetch(ctx, rawURL)
	if resp.Error != nil {
		return pageFetch{err: resp.Error}
	}

	pf := pageFetch{
		status:      resp.StatusCode,
		rawHTML:     string(resp.Body),
		finalURL:    resp.FinalURL,
		contentType: resp.ContentType,
		flavor:      model.FlavorRaw,
	}

	wantsJS := o.cfg.RenderMode == config.RenderJS ||
		(o.cfg.RenderMode == config.RenderAdaptive && o.plan.RenderMode == "js")
	if wantsJS && o.render != nil {
		rr := o.render.Render(rawURL)
		if rr.Error == nil && rr.HTML != "" {
			pf.renderedHTML = rr.HTML
			pf.flavor = model.FlavorRendered
			pf.title = rr.Title
			if rr.FinalURL != "" {
				pf.finalURL = rr.FinalURL
			}
			if rr.StatusCode != 0 {
				pf.status = rr.StatusCode
			}
		} else if rr.Error != nil {
			o.logger.Warn().Err(rr.Error).Str("url", rawURL).Msg("render failed, falling back to raw HTML")
		}
	}
	if pf.renderedHTML == "" {
		pf.renderedHTML = pf.rawHTML
	}
	return pf
}

// handleFetchResult runs the single-threaded decision pipeline: classify,
// dedup, plateau check, persistence, link discovery, coverage update.
func (o *Orchestrator) handleFetchResult(ctx context.Context, item *frontier.URLItem, f pageFetch) {
	o.decisionMu.Lock()
	defer o.decisionMu.Unlock()

	if o.stopped.Load() {
		return
	}

	if f.err != nil {
		o.logger.Warn().Err(f.err).Str("url", item.URL).Msg("fetch failed")
		o.coverage.RecordFailed(item.URL)
		if err := o.pages.SaveFailure(item.URL, time.Now(), f.err.Error()); err != nil {
			o.logger.Warn().Err(err).Str("url", item.URL).Msg("failed writing failure meta")
		}
		o.recordOutcome(item.URL, f, model.ClassificationResult{}, "fetch_failed")
		o.checkPlateau(false, item.URL, item.URL)
		o.publishCoverage()
		return
	}

	title, text := htmlx.MeaningfulText([]byte(f.renderedHTML))
	if title == "" {
		title = f.title
	}

	classification, err := o.classifier.Classify(ctx, item.URL, title, text, o.plan.SiteType)
	if err != nil {
		o.logger.Warn().Err(err).Str("url", item.URL).Msg("classification error, treating page as unworthy")
		classification = model.ClassificationResult{Method: model.MethodBasic, Reasoning: err.Error()}
	}
	o.coverage.RecordCost(classification.EstimatedCost)

	if !classification.IsWorthy {
		o.coverage.RecordFailed(item.URL)
		o.recordOutcome(item.URL, f, classification, "unworthy")
		o.checkPlateau(false, text, item.URL)
		o.publishCoverage()
		return
	}

	verdict := o.dedup.Decide(item.URL, f.renderedHTML)
	if verdict.Status != model.DedupCanonical {
		o.coverage.RecordFailed(item.URL)
		o.recordOutcome(item.URL, f, classification, string(verdict.Status)+":"+verdict.Reason)
		o.checkPlateau(true, verdict.CanonicalURL, item.URL)
		o.publishCoverage()
		return
	}

	record := model.PageRecord{
		CanonicalURL:      item.URL,
		FinalURL:          f.finalURL,
		HTTPStatus:        f.status,
		ContentType:       f.contentType,
		RenderedHTML:      f.renderedHTML,
		RawHTML:           f.rawHTML,
		ExtractedMarkdown: markdownOf(title, text),
		Title:             title,
		DiscoveredLinks:   nil,
		FetchedAt:         time.Now(),
		HTMLFlavor:        f.flavor,
	}
	if err := o.pages.Save(record); err != nil {
		o.logger.Warn().Err(err).Str("url", item.URL).Msg("failed persisting page")
	}

	if links, err := htmlx.ExtractLinks(f.finalURL, []byte(f.renderedHTML)); err == nil {
		for _, link := range links {
			if o.cfg.SiteDomain == "" || urlutil.IsSameDomain(link.URL, item.URL) {
				o.enqueue(link.URL, item.URL, item.Depth+1)
			}
		}
	}

	o.pagesCrawled.Add(1)
	o.coverage.RecordCrawled(item.URL, classification.Confidence)
	o.recordOutcome(item.URL, f, classification, "canonical")
	o.checkPlateau(true, text, item.URL)
	o.publishCoverage()
}

// checkPlateau feeds one decision into C6 and, if it now signals a plateau,
// requests the run stop. content is hashed for the diversity window;
// duplicate/alias pages pass their canonical URL so repeats collapse onto
// the same hash, matching the window's intent.
func (o *Orchestrator) checkPlateau(isWorthy bool, content, rawURL string) {
	verdict := o.plateauMon.Record(isWorthy, contentHash(content), rawURL)
	if verdict.ShouldStop {
		o.logger.Info().Str("reason", verdict.Reason).Msg("quality plateau detected, stopping crawl")
		o.coverage.SetPhase(model.PhaseQualityPlateau)
		if o.hub != nil {
			o.hub.PublishCrawlEvent(model.QualityPlateauDetected, verdict.Reason, nil)
		}
		o.requestStop(verdict.Reason, true)
	}
}

func (o *Orchestrator) recordOutcome(rawURL string, f pageFetch, classification model.ClassificationResult, dedupOutcome string) {
	o.outcomes = append(o.outcomes, report.PageOutcome{
		URL:            rawURL,
		SiteType:       o.plan.SiteType,
		Classification: classification,
		DedupOutcome:   dedupOutcome,
		HTTPStatus:     f.status,
	})
}

func (o *Orchestrator) publishCoverage() {
	if o.hub == nil {
		return
	}
	o.hub.PublishCoverage(o.coverage.Snapshot())
}

func (o *Orchestrator) sitemapFetch(ctx context.Context, rawURL string) (int, []byte, error) {
	resp := o.fetch.Fetch(ctx, rawURL)
	if resp.Error != nil {
		return 0, nil, resp.Error
	}
	return resp.StatusCode, resp.Body, nil
}

func (o *Orchestrator) homepageFetch(ctx context.Context, seedURL string) (title, content, rawHTML string, err error) {
	resp := o.fetch.Fetch(ctx, seedURL)
	if resp.Error != nil {
		return "", "", "", resp.Error
	}
	title, content = htmlx.MeaningfulText(resp.Body)
	return title, content, string(resp.Body), nil
}

func markdownOf(title, text string) string {
	if title == "" {
		return text
	}
	return "# " + title + "\n\n" + text
}

func contentHash(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
