// Package main is the entry point for the demo-worthiness crawl engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/demomirror/crawler/internal/api"
	"github.com/demomirror/crawler/internal/broadcast"
	"github.com/demomirror/crawler/internal/classify"
	"github.com/demomirror/crawler/internal/config"
	"github.com/demomirror/crawler/internal/llmclassifier"
	"github.com/demomirror/crawler/internal/model"
	"github.com/demomirror/crawler/internal/orchestrator"
	"github.com/demomirror/crawler/internal/renderer"
	"github.com/demomirror/crawler/internal/report"
	"github.com/demomirror/crawler/internal/runlog"
	"github.com/demomirror/crawler/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		maxPages      = flag.Int("max-pages", 0, "cap on pages crawled (0 = use the planner's recommendation)")
		runID         = flag.String("run-id", "", "run identifier (auto-generated if empty)")
		respectRobots = flag.Bool("respect-robots", false, "record a robots.txt preference in the config; Disallow rules are not enforced (off by default in demo mode)")
		outputRoot    = flag.String("output", "./output", "directory per-page output is written under")
		siteDomain    = flag.String("site-domain", "", "restrict crawling to this host (auto-derived from the seed URL if empty)")
		serveAddr     = flag.String("serve", "", "address to expose the coverage REST/streaming API on (empty = don't serve)")
		pretty        = flag.Bool("pretty", false, "use human-readable console logging instead of JSON lines")
		reportFormat  = flag.String("report-format", "json", "final report export format: csv, xlsx or json")
	)
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: democrawl [flags] <seed-url>")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		return 1
	}
	seed := flag.Arg(0)

	id := *runID
	if id == "" {
		id = generateRunID()
	}
	domain := *siteDomain
	if domain == "" {
		domain = hostOf(seed)
	}

	baseLogger := runlog.New(runlog.Options{Pretty: *pretty})
	logger := runlog.ForRun(baseLogger, id, domain)

	cfg := config.NewDemoCrawlConfig(seed, domain, id, *outputRoot)
	cfg.MaxPages = *maxPages
	cfg.RespectRobots = *respectRobots
	cfg.RespectRobotsTxt = *respectRobots
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return 1
	}

	db, closeStore := buildStore(*outputRoot, logger)
	if closeStore != nil {
		defer closeStore()
	}

	hub := broadcast.New(id)
	classifier := buildClassifier(cfg, db, logger)

	rend, closeRenderer := buildRenderer(cfg, logger)
	if closeRenderer != nil {
		defer closeRenderer()
	}

	orch, err := orchestrator.New(cfg, logger, hub, classifier, orchestrator.NewRendererClient(rend))
	if err != nil {
		logger.Error().Err(err).Msg("failed to build orchestrator")
		return 1
	}
	if db != nil {
		orch.SetDedupOverflow(db.Dedup(domain))
	}

	if *serveAddr != "" {
		stopServer := serveAPI(*serveAddr, id, orch, hub, logger)
		defer stopServer()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info().Msg("received interrupt signal, stopping")
		cancel()
	}()

	logger.Info().Str("seed", seed).Str("output_root", *outputRoot).Msg("starting crawl")

	snap, err := orch.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("crawl failed")
		return 1
	}

	logger.Info().
		Float64("coverage_pct", snap.CoveragePct).
		Int("pages_crawled", snap.PagesCrawled).
		Str("stop_reason", snap.StopReason).
		Msg("crawl finished")

	if err := exportReports(snap, orch.Outcomes(), *outputRoot, *reportFormat); err != nil {
		logger.Error().Err(err).Msg("failed to export report")
		return 1
	}

	hub.CloseAll()
	return 0
}

// buildStore opens the sqlite-backed classification cache and dedup
// overflow database under outputRoot; a database that fails to open just
// means the run falls back to in-memory-only state for both.
func buildStore(outputRoot string, logger zerolog.Logger) (*store.DB, func()) {
	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		logger.Warn().Err(err).Msg("could not create output root, persistent cache disabled")
		return nil, nil
	}

	db, err := store.Open(filepath.Join(outputRoot, "cache.db"))
	if err != nil {
		logger.Warn().Err(err).Msg("persistent cache unavailable, falling back to in-memory state")
		return nil, nil
	}
	return db, func() {
		if err := db.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing cache database")
		}
	}
}

// buildClassifier wires the LLM tier in when LLM_API_KEY is set, and the
// sqlite-backed cache when db is available; the cascade always bottoms out
// at the heuristic tier otherwise.
func buildClassifier(cfg *config.CrawlConfig, db *store.DB, logger zerolog.Logger) *classify.Classifier {
	opts := []classify.Option{}
	if db != nil {
		opts = append(opts, classify.WithCache(db.Classifications(cfg.SiteDomain)))
	}

	apiKey := os.Getenv("LLM_API_KEY")
	if apiKey == "" {
		logger.Info().Msg("LLM_API_KEY not set, classifier cascade stops at the heuristic tier")
		return classify.New(cfg.SiteDomain, opts...)
	}

	llm, err := llmclassifier.New(llmclassifier.Config{APIKey: apiKey, Model: cfg.LLMModel})
	if err != nil {
		logger.Warn().Err(err).Msg("LLM classifier tier unavailable, falling back to heuristic tier")
		return classify.New(cfg.SiteDomain, opts...)
	}
	return classify.New(cfg.SiteDomain, append(opts, classify.WithLLMTier(llm))...)
}

// buildRenderer spins up a headless-Chromium renderer when the plan might
// need JS rendering; a renderer that fails to start degrades to raw-HTML
// fetches rather than aborting the crawl. The returned func closes the
// browser pool and is nil when no renderer was built.
func buildRenderer(cfg *config.CrawlConfig, logger zerolog.Logger) (*renderer.Renderer, func()) {
	if cfg.RenderMode == config.RenderHTML {
		return nil, nil
	}

	r, err := renderer.NewRenderer(cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("renderer unavailable, falling back to HTML-only fetches")
		return nil, nil
	}
	return r, func() {
		if err := r.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing renderer")
		}
	}
}

// serveAPI starts the coverage REST/streaming surface in the background
// and returns a func that shuts it down.
func serveAPI(addr, runID string, orch *orchestrator.Orchestrator, hub *broadcast.Hub, logger zerolog.Logger) func() {
	reg := api.NewRegistry()
	reg.Register(runID, orch, hub, orch)

	srv := api.NewServer(reg, logger)
	httpServer := &http.Server{Addr: addr, Handler: srv}

	go func() {
		logger.Info().Str("addr", addr).Msg("coverage API listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("coverage API server stopped unexpectedly")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctx)
	}
}

// exportReports writes the coverage summary and per-page outcomes reports
// for the finished run under outputRoot/reports.
func exportReports(snap model.CoverageSnapshot, outcomes []report.PageOutcome, outputRoot, format string) error {
	dir := filepath.Join(outputRoot, "reports")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}

	exportFormat := report.ExportFormat(format)
	ext := format
	if exportFormat == report.FormatXLSX {
		ext = "xlsx"
	}

	gen := report.NewGenerator(snap, outcomes)
	for _, reportType := range []report.ReportType{report.ReportCoverageSummary, report.ReportPageOutcomes} {
		rep, err := gen.Generate(reportType)
		if err != nil {
			return fmt.Errorf("generating %s report: %w", reportType, err)
		}

		exporter := report.NewExporter(&report.ExportOptions{
			Format:   exportFormat,
			FilePath: filepath.Join(dir, fmt.Sprintf("%s.%s", reportType, ext)),
		})
		if err := exporter.Export(rep); err != nil {
			return fmt.Errorf("exporting %s report: %w", reportType, err)
		}
	}
	return nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// generateRunID mints crawl_<random8>_<unix_ts>, using a uuid for the
// random segment rather than hand-rolling an RNG.
func generateRunID() string {
	random8 := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("crawl_%s_%d", random8, time.Now().Unix())
}
