package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/demomirror/crawler/internal/classify"
	"github.com/demomirror/crawler/internal/config"
	testingutil "github.com/demomirror/crawler/internal/testing"
)

func testServer() *httptest.Server {
	pages := map[string]string{
		"/": `<html><head><title>Home</title></head><body><main>
			<p>Welcome to our platform, offering demo-worthy business solutions for teams of every size evaluating new software today.</p>
			</main><a href="/a">A</a><a href="/b">B</a></body></html>`,
		"/a": `<html><head><title>Page A</title></head><body><main>
			<p>Page A describes our pricing tiers and the value proposition for mid-market customers exploring this product.</p>
			</main><a href="/c">C</a></body></html>`,
		"/b": `<html><head><title>Page B</title></head><body><main>
			<p>Page B covers customer case studies and testimonials from teams who adopted this platform successfully.</p>
			</main></body></html>`,
		"/c": `<html><head><title>Page C</title></head><body><main>
			<p>Page C lists integration partners and the ecosystem of tools that connect with this platform out of the box.</p>
			</main></body></html>`,
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(body))
	}))
}

func testConfig(seed string) *config.CrawlConfig {
	cfg := config.NewDemoCrawlConfig(seed, "", "crawl_test_run", "")
	cfg.Concurrency = 2
	cfg.CrawlDelay = time.Millisecond
	cfg.PerHostRateLimit = 1000
	cfg.MaxPages = 10
	return cfg
}

func TestRunCrawlsEveryLinkedPageAndReportsFullCoverage(t *testing.T) {
	srv := testServer()
	defer srv.Close()

	cfg := testConfig(srv.URL + "/")
	cfg.OutputRoot = t.TempDir()

	classifier := classify.New("")
	o, err := New(cfg, zerolog.Nop(), nil, classifier, nil)
	require.NoError(t, err)

	snap, err := o.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 4, snap.PagesCrawled)
	require.Equal(t, 100.0, snap.CoveragePct)
	require.Len(t, o.Outcomes(), 4)
}

func TestRunStopsAtPageBudget(t *testing.T) {
	srv := testServer()
	defer srv.Close()

	cfg := testConfig(srv.URL + "/")
	cfg.OutputRoot = t.TempDir()
	cfg.MaxPages = 1

	classifier := classify.New("")
	o, err := New(cfg, zerolog.Nop(), nil, classifier, nil)
	require.NoError(t, err)

	snap, err := o.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, snap.PagesCrawled)
	require.Contains(t, snap.StopReason, "page budget")
}

func TestRunDedupsNearDuplicatePricingPageOnDemoSite(t *testing.T) {
	ts := testingutil.NewTestServer()
	defer ts.Close()
	ts.BuildTestSite()

	cfg := testConfig(ts.URL() + "/")
	cfg.OutputRoot = t.TempDir()

	classifier := classify.New("")
	o, err := New(cfg, zerolog.Nop(), nil, classifier, nil)
	require.NoError(t, err)

	_, err = o.Run(context.Background())
	require.NoError(t, err)

	var sawDuplicatePricingPage bool
	for _, outcome := range o.Outcomes() {
		if outcome.URL == ts.URL()+"/pricing/premium" && strings.HasPrefix(outcome.DedupOutcome, "duplicate:") {
			sawDuplicatePricingPage = true
		}
	}
	require.True(t, sawDuplicatePricingPage, "the premium pricing page should be flagged as a near-duplicate of the basic plan")
}

func TestNewRejectsEmptySeeds(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Seeds = nil

	_, err := New(cfg, zerolog.Nop(), nil, classify.New(""), nil)
	require.Error(t, err)
}
