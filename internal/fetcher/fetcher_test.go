package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/demomirror/crawler/internal/config"
)

func testCfg() *config.CrawlConfig {
	cfg := config.DefaultConfig()
	cfg.Timeout = 5 * time.Second
	cfg.MaxRedirects = 5
	return cfg
}

func TestFetchReturnsBodyAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body>hello</body></html>")
	}))
	defer srv.Close()

	f := NewFetcher(testCfg())
	defer f.Close()

	resp := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, resp.Error)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "text/html", resp.ContentType)
	require.Contains(t, string(resp.Body), "hello")
	require.Empty(t, resp.RedirectChain)
}

func TestFetchFollowsRedirectChain(t *testing.T) {
	var finalURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/middle", http.StatusFound)
	})
	mux.HandleFunc("/middle", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/end", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/end", func(w http.ResponseWriter, r *http.Request) {
		finalURL = r.URL.Path
		fmt.Fprint(w, "landed")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewFetcher(testCfg())
	defer f.Close()

	resp := f.Fetch(context.Background(), srv.URL+"/start")
	require.NoError(t, resp.Error)
	require.Equal(t, "/end", finalURL)
	require.Len(t, resp.RedirectChain, 2)
	require.Equal(t, srv.URL+"/end", resp.FinalURL)
	require.Contains(t, string(resp.Body), "landed")
}

func TestFetchGivesUpAfterMaxRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testCfg()
	cfg.MaxRedirects = 2
	f := NewFetcher(cfg)
	defer f.Close()

	resp := f.Fetch(context.Background(), srv.URL+"/loop")
	require.Error(t, resp.Error)
	require.Contains(t, resp.Error.Error(), "max redirects")
}

func TestFetchNoFollowPolicyStopsAtFirstRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/end", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testCfg()
	cfg.RedirectPolicy = config.RedirectNoFollow
	f := NewFetcher(cfg)
	defer f.Close()

	resp := f.Fetch(context.Background(), srv.URL+"/start")
	require.NoError(t, resp.Error)
	require.Equal(t, 302, resp.StatusCode)
	require.Equal(t, srv.URL+"/start", resp.FinalURL)
}

func TestFetchUnreachableHostIsRetryable(t *testing.T) {
	f := NewFetcher(testCfg())
	defer f.Close()

	resp := f.Fetch(context.Background(), "http://127.0.0.1:1/unreachable")
	require.Error(t, resp.Error)
	require.True(t, resp.Retryable)
}
