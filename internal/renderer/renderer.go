// Package renderer provides JavaScript rendering capabilities using Chromium.
package renderer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/demomirror/crawler/internal/config"
)

// RenderResult holds the result of rendering a page.
type RenderResult struct {
	// Final HTML after JavaScript execution
	HTML string

	// Final URL after any client-side redirects
	FinalURL string

	// Page title
	Title string

	// Response status code
	StatusCode int

	// Response headers
	Headers map[string]string

	// Performance metrics
	Metrics *PerformanceMetrics

	// Resources loaded
	Resources []*ResourceInfo

	// Render duration
	RenderTime time.Duration

	// Error if any
	Error error
}

// PerformanceMetrics holds page load performance data, taken from the
// Navigation Timing API.
type PerformanceMetrics struct {
	NavigationStart  float64
	DOMContentLoaded float64
	LoadEventEnd     float64
}

// ResourceInfo holds information about a loaded resource.
type ResourceInfo struct {
	URL       string
	Type      string
	Status    int
	Size      int64
	MimeType  string
	FromCache bool
}

// Renderer handles JavaScript rendering using Chromium.
type Renderer struct {
	mu sync.Mutex

	config    *config.CrawlConfig
	allocator context.Context
	cancel    context.CancelFunc

	// Browser pool for concurrent rendering
	browserPool chan context.Context
	poolSize    int
}

// stealthScript is injected into every new document before any page script
// runs, so sites that branch on navigator.webdriver or a headless-looking
// plugin list render the same way they would for a real browser.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
window.chrome = window.chrome || { runtime: {} };
`

// networkIdleTimeout is how long Render waits for networkIdleQuietWindow of
// silence before giving up and rendering whatever loaded so far.
const networkIdleTimeout = 10 * time.Second

// networkIdleQuietWindow is how long zero in-flight requests must hold
// before the page is considered network-idle.
const networkIdleQuietWindow = 500 * time.Millisecond

// NewRenderer creates a new renderer instance.
func NewRenderer(cfg *config.CrawlConfig) (*Renderer, error) {
	r := &Renderer{
		config:   cfg,
		poolSize: cfg.Concurrency,
	}
	if r.poolSize < 1 {
		r.poolSize = 1
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("safebrowsing-disable-auto-update", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-features", "TranslateUI"),
		chromedp.Flag("window-size", "1920,1080"),
		chromedp.UserAgent(cfg.UserAgent),
	)

	if cfg.ChromiumPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromiumPath))
	}

	r.allocator, r.cancel = chromedp.NewExecAllocator(context.Background(), opts...)

	r.browserPool = make(chan context.Context, r.poolSize)
	for i := 0; i < r.poolSize; i++ {
		ctx, _ := chromedp.NewContext(r.allocator)
		if err := chromedp.Run(ctx, page.AddScriptToEvaluateOnNewDocument(stealthScript)); err != nil {
			r.cancel()
			return nil, fmt.Errorf("installing stealth script: %w", err)
		}
		r.browserPool <- ctx
	}

	return r, nil
}

// Render renders a page and returns the result.
func (r *Renderer) Render(urlStr string) *RenderResult {
	result := &RenderResult{
		Headers:   make(map[string]string),
		Resources: make([]*ResourceInfo, 0),
	}

	startTime := time.Now()

	ctx := <-r.browserPool
	defer func() {
		r.browserPool <- ctx
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, r.config.RenderTimeout)
	defer cancel()

	resources := make(map[string]*ResourceInfo)
	inFlight := make(map[string]struct{})
	var trackMu sync.Mutex

	chromedp.ListenTarget(timeoutCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			trackMu.Lock()
			inFlight[e.RequestID.String()] = struct{}{}
			trackMu.Unlock()

		case *network.EventResponseReceived:
			trackMu.Lock()
			resources[e.RequestID.String()] = &ResourceInfo{
				URL:      e.Response.URL,
				Type:     string(e.Type),
				Status:   int(e.Response.Status),
				MimeType: e.Response.MimeType,
			}
			trackMu.Unlock()

			if e.Type == network.ResourceTypeDocument {
				for k, v := range e.Response.Headers {
					if str, ok := v.(string); ok {
						result.Headers[k] = str
					}
				}
				result.StatusCode = int(e.Response.Status)
			}

		case *network.EventLoadingFinished:
			trackMu.Lock()
			if res, ok := resources[e.RequestID.String()]; ok {
				res.Size = int64(e.EncodedDataLength)
			}
			delete(inFlight, e.RequestID.String())
			trackMu.Unlock()

		case *network.EventLoadingFailed:
			trackMu.Lock()
			delete(inFlight, e.RequestID.String())
			trackMu.Unlock()

		case *page.EventJavascriptDialogOpening:
			go chromedp.Run(timeoutCtx, page.HandleJavaScriptDialog(true))
		}
	})

	if err := chromedp.Run(timeoutCtx, network.Enable()); err != nil {
		result.Error = fmt.Errorf("failed to enable network: %w", err)
		return result
	}

	waitAction := r.waitAction(timeoutCtx, &trackMu, inFlight)

	var html string
	var title string
	var finalURL string

	err := chromedp.Run(timeoutCtx,
		chromedp.Navigate(urlStr),
		waitAction,
		autoScroll(),
		chromedp.Location(&finalURL),
		chromedp.Title(&title),
		chromedp.ActionFunc(func(ctx context.Context) error {
			node, err := dom.GetDocument().Do(ctx)
			if err != nil {
				return err
			}
			html, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
			return err
		}),
	)

	if err != nil {
		result.Error = fmt.Errorf("render failed: %w", err)
		return result
	}

	result.HTML = html
	result.Title = title
	result.FinalURL = finalURL
	result.RenderTime = time.Since(startTime)

	trackMu.Lock()
	for _, res := range resources {
		result.Resources = append(result.Resources, res)
	}
	trackMu.Unlock()

	result.Metrics = r.getPerformanceMetrics(timeoutCtx)

	return result
}

// waitAction builds the navigation-wait step for the configured
// WaitCondition. WaitNetworkIdle polls inFlight until it has held empty for
// networkIdleQuietWindow, capped at networkIdleTimeout.
func (r *Renderer) waitAction(ctx context.Context, mu *sync.Mutex, inFlight map[string]struct{}) chromedp.Action {
	switch r.config.WaitCondition {
	case config.WaitDOMContentLoaded, config.WaitLoad:
		return chromedp.WaitReady("body", chromedp.ByQuery)
	case config.WaitNetworkIdle:
		return chromedp.ActionFunc(func(ctx context.Context) error {
			deadline := time.Now().Add(networkIdleTimeout)
			quietSince := time.Time{}
			for {
				mu.Lock()
				idle := len(inFlight) == 0
				mu.Unlock()

				if idle {
					if quietSince.IsZero() {
						quietSince = time.Now()
					} else if time.Since(quietSince) >= networkIdleQuietWindow {
						return nil
					}
				} else {
					quietSince = time.Time{}
				}

				if time.Now().After(deadline) {
					return nil
				}
				time.Sleep(50 * time.Millisecond)
			}
		})
	case config.WaitSelector:
		if r.config.WaitSelector != "" {
			return chromedp.WaitVisible(r.config.WaitSelector, chromedp.ByQuery)
		}
		return chromedp.WaitReady("body", chromedp.ByQuery)
	default:
		return chromedp.WaitReady("body", chromedp.ByQuery)
	}
}

// autoScroll scrolls to the bottom of the page in increments, pausing
// between steps, so lazy-loaded sections (infinite scroll, intersection
// observers) populate before the HTML is captured.
func autoScroll() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		const steps = 6
		for i := 0; i < steps; i++ {
			if err := chromedp.Evaluate(`window.scrollBy(0, window.innerHeight)`, nil).Do(ctx); err != nil {
				return nil
			}
			time.Sleep(150 * time.Millisecond)
		}
		return chromedp.Evaluate(`window.scrollTo(0, 0)`, nil).Do(ctx)
	})
}

// getPerformanceMetrics extracts navigation timing from the page.
func (r *Renderer) getPerformanceMetrics(ctx context.Context) *PerformanceMetrics {
	metrics := &PerformanceMetrics{}

	var timingJSON string
	err := chromedp.Run(ctx,
		chromedp.Evaluate(`JSON.stringify(performance.timing)`, &timingJSON),
	)
	if err != nil {
		return metrics
	}

	var timing struct {
		NavigationStart  float64 `json:"navigationStart"`
		DomContentLoaded float64 `json:"domContentLoadedEventEnd"`
		LoadEventEnd     float64 `json:"loadEventEnd"`
	}
	if err := json.Unmarshal([]byte(timingJSON), &timing); err != nil {
		return metrics
	}

	metrics.NavigationStart = timing.NavigationStart
	if timing.DomContentLoaded > 0 {
		metrics.DOMContentLoaded = timing.DomContentLoaded - timing.NavigationStart
	}
	if timing.LoadEventEnd > 0 {
		metrics.LoadEventEnd = timing.LoadEventEnd - timing.NavigationStart
	}
	return metrics
}

// RenderBatch renders multiple URLs concurrently, bounded by the browser
// pool's size.
func (r *Renderer) RenderBatch(urls []string) []*RenderResult {
	results := make([]*RenderResult, len(urls))
	var wg sync.WaitGroup

	for i, url := range urls {
		wg.Add(1)
		go func(idx int, u string) {
			defer wg.Done()
			results[idx] = r.Render(u)
		}(i, url)
	}

	wg.Wait()
	return results
}

// ExecuteScript runs a custom JavaScript expression against a freshly
// navigated page and returns its value.
func (r *Renderer) ExecuteScript(urlStr string, script string) (interface{}, error) {
	ctx := <-r.browserPool
	defer func() {
		r.browserPool <- ctx
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, r.config.RenderTimeout)
	defer cancel()

	var result interface{}
	err := chromedp.Run(timeoutCtx,
		chromedp.Navigate(urlStr),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(script, &result),
	)
	if err != nil {
		return nil, fmt.Errorf("script execution failed: %w", err)
	}
	return result, nil
}

// Close shuts down the renderer and releases resources.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	close(r.browserPool)
	for ctx := range r.browserPool {
		chromedp.Cancel(ctx)
	}

	if r.cancel != nil {
		r.cancel()
	}

	return nil
}
