package crawler

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// ChromeRenderer renders pages through a pooled headless browser so
// JavaScript-driven documentation sites produce their full DOM before
// extraction.
type ChromeRenderer struct {
	pool   *BrowserPool
	jsWait time.Duration
	logger arbor.ILogger
}

// NewChromeRenderer creates a renderer over an initialized browser pool.
// jsWait is the settle time after navigation for client-side rendering.
func NewChromeRenderer(pool *BrowserPool, jsWait time.Duration, logger arbor.ILogger) *ChromeRenderer {
	if jsWait <= 0 {
		jsWait = 2 * time.Second
	}
	return &ChromeRenderer{
		pool:   pool,
		jsWait: jsWait,
		logger: logger,
	}
}

// Render navigates a pooled browser to the URL, waits for JavaScript to
// settle, and captures the rendered DOM with title and HTTP status.
func (r *ChromeRenderer) Render(ctx context.Context, url string, timeout time.Duration) (*RenderResult, error) {
	start := time.Now()

	browserCtx, err := r.pool.Acquire()
	if err != nil {
		return nil, newCrawlError(KindFetchRetryable, url, err)
	}

	// Tab context scoped to this page; cancelling it closes the tab but
	// leaves the pooled browser alive
	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	defer tabCancel()

	pageCtx, pageCancel := context.WithTimeout(tabCtx, timeout)
	defer pageCancel()

	// Capture the main document's HTTP status from network events. The
	// first document response wins so redirected pages report the final
	// status rather than none at all
	var statusMu sync.Mutex
	statusCode := 0
	chromedp.ListenTarget(pageCtx, func(ev interface{}) {
		if status, ok := documentResponseStatus(ev); ok {
			statusMu.Lock()
			if statusCode == 0 {
				statusCode = status
			}
			statusMu.Unlock()
		}
	})

	if err := chromedp.Run(pageCtx, network.Enable()); err != nil {
		return nil, classifyFetchError(url, 0, err)
	}

	if err := chromedp.Run(pageCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(r.jsWait),
	); err != nil {
		return nil, classifyFetchError(url, 0, err)
	}

	var html, title string
	if err := chromedp.Run(pageCtx,
		chromedp.OuterHTML("html", &html),
		chromedp.Title(&title),
	); err != nil {
		return nil, classifyFetchError(url, 0, err)
	}

	statusMu.Lock()
	status := statusCode
	statusMu.Unlock()

	if status >= 400 {
		return nil, classifyFetchError(url, status, nil)
	}
	if status == 0 {
		// Navigation succeeded but no document response observed (cached
		// or about: pages); treat as OK
		status = 200
	}

	duration := time.Since(start)
	r.logger.Debug().
		Str("url", url).
		Str("title", title).
		Int("status_code", status).
		Int("html_length", len(html)).
		Dur("duration", duration).
		Msg("Page rendered")

	return &RenderResult{
		URL:        url,
		HTML:       html,
		Title:      title,
		StatusCode: status,
		Duration:   duration,
	}, nil
}

// documentResponseStatus extracts the HTTP status from a network event when
// it carries the main document response. Matching on the resource type
// rather than the requested URL keeps redirected navigations covered.
func documentResponseStatus(ev interface{}) (int, bool) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return 0, false
	}
	return int(resp.Response.Status), true
}

// Close shuts down the underlying browser pool
func (r *ChromeRenderer) Close() error {
	return r.pool.Shutdown()
}
