package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
)

// RenderResult is the rendered content of one page
type RenderResult struct {
	URL        string
	HTML       string
	Title      string
	StatusCode int
	Duration   time.Duration
}

// Renderer acquires rendered HTML for one URL. Implementations must honor
// the per-call timeout and report failures through classifyFetchError so
// retryable and fatal outcomes stay distinguishable.
type Renderer interface {
	Render(ctx context.Context, url string, timeout time.Duration) (*RenderResult, error)
	Close() error
}

// classifyFetchError wraps a fetch failure with its retry classification:
// timeouts, transient network faults and 5xx responses are retryable;
// 4xx responses and malformed requests are fatal.
func classifyFetchError(url string, statusCode int, err error) *CrawlError {
	if statusCode >= 500 {
		return newCrawlError(KindFetchRetryable, url, fmt.Errorf("HTTP %d", statusCode))
	}
	if statusCode == http.StatusTooManyRequests || statusCode == http.StatusRequestTimeout {
		return newCrawlError(KindFetchRetryable, url, fmt.Errorf("HTTP %d", statusCode))
	}
	if statusCode >= 400 {
		return newCrawlError(KindFetchFatal, url, fmt.Errorf("HTTP %d", statusCode))
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return newCrawlError(KindFetchRetryable, url, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newCrawlError(KindFetchRetryable, url, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return newCrawlError(KindFetchRetryable, url, err)
	}
	if errors.Is(err, context.Canceled) {
		return newCrawlError(KindFetchFatal, url, err)
	}

	// Unknown driver errors are treated as transient
	return newCrawlError(KindFetchRetryable, url, err)
}

// HTTPRenderer fetches pages with a plain HTTP client. It is the fallback
// when JavaScript rendering is disabled.
type HTTPRenderer struct {
	client    *http.Client
	userAgent string
	logger    arbor.ILogger
}

// NewHTTPRenderer creates an HTTP-based renderer
func NewHTTPRenderer(userAgent string, logger arbor.ILogger) *HTTPRenderer {
	return &HTTPRenderer{
		client:    &http.Client{},
		userAgent: userAgent,
		logger:    logger,
	}
}

// Render fetches the URL and returns its body as-is
func (r *HTTPRenderer) Render(ctx context.Context, url string, timeout time.Duration) (*RenderResult, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, newCrawlError(KindFetchFatal, url, err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, classifyFetchError(url, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, classifyFetchError(url, resp.StatusCode, nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyFetchError(url, 0, err)
	}

	r.logger.Debug().
		Str("url", url).
		Int("status_code", resp.StatusCode).
		Int("body_size", len(body)).
		Dur("duration", time.Since(start)).
		Msg("Page fetched")

	return &RenderResult{
		URL:        url,
		HTML:       string(body),
		StatusCode: resp.StatusCode,
		Duration:   time.Since(start),
	}, nil
}

// Close is a no-op for the HTTP renderer
func (r *HTTPRenderer) Close() error {
	return nil
}
