package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// BrowserPool maintains a fixed set of headless browser instances shared
// round-robin by the workers, so each page render reuses a warm browser
// instead of paying startup cost per URL.
type BrowserPool struct {
	mu               sync.Mutex
	browsers         []context.Context
	browserCancels   []context.CancelFunc
	allocatorCancels []context.CancelFunc
	maxInstances     int
	currentIndex     int
	userAgent        string
	logger           arbor.ILogger
	initialized      bool
}

// NewBrowserPool creates an uninitialized pool of maxInstances browsers
func NewBrowserPool(maxInstances int, userAgent string, logger arbor.ILogger) *BrowserPool {
	if maxInstances < 1 {
		maxInstances = 1
	}
	return &BrowserPool{
		maxInstances: maxInstances,
		userAgent:    userAgent,
		logger:       logger,
	}
}

// Init starts the browser instances and verifies each with a blank-page
// navigation probe
func (p *BrowserPool) Init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return nil
	}

	start := time.Now()
	p.logger.Info().
		Int("instances", p.maxInstances).
		Msg("Initializing browser pool")

	for i := 0; i < p.maxInstances; i++ {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(p.userAgent),
		)

		allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
		browserCtx, browserCancel := chromedp.NewContext(allocCtx)

		// Startup probe: a browser that cannot open about:blank is unusable
		probeCtx, probeCancel := context.WithTimeout(browserCtx, 15*time.Second)
		var title string
		err := chromedp.Run(probeCtx,
			chromedp.Navigate("about:blank"),
			chromedp.Title(&title),
		)
		probeCancel()

		if err != nil {
			browserCancel()
			allocCancel()
			p.shutdownLocked()
			return fmt.Errorf("browser instance %d failed startup probe: %w", i, err)
		}

		p.browsers = append(p.browsers, browserCtx)
		p.browserCancels = append(p.browserCancels, browserCancel)
		p.allocatorCancels = append(p.allocatorCancels, allocCancel)

		p.logger.Debug().
			Int("instance", i).
			Msg("Browser instance ready")
	}

	p.initialized = true
	p.logger.Info().
		Int("instances", len(p.browsers)).
		Dur("duration", time.Since(start)).
		Msg("Browser pool initialized")
	return nil
}

// Acquire returns the next browser context round-robin. The pool owns the
// context; callers must not cancel it.
func (p *BrowserPool) Acquire() (context.Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized || len(p.browsers) == 0 {
		return nil, fmt.Errorf("browser pool not initialized")
	}

	browserCtx := p.browsers[p.currentIndex]
	p.currentIndex = (p.currentIndex + 1) % len(p.browsers)
	return browserCtx, nil
}

func (p *BrowserPool) shutdownLocked() {
	for _, cancel := range p.browserCancels {
		cancel()
	}
	for _, cancel := range p.allocatorCancels {
		cancel()
	}
	p.browsers = nil
	p.browserCancels = nil
	p.allocatorCancels = nil
	p.initialized = false
	p.currentIndex = 0
}

// Shutdown closes all browser instances. Cleanup runs in a goroutine with
// a deadline so a hung browser cannot block process exit.
func (p *BrowserPool) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil
	}

	p.logger.Info().
		Int("instances", len(p.browsers)).
		Msg("Shutting down browser pool")

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.shutdownLocked()
	}()

	select {
	case <-done:
		p.logger.Info().Msg("Browser pool shut down")
		return nil
	case <-time.After(30 * time.Second):
		return fmt.Errorf("browser pool shutdown timed out")
	}
}
