package crawler

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

// RateLimiter enforces a minimum delay between requests to the same host
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	delay    time.Duration
	logger   arbor.ILogger
}

// NewRateLimiter creates a per-host rate limiter. A zero delay disables
// limiting entirely.
func NewRateLimiter(delay time.Duration, logger arbor.ILogger) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		delay:    delay,
		logger:   logger,
	}
}

func (r *RateLimiter) limiterFor(host string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	limiter, ok := r.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(r.delay), 1)
		r.limiters[host] = limiter
	}
	return limiter
}

// Wait blocks until a request to the URL's host is allowed or ctx is
// cancelled
func (r *RateLimiter) Wait(ctx context.Context, rawURL string) error {
	if r.delay <= 0 {
		return nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}

	start := time.Now()
	if err := r.limiterFor(parsed.Host).Wait(ctx); err != nil {
		return err
	}

	if waited := time.Since(start); waited > 100*time.Millisecond {
		r.logger.Debug().
			Str("host", parsed.Host).
			Dur("waited", waited).
			Msg("Rate limit applied")
	}
	return nil
}
