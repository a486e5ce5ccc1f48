package crawler

import (
	"context"
	"math/rand"
	"time"

	"github.com/ternarybob/arbor"
)

// RetryPolicy defines retry behavior with exponential backoff. Fetch and
// processing share one policy, parameterized by an error classifier, so the
// backoff logic lives in exactly one place.
type RetryPolicy struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultRetryPolicy returns the standard policy: two retries after the
// first attempt, backing off 1s then 2s.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// CalculateBackoff returns the backoff duration for the given attempt
// (1-indexed) with up to 25% jitter to avoid thundering herd
func (p *RetryPolicy) CalculateBackoff(attempt int) time.Duration {
	backoff := float64(p.InitialBackoff)
	for i := 1; i < attempt; i++ {
		backoff *= p.BackoffMultiplier
	}
	if backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}

	jitter := backoff * 0.25 * (rand.Float64()*2 - 1)
	return time.Duration(backoff + jitter)
}

// ExecuteWithRetry runs fn until it succeeds, fails unretryably, exhausts
// the attempt budget, or ctx is cancelled. retryable decides whether a
// given failure is worth another attempt; a fatal failure gets zero
// retries. The last error is returned on exhaustion.
func (p *RetryPolicy) ExecuteWithRetry(ctx context.Context, logger arbor.ILogger, retryable func(error) bool, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !retryable(lastErr) {
			logger.Debug().
				Err(lastErr).
				Int("attempt", attempt).
				Msg("Non-retryable error, giving up")
			return lastErr
		}

		if attempt == p.MaxAttempts {
			break
		}

		backoff := p.CalculateBackoff(attempt)
		logger.Debug().
			Err(lastErr).
			Int("attempt", attempt).
			Int("max_attempts", p.MaxAttempts).
			Dur("backoff", backoff).
			Msg("Retryable error, backing off")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	logger.Debug().
		Err(lastErr).
		Int("max_attempts", p.MaxAttempts).
		Msg("Retry attempts exhausted")
	return lastErr
}
