package crawler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestClassifyFetchError(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		err        error
		wantKind   ErrorKind
	}{
		{"Server error", 500, nil, KindFetchRetryable},
		{"Bad gateway", 502, nil, KindFetchRetryable},
		{"Rate limited", 429, nil, KindFetchRetryable},
		{"Request timeout status", 408, nil, KindFetchRetryable},
		{"Not found", 404, nil, KindFetchFatal},
		{"Forbidden", 403, nil, KindFetchFatal},
		{"Deadline exceeded", 0, context.DeadlineExceeded, KindFetchRetryable},
		{"Connection refused", 0, &net.OpError{Op: "dial", Err: errors.New("connection refused")}, KindFetchRetryable},
		{"Cancelled", 0, context.Canceled, KindFetchFatal},
		{"Unknown driver error", 0, errors.New("target crashed"), KindFetchRetryable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyFetchError("https://docs.example.com/guide", tt.statusCode, tt.err)
			if err.Kind != tt.wantKind {
				t.Errorf("kind = %v, want %v", err.Kind, tt.wantKind)
			}
			if err.URL != "https://docs.example.com/guide" {
				t.Errorf("url = %q", err.URL)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"Nil error", nil, KindNone},
		{"Crawl error direct", newCrawlError(KindIO, "u", errors.New("disk full")), KindIO},
		{"Crawl error wrapped", fmt.Errorf("write: %w", newCrawlError(KindProcessingFatal, "u", errors.New("empty"))), KindProcessingFatal},
		{"Scope sentinel wrapped", fmt.Errorf("host mismatch: %w", ErrOutOfScope), KindScopeSkip},
		{"Plain error", errors.New("mystery"), KindNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(newCrawlError(KindFetchRetryable, "u", errors.New("503"))) {
		t.Error("fetch-retryable should be retryable")
	}
	if !IsRetryable(newCrawlError(KindProcessingRetryable, "u", errors.New("429"))) {
		t.Error("processing-retryable should be retryable")
	}
	if IsRetryable(newCrawlError(KindFetchFatal, "u", errors.New("404"))) {
		t.Error("fetch-fatal should not be retryable")
	}
	if IsRetryable(newCrawlError(KindIO, "u", errors.New("disk"))) {
		t.Error("io errors should not be retryable")
	}
	if IsRetryable(nil) {
		t.Error("nil should not be retryable")
	}
}

func TestCrawlErrorUnwrap(t *testing.T) {
	inner := errors.New("connection reset")
	err := newCrawlError(KindFetchRetryable, "https://docs.example.com/guide", inner)

	if !errors.Is(err, inner) {
		t.Error("CrawlError should unwrap to its cause")
	}
}
