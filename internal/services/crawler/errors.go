package crawler

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a per-page failure. Per-page errors are recorded in
// the crawl summary and never abort other workers; only config errors are
// fatal to the whole run.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindScopeSkip
	KindFetchRetryable
	KindFetchFatal
	KindProcessingRetryable
	KindProcessingFatal
	KindIO
	KindConfig
)

func (k ErrorKind) String() string {
	switch k {
	case KindScopeSkip:
		return "scope_skip"
	case KindFetchRetryable:
		return "fetch_retryable"
	case KindFetchFatal:
		return "fetch_fatal"
	case KindProcessingRetryable:
		return "processing_retryable"
	case KindProcessingFatal:
		return "processing_fatal"
	case KindIO:
		return "io_error"
	case KindConfig:
		return "config_error"
	default:
		return "none"
	}
}

// ErrOutOfScope marks a link that falls outside the crawl scope. It is a
// skip signal, not a failure.
var ErrOutOfScope = errors.New("url out of crawl scope")

// CrawlError wraps a per-page failure with its classification
type CrawlError struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *CrawlError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.URL, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *CrawlError) Unwrap() error {
	return e.Err
}

func newCrawlError(kind ErrorKind, url string, err error) *CrawlError {
	return &CrawlError{Kind: kind, URL: url, Err: err}
}

// KindOf extracts the classification from an error chain
func KindOf(err error) ErrorKind {
	var ce *CrawlError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, ErrOutOfScope) {
		return KindScopeSkip
	}
	return KindNone
}

// IsRetryable reports whether the error is worth another attempt under the
// backoff policy. Fetch and processing share this classifier.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindFetchRetryable, KindProcessingRetryable:
		return true
	}
	return false
}
