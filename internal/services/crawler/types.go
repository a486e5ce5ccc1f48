package crawler

import (
	"context"
	"sync"
	"time"
)

// CrawlState is the coordinator's global state machine
type CrawlState string

const (
	CrawlStateSeeded   CrawlState = "seeded"
	CrawlStateRunning  CrawlState = "running"
	CrawlStateDraining CrawlState = "draining"
	CrawlStateDone     CrawlState = "done"
)

// PageStatus is the terminal outcome of one crawled page
type PageStatus string

const (
	PageStatusSucceeded PageStatus = "succeeded"
	// PageStatusUnprocessed - fetched but transformation failed after
	// retries; raw content was still written
	PageStatusUnprocessed PageStatus = "unprocessed"
	PageStatusFailed      PageStatus = "failed"
)

// PageRecord is the manifest entry for one crawled page
type PageRecord struct {
	URL       string     `badgerhold:"key"`
	RunID     string     `badgerhold:"index"`
	Status    PageStatus `badgerhold:"index"`
	Title     string
	Depth     int
	Parent    string
	Attempts  int
	LastError string
	RawPath   string
	DocPath   string
	Checksum  string
	FetchedAt time.Time
	Duration  time.Duration
}

// Transformer is the external transformation collaborator: an opaque,
// possibly slow network call that turns raw page markdown into a
// structured document
type Transformer interface {
	Transform(ctx context.Context, markdown, pageURL, title string) (string, error)
}

// DocWriter persists documents to the output tree. Both writes are
// idempotent: re-running an unchanged crawl produces byte-identical files.
type DocWriter interface {
	WriteRaw(canonicalURL, markdown string) (string, error)
	WriteDoc(canonicalURL, doc string) (string, error)
}

// ManifestStore records per-page outcomes for the summary report
type ManifestStore interface {
	RecordPage(record *PageRecord) error
	Close() error
}

// CrawlSummary aggregates the run's outcomes. Counts are commutative:
// workers complete in no particular order, so aggregation is counts plus a
// mapping keyed by URL, never an ordered log.
type CrawlSummary struct {
	RunID             string            `json:"run_id"`
	BaseURL           string            `json:"base_url"`
	State             CrawlState        `json:"state"`
	Succeeded         int               `json:"succeeded"`
	Unprocessed       int               `json:"unprocessed"`
	Failed            int               `json:"failed"`
	SkippedOutOfScope int               `json:"skipped_out_of_scope"`
	SkippedOverBudget int               `json:"skipped_over_budget"`
	FailedURLs        map[string]string `json:"failed_urls"` // canonical URL -> last error
	Cancelled         bool              `json:"cancelled"`
	StartedAt         time.Time         `json:"started_at"`
	FinishedAt        time.Time         `json:"finished_at"`
}

// BaseSucceeded reports whether the base page itself was crawled; the
// process exit code hinges on this.
func (s *CrawlSummary) BaseSucceeded() bool {
	_, failed := s.FailedURLs[s.BaseURL]
	return !failed && s.Succeeded+s.Unprocessed > 0
}

// summaryBuilder accumulates the summary under its own lock
type summaryBuilder struct {
	mu      sync.Mutex
	summary CrawlSummary
}

func newSummaryBuilder(runID, baseURL string) *summaryBuilder {
	return &summaryBuilder{
		summary: CrawlSummary{
			RunID:      runID,
			BaseURL:    baseURL,
			State:      CrawlStateSeeded,
			FailedURLs: make(map[string]string),
			StartedAt:  time.Now(),
		},
	}
}

func (b *summaryBuilder) recordSucceeded() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.summary.Succeeded++
}

func (b *summaryBuilder) recordUnprocessed() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.summary.Unprocessed++
}

func (b *summaryBuilder) recordFailed(url string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.summary.Failed++
	if err != nil {
		b.summary.FailedURLs[url] = err.Error()
	}
}

func (b *summaryBuilder) recordScopeSkips(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.summary.SkippedOutOfScope += n
}

func (b *summaryBuilder) setState(state CrawlState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.summary.State = state
}

func (b *summaryBuilder) finalize(skippedOverBudget int, cancelled bool) CrawlSummary {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.summary.SkippedOverBudget = skippedOverBudget
	b.summary.Cancelled = cancelled
	b.summary.State = CrawlStateDone
	b.summary.FinishedAt = time.Now()
	return b.summary
}
