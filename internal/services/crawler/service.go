package crawler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
)

// Options holds the crawl engine's runtime settings
type Options struct {
	MaxPages       int
	Concurrency    int
	PerPageTimeout time.Duration
	RequestDelay   time.Duration
}

// Service is the crawl coordinator. It seeds the frontier, runs N workers
// that pull from it, and aggregates the crawl summary. It never decides
// scope or dedup itself; the frontier and the normalizer own those.
type Service struct {
	scope       *Scope
	frontier    *Frontier
	renderer    Renderer
	extractor   *LinkExtractor
	content     *ContentExtractor
	transformer Transformer
	writer      DocWriter
	manifest    ManifestStore
	rateLimiter *RateLimiter
	retryPolicy *RetryPolicy
	logger      arbor.ILogger
	opts        Options
	runID       string
	wg          sync.WaitGroup
}

// NewService wires the crawl engine. transformer may be nil to skip
// content transformation (raw markdown only); manifest may be nil to skip
// persistence of per-page records.
func NewService(scope *Scope, renderer Renderer, content *ContentExtractor, transformer Transformer, writer DocWriter, manifest ManifestStore, logger arbor.ILogger, opts Options) *Service {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 1000
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.PerPageTimeout <= 0 {
		opts.PerPageTimeout = 30 * time.Second
	}

	return &Service{
		scope:       scope,
		frontier:    NewFrontier(opts.MaxPages),
		renderer:    renderer,
		extractor:   NewLinkExtractor(logger),
		content:     content,
		transformer: transformer,
		writer:      writer,
		manifest:    manifest,
		rateLimiter: NewRateLimiter(opts.RequestDelay, logger),
		retryPolicy: DefaultRetryPolicy(),
		logger:      logger,
		opts:        opts,
		runID:       uuid.New().String(),
	}
}

// RunID identifies this crawl run in logs and manifest records
func (s *Service) RunID() string {
	return s.runID
}

// Run executes the crawl until the frontier is quiescent, the page budget
// drains, or ctx is cancelled. Cancellation is a valid terminal transition,
// not an error: the summary still reflects all completed work.
func (s *Service) Run(ctx context.Context) (*CrawlSummary, error) {
	summary := newSummaryBuilder(s.runID, s.scope.Base())

	s.frontier.Seed(s.scope.Base())
	summary.setState(CrawlStateRunning)

	s.logger.Info().
		Str("run_id", s.runID).
		Str("base_url", s.scope.Base()).
		Int("max_pages", s.opts.MaxPages).
		Int("concurrency", s.opts.Concurrency).
		Msg("Crawl started")

	monitorDone := make(chan struct{})
	go s.monitorLoop(ctx, summary, monitorDone)

	for i := 0; i < s.opts.Concurrency; i++ {
		s.wg.Add(1)
		go s.workerLoop(ctx, i, summary)
	}

	s.wg.Wait()
	close(monitorDone)
	s.frontier.Close()

	result := summary.finalize(s.frontier.SkippedOverBudget(), ctx.Err() != nil)

	s.logger.Info().
		Str("run_id", s.runID).
		Int("succeeded", result.Succeeded).
		Int("unprocessed", result.Unprocessed).
		Int("failed", result.Failed).
		Int("skipped_out_of_scope", result.SkippedOutOfScope).
		Int("skipped_over_budget", result.SkippedOverBudget).
		Bool("cancelled", result.Cancelled).
		Dur("duration", result.FinishedAt.Sub(result.StartedAt)).
		Msg("Crawl finished")

	return &result, nil
}

// monitorLoop tracks the Running -> Draining transition and logs progress
func (s *Service) monitorLoop(ctx context.Context, summary *summaryBuilder, done <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	ctxDone := ctx.Done()
	draining := false
	for {
		select {
		case <-done:
			return
		case <-ctxDone:
			draining = true
			summary.setState(CrawlStateDraining)
			ctxDone = nil
		case <-ticker.C:
			pending := s.frontier.PendingLen()
			inFlight := s.frontier.InFlight()
			budget := s.frontier.BudgetRemaining()

			if !draining && (budget == 0 || (pending == 0 && inFlight > 0)) {
				draining = true
				summary.setState(CrawlStateDraining)
			}

			s.logger.Info().
				Str("run_id", s.runID).
				Int("pending", pending).
				Int("in_flight", inFlight).
				Int("budget_remaining", budget).
				Int("fetched", s.frontier.Fetched()).
				Msg("Crawl progress")
		}
	}
}
