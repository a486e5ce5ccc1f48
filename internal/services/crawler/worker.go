package crawler

// worker.go contains the per-worker crawl loop: dequeue, fetch, link
// discovery, transformation and persistence for one URL at a time. Every
// per-page error is caught here, recorded, and never aborts the crawl.

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"time"
)

func (s *Service) workerLoop(ctx context.Context, workerIndex int, summary *summaryBuilder) {
	startTime := time.Now()
	pagesProcessed := 0

	s.logger.Debug().
		Str("run_id", s.runID).
		Int("worker_index", workerIndex).
		Msg("Worker started")

	defer func() {
		s.wg.Done()
		s.logger.Debug().
			Str("run_id", s.runID).
			Int("worker_index", workerIndex).
			Int("pages_processed", pagesProcessed).
			Dur("duration", time.Since(startTime)).
			Msg("Worker exiting")
	}()

	for {
		entry, state := s.frontier.Dequeue(ctx)
		if state != DequeueReady {
			return
		}

		s.processEntry(ctx, entry, summary)
		pagesProcessed++
	}
}

// processEntry runs one entry through fetch -> extract -> transform ->
// write. The in-flight mark is released only after link discovery has fed
// the frontier, so quiescence detection stays sound.
func (s *Service) processEntry(ctx context.Context, entry *FrontierEntry, summary *summaryBuilder) {
	defer s.frontier.MarkDone(entry)

	start := time.Now()
	record := &PageRecord{
		URL:    entry.URL,
		RunID:  s.runID,
		Depth:  entry.Depth,
		Parent: entry.Parent,
	}

	result, err := s.fetchWithRetry(ctx, entry, record)
	if err != nil {
		s.recordFailure(ctx, entry, record, summary, err)
		return
	}
	record.Title = result.Title
	record.Duration = time.Since(start)

	s.discoverLinks(result, entry, summary)

	markdown, err := s.content.ExtractMarkdown(result.HTML, entry.URL)
	if err != nil {
		s.recordFailure(ctx, entry, record, summary, newCrawlError(KindProcessingFatal, entry.URL, err))
		return
	}

	rawPath, err := s.writer.WriteRaw(entry.URL, markdown)
	if err != nil {
		s.recordFailure(ctx, entry, record, summary, newCrawlError(KindIO, entry.URL, err))
		return
	}
	record.RawPath = rawPath

	doc := markdown
	if s.transformer != nil {
		transformed, err := s.transformWithRetry(ctx, markdown, entry.URL, result.Title, record)
		if err != nil {
			// Fetched but not processed: the raw markdown is already on
			// disk, the crawl continues
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Warn().
				Err(err).
				Str("url", entry.URL).
				Msg("Transformation failed after retries, keeping raw content")
			record.Status = PageStatusUnprocessed
			record.LastError = err.Error()
			record.FetchedAt = time.Now()
			summary.recordUnprocessed()
			s.saveRecord(record)
			return
		}
		doc = transformed
	}

	docPath, err := s.writer.WriteDoc(entry.URL, doc)
	if err != nil {
		s.recordFailure(ctx, entry, record, summary, newCrawlError(KindIO, entry.URL, err))
		return
	}

	sum := sha256.Sum256([]byte(doc))
	record.DocPath = docPath
	record.Checksum = hex.EncodeToString(sum[:])
	record.Status = PageStatusSucceeded
	record.FetchedAt = time.Now()
	summary.recordSucceeded()
	s.saveRecord(record)

	s.logger.Info().
		Str("url", entry.URL).
		Str("title", result.Title).
		Int("depth", entry.Depth).
		Int("doc_length", len(doc)).
		Dur("duration", time.Since(start)).
		Msg("Page crawled")
}

// fetchWithRetry acquires rendered content under the shared retry policy
func (s *Service) fetchWithRetry(ctx context.Context, entry *FrontierEntry, record *PageRecord) (*RenderResult, error) {
	var result *RenderResult

	err := s.retryPolicy.ExecuteWithRetry(ctx, s.logger, IsRetryable, func() error {
		record.Attempts++

		if err := s.rateLimiter.Wait(ctx, entry.URL); err != nil {
			return err
		}

		r, err := s.renderer.Render(ctx, entry.URL, s.opts.PerPageTimeout)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// transformWithRetry invokes the transformation collaborator under the
// same retry policy as fetching; its failures are retryable unless marked
// otherwise.
func (s *Service) transformWithRetry(ctx context.Context, markdown, pageURL, title string, record *PageRecord) (string, error) {
	var doc string

	err := s.retryPolicy.ExecuteWithRetry(ctx, s.logger, IsRetryable, func() error {
		transformed, err := s.transformer.Transform(ctx, markdown, pageURL, title)
		if err != nil {
			if KindOf(err) == KindNone {
				err = newCrawlError(KindProcessingRetryable, pageURL, err)
			}
			return err
		}
		doc = transformed
		return nil
	})
	if err != nil {
		return "", err
	}
	return doc, nil
}

// discoverLinks feeds every in-scope link back to the frontier. Extraction
// is stateless; dedup happens inside TryEnqueue.
func (s *Service) discoverLinks(result *RenderResult, entry *FrontierEntry, summary *summaryBuilder) {
	links, err := s.extractor.ExtractLinks(result.HTML, entry.URL)
	if err != nil {
		s.logger.Warn().Err(err).Str("url", entry.URL).Msg("Link extraction failed")
		return
	}

	pageURL, err := url.Parse(entry.URL)
	if err != nil {
		s.logger.Warn().Err(err).Str("url", entry.URL).Msg("Unparseable page URL")
		return
	}

	enqueued := 0
	scopeSkips := 0
	for _, link := range links {
		canonical, err := s.scope.Canonicalize(link, pageURL)
		if err != nil {
			if errors.Is(err, ErrOutOfScope) {
				scopeSkips++
			}
			continue
		}
		if s.frontier.TryEnqueue(canonical, entry.URL, entry.Depth+1) {
			enqueued++
		}
	}
	summary.recordScopeSkips(scopeSkips)

	s.logger.Debug().
		Str("url", entry.URL).
		Int("discovered", len(links)).
		Int("enqueued", enqueued).
		Int("out_of_scope", scopeSkips).
		Msg("Link discovery complete")
}

// recordFailure books a terminal per-page failure. Cancellation aborts are
// not failures and are left out of the summary.
func (s *Service) recordFailure(ctx context.Context, entry *FrontierEntry, record *PageRecord, summary *summaryBuilder, err error) {
	if errors.Is(err, context.Canceled) || (ctx.Err() != nil && errors.Is(err, ctx.Err())) {
		return
	}

	s.logger.Warn().
		Err(err).
		Str("url", entry.URL).
		Str("kind", KindOf(err).String()).
		Int("attempts", record.Attempts).
		Msg("Page failed")

	record.Status = PageStatusFailed
	record.LastError = err.Error()
	record.FetchedAt = time.Now()
	summary.recordFailed(entry.URL, err)
	s.saveRecord(record)
}

func (s *Service) saveRecord(record *PageRecord) {
	if s.manifest == nil {
		return
	}
	if err := s.manifest.RecordPage(record); err != nil {
		s.logger.Warn().Err(err).Str("url", record.URL).Msg("Failed to save manifest record")
	}
}
