package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
)

// fakeRenderer serves canned HTML keyed by canonical URL and can be
// scripted to fail a given number of times per URL
type fakeRenderer struct {
	mu       sync.Mutex
	pages    map[string]string
	failures map[string]*failureScript
	renders  map[string]int
}

type failureScript struct {
	times int
	err   error
}

func newFakeRenderer(pages map[string]string) *fakeRenderer {
	return &fakeRenderer{
		pages:    pages,
		failures: make(map[string]*failureScript),
		renders:  make(map[string]int),
	}
}

func (r *fakeRenderer) failFor(url string, times int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[url] = &failureScript{times: times, err: err}
}

func (r *fakeRenderer) renderCount(url string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.renders[url]
}

func (r *fakeRenderer) totalRenders() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, n := range r.renders {
		total += n
	}
	return total
}

func (r *fakeRenderer) Render(_ context.Context, url string, _ time.Duration) (*RenderResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.renders[url]++
	if script, ok := r.failures[url]; ok && script.times > 0 {
		script.times--
		return nil, script.err
	}

	html, ok := r.pages[url]
	if !ok {
		return nil, classifyFetchError(url, 404, nil)
	}
	return &RenderResult{URL: url, HTML: html, Title: "Test Page", StatusCode: 200}, nil
}

func (r *fakeRenderer) Close() error { return nil }

// fakeWriter records writes in memory
type fakeWriter struct {
	mu   sync.Mutex
	raw  map[string]string
	docs map[string]string
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{raw: make(map[string]string), docs: make(map[string]string)}
}

func (w *fakeWriter) WriteRaw(canonicalURL, markdown string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.raw[canonicalURL] = markdown
	return "raw/" + canonicalURL, nil
}

func (w *fakeWriter) WriteDoc(canonicalURL, doc string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.docs[canonicalURL] = doc
	return "docs/" + canonicalURL, nil
}

// fakeTransformer prefixes content, or fails a scripted number of times
type fakeTransformer struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (t *fakeTransformer) Transform(_ context.Context, markdown, _, _ string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	if t.failures != 0 {
		if t.failures > 0 {
			t.failures--
		}
		return "", errors.New("upstream overloaded")
	}
	return "# Edited\n\n" + markdown, nil
}

func pageHTML(title string, links ...string) string {
	body := "<main><h1>" + title + "</h1><p>Documentation content for " + title + ".</p>"
	for _, link := range links {
		body += fmt.Sprintf(`<a href="%s">%s</a>`, link, link)
	}
	body += "</main>"
	return "<html><head><title>" + title + "</title></head><body>" + body + "</body></html>"
}

func newTestService(t *testing.T, baseURL string, renderer Renderer, transformer Transformer, writer DocWriter, opts Options) *Service {
	t.Helper()

	scope, err := NewScope(baseURL, nil, nil)
	if err != nil {
		t.Fatalf("NewScope failed: %v", err)
	}

	logger := arbor.NewLogger()
	content := NewContentExtractor(nil, logger)
	svc := NewService(scope, renderer, content, transformer, writer, nil, logger, opts)
	svc.retryPolicy = fastRetryPolicy()
	return svc
}

func TestServiceCrawlsInScopeGraph(t *testing.T) {
	base := "https://docs.example.com/guide"
	renderer := newFakeRenderer(map[string]string{
		base: pageHTML("Guide",
			"/guide/intro",
			"/guide/intro#setup",
			"https://other.com/x",
			"/api/reference",
		),
		base + "/intro":    pageHTML("Intro", "/guide", "/guide/advanced"),
		base + "/advanced": pageHTML("Advanced"),
	})
	writer := newFakeWriter()
	transformer := &fakeTransformer{}

	svc := newTestService(t, base, renderer, transformer, writer, Options{MaxPages: 100, Concurrency: 4})

	summary, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Succeeded != 3 {
		t.Errorf("Succeeded = %d, want 3", summary.Succeeded)
	}
	if summary.Failed != 0 {
		t.Errorf("Failed = %d, want 0", summary.Failed)
	}
	if summary.State != CrawlStateDone {
		t.Errorf("State = %q, want done", summary.State)
	}
	if !summary.BaseSucceeded() {
		t.Error("BaseSucceeded should be true")
	}

	// Fragment variant and back-link must not cause refetches
	for url, n := range renderer.renders {
		if n != 1 {
			t.Errorf("url %s rendered %d times, want 1", url, n)
		}
	}
	if renderer.renderCount("https://other.com/x") != 0 {
		t.Error("cross-host URL must never be fetched")
	}
	if renderer.renderCount("https://docs.example.com/api/reference") != 0 {
		t.Error("out-of-prefix URL must never be fetched")
	}
	// other.com, /api/reference from base; fragment dup is dedup, not scope
	if summary.SkippedOutOfScope != 2 {
		t.Errorf("SkippedOutOfScope = %d, want 2", summary.SkippedOutOfScope)
	}

	for _, url := range []string{base, base + "/intro", base + "/advanced"} {
		if _, ok := writer.docs[url]; !ok {
			t.Errorf("no document written for %s", url)
		}
		if _, ok := writer.raw[url]; !ok {
			t.Errorf("no raw markdown written for %s", url)
		}
	}
}

func TestServiceHonorsPageBudget(t *testing.T) {
	base := "https://docs.example.com/guide"
	links := make([]string, 10)
	pages := map[string]string{}
	for i := range links {
		links[i] = fmt.Sprintf("/guide/page-%d", i)
		pages[fmt.Sprintf("%s/page-%d", base, i)] = pageHTML(fmt.Sprintf("Page %d", i))
	}
	pages[base] = pageHTML("Guide", links...)

	renderer := newFakeRenderer(pages)
	writer := newFakeWriter()

	svc := newTestService(t, base, renderer, nil, writer, Options{MaxPages: 3, Concurrency: 4})

	summary, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if renderer.totalRenders() != 3 {
		t.Errorf("total renders = %d, want exactly 3", renderer.totalRenders())
	}
	if summary.Succeeded != 3 {
		t.Errorf("Succeeded = %d, want 3", summary.Succeeded)
	}
	if summary.SkippedOverBudget != 8 {
		t.Errorf("SkippedOverBudget = %d, want 8", summary.SkippedOverBudget)
	}
}

func TestServiceRetriesTransientFetchFailures(t *testing.T) {
	base := "https://docs.example.com/guide"
	renderer := newFakeRenderer(map[string]string{base: pageHTML("Guide")})
	renderer.failFor(base, 2, classifyFetchError(base, 503, nil))
	writer := newFakeWriter()

	svc := newTestService(t, base, renderer, nil, writer, Options{MaxPages: 10, Concurrency: 1})

	summary, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if renderer.renderCount(base) != 3 {
		t.Errorf("renders = %d, want 3 (two failures then success)", renderer.renderCount(base))
	}
	if summary.Succeeded != 1 || summary.Failed != 0 {
		t.Errorf("Succeeded = %d, Failed = %d, want 1, 0", summary.Succeeded, summary.Failed)
	}
}

func TestServiceFatalFetchGetsNoRetries(t *testing.T) {
	base := "https://docs.example.com/guide"
	renderer := newFakeRenderer(map[string]string{})
	writer := newFakeWriter()

	svc := newTestService(t, base, renderer, nil, writer, Options{MaxPages: 10, Concurrency: 1})

	summary, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if renderer.renderCount(base) != 1 {
		t.Errorf("renders = %d, want 1 (404 must not be retried)", renderer.renderCount(base))
	}
	if summary.Failed != 1 {
		t.Errorf("Failed = %d, want 1", summary.Failed)
	}
	if summary.BaseSucceeded() {
		t.Error("BaseSucceeded should be false when the base page 404s")
	}
	if _, ok := summary.FailedURLs[base]; !ok {
		t.Error("FailedURLs missing the base URL")
	}
}

func TestServiceKeepsRawWhenTransformationFails(t *testing.T) {
	base := "https://docs.example.com/guide"
	renderer := newFakeRenderer(map[string]string{base: pageHTML("Guide")})
	writer := newFakeWriter()
	transformer := &fakeTransformer{failures: -1} // always fails

	svc := newTestService(t, base, renderer, transformer, writer, Options{MaxPages: 10, Concurrency: 1})

	summary, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Unprocessed != 1 {
		t.Errorf("Unprocessed = %d, want 1", summary.Unprocessed)
	}
	if summary.Succeeded != 0 || summary.Failed != 0 {
		t.Errorf("Succeeded = %d, Failed = %d, want 0, 0", summary.Succeeded, summary.Failed)
	}
	if _, ok := writer.raw[base]; !ok {
		t.Error("raw markdown should be written before transformation")
	}
	if _, ok := writer.docs[base]; ok {
		t.Error("no document should be written when transformation fails")
	}
	// Fetched-but-unprocessed still counts as a crawled base page
	if !summary.BaseSucceeded() {
		t.Error("BaseSucceeded should be true for an unprocessed base page")
	}
}

func TestServiceNilTransformerWritesRawDocs(t *testing.T) {
	base := "https://docs.example.com/guide"
	renderer := newFakeRenderer(map[string]string{base: pageHTML("Guide")})
	writer := newFakeWriter()

	svc := newTestService(t, base, renderer, nil, writer, Options{MaxPages: 10, Concurrency: 1})

	summary, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Succeeded != 1 {
		t.Errorf("Succeeded = %d, want 1", summary.Succeeded)
	}
	if writer.docs[base] != writer.raw[base] {
		t.Error("with no transformer the document should equal the raw markdown")
	}
}

func TestServiceCancelledBeforeStart(t *testing.T) {
	base := "https://docs.example.com/guide"
	renderer := newFakeRenderer(map[string]string{base: pageHTML("Guide")})
	writer := newFakeWriter()

	svc := newTestService(t, base, renderer, nil, writer, Options{MaxPages: 10, Concurrency: 2})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !summary.Cancelled {
		t.Error("Cancelled should be true")
	}
	if summary.Failed != 0 {
		t.Errorf("Failed = %d, want 0 (cancellation is not a failure)", summary.Failed)
	}
	if summary.State != CrawlStateDone {
		t.Errorf("State = %q, want done", summary.State)
	}
}
