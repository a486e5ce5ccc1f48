package crawler

import (
	"strings"
	"testing"

	"github.com/ternarybob/arbor"
)

func TestExtractLinks(t *testing.T) {
	html := `<html><body>
		<nav><a href="/guide">Guide</a></nav>
		<main>
			<a href="/guide/intro">Intro</a>
			<a href="setup">Relative</a>
			<a href="https://other.com/x">External</a>
			<a href="#section">Fragment only</a>
			<a href="mailto:docs@example.com">Mail</a>
			<a href="javascript:void(0)">JS</a>
			<a href="tel:+1234567890">Phone</a>
			<a href="  /guide/spaced  ">Spaced</a>
			<a>No href</a>
		</main>
	</body></html>`

	extractor := NewLinkExtractor(arbor.NewLogger())
	links, err := extractor.ExtractLinks(html, "https://docs.example.com/guide")
	if err != nil {
		t.Fatalf("ExtractLinks failed: %v", err)
	}

	want := []string{"/guide", "/guide/intro", "setup", "https://other.com/x", "/guide/spaced"}
	if len(links) != len(want) {
		t.Fatalf("got %d links %v, want %d", len(links), links, len(want))
	}
	for i, link := range want {
		if links[i] != link {
			t.Errorf("links[%d] = %q, want %q", i, links[i], link)
		}
	}
}

func TestExtractLinksEmptyDocument(t *testing.T) {
	extractor := NewLinkExtractor(arbor.NewLogger())
	links, err := extractor.ExtractLinks("<html><body><p>No links here.</p></body></html>", "https://docs.example.com/guide")
	if err != nil {
		t.Fatalf("ExtractLinks failed: %v", err)
	}
	if len(links) != 0 {
		t.Errorf("got %d links, want 0", len(links))
	}
}

func TestContentExtractorPrefersConfiguredSelector(t *testing.T) {
	html := `<html><body>
		<nav><a href="/guide">Site nav that should not appear</a></nav>
		<main><h1>Getting Started</h1><p>Install the package first.</p></main>
		<footer>Copyright notice</footer>
	</body></html>`

	extractor := NewContentExtractor(nil, arbor.NewLogger())
	markdown, err := extractor.ExtractMarkdown(html, "https://docs.example.com/guide")
	if err != nil {
		t.Fatalf("ExtractMarkdown failed: %v", err)
	}

	if !containsAll(markdown, "Getting Started", "Install the package first.") {
		t.Errorf("markdown missing main content: %q", markdown)
	}
	if containsAny(markdown, "Site nav", "Copyright") {
		t.Errorf("markdown contains boilerplate: %q", markdown)
	}
}

func TestContentExtractorFallbackStripsBoilerplate(t *testing.T) {
	html := `<html><body>
		<nav>Navigation</nav>
		<div class="sidebar">Sidebar junk</div>
		<h1>Reference</h1>
		<p>The body content survives.</p>
		<footer>Footer</footer>
	</body></html>`

	extractor := NewContentExtractor(nil, arbor.NewLogger())
	markdown, err := extractor.ExtractMarkdown(html, "https://docs.example.com/guide")
	if err != nil {
		t.Fatalf("ExtractMarkdown failed: %v", err)
	}

	if !containsAll(markdown, "Reference", "The body content survives.") {
		t.Errorf("markdown missing body content: %q", markdown)
	}
	if containsAny(markdown, "Navigation", "Sidebar junk", "Footer") {
		t.Errorf("markdown contains boilerplate: %q", markdown)
	}
}

func TestContentExtractorEmptyPage(t *testing.T) {
	extractor := NewContentExtractor(nil, arbor.NewLogger())
	if _, err := extractor.ExtractMarkdown("<html><body></body></html>", "https://docs.example.com/empty"); err == nil {
		t.Error("expected error for a page with no content")
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
