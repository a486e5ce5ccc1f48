package crawler

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
)

// LinkExtractor parses hyperlink targets out of rendered HTML. It is
// stateless: deduplication and scoping belong to the frontier and the
// normalizer, extraction just reports every candidate it sees.
type LinkExtractor struct {
	logger arbor.ILogger
}

// NewLinkExtractor creates a new link extractor
func NewLinkExtractor(logger arbor.ILogger) *LinkExtractor {
	return &LinkExtractor{logger: logger}
}

// ExtractLinks returns the raw href values found in the document. Anchors
// with non-navigational schemes are dropped here; everything else is left
// for the normalizer to resolve and judge.
func (e *LinkExtractor) ExtractLinks(html, pageURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML from %s: %w", pageURL, err)
	}

	links := make([]string, 0)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, exists := sel.Attr("href")
		if !exists {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || shouldSkipLink(href) {
			return
		}
		links = append(links, href)
	})

	e.logger.Debug().
		Str("url", pageURL).
		Int("links_found", len(links)).
		Msg("Extracted links from page")

	return links, nil
}

// shouldSkipLink filters anchors that can never be crawlable pages
func shouldSkipLink(href string) bool {
	lower := strings.ToLower(href)
	return strings.HasPrefix(lower, "javascript:") ||
		strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "tel:") ||
		strings.HasPrefix(lower, "sms:") ||
		strings.HasPrefix(lower, "ftp:") ||
		strings.HasPrefix(lower, "data:") ||
		strings.HasPrefix(href, "#")
}
