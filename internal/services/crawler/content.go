package crawler

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
)

var (
	multiNewlineRegex  = regexp.MustCompile(`\n{3,}`)
	trailingSpaceRegex = regexp.MustCompile(`[ \t]+\n`)
)

// boilerplateSelectors are stripped before conversion when no content
// container matches
var boilerplateSelectors = []string{
	"nav", "header", "footer", "aside", "script", "style", "noscript",
	"[class*='sidebar']", "[class*='cookie']", "[class*='banner']",
	"[id*='sidebar']", "[id*='nav']",
}

// ContentExtractor reduces a rendered page to readable markdown
type ContentExtractor struct {
	selectors []string
	logger    arbor.ILogger
}

// NewContentExtractor creates an extractor. selectors are content
// containers tried in priority order ("main", "article", "[role=main]").
func NewContentExtractor(selectors []string, logger arbor.ILogger) *ContentExtractor {
	if len(selectors) == 0 {
		selectors = []string{"main", "article", "[role=main]"}
	}
	return &ContentExtractor{selectors: selectors, logger: logger}
}

// ExtractMarkdown finds the page's main content and converts it to
// markdown. When no configured container matches, the whole body is used
// with boilerplate elements removed.
func (c *ContentExtractor) ExtractMarkdown(html, pageURL string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML from %s: %w", pageURL, err)
	}

	contentHTML := ""
	matchedSelector := ""
	for _, selector := range c.selectors {
		sel := doc.Find(selector).First()
		if sel.Length() > 0 {
			if h, err := goquery.OuterHtml(sel); err == nil && strings.TrimSpace(h) != "" {
				contentHTML = h
				matchedSelector = selector
				break
			}
		}
	}

	if contentHTML == "" {
		// Fallback: strip boilerplate and take the body
		for _, selector := range boilerplateSelectors {
			doc.Find(selector).Remove()
		}
		if h, err := doc.Find("body").Html(); err == nil {
			contentHTML = h
		}
	}

	if strings.TrimSpace(contentHTML) == "" {
		return "", fmt.Errorf("no content found in %s", pageURL)
	}

	domain := ""
	if parsed, err := url.Parse(pageURL); err == nil {
		domain = parsed.Scheme + "://" + parsed.Host
	}

	converter := md.NewConverter(domain, true, nil)
	markdown, err := converter.ConvertString(contentHTML)
	if err != nil {
		return "", fmt.Errorf("markdown conversion failed for %s: %w", pageURL, err)
	}

	markdown = cleanWhitespace(markdown)
	if strings.TrimSpace(markdown) == "" {
		return "", fmt.Errorf("empty markdown for %s", pageURL)
	}

	c.logger.Debug().
		Str("url", pageURL).
		Str("selector", matchedSelector).
		Int("markdown_length", len(markdown)).
		Msg("Content extracted")

	return markdown, nil
}

func cleanWhitespace(s string) string {
	s = trailingSpaceRegex.ReplaceAllString(s, "\n")
	s = multiNewlineRegex.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s) + "\n"
}
