package writer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Reviewer runs a final editorial pass over the assembled combined document
type Reviewer interface {
	ReviewDocument(ctx context.Context, doc string) (string, error)
}

// WriteCombined emits a single document concatenating every transformed
// page, preceded by a table of contents built from the pages' top-level
// headings. Pages are ordered by URL so the output is stable across runs.
// A non-nil reviewer gets a whole-document pass before the write; review
// failure falls back to the unreviewed document rather than losing it.
func (w *Writer) WriteCombined(ctx context.Context, filename string, reviewer Reviewer) (string, error) {
	pages := w.sortedPages()
	if len(pages) == 0 {
		return "", fmt.Errorf("no pages to combine")
	}

	var toc strings.Builder
	var body strings.Builder
	toc.WriteString("# Documentation\n\n## Contents\n\n")

	for i, page := range pages {
		heading := firstHeading(page.doc)
		if heading == "" {
			heading = page.url
		}
		anchor := fmt.Sprintf("page-%d", i+1)

		toc.WriteString(fmt.Sprintf("- [%s](#%s)\n", heading, anchor))

		body.WriteString(fmt.Sprintf("\n---\n\n<a id=\"%s\"></a>\n\n", anchor))
		body.WriteString(page.doc)
		if !strings.HasSuffix(page.doc, "\n") {
			body.WriteString("\n")
		}
		body.WriteString(fmt.Sprintf("\n*Source: %s*\n", page.url))
	}

	content := toc.String() + body.String()

	if reviewer != nil {
		reviewed, err := reviewer.ReviewDocument(ctx, content)
		if err != nil {
			w.logger.Warn().
				Err(err).
				Msg("Combined document review failed, writing unreviewed document")
		} else {
			content = reviewed
		}
	}

	path := filepath.Join(w.outputDir, filename)
	if err := w.writeFile(path, []byte(content)); err != nil {
		return "", err
	}

	w.logger.Info().
		Str("path", path).
		Int("pages", len(pages)).
		Msg("Combined documentation written")
	return path, nil
}

// firstHeading returns the text of the document's first h1 or h2 heading
func firstHeading(markdown string) string {
	source := []byte(markdown)
	root := goldmark.New().Parser().Parse(text.NewReader(source))

	heading := ""
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok && h.Level <= 2 {
			heading = string(h.Text(source))
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(heading)
}
