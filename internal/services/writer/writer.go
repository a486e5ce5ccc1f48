// Package writer persists structured documents to the output tree. Paths
// are a deterministic function of the canonical URL, and writes are
// idempotent: re-running an unchanged crawl produces byte-identical files.
package writer

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
)

var unsafePathChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// Writer maps canonical URLs to files under the output directory. Raw
// markdown goes under the raw subdirectory, transformed documents under
// the root, both mirroring the site's path structure.
type Writer struct {
	outputDir string
	rawSubdir string
	logger    arbor.ILogger

	mu    sync.Mutex
	pages map[string]*writtenPage // canonical URL -> doc, for the combined file
}

type writtenPage struct {
	url string
	doc string
}

// New creates the writer and the output directory tree
func New(outputDir, rawSubdir string, logger arbor.ILogger) (*Writer, error) {
	if outputDir == "" {
		return nil, fmt.Errorf("output directory not configured")
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}
	if rawSubdir != "" {
		if err := os.MkdirAll(filepath.Join(outputDir, rawSubdir), 0755); err != nil {
			return nil, fmt.Errorf("failed to create raw directory: %w", err)
		}
	}

	return &Writer{
		outputDir: outputDir,
		rawSubdir: rawSubdir,
		logger:    logger,
		pages:     make(map[string]*writtenPage),
	}, nil
}

// PathFor maps a canonical URL to its relative output path: path segments
// become directory segments and the root maps to an index file.
func PathFor(canonicalURL string) (string, error) {
	parsed, err := url.Parse(canonicalURL)
	if err != nil {
		return "", fmt.Errorf("unparseable url %q: %w", canonicalURL, err)
	}

	segments := make([]string, 0)
	for _, seg := range strings.Split(strings.Trim(parsed.Path, "/"), "/") {
		if seg == "" {
			continue
		}
		segments = append(segments, unsafePathChars.ReplaceAllString(seg, "_"))
	}

	if len(segments) == 0 {
		return "index.md", nil
	}

	last := len(segments) - 1
	segments[last] = strings.TrimSuffix(segments[last], ".html")
	segments[last] = strings.TrimSuffix(segments[last], ".htm") + ".md"
	return filepath.Join(segments...), nil
}

// WriteRaw persists the untransformed page markdown and returns the path
func (w *Writer) WriteRaw(canonicalURL, markdown string) (string, error) {
	rel, err := PathFor(canonicalURL)
	if err != nil {
		return "", err
	}
	path := filepath.Join(w.outputDir, w.rawSubdir, rel)
	if err := w.writeFile(path, []byte(markdown)); err != nil {
		return "", err
	}
	return path, nil
}

// WriteDoc persists the structured document and returns the path
func (w *Writer) WriteDoc(canonicalURL, doc string) (string, error) {
	rel, err := PathFor(canonicalURL)
	if err != nil {
		return "", err
	}
	path := filepath.Join(w.outputDir, rel)
	if err := w.writeFile(path, []byte(doc)); err != nil {
		return "", err
	}

	w.mu.Lock()
	w.pages[canonicalURL] = &writtenPage{url: canonicalURL, doc: doc}
	w.mu.Unlock()

	return path, nil
}

// writeFile writes content with parent creation, an unchanged-content
// short-circuit, and byte-count verification. The handle is closed on
// every exit path so a failed write never leaves a truncated file counted
// as success.
func (w *Writer) writeFile(path string, content []byte) error {
	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, content) {
		w.logger.Debug().Str("path", path).Msg("Content unchanged, skipping write")
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	n, err := f.Write(content)
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if n != len(content) {
		f.Close()
		return fmt.Errorf("short write to %s: %d of %d bytes", path, n, len(content))
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}

	w.logger.Debug().
		Str("path", path).
		Int("bytes", len(content)).
		Msg("File written")
	return nil
}

// sortedPages returns written pages ordered by URL so combined output is
// deterministic across runs
func (w *Writer) sortedPages() []*writtenPage {
	w.mu.Lock()
	defer w.mu.Unlock()

	pages := make([]*writtenPage, 0, len(w.pages))
	for _, p := range w.pages {
		pages = append(pages, p)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].url < pages[j].url })
	return pages
}
