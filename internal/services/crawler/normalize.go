package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// assetExtensions are file downloads that are never documentation pages
var assetExtensions = []string{
	".pdf", ".zip", ".rar", ".7z", ".tar", ".gz", ".tar.gz",
	".exe", ".dmg", ".pkg", ".deb", ".rpm",
	".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".csv",
	".jpg", ".jpeg", ".png", ".gif", ".svg", ".webp", ".ico",
	".mp4", ".mov", ".avi", ".mp3", ".css", ".js",
}

// Normalize canonicalizes a raw URL, resolving it against the page it was
// found on. The result is a comparable key: two raw URLs that normalize to
// the same string are the same page. Normalization is pure and idempotent.
func Normalize(raw string, base *url.URL, queryAllowList []string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty url: %w", ErrOutOfScope)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("unparseable url %q: %w", raw, ErrOutOfScope)
	}

	if base != nil {
		parsed = base.ResolveReference(parsed)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("scheme %q: %w", parsed.Scheme, ErrOutOfScope)
	}
	parsed.Scheme = scheme
	parsed.Host = strings.ToLower(parsed.Host)

	// Remove default ports
	if scheme == "http" && strings.HasSuffix(parsed.Host, ":80") {
		parsed.Host = strings.TrimSuffix(parsed.Host, ":80")
	}
	if scheme == "https" && strings.HasSuffix(parsed.Host, ":443") {
		parsed.Host = strings.TrimSuffix(parsed.Host, ":443")
	}

	parsed.Fragment = ""

	// Strip query unless a key is explicitly allowed
	if len(queryAllowList) == 0 {
		parsed.RawQuery = ""
	} else {
		kept := url.Values{}
		values := parsed.Query()
		for _, key := range queryAllowList {
			if vs, ok := values[key]; ok {
				kept[key] = vs
			}
		}
		parsed.RawQuery = kept.Encode()
	}

	// Collapse duplicate slashes
	path := parsed.Path
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}

	// Strip a single trailing slash, root path is kept
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	if path == "" {
		path = "/"
	}
	parsed.Path = path
	parsed.RawPath = ""

	return parsed.String(), nil
}

// Scope is the host+path-prefix boundary within which links are followed
type Scope struct {
	baseURL        *url.URL
	host           string
	pathPrefix     string
	queryAllowList []string
	skipPatterns   []string
}

// NewScope builds the crawl scope from the configured base URL. An
// unparseable or non-HTTP base URL is a startup-time failure.
func NewScope(baseURL string, queryAllowList, skipPatterns []string) (*Scope, error) {
	canonical, err := Normalize(baseURL, nil, queryAllowList)
	if err != nil {
		return nil, newCrawlError(KindConfig, baseURL, fmt.Errorf("invalid base url: %w", err))
	}

	parsed, err := url.Parse(canonical)
	if err != nil {
		return nil, newCrawlError(KindConfig, baseURL, err)
	}

	prefix := parsed.Path
	if prefix == "/" {
		prefix = ""
	}

	return &Scope{
		baseURL:        parsed,
		host:           parsed.Host,
		pathPrefix:     prefix,
		queryAllowList: queryAllowList,
		skipPatterns:   skipPatterns,
	}, nil
}

// Base returns the canonical base URL
func (s *Scope) Base() string {
	return s.baseURL.String()
}

// BaseURL returns the parsed canonical base URL
func (s *Scope) BaseURL() *url.URL {
	return s.baseURL
}

// Canonicalize normalizes a raw URL found on parent and checks it against
// the scope. Out-of-scope URLs return ErrOutOfScope wrapped, never a fatal
// error: callers treat them as "skip".
func (s *Scope) Canonicalize(raw string, parent *url.URL) (string, error) {
	canonical, err := Normalize(raw, parent, s.queryAllowList)
	if err != nil {
		return "", err
	}

	parsed, err := url.Parse(canonical)
	if err != nil {
		return "", fmt.Errorf("unparseable url %q: %w", raw, ErrOutOfScope)
	}

	if parsed.Host != s.host {
		return "", fmt.Errorf("host %q outside %q: %w", parsed.Host, s.host, ErrOutOfScope)
	}
	if s.pathPrefix != "" && parsed.Path != s.pathPrefix && !strings.HasPrefix(parsed.Path, s.pathPrefix+"/") {
		return "", fmt.Errorf("path %q outside prefix %q: %w", parsed.Path, s.pathPrefix, ErrOutOfScope)
	}

	lowerPath := strings.ToLower(parsed.Path)
	for _, ext := range assetExtensions {
		if strings.HasSuffix(lowerPath, ext) {
			return "", fmt.Errorf("asset %q: %w", parsed.Path, ErrOutOfScope)
		}
	}
	for _, pattern := range s.skipPatterns {
		if pattern != "" && strings.Contains(lowerPath, strings.ToLower(pattern)) {
			return "", fmt.Errorf("skip pattern %q: %w", pattern, ErrOutOfScope)
		}
	}

	return canonical, nil
}
