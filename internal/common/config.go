package common

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration that decodes from TOML strings ("30s",
// "250ms") or integer nanoseconds
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the application configuration
type Config struct {
	Crawl   CrawlConfig   `toml:"crawl"`
	Output  OutputConfig  `toml:"output"`
	LLM     LLMConfig     `toml:"llm"`
	Claude  ClaudeConfig  `toml:"claude"`
	Gemini  GeminiConfig  `toml:"gemini"`
	Storage StorageConfig `toml:"storage"`
	Logging LoggingConfig `toml:"logging"`
}

// CrawlConfig contains the crawl engine configuration
type CrawlConfig struct {
	BaseURL            string   `toml:"base_url" validate:"required"`
	MaxPages           int      `toml:"max_pages" validate:"gt=0"`
	MaxConcurrentPages int      `toml:"max_concurrent_pages" validate:"gt=0"`
	PerPageTimeout     Duration `toml:"per_page_timeout" validate:"gt=0"`
	OverallTimeout     Duration `toml:"overall_timeout" validate:"gte=0"` // 0 = no deadline
	RequestDelay       Duration `toml:"request_delay"`                    // minimum delay between requests to the same host
	UserAgent          string   `toml:"user_agent"`
	QueryAllowList     []string `toml:"query_allow_list"` // query keys that survive normalization
	SkipPathPatterns   []string `toml:"skip_path_patterns"`
	ContentSelectors   []string `toml:"content_selectors"` // tried in priority order
	EnableJavaScript   bool     `toml:"enable_javascript"`
	JavaScriptWaitTime Duration `toml:"javascript_wait_time"`
}

// OutputConfig contains the output directory layout configuration
type OutputConfig struct {
	Dir          string `toml:"dir" validate:"required"`
	RawSubdir    string `toml:"raw_subdir"`
	CombinedFile string `toml:"combined_file"` // combined document with TOC, empty disables it
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderNone disables content transformation, raw markdown only
	LLMProviderNone LLMProvider = "none"
)

// LLMConfig selects the transformation provider
type LLMConfig struct {
	Provider  LLMProvider `toml:"provider"`
	ChunkSize int         `toml:"chunk_size"` // characters per formatting chunk
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float32 `toml:"temperature"`
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Temperature float32 `toml:"temperature"`
}

// StorageConfig contains the crawl manifest store configuration
type StorageConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"` // Badger database directory
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig creates a configuration with default values.
// Only user-facing settings are exposed in colligo.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Crawl: CrawlConfig{
			MaxPages:           1000,
			MaxConcurrentPages: 4,
			PerPageTimeout:     Duration(30 * time.Second),
			OverallTimeout:     0,
			RequestDelay:       Duration(250 * time.Millisecond),
			UserAgent:          "colligo/" + Version,
			SkipPathPatterns:   []string{"/login", "/logout", "/signup", "/blog"},
			ContentSelectors:   []string{"main", "article", "[role=main]"},
			EnableJavaScript:   true,
			JavaScriptWaitTime: Duration(2 * time.Second),
		},
		Output: OutputConfig{
			Dir:          "output_docs",
			RawSubdir:    "raw",
			CombinedFile: "api_documentation.md",
		},
		LLM: LLMConfig{
			Provider:  LLMProviderClaude,
			ChunkSize: 24000,
		},
		Claude: ClaudeConfig{
			Model:       "claude-sonnet-4-20250514",
			MaxTokens:   8192,
			Temperature: 0.2,
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.5-flash",
			Temperature: 0.2,
		},
		Storage: StorageConfig{
			Enabled: false,
			Path:    "./data/manifest",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if baseURL := os.Getenv("COLLIGO_BASE_URL"); baseURL != "" {
		config.Crawl.BaseURL = baseURL
	}
	if maxPages := os.Getenv("COLLIGO_MAX_PAGES"); maxPages != "" {
		if n, err := strconv.Atoi(maxPages); err == nil {
			config.Crawl.MaxPages = n
		}
	}
	if concurrency := os.Getenv("COLLIGO_MAX_CONCURRENT_PAGES"); concurrency != "" {
		if n, err := strconv.Atoi(concurrency); err == nil {
			config.Crawl.MaxConcurrentPages = n
		}
	}
	if timeout := os.Getenv("COLLIGO_PER_PAGE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Crawl.PerPageTimeout = Duration(d)
		}
	}
	if timeout := os.Getenv("COLLIGO_OVERALL_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Crawl.OverallTimeout = Duration(d)
		}
	}
	if delay := os.Getenv("COLLIGO_REQUEST_DELAY"); delay != "" {
		if d, err := time.ParseDuration(delay); err == nil {
			config.Crawl.RequestDelay = Duration(d)
		}
	}
	if userAgent := os.Getenv("COLLIGO_USER_AGENT"); userAgent != "" {
		config.Crawl.UserAgent = userAgent
	}
	if enableJS := os.Getenv("COLLIGO_ENABLE_JAVASCRIPT"); enableJS != "" {
		if b, err := strconv.ParseBool(enableJS); err == nil {
			config.Crawl.EnableJavaScript = b
		}
	}

	if dir := os.Getenv("COLLIGO_OUTPUT_DIR"); dir != "" {
		config.Output.Dir = dir
	}

	if provider := os.Getenv("COLLIGO_LLM_PROVIDER"); provider != "" {
		config.LLM.Provider = LLMProvider(strings.ToLower(provider))
	}
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" && config.Claude.APIKey == "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" && config.Gemini.APIKey == "" {
		config.Gemini.APIKey = apiKey
	}

	if enabled := os.Getenv("COLLIGO_STORAGE_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			config.Storage.Enabled = b
		}
	}
	if path := os.Getenv("COLLIGO_STORAGE_PATH"); path != "" {
		config.Storage.Path = path
	}

	if level := os.Getenv("COLLIGO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("COLLIGO_LOG_OUTPUT"); output != "" {
		outputs := strings.Split(output, ",")
		for i := range outputs {
			outputs[i] = strings.TrimSpace(outputs[i])
		}
		config.Logging.Output = outputs
	}
}

// Validate checks the configuration for startup-time errors. A failure here
// is fatal to the whole run, never a per-page error.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	parsed, err := url.Parse(c.Crawl.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url %q: %w", c.Crawl.BaseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid base_url %q: scheme must be http or https", c.Crawl.BaseURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid base_url %q: missing host", c.Crawl.BaseURL)
	}

	switch c.LLM.Provider {
	case LLMProviderClaude, LLMProviderGemini, LLMProviderNone:
	default:
		return fmt.Errorf("invalid llm provider %q: must be claude, gemini or none", c.LLM.Provider)
	}

	return nil
}
