package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/services/crawler"
	"github.com/ternarybob/colligo/internal/services/llm"
	"github.com/ternarybob/colligo/internal/services/writer"
	"github.com/ternarybob/colligo/internal/storage"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	baseURL      = flag.String("url", "", "Base URL to crawl (overrides config)")
	outputDir    = flag.String("output", "", "Output directory (overrides config)")
	maxPages     = flag.Int("max-pages", 0, "Page budget (overrides config)")
	concurrency  = flag.Int("concurrency", 0, "Concurrent page workers (overrides config)")
	overallLimit = flag.Duration("timeout", 0, "Overall crawl timeout (overrides config)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Colligo version %s\n", common.GetVersion())
		os.Exit(0)
	}

	// Startup sequence (REQUIRED ORDER):
	// 1. Load config (defaults -> files -> env)
	// 2. Apply CLI overrides (highest priority)
	// 3. Validate
	// 4. Initialize logger, print banner
	if len(configFiles) == 0 {
		if _, err := os.Stat("colligo.toml"); err == nil {
			configFiles = append(configFiles, "colligo.toml")
		}
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	applyFlagOverrides(config)

	if err := config.Validate(); err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Err(err).Msg("Invalid configuration")
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	common.InstallCrashHandler("logs")
	defer func() {
		if r := recover(); r != nil {
			common.WriteCrashFile(r, string(debug.Stack()))
			os.Exit(2)
		}
	}()

	logger.Info().
		Str("base_url", config.Crawl.BaseURL).
		Str("output_dir", config.Output.Dir).
		Int("max_pages", config.Crawl.MaxPages).
		Int("concurrency", config.Crawl.MaxConcurrentPages).
		Str("llm_provider", string(config.LLM.Provider)).
		Msg("Configuration loaded")

	summary, err := run(config, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Crawl failed to start")
		os.Exit(1)
	}

	printSummary(summary)

	if !summary.BaseSucceeded() {
		logger.Error().
			Str("base_url", summary.BaseURL).
			Msg("Base page was not crawled successfully")
		os.Exit(1)
	}
}

func run(config *common.Config, logger arbor.ILogger) (*crawler.CrawlSummary, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if config.Crawl.OverallTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, config.Crawl.OverallTimeout.Std())
		defer cancel()
	}

	// Interrupt transitions the crawl to draining; summary still produced
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info().Msg("Interrupt received, draining crawl")
		cancel()
	}()

	scope, err := crawler.NewScope(config.Crawl.BaseURL, config.Crawl.QueryAllowList, config.Crawl.SkipPathPatterns)
	if err != nil {
		return nil, err
	}

	renderer, err := buildRenderer(ctx, config, logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := renderer.Close(); err != nil {
			logger.Warn().Err(err).Msg("Renderer shutdown failed")
		}
	}()

	transformer, err := llm.NewTransformer(ctx, config, logger)
	if err != nil {
		return nil, err
	}

	docWriter, err := writer.New(config.Output.Dir, config.Output.RawSubdir, logger)
	if err != nil {
		return nil, err
	}

	var manifest crawler.ManifestStore
	if config.Storage.Enabled {
		db, err := storage.NewManifestDB(config.Storage.Path, logger)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		manifest = db
	}

	content := crawler.NewContentExtractor(config.Crawl.ContentSelectors, logger)

	service := crawler.NewService(scope, renderer, content, wrapTransformer(transformer), docWriter, manifest, logger, crawler.Options{
		MaxPages:       config.Crawl.MaxPages,
		Concurrency:    config.Crawl.MaxConcurrentPages,
		PerPageTimeout: config.Crawl.PerPageTimeout.Std(),
		RequestDelay:   config.Crawl.RequestDelay.Std(),
	})

	summary, err := service.Run(ctx)
	if err != nil {
		return nil, err
	}

	if config.Output.CombinedFile != "" && summary.Succeeded > 0 {
		if _, err := docWriter.WriteCombined(ctx, config.Output.CombinedFile, wrapReviewer(transformer)); err != nil {
			logger.Warn().Err(err).Msg("Failed to write combined documentation")
		}
	}

	if err := writeSummaryFile(config.Output.Dir, summary); err != nil {
		logger.Warn().Err(err).Msg("Failed to write summary file")
	}

	return summary, nil
}

// buildRenderer selects the chromedp pool when JavaScript rendering is
// enabled, otherwise a plain HTTP renderer
func buildRenderer(ctx context.Context, config *common.Config, logger arbor.ILogger) (crawler.Renderer, error) {
	if !config.Crawl.EnableJavaScript {
		return crawler.NewHTTPRenderer(config.Crawl.UserAgent, logger), nil
	}

	pool := crawler.NewBrowserPool(config.Crawl.MaxConcurrentPages, config.Crawl.UserAgent, logger)
	if err := pool.Init(ctx); err != nil {
		logger.Warn().Err(err).Msg("Browser pool unavailable, falling back to HTTP fetching")
		return crawler.NewHTTPRenderer(config.Crawl.UserAgent, logger), nil
	}
	return crawler.NewChromeRenderer(pool, config.Crawl.JavaScriptWaitTime.Std(), logger), nil
}

// wrapTransformer converts the concrete transformer to the crawl engine's
// collaborator interface, keeping the nil (raw-only) case explicit
func wrapTransformer(t *llm.Transformer) crawler.Transformer {
	if t == nil {
		return nil
	}
	return t
}

// wrapReviewer exposes the transformer as the writer's combined-document
// reviewer, keeping the nil case explicit
func wrapReviewer(t *llm.Transformer) writer.Reviewer {
	if t == nil {
		return nil
	}
	return t
}

func applyFlagOverrides(config *common.Config) {
	if *baseURL != "" {
		config.Crawl.BaseURL = *baseURL
	}
	if *outputDir != "" {
		config.Output.Dir = *outputDir
	}
	if *maxPages > 0 {
		config.Crawl.MaxPages = *maxPages
	}
	if *concurrency > 0 {
		config.Crawl.MaxConcurrentPages = *concurrency
	}
	if *overallLimit > 0 {
		config.Crawl.OverallTimeout = common.Duration(*overallLimit)
	}
}

func writeSummaryFile(outputDir string, summary *crawler.CrawlSummary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outputDir, "crawl_summary.json"), append(data, '\n'), 0644)
}

func printSummary(summary *crawler.CrawlSummary) {
	fmt.Println()
	fmt.Println("Crawl summary")
	fmt.Printf("  Base URL:             %s\n", summary.BaseURL)
	fmt.Printf("  Succeeded:            %d\n", summary.Succeeded)
	fmt.Printf("  Fetched, unprocessed: %d\n", summary.Unprocessed)
	fmt.Printf("  Failed:               %d\n", summary.Failed)
	fmt.Printf("  Skipped out of scope: %d\n", summary.SkippedOutOfScope)
	fmt.Printf("  Skipped over budget:  %d\n", summary.SkippedOverBudget)
	fmt.Printf("  Duration:             %s\n", summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond))
	if summary.Cancelled {
		fmt.Println("  Crawl was cancelled before completion")
	}
	if len(summary.FailedURLs) > 0 {
		fmt.Println("  Failures:")
		for url, lastErr := range summary.FailedURLs {
			fmt.Printf("    %s: %s\n", url, lastErr)
		}
	}
	fmt.Println()
}
