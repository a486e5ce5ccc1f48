// Package llm implements the content transformation collaborators: opaque
// network calls that turn raw page markdown into structured documentation.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
)

// completer is one provider's text completion call
type completer interface {
	complete(ctx context.Context, system, prompt string) (string, error)
	name() string
}

// Transformer formats page content through an AI provider. Long pages are
// split into chunks sized for the provider's context, each chunk formatted
// separately, then a review pass smooths the seams.
type Transformer struct {
	provider  completer
	chunkSize int
	logger    arbor.ILogger
}

// NewTransformer builds the configured provider. Returns nil with no error
// when the provider is "none": callers treat a nil transformer as
// raw-markdown-only mode.
func NewTransformer(ctx context.Context, config *common.Config, logger arbor.ILogger) (*Transformer, error) {
	var provider completer
	var err error

	switch config.LLM.Provider {
	case common.LLMProviderNone:
		return nil, nil
	case common.LLMProviderClaude:
		provider, err = newClaudeCompleter(&config.Claude, logger)
	case common.LLMProviderGemini:
		provider, err = newGeminiCompleter(ctx, &config.Gemini, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", config.LLM.Provider)
	}
	if err != nil {
		return nil, err
	}

	chunkSize := config.LLM.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 24000
	}

	logger.Info().
		Str("provider", provider.name()).
		Int("chunk_size", chunkSize).
		Msg("Transformer initialized")

	return &Transformer{
		provider:  provider,
		chunkSize: chunkSize,
		logger:    logger,
	}, nil
}

// Transform formats one page's markdown into structured documentation
func (t *Transformer) Transform(ctx context.Context, markdown, pageURL, title string) (string, error) {
	chunks := splitMarkdown(markdown, t.chunkSize)

	if len(chunks) == 1 {
		return t.provider.complete(ctx, systemPrompt, chunkPrompt(chunks[0], pageURL, title))
	}

	t.logger.Debug().
		Str("url", pageURL).
		Int("chunks", len(chunks)).
		Msg("Formatting page in chunks")

	formatted := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		out, err := t.provider.complete(ctx, systemPrompt, chunkPrompt(chunk, pageURL, title))
		if err != nil {
			return "", fmt.Errorf("chunk %d of %d: %w", i+1, len(chunks), err)
		}
		formatted = append(formatted, out)
	}

	combined := strings.Join(formatted, "\n\n")

	// Review pass: chunked formatting can duplicate headings or break
	// mid-section, the review smooths the seams
	reviewed, err := t.provider.complete(ctx, systemPrompt, reviewPrompt(combined, pageURL))
	if err != nil {
		t.logger.Warn().
			Err(err).
			Str("url", pageURL).
			Msg("Review pass failed, keeping chunked output")
		return combined, nil
	}
	return reviewed, nil
}

// ReviewDocument runs a final editorial pass over the assembled combined
// document. Oversized documents are reviewed chunk by chunk; any chunk
// failure aborts so callers can fall back to the unreviewed document.
func (t *Transformer) ReviewDocument(ctx context.Context, doc string) (string, error) {
	chunks := splitMarkdown(doc, t.chunkSize)

	if len(chunks) == 1 {
		return t.provider.complete(ctx, systemPrompt, combinedReviewPrompt(doc))
	}

	t.logger.Debug().
		Int("chunks", len(chunks)).
		Msg("Reviewing combined document in chunks")

	reviewed := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		out, err := t.provider.complete(ctx, systemPrompt, combinedReviewPrompt(chunk))
		if err != nil {
			return "", fmt.Errorf("review chunk %d of %d: %w", i+1, len(chunks), err)
		}
		reviewed = append(reviewed, out)
	}
	return strings.Join(reviewed, "\n\n"), nil
}
