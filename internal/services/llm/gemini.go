package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/colligo/internal/common"
)

// geminiCompleter formats content through the Google Gemini API
type geminiCompleter struct {
	client      *genai.Client
	model       string
	temperature float32
	logger      arbor.ILogger
}

func newGeminiCompleter(ctx context.Context, config *common.GeminiConfig, logger arbor.ILogger) (*geminiCompleter, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini api key not configured (set gemini.api_key or GEMINI_API_KEY)")
	}

	model := config.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &geminiCompleter{
		client:      client,
		model:       model,
		temperature: config.Temperature,
		logger:      logger,
	}, nil
}

func (g *geminiCompleter) name() string {
	return "gemini"
}

func (g *geminiCompleter) complete(ctx context.Context, system, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.temperature),
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini completion failed: %w", err)
	}

	var text strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					text.WriteString(part.Text)
				}
			}
			if text.Len() > 0 {
				break
			}
		}
	}

	if text.Len() == 0 {
		return "", fmt.Errorf("gemini returned no text content")
	}
	return text.String(), nil
}
