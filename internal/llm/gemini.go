package llm

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"
)

// GeminiGenerator wraps Google's Generative AI SDK. strictJSON uses Gemini's
// native JSON mode via the response MIME type.
type GeminiGenerator struct {
	client    *genai.Client
	model     string
	maxTokens int32
	logger    *slog.Logger
}

// NewGeminiGenerator creates a new Gemini API client
func NewGeminiGenerator(ctx context.Context, apiKey, model string, maxTokens int) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiGenerator{
		client:    client,
		model:     model,
		maxTokens: int32(maxTokens),
		logger:    slog.Default().With("component", "llm", "backend", "gemini", "model", model),
	}, nil
}

func (g *GeminiGenerator) Backend() string { return "gemini" }

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string, strictJSON bool) (string, error) {
	genConfig := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.2),
		MaxOutputTokens: g.maxTokens,
	}
	if strictJSON {
		genConfig.ResponseMIMEType = "application/json"
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), genConfig)
	if err != nil {
		return "", &GatewayError{Backend: g.Backend(), Cause: err}
	}
	if len(resp.Candidates) == 0 {
		return "", gatewayError(g.Backend(), "no candidates in response")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", gatewayError(g.Backend(), "no content parts in response")
	}

	var text string
	for _, part := range candidate.Content.Parts {
		text += part.Text
	}

	g.logger.Debug("gemini completion",
		"strict_json", strictJSON,
		"prompt_length", len(prompt),
		"response_length", len(text),
	)
	return text, nil
}
