package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// CompatibleGenerator talks to any server exposing the OpenAI chat completions
// wire format. It backs the xAI and Ollama backends.
type CompatibleGenerator struct {
	client    *openai.Client
	backend   string
	model     string
	maxTokens int
	logger    *slog.Logger
}

// NewCompatibleGenerator creates a generator for an OpenAI-compatible endpoint.
// baseURL must include the API version segment (e.g. https://api.x.ai/v1).
func NewCompatibleGenerator(backend, baseURL, apiKey, model string, maxTokens int) (*CompatibleGenerator, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%s base url is required", backend)
	}
	if model == "" {
		return nil, fmt.Errorf("%s model is required", backend)
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimRight(baseURL, "/")

	return &CompatibleGenerator{
		client:    openai.NewClientWithConfig(cfg),
		backend:   backend,
		model:     model,
		maxTokens: maxTokens,
		logger:    slog.Default().With("component", "llm", "backend", backend, "model", model),
	}, nil
}

// NewOllamaGenerator points a CompatibleGenerator at Ollama's /v1 endpoint.
// Ollama ignores the API key.
func NewOllamaGenerator(ollamaURL, model string, maxTokens int) (*CompatibleGenerator, error) {
	return NewCompatibleGenerator("ollama", strings.TrimRight(ollamaURL, "/")+"/v1", "ollama", model, maxTokens)
}

func (g *CompatibleGenerator) Backend() string { return g.backend }

func (g *CompatibleGenerator) Generate(ctx context.Context, prompt string, strictJSON bool) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: g.maxTokens,
	}
	if strictJSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", &GatewayError{Backend: g.backend, Cause: err}
	}
	if len(resp.Choices) == 0 {
		return "", gatewayError(g.backend, "no choices in response")
	}

	text := resp.Choices[0].Message.Content
	g.logger.Debug("completion",
		"strict_json", strictJSON,
		"prompt_length", len(prompt),
		"response_length", len(text),
		"tokens_used", resp.Usage.TotalTokens,
	)
	return text, nil
}
