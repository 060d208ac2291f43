package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicGenerator calls the Anthropic Messages API. It has no constrained
// JSON mode; strictJSON requests are sent as plain prompts.
type AnthropicGenerator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	logger    *slog.Logger
}

// NewAnthropicGenerator creates a generator for the given model. Extra options
// (such as a base URL for tests) are appended after the API key.
func NewAnthropicGenerator(apiKey, model string, maxTokens int, opts ...option.RequestOption) (*AnthropicGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	clientOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)

	return &AnthropicGenerator{
		client:    anthropic.NewClient(clientOpts...),
		model:     model,
		maxTokens: int64(maxTokens),
		logger:    slog.Default().With("component", "llm", "backend", "anthropic", "model", model),
	}, nil
}

func (g *AnthropicGenerator) Backend() string { return "anthropic" }

func (g *AnthropicGenerator) Generate(ctx context.Context, prompt string, strictJSON bool) (string, error) {
	resp, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", &GatewayError{Backend: g.Backend(), Cause: err}
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	g.logger.Debug("anthropic completion",
		"strict_json", strictJSON,
		"prompt_length", len(prompt),
		"response_length", len(text),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
	)
	return text, nil
}
