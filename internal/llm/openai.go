package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// OpenAIGenerator calls the OpenAI Chat Completions API through the official
// SDK. strictJSON maps to the json_object response format.
type OpenAIGenerator struct {
	client    openai.Client
	model     openai.ChatModel
	maxTokens int64
	logger    *slog.Logger
}

// NewOpenAIGenerator creates a generator for the given model.
func NewOpenAIGenerator(apiKey, model string, maxTokens int, opts ...option.RequestOption) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	clientOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)

	return &OpenAIGenerator{
		client:    openai.NewClient(clientOpts...),
		model:     openai.ChatModel(model),
		maxTokens: int64(maxTokens),
		logger:    slog.Default().With("component", "llm", "backend", "openai", "model", model),
	}, nil
}

func (g *OpenAIGenerator) Backend() string { return "openai" }

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string, strictJSON bool) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model:               g.model,
		MaxCompletionTokens: openai.Int(g.maxTokens),
	}
	if strictJSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	completion, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", &GatewayError{Backend: g.Backend(), Cause: err}
	}
	if len(completion.Choices) == 0 {
		return "", gatewayError(g.Backend(), "no choices in response")
	}

	text := completion.Choices[0].Message.Content
	g.logger.Debug("openai completion",
		"strict_json", strictJSON,
		"prompt_length", len(prompt),
		"response_length", len(text),
		"tokens_used", completion.Usage.TotalTokens,
	)
	return text, nil
}
