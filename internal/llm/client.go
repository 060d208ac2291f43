package llm

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tomehq/tome/internal/config"
)

// NewGenerator builds the single backend selected by configuration. It is
// called once at startup and the result is injected into the pipeline.
func NewGenerator(ctx context.Context, cfg *config.Config) (TextGenerator, error) {
	logger := slog.Default().With("component", "llm")
	llmCfg := cfg.LLM
	backend := cfg.ResolveBackend()

	var (
		gen TextGenerator
		err error
	)
	switch backend {
	case config.BackendAnthropic:
		gen, err = NewAnthropicGenerator(llmCfg.AnthropicKey, llmCfg.AnthropicModel, llmCfg.MaxTokens)
	case config.BackendOpenAI:
		gen, err = NewOpenAIGenerator(llmCfg.OpenAIKey, llmCfg.OpenAIModel, llmCfg.MaxTokens)
	case config.BackendXAI:
		if llmCfg.XAIKey == "" {
			return nil, fmt.Errorf("xai api key is required")
		}
		gen, err = NewCompatibleGenerator(config.BackendXAI, llmCfg.XAIBaseURL, llmCfg.XAIKey, llmCfg.XAIModel, llmCfg.MaxTokens)
	case config.BackendOllama:
		gen, err = NewOllamaGenerator(llmCfg.OllamaURL, llmCfg.OllamaModel, llmCfg.MaxTokens)
	case config.BackendGemini:
		gen, err = NewGeminiGenerator(ctx, llmCfg.GeminiKey, llmCfg.GeminiModel, llmCfg.MaxTokens)
	default:
		return nil, fmt.Errorf("unknown llm backend %q", backend)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("text generator initialized", "backend", backend, "timeout", llmCfg.Timeout)
	return WithTimeout(gen, llmCfg.Timeout), nil
}

// WithTimeout bounds every Generate call. A zero timeout returns gen unchanged.
func WithTimeout(gen TextGenerator, timeout time.Duration) TextGenerator {
	if timeout <= 0 {
		return gen
	}
	return &timeoutGenerator{inner: gen, timeout: timeout}
}

type timeoutGenerator struct {
	inner   TextGenerator
	timeout time.Duration
}

func (g *timeoutGenerator) Backend() string { return g.inner.Backend() }

func (g *timeoutGenerator) Generate(ctx context.Context, prompt string, strictJSON bool) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.inner.Generate(callCtx, prompt, strictJSON)
	if err == nil {
		return text, nil
	}
	var gwErr *GatewayError
	if !stderrors.As(err, &gwErr) {
		err = &GatewayError{Backend: g.inner.Backend(), Cause: err}
	}
	if stderrors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return "", gatewayError(g.inner.Backend(), "timed out after %s: %w", g.timeout, err)
	}
	return "", err
}
