package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tomehq/tome/internal/errors"
)

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result
func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Configuration validation failed:\n")
	for _, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err))
	}
	if len(vr.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		for _, warn := range vr.Warnings {
			sb.WriteString(fmt.Sprintf("  - %s\n", warn))
		}
	}
	return sb.String()
}

// Err converts a failed result into a config error, or nil.
func (vr *ValidationResult) Err() error {
	if !vr.HasErrors() {
		return nil
	}
	return errors.ConfigError(strings.TrimSpace(vr.Error()))
}

// Validate checks everything a pipeline run needs before any remote call is made.
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{Valid: true}
	c.validateLLM(result)
	c.validateGitHub(result)
	c.validatePipeline(result)
	c.validateStorage(result)
	c.validateRunLock(result)
	return result
}

func (c *Config) validateLLM(result *ValidationResult) {
	backend := c.ResolveBackend()
	switch backend {
	case BackendAnthropic, BackendOpenAI, BackendXAI, BackendGemini:
		if c.LLM.APIKey(backend) == "" {
			result.AddError("llm backend %q needs an API key (env, keychain via 'tome configure', or config file)", backend)
		}
	case BackendOllama:
		if _, err := url.ParseRequestURI(c.LLM.OllamaURL); err != nil {
			result.AddError("llm.ollama_url is invalid: %v", err)
		}
	default:
		result.AddError("unknown llm backend %q (want anthropic, openai, xai, ollama or gemini)", backend)
	}
	if c.LLM.Timeout <= 0 {
		result.AddError("llm.timeout must be positive")
	}
	if c.LLM.Timeout > 0 && c.LLM.Timeout < c.GitHub.Timeout {
		result.AddWarning("llm.timeout (%s) is shorter than github.timeout (%s)", c.LLM.Timeout, c.GitHub.Timeout)
	}
}

func (c *Config) validateGitHub(result *ValidationResult) {
	if c.GitHub.Token == "" {
		result.AddWarning("no default GitHub token; every project must carry its own")
	}
	if c.GitHub.RateLimit <= 0 {
		result.AddError("github.rate_limit must be positive")
	}
	if c.GitHub.Timeout <= 0 {
		result.AddError("github.timeout must be positive")
	}
	if c.GitHub.BranchPrefix == "" {
		result.AddError("github.branch_prefix must not be empty; merged-PR triggers rely on it to skip Tome's own PRs")
	}
}

func (c *Config) validatePipeline(result *ValidationResult) {
	p := c.Pipeline
	if p.MaxDiffBytes <= 0 {
		result.AddError("pipeline.max_diff_bytes must be positive")
	}
	if p.MaxDocContext <= 0 {
		result.AddError("pipeline.max_doc_context must be positive")
	}
	if p.GapThreshold <= 0 || p.GapThreshold > 1 {
		result.AddError("pipeline.gap_threshold must be in (0, 1], got %v", p.GapThreshold)
	}
	if len(p.DocExtensions) == 0 {
		result.AddError("pipeline.doc_extensions must not be empty")
	}
	if len(p.SourceExtensions) == 0 {
		result.AddError("pipeline.source_extensions must not be empty")
	}
}

func (c *Config) validateStorage(result *ValidationResult) {
	switch c.Storage.Type {
	case "sqlite":
		if c.Storage.LocalPath == "" {
			result.AddError("storage.local_path is required for sqlite")
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			result.AddError("storage.postgres_dsn (POSTGRES_DSN) is required for postgres")
		}
	default:
		result.AddError("unknown storage type %q", c.Storage.Type)
	}
}

func (c *Config) validateRunLock(result *ValidationResult) {
	switch c.RunLock.Type {
	case "", "local":
	case "redis":
		if c.RunLock.RedisAddr == "" {
			result.AddError("runlock.redis_addr (REDIS_ADDR) is required for the redis run lock")
		}
		if c.RunLock.TTL <= 0 {
			result.AddError("runlock.ttl must be positive")
		}
	default:
		result.AddError("unknown runlock type %q", c.RunLock.Type)
	}
}
