package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings. It is loaded once at startup and
// passed explicitly to everything that needs it.
type Config struct {
	LLM      LLMConfig      `yaml:"llm" mapstructure:"llm"`
	GitHub   GitHubConfig   `yaml:"github" mapstructure:"github"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Storage  StorageConfig  `yaml:"storage" mapstructure:"storage"`
	RunLock  RunLockConfig  `yaml:"runlock" mapstructure:"runlock"`
	Delivery DeliveryConfig `yaml:"delivery" mapstructure:"delivery"`
	Dispatch DispatchConfig `yaml:"dispatch" mapstructure:"dispatch"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// Backend names accepted by llm.backend.
const (
	BackendAnthropic = "anthropic"
	BackendOpenAI    = "openai"
	BackendXAI       = "xai"
	BackendOllama    = "ollama"
	BackendGemini    = "gemini"
)

type LLMConfig struct {
	Backend        string        `yaml:"backend" mapstructure:"backend"`
	AnthropicKey   string        `yaml:"anthropic_key" mapstructure:"anthropic_key"`
	AnthropicModel string        `yaml:"anthropic_model" mapstructure:"anthropic_model"`
	OpenAIKey      string        `yaml:"openai_key" mapstructure:"openai_key"`
	OpenAIModel    string        `yaml:"openai_model" mapstructure:"openai_model"`
	XAIKey         string        `yaml:"xai_key" mapstructure:"xai_key"`
	XAIModel       string        `yaml:"xai_model" mapstructure:"xai_model"`
	XAIBaseURL     string        `yaml:"xai_base_url" mapstructure:"xai_base_url"`
	OllamaURL      string        `yaml:"ollama_url" mapstructure:"ollama_url"`
	OllamaModel    string        `yaml:"ollama_model" mapstructure:"ollama_model"`
	GeminiKey      string        `yaml:"gemini_key" mapstructure:"gemini_key"`
	GeminiModel    string        `yaml:"gemini_model" mapstructure:"gemini_model"`
	MaxTokens      int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type GitHubConfig struct {
	Token        string        `yaml:"token" mapstructure:"token"`
	BaseURL      string        `yaml:"base_url" mapstructure:"base_url"` // GitHub Enterprise API root, empty for github.com
	RateLimit    int           `yaml:"rate_limit" mapstructure:"rate_limit"` // Requests per second
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	BranchPrefix string        `yaml:"branch_prefix" mapstructure:"branch_prefix"`
	Attribution  string        `yaml:"attribution" mapstructure:"attribution"`

	// WebhookSecret verifies X-Hub-Signature-256; empty skips verification.
	WebhookSecret string `yaml:"-" mapstructure:"webhook_secret"`
}

type PipelineConfig struct {
	MaxDiffBytes      int      `yaml:"max_diff_bytes" mapstructure:"max_diff_bytes"`
	MaxDocContext     int      `yaml:"max_doc_context" mapstructure:"max_doc_context"`
	UpdateDiffExcerpt int      `yaml:"update_diff_excerpt" mapstructure:"update_diff_excerpt"`
	CreateDiffExcerpt int      `yaml:"create_diff_excerpt" mapstructure:"create_diff_excerpt"`
	StyleSampleBytes  int      `yaml:"style_sample_bytes" mapstructure:"style_sample_bytes"`
	GapThreshold      float64  `yaml:"gap_threshold" mapstructure:"gap_threshold"`
	DocExtensions     []string `yaml:"doc_extensions" mapstructure:"doc_extensions"`
	SourceExtensions  []string `yaml:"source_extensions" mapstructure:"source_extensions"`
	CorpusReadWorkers int      `yaml:"corpus_read_workers" mapstructure:"corpus_read_workers"`
}

type StorageConfig struct {
	Type        string `yaml:"type" mapstructure:"type"` // "sqlite", "postgres"
	LocalPath   string `yaml:"local_path" mapstructure:"local_path"`
	PostgresDSN string `yaml:"postgres_dsn" mapstructure:"postgres_dsn"`
}

type RunLockConfig struct {
	Type          string        `yaml:"type" mapstructure:"type"` // "local", "redis"
	RedisAddr     string        `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string        `yaml:"redis_password" mapstructure:"redis_password"`
	TTL           time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

type DeliveryConfig struct {
	Path string        `yaml:"path" mapstructure:"path"` // empty disables redelivery tracking
	TTL  time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

type DispatchConfig struct {
	MaxConcurrentRuns int           `yaml:"max_concurrent_runs" mapstructure:"max_concurrent_runs"`
	RunTimeout        time.Duration `yaml:"run_timeout" mapstructure:"run_timeout"`
}

type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	File  string `yaml:"file" mapstructure:"file"`
	JSON  bool   `yaml:"json" mapstructure:"json"`
}

// Default returns default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		LLM: LLMConfig{
			AnthropicModel: "claude-haiku-4-5-20251001",
			OpenAIModel:    "gpt-4o-mini",
			XAIModel:       "grok-3-mini",
			XAIBaseURL:     "https://api.x.ai/v1",
			OllamaURL:      "http://localhost:11434",
			OllamaModel:    "llama3.2:3b",
			GeminiModel:    "gemini-2.0-flash",
			MaxTokens:      4096,
			Timeout:        120 * time.Second,
		},
		GitHub: GitHubConfig{
			RateLimit:    10,
			Timeout:      30 * time.Second,
			BranchPrefix: "tome/",
			Attribution:  "Generated by Tome",
		},
		Pipeline: PipelineConfig{
			MaxDiffBytes:      8000,
			MaxDocContext:     4000,
			UpdateDiffExcerpt: 2000,
			CreateDiffExcerpt: 3000,
			StyleSampleBytes:  800,
			GapThreshold:      0.4,
			DocExtensions:     []string{".md", ".mdx", ".rst", ".txt"},
			SourceExtensions:  []string{".py", ".js", ".ts", ".go", ".rs", ".java", ".rb", ".php"},
			CorpusReadWorkers: 8,
		},
		Storage: StorageConfig{
			Type:      "sqlite",
			LocalPath: filepath.Join(homeDir, ".tome", "tome.db"),
		},
		RunLock: RunLockConfig{
			Type: "local",
			TTL:  15 * time.Minute,
		},
		Delivery: DeliveryConfig{
			Path: filepath.Join(homeDir, ".tome", "deliveries.db"),
			TTL:  7 * 24 * time.Hour,
		},
		Dispatch: DispatchConfig{
			MaxConcurrentRuns: 4,
			RunTimeout:        15 * time.Minute,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from file, .env files and the environment.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	// Unmarshal decodes over the defaults, so keys absent from the file keep them.
	cfg := Default()

	v.SetEnvPrefix("TOME")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".tome")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".tome"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)
	applyKeyringSecrets(cfg)

	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence
func loadEnvFiles() {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err == nil {
			_ = godotenv.Load(file)
		}
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".tome", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		_ = godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies environment variable overrides to config.
// Precedence: env var > keychain > config file.
func applyEnvOverrides(cfg *Config) {
	if backend := os.Getenv("TOME_LLM_BACKEND"); backend != "" {
		cfg.LLM.Backend = strings.ToLower(backend)
	}
	setString(&cfg.LLM.AnthropicKey, "ANTHROPIC_API_KEY")
	setString(&cfg.LLM.AnthropicModel, "TOME_ANTHROPIC_MODEL")
	setString(&cfg.LLM.OpenAIKey, "OPENAI_API_KEY")
	setString(&cfg.LLM.OpenAIModel, "TOME_OPENAI_MODEL")
	setString(&cfg.LLM.XAIKey, "XAI_API_KEY")
	setString(&cfg.LLM.XAIModel, "TOME_XAI_MODEL")
	setString(&cfg.LLM.OllamaURL, "TOME_OLLAMA_URL")
	setString(&cfg.LLM.OllamaModel, "TOME_OLLAMA_MODEL")
	setString(&cfg.LLM.GeminiKey, "GEMINI_API_KEY")
	setString(&cfg.LLM.GeminiModel, "TOME_GEMINI_MODEL")

	setString(&cfg.GitHub.Token, "GITHUB_TOKEN")
	setString(&cfg.GitHub.Token, "TOME_GITHUB_TOKEN")
	setString(&cfg.GitHub.WebhookSecret, "TOME_WEBHOOK_SECRET")
	if rateLimit := os.Getenv("GITHUB_RATE_LIMIT"); rateLimit != "" {
		if rate, err := strconv.Atoi(rateLimit); err == nil {
			cfg.GitHub.RateLimit = rate
		}
	}

	setString(&cfg.Storage.Type, "TOME_STORAGE_TYPE")
	if path := os.Getenv("TOME_DB"); path != "" {
		cfg.Storage.LocalPath = expandPath(path)
	}
	setString(&cfg.Storage.PostgresDSN, "POSTGRES_DSN")

	setString(&cfg.RunLock.Type, "TOME_RUNLOCK_TYPE")
	setString(&cfg.RunLock.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RunLock.RedisPassword, "REDIS_PASSWORD")

	setString(&cfg.Log.Level, "TOME_LOG_LEVEL")

	cfg.Storage.LocalPath = expandPath(cfg.Storage.LocalPath)
	cfg.Delivery.Path = expandPath(cfg.Delivery.Path)
	cfg.Log.File = expandPath(cfg.Log.File)
}

// applyKeyringSecrets overrides file-provided secrets with the ones stored
// in the OS keychain, except where an environment variable already set them.
// TOME_NO_KEYRING disables it.
func applyKeyringSecrets(cfg *Config) {
	if os.Getenv("TOME_NO_KEYRING") != "" {
		return
	}
	km := NewKeyringManager()
	if !km.IsAvailable() {
		return
	}
	if !envSet("GITHUB_TOKEN", "TOME_GITHUB_TOKEN") {
		if token, err := km.GetGitHubToken(); err == nil && token != "" {
			cfg.GitHub.Token = token
		}
	}
	backend := cfg.ResolveBackend()
	if envKey, ok := apiKeyEnv[backend]; ok && !envSet(envKey) {
		if stored, err := km.GetLLMKey(backend); err == nil && stored != "" {
			cfg.LLM.SetAPIKey(backend, stored)
		}
	}
}

var apiKeyEnv = map[string]string{
	BackendAnthropic: "ANTHROPIC_API_KEY",
	BackendOpenAI:    "OPENAI_API_KEY",
	BackendXAI:       "XAI_API_KEY",
	BackendGemini:    "GEMINI_API_KEY",
}

func envSet(keys ...string) bool {
	for _, key := range keys {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}

func setString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

// ResolveBackend returns the configured backend, defaulting to anthropic when
// an Anthropic key is present and to ollama otherwise.
func (c *Config) ResolveBackend() string {
	if c.LLM.Backend != "" {
		return strings.ToLower(c.LLM.Backend)
	}
	if c.LLM.AnthropicKey != "" {
		return BackendAnthropic
	}
	return BackendOllama
}

// APIKey returns the API key configured for a backend.
func (l *LLMConfig) APIKey(backend string) string {
	switch backend {
	case BackendAnthropic:
		return l.AnthropicKey
	case BackendOpenAI:
		return l.OpenAIKey
	case BackendXAI:
		return l.XAIKey
	case BackendGemini:
		return l.GeminiKey
	default:
		return ""
	}
}

// SetAPIKey stores the API key for a backend.
func (l *LLMConfig) SetAPIKey(backend, key string) {
	switch backend {
	case BackendAnthropic:
		l.AnthropicKey = key
	case BackendOpenAI:
		l.OpenAIKey = key
	case BackendXAI:
		l.XAIKey = key
	case BackendGemini:
		l.GeminiKey = key
	}
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Save writes the configuration to a YAML file. Secrets are not written;
// they belong in the environment or the keychain.
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	llm := c.LLM
	llm.AnthropicKey, llm.OpenAIKey, llm.XAIKey, llm.GeminiKey = "", "", "", ""
	gh := c.GitHub
	gh.Token = ""

	v.Set("llm", llm)
	v.Set("github", gh)
	v.Set("pipeline", c.Pipeline)
	v.Set("storage", c.Storage)
	v.Set("runlock", c.RunLock)
	v.Set("delivery", c.Delivery)
	v.Set("dispatch", c.Dispatch)
	v.Set("log", c.Log)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
