// Package config loads and validates service configuration.
//
// Configuration is resolved in three layers, later layers overriding earlier
// ones: built-in defaults, an optional config.yaml, and EASSISTANT_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Configuration errors.
var (
	ErrMissingAPIKey   = errors.New("api key is required for the openai provider")
	ErrInvalidProvider = errors.New("provider must be one of: openai, ollama")
	ErrInvalidMode     = errors.New("pipeline mode must be one of: auto, agentic, fixed")
	ErrInvalidTemp     = errors.New("temperature must be between 0 and 2")
	ErrInvalidKResults = errors.New("k_results must be positive")
	ErrInvalidHistory  = errors.New("history_window must be non-negative")
	ErrInvalidPort     = errors.New("port must be between 1 and 65535")
	ErrMissingDatabase = errors.New("database url is required")
)

// Provider identifies a model provider backend.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderOllama Provider = "ollama"
)

// Config holds all service configuration.
type Config struct {
	// Provider selects the model backend: "openai" or "ollama".
	Provider Provider

	// APIKey authenticates against the OpenAI-compatible API.
	// Required when Provider is "openai".
	APIKey string

	// GenerationModel is the chat model used to produce answers.
	GenerationModel string

	// EmbeddingModel produces document and query embeddings for retrieval.
	EmbeddingModel string

	// RerankModel is the relevance-tuned embedding model used by the
	// secondary reranking stage.
	RerankModel string

	// PipelineMode selects the orchestration strategy: "auto" probes the
	// generation model for tool support at startup, "agentic" and "fixed"
	// force the respective pipeline.
	PipelineMode string

	// Temperature is the default sampling temperature; a request may
	// override it.
	Temperature float64

	// KResults is the number of documents returned after reranking.
	KResults int

	// HistoryWindow is the number of prior turns included in the prompt.
	HistoryWindow int

	// DatabaseURL is the PostgreSQL connection string.
	DatabaseURL string

	// OllamaServerAddress is the base URL of the Ollama server. GPU layer
	// placement is the server's concern and is configured there.
	OllamaServerAddress string

	// Server settings.
	Host string
	Port int

	// Timeouts for provider calls.
	EmbedTimeout    time.Duration
	SearchTimeout   time.Duration
	GenerateTimeout time.Duration

	// Rate limiting for the HTTP API, per client IP.
	RateLimitRPS   float64
	RateLimitBurst int

	// Logging.
	LogLevel string
	LogJSON  bool
}

// Load reads configuration from defaults, an optional config file, and
// environment variables, then validates the result.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.eassistant")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("EASSISTANT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVariables(v)

	cfg := &Config{
		Provider:            Provider(v.GetString("provider")),
		APIKey:              v.GetString("api_key"),
		GenerationModel:     v.GetString("generation_model"),
		EmbeddingModel:      v.GetString("embedding_model"),
		RerankModel:         v.GetString("rerank_model"),
		PipelineMode:        v.GetString("pipeline_mode"),
		Temperature:         v.GetFloat64("temperature"),
		KResults:            v.GetInt("k_results"),
		HistoryWindow:       v.GetInt("history_window"),
		DatabaseURL:         v.GetString("database.url"),
		OllamaServerAddress: v.GetString("ollama.server_address"),
		Host:                v.GetString("server.host"),
		Port:                v.GetInt("server.port"),
		EmbedTimeout:        v.GetDuration("timeouts.embed"),
		SearchTimeout:       v.GetDuration("timeouts.search"),
		GenerateTimeout:     v.GetDuration("timeouts.generate"),
		RateLimitRPS:        v.GetFloat64("rate_limit.rps"),
		RateLimitBurst:      v.GetInt("rate_limit.burst"),
		LogLevel:            v.GetString("log.level"),
		LogJSON:             v.GetBool("log.json"),
	}

	applyProviderDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", "openai")
	v.SetDefault("pipeline_mode", "auto")
	v.SetDefault("temperature", 0.1)
	v.SetDefault("k_results", 4)
	v.SetDefault("history_window", 5)
	v.SetDefault("ollama.server_address", "http://localhost:11434")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("timeouts.embed", 15*time.Second)
	v.SetDefault("timeouts.search", 10*time.Second)
	v.SetDefault("timeouts.generate", 120*time.Second)
	v.SetDefault("rate_limit.rps", 5.0)
	v.SetDefault("rate_limit.burst", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
}

func bindEnvVariables(v *viper.Viper) {
	mustBind(v, "api_key", "EASSISTANT_API_KEY", "OPENAI_API_KEY")
	mustBind(v, "database.url", "EASSISTANT_DATABASE_URL", "DATABASE_URL")
	mustBind(v, "ollama.server_address", "EASSISTANT_OLLAMA_SERVER_ADDRESS", "OLLAMA_HOST")
}

// mustBind panics on BindEnv failure, which only happens when no key is
// supplied and signals a programming error rather than a runtime condition.
func mustBind(v *viper.Viper, input ...string) {
	if err := v.BindEnv(input...); err != nil {
		panic(fmt.Sprintf("config: binding env for %q: %v", input[0], err))
	}
}

// applyProviderDefaults fills model names that depend on the provider when
// the operator has not set them explicitly.
func applyProviderDefaults(cfg *Config) {
	switch cfg.Provider {
	case ProviderOllama:
		if cfg.GenerationModel == "" {
			cfg.GenerationModel = "llama3.2"
		}
		if cfg.EmbeddingModel == "" {
			cfg.EmbeddingModel = "nomic-embed-text"
		}
		if cfg.RerankModel == "" {
			cfg.RerankModel = cfg.EmbeddingModel
		}
	default:
		if cfg.GenerationModel == "" {
			cfg.GenerationModel = "gpt-4o-mini"
		}
		if cfg.EmbeddingModel == "" {
			cfg.EmbeddingModel = "text-embedding-3-small"
		}
		if cfg.RerankModel == "" {
			cfg.RerankModel = "text-embedding-3-large"
		}
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI:
		if c.APIKey == "" {
			return ErrMissingAPIKey
		}
	case ProviderOllama:
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidProvider, c.Provider)
	}

	switch c.PipelineMode {
	case "auto", "agentic", "fixed":
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidMode, c.PipelineMode)
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: got %v", ErrInvalidTemp, c.Temperature)
	}
	if c.KResults <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidKResults, c.KResults)
	}
	if c.HistoryWindow < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidHistory, c.HistoryWindow)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: got %d", ErrInvalidPort, c.Port)
	}
	if c.DatabaseURL == "" {
		return ErrMissingDatabase
	}

	return nil
}

// FullModelName returns the provider-qualified model name used to look the
// generation model up in the Genkit registry.
func (c *Config) FullModelName() string {
	return fmt.Sprintf("%s/%s", c.Provider, c.GenerationModel)
}

// String returns a loggable representation with the API key masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Provider:%s Model:%s Embed:%s Rerank:%s Mode:%s K:%d History:%d APIKey:%s}",
		c.Provider, c.GenerationModel, c.EmbeddingModel, c.RerankModel,
		c.PipelineMode, c.KResults, c.HistoryWindow, maskSecret(c.APIKey),
	)
}

func maskSecret(s string) string {
	if s == "" {
		return "<unset>"
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****"
}
