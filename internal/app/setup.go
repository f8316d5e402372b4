package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ioc-assistant/eassistant/db"
	"github.com/ioc-assistant/eassistant/internal/assistant"
	"github.com/ioc-assistant/eassistant/internal/config"
	"github.com/ioc-assistant/eassistant/internal/conversation"
	"github.com/ioc-assistant/eassistant/internal/knowledge"
	"github.com/ioc-assistant/eassistant/internal/log"
	"github.com/ioc-assistant/eassistant/internal/rag"
	"github.com/ioc-assistant/eassistant/internal/tokens"
)

// Setup creates and initializes the application. On failure, everything
// already initialized is released before returning.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			a.Close()
		}
	}()

	pool, err := providePool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	a.Embedder = provideEmbedder(g, cfg, cfg.EmbeddingModel)
	if a.Embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbeddingModel, cfg.Provider)
	}
	a.RerankEmbedder = provideEmbedder(g, cfg, cfg.RerankModel)
	if a.RerankEmbedder == nil {
		return nil, fmt.Errorf("rerank embedder %q not found for provider %q", cfg.RerankModel, cfg.Provider)
	}

	a.Knowledge = knowledge.NewStore(pool, a.Embedder, cfg.EmbedTimeout, cfg.SearchTimeout, logger)
	a.Conversations = conversation.NewStore(pool, logger)

	counter := provideCounter(cfg, logger)

	agent, err := assistant.New(assistant.Config{
		Genkit:          g,
		Conversations:   a.Conversations,
		Knowledge:       a.Knowledge,
		Retriever:       rag.NewRetriever(a.Knowledge, logger),
		Reranker:        rag.NewReranker(a.RerankEmbedder, logger),
		Counter:         counter,
		Logger:          logger,
		ModelName:       cfg.FullModelName(),
		Mode:            cfg.PipelineMode,
		KResults:        cfg.KResults,
		HistoryWindow:   cfg.HistoryWindow,
		Temperature:     cfg.Temperature,
		GenerateTimeout: cfg.GenerateTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("creating agent: %w", err)
	}
	a.Agent = agent

	return a, nil
}

// providePool runs migrations and opens the connection pool.
func providePool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// provideGenkit initializes Genkit with the configured model provider.
// Ollama requires explicit model and embedder registration; the OpenAI
// plugin discovers its models on Init.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		plugin := &ollama.Ollama{ServerAddress: cfg.OllamaServerAddress}
		g := genkit.Init(ctx, genkit.WithPlugins(plugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		plugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.GenerationModel,
			Type: "chat",
		}, nil)
		plugin.DefineEmbedder(g, cfg.OllamaServerAddress, cfg.EmbeddingModel, nil)
		logger.Info("initialized genkit with ollama provider",
			"model", cfg.GenerationModel,
			"server", cfg.OllamaServerAddress,
		)
		return g, nil

	case config.ProviderOpenAI:
		g := genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{APIKey: cfg.APIKey}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized genkit with openai provider", "model", cfg.GenerationModel)
		return g, nil

	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}

// provideEmbedder resolves a named embedder for the configured provider.
// The Ollama plugin keys its embedder by server address, so both the
// retrieval and rerank stages share it there; with OpenAI each model name
// resolves to its own embedder.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config, model string) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaServerAddress)
	default:
		return genkit.LookupEmbedder(g, api.NewName("openai", model))
	}
}

// provideCounter picks the token counter. Tiktoken covers the OpenAI model
// family; local models get the word heuristic since their tokenizer is not
// available in-process.
func provideCounter(cfg *config.Config, logger log.Logger) tokens.Counter {
	if cfg.Provider == config.ProviderOllama {
		return tokens.WordCounter{}
	}
	counter, err := tokens.NewTiktokenCounter(cfg.GenerationModel)
	if err != nil {
		logger.Warn("tiktoken unavailable, using word-based token estimates",
			"model", cfg.GenerationModel, "error", err)
		return tokens.WordCounter{}
	}
	return counter
}
