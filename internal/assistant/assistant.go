// Package assistant orchestrates conversation-aware question answering:
// history loading, prompt assembly, retrieval-grounded generation and turn
// persistence.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/ioc-assistant/eassistant/internal/conversation"
	"github.com/ioc-assistant/eassistant/internal/knowledge"
	"github.com/ioc-assistant/eassistant/internal/log"
	"github.com/ioc-assistant/eassistant/internal/rag"
	"github.com/ioc-assistant/eassistant/internal/tokens"
)

// DefaultUserID attributes turns when the caller supplies no user.
const DefaultUserID = "default"

// fallbackAnswer is returned when the model produces an empty response.
const fallbackAnswer = "I could not generate an answer. Please try rephrasing your question."

// ErrGeneration wraps failures of the generative model call. The caller
// must not expose the wrapped provider text to end users.
var ErrGeneration = errors.New("answer generation failed")

// ConversationStore is the turn persistence capability the agent consumes.
type ConversationStore interface {
	Append(ctx context.Context, userID, question, answer string) error
	History(ctx context.Context, userID string, limit int) ([]conversation.Turn, error)
}

// Request is one question to answer.
type Request struct {
	UserID   string
	Question string

	// PriorTurns is the caller-supplied exchange history, used for token
	// accounting. The prompt history is loaded from storage instead.
	PriorTurns []tokens.Pair

	// Temperature overrides the configured sampling temperature when set.
	Temperature *float64
}

// Response is the outcome of a query.
type Response struct {
	Answer         string
	Usage          tokens.Usage
	ProcessingTime time.Duration
	ModelVersion   string

	// StorageDegraded is set when the answer was produced but the turn
	// could not be persisted.
	StorageDegraded bool
}

// Config carries the agent's dependencies and settings.
type Config struct {
	Genkit        *genkit.Genkit
	Conversations ConversationStore
	Knowledge     rag.Searcher
	Retriever     *rag.Retriever
	Reranker      *rag.Reranker
	Counter       tokens.Counter
	Logger        log.Logger

	// ModelName is the provider-qualified generation model name.
	ModelName string

	// Mode is "auto", "agentic" or "fixed". Auto probes the registry once
	// at construction.
	Mode string

	KResults      int
	HistoryWindow int
	Temperature   float64
	MaxTurns      int

	// GenerateTimeout bounds one generation call including tool turns.
	// Zero disables the bound.
	GenerateTimeout time.Duration

	// RetryConfig tunes retries of the generation call. Zero value uses
	// defaults.
	RetryConfig RetryConfig

	// RateLimiter proactively limits model calls. Nil installs a default.
	RateLimiter *rate.Limiter
}

func (cfg Config) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.Conversations == nil {
		return errors.New("conversation store is required")
	}
	if cfg.Knowledge == nil {
		return errors.New("knowledge search is required")
	}
	if cfg.Retriever == nil {
		return errors.New("retriever is required")
	}
	if cfg.Reranker == nil {
		return errors.New("reranker is required")
	}
	if cfg.Counter == nil {
		return errors.New("token counter is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.ModelName == "" {
		return errors.New("model name is required")
	}
	return nil
}

// Agent answers questions over the document corpus. All configuration is
// captured immutably at construction; Agent is safe for concurrent use.
type Agent struct {
	g             *genkit.Genkit
	conversations ConversationStore
	knowledge     rag.Searcher
	retriever     *rag.Retriever
	reranker      *rag.Reranker
	counter       tokens.Counter
	logger        log.Logger

	modelName       string
	mode            PipelineMode
	kResults        int
	historyWindow   int
	temperature     float64
	maxTurns        int
	generateTimeout time.Duration

	retryConfig RetryConfig
	rateLimiter *rate.Limiter

	toolRefs []ai.ToolRef
}

// New creates the agent, resolves the pipeline mode and, in agentic mode,
// registers the retrieval and history tools.
func New(cfg Config) (*Agent, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	kResults := cfg.KResults
	if kResults <= 0 {
		kResults = 4
	}
	historyWindow := cfg.HistoryWindow
	if historyWindow < 0 {
		historyWindow = 0
	}
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 5
	}
	retryConfig := cfg.RetryConfig
	if retryConfig.MaxRetries == 0 {
		retryConfig = DefaultRetryConfig()
	}
	limiter := cfg.RateLimiter
	if limiter == nil {
		limiter = rate.NewLimiter(10, 30)
	}

	a := &Agent{
		g:               cfg.Genkit,
		conversations:   cfg.Conversations,
		knowledge:       cfg.Knowledge,
		retriever:       cfg.Retriever,
		reranker:        cfg.Reranker,
		counter:         cfg.Counter,
		logger:          cfg.Logger.With("component", "assistant"),
		modelName:       cfg.ModelName,
		kResults:        kResults,
		historyWindow:   historyWindow,
		temperature:     cfg.Temperature,
		maxTurns:        maxTurns,
		generateTimeout: cfg.GenerateTimeout,
		retryConfig:     retryConfig,
		rateLimiter:     limiter,
	}

	a.mode = resolveMode(cfg.Genkit, cfg.ModelName, cfg.Mode)
	if a.mode == ModeAgentic {
		tools := a.registerTools()
		a.toolRefs = make([]ai.ToolRef, len(tools))
		for i, t := range tools {
			a.toolRefs[i] = t
		}
	}

	a.logger.Info("assistant initialized",
		"model", a.modelName,
		"mode", a.mode.String(),
		"k_results", a.kResults,
		"history_window", a.historyWindow,
	)
	return a, nil
}

// Mode returns the pipeline mode resolved at construction.
func (a *Agent) Mode() PipelineMode {
	return a.mode
}

// ModelName returns the provider-qualified generation model name.
func (a *Agent) ModelName() string {
	return a.modelName
}

// Query answers the request's question, grounded in retrieved documents and
// the user's stored history, then persists the new turn. A persistence
// failure does not fail the request; it sets StorageDegraded instead.
func (a *Agent) Query(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	userID := req.UserID
	if userID == "" {
		userID = DefaultUserID
	}

	messages, err := a.buildMessages(ctx, userID, req.Question)
	if err != nil {
		return nil, err
	}

	temperature := a.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	opts := []ai.GenerateOption{
		ai.WithModelName(a.modelName),
		ai.WithSystem(systemPrompt(userID)),
		ai.WithMessages(messages...),
		ai.WithConfig(&ai.GenerationCommonConfig{Temperature: temperature}),
	}
	if a.mode == ModeAgentic {
		opts = append(opts,
			ai.WithTools(a.toolRefs...),
			ai.WithMaxTurns(a.maxTurns),
		)
	}

	genCtx := ctx
	if a.generateTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, a.generateTimeout)
		defer cancel()
	}

	resp, err := a.generateWithRetry(genCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	answer := strings.TrimSpace(resp.Text())
	if answer == "" {
		a.logger.Warn("model returned empty response", "user_id", userID)
		answer = fallbackAnswer
	}

	degraded := false
	if err := a.conversations.Append(ctx, userID, req.Question, answer); err != nil {
		a.logger.Error("persisting turn failed", "user_id", userID, "error", err)
		degraded = true
	}

	return &Response{
		Answer:          answer,
		Usage:           tokens.Measure(a.counter, req.PriorTurns, req.Question, answer),
		ProcessingTime:  time.Since(start),
		ModelVersion:    a.modelName,
		StorageDegraded: degraded,
	}, nil
}

// buildMessages assembles the prompt: stored history in chronological
// order, the fixed-pipeline context block when applicable, and the current
// question as the final message.
func (a *Agent) buildMessages(ctx context.Context, userID, question string) ([]*ai.Message, error) {
	var messages []*ai.Message

	if a.historyWindow > 0 {
		turns, err := a.conversations.History(ctx, userID, a.historyWindow)
		if err != nil {
			// Recoverable: answer without history rather than failing.
			a.logger.Warn("history lookup failed, continuing without history",
				"user_id", userID, "error", err)
			turns = nil
		}
		for _, t := range conversation.Chronological(turns) {
			messages = append(messages,
				ai.NewUserMessage(ai.NewTextPart(t.Question)),
				ai.NewModelMessage(ai.NewTextPart(t.Answer)),
			)
		}
	}

	if a.mode == ModeFixed {
		messages = append(messages,
			ai.NewUserMessage(ai.NewTextPart("Retrieved context:\n\n"+a.fixedContext(ctx, question))))
	}

	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(question)))
	return messages, nil
}

// fixedContext runs the full retrieve-rerank-format pipeline for the fixed
// mode. Any failure degrades to the explicit no-context marker; generation
// always proceeds.
func (a *Agent) fixedContext(ctx context.Context, question string) string {
	candidates, err := a.retriever.Candidates(ctx, question, a.kResults, nil)
	if err != nil {
		a.logger.Warn("retrieval failed, generating without context", "error", err)
		return rag.NoContextMarker
	}

	reranked := a.reranker.Rerank(ctx, question, candidates, a.kResults)
	text := rag.FormatContext(rag.Documents(reranked), true)
	if text == "" {
		return rag.NoContextMarker
	}
	return text
}

// SearchDocuments performs a direct vector search without invoking the
// model. The result has at most k documents.
func (a *Agent) SearchDocuments(ctx context.Context, query string, k int, filter map[string]string) ([]knowledge.Result, error) {
	opts := []knowledge.SearchOption{knowledge.WithTopK(k)}
	for key, value := range filter {
		opts = append(opts, knowledge.WithFilter(key, value))
	}
	return a.knowledge.Search(ctx, query, opts...)
}

// SearchByMetadata lists documents whose metadata key equals value, newest
// first, without an embedding call.
func (a *Agent) SearchByMetadata(ctx context.Context, key, value string, k int) ([]knowledge.Result, error) {
	return a.knowledge.Search(ctx, "",
		knowledge.WithTopK(k),
		knowledge.WithFilter(key, value))
}
