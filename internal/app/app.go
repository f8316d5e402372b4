// Package app wires configuration, storage, model providers and the agent
// into a runnable application.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ioc-assistant/eassistant/internal/assistant"
	"github.com/ioc-assistant/eassistant/internal/config"
	"github.com/ioc-assistant/eassistant/internal/conversation"
	"github.com/ioc-assistant/eassistant/internal/knowledge"
	"github.com/ioc-assistant/eassistant/internal/log"
)

// App is the application container. All fields are initialized by Setup
// and released by Close.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit         *genkit.Genkit
	Embedder       ai.Embedder
	RerankEmbedder ai.Embedder
	Pool           *pgxpool.Pool

	Knowledge     *knowledge.Store
	Conversations *conversation.Store
	Agent         *assistant.Agent
}

// Close releases the application's resources.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Info("database pool closed")
	}
}
