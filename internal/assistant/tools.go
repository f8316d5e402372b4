package assistant

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/ioc-assistant/eassistant/internal/conversation"
	"github.com/ioc-assistant/eassistant/internal/rag"
)

// Genkit tool names exposed to the model in agentic mode.
const (
	// RetrieveContextName retrieves and reranks corpus documents.
	RetrieveContextName = "retrieve_context"

	// GetUserHistoryName lists a user's past conversation turns.
	GetUserHistoryName = "get_user_history"
)

// historyToolLimit caps how many turns the history tool surfaces to the
// model in one call.
const historyToolLimit = 10

// RetrieveInput is the model-facing input of the retrieve_context tool.
type RetrieveInput struct {
	Query string `json:"query" jsonschema_description:"The search query describing the information needed"`
}

// HistoryInput is the model-facing input of the get_user_history tool.
type HistoryInput struct {
	UserID string `json:"userId" jsonschema_description:"Identifier of the user whose history to list"`
}

// registerTools defines the agentic tools against the Genkit registry and
// returns them in registration order.
func (a *Agent) registerTools() []ai.Tool {
	retrieve := genkit.DefineTool(a.g, RetrieveContextName,
		"Retrieve information from the institute's website data. "+
			"Runs a semantic search over the document corpus and reranks the results for precision. "+
			"Returns: numbered document excerpts with source metadata. "+
			"Use this whenever the question needs factual grounding.",
		func(ctx *ai.ToolContext, input RetrieveInput) (string, error) {
			docs, err := a.retriever.Candidates(ctx, input.Query, a.kResults, nil)
			if err != nil {
				a.logger.Warn("tool retrieval failed", "error", err)
				return rag.NoContextMarker, nil
			}
			reranked := a.reranker.Rerank(ctx, input.Query, docs, a.kResults)
			if len(reranked) == 0 {
				return rag.NoContextMarker, nil
			}
			return rag.FormatContext(rag.Documents(reranked), true), nil
		})

	history := genkit.DefineTool(a.g, GetUserHistoryName,
		"Get the past conversation history for a user. "+
			"Returns: a numbered, timestamped list of previous questions and answers, oldest first. "+
			"Use this to understand references to earlier exchanges.",
		func(ctx *ai.ToolContext, input HistoryInput) (string, error) {
			turns, err := a.conversations.History(ctx, input.UserID, historyToolLimit)
			if err != nil {
				a.logger.Warn("tool history lookup failed", "error", err)
				turns = nil
			}
			return conversation.FormatForDisplay(input.UserID, turns), nil
		})

	return []ai.Tool{retrieve, history}
}
