package assistant

import (
	"github.com/firebase/genkit/go/genkit"
)

// PipelineMode selects how a query is orchestrated. The mode is resolved
// once at construction, never per request.
type PipelineMode int

const (
	// ModeFixed always runs retrieve, rerank, format and generate in a
	// fixed order with no autonomous tool selection.
	ModeFixed PipelineMode = iota

	// ModeAgentic hands the registered tools to the model and lets it
	// decide when to retrieve context or look up history.
	ModeAgentic
)

func (m PipelineMode) String() string {
	switch m {
	case ModeAgentic:
		return "agentic"
	default:
		return "fixed"
	}
}

// resolveMode maps the configured mode string to a PipelineMode. "auto"
// probes the registry: a model that is not registered under the configured
// name cannot accept tool dispatch, so the fixed pipeline is used.
func resolveMode(g *genkit.Genkit, modelName, configured string) PipelineMode {
	switch configured {
	case "agentic":
		return ModeAgentic
	case "fixed":
		return ModeFixed
	default:
		if genkit.LookupModel(g, modelName) == nil {
			return ModeFixed
		}
		return ModeAgentic
	}
}
