package app

import (
	"testing"

	"github.com/ioc-assistant/eassistant/internal/config"
	"github.com/ioc-assistant/eassistant/internal/log"
	"github.com/ioc-assistant/eassistant/internal/tokens"
)

func TestProvideCounter_OpenAIUsesTiktoken(t *testing.T) {
	cfg := &config.Config{Provider: config.ProviderOpenAI, GenerationModel: "gpt-4o-mini"}

	c := provideCounter(cfg, log.NewNop())
	if _, ok := c.(*tokens.TiktokenCounter); !ok {
		t.Errorf("counter = %T, want *tokens.TiktokenCounter", c)
	}
}

func TestProvideCounter_OllamaUsesWordHeuristic(t *testing.T) {
	cfg := &config.Config{Provider: config.ProviderOllama, GenerationModel: "llama3.2"}

	c := provideCounter(cfg, log.NewNop())
	if _, ok := c.(tokens.WordCounter); !ok {
		t.Errorf("counter = %T, want tokens.WordCounter", c)
	}
}

func TestAppClose_NilPoolIsSafe(t *testing.T) {
	a := &App{Logger: log.NewNop()}
	a.Close()
}
