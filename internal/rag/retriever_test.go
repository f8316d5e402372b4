package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/ioc-assistant/eassistant/internal/knowledge"
	"github.com/ioc-assistant/eassistant/internal/log"
)

// fakeSearcher records the resolved search config and returns canned results.
type fakeSearcher struct {
	lastQuery string
	lastCfg   knowledge.SearchConfig
	results   []knowledge.Result
	err       error
}

func (f *fakeSearcher) Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error) {
	f.lastQuery = query
	f.lastCfg = knowledge.NewSearchConfig(opts...)
	return f.results, f.err
}

func TestCandidatesOverFetch(t *testing.T) {
	fake := &fakeSearcher{
		results: []knowledge.Result{
			{Document: knowledge.Document{ID: "a", Content: "alpha"}, Similarity: 0.9},
			{Document: knowledge.Document{ID: "b", Content: "beta"}, Similarity: 0.8},
		},
	}
	retriever := NewRetriever(fake, log.NewNop())

	docs, err := retriever.Candidates(context.Background(), "deadline", 4, nil)
	if err != nil {
		t.Fatalf("Candidates() error: %v", err)
	}

	if fake.lastCfg.TopK != 8 {
		t.Errorf("Candidates() requested %d documents, want 2k = 8", fake.lastCfg.TopK)
	}
	if fake.lastQuery != "deadline" {
		t.Errorf("Candidates() query = %q", fake.lastQuery)
	}
	if len(docs) != 2 || docs[0].ID != "a" || docs[1].ID != "b" {
		t.Errorf("Candidates() = %+v, want documents a, b in order", docs)
	}
}

func TestCandidatesFilterPassThrough(t *testing.T) {
	fake := &fakeSearcher{}
	retriever := NewRetriever(fake, log.NewNop())

	_, err := retriever.Candidates(context.Background(), "q", 2, map[string]string{"type": "faq"})
	if err != nil {
		t.Fatalf("Candidates() error: %v", err)
	}

	if fake.lastCfg.Filter["type"] != "faq" {
		t.Errorf("Candidates() filter = %v, want type=faq", fake.lastCfg.Filter)
	}
}

func TestCandidatesSearchError(t *testing.T) {
	fake := &fakeSearcher{err: knowledge.ErrSearch}
	retriever := NewRetriever(fake, log.NewNop())

	_, err := retriever.Candidates(context.Background(), "q", 4, nil)
	if !errors.Is(err, knowledge.ErrSearch) {
		t.Fatalf("Candidates() error = %v, want wrapped ErrSearch", err)
	}
}
