// Package rag implements the retrieval pipeline: candidate over-fetch from
// the vector store, secondary reranking with a relevance-tuned embedder, and
// context block formatting for the prompt.
package rag

import (
	"context"
	"fmt"

	"github.com/ioc-assistant/eassistant/internal/knowledge"
	"github.com/ioc-assistant/eassistant/internal/log"
)

// candidateMultiplier sizes the over-fetched pool relative to the target
// result count. The reranker narrows the pool back down to k.
const candidateMultiplier = 2

// Searcher is the vector store capability the retriever consumes.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
}

// Retriever fetches candidate documents for reranking.
type Retriever struct {
	store  Searcher
	logger log.Logger
}

// NewRetriever creates a retriever over the given vector store.
func NewRetriever(store Searcher, logger log.Logger) *Retriever {
	return &Retriever{
		store:  store,
		logger: logger.With("component", "retriever"),
	}
}

// Candidates over-fetches 2k documents for the query. The optional filter
// restricts candidates by exact metadata match.
func (r *Retriever) Candidates(ctx context.Context, query string, k int, filter map[string]string) ([]knowledge.Document, error) {
	opts := []knowledge.SearchOption{knowledge.WithTopK(k * candidateMultiplier)}
	for key, value := range filter {
		opts = append(opts, knowledge.WithFilter(key, value))
	}

	results, err := r.store.Search(ctx, query, opts...)
	if err != nil {
		return nil, fmt.Errorf("fetching candidates: %w", err)
	}

	docs := make([]knowledge.Document, len(results))
	for i, res := range results {
		docs[i] = res.Document
	}

	r.logger.Debug("candidates fetched", "query_length", len(query), "count", len(docs))
	return docs, nil
}
