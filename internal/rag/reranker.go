package rag

import (
	"context"
	"errors"
	"sort"

	"github.com/firebase/genkit/go/ai"

	"github.com/ioc-assistant/eassistant/internal/knowledge"
	"github.com/ioc-assistant/eassistant/internal/log"
)

var errEmptyScoreVector = errors.New("rerank embedder returned an empty vector")

const (
	// scorePrefixLimit bounds how much candidate content enters the scoring
	// input, counted in runes so multibyte text is never split mid-character.
	scorePrefixLimit = 512

	// scoreSeparator joins the query and the content prefix in the scoring
	// input. The rerank models are trained on this delimiter.
	scoreSeparator = " [SEP] "
)

// Scored pairs a document with its rerank relevance score.
type Scored struct {
	knowledge.Document
	Score float64
}

// Reranker re-scores retrieval candidates with a second, relevance-tuned
// embedding model and keeps the top k.
type Reranker struct {
	embedder ai.Embedder
	logger   log.Logger
}

// NewReranker creates a reranker over the given embedder.
func NewReranker(embedder ai.Embedder, logger log.Logger) *Reranker {
	return &Reranker{
		embedder: embedder,
		logger:   logger.With("component", "reranker"),
	}
}

// Rerank scores each candidate and returns the top k by descending score.
// The sort is stable, so candidates with equal scores keep their retrieval
// order. A candidate whose scoring call fails is dropped; if every candidate
// fails the result is empty. Rerank never introduces documents that were not
// in the input.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []knowledge.Document, k int) []Scored {
	scored := make([]Scored, 0, len(candidates))
	for _, doc := range candidates {
		score, err := r.score(ctx, query, doc.Content)
		if err != nil {
			r.logger.Warn("candidate scoring failed, dropping", "document_id", doc.ID, "error", err)
			continue
		}
		scored = append(scored, Scored{Document: doc, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > k {
		scored = scored[:k]
	}

	r.logger.Debug("reranked", "candidates", len(candidates), "kept", len(scored))
	return scored
}

// score reduces the rerank embedding of query + separator + content prefix
// to its component mean.
func (r *Reranker) score(ctx context.Context, query, content string) (float64, error) {
	input := query + scoreSeparator + runePrefix(content, scorePrefixLimit)

	resp, err := r.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(input, nil)},
	})
	if err != nil {
		return 0, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return 0, errEmptyScoreVector
	}

	vec := resp.Embeddings[0].Embedding
	var sum float64
	for _, v := range vec {
		sum += float64(v)
	}
	return sum / float64(len(vec)), nil
}

func runePrefix(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
