// Package knowledge stores corpus documents with vector embeddings and
// serves similarity search over them using PostgreSQL + pgvector.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/ioc-assistant/eassistant/internal/log"
)

// Sentinel errors for the knowledge store.
var (
	// ErrEmbedding wraps failures of the embedding provider.
	ErrEmbedding = errors.New("embedding generation failed")

	// ErrSearch wraps failures of the vector search query.
	ErrSearch = errors.New("knowledge search failed")
)

// Querier is the subset of pgxpool.Pool the store depends on.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store manages corpus documents with vector search.
// Safe for concurrent use.
type Store struct {
	db            Querier
	embedder      ai.Embedder
	embedTimeout  time.Duration
	searchTimeout time.Duration
	logger        log.Logger
}

// NewStore creates a knowledge store. embedTimeout bounds each embedding
// call and searchTimeout each search query; zero disables the bound.
func NewStore(db Querier, embedder ai.Embedder, embedTimeout, searchTimeout time.Duration, logger log.Logger) *Store {
	return &Store{
		db:            db,
		embedder:      embedder,
		embedTimeout:  embedTimeout,
		searchTimeout: searchTimeout,
		logger:        logger.With("component", "knowledge"),
	}
}

// Add embeds and upserts a document.
func (s *Store) Add(ctx context.Context, doc Document) error {
	embedding, err := s.embed(ctx, doc.Content)
	if err != nil {
		return fmt.Errorf("embedding document %q: %w", doc.ID, err)
	}

	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata for %q: %w", doc.ID, err)
	}

	const q = `
		INSERT INTO documents (id, content, embedding, metadata)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET content = EXCLUDED.content,
		    embedding = EXCLUDED.embedding,
		    metadata = EXCLUDED.metadata`

	vec := pgvector.NewVector(embedding)
	if _, err := s.db.Exec(ctx, q, doc.ID, doc.Content, vec, metadataJSON); err != nil {
		return fmt.Errorf("upserting document %q: %w", doc.ID, err)
	}

	s.logger.Debug("document added", "id", doc.ID, "content_length", len(doc.Content))
	return nil
}

// Search returns the documents most similar to the query, ordered by
// descending cosine similarity. An empty query skips embedding entirely and
// performs a metadata-only scan ordered by recency; at least one filter is
// required in that case.
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := NewSearchConfig(opts...)

	if query == "" {
		if len(cfg.Filter) == 0 {
			return nil, fmt.Errorf("%w: empty query requires a metadata filter", ErrSearch)
		}
		return s.metadataScan(ctx, cfg)
	}

	embedding, err := s.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	vec := pgvector.NewVector(embedding)

	ctx, cancel := s.searchContext(ctx)
	defer cancel()

	var rows pgx.Rows
	if len(cfg.Filter) > 0 {
		filterJSON, marshalErr := json.Marshal(cfg.Filter)
		if marshalErr != nil {
			return nil, fmt.Errorf("%w: marshaling filter: %v", ErrSearch, marshalErr)
		}
		const q = `
			SELECT id, content, metadata, created_at,
			       1 - (embedding <=> $1) AS similarity
			FROM documents
			WHERE metadata @> $2
			ORDER BY embedding <=> $1
			LIMIT $3`
		rows, err = s.db.Query(ctx, q, vec, filterJSON, cfg.TopK)
	} else {
		const q = `
			SELECT id, content, metadata, created_at,
			       1 - (embedding <=> $1) AS similarity
			FROM documents
			ORDER BY embedding <=> $1
			LIMIT $2`
		rows, err = s.db.Query(ctx, q, vec, cfg.TopK)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearch, err)
	}
	defer rows.Close()

	return s.scanResults(rows, true)
}

// metadataScan lists documents whose metadata matches the filter, newest
// first, without touching the embedding provider.
func (s *Store) metadataScan(ctx context.Context, cfg SearchConfig) ([]Result, error) {
	filterJSON, err := json.Marshal(cfg.Filter)
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling filter: %v", ErrSearch, err)
	}

	const q = `
		SELECT id, content, metadata, created_at
		FROM documents
		WHERE metadata @> $1
		ORDER BY created_at DESC
		LIMIT $2`

	ctx, cancel := s.searchContext(ctx)
	defer cancel()

	rows, err := s.db.Query(ctx, q, filterJSON, cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearch, err)
	}
	defer rows.Close()

	return s.scanResults(rows, false)
}

// Count returns the number of documents, optionally restricted by filter.
func (s *Store) Count(ctx context.Context, filter map[string]string) (int64, error) {
	var row pgx.Row
	if len(filter) > 0 {
		filterJSON, err := json.Marshal(filter)
		if err != nil {
			return 0, fmt.Errorf("marshaling filter: %w", err)
		}
		row = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM documents WHERE metadata @> $1`, filterJSON)
	} else {
		row = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM documents`)
	}

	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return count, nil
}

// searchContext bounds a search query with the configured timeout. The
// embedding call is not covered; it carries its own bound.
func (s *Store) searchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.searchTimeout > 0 {
		return context.WithTimeout(ctx, s.searchTimeout)
	}
	return ctx, func() {}
}

func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	if s.embedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.embedTimeout)
		defer cancel()
	}

	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, errors.New("provider returned empty embedding")
	}
	return resp.Embeddings[0].Embedding, nil
}

func (s *Store) scanResults(rows pgx.Rows, withSimilarity bool) ([]Result, error) {
	results := make([]Result, 0)
	for rows.Next() {
		var (
			r            Result
			metadataJSON []byte
		)
		dest := []any{&r.ID, &r.Content, &metadataJSON, &r.CreatedAt}
		if withSimilarity {
			dest = append(dest, &r.Similarity)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("%w: scanning result: %v", ErrSearch, err)
		}

		if err := json.Unmarshal(metadataJSON, &r.Metadata); err != nil {
			s.logger.Warn("unparseable document metadata", "document_id", r.ID, "error", err)
			r.Metadata = make(map[string]string)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating results: %v", ErrSearch, err)
	}
	return results, nil
}
