// Package conversation persists question/answer turns per user.
//
// Storage is append-only: a turn is written once after the answer is
// produced and never updated. History reads are most-recent-first; callers
// that need prompt ordering re-sort with Chronological.
package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ioc-assistant/eassistant/internal/log"
)

// ErrStorage wraps failures of the underlying database. Callers check it
// with errors.Is and must not parse the wrapped driver error.
var ErrStorage = errors.New("conversation storage error")

// Querier is the subset of pgxpool.Pool the store depends on.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides access to conversation turns.
type Store struct {
	db     Querier
	logger log.Logger
}

// NewStore creates a conversation store backed by the given querier.
func NewStore(db Querier, logger log.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With("component", "conversation"),
	}
}

// Append records a completed turn for the user. The write is a single
// INSERT; concurrent appends for the same user interleave by commit order.
func (s *Store) Append(ctx context.Context, userID, question, answer string) error {
	const q = `
		INSERT INTO conversations (user_id, question, answer)
		VALUES ($1, $2, $3)`

	if _, err := s.db.Exec(ctx, q, userID, question, answer); err != nil {
		return fmt.Errorf("%w: appending turn for user %s: %v", ErrStorage, userID, err)
	}

	s.logger.Debug("turn appended", "user_id", userID)
	return nil
}

// History returns up to limit turns for the user, most recent first.
// An unknown user yields an empty slice and no error.
func (s *Store) History(ctx context.Context, userID string, limit int) ([]Turn, error) {
	const q = `
		SELECT id, user_id, question, answer, created_at
		FROM conversations
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := s.db.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: reading history for user %s: %v", ErrStorage, userID, err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.UserID, &t.Question, &t.Answer, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning turn: %v", ErrStorage, err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating history: %v", ErrStorage, err)
	}

	if turns == nil {
		turns = []Turn{}
	}
	return turns, nil
}

// Users lists the distinct user IDs that have stored turns.
func (s *Store) Users(ctx context.Context) ([]string, error) {
	const q = `SELECT DISTINCT user_id FROM conversations ORDER BY user_id`

	rows, err := s.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: listing users: %v", ErrStorage, err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scanning user id: %v", ErrStorage, err)
		}
		users = append(users, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating users: %v", ErrStorage, err)
	}

	return users, nil
}

// DeleteHistory removes every turn for the user and reports how many were
// deleted. Administrative operation, never called by the query path.
func (s *Store) DeleteHistory(ctx context.Context, userID string) (int64, error) {
	const q = `DELETE FROM conversations WHERE user_id = $1`

	tag, err := s.db.Exec(ctx, q, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: deleting history for user %s: %v", ErrStorage, userID, err)
	}

	deleted := tag.RowsAffected()
	s.logger.Info("history deleted", "user_id", userID, "turns", deleted)
	return deleted, nil
}
