// Package session persists conversation transcripts in PostgreSQL. The
// orchestrator treats persistence as best-effort: a store failure is logged
// by the caller and never fails a turn.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dataquay/dataquay/internal/log"
)

// Turn is one recorded exchange: the user's message and the final artifact
// produced for it.
type Turn struct {
	ID          uuid.UUID
	SessionID   uuid.UUID
	UserMessage string
	Artifact    string
	CreatedAt   time.Time
}

// Store manages transcript persistence with a PostgreSQL backend. It is
// safe for concurrent use.
type Store struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// NewStore creates a Store over the given pool.
func NewStore(pool *pgxpool.Pool, logger log.Logger) *Store {
	return &Store{
		pool:   pool,
		logger: logger.With("component", "session"),
	}
}

// RecordTurn appends one completed turn to the session's transcript,
// creating the session row on first use. The write is transactional so the
// turn counter stays consistent with the transcript.
func (s *Store) RecordTurn(ctx context.Context, sessionID, userMessage, artifact string) error {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return fmt.Errorf("invalid session ID: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	_, err = tx.Exec(ctx, `
		INSERT INTO sessions (id, turn_count) VALUES ($1, 1)
		ON CONFLICT (id) DO UPDATE SET updated_at = now(), turn_count = sessions.turn_count + 1`,
		id)
	if err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO transcript_turns (id, session_id, user_message, artifact)
		VALUES ($1, $2, $3, $4)`,
		uuid.New(), id, userMessage, artifact)
	if err != nil {
		return fmt.Errorf("inserting turn: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Debug("recorded turn", "session_id", sessionID)
	return nil
}

// Turns returns the session's transcript in chronological order.
func (s *Store) Turns(ctx context.Context, sessionID string, limit int32) ([]Turn, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, fmt.Errorf("invalid session ID: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, user_message, artifact, created_at
		FROM transcript_turns
		WHERE session_id = $1
		ORDER BY created_at
		LIMIT $2`,
		id, limit)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.SessionID, &t.UserMessage, &t.Artifact, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading turns: %w", err)
	}

	return turns, nil
}
