package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLStore is the Postgres-backed Store implementation over a single
// conversation_states table:
//
//	response_id TEXT PRIMARY KEY,
//	input_items JSONB NOT NULL,
//	created_at  BIGINT NOT NULL,
//	model       TEXT NOT NULL,
//	provider    TEXT NOT NULL,
//	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
//
// The DDL itself is an external collaborator's responsibility; SQLStore only
// issues statements against an already-migrated table.
type SQLStore struct {
	Pool *pgxpool.Pool
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore wraps an existing connection pool.
func NewSQLStore(pool *pgxpool.Pool) *SQLStore {
	return &SQLStore{Pool: pool}
}

// Put upserts by response_id, per the idempotent-upsert invariant.
func (s *SQLStore) Put(ctx context.Context, state ConversationState) error {
	items, err := json.Marshal(state.InputItems)
	if err != nil {
		return fmt.Errorf("statestore: marshal input_items: %w", err)
	}

	_, err = s.Pool.Exec(ctx, `
		INSERT INTO conversation_states (response_id, input_items, created_at, model, provider, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (response_id) DO UPDATE SET
			input_items = EXCLUDED.input_items,
			model       = EXCLUDED.model,
			provider    = EXCLUDED.provider,
			updated_at  = now()
	`, state.ResponseID, items, state.CreatedAt, state.Model, state.Provider)
	if err != nil {
		return fmt.Errorf("statestore: put %s: %w", state.ResponseID, err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, responseID string) (ConversationState, error) {
	var (
		state ConversationState
		items []byte
	)
	row := s.Pool.QueryRow(ctx, `
		SELECT response_id, input_items, created_at, model, provider
		FROM conversation_states WHERE response_id = $1
	`, responseID)
	if err := row.Scan(&state.ResponseID, &items, &state.CreatedAt, &state.Model, &state.Provider); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ConversationState{}, ErrNotFound
		}
		return ConversationState{}, fmt.Errorf("statestore: get %s: %w", responseID, err)
	}
	if err := json.Unmarshal(items, &state.InputItems); err != nil {
		return ConversationState{}, fmt.Errorf("statestore: unmarshal input_items for %s: %w", responseID, err)
	}
	return state, nil
}

func (s *SQLStore) Exists(ctx context.Context, responseID string) (bool, error) {
	var exists bool
	err := s.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM conversation_states WHERE response_id = $1)`, responseID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("statestore: exists %s: %w", responseID, err)
	}
	return exists, nil
}

func (s *SQLStore) Delete(ctx context.Context, responseID string) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM conversation_states WHERE response_id = $1`, responseID)
	if err != nil {
		return fmt.Errorf("statestore: delete %s: %w", responseID, err)
	}
	return nil
}
