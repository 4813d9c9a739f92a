// Package statestore implements the Responses-API conversation state store
// (C7): a keyed (response_id -> ConversationState) store with in-memory and
// SQL backends, used to give providers that lack native Responses support
// previous_response_id semantics.
package statestore

import (
	"context"
	"errors"
)

// InputItem is one message-shaped Responses-API input item.
type InputItem struct {
	Role    string
	Content string
}

// ConversationState is one persisted response_id's accumulated input
// history. Invariant: InputItems is append-only within a response_id chain;
// Put overwrites prior state for the same id (idempotent upsert).
type ConversationState struct {
	ResponseID string
	InputItems []InputItem
	CreatedAt  int64
	Model      string
	Provider   string
	UpdatedAt  int64
}

// ErrNotFound is returned by Get when response_id has no stored state.
var ErrNotFound = errors.New("statestore: conversation state not found")

// Store is the backend contract both the in-memory and SQL implementations
// satisfy.
type Store interface {
	Put(ctx context.Context, state ConversationState) error
	Get(ctx context.Context, responseID string) (ConversationState, error)
	Exists(ctx context.Context, responseID string) (bool, error)
	Delete(ctx context.Context, responseID string) error
}

// Merge appends current onto prev's InputItems with no dedup, per the
// append-only invariant — state merge never truncates.
func Merge(prev ConversationState, current []InputItem) []InputItem {
	out := make([]InputItem, 0, len(prev.InputItems)+len(current))
	out = append(out, prev.InputItems...)
	out = append(out, current...)
	return out
}
