package statestore

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/relaygate/relaygate/internal/gatewayerr"
)

// RetrieveAndCombine implements the entry-point retrieve-and-combine step
// for /v1/responses requests carrying previous_response_id, when the
// target upstream does not natively support the Responses API. A missing
// previous state surfaces as 409 ConversationStateNotFound; any other
// storage error is logged and the current input is used alone (the request
// still proceeds, degrading to "no prior context" rather than failing).
func RetrieveAndCombine(ctx context.Context, store Store, previousResponseID string, currentInput []InputItem) ([]InputItem, error) {
	prev, err := store.Get(ctx, previousResponseID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, gatewayerr.ConversationStateNotFound(previousResponseID)
		}
		slog.Error("statestore: retrieve previous state failed, continuing with current input only",
			"previous_response_id", previousResponseID, "error", err)
		return currentInput, nil
	}
	return Merge(prev, currentInput), nil
}

// PersistAfterCompletion is fire-and-forget with respect to the client
// response: call it in its own goroutine once the terminal response is
// fully observed (ResponseCompleted for streaming, or JSON decode for
// non-streaming). Errors are logged with the response id, never propagated,
// since the client has already received its response by this point.
func PersistAfterCompletion(ctx context.Context, store Store, state ConversationState) {
	if err := store.Put(ctx, state); err != nil {
		slog.Error("statestore: persist-after-completion failed", "response_id", state.ResponseID, "error", err)
	}
}

// DecompressIfNeeded buffers a non-streaming upstream body and decompresses
// it according to contentEncoding before the caller parses it as JSON. Only
// gzip is required; any other encoding is logged and passed through
// uncompressed rather than guessed at.
func DecompressIfNeeded(body []byte, contentEncoding string) ([]byte, error) {
	switch contentEncoding {
	case "", "identity":
		return body, nil
	case "gzip":
		r, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	default:
		slog.Warn("statestore: unsupported content-encoding, passing through uncompressed", "encoding", contentEncoding)
		return body, nil
	}
}
