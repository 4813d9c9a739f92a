package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/relaygate/relaygate/internal/gatewayerr"
)

// errorWire is the {"error":{"code","message","details"}} shape spec.md §6
// requires for every non-forwarded error response.
type errorWire struct {
	Error errorWireBody `json:"error"`
}

type errorWireBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// writeJSON writes a JSON response, logging (but not failing) an encode
// error that occurs after the status line has already been written.
func writeJSON(ctx context.Context, w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.ErrorContext(ctx, "proxy: failed to encode JSON response", "error", err)
	}
}

// writeError classifies err as a *gatewayerr.Error (a *gatewayerr.Unsupported
// becomes InvalidRequest; any other error that isn't already one is wrapped
// as InternalServerError) and renders the gateway's taxonomy wire shape at
// the error's own HTTP status.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	ge, ok := gatewayerr.As(err)
	if !ok {
		var unsupported *gatewayerr.Unsupported
		if errors.As(err, &unsupported) {
			ge = gatewayerr.InvalidRequest(unsupported.Error())
		} else {
			ge = gatewayerr.Internal(err)
		}
	}
	slog.ErrorContext(ctx, "proxy: request failed", "code", ge.Code, "status", ge.Status, "error", ge.Error())
	writeJSON(ctx, w, errorWire{Error: errorWireBody{Code: string(ge.Code), Message: ge.Message, Details: ge.Details}}, ge.Status)
}
