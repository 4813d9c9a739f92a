package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/relaygate/relaygate/internal/gatewayerr"
)

func TestWriteErrorRendersGatewayTaxonomy(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(context.Background(), w, gatewayerr.ModelNotFound("no-such-model"))

	if w.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", w.Code)
	}
	var body errorWire
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response body isn't the {error:{...}} shape: %v", err)
	}
	if body.Error.Code == "" {
		t.Fatal("expected a non-empty error code")
	}
}

func TestWriteErrorWrapsPlainErrors(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(context.Background(), w, errors.New("boom"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("got status %d, want 500 for an unclassified error", w.Code)
	}
}

func TestWriteJSONSetsContentType(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(context.Background(), w, map[string]string{"ok": "true"}, http.StatusOK)

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("got Content-Type %q", ct)
	}
}
