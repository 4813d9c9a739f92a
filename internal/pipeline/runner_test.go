package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/relaygate/relaygate/internal/dialect"
	"github.com/relaygate/relaygate/internal/gatewayerr"
)

func newFilterServer(t *testing.T, appendName string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in []wireMessage
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		out := append(in, wireMessage{Role: "assistant", Content: "filtered by " + appendName})
		json.NewEncoder(w).Encode(out)
	}))
}

func TestRunFilterChainAppendsEachFilterResponse(t *testing.T) {
	s1 := newFilterServer(t, "filter1")
	defer s1.Close()
	s2 := newFilterServer(t, "filter2")
	defer s2.Close()

	client := NewAgentClient()
	conversation := []dialect.Message{{Role: dialect.RoleUser, Text: "hi"}}

	out, err := RunFilterChain(context.Background(), client, []Agent{
		{ID: "filter1", UpstreamURL: s1.URL},
		{ID: "filter2", UpstreamURL: s2.URL},
	}, conversation)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 messages (1 original + 2 filters), got %d: %+v", len(out), out)
	}
	if out[1].Text != "filtered by filter1" || out[2].Text != "filtered by filter2" {
		t.Fatalf("unexpected filter output order: %+v", out)
	}
}

func TestCallFilterSurfacesClientError(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad input"}`))
	}))
	defer s.Close()

	client := NewAgentClient()
	_, err := client.CallFilter(context.Background(), Agent{ID: "filter1", UpstreamURL: s.URL}, nil)
	ge, ok := gatewayerr.As(err)
	if !ok {
		t.Fatalf("expected *gatewayerr.Error, got %v", err)
	}
	if ge.Code != gatewayerr.CodeClientError || ge.Status != http.StatusBadRequest {
		t.Fatalf("unexpected error shape: %+v", ge)
	}
}

func TestCallFilterSurfacesServerError(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer s.Close()

	client := NewAgentClient()
	_, err := client.CallFilter(context.Background(), Agent{ID: "filter1", UpstreamURL: s.URL}, nil)
	ge, ok := gatewayerr.As(err)
	if !ok {
		t.Fatalf("expected *gatewayerr.Error, got %v", err)
	}
	if ge.Code != gatewayerr.CodeServerError {
		t.Fatalf("unexpected error code: %+v", ge)
	}
}
