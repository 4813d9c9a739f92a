package proxy

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/relaygate/relaygate/internal/dialect"
	"github.com/relaygate/relaygate/internal/registry"
)

// singleProviderRegistry builds a registry whose one descriptor's upstream
// points at an httptest server, so handleCompletion's forwarding can be
// exercised without a real network call.
func singleProviderRegistry(t *testing.T, upstreamURL string) *registry.Registry {
	t.Helper()
	reg, err := registry.Build([]registry.Descriptor{
		{
			Name:         "openai/gpt-4o",
			Provider:     registry.ProviderOpenAI,
			Dialect:      dialect.KindOpenAIChat,
			PathTemplate: "/v1/chat/completions",
			URLPrefix:    upstreamURL,
			Auth:         registry.AuthNone,
			Model:        "gpt-4o",
			Default:      true,
		},
	})
	if err != nil {
		t.Fatalf("registry.Build: %v", err)
	}
	return reg
}

func TestHandleCompletionNonStreamingSameDialect(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("upstream: decode forwarded body: %v", err)
		}
		if req["model"] != "gpt-4o" {
			t.Fatalf("upstream saw model %v, want gpt-4o", req["model"])
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-abc",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "gpt-4o",
			"choices": []map[string]any{
				{
					"index":         0,
					"message":       map[string]any{"role": "assistant", "content": "hello there"},
					"finish_reason": "stop",
				},
			},
		})
	}))
	defer upstream.Close()

	e := &Edge{
		Registry: singleProviderRegistry(t, upstream.URL),
		HTTP:     upstream.Client(),
	}

	body, _ := json.Marshal(map[string]any{
		"model":    "openai/gpt-4o",
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
	})
	r := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	w := httptest.NewRecorder()

	e.handleCompletion(dialect.KindOpenAIChat)(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body: %s", w.Code, w.Body.String())
	}
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode client response: %v", err)
	}
	choices, _ := out["choices"].([]any)
	if len(choices) != 1 {
		t.Fatalf("got %d choices, want 1", len(choices))
	}
}

func TestHandleCompletionForwardsUpstreamErrorVerbatim(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("x-request-id", "req-123")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit_error"}}`))
	}))
	defer upstream.Close()

	e := &Edge{
		Registry: singleProviderRegistry(t, upstream.URL),
		HTTP:     upstream.Client(),
	}

	body, _ := json.Marshal(map[string]any{
		"model":    "openai/gpt-4o",
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
	})
	r := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	w := httptest.NewRecorder()

	e.handleCompletion(dialect.KindOpenAIChat)(w, r)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("got status %d, want the upstream's verbatim 429", w.Code)
	}
	if w.Header().Get("x-request-id") != "req-123" {
		t.Fatal("expected the upstream's own headers to be forwarded verbatim")
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("rate_limit_error")) {
		t.Fatal("expected the upstream's raw error body to be forwarded unchanged")
	}
}

func TestHandleCompletionRejectsUnknownModel(t *testing.T) {
	e := &Edge{Registry: testRegistry(t), HTTP: http.DefaultClient}

	body, _ := json.Marshal(map[string]any{
		"model":    "no-such-model",
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
	})
	r := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	w := httptest.NewRecorder()

	e.handleCompletion(dialect.KindOpenAIChat)(w, r)

	if w.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404 for an unresolvable model", w.Code)
	}
}
