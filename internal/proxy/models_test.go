package proxy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandleModelsListsRegistryCatalog(t *testing.T) {
	e := &Edge{Registry: testRegistry(t)}
	r := httptest.NewRequest("GET", "/v1/models", nil)
	w := httptest.NewRecorder()

	e.handleModels(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d", w.Code)
	}
	var body modelsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Object != "list" {
		t.Fatalf("got object %q, want \"list\"", body.Object)
	}
	if len(body.Data) == 0 {
		t.Fatal("expected at least one model in the catalog")
	}
	for _, m := range body.Data {
		if m.Object != "model" {
			t.Fatalf("model entry %q has object %q, want \"model\"", m.ID, m.Object)
		}
	}
}

func TestHandleModelsOptionsIsCORSPreflight(t *testing.T) {
	r := httptest.NewRequest("OPTIONS", "/v1/models", nil)
	w := httptest.NewRecorder()

	handleModelsOptions(w, r)

	if w.Code != http.StatusNoContent {
		t.Fatalf("got status %d, want 204", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatal("expected a CORS origin header")
	}
}
