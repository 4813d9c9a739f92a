package statestore

import (
	"context"
	"net/http"
	"testing"

	"github.com/relaygate/relaygate/internal/gatewayerr"
)

func TestMemoryStorePutGetRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	state := ConversationState{
		ResponseID: "resp_abc",
		InputItems: []InputItem{{Role: "user", Content: "hi"}},
		Model:      "gpt-4o",
		Provider:   "openai",
	}
	if err := s.Put(ctx, state); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.Get(ctx, "resp_abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.InputItems) != 1 || got.InputItems[0].Content != "hi" {
		t.Fatalf("unexpected state: %+v", got)
	}
}

func TestMemoryStoreGetNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), "missing")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStorePutIsIdempotentUpsert(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.Put(ctx, ConversationState{ResponseID: "r1", InputItems: []InputItem{{Role: "user", Content: "v1"}}})
	s.Put(ctx, ConversationState{ResponseID: "r1", InputItems: []InputItem{{Role: "user", Content: "v2"}}})

	got, _ := s.Get(ctx, "r1")
	if len(got.InputItems) != 1 || got.InputItems[0].Content != "v2" {
		t.Fatalf("expected overwrite, got %+v", got)
	}
}

func TestMergeAppendsWithoutDedup(t *testing.T) {
	prev := ConversationState{InputItems: []InputItem{
		{Role: "user", Content: "Weather?"},
		{Role: "assistant", Content: `Called function: get_weather with arguments: {"location":"SF"}`},
	}}
	current := []InputItem{{Role: "user", Content: `Result: {"temp":72}`}}

	merged := Merge(prev, current)
	if len(merged) != 3 {
		t.Fatalf("expected 3 items, got %d: %+v", len(merged), merged)
	}
	if merged[2].Content != current[0].Content {
		t.Fatalf("expected current input appended last, got %+v", merged)
	}
}

func TestOutputsToInputsSynthesizesFunctionCallText(t *testing.T) {
	items := OutputsToInputs([]OutputItem{
		{Type: "function_call", ToolName: "get_weather", Arguments: `{"location":"SF"}`},
	})
	want := `Called function: get_weather with arguments: {"location":"SF"}`
	if len(items) != 1 || items[0].Content != want || items[0].Role != "assistant" {
		t.Fatalf("unexpected synthesis: %+v", items)
	}
}

func TestOutputsToInputsDropsRefusals(t *testing.T) {
	items := OutputsToInputs([]OutputItem{
		{Type: "message", Role: "assistant", Refusal: true, Text: "I can't help with that"},
		{Type: "message", Role: "assistant", Text: "here you go"},
	})
	if len(items) != 1 || items[0].Content != "here you go" {
		t.Fatalf("expected only the non-refusal message, got %+v", items)
	}
}

func TestRetrieveAndCombineReturns409OnNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := RetrieveAndCombine(context.Background(), s, "resp_missing", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if ge, ok := gatewayerr.As(err); !ok || ge.Status != http.StatusConflict {
		t.Fatalf("expected a 409 gateway error, got %v", err)
	}
}

func TestDecompressIfNeededPassesThroughUnknownEncoding(t *testing.T) {
	body := []byte("plain body")
	out, err := DecompressIfNeeded(body, "br")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != string(body) {
		t.Fatalf("expected passthrough, got %q", out)
	}
}
