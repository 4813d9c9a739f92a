package sse

import (
	"testing"

	"github.com/relaygate/relaygate/internal/dialect"
)

func TestDecodeOpenAIChatEventContentDelta(t *testing.T) {
	ev := Event{Data: `{"model":"gpt-4o","choices":[{"index":0,"delta":{"content":"Hi"},"finish_reason":null}]}`}
	se, err := DecodeOpenAIChatEvent(ev, dialect.KindAnthropicMessages, dialect.KindOpenAIChat)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if se.Kind != dialect.EventContentBlockDelta || se.Text != "Hi" {
		t.Fatalf("unexpected event: %+v", se)
	}
}

func TestDecodeOpenAIChatEventDone(t *testing.T) {
	se, err := DecodeOpenAIChatEvent(Event{Data: "[DONE]"}, dialect.KindOpenAIChat, dialect.KindOpenAIChat)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if se.Kind != dialect.EventChatDone {
		t.Fatalf("expected EventChatDone, got %+v", se)
	}
}

func TestDecodeOpenAIChatEventFinishReason(t *testing.T) {
	ev := Event{Data: `{"model":"gpt-4o","choices":[{"index":0,"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":5}}`}
	se, err := DecodeOpenAIChatEvent(ev, dialect.KindOpenAIChat, dialect.KindOpenAIChat)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if se.Kind != dialect.EventMessageDelta || se.StopReason != "stop" {
		t.Fatalf("unexpected event: %+v", se)
	}
	if se.Usage == nil || se.Usage.InputTokens != 10 || se.Usage.OutputTokens != 5 {
		t.Fatalf("unexpected usage: %+v", se.Usage)
	}
}

func TestDecodeAnthropicEventRoundTripsWithEncode(t *testing.T) {
	original := dialect.StreamEvent{Kind: dialect.EventContentBlockDelta, Index: 0, Delta: dialect.DeltaText, Text: "hello"}
	wire := EncodeAnthropicEvent(original)

	events, remainder := ParseEvents(wire)
	if len(remainder) != 0 {
		t.Fatalf("unexpected remainder: %q", remainder)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 parsed event, got %d", len(events))
	}

	decoded, err := DecodeAnthropicEvent(events[0], dialect.KindOpenAIChat, dialect.KindAnthropicMessages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.Kind != dialect.EventContentBlockDelta || decoded.Text != "hello" {
		t.Fatalf("unexpected round-trip: %+v", decoded)
	}
}

func TestDecodeAnthropicEventPing(t *testing.T) {
	se, err := DecodeAnthropicEvent(Event{Data: `{"type":"ping"}`}, dialect.KindOpenAIChat, dialect.KindAnthropicMessages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if se.Kind != dialect.EventPing {
		t.Fatalf("expected ping, got %+v", se)
	}
}

func TestDecodeAnthropicEventUnsupportedTypeIsValidationError(t *testing.T) {
	_, err := DecodeAnthropicEvent(Event{Data: `{"type":"citations_delta"}`}, dialect.KindOpenAIChat, dialect.KindAnthropicMessages)
	if err == nil {
		t.Fatal("expected an error")
	}
	var ve *ValidationError
	if !asValidationError(err, &ve) {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
}

func asValidationError(err error, target **ValidationError) bool {
	ve, ok := err.(*ValidationError)
	if !ok {
		return false
	}
	*target = ve
	return true
}
