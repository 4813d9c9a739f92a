package sse

import (
	"strings"
	"testing"

	"github.com/relaygate/relaygate/internal/dialect"
)

func TestAnthropicBufferSynthesizesMessageDeltaForBedrockStop(t *testing.T) {
	b := NewAnthropicBuffer()

	var out []byte
	out = append(out, b.Accept(dialect.StreamEvent{Kind: dialect.EventBedrockMessageStart, Model: "anthropic.claude-3"})...)
	out = append(out, b.Accept(dialect.StreamEvent{Kind: dialect.EventBedrockContentBlockStart, Index: 0, BlockType: "text"})...)
	out = append(out, b.Accept(dialect.StreamEvent{Kind: dialect.EventBedrockContentBlockDelta, Index: 0, Delta: dialect.DeltaText, Text: "hi"})...)
	out = append(out, b.Accept(dialect.StreamEvent{Kind: dialect.EventBedrockContentBlockStop, Index: 0})...)
	out = append(out, b.Accept(dialect.StreamEvent{Kind: dialect.EventBedrockMessageStop, StopReason: "end_turn"})...)
	out = append(out, b.Accept(dialect.StreamEvent{Kind: dialect.EventBedrockMetadata, Usage: &dialect.Usage{InputTokens: 10, OutputTokens: 5}})...)
	out = append(out, b.Flush()...)

	wire := string(out)
	if !strings.Contains(wire, `"type":"message_delta"`) {
		t.Fatalf("expected a synthesized message_delta event, got: %s", wire)
	}
	if !strings.Contains(wire, `"stop_reason":"end_turn"`) {
		t.Fatalf("expected message_delta to carry stop_reason, got: %s", wire)
	}
	if !strings.Contains(wire, `"input_tokens":10`) || !strings.Contains(wire, `"output_tokens":5`) {
		t.Fatalf("expected message_delta to carry usage from the Metadata event, got: %s", wire)
	}
	if n := strings.Count(wire, `"type":"message_stop"`); n != 1 {
		t.Fatalf("expected exactly one message_stop, got %d: %s", n, wire)
	}
	deltaIdx := strings.Index(wire, `"type":"message_delta"`)
	stopIdx := strings.Index(wire, `"type":"message_stop"`)
	if deltaIdx == -1 || stopIdx == -1 || deltaIdx > stopIdx {
		t.Fatalf("expected message_delta to precede message_stop, got: %s", wire)
	}
}

func TestAnthropicBufferFlushSynthesizesMessageDeltaWhenMetadataNeverArrives(t *testing.T) {
	b := NewAnthropicBuffer()

	var out []byte
	out = append(out, b.Accept(dialect.StreamEvent{Kind: dialect.EventBedrockMessageStart, Model: "anthropic.claude-3"})...)
	out = append(out, b.Accept(dialect.StreamEvent{Kind: dialect.EventBedrockContentBlockStart, Index: 0, BlockType: "text"})...)
	out = append(out, b.Accept(dialect.StreamEvent{Kind: dialect.EventBedrockContentBlockStop, Index: 0})...)
	out = append(out, b.Accept(dialect.StreamEvent{Kind: dialect.EventBedrockMessageStop, StopReason: "max_tokens"})...)
	out = append(out, b.Flush()...)

	wire := string(out)
	if !strings.Contains(wire, `"type":"message_delta"`) {
		t.Fatalf("expected Flush to synthesize the pending message_delta, got: %s", wire)
	}
	if n := strings.Count(wire, `"type":"message_stop"`); n != 1 {
		t.Fatalf("expected exactly one message_stop, got %d: %s", n, wire)
	}
}

func TestAnthropicBufferDoesNotDoubleEmitMessageStopOnFlush(t *testing.T) {
	b := NewAnthropicBuffer()

	var out []byte
	out = append(out, b.Accept(dialect.StreamEvent{Kind: dialect.EventMessageStart, Model: "claude-3"})...)
	out = append(out, b.Accept(dialect.StreamEvent{Kind: dialect.EventContentBlockStart, Index: 0, BlockType: "text"})...)
	out = append(out, b.Accept(dialect.StreamEvent{Kind: dialect.EventContentBlockStop, Index: 0})...)
	out = append(out, b.Accept(dialect.StreamEvent{Kind: dialect.EventMessageDelta, StopReason: "end_turn"})...)
	out = append(out, b.Accept(dialect.StreamEvent{Kind: dialect.EventMessageStop})...)
	out = append(out, b.Flush()...)

	wire := string(out)
	if n := strings.Count(wire, `"type":"message_stop"`); n != 1 {
		t.Fatalf("expected exactly one message_stop after an explicit stop plus Flush, got %d: %s", n, wire)
	}
}
