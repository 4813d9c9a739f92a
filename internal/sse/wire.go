package sse

import (
	"encoding/json"

	"github.com/relaygate/relaygate/internal/dialect"
	"github.com/relaygate/relaygate/internal/dialect/openaichat"
)

// WriteDataEvent frames a JSON payload as an SSE "data:" line pair, matching
// the teacher's SSEWriter.WriteData wire format exactly (no "event:" line;
// OpenAI and Anthropic both accept bare data-only SSE frames).
func WriteDataEvent(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	out := make([]byte, 0, len(b)+8)
	out = append(out, "data: "...)
	out = append(out, b...)
	out = append(out, '\n', '\n')
	return out
}

// doneSentinel is OpenAI Chat's terminal SSE frame.
var doneSentinel = []byte("data: [DONE]\n\n")

// EncodeOpenAIChatChunk renders a canonical StreamEvent as an OpenAI
// chat.completion.chunk SSE frame, or the [DONE] sentinel for
// EventChatDone. Returns nil for events this dialect has no representation
// for (ping, lifecycle-only events with no content).
func EncodeOpenAIChatChunk(ev dialect.StreamEvent, id string, created int64) []byte {
	if ev.Kind == dialect.EventChatDone {
		return doneSentinel
	}
	chunk := openaichat.Chunk{ID: id, Object: "chat.completion.chunk", Created: created, Model: ev.Model}
	choice := openaichat.ChunkChoice{Index: 0}
	switch ev.Kind {
	case dialect.EventContentBlockDelta, dialect.EventBedrockContentBlockDelta:
		switch ev.Delta {
		case dialect.DeltaText:
			choice.Delta.Content = ev.Text
		case dialect.DeltaInputJSON, dialect.DeltaToolUse:
			choice.Delta.ToolCalls = []openaichat.ToolCallDelta{{
				Index:    ev.Index,
				Function: &openaichat.FunctionCall{Arguments: ev.PartialArg},
			}}
		default:
			return nil
		}
	case dialect.EventMessageStart, dialect.EventBedrockMessageStart:
		choice.Delta.Role = "assistant"
	case dialect.EventMessageDelta, dialect.EventBedrockMessageStop:
		reason := ev.StopReason
		choice.FinishReason = &reason
	default:
		return nil
	}
	chunk.Choices = []openaichat.ChunkChoice{choice}
	return WriteDataEvent(chunk)
}

// anthropicWireEvent is the {"type": "...", ...} shape Anthropic's SSE
// stream uses for every event; fields are flattened onto one struct since
// each event kind only populates a subset and Anthropic's own wire format
// does the same (unused fields simply absent via omitempty).
type anthropicWireEvent struct {
	Type         string          `json:"type"`
	Message      *anthropicWireMessageStart `json:"message,omitempty"`
	Index        *int            `json:"index,omitempty"`
	ContentBlock *anthropicWireContentBlock `json:"content_block,omitempty"`
	Delta        *anthropicWireDelta        `json:"delta,omitempty"`
	Usage        *anthropicWireUsage        `json:"usage,omitempty"`
}

type anthropicWireMessageStart struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Role  string `json:"role"`
	Model string `json:"model"`
}

type anthropicWireContentBlock struct {
	Type string `json:"type"`
}

type anthropicWireDelta struct {
	Type        string `json:"type,omitempty"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	StopReason  string `json:"stop_reason,omitempty"`
}

type anthropicWireUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// EncodeAnthropicEvent renders a canonical StreamEvent as an Anthropic SSE
// frame. Anthropic frames carry both "event: <type>" and "data: {...}"
// lines, unlike the bare data-only frames used elsewhere.
func EncodeAnthropicEvent(ev dialect.StreamEvent) []byte {
	var w anthropicWireEvent
	switch ev.Kind {
	case dialect.EventMessageStart:
		w.Type = "message_start"
		w.Message = &anthropicWireMessageStart{ID: ev.MessageID, Type: "message", Role: "assistant", Model: ev.Model}
	case dialect.EventContentBlockStart, dialect.EventBedrockContentBlockStart:
		w.Type = "content_block_start"
		idx := ev.Index
		w.Index = &idx
		w.ContentBlock = &anthropicWireContentBlock{Type: ev.BlockType}
	case dialect.EventContentBlockDelta, dialect.EventBedrockContentBlockDelta:
		w.Type = "content_block_delta"
		idx := ev.Index
		w.Index = &idx
		d := &anthropicWireDelta{}
		switch ev.Delta {
		case dialect.DeltaText:
			d.Type, d.Text = "text_delta", ev.Text
		case dialect.DeltaInputJSON:
			d.Type, d.PartialJSON = "input_json_delta", ev.PartialArg
		case dialect.DeltaThinking:
			d.Type, d.Text = "thinking_delta", ev.Text
		case dialect.DeltaSignature:
			d.Type = "signature_delta"
		}
		w.Delta = d
	case dialect.EventContentBlockStop, dialect.EventBedrockContentBlockStop:
		w.Type = "content_block_stop"
		idx := ev.Index
		w.Index = &idx
	case dialect.EventMessageDelta:
		w.Type = "message_delta"
		w.Delta = &anthropicWireDelta{StopReason: ev.StopReason}
		if ev.Usage != nil {
			w.Usage = &anthropicWireUsage{InputTokens: ev.Usage.InputTokens, OutputTokens: ev.Usage.OutputTokens}
		}
	case dialect.EventMessageStop:
		w.Type = "message_stop"
	case dialect.EventPing:
		w.Type = "ping"
	default:
		return nil
	}
	b, err := json.Marshal(w)
	if err != nil {
		return nil
	}
	out := make([]byte, 0, len(b)+32)
	out = append(out, "event: "...)
	out = append(out, w.Type...)
	out = append(out, '\n')
	out = append(out, "data: "...)
	out = append(out, b...)
	out = append(out, '\n', '\n')
	return out
}

type responsesWireEvent struct {
	Type           string `json:"type"`
	SequenceNumber int    `json:"sequence_number"`
	Response       any    `json:"response,omitempty"`
	ItemID         string `json:"item_id,omitempty"`
	OutputIndex    int    `json:"output_index,omitempty"`
	Delta          string `json:"delta,omitempty"`
	Text           string `json:"text,omitempty"`
	Arguments      string `json:"arguments,omitempty"`
	Item           any    `json:"item,omitempty"`
}

// EncodeResponsesEvent renders one Responses API lifecycle/content event.
// The caller (the Responses API buffer) supplies sequence numbers and any
// nested response/item payloads since those require buffer-held state this
// stateless encoder does not have.
func EncodeResponsesEvent(eventType string, seq int, fields responsesWireEvent) []byte {
	fields.Type = eventType
	fields.SequenceNumber = seq
	b, err := json.Marshal(fields)
	if err != nil {
		return nil
	}
	out := make([]byte, 0, len(b)+8)
	out = append(out, "data: "...)
	out = append(out, b...)
	out = append(out, '\n', '\n')
	return out
}
