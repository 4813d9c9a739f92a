package sse

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/relaygate/relaygate/internal/dialect"
)

// StreamBuffer accepts transformed canonical events and converts them to
// client wire bytes. Accept may return bytes immediately (most events) or
// hold state and return nothing until a later Accept/Flush call (lifecycle
// synthesis). Flush is called once at end-of-stream to emit any final
// synthesized events.
type StreamBuffer interface {
	Accept(ev dialect.StreamEvent) []byte
	Flush() []byte
}

// PassthroughBuffer is used when client and upstream dialects match. It
// drops ping events and events that produce empty wire lines, forwarding
// everything else verbatim via the client dialect's own encoder.
type PassthroughBuffer struct {
	Encode func(dialect.StreamEvent) []byte
}

// NewPassthroughBuffer builds a PassthroughBuffer for the given client
// dialect's encoder (EncodeOpenAIChatChunk or EncodeAnthropicEvent).
func NewPassthroughBuffer(encode func(dialect.StreamEvent) []byte) *PassthroughBuffer {
	return &PassthroughBuffer{Encode: encode}
}

func (b *PassthroughBuffer) Accept(ev dialect.StreamEvent) []byte {
	if ev.Kind == dialect.EventPing {
		return nil
	}
	out := b.Encode(ev)
	if len(out) == 0 {
		return nil
	}
	return out
}

func (b *PassthroughBuffer) Flush() []byte { return nil }

// NewMessageID generates a fresh message/response id in the style Anthropic
// and the Responses API both use: a fixed prefix plus random hex.
func NewMessageID(prefix string, hexLen int) string {
	buf := make([]byte, (hexLen+1)/2)
	_, _ = rand.Read(buf)
	return prefix + hex.EncodeToString(buf)[:hexLen]
}

// AnthropicBuffer enforces the required envelope
// MessageStart -> (ContentBlockStart -> ContentBlockDelta* -> ContentBlockStop)+ -> MessageDelta -> MessageStop
// regardless of the upstream dialect. Bedrock's ConverseStream never emits a
// MessageDelta-shaped event of its own: stop_reason rides on its
// MessageStop and usage arrives afterward on its Metadata event, so the
// buffer holds the stop_reason until Metadata (or Flush, if Metadata never
// arrives) and synthesizes the MessageDelta the envelope requires.
type AnthropicBuffer struct {
	startEmitted bool
	stopEmitted  bool
	blockOpen    bool
	openIndex    int
	model        string

	bedrockStopReason  string
	bedrockStopPending bool
}

// NewAnthropicBuffer constructs an AnthropicBuffer.
func NewAnthropicBuffer() *AnthropicBuffer { return &AnthropicBuffer{} }

func (b *AnthropicBuffer) Accept(ev dialect.StreamEvent) []byte {
	var out []byte

	switch ev.Kind {
	case dialect.EventPing:
		return nil

	case dialect.EventMessageStart, dialect.EventBedrockMessageStart:
		if ev.Model != "" {
			b.model = ev.Model
		}
		out = append(out, b.ensureStart(ev)...)
		return out

	case dialect.EventContentBlockStart, dialect.EventBedrockContentBlockStart:
		out = append(out, b.ensureStart(ev)...)
		b.blockOpen = true
		b.openIndex = ev.Index
		out = append(out, EncodeAnthropicEvent(ev)...)
		return out

	case dialect.EventContentBlockDelta, dialect.EventBedrockContentBlockDelta:
		out = append(out, b.ensureStart(ev)...)
		if !b.blockOpen {
			// Upstream skipped ContentBlockStart; synthesize a Text block at index 0
			// so the client never sees a delta before any block opens.
			synth := dialect.StreamEvent{Kind: dialect.EventContentBlockStart, Index: 0, BlockType: "text"}
			out = append(out, EncodeAnthropicEvent(synth)...)
			b.blockOpen = true
			b.openIndex = 0
		}
		out = append(out, EncodeAnthropicEvent(ev)...)
		return out

	case dialect.EventContentBlockStop, dialect.EventBedrockContentBlockStop:
		b.blockOpen = false
		out = append(out, EncodeAnthropicEvent(ev)...)
		return out

	case dialect.EventMessageDelta:
		out = append(out, b.closeOpenBlock()...)
		out = append(out, EncodeAnthropicEvent(ev)...)
		return out

	case dialect.EventMessageStop:
		out = append(out, b.closeOpenBlock()...)
		out = append(out, EncodeAnthropicEvent(dialect.StreamEvent{Kind: dialect.EventMessageStop})...)
		b.stopEmitted = true
		return out

	case dialect.EventBedrockMessageStop:
		// stop_reason arrives here but usage doesn't land until the Metadata
		// event that follows; hold it and synthesize MessageDelta there.
		out = append(out, b.closeOpenBlock()...)
		b.bedrockStopReason = ev.StopReason
		b.bedrockStopPending = true
		return out

	case dialect.EventBedrockMetadata:
		if !b.bedrockStopPending {
			return nil
		}
		out = append(out, EncodeAnthropicEvent(dialect.StreamEvent{
			Kind: dialect.EventMessageDelta, StopReason: b.bedrockStopReason, Usage: ev.Usage,
		})...)
		out = append(out, EncodeAnthropicEvent(dialect.StreamEvent{Kind: dialect.EventMessageStop})...)
		b.bedrockStopPending = false
		b.stopEmitted = true
		return out

	default:
		return nil
	}
}

func (b *AnthropicBuffer) Flush() []byte {
	var out []byte
	out = append(out, b.closeOpenBlock()...)
	if b.bedrockStopPending {
		// Metadata never arrived; emit the stop_reason we have without usage.
		out = append(out, EncodeAnthropicEvent(dialect.StreamEvent{
			Kind: dialect.EventMessageDelta, StopReason: b.bedrockStopReason,
		})...)
		out = append(out, EncodeAnthropicEvent(dialect.StreamEvent{Kind: dialect.EventMessageStop})...)
		b.bedrockStopPending = false
		b.stopEmitted = true
	} else if b.startEmitted && !b.stopEmitted {
		out = append(out, EncodeAnthropicEvent(dialect.StreamEvent{Kind: dialect.EventMessageStop})...)
		b.stopEmitted = true
	}
	return out
}

func (b *AnthropicBuffer) ensureStart(ev dialect.StreamEvent) []byte {
	if b.startEmitted {
		return nil
	}
	model := ev.Model
	if model == "" {
		model = b.model
	}
	if model == "" {
		model = "unknown"
	}
	b.model = model
	b.startEmitted = true
	return EncodeAnthropicEvent(dialect.StreamEvent{
		Kind: dialect.EventMessageStart, MessageID: NewMessageID("msg_", 24), Model: model,
	})
}

func (b *AnthropicBuffer) closeOpenBlock() []byte {
	if !b.blockOpen {
		return nil
	}
	b.blockOpen = false
	return EncodeAnthropicEvent(dialect.StreamEvent{Kind: dialect.EventContentBlockStop, Index: b.openIndex})
}

// ResponsesAPIBuffer synthesizes the Responses API lifecycle when the
// upstream is (by construction) OpenAI Chat.
type ResponsesAPIBuffer struct {
	ResponseID string
	CreatedAt  int64
	Model      string

	seq            int
	lifecycleSent  bool
	itemIDs        map[int]string
	itemKind       map[int]string // "message" or "function_call"
	texts          map[int]string
	args           map[int]string
	toolNames      map[int]string
	order          []int

	// Final is populated after Flush and retained for the state-store
	// persistence callback.
	Final *ResponsesResult
}

// ResponsesResult is the retained final shape handed to the state store.
type ResponsesResult struct {
	ResponseID string
	Model      string
	Output     []ResponsesOutputItem
}

// ResponsesOutputItem mirrors openairesponses.OutputItem closely enough for
// the state-store callback without importing that package here (avoids a
// dependency cycle risk since openairesponses may in turn want sse helpers
// for its own streaming client support).
type ResponsesOutputItem struct {
	Type      string
	ItemID    string
	Text      string
	ToolName  string
	Arguments string
}

// NewResponsesAPIBuffer constructs a ResponsesAPIBuffer with a fresh id.
func NewResponsesAPIBuffer() *ResponsesAPIBuffer {
	return &ResponsesAPIBuffer{
		ResponseID: NewMessageID("resp_", 32),
		itemIDs:    map[int]string{},
		itemKind:   map[int]string{},
		texts:      map[int]string{},
		args:       map[int]string{},
		toolNames:  map[int]string{},
	}
}

func (b *ResponsesAPIBuffer) nextSeq() int {
	s := b.seq
	b.seq++
	return s
}

func (b *ResponsesAPIBuffer) Accept(ev dialect.StreamEvent) []byte {
	var out []byte
	if ev.Kind == dialect.EventChatDone {
		return nil
	}
	if ev.Model != "" {
		b.Model = ev.Model
	}
	out = append(out, b.ensureLifecycle()...)

	switch ev.Kind {
	case dialect.EventContentBlockDelta, dialect.EventBedrockContentBlockDelta:
		idx := ev.Index
		isTool := ev.Delta == dialect.DeltaInputJSON || ev.Delta == dialect.DeltaToolUse
		kind := "message"
		if isTool {
			kind = "function_call"
		}
		if _, seen := b.itemIDs[idx]; !seen {
			b.itemIDs[idx] = fmt.Sprintf("%s_item_%d", b.ResponseID, idx)
			b.itemKind[idx] = kind
			b.toolNames[idx] = ev.ToolName
			b.order = append(b.order, idx)
			out = append(out, EncodeResponsesEvent("response.output_item.added", b.nextSeq(), responsesWireEvent{
				OutputIndex: idx, ItemID: b.itemIDs[idx],
			})...)
		}
		if isTool {
			b.args[idx] += ev.PartialArg
			out = append(out, EncodeResponsesEvent("response.function_call_arguments.delta", b.nextSeq(), responsesWireEvent{
				ItemID: b.itemIDs[idx], OutputIndex: idx, Delta: ev.PartialArg,
			})...)
		} else {
			b.texts[idx] += ev.Text
			out = append(out, EncodeResponsesEvent("response.output_text.delta", b.nextSeq(), responsesWireEvent{
				ItemID: b.itemIDs[idx], OutputIndex: idx, Delta: ev.Text,
			})...)
		}
		return out

	default:
		return out
	}
}

func (b *ResponsesAPIBuffer) ensureLifecycle() []byte {
	if b.lifecycleSent {
		return nil
	}
	b.lifecycleSent = true
	var out []byte
	out = append(out, EncodeResponsesEvent("response.created", b.nextSeq(), responsesWireEvent{})...)
	out = append(out, EncodeResponsesEvent("response.in_progress", b.nextSeq(), responsesWireEvent{})...)
	return out
}

func (b *ResponsesAPIBuffer) Flush() []byte {
	var out []byte
	result := &ResponsesResult{ResponseID: b.ResponseID, Model: b.Model}
	for _, idx := range b.order {
		itemID := b.itemIDs[idx]
		if b.itemKind[idx] == "function_call" {
			out = append(out, EncodeResponsesEvent("response.function_call_arguments.done", b.nextSeq(), responsesWireEvent{
				ItemID: itemID, OutputIndex: idx, Arguments: b.args[idx],
			})...)
			out = append(out, EncodeResponsesEvent("response.output_item.done", b.nextSeq(), responsesWireEvent{
				ItemID: itemID, OutputIndex: idx,
			})...)
			result.Output = append(result.Output, ResponsesOutputItem{
				Type: "function_call", ItemID: itemID, ToolName: b.toolNames[idx], Arguments: b.args[idx],
			})
			continue
		}
		out = append(out, EncodeResponsesEvent("response.output_text.done", b.nextSeq(), responsesWireEvent{
			ItemID: itemID, OutputIndex: idx, Text: b.texts[idx],
		})...)
		out = append(out, EncodeResponsesEvent("response.output_item.done", b.nextSeq(), responsesWireEvent{
			ItemID: itemID, OutputIndex: idx,
		})...)
		result.Output = append(result.Output, ResponsesOutputItem{Type: "message", ItemID: itemID, Text: b.texts[idx]})
	}
	out = append(out, EncodeResponsesEvent("response.completed", b.nextSeq(), responsesWireEvent{})...)
	b.Final = result
	return out
}
