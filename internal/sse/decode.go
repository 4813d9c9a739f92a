package sse

import (
	"encoding/json"

	"github.com/relaygate/relaygate/internal/dialect"
)

// DecodeOpenAIChatEvent is a ChunkProcessor TransformFunc for an upstream
// speaking OpenAI Chat SSE (every OpenAI-compatible provider: OpenAI, Groq,
// Mistral, Zhipu, Qwen, Azure, Gemini, DeepSeek, Together, Ollama, XAI).
// Each chat.completion.chunk data line carries at most one delta worth
// forwarding, so one Event maps to zero-or-one StreamEvents.
func DecodeOpenAIChatEvent(ev Event, client, upstream dialect.Kind) (*dialect.StreamEvent, error) {
	if ev.Data == "[DONE]" {
		return &dialect.StreamEvent{Kind: dialect.EventChatDone}, nil
	}

	var chunk struct {
		Model   string `json:"model"`
		Choices []struct {
			Delta struct {
				Role      string `json:"role"`
				Content   string `json:"content"`
				ToolCalls []struct {
					Index    int    `json:"index"`
					ID       string `json:"id"`
					Function struct {
						Name      string `json:"name"`
						Arguments string `json:"arguments"`
					} `json:"function"`
				} `json:"tool_calls"`
			} `json:"delta"`
			FinishReason *string `json:"finish_reason"`
		} `json:"choices"`
		Usage *struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal([]byte(ev.Data), &chunk); err != nil {
		return nil, NewIncompleteJSON(err)
	}
	if len(chunk.Choices) == 0 {
		return nil, nil
	}
	choice := chunk.Choices[0]

	if choice.FinishReason != nil {
		out := &dialect.StreamEvent{Kind: dialect.EventMessageDelta, Model: chunk.Model, StopReason: *choice.FinishReason}
		if chunk.Usage != nil {
			out.Usage = &dialect.Usage{InputTokens: chunk.Usage.PromptTokens, OutputTokens: chunk.Usage.CompletionTokens}
		}
		return out, nil
	}
	if len(choice.Delta.ToolCalls) > 0 {
		tc := choice.Delta.ToolCalls[0]
		return &dialect.StreamEvent{
			Kind: dialect.EventContentBlockDelta, Model: chunk.Model, Index: tc.Index,
			Delta: dialect.DeltaInputJSON, PartialArg: tc.Function.Arguments,
			ToolCallID: tc.ID, ToolName: tc.Function.Name,
		}, nil
	}
	if choice.Delta.Content != "" {
		return &dialect.StreamEvent{Kind: dialect.EventContentBlockDelta, Model: chunk.Model, Delta: dialect.DeltaText, Text: choice.Delta.Content}, nil
	}
	if choice.Delta.Role != "" {
		return &dialect.StreamEvent{Kind: dialect.EventMessageStart, Model: chunk.Model}, nil
	}
	return nil, nil
}

// DecodeAnthropicEvent is a ChunkProcessor TransformFunc for an upstream
// speaking the Anthropic Messages SSE protocol directly (event: <type> plus a
// data: line), the mirror image of EncodeAnthropicEvent.
func DecodeAnthropicEvent(ev Event, client, upstream dialect.Kind) (*dialect.StreamEvent, error) {
	var w anthropicWireEvent
	if err := json.Unmarshal([]byte(ev.Data), &w); err != nil {
		return nil, NewIncompleteJSON(err)
	}

	switch w.Type {
	case "message_start":
		if w.Message == nil {
			return nil, &ValidationError{Reason: "message_start without message field"}
		}
		return &dialect.StreamEvent{Kind: dialect.EventMessageStart, MessageID: w.Message.ID, Model: w.Message.Model}, nil
	case "content_block_start":
		idx := 0
		if w.Index != nil {
			idx = *w.Index
		}
		blockType := ""
		if w.ContentBlock != nil {
			blockType = w.ContentBlock.Type
		}
		return &dialect.StreamEvent{Kind: dialect.EventContentBlockStart, Index: idx, BlockType: blockType}, nil
	case "content_block_delta":
		idx := 0
		if w.Index != nil {
			idx = *w.Index
		}
		out := &dialect.StreamEvent{Kind: dialect.EventContentBlockDelta, Index: idx}
		if w.Delta == nil {
			return nil, &ValidationError{Reason: "content_block_delta without delta field"}
		}
		switch w.Delta.Type {
		case "text_delta":
			out.Delta, out.Text = dialect.DeltaText, w.Delta.Text
		case "input_json_delta":
			out.Delta, out.PartialArg = dialect.DeltaInputJSON, w.Delta.PartialJSON
		case "thinking_delta":
			out.Delta, out.Text = dialect.DeltaThinking, w.Delta.Text
		case "signature_delta":
			out.Delta = dialect.DeltaSignature
		default:
			return nil, &ValidationError{Reason: "unsupported delta type " + w.Delta.Type}
		}
		return out, nil
	case "content_block_stop":
		idx := 0
		if w.Index != nil {
			idx = *w.Index
		}
		return &dialect.StreamEvent{Kind: dialect.EventContentBlockStop, Index: idx}, nil
	case "message_delta":
		out := &dialect.StreamEvent{Kind: dialect.EventMessageDelta}
		if w.Delta != nil {
			out.StopReason = w.Delta.StopReason
		}
		if w.Usage != nil {
			out.Usage = &dialect.Usage{InputTokens: w.Usage.InputTokens, OutputTokens: w.Usage.OutputTokens}
		}
		return out, nil
	case "message_stop":
		return &dialect.StreamEvent{Kind: dialect.EventMessageStop}, nil
	case "ping":
		return &dialect.StreamEvent{Kind: dialect.EventPing}, nil
	default:
		return nil, &ValidationError{Reason: "unrecognized anthropic event type " + w.Type}
	}
}

// SelectDecoder returns the TransformFunc appropriate for an upstream
// dialect speaking textual SSE. Bedrock's ConverseStream uses AWS's binary
// event-stream framing rather than SSE text and is decoded separately via
// the AWS SDK's own stream reader (see internal/proxy's upstream dispatch).
func SelectDecoder(upstream dialect.Kind) TransformFunc {
	switch upstream {
	case dialect.KindAnthropicMessages:
		return DecodeAnthropicEvent
	default:
		return DecodeOpenAIChatEvent
	}
}
