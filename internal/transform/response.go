package transform

import (
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go/document"

	"github.com/relaygate/relaygate/internal/dialect"
	"github.com/relaygate/relaygate/internal/dialect/anthropicdialect"
	"github.com/relaygate/relaygate/internal/dialect/openaichat"
	"github.com/relaygate/relaygate/internal/dialect/openairesponses"
)

// CanonicalResponse is the dialect-independent shape every non-streaming
// response transform routes through, mirroring the Envelope hub-and-spoke
// approach used for requests.
type CanonicalResponse struct {
	Model      string
	Text       string
	ToolCalls  []dialect.ToolCall
	StopReason string
	Usage      dialect.Usage
}

// FromAnthropic builds a CanonicalResponse from the Anthropic dialect's
// Response wrapper.
func FromAnthropic(r anthropicdialect.Response) CanonicalResponse {
	return CanonicalResponse{
		Model:      string(r.Message.Model),
		Text:       r.FlattenText(),
		ToolCalls:  r.ToolCalls(),
		StopReason: string(r.Message.StopReason),
		Usage:      r.Usage(),
	}
}

// FromOpenAIChat builds a CanonicalResponse from an openaichat.Response,
// taking its first choice (the gateway never requests n>1 completions).
func FromOpenAIChat(r openaichat.Response) CanonicalResponse {
	cr := CanonicalResponse{Model: r.Model}
	if r.Usage != nil {
		cr.Usage = dialect.Usage{InputTokens: r.Usage.PromptTokens, OutputTokens: r.Usage.CompletionTokens}
	}
	if len(r.Choices) == 0 {
		return cr
	}
	choice := r.Choices[0]
	cr.Text = choice.Message.Text()
	cr.StopReason = choice.FinishReason
	for _, tc := range choice.Message.ToolCalls {
		cr.ToolCalls = append(cr.ToolCalls, dialect.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}
	return cr
}

// FromBedrockConverse builds a CanonicalResponse from a Bedrock Converse
// output, following goadesign-goa-ai's translateResponse member-union walk.
func FromBedrockConverse(out *bedrockruntime.ConverseOutput) CanonicalResponse {
	cr := CanonicalResponse{}
	if out == nil {
		return cr
	}
	cr.StopReason = string(out.StopReason)
	if out.Usage != nil {
		cr.Usage = dialect.Usage{InputTokens: int(derefI32(out.Usage.InputTokens)), OutputTokens: int(derefI32(out.Usage.OutputTokens))}
	}
	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return cr
	}
	var texts []string
	for _, block := range msg.Value.Content {
		switch v := block.(type) {
		case *brtypes.ContentBlockMemberText:
			texts = append(texts, v.Value)
		case *brtypes.ContentBlockMemberToolUse:
			cr.ToolCalls = append(cr.ToolCalls, dialect.ToolCall{
				ID:        derefStr(v.Value.ToolUseId),
				Name:      derefStr(v.Value.Name),
				Arguments: dialect.MarshalArguments(decodeDocument(v.Value.Input)),
			})
		}
	}
	for i, t := range texts {
		if i > 0 {
			cr.Text += "\n"
		}
		cr.Text += t
	}
	return cr
}

func decodeDocument(doc document.Interface) any {
	if doc == nil {
		return map[string]any{}
	}
	var v map[string]any
	if err := doc.UnmarshalSmithyDocument(&v); err != nil {
		return map[string]any{}
	}
	return v
}

func derefI32(p *int32) int32 {
	if p == nil {
		return 0
	}
	return *p
}

func derefStr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// ToOpenAIChat builds a non-streaming openaichat.Response from a
// CanonicalResponse, mapping token-usage field names
// ({input,output}_tokens -> {prompt,completion}_tokens).
func ToOpenAIChat(cr CanonicalResponse, id string) openaichat.Response {
	msg := openaichat.RequestMessage{Role: "assistant"}
	msg.SetText(cr.Text)
	for _, tc := range cr.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, openaichat.ToolCallWire{
			ID: tc.ID, Type: "function",
			Function: openaichat.FunctionCall{Name: tc.Name, Arguments: tc.Arguments},
		})
	}
	return openaichat.Response{
		ID:      id,
		Object:  "chat.completion",
		Model:   cr.Model,
		Choices: []openaichat.Choice{{Index: 0, Message: msg, FinishReason: mapStopReasonToOpenAI(cr.StopReason)}},
		Usage: &openaichat.ResponseUsage{
			PromptTokens:     cr.Usage.InputTokens,
			CompletionTokens: cr.Usage.OutputTokens,
			TotalTokens:      cr.Usage.Total(),
		},
	}
}

// AnthropicWireResponse is a hand-written mirror of Anthropic's Messages
// response JSON shape, used only for the direction the SDK was never meant
// to serve: constructing an Anthropic-shaped response body to hand back to
// our own client when the upstream was some other dialect. anthropic.Message
// (the SDK type anthropicdialect.Response wraps) is built for decoding
// Anthropic's own responses; its content-block union fields aren't meant to
// be hand-constructed by callers, so this direction uses a plain struct with
// the matching wire tags instead of forcing the SDK type into a role it
// doesn't support. See DESIGN.md.
type AnthropicWireResponse struct {
	ID         string                  `json:"id"`
	Type       string                  `json:"type"`
	Role       string                  `json:"role"`
	Model      string                  `json:"model"`
	Content    []AnthropicWireContent  `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      AnthropicWireUsage      `json:"usage"`
}

// AnthropicWireContent is one content block of AnthropicWireResponse.
type AnthropicWireContent struct {
	Type  string         `json:"type"`
	Text  string         `json:"text,omitempty"`
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`
}

// AnthropicWireUsage mirrors anthropic.Usage's wire shape.
type AnthropicWireUsage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens,omitempty"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens,omitempty"`
}

// ToAnthropic builds an Anthropic-wire-shaped response from a
// CanonicalResponse, preserving cache-token usage fields when the canonical
// usage carries them (set only when the source was Anthropic itself, since
// no other dialect has a slot for them).
func ToAnthropic(cr CanonicalResponse, id string) AnthropicWireResponse {
	var blocks []AnthropicWireContent
	if cr.Text != "" {
		blocks = append(blocks, AnthropicWireContent{Type: "text", Text: cr.Text})
	}
	for _, tc := range cr.ToolCalls {
		blocks = append(blocks, AnthropicWireContent{Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: dialect.UnmarshalArguments(tc.Arguments)})
	}
	return AnthropicWireResponse{
		ID:         id,
		Type:       "message",
		Role:       "assistant",
		Model:      cr.Model,
		Content:    blocks,
		StopReason: mapStopReasonToAnthropic(cr.StopReason),
		Usage: AnthropicWireUsage{
			InputTokens:              int64(cr.Usage.InputTokens),
			OutputTokens:             int64(cr.Usage.OutputTokens),
			CacheReadInputTokens:     int64(cr.Usage.CacheReadInputTokens),
			CacheCreationInputTokens: int64(cr.Usage.CacheCreationInputTokens),
		},
	}
}

func mapStopReasonToOpenAI(reason string) string {
	switch reason {
	case "end_turn", "stop", "stop_sequence":
		return "stop"
	case "max_tokens", "length":
		return "length"
	case "tool_use", "tool_calls":
		return "tool_calls"
	default:
		if reason == "" {
			return "stop"
		}
		return reason
	}
}

func mapStopReasonToAnthropic(reason string) string {
	switch reason {
	case "stop", "end_turn":
		return "end_turn"
	case "length", "max_tokens":
		return "max_tokens"
	case "tool_calls", "tool_use":
		return "tool_use"
	default:
		if reason == "" {
			return "end_turn"
		}
		return reason
	}
}

// FromResponsesAPI builds a CanonicalResponse from an openairesponses.Response,
// for the (rare) case of an upstream that natively speaks the Responses API.
// Refusal content blocks are dropped, mirroring OutputItem.ToInputItem.
func FromResponsesAPI(r openairesponses.Response) CanonicalResponse {
	cr := CanonicalResponse{Model: r.Model, StopReason: r.Status}
	if r.Usage != nil {
		cr.Usage = dialect.Usage{InputTokens: r.Usage.InputTokens, OutputTokens: r.Usage.OutputTokens}
	}
	for _, item := range r.Output {
		switch item.Type {
		case "message":
			for _, c := range item.Content {
				if c.Type != "output_text" {
					continue
				}
				if cr.Text != "" {
					cr.Text += "\n"
				}
				cr.Text += c.Text
			}
		case "function_call":
			cr.ToolCalls = append(cr.ToolCalls, dialect.ToolCall{ID: item.CallID, Name: item.Name, Arguments: item.Arguments})
		}
	}
	return cr
}

// ToResponsesAPI builds a non-streaming Responses API response from a
// CanonicalResponse; used when the client speaks Responses but the upstream
// is Chat-shaped (i.e. the upstream does not natively speak Responses).
func ToResponsesAPI(cr CanonicalResponse, id string) openairesponses.Response {
	var output []openairesponses.OutputItem
	if cr.Text != "" {
		output = append(output, openairesponses.OutputItem{
			Type: "message", ID: id + "_msg", Role: "assistant", Status: "completed",
			Content: []openairesponses.OutputContent{{Type: "output_text", Text: cr.Text}},
		})
	}
	for i, tc := range cr.ToolCalls {
		output = append(output, openairesponses.OutputItem{
			Type: "function_call", ID: id + "_fc" + strconv.Itoa(i), CallID: tc.ID, Name: tc.Name, Arguments: tc.Arguments, Status: "completed",
		})
	}
	return openairesponses.Response{
		ID: id, Object: "response", Model: cr.Model, Status: "completed", Output: output,
		Usage: &openairesponses.ResponseUsage{InputTokens: cr.Usage.InputTokens, OutputTokens: cr.Usage.OutputTokens, TotalTokens: cr.Usage.Total()},
	}
}
