// Package openaichat holds the OpenAI Chat Completions wire types and the
// dialect.Accessors implementation over them.
//
// These structs are hand-written rather than generated: the teacher's
// equivalent OpenAI types (internal/openaiadapter) are produced by
// oapi-codegen from an OpenAPI document, and neither the generator nor that
// document are available here. Field names and JSON tags follow the public
// OpenAI Chat Completions API as consumed elsewhere in the retrieval pack.
package openaichat

import (
	"encoding/json"

	"github.com/relaygate/relaygate/internal/dialect"
)

// Request is a POST /v1/chat/completions body.
type Request struct {
	Model            string          `json:"model"`
	Messages         []RequestMessage `json:"messages"`
	Stream           bool            `json:"stream,omitempty"`
	Temperature      *float64        `json:"temperature,omitempty"`
	TopP             *float64        `json:"top_p,omitempty"`
	MaxTokens        *int64          `json:"max_tokens,omitempty"`
	MaxCompletionTokens *int64       `json:"max_completion_tokens,omitempty"`
	Tools            []Tool          `json:"tools,omitempty"`
	ToolChoice       json.RawMessage `json:"tool_choice,omitempty"`
	StopSequences    []string        `json:"stop,omitempty"`
	User             string          `json:"user,omitempty"`
	Metadata         map[string]any  `json:"metadata,omitempty"`
	ParallelToolCalls *bool          `json:"parallel_tool_calls,omitempty"`
}

// RequestMessage is one element of Request.Messages. Content is kept as
// json.RawMessage because OpenAI allows either a plain string or an array
// of content parts; ContentText/ContentParts are populated by UnmarshalJSON
// for convenient access.
type RequestMessage struct {
	Role       string          `json:"role"`
	Content    json.RawMessage `json:"content,omitempty"`
	Name       string          `json:"name,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCallWire  `json:"tool_calls,omitempty"`

	contentText  string
	contentParts []ContentPart
	hasParts     bool
}

// ContentPart mirrors OpenAI's multi-part content array element.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL is the nested shape OpenAI uses for image content parts.
type ImageURL struct {
	URL string `json:"url"`
}

// ToolCallWire is an OpenAI tool_calls[] entry.
type ToolCallWire struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall is the nested function name/arguments pair.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool is a function-tool declaration.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction is the nested tool schema.
type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// UnmarshalJSON decodes RequestMessage, resolving Content into either plain
// text or a parts list.
func (m *RequestMessage) UnmarshalJSON(data []byte) error {
	type alias RequestMessage
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*m = RequestMessage(a)
	if len(m.Content) == 0 {
		return nil
	}
	var asString string
	if err := json.Unmarshal(m.Content, &asString); err == nil {
		m.contentText = asString
		return nil
	}
	var asParts []ContentPart
	if err := json.Unmarshal(m.Content, &asParts); err == nil {
		m.contentParts = asParts
		m.hasParts = true
	}
	return nil
}

// MarshalJSON re-encodes Content from whichever of contentText/contentParts
// is populated.
func (m RequestMessage) MarshalJSON() ([]byte, error) {
	type alias RequestMessage
	a := alias(m)
	if m.hasParts {
		b, err := json.Marshal(m.contentParts)
		if err != nil {
			return nil, err
		}
		a.Content = b
	} else if m.contentText != "" || len(m.Content) == 0 {
		b, err := json.Marshal(m.contentText)
		if err != nil {
			return nil, err
		}
		a.Content = b
	}
	return json.Marshal(a)
}

// SetText sets plain-text content, clearing any parts representation.
func (m *RequestMessage) SetText(s string) {
	m.contentText = s
	m.contentParts = nil
	m.hasParts = false
}

// SetParts sets multi-part content.
func (m *RequestMessage) SetParts(parts []ContentPart) {
	m.contentParts = parts
	m.hasParts = true
}

// Text returns the plain-text content, flattening parts if that's the
// representation in use.
func (m RequestMessage) Text() string {
	if !m.hasParts {
		return m.contentText
	}
	var out string
	for _, p := range m.contentParts {
		if p.Type == "text" {
			if out != "" {
				out += "\n"
			}
			out += p.Text
		}
	}
	return out
}

// Parts returns the content parts, or nil if the message used plain text.
func (m RequestMessage) Parts() []ContentPart {
	if !m.hasParts {
		return nil
	}
	return m.contentParts
}

// Response is a non-streaming chat completions response.
type Response struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []Choice       `json:"choices"`
	Usage   *ResponseUsage `json:"usage,omitempty"`
}

// Choice is one completion choice.
type Choice struct {
	Index        int            `json:"index"`
	Message      RequestMessage `json:"message"`
	FinishReason string         `json:"finish_reason"`
}

// ResponseUsage mirrors OpenAI's usage object.
type ResponseUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Chunk is a streaming chat.completion.chunk event's data payload.
type Chunk struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []ChunkChoice  `json:"choices"`
	Usage   *ResponseUsage `json:"usage,omitempty"`
}

// ChunkChoice is one choice within a streaming chunk.
type ChunkChoice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// Delta is the incremental content of a streaming choice.
type Delta struct {
	Role      string         `json:"role,omitempty"`
	Content   string         `json:"content,omitempty"`
	ToolCalls []ToolCallDelta `json:"tool_calls,omitempty"`
}

// ToolCallDelta is an incremental tool_calls[] fragment; Index identifies
// which tool call within the choice this fragment continues.
type ToolCallDelta struct {
	Index    int           `json:"index"`
	ID       string        `json:"id,omitempty"`
	Type     string        `json:"type,omitempty"`
	Function *FunctionCall `json:"function,omitempty"`
}

var _ dialect.Accessors = (*Accessor)(nil)

// Accessor adapts a *Request to dialect.Accessors.
type Accessor struct {
	Req *Request
}

func (a *Accessor) Model() string     { return a.Req.Model }
func (a *Accessor) SetModel(m string) { a.Req.Model = m }
func (a *Accessor) IsStreaming() bool { return a.Req.Stream }

func (a *Accessor) Messages() []dialect.Message {
	out := make([]dialect.Message, 0, len(a.Req.Messages))
	for _, m := range a.Req.Messages {
		out = append(out, fromWireMessage(m))
	}
	return out
}

func (a *Accessor) SetMessages(msgs []dialect.Message) {
	wire := make([]RequestMessage, 0, len(msgs))
	for _, m := range msgs {
		wire = append(wire, toWireMessage(m))
	}
	a.Req.Messages = wire
}

func (a *Accessor) ExtractRecentUserMessage() string {
	for i := len(a.Req.Messages) - 1; i >= 0; i-- {
		if a.Req.Messages[i].Role == "user" {
			return a.Req.Messages[i].Text()
		}
	}
	return ""
}

func (a *Accessor) ExtractMessagesText() string {
	var out string
	for _, m := range a.Req.Messages {
		if out != "" {
			out += "\n"
		}
		out += m.Text()
	}
	return out
}

func (a *Accessor) GetToolNames() []string {
	names := make([]string, 0, len(a.Req.Tools))
	for _, t := range a.Req.Tools {
		names = append(names, t.Function.Name)
	}
	return names
}

func (a *Accessor) Metadata() map[string]any {
	if a.Req.Metadata == nil {
		return map[string]any{}
	}
	return a.Req.Metadata
}

func (a *Accessor) RemoveMetadataKey(key string) {
	if a.Req.Metadata == nil {
		return
	}
	delete(a.Req.Metadata, key)
}

func fromWireMessage(m RequestMessage) dialect.Message {
	cm := dialect.Message{
		Role:       dialect.Role(m.Role),
		Name:       m.Name,
		ToolCallID: m.ToolCallID,
	}
	if parts := m.Parts(); parts != nil {
		cm.Parts = make([]dialect.ContentPart, 0, len(parts))
		for _, p := range parts {
			if p.Type == "image_url" && p.ImageURL != nil {
				cm.Parts = append(cm.Parts, dialect.ContentPart{Type: dialect.PartImageRef, ImageURL: p.ImageURL.URL})
				continue
			}
			cm.Parts = append(cm.Parts, dialect.ContentPart{Type: dialect.PartText, Text: p.Text})
		}
	} else {
		cm.Text = m.Text()
	}
	for _, tc := range m.ToolCalls {
		cm.ToolCalls = append(cm.ToolCalls, dialect.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}
	return cm
}

func toWireMessage(m dialect.Message) RequestMessage {
	wm := RequestMessage{
		Role:       string(m.Role),
		Name:       m.Name,
		ToolCallID: m.ToolCallID,
	}
	if m.HasParts() {
		parts := make([]ContentPart, 0, len(m.Parts))
		for _, p := range m.Parts {
			if p.Type == dialect.PartImageRef {
				parts = append(parts, ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: p.ImageURL}})
				continue
			}
			parts = append(parts, ContentPart{Type: "text", Text: p.Text})
		}
		wm.SetParts(parts)
	} else {
		wm.SetText(m.Text)
	}
	for _, tc := range m.ToolCalls {
		wm.ToolCalls = append(wm.ToolCalls, ToolCallWire{
			ID:   tc.ID,
			Type: "function",
			Function: FunctionCall{Name: tc.Name, Arguments: tc.Arguments},
		})
	}
	return wm
}
