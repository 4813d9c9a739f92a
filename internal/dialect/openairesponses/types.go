// Package openairesponses holds the OpenAI Responses API wire types and the
// dialect.Accessors implementation over them. Hand-written for the same
// reason as openaichat: no generator/OpenAPI doc is available to reproduce
// oapi-codegen's exact output, so plain structs with manual JSON tags are
// used instead, matching the public Responses API shape as exercised
// elsewhere in the retrieval pack.
package openairesponses

import (
	"encoding/json"

	"github.com/relaygate/relaygate/internal/dialect"
)

// Request is a POST /v1/responses body. Input may be a plain string or an
// ordered list of InputItem; InputText/InputItems are resolved by
// UnmarshalJSON.
type Request struct {
	Model              string          `json:"model"`
	Input              json.RawMessage `json:"input"`
	Stream             bool            `json:"stream,omitempty"`
	Temperature        *float64        `json:"temperature,omitempty"`
	TopP               *float64        `json:"top_p,omitempty"`
	PreviousResponseID string          `json:"previous_response_id,omitempty"`
	Tools              []Tool          `json:"tools,omitempty"`
	Metadata           map[string]any  `json:"metadata,omitempty"`

	inputText  string
	inputItems []InputItem
	hasItems   bool
}

// InputItem is a Responses API input item: a role-tagged message with
// content parts.
type InputItem struct {
	Type    string        `json:"type,omitempty"` // "message" when role-shaped
	Role    string        `json:"role"`
	Content []InputContent `json:"content"`
}

// InputContent is one content part of an InputItem.
type InputContent struct {
	Type string `json:"type"` // "input_text", "input_image", "input_audio"
	Text string `json:"text,omitempty"`
	// ImageURL is used for type=input_image.
	ImageURL string `json:"image_url,omitempty"`
}

// Tool is a function-tool declaration in Responses API shape (flatter than
// Chat Completions: name/parameters live at the top level, not nested under
// "function").
type Tool struct {
	Type        string         `json:"type"`
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

func (r *Request) UnmarshalJSON(data []byte) error {
	type alias Request
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = Request(a)
	if len(r.Input) == 0 {
		return nil
	}
	var asString string
	if err := json.Unmarshal(r.Input, &asString); err == nil {
		r.inputText = asString
		return nil
	}
	var asItems []InputItem
	if err := json.Unmarshal(r.Input, &asItems); err == nil {
		r.inputItems = asItems
		r.hasItems = true
	}
	return nil
}

func (r Request) MarshalJSON() ([]byte, error) {
	type alias Request
	a := alias(r)
	if r.hasItems {
		b, err := json.Marshal(r.inputItems)
		if err != nil {
			return nil, err
		}
		a.Input = b
	} else {
		b, err := json.Marshal(r.inputText)
		if err != nil {
			return nil, err
		}
		a.Input = b
	}
	return json.Marshal(a)
}

// InputItems returns the structured input items, synthesizing a single
// user-role item from InputText when the request used the plain-string
// input form.
func (r Request) InputItems() []InputItem {
	if r.hasItems {
		return r.inputItems
	}
	if r.inputText == "" {
		return nil
	}
	return []InputItem{{Type: "message", Role: "user", Content: []InputContent{{Type: "input_text", Text: r.inputText}}}}
}

// SetInputItems sets structured input, clearing the plain-text form.
func (r *Request) SetInputItems(items []InputItem) {
	r.inputItems = items
	r.hasItems = true
}

// OutputItem is one element of Response.Output: either a Message (role,
// content parts, or refusal) or a FunctionCall.
type OutputItem struct {
	Type    string         `json:"type"` // "message" or "function_call"
	ID      string         `json:"id,omitempty"`
	Role    string         `json:"role,omitempty"`
	Content []OutputContent `json:"content,omitempty"`
	Status  string         `json:"status,omitempty"`

	// FunctionCall fields, present when Type == "function_call".
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// OutputContent is a Message output item's content part.
type OutputContent struct {
	Type    string `json:"type"` // "output_text" or "refusal"
	Text    string `json:"text,omitempty"`
	Refusal string `json:"refusal,omitempty"`
}

// Response is a non-streaming Responses API response.
type Response struct {
	ID        string         `json:"id"`
	Object    string         `json:"object"`
	CreatedAt int64          `json:"created_at"`
	Model     string         `json:"model"`
	Status    string         `json:"status"`
	Output    []OutputItem   `json:"output"`
	Usage     *ResponseUsage `json:"usage,omitempty"`
}

// ResponseUsage mirrors the Responses API usage object shape.
type ResponseUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// ToInputItem converts an OutputItem to the InputItem it synthesizes for a
// subsequent turn's conversation state, per the output->input mapping rule:
// Message -> InputMessage preserving role/text; FunctionCall -> synthetic
// assistant message "Called function: <name> with arguments: <args>";
// refusals are dropped (ok=false).
func (o OutputItem) ToInputItem() (item InputItem, ok bool) {
	switch o.Type {
	case "message":
		var text string
		for _, c := range o.Content {
			if c.Type == "refusal" {
				return InputItem{}, false
			}
			if c.Type == "output_text" {
				if text != "" {
					text += "\n"
				}
				text += c.Text
			}
		}
		role := o.Role
		if role == "" {
			role = "assistant"
		}
		return InputItem{Type: "message", Role: role, Content: []InputContent{{Type: "input_text", Text: text}}}, true
	case "function_call":
		text := "Called function: " + o.Name + " with arguments: " + o.Arguments
		return InputItem{Type: "message", Role: "assistant", Content: []InputContent{{Type: "input_text", Text: text}}}, true
	default:
		return InputItem{}, false
	}
}

var _ dialect.Accessors = (*Accessor)(nil)

// Accessor adapts a *Request to dialect.Accessors. Responses API requests
// have no system-role concept distinct from a regular input item, so
// SetMessages/Messages pass role=system items through unchanged rather than
// splitting them (the Anthropic-specific splitting rule in the dialect
// contract applies only to that dialect).
type Accessor struct {
	Req *Request
}

func (a *Accessor) Model() string     { return a.Req.Model }
func (a *Accessor) SetModel(m string) { a.Req.Model = m }
func (a *Accessor) IsStreaming() bool { return a.Req.Stream }

func (a *Accessor) Messages() []dialect.Message {
	items := a.Req.InputItems()
	out := make([]dialect.Message, 0, len(items))
	for _, it := range items {
		out = append(out, fromInputItem(it))
	}
	return out
}

func (a *Accessor) SetMessages(msgs []dialect.Message) {
	items := make([]InputItem, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, toInputItem(m))
	}
	a.Req.SetInputItems(items)
}

func (a *Accessor) ExtractRecentUserMessage() string {
	items := a.Req.InputItems()
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Role == "user" {
			return flattenInputContent(items[i].Content)
		}
	}
	return ""
}

func (a *Accessor) ExtractMessagesText() string {
	var out string
	for _, it := range a.Req.InputItems() {
		if out != "" {
			out += "\n"
		}
		out += flattenInputContent(it.Content)
	}
	return out
}

func (a *Accessor) GetToolNames() []string {
	names := make([]string, 0, len(a.Req.Tools))
	for _, t := range a.Req.Tools {
		names = append(names, t.Name)
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

func flattenInputContent(parts []InputContent) string {
	var out string
	for _, p := range parts {
		if p.Type == "input_text" {
			if out != "" {
				out += "\n"
			}
			out += p.Text
		}
	}
	return out
}

func fromInputItem(it InputItem) dialect.Message {
	m := dialect.Message{Role: dialect.Role(it.Role)}
	hasImage := false
	for _, p := range it.Content {
		if p.Type == "input_image" {
			hasImage = true
			break
		}
	}
	if hasImage {
		for _, p := range it.Content {
			switch p.Type {
			case "input_text":
				m.Parts = append(m.Parts, dialect.ContentPart{Type: dialect.PartText, Text: p.Text})
			case "input_image":
				m.Parts = append(m.Parts, dialect.ContentPart{Type: dialect.PartImageRef, ImageURL: p.ImageURL})
			}
		}
	} else {
		m.Text = flattenInputContent(it.Content)
	}
	return m
}

func toInputItem(m dialect.Message) InputItem {
	it := InputItem{Type: "message", Role: string(m.Role)}
	if m.HasParts() {
		for _, p := range m.Parts {
			if p.Type == dialect.PartImageRef {
				it.Content = append(it.Content, InputContent{Type: "input_image", ImageURL: p.ImageURL})
				continue
			}
			it.Content = append(it.Content, InputContent{Type: "input_text", Text: p.Text})
		}
	} else {
		it.Content = []InputContent{{Type: "input_text", Text: m.Text}}
	}
	return it
}
