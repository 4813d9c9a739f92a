// Package anthropicdialect wraps github.com/anthropics/anthropic-sdk-go's
// request/response param types directly as the Anthropic Messages dialect,
// the same idiom the teacher uses: the official SDK types double as the
// wire-format structs for both calling Anthropic and representing this
// dialect inside the gateway.
package anthropicdialect

import (
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/relaygate/relaygate/internal/dialect"
)

// Request wraps anthropic.MessageNewParams plus the streaming flag the SDK
// param type itself does not carry (streaming is a choice of SDK method,
// Messages.New vs Messages.NewStreaming, not a field).
type Request struct {
	Params   anthropic.MessageNewParams
	Streaming bool
}

var _ dialect.Accessors = (*Accessor)(nil)

// Accessor adapts a *Request to dialect.Accessors.
type Accessor struct {
	Req *Request
}

func (a *Accessor) Model() string     { return string(a.Req.Params.Model) }
func (a *Accessor) SetModel(m string) { a.Req.Params.Model = anthropic.Model(m) }
func (a *Accessor) IsStreaming() bool { return a.Req.Streaming }

// Messages returns the canonical message list, surfacing the dedicated
// System field (if set) as a leading role=system message so callers see one
// uniform view across dialects.
func (a *Accessor) Messages() []dialect.Message {
	out := make([]dialect.Message, 0, len(a.Req.Params.Messages)+1)
	if sys := systemText(a.Req.Params.System); sys != "" {
		out = append(out, dialect.Message{Role: dialect.RoleSystem, Text: sys})
	}
	for _, m := range a.Req.Params.Messages {
		out = append(out, fromMessageParam(m))
	}
	return out
}

// SetMessages splits out role=system messages into the dedicated System
// field, concatenating their text with newlines, per the dialect model's
// required Anthropic behavior.
func (a *Accessor) SetMessages(msgs []dialect.Message) {
	var systemParts []string
	var converted []anthropic.MessageParam
	for _, m := range msgs {
		if m.Role == dialect.RoleSystem || m.Role == dialect.RoleDeveloper {
			if t := m.FlattenText(); t != "" {
				systemParts = append(systemParts, t)
			}
			continue
		}
		converted = append(converted, toMessageParam(m))
	}
	if len(systemParts) > 0 {
		a.Req.Params.System = []anthropic.TextBlockParam{{Text: strings.Join(systemParts, "\n")}}
	}
	a.Req.Params.Messages = converted
}

func (a *Accessor) ExtractRecentUserMessage() string {
	for i := len(a.Req.Params.Messages) - 1; i >= 0; i-- {
		if a.Req.Params.Messages[i].Role == anthropic.MessageParamRoleUser {
			return fromMessageParam(a.Req.Params.Messages[i]).FlattenText()
		}
	}
	return ""
}

func (a *Accessor) ExtractMessagesText() string {
	var out string
	if sys := systemText(a.Req.Params.System); sys != "" {
		out = sys
	}
	for _, m := range a.Req.Params.Messages {
		t := fromMessageParam(m).FlattenText()
		if t == "" {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += t
	}
	return out
}

func (a *Accessor) GetToolNames() []string {
	names := make([]string, 0, len(a.Req.Params.Tools))
	for _, t := range a.Req.Params.Tools {
		if t.OfTool != nil {
			names = append(names, t.OfTool.Name)
		}
	}
	return names
}

func (a *Accessor) Metadata() map[string]any {
	if a.Req.Params.Metadata.UserID.Value == "" {
		return map[string]any{}
	}
	return map[string]any{"user_id": a.Req.Params.Metadata.UserID.Value}
}

func (a *Accessor) RemoveMetadataKey(key string) {
	if key == "user_id" {
		a.Req.Params.Metadata.UserID = anthropic.String("")
	}
}

func systemText(sys []anthropic.TextBlockParam) string {
	var parts []string
	for _, b := range sys {
		if b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func fromMessageParam(m anthropic.MessageParam) dialect.Message {
	role := dialect.RoleUser
	if m.Role == anthropic.MessageParamRoleAssistant {
		role = dialect.RoleAssistant
	}
	cm := dialect.Message{Role: role}
	var textParts []string
	for _, block := range m.Content {
		switch {
		case block.OfText != nil:
			textParts = append(textParts, block.OfText.Text)
		case block.OfToolUse != nil:
			cm.ToolCalls = append(cm.ToolCalls, dialect.ToolCall{
				ID:        block.OfToolUse.ID,
				Name:      block.OfToolUse.Name,
				Arguments: dialect.MarshalArguments(block.OfToolUse.Input),
			})
		case block.OfToolResult != nil:
			cm.Role = dialect.RoleTool
			cm.ToolCallID = block.OfToolResult.ToolUseID
			for _, c := range block.OfToolResult.Content {
				if c.OfText != nil {
					textParts = append(textParts, c.OfText.Text)
				}
			}
		case block.OfImage != nil:
			cm.Parts = append(cm.Parts, imagePartFromBlock(*block.OfImage))
		}
	}
	if len(cm.Parts) > 0 {
		for _, t := range textParts {
			cm.Parts = append(cm.Parts, dialect.ContentPart{Type: dialect.PartText, Text: t})
		}
	} else {
		cm.Text = strings.Join(textParts, "\n")
	}
	return cm
}

func imagePartFromBlock(img anthropic.ImageBlockParam) dialect.ContentPart {
	p := dialect.ContentPart{Type: dialect.PartImageRef}
	if img.Source.OfBase64 != nil {
		p.ImageBase64 = img.Source.OfBase64.Data
		p.ImageMediaType = string(img.Source.OfBase64.MediaType)
	} else if img.Source.OfURL != nil {
		p.ImageURL = img.Source.OfURL.URL
	}
	return p
}

func toMessageParam(m dialect.Message) anthropic.MessageParam {
	var blocks []anthropic.ContentBlockParamUnion
	if m.Role == dialect.RoleTool {
		blocks = append(blocks, anthropic.NewToolResultBlock(m.ToolCallID, m.FlattenText(), false))
		return anthropic.NewUserMessage(blocks...)
	}
	if m.HasParts() {
		for _, p := range m.Parts {
			switch p.Type {
			case dialect.PartText:
				blocks = append(blocks, anthropic.NewTextBlock(p.Text))
			case dialect.PartImageRef:
				blocks = append(blocks, imageBlockFromPart(p))
			}
		}
	} else if m.Text != "" {
		blocks = append(blocks, anthropic.NewTextBlock(m.Text))
	}
	for _, tc := range m.ToolCalls {
		blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, dialect.UnmarshalArguments(tc.Arguments), tc.Name))
	}
	if m.Role == dialect.RoleAssistant {
		return anthropic.NewAssistantMessage(blocks...)
	}
	return anthropic.NewUserMessage(blocks...)
}

func imageBlockFromPart(p dialect.ContentPart) anthropic.ContentBlockParamUnion {
	if p.ImageBase64 != "" {
		return anthropic.NewImageBlockBase64(p.ImageMediaType, p.ImageBase64)
	}
	return anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: p.ImageURL})
}

// Response wraps anthropic.Message, the SDK's non-streaming response type,
// reused directly as this dialect's response shape.
type Response struct {
	Message anthropic.Message
}

// FlattenText concatenates the response's text content blocks.
func (r Response) FlattenText() string {
	var parts []string
	for _, block := range r.Message.Content {
		if t, ok := block.AsAny().(anthropic.TextBlock); ok && t.Text != "" {
			parts = append(parts, t.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ToolCalls extracts tool_use blocks from the response content.
func (r Response) ToolCalls() []dialect.ToolCall {
	var out []dialect.ToolCall
	for _, block := range r.Message.Content {
		if tu, ok := block.AsAny().(anthropic.ToolUseBlock); ok {
			out = append(out, dialect.ToolCall{ID: tu.ID, Name: tu.Name, Arguments: dialect.MarshalArguments(tu.Input)})
		}
	}
	return out
}

// Usage converts the response's usage block to the canonical shape,
// preserving Anthropic's cache-token fields.
func (r Response) Usage() dialect.Usage {
	u := r.Message.Usage
	return dialect.Usage{
		InputTokens:              int(u.InputTokens),
		OutputTokens:             int(u.OutputTokens),
		CacheReadInputTokens:     int(u.CacheReadInputTokens),
		CacheCreationInputTokens: int(u.CacheCreationInputTokens),
	}
}
