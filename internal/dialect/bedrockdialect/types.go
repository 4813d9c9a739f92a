// Package bedrockdialect wraps github.com/aws/aws-sdk-go-v2/service/bedrockruntime
// (and its types/document subpackages) directly as the Bedrock Converse /
// ConverseStream dialect, mirroring how goadesign-goa-ai's bedrock model
// client reuses the AWS SDK's own request/response shapes rather than
// defining parallel structs.
package bedrockdialect

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/relaygate/relaygate/internal/dialect"
)

// Request wraps a Converse or ConverseStream input; exactly one of Converse
// or ConverseStream is set, distinguished by Streaming.
type Request struct {
	ModelID      string
	Converse     *bedrockruntime.ConverseInput
	ConverseStream *bedrockruntime.ConverseStreamInput
	Streaming    bool
}

var _ dialect.Accessors = (*Accessor)(nil)

// Accessor adapts a *Request to dialect.Accessors.
type Accessor struct {
	Req *Request
}

func (a *Accessor) Model() string { return a.Req.ModelID }

func (a *Accessor) SetModel(m string) {
	a.Req.ModelID = m
	if a.Req.Converse != nil {
		a.Req.Converse.ModelId = &m
	}
	if a.Req.ConverseStream != nil {
		a.Req.ConverseStream.ModelId = &m
	}
}

func (a *Accessor) IsStreaming() bool { return a.Req.Streaming }

func (a *Accessor) messages() []brtypes.Message {
	if a.Req.Streaming {
		if a.Req.ConverseStream != nil {
			return a.Req.ConverseStream.Messages
		}
		return nil
	}
	if a.Req.Converse != nil {
		return a.Req.Converse.Messages
	}
	return nil
}

func (a *Accessor) setMessages(msgs []brtypes.Message) {
	if a.Req.Streaming && a.Req.ConverseStream != nil {
		a.Req.ConverseStream.Messages = msgs
		return
	}
	if a.Req.Converse != nil {
		a.Req.Converse.Messages = msgs
	}
}

func (a *Accessor) system() []brtypes.SystemContentBlock {
	if a.Req.Streaming && a.Req.ConverseStream != nil {
		return a.Req.ConverseStream.System
	}
	if a.Req.Converse != nil {
		return a.Req.Converse.System
	}
	return nil
}

func (a *Accessor) setSystem(sys []brtypes.SystemContentBlock) {
	if a.Req.Streaming && a.Req.ConverseStream != nil {
		a.Req.ConverseStream.System = sys
		return
	}
	if a.Req.Converse != nil {
		a.Req.Converse.System = sys
	}
}

func (a *Accessor) toolConfig() *brtypes.ToolConfiguration {
	if a.Req.Streaming && a.Req.ConverseStream != nil {
		return a.Req.ConverseStream.ToolConfig
	}
	if a.Req.Converse != nil {
		return a.Req.Converse.ToolConfig
	}
	return nil
}

// Messages surfaces the dedicated System blocks as a leading role=system
// message, matching the uniform dialect.Accessors contract.
func (a *Accessor) Messages() []dialect.Message {
	out := make([]dialect.Message, 0, len(a.messages())+1)
	if sys := systemText(a.system()); sys != "" {
		out = append(out, dialect.Message{Role: dialect.RoleSystem, Text: sys})
	}
	for _, m := range a.messages() {
		out = append(out, fromMessage(m))
	}
	return out
}

func (a *Accessor) SetMessages(msgs []dialect.Message) {
	var systemParts []string
	var converted []brtypes.Message
	for _, m := range msgs {
		if m.Role == dialect.RoleSystem || m.Role == dialect.RoleDeveloper {
			if t := m.FlattenText(); t != "" {
				systemParts = append(systemParts, t)
			}
			continue
		}
		converted = append(converted, toMessage(m))
	}
	if len(systemParts) > 0 {
		a.setSystem([]brtypes.SystemContentBlock{&brtypes.SystemContentBlockMemberText{Value: strings.Join(systemParts, "\n")}})
	}
	a.setMessages(converted)
}

func (a *Accessor) ExtractRecentUserMessage() string {
	msgs := a.messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == brtypes.ConversationRoleUser {
			return fromMessage(msgs[i]).FlattenText()
		}
	}
	return ""
}

func (a *Accessor) ExtractMessagesText() string {
	var out string
	if sys := systemText(a.system()); sys != "" {
		out = sys
	}
	for _, m := range a.messages() {
		t := fromMessage(m).FlattenText()
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
	tc := a.toolConfig()
	if tc == nil {
		return nil
	}
	var names []string
	for _, t := range tc.Tools {
		if spec, ok := t.(*brtypes.ToolMemberToolSpec); ok && spec.Value.Name != nil {
			names = append(names, *spec.Value.Name)
		}
	}
	return names
}

// Metadata has no direct Bedrock Converse equivalent; returns empty.
func (a *Accessor) Metadata() map[string]any   { return map[string]any{} }
func (a *Accessor) RemoveMetadataKey(string)   {}

func systemText(blocks []brtypes.SystemContentBlock) string {
	var parts []string
	for _, b := range blocks {
		if t, ok := b.(*brtypes.SystemContentBlockMemberText); ok {
			parts = append(parts, t.Value)
		}
	}
	return strings.Join(parts, "\n")
}

func fromMessage(m brtypes.Message) dialect.Message {
	role := dialect.RoleUser
	if m.Role == brtypes.ConversationRoleAssistant {
		role = dialect.RoleAssistant
	}
	cm := dialect.Message{Role: role}
	var textParts []string
	for _, block := range m.Content {
		switch v := block.(type) {
		case *brtypes.ContentBlockMemberText:
			textParts = append(textParts, v.Value)
		case *brtypes.ContentBlockMemberToolUse:
			cm.ToolCalls = append(cm.ToolCalls, dialect.ToolCall{
				ID:        aws(v.Value.ToolUseId),
				Name:      aws(v.Value.Name),
				Arguments: dialect.MarshalArguments(decodeDocument(v.Value.Input)),
			})
		case *brtypes.ContentBlockMemberToolResult:
			cm.Role = dialect.RoleTool
			cm.ToolCallID = aws(v.Value.ToolUseId)
			for _, c := range v.Value.Content {
				if t, ok := c.(*brtypes.ToolResultContentBlockMemberText); ok {
					textParts = append(textParts, t.Value)
				}
			}
		case *brtypes.ContentBlockMemberImage:
			cm.Parts = append(cm.Parts, imagePartFromBlock(v.Value))
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

func imagePartFromBlock(img brtypes.ImageBlock) dialect.ContentPart {
	p := dialect.ContentPart{Type: dialect.PartImageRef}
	if src, ok := img.Source.(*brtypes.ImageSourceMemberBytes); ok {
		p.ImageBase64 = string(src.Value)
	}
	p.ImageMediaType = "image/" + string(img.Format)
	return p
}

func toMessage(m dialect.Message) brtypes.Message {
	var blocks []brtypes.ContentBlock
	if m.Role == dialect.RoleTool {
		blocks = append(blocks, &brtypes.ContentBlockMemberToolResult{Value: brtypes.ToolResultBlock{
			ToolUseId: strPtr(m.ToolCallID),
			Content:   []brtypes.ToolResultContentBlock{&brtypes.ToolResultContentBlockMemberText{Value: m.FlattenText()}},
		}})
		return brtypes.Message{Role: brtypes.ConversationRoleUser, Content: blocks}
	}
	if m.HasParts() {
		for _, p := range m.Parts {
			switch p.Type {
			case dialect.PartText:
				blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: p.Text})
			case dialect.PartImageRef:
				blocks = append(blocks, &brtypes.ContentBlockMemberImage{Value: brtypes.ImageBlock{
					Source: &brtypes.ImageSourceMemberBytes{Value: []byte(p.ImageBase64)},
				}})
			}
		}
	} else if m.Text != "" {
		blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: m.Text})
	}
	for _, tc := range m.ToolCalls {
		blocks = append(blocks, &brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
			ToolUseId: strPtr(tc.ID),
			Name:      strPtr(tc.Name),
			Input:     document.NewLazyDocument(dialect.UnmarshalArguments(tc.Arguments)),
		}})
	}
	role := brtypes.ConversationRoleUser
	if m.Role == dialect.RoleAssistant {
		role = brtypes.ConversationRoleAssistant
	}
	return brtypes.Message{Role: role, Content: blocks}
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

func aws(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func strPtr(s string) *string { return &s }
