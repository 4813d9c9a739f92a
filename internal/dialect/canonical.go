// Package dialect defines the canonical, dialect-independent conversation
// model the rest of the gateway operates on, plus the per-wire-dialect
// request/response/stream-event types and the accessors every transform and
// component depends on.
package dialect

import "encoding/json"

// Role is a canonical message role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleDeveloper Role = "developer"
)

// PartType distinguishes the kind of a ContentPart.
type PartType string

const (
	PartText     PartType = "text"
	PartImageRef PartType = "image_ref"
)

// ContentPart is one piece of a message's content when the content is
// represented as an ordered list of parts rather than plain text.
type ContentPart struct {
	Type PartType

	// Text is populated when Type == PartText.
	Text string

	// ImageURL is populated when Type == PartImageRef. It holds either a
	// data: URL or a plain https URL depending on how the source dialect
	// represented the image; transforms normalize it to whichever form the
	// target dialect requires.
	ImageURL string

	// ImageMediaType is the MIME type, used when the target dialect wants a
	// base64+media_type source (Anthropic, Bedrock) rather than a data URL.
	ImageMediaType string

	// ImageBase64 holds the raw base64 payload when known directly (as
	// opposed to embedded in a data: URL string).
	ImageBase64 string
}

// ToolCall is a single function/tool invocation, canonical across dialects.
// Arguments is kept as an opaque JSON string because it may be built
// incrementally during streaming and because the wire dialects disagree on
// whether arguments are a JSON string or an inline JSON value.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Message is one canonical conversation turn.
//
// Invariants: Role == RoleTool requires ToolCallID to be non-empty. A
// message with a non-empty ToolCalls list carries either no text content or
// descriptive text only (never structured content standing in for the tool
// call itself).
type Message struct {
	Role Role

	// Text holds the message content when it is plain text. Parts holds it
	// when the content is an ordered list of text/image parts. Exactly one
	// of Text/Parts is meaningful per message: Parts is non-nil only when
	// the source dialect used the multi-part content form.
	Text  string
	Parts []ContentPart

	ToolCalls []ToolCall

	// ToolCallID identifies which prior ToolCall this message answers, when
	// Role == RoleTool.
	ToolCallID string

	// Name optionally labels an assistant message by an originating agent
	// id, used by the pipeline runner to attribute intermediate text.
	Name string
}

// HasParts reports whether the message content is represented as parts
// rather than plain text.
func (m Message) HasParts() bool { return m.Parts != nil }

// FlattenText renders the message's content as plain text regardless of
// representation, joining part text and ignoring image parts. Accessors
// built on this never fail; callers get empty string, never an error.
func (m Message) FlattenText() string {
	if !m.HasParts() {
		return m.Text
	}
	var out string
	for _, p := range m.Parts {
		if p.Type == PartText {
			if out != "" {
				out += "\n"
			}
			out += p.Text
		}
	}
	return out
}

// Accessors is the read/write surface every dialect's parsed request must
// provide. Contract: accessors never fail; they return the zero value when
// the underlying field is absent. Implementations live alongside each
// dialect's wire types (openaichat, openairesponses, anthropicdialect,
// bedrockdialect).
type Accessors interface {
	Model() string
	SetModel(string)
	IsStreaming() bool

	// Messages returns the canonical message list. For Anthropic, the
	// dedicated System field (if set) is surfaced as a leading
	// role=system message so callers have one uniform view.
	Messages() []Message

	// SetMessages replaces the canonical message list. Anthropic
	// implementations split out any role=system messages into the
	// dedicated System field, concatenating their text with newlines, per
	// the dialect model contract.
	SetMessages([]Message)

	// ExtractRecentUserMessage returns the most recent user turn flattened
	// to plain text, or "" if there is none.
	ExtractRecentUserMessage() string

	// ExtractMessagesText joins all messages' flattened text for token
	// estimation purposes.
	ExtractMessagesText() string

	GetToolNames() []string

	// Metadata returns the dialect's free-form provider-specific metadata
	// map, or an empty (non-nil) map if none is present.
	Metadata() map[string]any

	// RemoveMetadataKey deletes a key from the metadata map if present; a
	// no-op otherwise.
	RemoveMetadataKey(string)
}

// MarshalArguments is a convenience used by dialects that store tool-call
// arguments as an inline JSON value rather than a string, to normalize to
// ToolCall.Arguments' string representation.
func MarshalArguments(v any) string {
	if v == nil {
		return "{}"
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// UnmarshalArguments is the inverse of MarshalArguments, used by dialects
// that want the arguments as a decoded JSON value rather than a raw string.
// Returns an empty map on any decode failure rather than an error, matching
// the "accessors never fail" contract for best-effort consumers; callers
// that need strict decoding should unmarshal ToolCall.Arguments themselves.
func UnmarshalArguments(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return map[string]any{}
	}
	return m
}
