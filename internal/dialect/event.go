package dialect

// StreamEvent is the canonical, dialect-independent representation every
// transform produces and every stream buffer consumes. It is a flat struct
// rather than a set of Go interface variants so the SSE chunk processor can
// carry it through triage (buffer/skip/propagate) without a type switch at
// every step; Kind says which fields are meaningful.
type StreamEvent struct {
	Kind StreamEventKind

	// MessageID identifies the enclosing response for lifecycle events
	// (MessageStart's id, or the Responses API's resp_* id).
	MessageID string
	Model     string

	// Index is the content-block / output-item index this event concerns.
	Index int

	// BlockType distinguishes a ContentBlockStart's block kind: "text",
	// "tool_use", "server_tool_use", "web_search_tool_result".
	BlockType string

	// ToolCallID / ToolName populate ContentBlockStart for tool_use blocks
	// and ResponseOutputItemAdded for function_call items.
	ToolCallID string
	ToolName   string

	Delta      DeltaKind
	Text       string // DeltaText / DeltaThinking accumulation
	PartialArg string // DeltaInputJSON fragment
	Signature  string // DeltaSignature
	Citation   *Citation

	// StopReason / Usage populate MessageDelta / MessageStop / Bedrock
	// Metadata / ResponseCompleted.
	StopReason string
	Usage      *Usage

	// Raw carries the untransformed upstream bytes for passthrough buffers
	// that need to re-serialize verbatim rather than rebuild from fields.
	Raw []byte
}

// Citation is the canonical shape of an Anthropic citation delta, used to
// synthesize inline "[[N]](url)" markdown when translating to dialects with
// no native citation concept.
type Citation struct {
	URL    string
	Number int
}

// Usage is the canonical token-usage shape. Dialects map their own field
// names onto this (OpenAI prompt_tokens/completion_tokens/total_tokens,
// Anthropic/Bedrock input_tokens/output_tokens).
type Usage struct {
	InputTokens  int
	OutputTokens int

	// CacheReadInputTokens / CacheCreationInputTokens are Anthropic-only
	// and are preserved when the target dialect has a slot for them,
	// dropped otherwise.
	CacheReadInputTokens     int
	CacheCreationInputTokens int
}

// Total returns InputTokens + OutputTokens.
func (u Usage) Total() int { return u.InputTokens + u.OutputTokens }
