package dialect

// Kind names one of the five wire dialects the gateway speaks, on either the
// client or upstream side. Used as the key into the transform matrix (C2)
// and for per-dialect stream buffer selection (C3).
type Kind string

const (
	KindOpenAIChat           Kind = "openai_chat"
	KindOpenAIResponses      Kind = "openai_responses"
	KindAnthropicMessages    Kind = "anthropic_messages"
	KindBedrockConverse      Kind = "bedrock_converse"
	KindBedrockConverseStrea Kind = "bedrock_converse_stream"
)

// StreamEventKind enumerates every streaming event tag across all four
// streaming-capable dialects. A given StreamEvent value only populates the
// fields relevant to its Kind.
type StreamEventKind string

const (
	// OpenAI Chat
	EventChatCompletionChunk StreamEventKind = "chat.completion.chunk"
	EventChatDone            StreamEventKind = "chat.done"

	// Anthropic Messages
	EventMessageStart      StreamEventKind = "message_start"
	EventContentBlockStart StreamEventKind = "content_block_start"
	EventContentBlockDelta StreamEventKind = "content_block_delta"
	EventContentBlockStop  StreamEventKind = "content_block_stop"
	EventMessageDelta      StreamEventKind = "message_delta"
	EventMessageStop       StreamEventKind = "message_stop"
	EventPing              StreamEventKind = "ping"

	// OpenAI Responses
	EventResponseCreated                    StreamEventKind = "response.created"
	EventResponseInProgress                 StreamEventKind = "response.in_progress"
	EventResponseOutputItemAdded            StreamEventKind = "response.output_item.added"
	EventResponseOutputTextDelta            StreamEventKind = "response.output_text.delta"
	EventResponseOutputTextDone             StreamEventKind = "response.output_text.done"
	EventResponseFunctionCallArgumentsDelta StreamEventKind = "response.function_call_arguments.delta"
	EventResponseFunctionCallArgumentsDone  StreamEventKind = "response.function_call_arguments.done"
	EventResponseOutputItemDone             StreamEventKind = "response.output_item.done"
	EventResponseCompleted                  StreamEventKind = "response.completed"

	// Bedrock ConverseStream member tags (distinct identifiers from the
	// Anthropic ones above even where the concept overlaps, since Bedrock's
	// MessageStart/MessageStop/Metadata carry different payload shapes).
	EventBedrockMessageStart      StreamEventKind = "bedrock.message_start"
	EventBedrockContentBlockStart StreamEventKind = "bedrock.content_block_start"
	EventBedrockContentBlockDelta StreamEventKind = "bedrock.content_block_delta"
	EventBedrockContentBlockStop  StreamEventKind = "bedrock.content_block_stop"
	EventBedrockMessageStop       StreamEventKind = "bedrock.message_stop"
	EventBedrockMetadata          StreamEventKind = "bedrock.metadata"
)

// DeltaKind distinguishes the payload carried by a ContentBlockDelta-shaped
// event across Anthropic and Bedrock.
type DeltaKind string

const (
	DeltaText             DeltaKind = "text"
	DeltaInputJSON         DeltaKind = "input_json"
	DeltaThinking          DeltaKind = "thinking"
	DeltaSignature         DeltaKind = "signature"
	DeltaCitation          DeltaKind = "citation"
	DeltaToolUse           DeltaKind = "tool_use"
	DeltaReasoningContent  DeltaKind = "reasoning_content"
)
