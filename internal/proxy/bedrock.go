package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/relaygate/relaygate/internal/dialect"
	"github.com/relaygate/relaygate/internal/dialect/bedrockdialect"
	"github.com/relaygate/relaygate/internal/gatewayerr"
	"github.com/relaygate/relaygate/internal/registry"
	"github.com/relaygate/relaygate/internal/sse"
	"github.com/relaygate/relaygate/internal/transform"
)

// dispatchBedrock runs the Converse / ConverseStream path: Bedrock's binary
// event-stream framing has nothing in common with the textual SSE the rest
// of the edge speaks, so it bypasses internal/sse's ChunkProcessor/Event
// machinery entirely and is decoded directly from the AWS SDK's own typed
// stream reader.
func (e *Edge) dispatchBedrock(ctx context.Context, w http.ResponseWriter, clientKind dialect.Kind, d registry.Descriptor, src dialect.Accessors, maxTokens *int64, streaming bool) error {
	client, err := e.bedrockClient(ctx, d)
	if err != nil {
		return err
	}

	resolvedModel := d.Model
	if resolvedModel == "" {
		resolvedModel = transform.StripProviderPrefix(src.Model())
	}

	req := buildBedrockRequest(src, resolvedModel, maxTokens, streaming)

	if streaming {
		return e.streamBedrock(ctx, w, clientKind, client, req)
	}
	return e.renderBedrockResponse(ctx, w, clientKind, client, req)
}

// bedrockClient builds a Bedrock runtime client from the provider's
// credential secret, "accessKeyID:secretAccessKey[:sessionToken]", the
// shape NewSource's credential store is configured to hold for the bedrock
// provider (AuthAWSSigV4 signs the whole request, so the usual
// Authorization-header Attach path does not apply to it).
func (e *Edge) bedrockClient(ctx context.Context, d registry.Descriptor) (*bedrockruntime.Client, error) {
	if e.Credentials == nil {
		return nil, gatewayerr.Internal(fmt.Errorf("proxy: bedrock requires a configured credential source"))
	}
	secret, err := e.Credentials.Get(ctx, d.Provider)
	if err != nil {
		return nil, gatewayerr.Internal(fmt.Errorf("proxy: bedrock credential lookup: %w", err))
	}
	akID, akSecret, token := splitBedrockSecret(secret)

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(akID, akSecret, token)),
	)
	if err != nil {
		return nil, gatewayerr.Internal(fmt.Errorf("proxy: bedrock aws config: %w", err))
	}

	return bedrockruntime.NewFromConfig(cfg, func(o *bedrockruntime.Options) {
		if d.URLPrefix != "" {
			o.BaseEndpoint = awssdk.String(d.URLPrefix)
		}
	}), nil
}

func splitBedrockSecret(secret string) (akID, akSecret, token string) {
	parts := strings.SplitN(secret, ":", 3)
	switch len(parts) {
	case 3:
		return parts[0], parts[1], parts[2]
	case 2:
		return parts[0], parts[1], ""
	default:
		return secret, "", ""
	}
}

func buildBedrockRequest(src dialect.Accessors, resolvedModel string, maxTokens *int64, streaming bool) *bedrockdialect.Request {
	req := &bedrockdialect.Request{ModelID: resolvedModel, Streaming: streaming}
	if streaming {
		req.ConverseStream = &bedrockruntime.ConverseStreamInput{ModelId: &resolvedModel}
	} else {
		req.Converse = &bedrockruntime.ConverseInput{ModelId: &resolvedModel}
	}
	acc := &bedrockdialect.Accessor{Req: req}
	acc.SetMessages(src.Messages())
	if maxTokens != nil {
		v := int32(*maxTokens)
		cfg := &brtypes.InferenceConfiguration{MaxTokens: &v}
		if streaming {
			req.ConverseStream.InferenceConfig = cfg
		} else {
			req.Converse.InferenceConfig = cfg
		}
	}
	return req
}

func (e *Edge) renderBedrockResponse(ctx context.Context, w http.ResponseWriter, clientKind dialect.Kind, client *bedrockruntime.Client, req *bedrockdialect.Request) error {
	out, err := client.Converse(ctx, req.Converse)
	if err != nil {
		return classifyBedrockError(err)
	}
	cr := transform.FromBedrockConverse(out)
	cr.Model = req.ModelID

	id := sse.NewMessageID(clientMessagePrefix(clientKind), 24)
	switch clientKind {
	case dialect.KindAnthropicMessages:
		writeJSON(ctx, w, transform.ToAnthropic(cr, id), http.StatusOK)
	case dialect.KindOpenAIResponses:
		writeJSON(ctx, w, transform.ToResponsesAPI(cr, id), http.StatusOK)
	default:
		writeJSON(ctx, w, transform.ToOpenAIChat(cr, id), http.StatusOK)
	}
	return nil
}

func (e *Edge) streamBedrock(ctx context.Context, w http.ResponseWriter, clientKind dialect.Kind, client *bedrockruntime.Client, req *bedrockdialect.Request) error {
	out, err := client.ConverseStream(ctx, req.ConverseStream)
	if err != nil {
		return classifyBedrockError(err)
	}
	stream := out.GetStream()
	defer stream.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	id := sse.NewMessageID(clientMessagePrefix(clientKind), 24)
	created := nowUnix()
	buffer := selectClientBuffer(clientKind, id, created)

	for event := range stream.Events() {
		ev, ok := decodeBedrockStreamEvent(event)
		if !ok {
			continue
		}
		ev.Model = req.ModelID
		if out := buffer.Accept(ev); len(out) > 0 {
			_, _ = w.Write(out)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
	if err := stream.Err(); err != nil {
		slog.ErrorContext(ctx, "proxy: bedrock stream ended with error", "error", err)
	}
	if out := buffer.Flush(); len(out) > 0 {
		_, _ = w.Write(out)
		if flusher != nil {
			flusher.Flush()
		}
	}
	return nil
}

// decodeBedrockStreamEvent converts one ConverseStream output-union member
// into a canonical StreamEvent, mirroring FromBedrockConverse's member walk
// but for the streaming member-union rather than the non-streaming one.
func decodeBedrockStreamEvent(event brtypes.ConverseStreamOutput) (dialect.StreamEvent, bool) {
	switch v := event.(type) {
	case *brtypes.ConverseStreamOutputMemberMessageStart:
		return dialect.StreamEvent{Kind: dialect.EventBedrockMessageStart}, true

	case *brtypes.ConverseStreamOutputMemberContentBlockStart:
		idx := int32ptr(v.Value.ContentBlockIndex)
		blockType := "text"
		toolName, toolID := "", ""
		if start, ok := v.Value.Start.(*brtypes.ContentBlockStartMemberToolUse); ok {
			blockType = "tool_use"
			toolName = strptr(start.Value.Name)
			toolID = strptr(start.Value.ToolUseId)
		}
		return dialect.StreamEvent{Kind: dialect.EventBedrockContentBlockStart, Index: int(idx), BlockType: blockType, ToolName: toolName, ToolCallID: toolID}, true

	case *brtypes.ConverseStreamOutputMemberContentBlockDelta:
		idx := int32ptr(v.Value.ContentBlockIndex)
		out := dialect.StreamEvent{Kind: dialect.EventBedrockContentBlockDelta, Index: int(idx)}
		switch d := v.Value.Delta.(type) {
		case *brtypes.ContentBlockDeltaMemberText:
			out.Delta, out.Text = dialect.DeltaText, d.Value
		case *brtypes.ContentBlockDeltaMemberToolUse:
			out.Delta, out.PartialArg = dialect.DeltaInputJSON, strptr(d.Value.Input)
		default:
			return dialect.StreamEvent{}, false
		}
		return out, true

	case *brtypes.ConverseStreamOutputMemberContentBlockStop:
		idx := int32ptr(v.Value.ContentBlockIndex)
		return dialect.StreamEvent{Kind: dialect.EventBedrockContentBlockStop, Index: int(idx)}, true

	case *brtypes.ConverseStreamOutputMemberMessageStop:
		return dialect.StreamEvent{Kind: dialect.EventBedrockMessageStop, StopReason: string(v.Value.StopReason)}, true

	case *brtypes.ConverseStreamOutputMemberMetadata:
		out := dialect.StreamEvent{Kind: dialect.EventBedrockMetadata}
		if v.Value.Usage != nil {
			out.Usage = &dialect.Usage{
				InputTokens:  int(int32ptr(v.Value.Usage.InputTokens)),
				OutputTokens: int(int32ptr(v.Value.Usage.OutputTokens)),
			}
		}
		return out, true

	default:
		return dialect.StreamEvent{}, false
	}
}

func int32ptr(p *int32) int32 {
	if p == nil {
		return 0
	}
	return *p
}

func strptr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func classifyBedrockError(err error) error {
	msg := err.Error()
	status := http.StatusInternalServerError
	if strings.Contains(msg, "ValidationException") || strings.Contains(msg, "AccessDeniedException") {
		status = http.StatusBadRequest
	}
	return gatewayerr.Forwarded(status, msg)
}
