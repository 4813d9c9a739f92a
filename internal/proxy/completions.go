package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/relaygate/relaygate/internal/credential"
	"github.com/relaygate/relaygate/internal/dialect"
	"github.com/relaygate/relaygate/internal/dialect/anthropicdialect"
	"github.com/relaygate/relaygate/internal/dialect/openaichat"
	"github.com/relaygate/relaygate/internal/dialect/openairesponses"
	"github.com/relaygate/relaygate/internal/gatewayerr"
	"github.com/relaygate/relaygate/internal/registry"
	"github.com/relaygate/relaygate/internal/sse"
	"github.com/relaygate/relaygate/internal/statestore"
	"github.com/relaygate/relaygate/internal/tracing"
	"github.com/relaygate/relaygate/internal/transform"
)

// handleCompletion returns the handler for one of the three client-facing
// completion endpoints. The dispatch flow is the same regardless of
// dialect: decode, stitch previous_response_id history (Responses API only),
// resolve a provider, transform (skipped when client and upstream already
// agree), forward
// upstream, and render the response back in the client's own dialect.
func (e *Edge) handleCompletion(clientKind dialect.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		wire, srcAccessor, err := decodeClientRequest(r, clientKind)
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		if clientKind == dialect.KindOpenAIResponses {
			if err := e.stitchPreviousResponse(ctx, wire.(*openairesponses.Request), srcAccessor); err != nil {
				writeError(ctx, w, err)
				return
			}
		}

		modelID := srcAccessor.Model()
		descriptor, err := e.resolveDescriptor(r, modelID)
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		maxTokens := extractMaxTokens(clientKind, wire)
		streaming := srcAccessor.IsStreaming()

		if descriptor.Dialect == dialect.KindBedrockConverse || descriptor.Dialect == dialect.KindBedrockConverseStrea {
			if err := e.dispatchBedrock(ctx, w, clientKind, descriptor, srcAccessor, maxTokens, streaming); err != nil {
				writeError(ctx, w, err)
			}
			return
		}

		dstWire, dstAccessor := wire, srcAccessor
		if descriptor.Dialect != clientKind {
			newWire, newAccessor := newWireAccessor(descriptor.Dialect)
			if newAccessor == nil {
				writeError(ctx, w, gatewayerr.InvalidRequest("target provider has no supported wire dialect"))
				return
			}
			envelope, err := transform.RequestTransform(
				transform.Envelope{Kind: clientKind, Accessors: srcAccessor, MaxTokens: maxTokens},
				newAccessor, descriptor.Dialect, e.DefaultMaxTokens,
			)
			if err != nil {
				writeError(ctx, w, err)
				return
			}
			dstWire, dstAccessor = newWire, envelope.Accessors
			maxTokens = envelope.MaxTokens
		}

		resolvedModel := descriptor.Model
		if resolvedModel == "" {
			resolvedModel = transform.StripProviderPrefix(modelID)
		}
		dstAccessor.SetModel(resolvedModel)
		if maxTokens != nil {
			applyMaxTokens(descriptor.Dialect, dstWire, *maxTokens)
		}

		body, err := marshalUpstreamBody(descriptor.Dialect, dstWire, streaming)
		if err != nil {
			writeError(ctx, w, gatewayerr.Internal(err))
			return
		}

		upstreamReq, err := e.buildUpstreamRequest(ctx, r, descriptor, resolvedModel, streaming, body)
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		resp, err := e.HTTP.Do(upstreamReq)
		if err != nil {
			writeError(ctx, w, gatewayerr.Internal(fmt.Errorf("proxy: upstream request failed: %w", err)))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			forwardUpstreamVerbatim(w, resp)
			return
		}

		if streaming {
			e.streamResponse(ctx, w, clientKind, descriptor.Dialect, resp, wire, modelID, descriptor)
			return
		}

		e.renderNonStreaming(ctx, w, clientKind, descriptor.Dialect, resp, wire, modelID, descriptor)
	}
}

// decodeClientRequest parses the request body into the client dialect's wire
// type and returns both the wire value and its Accessors view.
func decodeClientRequest(r *http.Request, kind dialect.Kind) (any, dialect.Accessors, error) {
	wire, acc := newWireAccessor(kind)
	if acc == nil {
		return nil, nil, gatewayerr.InvalidRequest("unsupported client dialect")
	}
	if err := json.NewDecoder(r.Body).Decode(wire); err != nil {
		return nil, nil, gatewayerr.InvalidRequestf("malformed request body: %v", err)
	}
	return wire, acc, nil
}

// extractMaxTokens reads a resolved max_tokens hint off the client's own
// wire request, before any transform runs.
func extractMaxTokens(kind dialect.Kind, wire any) *int64 {
	switch kind {
	case dialect.KindOpenAIChat:
		req := wire.(*openaichat.Request)
		if req.MaxTokens != nil {
			return req.MaxTokens
		}
		return req.MaxCompletionTokens
	case dialect.KindAnthropicMessages:
		v := wire.(*anthropicdialect.Request).Params.MaxTokens
		if v == 0 {
			return nil
		}
		return &v
	default:
		return nil
	}
}

// stitchPreviousResponse implements the Responses API's previous_response_id
// continuity: when present, the gateway's own state store (not the
// upstream's) supplies prior turns, since none of the non-Responses
// upstreams this gateway fronts have any concept of a stored response id.
func (e *Edge) stitchPreviousResponse(ctx context.Context, req *openairesponses.Request, acc dialect.Accessors) error {
	if req.PreviousResponseID == "" {
		return nil
	}
	if e.StateStore == nil {
		return gatewayerr.InvalidRequest("previous_response_id requires a configured conversation state store")
	}
	current := toInputItems(acc.Messages())
	combined, err := statestore.RetrieveAndCombine(ctx, e.StateStore, req.PreviousResponseID, current)
	if err != nil {
		return err
	}
	acc.SetMessages(fromInputItems(combined))
	return nil
}

func toInputItems(msgs []dialect.Message) []statestore.InputItem {
	out := make([]statestore.InputItem, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, statestore.InputItem{Role: string(m.Role), Content: m.FlattenText()})
	}
	return out
}

func fromInputItems(items []statestore.InputItem) []dialect.Message {
	out := make([]dialect.Message, 0, len(items))
	for _, it := range items {
		out = append(out, dialect.Message{Role: dialect.Role(it.Role), Text: it.Content})
	}
	return out
}

// marshalUpstreamBody renders the resolved wire request to the bytes sent
// upstream. Anthropic's SDK param type has no Stream field of its own
// (streaming is a choice of SDK method, not a wire field), so the flag is
// injected into the marshaled object directly.
func marshalUpstreamBody(kind dialect.Kind, wire any, streaming bool) ([]byte, error) {
	if kind == dialect.KindAnthropicMessages {
		req := wire.(*anthropicdialect.Request)
		b, err := json.Marshal(req.Params)
		if err != nil {
			return nil, fmt.Errorf("proxy: marshal anthropic request: %w", err)
		}
		var m map[string]any
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, fmt.Errorf("proxy: re-decode anthropic request: %w", err)
		}
		m["stream"] = streaming
		return json.Marshal(m)
	}
	return json.Marshal(wire)
}

// buildUpstreamRequest assembles the outbound *http.Request: path, auth,
// tracing, and the headers spec.md's external interface requires.
func (e *Edge) buildUpstreamRequest(ctx context.Context, inbound *http.Request, d registry.Descriptor, resolvedModel string, streaming bool, body []byte) (*http.Request, error) {
	base, err := upstreamBaseURL(d)
	if err != nil {
		return nil, gatewayerr.Internal(err)
	}
	path := buildUpstreamPath(d, resolvedModel)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(body))
	if err != nil {
		return nil, gatewayerr.Internal(fmt.Errorf("proxy: build upstream request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	if e.Credentials != nil {
		secret, err := e.Credentials.Get(ctx, d.Provider)
		if err != nil {
			return nil, gatewayerr.Internal(fmt.Errorf("proxy: credential lookup for %s: %w", d.Provider, err))
		}
		credential.Attach(d.Auth, secret, req.Header.Set)
	}

	tracing.Inject(ctx, req)
	req.Header.Set("x-arch-is-streaming", strconv.FormatBool(streaming))
	req.Header.Set("x-arch-provider-hint", resolvedModel)

	requestID := inbound.Header.Get("x-request-id")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set("x-request-id", requestID)

	return req, nil
}

// streamResponse pipes an upstream SSE body through the chunk processor and
// the client-dialect-appropriate lifecycle buffer.
func (e *Edge) streamResponse(ctx context.Context, w http.ResponseWriter, clientKind, upstreamKind dialect.Kind, resp *http.Response, srcWire any, originalModel string, descriptor registry.Descriptor) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)

	id := sse.NewMessageID(clientMessagePrefix(clientKind), 24)
	created := nowUnix()
	buffer := selectClientBuffer(clientKind, id, created)
	cp := sse.NewChunkProcessor(clientKind, upstreamKind, sse.SelectDecoder(upstreamKind))

	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			events, err := cp.Process(buf[:n])
			if err != nil {
				slog.ErrorContext(ctx, "proxy: stream processing failed", "error", err)
				return
			}
			for _, ev := range events {
				if out := buffer.Accept(ev); len(out) > 0 {
					_, _ = w.Write(out)
					if flusher != nil {
						flusher.Flush()
					}
				}
			}
		}
		if readErr != nil {
			break
		}
	}
	if out := buffer.Flush(); len(out) > 0 {
		_, _ = w.Write(out)
		if flusher != nil {
			flusher.Flush()
		}
	}

	if clientKind == dialect.KindOpenAIResponses && e.StateStore != nil {
		if rb, ok := buffer.(*sse.ResponsesAPIBuffer); ok && rb.Final != nil {
			e.persistResponsesState(srcWire, rb.Final, descriptor)
		}
	}
}

func (e *Edge) persistResponsesState(srcWire any, final *sse.ResponsesResult, descriptor registry.Descriptor) {
	req, ok := srcWire.(*openairesponses.Request)
	if !ok {
		return
	}
	outputs := make([]statestore.OutputItem, 0, len(final.Output))
	for _, o := range final.Output {
		outputs = append(outputs, statestore.OutputItem{Type: o.Type, Role: "assistant", Text: o.Text, ToolName: o.ToolName, Arguments: o.Arguments})
	}
	srcMessages := (&openairesponses.Accessor{Req: req}).Messages()
	state := statestore.ConversationState{
		ResponseID: final.ResponseID,
		InputItems: append(toInputItems(srcMessages), statestore.OutputsToInputs(outputs)...),
		CreatedAt:  nowUnix(),
		Model:      final.Model,
		Provider:   string(descriptor.Provider),
		UpdatedAt:  nowUnix(),
	}
	go statestore.PersistAfterCompletion(context.Background(), e.StateStore, state)
}

// renderNonStreaming decodes the upstream's non-streaming JSON body into the
// canonical response shape and re-renders it in the client's own dialect.
func (e *Edge) renderNonStreaming(ctx context.Context, w http.ResponseWriter, clientKind, upstreamKind dialect.Kind, resp *http.Response, srcWire any, originalModel string, descriptor registry.Descriptor) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		writeError(ctx, w, gatewayerr.Internal(fmt.Errorf("proxy: read upstream response: %w", err)))
		return
	}
	raw, err = statestore.DecompressIfNeeded(raw, resp.Header.Get("Content-Encoding"))
	if err != nil {
		writeError(ctx, w, gatewayerr.Internal(fmt.Errorf("proxy: decompress upstream response: %w", err)))
		return
	}

	cr, err := canonicalizeUpstreamResponse(upstreamKind, raw)
	if err != nil {
		writeError(ctx, w, gatewayerr.Internal(err))
		return
	}

	id := sse.NewMessageID(clientMessagePrefix(clientKind), 24)

	switch clientKind {
	case dialect.KindOpenAIChat:
		writeJSON(ctx, w, transform.ToOpenAIChat(cr, id), http.StatusOK)
	case dialect.KindAnthropicMessages:
		writeJSON(ctx, w, transform.ToAnthropic(cr, id), http.StatusOK)
	case dialect.KindOpenAIResponses:
		result := transform.ToResponsesAPI(cr, id)
		writeJSON(ctx, w, result, http.StatusOK)
		if e.StateStore != nil {
			if req, ok := srcWire.(*openairesponses.Request); ok {
				outputs := []statestore.OutputItem{{Type: "message", Role: "assistant", Text: cr.Text}}
				for _, tc := range cr.ToolCalls {
					outputs = append(outputs, statestore.OutputItem{Type: "function_call", ToolName: tc.Name, Arguments: tc.Arguments})
				}
				srcMessages := (&openairesponses.Accessor{Req: req}).Messages()
				state := statestore.ConversationState{
					ResponseID: id,
					InputItems: append(toInputItems(srcMessages), statestore.OutputsToInputs(outputs)...),
					CreatedAt:  nowUnix(),
					Model:      cr.Model,
					Provider:   string(descriptor.Provider),
					UpdatedAt:  nowUnix(),
				}
				go statestore.PersistAfterCompletion(context.Background(), e.StateStore, state)
			}
		}
	}
}

// canonicalizeUpstreamResponse dispatches a non-streaming upstream body to
// the CanonicalResponse parser for its dialect. Bedrock never reaches this
// path (handled entirely in bedrock.go).
func canonicalizeUpstreamResponse(upstream dialect.Kind, body []byte) (transform.CanonicalResponse, error) {
	switch upstream {
	case dialect.KindAnthropicMessages:
		var r anthropicdialect.Response
		if err := json.Unmarshal(body, &r.Message); err != nil {
			return transform.CanonicalResponse{}, fmt.Errorf("proxy: decode anthropic response: %w", err)
		}
		return transform.FromAnthropic(r), nil
	case dialect.KindOpenAIResponses:
		var r openairesponses.Response
		if err := json.Unmarshal(body, &r); err != nil {
			return transform.CanonicalResponse{}, fmt.Errorf("proxy: decode responses-api response: %w", err)
		}
		return transform.FromResponsesAPI(r), nil
	default:
		var r openaichat.Response
		if err := json.Unmarshal(body, &r); err != nil {
			return transform.CanonicalResponse{}, fmt.Errorf("proxy: decode chat-completions response: %w", err)
		}
		return transform.FromOpenAIChat(r), nil
	}
}

// selectClientBuffer resolves the stream buffer appropriate for the client
// dialect. OpenAI Chat needs no dedicated buffer type: EncodeOpenAIChatChunk
// is already dialect-agnostic on its input, so the generic PassthroughBuffer
// serves it via a closure over this request's id/created.
func selectClientBuffer(kind dialect.Kind, id string, created int64) sse.StreamBuffer {
	switch kind {
	case dialect.KindAnthropicMessages:
		return sse.NewAnthropicBuffer()
	case dialect.KindOpenAIResponses:
		return sse.NewResponsesAPIBuffer()
	default:
		return sse.NewPassthroughBuffer(func(ev dialect.StreamEvent) []byte {
			return sse.EncodeOpenAIChatChunk(ev, id, created)
		})
	}
}

func clientMessagePrefix(kind dialect.Kind) string {
	switch kind {
	case dialect.KindAnthropicMessages:
		return "msg_"
	case dialect.KindOpenAIResponses:
		return "resp_"
	default:
		return "chatcmpl-"
	}
}

func nowUnix() int64 { return time.Now().Unix() }
