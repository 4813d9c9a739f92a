package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/relaygate/relaygate/internal/dialect"
	"github.com/relaygate/relaygate/internal/dialect/openaichat"
	"github.com/relaygate/relaygate/internal/gatewayerr"
	"github.com/relaygate/relaygate/internal/pipeline"
	"github.com/relaygate/relaygate/internal/sse"
	"github.com/relaygate/relaygate/internal/tracing"
	"github.com/relaygate/relaygate/internal/transform"
)

// handleAgent returns the handler for one of the three agent-listener
// surfaces: resolve the named listener, let the router (if configured)
// select which pipeline(s) apply, run each pipeline's filter chain, and
// stream the terminal agent's reply back in the client's own dialect.
func (e *Edge) handleAgent(clientKind dialect.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		listenerName := r.Header.Get("x-arch-agent-listener-name")
		listener, ok := pipeline.ByName(e.Listeners, listenerName)
		if !ok {
			writeError(ctx, w, gatewayerr.InvalidRequestf("unknown agent listener %q", listenerName))
			return
		}

		_, srcAccessor, err := decodeClientRequest(r, clientKind)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		conversation := srcAccessor.Messages()
		streaming := srcAccessor.IsStreaming()

		var selectedIDs []string
		if e.Router != nil {
			resolved, err := e.Router.Select(ctx, conversation, nil)
			if err != nil {
				writeError(ctx, w, err)
				return
			}
			for _, res := range resolved {
				selectedIDs = append(selectedIDs, res.RouteName)
			}
		}

		pipelines := pipeline.SelectPipelines(listener, selectedIDs)
		if len(pipelines) == 0 {
			writeError(ctx, w, gatewayerr.InvalidRequest("no agent pipeline available for this listener"))
			return
		}

		id := sse.NewMessageID(clientMessagePrefix(clientKind), 24)
		created := nowUnix()

		var buffer sse.StreamBuffer
		var flusher http.Flusher
		if streaming {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			w.WriteHeader(http.StatusOK)
			flusher, _ = w.(http.Flusher)
			buffer = selectClientBuffer(clientKind, id, created)
		}

		var finalText string
		terminalFn := func(ctx context.Context, terminal pipeline.Agent, conv []dialect.Message, isLast bool) (string, error) {
			streamToClient := isLast && streaming
			text, err := callTerminalAgent(ctx, e.AgentClient.HTTP, terminal, conv, streamToClient, buffer, w, flusher)
			if err != nil {
				return "", err
			}
			if isLast {
				finalText = text
			}
			return text, nil
		}

		if err := pipeline.RunPipelines(ctx, e.AgentClient, pipelines, conversation, terminalFn); err != nil {
			if !streaming {
				writeError(ctx, w, err)
			} else {
				slog.ErrorContext(ctx, "proxy: agent pipeline failed mid-stream", "error", err, "listener", listenerName)
			}
			return
		}

		if streaming {
			if out := buffer.Flush(); len(out) > 0 {
				_, _ = w.Write(out)
				if flusher != nil {
					flusher.Flush()
				}
			}
			return
		}

		cr := transform.CanonicalResponse{Model: listenerName, Text: finalText}
		switch clientKind {
		case dialect.KindAnthropicMessages:
			writeJSON(ctx, w, transform.ToAnthropic(cr, id), http.StatusOK)
		case dialect.KindOpenAIResponses:
			writeJSON(ctx, w, transform.ToResponsesAPI(cr, id), http.StatusOK)
		default:
			writeJSON(ctx, w, transform.ToOpenAIChat(cr, id), http.StatusOK)
		}
	}
}

// callTerminalAgent invokes a terminal agent as an OpenAI-chat-compatible
// upstream (the shape every agent in a pipeline is expected to speak,
// mirroring AgentClient.CallFilter's own wire convention for filters).
// When streamToClient is true the agent's own SSE stream is decoded and
// re-buffered straight to the client via buffer; otherwise the full
// response is read non-streaming. Either way the full accumulated text is
// returned for the pipeline runner to thread into the next pipeline's
// conversation, or to render as the final non-streaming client response.
func callTerminalAgent(ctx context.Context, client *http.Client, agent pipeline.Agent, conversation []dialect.Message, streamToClient bool, buffer sse.StreamBuffer, w http.ResponseWriter, flusher http.Flusher) (string, error) {
	wireMsgs := make([]openaichat.RequestMessage, 0, len(conversation))
	for _, m := range conversation {
		rm := openaichat.RequestMessage{Role: string(m.Role), Name: m.Name}
		rm.SetText(m.FlattenText())
		wireMsgs = append(wireMsgs, rm)
	}
	body, err := json.Marshal(openaichat.Request{Model: agent.ID, Messages: wireMsgs, Stream: streamToClient})
	if err != nil {
		return "", gatewayerr.Internal(fmt.Errorf("proxy: marshal terminal agent request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, agent.UpstreamURL, bytes.NewReader(body))
	if err != nil {
		return "", gatewayerr.Internal(fmt.Errorf("proxy: build terminal agent request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-arch-upstream-host", agent.ID)
	req.Header.Set("x-envoy-max-retries", "3")
	tracing.Inject(ctx, req)

	resp, err := client.Do(req)
	if err != nil {
		return "", gatewayerr.ServerErr(agent.ID, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", gatewayerr.ServerErr(agent.ID, resp.StatusCode, fmt.Errorf("terminal agent returned %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return "", gatewayerr.ClientErr(agent.ID, resp.StatusCode, string(respBody))
	}

	if !streamToClient {
		var out openaichat.Response
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", gatewayerr.Internal(fmt.Errorf("proxy: decode terminal agent response: %w", err))
		}
		if len(out.Choices) == 0 {
			return "", nil
		}
		return out.Choices[0].Message.Text(), nil
	}

	var text string
	cp := sse.NewChunkProcessor(dialect.KindOpenAIChat, dialect.KindOpenAIChat, sse.DecodeOpenAIChatEvent)
	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			events, err := cp.Process(buf[:n])
			if err != nil {
				return text, err
			}
			for _, ev := range events {
				if ev.Kind == dialect.EventContentBlockDelta && ev.Delta == dialect.DeltaText {
					text += ev.Text
				}
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
	return text, nil
}
