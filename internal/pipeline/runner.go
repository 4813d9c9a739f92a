package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/relaygate/relaygate/internal/dialect"
	"github.com/relaygate/relaygate/internal/gatewayerr"
	"github.com/relaygate/relaygate/internal/tracing"
)

// AgentClient invokes filter and terminal agents as ordinary chat-completions
// endpoints.
type AgentClient struct {
	HTTP *http.Client
}

// NewAgentClient builds an AgentClient with an otelhttp-instrumented
// transport so every filter/terminal call is traced.
func NewAgentClient() *AgentClient {
	return &AgentClient{HTTP: &http.Client{Transport: tracing.InstrumentedTransport(nil)}}
}

// wireMessage is the minimal JSON shape a filter agent is expected to both
// accept and return: a JSON array of role/content messages.
type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

func toWire(messages []dialect.Message) []wireMessage {
	out := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, wireMessage{Role: string(m.Role), Content: m.FlattenText(), Name: m.Name})
	}
	return out
}

func fromWire(raw []wireMessage) []dialect.Message {
	out := make([]dialect.Message, 0, len(raw))
	for _, m := range raw {
		out = append(out, dialect.Message{Role: dialect.Role(m.Role), Text: m.Content, Name: m.Name})
	}
	return out
}

// CallFilter POSTs the current conversation snapshot to a filter agent's
// upstream URL with the required x-arch-upstream-host and
// x-envoy-max-retries headers, and returns the agent's replacement
// conversation. A 4xx response surfaces as *gatewayerr.Error{CodeClientError};
// a 5xx (or transport failure) surfaces as *gatewayerr.Error{CodeServerError}.
func (c *AgentClient) CallFilter(ctx context.Context, agent Agent, conversation []dialect.Message) ([]dialect.Message, error) {
	body, err := json.Marshal(toWire(conversation))
	if err != nil {
		return nil, gatewayerr.Internal(fmt.Errorf("pipeline: marshal conversation for agent %s: %w", agent.ID, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, agent.UpstreamURL, bytes.NewReader(body))
	if err != nil {
		return nil, gatewayerr.Internal(fmt.Errorf("pipeline: build request for agent %s: %w", agent.ID, err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-arch-upstream-host", agent.ID)
	req.Header.Set("x-envoy-max-retries", "3")
	tracing.Inject(ctx, req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, gatewayerr.ServerErr(agent.ID, 0, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, gatewayerr.ServerErr(agent.ID, resp.StatusCode, err)
	}

	if resp.StatusCode >= 500 {
		return nil, gatewayerr.ServerErr(agent.ID, resp.StatusCode, fmt.Errorf("agent returned %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return nil, gatewayerr.ClientErr(agent.ID, resp.StatusCode, string(respBody))
	}

	var wire []wireMessage
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, gatewayerr.Internal(fmt.Errorf("pipeline: agent %s response is not a JSON message array: %w", agent.ID, err))
	}
	return fromWire(wire), nil
}

// RunFilterChain runs each filter agent in order, replacing the working
// conversation with each response. Stops and returns the first error
// encountered.
func RunFilterChain(ctx context.Context, client *AgentClient, filters []Agent, conversation []dialect.Message) ([]dialect.Message, error) {
	current := conversation
	for _, agent := range filters {
		next, err := client.CallFilter(ctx, agent, current)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}

// RunPipelines executes the selected pipelines in order. For every pipeline
// but the last, the terminal agent's response is collected in full and
// appended to the conversation as an assistant message named after the agent
// id. For the last selected pipeline, terminalStream is invoked to let the
// caller stream the terminal response directly back to the client instead of
// buffering it.
//
// terminalStream receives the conversation to send to the terminal agent and
// must return the full accumulated terminal text (used only when this is not
// the last pipeline) after streaming it to the client.
func RunPipelines(
	ctx context.Context,
	client *AgentClient,
	pipelines []AgentPipeline,
	conversation []dialect.Message,
	terminalStream func(ctx context.Context, terminal Agent, conversation []dialect.Message, isLast bool) (string, error),
) error {
	current := conversation
	for i, p := range pipelines {
		afterFilters, err := RunFilterChain(ctx, client, p.Filters, current)
		if err != nil {
			return err
		}

		isLast := i == len(pipelines)-1
		text, err := terminalStream(ctx, p.Terminal, afterFilters, isLast)
		if err != nil {
			return err
		}

		if isLast {
			return nil
		}

		current = append(afterFilters, dialect.Message{
			Role: dialect.RoleAssistant,
			Text: text,
			Name: p.Terminal.ID,
		})
		slog.DebugContext(ctx, "pipeline: advancing to next pipeline", "from", p.ID, "to", pipelines[i+1].ID)
	}
	return nil
}
