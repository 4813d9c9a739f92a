package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/relaygate/relaygate/internal/dialect/openaichat"
	"github.com/relaygate/relaygate/internal/gatewayerr"
	"github.com/relaygate/relaygate/internal/tracing"
)

// Client calls the orchestrator endpoint: a plain chat-completions HTTP
// endpoint treated as an external collaborator.
type Client struct {
	HTTP             *http.Client
	Endpoint         string
	OrchestratorModel string
}

// NewClient builds a Client with an otelhttp-instrumented transport so every
// orchestrator call is traced and carries propagated trace headers.
func NewClient(endpoint, orchestratorModel string) *Client {
	return &Client{
		HTTP:              &http.Client{Transport: tracing.InstrumentedTransport(nil)},
		Endpoint:          endpoint,
		OrchestratorModel: orchestratorModel,
	}
}

// Call sends prompt as the sole user message of a ChatCompletions request
// with temperature=0.01, tagging the request with x-arch-provider-hint and
// the caller's trace context, and returns the assistant message content.
func (c *Client) Call(ctx context.Context, prompt string) (string, error) {
	temp := 0.01
	body := openaichat.Request{
		Model: c.OrchestratorModel,
		Messages: []openaichat.RequestMessage{
			func() openaichat.RequestMessage {
				m := openaichat.RequestMessage{Role: "user"}
				m.SetText(prompt)
				return m
			}(),
		},
		Temperature: &temp,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return "", gatewayerr.Internal(fmt.Errorf("router: marshal orchestrator request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(raw))
	if err != nil {
		return "", gatewayerr.Internal(fmt.Errorf("router: build orchestrator request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-arch-provider-hint", c.OrchestratorModel)
	tracing.Inject(ctx, req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", gatewayerr.ServerErr("orchestrator", 0, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", gatewayerr.ServerErr("orchestrator", resp.StatusCode, err)
	}
	if resp.StatusCode >= 400 {
		return "", gatewayerr.ClientErr("orchestrator", resp.StatusCode, string(respBody))
	}

	var chatResp openaichat.Response
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", gatewayerr.Internal(fmt.Errorf("router: decode orchestrator response: %w", err))
	}
	if len(chatResp.Choices) == 0 {
		return "", nil
	}
	return chatResp.Choices[0].Message.Text(), nil
}
