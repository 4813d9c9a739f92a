// Package proxy implements the HTTP edge (C8): the chi router exposing the
// three client-facing dialects plus the agent-pipeline surface, model
// listing, and health check, and the glue that resolves a request to an
// upstream provider, runs it through the transform/SSE pipeline, and writes
// the client response. Adapted from the teacher's single-upstream
// Anthropic reverse proxy to the multi-dialect, multi-provider gateway.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/relaygate/relaygate/internal/credential"
	"github.com/relaygate/relaygate/internal/dialect"
	"github.com/relaygate/relaygate/internal/observability/middleware"
	"github.com/relaygate/relaygate/internal/pipeline"
	"github.com/relaygate/relaygate/internal/registry"
	"github.com/relaygate/relaygate/internal/router"
	"github.com/relaygate/relaygate/internal/statestore"
	"github.com/relaygate/relaygate/internal/tracing"
	"github.com/relaygate/relaygate/internal/transform"
)

// Edge is the HTTP edge: one chi.Router bound to the shared C4-C7
// collaborators, plus the http.Server lifecycle.
type Edge struct {
	Registry    *registry.Registry
	Credentials *credential.Source
	Listeners   []pipeline.Listener
	AgentClient *pipeline.AgentClient
	StateStore  statestore.Store
	Router      *router.Router

	HTTP             *http.Client
	DefaultMaxTokens transform.DefaultMaxTokensResolver

	mux    chi.Router
	server *http.Server
}

// Option configures an Edge at construction time.
type Option func(*Edge)

// WithRouter attaches the orchestrator-driven route selector (C5). Omitted
// when agent listeners only ever carry a single pipeline.
func WithRouter(r *router.Router) Option {
	return func(e *Edge) { e.Router = r }
}

// WithStateStore attaches the Responses-API conversation state store (C7).
// Omitted disables previous_response_id support entirely: requests carrying
// it fail with InvalidRequest rather than silently ignoring it.
func WithStateStore(s statestore.Store) Option {
	return func(e *Edge) { e.StateStore = s }
}

// WithDefaultMaxTokens attaches the registry-configured max_tokens resolver
// used when an OpenAI-shaped client request reaches an Anthropic upstream
// without max_tokens set.
func WithDefaultMaxTokens(f transform.DefaultMaxTokensResolver) Option {
	return func(e *Edge) { e.DefaultMaxTokens = f }
}

// WithHTTPClient overrides the default upstream HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Edge) { e.HTTP = c }
}

// DefaultTransport returns a fresh http.Transport tuned for upstream LLM
// calls: a generous response-header timeout since some providers take a
// while to emit the first SSE byte, wrapped with otelhttp instrumentation
// by DefaultHTTPClient.
func DefaultTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.ResponseHeaderTimeout = 30 * time.Second
	return t
}

// DefaultHTTPClient builds the upstream HTTP client used when no
// WithHTTPClient option is given.
func DefaultHTTPClient() *http.Client {
	return &http.Client{Transport: tracing.InstrumentedTransport(DefaultTransport())}
}

// New builds an Edge over reg/creds/listeners and mounts every route named
// in the external interface.
func New(reg *registry.Registry, creds *credential.Source, listeners []pipeline.Listener, opts ...Option) (*Edge, error) {
	if reg == nil {
		return nil, fmt.Errorf("proxy: registry is required")
	}
	e := &Edge{
		Registry:    reg,
		Credentials: creds,
		Listeners:   listeners,
		AgentClient: pipeline.NewAgentClient(),
		HTTP:        DefaultHTTPClient(),
	}
	for _, opt := range opts {
		opt(e)
	}

	logger := slog.Default()
	r := chi.NewRouter()
	r.Use(middleware.Recovery, middleware.TraceContext, middleware.Logging(logger))

	r.Get("/healthz", handleHealthz)

	r.Get("/v1/models", e.handleModels)
	r.Get("/agents/v1/models", e.handleModels)
	r.Options("/v1/models", handleModelsOptions)

	r.Post("/v1/chat/completions", e.handleCompletion(dialect.KindOpenAIChat))
	r.Post("/v1/messages", e.handleCompletion(dialect.KindAnthropicMessages))
	r.Post("/v1/responses", e.handleCompletion(dialect.KindOpenAIResponses))

	r.Post("/agents/chat-completions", e.handleAgent(dialect.KindOpenAIChat))
	r.Post("/agents/messages", e.handleAgent(dialect.KindAnthropicMessages))
	r.Post("/agents/responses", e.handleAgent(dialect.KindOpenAIResponses))

	e.mux = r
	return e, nil
}

// ServeHTTP implements http.Handler.
func (e *Edge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.mux.ServeHTTP(w, r)
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Start listens on address in the background and returns immediately. The
// returned channel receives at most one runtime (post-startup) error; the
// caller must call Shutdown to stop the server.
func (e *Edge) Start(ctx context.Context, address string) (<-chan error, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("proxy: failed to listen on %s: %w", address, err)
	}

	e.server = &http.Server{
		Handler:      e,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  90 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		err := e.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Shutdown gracefully stops the HTTP server, force-closing on timeout.
func (e *Edge) Shutdown(ctx context.Context) error {
	if e.server == nil {
		return nil
	}
	if err := e.server.Shutdown(ctx); err != nil {
		_ = e.server.Close()
		return fmt.Errorf("proxy: graceful shutdown failed: %w", err)
	}
	return nil
}
