// Package middleware provides the HTTP edge's cross-cutting logging, panic
// recovery, and trace-context extraction, adapted from the teacher's single
// Anthropic-only proxy middleware to the multi-dialect, multi-provider
// gateway's edge.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/httplog/v3"

	"github.com/relaygate/relaygate/internal/tracing"
)

// Recovery recovers from panics in HTTP handlers and returns HTTP 500 to the
// client, leaving logging of the panic itself to Logging.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recover() != nil {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Logging logs HTTP requests with method, path, status, and duration via
// go-chi/httplog, explicitly never logging request/response bodies (they
// may carry end-user conversation content) or response headers.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return httplog.RequestLogger(logger, &httplog.Options{
		Schema:             httplog.SchemaECS.Concise(true),
		LogRequestHeaders:  []string{"Content-Type", "Origin", "x-arch-agent-listener-name"},
		LogResponseHeaders: []string{},
		LogRequestBody:     nil,
		LogResponseBody:    nil,
		RecoverPanics:      false,
	})
}

// TraceContext extracts a remote trace context from inbound request headers
// (e.g. a client-forwarded traceparent) into the request's context, so
// outbound calls later in the handler chain can propagate it further.
func TraceContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := tracing.Extract(r.Context(), r.Header)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Chain applies middlewares to a handler in the order they appear — the
// first middleware in the slice is the outermost (executes first).
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
