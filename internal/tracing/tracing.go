// Package tracing provides the inject/extract contract the core depends on
// for propagating trace context across outbound upstream and agent calls.
// The tracing backend itself (exporter, sampler) is an external collaborator
// configured in internal/observability; this package only wraps the
// propagation API.
package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Inject writes the current span's trace context from ctx into req's
// headers using the globally configured propagator (W3C tracecontext by
// default once internal/observability installs one).
func Inject(ctx context.Context, req *http.Request) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
}

// Extract reads a remote trace context out of inbound request headers,
// returning a context carrying it for span creation.
func Extract(ctx context.Context, header http.Header) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(header))
}

// InstrumentedTransport wraps base (or http.DefaultTransport if nil) with
// otelhttp so every outbound call gets a client span and propagated
// trace headers without each call site injecting them by hand.
func InstrumentedTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return otelhttp.NewTransport(base)
}
