// Package observability bootstraps structured logging and OpenTelemetry
// log/trace export for the gateway. Every gateway request logs and traces
// the same way no matter which dialect or upstream provider it touches.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// LogFormat mirrors the teacher's own LogFormat enum for text/json console
// output, kept alongside (not instead of) the otel log export.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// Config controls how logging and tracing are bootstrapped.
type Config struct {
	ServiceName string
	LogLevel    slog.Level
	LogFormat   LogFormat
	// OTLPEndpoint, when set, exports logs via OTLP/HTTP. When empty, logs
	// are exported to stdout only (useful for local runs and tests).
	OTLPEndpoint string
}

// Shutdown releases the resources Bootstrap created (log/trace exporters).
type Shutdown func(context.Context) error

// Bootstrap wires up a *slog.Logger that fans out to both the console
// (text or json, matching the teacher's LogFormat) and the OTel log
// pipeline via otelslog, plus a trace.TracerProvider, and installs both as
// process globals (slog.SetDefault, otel.SetTracerProvider) the way the
// teacher's own App.Start does for its single proxy server.
func Bootstrap(ctx context.Context, cfg Config) (*slog.Logger, Shutdown, error) {
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, nil, fmt.Errorf("observability: build resource: %w", err)
	}

	var exporter sdklog.Exporter
	if cfg.OTLPEndpoint != "" {
		exporter, err = otlploghttp.New(ctx, otlploghttp.WithEndpoint(cfg.OTLPEndpoint))
		if err != nil {
			return nil, nil, fmt.Errorf("observability: build otlp log exporter: %w", err)
		}
	} else {
		exporter, err = stdoutlog.New()
		if err != nil {
			return nil, nil, fmt.Errorf("observability: build stdout log exporter: %w", err)
		}
	}

	minSeverity := levelToSeverity(cfg.LogLevel)
	processor := minsev.NewLogProcessor(sdklog.NewBatchProcessor(exporter), minSeverity)
	loggerProvider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(processor),
	)

	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tracerProvider)

	otelHandler := otelslog.NewHandler(cfg.ServiceName, otelslog.WithLoggerProvider(loggerProvider))
	consoleHandler := consoleHandler(cfg)

	logger := slog.New(fanoutHandler{handlers: []slog.Handler{consoleHandler, otelHandler}})
	slog.SetDefault(logger)

	shutdown := func(ctx context.Context) error {
		var errs []error
		if err := loggerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		if len(errs) == 0 {
			return nil
		}
		return fmt.Errorf("observability shutdown: %v", errs)
	}

	return logger, shutdown, nil
}

func consoleHandler(cfg Config) slog.Handler {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == LogFormatJSON {
		return slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.NewTextHandler(os.Stdout, opts)
}

func levelToSeverity(level slog.Level) otellog.Severity {
	switch {
	case level <= slog.LevelDebug:
		return otellog.SeverityDebug
	case level <= slog.LevelInfo:
		return otellog.SeverityInfo
	case level <= slog.LevelWarn:
		return otellog.SeverityWarn
	default:
		return otellog.SeverityError
	}
}

// Tracer returns a tracer scoped to name, for components that want their
// own spans (router calls, agent pipeline steps, state-store writes).
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// fanoutHandler sends every record to multiple slog.Handlers — here, the
// human-readable console handler and the otelslog bridge — so enabling
// OTel export never silences local console output.
type fanoutHandler struct {
	handlers []slog.Handler
}

func (f fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, h := range f.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return fanoutHandler{handlers: next}
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithGroup(name)
	}
	return fanoutHandler{handlers: next}
}
