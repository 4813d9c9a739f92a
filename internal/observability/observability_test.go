package observability

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	otellog "go.opentelemetry.io/otel/log"
)

func TestLevelToSeverity(t *testing.T) {
	cases := []struct {
		level slog.Level
		want  otellog.Severity
	}{
		{slog.LevelDebug, otellog.SeverityDebug},
		{slog.LevelInfo, otellog.SeverityInfo},
		{slog.LevelWarn, otellog.SeverityWarn},
		{slog.LevelError, otellog.SeverityError},
	}
	for _, c := range cases {
		if got := levelToSeverity(c.level); got != c.want {
			t.Errorf("levelToSeverity(%v) = %v, want %v", c.level, got, c.want)
		}
	}
}

func TestConsoleHandlerFormatSelection(t *testing.T) {
	textHandler := consoleHandler(Config{LogFormat: LogFormatText})
	if _, ok := textHandler.(*slog.TextHandler); !ok {
		t.Fatalf("expected *slog.TextHandler for text format, got %T", textHandler)
	}

	jsonHandler := consoleHandler(Config{LogFormat: LogFormatJSON})
	if _, ok := jsonHandler.(*slog.JSONHandler); !ok {
		t.Fatalf("expected *slog.JSONHandler for json format, got %T", jsonHandler)
	}
}

func TestFanoutHandlerSendsToEveryHandler(t *testing.T) {
	var bufA, bufB bytes.Buffer
	handlerA := slog.NewTextHandler(&bufA, nil)
	handlerB := slog.NewTextHandler(&bufB, nil)

	logger := slog.New(fanoutHandler{handlers: []slog.Handler{handlerA, handlerB}})
	logger.Info("hello", "k", "v")

	if !strings.Contains(bufA.String(), "hello") {
		t.Fatalf("handler A missing record: %q", bufA.String())
	}
	if !strings.Contains(bufB.String(), "hello") {
		t.Fatalf("handler B missing record: %q", bufB.String())
	}
}

func TestFanoutHandlerEnabledIsAnyOf(t *testing.T) {
	strict := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError})
	lenient := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelDebug})

	f := fanoutHandler{handlers: []slog.Handler{strict, lenient}}
	if !f.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("expected Enabled to be true when any wrapped handler accepts the level")
	}
}

func TestFanoutHandlerWithAttrsPropagates(t *testing.T) {
	var buf bytes.Buffer
	f := fanoutHandler{handlers: []slog.Handler{slog.NewTextHandler(&buf, nil)}}
	withAttrs := f.WithAttrs([]slog.Attr{slog.String("service", "gateway")})

	logger := slog.New(withAttrs)
	logger.Info("started")

	if !strings.Contains(buf.String(), "service=gateway") {
		t.Fatalf("expected propagated attr in output: %q", buf.String())
	}
}
