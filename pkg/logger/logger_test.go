package logger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewWithFileWritesRotatedLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connection.log")
	lg, err := NewWithOptions(Options{Env: "production", Level: "info", File: path})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	lg.Named("test").Info("connection created")
	lg.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "connection created") {
		t.Fatalf("expected log line in file, got %q", data)
	}
	if !strings.Contains(string(data), `"logger":"test"`) {
		t.Fatalf("expected component name in file, got %q", data)
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := NewWithOptions(Options{Env: "development", Level: "loud"}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestWithContextAddsTraceIDs(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	lg := &Logger{Logger: zap.New(core)}

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	lg.WithContext(ctx).Info("traced")
	lg.WithContext(context.Background()).Info("untraced")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["trace_id"]; got != traceID.String() {
		t.Fatalf("unexpected trace_id %v", got)
	}
	if _, ok := entries[1].ContextMap()["trace_id"]; ok {
		t.Fatalf("expected no trace_id without a span")
	}
}
