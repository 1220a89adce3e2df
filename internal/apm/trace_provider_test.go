package apm

import (
	"context"
	"io"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/fd1az/dapp-bridge/internal/config"
	"github.com/fd1az/dapp-bridge/internal/logger"
)

func TestParseHeaders(t *testing.T) {
	got := parseHeaders("api-key=abc, x-team=t1,broken,=novalue")
	if len(got) != 2 || got["api-key"] != "abc" || got["x-team"] != "t1" {
		t.Fatalf("parseHeaders() = %v", got)
	}
}

func TestNewTraceProvider_Disabled(t *testing.T) {
	log := logger.New(io.Discard, logger.LevelInfo, "test", nil)
	tp, err := NewTraceProvider(context.Background(), config.TelemetryConfig{Enabled: false}, log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tp.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
}

func TestTraceID(t *testing.T) {
	if TraceID(context.Background()) != "" {
		t.Fatal("expected empty trace id without a span")
	}

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	if got := TraceID(ctx); got != span.SpanContext().TraceID().String() {
		t.Fatalf("TraceID() = %s", got)
	}
}
