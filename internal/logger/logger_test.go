package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogger_WritesStructuredRecord(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelInfo, "dapp-bridge", func(context.Context) string { return "abc123" })

	log.Info(context.Background(), "wallet connected", "account", "0x01")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("record is not JSON: %v\n%s", err, buf.String())
	}
	if rec["msg"] != "wallet connected" {
		t.Errorf("unexpected msg: %v", rec["msg"])
	}
	if rec["service"] != "dapp-bridge" {
		t.Errorf("unexpected service: %v", rec["service"])
	}
	if rec["trace_id"] != "abc123" {
		t.Errorf("unexpected trace_id: %v", rec["trace_id"])
	}
	if _, ok := rec["file"]; !ok {
		t.Error("expected file attribute")
	}
}

func TestLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelWarn, "svc", nil)

	log.Debug(context.Background(), "hidden")
	log.Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected nothing below warn, got %s", buf.String())
	}

	log.Warn(context.Background(), "shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected warn record, got %s", buf.String())
	}
}

func TestLogger_RedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelInfo, "svc", nil)

	log.Info(context.Background(), "dial", "api_key", "hunter2")
	if strings.Contains(buf.String(), "hunter2") {
		t.Fatalf("secret leaked: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"WARN":    LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
