package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLoggerWritesServiceAndTrace(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelInfo, "tablepos", func(context.Context) string { return "abc123" })

	log.Debug(context.Background(), "hidden")
	log.With("component", "orders").Info(context.Background(), "order created", "order_id", 7)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec["service"] != "tablepos" || rec["component"] != "orders" || rec["trace_id"] != "abc123" {
		t.Fatalf("unexpected record: %v", rec)
	}
	if rec["order_id"] != float64(7) {
		t.Fatalf("order_id = %v", rec["order_id"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"", LevelInfo, false},
		{"WARN", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
