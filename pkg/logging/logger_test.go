package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestInitLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := InitLogger(Config{Level: "debug", Format: "json", Output: &buf})
	NewComponentLogger(logger, "pipeline").Debug("report_run_done", "kind", "success")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected json log line, got %q: %v", buf.String(), err)
	}
	if rec["component"] != "pipeline" {
		t.Fatalf("expected component attr, got %v", rec["component"])
	}
	if rec["msg"] != "report_run_done" {
		t.Fatalf("unexpected msg %v", rec["msg"])
	}
}

func TestInitLoggerInvalidLevelWarns(t *testing.T) {
	var buf bytes.Buffer
	InitLogger(Config{Level: "loud", Format: "text", Output: &buf})
	if !strings.Contains(buf.String(), "invalid log level") {
		t.Fatalf("expected warning, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, ok := ParseLevel(in)
		if !ok || got != want {
			t.Fatalf("ParseLevel(%q) = %v,%v want %v", in, got, ok, want)
		}
	}
}
