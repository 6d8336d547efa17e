package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestLogger_RunContextFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(RunContext{
		RunID:        "run-1",
		Port:         9222,
		Entrypoint:   "http://localhost/tests.html",
		TargetScript: "http://localhost/tests.js",
	}, zapcore.DebugLevel, &buf)

	l.Info("navigated", map[string]any{"step": "navigate"})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if entry["message"] != "navigated" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v", entry["level"])
	}
	if entry["run_id"] != "run-1" {
		t.Errorf("run_id = %v", entry["run_id"])
	}
	if entry["port"] != float64(9222) {
		t.Errorf("port = %v", entry["port"])
	}
	if entry["target_script"] != "http://localhost/tests.js" {
		t.Errorf("target_script = %v", entry["target_script"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["step"] != "navigate" {
		t.Errorf("fields = %v", entry["fields"])
	}
}

func TestLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(RunContext{RunID: "run-1"}, zapcore.WarnLevel, &buf)

	l.Debug("hidden", nil)
	l.Info("hidden", nil)
	l.Warn("shown", nil)
	l.Sugar().Errorf("also %s", "shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], "also shown") {
		t.Errorf("sugared line = %q", lines[1])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zapcore.WarnLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{"INFO", zapcore.InfoLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"chatty", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Error("discarded", nil)
	l.Sugar().With("k", "v").Infof("discarded")
	l.Sync()
}
