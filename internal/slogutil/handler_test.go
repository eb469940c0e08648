package slogutil

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	logger.Info("analyzed file", "file", "a.ts", "findings", 2)

	out := buf.String()
	for _, want := range []string{"[info]", "analyzed file", " | ", "file=a.ts", "findings=2"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got: %s", want, out)
		}
	}
}

func TestHandler_OmitTime(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, HandlerOptions{Level: slog.LevelInfo, OmitTime: true}))
	logger.Warn("guidance unavailable")

	if got := buf.String(); got != "[warn] guidance unavailable\n" {
		t.Errorf("unexpected line %q", got)
	}
}

func TestHandler_GroupsAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo).With("component", "qa").WithGroup("item")
	logger.Info("validated", "id", "fs-1")

	out := buf.String()
	if !strings.Contains(out, "component=qa") {
		t.Errorf("expected pre-set attr, got: %s", out)
	}
	if !strings.Contains(out, "item.id=fs-1") {
		t.Errorf("expected grouped key, got: %s", out)
	}
}

func TestHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("records below warn should be filtered: %s", out)
	}
	if !strings.Contains(out, "[warn] warn message") || !strings.Contains(out, "[error] error message") {
		t.Errorf("warn and error should be written: %s", out)
	}
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"silent", LevelSilent},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := LevelFromString(tt.input); got != tt.expected {
				t.Errorf("LevelFromString(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLevelFromVerbosity(t *testing.T) {
	tests := []struct {
		verbosity int
		quiet     bool
		expected  slog.Level
	}{
		{0, false, slog.LevelWarn},
		{1, false, slog.LevelInfo},
		{2, false, slog.LevelDebug},
		{3, false, slog.LevelDebug},
		{0, true, LevelSilent},
		{5, true, LevelSilent},
	}

	for _, tt := range tests {
		if got := LevelFromVerbosity(tt.verbosity, tt.quiet); got != tt.expected {
			t.Errorf("LevelFromVerbosity(%d, %v) = %v, want %v", tt.verbosity, tt.quiet, got, tt.expected)
		}
	}
}

func TestNewDiscardLogger(t *testing.T) {
	logger := NewDiscardLogger()
	logger.Error("dropped")
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("discard logger should not be enabled")
	}
}

func TestTeeHandler(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h1 := NewHandler(&buf1, HandlerOptions{Level: slog.LevelInfo})
	h2 := NewHandler(&buf2, HandlerOptions{Level: slog.LevelWarn})

	logger := NewTeeLogger(h1, h2)
	logger.Info("info message")
	logger.Warn("warn message")

	if !strings.Contains(buf1.String(), "info message") || !strings.Contains(buf1.String(), "warn message") {
		t.Errorf("buf1 should contain both records: %s", buf1.String())
	}
	if strings.Contains(buf2.String(), "info message") {
		t.Error("buf2 should not contain info message")
	}
	if !strings.Contains(buf2.String(), "warn message") {
		t.Error("buf2 should contain warn message")
	}
}

func TestNew_JSONWithFile(t *testing.T) {
	var stderr bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "effectlint.log")

	logger, closer, err := New(Options{Format: "json", Level: slog.LevelInfo, File: path, Stderr: &stderr})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Info("run finished", "items", 3)
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(stderr.Bytes()), &rec); err != nil {
		t.Fatalf("stderr is not one JSON record: %v (%s)", err, stderr.String())
	}
	if rec["msg"] != "run finished" {
		t.Errorf("msg = %v", rec["msg"])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"items":3`) {
		t.Errorf("log file missing record: %s", data)
	}
}

func TestNew_HumanStderrOnly(t *testing.T) {
	var stderr bytes.Buffer
	logger, closer, err := New(Options{Format: "human", Level: slog.LevelWarn, Stderr: &stderr})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer closer.Close()

	logger.Info("hidden")
	logger.Warn("shown")
	if got := stderr.String(); got != "[warn] shown\n" {
		t.Errorf("stderr = %q", got)
	}
}
