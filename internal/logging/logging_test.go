package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"info", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil {
			t.Errorf("ParseLevel(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if _, err := ParseLevel("trace"); err == nil {
		t.Error("ParseLevel(trace) should fail")
	}
}

func TestConsoleWithoutColor(t *testing.T) {
	var buf bytes.Buffer
	log, closeFn, err := New(Options{Level: "info", Console: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer closeFn()

	log.Debug("hidden")
	log.Info("segment ready", slog.Int("index", 2))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug line written at info level")
	}
	if !strings.Contains(out, "segment ready") || !strings.Contains(out, "index=2") {
		t.Errorf("missing message or attr: %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("non-terminal output contains escape codes: %q", out)
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audiomind.log")
	log, closeFn, err := New(Options{Level: "debug", File: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Debug("written to file", slog.String("session", "abc"))
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "written to file") || !strings.Contains(string(data), "session=abc") {
		t.Errorf("log file = %q", data)
	}
}

func TestNoDestinations(t *testing.T) {
	log, closeFn, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer closeFn()
	log.Info("dropped")
}
