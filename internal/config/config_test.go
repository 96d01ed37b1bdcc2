package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		if name, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(name, EnvPrefix) {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"DATA_DIR", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SegmentDuration != 30*time.Second {
		t.Errorf("SegmentDuration = %v, want 30s", cfg.SegmentDuration)
	}
	if cfg.RetryAttempts != 3 || cfg.RetryDelay != time.Second {
		t.Errorf("retry = %d/%v, want 3/1s", cfg.RetryAttempts, cfg.RetryDelay)
	}
	if cfg.FramesPerBuffer != 1024 {
		t.Errorf("FramesPerBuffer = %d, want 1024", cfg.FramesPerBuffer)
	}
	if cfg.Endpoint != "http://127.0.0.1:8888/transcribe" {
		t.Errorf("Endpoint = %q", cfg.Endpoint)
	}
	if cfg.RouteLossPolicy != "stop" || cfg.Converter != "native" || cfg.Engine != "mic" {
		t.Errorf("policy/converter/engine = %q/%q/%q", cfg.RouteLossPolicy, cfg.Converter, cfg.Engine)
	}
	if cfg.DBPath != filepath.Join(cfg.DataDir, "audiomind.sqlite") {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.SocketPath != filepath.Join(cfg.DataDir, "audiomind.sock") {
		t.Errorf("SocketPath = %q", cfg.SocketPath)
	}
}

func TestFileThenEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "audiomind.yaml")
	yaml := `
data_dir: ` + dir + `
endpoint: http://whisper.local:9000/transcribe
segment_duration: 10s
retry_attempts: 5
converter: ffmpeg
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv(EnvPrefix+"RETRY_ATTEMPTS", "2")
	t.Setenv(EnvPrefix+"MODEL", "base.en")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Endpoint != "http://whisper.local:9000/transcribe" {
		t.Errorf("Endpoint = %q, want file value", cfg.Endpoint)
	}
	if cfg.SegmentDuration != 10*time.Second {
		t.Errorf("SegmentDuration = %v, want 10s from file", cfg.SegmentDuration)
	}
	if cfg.RetryAttempts != 2 {
		t.Errorf("RetryAttempts = %d, want 2 from env", cfg.RetryAttempts)
	}
	if cfg.Model != "base.en" {
		t.Errorf("Model = %q, want base.en", cfg.Model)
	}
	if cfg.Converter != "ffmpeg" {
		t.Errorf("Converter = %q, want ffmpeg", cfg.Converter)
	}
	if cfg.RetryDelay != time.Second {
		t.Errorf("RetryDelay = %v, want default 1s", cfg.RetryDelay)
	}
}

func TestConfigPathFromEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "c.yaml")
	os.WriteFile(path, []byte("data_dir: "+dir+"\nlog_level: debug\n"), 0o644)
	t.Setenv(EnvPrefix+"CONFIG", path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestUnknownKeyRejected(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "c.yaml")
	os.WriteFile(path, []byte("segment_length: 10s\n"), 0o644)

	if _, err := Load(path); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestEmptyFileIsFine(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"DATA_DIR", t.TempDir())
	path := filepath.Join(t.TempDir(), "empty.yaml")
	os.WriteFile(path, nil, 0o644)

	if _, err := Load(path); err != nil {
		t.Errorf("Load(empty): %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad endpoint", func(c *Config) { c.Endpoint = "ftp://x" }},
		{"zero attempts", func(c *Config) { c.RetryAttempts = 0 }},
		{"zero segment", func(c *Config) { c.SegmentDuration = 0 }},
		{"bad policy", func(c *Config) { c.RouteLossPolicy = "ignore" }},
		{"bad converter", func(c *Config) { c.Converter = "sox" }},
		{"wav without input", func(c *Config) { c.Engine = "wav" }},
		{"bad engine", func(c *Config) { c.Engine = "alsa" }},
		{"bad level", func(c *Config) { c.LogLevel = "trace" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
}
