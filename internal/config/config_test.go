package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.StageTimeout != 60*time.Second {
		t.Errorf("StageTimeout = %v, want 60s", cfg.StageTimeout)
	}
	if cfg.LLMProvider != ProviderOllama {
		t.Errorf("LLMProvider = %q, want %q", cfg.LLMProvider, ProviderOllama)
	}
	if cfg.MaxAudioBytes != 25<<20 {
		t.Errorf("MaxAudioBytes = %d, want %d", cfg.MaxAudioBytes, 25<<20)
	}
	if cfg.TranscribeLanguage != "zh-TW" {
		t.Errorf("TranscribeLanguage = %q, want zh-TW", cfg.TranscribeLanguage)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voicecal.yaml")
	content := `
llm:
  provider: openai
  model: gpt-4o-mini
transcribe:
  language: en
pipeline:
  stage_timeout: 30s
port: "9000"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("VOICECAL_CONFIG", path)
	t.Setenv("VOICECAL_LLM_PROVIDER", "anthropic")

	cfg := Load()

	if cfg.LLMProvider != ProviderAnthropic {
		t.Errorf("LLMProvider = %q, env should win over file", cfg.LLMProvider)
	}
	if cfg.LLMModel != "gpt-4o-mini" {
		t.Errorf("LLMModel = %q, want file value gpt-4o-mini", cfg.LLMModel)
	}
	if cfg.StageTimeout != 30*time.Second {
		t.Errorf("StageTimeout = %v, want 30s from file", cfg.StageTimeout)
	}
	if cfg.Port != "9000" {
		t.Errorf("Port = %q, want 9000", cfg.Port)
	}
	if cfg.TranscribeLanguage != "en" {
		t.Errorf("TranscribeLanguage = %q, want en", cfg.TranscribeLanguage)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
