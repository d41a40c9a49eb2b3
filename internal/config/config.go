// Package config loads voicecal configuration from an optional YAML file
// and environment variables. Environment variables win over the file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LLM provider names.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Semantic extraction LLM
	LLMProvider     string
	LLMModel        string
	OllamaHost      string
	OpenAIAPIKey    string
	AnthropicAPIKey string

	// Transcription service
	TranscribeURL      string
	TranscribeLanguage string
	TranscribeAPIKey   string
	MaxAudioBytes      int64

	// Pipeline policy
	StageTimeout  time.Duration
	StaleAfter    time.Duration
	SweepInterval time.Duration

	// Server
	Port string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// fileConfig mirrors Config for the optional YAML file.
type fileConfig struct {
	SurrealDB struct {
		URL       string `yaml:"url"`
		Namespace string `yaml:"namespace"`
		Database  string `yaml:"database"`
		User      string `yaml:"user"`
		Pass      string `yaml:"pass"`
		AuthLevel string `yaml:"auth_level"`
	} `yaml:"surrealdb"`
	LLM struct {
		Provider string `yaml:"provider"`
		Model    string `yaml:"model"`
	} `yaml:"llm"`
	Transcribe struct {
		URL           string `yaml:"url"`
		Language      string `yaml:"language"`
		MaxAudioBytes int64  `yaml:"max_audio_bytes"`
	} `yaml:"transcribe"`
	Pipeline struct {
		StageTimeout  string `yaml:"stage_timeout"`
		StaleAfter    string `yaml:"stale_after"`
		SweepInterval string `yaml:"sweep_interval"`
	} `yaml:"pipeline"`
	Port     string `yaml:"port"`
	LogFile  string `yaml:"log_file"`
	LogLevel string `yaml:"log_level"`
}

// Load reads configuration: defaults, then the YAML file named by
// VOICECAL_CONFIG (if set and readable), then environment variables.
func Load() Config {
	cfg := defaults()

	if path := os.Getenv("VOICECAL_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			slog.Warn("config file ignored", "path", path, "error", err)
		}
	}

	cfg.applyEnv()
	return cfg
}

func defaults() Config {
	return Config{
		SurrealDBURL:       "ws://localhost:8000/rpc",
		SurrealDBNamespace: "voicecal",
		SurrealDBDatabase:  "pipeline",
		SurrealDBUser:      "root",
		SurrealDBPass:      "root",
		SurrealDBAuthLevel: "root",

		LLMProvider: ProviderOllama,
		LLMModel:    "llama3.1",
		OllamaHost:  "http://localhost:11434",

		TranscribeLanguage: "zh-TW",
		MaxAudioBytes:      25 << 20, // 25 MiB

		StageTimeout:  60 * time.Second,
		StaleAfter:    15 * time.Minute,
		SweepInterval: 5 * time.Minute,

		Port:     "8383",
		LogFile:  "/tmp/voicecal.log",
		LogLevel: slog.LevelInfo,
	}
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}

	setString(&c.SurrealDBURL, fc.SurrealDB.URL)
	setString(&c.SurrealDBNamespace, fc.SurrealDB.Namespace)
	setString(&c.SurrealDBDatabase, fc.SurrealDB.Database)
	setString(&c.SurrealDBUser, fc.SurrealDB.User)
	setString(&c.SurrealDBPass, fc.SurrealDB.Pass)
	setString(&c.SurrealDBAuthLevel, fc.SurrealDB.AuthLevel)
	setString(&c.LLMProvider, fc.LLM.Provider)
	setString(&c.LLMModel, fc.LLM.Model)
	setString(&c.TranscribeURL, fc.Transcribe.URL)
	setString(&c.TranscribeLanguage, fc.Transcribe.Language)
	if fc.Transcribe.MaxAudioBytes > 0 {
		c.MaxAudioBytes = fc.Transcribe.MaxAudioBytes
	}
	setDuration(&c.StageTimeout, fc.Pipeline.StageTimeout)
	setDuration(&c.StaleAfter, fc.Pipeline.StaleAfter)
	setDuration(&c.SweepInterval, fc.Pipeline.SweepInterval)
	setString(&c.Port, fc.Port)
	setString(&c.LogFile, fc.LogFile)
	if fc.LogLevel != "" {
		c.LogLevel = parseLogLevel(fc.LogLevel)
	}
	return nil
}

func (c *Config) applyEnv() {
	setString(&c.SurrealDBURL, os.Getenv("SURREALDB_URL"))
	setString(&c.SurrealDBNamespace, os.Getenv("SURREALDB_NAMESPACE"))
	setString(&c.SurrealDBDatabase, os.Getenv("SURREALDB_DATABASE"))
	setString(&c.SurrealDBUser, os.Getenv("SURREALDB_USER"))
	setString(&c.SurrealDBPass, os.Getenv("SURREALDB_PASS"))
	setString(&c.SurrealDBAuthLevel, os.Getenv("SURREALDB_AUTH_LEVEL"))

	setString(&c.LLMProvider, os.Getenv("VOICECAL_LLM_PROVIDER"))
	setString(&c.LLMModel, os.Getenv("VOICECAL_LLM_MODEL"))
	setString(&c.OllamaHost, os.Getenv("OLLAMA_HOST"))
	setString(&c.OpenAIAPIKey, os.Getenv("OPENAI_API_KEY"))
	setString(&c.AnthropicAPIKey, os.Getenv("ANTHROPIC_API_KEY"))

	setString(&c.TranscribeURL, os.Getenv("TRANSCRIBE_URL"))
	setString(&c.TranscribeLanguage, os.Getenv("TRANSCRIBE_LANGUAGE"))
	setString(&c.TranscribeAPIKey, os.Getenv("TRANSCRIBE_API_KEY"))
	if v := os.Getenv("TRANSCRIBE_MAX_AUDIO_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.MaxAudioBytes = n
		}
	}

	setDuration(&c.StageTimeout, os.Getenv("VOICECAL_STAGE_TIMEOUT"))
	setDuration(&c.StaleAfter, os.Getenv("VOICECAL_STALE_AFTER"))
	setDuration(&c.SweepInterval, os.Getenv("VOICECAL_SWEEP_INTERVAL"))

	setString(&c.Port, os.Getenv("VOICECAL_PORT"))
	setString(&c.LogFile, os.Getenv("VOICECAL_LOG_FILE"))
	if v := os.Getenv("VOICECAL_LOG_LEVEL"); v != "" {
		c.LogLevel = parseLogLevel(v)
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v string) {
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		*dst = d
	}
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
