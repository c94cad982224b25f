// Package config provides YAML-based configuration for chartchat.
// Configuration is loaded with a layered precedence: defaults → YAML file →
// env vars. Environment variables always win, so existing workflows are
// unaffected by adding a config file.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. CHARTCHAT_CONFIG environment variable
//  3. ~/.chartchat/config.yaml
//  4. ./chartchat.yaml
//
// If no file is found the system runs from defaults and env vars alone.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	// API configures the OpenAI-compatible model endpoint.
	API APIConfig `yaml:"api"`

	// Data configures the static input files.
	Data DataConfig `yaml:"data"`

	// Retrieval configures the retrieval pipeline.
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// History configures session history persistence.
	History HistoryConfig `yaml:"history"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig holds the model endpoint settings. One base URL and key serve
// the generation, validation and embedding models.
type APIConfig struct {
	// BaseURL is the API base, e.g. "https://api.openai.com/v1".
	BaseURL string `yaml:"base_url"`
	// APIKey is the Bearer token. Prefer env var CHARTCHAT_API_KEY.
	APIKey string `yaml:"api_key"`
	// GenerationModel answers user questions.
	GenerationModel string `yaml:"generation_model"`
	// ValidationModel re-grounds draft answers; usually cheaper and faster.
	ValidationModel string `yaml:"validation_model"`
	// EmbeddingModel embeds queries and catalog entries.
	EmbeddingModel string `yaml:"embedding_model"`
	// Sampling holds the generation sampling parameters.
	Sampling SamplingConfig `yaml:"sampling"`
}

// SamplingConfig mirrors the completion sampling parameters.
type SamplingConfig struct {
	Temperature      float64 `yaml:"temperature"`
	MaxTokens        int     `yaml:"max_tokens"`
	TopP             float64 `yaml:"top_p"`
	FrequencyPenalty float64 `yaml:"frequency_penalty"`
	PresencePenalty  float64 `yaml:"presence_penalty"`
}

// DataConfig holds paths to the static input files.
type DataConfig struct {
	// CatalogPath is the rated-entries JSON export.
	CatalogPath string `yaml:"catalog"`
	// EmbeddingsPath is the precomputed embedding record set written by
	// the ingest command.
	EmbeddingsPath string `yaml:"embeddings"`
	// StopwordsPath is the optional mention stop-word list.
	StopwordsPath string `yaml:"stopwords"`
}

// RetrievalConfig holds retrieval pipeline settings.
type RetrievalConfig struct {
	// TopK is the retrieval result budget per query.
	TopK int `yaml:"top_k"`
	// UseHybrid selects hybrid retrieval over semantic-only.
	UseHybrid bool `yaml:"use_hybrid"`
}

// HistoryConfig holds session history settings.
type HistoryConfig struct {
	// DBPath is the SQLite database path. Set to "disabled" to disable
	// persistence; empty means the default ~/.chartchat/history.db.
	DBPath string `yaml:"db_path"`
	// Session is the session id. Empty means a generated id per run.
	Session string `yaml:"session"`
	// MaxContextTokens bounds the model prompt; older turns are trimmed.
	MaxContextTokens int `yaml:"max_context_tokens"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var
	// CHARTCHAT_SERVER_API_KEY.
	APIKey string `yaml:"api_key"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL:         "https://api.openai.com/v1",
			GenerationModel: "gpt-4o-mini",
			ValidationModel: "gpt-4o-mini",
			EmbeddingModel:  "text-embedding-3-small",
			Sampling: SamplingConfig{
				Temperature:      0.7,
				MaxTokens:        2000,
				TopP:             0.9,
				FrequencyPenalty: 0.1,
				PresencePenalty:  0.1,
			},
		},
		Data: DataConfig{
			CatalogPath:    "data/catalog.json",
			EmbeddingsPath: "data/embeddings.json",
			StopwordsPath:  "data/stopwords.txt",
		},
		Retrieval: RetrievalConfig{TopK: 15, UseHybrid: true},
		Server:    ServerConfig{Host: "0.0.0.0", Port: 8080},
	}
}

// envOverrides maps environment variables onto config fields. Env vars
// always take precedence over YAML values.
var envOverrides = []struct {
	envKey string
	apply  func(*Config, string)
}{
	{"CHARTCHAT_BASE_URL", func(c *Config, v string) { c.API.BaseURL = v }},
	{"CHARTCHAT_API_KEY", func(c *Config, v string) { c.API.APIKey = v }},
	{"CHARTCHAT_GENERATION_MODEL", func(c *Config, v string) { c.API.GenerationModel = v }},
	{"CHARTCHAT_VALIDATION_MODEL", func(c *Config, v string) { c.API.ValidationModel = v }},
	{"CHARTCHAT_EMBEDDING_MODEL", func(c *Config, v string) { c.API.EmbeddingModel = v }},
	{"CHARTCHAT_CATALOG", func(c *Config, v string) { c.Data.CatalogPath = v }},
	{"CHARTCHAT_EMBEDDINGS", func(c *Config, v string) { c.Data.EmbeddingsPath = v }},
	{"CHARTCHAT_STOPWORDS", func(c *Config, v string) { c.Data.StopwordsPath = v }},
	{"CHARTCHAT_TOP_K", func(c *Config, v string) { c.Retrieval.TopK = atoiOr(v, c.Retrieval.TopK) }},
	{"CHARTCHAT_HISTORY_DB", func(c *Config, v string) { c.History.DBPath = v }},
	{"CHARTCHAT_SESSION", func(c *Config, v string) { c.History.Session = v }},
	{"CHARTCHAT_HOST", func(c *Config, v string) { c.Server.Host = v }},
	{"CHARTCHAT_PORT", func(c *Config, v string) { c.Server.Port = atoiOr(v, c.Server.Port) }},
	{"CHARTCHAT_SERVER_API_KEY", func(c *Config, v string) { c.Server.APIKey = v }},
	{"LOG_LEVEL", func(c *Config, v string) { c.Logging.Level = v }},
	{"LOG_FORMAT", func(c *Config, v string) { c.Logging.Format = v }},
}

// Load builds the effective configuration: defaults, then the YAML file (if
// one is found), then env var overrides. Returns the config and the path
// that was loaded, empty when no file was found.
func Load(explicitPath string, log *slog.Logger) (Config, string, error) {
	cfg := Default()

	path := resolveConfigPath(explicitPath)
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, "", fmt.Errorf("config: failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, "", fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	}

	applied := 0
	for _, o := range envOverrides {
		if v := os.Getenv(o.envKey); v != "" {
			o.apply(&cfg, v)
			applied++
		}
	}

	if path == "" {
		log.Debug("config: no YAML config file found, using defaults and env vars", slog.Int("env_overrides", applied))
	} else {
		log.Info("config: loaded YAML config", slog.String("path", path), slog.Int("env_overrides", applied))
	}
	return cfg, path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("CHARTCHAT_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".chartchat", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("chartchat.yaml"); err == nil {
		return "chartchat.yaml"
	}

	return ""
}

// atoiOr parses v as an int, returning fallback on failure.
func atoiOr(v string, fallback int) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
