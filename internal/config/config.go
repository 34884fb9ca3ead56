// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override; the only source in containers)
//  2. Config file (~/.ragkit/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: generation model, embedder model, temperature, max tokens
//   - Retrieval: documents table name, top-K, memory window
//   - Backends: Supabase REST credentials, direct Postgres URL
//   - Serve: listen port, CORS origins
//   - Observability: optional OTLP trace endpoint
//
// Security: secrets are masked in MarshalJSON(); never log the raw struct
// through anything that bypasses it.
//
// Error handling uses sentinel errors (see validation.go) so callers can
// check categories with errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Defaults for the RAG pipeline. The model and table defaults mirror the
// deployment this service is built around: a Gemini flash model answering
// over a Supabase-hosted "documents" table.
const (
	DefaultModelName     = "gemini-2.5-flash"
	DefaultEmbedderModel = "gemini-embedding-001"
	DefaultTableName     = "documents"

	// DefaultPort is the HTTP listen port. The container image exposes it.
	DefaultPort = 8501

	// Memory window: how many trailing history messages are replayed into
	// the prompt. Operators and clients can tune it within these bounds.
	DefaultMemoryWindow = 6
	MinMemoryWindow     = 3
	MaxMemoryWindow     = 12

	// Top-K retrieved passages per question.
	DefaultTopK = 5
	MinTopK     = 1
	MaxTopK     = 10
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (keys, URLs with credentials), update it.
type Config struct {
	// AI model configuration
	ModelName     string  `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string  `mapstructure:"embedder_model" json:"embedder_model"`
	Temperature   float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens" json:"max_tokens"`

	// Retrieval configuration
	TableName    string `mapstructure:"table_name" json:"table_name"`
	TopK         int    `mapstructure:"top_k" json:"top_k"`
	MemoryWindow int    `mapstructure:"memory_window" json:"memory_window"`

	// Supabase REST backend (PostgREST over HTTPS)
	SupabaseURL string `mapstructure:"supabase_url" json:"supabase_url"`
	SupabaseKey string `mapstructure:"supabase_key" json:"supabase_key"` // SENSITIVE: masked in MarshalJSON

	// Direct Postgres backend (enables vector search and durable sessions)
	DatabaseURL string `mapstructure:"database_url" json:"database_url"` // SENSITIVE: embeds credentials

	// Serve configuration
	Port        int      `mapstructure:"port" json:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`

	// Observability (optional; empty endpoint disables trace export)
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name" json:"service_name"`
	Environment  string `mapstructure:"environment" json:"environment"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".ragkit")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults plus env cover
		// the containerized deployment.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Fail fast: a bad config should never make it past startup.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	viper.SetDefault("model_name", DefaultModelName)
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("temperature", 0.7)
	viper.SetDefault("max_tokens", 2048)

	viper.SetDefault("table_name", DefaultTableName)
	viper.SetDefault("top_k", DefaultTopK)
	viper.SetDefault("memory_window", DefaultMemoryWindow)

	viper.SetDefault("port", DefaultPort)
	viper.SetDefault("cors_origins", []string{})

	viper.SetDefault("service_name", "ragkit")
	viper.SetDefault("environment", "dev")
}

// bindEnvVariables binds environment variables explicitly.
//
// The deployment contract names these variables: GEMINI_API_KEY,
// SUPABASE_URL, SUPABASE_KEY, TABLE_NAME, PORT. DATABASE_URL enables the
// direct-Postgres backend. RAGKIT_* variables are optional overrides.
//
// NOTE: GEMINI_API_KEY is read directly by the Genkit googlegenai plugin,
// not via Viper. ValidateServe() checks its presence.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug, not a
	// runtime condition.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("supabase_url", "SUPABASE_URL")
	mustBind("supabase_key", "SUPABASE_KEY")
	mustBind("table_name", "TABLE_NAME")
	mustBind("port", "PORT")
	mustBind("database_url", "DATABASE_URL")

	mustBind("model_name", "RAGKIT_MODEL_NAME")
	mustBind("embedder_model", "RAGKIT_EMBEDDER_MODEL")
	mustBind("cors_origins", "RAGKIT_CORS_ORIGINS")
	mustBind("otlp_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// HasSupabase reports whether the Supabase REST backend is configured.
func (c *Config) HasSupabase() bool {
	return c.SupabaseURL != "" && c.SupabaseKey != ""
}

// HasPostgres reports whether the direct Postgres backend is configured.
func (c *Config) HasPostgres() bool {
	return c.DatabaseURL != ""
}

// ListenAddr returns the default listen address for serve mode.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("0.0.0.0:%d", c.Port)
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks avoid accidental substring matches against real secrets.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 chars or fewer are fully masked; longer ones keep the first
// and last two characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Masked fields: SupabaseKey, DatabaseURL (may embed credentials).
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.SupabaseKey = maskSecret(a.SupabaseKey)
	a.DatabaseURL = maskSecret(a.DatabaseURL)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
