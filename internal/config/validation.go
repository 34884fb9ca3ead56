package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
)

// Sentinel errors for configuration validation.
// Wrap with context using fmt.Errorf("%w: details", ErrXxx).
var (
	// ErrMissingAPIKey indicates GEMINI_API_KEY is not set.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidTableName indicates the documents table name is not a safe
	// SQL identifier.
	ErrInvalidTableName = errors.New("invalid table name")

	// ErrInvalidTopK indicates the retrieval top-K is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidMemoryWindow indicates the history window is out of range.
	ErrInvalidMemoryWindow = errors.New("invalid memory window")

	// ErrInvalidPort indicates the HTTP port is out of range.
	ErrInvalidPort = errors.New("invalid port")

	// ErrInvalidSupabaseURL indicates the Supabase project URL is malformed.
	ErrInvalidSupabaseURL = errors.New("invalid Supabase URL")

	// ErrInvalidDatabaseURL indicates DATABASE_URL is malformed.
	ErrInvalidDatabaseURL = errors.New("invalid database URL")

	// ErrMissingBackend indicates no document backend is configured.
	ErrMissingBackend = errors.New("no document backend configured")
)

// tableNameRe matches safe SQL identifiers. The table name is interpolated
// into PostgREST paths and (after this check) SQL statements, so anything
// outside this shape is rejected outright.
var tableNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,62}$`)

// Validate checks all configuration values for structural validity.
// It does not require secrets; serve-mode requirements live in ValidateServe.
func (c *Config) Validate() error {
	if c.ModelName == "" || strings.ContainsAny(c.ModelName, " \t\n") {
		return fmt.Errorf("%w: %q", ErrInvalidModelName, c.ModelName)
	}
	if c.EmbedderModel == "" || strings.ContainsAny(c.EmbedderModel, " \t\n") {
		return fmt.Errorf("%w: embedder %q", ErrInvalidModelName, c.EmbedderModel)
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %v (must be 0.0-2.0)", ErrInvalidTemperature, c.Temperature)
	}
	if c.MaxTokens < 1 || c.MaxTokens > 65536 {
		return fmt.Errorf("%w: %d (must be 1-65536)", ErrInvalidMaxTokens, c.MaxTokens)
	}

	if !tableNameRe.MatchString(c.TableName) {
		return fmt.Errorf("%w: %q (must be a plain SQL identifier)", ErrInvalidTableName, c.TableName)
	}

	if c.TopK < MinTopK || c.TopK > MaxTopK {
		return fmt.Errorf("%w: %d (must be %d-%d)", ErrInvalidTopK, c.TopK, MinTopK, MaxTopK)
	}
	if c.MemoryWindow < MinMemoryWindow || c.MemoryWindow > MaxMemoryWindow {
		return fmt.Errorf("%w: %d (must be %d-%d)", ErrInvalidMemoryWindow, c.MemoryWindow, MinMemoryWindow, MaxMemoryWindow)
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: %d (must be 1-65535)", ErrInvalidPort, c.Port)
	}

	if c.SupabaseURL != "" {
		if err := validateSupabaseURL(c.SupabaseURL); err != nil {
			return err
		}
	}
	if c.DatabaseURL != "" {
		if _, err := parsePostgresURL(c.DatabaseURL); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidDatabaseURL, err)
		}
	}

	return nil
}

// ValidateServe checks the additional requirements of serve and ask modes:
// the Gemini key must be present and at least one document backend must be
// configured.
func (c *Config) ValidateServe() error {
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: set GEMINI_API_KEY (get a key at https://ai.google.dev/)", ErrMissingAPIKey)
	}

	if !c.HasSupabase() && !c.HasPostgres() {
		return fmt.Errorf("%w: set SUPABASE_URL and SUPABASE_KEY, or DATABASE_URL", ErrMissingBackend)
	}

	// A URL without a key (or vice versa) is a misconfiguration, not a
	// disabled backend.
	if (c.SupabaseURL == "") != (c.SupabaseKey == "") {
		return fmt.Errorf("%w: SUPABASE_URL and SUPABASE_KEY must be set together", ErrInvalidSupabaseURL)
	}

	return nil
}

// validateSupabaseURL checks the Supabase project URL shape.
// http is allowed for the local Supabase CLI stack; anything else must be
// https.
func validateSupabaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSupabaseURL, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidSupabaseURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidSupabaseURL)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("%w: must not contain query or fragment", ErrInvalidSupabaseURL)
	}
	return nil
}
