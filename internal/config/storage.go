package config

import (
	"fmt"
	"net/url"
	"strings"
)

// parsePostgresURL validates a postgres:// or postgresql:// URL and returns
// the parsed form. Shared by validation and MigrateURL.
func parsePostgresURL(connURL string) (*url.URL, error) {
	u, err := url.Parse(connURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
		// ok
	default:
		return nil, fmt.Errorf("unsupported database URL scheme: %q (expected postgres or postgresql)", u.Scheme)
	}

	if u.Host == "" {
		return nil, fmt.Errorf("database URL missing host")
	}

	return u, nil
}

// MigrateURL returns the database URL with the pgx5:// scheme expected by
// golang-migrate's pgx v5 driver.
func (c *Config) MigrateURL() (string, error) {
	u, err := parsePostgresURL(c.DatabaseURL)
	if err != nil {
		return "", err
	}
	u.Scheme = "pgx5"
	return u.String(), nil
}
