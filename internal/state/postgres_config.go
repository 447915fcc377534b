package state

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// PostgresConfig holds connection parameters for PostgresStore, grounded on
// the teacher's pkg/database/config.go env-var-with-defaults pattern.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	// RawDSN, when non-empty, is returned by DSN() verbatim instead of the
	// field-assembled connection string — lets a caller (e.g. the CLI's
	// --state-postgres-dsn flag) hand in a libpq URL directly without
	// populating every field above.
	RawDSN string
}

// LoadPostgresConfigFromEnv reads GRIMOIRE_DB_* environment variables,
// falling back to local-development defaults.
func LoadPostgresConfigFromEnv() (PostgresConfig, error) {
	port, err := strconv.Atoi(getEnvOrDefault("GRIMOIRE_DB_PORT", "5432"))
	if err != nil {
		return PostgresConfig{}, fmt.Errorf("invalid GRIMOIRE_DB_PORT: %w", err)
	}
	maxConns, err := strconv.Atoi(getEnvOrDefault("GRIMOIRE_DB_MAX_CONNS", "10"))
	if err != nil {
		return PostgresConfig{}, fmt.Errorf("invalid GRIMOIRE_DB_MAX_CONNS: %w", err)
	}
	lifetime, err := time.ParseDuration(getEnvOrDefault("GRIMOIRE_DB_CONN_MAX_LIFETIME", "1h"))
	if err != nil {
		return PostgresConfig{}, fmt.Errorf("invalid GRIMOIRE_DB_CONN_MAX_LIFETIME: %w", err)
	}
	idleTime, err := time.ParseDuration(getEnvOrDefault("GRIMOIRE_DB_CONN_MAX_IDLE_TIME", "15m"))
	if err != nil {
		return PostgresConfig{}, fmt.Errorf("invalid GRIMOIRE_DB_CONN_MAX_IDLE_TIME: %w", err)
	}

	cfg := PostgresConfig{
		Host:            getEnvOrDefault("GRIMOIRE_DB_HOST", "localhost"),
		Port:            port,
		User:            getEnvOrDefault("GRIMOIRE_DB_USER", "grimoire"),
		Password:        os.Getenv("GRIMOIRE_DB_PASSWORD"),
		Database:        getEnvOrDefault("GRIMOIRE_DB_NAME", "grimoire"),
		SSLMode:         getEnvOrDefault("GRIMOIRE_DB_SSLMODE", "disable"),
		MaxConns:        int32(maxConns),
		MaxConnLifetime: lifetime,
		MaxConnIdleTime: idleTime,
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration for obviously invalid values.
func (c PostgresConfig) Validate() error {
	if c.MaxConns < 1 {
		return fmt.Errorf("GRIMOIRE_DB_MAX_CONNS must be at least 1")
	}
	return nil
}

// DSN renders the libpq connection string NewPostgresStore and the
// migration runner both use.
func (c PostgresConfig) DSN() string {
	if c.RawDSN != "" {
		return c.RawDSN
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
