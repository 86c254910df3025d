// Package config loads memento settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds settings that command-line flags may override.
type Config struct {
	// Database is the SQLite database path.
	Database string `env:"MEMENTO_DB" envDefault:"memento.db"`
	// PostgresDSN selects the PostgreSQL backend when set.
	PostgresDSN string `env:"MEMENTO_PG_DSN"`
	// Format is the CLI output format, "text" or "json".
	Format string `env:"MEMENTO_FORMAT" envDefault:"text"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"MEMENTO_LOG_LEVEL" envDefault:"info"`
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads Config from the environment and checks the enumerated fields.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return level, nil
}
