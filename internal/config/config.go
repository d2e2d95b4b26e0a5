// Package config reads runtime settings from COHERENCE_* environment
// variables and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/roach88/coherence/internal/version"
)

// Config holds runtime settings. CLI flags override these after Load.
type Config struct {
	DB        string `env:"COHERENCE_DB" envDefault:"coherence.db"`
	Session   string `env:"COHERENCE_SESSION" envDefault:"default"`
	Policy    string `env:"COHERENCE_POLICY"`
	CacheDir  string `env:"COHERENCE_CACHE_DIR"`
	UpdateURL string `env:"COHERENCE_UPDATE_URL"`

	UpdateTimeout time.Duration `env:"COHERENCE_UPDATE_TIMEOUT" envDefault:"10s"`
	LockTTL       time.Duration `env:"COHERENCE_LOCK_TTL" envDefault:"10s"`

	// SessionTTL ends sessions idle for longer than this when the store is
	// opened. 0 keeps sessions until end-session.
	SessionTTL time.Duration `env:"COHERENCE_SESSION_TTL" envDefault:"24h"`

	// AppVersion and SchemaVersion override the compiled-in marker when
	// set.
	AppVersion    string `env:"COHERENCE_APP_VERSION"`
	SchemaVersion int    `env:"COHERENCE_SCHEMA_VERSION"`

	MetricsFile string `env:"COHERENCE_METRICS_FILE"`
	Verbose     bool   `env:"COHERENCE_VERBOSE"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadEnvFile loads variables from path into the process environment.
// Variables already set are not overwritten.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Load reads envFile (if non-empty) and then the environment.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := LoadEnvFile(envFile); err != nil {
			return Config{}, err
		}
	}
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that have no sensible fallback.
func (c Config) Validate() error {
	var errs []error
	if c.DB == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if c.Session == "" {
		errs = append(errs, errors.New("session id is required"))
	}
	if c.SchemaVersion < 0 {
		errs = append(errs, fmt.Errorf("schema version must not be negative, got %d", c.SchemaVersion))
	}
	if c.LockTTL <= 0 {
		errs = append(errs, fmt.Errorf("lock ttl must be positive, got %s", c.LockTTL))
	}
	if c.SessionTTL < 0 {
		errs = append(errs, fmt.Errorf("session ttl must not be negative, got %s", c.SessionTTL))
	}
	if c.UpdateTimeout <= 0 {
		errs = append(errs, fmt.Errorf("update timeout must be positive, got %s", c.UpdateTimeout))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Marker returns the current build marker with any overrides applied.
func (c Config) Marker() version.Marker {
	m := version.Current()
	if c.AppVersion != "" {
		m.AppVersion = c.AppVersion
	}
	if c.SchemaVersion > 0 {
		m.SchemaVersion = c.SchemaVersion
	}
	return m
}
