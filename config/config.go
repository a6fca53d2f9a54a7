// Package config loads server configuration from the environment.
//
// All settings have sensible defaults so a bare `server` starts a working
// dev instance with an on-disk SQLite database.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the server configuration.
type Config struct {
	// Port is the HTTP listen port.
	Port int `env:"PORT" envDefault:"8080"`

	// DBPath is the SQLite database path. ":memory:" for ephemeral dev runs.
	DBPath string `env:"DB_PATH" envDefault:"roomledger.db"`

	// NightCutoffHour is the default day/night rate cutoff (0-23) applied
	// to locations created without an explicit override.
	NightCutoffHour int `env:"NIGHT_CUTOFF_HOUR" envDefault:"18"`

	// MaxSessionHours is the sweeper's auto-end threshold: sessions open
	// longer than this are finalized automatically. 0 disables the sweeper.
	MaxSessionHours int `env:"MAX_SESSION_HOURS" envDefault:"12"`

	// SweepInterval is how often the sweeper checks for stale sessions.
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"10m"`

	// CheckinRateLimit caps check-in requests per device IP per minute.
	CheckinRateLimit int `env:"CHECKIN_RATE_LIMIT" envDefault:"60"`

	// CORSOrigins are the allowed browser origins for the admin frontend.
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:8080"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load parses the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	if cfg.NightCutoffHour < 0 || cfg.NightCutoffHour > 23 {
		return Config{}, fmt.Errorf("NIGHT_CUTOFF_HOUR must be in [0, 23], got %d", cfg.NightCutoffHour)
	}
	if cfg.MaxSessionHours < 0 {
		return Config{}, fmt.Errorf("MAX_SESSION_HOURS must be non-negative, got %d", cfg.MaxSessionHours)
	}
	return cfg, nil
}
