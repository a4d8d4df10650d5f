// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers defaults, an optional YAML file and environment variables.
// - Errors are wrapped with this package's sentinels.
package config

import (
	"context"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite database file.
	DBPath string `koanf:"db_path"`

	// BusyTimeout bounds how long a write waits for the database lock.
	BusyTimeout time.Duration `koanf:"busy_timeout"`

	// BackupDir receives snapshot artifacts; created on first use.
	BackupDir string `koanf:"backup_dir"`

	// BackupInterval is the period of automatic snapshots. Zero disables them.
	BackupInterval time.Duration `koanf:"backup_interval"`

	// BackupRetain keeps at most this many artifacts; zero keeps all.
	BackupRetain int `koanf:"backup_retain"`

	// LevelListPath is imported on first start when no levels exist.
	LevelListPath string `koanf:"level_list_path"`

	// AdminToken guards admin HTTP routes. Empty denies them.
	AdminToken string `koanf:"admin_token"`

	// MaxLeaderboardLimit caps GET /levels/{id}/leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`
}

// New creates a Config populated with defaults. Context is accepted first to
// satisfy the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		DBPath:              "beat_saber_scores.db",
		BusyTimeout:         5 * time.Second,
		BackupDir:           "backups",
		BackupInterval:      24 * time.Hour,
		BackupRetain:        0,
		LevelListPath:       "beat_saber_levels.csv",
		MaxLeaderboardLimit: 100,
	}
}
