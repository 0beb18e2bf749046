// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and environment variables on top of the defaults.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"fmt"
	"runtime"
	"time"
)

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is "text" or "json".
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DiscordToken is the bot token. The gateway is not started when empty.
	DiscordToken string `koanf:"discord_token"`
	// DiscordGuildID scopes slash command registration to one guild; empty registers globally.
	DiscordGuildID string `koanf:"discord_guild_id"`

	// StorageDriver selects the store: sqlite or memory.
	StorageDriver string `koanf:"storage_driver"`
	// DatabasePath is the sqlite file.
	DatabasePath string `koanf:"database_path"`

	// WorkerCount sets the number of dispatcher shards.
	WorkerCount int `koanf:"worker_count"`
	// EventQueueSize bounds each shard queue.
	EventQueueSize int `koanf:"queue_size"`
	// DedupeSize sets how many gateway event ids are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// XPCooldownMS is the per-user message cooldown.
	XPCooldownMS int `koanf:"xp_cooldown_ms"`
	// XPPerChar, MinXPPerMessage and MaxXPPerMessage shape the message gain.
	XPPerChar       float64 `koanf:"xp_per_char"`
	MinXPPerMessage int64   `koanf:"min_xp_per_message"`
	MaxXPPerMessage int64   `koanf:"max_xp_per_message"`

	// AdminJWTSecret signs admin API tokens. Admin routes are disabled when empty.
	AdminJWTSecret string `koanf:"admin_jwt_secret"`

	// CooldownPruneSchedule is the cron spec of the cooldown pruning job.
	CooldownPruneSchedule string `koanf:"cooldown_prune_schedule"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		StorageDriver:         DriverSQLite,
		DatabasePath:          "data/xpboard.db",
		WorkerCount:           runtime.NumCPU() * 4,
		EventQueueSize:        1024,
		DedupeSize:            50_000,
		XPCooldownMS:          3000,
		XPPerChar:             0.5,
		MinXPPerMessage:       5,
		MaxXPPerMessage:       1000,
		CooldownPruneSchedule: "@every 1m",
		MaxLeaderboardLimit:   100,
	}
}

// Cooldown returns XPCooldownMS as a duration.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.XPCooldownMS) * time.Millisecond
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.StorageDriver != DriverSQLite && c.StorageDriver != DriverMemory:
		return fmt.Errorf("%w: unknown storage driver %q", ErrInvalidConfig, c.StorageDriver)
	case c.StorageDriver == DriverSQLite && c.DatabasePath == "":
		return fmt.Errorf("%w: database_path is required for sqlite", ErrInvalidConfig)
	case c.XPCooldownMS <= 0:
		return fmt.Errorf("%w: xp_cooldown_ms must be positive", ErrInvalidConfig)
	case c.XPPerChar < 0:
		return fmt.Errorf("%w: xp_per_char must not be negative", ErrInvalidConfig)
	case c.MinXPPerMessage < 0 || c.MaxXPPerMessage < c.MinXPPerMessage:
		return fmt.Errorf("%w: need 0 <= min_xp_per_message <= max_xp_per_message", ErrInvalidConfig)
	case c.MaxLeaderboardLimit < 1:
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	}
	return nil
}
