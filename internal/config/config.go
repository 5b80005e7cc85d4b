// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) initializer to build a Config with defaults.
// - Load layers a dotenv file, an optional YAML file and DUGOUT_ env vars.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"time"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Store selects the repository driver: memory, postgres or sqlite.
	Store string `koanf:"store"`

	// DatabaseURL is the Postgres connection string used by the postgres driver.
	DatabaseURL string `koanf:"database_url"`

	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `koanf:"sqlite_path"`

	// RedisAddr enables the leaderboard cache when set.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// LeaderboardCacheTTL bounds how long cached standings are served.
	LeaderboardCacheTTL time.Duration `koanf:"leaderboard_cache_ttl"`

	// AuthJWTSecret verifies HS256 access tokens.
	AuthJWTSecret string `koanf:"auth_jwt_secret"`

	// AuthJWKSURL verifies asymmetric access tokens against a remote key set.
	AuthJWKSURL string `koanf:"auth_jwks_url"`

	// AuthRequired rejects user routes when no verifier is configured.
	AuthRequired bool `koanf:"auth_required"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// QueueSize bounds the leaderboard refresh queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of refresh workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the number of submissions held in flight.
	DedupeSize int `koanf:"dedupe_size"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		Store:               StoreMemory,
		SQLitePath:          "dugout.db",
		LeaderboardCacheTTL: 30 * time.Second,
		AuthRequired:        true,
		MaxLeaderboardLimit: 100,
		QueueSize:           10_000,
		WorkerCount:         runtime.NumCPU(),
		DedupeSize:          10_000,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case !slices.Contains([]string{StoreMemory, StorePostgres, StoreSQLite}, c.Store):
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	case c.Store == StorePostgres && c.DatabaseURL == "":
		return fmt.Errorf("%w: database_url is required for the postgres store", ErrInvalidConfig)
	case c.Store == StoreSQLite && c.SQLitePath == "":
		return fmt.Errorf("%w: sqlite_path is required for the sqlite store", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.MaxLeaderboardLimit <= 0:
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	case c.LeaderboardCacheTTL < 0:
		return fmt.Errorf("%w: leaderboard_cache_ttl must not be negative", ErrInvalidConfig)
	case c.AuthJWTSecret != "" && c.AuthJWKSURL != "":
		return fmt.Errorf("%w: set only one of auth_jwt_secret and auth_jwks_url", ErrInvalidConfig)
	}
	return nil
}
