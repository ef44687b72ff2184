// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Loading functions accept context.Context as the first parameter.
// - Validation errors wrap ErrInvalidConfig; loading errors wrap ErrLoadConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Rounds is the number of comparisons per calibration.
	Rounds int `koanf:"rounds"`

	// SelectorSeed makes opponent selection reproducible when non-zero.
	SelectorSeed int64 `koanf:"selector_seed"`

	// SessionTTL evicts sessions idle for longer. Zero keeps them forever.
	SessionTTL time.Duration `koanf:"session_ttl"`

	Store       StoreConfig       `koanf:"store"`
	Persistence PersistenceConfig `koanf:"persistence"`
}

// StoreConfig selects and configures the rated item store.
type StoreConfig struct {
	// Driver is one of memory, redis, postgres.
	Driver string `koanf:"driver"`

	RedisAddr   string `koanf:"redis_addr"`
	RedisDB     int    `koanf:"redis_db"`
	RedisPrefix string `koanf:"redis_prefix"`

	PostgresDSN string `koanf:"postgres_dsn"`

	// MaxItemsPerOwner caps the in-memory store. Zero means unlimited.
	MaxItemsPerOwner int `koanf:"max_items_per_owner"`
}

// PersistenceConfig controls how opponent rating updates reach the store.
type PersistenceConfig struct {
	// Async routes updates through the write-behind queue.
	Async bool `koanf:"async"`

	QueueSize  int `koanf:"queue_size"`
	Workers    int `koanf:"workers"`
	MaxRetries int `koanf:"max_retries"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:   "info",
		LogFormat:  "text",
		Addr:       ":9080",
		Rounds:     3,
		SessionTTL: 30 * time.Minute,
		Store: StoreConfig{
			Driver:      DriverMemory,
			RedisAddr:   "localhost:6379",
			RedisPrefix: "calibrate",
		},
		Persistence: PersistenceConfig{
			QueueSize:  10_000,
			Workers:    runtime.NumCPU(),
			MaxRetries: 3,
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Rounds < 1:
		return fmt.Errorf("%w: rounds must be positive, got %d", ErrInvalidConfig, c.Rounds)
	case c.SessionTTL < 0:
		return fmt.Errorf("%w: session_ttl must not be negative", ErrInvalidConfig)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}

	switch c.Store.Driver {
	case DriverMemory:
		if c.Store.MaxItemsPerOwner < 0 {
			return fmt.Errorf("%w: store.max_items_per_owner must not be negative", ErrInvalidConfig)
		}
	case DriverRedis:
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("%w: store.redis_addr is required for the redis driver", ErrInvalidConfig)
		}
	case DriverPostgres:
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("%w: store.postgres_dsn is required for the postgres driver", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store.driver %q", ErrInvalidConfig, c.Store.Driver)
	}

	if c.Persistence.Async {
		if c.Persistence.QueueSize < 1 {
			return fmt.Errorf("%w: persistence.queue_size must be positive", ErrInvalidConfig)
		}
		if c.Persistence.Workers < 1 {
			return fmt.Errorf("%w: persistence.workers must be positive", ErrInvalidConfig)
		}
	}
	if c.Persistence.MaxRetries < 0 {
		return fmt.Errorf("%w: persistence.max_retries must not be negative", ErrInvalidConfig)
	}
	return nil
}
