// Package config defines process configuration and how it is loaded.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// DateLayout is the format of StartDate.
const DateLayout = "2006-01-02"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StoreBackend selects persistence: json, sqlite or redis.
	StoreBackend string `koanf:"store_backend"`

	// DataPath is the JSON document used by the json backend.
	DataPath string `koanf:"data_path"`

	// SQLitePath is the database file used by the sqlite backend.
	SQLitePath string `koanf:"sqlite_path"`

	// RedisAddr and RedisKey locate the document for the redis backend.
	RedisAddr string `koanf:"redis_addr"`
	RedisKey  string `koanf:"redis_key"`

	// AutosaveCron schedules background snapshots. Empty disables them.
	AutosaveCron string `koanf:"autosave_cron"`

	// SnapshotQueueSize bounds pending autosave snapshots.
	SnapshotQueueSize int `koanf:"snapshot_queue_size"`

	// DedupeSize bounds the idempotency key cache.
	DedupeSize int `koanf:"dedupe_size"`

	// ReadOnlyPast rejects changes to days before today.
	ReadOnlyPast bool `koanf:"read_only_past"`

	// StartDate picks the first week shown (YYYY-MM-DD). Empty means today.
	StartDate string `koanf:"start_date"`

	// ICSCalendarName names exported calendars.
	ICSCalendarName string `koanf:"ics_calendar_name"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// Metrics tunes the Prometheus collectors served at /metrics.
	Metrics Metrics `koanf:"metrics"`
}

// Metrics configures pkg/metrics.
type Metrics struct {
	Enabled         bool              `koanf:"enabled"`
	Namespace       string            `koanf:"namespace"`
	Subsystem       string            `koanf:"subsystem"`
	RefreshInterval time.Duration     `koanf:"refresh_interval"`
	Buckets         []float64         `koanf:"buckets"`
	Labels          map[string]string `koanf:"labels"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		Addr:              ":9080",
		StoreBackend:      "json",
		DataPath:          "weekgrid.json",
		SQLitePath:        "weekgrid.db",
		RedisAddr:         "localhost:6379",
		RedisKey:          "weekgrid:schedule",
		AutosaveCron:      "*/5 * * * *",
		SnapshotQueueSize: 16,
		DedupeSize:        10_000,
		ReadOnlyPast:      false,
		ICSCalendarName:   "Weekgrid",
		ShutdownTimeout:   10 * time.Second,
		Metrics: Metrics{
			Enabled:         true,
			Namespace:       "weekgrid",
			Subsystem:       "schedule",
			RefreshInterval: 10 * time.Second,
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate(_ context.Context) error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty: %w", ErrInvalidConfig)
	}
	switch c.StoreBackend {
	case "json":
		if c.DataPath == "" {
			return fmt.Errorf("data_path must not be empty: %w", ErrInvalidConfig)
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite_path must not be empty: %w", ErrInvalidConfig)
		}
	case "redis":
		if c.RedisAddr == "" || c.RedisKey == "" {
			return fmt.Errorf("redis_addr and redis_key must be set: %w", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("store_backend %q: %w", c.StoreBackend, ErrInvalidConfig)
	}
	if c.SnapshotQueueSize <= 0 {
		return fmt.Errorf("snapshot_queue_size must be positive: %w", ErrInvalidConfig)
	}
	if c.DedupeSize <= 0 {
		return fmt.Errorf("dedupe_size must be positive: %w", ErrInvalidConfig)
	}
	if c.AutosaveCron != "" {
		if _, err := cron.ParseStandard(c.AutosaveCron); err != nil {
			return fmt.Errorf("autosave_cron %q: %v: %w", c.AutosaveCron, err, ErrInvalidConfig)
		}
	}
	if c.Metrics.RefreshInterval <= 0 {
		return fmt.Errorf("metrics.refresh_interval must be positive: %w", ErrInvalidConfig)
	}
	for i := 1; i < len(c.Metrics.Buckets); i++ {
		if c.Metrics.Buckets[i] <= c.Metrics.Buckets[i-1] {
			return fmt.Errorf("metrics.buckets must be increasing: %w", ErrInvalidConfig)
		}
	}
	if _, err := c.Start(); err != nil {
		return err
	}
	return nil
}

// Start parses StartDate. The zero time means "today".
func (c *Config) Start() (time.Time, error) {
	if c.StartDate == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(DateLayout, c.StartDate, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("start_date %q: %w", c.StartDate, ErrInvalidConfig)
	}
	return t, nil
}
