// Package config loads the flat, environment-sourced configuration
// keys this system runs on. The key set is small enough that
// os.LookupEnv with defaults covers it without a parsing library.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the single configuration struct both cmd/commandservice and
// cmd/queryservice load at startup.
type Config struct {
	EventStore     EventStoreConfig
	Saga           SagaConfig
	CommandBus     CommandBusConfig
	CircuitBreaker map[string]CircuitBreakerConfig
	Projections    map[string]ProjectionConfig
}

// EventStoreConfig carries `event_store.*`.
type EventStoreConfig struct {
	Adapter          string // "memory", "postgres", "redis", "mongo"
	ArchiveAfterDays int
	SnapshotFrequency int
	PostgresDSN      string
	RedisAddr        string
	MongoURI         string
}

// SagaConfig carries `saga.*`.
type SagaConfig struct {
	DefaultTimeout time.Duration
}

// CommandBusConfig carries `command_bus.*`.
type CommandBusConfig struct {
	MaxRetries int
}

// CircuitBreakerConfig carries one `circuit_breaker.<name>.*` entry.
type CircuitBreakerConfig struct {
	Threshold int
	Window    time.Duration
	Cooldown  time.Duration
}

// ProjectionConfig carries one `projection.<name>.*` entry.
type ProjectionConfig struct {
	BatchSize int
}

// Load reads configuration from the environment, falling back to the
// defaults this system ships with. It never returns an error by itself;
// callers validate the result with Validate and translate a failure into
// the config-error exit code (exit code 1).
func Load() *Config {
	return &Config{
		EventStore: EventStoreConfig{
			Adapter:           getEnv("EVENT_STORE_ADAPTER", "memory"),
			ArchiveAfterDays:  getEnvInt("EVENT_STORE_ARCHIVE_AFTER_DAYS", 90),
			SnapshotFrequency: getEnvInt("EVENT_STORE_SNAPSHOT_FREQUENCY", 100),
			PostgresDSN:       getEnv("EVENT_STORE_POSTGRES_DSN", ""),
			RedisAddr:         getEnv("EVENT_STORE_REDIS_ADDR", "localhost:6379"),
			MongoURI:          getEnv("EVENT_STORE_MONGO_URI", "mongodb://localhost:27017"),
		},
		Saga: SagaConfig{
			DefaultTimeout: getEnvDuration("SAGA_DEFAULT_TIMEOUT_MS", 30_000*time.Millisecond),
		},
		CommandBus: CommandBusConfig{
			MaxRetries: getEnvInt("COMMAND_BUS_MAX_RETRIES", 3),
		},
		CircuitBreaker: map[string]CircuitBreakerConfig{
			"default": {
				Threshold: getEnvInt("CIRCUIT_BREAKER_DEFAULT_THRESHOLD", 5),
				Window:    getEnvDuration("CIRCUIT_BREAKER_DEFAULT_WINDOW_MS", 60_000*time.Millisecond),
				Cooldown:  getEnvDuration("CIRCUIT_BREAKER_DEFAULT_COOLDOWN_MS", 30_000*time.Millisecond),
			},
		},
		Projections: map[string]ProjectionConfig{
			"default": {BatchSize: getEnvInt("PROJECTION_DEFAULT_BATCH_SIZE", 200)},
		},
	}
}

// Validate rejects configurations that would make the services unable to
// start at all. Fine-grained per-component validation (e.g. resilience
// tunables) happens in the component that owns those values.
func (c *Config) Validate() error {
	switch c.EventStore.Adapter {
	case "memory", "postgres", "redis", "mongo":
	default:
		return fmt.Errorf("event_store.adapter: unsupported adapter %q", c.EventStore.Adapter)
	}
	if c.EventStore.Adapter == "postgres" && c.EventStore.PostgresDSN == "" {
		return fmt.Errorf("event_store.adapter=postgres requires EVENT_STORE_POSTGRES_DSN")
	}
	if c.CommandBus.MaxRetries < 1 {
		return fmt.Errorf("command_bus.max_retries must be at least 1")
	}
	if c.EventStore.SnapshotFrequency < 1 {
		return fmt.Errorf("event_store.snapshot_frequency must be at least 1")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
