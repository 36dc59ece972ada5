package eventstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
)

// RedisConfig configures the secondary Redis-backed event store.
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	Database     int
	PoolSize     int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RedisClientManager manages the pooled Redis connection and tracks basic
// latency/error metrics for the resilient client's telemetry hooks.
type RedisClientManager struct {
	client  *redis.Client
	config  *RedisConfig
	metrics *RedisMetrics
}

// RedisMetrics represents Redis performance metrics
type RedisMetrics struct {
	ConnectionCount int64
	CommandCount    int64
	ErrorCount      int64
	AverageLatency  time.Duration
	LastCommandTime time.Time
	PoolStats       *redis.PoolStats
}

// NewRedisClientManager creates a new Redis client manager
func NewRedisClientManager(config *RedisConfig) (*RedisClientManager, error) {
	if config == nil {
		return nil, cqrs.NewCQRSError(cqrs.ErrCodeRepositoryError.String(), "Redis config cannot be nil", nil)
	}

	if err := validateRedisConfig(config); err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password:     config.Password,
		DB:           config.Database,
		PoolSize:     config.PoolSize,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	manager := &RedisClientManager{
		client: client,
		config: config,
		metrics: &RedisMetrics{
			LastCommandTime: time.Time{},
		},
	}

	return manager, nil
}

// GetClient returns the Redis client
func (rm *RedisClientManager) GetClient() *redis.Client {
	return rm.client
}

// GetConfig returns the Redis configuration
func (rm *RedisClientManager) GetConfig() *RedisConfig {
	return rm.config
}

// Ping tests the Redis connection
func (rm *RedisClientManager) Ping(ctx context.Context) error {
	start := time.Now()

	err := rm.client.Ping(ctx).Err()

	rm.updateMetrics(time.Since(start), err)

	if err != nil {
		return cqrs.NewCQRSError(cqrs.ErrCodeRepositoryError.String(), "Redis ping failed", err)
	}

	return nil
}

// Close closes the Redis connection
func (rm *RedisClientManager) Close() error {
	if rm.client != nil {
		return rm.client.Close()
	}
	return nil
}

// GetMetrics returns current Redis metrics
func (rm *RedisClientManager) GetMetrics() *RedisMetrics {
	if rm.client != nil {
		rm.metrics.PoolStats = rm.client.PoolStats()
	}

	return &RedisMetrics{
		ConnectionCount: rm.metrics.ConnectionCount,
		CommandCount:    rm.metrics.CommandCount,
		ErrorCount:      rm.metrics.ErrorCount,
		AverageLatency:  rm.metrics.AverageLatency,
		LastCommandTime: rm.metrics.LastCommandTime,
		PoolStats:       rm.metrics.PoolStats,
	}
}

// ExecuteCommand executes a Redis command with metrics tracking
func (rm *RedisClientManager) ExecuteCommand(ctx context.Context, cmd func() error) error {
	start := time.Now()

	err := cmd()

	rm.updateMetrics(time.Since(start), err)

	return err
}

func (rm *RedisClientManager) updateMetrics(latency time.Duration, err error) {
	rm.metrics.CommandCount++
	rm.metrics.LastCommandTime = time.Now()

	if err != nil {
		rm.metrics.ErrorCount++
	}

	if rm.metrics.CommandCount == 1 {
		rm.metrics.AverageLatency = latency
	} else {
		rm.metrics.AverageLatency = (rm.metrics.AverageLatency + latency) / 2
	}
}

func validateRedisConfig(config *RedisConfig) error {
	if config.Host == "" {
		return cqrs.NewCQRSError(cqrs.ErrCodeRepositoryError.String(), "Redis host cannot be empty", nil)
	}

	if config.Port <= 0 || config.Port > 65535 {
		return cqrs.NewCQRSError(cqrs.ErrCodeRepositoryError.String(), "Redis port must be between 1 and 65535", nil)
	}

	if config.PoolSize <= 0 {
		config.PoolSize = 10
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 3
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = 5 * time.Second
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 3 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 3 * time.Second
	}

	return nil
}

// RedisKeyBuilder helps build consistent Redis keys
type RedisKeyBuilder struct {
	prefix string
}

// NewRedisKeyBuilder creates a new Redis key builder
func NewRedisKeyBuilder(prefix string) *RedisKeyBuilder {
	return &RedisKeyBuilder{prefix: prefix}
}

// StreamKey builds the key for a stream's ordered event list.
func (kb *RedisKeyBuilder) StreamKey(streamID string) string {
	return fmt.Sprintf("%s:stream:%s", kb.prefix, streamID)
}

// GlobalKey builds the key for the store-wide ordered event list used for
// ReadAllFrom/ReadByType catch-up.
func (kb *RedisKeyBuilder) GlobalKey() string {
	return fmt.Sprintf("%s:global", kb.prefix)
}

// SnapshotKey builds a key for snapshot storage
func (kb *RedisKeyBuilder) SnapshotKey(aggregateID string) string {
	return fmt.Sprintf("%s:snapshot:%s", kb.prefix, aggregateID)
}

// VersionKey builds a key tracking a stream's current version.
func (kb *RedisKeyBuilder) VersionKey(streamID string) string {
	return fmt.Sprintf("%s:version:%s", kb.prefix, streamID)
}
