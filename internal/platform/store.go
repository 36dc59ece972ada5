package platform

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fenrir-shard/ledgerfolio/internal/config"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs/eventstore"
)

// closers collects the teardown funcs NewEventStore's backend needs run on
// shutdown (pool.Close, client.Disconnect, ...); Shutdown runs them in
// reverse order.
type closers []func(context.Context) error

func (c closers) Shutdown(ctx context.Context) {
	for i := len(c) - 1; i >= 0; i-- {
		_ = c[i](ctx)
	}
}

// NewEventStore builds the Event Store backend config.EventStore.Adapter
// names, plus the teardown funcs to run on shutdown. "memory" (the default)
// needs nothing further; the other three dial out using the matching DSN
// and share one registry built from every domain event type.
func NewEventStore(ctx context.Context, cfg config.EventStoreConfig) (eventstore.EventStore, closers, error) {
	switch cfg.Adapter {
	case "memory", "":
		return eventstore.NewMemoryStore(10_000), nil, nil

	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("event_store.adapter=postgres: %w", err)
		}
		store := eventstore.NewPostgresStore(pool, NewEventDataRegistry(), 10_000)
		return store, closers{func(context.Context) error { pool.Close(); return nil }}, nil

	case "mongo":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, fmt.Errorf("event_store.adapter=mongo: %w", err)
		}
		store := eventstore.NewMongoStore(client.Database("ledgerfolio"), NewEventDataRegistry())
		return store, closers{client.Disconnect}, nil

	case "redis":
		redisCfg, err := parseRedisAddr(cfg.RedisAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("event_store.adapter=redis: %w", err)
		}
		client, err := eventstore.NewRedisClientManager(redisCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("event_store.adapter=redis: %w", err)
		}
		store := eventstore.NewRedisStore(client, "ledgerfolio", NewEventDataRegistry())
		return store, nil, nil

	default:
		return nil, nil, fmt.Errorf("event_store.adapter: unsupported adapter %q", cfg.Adapter)
	}
}

func parseRedisAddr(addr string) (*eventstore.RedisConfig, error) {
	host, portStr, ok := strings.Cut(addr, ":")
	if !ok {
		return nil, fmt.Errorf("redis addr %q must be host:port", addr)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("redis addr %q: %w", addr, err)
	}
	return &eventstore.RedisConfig{
		Host:         host,
		Port:         port,
		PoolSize:     10,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}, nil
}
