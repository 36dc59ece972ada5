package eventstore

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
)

// RedisStore is a secondary EventStore backend. Each stream is an ordered
// Redis list; a second, store-wide list receives every committed event in
// append order, and an event's global sequence is its 1-based position in
// that list, assigned at read time, so ReadAllFrom/ReadByType can serve
// catch-up reads the same way the Postgres backend does.
type RedisStore struct {
	client     *RedisClientManager
	keyBuilder *RedisKeyBuilder
	serializer cqrs.EventSerializer

	subMu       sync.Mutex
	subscribers map[string]subscriberEntry
}

// NewRedisStore creates a Redis-backed event store under keyPrefix.
func NewRedisStore(client *RedisClientManager, keyPrefix string, registry *cqrs.EventDataRegistry) *RedisStore {
	return &RedisStore{
		client:      client,
		keyBuilder:  NewRedisKeyBuilder(keyPrefix),
		serializer:  cqrs.NewJSONEventSerializer(registry),
		subscribers: make(map[string]subscriberEntry),
	}
}

var _ EventStore = (*RedisStore)(nil)

func (es *RedisStore) AppendToStream(ctx context.Context, streamID string, events []cqrs.EventMessage, expectedVersion int) (int, error) {
	if len(events) == 0 {
		return expectedVersion, nil
	}
	if streamID == "" {
		return 0, cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "stream id cannot be empty", nil)
	}

	streamKey := es.keyBuilder.StreamKey(streamID)
	versionKey := es.keyBuilder.VersionKey(streamID)
	globalKey := es.keyBuilder.GlobalKey()

	var newVersion int
	err := es.client.ExecuteCommand(ctx, func() error {
		rc := es.client.GetClient()

		current, err := es.currentVersion(ctx, streamID)
		if err != nil {
			return err
		}
		if current != expectedVersion {
			return &cqrs.VersionConflictError{StreamID: streamID, Expected: expectedVersion, Actual: current}
		}

		committedAt := time.Now()
		stored := make([]StoredEvent, 0, len(events))
		pipe := rc.TxPipeline()
		for _, event := range events {
			data, err := es.serializer.Serialize(event)
			if err != nil {
				return cqrs.NewCQRSError(cqrs.ErrCodeSerializationError.String(), "failed to serialize event", err)
			}
			pipe.RPush(ctx, streamKey, data)
			pipe.RPush(ctx, globalKey, data)
			stored = append(stored, StoredEvent{EventMessage: event, StreamID: streamID, CommittedAt: committedAt})
		}
		newVersion = current + len(events)
		pipe.Set(ctx, versionKey, newVersion, 0)

		if _, err := pipe.Exec(ctx); err != nil {
			return cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to append events", err)
		}

		es.publish(stored)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return newVersion, nil
}

func (es *RedisStore) publish(events []StoredEvent) {
	es.subMu.Lock()
	defer es.subMu.Unlock()
	for _, sub := range es.subscribers {
		for _, e := range events {
			if !sub.filter.matches(e.EventType()) {
				continue
			}
			es.safeNotify(sub.handler, e)
		}
	}
}

func (es *RedisStore) safeNotify(handler PushHandler, event StoredEvent) {
	defer func() { _ = recover() }()
	handler(event)
}

func (es *RedisStore) currentVersion(ctx context.Context, streamID string) (int, error) {
	versionKey := es.keyBuilder.VersionKey(streamID)
	val, err := es.client.GetClient().Get(ctx, versionKey).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to read stream version", err)
	}
	v, err := strconv.Atoi(val)
	if err != nil {
		return 0, cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "invalid stream version", err)
	}
	return v, nil
}

func (es *RedisStore) ReadStream(ctx context.Context, streamID string, fromVersion int, limit int) ([]StoredEvent, error) {
	streamKey := es.keyBuilder.StreamKey(streamID)

	raw, err := es.client.GetClient().LRange(ctx, streamKey, 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to read stream", err)
	}

	var out []StoredEvent
	for _, data := range raw {
		event, err := es.serializer.Deserialize([]byte(data))
		if err != nil {
			return nil, cqrs.NewCQRSError(cqrs.ErrCodeSerializationError.String(), "failed to deserialize event", err)
		}
		if event.Version() <= fromVersion {
			continue
		}
		out = append(out, StoredEvent{EventMessage: event, StreamID: streamID})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ReadAllFrom scans the global list. Global sequence is the 1-based position
// in that list, assigned at read time rather than stored per-event.
func (es *RedisStore) ReadAllFrom(ctx context.Context, fromGlobal int64, limit int) ([]StoredEvent, error) {
	globalKey := es.keyBuilder.GlobalKey()

	stop := int64(-1)
	if limit > 0 {
		stop = fromGlobal + int64(limit) - 1
	}
	raw, err := es.client.GetClient().LRange(ctx, globalKey, fromGlobal, stop).Result()
	if err != nil && err != redis.Nil {
		return nil, cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to read global stream", err)
	}

	out := make([]StoredEvent, 0, len(raw))
	for i, data := range raw {
		event, err := es.serializer.Deserialize([]byte(data))
		if err != nil {
			return nil, cqrs.NewCQRSError(cqrs.ErrCodeSerializationError.String(), "failed to deserialize event", err)
		}
		out = append(out, StoredEvent{
			EventMessage:   event,
			StreamID:       event.AggregateID(),
			GlobalSequence: fromGlobal + int64(i) + 1,
		})
	}
	return out, nil
}

func (es *RedisStore) ReadByType(ctx context.Context, eventType string, fromGlobal int64, limit int) ([]StoredEvent, error) {
	all, err := es.ReadAllFrom(ctx, fromGlobal, 0)
	if err != nil {
		return nil, err
	}
	var out []StoredEvent
	for _, e := range all {
		if e.EventType() != eventType {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (es *RedisStore) CurrentVersion(ctx context.Context, streamID string) (int, error) {
	return es.currentVersion(ctx, streamID)
}

func (es *RedisStore) SaveSnapshot(ctx context.Context, snapshot cqrs.SnapshotData) error {
	key := es.keyBuilder.SnapshotKey(snapshot.AggregateID())
	data, err := es.serializeSnapshot(snapshot)
	if err != nil {
		return err
	}
	if err := es.client.GetClient().Set(ctx, key, data, 0).Err(); err != nil {
		return cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to save snapshot", err)
	}
	return nil
}

func (es *RedisStore) serializeSnapshot(snapshot cqrs.SnapshotData) ([]byte, error) {
	// Snapshots reuse the event serializer's JSON envelope via a synthetic
	// event wrapper so one codec path covers both events and snapshots.
	wrapped := cqrs.NewBaseEventMessage(
		fmt.Sprintf("%s.snapshot", snapshot.AggregateType()),
		snapshot.AggregateID(),
		snapshot.AggregateType(),
		snapshot.Version(),
		snapshot.Data(),
	)
	return es.serializer.Serialize(wrapped)
}

func (es *RedisStore) GetLatestSnapshot(ctx context.Context, aggregateID string) (cqrs.SnapshotData, error) {
	key := es.keyBuilder.SnapshotKey(aggregateID)
	raw, err := es.client.GetClient().Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, cqrs.NewCQRSError(cqrs.ErrCodeEventStoreError.String(), "failed to load snapshot", err)
	}

	event, err := es.serializer.Deserialize(raw)
	if err != nil {
		return nil, cqrs.NewCQRSError(cqrs.ErrCodeSerializationError.String(), "failed to deserialize snapshot", err)
	}
	return cqrs.NewBaseSnapshotData(event.AggregateID(), event.AggregateType(), event.Version(), event.EventData()), nil
}

func (es *RedisStore) Subscribe(filter SubscriptionFilter, handler PushHandler) string {
	es.subMu.Lock()
	defer es.subMu.Unlock()
	id := uuid.New().String()
	es.subscribers[id] = subscriberEntry{filter: filter, handler: handler}
	return id
}

func (es *RedisStore) Unsubscribe(subscriptionID string) {
	es.subMu.Lock()
	defer es.subMu.Unlock()
	delete(es.subscribers, subscriptionID)
}

// Archive is a no-op on the Redis backend: lists have no cheap "delete older
// than" primitive, and Redis is not this system's archival tier (Postgres
// is). Operators that need archival should run the Postgres-backed store.
func (es *RedisStore) Archive(ctx context.Context, olderThanDays int) (int, error) {
	return 0, nil
}
