// Package eventstore implements the append-only, per-stream event store:
// optimistic concurrency on append, durable pull catch-up for projections
// and sagas, snapshots, and archival. See store.go for the shared contract
// and memory_store.go/postgres_store.go/redis_store.go/mongo_store.go for
// the concrete backends.
package eventstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
)

// newSubscriptionID generates the opaque handle Subscribe returns, shared by
// every backend's subscriber bookkeeping.
func newSubscriptionID() string {
	return uuid.New().String()
}

// StoredEvent is a committed event record as it exists in the store: the
// domain event plus the two fields only the store itself assigns.
type StoredEvent struct {
	cqrs.EventMessage
	StreamID       string
	GlobalSequence int64
	CommittedAt    time.Time
}

// SubscriptionFilter narrows a push subscription to a set of event types.
// An empty EventTypes matches every event.
type SubscriptionFilter struct {
	EventTypes []string
}

func (f SubscriptionFilter) matches(eventType string) bool {
	if len(f.EventTypes) == 0 {
		return true
	}
	for _, t := range f.EventTypes {
		if t == eventType {
			return true
		}
	}
	return false
}

// PushHandler receives a best-effort, fire-and-forget notification after an
// event commits. It is never retried and must not block for long; durable
// consumers must use ReadAllFrom instead.
type PushHandler func(event StoredEvent)

// EventStore is the contract every backend (in-memory, Postgres, Redis,
// Mongo) implements. The method notes below say where a backend differs.
type EventStore interface {
	// AppendToStream commits events to streamID under an optimistic version
	// check. expectedVersion must equal the stream's current version or the
	// call fails with *cqrs.VersionConflictError. Returns the new current
	// version (expectedVersion + len(events)) on success.
	AppendToStream(ctx context.Context, streamID string, events []cqrs.EventMessage, expectedVersion int) (int, error)

	// ReadStream returns events for one stream strictly ordered by version,
	// starting after fromVersion. limit <= 0 means unbounded.
	ReadStream(ctx context.Context, streamID string, fromVersion int, limit int) ([]StoredEvent, error)

	// ReadAllFrom returns events in global commit order starting after
	// fromGlobal, for projection and saga catch-up. limit <= 0 means
	// unbounded (backends should still apply a sane internal cap).
	ReadAllFrom(ctx context.Context, fromGlobal int64, limit int) ([]StoredEvent, error)

	// ReadByType returns events of a single type in global commit order,
	// for narrow catch-up consumers that only care about one event kind.
	ReadByType(ctx context.Context, eventType string, fromGlobal int64, limit int) ([]StoredEvent, error)

	// CurrentVersion returns a stream's current (highest committed) version,
	// 0 if the stream has no events. The in-memory and Postgres backends
	// consult their version cache first; Redis reads its version key.
	CurrentVersion(ctx context.Context, streamID string) (int, error)

	// SaveSnapshot stores a new "latest" snapshot for the aggregate the
	// snapshot belongs to. Implementations must keep at most one latest
	// snapshot per aggregate id.
	SaveSnapshot(ctx context.Context, snapshot cqrs.SnapshotData) error

	// GetLatestSnapshot returns the most recent snapshot for aggregateID,
	// or (nil, nil) if none exists.
	GetLatestSnapshot(ctx context.Context, aggregateID string) (cqrs.SnapshotData, error)

	// Subscribe registers a best-effort push handler; returns a
	// subscription id that Unsubscribe accepts.
	Subscribe(filter SubscriptionFilter, handler PushHandler) string

	// Unsubscribe removes a push handler previously registered with Subscribe.
	Unsubscribe(subscriptionID string)

	// Archive moves committed events older than olderThanDays into an
	// archive partition in batches of ~1000, one transaction per batch.
	// Returns the total number of events archived. The Redis backend's
	// Archive does nothing and returns 0.
	Archive(ctx context.Context, olderThanDays int) (int, error)
}
