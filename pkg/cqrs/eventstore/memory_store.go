package eventstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
)

// MemoryStore is a process-local EventStore used by tests and single-process
// demos. It implements the exact same optimistic-concurrency and catch-up
// contract as the Postgres backend so property tests can run against
// it without a database.
type MemoryStore struct {
	mu             sync.Mutex
	streams      map[string][]StoredEvent
	allEvents    []StoredEvent
	globalSeq    int64
	snapshots    *cqrs.InMemorySnapshotStore
	versionCache *cqrs.LRUCache[string, int]
	subscribers  map[string]subscriberEntry
}

type subscriberEntry struct {
	filter  SubscriptionFilter
	handler PushHandler
}

// NewMemoryStore creates an empty store with a version cache bounded to
// cacheSize entries (0 defaults to a reasonable size).
func NewMemoryStore(cacheSize int) *MemoryStore {
	if cacheSize <= 0 {
		cacheSize = 10_000
	}
	return &MemoryStore{
		streams:      make(map[string][]StoredEvent),
		snapshots:    cqrs.NewInMemorySnapshotStore(),
		versionCache: cqrs.NewLRUCache[string, int](cacheSize),
		subscribers:  make(map[string]subscriberEntry),
	}
}

var _ EventStore = (*MemoryStore)(nil)

func (s *MemoryStore) AppendToStream(ctx context.Context, streamID string, events []cqrs.EventMessage, expectedVersion int) (int, error) {
	if len(events) == 0 {
		return expectedVersion, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := len(s.streams[streamID])
	if current != expectedVersion {
		return 0, &cqrs.VersionConflictError{StreamID: streamID, Expected: expectedVersion, Actual: current}
	}

	committedAt := time.Now()
	for _, e := range events {
		s.globalSeq++
		stored := StoredEvent{
			EventMessage:   e,
			StreamID:       streamID,
			GlobalSequence: s.globalSeq,
			CommittedAt:    committedAt,
		}
		s.streams[streamID] = append(s.streams[streamID], stored)
		s.allEvents = append(s.allEvents, stored)
	}

	newVersion := current + len(events)
	s.versionCache.Put(streamID, newVersion)

	s.publishLocked(s.streams[streamID][current:])

	return newVersion, nil
}

// publishLocked fans committed events out to push subscribers. Called with
// mu held; handlers run synchronously and best-effort (a panicking handler
// is recovered and dropped, matching the "cosmetic notification" contract).
func (s *MemoryStore) publishLocked(events []StoredEvent) {
	for _, sub := range s.subscribers {
		for _, e := range events {
			if !sub.filter.matches(e.EventType()) {
				continue
			}
			s.safeNotify(sub.handler, e)
		}
	}
}

func (s *MemoryStore) safeNotify(handler PushHandler, event StoredEvent) {
	defer func() { _ = recover() }()
	handler(event)
}

func (s *MemoryStore) ReadStream(ctx context.Context, streamID string, fromVersion int, limit int) ([]StoredEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.streams[streamID]
	var out []StoredEvent
	for _, e := range all {
		if e.Version() <= fromVersion {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) ReadAllFrom(ctx context.Context, fromGlobal int64, limit int) ([]StoredEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := sort.Search(len(s.allEvents), func(i int) bool {
		return s.allEvents[i].GlobalSequence > fromGlobal
	})
	end := len(s.allEvents)
	if limit > 0 && idx+limit < end {
		end = idx + limit
	}
	out := make([]StoredEvent, end-idx)
	copy(out, s.allEvents[idx:end])
	return out, nil
}

func (s *MemoryStore) ReadByType(ctx context.Context, eventType string, fromGlobal int64, limit int) ([]StoredEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []StoredEvent
	for _, e := range s.allEvents {
		if e.GlobalSequence <= fromGlobal || e.EventType() != eventType {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) CurrentVersion(ctx context.Context, streamID string) (int, error) {
	if v, ok := s.versionCache.Get(streamID); ok {
		return v, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v := len(s.streams[streamID])
	s.versionCache.Put(streamID, v)
	return v, nil
}

func (s *MemoryStore) SaveSnapshot(ctx context.Context, snapshot cqrs.SnapshotData) error {
	return s.snapshots.Save(ctx, snapshot)
}

func (s *MemoryStore) GetLatestSnapshot(ctx context.Context, aggregateID string) (cqrs.SnapshotData, error) {
	return s.snapshots.Load(ctx, aggregateID)
}

func (s *MemoryStore) Subscribe(filter SubscriptionFilter, handler PushHandler) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New().String()
	s.subscribers[id] = subscriberEntry{filter: filter, handler: handler}
	return id
}

func (s *MemoryStore) Unsubscribe(subscriptionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscribers, subscriptionID)
}

func (s *MemoryStore) Archive(ctx context.Context, olderThanDays int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -olderThanDays)
	moved := 0
	for streamID, events := range s.streams {
		kept := events[:0:0]
		for _, e := range events {
			if e.CommittedAt.Before(cutoff) {
				moved++
				continue
			}
			kept = append(kept, e)
		}
		s.streams[streamID] = kept
	}
	return moved, nil
}
