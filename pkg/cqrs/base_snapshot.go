package cqrs

import (
	"context"
	"sync"
)

// InMemorySnapshotStore keeps at most one latest SnapshotData per aggregate
// ID. It backs eventstore.MemoryStore's SaveSnapshot/GetLatestSnapshot.
type InMemorySnapshotStore struct {
	snapshots map[string]SnapshotData
	mutex     sync.RWMutex
}

// NewInMemorySnapshotStore creates a new in-memory snapshot store
func NewInMemorySnapshotStore() *InMemorySnapshotStore {
	return &InMemorySnapshotStore{
		snapshots: make(map[string]SnapshotData),
	}
}

func (s *InMemorySnapshotStore) Save(ctx context.Context, snapshot SnapshotData) error {
	if snapshot == nil {
		return NewCQRSError(ErrCodeSnapshotValidationFailed.String(), "snapshot cannot be nil", nil)
	}

	if err := snapshot.Validate(); err != nil {
		return NewCQRSError(ErrCodeSnapshotValidationFailed.String(), "snapshot validation failed", err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.snapshots[snapshot.AggregateID()] = snapshot

	return nil
}

// Load returns (nil, nil) if no snapshot exists for aggregateID, matching
// eventstore.EventStore.GetLatestSnapshot's contract.
func (s *InMemorySnapshotStore) Load(ctx context.Context, aggregateID string) (SnapshotData, error) {
	if aggregateID == "" {
		return nil, NewCQRSError(ErrCodeInvalidAggregate.String(), "aggregate ID cannot be empty", nil)
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	snapshot, ok := s.snapshots[aggregateID]
	if !ok {
		return nil, nil
	}
	return snapshot, nil
}
