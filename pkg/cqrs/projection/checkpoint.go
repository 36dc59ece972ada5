// Package projection implements a pull-based, checkpointed read-model
// runtime: each registered projection polls the event store's global
// order from its own persisted checkpoint, applies
// a batch inside one logical transaction, and advances the checkpoint only
// on a fully-applied batch.
package projection

import (
	"context"
	"sync"

	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
)

// CheckpointStore persists the last global_sequence applied by each named
// projection. Implementations must make Save atomic with the caller's
// read-model batch write so a crash
// between the two never leaves the checkpoint ahead of what was applied.
type CheckpointStore interface {
	Load(ctx context.Context, projectionName string) (int64, error)
	Save(ctx context.Context, projectionName string, globalSequence int64) error
	Reset(ctx context.Context, projectionName string) error
}

// InMemoryCheckpointStore is the reference CheckpointStore used by the
// single-process command/query services and by tests.
type InMemoryCheckpointStore struct {
	mu          sync.Mutex
	checkpoints map[string]int64
}

// NewInMemoryCheckpointStore creates an empty checkpoint store.
func NewInMemoryCheckpointStore() *InMemoryCheckpointStore {
	return &InMemoryCheckpointStore{checkpoints: make(map[string]int64)}
}

var _ CheckpointStore = (*InMemoryCheckpointStore)(nil)

func (s *InMemoryCheckpointStore) Load(ctx context.Context, projectionName string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkpoints[projectionName], nil
}

func (s *InMemoryCheckpointStore) Save(ctx context.Context, projectionName string, globalSequence int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if globalSequence < s.checkpoints[projectionName] {
		return cqrs.NewDomainError(cqrs.KindFatal, "checkpoint_regression",
			"projection checkpoint cannot move backwards except through Reset", nil)
	}
	s.checkpoints[projectionName] = globalSequence
	return nil
}

func (s *InMemoryCheckpointStore) Reset(ctx context.Context, projectionName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[projectionName] = 0
	return nil
}
