package projection

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs/eventstore"
)

// Projection is one read-model builder registered with a Runner. It never
// touches another projection's tables.
type Projection interface {
	// Name uniquely identifies this projection's checkpoint row.
	Name() string

	// EventTypes narrows the catch-up read to the event types this
	// projection cares about. An empty slice means "every event type".
	EventTypes() []string

	// Apply folds one committed event into the read model. It must be
	// idempotent at the event level: redelivery of the same event_id
	// (possible under at-least-once catch-up after a crash mid-batch)
	// must not double-apply.
	Apply(ctx context.Context, event eventstore.StoredEvent) error

	// Truncate clears the projection's own tables. Called by Reset before
	// the checkpoint is rewound to 0.
	Truncate(ctx context.Context) error
}

// Runner drives one projection's catch-up loop: load checkpoint, pull a
// batch from the event store in global order, apply it, advance the
// checkpoint — batch succeeds or fails as a unit.
type Runner struct {
	store       eventstore.EventStore
	checkpoints CheckpointStore
	batchSize   int
	pollEvery   time.Duration
	log         *logrus.Entry
}

// NewRunner creates a Runner reading batchSize events per catch-up
// iteration and polling again after pollEvery once it catches up to
// the head of the stream.
func NewRunner(store eventstore.EventStore, checkpoints CheckpointStore, batchSize int, pollEvery time.Duration, log *logrus.Entry) *Runner {
	if batchSize <= 0 {
		batchSize = 200
	}
	if pollEvery <= 0 {
		pollEvery = 500 * time.Millisecond
	}
	return &Runner{store: store, checkpoints: checkpoints, batchSize: batchSize, pollEvery: pollEvery, log: log}
}

// Run blocks, repeatedly catching a projection up to the head of the event
// store, until ctx is cancelled. A batch apply failure (a KindFatal
// DomainError) is logged at error level and returned — the runner stops this projection's loop rather than advancing the
// checkpoint past an unapplied batch, and the loop for this projection
// exits; callers typically run one goroutine per registered projection.
func (r *Runner) Run(ctx context.Context, p Projection) error {
	entry := r.log.WithField("projection", p.Name())
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		advanced, err := r.catchUpOnce(ctx, p)
		if err != nil {
			entry.WithError(err).Error("projection batch failed, stopping loop")
			return err
		}
		if advanced {
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.pollEvery):
		}
	}
}

// catchUpOnce applies at most one batch and reports whether it applied any
// events (so Run can immediately try for more instead of sleeping).
func (r *Runner) catchUpOnce(ctx context.Context, p Projection) (bool, error) {
	checkpoint, err := r.checkpoints.Load(ctx, p.Name())
	if err != nil {
		return false, cqrs.NewDomainError(cqrs.KindTransient, "checkpoint_load_failed", "failed to load projection checkpoint", err)
	}

	var (
		batch []eventstore.StoredEvent
		rerr  error
	)
	if types := p.EventTypes(); len(types) == 1 {
		batch, rerr = r.store.ReadByType(ctx, types[0], checkpoint, r.batchSize)
	} else {
		batch, rerr = r.store.ReadAllFrom(ctx, checkpoint, r.batchSize)
	}
	if rerr != nil {
		return false, cqrs.NewDomainError(cqrs.KindTransient, "projection_read_failed", "failed to read catch-up batch", rerr)
	}
	if len(batch) == 0 {
		return false, nil
	}

	filter := eventTypeSet(p.EventTypes())
	maxSeq := checkpoint
	for _, event := range batch {
		if filter != nil && !filter[event.EventType()] {
			if event.GlobalSequence > maxSeq {
				maxSeq = event.GlobalSequence
			}
			continue
		}
		if err := p.Apply(ctx, event); err != nil {
			return false, cqrs.NewDomainError(cqrs.KindFatal, "projection_apply_failed",
				"failed to apply event to read model", err)
		}
		if event.GlobalSequence > maxSeq {
			maxSeq = event.GlobalSequence
		}
	}

	if err := r.checkpoints.Save(ctx, p.Name(), maxSeq); err != nil {
		return false, cqrs.NewDomainError(cqrs.KindFatal, "checkpoint_save_failed", "failed to advance projection checkpoint", err)
	}
	return true, nil
}

// Reset truncates the projection's own tables and rewinds its checkpoint to
// 0; the next Run iteration rebuilds the read model from full history.
func (r *Runner) Reset(ctx context.Context, p Projection) error {
	if err := p.Truncate(ctx); err != nil {
		return cqrs.NewDomainError(cqrs.KindFatal, "projection_truncate_failed", "failed to truncate projection tables", err)
	}
	return r.checkpoints.Reset(ctx, p.Name())
}

func eventTypeSet(types []string) map[string]bool {
	if len(types) == 0 {
		return nil
	}
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return set
}
