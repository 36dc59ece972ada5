// Package command implements the per-aggregate-type command handlers
// registered with a cqrs.CommandDispatcher: validate, load, run any
// cross-aggregate read-model prechecks, Execute, append with
// version-conflict retry, publish, cache by idempotency key.
package command

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs/eventstore"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs/resilience"
)

// idempotent is satisfied by every command this package handles (they all
// embed *cqrs.BaseCommand, which carries the caller-supplied dedup token).
type idempotent interface {
	IdempotencyKey() string
}

// Engine runs the protocol shared by every aggregate's handler. Each
// aggregate type supplies its pure Empty/Apply/Execute through
// aggregateOps; Engine owns the parts that aren't pure: the event store
// round trip, the version-conflict retry loop, snapshot cadence, event
// bus publication, and the idempotency cache.
type Engine struct {
	store         eventstore.EventStore
	bus           cqrs.EventBus
	breakers      resilience.CircuitBreakerManager
	idempotency   *cqrs.LRUCache[string, *cqrs.CommandResult]
	maxRetries    int
	snapshotEvery int
	log           *logrus.Entry
}

// NewEngine wires an Engine against store (the primary Event Store
// backend), bus (published to after every successful append), breakers
// (guarding the read-model prechecks each handler runs), maxRetries
// (command_bus.max_retries) and snapshotEvery (event_store.snapshot_frequency).
func NewEngine(store eventstore.EventStore, bus cqrs.EventBus, breakers resilience.CircuitBreakerManager, maxRetries, snapshotEvery int, log *logrus.Entry) *Engine {
	if maxRetries < 1 {
		maxRetries = 3
	}
	if snapshotEvery < 1 {
		snapshotEvery = 100
	}
	return &Engine{
		store:         store,
		bus:           bus,
		breakers:      breakers,
		idempotency:   cqrs.NewLRUCache[string, *cqrs.CommandResult](4096),
		maxRetries:    maxRetries,
		snapshotEvery: snapshotEvery,
		log:           log,
	}
}

// aggregateOps binds one domain package's pure functions plus the two
// accessors Engine needs that a bare type parameter can't express.
type aggregateOps[T any] struct {
	aggregateType string
	empty         func(id string) *T
	apply         func(a *T, event cqrs.EventMessage) *T
	version       func(a *T) int
}

func streamID(aggregateType, id string) string {
	return aggregateType + "-" + id
}

// load folds the aggregate's current value from its latest snapshot (if
// any) plus every event committed since.
func load[T any](ctx context.Context, store eventstore.EventStore, ops aggregateOps[T], id string) (*T, error) {
	a := ops.empty(id)
	fromVersion := 0
	if snap, err := store.GetLatestSnapshot(ctx, id); err == nil && snap != nil {
		if typed, ok := snap.Data().(*T); ok {
			a = typed
			fromVersion = snap.Version()
		}
	}

	events, err := store.ReadStream(ctx, streamID(ops.aggregateType, id), fromVersion, 0)
	if err != nil {
		return nil, cqrs.NewDomainError(cqrs.KindTransient, "load_failed", "failed to read aggregate stream", err)
	}
	for _, e := range events {
		a = ops.apply(a, e.EventMessage)
	}
	return a, nil
}

// Run executes the full command protocol for one aggregate type. execute
// is the aggregate's pure Execute function; any cross-aggregate precheck
// data the command needs must already be filled into cmd by the caller
// before Run is invoked, since Run itself never touches the read model.
func Run[T any](ctx context.Context, e *Engine, ops aggregateOps[T], cmd cqrs.Command, execute func(a *T, cmd cqrs.Command) ([]cqrs.EventMessage, error)) (*cqrs.CommandResult, error) {
	if key := idempotencyKey(cmd); key != "" {
		if cached, ok := e.idempotency.Get(key); ok {
			return cached, nil
		}
	}

	start := time.Now()
	var (
		result  *cqrs.CommandResult
		lastErr error
	)

	for attempt := 0; attempt < e.maxRetries; attempt++ {
		a, err := load(ctx, e.store, ops, cmd.AggregateID())
		if err != nil {
			return nil, err
		}

		events, err := execute(a, cmd)
		if err != nil {
			return nil, err
		}
		if len(events) == 0 {
			result = &cqrs.CommandResult{Success: true, AggregateID: cmd.AggregateID(), Version: ops.version(a), ExecutionTime: time.Since(start)}
			break
		}

		sid := streamID(ops.aggregateType, cmd.AggregateID())
		newVersion, err := e.store.AppendToStream(ctx, sid, events, ops.version(a))
		if err != nil {
			var conflict *cqrs.VersionConflictError
			if errors.As(err, &conflict) {
				lastErr = conflict
				e.log.WithFields(logrus.Fields{"stream_id": sid, "attempt": attempt + 1}).Warn("version conflict on append, retrying")
				waitWithJitter(ctx, attempt)
				continue
			}
			return nil, err
		}

		after := a
		for _, ev := range events {
			after = ops.apply(after, ev)
		}
		maybeSnapshot(ctx, e, ops, cmd.AggregateID(), after, newVersion)
		e.publish(ctx, events)

		result = &cqrs.CommandResult{Success: true, Events: events, AggregateID: cmd.AggregateID(), Version: newVersion, ExecutionTime: time.Since(start)}
		break
	}

	if result == nil {
		return nil, cqrs.NewDomainError(cqrs.KindTransient, "version_conflict_retries_exhausted",
			"exhausted command_bus.max_retries retries on version conflict", errors.Join(cqrs.ErrServiceUnavailable, lastErr))
	}

	if key := idempotencyKey(cmd); key != "" {
		e.idempotency.Put(key, result)
	}
	return result, nil
}

func idempotencyKey(cmd cqrs.Command) string {
	if ic, ok := cmd.(idempotent); ok {
		return ic.IdempotencyKey()
	}
	return ""
}

func (e *Engine) publish(ctx context.Context, events []cqrs.EventMessage) {
	if e.bus == nil {
		return
	}
	if err := e.bus.PublishBatch(ctx, events); err != nil {
		e.log.WithError(err).Warn("event bus publish failed, durable pull consumers are unaffected")
	}
}

// maybeSnapshot saves a was-current-as-of-version snapshot every
// snapshotEvery events, decided after the append has already committed;
// a failure here is logged and otherwise ignored. Snapshot writes never
// block or fail a command.
func maybeSnapshot[T any](ctx context.Context, e *Engine, ops aggregateOps[T], id string, a *T, version int) {
	if version == 0 || version%e.snapshotEvery != 0 {
		return
	}
	snap := cqrs.NewBaseSnapshotData(id, ops.aggregateType, version, a)
	err := resilience.ResilientCall(ctx, e.breakers, "event_store.snapshot", func(ctx context.Context) error {
		return e.store.SaveSnapshot(ctx, snap)
	})
	if err != nil {
		e.log.WithError(err).WithField("aggregate_id", id).Warn("snapshot save failed, continuing without it")
	}
}

// waitWithJitter backs off between version-conflict retries; cancelled
// early if ctx is done.
func waitWithJitter(ctx context.Context, attempt int) {
	base := time.Duration(attempt+1) * 20 * time.Millisecond
	jitter := time.Duration(rand.Int63n(int64(base) + 1))
	select {
	case <-ctx.Done():
	case <-time.After(base + jitter):
	}
}
