package command

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/fenrir-shard/ledgerfolio/internal/domain/product"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs/eventstore"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs/resilience"
)

func testEngine(maxRetries, snapshotEvery int) (*Engine, eventstore.EventStore, cqrs.EventBus) {
	store := eventstore.NewMemoryStore(0)
	bus := cqrs.NewInMemoryEventBus()
	breakers := resilience.NewCircuitBreakerManager(resilience.DefaultConfig())
	log := logrus.NewEntry(logrus.New())
	return NewEngine(store, bus, breakers, maxRetries, snapshotEvery, log), store, bus
}

func TestProductHandlerCreateThenChangePrice(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := testEngine(3, 100)
	h := NewProductHandler(engine)

	created, err := h.Handle(ctx, product.NewCreateCommand("p1", product.CreateData{
		Name: "Widget", Price: decimal.NewFromInt(10), CategoryID: "cat-1",
	}))
	require.NoError(t, err)
	require.True(t, created.Success)
	require.Equal(t, 1, created.Version)

	priced, err := h.Handle(ctx, product.NewChangePriceCommand("p1", decimal.NewFromInt(15)))
	require.NoError(t, err)
	require.True(t, priced.Success)
	require.Equal(t, 2, priced.Version)
}

func TestProductHandlerRejectsUnknownAggregate(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := testEngine(3, 100)
	h := NewProductHandler(engine)

	_, err := h.Handle(ctx, product.NewChangePriceCommand("missing", decimal.NewFromInt(5)))
	require.Error(t, err)
}

func TestProductHandlerIdempotencyKeyShortCircuitsReplay(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := testEngine(3, 100)
	h := NewProductHandler(engine)

	cmd := product.NewCreateCommand("p1", product.CreateData{
		Name: "Widget", Price: decimal.NewFromInt(10), CategoryID: "cat-1",
	})
	cmd.SetIdempotencyKey("create-p1-once")

	first, err := h.Handle(ctx, cmd)
	require.NoError(t, err)
	require.Equal(t, 1, first.Version)

	second, err := h.Handle(ctx, cmd)
	require.NoError(t, err)
	require.Equal(t, first.Version, second.Version)
	require.Same(t, first, second)
}

func TestStaleAppendConflictsAndRunUsesCurrentVersion(t *testing.T) {
	ctx := context.Background()
	store := eventstore.NewMemoryStore(0)
	breakers := resilience.NewCircuitBreakerManager(resilience.DefaultConfig())
	engine := NewEngine(store, nil, breakers, 3, 100, logrus.NewEntry(logrus.New()))
	h := NewProductHandler(engine)

	_, err := h.Handle(ctx, product.NewCreateCommand("p1", product.CreateData{
		Name: "Widget", Price: decimal.NewFromInt(10), CategoryID: "cat-1",
	}))
	require.NoError(t, err)

	stale, err := product.Execute(product.Empty("p1"), product.NewCreateCommand("p1", product.CreateData{
		Name: "Widget", Price: decimal.NewFromInt(99), CategoryID: "cat-1",
	}))
	require.NoError(t, err)
	_, err = store.AppendToStream(ctx, "Product-p1", stale, 0)
	require.Error(t, err)
	var conflict *cqrs.VersionConflictError
	require.ErrorAs(t, err, &conflict)

	result, err := h.Handle(ctx, product.NewChangePriceCommand("p1", decimal.NewFromInt(20)))
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 2, result.Version)
}

func TestMaybeSnapshotSavesOnCadence(t *testing.T) {
	ctx := context.Background()
	store := eventstore.NewMemoryStore(0)
	breakers := resilience.NewCircuitBreakerManager(resilience.DefaultConfig())
	engine := NewEngine(store, nil, breakers, 3, 3, logrus.NewEntry(logrus.New()))
	h := NewProductHandler(engine)

	_, err := h.Handle(ctx, product.NewCreateCommand("p1", product.CreateData{
		Name: "Widget", Price: decimal.NewFromInt(10), CategoryID: "cat-1",
	}))
	require.NoError(t, err)
	_, err = h.Handle(ctx, product.NewChangePriceCommand("p1", decimal.NewFromInt(11)))
	require.NoError(t, err)

	snap, err := store.GetLatestSnapshot(ctx, "p1")
	require.NoError(t, err)
	require.Nil(t, snap)

	_, err = h.Handle(ctx, product.NewChangePriceCommand("p1", decimal.NewFromInt(12)))
	require.NoError(t, err)

	snap, err = store.GetLatestSnapshot(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.Equal(t, 3, snap.Version())
}
