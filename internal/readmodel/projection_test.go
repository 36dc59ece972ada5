package readmodel

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fenrir-shard/ledgerfolio/internal/domain/category"
	"github.com/fenrir-shard/ledgerfolio/internal/domain/order"
	"github.com/fenrir-shard/ledgerfolio/internal/domain/product"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs/eventstore"
)

func asStoredEvent(t *testing.T, events []cqrs.EventMessage, streamID string) eventstore.StoredEvent {
	t.Helper()
	require.Len(t, events, 1)
	return eventstore.StoredEvent{
		EventMessage:   events[0],
		StreamID:       streamID,
		GlobalSequence: int64(events[0].Version()),
		CommittedAt:    time.Now(),
	}
}

func TestProductProjectionFoldsCreateThenPriceChange(t *testing.T) {
	ctx := context.Background()
	store := NewProductStore(cqrs.NewInMemoryReadStore())
	proj := NewProductProjection(store)

	created, err := product.Execute(product.Empty("p1"), product.NewCreateCommand("p1", product.CreateData{
		Name: "Widget", Price: decimal.NewFromInt(10), CategoryID: "cat-1",
	}))
	require.NoError(t, err)
	require.NoError(t, proj.Apply(ctx, asStoredEvent(t, created, "Product-p1")))

	view, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, view)
	require.Equal(t, "Widget", view.Name)
	require.True(t, view.Price.Equal(decimal.NewFromInt(10)))

	priced, err := product.Execute(&product.Aggregate{ID: "p1", Version: 1, State: product.StateActive, Name: "Widget", Price: decimal.NewFromInt(10), CategoryID: "cat-1"},
		product.NewChangePriceCommand("p1", decimal.NewFromInt(15)))
	require.NoError(t, err)
	require.NoError(t, proj.Apply(ctx, asStoredEvent(t, priced, "Product-p1")))

	view, err = store.Get(ctx, "p1")
	require.NoError(t, err)
	require.True(t, view.Price.Equal(decimal.NewFromInt(15)))
	require.Equal(t, 2, view.Version)
}

func TestProductProjectionTruncate(t *testing.T) {
	ctx := context.Background()
	store := NewProductStore(cqrs.NewInMemoryReadStore())
	proj := NewProductProjection(store)

	created, err := product.Execute(product.Empty("p1"), product.NewCreateCommand("p1", product.CreateData{
		Name: "Widget", Price: decimal.NewFromInt(10), CategoryID: "cat-1",
	}))
	require.NoError(t, err)
	require.NoError(t, proj.Apply(ctx, asStoredEvent(t, created, "Product-p1")))

	require.NoError(t, proj.Truncate(ctx))
	all, err := store.All(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestCategoryProjectionFoldsCreateThenMove(t *testing.T) {
	ctx := context.Background()
	store := NewCategoryStore(cqrs.NewInMemoryReadStore())
	proj := NewCategoryProjection(store)

	created, err := category.Execute(category.Empty("c1"), category.NewCreateCommand("c1", category.CreateData{
		Name: "Electronics", ParentPath: "", ParentDepth: 0,
	}))
	require.NoError(t, err)
	require.NoError(t, proj.Apply(ctx, asStoredEvent(t, created, "Category-c1")))

	view, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, "Electronics", view.Name)
	require.Equal(t, 1, view.Depth)

	moved, err := category.Execute(&category.Aggregate{ID: "c1", Version: 1, State: category.StateActive, Name: "Electronics", Path: "/c1", Depth: 1},
		category.NewMoveCommand("c1", category.MoveData{NewParentID: "root", NewParentPath: "/root", NewParentDepth: 1}))
	require.NoError(t, err)
	require.NoError(t, proj.Apply(ctx, asStoredEvent(t, moved, "Category-c1")))

	view, err = store.Get(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, "root", view.ParentID)
	require.Equal(t, 2, view.Depth)
}

func TestOrderProjectionFoldsCreateThenPaymentFailed(t *testing.T) {
	ctx := context.Background()
	store := NewOrderStore(cqrs.NewInMemoryReadStore())
	proj := NewOrderProjection(store)

	items := []order.Item{{ProductID: "p1", Quantity: 2, UnitPrice: decimal.NewFromInt(10)}}
	created, err := order.Execute(order.Empty("o1"), order.NewCreateCommand("o1", order.CreateData{UserID: "u1", Items: items}))
	require.NoError(t, err)
	require.NoError(t, proj.Apply(ctx, asStoredEvent(t, created, "Order-o1")))

	view, err := store.Get(ctx, "o1")
	require.NoError(t, err)
	require.Equal(t, "pending", view.Status)
	firstSeen := view.CreatedAt

	reserved, err := order.Execute(&order.Aggregate{ID: "o1", Version: 1, State: order.StatePending, UserID: "u1", Items: items},
		order.NewReserveInventoryCommand("o1"))
	require.NoError(t, err)
	require.NoError(t, proj.Apply(ctx, asStoredEvent(t, reserved, "Order-o1")))

	failed, err := order.Execute(&order.Aggregate{ID: "o1", Version: 2, State: order.StatePaymentPending, UserID: "u1", Items: items},
		order.NewProcessPaymentCommand("o1", order.ProcessPaymentData{Succeed: false, Reason: "card_declined"}))
	require.NoError(t, err)
	require.NoError(t, proj.Apply(ctx, asStoredEvent(t, failed, "Order-o1")))

	view, err = store.Get(ctx, "o1")
	require.NoError(t, err)
	require.Equal(t, "payment_failed", view.Status)
	require.Equal(t, 3, view.Version)
	require.Equal(t, firstSeen, view.CreatedAt, "CreatedAt must not move once the order exists")
}
