package command

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/fenrir-shard/ledgerfolio/internal/domain/order"
	"github.com/fenrir-shard/ledgerfolio/internal/readmodel"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs/eventstore"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs/resilience"
)

func testOrderHandler() (*OrderHandler, *readmodel.ProductStore) {
	store := eventstore.NewMemoryStore(0)
	breakers := resilience.NewCircuitBreakerManager(resilience.DefaultConfig())
	engine := NewEngine(store, nil, breakers, 3, 100, logrus.NewEntry(logrus.New()))
	products := readmodel.NewProductStore(cqrs.NewInMemoryReadStore())
	return NewOrderHandler(engine, products), products
}

func TestOrderHandlerCreatePricesFromReadModel(t *testing.T) {
	ctx := context.Background()
	h, products := testOrderHandler()

	require.NoError(t, products.Upsert(ctx, readmodel.ProductView{
		ID: "p1", Name: "Widget", Price: decimal.NewFromInt(25), CategoryID: "cat-1", Version: 1,
	}))

	result, err := h.Handle(ctx, order.NewCreateCommand("o1", order.CreateData{
		UserID: "u1",
		Items:  []order.Item{{ProductID: "p1", Quantity: 3, UnitPrice: decimal.NewFromInt(1)}},
	}))
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Len(t, result.Events, 1)

	created, ok := result.Events[0].EventData().(*order.OrderCreated)
	require.True(t, ok)
	require.Len(t, created.Items, 1)
	require.True(t, created.Items[0].UnitPrice.Equal(decimal.NewFromInt(25)), "handler must overwrite caller-supplied price with the read model's")
}

func TestOrderHandlerCreateRejectsUnknownProduct(t *testing.T) {
	ctx := context.Background()
	h, _ := testOrderHandler()

	_, err := h.Handle(ctx, order.NewCreateCommand("o1", order.CreateData{
		UserID: "u1",
		Items:  []order.Item{{ProductID: "missing", Quantity: 1, UnitPrice: decimal.NewFromInt(1)}},
	}))
	require.Error(t, err)
	var domainErr *cqrs.DomainError
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, "product_not_found", domainErr.Code)
}

func TestOrderHandlerCreateRejectsEmptyOrder(t *testing.T) {
	ctx := context.Background()
	h, _ := testOrderHandler()

	_, err := h.Handle(ctx, order.NewCreateCommand("o1", order.CreateData{UserID: "u1"}))
	require.Error(t, err)
}

func TestOrderHandlerReserveInventoryNoPrecheck(t *testing.T) {
	ctx := context.Background()
	h, products := testOrderHandler()
	require.NoError(t, products.Upsert(ctx, readmodel.ProductView{
		ID: "p1", Price: decimal.NewFromInt(5), Version: 1,
	}))

	_, err := h.Handle(ctx, order.NewCreateCommand("o1", order.CreateData{
		UserID: "u1",
		Items:  []order.Item{{ProductID: "p1", Quantity: 1, UnitPrice: decimal.NewFromInt(5)}},
	}))
	require.NoError(t, err)

	result, err := h.Handle(ctx, order.NewReserveInventoryCommand("o1"))
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 2, result.Version)
}
