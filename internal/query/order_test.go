package query

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fenrir-shard/ledgerfolio/internal/readmodel"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
)

func testOrderQueryHandler() (*OrderHandler, *readmodel.OrderStore) {
	orders := readmodel.NewOrderStore(cqrs.NewInMemoryReadStore())
	return NewOrderHandler(orders), orders
}

func TestOrderHandlerGetReturnsNotFound(t *testing.T) {
	h, _ := testOrderQueryHandler()

	result, err := h.Handle(context.Background(), NewGetOrderQuery("missing"))
	require.NoError(t, err)
	require.False(t, result.Success)
	require.ErrorIs(t, result.Error, cqrs.ErrAggregateNotFound)
}

func TestOrderHandlerListByUserNewestFirst(t *testing.T) {
	h, orders := testOrderQueryHandler()
	ctx := context.Background()
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, orders.Upsert(ctx, readmodel.OrderView{ID: "o1", UserID: "u1", CreatedAt: older, Total: decimal.NewFromInt(10), Version: 1}))
	require.NoError(t, orders.Upsert(ctx, readmodel.OrderView{ID: "o2", UserID: "u1", CreatedAt: newer, Total: decimal.NewFromInt(20), Version: 1}))

	result, err := h.Handle(ctx, NewListOrdersByUserQuery("u1"))
	require.NoError(t, err)
	views, ok := result.Data.([]readmodel.OrderView)
	require.True(t, ok)
	require.Len(t, views, 2)
	require.Equal(t, "o2", views[0].ID)
}

func TestOrderHandlerStatsGroupsByStatusAndSumsRevenue(t *testing.T) {
	h, orders := testOrderQueryHandler()
	ctx := context.Background()
	within := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, orders.Upsert(ctx, readmodel.OrderView{ID: "o1", Status: "delivered", CreatedAt: within, Total: decimal.NewFromInt(30), Version: 1}))
	require.NoError(t, orders.Upsert(ctx, readmodel.OrderView{ID: "o2", Status: "delivered", CreatedAt: within, Total: decimal.NewFromInt(20), Version: 1}))

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	result, err := h.Handle(ctx, NewOrderStatsQuery(from, to, "status"))
	require.NoError(t, err)
	buckets, ok := result.Data.([]readmodel.StatBucket)
	require.True(t, ok)
	require.Len(t, buckets, 1)
	require.Equal(t, "delivered", buckets[0].GroupKey)
	require.Equal(t, int64(2), buckets[0].Count)
	require.True(t, buckets[0].Revenue.Equal(decimal.NewFromInt(50)))
}

func TestOrderStatsQueryRejectsBadGroupBy(t *testing.T) {
	q := NewOrderStatsQuery(time.Now(), time.Now().Add(time.Hour), "invalid")
	require.Error(t, q.Validate())
}

func TestOrderStatsQueryRejectsInvertedRange(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q := NewOrderStatsQuery(now, now.Add(-time.Hour), "status")
	require.Error(t, q.Validate())
}
