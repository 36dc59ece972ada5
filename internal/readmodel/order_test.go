package readmodel

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
)

func TestOrderStoreListByUserSortsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewOrderStore(cqrs.NewInMemoryReadStore())

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Upsert(ctx, OrderView{ID: "o1", UserID: "u1", Status: "completed", Total: decimal.NewFromInt(100), CreatedAt: base, Version: 1}))
	require.NoError(t, store.Upsert(ctx, OrderView{ID: "o2", UserID: "u1", Status: "pending", Total: decimal.NewFromInt(50), CreatedAt: base.Add(time.Hour), Version: 1}))
	require.NoError(t, store.Upsert(ctx, OrderView{ID: "o3", UserID: "u2", Status: "pending", Total: decimal.NewFromInt(75), CreatedAt: base.Add(2 * time.Hour), Version: 1}))

	orders, total, err := store.ListByUser(ctx, "u1", Pagination{})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Equal(t, "o2", orders[0].ID)
	require.Equal(t, "o1", orders[1].ID)
}

func TestOrderStoreStatsByPeriodGroupsByStatus(t *testing.T) {
	ctx := context.Background()
	store := NewOrderStore(cqrs.NewInMemoryReadStore())

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Upsert(ctx, OrderView{ID: "o1", Status: "completed", Total: decimal.NewFromInt(100), CreatedAt: base, Version: 1}))
	require.NoError(t, store.Upsert(ctx, OrderView{ID: "o2", Status: "completed", Total: decimal.NewFromInt(50), CreatedAt: base.Add(time.Hour), Version: 1}))
	require.NoError(t, store.Upsert(ctx, OrderView{ID: "o3", Status: "cancelled", Total: decimal.NewFromInt(25), CreatedAt: base.Add(2 * time.Hour), Version: 1}))
	// outside the window
	require.NoError(t, store.Upsert(ctx, OrderView{ID: "o4", Status: "completed", Total: decimal.NewFromInt(999), CreatedAt: base.Add(-48 * time.Hour), Version: 1}))

	buckets, err := store.StatsByPeriod(ctx, base, base.Add(24*time.Hour), "status")
	require.NoError(t, err)
	require.Len(t, buckets, 2)

	byKey := make(map[string]StatBucket)
	for _, b := range buckets {
		byKey[b.GroupKey] = b
	}
	require.EqualValues(t, 2, byKey["completed"].Count)
	require.True(t, byKey["completed"].Revenue.Equal(decimal.NewFromInt(150)))
	require.EqualValues(t, 1, byKey["cancelled"].Count)
}

func TestOrderStoreStatsByPeriodGroupsByDay(t *testing.T) {
	ctx := context.Background()
	store := NewOrderStore(cqrs.NewInMemoryReadStore())

	day1 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.Upsert(ctx, OrderView{ID: "o1", Status: "completed", Total: decimal.NewFromInt(10), CreatedAt: day1, Version: 1}))
	require.NoError(t, store.Upsert(ctx, OrderView{ID: "o2", Status: "completed", Total: decimal.NewFromInt(10), CreatedAt: day2, Version: 1}))

	buckets, err := store.StatsByPeriod(ctx, day1.Add(-time.Hour), day2.Add(time.Hour), "day")
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	require.Equal(t, "2026-01-01", buckets[0].GroupKey)
	require.Equal(t, "2026-01-02", buckets[1].GroupKey)
}
