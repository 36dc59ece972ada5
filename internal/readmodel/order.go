package readmodel

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
	"github.com/fenrir-shard/ledgerfolio/internal/domain/order"
)

// OrderModelType is the ReadModel/ReadStore type tag order views are saved
// under.
const OrderModelType = "Order"

// OrderView is the query-side projection of the Order aggregate.
type OrderView struct {
	ID        string
	UserID    string
	Status    string
	Items     []order.Item
	Subtotal  decimal.Decimal
	Tax       decimal.Decimal
	Shipping  decimal.Decimal
	Total     decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int
}

// OrderStore is the Order read model.
type OrderStore struct {
	store cqrs.ReadStore
}

// NewOrderStore wraps store for Order views.
func NewOrderStore(store cqrs.ReadStore) *OrderStore {
	return &OrderStore{store: store}
}

// Upsert writes v, overwriting any prior view for the same ID.
func (s *OrderStore) Upsert(ctx context.Context, v OrderView) error {
	rm := cqrs.NewBaseReadModel(v.ID, OrderModelType, v)
	rm.SetVersion(v.Version)
	return s.store.Save(ctx, rm)
}

// Get returns the view for id, or (nil, nil) if no view exists yet.
func (s *OrderStore) Get(ctx context.Context, id string) (*OrderView, error) {
	model, ok, err := getByID(ctx, s.store, OrderModelType, id)
	if err != nil || !ok {
		return nil, err
	}
	v := model.GetData().(OrderView)
	return &v, nil
}

// All returns every stored order view, including terminal ones — unlike
// Product/Category, an order's history matters after it finishes, so
// nothing here is filtered out the way deleted products/categories are.
func (s *OrderStore) All(ctx context.Context) ([]OrderView, error) {
	models, err := queryByType(ctx, s.store, OrderModelType)
	if err != nil {
		return nil, err
	}
	out := make([]OrderView, 0, len(models))
	for _, m := range models {
		out = append(out, m.GetData().(OrderView))
	}
	return out, nil
}

// ListByUser returns userID's orders newest first, paginated.
func (s *OrderStore) ListByUser(ctx context.Context, userID string, page Pagination) ([]OrderView, int64, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, 0, err
	}
	var matched []OrderView
	for _, v := range all {
		if v.UserID == userID {
			matched = append(matched, v)
		}
	}
	sortByID(matched, func(v OrderView) string { return v.ID })
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	paged, total := paginate(matched, page)
	return paged, total, nil
}

// StatBucket is one group_by bucket of an order-stats query: a count and a
// revenue sum over every order whose GroupKey value matched.
type StatBucket struct {
	GroupKey string
	Count    int64
	Revenue  decimal.Decimal
}

// StatsByPeriod aggregates orders created in [from, to) into buckets keyed
// by groupBy ("status" or "day"). Unrecognized groupBy values fall back
// to "status".
func (s *OrderStore) StatsByPeriod(ctx context.Context, from, to time.Time, groupBy string) ([]StatBucket, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}

	buckets := make(map[string]*StatBucket)
	var keys []string
	for _, v := range all {
		if v.CreatedAt.Before(from) || !v.CreatedAt.Before(to) {
			continue
		}
		key := groupKey(v, groupBy)
		b, ok := buckets[key]
		if !ok {
			b = &StatBucket{GroupKey: key, Revenue: decimal.Zero}
			buckets[key] = b
			keys = append(keys, key)
		}
		b.Count++
		b.Revenue = b.Revenue.Add(v.Total)
	}

	sort.Strings(keys)
	out := make([]StatBucket, 0, len(keys))
	for _, key := range keys {
		out = append(out, *buckets[key])
	}
	return out, nil
}

func groupKey(v OrderView, groupBy string) string {
	if groupBy == "day" {
		return v.CreatedAt.Format("2006-01-02")
	}
	return v.Status
}

// Truncate clears every stored order view.
func (s *OrderStore) Truncate(ctx context.Context) error {
	models, err := queryByType(ctx, s.store, OrderModelType)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.GetID())
	}
	return s.store.DeleteBatch(ctx, ids, OrderModelType)
}
