package readmodel

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
)

// ProductModelType is the ReadModel/ReadStore type tag product views are
// saved under.
const ProductModelType = "Product"

// ProductView is the query-side projection of the Product aggregate.
type ProductView struct {
	ID         string
	Name       string
	Price      decimal.Decimal
	CategoryID string
	Deleted    bool
	Version    int
}

// ProductStore is the Product read model, backed by any cqrs.ReadStore.
type ProductStore struct {
	store cqrs.ReadStore
}

// NewProductStore wraps store for Product views.
func NewProductStore(store cqrs.ReadStore) *ProductStore {
	return &ProductStore{store: store}
}

// Upsert writes v, overwriting any prior view for the same ID.
func (s *ProductStore) Upsert(ctx context.Context, v ProductView) error {
	rm := cqrs.NewBaseReadModel(v.ID, ProductModelType, v)
	rm.SetVersion(v.Version)
	return s.store.Save(ctx, rm)
}

// Get returns the view for id, or (nil, nil) if no view exists yet.
func (s *ProductStore) Get(ctx context.Context, id string) (*ProductView, error) {
	model, ok, err := getByID(ctx, s.store, ProductModelType, id)
	if err != nil || !ok {
		return nil, err
	}
	v := model.GetData().(ProductView)
	return &v, nil
}

// ExistsActive reports whether id names a non-deleted product, the
// precheck internal/command's Order handler needs before it can trust a
// line item's product id and current price.
func (s *ProductStore) ExistsActive(ctx context.Context, id string) (bool, *ProductView, error) {
	v, err := s.Get(ctx, id)
	if err != nil || v == nil || v.Deleted {
		return false, nil, err
	}
	return true, v, nil
}

// All returns every non-deleted product view.
func (s *ProductStore) All(ctx context.Context) ([]ProductView, error) {
	models, err := queryByType(ctx, s.store, ProductModelType)
	if err != nil {
		return nil, err
	}
	out := make([]ProductView, 0, len(models))
	for _, m := range models {
		v := m.GetData().(ProductView)
		if !v.Deleted {
			out = append(out, v)
		}
	}
	return out, nil
}

// ListByCategory returns categoryID's active products, sorted by Name, with
// the given page applied, plus the untruncated total count the list API
// reports alongside the page.
func (s *ProductStore) ListByCategory(ctx context.Context, categoryID string, page Pagination) ([]ProductView, int64, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, 0, err
	}
	var matched []ProductView
	for _, v := range all {
		if v.CategoryID == categoryID {
			matched = append(matched, v)
		}
	}
	sortByID(matched, func(v ProductView) string { return v.ID })
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	page2, total := paginate(matched, page)
	return page2, total, nil
}

// CountByCategory is the `product_count` the Category query API reports per
// node, computed by scanning rather than maintaining a denormalized
// counter — the read model is rebuilt from scratch often enough on
// replay that a counter would just be one more thing Reset has to
// remember to zero.
func (s *ProductStore) CountByCategory(ctx context.Context, categoryID string) (int64, error) {
	all, err := s.All(ctx)
	if err != nil {
		return 0, err
	}
	var count int64
	for _, v := range all {
		if v.CategoryID == categoryID {
			count++
		}
	}
	return count, nil
}

// Truncate clears every stored product view (projection.Projection.Truncate).
func (s *ProductStore) Truncate(ctx context.Context) error {
	models, err := queryByType(ctx, s.store, ProductModelType)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.GetID())
	}
	return s.store.DeleteBatch(ctx, ids, ProductModelType)
}
