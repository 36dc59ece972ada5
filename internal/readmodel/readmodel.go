// Package readmodel holds the query-optimized views built from committed
// events: one typed store per aggregate type, each
// wrapping its entries in a cqrs.BaseReadModel and persisting through a
// cqrs.ReadStore. Filtering, sorting, and pagination beyond "all rows of
// one type" are done in Go here rather than through ReadStore.Query's
// criteria matching, which only compares the type/id fields (see
// in_memory_read_store.go) — too weak for a category tree walk or an
// order-stats aggregation.
package readmodel

import (
	"context"
	"sort"

	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
)

// queryByType fetches every stored model of modelType. The InMemoryReadStore
// (and any ReadStore built the same way) matches a Filters["type"] entry
// against ReadModel.GetType() directly, so this is the one criteria shape
// that store's matchesCriteria actually honors.
func queryByType(ctx context.Context, store cqrs.ReadStore, modelType string) ([]cqrs.ReadModel, error) {
	return store.Query(ctx, cqrs.QueryCriteria{Filters: map[string]interface{}{"type": modelType}})
}

func getByID(ctx context.Context, store cqrs.ReadStore, modelType, id string) (cqrs.ReadModel, bool, error) {
	model, err := store.GetByID(ctx, id, modelType)
	if err != nil {
		return nil, false, nil
	}
	return model, true, nil
}

// Pagination is a plain Offset/Limit pair owned by this package so store
// methods can paginate a slice without reaching into pkg/cqrs.QueryCriteria.
type Pagination struct {
	Offset int
	Limit  int
}

// paginate applies p to a slice already sorted into final order, returning
// the page and the untruncated total.
func paginate[T any](items []T, p Pagination) ([]T, int64) {
	total := int64(len(items))
	if p.Limit <= 0 {
		return items, total
	}
	start := p.Offset
	if start > len(items) {
		start = len(items)
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], total
}

// sortByID orders items by ID. Every store calls it before the stable sort
// on its primary key, so ID acts as the tiebreaker and pagination across
// calls never reorders two rows with an otherwise-equal sort value.
func sortByID[T any](items []T, id func(T) string) {
	sort.SliceStable(items, func(i, j int) bool { return id(items[i]) < id(items[j]) })
}
