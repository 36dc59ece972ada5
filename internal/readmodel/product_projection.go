package readmodel

import (
	"context"

	"github.com/fenrir-shard/ledgerfolio/internal/domain/product"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs/eventstore"
)

// ProductProjection folds Product stream events into a ProductStore. It
// reconstructs the fold state from the previously saved view (or
// product.Empty on the first event) rather than keeping its own in-memory
// copy, so a Runner restart never leaves it out of sync with what's
// actually persisted.
type ProductProjection struct {
	store *ProductStore
}

// NewProductProjection registers store as the target of the Product event
// stream.
func NewProductProjection(store *ProductStore) *ProductProjection {
	return &ProductProjection{store: store}
}

func (p *ProductProjection) Name() string { return "product_view" }

func (p *ProductProjection) EventTypes() []string {
	return []string{
		product.EventProductCreated,
		product.EventProductUpdated,
		product.EventProductPriceChanged,
		product.EventProductDeleted,
	}
}

func (p *ProductProjection) Apply(ctx context.Context, event eventstore.StoredEvent) error {
	current, err := p.store.Get(ctx, event.AggregateID())
	if err != nil {
		return err
	}
	before := product.Empty(event.AggregateID())
	if current != nil {
		before.Version = current.Version
		before.State = product.StateActive
		if current.Deleted {
			before.State = product.StateDeleted
		}
		before.Name = current.Name
		before.Price = current.Price
		before.CategoryID = current.CategoryID
	}

	after := product.Apply(before, event.EventMessage)
	return p.store.Upsert(ctx, ProductView{
		ID:         after.ID,
		Name:       after.Name,
		Price:      after.Price,
		CategoryID: after.CategoryID,
		Deleted:    after.State == product.StateDeleted,
		Version:    after.Version,
	})
}

func (p *ProductProjection) Truncate(ctx context.Context) error {
	return p.store.Truncate(ctx)
}
