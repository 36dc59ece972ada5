package readmodel

import (
	"context"

	"github.com/fenrir-shard/ledgerfolio/internal/domain/category"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs/eventstore"
)

// CategoryProjection folds Category stream events into a CategoryStore,
// the same reconstruct-fold-from-the-last-view pattern as ProductProjection.
type CategoryProjection struct {
	store *CategoryStore
}

// NewCategoryProjection registers store as the target of the Category
// event stream.
func NewCategoryProjection(store *CategoryStore) *CategoryProjection {
	return &CategoryProjection{store: store}
}

func (p *CategoryProjection) Name() string { return "category_view" }

func (p *CategoryProjection) EventTypes() []string {
	return []string{
		category.EventCategoryCreated,
		category.EventCategoryUpdated,
		category.EventCategoryMoved,
		category.EventCategoryDeleted,
	}
}

func (p *CategoryProjection) Apply(ctx context.Context, event eventstore.StoredEvent) error {
	current, err := p.store.Get(ctx, event.AggregateID())
	if err != nil {
		return err
	}
	before := category.Empty(event.AggregateID())
	if current != nil {
		before.Version = current.Version
		before.State = category.StateActive
		if current.Deleted {
			before.State = category.StateDeleted
		}
		before.Name = current.Name
		before.ParentID = current.ParentID
		before.Path = current.Path
		before.Depth = current.Depth
	}

	after := category.Apply(before, event.EventMessage)
	return p.store.Upsert(ctx, CategoryView{
		ID:       after.ID,
		Name:     after.Name,
		ParentID: after.ParentID,
		Path:     after.Path,
		Depth:    after.Depth,
		Deleted:  after.State == category.StateDeleted,
		Version:  after.Version,
	})
}

func (p *CategoryProjection) Truncate(ctx context.Context) error {
	return p.store.Truncate(ctx)
}
