package command

import (
	"context"

	"github.com/fenrir-shard/ledgerfolio/internal/domain/category"
	"github.com/fenrir-shard/ledgerfolio/internal/readmodel"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs/resilience"
)

var categoryOps = aggregateOps[category.Aggregate]{
	aggregateType: category.AggregateType,
	empty:         category.Empty,
	apply:         category.Apply,
	version:       func(a *category.Aggregate) int { return a.Version },
}

// CategoryHandler is the cqrs.CommandHandler for every Category command.
// Unlike Product, every Category command needs a read-model precheck
// (duplicate name, cycle, subcategory/product existence) resolved before
// category.Execute runs, since the aggregate's own event stream only
// knows its own history, never its siblings' or descendants'.
type CategoryHandler struct {
	engine     *Engine
	categories *readmodel.CategoryStore
	products   *readmodel.ProductStore
}

// NewCategoryHandler builds a handler bound to engine, reading prechecks
// from categories and products.
func NewCategoryHandler(engine *Engine, categories *readmodel.CategoryStore, products *readmodel.ProductStore) *CategoryHandler {
	return &CategoryHandler{engine: engine, categories: categories, products: products}
}

func (h *CategoryHandler) Handle(ctx context.Context, cmd cqrs.Command) (*cqrs.CommandResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var err error
	switch c := cmd.(type) {
	case *category.CreateCommand:
		err = h.fillCreateData(ctx, c)
	case *category.UpdateCommand:
		err = h.fillUpdateData(ctx, c)
	case *category.MoveCommand:
		err = h.fillMoveData(ctx, c)
	case *category.DeleteCommand:
		err = h.fillDeleteData(ctx, c)
	}
	if err != nil {
		return nil, err
	}

	return Run(ctx, h.engine, categoryOps, cmd, category.Execute)
}

func (h *CategoryHandler) fillCreateData(ctx context.Context, c *category.CreateCommand) error {
	var (
		taken bool
		path  string
		depth int
	)
	err := resilience.ResilientCall(ctx, h.engine.breakers, "readmodel.category", func(ctx context.Context) error {
		var err error
		taken, err = h.categories.NameTakenUnderParent(ctx, c.Data.ParentID, c.Data.Name, "")
		if err != nil {
			return err
		}
		path, depth, err = h.categories.PathAndDepth(ctx, c.Data.ParentID)
		return err
	})
	if err != nil {
		return err
	}
	c.Data.NameTaken = taken
	c.Data.ParentPath = path
	c.Data.ParentDepth = depth
	return nil
}

func (h *CategoryHandler) fillUpdateData(ctx context.Context, c *category.UpdateCommand) error {
	var taken bool
	err := resilience.ResilientCall(ctx, h.engine.breakers, "readmodel.category", func(ctx context.Context) error {
		current, err := h.categories.Get(ctx, c.AggregateID())
		if err != nil || current == nil {
			return err
		}
		taken, err = h.categories.NameTakenUnderParent(ctx, current.ParentID, c.Data.Name, c.AggregateID())
		return err
	})
	if err != nil {
		return err
	}
	c.Data.NameTaken = taken
	return nil
}

func (h *CategoryHandler) fillMoveData(ctx context.Context, c *category.MoveCommand) error {
	var (
		isCycle bool
		path    string
		depth   int
	)
	err := resilience.ResilientCall(ctx, h.engine.breakers, "readmodel.category", func(ctx context.Context) error {
		var err error
		isCycle, err = h.categories.IsCycle(ctx, c.AggregateID(), c.Data.NewParentID)
		if err != nil {
			return err
		}
		path, depth, err = h.categories.PathAndDepth(ctx, c.Data.NewParentID)
		return err
	})
	if err != nil {
		return err
	}
	c.Data.IsCycle = isCycle
	c.Data.NewParentPath = path
	c.Data.NewParentDepth = depth
	return nil
}

func (h *CategoryHandler) fillDeleteData(ctx context.Context, c *category.DeleteCommand) error {
	var hasSub, hasProducts bool
	err := resilience.ResilientCall(ctx, h.engine.breakers, "readmodel.category", func(ctx context.Context) error {
		var err error
		hasSub, err = h.categories.HasSubcategories(ctx, c.AggregateID())
		if err != nil {
			return err
		}
		count, err := h.products.CountByCategory(ctx, c.AggregateID())
		if err != nil {
			return err
		}
		hasProducts = count > 0
		return nil
	})
	if err != nil {
		return err
	}
	c.Data.HasSubcategories = hasSub
	c.Data.HasProducts = hasProducts
	return nil
}

func (h *CategoryHandler) CanHandle(commandType string) bool {
	switch commandType {
	case category.CommandCreate, category.CommandUpdate, category.CommandMove, category.CommandDelete:
		return true
	default:
		return false
	}
}

func (h *CategoryHandler) GetHandlerName() string { return "category_handler" }
