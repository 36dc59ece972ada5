package command

import (
	"context"

	"github.com/fenrir-shard/ledgerfolio/internal/domain/product"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
)

var productOps = aggregateOps[product.Aggregate]{
	aggregateType: product.AggregateType,
	empty:         product.Empty,
	apply:         product.Apply,
	version:       func(a *product.Aggregate) int { return a.Version },
}

// ProductHandler is the cqrs.CommandHandler for every Product command. It
// has no cross-aggregate prechecks to run — product.Execute only needs
// the command's own payload — so Handle just validates and runs the
// shared Engine protocol.
type ProductHandler struct {
	engine *Engine
}

// NewProductHandler builds a handler bound to engine.
func NewProductHandler(engine *Engine) *ProductHandler {
	return &ProductHandler{engine: engine}
}

func (h *ProductHandler) Handle(ctx context.Context, cmd cqrs.Command) (*cqrs.CommandResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return Run(ctx, h.engine, productOps, cmd, product.Execute)
}

func (h *ProductHandler) CanHandle(commandType string) bool {
	switch commandType {
	case product.CommandCreate, product.CommandUpdate, product.CommandChangePrice, product.CommandDelete:
		return true
	default:
		return false
	}
}

func (h *ProductHandler) GetHandlerName() string { return "product_handler" }
