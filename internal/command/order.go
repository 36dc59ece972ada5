package command

import (
	"context"

	"github.com/fenrir-shard/ledgerfolio/internal/domain/order"
	"github.com/fenrir-shard/ledgerfolio/internal/readmodel"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs/resilience"
)

var orderOps = aggregateOps[order.Aggregate]{
	aggregateType: order.AggregateType,
	empty:         order.Empty,
	apply:         order.Apply,
	version:       func(a *order.Aggregate) int { return a.Version },
}

// OrderHandler is the cqrs.CommandHandler for every Order command. Only
// CreateOrder needs a read-model precheck: every line item's product
// must exist and be active, and its price is taken from the read model
// rather than trusted from the caller: totals are computed once, at
// creation, from the items' current prices. Every other Order command
// is driven by the order fulfillment saga acting on the order
// aggregate alone.
type OrderHandler struct {
	engine   *Engine
	products *readmodel.ProductStore
}

// NewOrderHandler builds a handler bound to engine, pricing line items
// from products.
func NewOrderHandler(engine *Engine, products *readmodel.ProductStore) *OrderHandler {
	return &OrderHandler{engine: engine, products: products}
}

func (h *OrderHandler) Handle(ctx context.Context, cmd cqrs.Command) (*cqrs.CommandResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	if c, ok := cmd.(*order.CreateCommand); ok {
		if err := h.fillCreateData(ctx, c); err != nil {
			return nil, err
		}
	}

	return Run(ctx, h.engine, orderOps, cmd, order.Execute)
}

func (h *OrderHandler) fillCreateData(ctx context.Context, c *order.CreateCommand) error {
	if len(c.Data.Items) == 0 {
		return cqrs.NewDomainError(cqrs.KindValidation, "empty_order", "order must contain at least one item", nil)
	}
	priced := make([]order.Item, len(c.Data.Items))
	copy(priced, c.Data.Items)

	err := resilience.ResilientCall(ctx, h.engine.breakers, "readmodel.product", func(ctx context.Context) error {
		for i, item := range priced {
			if item.Quantity <= 0 {
				return cqrs.NewDomainError(cqrs.KindValidation, "invalid_quantity", "order item quantity must be positive", nil)
			}
			ok, view, err := h.products.ExistsActive(ctx, item.ProductID)
			if err != nil {
				return err
			}
			if !ok {
				return cqrs.NewDomainError(cqrs.KindDomainViolation, "product_not_found",
					"order references a product that does not exist or has been deleted", nil)
			}
			priced[i].UnitPrice = view.Price
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.Data.Items = priced
	return nil
}

func (h *OrderHandler) CanHandle(commandType string) bool {
	switch commandType {
	case order.CommandCreate, order.CommandReserveInventory, order.CommandReleaseInventory,
		order.CommandProcessPayment, order.CommandArrangeShipping, order.CommandDeliver,
		order.CommandConfirm, order.CommandCancel, order.CommandReturn, order.CommandRefund:
		return true
	default:
		return false
	}
}

func (h *OrderHandler) GetHandlerName() string { return "order_handler" }
