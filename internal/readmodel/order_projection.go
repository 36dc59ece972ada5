package readmodel

import (
	"context"

	"github.com/fenrir-shard/ledgerfolio/internal/domain/order"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs/eventstore"
)

// OrderProjection folds Order stream events into an OrderStore, the same
// reconstruct-fold-from-the-last-view pattern as ProductProjection and
// CategoryProjection. Unlike those two, the Order view keeps its rows
// after the aggregate reaches a terminal state (order stats need
// completed/cancelled/refunded orders too), so there's no Deleted flag
// here.
type OrderProjection struct {
	store *OrderStore
}

// NewOrderProjection registers store as the target of the Order event
// stream.
func NewOrderProjection(store *OrderStore) *OrderProjection {
	return &OrderProjection{store: store}
}

func (p *OrderProjection) Name() string { return "order_view" }

func (p *OrderProjection) EventTypes() []string {
	return []string{
		order.EventOrderCreated,
		order.EventOrderItemReserved,
		order.EventOrderInventoryReleased,
		order.EventOrderPaymentProcessed,
		order.EventOrderPaymentFailed,
		order.EventOrderShippingArranged,
		order.EventOrderDelivered,
		order.EventOrderCompleted,
		order.EventOrderCancelled,
		order.EventOrderReturned,
		order.EventOrderRefunded,
	}
}

func (p *OrderProjection) Apply(ctx context.Context, event eventstore.StoredEvent) error {
	existing, err := p.store.Get(ctx, event.AggregateID())
	if err != nil {
		return err
	}
	before := order.Empty(event.AggregateID())
	createdAt := event.CommittedAt
	if existing != nil {
		before.Version = existing.Version
		before.State = orderState(existing.Status)
		before.UserID = existing.UserID
		before.Items = existing.Items
		before.Subtotal = existing.Subtotal
		before.Tax = existing.Tax
		before.Shipping = existing.Shipping
		before.Total = existing.Total
		createdAt = existing.CreatedAt
	}

	after := order.Apply(before, event.EventMessage)
	return p.store.Upsert(ctx, OrderView{
		ID:        after.ID,
		UserID:    after.UserID,
		Status:    orderStatusString(after.State),
		Items:     after.Items,
		Subtotal:  after.Subtotal,
		Tax:       after.Tax,
		Shipping:  after.Shipping,
		Total:     after.Total,
		CreatedAt: createdAt,
		UpdatedAt: event.CommittedAt,
		Version:   after.Version,
	})
}

func (p *OrderProjection) Truncate(ctx context.Context) error {
	return p.store.Truncate(ctx)
}

// orderStatusString is the wire-facing name for each order.State, the
// values order-stats group_by=status buckets on.
func orderStatusString(s order.State) string {
	switch s {
	case order.StatePending:
		return "pending"
	case order.StatePaymentPending:
		return "payment_pending"
	case order.StatePaymentFailed:
		return "payment_failed"
	case order.StateProcessing:
		return "processing"
	case order.StateShipped:
		return "shipped"
	case order.StateDelivered:
		return "delivered"
	case order.StateCompleted:
		return "completed"
	case order.StateCancelled:
		return "cancelled"
	case order.StateReturned:
		return "returned"
	case order.StateRefunded:
		return "refunded"
	default:
		return "absent"
	}
}

func orderState(status string) order.State {
	switch status {
	case "pending":
		return order.StatePending
	case "payment_pending":
		return order.StatePaymentPending
	case "payment_failed":
		return order.StatePaymentFailed
	case "processing":
		return order.StateProcessing
	case "shipped":
		return order.StateShipped
	case "delivered":
		return order.StateDelivered
	case "completed":
		return order.StateCompleted
	case "cancelled":
		return order.StateCancelled
	case "returned":
		return order.StateReturned
	case "refunded":
		return order.StateRefunded
	default:
		return order.StateAbsent
	}
}
