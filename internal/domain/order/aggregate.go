// Package order implements the Order aggregate's state machine: a
// fixed adjacency table over
// {pending, payment_pending, payment_failed, processing, shipped,
// delivered, completed, cancelled, returned, refunded}. Any transition
// not in the table fails with InvalidStatusTransition. This is also the
// aggregate the order fulfillment saga drives end to end.
package order

import (
	"github.com/shopspring/decimal"

	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
)

type State int

const (
	StateAbsent State = iota
	StatePending
	StatePaymentPending
	StatePaymentFailed
	StateProcessing
	StateShipped
	StateDelivered
	StateCompleted
	StateCancelled
	StateReturned
	StateRefunded
)

var taxRate = decimal.NewFromFloat(0.10)

const shippingThreshold = "5000"
const flatShipping = "500"

// computeTotals derives subtotal/tax/shipping/total from the order's line
// items. Pure: no lookups, no I/O, entirely decimal arithmetic so replay
// never drifts from the value originally stored in OrderCreated.
func computeTotals(items []Item) (subtotal, tax, shipping, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, it := range items {
		line := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		subtotal = subtotal.Add(line)
	}
	tax = subtotal.Mul(taxRate).Round(2)
	threshold, _ := decimal.NewFromString(shippingThreshold)
	if subtotal.LessThan(threshold) {
		shipping, _ = decimal.NewFromString(flatShipping)
	} else {
		shipping = decimal.Zero
	}
	total = subtotal.Add(tax).Add(shipping)
	return subtotal, tax, shipping, total
}

// Aggregate is the folded Order value.
type Aggregate struct {
	ID                string
	Version           int
	State             State
	UserID            string
	Items             []Item
	Subtotal          decimal.Decimal
	Tax               decimal.Decimal
	Shipping          decimal.Decimal
	Total             decimal.Decimal
	InventoryReleased bool
}

func Empty(id string) *Aggregate {
	return &Aggregate{ID: id, State: StateAbsent}
}

func Apply(a *Aggregate, event cqrs.EventMessage) *Aggregate {
	next := *a
	switch e := event.EventData().(type) {
	case *OrderCreated:
		next.State = StatePending
		next.UserID = e.UserID
		next.Items = e.Items
		next.Subtotal = e.Subtotal
		next.Tax = e.Tax
		next.Shipping = e.Shipping
		next.Total = e.Total
	case *OrderItemReserved:
		next.State = StatePaymentPending
	case *OrderInventoryReleased:
		next.InventoryReleased = true
		next.State = StateCancelled
	case *OrderPaymentProcessed:
		next.State = StateProcessing
	case *OrderPaymentFailed:
		next.State = StatePaymentFailed
	case *OrderShippingArranged:
		next.State = StateShipped
	case *OrderDelivered:
		next.State = StateDelivered
	case *OrderCompleted:
		next.State = StateCompleted
	case *OrderCancelled:
		next.State = StateCancelled
	case *OrderReturned:
		next.State = StateReturned
	case *OrderRefunded:
		next.State = StateRefunded
	}
	next.Version = event.Version()
	return &next
}

func Execute(a *Aggregate, cmd cqrs.Command) ([]cqrs.EventMessage, error) {
	switch c := cmd.(type) {
	case *CreateCommand:
		return executeCreate(a, c)
	case *ReserveInventoryCommand:
		return executeReserveInventory(a, c)
	case *ReleaseInventoryCommand:
		return executeReleaseInventory(a, c)
	case *ProcessPaymentCommand:
		return executeProcessPayment(a, c)
	case *ArrangeShippingCommand:
		return executeArrangeShipping(a, c)
	case *DeliverCommand:
		return executeDeliver(a, c)
	case *ConfirmCommand:
		return executeConfirm(a, c)
	case *CancelCommand:
		return executeCancel(a, c)
	case *ReturnCommand:
		return executeReturn(a, c)
	case *RefundCommand:
		return executeRefund(a, c)
	default:
		return nil, cqrs.NewDomainError(cqrs.KindValidation, "unsupported_command", "order aggregate cannot handle this command type", nil)
	}
}

func executeCreate(a *Aggregate, c *CreateCommand) ([]cqrs.EventMessage, error) {
	if a.State != StateAbsent {
		return nil, cqrs.NewDomainError(cqrs.KindDomainViolation, "order_already_exists", "order already exists", nil)
	}
	if c.Data.UserID == "" {
		return nil, cqrs.NewDomainError(cqrs.KindValidation, "invalid_user", "order must have a user", nil)
	}
	if len(c.Data.Items) == 0 {
		return nil, cqrs.NewDomainError(cqrs.KindValidation, "empty_order", "order must have at least one item", nil)
	}
	for _, it := range c.Data.Items {
		if it.Quantity <= 0 {
			return nil, cqrs.NewDomainError(cqrs.KindValidation, "invalid_quantity", "item quantity must be positive", nil)
		}
		if !it.UnitPrice.IsPositive() {
			return nil, cqrs.NewDomainError(cqrs.KindValidation, "invalid_price", "item unit price must be positive", nil)
		}
	}
	subtotal, tax, shipping, total := computeTotals(c.Data.Items)
	event := newOrderCreated(a.ID, a.Version+1, c.Data.UserID, c.Data.Items, subtotal, tax, shipping, total)
	return []cqrs.EventMessage{event}, nil
}

func executeReserveInventory(a *Aggregate, c *ReserveInventoryCommand) ([]cqrs.EventMessage, error) {
	switch a.State {
	case StateAbsent:
		return nil, cqrs.NewDomainError(cqrs.KindDomainViolation, "order_not_found", "order does not exist", nil)
	case StatePending:
		return []cqrs.EventMessage{newOrderItemReserved(a.ID, a.Version+1)}, nil
	case StatePaymentPending, StatePaymentFailed, StateProcessing, StateShipped, StateDelivered, StateCompleted:
		return nil, nil
	default:
		return nil, cqrs.NewDomainError(cqrs.KindDomainViolation, "invalid_status_transition", "order cannot reserve inventory from its current status", nil)
	}
}

func executeReleaseInventory(a *Aggregate, c *ReleaseInventoryCommand) ([]cqrs.EventMessage, error) {
	if a.State == StateAbsent {
		return nil, cqrs.NewDomainError(cqrs.KindDomainViolation, "order_not_found", "order does not exist", nil)
	}
	if a.InventoryReleased {
		return nil, cqrs.NewDomainError(cqrs.KindDomainViolation, "already_compensated", "inventory already released for this order", nil)
	}
	return []cqrs.EventMessage{newOrderInventoryReleased(a.ID, a.Version+1)}, nil
}

func executeProcessPayment(a *Aggregate, c *ProcessPaymentCommand) ([]cqrs.EventMessage, error) {
	switch a.State {
	case StateAbsent:
		return nil, cqrs.NewDomainError(cqrs.KindDomainViolation, "order_not_found", "order does not exist", nil)
	case StatePaymentPending:
		if c.Data.Succeed {
			return []cqrs.EventMessage{newOrderPaymentProcessed(a.ID, a.Version+1)}, nil
		}
		return []cqrs.EventMessage{newOrderPaymentFailed(a.ID, a.Version+1, c.Data.Reason)}, nil
	case StatePaymentFailed:
		if c.Data.Succeed {
			return []cqrs.EventMessage{newOrderPaymentProcessed(a.ID, a.Version+1)}, nil
		}
		return nil, nil
	case StateProcessing, StateShipped, StateDelivered, StateCompleted:
		if c.Data.Succeed {
			return nil, nil
		}
		return nil, cqrs.NewDomainError(cqrs.KindDomainViolation, "invalid_status_transition", "order payment already settled", nil)
	default:
		return nil, cqrs.NewDomainError(cqrs.KindDomainViolation, "invalid_status_transition", "order cannot process payment from its current status", nil)
	}
}

func executeArrangeShipping(a *Aggregate, c *ArrangeShippingCommand) ([]cqrs.EventMessage, error) {
	switch a.State {
	case StateAbsent:
		return nil, cqrs.NewDomainError(cqrs.KindDomainViolation, "order_not_found", "order does not exist", nil)
	case StateProcessing:
		return []cqrs.EventMessage{newOrderShippingArranged(a.ID, a.Version+1, c.Data.Carrier, c.Data.TrackingNumber)}, nil
	case StateShipped, StateDelivered, StateCompleted:
		return nil, nil
	default:
		return nil, cqrs.NewDomainError(cqrs.KindDomainViolation, "invalid_status_transition", "order cannot arrange shipping from its current status", nil)
	}
}

func executeDeliver(a *Aggregate, c *DeliverCommand) ([]cqrs.EventMessage, error) {
	switch a.State {
	case StateAbsent:
		return nil, cqrs.NewDomainError(cqrs.KindDomainViolation, "order_not_found", "order does not exist", nil)
	case StateShipped:
		return []cqrs.EventMessage{newOrderDelivered(a.ID, a.Version+1)}, nil
	case StateDelivered, StateCompleted:
		return nil, nil
	default:
		return nil, cqrs.NewDomainError(cqrs.KindDomainViolation, "invalid_status_transition", "order cannot be marked delivered from its current status", nil)
	}
}

func executeConfirm(a *Aggregate, c *ConfirmCommand) ([]cqrs.EventMessage, error) {
	switch a.State {
	case StateAbsent:
		return nil, cqrs.NewDomainError(cqrs.KindDomainViolation, "order_not_found", "order does not exist", nil)
	case StateShipped, StateDelivered:
		return []cqrs.EventMessage{newOrderCompleted(a.ID, a.Version+1)}, nil
	case StateCompleted:
		return nil, nil
	default:
		return nil, cqrs.NewDomainError(cqrs.KindDomainViolation, "invalid_status_transition", "order cannot be confirmed from its current status", nil)
	}
}

func executeCancel(a *Aggregate, c *CancelCommand) ([]cqrs.EventMessage, error) {
	switch a.State {
	case StateAbsent:
		return nil, cqrs.NewDomainError(cqrs.KindDomainViolation, "order_not_found", "order does not exist", nil)
	case StatePending, StatePaymentPending, StatePaymentFailed, StateProcessing, StateShipped:
		return []cqrs.EventMessage{newOrderCancelled(a.ID, a.Version+1, c.Data.Reason)}, nil
	case StateCancelled:
		return nil, nil
	default:
		return nil, cqrs.NewDomainError(cqrs.KindDomainViolation, "invalid_status_transition", "order cannot be cancelled from its current status", nil)
	}
}

func executeReturn(a *Aggregate, c *ReturnCommand) ([]cqrs.EventMessage, error) {
	switch a.State {
	case StateAbsent:
		return nil, cqrs.NewDomainError(cqrs.KindDomainViolation, "order_not_found", "order does not exist", nil)
	case StateCompleted:
		return []cqrs.EventMessage{newOrderReturned(a.ID, a.Version+1, c.Data.Reason)}, nil
	case StateReturned:
		return nil, nil
	default:
		return nil, cqrs.NewDomainError(cqrs.KindDomainViolation, "invalid_status_transition", "only a completed order can be returned", nil)
	}
}

func executeRefund(a *Aggregate, c *RefundCommand) ([]cqrs.EventMessage, error) {
	switch a.State {
	case StateAbsent:
		return nil, cqrs.NewDomainError(cqrs.KindDomainViolation, "order_not_found", "order does not exist", nil)
	case StateReturned:
		return []cqrs.EventMessage{newOrderRefunded(a.ID, a.Version+1)}, nil
	case StateRefunded:
		return nil, nil
	default:
		return nil, cqrs.NewDomainError(cqrs.KindDomainViolation, "invalid_status_transition", "only a returned order can be refunded", nil)
	}
}
