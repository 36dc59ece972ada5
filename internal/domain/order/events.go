package order

import (
	"github.com/shopspring/decimal"

	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
)

// AggregateType is the stream/aggregate type tag order streams carry.
const AggregateType = "Order"

const (
	EventOrderCreated          = "OrderCreated"
	EventOrderItemReserved     = "OrderItemReserved"
	EventOrderInventoryReleased = "OrderInventoryReleased"
	EventOrderPaymentProcessed = "OrderPaymentProcessed"
	EventOrderPaymentFailed    = "OrderPaymentFailed"
	EventOrderShippingArranged = "OrderShippingArranged"
	EventOrderDelivered        = "OrderDelivered"
	EventOrderCompleted        = "OrderCompleted"
	EventOrderCancelled        = "OrderCancelled"
	EventOrderReturned         = "OrderReturned"
	EventOrderRefunded         = "OrderRefunded"
)

// Item is one line of an order, fixed at creation time.
type Item struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// OrderCreated fixes the order's line items and its computed totals.
// Totals are carried in the payload rather than recomputed on replay so a
// later change to the tax rate or shipping threshold can't retroactively
// change a settled order's history.
type OrderCreated struct {
	*cqrs.BaseEventMessage
	UserID   string          `json:"user_id"`
	Items    []Item          `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

func newOrderCreated(id string, version int, userID string, items []Item, subtotal, tax, shipping, total decimal.Decimal) *OrderCreated {
	e := &OrderCreated{UserID: userID, Items: items, Subtotal: subtotal, Tax: tax, Shipping: shipping, Total: total}
	e.BaseEventMessage = cqrs.NewBaseEventMessage(EventOrderCreated, id, AggregateType, version, e)
	return e
}

// OrderItemReserved records that inventory for every line was reserved.
type OrderItemReserved struct {
	*cqrs.BaseEventMessage
}

func newOrderItemReserved(id string, version int) *OrderItemReserved {
	e := &OrderItemReserved{}
	e.BaseEventMessage = cqrs.NewBaseEventMessage(EventOrderItemReserved, id, AggregateType, version, e)
	return e
}

// OrderInventoryReleased is the saga compensation for a reservation.
type OrderInventoryReleased struct {
	*cqrs.BaseEventMessage
}

func newOrderInventoryReleased(id string, version int) *OrderInventoryReleased {
	e := &OrderInventoryReleased{}
	e.BaseEventMessage = cqrs.NewBaseEventMessage(EventOrderInventoryReleased, id, AggregateType, version, e)
	return e
}

// OrderPaymentProcessed records a successful payment capture.
type OrderPaymentProcessed struct {
	*cqrs.BaseEventMessage
}

func newOrderPaymentProcessed(id string, version int) *OrderPaymentProcessed {
	e := &OrderPaymentProcessed{}
	e.BaseEventMessage = cqrs.NewBaseEventMessage(EventOrderPaymentProcessed, id, AggregateType, version, e)
	return e
}

// OrderPaymentFailed records a declined or errored payment attempt.
type OrderPaymentFailed struct {
	*cqrs.BaseEventMessage
	Reason string `json:"reason"`
}

func newOrderPaymentFailed(id string, version int, reason string) *OrderPaymentFailed {
	e := &OrderPaymentFailed{Reason: reason}
	e.BaseEventMessage = cqrs.NewBaseEventMessage(EventOrderPaymentFailed, id, AggregateType, version, e)
	return e
}

// OrderShippingArranged records a carrier handoff.
type OrderShippingArranged struct {
	*cqrs.BaseEventMessage
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"tracking_number"`
}

func newOrderShippingArranged(id string, version int, carrier, tracking string) *OrderShippingArranged {
	e := &OrderShippingArranged{Carrier: carrier, TrackingNumber: tracking}
	e.BaseEventMessage = cqrs.NewBaseEventMessage(EventOrderShippingArranged, id, AggregateType, version, e)
	return e
}

// OrderDelivered records carrier-confirmed delivery.
type OrderDelivered struct {
	*cqrs.BaseEventMessage
}

func newOrderDelivered(id string, version int) *OrderDelivered {
	e := &OrderDelivered{}
	e.BaseEventMessage = cqrs.NewBaseEventMessage(EventOrderDelivered, id, AggregateType, version, e)
	return e
}

// OrderCompleted is the saga's terminal success event.
type OrderCompleted struct {
	*cqrs.BaseEventMessage
}

func newOrderCompleted(id string, version int) *OrderCompleted {
	e := &OrderCompleted{}
	e.BaseEventMessage = cqrs.NewBaseEventMessage(EventOrderCompleted, id, AggregateType, version, e)
	return e
}

// OrderCancelled is a terminal event; a cancelled order accepts no further
// commands other than the idempotent replays sagas may redeliver.
type OrderCancelled struct {
	*cqrs.BaseEventMessage
	Reason string `json:"reason"`
}

func newOrderCancelled(id string, version int, reason string) *OrderCancelled {
	e := &OrderCancelled{Reason: reason}
	e.BaseEventMessage = cqrs.NewBaseEventMessage(EventOrderCancelled, id, AggregateType, version, e)
	return e
}

// OrderReturned records a post-completion return request.
type OrderReturned struct {
	*cqrs.BaseEventMessage
	Reason string `json:"reason"`
}

func newOrderReturned(id string, version int, reason string) *OrderReturned {
	e := &OrderReturned{Reason: reason}
	e.BaseEventMessage = cqrs.NewBaseEventMessage(EventOrderReturned, id, AggregateType, version, e)
	return e
}

// OrderRefunded is the terminal event of the return flow.
type OrderRefunded struct {
	*cqrs.BaseEventMessage
}

func newOrderRefunded(id string, version int) *OrderRefunded {
	e := &OrderRefunded{}
	e.BaseEventMessage = cqrs.NewBaseEventMessage(EventOrderRefunded, id, AggregateType, version, e)
	return e
}
