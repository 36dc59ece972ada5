// Package saga wires the order fulfillment workflow onto the generic
// saga.Coordinator: a named saga.Definition built from order domain
// commands, decoupled from the coordinator's own step/compensation
// machinery.
package saga

import (
	"context"
	"time"

	"github.com/fenrir-shard/ledgerfolio/internal/domain/order"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs/saga"
)

// OrderFulfillmentSagaType names the saga a new order starts once it has
// been created: reserve inventory, take payment, arrange shipping, confirm.
// A failure at any step compensates backwards; only ReserveInventory
// declares a compensation, since it is the only step that holds something
// (reserved stock) that must be given back.
const OrderFulfillmentSagaType = "OrderFulfillment"

// NewOrderFulfillmentDefinition builds the OrderFulfillment saga.Definition,
// timing a running instance out after timeout (falling back to 30s if
// non-positive).
func NewOrderFulfillmentDefinition(timeout time.Duration) *saga.Definition {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &saga.Definition{
		SagaType: OrderFulfillmentSagaType,
		Timeout:  timeout,
		Steps: []saga.Step{
			{
				Name:         "reserve_inventory",
				Forward:      reserveInventoryForward,
				Compensation: releaseInventoryCompensation,
			},
			{
				Name:    "process_payment",
				Forward: processPaymentForward,
			},
			{
				Name:    "arrange_shipping",
				Forward: arrangeShippingForward,
			},
			{
				Name:    "confirm_order",
				Forward: confirmOrderForward,
			},
		},
	}
}

// NewOrderFulfillmentData builds the StartSaga initialData for orderID, with
// the payment and shipping choices a caller wants this run to make.
func NewOrderFulfillmentData(orderID string, paymentSucceeds bool, paymentFailureReason, carrier, trackingNumber string) map[string]interface{} {
	return map[string]interface{}{
		"order_id":               orderID,
		"payment_succeeds":       paymentSucceeds,
		"payment_failure_reason": paymentFailureReason,
		"carrier":                carrier,
		"tracking_number":        trackingNumber,
	}
}

func orderIDFrom(data map[string]interface{}) (string, error) {
	id, ok := data["order_id"].(string)
	if !ok || id == "" {
		return "", cqrs.NewDomainError(cqrs.KindValidation, "missing_order_id", "saga data must carry order_id", nil)
	}
	return id, nil
}

func reserveInventoryForward(ctx context.Context, data map[string]interface{}) (cqrs.Command, error) {
	orderID, err := orderIDFrom(data)
	if err != nil {
		return nil, err
	}
	return order.NewReserveInventoryCommand(orderID), nil
}

func releaseInventoryCompensation(ctx context.Context, data map[string]interface{}) (cqrs.Command, error) {
	orderID, err := orderIDFrom(data)
	if err != nil {
		return nil, err
	}
	return order.NewReleaseInventoryCommand(orderID), nil
}

func processPaymentForward(ctx context.Context, data map[string]interface{}) (cqrs.Command, error) {
	orderID, err := orderIDFrom(data)
	if err != nil {
		return nil, err
	}
	succeeds, _ := data["payment_succeeds"].(bool)
	reason, _ := data["payment_failure_reason"].(string)
	return order.NewProcessPaymentCommand(orderID, order.ProcessPaymentData{Succeed: succeeds, Reason: reason}), nil
}

func arrangeShippingForward(ctx context.Context, data map[string]interface{}) (cqrs.Command, error) {
	orderID, err := orderIDFrom(data)
	if err != nil {
		return nil, err
	}
	carrier, _ := data["carrier"].(string)
	if carrier == "" {
		carrier = "standard"
	}
	tracking, _ := data["tracking_number"].(string)
	return order.NewArrangeShippingCommand(orderID, order.ArrangeShippingData{Carrier: carrier, TrackingNumber: tracking}), nil
}

func confirmOrderForward(ctx context.Context, data map[string]interface{}) (cqrs.Command, error) {
	orderID, err := orderIDFrom(data)
	if err != nil {
		return nil, err
	}
	return order.NewConfirmCommand(orderID), nil
}
