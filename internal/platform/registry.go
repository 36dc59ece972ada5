package platform

import (
	"github.com/fenrir-shard/ledgerfolio/internal/domain/category"
	"github.com/fenrir-shard/ledgerfolio/internal/domain/order"
	"github.com/fenrir-shard/ledgerfolio/internal/domain/product"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
)

// NewEventDataRegistry builds the cqrs.EventDataRegistry every non-memory
// Event Store backend needs to deserialize payloads back into their
// concrete Go types. The memory backend keeps events as live structs and
// never touches this.
func NewEventDataRegistry() *cqrs.EventDataRegistry {
	registry := cqrs.NewEventDataRegistry()
	mustRegister := func(eventType string, sample interface{}) {
		if err := registry.RegisterEventData(eventType, sample); err != nil {
			panic(err)
		}
	}

	mustRegister(product.EventProductCreated, &product.ProductCreated{})
	mustRegister(product.EventProductUpdated, &product.ProductUpdated{})
	mustRegister(product.EventProductPriceChanged, &product.ProductPriceChanged{})
	mustRegister(product.EventProductDeleted, &product.ProductDeleted{})

	mustRegister(category.EventCategoryCreated, &category.CategoryCreated{})
	mustRegister(category.EventCategoryUpdated, &category.CategoryUpdated{})
	mustRegister(category.EventCategoryMoved, &category.CategoryMoved{})
	mustRegister(category.EventCategoryDeleted, &category.CategoryDeleted{})

	mustRegister(order.EventOrderCreated, &order.OrderCreated{})
	mustRegister(order.EventOrderItemReserved, &order.OrderItemReserved{})
	mustRegister(order.EventOrderInventoryReleased, &order.OrderInventoryReleased{})
	mustRegister(order.EventOrderPaymentProcessed, &order.OrderPaymentProcessed{})
	mustRegister(order.EventOrderPaymentFailed, &order.OrderPaymentFailed{})
	mustRegister(order.EventOrderShippingArranged, &order.OrderShippingArranged{})
	mustRegister(order.EventOrderDelivered, &order.OrderDelivered{})
	mustRegister(order.EventOrderCompleted, &order.OrderCompleted{})
	mustRegister(order.EventOrderCancelled, &order.OrderCancelled{})
	mustRegister(order.EventOrderReturned, &order.OrderReturned{})
	mustRegister(order.EventOrderRefunded, &order.OrderRefunded{})

	return registry
}
