package product

import (
	"github.com/shopspring/decimal"

	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
)

// AggregateType is the stream/aggregate type tag product streams carry.
const AggregateType = "Product"

// Event type tags, stored verbatim in the event store's event_type column.
const (
	EventProductCreated      = "ProductCreated"
	EventProductUpdated      = "ProductUpdated"
	EventProductPriceChanged = "ProductPriceChanged"
	EventProductDeleted      = "ProductDeleted"
)

// ProductCreated is the terminal-free "absent -> active" transition event.
type ProductCreated struct {
	*cqrs.BaseEventMessage
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	CategoryID string          `json:"category_id"`
}

func newProductCreated(id string, version int, name string, price decimal.Decimal, categoryID string) *ProductCreated {
	e := &ProductCreated{Name: name, Price: price, CategoryID: categoryID}
	e.BaseEventMessage = cqrs.NewBaseEventMessage(EventProductCreated, id, AggregateType, version, e)
	return e
}

// ProductUpdated carries the full post-update field set (name/category).
// Update never touches the price; every price move goes through ChangePrice
// and is recorded as a ProductPriceChanged event.
type ProductUpdated struct {
	*cqrs.BaseEventMessage
	Name       string `json:"name"`
	CategoryID string `json:"category_id"`
}

func newProductUpdated(id string, version int, name, categoryID string) *ProductUpdated {
	e := &ProductUpdated{Name: name, CategoryID: categoryID}
	e.BaseEventMessage = cqrs.NewBaseEventMessage(EventProductUpdated, id, AggregateType, version, e)
	return e
}

// ProductPriceChanged records a price move; only ChangePrice emits it.
type ProductPriceChanged struct {
	*cqrs.BaseEventMessage
	OldPrice decimal.Decimal `json:"old_price"`
	NewPrice decimal.Decimal `json:"new_price"`
}

func newProductPriceChanged(id string, version int, oldPrice, newPrice decimal.Decimal) *ProductPriceChanged {
	e := &ProductPriceChanged{OldPrice: oldPrice, NewPrice: newPrice}
	e.BaseEventMessage = cqrs.NewBaseEventMessage(EventProductPriceChanged, id, AggregateType, version, e)
	return e
}

// ProductDeleted is the terminal event; no command succeeds against the
// aggregate afterward.
type ProductDeleted struct {
	*cqrs.BaseEventMessage
}

func newProductDeleted(id string, version int) *ProductDeleted {
	e := &ProductDeleted{}
	e.BaseEventMessage = cqrs.NewBaseEventMessage(EventProductDeleted, id, AggregateType, version, e)
	return e
}
