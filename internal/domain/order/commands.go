package order

import "github.com/fenrir-shard/ledgerfolio/pkg/cqrs"

// Command type tags, registered with the command bus.
const (
	CommandCreate           = "CreateOrder"
	CommandReserveInventory = "ReserveInventory"
	CommandReleaseInventory = "ReleaseInventory"
	CommandProcessPayment   = "ProcessPayment"
	CommandArrangeShipping  = "ArrangeShipping"
	CommandDeliver          = "DeliverOrder"
	CommandConfirm          = "ConfirmOrder"
	CommandCancel           = "CancelOrder"
	CommandReturn           = "ReturnOrder"
	CommandRefund           = "RefundOrder"
)

// CreateData is the validated payload of a CreateOrder command. The handler
// (see internal/command) overwrites each item's UnitPrice with the product's
// current read-model price; Execute then computes the totals from those
// items and stores them in OrderCreated.
type CreateData struct {
	UserID string
	Items  []Item
}

type CreateCommand struct {
	*cqrs.BaseCommand
	Data CreateData
}

func NewCreateCommand(orderID string, data CreateData) *CreateCommand {
	return &CreateCommand{
		BaseCommand: cqrs.NewBaseCommand(CommandCreate, orderID, AggregateType, data),
		Data:        data,
	}
}

// ReserveInventoryCommand is the saga's first forward step.
type ReserveInventoryCommand struct {
	*cqrs.BaseCommand
}

func NewReserveInventoryCommand(orderID string) *ReserveInventoryCommand {
	return &ReserveInventoryCommand{BaseCommand: cqrs.NewBaseCommand(CommandReserveInventory, orderID, AggregateType, nil)}
}

// ReleaseInventoryCommand is the saga's compensation for ReserveInventory.
type ReleaseInventoryCommand struct {
	*cqrs.BaseCommand
}

func NewReleaseInventoryCommand(orderID string) *ReleaseInventoryCommand {
	return &ReleaseInventoryCommand{BaseCommand: cqrs.NewBaseCommand(CommandReleaseInventory, orderID, AggregateType, nil)}
}

// ProcessPaymentData carries the payment outcome. Succeed and Reason are set
// by whoever builds the command; OrderHandler passes them to the aggregate
// unchanged and makes no payment call of its own.
type ProcessPaymentData struct {
	Succeed bool
	Reason  string
}

type ProcessPaymentCommand struct {
	*cqrs.BaseCommand
	Data ProcessPaymentData
}

func NewProcessPaymentCommand(orderID string, data ProcessPaymentData) *ProcessPaymentCommand {
	return &ProcessPaymentCommand{
		BaseCommand: cqrs.NewBaseCommand(CommandProcessPayment, orderID, AggregateType, data),
		Data:        data,
	}
}

// ArrangeShippingData carries the chosen carrier and tracking number.
type ArrangeShippingData struct {
	Carrier        string
	TrackingNumber string
}

type ArrangeShippingCommand struct {
	*cqrs.BaseCommand
	Data ArrangeShippingData
}

func NewArrangeShippingCommand(orderID string, data ArrangeShippingData) *ArrangeShippingCommand {
	return &ArrangeShippingCommand{
		BaseCommand: cqrs.NewBaseCommand(CommandArrangeShipping, orderID, AggregateType, data),
		Data:        data,
	}
}

// DeliverCommand marks a shipped order as carrier-delivered.
type DeliverCommand struct {
	*cqrs.BaseCommand
}

func NewDeliverCommand(orderID string) *DeliverCommand {
	return &DeliverCommand{BaseCommand: cqrs.NewBaseCommand(CommandDeliver, orderID, AggregateType, nil)}
}

// ConfirmCommand is the saga's final forward step.
type ConfirmCommand struct {
	*cqrs.BaseCommand
}

func NewConfirmCommand(orderID string) *ConfirmCommand {
	return &ConfirmCommand{BaseCommand: cqrs.NewBaseCommand(CommandConfirm, orderID, AggregateType, nil)}
}

// CancelData carries the human- or saga-supplied cancellation reason.
type CancelData struct {
	Reason string
}

type CancelCommand struct {
	*cqrs.BaseCommand
	Data CancelData
}

func NewCancelCommand(orderID string, data CancelData) *CancelCommand {
	return &CancelCommand{
		BaseCommand: cqrs.NewBaseCommand(CommandCancel, orderID, AggregateType, data),
		Data:        data,
	}
}

// ReturnData carries the return reason for a completed order.
type ReturnData struct {
	Reason string
}

type ReturnCommand struct {
	*cqrs.BaseCommand
	Data ReturnData
}

func NewReturnCommand(orderID string, data ReturnData) *ReturnCommand {
	return &ReturnCommand{
		BaseCommand: cqrs.NewBaseCommand(CommandReturn, orderID, AggregateType, data),
		Data:        data,
	}
}

// RefundCommand settles a returned order.
type RefundCommand struct {
	*cqrs.BaseCommand
}

func NewRefundCommand(orderID string) *RefundCommand {
	return &RefundCommand{BaseCommand: cqrs.NewBaseCommand(CommandRefund, orderID, AggregateType, nil)}
}
