package product

import (
	"github.com/shopspring/decimal"

	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
)

// Command type tags, registered with the command bus.
const (
	CommandCreate      = "CreateProduct"
	CommandUpdate      = "UpdateProduct"
	CommandChangePrice = "ChangePrice"
	CommandDelete      = "DeleteProduct"
)

// CreateData is the validated payload of a CreateProduct command.
type CreateData struct {
	Name       string
	Price      decimal.Decimal
	CategoryID string
}

// CreateCommand creates a new active product.
type CreateCommand struct {
	*cqrs.BaseCommand
	Data CreateData
}

// NewCreateCommand builds a CreateProduct command targeting productID.
func NewCreateCommand(productID string, data CreateData) *CreateCommand {
	return &CreateCommand{
		BaseCommand: cqrs.NewBaseCommand(CommandCreate, productID, AggregateType, data),
		Data:        data,
	}
}

// UpdateData is the validated payload of an UpdateProduct command.
type UpdateData struct {
	Name       string
	CategoryID string
}

// UpdateCommand updates an active product's name/category.
type UpdateCommand struct {
	*cqrs.BaseCommand
	Data UpdateData
}

func NewUpdateCommand(productID string, data UpdateData) *UpdateCommand {
	return &UpdateCommand{
		BaseCommand: cqrs.NewBaseCommand(CommandUpdate, productID, AggregateType, data),
		Data:        data,
	}
}

// ChangePriceCommand changes an active product's price.
type ChangePriceCommand struct {
	*cqrs.BaseCommand
	NewPrice decimal.Decimal
}

func NewChangePriceCommand(productID string, newPrice decimal.Decimal) *ChangePriceCommand {
	return &ChangePriceCommand{
		BaseCommand: cqrs.NewBaseCommand(CommandChangePrice, productID, AggregateType, newPrice),
		NewPrice:    newPrice,
	}
}

// DeleteCommand marks a product deleted (terminal).
type DeleteCommand struct {
	*cqrs.BaseCommand
}

func NewDeleteCommand(productID string) *DeleteCommand {
	return &DeleteCommand{
		BaseCommand: cqrs.NewBaseCommand(CommandDelete, productID, AggregateType, nil),
	}
}
