// Package product implements the Product aggregate's state machine:
// absent -> active -> deleted, with Create, Update, ChangePrice, and
// the terminal Delete.
package product

import (
	"github.com/shopspring/decimal"

	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
)

// State is this aggregate's position in {absent, active, deleted}.
type State int

const (
	StateAbsent State = iota
	StateActive
	StateDeleted
)

// Aggregate is the folded Product value. It carries no store handle and no
// uncommitted-change buffer: Load (owned by internal/command) produces one
// from history, Execute derives new events from it without mutating it,
// and Apply folds one event into a fresh copy — a pure contract with
// no hidden state.
type Aggregate struct {
	ID         string
	Version    int
	State      State
	Name       string
	Price      decimal.Decimal
	CategoryID string
}

// Empty returns the version-0 aggregate Load returns when no events exist.
func Empty(id string) *Aggregate {
	return &Aggregate{ID: id, State: StateAbsent, Price: decimal.Zero}
}

// Apply folds one event into a copy of a, advancing Version by exactly
// one. Unknown event types are ignored so forward-compatible payloads
// (an event type added after this binary was built) don't break replay.
func Apply(a *Aggregate, event cqrs.EventMessage) *Aggregate {
	next := *a
	switch e := event.EventData().(type) {
	case *ProductCreated:
		next.State = StateActive
		next.Name = e.Name
		next.Price = e.Price
		next.CategoryID = e.CategoryID
	case *ProductUpdated:
		next.Name = e.Name
		next.CategoryID = e.CategoryID
	case *ProductPriceChanged:
		next.Price = e.NewPrice
	case *ProductDeleted:
		next.State = StateDeleted
	}
	next.Version = event.Version()
	return &next
}

// Execute is the pure command handler: it never touches the event store,
// only returns the events a successful command would produce (or a
// *cqrs.DomainError). The caller (internal/command) is responsible for
// appending the returned events with expected_version = a.Version.
func Execute(a *Aggregate, cmd cqrs.Command) ([]cqrs.EventMessage, error) {
	switch c := cmd.(type) {
	case *CreateCommand:
		return executeCreate(a, c)
	case *UpdateCommand:
		return executeUpdate(a, c)
	case *ChangePriceCommand:
		return executeChangePrice(a, c)
	case *DeleteCommand:
		return executeDelete(a, c)
	default:
		return nil, cqrs.NewDomainError(cqrs.KindValidation, "unsupported_command", "product aggregate cannot handle this command type", nil)
	}
}

func executeCreate(a *Aggregate, c *CreateCommand) ([]cqrs.EventMessage, error) {
	if a.State != StateAbsent {
		return nil, cqrs.NewDomainError(cqrs.KindDomainViolation, "product_already_exists", "product already exists", nil)
	}
	if c.Data.Name == "" {
		return nil, cqrs.NewDomainError(cqrs.KindValidation, "invalid_name", "product name cannot be empty", nil)
	}
	if !c.Data.Price.IsPositive() {
		return nil, cqrs.NewDomainError(cqrs.KindValidation, "invalid_price", "product price must be positive", nil)
	}
	if c.Data.CategoryID == "" {
		return nil, cqrs.NewDomainError(cqrs.KindValidation, "invalid_category", "product category cannot be empty", nil)
	}
	event := newProductCreated(a.ID, a.Version+1, c.Data.Name, c.Data.Price, c.Data.CategoryID)
	return []cqrs.EventMessage{event}, nil
}

func executeUpdate(a *Aggregate, c *UpdateCommand) ([]cqrs.EventMessage, error) {
	if err := requireActive(a); err != nil {
		return nil, err
	}
	if c.Data.Name == "" {
		return nil, cqrs.NewDomainError(cqrs.KindValidation, "invalid_name", "product name cannot be empty", nil)
	}
	if c.Data.CategoryID == "" {
		return nil, cqrs.NewDomainError(cqrs.KindValidation, "invalid_category", "product category cannot be empty", nil)
	}
	if c.Data.Name == a.Name && c.Data.CategoryID == a.CategoryID {
		// No-op update: nothing changed, so skip the append and leave
		// the aggregate's version unchanged.
		return nil, nil
	}
	event := newProductUpdated(a.ID, a.Version+1, c.Data.Name, c.Data.CategoryID)
	return []cqrs.EventMessage{event}, nil
}

func executeChangePrice(a *Aggregate, c *ChangePriceCommand) ([]cqrs.EventMessage, error) {
	if err := requireActive(a); err != nil {
		return nil, err
	}
	if !c.NewPrice.IsPositive() {
		return nil, cqrs.NewDomainError(cqrs.KindValidation, "invalid_price", "product price must be positive", nil)
	}
	if c.NewPrice.Equal(a.Price) {
		return nil, nil
	}
	event := newProductPriceChanged(a.ID, a.Version+1, a.Price, c.NewPrice)
	return []cqrs.EventMessage{event}, nil
}

func executeDelete(a *Aggregate, c *DeleteCommand) ([]cqrs.EventMessage, error) {
	if err := requireActive(a); err != nil {
		return nil, err
	}
	event := newProductDeleted(a.ID, a.Version+1)
	return []cqrs.EventMessage{event}, nil
}

func requireActive(a *Aggregate) error {
	if a.State == StateDeleted {
		return cqrs.NewDomainError(cqrs.KindDomainViolation, "product_deleted", "product has been deleted", nil)
	}
	if a.State == StateAbsent {
		return cqrs.NewDomainError(cqrs.KindDomainViolation, "product_not_found", "product does not exist", nil)
	}
	return nil
}
