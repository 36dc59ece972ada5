// Package category implements the Category aggregate's state machine:
// absent -> active -> deleted, with a path/depth hierarchy capped at
// MaxDepth and cycle-free moves.
package category

import (
	"fmt"

	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
)

type State int

const (
	StateAbsent State = iota
	StateActive
	StateDeleted
)

// Aggregate is the folded Category value.
type Aggregate struct {
	ID       string
	Version  int
	State    State
	Name     string
	ParentID string
	Path     string
	Depth    int
}

func Empty(id string) *Aggregate {
	return &Aggregate{ID: id, State: StateAbsent}
}

func Apply(a *Aggregate, event cqrs.EventMessage) *Aggregate {
	next := *a
	switch e := event.EventData().(type) {
	case *CategoryCreated:
		next.State = StateActive
		next.Name = e.Name
		next.ParentID = e.ParentID
		next.Path = e.Path
		next.Depth = e.Depth
	case *CategoryUpdated:
		next.Name = e.Name
	case *CategoryMoved:
		next.ParentID = e.NewParentID
		next.Path = e.NewPath
		next.Depth = e.NewDepth
	case *CategoryDeleted:
		next.State = StateDeleted
	}
	next.Version = event.Version()
	return &next
}

func Execute(a *Aggregate, cmd cqrs.Command) ([]cqrs.EventMessage, error) {
	switch c := cmd.(type) {
	case *CreateCommand:
		return executeCreate(a, c)
	case *UpdateCommand:
		return executeUpdate(a, c)
	case *MoveCommand:
		return executeMove(a, c)
	case *DeleteCommand:
		return executeDelete(a, c)
	default:
		return nil, cqrs.NewDomainError(cqrs.KindValidation, "unsupported_command", "category aggregate cannot handle this command type", nil)
	}
}

func executeCreate(a *Aggregate, c *CreateCommand) ([]cqrs.EventMessage, error) {
	if a.State != StateAbsent {
		return nil, cqrs.NewDomainError(cqrs.KindDomainViolation, "category_already_exists", "category already exists", nil)
	}
	if c.Data.Name == "" {
		return nil, cqrs.NewDomainError(cqrs.KindValidation, "invalid_name", "category name cannot be empty", nil)
	}
	if c.Data.NameTaken {
		return nil, cqrs.NewDomainError(cqrs.KindDomainViolation, "duplicate_category_name", "a category with this name already exists under the same parent", nil)
	}
	depth := c.Data.ParentDepth + 1
	if depth > MaxDepth {
		return nil, cqrs.NewDomainError(cqrs.KindDomainViolation, "max_depth_exceeded", fmt.Sprintf("category depth %d exceeds maximum of %d", depth, MaxDepth), nil)
	}
	path := c.Data.ParentPath + "/" + a.ID
	event := newCategoryCreated(a.ID, a.Version+1, c.Data.Name, c.Data.ParentID, path, depth)
	return []cqrs.EventMessage{event}, nil
}

func executeUpdate(a *Aggregate, c *UpdateCommand) ([]cqrs.EventMessage, error) {
	if err := requireActive(a); err != nil {
		return nil, err
	}
	if c.Data.Name == "" {
		return nil, cqrs.NewDomainError(cqrs.KindValidation, "invalid_name", "category name cannot be empty", nil)
	}
	if c.Data.NameTaken {
		return nil, cqrs.NewDomainError(cqrs.KindDomainViolation, "duplicate_category_name", "a category with this name already exists under the same parent", nil)
	}
	if c.Data.Name == a.Name {
		return nil, nil
	}
	event := newCategoryUpdated(a.ID, a.Version+1, c.Data.Name)
	return []cqrs.EventMessage{event}, nil
}

func executeMove(a *Aggregate, c *MoveCommand) ([]cqrs.EventMessage, error) {
	if err := requireActive(a); err != nil {
		return nil, err
	}
	if c.Data.IsCycle {
		return nil, cqrs.NewDomainError(cqrs.KindDomainViolation, "cyclic_category_move", "new parent cannot be this category or one of its own descendants", nil)
	}
	depth := c.Data.NewParentDepth + 1
	if depth > MaxDepth {
		return nil, cqrs.NewDomainError(cqrs.KindDomainViolation, "max_depth_exceeded", fmt.Sprintf("category depth %d exceeds maximum of %d", depth, MaxDepth), nil)
	}
	if c.Data.NewParentID == a.ParentID {
		return nil, nil
	}
	path := c.Data.NewParentPath + "/" + a.ID
	event := newCategoryMoved(a.ID, a.Version+1, a.ParentID, c.Data.NewParentID, path, depth)
	return []cqrs.EventMessage{event}, nil
}

func executeDelete(a *Aggregate, c *DeleteCommand) ([]cqrs.EventMessage, error) {
	if err := requireActive(a); err != nil {
		return nil, err
	}
	if c.Data.HasSubcategories {
		return nil, cqrs.NewDomainError(cqrs.KindDomainViolation, "category_has_subcategories", "category has subcategories and cannot be deleted", nil)
	}
	if c.Data.HasProducts {
		return nil, cqrs.NewDomainError(cqrs.KindDomainViolation, "category_has_products", "category still has referencing products and cannot be deleted", nil)
	}
	event := newCategoryDeleted(a.ID, a.Version+1)
	return []cqrs.EventMessage{event}, nil
}

func requireActive(a *Aggregate) error {
	if a.State == StateDeleted {
		return cqrs.NewDomainError(cqrs.KindDomainViolation, "category_deleted", "category has been deleted", nil)
	}
	if a.State == StateAbsent {
		return cqrs.NewDomainError(cqrs.KindDomainViolation, "category_not_found", "category does not exist", nil)
	}
	return nil
}
