package category

import "github.com/fenrir-shard/ledgerfolio/pkg/cqrs"

const (
	CommandCreate = "CreateCategory"
	CommandUpdate = "UpdateCategory"
	CommandMove   = "MoveCategory"
	CommandDelete = "DeleteCategory"
)

// MaxDepth is the hierarchy depth ceiling.
const MaxDepth = 5

// CreateData is the validated payload of a CreateCategory command. ParentPath
// and ParentDepth are looked up by the command handler from the read model
// before Execute runs (the aggregate's own stream carries only its own
// history, not its parent's), keeping Execute itself pure.
type CreateData struct {
	Name        string
	ParentID    string
	ParentPath  string
	ParentDepth int
	// NameTaken is true when the handler's read-model pre-check found an
	// existing sibling with the same (name, parent_id) pair.
	NameTaken bool
}

type CreateCommand struct {
	*cqrs.BaseCommand
	Data CreateData
}

func NewCreateCommand(categoryID string, data CreateData) *CreateCommand {
	return &CreateCommand{
		BaseCommand: cqrs.NewBaseCommand(CommandCreate, categoryID, AggregateType, data),
		Data:        data,
	}
}

// UpdateData renames a category in place.
type UpdateData struct {
	Name      string
	NameTaken bool
}

type UpdateCommand struct {
	*cqrs.BaseCommand
	Data UpdateData
}

func NewUpdateCommand(categoryID string, data UpdateData) *UpdateCommand {
	return &UpdateCommand{
		BaseCommand: cqrs.NewBaseCommand(CommandUpdate, categoryID, AggregateType, data),
		Data:        data,
	}
}

// MoveData re-parents a category. IsCycle is precomputed by the handler
// from the read model's category tree (true when NewParentID is this
// category or one of its own descendants).
type MoveData struct {
	NewParentID    string
	NewParentPath  string
	NewParentDepth int
	IsCycle        bool
}

type MoveCommand struct {
	*cqrs.BaseCommand
	Data MoveData
}

func NewMoveCommand(categoryID string, data MoveData) *MoveCommand {
	return &MoveCommand{
		BaseCommand: cqrs.NewBaseCommand(CommandMove, categoryID, AggregateType, data),
		Data:        data,
	}
}

// DeleteData carries the handler's read-model pre-checks: a category with
// live subcategories or referencing products cannot be deleted.
type DeleteData struct {
	HasSubcategories bool
	HasProducts      bool
}

type DeleteCommand struct {
	*cqrs.BaseCommand
	Data DeleteData
}

func NewDeleteCommand(categoryID string, data DeleteData) *DeleteCommand {
	return &DeleteCommand{
		BaseCommand: cqrs.NewBaseCommand(CommandDelete, categoryID, AggregateType, data),
		Data:        data,
	}
}
