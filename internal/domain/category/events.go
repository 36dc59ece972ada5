package category

import "github.com/fenrir-shard/ledgerfolio/pkg/cqrs"

// AggregateType is the stream/aggregate type tag category streams carry.
const AggregateType = "Category"

const (
	EventCategoryCreated = "CategoryCreated"
	EventCategoryUpdated = "CategoryUpdated"
	EventCategoryMoved   = "CategoryMoved"
	EventCategoryDeleted = "CategoryDeleted"
)

// CategoryCreated fixes the category's initial name/parent/path/depth.
type CategoryCreated struct {
	*cqrs.BaseEventMessage
	Name     string `json:"name"`
	ParentID string `json:"parent_id"`
	Path     string `json:"path"`
	Depth    int    `json:"depth"`
}

func newCategoryCreated(id string, version int, name, parentID, path string, depth int) *CategoryCreated {
	e := &CategoryCreated{Name: name, ParentID: parentID, Path: path, Depth: depth}
	e.BaseEventMessage = cqrs.NewBaseEventMessage(EventCategoryCreated, id, AggregateType, version, e)
	return e
}

// CategoryUpdated renames a category without changing its position.
type CategoryUpdated struct {
	*cqrs.BaseEventMessage
	Name string `json:"name"`
}

func newCategoryUpdated(id string, version int, name string) *CategoryUpdated {
	e := &CategoryUpdated{Name: name}
	e.BaseEventMessage = cqrs.NewBaseEventMessage(EventCategoryUpdated, id, AggregateType, version, e)
	return e
}

// CategoryMoved re-parents a category, recomputing its path and depth.
type CategoryMoved struct {
	*cqrs.BaseEventMessage
	OldParentID string `json:"old_parent_id"`
	NewParentID string `json:"new_parent_id"`
	NewPath     string `json:"new_path"`
	NewDepth    int    `json:"new_depth"`
}

func newCategoryMoved(id string, version int, oldParentID, newParentID, newPath string, newDepth int) *CategoryMoved {
	e := &CategoryMoved{OldParentID: oldParentID, NewParentID: newParentID, NewPath: newPath, NewDepth: newDepth}
	e.BaseEventMessage = cqrs.NewBaseEventMessage(EventCategoryMoved, id, AggregateType, version, e)
	return e
}

// CategoryDeleted is the terminal event.
type CategoryDeleted struct {
	*cqrs.BaseEventMessage
}

func newCategoryDeleted(id string, version int) *CategoryDeleted {
	e := &CategoryDeleted{}
	e.BaseEventMessage = cqrs.NewBaseEventMessage(EventCategoryDeleted, id, AggregateType, version, e)
	return e
}
