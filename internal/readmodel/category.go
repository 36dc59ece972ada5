package readmodel

import (
	"context"
	"sort"

	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
)

// CategoryModelType is the ReadModel/ReadStore type tag category views are
// saved under.
const CategoryModelType = "Category"

// CategoryView is the query-side projection of the Category aggregate.
type CategoryView struct {
	ID       string
	Name     string
	ParentID string
	Path     string
	Depth    int
	Deleted  bool
	Version  int
}

// CategoryNode is one entry of a rendered category tree: a view plus the
// product count and child nodes the query API's tree shape needs.
type CategoryNode struct {
	CategoryView
	ProductCount int64
	Children     []*CategoryNode
}

// CategoryStore is the Category read model, also the source of the
// command handler's cross-aggregate prechecks (duplicate name, cycle
// detection, subcategory/product existence) that keep category.Execute
// pure.
type CategoryStore struct {
	store cqrs.ReadStore
}

// NewCategoryStore wraps store for Category views.
func NewCategoryStore(store cqrs.ReadStore) *CategoryStore {
	return &CategoryStore{store: store}
}

// Upsert writes v, overwriting any prior view for the same ID.
func (s *CategoryStore) Upsert(ctx context.Context, v CategoryView) error {
	rm := cqrs.NewBaseReadModel(v.ID, CategoryModelType, v)
	rm.SetVersion(v.Version)
	return s.store.Save(ctx, rm)
}

// Get returns the view for id, or (nil, nil) if no view exists yet.
func (s *CategoryStore) Get(ctx context.Context, id string) (*CategoryView, error) {
	model, ok, err := getByID(ctx, s.store, CategoryModelType, id)
	if err != nil || !ok {
		return nil, err
	}
	v := model.GetData().(CategoryView)
	return &v, nil
}

// All returns every non-deleted category view.
func (s *CategoryStore) All(ctx context.Context) ([]CategoryView, error) {
	models, err := queryByType(ctx, s.store, CategoryModelType)
	if err != nil {
		return nil, err
	}
	out := make([]CategoryView, 0, len(models))
	for _, m := range models {
		v := m.GetData().(CategoryView)
		if !v.Deleted {
			out = append(out, v)
		}
	}
	return out, nil
}

// NameTakenUnderParent reports whether a non-deleted sibling of parentID
// (other than excludeID) already has name, the precheck that fills
// category.CreateData.NameTaken / UpdateData.NameTaken.
func (s *CategoryStore) NameTakenUnderParent(ctx context.Context, parentID, name, excludeID string) (bool, error) {
	all, err := s.All(ctx)
	if err != nil {
		return false, err
	}
	for _, v := range all {
		if v.ID == excludeID {
			continue
		}
		if v.ParentID == parentID && v.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// IsCycle reports whether newParentID is categoryID itself or one of its
// own descendants — moving a category under its own subtree — the
// precheck that fills category.MoveData.IsCycle.
func (s *CategoryStore) IsCycle(ctx context.Context, categoryID, newParentID string) (bool, error) {
	if newParentID == categoryID {
		return true, nil
	}
	all, err := s.All(ctx)
	if err != nil {
		return false, err
	}
	byID := make(map[string]CategoryView, len(all))
	for _, v := range all {
		byID[v.ID] = v
	}
	// Walk up from newParentID; if categoryID appears on the way to the
	// root, newParentID is a descendant of categoryID and the move cycles.
	cur, ok := byID[newParentID]
	for ok {
		if cur.ParentID == categoryID {
			return true, nil
		}
		if cur.ParentID == "" {
			break
		}
		cur, ok = byID[cur.ParentID]
	}
	return false, nil
}

// HasSubcategories reports whether any non-deleted category still lists
// categoryID as its parent.
func (s *CategoryStore) HasSubcategories(ctx context.Context, categoryID string) (bool, error) {
	all, err := s.All(ctx)
	if err != nil {
		return false, err
	}
	for _, v := range all {
		if v.ParentID == categoryID {
			return true, nil
		}
	}
	return false, nil
}

// PathAndDepth returns the stored Path/Depth of an existing category, the
// values a child's CreateData.ParentPath/ParentDepth are seeded from.
func (s *CategoryStore) PathAndDepth(ctx context.Context, categoryID string) (path string, depth int, err error) {
	if categoryID == "" {
		return "", 0, nil
	}
	v, err := s.Get(ctx, categoryID)
	if err != nil || v == nil {
		return "", 0, err
	}
	return v.Path, v.Depth, nil
}

// Tree renders rootID's subtree (or every root category if rootID is
// empty) to maxDepth levels, annotating each node with products.
// CountByCategory. maxDepth is used as given; Tree applies no cap of its
// own (CategoryTreeQuery.Validate clamps it to category.MaxDepth).
func (s *CategoryStore) Tree(ctx context.Context, rootID string, maxDepth int, products *ProductStore) ([]*CategoryNode, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	childrenOf := make(map[string][]CategoryView)
	for _, v := range all {
		childrenOf[v.ParentID] = append(childrenOf[v.ParentID], v)
	}
	for parent := range childrenOf {
		sort.SliceStable(childrenOf[parent], func(i, j int) bool {
			return childrenOf[parent][i].Name < childrenOf[parent][j].Name
		})
	}

	var build func(v CategoryView, depthLeft int) (*CategoryNode, error)
	build = func(v CategoryView, depthLeft int) (*CategoryNode, error) {
		count, err := products.CountByCategory(ctx, v.ID)
		if err != nil {
			return nil, err
		}
		node := &CategoryNode{CategoryView: v, ProductCount: count}
		if depthLeft <= 0 {
			return node, nil
		}
		for _, child := range childrenOf[v.ID] {
			childNode, err := build(child, depthLeft-1)
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, childNode)
		}
		return node, nil
	}

	if rootID != "" {
		root, err := s.Get(ctx, rootID)
		if err != nil || root == nil {
			return nil, err
		}
		node, err := build(*root, maxDepth)
		if err != nil {
			return nil, err
		}
		return []*CategoryNode{node}, nil
	}

	var roots []*CategoryNode
	for _, v := range childrenOf[""] {
		node, err := build(v, maxDepth)
		if err != nil {
			return nil, err
		}
		roots = append(roots, node)
	}
	return roots, nil
}

// Truncate clears every stored category view.
func (s *CategoryStore) Truncate(ctx context.Context) error {
	models, err := queryByType(ctx, s.store, CategoryModelType)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.GetID())
	}
	return s.store.DeleteBatch(ctx, ids, CategoryModelType)
}
