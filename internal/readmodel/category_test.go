package readmodel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
)

func seedTree(t *testing.T, ctx context.Context, store *CategoryStore) {
	t.Helper()
	require.NoError(t, store.Upsert(ctx, CategoryView{ID: "root", Name: "Root", Path: "/root", Depth: 1, Version: 1}))
	require.NoError(t, store.Upsert(ctx, CategoryView{ID: "child", Name: "Child", ParentID: "root", Path: "/root/child", Depth: 2, Version: 1}))
	require.NoError(t, store.Upsert(ctx, CategoryView{ID: "grandchild", Name: "Grandchild", ParentID: "child", Path: "/root/child/grandchild", Depth: 3, Version: 1}))
}

func TestCategoryStoreNameTakenUnderParent(t *testing.T) {
	ctx := context.Background()
	store := NewCategoryStore(cqrs.NewInMemoryReadStore())
	seedTree(t, ctx, store)

	taken, err := store.NameTakenUnderParent(ctx, "root", "Child", "")
	require.NoError(t, err)
	require.True(t, taken)

	taken, err = store.NameTakenUnderParent(ctx, "root", "Child", "child")
	require.NoError(t, err)
	require.False(t, taken)

	taken, err = store.NameTakenUnderParent(ctx, "root", "Unused", "")
	require.NoError(t, err)
	require.False(t, taken)
}

func TestCategoryStoreIsCycle(t *testing.T) {
	ctx := context.Background()
	store := NewCategoryStore(cqrs.NewInMemoryReadStore())
	seedTree(t, ctx, store)

	cycle, err := store.IsCycle(ctx, "root", "grandchild")
	require.NoError(t, err)
	require.True(t, cycle, "moving root under its own descendant must be a cycle")

	cycle, err = store.IsCycle(ctx, "child", "child")
	require.NoError(t, err)
	require.True(t, cycle)

	cycle, err = store.IsCycle(ctx, "grandchild", "root")
	require.NoError(t, err)
	require.False(t, cycle)
}

func TestCategoryStoreHasSubcategories(t *testing.T) {
	ctx := context.Background()
	store := NewCategoryStore(cqrs.NewInMemoryReadStore())
	seedTree(t, ctx, store)

	has, err := store.HasSubcategories(ctx, "child")
	require.NoError(t, err)
	require.True(t, has)

	has, err = store.HasSubcategories(ctx, "grandchild")
	require.NoError(t, err)
	require.False(t, has)
}

func TestCategoryStoreTree(t *testing.T) {
	ctx := context.Background()
	products := NewProductStore(cqrs.NewInMemoryReadStore())
	store := NewCategoryStore(cqrs.NewInMemoryReadStore())
	seedTree(t, ctx, store)

	nodes, err := store.Tree(ctx, "root", 5, products)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Equal(t, "root", nodes[0].ID)
	require.Len(t, nodes[0].Children, 1)
	require.Equal(t, "child", nodes[0].Children[0].ID)

	shallow, err := store.Tree(ctx, "root", 0, products)
	require.NoError(t, err)
	require.Empty(t, shallow[0].Children)
}
