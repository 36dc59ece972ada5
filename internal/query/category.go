package query

import (
	"context"
	"fmt"
	"time"

	"github.com/fenrir-shard/ledgerfolio/internal/domain/category"
	"github.com/fenrir-shard/ledgerfolio/internal/readmodel"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
)

// Query type constants for the Category read model.
const (
	GetCategoryQueryType    = "GetCategory"
	ListCategoriesQueryType = "ListCategories"
	CategoryTreeQueryType   = "CategoryTree"
)

// GetCategoryQuery fetches a single category view by id.
type GetCategoryQuery struct {
	*cqrs.BaseQuery
	CategoryID string `json:"category_id"`
}

// NewGetCategoryQuery builds a GetCategory query for categoryID.
func NewGetCategoryQuery(categoryID string) *GetCategoryQuery {
	return &GetCategoryQuery{
		BaseQuery:  cqrs.NewBaseQuery(GetCategoryQueryType, map[string]interface{}{"category_id": categoryID}),
		CategoryID: categoryID,
	}
}

func (q *GetCategoryQuery) Validate() error {
	if q.CategoryID == "" {
		return fmt.Errorf("category id cannot be empty")
	}
	return q.BaseQuery.Validate()
}

// ListCategoriesQuery lists every non-deleted category, optionally
// restricted to direct children of ParentID, paginated.
type ListCategoriesQuery struct {
	*cqrs.BaseQuery
	ParentID string `json:"parent_id,omitempty"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// NewListCategoriesQuery builds a ListCategories query with default
// pagination.
func NewListCategoriesQuery() *ListCategoriesQuery {
	return &ListCategoriesQuery{
		BaseQuery: cqrs.NewBaseQuery(ListCategoriesQueryType, map[string]interface{}{}),
		PageSize:  DefaultPageSize,
	}
}

// WithParent restricts the listing to direct children of parentID.
func (q *ListCategoriesQuery) WithParent(parentID string) *ListCategoriesQuery {
	q.ParentID = parentID
	return q
}

// WithPage sets the requested page and page size.
func (q *ListCategoriesQuery) WithPage(page, pageSize int) *ListCategoriesQuery {
	q.Page = page
	q.PageSize = pageSize
	return q
}

func (q *ListCategoriesQuery) Validate() error { return q.BaseQuery.Validate() }

// CategoryTreeQuery renders RootID's subtree (every root category when
// RootID is empty) up to MaxDepth levels, annotated with product counts.
type CategoryTreeQuery struct {
	*cqrs.BaseQuery
	RootID   string `json:"root_id,omitempty"`
	MaxDepth int    `json:"max_depth"`
}

// NewCategoryTreeQuery builds a CategoryTree query rooted at rootID.
func NewCategoryTreeQuery(rootID string) *CategoryTreeQuery {
	return &CategoryTreeQuery{
		BaseQuery: cqrs.NewBaseQuery(CategoryTreeQueryType, map[string]interface{}{"root_id": rootID}),
		RootID:    rootID,
		MaxDepth:  category.MaxDepth,
	}
}

// WithMaxDepth caps how many levels of the tree to render.
func (q *CategoryTreeQuery) WithMaxDepth(maxDepth int) *CategoryTreeQuery {
	q.MaxDepth = maxDepth
	return q
}

func (q *CategoryTreeQuery) Validate() error {
	if q.MaxDepth < 0 {
		return fmt.Errorf("max_depth cannot be negative")
	}
	if q.MaxDepth > category.MaxDepth {
		q.MaxDepth = category.MaxDepth
	}
	return q.BaseQuery.Validate()
}

// CategoryHandler answers every Category query from readmodel.CategoryStore.
type CategoryHandler struct {
	categories *readmodel.CategoryStore
	products   *readmodel.ProductStore
}

// NewCategoryHandler builds a handler bound to categories and products —
// CategoryTree's product_count annotation reads from products.
func NewCategoryHandler(categories *readmodel.CategoryStore, products *readmodel.ProductStore) *CategoryHandler {
	return &CategoryHandler{categories: categories, products: products}
}

func (h *CategoryHandler) Handle(ctx context.Context, query cqrs.Query) (*cqrs.QueryResult, error) {
	start := time.Now()
	if err := query.Validate(); err != nil {
		return &cqrs.QueryResult{Success: false, Error: err, ExecutionTime: time.Since(start)}, nil
	}

	switch q := query.(type) {
	case *GetCategoryQuery:
		view, err := h.categories.Get(ctx, q.CategoryID)
		if err != nil {
			return nil, err
		}
		if view == nil {
			return &cqrs.QueryResult{Success: false, Error: cqrs.ErrAggregateNotFound, ExecutionTime: time.Since(start)}, nil
		}
		return &cqrs.QueryResult{Success: true, Data: view, ExecutionTime: time.Since(start)}, nil

	case *ListCategoriesQuery:
		all, err := h.categories.All(ctx)
		if err != nil {
			return nil, err
		}
		if q.ParentID != "" {
			filtered := make([]readmodel.CategoryView, 0, len(all))
			for _, v := range all {
				if v.ParentID == q.ParentID {
					filtered = append(filtered, v)
				}
			}
			all = filtered
		}
		pageSize := clampPageSize(q.PageSize)
		paged, total, err := paginateCategories(all, offsetFor(q.Page, pageSize), pageSize)
		if err != nil {
			return nil, err
		}
		return &cqrs.QueryResult{
			Success: true, Data: paged, TotalCount: total, Page: q.Page, PageSize: pageSize,
			ExecutionTime: time.Since(start),
		}, nil

	case *CategoryTreeQuery:
		tree, err := h.categories.Tree(ctx, q.RootID, q.MaxDepth, h.products)
		if err != nil {
			return nil, err
		}
		return &cqrs.QueryResult{Success: true, Data: tree, ExecutionTime: time.Since(start)}, nil

	default:
		return &cqrs.QueryResult{Success: false, Error: cqrs.ErrInvalidQuery, ExecutionTime: time.Since(start)}, nil
	}
}

func paginateCategories(all []readmodel.CategoryView, offset, limit int) ([]readmodel.CategoryView, int64, error) {
	total := int64(len(all))
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (h *CategoryHandler) CanHandle(queryType string) bool {
	switch queryType {
	case GetCategoryQueryType, ListCategoriesQueryType, CategoryTreeQueryType:
		return true
	default:
		return false
	}
}

func (h *CategoryHandler) GetHandlerName() string { return "category_query_handler" }
