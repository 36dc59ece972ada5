package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fenrir-shard/ledgerfolio/internal/readmodel"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
)

// Query type constants for the Product read model.
const (
	GetProductQueryType   = "GetProduct"
	ListProductsQueryType = "ListProducts"
)

// GetProductQuery fetches a single product view by id.
type GetProductQuery struct {
	*cqrs.BaseQuery
	ProductID string `json:"product_id"`
}

// NewGetProductQuery builds a GetProduct query for productID.
func NewGetProductQuery(productID string) *GetProductQuery {
	return &GetProductQuery{
		BaseQuery: cqrs.NewBaseQuery(GetProductQueryType, map[string]interface{}{"product_id": productID}),
		ProductID: productID,
	}
}

func (q *GetProductQuery) Validate() error {
	if q.ProductID == "" {
		return fmt.Errorf("product id cannot be empty")
	}
	return q.BaseQuery.Validate()
}

// ListProductsQuery lists active products under CategoryID (empty matches
// every category), sorted by SortBy/SortOrder and paginated.
type ListProductsQuery struct {
	*cqrs.BaseQuery
	CategoryID string `json:"category_id,omitempty"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	SortBy     string `json:"sort_by,omitempty"`    // "name" or "price"
	SortOrder  string `json:"sort_order,omitempty"` // "asc" or "desc"
}

// NewListProductsQuery builds a ListProducts query with sane defaults
// (page 0, page_size 20, sorted by name ascending).
func NewListProductsQuery(categoryID string) *ListProductsQuery {
	return &ListProductsQuery{
		BaseQuery:  cqrs.NewBaseQuery(ListProductsQueryType, map[string]interface{}{"category_id": categoryID}),
		CategoryID: categoryID,
		PageSize:   DefaultPageSize,
		SortBy:     "name",
		SortOrder:  "asc",
	}
}

// WithPage sets the requested page and page size.
func (q *ListProductsQuery) WithPage(page, pageSize int) *ListProductsQuery {
	q.Page = page
	q.PageSize = pageSize
	return q
}

// WithSort sets the requested sort field and order.
func (q *ListProductsQuery) WithSort(sortBy, sortOrder string) *ListProductsQuery {
	q.SortBy = sortBy
	q.SortOrder = sortOrder
	return q
}

func (q *ListProductsQuery) Validate() error {
	switch q.SortBy {
	case "", "name", "price":
	default:
		return fmt.Errorf("sort_by %q is not a whitelisted product field", q.SortBy)
	}
	switch q.SortOrder {
	case "", "asc", "desc":
	default:
		return fmt.Errorf("sort_order must be asc or desc, got %q", q.SortOrder)
	}
	return q.BaseQuery.Validate()
}

// ProductHandler answers every Product query from readmodel.ProductStore.
type ProductHandler struct {
	products *readmodel.ProductStore
}

// NewProductHandler builds a handler bound to products.
func NewProductHandler(products *readmodel.ProductStore) *ProductHandler {
	return &ProductHandler{products: products}
}

func (h *ProductHandler) Handle(ctx context.Context, query cqrs.Query) (*cqrs.QueryResult, error) {
	start := time.Now()
	if err := query.Validate(); err != nil {
		return &cqrs.QueryResult{Success: false, Error: err, ExecutionTime: time.Since(start)}, nil
	}

	switch q := query.(type) {
	case *GetProductQuery:
		view, err := h.products.Get(ctx, q.ProductID)
		if err != nil {
			return nil, err
		}
		if view == nil {
			return &cqrs.QueryResult{Success: false, Error: cqrs.ErrAggregateNotFound, ExecutionTime: time.Since(start)}, nil
		}
		return &cqrs.QueryResult{Success: true, Data: view, ExecutionTime: time.Since(start)}, nil

	case *ListProductsQuery:
		pageSize := clampPageSize(q.PageSize)
		var (
			views []readmodel.ProductView
			total int64
			err   error
		)
		if q.CategoryID != "" {
			var matched []readmodel.ProductView
			matched, _, err = h.products.ListByCategory(ctx, q.CategoryID, readmodel.Pagination{})
			if err == nil {
				sortProducts(matched, q.SortBy, q.SortOrder)
				views, total, err = paginateProducts(matched, offsetFor(q.Page, pageSize), pageSize)
			}
		} else {
			views, total, err = listAllProducts(h.products, ctx, q, pageSize)
		}
		if err != nil {
			return nil, err
		}
		return &cqrs.QueryResult{
			Success: true, Data: views, TotalCount: total, Page: q.Page, PageSize: pageSize,
			ExecutionTime: time.Since(start),
		}, nil

	default:
		return &cqrs.QueryResult{Success: false, Error: cqrs.ErrInvalidQuery, ExecutionTime: time.Since(start)}, nil
	}
}

// listAllProducts sorts every product view by the query's whitelisted field
// before paginating, since ProductStore.All has no category filter applied.
func listAllProducts(products *readmodel.ProductStore, ctx context.Context, q *ListProductsQuery, pageSize int) ([]readmodel.ProductView, int64, error) {
	all, err := products.All(ctx)
	if err != nil {
		return nil, 0, err
	}
	sortProducts(all, q.SortBy, q.SortOrder)
	return paginateProducts(all, offsetFor(q.Page, pageSize), pageSize)
}

func sortProducts(views []readmodel.ProductView, sortBy, sortOrder string) {
	less := func(i, j int) bool { return views[i].Name < views[j].Name }
	if sortBy == "price" {
		less = func(i, j int) bool { return views[i].Price.LessThan(views[j].Price) }
	}
	sort.SliceStable(views, func(i, j int) bool {
		if sortOrder == "desc" {
			return less(j, i)
		}
		return less(i, j)
	})
}

func paginateProducts(all []readmodel.ProductView, offset, limit int) ([]readmodel.ProductView, int64, error) {
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

func (h *ProductHandler) CanHandle(queryType string) bool {
	switch queryType {
	case GetProductQueryType, ListProductsQueryType:
		return true
	default:
		return false
	}
}

func (h *ProductHandler) GetHandlerName() string { return "product_query_handler" }
