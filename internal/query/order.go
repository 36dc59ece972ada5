package query

import (
	"context"
	"fmt"
	"time"

	"github.com/fenrir-shard/ledgerfolio/internal/readmodel"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
)

// Query type constants for the Order read model.
const (
	GetOrderQueryType         = "GetOrder"
	ListOrdersByUserQueryType = "ListOrdersByUser"
	OrderStatsQueryType       = "OrderStats"
)

// GetOrderQuery fetches a single order view by id.
type GetOrderQuery struct {
	*cqrs.BaseQuery
	OrderID string `json:"order_id"`
}

// NewGetOrderQuery builds a GetOrder query for orderID.
func NewGetOrderQuery(orderID string) *GetOrderQuery {
	return &GetOrderQuery{
		BaseQuery: cqrs.NewBaseQuery(GetOrderQueryType, map[string]interface{}{"order_id": orderID}),
		OrderID:   orderID,
	}
}

func (q *GetOrderQuery) Validate() error {
	if q.OrderID == "" {
		return fmt.Errorf("order id cannot be empty")
	}
	return q.BaseQuery.Validate()
}

// ListOrdersByUserQuery lists UserID's orders newest first, paginated.
type ListOrdersByUserQuery struct {
	*cqrs.BaseQuery
	UserID   string `json:"user_id"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// NewListOrdersByUserQuery builds a ListOrdersByUser query with default
// pagination.
func NewListOrdersByUserQuery(userID string) *ListOrdersByUserQuery {
	return &ListOrdersByUserQuery{
		BaseQuery: cqrs.NewBaseQuery(ListOrdersByUserQueryType, map[string]interface{}{"user_id": userID}),
		UserID:    userID,
		PageSize:  DefaultPageSize,
	}
}

// WithPage sets the requested page and page size.
func (q *ListOrdersByUserQuery) WithPage(page, pageSize int) *ListOrdersByUserQuery {
	q.Page = page
	q.PageSize = pageSize
	return q
}

func (q *ListOrdersByUserQuery) Validate() error {
	if q.UserID == "" {
		return fmt.Errorf("user id cannot be empty")
	}
	return q.BaseQuery.Validate()
}

// OrderStatsQuery aggregates orders created in [From, To) into buckets
// keyed by GroupBy ("status" or "day").
type OrderStatsQuery struct {
	*cqrs.BaseQuery
	From    time.Time `json:"from"`
	To      time.Time `json:"to"`
	GroupBy string    `json:"group_by"`
}

// NewOrderStatsQuery builds an OrderStats query over [from, to) grouped by
// groupBy.
func NewOrderStatsQuery(from, to time.Time, groupBy string) *OrderStatsQuery {
	return &OrderStatsQuery{
		BaseQuery: cqrs.NewBaseQuery(OrderStatsQueryType, map[string]interface{}{"group_by": groupBy}),
		From:      from,
		To:        to,
		GroupBy:   groupBy,
	}
}

func (q *OrderStatsQuery) Validate() error {
	switch q.GroupBy {
	case "status", "day":
	default:
		return fmt.Errorf("group_by must be status or day, got %q", q.GroupBy)
	}
	if !q.From.Before(q.To) {
		return fmt.Errorf("from must be before to")
	}
	return q.BaseQuery.Validate()
}

// OrderHandler answers every Order query from readmodel.OrderStore.
type OrderHandler struct {
	orders *readmodel.OrderStore
}

// NewOrderHandler builds a handler bound to orders.
func NewOrderHandler(orders *readmodel.OrderStore) *OrderHandler {
	return &OrderHandler{orders: orders}
}

func (h *OrderHandler) Handle(ctx context.Context, query cqrs.Query) (*cqrs.QueryResult, error) {
	start := time.Now()
	if err := query.Validate(); err != nil {
		return &cqrs.QueryResult{Success: false, Error: err, ExecutionTime: time.Since(start)}, nil
	}

	switch q := query.(type) {
	case *GetOrderQuery:
		view, err := h.orders.Get(ctx, q.OrderID)
		if err != nil {
			return nil, err
		}
		if view == nil {
			return &cqrs.QueryResult{Success: false, Error: cqrs.ErrAggregateNotFound, ExecutionTime: time.Since(start)}, nil
		}
		return &cqrs.QueryResult{Success: true, Data: view, ExecutionTime: time.Since(start)}, nil

	case *ListOrdersByUserQuery:
		pageSize := clampPageSize(q.PageSize)
		views, total, err := h.orders.ListByUser(ctx, q.UserID, readmodel.Pagination{
			Offset: offsetFor(q.Page, pageSize), Limit: pageSize,
		})
		if err != nil {
			return nil, err
		}
		return &cqrs.QueryResult{
			Success: true, Data: views, TotalCount: total, Page: q.Page, PageSize: pageSize,
			ExecutionTime: time.Since(start),
		}, nil

	case *OrderStatsQuery:
		buckets, err := h.orders.StatsByPeriod(ctx, q.From, q.To, q.GroupBy)
		if err != nil {
			return nil, err
		}
		return &cqrs.QueryResult{Success: true, Data: buckets, TotalCount: int64(len(buckets)), ExecutionTime: time.Since(start)}, nil

	default:
		return &cqrs.QueryResult{Success: false, Error: cqrs.ErrInvalidQuery, ExecutionTime: time.Since(start)}, nil
	}
}

func (h *OrderHandler) CanHandle(queryType string) bool {
	switch queryType {
	case GetOrderQueryType, ListOrdersByUserQueryType, OrderStatsQueryType:
		return true
	default:
		return false
	}
}

func (h *OrderHandler) GetHandlerName() string { return "order_query_handler" }
