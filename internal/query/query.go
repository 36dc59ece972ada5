// Package query implements the read-only Query API: get-by-id, list with
// pagination and whitelisted sort, and the three domain-specific
// aggregations (product_count per category, category tree, order stats by
// period/group_by). Every handler reads exclusively from internal/readmodel
// and never touches the event store.
package query

// MaxPageSize caps every list query's page_size; callers asking for more
// are silently clamped rather than rejected.
const MaxPageSize = 100

// DefaultPageSize is used when a list query's page_size is zero or negative.
const DefaultPageSize = 20

func clampPageSize(pageSize int) int {
	if pageSize <= 0 {
		return DefaultPageSize
	}
	if pageSize > MaxPageSize {
		return MaxPageSize
	}
	return pageSize
}

func offsetFor(page, pageSize int) int {
	if page < 0 {
		page = 0
	}
	return page * pageSize
}
