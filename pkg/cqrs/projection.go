package cqrs

import (
	"context"
	"time"
)

// QueryCriteria narrows a ReadStore.Query call. Filters is matched by the
// concrete store (the in-memory store's own field matching is best effort;
// internal/readmodel's typed stores do real field comparisons and only use
// ReadStore for persistence, not filtering).
type QueryCriteria struct {
	Filters map[string]interface{}
	Limit   int
	Offset  int
}

// ReadModel is one query-optimized projection of an aggregate's current
// state. internal/readmodel wraps every typed view
// (ProductView, CategoryView, OrderView) in a BaseReadModel so the same
// persistence contract serves all three.
type ReadModel interface {
	GetID() string
	GetType() string
	GetVersion() int
	GetData() interface{}
	GetLastUpdated() time.Time

	Validate() error
}

// ReadStore persists ReadModel values. The pull-based projection.Runner
// (pkg/cqrs/projection) drives what goes into a ReadStore; internal/query
// reads back out of it.
type ReadStore interface {
	Save(ctx context.Context, readModel ReadModel) error
	GetByID(ctx context.Context, id string, modelType string) (ReadModel, error)
	Delete(ctx context.Context, id string, modelType string) error

	Query(ctx context.Context, criteria QueryCriteria) ([]ReadModel, error)

	DeleteBatch(ctx context.Context, ids []string, modelType string) error
}
