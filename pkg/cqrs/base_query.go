package cqrs

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BaseQuery provides a base implementation of Query interface
type BaseQuery struct {
	queryID       string
	queryType     string
	timestamp     time.Time
	correlationID string
	criteria      interface{}
}

// NewBaseQuery creates a new BaseQuery
func NewBaseQuery(queryType string, criteria interface{}) *BaseQuery {
	return &BaseQuery{
		queryID:   uuid.New().String(),
		queryType: queryType,
		timestamp: time.Now(),
		criteria:  criteria,
	}
}

// Query interface implementation

func (q *BaseQuery) QueryID() string {
	return q.queryID
}

func (q *BaseQuery) QueryType() string {
	return q.queryType
}

func (q *BaseQuery) Timestamp() time.Time {
	return q.timestamp
}

func (q *BaseQuery) CorrelationID() string {
	return q.correlationID
}

func (q *BaseQuery) GetCriteria() interface{} {
	return q.criteria
}

func (q *BaseQuery) Validate() error {
	if q.queryID == "" {
		return fmt.Errorf("query ID cannot be empty")
	}
	if q.queryType == "" {
		return fmt.Errorf("query type cannot be empty")
	}
	return nil
}
