package cqrs

import (
	"context"
	"fmt"
	"sync"
)

// InMemoryReadStore provides an in-memory implementation of ReadStore
type InMemoryReadStore struct {
	models map[string]ReadModel // key: "type:id"
	mutex  sync.RWMutex
}

// NewInMemoryReadStore creates a new in-memory read store
func NewInMemoryReadStore() *InMemoryReadStore {
	return &InMemoryReadStore{
		models: make(map[string]ReadModel),
	}
}

// ReadStore interface implementation

func (rs *InMemoryReadStore) Save(ctx context.Context, readModel ReadModel) error {
	if readModel == nil {
		return NewCQRSError(ErrCodeRepositoryError.String(), "read model cannot be nil", nil)
	}

	if err := readModel.Validate(); err != nil {
		return NewCQRSError(ErrCodeRepositoryError.String(), "read model validation failed", err)
	}

	rs.mutex.Lock()
	defer rs.mutex.Unlock()

	key := rs.getModelKey(readModel.GetType(), readModel.GetID())
	rs.models[key] = readModel

	return nil
}

func (rs *InMemoryReadStore) GetByID(ctx context.Context, id string, modelType string) (ReadModel, error) {
	if id == "" {
		return nil, NewCQRSError(ErrCodeRepositoryError.String(), "id cannot be empty", nil)
	}
	if modelType == "" {
		return nil, NewCQRSError(ErrCodeRepositoryError.String(), "model type cannot be empty", nil)
	}

	rs.mutex.RLock()
	defer rs.mutex.RUnlock()

	key := rs.getModelKey(modelType, id)
	if model, exists := rs.models[key]; exists {
		return model, nil
	}

	return nil, NewCQRSError(ErrCodeRepositoryError.String(), fmt.Sprintf("read model not found: %s:%s", modelType, id), nil)
}

func (rs *InMemoryReadStore) Delete(ctx context.Context, id string, modelType string) error {
	if id == "" {
		return NewCQRSError(ErrCodeRepositoryError.String(), "id cannot be empty", nil)
	}
	if modelType == "" {
		return NewCQRSError(ErrCodeRepositoryError.String(), "model type cannot be empty", nil)
	}

	rs.mutex.Lock()
	defer rs.mutex.Unlock()

	key := rs.getModelKey(modelType, id)
	if _, exists := rs.models[key]; !exists {
		return NewCQRSError(ErrCodeRepositoryError.String(), fmt.Sprintf("read model not found: %s:%s", modelType, id), nil)
	}

	delete(rs.models, key)
	return nil
}

func (rs *InMemoryReadStore) Query(ctx context.Context, criteria QueryCriteria) ([]ReadModel, error) {
	rs.mutex.RLock()
	defer rs.mutex.RUnlock()

	var results []ReadModel

	for _, model := range rs.models {
		if rs.matchesCriteria(model, criteria) {
			results = append(results, model)
		}
	}

	if criteria.Limit > 0 {
		start := criteria.Offset
		end := start + criteria.Limit

		if start >= len(results) {
			return []ReadModel{}, nil
		}

		if end > len(results) {
			end = len(results)
		}

		results = results[start:end]
	}

	return results, nil
}

func (rs *InMemoryReadStore) DeleteBatch(ctx context.Context, ids []string, modelType string) error {
	if len(ids) == 0 {
		return nil
	}
	if modelType == "" {
		return NewCQRSError(ErrCodeRepositoryError.String(), "model type cannot be empty", nil)
	}

	rs.mutex.Lock()
	defer rs.mutex.Unlock()

	for _, id := range ids {
		if id == "" {
			continue
		}

		key := rs.getModelKey(modelType, id)
		delete(rs.models, key)
	}

	return nil
}

// Helper methods

func (rs *InMemoryReadStore) getModelKey(modelType, id string) string {
	return fmt.Sprintf("%s:%s", modelType, id)
}

// matchesCriteria is a best-effort filter: internal/readmodel's typed
// stores don't rely on it for field comparisons, only readmodel.go's
// queryByType helper does, filtering on "type".
func (rs *InMemoryReadStore) matchesCriteria(model ReadModel, criteria QueryCriteria) bool {
	if len(criteria.Filters) == 0 {
		return true
	}

	for key, value := range criteria.Filters {
		if !rs.modelContainsValue(model, key, value) {
			return false
		}
	}

	return true
}

func (rs *InMemoryReadStore) modelContainsValue(model ReadModel, key string, value interface{}) bool {
	if key == "type" && model.GetType() == fmt.Sprintf("%v", value) {
		return true
	}
	if key == "id" && model.GetID() == fmt.Sprintf("%v", value) {
		return true
	}

	return false
}

// Clear removes all models
func (rs *InMemoryReadStore) Clear() {
	rs.mutex.Lock()
	defer rs.mutex.Unlock()

	rs.models = make(map[string]ReadModel)
}
