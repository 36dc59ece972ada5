package cqrs

import (
	"fmt"
	"time"
)

// BaseReadModel provides a base implementation of ReadModel interface
type BaseReadModel struct {
	id          string
	modelType   string
	version     int
	data        interface{}
	lastUpdated time.Time
}

// NewBaseReadModel creates a new BaseReadModel
func NewBaseReadModel(id, modelType string, data interface{}) *BaseReadModel {
	return &BaseReadModel{
		id:          id,
		modelType:   modelType,
		version:     1,
		data:        data,
		lastUpdated: time.Now(),
	}
}

// ReadModel interface implementation

func (rm *BaseReadModel) GetID() string {
	return rm.id
}

func (rm *BaseReadModel) GetType() string {
	return rm.modelType
}

func (rm *BaseReadModel) GetVersion() int {
	return rm.version
}

func (rm *BaseReadModel) GetData() interface{} {
	return rm.data
}

func (rm *BaseReadModel) GetLastUpdated() time.Time {
	return rm.lastUpdated
}

func (rm *BaseReadModel) Validate() error {
	if rm.id == "" {
		return fmt.Errorf("read model ID cannot be empty")
	}
	if rm.modelType == "" {
		return fmt.Errorf("read model type cannot be empty")
	}
	if rm.data == nil {
		return fmt.Errorf("read model data cannot be nil")
	}
	return nil
}

// SetData sets the read model data and updates the version and timestamp
func (rm *BaseReadModel) SetData(data interface{}) {
	rm.data = data
	rm.version++
	rm.lastUpdated = time.Now()
}

// SetVersion sets the version (used when loading from storage)
func (rm *BaseReadModel) SetVersion(version int) {
	rm.version = version
}
