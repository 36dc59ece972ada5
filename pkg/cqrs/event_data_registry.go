package cqrs

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
)

// EventDataRegistry maps event types to the concrete Go struct a
// non-memory Event Store backend should deserialize their payloads into.
type EventDataRegistry struct {
	eventTypes map[string]reflect.Type
	mu         sync.RWMutex
}

// NewEventDataRegistry creates a new event data registry
func NewEventDataRegistry() *EventDataRegistry {
	return &EventDataRegistry{
		eventTypes: make(map[string]reflect.Type),
	}
}

// RegisterEventData registers an event data type for the given event type.
// eventData should be a zero value (or pointer to one) of the event data
// struct; the registry always stores the pointer type for deserialization.
func (r *EventDataRegistry) RegisterEventData(eventType string, eventData interface{}) error {
	if eventType == "" {
		return NewCQRSError(ErrCodeValidationError.String(), "event type cannot be empty", nil)
	}

	if eventData == nil {
		return NewCQRSError(ErrCodeValidationError.String(), "event data cannot be nil", nil)
	}

	if err := r.validateJSONSerialization(eventData); err != nil {
		return NewCQRSError(ErrCodeValidationError.String(),
			fmt.Sprintf("event data validation failed for type %s: %v", eventType, err), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dataType := reflect.TypeOf(eventData)
	if dataType.Kind() != reflect.Ptr {
		dataType = reflect.PointerTo(dataType)
	}

	r.eventTypes[eventType] = dataType

	return nil
}

// GetEventDataType returns the registered type for the given event type
func (r *EventDataRegistry) GetEventDataType(eventType string) (reflect.Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dataType, exists := r.eventTypes[eventType]
	if !exists {
		return nil, NewCQRSError(ErrCodeNotFoundError.String(),
			fmt.Sprintf("event type not registered: %s", eventType), nil)
	}

	return dataType, nil
}

// IsRegistered checks if an event type is registered
func (r *EventDataRegistry) IsRegistered(eventType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.eventTypes[eventType]
	return exists
}

// validateJSONSerialization validates that the event data can be properly serialized and deserialized
func (r *EventDataRegistry) validateJSONSerialization(eventData interface{}) error {
	jsonData, err := json.Marshal(eventData)
	if err != nil {
		return fmt.Errorf("failed to marshal to JSON: %w", err)
	}

	dataType := reflect.TypeOf(eventData)
	var target interface{}

	if dataType.Kind() == reflect.Ptr {
		target = reflect.New(dataType.Elem()).Interface()
	} else {
		target = reflect.New(dataType).Interface()
	}

	if err := json.Unmarshal(jsonData, target); err != nil {
		return fmt.Errorf("failed to unmarshal from JSON: %w", err)
	}

	return nil
}
