package cqrs

import (
	"context"
	"fmt"
	"sync"
)

// handlerRegistry is the map+mutex bookkeeping shared by the command and
// query dispatchers: register, unregister, lookup, list, count, clear.
// Command and query dispatch keep their own Dispatch methods because the
// two protocols report different errors on a missing handler.
type handlerRegistry[H any] struct {
	handlers map[string]H
	mutex    sync.RWMutex
}

func newHandlerRegistry[H any]() *handlerRegistry[H] {
	return &handlerRegistry[H]{handlers: make(map[string]H)}
}

func (r *handlerRegistry[H]) register(key string, handler H) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.handlers[key] = handler
}

func (r *handlerRegistry[H]) exists(key string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	_, ok := r.handlers[key]
	return ok
}

func (r *handlerRegistry[H]) lookup(key string) (H, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	h, ok := r.handlers[key]
	return h, ok
}

func (r *handlerRegistry[H]) unregister(key string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.handlers[key]; !ok {
		return false
	}
	delete(r.handlers, key)
	return true
}

func (r *handlerRegistry[H]) keys() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	keys := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k)
	}
	return keys
}

func (r *handlerRegistry[H]) count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.handlers)
}

func (r *handlerRegistry[H]) clear() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.handlers = make(map[string]H)
}

// InMemoryCommandDispatcher provides an in-memory implementation of CommandDispatcher
type InMemoryCommandDispatcher struct {
	registry *handlerRegistry[CommandHandler]
}

// NewInMemoryCommandDispatcher creates a new in-memory command dispatcher
func NewInMemoryCommandDispatcher() *InMemoryCommandDispatcher {
	return &InMemoryCommandDispatcher{registry: newHandlerRegistry[CommandHandler]()}
}

func (d *InMemoryCommandDispatcher) Dispatch(ctx context.Context, command Command) (*CommandResult, error) {
	if command == nil {
		return &CommandResult{
			Success: false,
			Error:   NewCQRSError(ErrCodeCommandValidation.String(), "command cannot be nil", nil),
		}, nil
	}

	if err := command.Validate(); err != nil {
		return &CommandResult{
			Success: false,
			Error:   NewCQRSError(ErrCodeCommandValidation.String(), "command validation failed", err),
		}, nil
	}

	handler, exists := d.registry.lookup(command.CommandType())
	if !exists {
		return &CommandResult{
			Success: false,
			Error:   NewCQRSError(ErrCodeCommandValidation.String(), fmt.Sprintf("no handler found for command type: %s", command.CommandType()), ErrCommandHandlerNotFound),
		}, nil
	}

	return handler.Handle(ctx, command)
}

func (d *InMemoryCommandDispatcher) RegisterHandler(commandType string, handler CommandHandler) error {
	if commandType == "" {
		return NewCQRSError(ErrCodeCommandValidation.String(), "command type cannot be empty", nil)
	}
	if handler == nil {
		return NewCQRSError(ErrCodeCommandValidation.String(), "handler cannot be nil", nil)
	}
	if d.registry.exists(commandType) {
		return NewCQRSError(ErrCodeCommandValidation.String(), fmt.Sprintf("handler already registered for command type: %s", commandType), nil)
	}
	d.registry.register(commandType, handler)
	return nil
}

func (d *InMemoryCommandDispatcher) UnregisterHandler(commandType string) error {
	if commandType == "" {
		return NewCQRSError(ErrCodeCommandValidation.String(), "command type cannot be empty", nil)
	}
	if !d.registry.unregister(commandType) {
		return NewCQRSError(ErrCodeCommandValidation.String(), fmt.Sprintf("no handler registered for command type: %s", commandType), ErrCommandHandlerNotFound)
	}
	return nil
}

// GetRegisteredHandlers returns all registered command types
func (d *InMemoryCommandDispatcher) GetRegisteredHandlers() []string { return d.registry.keys() }

// HasHandler checks if a handler is registered for the given command type
func (d *InMemoryCommandDispatcher) HasHandler(commandType string) bool { return d.registry.exists(commandType) }

// GetHandlerCount returns the number of registered handlers
func (d *InMemoryCommandDispatcher) GetHandlerCount() int { return d.registry.count() }

// Clear removes all registered handlers
func (d *InMemoryCommandDispatcher) Clear() { d.registry.clear() }

// InMemoryQueryDispatcher provides an in-memory implementation of QueryDispatcher
type InMemoryQueryDispatcher struct {
	registry *handlerRegistry[QueryHandler]
}

// NewInMemoryQueryDispatcher creates a new in-memory query dispatcher
func NewInMemoryQueryDispatcher() *InMemoryQueryDispatcher {
	return &InMemoryQueryDispatcher{registry: newHandlerRegistry[QueryHandler]()}
}

func (d *InMemoryQueryDispatcher) Dispatch(ctx context.Context, query Query) (*QueryResult, error) {
	if query == nil {
		return &QueryResult{
			Success: false,
			Error:   NewCQRSError(ErrCodeQueryValidation.String(), "query cannot be nil", nil),
		}, nil
	}

	if err := query.Validate(); err != nil {
		return &QueryResult{
			Success: false,
			Error:   NewCQRSError(ErrCodeQueryValidation.String(), "query validation failed", err),
		}, nil
	}

	handler, exists := d.registry.lookup(query.QueryType())
	if !exists {
		return &QueryResult{
			Success: false,
			Error:   NewCQRSError(ErrCodeQueryValidation.String(), fmt.Sprintf("no handler found for query type: %s", query.QueryType()), ErrQueryHandlerNotFound),
		}, nil
	}

	return handler.Handle(ctx, query)
}

func (d *InMemoryQueryDispatcher) RegisterHandler(queryType string, handler QueryHandler) error {
	if queryType == "" {
		return NewCQRSError(ErrCodeQueryValidation.String(), "query type cannot be empty", nil)
	}
	if handler == nil {
		return NewCQRSError(ErrCodeQueryValidation.String(), "handler cannot be nil", nil)
	}
	if d.registry.exists(queryType) {
		return NewCQRSError(ErrCodeQueryValidation.String(), fmt.Sprintf("handler already registered for query type: %s", queryType), nil)
	}
	d.registry.register(queryType, handler)
	return nil
}

func (d *InMemoryQueryDispatcher) UnregisterHandler(queryType string) error {
	if queryType == "" {
		return NewCQRSError(ErrCodeQueryValidation.String(), "query type cannot be empty", nil)
	}
	if !d.registry.unregister(queryType) {
		return NewCQRSError(ErrCodeQueryValidation.String(), fmt.Sprintf("no handler registered for query type: %s", queryType), ErrQueryHandlerNotFound)
	}
	return nil
}

// GetRegisteredHandlers returns all registered query types
func (d *InMemoryQueryDispatcher) GetRegisteredHandlers() []string { return d.registry.keys() }

// HasHandler checks if a handler is registered for the given query type
func (d *InMemoryQueryDispatcher) HasHandler(queryType string) bool { return d.registry.exists(queryType) }

// GetHandlerCount returns the number of registered handlers
func (d *InMemoryQueryDispatcher) GetHandlerCount() int { return d.registry.count() }

// Clear removes all registered handlers
func (d *InMemoryQueryDispatcher) Clear() { d.registry.clear() }
