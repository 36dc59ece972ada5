package cqrs

import (
	"context"
	"fmt"
	"sync"
)

// InMemoryEventBus provides an in-memory implementation of EventBus
type InMemoryEventBus struct {
	subscriptions map[string][]EventHandler
	allHandlers   []EventHandler
	running       bool
	mutex         sync.RWMutex
	nextSubID     int64
	subIDMutex    sync.Mutex
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus() *InMemoryEventBus {
	return &InMemoryEventBus{
		subscriptions: make(map[string][]EventHandler),
		allHandlers:   make([]EventHandler, 0),
	}
}

// EventBus interface implementation

func (bus *InMemoryEventBus) Publish(ctx context.Context, event EventMessage, options ...EventPublishOptions) error {
	if event == nil {
		return NewCQRSError(ErrCodeEventValidation.String(), "event cannot be nil", nil)
	}

	var opts EventPublishOptions
	if len(options) > 0 {
		opts = options[0]
	}

	if opts.Async {
		go bus.processEvent(ctx, event)
		return nil
	}

	return bus.processEvent(ctx, event)
}

func (bus *InMemoryEventBus) PublishBatch(ctx context.Context, events []EventMessage, options ...EventPublishOptions) error {
	if len(events) == 0 {
		return nil
	}

	for _, event := range events {
		if err := bus.Publish(ctx, event, options...); err != nil {
			return err
		}
	}

	return nil
}

func (bus *InMemoryEventBus) Subscribe(eventType string, handler EventHandler) (SubscriptionID, error) {
	if eventType == "" {
		return "", NewCQRSError(ErrCodeEventValidation.String(), "event type cannot be empty", nil)
	}
	if handler == nil {
		return "", NewCQRSError(ErrCodeEventValidation.String(), "handler cannot be nil", nil)
	}

	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	bus.subscriptions[eventType] = append(bus.subscriptions[eventType], handler)

	return bus.generateSubscriptionID(), nil
}

func (bus *InMemoryEventBus) SubscribeAll(handler EventHandler) (SubscriptionID, error) {
	if handler == nil {
		return "", NewCQRSError(ErrCodeEventValidation.String(), "handler cannot be nil", nil)
	}

	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	bus.allHandlers = append(bus.allHandlers, handler)

	return bus.generateSubscriptionID(), nil
}

func (bus *InMemoryEventBus) Unsubscribe(subscriptionID SubscriptionID) error {
	// Note: this implementation doesn't track individual subscriptions,
	// so there's nothing to remove by ID.
	return nil
}

func (bus *InMemoryEventBus) Start(ctx context.Context) error {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	if bus.running {
		return NewCQRSError(ErrCodeEventBusError.String(), "event bus is already running", nil)
	}

	bus.running = true
	return nil
}

func (bus *InMemoryEventBus) Stop(ctx context.Context) error {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	if !bus.running {
		return NewCQRSError(ErrCodeEventBusError.String(), "event bus is not running", nil)
	}

	bus.running = false
	return nil
}

func (bus *InMemoryEventBus) IsRunning() bool {
	bus.mutex.RLock()
	defer bus.mutex.RUnlock()

	return bus.running
}

// Helper methods

func (bus *InMemoryEventBus) processEvent(ctx context.Context, event EventMessage) error {
	bus.mutex.RLock()

	handlers := make([]EventHandler, 0, len(bus.subscriptions[event.EventType()])+len(bus.allHandlers))
	handlers = append(handlers, bus.subscriptions[event.EventType()]...)
	handlers = append(handlers, bus.allHandlers...)

	bus.mutex.RUnlock()

	for _, handler := range handlers {
		if handler.CanHandle(event.EventType()) {
			if err := handler.Handle(ctx, event); err != nil {
				return NewCQRSError(ErrCodeEventValidation.String(),
					fmt.Sprintf("handler %s failed to process event %s", handler.GetHandlerName(), event.EventType()), err)
			}
		}
	}

	return nil
}

func (bus *InMemoryEventBus) generateSubscriptionID() SubscriptionID {
	bus.subIDMutex.Lock()
	defer bus.subIDMutex.Unlock()

	bus.nextSubID++
	return SubscriptionID(fmt.Sprintf("sub_%d", bus.nextSubID))
}

// Clear removes all subscriptions
func (bus *InMemoryEventBus) Clear() {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	bus.subscriptions = make(map[string][]EventHandler)
	bus.allHandlers = make([]EventHandler, 0)
}
