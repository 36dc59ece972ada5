package cqrs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// testEventHandler implements EventHandler directly.
type testEventHandler struct {
	name          string
	handlerType   HandlerType
	eventTypes    map[string]bool
	HandledEvents []EventMessage
	HandleFunc    func(ctx context.Context, event EventMessage) error
	mutex         sync.Mutex
}

func newTestEventHandler(name string, eventTypes []string) *testEventHandler {
	types := make(map[string]bool, len(eventTypes))
	for _, et := range eventTypes {
		types[et] = true
	}
	return &testEventHandler{
		name:        name,
		handlerType: ProjectionHandler,
		eventTypes:  types,
	}
}

func (h *testEventHandler) Handle(ctx context.Context, event EventMessage) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.HandledEvents = append(h.HandledEvents, event)

	if h.HandleFunc != nil {
		return h.HandleFunc(ctx, event)
	}

	return nil
}

func (h *testEventHandler) CanHandle(eventType string) bool { return h.eventTypes[eventType] }
func (h *testEventHandler) GetHandlerName() string           { return h.name }
func (h *testEventHandler) GetHandlerType() HandlerType       { return h.handlerType }

func (h *testEventHandler) GetHandledEventCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.HandledEvents)
}

func (h *testEventHandler) GetLastHandledEvent() EventMessage {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if len(h.HandledEvents) == 0 {
		return nil
	}
	return h.HandledEvents[len(h.HandledEvents)-1]
}

func TestNewInMemoryEventBus(t *testing.T) {
	bus := NewInMemoryEventBus()

	assert.NotNil(t, bus)
	assert.False(t, bus.IsRunning())
}

func TestEventBus_StartStop(t *testing.T) {
	bus := NewInMemoryEventBus()

	assert.False(t, bus.IsRunning())

	err := bus.Start(context.Background())
	assert.NoError(t, err)
	assert.True(t, bus.IsRunning())

	err = bus.Start(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already running")

	err = bus.Stop(context.Background())
	assert.NoError(t, err)
	assert.False(t, bus.IsRunning())

	err = bus.Stop(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not running")
}

func TestEventBus_Subscribe(t *testing.T) {
	bus := NewInMemoryEventBus()
	handler := newTestEventHandler("TestHandler", []string{"TestEvent"})

	subID, err := bus.Subscribe("TestEvent", handler)

	assert.NoError(t, err)
	assert.NotEmpty(t, subID)
}

func TestEventBus_Subscribe_EmptyEventType(t *testing.T) {
	bus := NewInMemoryEventBus()
	handler := newTestEventHandler("TestHandler", []string{"TestEvent"})

	subID, err := bus.Subscribe("", handler)

	assert.Error(t, err)
	assert.Empty(t, subID)
	assert.Contains(t, err.Error(), "event type cannot be empty")
}

func TestEventBus_Subscribe_NilHandler(t *testing.T) {
	bus := NewInMemoryEventBus()

	subID, err := bus.Subscribe("TestEvent", nil)

	assert.Error(t, err)
	assert.Empty(t, subID)
	assert.Contains(t, err.Error(), "handler cannot be nil")
}

func TestEventBus_SubscribeAll(t *testing.T) {
	bus := NewInMemoryEventBus()
	handler := newTestEventHandler("AllEventsHandler", []string{"TestEvent1", "TestEvent2"})

	subID, err := bus.SubscribeAll(handler)

	assert.NoError(t, err)
	assert.NotEmpty(t, subID)
}

func TestEventBus_Publish_Success(t *testing.T) {
	bus := NewInMemoryEventBus()
	handler := newTestEventHandler("TestHandler", []string{"TestEvent"})
	event := NewBaseEventMessage("TestEvent", "test-id", "TestAggregate", 1, "test data")

	bus.Subscribe("TestEvent", handler)

	err := bus.Publish(context.Background(), event)

	assert.NoError(t, err)
	assert.Equal(t, 1, handler.GetHandledEventCount())
	assert.Equal(t, event, handler.GetLastHandledEvent())
}

func TestEventBus_Publish_NilEvent(t *testing.T) {
	bus := NewInMemoryEventBus()

	err := bus.Publish(context.Background(), nil)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "event cannot be nil")
}

func TestEventBus_Publish_NoHandlers(t *testing.T) {
	bus := NewInMemoryEventBus()
	event := NewBaseEventMessage("TestEvent", "test-id", "TestAggregate", 1, "test data")

	err := bus.Publish(context.Background(), event)

	assert.NoError(t, err)
}

func TestEventBus_Publish_HandlerError(t *testing.T) {
	bus := NewInMemoryEventBus()
	handler := newTestEventHandler("TestHandler", []string{"TestEvent"})
	event := NewBaseEventMessage("TestEvent", "test-id", "TestAggregate", 1, "test data")

	handler.HandleFunc = func(ctx context.Context, event EventMessage) error {
		return NewCQRSError(ErrCodeEventValidation.String(), "handler error", nil)
	}

	bus.Subscribe("TestEvent", handler)

	err := bus.Publish(context.Background(), event)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "handler error")
}

func TestEventBus_Publish_AllHandlers(t *testing.T) {
	bus := NewInMemoryEventBus()
	specificHandler := newTestEventHandler("SpecificHandler", []string{"TestEvent"})
	allHandler := newTestEventHandler("AllHandler", []string{"TestEvent", "OtherEvent"})
	event := NewBaseEventMessage("TestEvent", "test-id", "TestAggregate", 1, "test data")

	bus.Subscribe("TestEvent", specificHandler)
	bus.SubscribeAll(allHandler)

	err := bus.Publish(context.Background(), event)

	assert.NoError(t, err)
	assert.Equal(t, 1, specificHandler.GetHandledEventCount())
	assert.Equal(t, 1, allHandler.GetHandledEventCount())
}

func TestEventBus_PublishBatch(t *testing.T) {
	bus := NewInMemoryEventBus()
	handler := newTestEventHandler("TestHandler", []string{"TestEvent"})
	events := []EventMessage{
		NewBaseEventMessage("TestEvent", "test-id-1", "TestAggregate", 1, "data 1"),
		NewBaseEventMessage("TestEvent", "test-id-2", "TestAggregate", 2, "data 2"),
		NewBaseEventMessage("TestEvent", "test-id-3", "TestAggregate", 3, "data 3"),
	}

	bus.Subscribe("TestEvent", handler)

	err := bus.PublishBatch(context.Background(), events)

	assert.NoError(t, err)
	assert.Equal(t, 3, handler.GetHandledEventCount())
}

func TestEventBus_PublishBatch_EmptyEvents(t *testing.T) {
	bus := NewInMemoryEventBus()

	err := bus.PublishBatch(context.Background(), []EventMessage{})

	assert.NoError(t, err)
}

func TestEventBus_Publish_Async(t *testing.T) {
	bus := NewInMemoryEventBus()
	handler := newTestEventHandler("TestHandler", []string{"TestEvent"})
	event := NewBaseEventMessage("TestEvent", "test-id", "TestAggregate", 1, "test data")

	bus.Subscribe("TestEvent", handler)

	err := bus.Publish(context.Background(), event, EventPublishOptions{Async: true})

	assert.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	assert.Equal(t, 1, handler.GetHandledEventCount())
}

func TestEventBus_Clear(t *testing.T) {
	bus := NewInMemoryEventBus()
	handler := newTestEventHandler("TestHandler", []string{"TestEvent"})
	event := NewBaseEventMessage("TestEvent", "test-id", "TestAggregate", 1, "test data")

	bus.Subscribe("TestEvent", handler)
	bus.Publish(context.Background(), event)

	bus.Clear()

	err := bus.Publish(context.Background(), event)
	assert.NoError(t, err)
	assert.Equal(t, 1, handler.GetHandledEventCount()) // cleared handler no longer subscribed
}

func TestHandlerType_String(t *testing.T) {
	tests := []struct {
		handlerType HandlerType
		expected    string
	}{
		{ProjectionHandler, "projection"},
		{ProcessManagerHandler, "process_manager"},
		{SagaHandler, "saga"},
		{NotificationHandler, "notification"},
		{HandlerType(999), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.handlerType.String())
		})
	}
}
