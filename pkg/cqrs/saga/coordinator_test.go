package saga

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs/eventstore"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs/resilience"
)

// fakeCommand is the minimal Command implementation the coordinator needs
// for tests; it never touches an aggregate so it's valid by construction.
type fakeCommand struct {
	*cqrs.BaseCommand
}

func newFakeCommand(commandType, aggregateID string, data interface{}) *fakeCommand {
	return &fakeCommand{BaseCommand: cqrs.NewBaseCommand(commandType, aggregateID, "TestAggregate", data)}
}

// recordingDispatcher is a stand-in command bus that records dispatched
// commands and lets the test script success/failure per command type.
type recordingDispatcher struct {
	mu       sync.Mutex
	handlers map[string]func(cmd cqrs.Command) (*cqrs.CommandResult, error)
	calls    []string
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{handlers: make(map[string]func(cmd cqrs.Command) (*cqrs.CommandResult, error))}
}

func (d *recordingDispatcher) on(commandType string, fn func(cmd cqrs.Command) (*cqrs.CommandResult, error)) {
	d.handlers[commandType] = fn
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, command cqrs.Command) (*cqrs.CommandResult, error) {
	d.mu.Lock()
	d.calls = append(d.calls, command.CommandType())
	fn := d.handlers[command.CommandType()]
	d.mu.Unlock()

	if fn == nil {
		return &cqrs.CommandResult{Success: true}, nil
	}
	return fn(command)
}

func (d *recordingDispatcher) RegisterHandler(commandType string, handler cqrs.CommandHandler) error { return nil }
func (d *recordingDispatcher) UnregisterHandler(commandType string) error                             { return nil }

func newCoordinator() (*Coordinator, *recordingDispatcher, eventstore.EventStore) {
	store := eventstore.NewMemoryStore(100)
	dispatcher := newRecordingDispatcher()
	breakers := resilience.NewCircuitBreakerManager(resilience.DefaultConfig())
	return NewCoordinator(store, dispatcher, breakers), dispatcher, store
}

func threeStepDefinition() *Definition {
	return &Definition{
		SagaType: "OrderFulfillment",
		Timeout:  time.Minute,
		Steps: []Step{
			{
				Name: "ReserveInventory",
				Forward: func(ctx context.Context, data map[string]interface{}) (cqrs.Command, error) {
					return newFakeCommand("ReserveInventory", data["order_id"].(string), nil), nil
				},
				Compensation: func(ctx context.Context, data map[string]interface{}) (cqrs.Command, error) {
					return newFakeCommand("ReleaseInventory", data["order_id"].(string), nil), nil
				},
			},
			{
				Name: "ProcessPayment",
				Forward: func(ctx context.Context, data map[string]interface{}) (cqrs.Command, error) {
					return newFakeCommand("ProcessPayment", data["order_id"].(string), nil), nil
				},
				Compensation: func(ctx context.Context, data map[string]interface{}) (cqrs.Command, error) {
					return newFakeCommand("RefundPayment", data["order_id"].(string), nil), nil
				},
			},
			{
				Name: "ArrangeShipping",
				Forward: func(ctx context.Context, data map[string]interface{}) (cqrs.Command, error) {
					return newFakeCommand("ArrangeShipping", data["order_id"].(string), nil), nil
				},
			},
		},
	}
}

func TestCoordinator_StartSaga_AllStepsSucceed(t *testing.T) {
	// Arrange
	coordinator, dispatcher, _ := newCoordinator()
	require.NoError(t, coordinator.Register(threeStepDefinition()))
	_ = dispatcher

	// Act
	sagaID, err := coordinator.StartSaga(context.Background(), "OrderFulfillment", map[string]interface{}{"order_id": "o1"})

	// Assert
	require.NoError(t, err)
	inst := coordinator.GetInstance(sagaID)
	require.NotNil(t, inst)
	assert.Equal(t, StatusCompleted, inst.Status)
	assert.Equal(t, 3, inst.StepIndex)
	assert.Equal(t, []string{"ReserveInventory", "ProcessPayment", "ArrangeShipping"}, dispatcher.calls)
}

func TestCoordinator_StartSaga_StepFailureCompensatesInReverse(t *testing.T) {
	// Arrange
	coordinator, dispatcher, _ := newCoordinator()
	require.NoError(t, coordinator.Register(threeStepDefinition()))

	dispatcher.on("ProcessPayment", func(cmd cqrs.Command) (*cqrs.CommandResult, error) {
		return &cqrs.CommandResult{Success: false, Error: cqrs.NewDomainError(cqrs.KindDomainViolation, "payment_declined", "card declined", nil)}, nil
	})

	// Act
	sagaID, err := coordinator.StartSaga(context.Background(), "OrderFulfillment", map[string]interface{}{"order_id": "o2"})

	// Assert
	require.NoError(t, err)
	inst := coordinator.GetInstance(sagaID)
	require.NotNil(t, inst)
	assert.Equal(t, StatusCompensated, inst.Status)
	assert.Equal(t, []string{"ReserveInventory", "ProcessPayment", "ReleaseInventory"}, dispatcher.calls)
}

func TestCoordinator_StartSaga_CompensationFailureEndsFailed(t *testing.T) {
	// Arrange
	coordinator, dispatcher, _ := newCoordinator()
	require.NoError(t, coordinator.Register(threeStepDefinition()))

	dispatcher.on("ProcessPayment", func(cmd cqrs.Command) (*cqrs.CommandResult, error) {
		return &cqrs.CommandResult{Success: false, Error: cqrs.NewDomainError(cqrs.KindDomainViolation, "payment_declined", "card declined", nil)}, nil
	})
	dispatcher.on("ReleaseInventory", func(cmd cqrs.Command) (*cqrs.CommandResult, error) {
		return &cqrs.CommandResult{Success: false, Error: cqrs.NewDomainError(cqrs.KindTransient, "inventory_service_down", "unreachable", nil)}, nil
	})

	// Act
	sagaID, err := coordinator.StartSaga(context.Background(), "OrderFulfillment", map[string]interface{}{"order_id": "o3"})

	// Assert
	require.NoError(t, err)
	inst := coordinator.GetInstance(sagaID)
	require.NotNil(t, inst)
	assert.Equal(t, StatusFailed, inst.Status)
}

func TestCoordinator_StartSaga_UnknownSagaType(t *testing.T) {
	// Arrange
	coordinator, _, _ := newCoordinator()

	// Act
	_, err := coordinator.StartSaga(context.Background(), "DoesNotExist", nil)

	// Assert
	assert.Error(t, err)
}

func TestCoordinator_AlreadyCompensatedTreatedAsSuccess(t *testing.T) {
	// Arrange
	coordinator, dispatcher, _ := newCoordinator()
	require.NoError(t, coordinator.Register(threeStepDefinition()))

	dispatcher.on("ProcessPayment", func(cmd cqrs.Command) (*cqrs.CommandResult, error) {
		return &cqrs.CommandResult{Success: false, Error: cqrs.NewDomainError(cqrs.KindDomainViolation, "payment_declined", "card declined", nil)}, nil
	})
	dispatcher.on("ReleaseInventory", func(cmd cqrs.Command) (*cqrs.CommandResult, error) {
		return &cqrs.CommandResult{Success: false, Error: cqrs.NewDomainError(cqrs.KindDomainViolation, "already_compensated", "already released", nil)}, nil
	})

	// Act
	sagaID, err := coordinator.StartSaga(context.Background(), "OrderFulfillment", map[string]interface{}{"order_id": "o4"})

	// Assert
	require.NoError(t, err)
	inst := coordinator.GetInstance(sagaID)
	assert.Equal(t, StatusCompensated, inst.Status)
}

func TestCoordinator_ResumeAll_RebuildsTerminalSagaWithoutRedispatch(t *testing.T) {
	// Arrange
	coordinator, _, store := newCoordinator()
	require.NoError(t, coordinator.Register(threeStepDefinition()))

	sagaID, err := coordinator.StartSaga(context.Background(), "OrderFulfillment", map[string]interface{}{"order_id": "o5"})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, coordinator.GetInstance(sagaID).Status)

	// Start a fresh coordinator sharing the same store, simulating a restart.
	dispatcher2 := newRecordingDispatcher()
	breakers := resilience.NewCircuitBreakerManager(resilience.DefaultConfig())
	fresh := NewCoordinator(store, dispatcher2, breakers)
	require.NoError(t, fresh.Register(threeStepDefinition()))

	// Act
	err = fresh.ResumeAll(context.Background())

	// Assert
	require.NoError(t, err)
	inst := fresh.GetInstance(sagaID)
	require.NotNil(t, inst)
	assert.Equal(t, StatusCompleted, inst.Status)
	assert.Empty(t, dispatcher2.calls, "a terminal saga must not redispatch any command on resume")
}

func TestCoordinator_HandleEvent_IgnoresNonSagaEvents(t *testing.T) {
	// Arrange
	coordinator, _, _ := newCoordinator()
	event := cqrs.NewBaseEventMessage("ProductCreated", "p1", "Product", 1, nil)

	// Act
	coordinator.HandleEvent(event)

	// Assert
	assert.Nil(t, coordinator.GetInstance("p1"))
}

func TestInstance_Apply_DropsDuplicateEvents(t *testing.T) {
	// Arrange
	inst := newInstance("s1", "OrderFulfillment", nil, time.Minute, time.Now())
	event := cqrs.NewBaseEventMessage(EventSagaStepCompleted, "s1", aggregateType, 2, map[string]interface{}{"step": "ReserveInventory"})
	event.SetEventID("evt-1")

	// Act
	inst.Apply(event)
	inst.Apply(event)

	// Assert
	assert.Equal(t, 1, inst.StepIndex, "redelivering the same event id must not advance state twice")
}
