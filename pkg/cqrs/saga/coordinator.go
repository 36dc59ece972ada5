package saga

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs/eventstore"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs/resilience"
)

// Coordinator owns saga instances and their event log, dispatches
// forward and compensating commands through the command bus, and
// rebuilds every non-terminal saga from its stream alone after a
// restart.
type Coordinator struct {
	store       eventstore.EventStore
	commandBus  cqrs.CommandDispatcher
	breakers    resilience.CircuitBreakerManager
	definitions map[string]*Definition

	mu        sync.Mutex
	instances map[string]*Instance
}

// NewCoordinator wires a saga coordinator against the event store that owns
// every aggregate and saga stream, the command bus used to dispatch forward
// and compensating commands, and a circuit-breaker manager shared with the
// rest of the resilient client — sagas guard their inter-aggregate
// commands through the same primitive command handlers use.
func NewCoordinator(store eventstore.EventStore, commandBus cqrs.CommandDispatcher, breakers resilience.CircuitBreakerManager) *Coordinator {
	return &Coordinator{
		store:       store,
		commandBus:  commandBus,
		breakers:    breakers,
		definitions: make(map[string]*Definition),
		instances:   make(map[string]*Instance),
	}
}

// Register adds a saga definition so StartSaga can create instances of it.
func (c *Coordinator) Register(def *Definition) error {
	if def == nil || def.SagaType == "" {
		return cqrs.NewDomainError(cqrs.KindValidation, "invalid_saga_definition", "saga type cannot be empty", nil)
	}
	if len(def.Steps) == 0 {
		return cqrs.NewDomainError(cqrs.KindValidation, "invalid_saga_definition", "saga must declare at least one step", nil)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.definitions[def.SagaType] = def
	return nil
}

// StartSaga creates a new instance of sagaType and runs it to completion or
// to its terminal compensated/failed state, returning the saga id. The
// business outcome lives in the instance's persisted Status, not in the
// returned error — StartSaga only errors when the saga could not even be
// started (unknown type, event-store failure on the opening append).
func (c *Coordinator) StartSaga(ctx context.Context, sagaType string, initialData map[string]interface{}) (string, error) {
	c.mu.Lock()
	def, ok := c.definitions[sagaType]
	c.mu.Unlock()
	if !ok {
		return "", cqrs.NewDomainError(cqrs.KindValidation, "unknown_saga_type", fmt.Sprintf("no saga registered for type %q", sagaType), nil)
	}

	sagaID := uuid.New().String()
	now := time.Now()
	inst := newInstance(sagaID, sagaType, initialData, def.Timeout, now)

	if err := c.appendAndFold(ctx, inst, EventSagaStarted, nil); err != nil {
		return "", err
	}

	c.mu.Lock()
	c.instances[sagaID] = inst
	c.mu.Unlock()

	c.run(ctx, def, inst)
	return sagaID, nil
}

// GetInstance returns the coordinator's in-memory view of a saga, or nil if
// unknown to this process (callers after a restart should use ResumeAll).
func (c *Coordinator) GetInstance(sagaID string) *Instance {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.instances[sagaID]
}

// HandleEvent folds a saga-owned event into its in-memory instance. It is
// the entry point the durable pull subscription feeds: during normal
// operation the coordinator's own appends already update its
// in-memory instance, so HandleEvent's real job is catch-up — applying
// events read back from the stream during ResumeAll, and absorbing
// redelivered saga events without double-counting thanks to Instance.Apply's
// processed-id dedup.
func (c *Coordinator) HandleEvent(event cqrs.EventMessage) {
	if event.AggregateType() != aggregateType {
		return
	}
	sagaID := event.AggregateID()

	c.mu.Lock()
	inst, ok := c.instances[sagaID]
	if !ok {
		inst = &Instance{SagaID: sagaID, StepResults: make(map[string]interface{}), ProcessedEventIDs: make(map[string]struct{})}
		c.instances[sagaID] = inst
	}
	c.mu.Unlock()

	inst.Apply(event)
}

// ResumeAll rebuilds every saga from its event log, makes it available
// through GetInstance, and re-enters the state of each non-terminal one. It
// discovers saga instances via
// ReadByType(SagaStarted, ...) since the store
// has no separate stream index, folds each one's full stream to find its
// current status, and for every saga not yet in a terminal state redispatches
// from its current step (receivers must be idempotent, so redispatching a
// step whose command already landed is safe).
func (c *Coordinator) ResumeAll(ctx context.Context) error {
	started, err := c.store.ReadByType(ctx, EventSagaStarted, 0, 0)
	if err != nil {
		return cqrs.NewDomainError(cqrs.KindTransient, "saga_resume_scan_failed", "failed to scan saga streams", err)
	}

	for _, startEvent := range started {
		sagaID := startEvent.AggregateID()
		inst, sagaType, resumeErr := c.rebuild(ctx, sagaID)
		if resumeErr != nil {
			return resumeErr
		}

		c.mu.Lock()
		c.instances[sagaID] = inst
		c.mu.Unlock()

		if inst.Status.IsTerminal() {
			continue
		}

		def, ok := c.definitions[sagaType]
		if !ok {
			continue
		}

		if inst.Status == StatusCompensating {
			c.compensate(ctx, def, inst, inst.StepIndex)
		} else {
			c.run(ctx, def, inst)
		}
	}
	return nil
}

// RunTimeoutSweeper blocks, checking every interval for running sagas past
// their deadline and driving them into compensation, until ctx is
// cancelled. Run exactly one such ticker per coordinator; callers run
// this in its own goroutine alongside ResumeAll.
func (c *Coordinator) RunTimeoutSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweepExpired(ctx)
		}
	}
}

func (c *Coordinator) sweepExpired(ctx context.Context) {
	now := time.Now()

	c.mu.Lock()
	var expired []*Instance
	for _, inst := range c.instances {
		if inst.Status.IsTerminal() || inst.Status == StatusCompensating {
			continue
		}
		if inst.Deadline.IsZero() || now.Before(inst.Deadline) {
			continue
		}
		expired = append(expired, inst)
	}
	c.mu.Unlock()

	for _, inst := range expired {
		c.mu.Lock()
		def, ok := c.definitions[inst.SagaType]
		c.mu.Unlock()
		if !ok {
			continue
		}
		c.compensate(ctx, def, inst, inst.StepIndex)
	}
}

// rebuild replays a saga's whole stream through Instance.Apply, recovering
// its saga type from the SagaStarted event's payload.
func (c *Coordinator) rebuild(ctx context.Context, sagaID string) (*Instance, string, error) {
	events, err := c.store.ReadStream(ctx, StreamID(sagaID), 0, 0)
	if err != nil {
		return nil, "", cqrs.NewDomainError(cqrs.KindTransient, "saga_replay_failed", "failed to replay saga stream", err)
	}

	inst := &Instance{SagaID: sagaID, StepResults: make(map[string]interface{}), ProcessedEventIDs: make(map[string]struct{})}
	sagaType := ""
	for _, se := range events {
		if se.EventType() == EventSagaStarted {
			if payload, ok := se.EventData().(map[string]interface{}); ok {
				if t, ok := payload["saga_type"].(string); ok {
					sagaType = t
				}
				if d, ok := payload["data"].(map[string]interface{}); ok {
					inst.Data = d
				}
			}
			inst.StartedAt = se.Timestamp()
		}
		inst.Apply(se.EventMessage)
	}
	inst.SagaType = sagaType
	return inst, sagaType, nil
}

// run executes forward steps starting at inst.StepIndex, compensating on the
// first failure encountered.
func (c *Coordinator) run(ctx context.Context, def *Definition, inst *Instance) {
	for inst.StepIndex < len(def.Steps) {
		if !inst.Deadline.IsZero() && time.Now().After(inst.Deadline) {
			c.compensate(ctx, def, inst, inst.StepIndex)
			return
		}

		step := def.Steps[inst.StepIndex]
		result, err := c.executeStep(ctx, step, inst)
		if err != nil {
			_ = c.appendAndFold(ctx, inst, EventSagaFailed, map[string]interface{}{
				"step":  step.Name,
				"error": err.Error(),
			})
			c.compensate(ctx, def, inst, inst.StepIndex)
			return
		}

		_ = c.appendAndFold(ctx, inst, EventSagaStepCompleted, map[string]interface{}{
			"step":   step.Name,
			"result": result,
		})
	}

	_ = c.appendAndFold(ctx, inst, EventSagaCompleted, nil)
}

// executeStep builds and dispatches one step's forward command through the
// command bus, wrapped by the same per-endpoint circuit breaker the
// resilient client uses.
func (c *Coordinator) executeStep(ctx context.Context, step Step, inst *Instance) (interface{}, error) {
	cmd, err := step.Forward(ctx, inst.Data)
	if err != nil {
		return nil, cqrs.NewDomainError(cqrs.KindValidation, "saga_step_build_failed", fmt.Sprintf("failed to build command for step %s", step.Name), err)
	}
	if cmd == nil {
		return nil, nil
	}

	var result *cqrs.CommandResult
	callErr := resilience.ResilientCall(ctx, c.breakers, "saga."+inst.SagaType+"."+step.Name, func(ctx context.Context) error {
		var dispatchErr error
		result, dispatchErr = c.commandBus.Dispatch(ctx, cmd)
		if dispatchErr != nil {
			return dispatchErr
		}
		if result != nil && !result.Success {
			return result.Error
		}
		return nil
	})
	if callErr != nil {
		return nil, callErr
	}
	if result == nil {
		return nil, nil
	}
	return result.Data, nil
}

// compensate walks completed steps in reverse order from failedStepIndex,
// dispatching each step's compensation command at least once. A step
// without a compensation builder is skipped. Compensation failure is
// terminal (StatusFailed); full completion is StatusCompensated.
func (c *Coordinator) compensate(ctx context.Context, def *Definition, inst *Instance, failedStepIndex int) {
	_ = c.appendAndFold(ctx, inst, EventSagaCompensationStarted, nil)

	for i := failedStepIndex - 1; i >= 0; i-- {
		step := def.Steps[i]
		if !step.HasCompensation() {
			continue
		}

		cmd, err := step.Compensation(ctx, inst.Data)
		if err != nil {
			_ = c.appendAndFold(ctx, inst, EventSagaFailed, map[string]interface{}{
				"step":  step.Name,
				"error": fmt.Sprintf("failed to build compensation command: %v", err),
			})
			return
		}
		if cmd == nil {
			continue
		}

		callErr := resilience.ResilientCall(ctx, c.breakers, "saga."+inst.SagaType+"."+step.Name+".compensate", func(ctx context.Context) error {
			result, dispatchErr := c.commandBus.Dispatch(ctx, cmd)
			if dispatchErr != nil {
				return dispatchErr
			}
			if result != nil && !result.Success && !isAlreadyCompensated(result.Error) {
				return result.Error
			}
			return nil
		})
		if callErr != nil {
			_ = c.appendAndFold(ctx, inst, EventSagaFailed, map[string]interface{}{
				"step":  step.Name,
				"error": fmt.Sprintf("compensation failed: %v", callErr),
			})
			return
		}
	}

	_ = c.appendAndFold(ctx, inst, EventSagaCompensated, nil)
}

// isAlreadyCompensated treats a DomainError whose Code marks the target
// aggregate as already compensated as compensation success, per the
// at-least-once/idempotent-receiver contract sagas run under.
func isAlreadyCompensated(err error) bool {
	if err == nil {
		return false
	}
	domainErr, ok := err.(*cqrs.DomainError)
	if !ok {
		return false
	}
	return domainErr.Code == "already_compensated"
}

// appendAndFold appends one saga-transition event to the instance's stream
// and immediately folds it into the in-memory instance, keeping the
// in-memory view and the durable log in lockstep on every transition.
func (c *Coordinator) appendAndFold(ctx context.Context, inst *Instance, eventType string, extra map[string]interface{}) error {
	payload := map[string]interface{}{}
	for k, v := range extra {
		payload[k] = v
	}
	if eventType == EventSagaStarted {
		payload["saga_type"] = inst.SagaType
		payload["data"] = inst.Data
	}

	version, err := c.store.CurrentVersion(ctx, StreamID(inst.SagaID))
	if err != nil {
		return cqrs.NewDomainError(cqrs.KindTransient, "saga_version_read_failed", "failed to read saga stream version", err)
	}

	event := cqrs.NewBaseEventMessage(eventType, inst.SagaID, aggregateType, version+1, payload)
	if _, err := c.store.AppendToStream(ctx, StreamID(inst.SagaID), []cqrs.EventMessage{event}, version); err != nil {
		return cqrs.NewDomainError(cqrs.KindTransient, "saga_append_failed", "failed to append saga event", err)
	}

	inst.Apply(event)
	return nil
}
