// Package saga implements a long-running workflow coordinator: ordered
// forward steps with optional compensating actions, a persisted state
// machine driven entirely by its own event log, per-saga timeouts, and
// crash recovery by replay.
package saga

import (
	"context"
	"time"

	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
)

// Status is a position in the saga state machine.
type Status string

const (
	StatusStarted      Status = "started"
	StatusRunning      Status = "running"
	StatusCompensating Status = "compensating"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusCompensated  Status = "compensated"
)

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCompensated
}

// Event types the coordinator appends to a saga's own stream on every
// transition. These are the only event types a saga stream ever contains.
const (
	EventSagaStarted              = "SagaStarted"
	EventSagaStepCompleted        = "SagaStepCompleted"
	EventSagaFailed               = "SagaFailed"
	EventSagaCompensationStarted  = "SagaCompensationStarted"
	EventSagaCompensated          = "SagaCompensated"
	EventSagaCompleted            = "SagaCompleted"
)

// aggregateType is the stream/aggregate type tag saga events carry so
// HandleEvent can tell them apart from aggregate events. ResumeAll finds
// saga instances by the SagaStarted event type, not by this tag.
const aggregateType = "Saga"

// StreamID returns the event-store stream name for a saga instance.
func StreamID(sagaID string) string {
	return "saga-" + sagaID
}

// CommandBuilder produces the command for a step given the saga's working
// data and the results recorded by steps that already ran. Returning a nil
// command with a nil error means the step has nothing to do and is treated
// as an immediate success.
type CommandBuilder func(ctx context.Context, data map[string]interface{}) (cqrs.Command, error)

// Step is one entry in a saga definition: a named forward action and an
// optional compensating action run in reverse order if a later step fails.
type Step struct {
	Name         string
	Forward      CommandBuilder
	Compensation CommandBuilder // nil means this step has no compensation
}

// HasCompensation reports whether this step defines a compensating action.
func (s Step) HasCompensation() bool {
	return s.Compensation != nil
}

// Definition describes one saga type: its ordered steps and the deadline a
// running instance must complete within before the coordinator force-enters
// compensation.
type Definition struct {
	SagaType string
	Steps    []Step
	Timeout  time.Duration
}

// Instance is the durable, event-sourced record of one saga run. It is
// never mutated outside Apply, so replaying a saga's stream from
// scratch always reproduces this value.
type Instance struct {
	SagaID            string
	SagaType          string
	Status            Status
	StepIndex         int
	Data              map[string]interface{}
	StepResults       map[string]interface{}
	ProcessedEventIDs map[string]struct{}
	LastError         string
	StartedAt         time.Time
	UpdatedAt         time.Time
	Deadline          time.Time
}

func newInstance(sagaID, sagaType string, data map[string]interface{}, timeout time.Duration, now time.Time) *Instance {
	deadline := time.Time{}
	if timeout > 0 {
		deadline = now.Add(timeout)
	}
	return &Instance{
		SagaID:            sagaID,
		SagaType:          sagaType,
		Status:            StatusStarted,
		Data:              data,
		StepResults:       make(map[string]interface{}),
		ProcessedEventIDs: make(map[string]struct{}),
		StartedAt:         now,
		UpdatedAt:         now,
		Deadline:          deadline,
	}
}

// seen reports whether eventID has already been folded into this instance,
// and records it if not. The caller is expected to skip applying an event
// a second time.
func (i *Instance) seen(eventID string) bool {
	if _, ok := i.ProcessedEventIDs[eventID]; ok {
		return true
	}
	i.ProcessedEventIDs[eventID] = struct{}{}
	return false
}

// Apply folds one saga-stream event into the instance, the same pattern an
// aggregate root uses to rebuild state from its event log. A fresh
// *Instance plus a replay of its whole stream through Apply always yields
// the same state a live run would have produced.
func (i *Instance) Apply(event cqrs.EventMessage) {
	if i.seen(event.EventID()) {
		return
	}
	i.UpdatedAt = event.Timestamp()

	data, _ := event.EventData().(map[string]interface{})

	switch event.EventType() {
	case EventSagaStarted:
		i.Status = StatusRunning
	case EventSagaStepCompleted:
		if name, ok := data["step"].(string); ok {
			i.StepResults[name] = data["result"]
		}
		i.StepIndex++
	case EventSagaFailed:
		i.Status = StatusFailed
		if reason, ok := data["error"].(string); ok {
			i.LastError = reason
		}
	case EventSagaCompensationStarted:
		i.Status = StatusCompensating
	case EventSagaCompensated:
		i.Status = StatusCompensated
	case EventSagaCompleted:
		i.Status = StatusCompleted
	}
}
