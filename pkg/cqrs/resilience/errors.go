package resilience

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMaxRetriesExceeded   = errors.New("maximum retry attempts exceeded")
	ErrCircuitBreakerOpen   = errors.New("circuit breaker is open")

	ErrDLQDisabled        = errors.New("dead letter queue is disabled")
	ErrDLQOperationFailed = errors.New("DLQ operation failed")

	ErrRetryPolicyInvalid    = errors.New("invalid retry policy")
	ErrCircuitBreakerInvalid = errors.New("invalid circuit breaker configuration")
)

// ErrConfigInvalid creates a new configuration validation error
func ErrConfigInvalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, reason)
}

// ErrRetryExhausted creates a new retry exhausted error
func ErrRetryExhausted(eventID string, attempts int) error {
	return fmt.Errorf("%w: event '%s' failed after %d attempts", ErrMaxRetriesExceeded, eventID, attempts)
}

// ErrDLQOperation creates a new DLQ operation error
func ErrDLQOperation(operation string, cause error) error {
	return fmt.Errorf("%w: operation '%s' failed: %v", ErrDLQOperationFailed, operation, cause)
}

// ErrCircuitBreakerOperation creates a new circuit breaker operation error
func ErrCircuitBreakerOperation(serviceName string, operation string, cause error) error {
	return fmt.Errorf("circuit breaker '%s' operation '%s' failed: %w", serviceName, operation, cause)
}
