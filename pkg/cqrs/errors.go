package cqrs

import (
	"crypto/sha256"
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind classifies an error into one of the five buckets the rest of the
// platform reasons about for retry, surfacing, and logging decisions.
type Kind int

const (
	// KindValidation rejects a command before any state is touched.
	KindValidation Kind = iota
	// KindDomainViolation is an aggregate-level business rule failure.
	KindDomainViolation
	// KindVersionConflict is an optimistic-concurrency loss on append.
	KindVersionConflict
	// KindTransient covers timeouts, circuit-open, connection resets.
	KindTransient
	// KindFatal covers corruption and schema mismatches a human must fix.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDomainViolation:
		return "domain_violation"
	case KindVersionConflict:
		return "version_conflict"
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// VersionConflictError reports the expected vs. actual stream version seen
// by AppendToStream. The command engine's retry loop (internal/command)
// inspects it by type (errors.As) to decide whether to retry.
type VersionConflictError struct {
	StreamID string
	Expected int
	Actual   int
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict on stream %s: expected %d, actual %d", e.StreamID, e.Expected, e.Actual)
}

// DomainError carries the Kind taxonomy alongside a stable machine-readable
// code (e.g. "max_depth_exceeded", "invalid_status_transition") so callers
// can branch on Code without string-matching Message.
type DomainError struct {
	Kind    Kind
	Code    string
	Message string
	cause   error
}

func (e *DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Code, e.cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.cause
}

// NewDomainError builds a DomainError, wrapping cause (if any) with
// pkg/errors so the wrapped cause returned by Unwrap carries a stack trace
// from this call; %+v on that cause prints it. %+v on the DomainError
// itself prints only Error().
func NewDomainError(kind Kind, code, message string, cause error) *DomainError {
	var wrapped error
	if cause != nil {
		wrapped = pkgerrors.Wrap(cause, message)
	}
	return &DomainError{Kind: kind, Code: code, Message: message, cause: wrapped}
}

// Sentinel errors surfaced verbatim to callers that only need to branch on
// identity, not on structured fields.
var (
	ErrServiceUnavailable = errors.New("service busy, try again")
	ErrCircuitOpen        = errors.New("circuit breaker open")
)

// Common CQRS errors
var (
	// Aggregate errors
	ErrAggregateNotFound    = errors.New("aggregate not found")
	ErrInvalidAggregateID   = errors.New("invalid aggregate ID")
	ErrInvalidAggregateType = errors.New("invalid aggregate type")
	ErrInvalidVersion       = errors.New("invalid version")
	ErrConcurrencyConflict  = errors.New("concurrency conflict")

	// Command errors
	ErrInvalidCommand          = errors.New("invalid command")
	ErrCommandHandlerNotFound  = errors.New("command handler not found")
	ErrCommandValidationFailed = errors.New("command validation failed")

	// Query errors
	ErrInvalidQuery          = errors.New("invalid query")
	ErrQueryHandlerNotFound  = errors.New("query handler not found")
	ErrQueryValidationFailed = errors.New("query validation failed")

	// Event errors
	ErrInvalidEvent          = errors.New("invalid event")
	ErrEventHandlerNotFound  = errors.New("event handler not found")
	ErrEventValidationFailed = errors.New("event validation failed")

	// Snapshot errors
	ErrSnapshotNotFound         = errors.New("snapshot not found")
	ErrInvalidSnapshotData      = errors.New("invalid snapshot data")
	ErrSnapshotValidationFailed = errors.New("snapshot validation failed")

	// Repository errors
	ErrRepositoryNotFound = errors.New("repository not found")
	ErrSaveAggregate      = errors.New("failed to save aggregate")
	ErrLoadAggregate      = errors.New("failed to load aggregate")

	// Event Store errors
	ErrEventStoreNotFound = errors.New("event store not found")
	ErrSaveEvents         = errors.New("failed to save events")
	ErrLoadEvents         = errors.New("failed to load events")

	// Event Bus errors
	ErrEventBusNotFound = errors.New("event bus not found")
	ErrPublishEvent     = errors.New("failed to publish event")
	ErrSubscribeEvent   = errors.New("failed to subscribe to event")

	// Serialization errors
	ErrSerializationFailed   = errors.New("serialization failed")
	ErrDeserializationFailed = errors.New("deserialization failed")
	ErrUnsupportedFormat     = errors.New("unsupported serialization format")
)

// CQRSError represents a CQRS-specific error with additional context
type CQRSError struct {
	Code    string
	Message string
	Cause   error
	Context map[string]interface{}
}

func (e *CQRSError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *CQRSError) Unwrap() error {
	return e.Cause
}

// NewCQRSError creates a new CQRSError
func NewCQRSError(code, message string, cause error) *CQRSError {
	return &CQRSError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds context to the error
func (e *CQRSError) WithContext(key string, value interface{}) *CQRSError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// ErrorCode represents CQRS error codes
type ErrorCode int

const (
	ErrCodeAggregateNotFound ErrorCode = iota
	ErrCodeInvalidAggregate
	ErrCodeConcurrencyConflict
	ErrCodeCommandValidation
	ErrCodeQueryValidation
	ErrCodeEventValidation
	ErrCodeSerializationError
	ErrCodeRepositoryError
	ErrCodeEventStoreError
	ErrCodeEventBusError
	ErrCodeSnapshotValidationFailed
	ErrCodeStateStoreError
	ErrCodeSnapshotStoreError
	ErrCodeReadStoreError
	ErrCodeSnapshotNotFound
	ErrCodeReadModelNotFound
	ErrCodeValidationError
	ErrCodeNotFoundError
)

func (ec ErrorCode) String() string {
	switch ec {
	case ErrCodeAggregateNotFound:
		return "AGGREGATE_NOT_FOUND"
	case ErrCodeInvalidAggregate:
		return "INVALID_AGGREGATE"
	case ErrCodeConcurrencyConflict:
		return "CONCURRENCY_CONFLICT"
	case ErrCodeCommandValidation:
		return "COMMAND_VALIDATION"
	case ErrCodeQueryValidation:
		return "QUERY_VALIDATION"
	case ErrCodeEventValidation:
		return "EVENT_VALIDATION"
	case ErrCodeSerializationError:
		return "SERIALIZATION_ERROR"
	case ErrCodeRepositoryError:
		return "REPOSITORY_ERROR"
	case ErrCodeEventStoreError:
		return "EVENT_STORE_ERROR"
	case ErrCodeEventBusError:
		return "EVENT_BUS_ERROR"
	case ErrCodeSnapshotValidationFailed:
		return "SNAPSHOT_VALIDATION_FAILED"
	case ErrCodeStateStoreError:
		return "STATE_STORE_ERROR"
	case ErrCodeSnapshotStoreError:
		return "SNAPSHOT_STORE_ERROR"
	case ErrCodeReadStoreError:
		return "READ_STORE_ERROR"
	case ErrCodeSnapshotNotFound:
		return "SNAPSHOT_NOT_FOUND"
	case ErrCodeReadModelNotFound:
		return "READ_MODEL_NOT_FOUND"
	case ErrCodeValidationError:
		return "VALIDATION_ERROR"
	case ErrCodeNotFoundError:
		return "NOT_FOUND_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}

// IsNotFoundError checks if an error is a "not found" type error
func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	// Check for CQRS error codes
	if cqrsErr, ok := err.(*CQRSError); ok {
		switch cqrsErr.Code {
		case ErrCodeAggregateNotFound.String(),
			ErrCodeSnapshotNotFound.String(),
			ErrCodeReadModelNotFound.String():
			return true
		}
	}

	// Check for standard errors
	if errors.Is(err, ErrAggregateNotFound) {
		return true
	}

	return false
}

// Helper function for checksum calculation
func calculateDataChecksum(aggregateID, aggregateType string, version int, data interface{}) string {
	input := fmt.Sprintf("%s:%s:%d:%v", aggregateID, aggregateType, version, data)
	hash := sha256.Sum256([]byte(input))
	return fmt.Sprintf("%x", hash)
}
