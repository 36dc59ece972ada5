package resilience

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
)

// DLQManager decides when a poison event gets moved to its dead-letter
// stream and tracks DLQ statistics for telemetry.
type DLQManager interface {
	GetDLQStreamName(originalStream string) string
	GetDLQConsumerGroupName(originalGroup string) string
	ShouldMoveToDLQ(event cqrs.EventMessage, procErr *ProcessingError, retryAttempts int) bool
	EnrichEventForDLQ(event cqrs.EventMessage, procErr *ProcessingError, retryAttempts int) cqrs.EventMessage

	RecordDLQEvent(originalStream, handlerName, reason string)
	RecordProcessedEvent(originalStream, handlerName string)
	GetDLQStatistics() *DLQStatistics
	GetDLQRate(streamName string) float64
	GetOverallDLQRate() float64
	GetTopErrorReasons(limit int) []*ErrorReasonStats
	IsDLQEnabled() bool
}

// ProcessingError carries the context of a failed event delivery attempt:
// which handler failed, what stream it came from, and how many times it's
// been retried so far.
type ProcessingError struct {
	Error      string
	Handler    string
	Timestamp  time.Time
	RetryCount int
	StreamName string
	MessageID  string
	StackTrace string
}

// DLQStatistics contains statistics about dead letter queue operations
type DLQStatistics struct {
	TotalDLQEvents     int64
	TotalProcessed     int64
	DLQEventsByStream  map[string]int64
	ProcessedByStream  map[string]int64
	DLQEventsByHandler map[string]int64
	DLQEventsByReason  map[string]int64
	LastUpdated        time.Time
}

// ErrorReasonStats contains statistics for a specific error reason
type ErrorReasonStats struct {
	Reason string
	Count  int64
	Rate   float64
}

type dlqManager struct {
	config *Config
	stats  *DLQStatistics
	mu     sync.RWMutex
}

// NewDLQManager creates a new DLQ manager
func NewDLQManager(config *Config) (DLQManager, error) {
	if config == nil {
		return nil, ErrConfigInvalid("config cannot be nil")
	}

	return &dlqManager{
		config: config,
		stats: &DLQStatistics{
			DLQEventsByStream:  make(map[string]int64),
			ProcessedByStream:  make(map[string]int64),
			DLQEventsByHandler: make(map[string]int64),
			DLQEventsByReason:  make(map[string]int64),
			LastUpdated:        time.Now(),
		},
	}, nil
}

func (m *dlqManager) GetDLQStreamName(originalStream string) string {
	return fmt.Sprintf("%s.%s", originalStream, m.config.DLQ.NameSuffix)
}

func (m *dlqManager) GetDLQConsumerGroupName(originalGroup string) string {
	return fmt.Sprintf("%s-%s", originalGroup, m.config.DLQ.NameSuffix)
}

func (m *dlqManager) ShouldMoveToDLQ(event cqrs.EventMessage, procErr *ProcessingError, retryAttempts int) bool {
	if !m.config.DLQ.Enabled {
		return false
	}
	return retryAttempts >= m.config.Retry.MaxAttempts
}

func (m *dlqManager) EnrichEventForDLQ(event cqrs.EventMessage, procErr *ProcessingError, retryAttempts int) cqrs.EventMessage {
	extra := map[string]interface{}{
		"dlq_reason":        procErr.Error,
		"dlq_handler":       procErr.Handler,
		"dlq_timestamp":     time.Now().Format(time.RFC3339Nano),
		"dlq_retry_count":   retryAttempts,
		"dlq_original_type": event.EventType(),
	}
	if procErr.StreamName != "" {
		extra["dlq_original_stream"] = procErr.StreamName
	}
	if procErr.StackTrace != "" {
		extra["dlq_stack_trace"] = procErr.StackTrace
	}

	return withMetadata(event, extra)
}

func (m *dlqManager) RecordDLQEvent(originalStream, handlerName, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.TotalDLQEvents++
	m.stats.DLQEventsByStream[originalStream]++
	m.stats.DLQEventsByHandler[handlerName]++
	m.stats.DLQEventsByReason[reason]++
	m.stats.LastUpdated = time.Now()
}

func (m *dlqManager) RecordProcessedEvent(originalStream, handlerName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.TotalProcessed++
	m.stats.ProcessedByStream[originalStream]++
	m.stats.LastUpdated = time.Now()
}

func (m *dlqManager) GetDLQStatistics() *DLQStatistics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return &DLQStatistics{
		TotalDLQEvents:     m.stats.TotalDLQEvents,
		TotalProcessed:     m.stats.TotalProcessed,
		DLQEventsByStream:  copyInt64Map(m.stats.DLQEventsByStream),
		ProcessedByStream:  copyInt64Map(m.stats.ProcessedByStream),
		DLQEventsByHandler: copyInt64Map(m.stats.DLQEventsByHandler),
		DLQEventsByReason:  copyInt64Map(m.stats.DLQEventsByReason),
		LastUpdated:        m.stats.LastUpdated,
	}
}

func (m *dlqManager) GetDLQRate(streamName string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	dlqCount := m.stats.DLQEventsByStream[streamName]
	processedCount := m.stats.ProcessedByStream[streamName]
	total := dlqCount + processedCount
	if total == 0 {
		return 0.0
	}
	return float64(dlqCount) / float64(total)
}

func (m *dlqManager) GetOverallDLQRate() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := m.stats.TotalDLQEvents + m.stats.TotalProcessed
	if total == 0 {
		return 0.0
	}
	return float64(m.stats.TotalDLQEvents) / float64(total)
}

func (m *dlqManager) GetTopErrorReasons(limit int) []*ErrorReasonStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var reasons []*ErrorReasonStats
	for reason, count := range m.stats.DLQEventsByReason {
		rate := float64(count) / float64(m.stats.TotalDLQEvents)
		reasons = append(reasons, &ErrorReasonStats{Reason: reason, Count: count, Rate: rate})
	}

	sort.Slice(reasons, func(i, j int) bool { return reasons[i].Count > reasons[j].Count })

	if limit > 0 && len(reasons) > limit {
		reasons = reasons[:limit]
	}
	return reasons
}

func (m *dlqManager) IsDLQEnabled() bool {
	return m.config.DLQ.Enabled
}

// DLQReprocessor replays or purges dead-lettered events. The operations
// below require a durable stream backend (event store Archive/ReadStream
// against the DLQ stream); this resilience package only defines the
// contract so an event-store-aware caller can implement it.
type DLQReprocessor interface {
	ReprocessDLQEvents(streamName string, limit int) (int, error)
	ReprocessEventByID(streamName, eventID string) error
	PurgeDLQStream(streamName string) (int, error)
	GetDLQStreamInfo(streamName string) (*DLQStreamInfo, error)
}

// DLQStreamInfo summarizes a dead-letter stream's backlog.
type DLQStreamInfo struct {
	StreamName   string
	PendingCount int64
	OldestEvent  time.Time
	NewestEvent  time.Time
}
