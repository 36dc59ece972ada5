package resilience

import (
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs"
)

// RetryPolicyManager decides whether a failed command or event delivery
// should retry, with what delay, and tracks outcome statistics for
// telemetry.
type RetryPolicyManager interface {
	ShouldRetry(event cqrs.EventMessage, procErr *ProcessingError) bool
	CalculateDelay(policy *RetryPolicy, attempt int) time.Duration
	EnrichEventForRetry(event cqrs.EventMessage, procErr *ProcessingError) cqrs.EventMessage

	GetDefaultRetryPolicy() *RetryPolicy
	SetHandlerRetryPolicy(handlerName string, policy *RetryPolicy) error
	GetHandlerRetryPolicy(handlerName string) *RetryPolicy
	SetEventTypeRetryPolicy(eventType string, policy *RetryPolicy) error
	GetEventTypeRetryPolicy(eventType string) *RetryPolicy

	RecordRetryAttempt(streamName, handlerName string, attempt int, reason string)
	RecordRetrySuccess(streamName, handlerName string, finalAttempt int)
	RecordRetryExhausted(streamName, handlerName string, finalAttempt int, reason string)
	GetRetryStatistics() *RetryStatistics
	GetOverallRetrySuccessRate() float64
	GetTopRetryReasons(limit int) []*RetryReasonStats
}

// RetryPolicy defines retry behavior: bounded attempts, backoff shape, and
// the factor/cap that shape exponential or linear delay growth.
type RetryPolicy struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffType   cqrs.BackoffType
	BackoffFactor float64
}

// RetryStatistics contains statistics about retry operations
type RetryStatistics struct {
	TotalRetryAttempts int64
	SuccessfulRetries  int64
	ExhaustedRetries   int64
	RetriesByStream    map[string]int64
	RetriesByHandler   map[string]int64
	RetriesByReason    map[string]int64
	LastUpdated        time.Time
}

// RetryReasonStats contains statistics for a specific retry reason
type RetryReasonStats struct {
	Reason string
	Count  int64
	Rate   float64
}

type retryPolicyManager struct {
	config            *Config
	defaultPolicy     *RetryPolicy
	handlerPolicies   map[string]*RetryPolicy
	eventTypePolicies map[string]*RetryPolicy
	stats             *RetryStatistics
	mu                sync.RWMutex
}

// NewRetryPolicyManager creates a new retry policy manager
func NewRetryPolicyManager(config *Config) (RetryPolicyManager, error) {
	if config == nil {
		return nil, ErrConfigInvalid("config cannot be nil")
	}

	if err := validateRetryConfig(&config.Retry); err != nil {
		return nil, err
	}

	defaultPolicy := &RetryPolicy{
		MaxAttempts:   config.Retry.MaxAttempts,
		InitialDelay:  config.Retry.InitialDelay,
		MaxDelay:      config.Retry.MaxDelay,
		BackoffType:   parseBackoffType(config.Retry.BackoffType),
		BackoffFactor: config.Retry.BackoffFactor,
	}

	return &retryPolicyManager{
		config:            config,
		defaultPolicy:     defaultPolicy,
		handlerPolicies:   make(map[string]*RetryPolicy),
		eventTypePolicies: make(map[string]*RetryPolicy),
		stats: &RetryStatistics{
			RetriesByStream:  make(map[string]int64),
			RetriesByHandler: make(map[string]int64),
			RetriesByReason:  make(map[string]int64),
			LastUpdated:      time.Now(),
		},
	}, nil
}

func (m *retryPolicyManager) ShouldRetry(event cqrs.EventMessage, procErr *ProcessingError) bool {
	if !m.isRetryableError(procErr) {
		return false
	}

	retryCount := m.getRetryCount(event)
	policy := m.getApplicablePolicy(event, procErr.Handler)

	return retryCount < policy.MaxAttempts
}

// CalculateDelay applies a jittered backoff: base delay per the
// policy's shape, plus up to 20% random jitter so concurrent retriers
// don't thunder in lockstep.
func (m *retryPolicyManager) CalculateDelay(policy *RetryPolicy, attempt int) time.Duration {
	if attempt <= 0 {
		return policy.InitialDelay
	}

	var delay time.Duration

	switch policy.BackoffType {
	case cqrs.FixedBackoff:
		delay = policy.InitialDelay
	case cqrs.ExponentialBackoff:
		multiplier := math.Pow(policy.BackoffFactor, float64(attempt-1))
		delay = time.Duration(float64(policy.InitialDelay) * multiplier)
	case cqrs.LinearBackoff:
		additive := time.Duration(float64(policy.InitialDelay) * policy.BackoffFactor * float64(attempt-1))
		delay = policy.InitialDelay + additive
	default:
		delay = policy.InitialDelay
	}

	if delay > policy.MaxDelay {
		delay = policy.MaxDelay
	}

	if delay > 0 {
		delay += time.Duration(rand.Int63n(int64(delay)/5 + 1))
	}

	return delay
}

func (m *retryPolicyManager) EnrichEventForRetry(event cqrs.EventMessage, procErr *ProcessingError) cqrs.EventMessage {
	currentRetryCount := m.getRetryCount(event)
	newRetryCount := currentRetryCount + 1
	policy := m.getApplicablePolicy(event, procErr.Handler)

	extra := map[string]interface{}{
		"retry_count":          newRetryCount,
		"max_retries":          policy.MaxAttempts,
		"last_error":           procErr.Error,
		"last_retry_timestamp": time.Now().Format(time.RFC3339Nano),
		"retry_handler":        procErr.Handler,
	}
	if currentRetryCount == 0 {
		extra["first_failure"] = procErr.Timestamp.Format(time.RFC3339Nano)
	}

	return withMetadata(event, extra)
}

func (m *retryPolicyManager) GetDefaultRetryPolicy() *RetryPolicy {
	cp := *m.defaultPolicy
	return &cp
}

func (m *retryPolicyManager) SetHandlerRetryPolicy(handlerName string, policy *RetryPolicy) error {
	if handlerName == "" {
		return ErrConfigInvalid("handler name cannot be empty")
	}
	if policy == nil {
		return ErrConfigInvalid("policy cannot be nil")
	}
	if err := validateRetryPolicy(policy); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *policy
	m.handlerPolicies[handlerName] = &cp
	return nil
}

func (m *retryPolicyManager) GetHandlerRetryPolicy(handlerName string) *RetryPolicy {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if policy, exists := m.handlerPolicies[handlerName]; exists {
		cp := *policy
		return &cp
	}
	return m.GetDefaultRetryPolicy()
}

func (m *retryPolicyManager) SetEventTypeRetryPolicy(eventType string, policy *RetryPolicy) error {
	if eventType == "" {
		return ErrConfigInvalid("event type cannot be empty")
	}
	if policy == nil {
		return ErrConfigInvalid("policy cannot be nil")
	}
	if err := validateRetryPolicy(policy); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *policy
	m.eventTypePolicies[eventType] = &cp
	return nil
}

func (m *retryPolicyManager) GetEventTypeRetryPolicy(eventType string) *RetryPolicy {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if policy, exists := m.eventTypePolicies[eventType]; exists {
		cp := *policy
		return &cp
	}
	return m.GetDefaultRetryPolicy()
}

func (m *retryPolicyManager) RecordRetryAttempt(streamName, handlerName string, attempt int, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.TotalRetryAttempts++
	m.stats.RetriesByStream[streamName]++
	m.stats.RetriesByHandler[handlerName]++
	m.stats.RetriesByReason[reason]++
	m.stats.LastUpdated = time.Now()
}

func (m *retryPolicyManager) RecordRetrySuccess(streamName, handlerName string, finalAttempt int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.SuccessfulRetries++
	m.stats.LastUpdated = time.Now()
}

func (m *retryPolicyManager) RecordRetryExhausted(streamName, handlerName string, finalAttempt int, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.ExhaustedRetries++
	m.stats.LastUpdated = time.Now()
}

func (m *retryPolicyManager) GetRetryStatistics() *RetryStatistics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return &RetryStatistics{
		TotalRetryAttempts: m.stats.TotalRetryAttempts,
		SuccessfulRetries:  m.stats.SuccessfulRetries,
		ExhaustedRetries:   m.stats.ExhaustedRetries,
		RetriesByStream:    copyInt64Map(m.stats.RetriesByStream),
		RetriesByHandler:   copyInt64Map(m.stats.RetriesByHandler),
		RetriesByReason:    copyInt64Map(m.stats.RetriesByReason),
		LastUpdated:        m.stats.LastUpdated,
	}
}

func (m *retryPolicyManager) GetOverallRetrySuccessRate() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	totalResolved := m.stats.SuccessfulRetries + m.stats.ExhaustedRetries
	if totalResolved == 0 {
		return 0.0
	}
	return float64(m.stats.SuccessfulRetries) / float64(totalResolved)
}

func (m *retryPolicyManager) GetTopRetryReasons(limit int) []*RetryReasonStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var reasons []*RetryReasonStats
	for reason, count := range m.stats.RetriesByReason {
		rate := float64(count) / float64(m.stats.TotalRetryAttempts)
		reasons = append(reasons, &RetryReasonStats{Reason: reason, Count: count, Rate: rate})
	}

	sort.Slice(reasons, func(i, j int) bool { return reasons[i].Count > reasons[j].Count })

	if limit > 0 && len(reasons) > limit {
		reasons = reasons[:limit]
	}
	return reasons
}

func (m *retryPolicyManager) isRetryableError(procErr *ProcessingError) bool {
	errorMsg := strings.ToLower(procErr.Error)

	nonRetryable := []string{"validation", "invalid", "malformed", "unauthorized", "forbidden", "not found", "conflict", "duplicate"}
	for _, pattern := range nonRetryable {
		if strings.Contains(errorMsg, pattern) {
			return false
		}
	}

	retryable := []string{"timeout", "connection", "network", "temporary", "unavailable", "overloaded"}
	for _, pattern := range retryable {
		if strings.Contains(errorMsg, pattern) {
			return true
		}
	}

	return true
}

func (m *retryPolicyManager) getRetryCount(event cqrs.EventMessage) int {
	metadata := event.Metadata()
	if metadata == nil {
		return 0
	}

	raw, exists := metadata["retry_count"]
	if !exists {
		return 0
	}

	count, err := convertToInt(raw)
	if err != nil {
		return 0
	}
	return count
}

func (m *retryPolicyManager) getApplicablePolicy(event cqrs.EventMessage, handlerName string) *RetryPolicy {
	defaultPolicy := m.GetDefaultRetryPolicy()

	if policy := m.GetHandlerRetryPolicy(handlerName); policy.MaxAttempts != defaultPolicy.MaxAttempts ||
		policy.InitialDelay != defaultPolicy.InitialDelay || policy.BackoffType != defaultPolicy.BackoffType {
		return policy
	}

	if policy := m.GetEventTypeRetryPolicy(event.EventType()); policy.MaxAttempts != defaultPolicy.MaxAttempts ||
		policy.InitialDelay != defaultPolicy.InitialDelay || policy.BackoffType != defaultPolicy.BackoffType {
		return policy
	}

	return defaultPolicy
}

func validateRetryConfig(config *RetryConfig) error {
	if config.MaxAttempts <= 0 {
		return ErrConfigInvalid("max attempts must be greater than 0")
	}
	if config.InitialDelay <= 0 {
		return ErrConfigInvalid("initial delay must be greater than 0")
	}
	if config.MaxDelay < config.InitialDelay {
		return ErrConfigInvalid("max delay must be greater than or equal to initial delay")
	}
	if config.BackoffFactor <= 0 {
		return ErrConfigInvalid("backoff factor must be greater than 0")
	}
	return nil
}

func validateRetryPolicy(policy *RetryPolicy) error {
	if policy.MaxAttempts <= 0 {
		return ErrRetryPolicyInvalid
	}
	if policy.InitialDelay <= 0 {
		return ErrRetryPolicyInvalid
	}
	if policy.MaxDelay < policy.InitialDelay {
		return ErrRetryPolicyInvalid
	}
	if policy.BackoffFactor <= 0 {
		return ErrRetryPolicyInvalid
	}
	return nil
}

func parseBackoffType(backoffType string) cqrs.BackoffType {
	switch strings.ToLower(backoffType) {
	case "fixed":
		return cqrs.FixedBackoff
	case "exponential":
		return cqrs.ExponentialBackoff
	case "linear":
		return cqrs.LinearBackoff
	default:
		return cqrs.FixedBackoff
	}
}
