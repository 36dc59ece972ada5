package resilience

import (
	"time"
)

// Config bundles the tunables for the resilient client's retry policy,
// circuit breaker, and dead-letter handling.
type Config struct {
	Retry      RetryConfig      `yaml:"retry" json:"retry"`
	Monitoring MonitoringConfig `yaml:"monitoring" json:"monitoring"`
	DLQ        DLQConfig        `yaml:"dlq" json:"dlq"`
}

// RetryConfig defines retry policy configuration
type RetryConfig struct {
	MaxAttempts   int           `yaml:"max_attempts" json:"max_attempts"`
	InitialDelay  time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay      time.Duration `yaml:"max_delay" json:"max_delay"`
	BackoffType   string        `yaml:"backoff_type" json:"backoff_type"` // "fixed", "exponential", "linear"
	BackoffFactor float64       `yaml:"backoff_factor" json:"backoff_factor"`
}

// MonitoringConfig defines circuit breaker + observability configuration
type MonitoringConfig struct {
	CircuitBreakerEnabled bool          `yaml:"circuit_breaker_enabled" json:"circuit_breaker_enabled"`
	FailureThreshold      int           `yaml:"failure_threshold" json:"failure_threshold"`
	RecoveryTimeout       time.Duration `yaml:"recovery_timeout" json:"recovery_timeout"`
}

// DLQConfig defines dead-letter-queue behavior for a named endpoint/handler.
type DLQConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	NameSuffix  string `yaml:"name_suffix" json:"name_suffix"`
	MaxAttempts int    `yaml:"max_attempts" json:"max_attempts"`
}

// DefaultConfig returns the resilience defaults used when an endpoint
// doesn't override them: 3 retries with jittered exponential backoff, a
// 5-failure circuit breaker with a 1-minute cooldown, DLQ after exhaustion.
func DefaultConfig() *Config {
	return &Config{
		Retry: RetryConfig{
			MaxAttempts:   3,
			InitialDelay:  100 * time.Millisecond,
			MaxDelay:      5 * time.Second,
			BackoffType:   "exponential",
			BackoffFactor: 2.0,
		},
		Monitoring: MonitoringConfig{
			CircuitBreakerEnabled: true,
			FailureThreshold:      5,
			RecoveryTimeout:       1 * time.Minute,
		},
		DLQ: DLQConfig{
			Enabled:     true,
			NameSuffix:  "dlq",
			MaxAttempts: 1,
		},
	}
}

// Validate checks the configuration for obviously invalid values.
func (c *Config) Validate() error {
	if c.Retry.MaxAttempts < 1 {
		return ErrConfigInvalid("max retry attempts must be at least 1")
	}
	if c.Retry.InitialDelay <= 0 {
		return ErrConfigInvalid("initial delay must be greater than 0")
	}
	if c.Retry.MaxDelay < c.Retry.InitialDelay {
		return ErrConfigInvalid("max delay must be greater than or equal to initial delay")
	}
	if c.Monitoring.CircuitBreakerEnabled {
		if c.Monitoring.FailureThreshold <= 0 {
			return ErrConfigInvalid("failure threshold must be greater than 0")
		}
		if c.Monitoring.RecoveryTimeout <= 0 {
			return ErrConfigInvalid("recovery timeout must be greater than 0")
		}
	}
	return nil
}
