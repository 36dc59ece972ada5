package platform

import (
	"github.com/fenrir-shard/ledgerfolio/internal/config"
	"github.com/fenrir-shard/ledgerfolio/pkg/cqrs/resilience"
)

// NewResilienceConfig builds the resilience.Config both services' circuit
// breaker manager runs on: cfg's threshold and cooldown for the named
// breaker, every other tunable left at resilience.DefaultConfig. cfg.Window
// is not applied; resilience.Config has no rolling-window setting.
func NewResilienceConfig(cfg config.CircuitBreakerConfig) *resilience.Config {
	rc := resilience.DefaultConfig()
	rc.Monitoring.FailureThreshold = cfg.Threshold
	rc.Monitoring.RecoveryTimeout = cfg.Cooldown
	return rc
}
