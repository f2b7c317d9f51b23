package resilience

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/hazardmap/powergrid/internal/config"
)

// RetryFromConfig converts the retry section. Unset values keep the
// defaults. A nil clock means the real one.
func RetryFromConfig(c config.RetryConfig, clock clockwork.Clock) RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.Clock = clock
	if c.MaxAttempts > 0 {
		cfg.MaxAttempts = c.MaxAttempts
	}
	if c.InitialBackoffMs > 0 {
		cfg.InitialBackoff = ms(c.InitialBackoffMs)
	}
	if c.MaxBackoffMs > 0 {
		cfg.MaxBackoff = ms(c.MaxBackoffMs)
	}
	if c.Multiplier > 0 {
		cfg.Multiplier = c.Multiplier
	}
	if c.JitterFraction > 0 {
		cfg.JitterFraction = c.JitterFraction
	}
	return cfg
}

// BreakersFromConfig returns one breaker per remote service. Only transient
// failures count toward opening a circuit.
func BreakersFromConfig(c config.CircuitConfig, clock clockwork.Clock) *ServiceBreakers {
	cfg := DefaultCircuitBreakerConfig()
	cfg.ShouldTrip = IsTransient
	cfg.Clock = clock
	if c.FailureThreshold > 0 {
		cfg.FailureThreshold = c.FailureThreshold
	}
	if c.ResetTimeoutSecs > 0 {
		cfg.ResetTimeout = time.Duration(c.ResetTimeoutSecs) * time.Second
	}
	return NewServiceBreakers(cfg)
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
