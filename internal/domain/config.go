package domain

import (
	"fmt"
	"time"
)

// RetryDelayFunc maps a retry attempt index (the attempt about to be made,
// 2-based — attempt 1 is the initial try and is never delayed) to the
// duration to sleep before making it.
type RetryDelayFunc func(attempt int) time.Duration

// LinearDelay returns a RetryDelayFunc that sleeps attempt*base before each
// retry. This is the default delay function.
func LinearDelay(base time.Duration) RetryDelayFunc {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * base
	}
}

// ConstantDelay returns a RetryDelayFunc that always sleeps the same
// duration before each retry.
func ConstantDelay(d time.Duration) RetryDelayFunc {
	return func(int) time.Duration {
		return d
	}
}

// NewRetryDelayFunc resolves a named delay function for use from
// configuration, which can only name a function, not embed a closure.
func NewRetryDelayFunc(name string, base time.Duration) (RetryDelayFunc, error) {
	switch name {
	case "", "linear":
		return LinearDelay(base), nil
	case "constant":
		return ConstantDelay(base), nil
	default:
		return nil, fmt.Errorf("unknown retry delay function: %q", name)
	}
}

// BackendSpec is one configured upstream as read from configuration, before
// it becomes a live domain.Backend.
type BackendSpec struct {
	URL    string
	Weight int
}

// HealthCheckConfig configures the periodic and on-demand health probes.
type HealthCheckConfig struct {
	Interval time.Duration
	Timeout  time.Duration
	Path     string
}

// LoadBalancerConfig is the validated configuration record the load
// balancer is constructed from. It is the single source of truth for the
// ingress port, selection policy, backend pool, retry budget/delay, and
// health-check cadence.
type LoadBalancerConfig struct {
	Port        int
	Strategy    StrategyType
	Backends    []BackendSpec
	RetryBudget int
	RetryDelay  RetryDelayFunc
	HealthCheck HealthCheckConfig
}

// Validate checks that the backend pool is non-empty, every weight is >= 1
// under a weighted policy, the retry budget is non-negative, and the
// health-check interval and timeout are positive.
func (c *LoadBalancerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}

	switch c.Strategy {
	case StrategyRandom, StrategyRoundRobin, StrategyWeightedRoundRobin:
	default:
		return fmt.Errorf("config: unsupported strategy %q", c.Strategy)
	}

	if len(c.Backends) == 0 {
		return fmt.Errorf("config: backend pool must be non-empty")
	}

	for i, b := range c.Backends {
		if b.URL == "" {
			return fmt.Errorf("config: backends[%d]: url is required", i)
		}
		if c.Strategy == StrategyWeightedRoundRobin && b.Weight < 1 {
			return fmt.Errorf("config: backends[%d]: weight must be >= 1 under weighted_round_robin", i)
		}
	}

	if c.RetryBudget < 0 {
		return fmt.Errorf("config: retry_budget cannot be negative")
	}

	if c.HealthCheck.Interval <= 0 {
		return fmt.Errorf("config: health_check.interval must be positive")
	}
	if c.HealthCheck.Timeout <= 0 {
		return fmt.Errorf("config: health_check.timeout must be positive")
	}
	if c.HealthCheck.Path == "" {
		c.HealthCheck.Path = "/"
	}

	return nil
}
