package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() LoadBalancerConfig {
	return LoadBalancerConfig{
		Port:        8080,
		Strategy:    StrategyRoundRobin,
		Backends:    []BackendSpec{{URL: "http://localhost:8081", Weight: 1}},
		RetryBudget: 2,
		RetryDelay:  LinearDelay(100 * time.Millisecond),
		HealthCheck: HealthCheckConfig{Interval: time.Second, Timeout: time.Second},
	}
}

func TestLoadBalancerConfig_Validate_OK(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestLoadBalancerConfig_Validate_DefaultsHealthCheckPath(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/", cfg.HealthCheck.Path)
}

func TestLoadBalancerConfig_Validate_RejectsBadPort(t *testing.T) {
	cfg := validConfig()
	cfg.Port = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadBalancerConfig_Validate_RejectsUnknownStrategy(t *testing.T) {
	cfg := validConfig()
	cfg.Strategy = "least_connections"
	assert.Error(t, cfg.Validate())
}

func TestLoadBalancerConfig_Validate_RejectsEmptyBackends(t *testing.T) {
	cfg := validConfig()
	cfg.Backends = nil
	assert.Error(t, cfg.Validate())
}

func TestLoadBalancerConfig_Validate_WeightRequiredOnlyForWeighted(t *testing.T) {
	cfg := validConfig()
	cfg.Backends = []BackendSpec{{URL: "http://localhost:8081", Weight: 0}}
	assert.NoError(t, cfg.Validate())

	cfg.Strategy = StrategyWeightedRoundRobin
	assert.Error(t, cfg.Validate())
}

func TestNewRetryDelayFunc(t *testing.T) {
	fn, err := NewRetryDelayFunc("linear", 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 200*time.Millisecond, fn(2))

	fn, err = NewRetryDelayFunc("constant", 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, fn(5))

	_, err = NewRetryDelayFunc("exponential", time.Second)
	assert.Error(t, err)
}
