// Package config loads and validates the load balancer's YAML configuration
// file, with environment variable overrides for the fields operators most
// often need to tweak without editing the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/arvikar/glb/internal/domain"
)

// Config is the on-disk configuration shape. Backends is a plain slice —
// there is no identity beyond position and URL, since the pool built from
// it is fixed for the process lifetime.
type Config struct {
	LoadBalancer LoadBalancerConfig `yaml:"load_balancer"`
	Backends     []BackendConfig    `yaml:"backends"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// LoadBalancerConfig is the load-balancer-specific slice of Config.
type LoadBalancerConfig struct {
	Port        int                      `yaml:"port"`
	Strategy    string                   `yaml:"strategy"`
	RetryBudget int                      `yaml:"retry_budget"`
	RetryDelay  RetryDelayConfig         `yaml:"retry_delay"`
	HealthCheck domain.HealthCheckConfig `yaml:"health_check"`
}

// RetryDelayConfig names the retry-delay function and its base duration.
type RetryDelayConfig struct {
	Function string        `yaml:"function"`
	Base     time.Duration `yaml:"base"`
}

// BackendConfig is one configured upstream.
type BackendConfig struct {
	URL    string `yaml:"url"`
	Weight int    `yaml:"weight"`
}

// LoggingConfig configures the ambient structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	File   string `yaml:"file"`
}

// DefaultConfig returns a configuration with sensible defaults, used as the
// base that a config file's fields are unmarshaled on top of.
func DefaultConfig() *Config {
	return &Config{
		LoadBalancer: LoadBalancerConfig{
			Port:        8080,
			Strategy:    string(domain.StrategyRoundRobin),
			RetryBudget: 2,
			RetryDelay: RetryDelayConfig{
				Function: "linear",
				Base:     100 * time.Millisecond,
			},
			HealthCheck: domain.HealthCheckConfig{
				Interval: 10 * time.Second,
				Timeout:  2 * time.Second,
				Path:     "/health",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// LoadFromFile reads configuration from a YAML file, applies any
// environment overrides on top, and validates the result.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", filename, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", filename, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides lets an operator override the port, strategy, and log
// level without editing the config file — the knobs that change most often
// between environments (dev/staging/prod) without needing to change the
// backend pool itself.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GLB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.LoadBalancer.Port = port
		}
	}
	if v := os.Getenv("GLB_STRATEGY"); v != "" {
		c.LoadBalancer.Strategy = v
	}
	if v := os.Getenv("GLB_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the logging fields this package owns, then delegates
// everything else to the assembled domain.LoadBalancerConfig.
func (c *Config) Validate() error {
	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("config: invalid log level %q", c.Logging.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("config: invalid log format %q", c.Logging.Format)
	}

	validOutputs := map[string]bool{"stdout": true, "stderr": true, "file": true}
	if !validOutputs[c.Logging.Output] {
		return fmt.Errorf("config: invalid log output %q", c.Logging.Output)
	}

	_, err := c.ToLoadBalancerConfig()
	return err
}

// ToLoadBalancerConfig assembles and validates the domain.LoadBalancerConfig
// this file describes.
func (c *Config) ToLoadBalancerConfig() (domain.LoadBalancerConfig, error) {
	delayFn, err := domain.NewRetryDelayFunc(c.LoadBalancer.RetryDelay.Function, c.LoadBalancer.RetryDelay.Base)
	if err != nil {
		return domain.LoadBalancerConfig{}, err
	}

	backends := make([]domain.BackendSpec, len(c.Backends))
	for i, b := range c.Backends {
		backends[i] = domain.BackendSpec{URL: b.URL, Weight: b.Weight}
	}

	lbConfig := domain.LoadBalancerConfig{
		Port:        c.LoadBalancer.Port,
		Strategy:    domain.StrategyType(c.LoadBalancer.Strategy),
		Backends:    backends,
		RetryBudget: c.LoadBalancer.RetryBudget,
		RetryDelay:  delayFn,
		HealthCheck: c.LoadBalancer.HealthCheck,
	}

	if err := lbConfig.Validate(); err != nil {
		return domain.LoadBalancerConfig{}, err
	}
	return lbConfig, nil
}
