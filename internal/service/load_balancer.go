package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/arvikar/glb/internal/domain"
	lberrors "github.com/arvikar/glb/internal/errors"
	"github.com/arvikar/glb/internal/repository"
	"github.com/arvikar/glb/pkg/logger"
)

// LoadBalancer ties the backend pool, health checker, and selection policy
// together into the single entry point the ingress handler calls to pick a
// backend for each request.
type LoadBalancer struct {
	pool          *repository.Pool
	healthChecker *HealthChecker
	policy        domain.SelectionPolicy
	log           *logger.Logger
}

// NewLoadBalancer constructs a load balancer over pool using the named
// strategy. If the policy supports resetting its internal state (weighted
// round-robin does, to discard stale accumulators), it is reset whenever
// the health checker republishes a new healthy set.
func NewLoadBalancer(pool *repository.Pool, healthChecker *HealthChecker, strategy domain.StrategyType, log *logger.Logger) (*LoadBalancer, error) {
	policy, err := NewPolicy(strategy)
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}

	lb := &LoadBalancer{
		pool:          pool,
		healthChecker: healthChecker,
		policy:        policy,
		log:           log.LoadBalancerLogger(),
	}

	if resettable, ok := policy.(interface{ Reset() }); ok {
		healthChecker.OnChange(resettable.Reset)
	}

	return lb, nil
}

// GetBackend selects the next backend to forward a request to from the
// health checker's currently published healthy set.
func (lb *LoadBalancer) GetBackend(ctx context.Context) (*domain.Backend, error) {
	healthy := lb.healthChecker.Healthy()

	backend, _, err := lb.policy.NextServer(healthy)
	if err != nil {
		if errors.Is(err, domain.ErrNoHealthyBackend) {
			return nil, lberrors.NewNoBackendsError()
		}
		return nil, err
	}

	lb.log.WithFields(map[string]interface{}{
		"backend":  backend.URL().String(),
		"strategy": lb.policy.Name(),
	}).Debug("selected backend for request")

	return backend, nil
}

// Start begins health checking for the pool. It returns immediately; the
// health checker's eager first pass and periodic loop both run in the
// background, so the ingress server is free to start accepting connections
// right away rather than waiting on the first probe cycle.
func (lb *LoadBalancer) Start(ctx context.Context) {
	lb.log.WithField("backend_count", lb.pool.Len()).Info("starting load balancer")
	lb.healthChecker.Start(ctx)
}

// Stop halts health checking and logs final per-backend statistics.
func (lb *LoadBalancer) Stop(ctx context.Context) {
	lb.healthChecker.Stop()

	for _, b := range lb.pool.All() {
		lb.log.WithFields(map[string]interface{}{
			"backend":           b.URL().String(),
			"status":            b.Status().String(),
			"total_served":      b.TotalRequestsServed(),
			"served_since_last": b.RequestsServedSinceLastStatusChange(),
		}).Info("backend final stats")
	}

	lb.log.Info("load balancer stopped")
}

// Pool returns the underlying backend pool, for handlers that need access
// to the full configured set (e.g. liveness/readiness reporting).
func (lb *LoadBalancer) Pool() *repository.Pool {
	return lb.pool
}

// HealthCheckerInstance returns the underlying health checker, for the ingress
// forwarder to trigger on-demand probes.
func (lb *LoadBalancer) HealthCheckerInstance() *HealthChecker {
	return lb.healthChecker
}
