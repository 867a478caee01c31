// Package repository holds the load balancer's backend pool.
package repository

import (
	"context"
	"fmt"

	"github.com/arvikar/glb/internal/domain"
)

// Pool is the fixed set of backends a load balancer instance forwards to.
// It is built once from configuration at startup; there is no Add/Remove —
// reconfiguring the pool means restarting the process.
type Pool struct {
	backends []*domain.Backend
}

// NewPool constructs the backends described by specs, sharing shutdownCtx
// across all of them, and returns the assembled pool. An empty specs slice
// is an error: a load balancer with no backends cannot serve traffic.
func NewPool(specs []domain.BackendSpec, shutdownCtx context.Context) (*Pool, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("repository: backend pool must be non-empty")
	}

	backends := make([]*domain.Backend, 0, len(specs))
	for i, spec := range specs {
		b, err := domain.NewBackend(spec.URL, spec.Weight, shutdownCtx)
		if err != nil {
			return nil, fmt.Errorf("repository: backends[%d]: %w", i, err)
		}
		backends = append(backends, b)
	}

	return &Pool{backends: backends}, nil
}

// All returns every configured backend, healthy or not, in configuration
// order. The returned slice is the pool's own, not a copy; the pool never
// mutates it after construction, and callers must not modify it either.
func (p *Pool) All() []*domain.Backend {
	return p.backends
}

// Len returns the total number of configured backends.
func (p *Pool) Len() int {
	return len(p.backends)
}

// Healthy returns the subset of backends currently in StatusHealthy, in
// configuration order. This is a point-in-time snapshot; callers on the
// data-plane hot path should prefer the health checker's published healthy
// set instead of recomputing this on every request.
func (p *Pool) Healthy() []*domain.Backend {
	healthy := make([]*domain.Backend, 0, len(p.backends))
	for _, b := range p.backends {
		if b.Status() == domain.StatusHealthy {
			healthy = append(healthy, b)
		}
	}
	return healthy
}
