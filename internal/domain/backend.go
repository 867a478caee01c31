package domain

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"
)

// BackendStatus represents the health status of a backend server.
type BackendStatus int

const (
	// StatusUnknown is the initial state before the first probe completes.
	StatusUnknown BackendStatus = iota
	// StatusHealthy indicates the backend answered its last probe with 2xx.
	StatusHealthy
	// StatusUnhealthy indicates the backend is not eligible for selection.
	StatusUnhealthy
)

// String returns the human-readable status name.
func (s BackendStatus) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Backend is one configured upstream. It is created once at startup from
// configuration and shared, never destroyed, for the process lifetime of the
// load balancer: the pool owns it, the healthy set and selection policies
// hold non-owning references to it.
type Backend struct {
	url    *url.URL
	weight int

	// ShutdownCtx is the cancellation handle shared by every in-flight
	// forward targeting this backend (the ingress handler aborts its forward
	// when it is cancelled). It is the same context for every backend in the
	// pool — one signal aborts every forward.
	ShutdownCtx context.Context

	mu     sync.Mutex
	status BackendStatus

	totalRequestsServed                 uint64
	requestsServedSinceLastStatusChange uint64
}

// NewBackend constructs a backend descriptor for the given base URL and
// weight (a weight below 1 is raised to 1; weight is only consulted by
// weighted policies).
func NewBackend(rawURL string, weight int, shutdownCtx context.Context) (*Backend, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if weight < 1 {
		weight = 1
	}
	return &Backend{
		url:         u,
		weight:      weight,
		ShutdownCtx: shutdownCtx,
		status:      StatusUnknown,
	}, nil
}

// URL returns the backend's base URL.
func (b *Backend) URL() *url.URL {
	return b.url
}

// Weight returns the backend's configured weight.
func (b *Backend) Weight() int {
	return b.weight
}

// Status returns the backend's current health status.
func (b *Backend) Status() BackendStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// SetStatus transitions the backend to the given status. Setting status to
// its current value is a no-op. Setting to a different value resets
// requestsServedSinceLastStatusChange. Returns whether a transition
// occurred, so the caller (the health checker) knows whether to republish
// the healthy set.
func (b *Backend) SetStatus(status BackendStatus) (changed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.status == status {
		return false
	}
	b.status = status
	atomic.StoreUint64(&b.requestsServedSinceLastStatusChange, 0)
	return true
}

// IncrementServed records a successful forward to this backend.
func (b *Backend) IncrementServed() {
	atomic.AddUint64(&b.totalRequestsServed, 1)
	atomic.AddUint64(&b.requestsServedSinceLastStatusChange, 1)
}

// TotalRequestsServed returns the monotonically increasing lifetime count
// of successful forwards to this backend.
func (b *Backend) TotalRequestsServed() uint64 {
	return atomic.LoadUint64(&b.totalRequestsServed)
}

// RequestsServedSinceLastStatusChange returns the count of successful
// forwards since the most recent status transition.
func (b *Backend) RequestsServedSinceLastStatusChange() uint64 {
	return atomic.LoadUint64(&b.requestsServedSinceLastStatusChange)
}
