/*
Package domain contains the core entities of the load balancer: the backend
descriptor, the selection policy interface, and the configuration record
the rest of the system is built from. The fixed backend pool lives in
package repository and the derived healthy set in package service.

The domain package is independent of transport and infrastructure concerns
— no HTTP, no YAML — so it stays trivially testable. Backend state is
thread-safe: status transitions are serialized through a per-backend mutex,
counters are atomic.

	b, err := domain.NewBackend("http://localhost:8081", 1, shutdownCtx)
	if err != nil {
		return err
	}
	b.IncrementServed()
	if b.Status() == domain.StatusHealthy {
		// eligible for selection
	}
*/
package domain
