package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/arvikar/glb/internal/service"
)

// HealthHandler provides the process's own liveness/readiness endpoints,
// distinct from the health checker's backend probes: this reports whether
// the load balancer process itself is up and able to serve, not whether any
// particular upstream is.
type HealthHandler struct {
	lb        *service.LoadBalancer
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(lb *service.LoadBalancer, version string) *HealthHandler {
	return &HealthHandler{
		lb:        lb,
		startTime: time.Now(),
		version:   version,
	}
}

// LivenessHandler reports that the process is up. It never depends on
// backend health — a process with zero healthy backends is still alive.
func (h *HealthHandler) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().UTC(),
		"version":   h.version,
		"uptime":    time.Since(h.startTime).String(),
	})
}

// ReadinessHandler reports whether the process has at least one healthy
// backend to forward to. A process with none is alive but not ready.
func (h *HealthHandler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	healthy := h.lb.HealthCheckerInstance().Healthy()

	status := "ready"
	code := http.StatusOK
	if len(healthy) == 0 {
		status = "not_ready"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]interface{}{
		"status":           status,
		"timestamp":        time.Now().UTC(),
		"version":          h.version,
		"uptime":           time.Since(h.startTime).String(),
		"total_backends":   h.lb.Pool().Len(),
		"healthy_backends": len(healthy),
	})
}

func writeJSON(w http.ResponseWriter, code int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
