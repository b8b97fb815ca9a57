package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger checks a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports whether the store is reachable.
type HealthHandler struct {
	store   Pinger
	timeout time.Duration
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(store Pinger, timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HealthHandler{store: store, timeout: timeout}
}

// Check responds 200 when healthy and 503 when degraded.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	storeStatus := "healthy"
	overallStatus := "healthy"

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		storeStatus = "unhealthy"
		overallStatus = "degraded"
		slog.Warn("store_health_check_failed", "error", err)
	}

	status := http.StatusOK
	if overallStatus == "degraded" {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]any{
		"status": overallStatus,
		"checks": map[string]string{
			"store": storeStatus,
		},
	})
}
