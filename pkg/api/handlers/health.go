package handlers

import (
	"net/http"
	"time"
)

// HealthHandler serves the unauthenticated liveness probe.
type HealthHandler struct {
	version   string
	startedAt time.Time
}

// NewHealthHandler creates a health handler reporting version.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version, startedAt: time.Now()}
}

// Liveness handles GET /health.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"service":    "sharescan",
		"version":    h.version,
		"started_at": h.startedAt.UTC(),
		"uptime":     time.Since(h.startedAt).Round(time.Second).String(),
	}))
}
