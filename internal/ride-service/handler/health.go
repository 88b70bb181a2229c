package handler

import (
	"context"
	"net/http"
	"time"

	"ride-share/pkg/logger"
)

// Pinger is anything whose liveness the health check reports.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store  Pinger
	logger logger.Logger
}

func NewHealthHandler(store Pinger, logger logger.Logger) *HealthHandler {
	return &HealthHandler{store: store, logger: logger}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Error("health_check_failed", err)
		writeJSON(w, http.StatusServiceUnavailable, envelope{"success": false, "status": "unavailable"})
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"status": "ok"})
}
