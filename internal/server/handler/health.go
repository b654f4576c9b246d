package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

// HealthCheck probes one backing service.
type HealthCheck func(ctx context.Context) error

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	clock  domain.Clock
	checks map[string]HealthCheck
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. checks may be nil.
func NewHealthHandler(clock domain.Clock, checks map[string]HealthCheck, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{clock: clock, checks: checks, logger: logger}
}

type healthView struct {
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	Clock      uint64            `json:"clock"`
	Components map[string]string `json:"components,omitempty"`
}

// HealthCheck reports liveness, the logical clock and each dependency.
// Any failing dependency turns the status to "degraded" with a 503.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	view := healthView{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if h.clock != nil {
		now, err := h.clock.Now(ctx)
		if err != nil {
			view.Status = "degraded"
		}
		view.Clock = now
	}
	if len(h.checks) > 0 {
		view.Components = make(map[string]string, len(h.checks))
		for name, check := range h.checks {
			if err := check(ctx); err != nil {
				h.logger.WarnContext(ctx, "handler: health check failed",
					slog.String("component", name),
					slog.String("error", err.Error()),
				)
				view.Components[name] = "down"
				view.Status = "degraded"
				continue
			}
			view.Components[name] = "up"
		}
	}

	status := http.StatusOK
	if view.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, domain.OK(view))
}
