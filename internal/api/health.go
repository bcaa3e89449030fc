package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/gridassist/internal/gridservice"
	"github.com/ashureev/gridassist/internal/store"
)

const defaultHealthCheckTimeout = 5 * time.Second

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repo    store.Repository
	service gridservice.Service
	timeout time.Duration
}

// NewHealthHandler creates a new health handler. The grid service is checked
// only when it implements gridservice.Pinger.
func NewHealthHandler(repo store.Repository, service gridservice.Service) *HealthHandler {
	return &HealthHandler{repo: repo, service: service, timeout: defaultHealthCheckTimeout}
}

// Health returns the health status of the API and its dependencies.
// An unreachable database makes the server unhealthy; an unreachable grid
// service only degrades it, since sessions can still be read.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := "healthy"
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "dependency", "database", "error", err)
		checks["database"] = "unreachable"
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if p, ok := h.service.(gridservice.Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			slog.Warn("Health check degraded", "dependency", "grid_service", "error", err)
			checks["grid_service"] = "unreachable"
			if statusCode == http.StatusOK {
				status = "degraded"
			}
		} else {
			checks["grid_service"] = "ok"
		}
	}

	JSON(w, statusCode, map[string]any{"status": status, "checks": checks})
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/healthz", h.Health)
}
