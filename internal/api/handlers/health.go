// health.go — liveness и readiness probes.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
)

// ReadinessChecker — проверка готовности зависимости (PostgreSQL).
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	readiness ReadinessChecker
	version   string
	logger    *slog.Logger
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(readiness ReadinessChecker, version string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		readiness: readiness,
		version:   version,
		logger:    logger.With(slog.String("component", "health_handler")),
	}
}

// HealthLive — GET /health/live. Процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.version,
	})
}

// HealthReady — GET /health/ready. Зависимости доступны.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if err := h.readiness.Ready(r.Context()); err != nil {
		h.logger.Warn("Readiness check не пройден", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"reason": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.version,
	})
}
