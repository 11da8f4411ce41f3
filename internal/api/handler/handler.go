// Package handler provides HTTP handlers for the notification service:
// the dispatch trigger, notification scheduling, push subscription
// registration, and health checks.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/pedalhaus/clubnotify/internal/api/respond"
	"github.com/pedalhaus/clubnotify/internal/config"
	"github.com/pedalhaus/clubnotify/internal/db"
	"github.com/pedalhaus/clubnotify/internal/notify"
)

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	pool       *db.Pool
	store      *notify.Store
	dispatcher *notify.Dispatcher
	cfg        *config.Config
	logger     *slog.Logger
	vapidKey   string // public key clients subscribe with; empty when push disabled
	loc        *time.Location
}

// New creates a Handler with shared dependencies.
func New(pool *db.Pool, store *notify.Store, dispatcher *notify.Dispatcher, cfg *config.Config, vapidKey string, logger *slog.Logger) *Handler {
	return &Handler{
		pool:       pool,
		store:      store,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger,
		vapidKey:   vapidKey,
		loc:        cfg.ScheduleLocation(),
	}
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns API name, version, and status.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":    "ClubNotify API",
		"version": "1.0.0",
		"status":  "running",
		"docs":    "/docs",
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Description Returns basic health status and timestamp.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
// @Summary Database health check
// @Description Verifies Postgres connectivity.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if err := h.pool.HealthCheck(r.Context()); err != nil {
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
