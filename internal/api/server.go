// Package api wires the Chi router: middleware, trigger and subscription
// routes, health checks, metrics, and swagger docs.
package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/pedalhaus/clubnotify/internal/api/handler"
	"github.com/pedalhaus/clubnotify/internal/config"
	"github.com/pedalhaus/clubnotify/internal/db"
	"github.com/pedalhaus/clubnotify/internal/notify"
)

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(pool *db.Pool, store *notify.Store, dispatcher *notify.Dispatcher, cfg *config.Config, vapidKey string, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TimingMiddleware)
	r.Use(middleware.Compress(5)) // gzip

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Content-Type", "Authorization", "X-Dispatch-Secret"},
		ExposedHeaders:   []string{"X-Process-Time"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// Rate limiting
	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	// --- Handler dependencies ---
	h := handler.New(pool, store, dispatcher, cfg, vapidKey, logger)

	// --- Routes ---

	// Root
	r.Get("/", h.Root)

	// Health checks
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
	})

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// Swagger UI
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Dispatch trigger (shared-secret gated)
		r.Post("/dispatch", h.Dispatch)

		// Scheduling
		r.Post("/notifications", h.CreateNotification)
		r.Get("/notifications/schedule-preview", h.SchedulePreview)

		// Push subscriptions
		r.Get("/push/vapid-key", h.VAPIDKey)
		r.Post("/push/subscriptions", h.Subscribe)
		r.Delete("/push/subscriptions", h.Unsubscribe)
	})

	return r
}
