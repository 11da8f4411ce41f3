// Command api is the ClubNotify API server: the dispatch trigger endpoint,
// push subscription registration, and a background dispatch worker.
//
// Usage:
//
//	clubnotify-api
//	API_PORT=8080 clubnotify-api

// @title ClubNotify API
// @version 1.0.0
// @description Scheduled notification dispatch for the club: audience resolution over membership graphs, web push delivery with email fallback.
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/pedalhaus/clubnotify/internal/api"
	"github.com/pedalhaus/clubnotify/internal/config"
	"github.com/pedalhaus/clubnotify/internal/db"
	"github.com/pedalhaus/clubnotify/internal/mailer"
	"github.com/pedalhaus/clubnotify/internal/notify"
	"github.com/pedalhaus/clubnotify/internal/push"

	_ "github.com/pedalhaus/clubnotify/docs" // swagger docs
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Connect to database
	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.RunMigrations(ctx); err != nil {
		logger.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	// Primary channel (web push); the service still runs without it, using
	// the email fallback alone.
	var pushSender notify.PushSender
	vapidKey := ""
	if sender, err := push.New(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubscriber, cfg.PushTimeout); err != nil {
		logger.Warn("Push delivery disabled", "reason", err)
	} else {
		pushSender = sender
		vapidKey = sender.PublicKey()
	}

	// Secondary channel (SMTP)
	mail := mailer.New(cfg)
	if !mail.Configured() {
		logger.Warn("Email fallback disabled (no SMTP_HOST/SMTP_FROM)")
	}

	links, err := notify.NewLinkResolver(cfg.BaseURL)
	if err != nil {
		logger.Error("Invalid BASE_URL", "error", err)
		os.Exit(1)
	}

	store := notify.NewStore(pool.Pool)
	dispatcher := &notify.Dispatcher{
		Store: store,
		Audience: notify.NewResolver(store, notify.ResolverOptions{
			AdminsInUngroupedPool: cfg.UngroupedIncludesAdmins,
		}),
		Prefs:           notify.NewPreferenceFilter(store, cfg.StoreBatchSize),
		Push:            pushSender,
		Email:           mail,
		Links:           links,
		Logger:          logger,
		BatchSize:       cfg.DispatchBatchSize,
		StoreBatchSize:  cfg.StoreBatchSize,
		PushConcurrency: cfg.PushConcurrency,
	}

	// Background dispatch worker; the HTTP trigger remains available for
	// external cron callers either way.
	if cfg.DispatchInterval > 0 {
		go notify.StartWorker(ctx, dispatcher, cfg.DispatchInterval, logger)
	} else {
		logger.Info("Dispatch worker disabled (DISPATCH_INTERVAL_SECONDS=0), trigger-only mode")
	}

	// Create router
	router := api.NewRouter(pool, store, dispatcher, cfg, vapidKey, logger)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting ClubNotify API",
			"addr", addr,
			"environment", cfg.Environment,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
