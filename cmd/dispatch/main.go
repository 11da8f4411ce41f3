// Command dispatch is the ClubNotify operations CLI.
//
// Usage:
//
//	clubnotify-dispatch run
//	clubnotify-dispatch preview --starts-at 2026-04-18T10:00:00Z
//	clubnotify-dispatch vapid-keygen
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pedalhaus/clubnotify/internal/config"
	"github.com/pedalhaus/clubnotify/internal/db"
	"github.com/pedalhaus/clubnotify/internal/mailer"
	"github.com/pedalhaus/clubnotify/internal/notify"
	"github.com/pedalhaus/clubnotify/internal/push"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "clubnotify-dispatch",
		Short: "ClubNotify dispatch CLI",
	}

	root.AddCommand(runCmd())
	root.AddCommand(previewCmd())
	root.AddCommand(vapidKeygenCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// run command
// --------------------------------------------------------------------------

func runCmd() *cobra.Command {
	var batchSize int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process due notifications once and print the summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				dispatcher, err := buildDispatcher(cfg, pool)
				if err != nil {
					return err
				}
				if batchSize > 0 {
					dispatcher.BatchSize = batchSize
				}

				start := time.Now()
				summary, err := dispatcher.Run(ctx)
				if err != nil {
					return fmt.Errorf("dispatch: %w", err)
				}
				logger.Info("Dispatch finished",
					"duration", time.Since(start).Round(time.Millisecond),
					"processed", summary.Processed,
					"sent", summary.Sent,
					"failed", summary.Failed)

				out, _ := json.MarshalIndent(summary, "", "  ")
				fmt.Println(string(out))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch", 0, "Override batch size (0 = DISPATCH_BATCH_SIZE)")
	return cmd
}

// --------------------------------------------------------------------------
// preview command
// --------------------------------------------------------------------------

func previewCmd() *cobra.Command {
	var startsAt string
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Print the default announcement and reminder times for an event start",
		RunE: func(cmd *cobra.Command, args []string) error {
			if startsAt == "" {
				return fmt.Errorf("--starts-at is required")
			}
			start, err := time.Parse(time.RFC3339, startsAt)
			if err != nil {
				return fmt.Errorf("parse --starts-at: %w", err)
			}

			// Needs no database; only the clamp timezone.
			cfg := &config.Config{ScheduleTZ: os.Getenv("SCHEDULE_TZ")}

			now := time.Now()
			if at, ok := notify.AnnouncementTime(now, start, cfg.ScheduleLocation()); ok {
				fmt.Printf("announcement: %s\n", at.UTC().Format(time.RFC3339))
			} else {
				fmt.Println("announcement: none (event too soon)")
			}
			for _, t := range notify.DefaultReminderTimes(start, now) {
				fmt.Printf("reminder:     %s\n", t.UTC().Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&startsAt, "starts-at", "", "Event start time (RFC 3339)")
	return cmd
}

// --------------------------------------------------------------------------
// vapid-keygen command
// --------------------------------------------------------------------------

func vapidKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vapid-keygen",
		Short: "Generate a VAPID key pair for web push",
		RunE: func(cmd *cobra.Command, args []string) error {
			privateKey, publicKey, err := push.GenerateVAPIDKeys()
			if err != nil {
				return fmt.Errorf("generate keys: %w", err)
			}
			fmt.Printf("VAPID_PUBLIC_KEY=%s\n", publicKey)
			fmt.Printf("VAPID_PRIVATE_KEY=%s\n", privateKey)
			return nil
		},
	}
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// buildDispatcher wires the dispatcher from config the same way cmd/api does.
func buildDispatcher(cfg *config.Config, pool *db.Pool) (*notify.Dispatcher, error) {
	var pushSender notify.PushSender
	if sender, err := push.New(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubscriber, cfg.PushTimeout); err != nil {
		logger.Warn("Push delivery disabled", "reason", err)
	} else {
		pushSender = sender
	}

	mail := mailer.New(cfg)
	if !mail.Configured() {
		logger.Warn("Email fallback disabled (no SMTP_HOST/SMTP_FROM)")
	}

	links, err := notify.NewLinkResolver(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid BASE_URL: %w", err)
	}

	store := notify.NewStore(pool.Pool)
	return &notify.Dispatcher{
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
	}, nil
}

// withDB handles config loading, DB connection, and context cancellation.
func withDB(fn func(ctx context.Context, cfg *config.Config, pool *db.Pool) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.RunMigrations(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return fn(ctx, cfg, pool)
}
