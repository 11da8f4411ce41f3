// Package db provides a pgxpool-based connection pool with prepared statement
// registration, schema bootstrap, and health checking.
package db

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pedalhaus/clubnotify/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// RunMigrations applies the idempotent schema. Tables use IF NOT EXISTS so
// repeated boots are safe.
func (p *Pool) RunMigrations(ctx context.Context) error {
	if _, err := p.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// registerPreparedStatements registers all statements the API and dispatch
// layers use. Prepared statements eliminate parse overhead on every request.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Scheduled notifications
		"due_notifications": `
			SELECT id, title, body, link, scheduled_for, target_type,
			       COALESCE(target_id::text, ''), category,
			       COALESCE(event_id::text, ''), sent, created_by, created_at
			FROM scheduled_notifications
			WHERE NOT sent AND scheduled_for <= $1
			ORDER BY scheduled_for ASC
			LIMIT $2`,
		"mark_notification_sent": "UPDATE scheduled_notifications SET sent = true WHERE id = $1",
		"insert_notification": `
			INSERT INTO scheduled_notifications
				(id, title, body, link, scheduled_for, target_type, target_id,
				 category, event_id, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, '')::uuid,
			        $8, NULLIF($9, '')::uuid, $10)
			RETURNING created_at`,

		// Users and invitation acceptance
		"all_user_ids":      "SELECT id FROM users",
		"accepted_user_ids": "SELECT id FROM users WHERE invite_accepted AND id = ANY($1)",
		"admin_user_ids":    "SELECT id FROM users WHERE role = 'admin'",
		"emails_for_users": `
			SELECT id, email FROM users
			WHERE id = ANY($1) AND email IS NOT NULL AND email <> ''`,

		// Group membership, coaching, guardianship
		"group_adult_ids": "SELECT id FROM users WHERE home_group_id = $1",
		"group_coach_ids": "SELECT user_id FROM group_coaches WHERE group_id = $1",
		"group_guardianships": `
			SELECT g.user_id, g.rider_id
			FROM guardianships g
			JOIN riders r ON r.id = g.rider_id
			WHERE r.group_id = $1`,
		"ungrouped_coach_ids": `
			SELECT id FROM users WHERE role = 'coach'
			UNION
			SELECT user_id FROM group_coaches`,

		// Events and RSVPs
		"event_group_ids":      "SELECT group_id FROM event_groups WHERE event_id = $1",
		"event_rsvp_actor_ids": "SELECT DISTINCT user_id FROM rsvps WHERE event_id = $1",
		"event_self_rsvp_ids":  "SELECT DISTINCT user_id FROM rsvps WHERE event_id = $1 AND rider_id IS NULL",
		"event_rider_rsvp_ids": "SELECT DISTINCT rider_id FROM rsvps WHERE event_id = $1 AND rider_id IS NOT NULL",
		"event_starts_at":      "SELECT starts_at FROM events WHERE id = $1",

		// Notification preferences: only an explicit FALSE opts a user out.
		"opted_out_new_event":      "SELECT user_id FROM notification_preferences WHERE user_id = ANY($1) AND new_event = false",
		"opted_out_event_update":   "SELECT user_id FROM notification_preferences WHERE user_id = ANY($1) AND event_update = false",
		"opted_out_rsvp_reminder":  "SELECT user_id FROM notification_preferences WHERE user_id = ANY($1) AND rsvp_reminder = false",
		"opted_out_custom_message": "SELECT user_id FROM notification_preferences WHERE user_id = ANY($1) AND custom_message = false",

		// Push subscriptions
		"subscriptions_for_users": `
			SELECT id, user_id, endpoint, p256dh, auth
			FROM push_subscriptions
			WHERE user_id = ANY($1)`,
		"delete_subscription": "DELETE FROM push_subscriptions WHERE id = $1",
		"insert_subscription": `
			INSERT INTO push_subscriptions (id, user_id, endpoint, p256dh, auth)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (endpoint) DO UPDATE
				SET user_id = EXCLUDED.user_id,
				    p256dh  = EXCLUDED.p256dh,
				    auth    = EXCLUDED.auth`,
		"delete_subscription_by_endpoint": "DELETE FROM push_subscriptions WHERE endpoint = $1",
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
