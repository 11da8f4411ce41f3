// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/api and cmd/dispatch.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Config struct — populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Dispatch
	DispatchSecret    string
	DispatchBatchSize int
	DispatchInterval  time.Duration
	StoreBatchSize    int // cap for "id = ANY(...)" queries
	PushConcurrency   int

	// Audience resolution
	UngroupedIncludesAdmins bool

	// Schedule clamping timezone (IANA name, empty = system local)
	ScheduleTZ string

	// Web push (VAPID)
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string
	PushTimeout     time.Duration

	// SMTP fallback channel
	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string
	SMTPTimeout  time.Duration

	// Link resolution
	BaseURL string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", envOr("POSTGRES_URL", ""))
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL or POSTGRES_URL must be set")
	}

	return &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8080)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		DispatchSecret:    envOr("DISPATCH_SECRET", ""),
		DispatchBatchSize: envInt("DISPATCH_BATCH_SIZE", 25),
		DispatchInterval:  time.Duration(envInt("DISPATCH_INTERVAL_SECONDS", 60)) * time.Second,
		StoreBatchSize:    envInt("STORE_BATCH_SIZE", 500),
		PushConcurrency:   envInt("PUSH_CONCURRENCY", 1),

		UngroupedIncludesAdmins: envBool("AUDIENCE_UNGROUPED_ADMINS", true),

		ScheduleTZ: envOr("SCHEDULE_TZ", ""),

		VAPIDPublicKey:  envOr("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey: envOr("VAPID_PRIVATE_KEY", ""),
		VAPIDSubscriber: envOr("VAPID_SUBSCRIBER", "mailto:club@example.org"),
		PushTimeout:     time.Duration(envInt("PUSH_TIMEOUT_SECONDS", 10)) * time.Second,

		SMTPHost:     envOr("SMTP_HOST", ""),
		SMTPPort:     envOr("SMTP_PORT", "587"),
		SMTPFrom:     envOr("SMTP_FROM", ""),
		SMTPUsername: envOr("SMTP_USERNAME", ""),
		SMTPPassword: envOr("SMTP_PASSWORD", ""),
		SMTPTimeout:  time.Duration(envInt("SMTP_TIMEOUT_SECONDS", 15)) * time.Second,

		BaseURL: envOr("BASE_URL", "http://localhost:8080"),
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// ScheduleLocation resolves ScheduleTZ to a *time.Location.
// Falls back to the system local zone on empty or invalid names.
func (c *Config) ScheduleLocation() *time.Location {
	if c.ScheduleTZ == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.ScheduleTZ)
	if err != nil {
		return time.Local
	}
	return loc
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
