/*
Copyright (C) 2026 Fieldworks

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment   string
	HTTPBind      string
	HTTPPort      int
	BaseURL       string // Public base URL (e.g., https://desk.example.com)
	DBBackend     DatabaseBackend
	DBDSN         string
	JWTSigningKey string
	MetricsBind   string

	// Scheduling flags: read at startup, injected as an immutable value,
	// never mutated by requests.
	//
	// SchedulingAlwaysOpen defaults to true: weekly rosters are ignored
	// for conflict purposes unless explicitly disabled. Set
	// FIXDESK_SCHEDULING_ALWAYS_OPEN=false to enforce working hours.
	SchedulingAlwaysOpen  bool
	SchedulingSameDayOnly bool

	// Distributed booking lock. When RedisAddr is empty the per-technician
	// lock is process-local only.
	BookingLockRedisAddr     string
	BookingLockRedisPassword string
	BookingLockRedisDB       int
	BookingLockTTL           time.Duration

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Outbound email. Reminders and booking confirmations go nowhere
	// when SMTPHost is empty; in-app notifications still work.
	SMTPHost              string
	SMTPPort              int
	SMTPUsername          string
	SMTPPassword          string
	SMTPFrom              string
	SMTPFromName          string
	ReminderLeadTime      time.Duration
	ReminderCheckInterval time.Duration
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:   getEnv("FIXDESK_ENV", "development"),
		HTTPBind:      getEnv("FIXDESK_HTTP_BIND", "0.0.0.0"),
		HTTPPort:      getEnvInt("FIXDESK_HTTP_PORT", 8080),
		BaseURL:       getEnv("FIXDESK_BASE_URL", ""),
		DBBackend:     DatabaseBackend(getEnv("FIXDESK_DB_BACKEND", string(DatabasePostgres))),
		DBDSN:         getEnv("FIXDESK_DB_DSN", ""),
		JWTSigningKey: getEnv("FIXDESK_JWT_SIGNING_KEY", ""),
		MetricsBind:   getEnv("FIXDESK_METRICS_BIND", "127.0.0.1:9000"),

		SchedulingAlwaysOpen:  getEnvBool("FIXDESK_SCHEDULING_ALWAYS_OPEN", true),
		SchedulingSameDayOnly: getEnvBool("FIXDESK_SCHEDULING_SAME_DAY_ONLY", false),

		BookingLockRedisAddr:     getEnv("FIXDESK_BOOKING_LOCK_REDIS_ADDR", ""),
		BookingLockRedisPassword: getEnv("FIXDESK_BOOKING_LOCK_REDIS_PASSWORD", ""),
		BookingLockRedisDB:       getEnvInt("FIXDESK_BOOKING_LOCK_REDIS_DB", 0),
		BookingLockTTL:           time.Duration(getEnvInt("FIXDESK_BOOKING_LOCK_TTL_SECONDS", 15)) * time.Second,

		TracingEnabled:    getEnvBool("FIXDESK_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("FIXDESK_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("FIXDESK_TRACING_SAMPLE_RATE", 1.0),

		SMTPHost:              getEnv("FIXDESK_SMTP_HOST", ""),
		SMTPPort:              getEnvInt("FIXDESK_SMTP_PORT", 587),
		SMTPUsername:          getEnv("FIXDESK_SMTP_USERNAME", ""),
		SMTPPassword:          getEnv("FIXDESK_SMTP_PASSWORD", ""),
		SMTPFrom:              getEnv("FIXDESK_SMTP_FROM", "noreply@example.com"),
		SMTPFromName:          getEnv("FIXDESK_SMTP_FROM_NAME", "FixDesk"),
		ReminderLeadTime:      time.Duration(getEnvInt("FIXDESK_REMINDER_LEAD_MINUTES", 24*60)) * time.Minute,
		ReminderCheckInterval: time.Duration(getEnvInt("FIXDESK_REMINDER_CHECK_SECONDS", 60)) * time.Second,
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("FIXDESK_DB_DSN must be provided")
	}

	if cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("FIXDESK_JWT_SIGNING_KEY must be provided")
	}

	if strings.EqualFold(cfg.Environment, "production") && len(cfg.JWTSigningKey) < 32 {
		return nil, fmt.Errorf("FIXDESK_JWT_SIGNING_KEY must be at least 32 bytes in production")
	}

	if cfg.BookingLockTTL <= 0 {
		cfg.BookingLockTTL = 15 * time.Second
	}

	if cfg.ReminderCheckInterval <= 0 {
		cfg.ReminderCheckInterval = time.Minute
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "true" || v == "1" || v == "yes" {
			return true
		}
		if v == "false" || v == "0" || v == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}
