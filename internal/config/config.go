// Package config defines the configuration for the trackdesk compliance
// engine. Configuration is loaded once at process startup and is immutable
// thereafter, following 12-Factor principles: values come from the OS
// environment, optionally seeded by a local .env file.
//
// Any missing required value or invalid format fails the process immediately
// on startup (fail fast). Absence of a per-priority SLA budget is NOT a
// config error; that lives in the database and its absence is a valid state.
package config

import (
	"time"

	"trackdesk/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the compliance engine.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Scheduler SchedulerConfig
	Database  DatabaseConfig
	Email     EmailConfig
	Ops       OpsConfig
}

// SchedulerConfig holds the cron cadence and timezone for the engine.
type SchedulerConfig struct {
	// Timezone is the single IANA zone all job schedules are evaluated in.
	Timezone string `envconfig:"SCHEDULER_TZ" default:"UTC"`

	// Per-job cron expressions. Invalid expressions fail closed to a
	// once-per-day fallback at registration time rather than crashing.
	GenerationSpec string `envconfig:"GENERATION_CRON" default:"* * * * *"`
	ScanSpec       string `envconfig:"SLA_SCAN_CRON" default:"* * * * *"`
	DedupSweepSpec string `envconfig:"DEDUP_SWEEP_CRON" default:"0 * * * *"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout  time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
}

// EmailConfig holds mail delivery provider credentials and sender identity.
type EmailConfig struct {
	APIKey      SecretString  `envconfig:"MAIL_API_KEY" validate:"required"`
	FromAddress string        `envconfig:"MAIL_FROM_ADDRESS" default:"sla-alerts@trackdesk.io" validate:"email"`
	FromName    string        `envconfig:"MAIL_FROM_NAME" default:"trackdesk SLA alerts"`
	Timeout     time.Duration `envconfig:"MAIL_TIMEOUT" default:"10s"`
}

// OpsConfig holds the operational HTTP surface settings.
type OpsConfig struct {
	Port string `envconfig:"OPS_PORT" default:"8081"`
}
