// loader.go implements the configuration loading lifecycle:
//  1. Enforce UTC process timezone to prevent drift bugs (the scheduler's
//     own timezone is configured explicitly and loaded separately).
//  2. Load a .env file via godotenv (non-fatal if absent).
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Validate the struct using go-playground/validator.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ErrorType categorizes configuration loading failures to aid debugging.
type ErrorType string

const (
	// ErrParsing indicates a failure when parsing environment variable
	// values into their target types.
	ErrParsing ErrorType = "PARSING_FAILED"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ErrorType = "VALIDATION_FAILED"
)

// Error is a diagnostic error type returned by Load to aid debugging.
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Load reads, populates, and validates the engine configuration. It returns
// an error rather than exiting so the caller controls the failure path; the
// expected response to a load failure is to abort startup.
func Load() (*Config, error) {
	// Pin the process to UTC. All wall-clock state (deadlines, dedup
	// timestamps) is kept in UTC; only cron evaluation uses the configured
	// scheduler timezone.
	time.Local = time.UTC

	// godotenv.Load silently succeeds if no .env file exists and never
	// overrides variables already present in the environment.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &Error{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, &Error{
			Type:    ErrValidation,
			Message: "configuration failed validation",
			Err:     err,
		}
	}

	// The scheduler timezone must resolve; catching it here gives a
	// config-shaped error instead of a late engine construction failure.
	if _, err := time.LoadLocation(cfg.Scheduler.Timezone); err != nil {
		return nil, &Error{
			Type:    ErrValidation,
			Message: fmt.Sprintf("unknown scheduler timezone %q", cfg.Scheduler.Timezone),
			Err:     err,
		}
	}

	return &cfg, nil
}
