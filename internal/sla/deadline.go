// Package sla implements the deadline arithmetic for the compliance engine:
// computing a task's SLA deadline from its priority at creation time, and the
// percentage-of-budget-elapsed math the breach scanner and threshold notifier
// work with.
package sla

import (
	"context"
	"log/slog"
	"time"

	"trackdesk/internal/types"
)

// ConfigSource provides read-only access to the global SLA hour budgets.
// Implemented by db.SLAConfigRepository in production and by fixed fakes
// in tests.
type ConfigSource interface {
	// SLAHours returns the current global configuration record, or nil when
	// none has been created yet.
	SLAHours(ctx context.Context) (*types.SLAConfig, error)
}

// Calculator computes SLA deadlines. A read failure from the config source is
// treated identically to "no configuration": the task simply is not tracked.
// Callers can distinguish the two cases only through logs, never through the
// return value.
type Calculator struct {
	source ConfigSource
	logger *slog.Logger
}

// NewCalculator creates a Calculator backed by the given config source.
func NewCalculator(source ConfigSource, logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{source: source, logger: logger}
}

// Deadline returns createdAt plus the configured hour budget for the
// priority, or nil when the priority is not SLA-tracked. The addition is
// plain wall-clock arithmetic, not business-hours-aware.
func (c *Calculator) Deadline(ctx context.Context, priority types.Priority, createdAt time.Time) *time.Time {
	cfg, err := c.source.SLAHours(ctx)
	if err != nil {
		c.logger.ErrorContext(ctx, "sla config read failed, treating task as untracked",
			"priority", priority,
			"error", err,
		)
		return nil
	}
	return DeadlineFrom(cfg, priority, createdAt)
}

// Budget returns the total SLA duration for a priority, or false when the
// priority is not tracked (or the config cannot be read).
func (c *Calculator) Budget(ctx context.Context, priority types.Priority) (time.Duration, bool) {
	cfg, err := c.source.SLAHours(ctx)
	if err != nil {
		c.logger.ErrorContext(ctx, "sla config read failed, treating priority as untracked",
			"priority", priority,
			"error", err,
		)
		return 0, false
	}
	hours, ok := cfg.HoursFor(priority)
	if !ok {
		return 0, false
	}
	return time.Duration(hours) * time.Hour, true
}

// DeadlineFrom is the pure form of Deadline: given an already-loaded config
// record, it returns createdAt + hours or nil. A nil config means nothing is
// tracked.
func DeadlineFrom(cfg *types.SLAConfig, priority types.Priority, createdAt time.Time) *time.Time {
	hours, ok := cfg.HoursFor(priority)
	if !ok {
		return nil
	}
	d := createdAt.Add(time.Duration(hours) * time.Hour)
	return &d
}

// PercentElapsed computes the fraction of the SLA budget consumed at the
// given instant. The value exceeds 1.0 once the deadline has passed and is
// negative only if the deadline lies more than a full budget in the future
// (which cannot happen for deadlines stamped by this package).
func PercentElapsed(deadline time.Time, total time.Duration, now time.Time) float64 {
	if total <= 0 {
		return 0
	}
	remaining := deadline.Sub(now)
	return float64(total-remaining) / float64(total)
}
