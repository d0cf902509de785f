package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"trackdesk/internal/types"
)

// SLAConfigRepository reads the single global SLA configuration record.
// The record is owned by the admin CRUD surface; the engine never writes it.
type SLAConfigRepository struct {
	db DBTX
}

// NewSLAConfigRepository creates a new SLAConfigRepository backed by the
// given database connection (pool or transaction).
func NewSLAConfigRepository(db DBTX) *SLAConfigRepository {
	return &SLAConfigRepository{db: db}
}

// SLAHours returns the current per-priority hour budgets. A missing row is a
// valid state (nothing configured yet) and returns an empty config, under
// which no priority is tracked.
func (r *SLAConfigRepository) SLAHours(ctx context.Context) (*types.SLAConfig, error) {
	var cfg types.SLAConfig
	err := r.db.QueryRow(ctx, `
		SELECT critical_hours, high_hours, medium_hours, low_hours
		FROM sla_config
		LIMIT 1`,
	).Scan(
		&cfg.CriticalHours,
		&cfg.HighHours,
		&cfg.MediumHours,
		&cfg.LowHours,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return &types.SLAConfig{}, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read sla config", err)
	}
	return &cfg, nil
}
