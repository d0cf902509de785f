package db

import (
	"context"
	"time"

	"trackdesk/internal/types"
)

// TemplateRepository provides data access for the recurring_templates table.
// Templates are created and edited through the CRUD surfaces; the engine
// only reads due ones, advances their schedule, and disables broken ones.
type TemplateRepository struct {
	db DBTX
}

// NewTemplateRepository creates a new TemplateRepository backed by the given
// database connection (pool or transaction).
func NewTemplateRepository(db DBTX) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// ListDue returns enabled templates whose next_generation_at has passed,
// oldest first, capped at limit.
func (r *TemplateRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]types.RecurringTemplate, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, title, description, priority, cron_expr, enabled,
		       creator_id, assignee_id, next_generation_at
		FROM recurring_templates
		WHERE enabled = TRUE
		  AND next_generation_at <= $1
		ORDER BY next_generation_at ASC
		LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query due templates", err)
	}
	defer rows.Close()

	var templates []types.RecurringTemplate
	for rows.Next() {
		var t types.RecurringTemplate
		if err := rows.Scan(
			&t.ID,
			&t.Title,
			&t.Description,
			&t.Priority,
			&t.CronExpr,
			&t.Enabled,
			&t.CreatorID,
			&t.AssigneeID,
			&t.NextGenAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan template row", err)
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating template rows", err)
	}
	return templates, nil
}

// UpdateNextGeneration advances a template's next_generation_at after a
// successful materialization.
func (r *TemplateRepository) UpdateNextGeneration(ctx context.Context, id string, next time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE recurring_templates
		SET next_generation_at = $2
		WHERE id = $1`,
		id, next,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to advance template schedule", err)
	}
	return nil
}

// Disable turns a template off and records the reason. Used when a
// template's cron expression no longer parses; a disabled template stays
// visible to its owner for repair but is never picked up by ListDue.
func (r *TemplateRepository) Disable(ctx context.Context, id string, reason string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE recurring_templates
		SET enabled = FALSE, disabled_reason = $2
		WHERE id = $1`,
		id, reason,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to disable template", err)
	}
	return nil
}
