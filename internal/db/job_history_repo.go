package db

import (
	"context"

	"trackdesk/internal/types"
)

// JobHistoryRepository provides data access for the job_history table.
// One row is written per admitted job execution, giving operators a durable
// record of what the in-memory engine has been doing.
type JobHistoryRepository struct {
	db DBTX
}

// NewJobHistoryRepository creates a new JobHistoryRepository backed by the
// given database connection (pool or transaction).
func NewJobHistoryRepository(db DBTX) *JobHistoryRepository {
	return &JobHistoryRepository{db: db}
}

// Start inserts a new job_history row with status 'running' and returns the
// auto-generated BIGSERIAL ID. The caller uses this ID to later call Finish
// with the outcome.
func (r *JobHistoryRepository) Start(ctx context.Context, job types.JobName) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO job_history (job_name, started_at, status)
		VALUES ($1, NOW(), $2)
		RETURNING id`,
		string(job),
		string(types.JobStatusRunning),
	).Scan(&id)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to start job history entry", err)
	}
	return id, nil
}

// Finish updates the job_history row with the final status, item count, and
// optional error message.
func (r *JobHistoryRepository) Finish(ctx context.Context, id int64, status types.JobStatus, items int, jobErr error) error {
	var errMsg *string
	if jobErr != nil {
		s := jobErr.Error()
		errMsg = &s
	}

	_, err := r.db.Exec(ctx, `
		UPDATE job_history
		SET finished_at = NOW(), status = $2, items = $3, error = $4
		WHERE id = $1`,
		id,
		string(status),
		items,
		errMsg,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to finish job history entry", err)
	}
	return nil
}
