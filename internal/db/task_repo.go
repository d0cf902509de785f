package db

import (
	"context"

	"trackdesk/internal/types"
)

// TaskRepository provides the two task-table operations the compliance
// engine needs: the breach-scan query and the insert path used by the
// recurring generator. The CRUD surfaces own everything else.
type TaskRepository struct {
	db DBTX
}

// NewTaskRepository creates a new TaskRepository backed by the given database
// connection (pool or transaction).
func NewTaskRepository(db DBTX) *TaskRepository {
	return &TaskRepository{db: db}
}

// ListSLATracked returns every task eligible for SLA breach scanning: open
// status, ACTIVE assignment, non-null deadline, with assignee and creator
// email addresses joined in. Tasks whose assignee row is missing come back
// with an empty assignee email and are skipped by the scanner.
func (r *TaskRepository) ListSLATracked(ctx context.Context) ([]types.Task, error) {
	rows, err := r.db.Query(ctx, `
		SELECT t.id, t.title, t.priority, t.status, t.assignment_status,
		       t.created_at, t.sla_deadline,
		       t.assignee_id, COALESCE(a.email, ''),
		       t.creator_id, COALESCE(c.email, '')
		FROM tasks t
		LEFT JOIN users a ON a.id = t.assignee_id
		LEFT JOIN users c ON c.id = t.creator_id
		WHERE t.status = ANY($1)
		  AND t.assignment_status = $2
		  AND t.sla_deadline IS NOT NULL
		ORDER BY t.sla_deadline ASC`,
		statusStrings(types.OpenStatuses),
		string(types.AssignmentActive),
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query sla-tracked tasks", err)
	}
	defer rows.Close()

	var tasks []types.Task
	for rows.Next() {
		var t types.Task
		if err := rows.Scan(
			&t.ID,
			&t.Title,
			&t.Priority,
			&t.Status,
			&t.AssignmentStatus,
			&t.CreatedAt,
			&t.SLADeadline,
			&t.AssigneeID,
			&t.AssigneeEmail,
			&t.CreatorID,
			&t.CreatorEmail,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan task row", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating task rows", err)
	}
	return tasks, nil
}

// CreateTask inserts a task materialized from a recurring template. New
// tasks start open with an ACTIVE assignment; the SLA deadline was already
// stamped by the caller and is stored as-is.
func (r *TaskRepository) CreateTask(ctx context.Context, task types.NewTask) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO tasks (id, title, description, priority, status,
		                   assignment_status, creator_id, assignee_id,
		                   created_at, sla_deadline, template_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		task.ID,
		task.Title,
		task.Description,
		string(task.Priority),
		string(types.TaskStatusOpen),
		string(types.AssignmentActive),
		task.CreatorID,
		task.AssigneeID,
		task.CreatedAt,
		task.SLADeadline,
		task.TemplateID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert generated task", err)
	}
	return nil
}

// statusStrings converts the status set to plain strings for ANY($1).
func statusStrings(statuses []types.TaskStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
