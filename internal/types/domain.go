// Package types defines the shared domain model for the trackdesk compliance
// engine: tasks, recurring templates, SLA configuration, and the small set of
// cross-cutting abstractions (Clock, AppError) the rest of the codebase builds
// on. It has no dependencies on other internal packages.
package types

import "time"

// Task is the subset of the task record the compliance engine cares about.
// The CRUD surfaces own the full record; the engine only reads what it needs
// to compute SLA state and resolve notification recipients.
type Task struct {
	ID               string           `json:"id" db:"id"`
	Title            string           `json:"title" db:"title"`
	Priority         Priority         `json:"priority" db:"priority"`
	Status           TaskStatus       `json:"status" db:"status"`
	AssignmentStatus AssignmentStatus `json:"assignment_status" db:"assignment_status"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`

	// SLADeadline is computed once at creation time by the deadline
	// calculator and stored. Nil means the task is not SLA-tracked.
	SLADeadline *time.Time `json:"sla_deadline,omitempty" db:"sla_deadline"`

	// Contact references joined in by the breach-scan query.
	AssigneeID    *string `json:"assignee_id,omitempty" db:"assignee_id"`
	AssigneeEmail string  `json:"assignee_email,omitempty" db:"assignee_email"`
	CreatorID     string  `json:"creator_id" db:"creator_id"`
	CreatorEmail  string  `json:"creator_email,omitempty" db:"creator_email"`
}

// HasAssignee reports whether the task has a resolvable notification target.
// Tasks without one are never scanned, even if technically breaching.
func (t *Task) HasAssignee() bool {
	return t.AssigneeID != nil && t.AssigneeEmail != ""
}

// NewTask holds the fields the recurring generator writes when materializing
// a concrete task from a template.
type NewTask struct {
	ID          string
	Title       string
	Description string
	Priority    Priority
	CreatorID   string
	AssigneeID  *string
	CreatedAt   time.Time
	SLADeadline *time.Time
	TemplateID  string
}

// RecurringTemplate is a stored definition from which concrete tasks are
// periodically materialized on a cron schedule.
type RecurringTemplate struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Priority    Priority  `json:"priority" db:"priority"`
	CronExpr    string    `json:"cron_expr" db:"cron_expr"`
	Enabled     bool      `json:"enabled" db:"enabled"`
	CreatorID   string    `json:"creator_id" db:"creator_id"`
	AssigneeID  *string   `json:"assignee_id,omitempty" db:"assignee_id"`
	NextGenAt   time.Time `json:"next_generation_at" db:"next_generation_at"`
}

// SLAConfig is the single global configuration record holding per-priority
// SLA hour budgets. A nil entry (or one <= 0) means the priority is not
// SLA-tracked. Read-only from the engine's perspective.
type SLAConfig struct {
	CriticalHours *int `json:"critical_hours" db:"critical_hours"`
	HighHours     *int `json:"high_hours" db:"high_hours"`
	MediumHours   *int `json:"medium_hours" db:"medium_hours"`
	LowHours      *int `json:"low_hours" db:"low_hours"`
}

// HoursFor returns the configured hour budget for a priority, or 0 and false
// when the priority is not tracked.
func (c *SLAConfig) HoursFor(p Priority) (int, bool) {
	if c == nil {
		return 0, false
	}
	var h *int
	switch p {
	case PriorityCritical:
		h = c.CriticalHours
	case PriorityHigh:
		h = c.HighHours
	case PriorityMedium:
		h = c.MediumHours
	case PriorityLow:
		h = c.LowHours
	}
	if h == nil || *h <= 0 {
		return 0, false
	}
	return *h, true
}

// SendInput carries a fully rendered email to the mail provider.
type SendInput struct {
	To       []string
	From     SenderIdentity
	Subject  string
	BodyText string
	BodyHTML string
	// ReferenceID correlates the send with the task that triggered it.
	ReferenceID string
}

// SenderIdentity defines the sender for outgoing emails.
type SenderIdentity struct {
	Name    string
	Address string
}
