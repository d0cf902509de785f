package types

// Priority ranks a task's urgency. SLA hour budgets and notification
// threshold ladders are keyed by priority.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Priorities lists all priorities in descending order of urgency.
var Priorities = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusOpen       TaskStatus = "open"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusBlocked    TaskStatus = "blocked"
	TaskStatusResolved   TaskStatus = "resolved"
	TaskStatusClosed     TaskStatus = "closed"
)

// OpenStatuses is the set of non-terminal statuses. Only tasks in one of
// these states are eligible for SLA breach scanning.
var OpenStatuses = []TaskStatus{TaskStatusOpen, TaskStatusInProgress, TaskStatusBlocked}

// IsOpen reports whether the status is non-terminal.
func (s TaskStatus) IsOpen() bool {
	switch s {
	case TaskStatusOpen, TaskStatusInProgress, TaskStatusBlocked:
		return true
	}
	return false
}

// AssignmentStatus represents the state of a task's assignment.
// Only ACTIVE assignments are scanned for SLA compliance.
type AssignmentStatus string

const (
	AssignmentActive    AssignmentStatus = "ACTIVE"
	AssignmentPending   AssignmentStatus = "PENDING"
	AssignmentRevoked   AssignmentStatus = "REVOKED"
	AssignmentCompleted AssignmentStatus = "COMPLETED"
)

// JobName identifies a scheduled compliance job.
type JobName string

const (
	JobGenerateRecurring JobName = "generate_recurring"
	JobScanSLA           JobName = "scan_sla"
	JobSweepDedup        JobName = "sweep_dedup"
)

// JobStatus is the terminal outcome recorded in job history.
type JobStatus string

const (
	JobStatusRunning JobStatus = "running"
	JobStatusSuccess JobStatus = "success"
	JobStatusFailed  JobStatus = "failed"
)
