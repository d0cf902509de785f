package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"trackdesk/internal/sla"
	"trackdesk/internal/types"
)

// TaskSource abstracts the breach-scan query. The production implementation
// is db.TaskRepository; tests use fixed fakes.
type TaskSource interface {
	// ListSLATracked returns all tasks with an open status, an ACTIVE
	// assignment, and a non-null SLA deadline, with assignee and creator
	// contact info joined.
	ListSLATracked(ctx context.Context) ([]types.Task, error)
}

// Notifier consumes a scan cycle's output and decides what to send.
// Implemented by notifications.ThresholdNotifier.
type Notifier interface {
	// Process evaluates each candidate against its threshold ladder and
	// returns how many notifications were sent.
	Process(ctx context.Context, candidates []types.BreachCandidate) (int, error)
}

// BreachScanner queries in-flight SLA-bearing tasks and computes each one's
// elapsed/remaining position against its deadline.
type BreachScanner struct {
	tasks  TaskSource
	config sla.ConfigSource
	clock  types.Clock
	logger *slog.Logger
}

// NewBreachScanner creates a scanner over the given task and config sources.
func NewBreachScanner(tasks TaskSource, config sla.ConfigSource, clock types.Clock, logger *slog.Logger) *BreachScanner {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BreachScanner{
		tasks:  tasks,
		config: config,
		clock:  clock,
		logger: logger,
	}
}

// Scan runs one scan cycle and returns the candidates in scan order. The SLA
// config is read once per cycle so every task in the cycle is judged against
// the same budgets.
//
// Tasks without a resolvable assignee are skipped entirely: they have no
// notification target and are never flagged, even if technically breaching.
// Tasks whose priority lost its budget since creation (config edited) are
// skipped as well.
func (s *BreachScanner) Scan(ctx context.Context) ([]types.BreachCandidate, error) {
	cfg, err := s.config.SLAHours(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading sla config: %w", err)
	}

	tasks, err := s.tasks.ListSLATracked(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sla-tracked tasks: %w", err)
	}

	now := s.clock.Now()
	candidates := make([]types.BreachCandidate, 0, len(tasks))

	for _, task := range tasks {
		if task.SLADeadline == nil {
			// The query excludes these; guard anyway.
			continue
		}
		if !task.HasAssignee() {
			s.logger.DebugContext(ctx, "skipping task without notification target",
				"task_id", task.ID,
			)
			continue
		}

		hours, ok := cfg.HoursFor(task.Priority)
		if !ok {
			s.logger.InfoContext(ctx, "task has stored deadline but priority is no longer tracked",
				"task_id", task.ID,
				"priority", task.Priority,
				"code", types.ErrCodeConfigAbsent,
			)
			continue
		}

		budget := time.Duration(hours) * time.Hour
		remaining := task.SLADeadline.Sub(now)

		candidates = append(candidates, types.BreachCandidate{
			Task:           task,
			Budget:         budget,
			Remaining:      remaining,
			PercentElapsed: sla.PercentElapsed(*task.SLADeadline, budget, now),
		})
	}

	s.logger.InfoContext(ctx, "breach scan complete",
		"scanned", len(tasks),
		"candidates", len(candidates),
	)
	return candidates, nil
}

// SLAScanJob wires the scanner and notifier into one scheduled job: each
// admitted tick scans and feeds the result straight to the notifier.
type SLAScanJob struct {
	scanner  *BreachScanner
	notifier Notifier
}

// NewSLAScanJob creates the notification job.
func NewSLAScanJob(scanner *BreachScanner, notifier Notifier) *SLAScanJob {
	return &SLAScanJob{scanner: scanner, notifier: notifier}
}

// Name returns the job identifier.
func (j *SLAScanJob) Name() types.JobName { return types.JobScanSLA }

// Run performs one scan-and-notify cycle. The item count is the number of
// notifications sent, not the number of tasks scanned.
func (j *SLAScanJob) Run(ctx context.Context, _ time.Time) (int, error) {
	candidates, err := j.scanner.Scan(ctx)
	if err != nil {
		return 0, err
	}
	return j.notifier.Process(ctx, candidates)
}
