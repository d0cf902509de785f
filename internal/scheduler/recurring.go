package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"trackdesk/internal/sla"
	"trackdesk/internal/types"
)

// GenerationBatchLimit caps how many due templates one tick materializes.
// A backlog larger than this drains over successive ticks.
const GenerationBatchLimit = 100

// TemplateStore abstracts the recurring-template persistence the generator
// needs. Implemented by db.TemplateRepository.
type TemplateStore interface {
	// ListDue returns enabled templates with next_generation_at <= now.
	ListDue(ctx context.Context, now time.Time, limit int) ([]types.RecurringTemplate, error)

	// UpdateNextGeneration advances a template's next_generation_at.
	UpdateNextGeneration(ctx context.Context, id string, next time.Time) error

	// Disable turns a template off, recording why. Used when its cron
	// expression no longer parses.
	Disable(ctx context.Context, id string, reason string) error
}

// TaskWriter abstracts the task insert used during materialization.
// Implemented by db.TaskRepository.
type TaskWriter interface {
	CreateTask(ctx context.Context, task types.NewTask) error
}

// RecurringGenerator materializes concrete tasks from due recurring
// templates. Each materialized task gets its SLA deadline stamped at
// creation time; the template's next_generation_at is then recomputed from
// its cron expression in the engine's timezone.
//
// Missed windows are not replayed: a template that was due three times while
// the process was down generates exactly one task on the next tick, then
// schedules forward from now.
type RecurringGenerator struct {
	templates TemplateStore
	tasks     TaskWriter
	deadlines *sla.Calculator
	parser    cron.Parser
	loc       *time.Location
	logger    *slog.Logger
}

// RecurringGeneratorConfig holds the dependencies for the generator.
type RecurringGeneratorConfig struct {
	Templates TemplateStore
	Tasks     TaskWriter
	Deadlines *sla.Calculator
	Location  *time.Location
	Logger    *slog.Logger
}

// NewRecurringGenerator creates a generator.
func NewRecurringGenerator(cfg RecurringGeneratorConfig) *RecurringGenerator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &RecurringGenerator{
		templates: cfg.Templates,
		tasks:     cfg.Tasks,
		deadlines: cfg.Deadlines,
		parser:    cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		loc:       loc,
		logger:    logger,
	}
}

// Name returns the job identifier.
func (g *RecurringGenerator) Name() types.JobName { return types.JobGenerateRecurring }

// Run materializes every due template once. Per-template failures are logged
// and skipped so one bad template cannot starve the rest; a failed insert
// leaves next_generation_at untouched, so the template is retried on the
// next tick.
func (g *RecurringGenerator) Run(ctx context.Context, now time.Time) (int, error) {
	due, err := g.templates.ListDue(ctx, now, GenerationBatchLimit)
	if err != nil {
		return 0, fmt.Errorf("listing due templates: %w", err)
	}

	if len(due) == 0 {
		g.logger.InfoContext(ctx, "no recurring templates due")
		return 0, nil
	}

	generated := 0
	for _, tpl := range due {
		next, err := g.nextGeneration(tpl.CronExpr, now)
		if err != nil {
			g.logger.ErrorContext(ctx, "template has invalid cron expression, disabling",
				"template_id", tpl.ID,
				"cron_expr", tpl.CronExpr,
				"code", types.ErrCodeInvalidSchedule,
				"error", err,
			)
			if dErr := g.templates.Disable(ctx, tpl.ID, "invalid cron expression"); dErr != nil {
				g.logger.ErrorContext(ctx, "failed to disable broken template",
					"template_id", tpl.ID,
					"error", dErr,
				)
			}
			continue
		}

		if err := g.materialize(ctx, tpl, now); err != nil {
			g.logger.ErrorContext(ctx, "failed to materialize task from template",
				"template_id", tpl.ID,
				"error", err,
			)
			continue
		}
		generated++

		if err := g.templates.UpdateNextGeneration(ctx, tpl.ID, next); err != nil {
			// The task was created. If this update is lost the template is
			// still due next tick and will generate a duplicate; log loudly.
			g.logger.ErrorContext(ctx, "failed to advance template schedule after generation",
				"template_id", tpl.ID,
				"next_generation_at", next.Format(time.RFC3339),
				"error", err,
			)
		}
	}

	g.logger.InfoContext(ctx, "recurring generation complete",
		"due", len(due),
		"generated", generated,
	)
	return generated, nil
}

// materialize copies the template fields into a new task record, stamping
// its SLA deadline from the current configuration.
func (g *RecurringGenerator) materialize(ctx context.Context, tpl types.RecurringTemplate, now time.Time) error {
	task := types.NewTask{
		ID:          uuid.NewString(),
		Title:       tpl.Title,
		Description: tpl.Description,
		Priority:    tpl.Priority,
		CreatorID:   tpl.CreatorID,
		AssigneeID:  tpl.AssigneeID,
		CreatedAt:   now,
		SLADeadline: g.deadlines.Deadline(ctx, tpl.Priority, now),
		TemplateID:  tpl.ID,
	}
	if err := g.tasks.CreateTask(ctx, task); err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}
	return nil
}

// nextGeneration computes the template's next fire time strictly after now,
// in the engine's timezone.
func (g *RecurringGenerator) nextGeneration(expr string, now time.Time) (time.Time, error) {
	sched, err := g.parser.Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(now.In(g.loc)), nil
}
