package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"trackdesk/internal/types"
)

// FallbackSpec is the safe default cadence used when a job's configured cron
// expression does not parse. Once per day keeps the job alive without letting
// a typo hammer the system.
const FallbackSpec = "@daily"

// Job is one scheduled unit of work. Run receives the tick's reference time
// and returns how many items it processed, for job history and logging.
type Job interface {
	Name() types.JobName
	Run(ctx context.Context, now time.Time) (items int, err error)
}

// JobFunc adapts a bare function to the Job interface.
type JobFunc struct {
	JobName types.JobName
	Fn      func(ctx context.Context, now time.Time) (int, error)
}

// Name returns the job's identifier.
func (j JobFunc) Name() types.JobName { return j.JobName }

// Run invokes the wrapped function.
func (j JobFunc) Run(ctx context.Context, now time.Time) (int, error) { return j.Fn(ctx, now) }

// HistoryRecorder persists one row per admitted job execution. Recording
// failures are logged and never fail the tick; a nil recorder disables
// history entirely.
type HistoryRecorder interface {
	// Start inserts a running entry and returns its ID.
	Start(ctx context.Context, job types.JobName) (int64, error)
	// Finish closes the entry with the outcome.
	Finish(ctx context.Context, id int64, status types.JobStatus, items int, jobErr error) error
}

// EngineConfig holds the dependencies for creating an Engine.
type EngineConfig struct {
	// Timezone is the IANA zone all cron expressions are evaluated in.
	// Empty means UTC.
	Timezone string
	Clock    types.Clock
	History  HistoryRecorder
	Logger   *slog.Logger
}

// Engine drives the registered jobs on their cron cadence. Each job owns an
// ExecutionGuard, so ticks of one job are mutually exclusive while distinct
// jobs run independently and may overlap. Missed ticks during downtime are
// not backfilled; jobs catch up by observing current state on the next tick.
type Engine struct {
	cron   *cron.Cron
	parser cron.Parser
	loc    *time.Location
	clock  types.Clock
	hist   HistoryRecorder
	logger *slog.Logger

	guards []*ExecutionGuard
}

// NewEngine creates an Engine in the configured timezone. An unknown zone is
// an error: scheduling in the wrong timezone silently shifts every deadline
// evaluation, so this fails fast instead of falling back.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}

	loc := time.UTC
	if cfg.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInvalidSchedule,
				"unknown scheduler timezone "+cfg.Timezone, err)
		}
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

	return &Engine{
		cron:   cron.New(cron.WithParser(parser), cron.WithLocation(loc)),
		parser: parser,
		loc:    loc,
		clock:  clock,
		hist:   cfg.History,
		logger: logger,
	}, nil
}

// Location returns the timezone the engine schedules in.
func (e *Engine) Location() *time.Location { return e.loc }

// Register adds a job on the given 5-field cron spec. A spec that does not
// parse fails closed: the job is still registered, on FallbackSpec, and an
// error is logged. Registration itself only fails if even the fallback is
// rejected, which would be a programming error.
func (e *Engine) Register(spec string, job Job) error {
	guard := NewExecutionGuard(job.Name(), e.clock, e.logger)

	if _, err := e.parser.Parse(spec); err != nil {
		e.logger.Error("invalid cron expression, falling back to safe default",
			"job", job.Name(),
			"spec", spec,
			"fallback", FallbackSpec,
			"code", types.ErrCodeInvalidSchedule,
			"error", err,
		)
		spec = FallbackSpec
	}

	_, err := e.cron.AddFunc(spec, func() {
		e.tick(guard, job)
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeInvalidSchedule,
			"failed to register job "+string(job.Name()), err)
	}

	e.guards = append(e.guards, guard)
	e.logger.Info("job registered",
		"job", job.Name(),
		"spec", spec,
		"tz", e.loc.String(),
	)
	return nil
}

// Start begins firing ticks. It returns immediately; job executions run on
// the cron scheduler's goroutines.
func (e *Engine) Start() {
	e.cron.Start()
	e.logger.Info("compliance engine started",
		"jobs", len(e.guards),
		"tz", e.loc.String(),
	)
}

// Stop stops firing new ticks and waits for in-flight executions to finish,
// or for ctx to expire, whichever comes first.
func (e *Engine) Stop(ctx context.Context) {
	stopped := e.cron.Stop()
	select {
	case <-stopped.Done():
		e.logger.Info("compliance engine stopped")
	case <-ctx.Done():
		e.logger.Warn("compliance engine stop timed out with executions in flight")
	}
}

// Status returns a snapshot of every registered job's guard state.
func (e *Engine) Status() []GuardState {
	states := make([]GuardState, 0, len(e.guards))
	for _, g := range e.guards {
		states = append(states, g.Snapshot())
	}
	return states
}

// tick is the per-fire entry point: admit through the guard, record history,
// run the job, and always release the guard. Nothing a job returns
// propagates; every failure terminates in a log line on this tick.
func (e *Engine) tick(guard *ExecutionGuard, job Job) {
	ctx := context.Background()

	run, admitted := guard.Admit(ctx)
	if !admitted {
		return
	}
	defer run.Done()

	now := e.clock.Now().In(e.loc)

	var histID int64
	if e.hist != nil {
		var err error
		histID, err = e.hist.Start(run.Ctx, job.Name())
		if err != nil {
			e.logger.ErrorContext(run.Ctx, "failed to record job start",
				"job", job.Name(),
				"error", err,
			)
			histID = 0
		}
	}

	items, err := job.Run(run.Ctx, now)
	if err != nil {
		e.logger.ErrorContext(run.Ctx, "job execution failed",
			"job", job.Name(),
			"items", items,
			"error", err,
		)
	}

	if e.hist != nil && histID != 0 {
		status := types.JobStatusSuccess
		if err != nil {
			status = types.JobStatusFailed
		}
		if hErr := e.hist.Finish(run.Ctx, histID, status, items, err); hErr != nil {
			e.logger.ErrorContext(run.Ctx, "failed to record job finish",
				"job", job.Name(),
				"error", hErr,
			)
		}
	}
}
