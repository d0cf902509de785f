// Package scheduler implements the time-driven compliance engine for
// trackdesk: the cron-driven loop, the per-job execution guard, the SLA
// breach scanner, and the recurring task generator. The engine runs in a
// single process; coordination across instances is explicitly out of scope.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"trackdesk/internal/types"
)

// MaxExecutionTime is the duration after which a still-running job execution
// is treated as abandoned by the next tick. It sits safely below the
// one-minute tick interval so a healthy run can never be overridden.
const MaxExecutionTime = 50 * time.Second

// GuardState is a read-only snapshot of a guard, exposed on the ops surface.
type GuardState struct {
	Job       types.JobName `json:"job"`
	Running   bool          `json:"running"`
	StartedAt *time.Time    `json:"started_at,omitempty"`
	LastRunAt *time.Time    `json:"last_run_at,omitempty"`
	LastTook  time.Duration `json:"last_duration_ns,omitempty"`
}

// ExecutionGuard gives "at most one active run" semantics for a single
// scheduled job. It is a best-effort in-process guard, not a distributed
// lock: after a stale-lock override an old execution may still be physically
// running for a brief window, but its context is cancelled and its completion
// can no longer touch guard state.
type ExecutionGuard struct {
	job    types.JobName
	clock  types.Clock
	logger *slog.Logger

	mu        sync.Mutex
	current   *Run
	startedAt time.Time
	lastRunAt time.Time
	lastTook  time.Duration
}

// Run represents one admitted execution. Its Ctx is cancelled if a later
// tick overrides the run as stale; the run should treat cancellation as an
// instruction to abandon its work.
type Run struct {
	Ctx     context.Context
	guard   *ExecutionGuard
	cancel  context.CancelFunc
	started time.Time
}

// NewExecutionGuard creates a guard for the named job. State is owned by the
// returned value; multiple isolated guards can coexist in one process.
func NewExecutionGuard(job types.JobName, clock types.Clock, logger *slog.Logger) *ExecutionGuard {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecutionGuard{
		job:    job,
		clock:  clock,
		logger: logger,
	}
}

// Admit decides whether a tick may run. It returns an admitted Run and true,
// or nil and false when a previous execution is still within its allowance.
//
// A previous execution older than MaxExecutionTime is overridden: a warning
// is logged with the elapsed time, the stale run's context is cancelled, and
// the new tick proceeds as if the old one never happened.
func (g *ExecutionGuard) Admit(ctx context.Context) (*Run, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()

	if g.current != nil {
		elapsed := now.Sub(g.startedAt)
		if elapsed <= MaxExecutionTime {
			g.logger.DebugContext(ctx, "tick skipped, previous execution still running",
				"job", g.job,
				"elapsed", elapsed,
			)
			return nil, false
		}

		g.logger.WarnContext(ctx, "stale execution lock overridden",
			"job", g.job,
			"elapsed", elapsed,
			"max_execution_time", MaxExecutionTime,
			"code", types.ErrCodeStaleLockOverride,
		)
		g.current.cancel()
		g.current = nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	run := &Run{
		Ctx:     runCtx,
		guard:   g,
		cancel:  cancel,
		started: now,
	}
	g.current = run
	g.startedAt = now
	return run, true
}

// Done releases the guard. It must be called exactly once per admitted run,
// in a defer, on success and failure alike. A run that was overridden while
// still executing finds the guard owned by its successor and releases
// nothing.
func (r *Run) Done() {
	g := r.guard
	r.cancel()

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	took := now.Sub(r.started)

	if g.current != r {
		// The lock was reclaimed by a later tick. This run's completion must
		// not clear its successor's state.
		g.logger.WarnContext(r.Ctx, "superseded execution finished after override",
			"job", g.job,
			"took", took,
		)
		return
	}

	g.current = nil
	g.lastRunAt = r.started
	g.lastTook = took
	g.logger.InfoContext(r.Ctx, "job execution finished",
		"job", g.job,
		"took", took,
	)
}

// Snapshot returns the guard's current state for the ops status endpoint.
func (g *ExecutionGuard) Snapshot() GuardState {
	g.mu.Lock()
	defer g.mu.Unlock()

	st := GuardState{
		Job:      g.job,
		Running:  g.current != nil,
		LastTook: g.lastTook,
	}
	if g.current != nil {
		t := g.startedAt
		st.StartedAt = &t
	}
	if !g.lastRunAt.IsZero() {
		t := g.lastRunAt
		st.LastRunAt = &t
	}
	return st
}
