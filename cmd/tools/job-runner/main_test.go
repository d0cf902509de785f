package main

import (
	"context"
	"math"
	"testing"
	"time"

	"trackdesk/internal/scheduler"
	"trackdesk/internal/types"
)

type stubTaskSource struct {
	tasks []types.Task
}

func (s *stubTaskSource) ListSLATracked(_ context.Context) ([]types.Task, error) {
	return s.tasks, nil
}

type stubConfigSource struct {
	cfg *types.SLAConfig
}

func (s *stubConfigSource) SLAHours(_ context.Context) (*types.SLAConfig, error) {
	return s.cfg, nil
}

func TestFixedClock(t *testing.T) {
	ref := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := fixedClock{t: ref}

	if !clock.Now().Equal(ref) {
		t.Fatalf("Now() = %v, want pinned reference time %v", clock.Now(), ref)
	}
}

func TestScanEvaluatesAtReferenceTime(t *testing.T) {
	// A reference time far in the past: with the wall clock the task below
	// would read as long breached; at the reference time it is 75% elapsed.
	ref := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	deadline := ref.Add(1 * time.Hour)
	hours := 4

	assigneeID := "user-1"
	scanner := scheduler.NewBreachScanner(
		&stubTaskSource{tasks: []types.Task{{
			ID:               "t1",
			Priority:         types.PriorityCritical,
			Status:           types.TaskStatusOpen,
			AssignmentStatus: types.AssignmentActive,
			SLADeadline:      &deadline,
			AssigneeID:       &assigneeID,
			AssigneeEmail:    "assignee@example.com",
			CreatorID:        "user-2",
		}}},
		&stubConfigSource{cfg: &types.SLAConfig{CriticalHours: &hours}},
		fixedClock{t: ref},
		nil,
	)

	candidates, err := scanner.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}

	c := candidates[0]
	if c.Breached() {
		t.Error("task must not read as breached at the reference time")
	}
	if math.Abs(c.PercentElapsed-0.75) > 1e-9 {
		t.Errorf("PercentElapsed = %v, want 0.75 at the reference time", c.PercentElapsed)
	}
	if c.Remaining != 1*time.Hour {
		t.Errorf("Remaining = %v, want 1h at the reference time", c.Remaining)
	}
}
