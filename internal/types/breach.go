package types

import "time"

// BreachCandidate is one SLA-tracked task as seen by a single scan cycle,
// with its deadline arithmetic already resolved. Produced by the breach
// scanner, consumed by the threshold notifier.
type BreachCandidate struct {
	Task Task

	// Budget is the total SLA allowance for the task's priority.
	Budget time.Duration

	// Remaining is deadline minus scan time; negative once breached.
	Remaining time.Duration

	// PercentElapsed is (Budget - Remaining) / Budget. Exceeds 1.0 after
	// the deadline has passed.
	PercentElapsed float64
}

// Breached reports whether the deadline has already passed.
func (b BreachCandidate) Breached() bool {
	return b.Remaining < 0
}
