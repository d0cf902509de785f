package sla

import (
	"fmt"
	"sort"

	"trackdesk/internal/types"
)

// Ladder maps each priority to its ascending list of notification thresholds,
// expressed as fractions of the total SLA budget. Higher priorities get more
// rungs so escalation starts earlier and repeats closer to the deadline.
type Ladder map[types.Priority][]float64

// DefaultLadder returns the standard escalation ladder.
func DefaultLadder() Ladder {
	return Ladder{
		types.PriorityCritical: {0.5, 0.75, 0.9},
		types.PriorityHigh:     {0.5, 0.8},
		types.PriorityMedium:   {0.75},
		types.PriorityLow:      {0.25},
	}
}

// Thresholds returns the ascending threshold list for a priority. Unknown
// priorities have no rungs and therefore never notify.
func (l Ladder) Thresholds(p types.Priority) []float64 {
	return l[p]
}

// Validate checks that every rung is in (0, 1] and strictly ascending.
// The notifier's first-crossed-threshold walk depends on ascending order.
func (l Ladder) Validate() error {
	for p, rungs := range l {
		if !sort.Float64sAreSorted(rungs) {
			return fmt.Errorf("thresholds for %s are not ascending: %v", p, rungs)
		}
		for i, t := range rungs {
			if t <= 0 || t > 1 {
				return fmt.Errorf("threshold %v for %s out of range (0, 1]", t, p)
			}
			if i > 0 && rungs[i-1] == t {
				return fmt.Errorf("duplicate threshold %v for %s", t, p)
			}
		}
	}
	return nil
}
