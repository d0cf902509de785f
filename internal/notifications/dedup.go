// Package notifications implements the escalation side of the compliance
// engine: deciding which SLA threshold warnings to send, remembering which
// have already been sent, and rendering the outgoing emails. Delivery itself
// goes through the external mail provider.
package notifications

import (
	"sync"
	"time"

	"trackdesk/internal/types"
)

// DedupRetention is how long a sent-threshold record is remembered. Within
// this window, at most one record ever exists per (task, threshold) pair.
const DedupRetention = 24 * time.Hour

// thresholdRecord is one memorized send.
type thresholdRecord struct {
	threshold float64
	sentAt    time.Time
}

// DedupStore is the process-local table of which (task, threshold) pairs
// have already triggered a notification. Every write sweeps the whole store,
// dropping records past retention and removing tasks left with none; the
// engine additionally registers a periodic sweep job so memory stays bounded
// even when no new notifications are written.
//
// State is owned by the value: construct one per engine instance, never
// share it as a package global.
type DedupStore struct {
	clock     types.Clock
	retention time.Duration

	mu      sync.Mutex
	records map[string][]thresholdRecord
}

// NewDedupStore creates an empty store with the standard retention.
func NewDedupStore(clock types.Clock) *DedupStore {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &DedupStore{
		clock:     clock,
		retention: DedupRetention,
		records:   make(map[string][]thresholdRecord),
	}
}

// Seen reports whether a notification for the (task, threshold) pair has
// already been sent within the retention window.
func (s *DedupStore) Seen(taskID string, threshold float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock.Now().Add(-s.retention)
	for _, rec := range s.records[taskID] {
		if rec.threshold == threshold && rec.sentAt.After(cutoff) {
			return true
		}
	}
	return false
}

// Record memorizes a sent notification and then sweeps the entire store.
// At most one live record exists per (task, threshold) pair: recording a
// pair that is already live keeps the original sentAt, so the retention
// window is never extended by a redundant write.
func (s *DedupStore) Record(taskID string, threshold float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	cutoff := now.Add(-s.retention)
	for _, rec := range s.records[taskID] {
		if rec.threshold == threshold && rec.sentAt.After(cutoff) {
			s.sweepLocked(now)
			return
		}
	}

	s.records[taskID] = append(s.records[taskID], thresholdRecord{
		threshold: threshold,
		sentAt:    now,
	})
	s.sweepLocked(now)
}

// Sweep drops every record older than the retention window and returns how
// many were evicted. Exposed so the engine can run it as its own scheduled
// job.
func (s *DedupStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(s.clock.Now())
}

// Len returns the number of tasks currently holding records.
func (s *DedupStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *DedupStore) sweepLocked(now time.Time) int {
	cutoff := now.Add(-s.retention)
	evicted := 0

	for taskID, recs := range s.records {
		kept := recs[:0]
		for _, rec := range recs {
			if rec.sentAt.After(cutoff) {
				kept = append(kept, rec)
			} else {
				evicted++
			}
		}
		if len(kept) == 0 {
			delete(s.records, taskID)
		} else {
			s.records[taskID] = kept
		}
	}
	return evicted
}
