package types

import "time"

// Clock abstracts time for testability. Every component doing elapsed-time
// arithmetic (guard, scanner, dedup store) takes a Clock so tests can drive
// it deterministically.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }
