// Package system provides the wall clock used for site status timestamps.
package system

import "time"

// Clock implements engine.Clock. Timestamps are UTC with millisecond
// precision, matching what the statistics endpoint reports.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time truncated to the millisecond.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
