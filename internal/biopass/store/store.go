package store

import (
	"context"
	"time"
)

// TimeRange is a half-open interval [From, To).  A zero bound is unbounded.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the range.
func (r TimeRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !t.Before(r.To) {
		return false
	}
	return true
}

// CeilMillisecond rounds t up to the next whole millisecond.  Every backend
// persists millisecond timestamps, so a range bound rounded this way selects
// exactly the rows the unrounded bound would.
func CeilMillisecond(t time.Time) time.Time {
	ms := t.Truncate(time.Millisecond)
	if ms.Before(t) {
		ms = ms.Add(time.Millisecond)
	}
	return ms
}

// Pinger is implemented by stores that can report their own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}
