package scheduler

import "time"

// Timer fires at most once per interval, measured from its previous fire.
type Timer struct {
	name     string
	interval time.Duration
	last     time.Time
}

// NewTimer returns a Timer whose first fire is one interval after start.
func NewTimer(name string, interval time.Duration, start time.Time) *Timer {
	return &Timer{name: name, interval: interval, last: start}
}

// Due reports whether at least one interval has elapsed since the last fire,
// and if so records now as the new fire time.
func (t *Timer) Due(now time.Time) bool {
	if now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}

// Name returns the timer's label.
func (t *Timer) Name() string {
	return t.name
}

// Interval returns the minimum spacing between fires.
func (t *Timer) Interval() time.Duration {
	return t.interval
}
