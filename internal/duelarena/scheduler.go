package duelarena

import "time"

// Scheduler runs delayed continuations. The returned stop function cancels a
// task that has not fired yet and reports whether it did so.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

type clockScheduler struct{}

// NewScheduler returns a Scheduler backed by time.AfterFunc
func NewScheduler() Scheduler {
	return clockScheduler{}
}

func (clockScheduler) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}
