package room

import "time"

// Scheduler abstracts deferred execution so the persistence timer can
// be driven manually in tests. The returned cancel func is safe to
// call after the callback fired.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) (cancel func())
}

type clockScheduler struct{}

// NewClockScheduler returns the wall-clock Scheduler used in
// production.
func NewClockScheduler() Scheduler {
	return clockScheduler{}
}

func (clockScheduler) Schedule(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}
