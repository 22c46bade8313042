package lifecycle

import "time"

// CancelFunc stops a scheduled callback. Safe to call more than once
// and after the callback has fired.
type CancelFunc func()

// Scheduler defers a callback by a delay. It is injectable so tests
// can drive a simulated clock instead of real timers.
type Scheduler interface {
	Schedule(delay time.Duration, fn func()) CancelFunc
}

// TimerScheduler is the production Scheduler, backed by time.AfterFunc.
type TimerScheduler struct{}

var _ Scheduler = TimerScheduler{}

func (TimerScheduler) Schedule(delay time.Duration, fn func()) CancelFunc {
	timer := time.AfterFunc(delay, fn)
	return func() {
		timer.Stop()
	}
}
