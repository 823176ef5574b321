package tracker

import "time"

// Clock schedules the dwell and flush timers. AfterFunc returns the timer's
// stop function, which reports whether the call prevented f from running.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

func (RealClock) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

func NewClock() Clock {
	return RealClock{}
}
