package billing

import "time"

// Clock abstracts wall-clock time so grace-period timers are testable.
type Clock interface {
	Now() time.Time
	// AfterFunc schedules f after d and returns a cancel func.
	AfterFunc(d time.Duration, f func()) func()
	Sleep(d time.Duration)
}

// SystemClock is the real-time Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

func (SystemClock) AfterFunc(d time.Duration, f func()) func() {
	t := time.AfterFunc(d, f)
	return func() { t.Stop() }
}

func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }
