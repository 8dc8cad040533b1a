package timex

import "time"

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// Clock abstracts the two time operations protocol code performs, so that
// settle waits and ACK-poll deadlines can run against a scripted clock in
// tests instead of wall time.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// Wall is the real-time Clock.
type Wall struct{}

func (Wall) Now() time.Time        { return time.Now() }
func (Wall) Sleep(d time.Duration) { time.Sleep(d) }
