package world

import "time"

// Clock is injected so decay timing can be driven without real waits.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function into a Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reports wall time in UTC, which keeps persisted timestamps
// comparable after a JSON round trip.
func SystemClock() Clock {
	return ClockFunc(func() time.Time { return time.Now().UTC() })
}
