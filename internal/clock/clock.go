package clock

import "time"

// Clock is the time source injected into every time-dependent component.
// Params: none.
// Returns: current moment per the implementation's notion of now.
type Clock interface {
	Now() time.Time
}

// RealClock is the production time source backed by the system clock.
// Params: none.
// Returns: wall-clock readings in UTC.
type RealClock struct{}

// Now reads the system clock.
// Params: none.
// Returns: current time normalized to UTC.
func (RealClock) Now() time.Time {
	return time.Now().UTC()
}
