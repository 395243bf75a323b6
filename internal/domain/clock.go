package domain

import "time"

// Clock abstracts wall-clock reads so window rotation and the temporal
// multiplier can be frozen in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the real wall clock.
func SystemClock() Clock { return systemClock{} }
