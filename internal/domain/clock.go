package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock stamps each siting run. Tests freeze it with SetClock.
var clock = clockwork.NewRealClock()

// SetClock replaces the run clock; nil restores wall time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	clock = c
}

// Now reads the run clock.
func Now() time.Time {
	return clock.Now()
}
