package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is a package-level time source so tests can freeze "today" via SetClock.
var clock = clockwork.NewRealClock()

// sourceZone is the portal's local time (Taiwan, UTC+8, no DST). Publication
// lag is defined against its calendar, not the operator's.
var sourceZone = time.FixedZone("CST", 8*60*60)

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current instant from the package clock.
func Now() time.Time {
	return clock.Now()
}

// Today returns the current calendar day at the source.
func Today() Date {
	return DateOf(clock.Now().In(sourceZone))
}
