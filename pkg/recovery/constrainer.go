package recovery

import (
	"time"

	"golang.org/x/time/rate"
)

// Type is the flavor of a recovery launch.
type Type string

const (
	// Transient recoveries relaunch on existing reservations.
	Transient Type = "transient"

	// Permanent recoveries destroy the old reservation and rebuild.
	Permanent Type = "permanent"
)

// LaunchConstrainer rate-limits recovery launches across one manager.
type LaunchConstrainer interface {
	// CanLaunch reports whether a recovery launch of the given type may
	// proceed now.
	CanLaunch(t Type) bool

	// LaunchHappened records that a recovery launch of the given type was
	// dispatched.
	LaunchHappened(t Type)
}

// TimedLaunchConstrainer enforces a minimum delay between destructive
// (permanent) recovery launches. Transient recoveries are unconstrained.
type TimedLaunchConstrainer struct {
	limiter *rate.Limiter
}

// NewTimedLaunchConstrainer creates a constrainer with the given minimum
// delay between destructive launches.
func NewTimedLaunchConstrainer(minDelay time.Duration) *TimedLaunchConstrainer {
	return &TimedLaunchConstrainer{
		limiter: rate.NewLimiter(rate.Every(minDelay), 1),
	}
}

func (c *TimedLaunchConstrainer) CanLaunch(t Type) bool {
	if t != Permanent {
		return true
	}
	return c.limiter.Tokens() >= 1
}

func (c *TimedLaunchConstrainer) LaunchHappened(t Type) {
	if t == Permanent {
		c.limiter.Allow()
	}
}
