// Package motion implements the acceleration- and jerk-limited speed
// controllers the machine runtimes drive their steppers and VFDs with.
package motion

import (
	"math"
	"time"
)

// AccelerationLimitedController is the 1st-order speed controller: given a
// target speed it ramps the output at no more than maxAcc (speeding up) or
// minAcc (slowing down, minAcc is typically negative) per second, clamped
// to [minSpeed, maxSpeed]. Zero value is ready to use; the first Update
// call after construction sees dt == 0 (no time has passed yet).
type AccelerationLimitedController struct {
	MinSpeed, MaxSpeed float64
	MinAcc, MaxAcc     float64

	last   float64
	lastT  time.Time
	hasLast bool
}

// NewAccelerationLimitedController builds a controller starting at speed
// 0, clamped to the given speed and acceleration limits.
func NewAccelerationLimitedController(minSpeed, maxSpeed, minAcc, maxAcc float64) *AccelerationLimitedController {
	return &AccelerationLimitedController{MinSpeed: minSpeed, MaxSpeed: maxSpeed, MinAcc: minAcc, MaxAcc: maxAcc}
}

// Update advances the controller by one step toward target, given the
// current Instant now. The caller supplies now; wall-clock time is
// never read internally.
func (c *AccelerationLimitedController) Update(target float64, now time.Time) float64 {
	var dt float64
	if c.hasLast {
		dt = now.Sub(c.lastT).Seconds()
		if dt < 0 {
			dt = 0
		}
	}

	acc := c.MinAcc
	if target > c.last {
		acc = c.MaxAcc
	}
	change := acc * dt

	next := c.last + change
	// Never overshoot the target.
	if (target > c.last && next > target) || (target < c.last && next < target) {
		next = target
	}
	if target == c.last {
		next = c.last
	}

	next = clamp(next, c.MinSpeed, c.MaxSpeed)

	c.last = next
	c.lastT = now
	c.hasLast = true
	return next
}

// Last returns the controller's current output without advancing it.
func (c *AccelerationLimitedController) Last() float64 { return c.last }

// Reset clears the controller's internal time/speed memory, restarting it
// at the given speed.
func (c *AccelerationLimitedController) Reset(speed float64) {
	c.last = clamp(speed, c.MinSpeed, c.MaxSpeed)
	c.hasLast = false
}

// SeedState primes the controller's (last speed, last Instant) pair
// directly, so the next Update computes dt relative to `at` instead of
// treating it as the first call. Used by tests that need an exact dt.
func (c *AccelerationLimitedController) SeedState(speed float64, at time.Time) {
	c.last = speed
	c.lastT = at
	c.hasLast = true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func maxAbs(a, b float64) float64 {
	return math.Max(math.Abs(a), math.Abs(b))
}
