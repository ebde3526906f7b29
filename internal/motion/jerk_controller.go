package motion

import "time"

// JerkLimitedController is the 2nd-order speed controller: the
// acceleration-limited controller moved one rung up the derivative
// ladder, so "position->speed->acceleration" becomes
// "speed->acceleration->jerk". An AccelerationLimitedController
// operating on acceleration (bounded by jerk) feeds a braking-aware
// speed integrator -- the same "never overshoot, clamp to limits"
// contract as
// the 1st-order controller, applied twice.
type JerkLimitedController struct {
	MinSpeed, MaxSpeed float64
	MinAcc, MaxAcc     float64
	MinJerk, MaxJerk   float64

	accel *AccelerationLimitedController // tracks acceleration, limited by jerk

	speed   float64
	lastT   time.Time
	hasLast bool
}

// NewJerkLimitedController builds a controller starting at speed 0 and
// acceleration 0.
func NewJerkLimitedController(minSpeed, maxSpeed, minAcc, maxAcc, minJerk, maxJerk float64) *JerkLimitedController {
	return &JerkLimitedController{
		MinSpeed: minSpeed, MaxSpeed: maxSpeed,
		MinAcc: minAcc, MaxAcc: maxAcc,
		MinJerk: minJerk, MaxJerk: maxJerk,
		accel: NewAccelerationLimitedController(minAcc, maxAcc, minJerk, maxJerk),
	}
}

// Update advances the controller by one step toward target speed, given
// the current Instant now.
func (c *JerkLimitedController) Update(target float64, now time.Time) float64 {
	var dt float64
	if c.hasLast {
		dt = now.Sub(c.lastT).Seconds()
		if dt < 0 {
			dt = 0
		}
	}

	accel := c.accel.Last()
	accelTarget := c.brakingAwareAccelTarget(target, accel)
	accel = c.accel.Update(accelTarget, now)

	next := c.speed + accel*dt
	if (target > c.speed && next > target) || (target < c.speed && next < target) {
		next = target
	}
	if target == c.speed {
		next = c.speed
	}
	next = clamp(next, c.MinSpeed, c.MaxSpeed)

	c.speed = next
	c.lastT = now
	c.hasLast = true
	return next
}

// brakingAwareAccelTarget decides whether the inner acceleration stage
// should keep driving toward MaxAcc/MinAcc or start ramping back toward
// zero, so that acceleration reaches zero at (about) the same moment
// speed reaches target -- the jerk-limited analogue of the overshoot
// check in AccelerationLimitedController.Update, one derivative up.
func (c *JerkLimitedController) brakingAwareAccelTarget(target, accel float64) float64 {
	diff := target - c.speed
	if diff == 0 {
		return 0
	}

	jerkMagnitude := c.MaxJerk
	if accel < 0 {
		jerkMagnitude = -c.MinJerk
	}
	if jerkMagnitude == 0 {
		jerkMagnitude = maxAbs(c.MinJerk, c.MaxJerk)
	}

	// Speed still gained while ramping the current acceleration down to
	// zero at jerkMagnitude, same shape as a stopping-distance formula
	// with acceleration standing in for speed and jerk for acceleration.
	brakingDelta := accel * accel / (2 * jerkMagnitude)
	if accel < 0 {
		brakingDelta = -brakingDelta
	}
	projected := c.speed + brakingDelta

	if diff > 0 {
		if projected < target {
			return c.MaxAcc
		}
		return 0
	}
	if projected > target {
		return c.MinAcc
	}
	return 0
}

// Last returns the controller's current output speed without advancing
// it.
func (c *JerkLimitedController) Last() float64 { return c.speed }

// Acceleration returns the controller's current internal acceleration
// state.
func (c *JerkLimitedController) Acceleration() float64 { return c.accel.Last() }

// Reset restarts the controller at the given speed with zero
// acceleration.
func (c *JerkLimitedController) Reset(speed float64) {
	c.speed = clamp(speed, c.MinSpeed, c.MaxSpeed)
	c.hasLast = false
	c.accel.Reset(0)
}
