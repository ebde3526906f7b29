// Package pid implements a clamping PID controller with
// conditional-integration anti-windup and an Åström-Hägglund relay
// auto-tuner.
package pid

import "time"

// Config holds a PID controller's tunable gains and output limits.
type Config struct {
	Kp, Ki, Kd float64
	MinOutput  float64
	MaxOutput  float64
}

// Controller is a time-agnostic clamping PID: each Update call is given
// the elapsed time explicitly (via an Instant, never read from the wall
// clock internally), integrates error only while doing so would not
// push the output past its clamp (conditional integration, the simplest
// effective anti-windup scheme), and clamps its output to
// [MinOutput, MaxOutput]. The integrator never winds up while the
// output is saturated in the same direction.
type Controller struct {
	cfg Config

	integral     float64
	prevError    float64
	lastT        time.Time
	hasLast      bool
}

// New builds a PID controller with zero integral and derivative memory.
func New(cfg Config) *Controller {
	return &Controller{cfg: cfg}
}

// SetGains updates the controller's proportional, integral and
// derivative gains in place, without touching its integral/derivative
// memory.
func (c *Controller) SetGains(kp, ki, kd float64) {
	c.cfg.Kp, c.cfg.Ki, c.cfg.Kd = kp, ki, kd
}

// Reset clears the controller's integral and derivative memory, as if
// freshly constructed.
func (c *Controller) Reset() {
	c.integral = 0
	c.prevError = 0
	c.hasLast = false
}

// Update advances the controller by one step given the current error
// (setpoint - processValue) and the current Instant, returning the
// clamped control output.
func (c *Controller) Update(errVal float64, now time.Time) float64 {
	var dt float64
	if c.hasLast {
		dt = now.Sub(c.lastT).Seconds()
		if dt < 0 {
			dt = 0
		}
	}

	proportional := c.cfg.Kp * errVal

	derivative := 0.0
	if c.hasLast && dt > 0 {
		derivative = c.cfg.Kd * (errVal - c.prevError) / dt
	}

	// Conditional integration: only accumulate the integral term if the
	// unclamped output is not already saturated, or if integrating would
	// pull the output back toward the valid range.
	candidateIntegral := c.integral + errVal*dt
	unclamped := proportional + c.cfg.Ki*candidateIntegral + derivative
	if unclamped > c.cfg.MaxOutput && errVal > 0 {
		// Already pegged high and error would push it higher: hold.
	} else if unclamped < c.cfg.MinOutput && errVal < 0 {
		// Already pegged low and error would push it lower: hold.
	} else {
		c.integral = candidateIntegral
	}

	output := proportional + c.cfg.Ki*c.integral + derivative
	output = clamp(output, c.cfg.MinOutput, c.cfg.MaxOutput)

	c.prevError = errVal
	c.lastT = now
	c.hasLast = true
	return output
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
