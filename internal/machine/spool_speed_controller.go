package machine

import (
	"time"

	"github.com/qitech/fieldbus-orchestrator/internal/motion"
	"github.com/qitech/fieldbus-orchestrator/internal/units"
)

const (
	spoolInitialMaxSpeedRPM    = 150.0
	spoolSafetyMaxSpeedRPM     = 600.0
	spoolSpeedWindowDuration   = 5 * time.Second
	spoolSpeedWindowMaxSamples = 10
	spoolTensionArmMaxAngleDeg = 90.0
	spoolTensionArmMinAngleDeg = 20.0

	defaultTensionTarget                   = 0.7
	defaultRadiusLearningRate              = 0.5
	spoolFactorMinCm                       = 1.0
	spoolFactorMaxCm                       = 20.0
	defaultMaxSpeedMultiplier              = 4.0
	defaultAccelerationFactor              = 0.2
	defaultDeaccelerationUrgencyMultiplier = 15.0
	spoolMinAccelerationLimit              = 0.5 // rad/s^2
	initialSpeedFactorCm                   = 4.25
)

// PullerOutput is the slice of a Puller the spool speed controller
// depends on: its currently commanded linear output speed, read
// through the weak-reference coupling rather than a direct pointer.
type PullerOutput interface {
	OutputSpeed() units.Velocity
}

// AdaptiveSpoolSpeedController drives a winder's spool motor to track
// filament production while the spool's effective wind radius grows, by
// learning a speed_factor through proportional feedback on the
// tension-arm angle: tension target 0.7, radius learning rate 0.5,
// factor bounds in centimetres, and an urgency-scaled dynamic
// acceleration limit.
type AdaptiveSpoolSpeedController struct {
	lastSpeed units.AngularVelocity
	enabled   bool

	accel *motion.AccelerationLimitedController // operates in rad/s

	filamentCalc FilamentTensionCalculator
	speedWindow  *motion.MovingTimeWindow

	speedFactorCm       float64
	lastFactorUpdate    time.Time
	hasLastFactorUpdate bool

	tensionTarget                   float64
	radiusLearningRate              float64
	maxSpeedMultiplier              float64
	accelerationFactor              float64
	deaccelerationUrgencyMultiplier float64
}

// NewAdaptiveSpoolSpeedController builds a controller at its default
// tunables, disabled and at zero speed.
func NewAdaptiveSpoolSpeedController() *AdaptiveSpoolSpeedController {
	maxSpeedRadS := units.RevolutionsPerSecond(spoolInitialMaxSpeedRPM / 60.0).RadiansPerSecond()
	return &AdaptiveSpoolSpeedController{
		accel: motion.NewAccelerationLimitedController(0, maxSpeedRadS, 0, 0),
		filamentCalc: NewFilamentTensionCalculator(
			units.Degrees(spoolTensionArmMaxAngleDeg),
			units.Degrees(spoolTensionArmMinAngleDeg),
		),
		speedWindow:                     motion.NewMovingTimeWindow(spoolSpeedWindowDuration, spoolSpeedWindowMaxSamples),
		speedFactorCm:                   initialSpeedFactorCm,
		tensionTarget:                   defaultTensionTarget,
		radiusLearningRate:              defaultRadiusLearningRate,
		maxSpeedMultiplier:              defaultMaxSpeedMultiplier,
		accelerationFactor:              defaultAccelerationFactor,
		deaccelerationUrgencyMultiplier: defaultDeaccelerationUrgencyMultiplier,
	}
}

func (c *AdaptiveSpoolSpeedController) IsEnabled() bool   { return c.enabled }
func (c *AdaptiveSpoolSpeedController) SetEnabled(v bool) { c.enabled = v }

func (c *AdaptiveSpoolSpeedController) Speed() units.AngularVelocity { return c.lastSpeed }

// SetSpeed overrides the controller's current speed directly, also
// reseeding the acceleration controller so the next UpdateSpeed ramps
// smoothly from this value instead of jumping from zero.
func (c *AdaptiveSpoolSpeedController) SetSpeed(speed units.AngularVelocity) {
	c.lastSpeed = speed
	c.accel.Reset(speed.RadiansPerSecond())
}

// SpeedFactor reports the learned speed factor as a length, since the
// source domain expresses it in centimetres.
func (c *AdaptiveSpoolSpeedController) SpeedFactor() units.Length {
	return units.Millimeters(c.speedFactorCm * 10)
}

func (c *AdaptiveSpoolSpeedController) TensionTarget() float64 { return c.tensionTarget }
func (c *AdaptiveSpoolSpeedController) SetTensionTarget(v float64) {
	c.tensionTarget = clampFloat(v, 0, 1)
}

func (c *AdaptiveSpoolSpeedController) RadiusLearningRate() float64 { return c.radiusLearningRate }
func (c *AdaptiveSpoolSpeedController) SetRadiusLearningRate(v float64) {
	if v < 0 {
		v = 0
	}
	c.radiusLearningRate = v
}

func (c *AdaptiveSpoolSpeedController) MaxSpeedMultiplier() float64 { return c.maxSpeedMultiplier }
func (c *AdaptiveSpoolSpeedController) SetMaxSpeedMultiplier(v float64) {
	if v < 0.1 {
		v = 0.1
	}
	c.maxSpeedMultiplier = v
}

func (c *AdaptiveSpoolSpeedController) AccelerationFactor() float64 { return c.accelerationFactor }
func (c *AdaptiveSpoolSpeedController) SetAccelerationFactor(v float64) {
	c.accelerationFactor = clampFloat(v, 0.01, 1.0)
}

func (c *AdaptiveSpoolSpeedController) DeaccelerationUrgencyMultiplier() float64 {
	return c.deaccelerationUrgencyMultiplier
}
func (c *AdaptiveSpoolSpeedController) SetDeaccelerationUrgencyMultiplier(v float64) {
	if v < 1.0 {
		v = 1.0
	}
	c.deaccelerationUrgencyMultiplier = v
}

// UpdateSpeed runs one control cycle: derive a target speed from the
// tension-arm reading, apply enable/disable, ramp it through the
// dynamically-limited acceleration controller, and clamp to the hardware
// safety ceiling.
func (c *AdaptiveSpoolSpeedController) UpdateSpeed(t time.Time, tensionArm *TensionArm, puller PullerOutput) units.AngularVelocity {
	target := c.calculateSpeed(t, tensionArm, puller)

	enabledSpeed := target
	if !c.enabled {
		enabledSpeed = units.RevolutionsPerSecond(0)
	}

	accelerated := c.accelerateSpeed(enabledSpeed, puller, t)
	c.lastSpeed = accelerated

	return c.clampSpeed(accelerated)
}

func (c *AdaptiveSpoolSpeedController) calculateSpeed(t time.Time, tensionArm *TensionArm, puller PullerOutput) units.AngularVelocity {
	const minSpeed = 0.0
	maxSpeed := absFloat(c.maxSpeed(puller).RadiansPerSecond())

	fraction, clamp := clampRevolution(tensionArm.GetAngle(), c.filamentCalc.MaxAngle(), c.filamentCalc.MinAngle())
	if clamp == tensionClampMin || clamp == tensionClampMax {
		return units.RadiansPerSecond(minSpeed)
	}

	// 1.0 means maximum tension (low angle, low speed); 0.0 means
	// minimum tension (high angle, high speed).
	tension := c.filamentCalc.CalcFilamentTension(fraction)
	c.updateSpeedFactor(tension, t)

	return units.RadiansPerSecond(scale(1-tension, minSpeed, maxSpeed))
}

func (c *AdaptiveSpoolSpeedController) accelerateSpeed(target units.AngularVelocity, puller PullerOutput, t time.Time) units.AngularVelocity {
	targetRadS := target.RadiansPerSecond()
	maxSpeedRadS := c.maxSpeed(puller).RadiansPerSecond()

	base := maxSpeedRadS * c.accelerationFactor

	urgency := 1.0
	if absFloat(targetRadS) < 0.1 {
		urgency = c.deaccelerationUrgencyMultiplier * (1.0 / (absFloat(targetRadS) + 0.01))
	}

	accelLimit := base * urgency
	if accelLimit < spoolMinAccelerationLimit {
		accelLimit = spoolMinAccelerationLimit
	}

	c.accel.MaxAcc = accelLimit
	c.accel.MinAcc = -accelLimit

	newSpeed := c.accel.Update(targetRadS, t)
	c.speedWindow.Update(newSpeed, t)

	return units.RadiansPerSecond(newSpeed)
}

func (c *AdaptiveSpoolSpeedController) clampSpeed(speed units.AngularVelocity) units.AngularVelocity {
	safetyMax := units.RevolutionsPerSecond(spoolSafetyMaxSpeedRPM / 60.0)
	switch {
	case speed.RadiansPerSecond() < 0:
		return units.RevolutionsPerSecond(0)
	case speed.RadiansPerSecond() > safetyMax.RadiansPerSecond():
		return safetyMax
	default:
		return speed
	}
}

// updateSpeedFactor applies one step of the proportional-gain learning
// law: positive tension error (too taut) raises the factor, which lowers
// the output speed ceiling next cycle; negative error (too slack) lowers
// it, which raises the ceiling.
func (c *AdaptiveSpoolSpeedController) updateSpeedFactor(tension float64, t time.Time) {
	if !c.hasLastFactorUpdate {
		c.lastFactorUpdate = t
		c.hasLastFactorUpdate = true
		return
	}
	deltaT := t.Sub(c.lastFactorUpdate).Seconds()

	tensionError := tension - c.tensionTarget
	gain := c.radiusLearningRate * deltaT
	change := tensionError * gain

	newFactor := c.speedFactorCm + change
	c.speedFactorCm = clampFloat(newFactor, spoolFactorMinCm, spoolFactorMaxCm)

	c.lastFactorUpdate = t
}

func (c *AdaptiveSpoolSpeedController) maxSpeed(puller PullerOutput) units.AngularVelocity {
	pullerSpeedMPS := puller.OutputSpeed().MillimetersPerSecond() / 1000.0
	speedFactorM := c.speedFactorCm / 100.0
	if speedFactorM == 0 {
		speedFactorM = 1e-9
	}
	speed := (pullerSpeedMPS / speedFactorM) * c.maxSpeedMultiplier
	return units.RadiansPerSecond(speed)
}

// Reset returns the controller to its power-on state: zero speed,
// default tunables, and a forgotten learning history.
func (c *AdaptiveSpoolSpeedController) Reset() {
	c.lastSpeed = units.RevolutionsPerSecond(0)
	c.accel.Reset(0)
	c.speedFactorCm = initialSpeedFactorCm
	c.hasLastFactorUpdate = false
	c.tensionTarget = defaultTensionTarget
	c.radiusLearningRate = defaultRadiusLearningRate
	c.maxSpeedMultiplier = defaultMaxSpeedMultiplier
	c.accelerationFactor = defaultAccelerationFactor
	c.deaccelerationUrgencyMultiplier = defaultDeaccelerationUrgencyMultiplier
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
