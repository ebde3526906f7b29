package machine

import (
	"time"

	"github.com/qitech/fieldbus-orchestrator/internal/hal"
	"github.com/qitech/fieldbus-orchestrator/internal/units"
)

// TraverseState is the traverse sub-state machine's top-level state.
type TraverseState int

const (
	TraverseNotHomed TraverseState = iota
	TraverseIdle
	TraverseGoingIn
	TraverseGoingOut
	TraverseHoming
	TraverseTraversing
)

type homingState int

const (
	homingInitialize homingState = iota
	homingEscapeEndstop
	homingFindEndstopFineDistancing
	homingFindEndstopFine
	homingFindEndstopCoarse
	homingValidate
)

type traversingState int

const (
	traversingGoingOut traversingState = iota
	traversingIn
	traversingOut
)

const (
	defaultTraversePadding  = 0.88 // mm
	defaultTraverseStepSize = 1.75 // mm
	positionTolerance       = 0.01 // mm
)

// Traverse drives the winder's traverse stepper along the spool between
// two limits, homing against a limit switch on startup: the homing
// protocol, the traversing law, and the GoingIn/GoingOut jog states are
// ported state-for-state.
type Traverse struct {
	motor       hal.StepperVelocity
	limitSwitch hal.DigitalInput

	enabled bool
	position,
	limitInner, limitOuter,
	stepSize, padding units.Length

	state      TraverseState
	homing     homingState
	traversing traversingState
	validateAt time.Time

	fullstep, microstep units.LinearStepConverter

	didChangeState bool
}

// NewTraverse builds a traverse controller over a stepper and limit
// switch, with the 64-microstep EL70x1-family converter pair and
// default limits/padding/step-size for a 35mm-circumference pulley and
// 200-step motor.
func NewTraverse(motor hal.StepperVelocity, limitSwitch hal.DigitalInput) *Traverse {
	const stepsPerRevolution = 200
	const microsteps = 64
	circumference := units.Millimeters(35.0)

	angular := units.MustNewAngularStepConverter(stepsPerRevolution)
	microAngular := units.MustNewAngularStepConverter(stepsPerRevolution * microsteps)
	circular := units.CircularConverterFromCircumference(circumference)

	return &Traverse{
		motor:       motor,
		limitSwitch: limitSwitch,
		limitInner:  units.Millimeters(22.0),
		limitOuter:  units.Millimeters(92.0),
		stepSize:    units.Millimeters(defaultTraverseStepSize),
		padding:     units.Millimeters(defaultTraversePadding),
		state:       TraverseNotHomed,
		fullstep:    units.NewLinearStepConverter(angular, circular),
		microstep:   units.NewLinearStepConverter(microAngular, circular),
	}
}

func (t *Traverse) IsEnabled() bool      { return t.enabled }
func (t *Traverse) SetEnabled(v bool)    { t.enabled = v }
func (t *Traverse) LimitInner() units.Length     { return t.limitInner }
func (t *Traverse) SetLimitInner(v units.Length) { t.limitInner = v }
func (t *Traverse) LimitOuter() units.Length     { return t.limitOuter }
func (t *Traverse) SetLimitOuter(v units.Length) { t.limitOuter = v }
func (t *Traverse) StepSize() units.Length       { return t.stepSize }
func (t *Traverse) SetStepSize(v units.Length)   { t.stepSize = v }
func (t *Traverse) Padding() units.Length        { return t.padding }
func (t *Traverse) SetPadding(v units.Length)    { t.padding = v }

// CurrentPosition reports the traverse's position and whether it is
// meaningful -- a traverse that hasn't homed has no position yet.
func (t *Traverse) CurrentPosition() (units.Length, bool) {
	return t.position, t.IsHomed()
}

func (t *Traverse) ConsumeStateChanged() bool {
	did := t.didChangeState
	t.didChangeState = false
	return did
}

func (t *Traverse) GotoLimitInner() { t.state = TraverseGoingIn }
func (t *Traverse) GotoLimitOuter() { t.state = TraverseGoingOut }
func (t *Traverse) GotoHome() {
	t.state = TraverseHoming
	t.homing = homingInitialize
}
func (t *Traverse) StartTraversing() {
	t.state = TraverseTraversing
	t.traversing = traversingGoingOut
}

func (t *Traverse) IsHomed() bool      { return t.state != TraverseNotHomed }
func (t *Traverse) IsGoingIn() bool    { return t.state == TraverseGoingIn }
func (t *Traverse) IsGoingOut() bool   { return t.state == TraverseGoingOut }
func (t *Traverse) IsGoingHome() bool  { return t.state == TraverseHoming }
func (t *Traverse) IsTraversing() bool { return t.state == TraverseTraversing }

// Update advances the traverse one cycle: refresh its decoded position,
// step its state machine, then command the stepper speed the current
// state calls for.
func (t *Traverse) Update(now time.Time, spoolSpeed units.AngularVelocity) {
	if !t.enabled {
		return
	}
	t.updatePosition()
	t.updateState(now)

	speed := t.velocityFromState(now, spoolSpeed)
	stepsPerSecond := t.fullstep.VelocityToStepsPerSecond(speed)
	_ = t.motor.SetSpeed(stepsPerSecond)
}

func (t *Traverse) updatePosition() {
	steps := float64(t.motor.GetPosition())
	t.position = t.microstep.StepsToDistance(steps)
}

func (t *Traverse) endstopTriggered() bool {
	return t.limitSwitch.Get(0)
}

func calculateTraverseSpeed(spoolSpeed units.AngularVelocity, stepSize units.Length) units.Velocity {
	return units.MillimetersPerSecond(spoolSpeed.RevolutionsPerSecond() * stepSize.Millimeters())
}

func (t *Traverse) speedToPosition(target units.Length, absoluteSpeed units.Velocity) units.Velocity {
	abs := absoluteSpeed.MillimetersPerSecond()
	if abs < 0 {
		abs = -abs
	}
	switch {
	case t.position.Millimeters() > target.Millimeters():
		return units.MillimetersPerSecond(-abs)
	case t.position.Millimeters() < target.Millimeters():
		return units.MillimetersPerSecond(abs)
	default:
		return units.MillimetersPerSecond(0)
	}
}

func (t *Traverse) distanceToPosition(target units.Length) units.Length {
	d := t.position.Millimeters() - target.Millimeters()
	if d < 0 {
		d = -d
	}
	return units.Millimeters(d)
}

func (t *Traverse) isAtPosition(target, tolerance units.Length) bool {
	tol := tolerance.Millimeters()
	if tol < 0 {
		tol = -tol
	}
	lower := target.Millimeters() - tol
	upper := target.Millimeters() + tol
	return t.position.Millimeters() >= lower && t.position.Millimeters() <= upper
}

func (t *Traverse) updateState(now time.Time) {
	before := t.state
	beforeHoming := t.homing
	beforeTraversing := t.traversing

	switch t.state {
	case TraverseNotHomed, TraverseIdle:
	case TraverseGoingIn:
		if t.isAtPosition(t.limitInner, units.Millimeters(positionTolerance)) {
			t.state = TraverseIdle
		}
	case TraverseGoingOut:
		if t.isAtPosition(t.limitOuter, units.Millimeters(positionTolerance)) {
			t.state = TraverseIdle
		}
	case TraverseHoming:
		t.updateHomingState(now)
	case TraverseTraversing:
		t.updateTraversingState()
	}

	t.didChangeState = t.state != before || t.homing != beforeHoming || t.traversing != beforeTraversing
}

func (t *Traverse) updateHomingState(now time.Time) {
	switch t.homing {
	case homingInitialize:
		if t.endstopTriggered() {
			t.homing = homingEscapeEndstop
		} else {
			t.homing = homingFindEndstopCoarse
		}
	case homingEscapeEndstop:
		if !t.endstopTriggered() {
			t.homing = homingFindEndstopFineDistancing
		}
	case homingFindEndstopFineDistancing:
		if !t.endstopTriggered() {
			t.homing = homingFindEndstopFine
		}
	case homingFindEndstopFine:
		if t.endstopTriggered() {
			t.motor.SetPosition(0)
			t.homing = homingValidate
			t.validateAt = now.Add(100 * time.Millisecond)
		}
	case homingFindEndstopCoarse:
		if t.endstopTriggered() {
			t.homing = homingFindEndstopFineDistancing
		}
	case homingValidate:
		if !now.Before(t.validateAt) {
			if t.isAtPosition(units.Millimeters(0), units.Millimeters(positionTolerance)) {
				t.state = TraverseIdle
			} else {
				t.homing = homingInitialize
			}
		}
	}
}

func (t *Traverse) updateTraversingState() {
	switch t.traversing {
	case traversingGoingOut:
		if t.position.Millimeters() >= t.limitOuter.Millimeters()-t.padding.Millimeters() {
			t.traversing = traversingIn
		}
	case traversingIn:
		if t.position.Millimeters() <= t.limitInner.Millimeters()+t.padding.Millimeters() {
			t.traversing = traversingOut
		}
	case traversingOut:
		if t.position.Millimeters() >= t.limitOuter.Millimeters()-t.padding.Millimeters() {
			t.traversing = traversingIn
		}
	}
}

func (t *Traverse) velocityFromState(now time.Time, spoolSpeed units.AngularVelocity) units.Velocity {
	switch t.state {
	case TraverseNotHomed, TraverseIdle:
		return units.MillimetersPerSecond(0)
	case TraverseGoingIn:
		speed := units.MillimetersPerSecond(10)
		if t.distanceToPosition(t.limitInner).Millimeters() > 1.0 {
			speed = units.MillimetersPerSecond(100)
		}
		return t.speedToPosition(t.limitInner, speed)
	case TraverseGoingOut:
		speed := units.MillimetersPerSecond(10)
		if t.distanceToPosition(t.limitOuter).Millimeters() > 1.0 {
			speed = units.MillimetersPerSecond(100)
		}
		return t.speedToPosition(t.limitOuter, speed)
	case TraverseHoming:
		return t.velocityFromHomingState()
	case TraverseTraversing:
		return t.velocityFromTraversingState(spoolSpeed)
	default:
		return units.MillimetersPerSecond(0)
	}
}

func (t *Traverse) velocityFromHomingState() units.Velocity {
	switch t.homing {
	case homingInitialize:
		return units.MillimetersPerSecond(0)
	case homingEscapeEndstop:
		return units.MillimetersPerSecond(10)
	case homingFindEndstopFineDistancing:
		return units.MillimetersPerSecond(2)
	case homingFindEndstopCoarse:
		return units.MillimetersPerSecond(-100)
	case homingFindEndstopFine:
		return units.MillimetersPerSecond(-2)
	case homingValidate:
		return units.MillimetersPerSecond(0)
	default:
		return units.MillimetersPerSecond(0)
	}
}

func (t *Traverse) velocityFromTraversingState(spoolSpeed units.AngularVelocity) units.Velocity {
	const offset = 0.01
	switch t.traversing {
	case traversingGoingOut:
		target := units.Millimeters(t.limitOuter.Millimeters() - t.padding.Millimeters() + offset)
		return t.speedToPosition(target, units.MillimetersPerSecond(100))
	case traversingIn:
		target := units.Millimeters(t.limitInner.Millimeters() + t.padding.Millimeters() - offset)
		absSpeed := calculateTraverseSpeed(spoolSpeed, t.stepSize)
		return t.speedToPosition(target, absSpeed)
	case traversingOut:
		target := units.Millimeters(t.limitOuter.Millimeters() - t.padding.Millimeters() + offset)
		absSpeed := calculateTraverseSpeed(spoolSpeed, t.stepSize)
		return t.speedToPosition(target, absSpeed)
	default:
		return units.MillimetersPerSecond(0)
	}
}
