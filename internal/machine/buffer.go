package machine

import (
	"time"

	"github.com/qitech/fieldbus-orchestrator/internal/cycle"
	"github.com/qitech/fieldbus-orchestrator/internal/hal"
	"github.com/qitech/fieldbus-orchestrator/internal/motion"
	"github.com/qitech/fieldbus-orchestrator/internal/registry"
	"github.com/qitech/fieldbus-orchestrator/internal/units"
)

// BufferState is the buffer lift's top-level state.
type BufferState int

const (
	BufferNotHomed BufferState = iota
	BufferIdle
	BufferGoingUp
	BufferGoingDown
	BufferHoming
	BufferBuffering
)

type bufferHomingState int

const (
	bufferHomingInitialize bufferHomingState = iota
	bufferHomingEscapeEndstop
	bufferHomingFindEndstopFineDistancing
	bufferHomingFindEndstopFine
	bufferHomingFindEndstopCoarse
	bufferHomingValidate
)

const (
	defaultSpoolAmount   = 13
	bufferPositionTolerance = 0.1 // mm
)

// Buffer is a lift-position controller: a dancer arm
// that keeps slack between an upstream and downstream line speed by
// moving at the speed differential divided by (2*spoolAmount-1), homing
// against a limit switch
// the same way the winder's Traverse does.
type Buffer struct {
	id cycle.MachineID
	eventsMixin

	motor       hal.StepperVelocity
	limitSwitch hal.DigitalInput
	converter   units.LinearStepConverter

	enabled bool
	forward bool

	position  units.Length
	limitTop  units.Length
	spoolAmount float64

	state      BufferState
	homing     bufferHomingState
	validateAt time.Time

	currentInputSpeed, targetOutputSpeed, liftSpeed units.Velocity

	accel *motion.AccelerationLimitedController

	upstreamRef   registry.WeakRef
	downstreamRef registry.WeakRef
}

// NewBuffer builds a buffer lift over its stepper and limit switch,
// reading its upstream (feed) and downstream (puller) speeds through
// weak references, since those peers are independent machines in this
// runtime instead of values pushed in from an enclosing winder struct.
func NewBuffer(id cycle.MachineID, motor hal.StepperVelocity, limitSwitch hal.DigitalInput, converter units.LinearStepConverter, limitTop units.Length, upstream, downstream registry.WeakRef) *Buffer {
	return &Buffer{
		id:          id,
		motor:       motor,
		limitSwitch: limitSwitch,
		converter:   converter,
		limitTop:    limitTop,
		spoolAmount: defaultSpoolAmount,
		forward:     true,
		accel:       motion.NewAccelerationLimitedController(-100, 100, -10, 10),
		upstreamRef: upstream,
		downstreamRef: downstream,
	}
}

func (b *Buffer) ID() cycle.MachineID { return b.id }

func (b *Buffer) IsEnabled() bool { return b.enabled }
func (b *Buffer) SetEnabled(v bool) {
	b.enabled = v
	b.motor.SetEnabled(v)
}
func (b *Buffer) SetForward(v bool) { b.forward = v }

func (b *Buffer) CurrentInputSpeed() units.Velocity  { return b.currentInputSpeed }
func (b *Buffer) TargetOutputSpeed() units.Velocity  { return b.targetOutputSpeed }
func (b *Buffer) LiftSpeed() units.Velocity          { return b.liftSpeed }

func (b *Buffer) GotoHome() {
	b.state = BufferHoming
	b.homing = bufferHomingInitialize
}
func (b *Buffer) StartBuffering() { b.state = BufferBuffering }

func (b *Buffer) IsHomed() bool    { return b.state != BufferNotHomed }
func (b *Buffer) IsFilling() bool  { return b.state == BufferGoingUp }
func (b *Buffer) IsEmptying() bool { return b.state == BufferGoingDown }
func (b *Buffer) IsGoingHome() bool { return b.state == BufferHoming }
func (b *Buffer) IsBuffering() bool { return b.state == BufferBuffering }

// calculateLiftSpeed: input_speed - output_speed, spread over
// twice the spool count less one (the lift's pulley sees both strands of
// every wrap but one).
func (b *Buffer) calculateLiftSpeed() units.Velocity {
	delta := b.currentInputSpeed.MillimetersPerSecond() - b.targetOutputSpeed.MillimetersPerSecond()
	b.liftSpeed = units.MillimetersPerSecond(delta / (2*b.spoolAmount - 1))
	return b.liftSpeed
}

// Act reads the upstream/downstream peers' speeds through their weak
// references for this cycle only, advances the homing/position state
// machine, and commands the lift stepper.
func (b *Buffer) Act(now time.Time) {
	if up, ok := b.upstreamRef.Upgrade(); ok {
		if speeder, ok := up.(interface{ OutputSpeed() units.Velocity }); ok {
			b.currentInputSpeed = speeder.OutputSpeed()
		}
	}
	if down, ok := b.downstreamRef.Upgrade(); ok {
		if speeder, ok := down.(interface{ OutputSpeed() units.Velocity }); ok {
			b.targetOutputSpeed = speeder.OutputSpeed()
		}
	}

	if b.enabled {
		b.syncPosition()
		b.updateState(now)

		speed := b.velocityFromState(now)
		_ = b.motor.SetSpeed(b.converter.VelocityToStepsPerSecond(speed))
	}

	b.publishState(bufferState{
		Enabled:   b.enabled,
		Homed:     b.IsHomed(),
		Buffering: b.IsBuffering(),
	})
	b.publishLiveValues(bufferLiveValues{
		PositionMM:   b.position.Millimeters(),
		LiftSpeedMMs: b.liftSpeed.MillimetersPerSecond(),
	})
}

// bufferState is the outbound, latched State snapshot.
type bufferState struct {
	Enabled   bool `json:"enabled"`
	Homed     bool `json:"homed"`
	Buffering bool `json:"buffering"`
}

// bufferLiveValues is the outbound, continuous LiveValues snapshot.
type bufferLiveValues struct {
	PositionMM   float64 `json:"position_mm"`
	LiftSpeedMMs float64 `json:"lift_speed_mms"`
}

func (b *Buffer) syncPosition() {
	steps := float64(b.motor.GetPosition())
	b.position = b.converter.StepsToDistance(steps)
}

func (b *Buffer) endstopTriggered() bool { return b.limitSwitch.Get(0) }

func (b *Buffer) isAtPosition(target, tolerance units.Length) bool {
	tol := tolerance.Millimeters()
	if tol < 0 {
		tol = -tol
	}
	lower := target.Millimeters() - tol
	upper := target.Millimeters() + tol
	return b.position.Millimeters() >= lower && b.position.Millimeters() <= upper
}

func (b *Buffer) updateState(now time.Time) {
	switch b.state {
	case BufferNotHomed, BufferIdle, BufferBuffering:
	case BufferGoingDown:
		if b.isAtPosition(units.Millimeters(0), units.Millimeters(bufferPositionTolerance)) {
			b.state = BufferIdle
		}
	case BufferGoingUp:
		if b.isAtPosition(b.limitTop, units.Millimeters(bufferPositionTolerance)) {
			b.state = BufferIdle
		}
	case BufferHoming:
		b.updateHomingState(now)
	}
}

func (b *Buffer) updateHomingState(now time.Time) {
	switch b.homing {
	case bufferHomingInitialize:
		if b.endstopTriggered() {
			b.homing = bufferHomingEscapeEndstop
		} else {
			b.homing = bufferHomingFindEndstopCoarse
		}
	case bufferHomingEscapeEndstop:
		if !b.endstopTriggered() {
			b.homing = bufferHomingFindEndstopFineDistancing
		}
	case bufferHomingFindEndstopFineDistancing:
		if !b.endstopTriggered() {
			b.homing = bufferHomingFindEndstopFine
		}
	case bufferHomingFindEndstopFine:
		if b.endstopTriggered() {
			b.motor.SetPosition(0)
			b.homing = bufferHomingValidate
			b.validateAt = now.Add(100 * time.Millisecond)
		}
	case bufferHomingFindEndstopCoarse:
		if b.endstopTriggered() {
			b.homing = bufferHomingFindEndstopFineDistancing
		}
	case bufferHomingValidate:
		if !now.Before(b.validateAt) {
			if b.isAtPosition(units.Millimeters(0), units.Millimeters(bufferPositionTolerance)) {
				b.state = BufferIdle
			} else {
				b.homing = bufferHomingInitialize
			}
		}
	}
}

func (b *Buffer) velocityFromState(now time.Time) units.Velocity {
	var target float64
	switch b.state {
	case BufferBuffering:
		target = b.calculateLiftSpeed().MillimetersPerSecond()
	case BufferGoingUp:
		target = 50
	case BufferGoingDown:
		target = -50
	default:
		target = 0
	}
	if !b.forward {
		target = -target
	}
	return units.MillimetersPerSecond(b.accel.Update(target, now))
}

// Mutate applies a command addressed to the buffer.
func (b *Buffer) Mutate(m Mutation) error {
	switch m.Kind {
	case MutationSetEnabled:
		b.SetEnabled(m.Enabled)
	case MutationGotoHome:
		b.SetEnabled(true)
		b.GotoHome()
	case MutationSetMode:
		switch m.Mode {
		case "buffering":
			b.StartBuffering()
		case "idle":
			b.state = BufferIdle
		}
	}
	return nil
}

// OutputSpeed lets a Buffer's lift motion itself be read by a peer
// through a weak reference, mirroring PullerOutput's shape.
func (b *Buffer) OutputSpeed() units.Velocity { return b.liftSpeed }
