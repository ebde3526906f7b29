package machine

import (
	"time"

	"github.com/qitech/fieldbus-orchestrator/internal/cycle"
	"github.com/qitech/fieldbus-orchestrator/internal/hal"
	"github.com/qitech/fieldbus-orchestrator/internal/registry"
	"github.com/qitech/fieldbus-orchestrator/internal/units"
)

// WinderMode is the winder's top-level operating mode.
type WinderMode int

const (
	WinderStandby WinderMode = iota
	WinderHold
	WinderPull
	WinderWind
)

// Winder composes a traverse sub-state machine, an adaptive spool
// speed controller, and a tension-arm feedback signal under one of
// four modes. The winder does not own the puller motor itself -- it
// reads the puller's output speed through a weak reference, a registry
// lookup instead of a borrowed pointer since machines are not nested
// in one object graph.
type Winder struct {
	id cycle.MachineID
	eventsMixin

	mode WinderMode

	spoolMotor     hal.StepperVelocity
	spoolConverter units.AngularStepConverter
	traverse       *Traverse
	spool          *AdaptiveSpoolSpeedController
	tensionArm     *TensionArm

	pullerRef registry.WeakRef
}

// NewWinder builds a winder over its spool motor, traverse stepper and
// limit switch, and tension-arm analog input, reading its puller's speed
// through the given weak reference. spoolStepsPerRev is the spool
// motor's full-step count per revolution, used to convert the adaptive
// controller's angular velocity into the steps/second the stepper
// capability expects.
func NewWinder(id cycle.MachineID, spoolMotor hal.StepperVelocity, spoolStepsPerRev float64, traverseMotor hal.StepperVelocity, limitSwitch hal.DigitalInput, tensionArm *TensionArm, puller registry.WeakRef) *Winder {
	return &Winder{
		id:             id,
		spoolMotor:     spoolMotor,
		spoolConverter: units.MustNewAngularStepConverter(spoolStepsPerRev),
		traverse:       NewTraverse(traverseMotor, limitSwitch),
		spool:          NewAdaptiveSpoolSpeedController(),
		tensionArm:     tensionArm,
		pullerRef:      puller,
	}
}

func (w *Winder) ID() cycle.MachineID { return w.id }

func (w *Winder) Mode() WinderMode { return w.mode }

func (m WinderMode) String() string {
	switch m {
	case WinderStandby:
		return "standby"
	case WinderHold:
		return "hold"
	case WinderPull:
		return "pull"
	case WinderWind:
		return "wind"
	default:
		return "unknown"
	}
}

// winderState is the outbound, latched State snapshot: the mode,
// whether traverse homing has completed, and the tension-arm
// wiring-error interlock flag every sensor-bearing machine publishes.
type winderState struct {
	Mode        string `json:"mode"`
	Homed       bool   `json:"homed"`
	WiringError bool   `json:"wiring_error"`
}

// winderLiveValues is the outbound, continuous LiveValues snapshot:
// the traverse position and the tension-arm angle driving adaptive
// spool speed.
type winderLiveValues struct {
	TraversePositionMM float64 `json:"traverse_position_mm"`
	TensionArmDegrees  float64 `json:"tension_arm_degrees"`
}

// Act runs one cycle: homes/traverses, reads the puller's current
// speed through the weak reference (released the moment this read
// completes), updates the adaptive spool controller, and commands the
// spool motor.
func (w *Winder) Act(now time.Time) {
	puller, ok := w.pullerRef.Upgrade()
	var pullerOutput PullerOutput
	if ok {
		pullerOutput, _ = puller.(PullerOutput)
	}
	if pullerOutput == nil {
		pullerOutput = zeroPuller{}
	}

	switch w.mode {
	case WinderStandby:
		w.traverse.SetEnabled(false)
		w.spool.SetEnabled(false)
	case WinderHold:
		w.traverse.SetEnabled(true)
		w.spool.SetEnabled(false)
	case WinderPull:
		w.traverse.SetEnabled(false)
		w.spool.SetEnabled(false)
	case WinderWind:
		w.traverse.SetEnabled(true)
		w.spool.SetEnabled(true)
		if w.traverse.IsHomed() && !w.traverse.IsTraversing() && !w.traverse.IsGoingIn() && !w.traverse.IsGoingOut() {
			w.traverse.StartTraversing()
		}
	}

	spoolSpeed := w.spool.UpdateSpeed(now, w.tensionArm, pullerOutput)
	_ = w.spoolMotor.SetSpeed(w.spoolConverter.AngularVelocityToSteps(spoolSpeed))

	w.traverse.Update(now, spoolSpeed)

	position, _ := w.traverse.CurrentPosition()
	w.publishState(winderState{
		Mode:        w.mode.String(),
		Homed:       w.traverse.IsHomed(),
		WiringError: w.tensionArm.WiringError(),
	})
	w.publishLiveValues(winderLiveValues{
		TraversePositionMM: position.Millimeters(),
		TensionArmDegrees:  w.tensionArm.GetAngle().Degrees(),
	})
}

// Mutate applies a command addressed to the winder.
func (w *Winder) Mutate(m Mutation) error {
	switch m.Kind {
	case MutationSetMode:
		switch m.Mode {
		case "standby":
			w.mode = WinderStandby
		case "hold":
			w.mode = WinderHold
		case "pull":
			w.mode = WinderPull
		case "wind":
			w.mode = WinderWind
		}
	case MutationGotoHome:
		w.traverse.SetEnabled(true)
		w.traverse.GotoHome()
	case MutationGotoLimitInner:
		w.traverse.SetEnabled(true)
		w.traverse.GotoLimitInner()
	case MutationGotoLimitOuter:
		w.traverse.SetEnabled(true)
		w.traverse.GotoLimitOuter()
	case MutationSetTraverseLimits:
		if m.Has("LimitInner") {
			w.traverse.SetLimitInner(units.Millimeters(m.LimitInner))
		}
		if m.Has("LimitOuter") {
			w.traverse.SetLimitOuter(units.Millimeters(m.LimitOuter))
		}
		if m.Has("StepSize") {
			w.traverse.SetStepSize(units.Millimeters(m.StepSize))
		}
		if m.Has("Padding") {
			w.traverse.SetPadding(units.Millimeters(m.Padding))
		}
	case MutationSetSpoolTunables:
		if m.Has("TensionTarget") {
			w.spool.SetTensionTarget(m.TensionTarget)
		}
		if m.Has("RadiusLearningRate") {
			w.spool.SetRadiusLearningRate(m.RadiusLearningRate)
		}
		if m.Has("MaxSpeedMultiplier") {
			w.spool.SetMaxSpeedMultiplier(m.MaxSpeedMultiplier)
		}
		if m.Has("AccelerationFactor") {
			w.spool.SetAccelerationFactor(m.AccelerationFactor)
		}
		if m.Has("DeaccelerationUrgencyMultiplier") {
			w.spool.SetDeaccelerationUrgencyMultiplier(m.DeaccelerationUrgencyMultiplier)
		}
	}
	return nil
}

// zeroPuller stands in for a puller reference that failed to upgrade
// (removed or never wired), so the spool controller sees a stationary
// puller rather than panicking on a nil interface.
type zeroPuller struct{}

func (zeroPuller) OutputSpeed() units.Velocity { return units.MillimetersPerSecond(0) }
