package machine

import (
	"time"

	"github.com/qitech/fieldbus-orchestrator/internal/cycle"
	"github.com/qitech/fieldbus-orchestrator/internal/hal"
	"github.com/qitech/fieldbus-orchestrator/internal/units"
)

// PullerMode selects one of the puller's two regulation sub-modes,
// the same direct-vs-closed-loop shape the extruder's screw-speed
// controller has: an open-loop linear-speed
// setpoint, and a diameter-hold mode that derives the linear speed needed
// to keep a constant extrudate cross-section as the upstream screw speed
// changes (line_speed = screw_rpm * throughput_constant / target_diameter^2,
// the standard volumetric-consistency relation for a puller downstream of
// an extruder die).
type PullerMode int

const (
	PullerModeSpeed PullerMode = iota
	PullerModeDiameter
)

// Puller drives a linear-speed stepper motor: a
// LinearStepConverter feeding a stepper channel, exposing the
// PullerOutput contract peers read through a weak reference.
type Puller struct {
	id cycle.MachineID
	eventsMixin

	motor     hal.StepperVelocity
	converter units.LinearStepConverter

	enabled bool
	mode    PullerMode

	targetSpeed units.Velocity // PullerModeSpeed setpoint

	targetDiameter      units.Length // PullerModeDiameter setpoint
	throughputConstant  float64      // mm^3/s per screw RPM, machine-specific
	screwSpeedRPM       float64      // last known upstream screw speed

	lastSpeed units.Velocity
}

// NewPuller builds a puller over a stepper motor and its linear-step
// converter, disabled and in direct-speed mode.
func NewPuller(id cycle.MachineID, motor hal.StepperVelocity, converter units.LinearStepConverter) *Puller {
	return &Puller{
		id:                 id,
		motor:              motor,
		converter:          converter,
		mode:               PullerModeSpeed,
		throughputConstant: 1.0,
	}
}

func (p *Puller) ID() cycle.MachineID { return p.id }

// pullerState is the outbound, latched State snapshot.
type pullerState struct {
	Enabled        bool   `json:"enabled"`
	RegulationMode string `json:"regulation_mode"`
}

// pullerLiveValues is the outbound, continuous LiveValues snapshot.
type pullerLiveValues struct {
	SpeedMMs float64 `json:"speed_mms"`
}

// Act runs one cycle of the puller's speed regulation.
func (p *Puller) Act(now time.Time) {
	p.Update()

	mode := "speed"
	if p.mode == PullerModeDiameter {
		mode = "diameter"
	}
	p.publishState(pullerState{Enabled: p.enabled, RegulationMode: mode})
	p.publishLiveValues(pullerLiveValues{SpeedMMs: p.lastSpeed.MillimetersPerSecond()})
}

// Mutate applies a command addressed to the puller.
func (p *Puller) Mutate(m Mutation) error {
	switch m.Kind {
	case MutationSetEnabled:
		p.enabled = m.Enabled
	case MutationSetRegulationMode:
		switch m.RegulationMode {
		case "speed":
			p.mode = PullerModeSpeed
		case "diameter":
			p.mode = PullerModeDiameter
		}
	case MutationSetTargetSpeed:
		p.targetSpeed = units.MillimetersPerSecond(m.TargetSpeed)
	case MutationSetTargetDiameter:
		p.targetDiameter = units.Millimeters(m.TargetDiameter)
	}
	return nil
}

func (p *Puller) IsEnabled() bool   { return p.enabled }
func (p *Puller) SetEnabled(v bool) { p.enabled = v }

func (p *Puller) Mode() PullerMode     { return p.mode }
func (p *Puller) SetMode(m PullerMode) { p.mode = m }

func (p *Puller) TargetSpeed() units.Velocity     { return p.targetSpeed }
func (p *Puller) SetTargetSpeed(v units.Velocity) { p.targetSpeed = v }

func (p *Puller) TargetDiameter() units.Length     { return p.targetDiameter }
func (p *Puller) SetTargetDiameter(v units.Length) { p.targetDiameter = v }

// SetScrewSpeed feeds the upstream extruder screw speed (in RPM) into
// the diameter-hold mode's calculation; peers read through weak
// references rather than this type reaching across machines itself.
func (p *Puller) SetScrewSpeed(rpm float64) { p.screwSpeedRPM = rpm }

func (p *Puller) SetThroughputConstant(v float64) { p.throughputConstant = v }

// OutputSpeed is the slice of Puller that PullerOutput exposes to the
// winder's adaptive spool speed controller.
func (p *Puller) OutputSpeed() units.Velocity { return p.lastSpeed }

// Update commands the puller motor toward this cycle's target speed,
// computed per the active regulation mode.
func (p *Puller) Update() {
	target := p.targetSpeed
	if p.mode == PullerModeDiameter {
		target = p.diameterHoldSpeed()
	}
	if !p.enabled {
		target = units.MillimetersPerSecond(0)
	}

	stepsPerSecond := p.converter.VelocityToStepsPerSecond(target)
	_ = p.motor.SetSpeed(stepsPerSecond)

	actualSteps := p.motor.GetSpeed()
	p.lastSpeed = p.converter.StepsPerSecondToVelocity(actualSteps)
}

func (p *Puller) diameterHoldSpeed() units.Velocity {
	diameterMM := p.targetDiameter.Millimeters()
	if diameterMM <= 0 {
		return units.MillimetersPerSecond(0)
	}
	speed := p.screwSpeedRPM * p.throughputConstant / (diameterMM * diameterMM)
	return units.MillimetersPerSecond(speed)
}
