package machine

import (
	"time"

	"github.com/qitech/fieldbus-orchestrator/internal/cycle"
	"github.com/qitech/fieldbus-orchestrator/internal/hal"
	"github.com/qitech/fieldbus-orchestrator/internal/registry"
	"github.com/qitech/fieldbus-orchestrator/internal/units"
)

// PatternControlState is the Konturlaenge/Pause sub-state machine of
// the addon motor.
type PatternControlState int

const (
	PatternIdle PatternControlState = iota
	PatternHoming
	PatternRunning
	PatternPaused
)

func (s PatternControlState) String() string {
	switch s {
	case PatternHoming:
		return "homing"
	case PatternRunning:
		return "running"
	case PatternPaused:
		return "paused"
	default:
		return "idle"
	}
}

// GluetexAddonMotor is an addon stepper that follows an upstream puller's
// linear speed at a configurable master:slave ratio, optionally cycling a
// home-run-pause pattern against an endstop (Konturlaenge: run at least
// this many mm from home, stopping at the next endstop hit; Pause: dwell
// this many mm of puller travel before running again). The ratio
// is applied to the puller's linear output speed, since
// PullerOutput (the only contract this package's Puller exposes to
// peers, also read by AdaptiveSpoolSpeedController) is linear, not
// angular -- the ratio's meaning ("for every master turns the puller
// makes, the addon motor turns slave times") carries over unchanged,
// just scaling a linear rate instead of a rotational one.
type GluetexAddonMotor struct {
	id cycle.MachineID
	eventsMixin

	motor     hal.StepperVelocity
	endstop   hal.DigitalInput
	converter units.LinearStepConverter

	pullerRef registry.WeakRef

	enabled bool
	forward bool

	masterRatio, slaveRatio float64

	konturlaengeMM, pauseMM float64
	patternState            PatternControlState
	accumulatedDistanceMM   float64

	lastCycle    time.Time
	hasLastCycle bool
}

// NewGluetexAddonMotor builds an addon motor over its stepper,
// optional endstop, and the puller it follows through a weak
// reference, with a 1:1 default ratio and constant (non-pattern) mode.
func NewGluetexAddonMotor(id cycle.MachineID, motor hal.StepperVelocity, endstop hal.DigitalInput, converter units.LinearStepConverter, puller registry.WeakRef) *GluetexAddonMotor {
	return &GluetexAddonMotor{
		id:          id,
		motor:       motor,
		endstop:     endstop,
		converter:   converter,
		pullerRef:   puller,
		forward:     true,
		masterRatio: 1.0,
		slaveRatio:  1.0,
	}
}

func (g *GluetexAddonMotor) ID() cycle.MachineID { return g.id }

func (g *GluetexAddonMotor) IsEnabled() bool { return g.enabled }

// SetEnabled mirrors set_enabled: entering pattern mode while a
// Konturlaenge or Pause distance is configured always starts from
// Homing, never resumes mid-pattern.
func (g *GluetexAddonMotor) SetEnabled(v bool) {
	if v && !g.enabled {
		g.enterPatternModeOrIdle()
	} else if !v {
		g.patternState = PatternIdle
		g.accumulatedDistanceMM = 0
	}
	g.enabled = v
}

func (g *GluetexAddonMotor) SetForward(v bool) { g.forward = v }
func (g *GluetexAddonMotor) IsForward() bool    { return g.forward }

func (g *GluetexAddonMotor) SetMasterRatio(v float64) { g.masterRatio = maxFloat(v, 0.1) }
func (g *GluetexAddonMotor) SetSlaveRatio(v float64)  { g.slaveRatio = maxFloat(v, 0.1) }
func (g *GluetexAddonMotor) MasterRatio() float64     { return g.masterRatio }
func (g *GluetexAddonMotor) SlaveRatio() float64      { return g.slaveRatio }

func (g *GluetexAddonMotor) SetKonturlaengeMM(v float64) {
	g.konturlaengeMM = maxFloat(v, 0)
	if g.enabled {
		g.enterPatternModeOrIdle()
	}
}
func (g *GluetexAddonMotor) SetPauseMM(v float64) {
	g.pauseMM = maxFloat(v, 0)
	if g.enabled {
		g.enterPatternModeOrIdle()
	}
}
func (g *GluetexAddonMotor) KonturlaengeMM() float64 { return g.konturlaengeMM }
func (g *GluetexAddonMotor) PauseMM() float64        { return g.pauseMM }

func (g *GluetexAddonMotor) PatternState() PatternControlState { return g.patternState }

func (g *GluetexAddonMotor) enterPatternModeOrIdle() {
	if g.konturlaengeMM > 0 || g.pauseMM > 0 {
		g.patternState = PatternHoming
	} else {
		g.patternState = PatternIdle
	}
	g.accumulatedDistanceMM = 0
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// calculateMotorVelocity is calculate_motor_velocity: motor speed is the
// puller's output speed scaled by slave_ratio/master_ratio, signed by
// direction, zero when disabled.
func (g *GluetexAddonMotor) calculateMotorVelocity(pullerSpeed units.Velocity) units.Velocity {
	if !g.enabled {
		return units.MillimetersPerSecond(0)
	}
	ratio := g.slaveRatio / g.masterRatio
	v := pullerSpeed.MillimetersPerSecond() * ratio
	if !g.forward {
		v = -v
	}
	return units.MillimetersPerSecond(v)
}

// Act reads the puller's speed through its weak reference for this cycle
// only, integrates the distance it has moved since the previous cycle for
// the pattern state machine, then runs sync_motor_speed's constant-mode
// or pattern-mode branch.
func (g *GluetexAddonMotor) Act(now time.Time) {
	var pullerSpeed units.Velocity
	if puller, ok := g.pullerRef.Upgrade(); ok {
		if speeder, ok := puller.(PullerOutput); ok {
			pullerSpeed = speeder.OutputSpeed()
		}
	}

	distanceMM := 0.0
	if g.hasLastCycle {
		distanceMM = pullerSpeed.MillimetersPerSecond() * now.Sub(g.lastCycle).Seconds()
		if distanceMM < 0 {
			distanceMM = -distanceMM
		}
	}
	g.lastCycle = now
	g.hasLastCycle = true

	g.motor.SetEnabled(g.enabled)
	if g.enabled {
		patternMode := g.konturlaengeMM > 0 || g.pauseMM > 0
		if patternMode && g.endstop != nil {
			g.handlePatternControl(pullerSpeed, distanceMM)
		} else {
			target := g.calculateMotorVelocity(pullerSpeed)
			_ = g.motor.SetSpeed(g.converter.VelocityToStepsPerSecond(target))
		}
	}

	g.publishState(gluetexState{
		Enabled:      g.enabled,
		PatternState: g.patternState.String(),
	})
	g.publishLiveValues(gluetexLiveValues{
		PullerSpeedMMs: pullerSpeed.MillimetersPerSecond(),
		PatternMM:      g.accumulatedDistanceMM,
	})
}

// gluetexState is the outbound, latched State snapshot.
type gluetexState struct {
	Enabled      bool   `json:"enabled"`
	PatternState string `json:"pattern_state"`
}

// gluetexLiveValues is the outbound, continuous LiveValues snapshot.
type gluetexLiveValues struct {
	PullerSpeedMMs float64 `json:"puller_speed_mms"`
	PatternMM      float64 `json:"pattern_mm"`
}

func (g *GluetexAddonMotor) handlePatternControl(pullerSpeed units.Velocity, distanceMM float64) {
	endstopHit := g.endstop.Get(0)

	switch g.patternState {
	case PatternHoming:
		if endstopHit {
			_ = g.motor.SetSpeed(0)
			g.patternState = PatternRunning
			g.accumulatedDistanceMM = 0
		} else {
			target := g.calculateMotorVelocity(pullerSpeed)
			_ = g.motor.SetSpeed(g.converter.VelocityToStepsPerSecond(target))
		}
	case PatternRunning:
		g.accumulatedDistanceMM += distanceMM
		target := g.calculateMotorVelocity(pullerSpeed)
		_ = g.motor.SetSpeed(g.converter.VelocityToStepsPerSecond(target))
		if g.accumulatedDistanceMM >= g.konturlaengeMM && endstopHit {
			_ = g.motor.SetSpeed(0)
			g.patternState = PatternPaused
			g.accumulatedDistanceMM = 0
		}
	case PatternPaused:
		_ = g.motor.SetSpeed(0)
		g.accumulatedDistanceMM += distanceMM
		if g.accumulatedDistanceMM >= g.pauseMM {
			g.patternState = PatternRunning
			g.accumulatedDistanceMM = 0
		}
	case PatternIdle:
		target := g.calculateMotorVelocity(pullerSpeed)
		_ = g.motor.SetSpeed(g.converter.VelocityToStepsPerSecond(target))
	}
}

// Mutate applies a command addressed to the addon motor.
func (g *GluetexAddonMotor) Mutate(m Mutation) error {
	switch m.Kind {
	case MutationSetEnabled:
		g.SetEnabled(m.Enabled)
	case MutationSetSpoolTunables:
		if m.Has("KonturlaengeMM") {
			g.SetKonturlaengeMM(m.KonturlaengeMM)
		}
		if m.Has("PauseMM") {
			g.SetPauseMM(m.PauseMM)
		}
	}
	return nil
}
