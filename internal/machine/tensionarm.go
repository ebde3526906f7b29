package machine

import (
	"github.com/qitech/fieldbus-orchestrator/internal/hal"
	"github.com/qitech/fieldbus-orchestrator/internal/units"
)

// TensionArm derives a loop-back tension-arm angle from an analog input
// channel: the arm's mechanical swing is wired to a raw ADC span, which
// this type interpolates onto a configured angle span -- the same
// linear mapping internal/hal's AnalogInput capability applies to
// build a units.Potential from a raw sample.
type TensionArm struct {
	sensor hal.AnalogInput
	port   int

	minRaw, maxRaw   int16
	minAngle, maxAngle units.Angle
}

// NewTensionArm builds a tension arm over an analog input port, with the
// raw ADC span [minRaw, maxRaw] mapping onto the angle span
// [minAngle, maxAngle].
func NewTensionArm(sensor hal.AnalogInput, port int, minRaw, maxRaw int16, minAngle, maxAngle units.Angle) *TensionArm {
	return &TensionArm{sensor: sensor, port: port, minRaw: minRaw, maxRaw: maxRaw, minAngle: minAngle, maxAngle: maxAngle}
}

// WiringError reports whether the underlying sensor channel is wired
// out of range, surfaced to the winder's outbound state event as its
// per-sensor wiring-error flag.
func (a *TensionArm) WiringError() bool {
	return a.sensor.GetWiringError(a.port)
}

// GetAngle reads the current tension-arm angle.
func (a *TensionArm) GetAngle() units.Angle {
	raw := a.sensor.GetRaw(a.port)
	span := float64(a.maxRaw) - float64(a.minRaw)
	if span == 0 {
		return a.minAngle
	}
	t := (float64(raw) - float64(a.minRaw)) / span
	t = clampFloat(t, 0, 1)
	return units.Degrees(scale(t, a.minAngle.Degrees(), a.maxAngle.Degrees()))
}
