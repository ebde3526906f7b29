package machine

import (
	"time"

	"github.com/qitech/fieldbus-orchestrator/internal/cycle"
	"github.com/qitech/fieldbus-orchestrator/internal/hal"
	"github.com/qitech/fieldbus-orchestrator/internal/units"
)

// AquapathMode is the water bath's top-level operating mode: a simple
// two-mode (Standby | Cooling) machine driving a pump's digital output
// and reading a temperature input with a wiring-error interlock,
// reusing the same temperature-zone/PID shape as the extruder but with
// a single zone.
type AquapathMode int

const (
	AquapathStandby AquapathMode = iota
	AquapathCooling
)

// Aquapath is the line's water bath: a single TemperatureZone (reusing
// the extruder's PID/interlock shape) plus a circulation pump, enabled
// only in Cooling mode.
type Aquapath struct {
	id cycle.MachineID
	eventsMixin

	mode AquapathMode

	pump     hal.DigitalOutput
	pumpPort int

	zone *TemperatureZone
}

// NewAquapath builds a water bath over its pump output and single
// temperature zone (sensor + heater/chiller actuator), starting in
// Standby.
func NewAquapath(id cycle.MachineID, pump hal.DigitalOutput, pumpPort int, zone *TemperatureZone) *Aquapath {
	return &Aquapath{id: id, pump: pump, pumpPort: pumpPort, zone: zone}
}

func (a *Aquapath) ID() cycle.MachineID { return a.id }

func (a *Aquapath) Mode() AquapathMode { return a.mode }

// Act drives the pump on whenever cooling, and runs the zone's
// interlocked temperature control the same cycle the extruder's zones
// run through.
func (a *Aquapath) Act(now time.Time) {
	cooling := a.mode == AquapathCooling
	a.pump.Set(a.pumpPort, cooling)
	a.zone.update(now, cooling)

	mode := "standby"
	if cooling {
		mode = "cooling"
	}
	a.publishState(aquapathState{Mode: mode, WiringError: a.zone.WiringError()})
	a.publishLiveValues(aquapathLiveValues{
		BathTemperatureCelsius: a.zone.CurrentTemperature().Celsius(),
		PumpOn:                 cooling,
	})
}

// aquapathState is the outbound, latched State snapshot.
type aquapathState struct {
	Mode        string `json:"mode"`
	WiringError bool   `json:"wiring_error"`
}

// aquapathLiveValues is the outbound, continuous LiveValues snapshot.
type aquapathLiveValues struct {
	BathTemperatureCelsius float64 `json:"bath_temperature_celsius"`
	PumpOn                 bool    `json:"pump_on"`
}

// Mutate applies a command addressed to the water bath.
func (a *Aquapath) Mutate(m Mutation) error {
	switch m.Kind {
	case MutationSetMode:
		switch m.Mode {
		case "standby":
			a.mode = AquapathStandby
		case "cooling":
			a.mode = AquapathCooling
		}
	case MutationSetTargetTemperature:
		a.zone.target = units.Celsius(m.TargetTemperature)
	}
	return nil
}
