package machine

import (
	"time"

	"github.com/qitech/fieldbus-orchestrator/internal/cycle"
	"github.com/qitech/fieldbus-orchestrator/internal/hal"
	"github.com/qitech/fieldbus-orchestrator/internal/pid"
	"github.com/qitech/fieldbus-orchestrator/internal/units"
)

// ExtruderMode is the extruder's top-level operating mode.
type ExtruderMode int

const (
	ExtruderStandby ExtruderMode = iota
	ExtruderHeating
	ExtruderExtrude
)

// ZoneName identifies one of the extruder's four temperature zones.
type ZoneName int

const (
	ZoneNozzle ZoneName = iota
	ZoneFront
	ZoneMiddle
	ZoneBack
	zoneCount
)

func (z ZoneName) String() string {
	switch z {
	case ZoneNozzle:
		return "nozzle"
	case ZoneFront:
		return "front"
	case ZoneMiddle:
		return "middle"
	case ZoneBack:
		return "back"
	default:
		return "unknown"
	}
}

func zoneFromString(s string) (ZoneName, bool) {
	for z := ZoneName(0); z < zoneCount; z++ {
		if z.String() == s {
			return z, true
		}
	}
	return 0, false
}

// heatingElementFullScale is the int16 magnitude AnalogOutput.Set treats
// as 100% duty, the same unipolar 0-10V convention this package's other
// analog outputs use.
const heatingElementFullScale = 32767

// TemperatureZone owns one zone's sensor, heating element and PID,
// with independent max-temperature and wiring-error interlocks -- the
// same sensor-read/PID-update/output-clamp cycle shape the screw-speed
// controller applies to pressure, applied to temperature.
type TemperatureZone struct {
	sensor hal.TemperatureInput
	sensorPort int
	heater hal.AnalogOutput
	heaterPort int

	controller *pid.Controller

	target      units.Temperature
	maxTemp     units.Temperature
	current     units.Temperature
	duty        float64
	wiringError bool
}

// Duty reports the zone's last-commanded heating duty cycle, [0,1].
func (z *TemperatureZone) Duty() float64 { return z.duty }

// WiringError reports the zone's last-read sensor wiring-error flag.
func (z *TemperatureZone) WiringError() bool { return z.wiringError }

// CurrentTemperature reports the zone's last-read sensor temperature.
func (z *TemperatureZone) CurrentTemperature() units.Temperature { return z.current }

// Target reports the zone's configured setpoint.
func (z *TemperatureZone) Target() units.Temperature { return z.target }

func NewTemperatureZone(sensor hal.TemperatureInput, sensorPort int, heater hal.AnalogOutput, heaterPort int) *TemperatureZone {
	return &TemperatureZone{
		sensor:     sensor,
		sensorPort: sensorPort,
		heater:     heater,
		heaterPort: heaterPort,
		controller: pid.New(pid.Config{Kp: 8.0, Ki: 0.3, Kd: 1.5, MinOutput: 0, MaxOutput: 1}),
		maxTemp:    units.Celsius(300.0),
	}
}

// update runs one cycle of the zone's heating control, forcing the duty
// to zero whenever the wiring-error flag is set or the measured
// temperature is at or above the zone's configured maximum. Both
// interlocks are checked ahead of the PID so neither can be masked by
// a large positive PID term.
func (z *TemperatureZone) update(now time.Time, heatingEnabled bool) {
	temp := z.sensor.GetTemperature(z.sensorPort)
	z.current = temp
	z.wiringError = z.sensor.GetWiringError(z.sensorPort)

	switch {
	case z.wiringError, temp.Celsius() >= z.maxTemp.Celsius(), !heatingEnabled:
		z.duty = 0
		z.controller.Reset()
	default:
		errVal := z.target.Celsius() - temp.Celsius()
		z.duty = z.controller.Update(errVal, now)
	}

	z.heater.Set(z.heaterPort, int16(z.duty*heatingElementFullScale))
}

// powerWatts estimates the zone's instantaneous draw for energy
// integration, duty times the zone's configured element rating.
func (z *TemperatureZone) powerWatts(ratedWatts float64) float64 { return z.duty * ratedWatts }

// Extruder is the continuous-control machine of the line:
// four independently-interlocked temperature zones plus a
// screw-speed controller, with energy integration across all zones.
type Extruder struct {
	id cycle.MachineID
	eventsMixin

	mode ExtruderMode

	zones      [zoneCount]*TemperatureZone
	zoneWatts  [zoneCount]float64
	screw      *ScrewSpeedController

	energyKWh     float64
	hasLastUpdate bool
	lastUpdate    time.Time
}

// NewExtruder builds an extruder over its four zone sensors/heaters
// (nozzle, front, middle, back, in that order) and its screw-speed
// controller; zoneWatts gives each zone's rated element power in watts,
// used only for the kWh energy integration.
func NewExtruder(id cycle.MachineID, zones [4]*TemperatureZone, zoneWatts [4]float64, screw *ScrewSpeedController) *Extruder {
	e := &Extruder{id: id, screw: screw}
	for i := 0; i < 4; i++ {
		e.zones[i] = zones[i]
		e.zoneWatts[i] = zoneWatts[i]
	}
	return e
}

func (e *Extruder) ID() cycle.MachineID { return e.id }

func (e *Extruder) Mode() ExtruderMode { return e.mode }

func (m ExtruderMode) String() string {
	switch m {
	case ExtruderStandby:
		return "standby"
	case ExtruderHeating:
		return "heating"
	case ExtruderExtrude:
		return "extrude"
	default:
		return "unknown"
	}
}

// zoneState is one zone's contribution to the extruder's outbound State
// snapshot: its commanded duty and the two independent interlocks
// (wiring error, implicit over-temperature via the duty having been
// forced to zero).
type zoneState struct {
	Duty          float64 `json:"duty"`
	WiringError   bool    `json:"wiring_error"`
	TargetCelsius float64 `json:"target_celsius"`
}

type extruderState struct {
	Mode  string               `json:"mode"`
	Zones map[string]zoneState `json:"zones"`
}

type extruderLiveValues struct {
	EnergyKWh        float64            `json:"energy_kwh"`
	ZoneTemperatures map[string]float64 `json:"zone_temperatures_celsius"`
	Inverter         InverterStatus     `json:"inverter"`
}

// EnergyKWh reports the cumulative energy integrated across all four
// zones since the extruder was constructed or last reset.
func (e *Extruder) EnergyKWh() float64 { return e.energyKWh }

// InverterStatus reports the screw-speed controller's last decoded VFD
// telemetry, for the extruder's outbound live-values block.
func (e *Extruder) InverterStatus() InverterStatus { return e.screw.LastStatus() }

// Act runs one cycle: updates every temperature zone (heating enabled
// in both Heating and Extrude modes), updates the
// screw-speed controller (only actually extruding in Extrude mode), and
// integrates energy.
func (e *Extruder) Act(now time.Time) {
	heatingEnabled := e.mode == ExtruderHeating || e.mode == ExtruderExtrude
	isExtruding := e.mode == ExtruderExtrude

	totalWatts := 0.0
	for i, z := range e.zones {
		z.update(now, heatingEnabled)
		totalWatts += z.powerWatts(e.zoneWatts[i])
	}

	e.screw.Update(now, isExtruding)

	if e.hasLastUpdate {
		dt := now.Sub(e.lastUpdate).Seconds()
		e.energyKWh += totalWatts * dt / 3600.0 / 1000.0
	}
	e.lastUpdate = now
	e.hasLastUpdate = true

	zones := make(map[string]zoneState, zoneCount)
	temps := make(map[string]float64, zoneCount)
	for i, z := range e.zones {
		name := ZoneName(i).String()
		zones[name] = zoneState{Duty: z.Duty(), WiringError: z.WiringError(), TargetCelsius: z.Target().Celsius()}
		temps[name] = z.CurrentTemperature().Celsius()
	}
	e.publishState(extruderState{Mode: e.mode.String(), Zones: zones})
	e.publishLiveValues(extruderLiveValues{EnergyKWh: e.energyKWh, ZoneTemperatures: temps, Inverter: e.InverterStatus()})
}

// Mutate applies a command addressed to the extruder.
func (e *Extruder) Mutate(m Mutation) error {
	switch m.Kind {
	case MutationSetMode:
		switch m.Mode {
		case "standby":
			e.mode = ExtruderStandby
		case "heating":
			e.mode = ExtruderHeating
		case "extrude":
			e.mode = ExtruderExtrude
		}
	case MutationSetTargetTemperature:
		zone, ok := zoneFromString(m.Zone)
		if !ok {
			return nil
		}
		e.zones[zone].target = units.Celsius(m.TargetTemperature)
	case MutationSetTargetPressure:
		e.screw.SetTargetPressure(units.Bar(m.TargetPressure))
	case MutationSetTargetSpeed:
		e.screw.SetTargetScrewRPM(units.RevolutionsPerSecond(m.TargetSpeed / 60.0))
	case MutationSetRegulationMode:
		switch m.RegulationMode {
		case "direct":
			e.screw.SetUsesRPM(true)
		case "closed_loop":
			e.screw.SetUsesRPM(false)
		}
	case MutationSetEnabled:
		e.screw.SetMotorOn(m.Enabled)
	}
	return nil
}
