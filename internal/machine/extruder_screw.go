package machine

import (
	"encoding/binary"
	"time"

	"github.com/qitech/fieldbus-orchestrator/internal/hal"
	"github.com/qitech/fieldbus-orchestrator/internal/modbus"
	"github.com/qitech/fieldbus-orchestrator/internal/pid"
	"github.com/qitech/fieldbus-orchestrator/internal/units"
)

// VFD holding-register addresses: the drive's write-side
// frequency-command register plus the telemetry block.
const (
	regFrequencyCommand uint16 = 0 // P0001: write target frequency, x100 Hz
	regTargetRPM        uint16 = 1 // P0002
	regActualRPM        uint16 = 2 // P0003
	regVoltage          uint16 = 4 // P0005
	regAmps             uint16 = 5 // P0006, x10 percent of rated current
	regDriveState       uint16 = 6 // P0007: 0=stopped, 1=running

	modbusScrewPriority = 5
)

// InverterStatus mirrors the status block of whichever drive a
// ScrewSpeedController owns.
type InverterStatus struct {
	TargetRPM  uint16
	ActualRPM  uint16
	Voltage    uint16
	Amps       float32
	DriveState uint16
}

// ScrewSpeedController drives the extruder screw's VFD over Modbus:
// either an open-loop direct-RPM setpoint, or a closed-loop PID regulating
// melt pressure at the die by adjusting the drive frequency, with a nozzle
// overpressure interlock and an optional relay auto-tune bootstrap for the
// pressure loop's gains.
type ScrewSpeedController struct {
	client   *modbus.Client
	slaveID  byte
	pressureSensor hal.AnalogInput
	pressurePort   int

	transmission units.FixedTransmission
	motorPoles   float64

	pid *pid.Controller

	targetPressure units.Pressure
	targetRPM      units.AngularVelocity

	frequency        units.Frequency
	maximumFrequency units.Frequency
	minimumFrequency units.Frequency

	usesRPM         bool
	motorOn         bool
	forwardRotation bool

	nozzlePressureLimit        units.Pressure
	nozzlePressureLimitEnabled bool

	autotuner            *pid.AutoTuner
	autotuneHighFrequency units.Frequency
	autotuneLowFrequency  units.Frequency

	lastStatus InverterStatus

	pendingTelemetry uint64
	hasPending       bool
}

// NewScrewSpeedController builds a controller over its Modbus client
// and pressure sensor channel, with conservative PID defaults
// (kp=0.01, ki=0.0, kd=0.02) and a 100 bar nozzle interlock, enabled
// by default.
func NewScrewSpeedController(client *modbus.Client, slaveID byte, pressureSensor hal.AnalogInput, pressurePort int, motorPoles float64, transmission units.FixedTransmission) *ScrewSpeedController {
	return &ScrewSpeedController{
		client:         client,
		slaveID:        slaveID,
		pressureSensor: pressureSensor,
		pressurePort:   pressurePort,
		transmission:   transmission,
		motorPoles:     motorPoles,
		pid: pid.New(pid.Config{
			Kp: 0.01, Ki: 0.0, Kd: 0.02,
			MinOutput: -60.0, MaxOutput: 60.0,
		}),
		maximumFrequency:           units.Hertz(60.0),
		minimumFrequency:           units.Hertz(0.0),
		nozzlePressureLimit:        units.Bar(100.0),
		nozzlePressureLimitEnabled: true,
		forwardRotation:            true,
	}
}

func (s *ScrewSpeedController) IsMotorOn() bool { return s.motorOn }
func (s *ScrewSpeedController) SetMotorOn(v bool) { s.motorOn = v }

func (s *ScrewSpeedController) UsesRPM() bool   { return s.usesRPM }
func (s *ScrewSpeedController) SetUsesRPM(v bool) { s.usesRPM = v }

func (s *ScrewSpeedController) NozzlePressureLimit() units.Pressure { return s.nozzlePressureLimit }
func (s *ScrewSpeedController) SetNozzlePressureLimit(p units.Pressure) { s.nozzlePressureLimit = p }
func (s *ScrewSpeedController) SetNozzlePressureLimitEnabled(v bool) { s.nozzlePressureLimitEnabled = v }

func (s *ScrewSpeedController) TargetPressure() units.Pressure { return s.targetPressure }
func (s *ScrewSpeedController) SetTargetPressure(p units.Pressure) { s.targetPressure = p }

// SetTargetScrewRPM sets the open-loop setpoint and its equivalent
// drive frequency via f_hz = rpm_out/120 * poles, through the
// gear-ratio abstraction internal/units.FixedTransmission provides.
func (s *ScrewSpeedController) SetTargetScrewRPM(rpm units.AngularVelocity) {
	s.targetRPM = rpm
	motorRPM := s.transmission.AngularInput(rpm).RevolutionsPerSecond() * 60.0
	s.frequency = units.Hertz(motorRPM / 120.0 * s.motorPoles)
}

// LastStatus reports the most recently decoded telemetry snapshot.
func (s *ScrewSpeedController) LastStatus() InverterStatus { return s.lastStatus }

// GetPressure reads the die pressure sensor, normalizing its 4-20mA
// loop current to a 0-350 bar span.
func (s *ScrewSpeedController) GetPressure() units.Pressure {
	pot := s.pressureSensor.GetPotential(s.pressurePort)
	fraction := (pot.Current.Amperes() - 0.004) / (0.020 - 0.004)
	fraction = clampFloat(fraction, 0, 1)
	return units.Bar(fraction * 350.0)
}

// StartPressureAutotune bootstraps a relay experiment around the
// controller's current frequency.
func (s *ScrewSpeedController) StartPressureAutotune(now time.Time, stepHz float64) {
	center := s.frequency.Hertz()
	high := center + stepHz
	low := center - stepHz
	if high > s.maximumFrequency.Hertz() {
		high = s.maximumFrequency.Hertz()
	}
	if low < s.minimumFrequency.Hertz() {
		low = s.minimumFrequency.Hertz()
	}
	s.autotuneHighFrequency = units.Hertz(high)
	s.autotuneLowFrequency = units.Hertz(low)

	swing := high - low
	if swing < 0.01 {
		swing = 0.01
	}
	cfg := pid.DefaultAutoTuneConfig()
	cfg.Target = s.targetPressure.Bar()
	cfg.RelayAmplitude = swing
	s.autotuner = pid.NewAutoTuner(cfg)
	s.autotuner.Start(now)
}

// StopPressureAutotune abandons an in-progress relay experiment without
// adopting its (possibly incomplete) gains.
func (s *ScrewSpeedController) StopPressureAutotune() { s.autotuner = nil }

// IsAutotuning reports whether a relay experiment is currently driving the
// frequency instead of the PID.
func (s *ScrewSpeedController) IsAutotuning() bool {
	return s.autotuner != nil && s.autotuner.IsActive()
}

// Update runs one cycle of screw speed regulation: the motor-on/off
// transitions, the nozzle-overpressure interlock, and the
// RPM-vs-pressure regulation branch.
func (s *ScrewSpeedController) Update(now time.Time, isExtruding bool) {
	if !s.usesRPM && !isExtruding && s.motorOn {
		s.frequency = units.Hertz(0)
		s.motorOn = false
	}

	pressure := s.GetPressure()
	if s.nozzlePressureLimitEnabled && pressure.Bar() >= s.nozzlePressureLimit.Bar() && s.motorOn {
		s.motorOn = false
		s.frequency = units.Hertz(0)
		s.autotuner = nil
	}

	if isExtruding && !s.motorOn {
		s.motorOn = true
	}

	if !s.usesRPM && isExtruding {
		if s.autotuner != nil {
			relay, done := s.autotuner.Update(pressure.Bar(), now)
			if done {
				if s.autotuner.Result != nil {
					s.pid.SetGains(s.autotuner.Result.Kp, s.autotuner.Result.Ki, s.autotuner.Result.Kd)
				}
				s.autotuner = nil
			} else {
				s.frequency = units.Hertz(clampFloat(relay, s.minimumFrequency.Hertz(), s.maximumFrequency.Hertz()))
			}
		} else {
			errBar := s.targetPressure.Bar() - pressure.Bar()
			delta := s.pid.Update(errBar, now)
			freq := s.frequency.Hertz() + delta
			s.frequency = units.Hertz(clampFloat(freq, s.minimumFrequency.Hertz(), s.maximumFrequency.Hertz()))
		}
	}

	s.driveFrequency(now)
	s.pollTelemetry(now)
}

// driveFrequency encodes the commanded frequency (and run/stop state)
// as a queued Modbus write.
func (s *ScrewSpeedController) driveFrequency(now time.Time) {
	freqX100 := uint16(0)
	if s.motorOn {
		freqX100 = uint16(s.frequency.Hertz() * 100)
	}
	data := make([]byte, 4)
	binary.BigEndian.PutUint16(data[0:2], regFrequencyCommand)
	binary.BigEndian.PutUint16(data[2:4], freqX100)
	s.client.Enqueue(modbus.Request{
		SlaveID:  s.slaveID,
		Function: modbus.FuncPresetHoldingRegister,
		Data:     data,
	}, modbusScrewPriority)
}

// pollTelemetry requests P0002-P0007 once the previous read has settled,
// decoding a completed response into InverterStatus.
func (s *ScrewSpeedController) pollTelemetry(now time.Time) {
	if s.hasPending {
		if resp, ok := s.client.TakeResponse(s.pendingTelemetry); ok {
			s.hasPending = false
			if !resp.IsException && len(resp.Data) >= 12 {
				reg := func(r uint16) uint16 {
					off := int(r-regTargetRPM) * 2
					return binary.BigEndian.Uint16(resp.Data[off : off+2])
				}
				s.lastStatus = InverterStatus{
					TargetRPM:  reg(regTargetRPM),
					ActualRPM:  reg(regActualRPM),
					Voltage:    reg(regVoltage),
					Amps:       float32(reg(regAmps)) / 10.0,
					DriveState: reg(regDriveState),
				}
			}
		}
		return
	}

	data := make([]byte, 4)
	binary.BigEndian.PutUint16(data[0:2], regTargetRPM)
	binary.BigEndian.PutUint16(data[2:4], regDriveState-regTargetRPM+1)
	id := s.client.Enqueue(modbus.Request{
		SlaveID:  s.slaveID,
		Function: modbus.FuncReadHoldingRegister,
		Data:     data,
	}, modbusScrewPriority)
	s.pendingTelemetry = id
	s.hasPending = true
}
