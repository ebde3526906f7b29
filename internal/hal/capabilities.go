// Package hal is the device hardware-abstraction layer: one narrow
// capability interface per I/O kind (digital, analog, temperature,
// stepper, encoder, pulse-train, serial), a concrete Terminal type that
// embeds whichever capabilities its preset supports, and a Registry
// keying constructors by (VendorID, ProductID, Revision). Machines and
// the cycle engine type-assert a Device to the capability they need
// rather than naming concrete terminal types: accept the narrowest
// interface, assert for the rest.
package hal

import (
	"time"

	"github.com/qitech/fieldbus-orchestrator/internal/units"
)

// Device is what the cycle engine requires of every scanned terminal:
// a used/unused flag and the four-phase decode/post/pre/encode split
// around each cycle's act pass, structurally identical to
// internal/cycle.Device so a hal terminal satisfies it without hal
// importing internal/cycle.
type Device interface {
	IsUsed() bool
	DecodeInputs() error
	InputPostProcess()
	OutputPreProcess()
	EncodeOutputs() error
}

// ErrUnsupported is returned by a capability method a terminal's preset
// does not actually provide the backing PDO object for (e.g. encoder
// frequency on a preset wired for counter-only).
type ErrUnsupported struct {
	Capability string
	Port       int
}

func (e *ErrUnsupported) Error() string {
	return "hal: " + e.Capability + " unsupported on this terminal's port configuration"
}

// ErrOutOfRange is returned when a commanded value (e.g. stepper speed)
// exceeds the device's configured limits.
type ErrOutOfRange struct {
	Capability string
	Value      float64
}

func (e *ErrOutOfRange) Error() string {
	return "hal: value out of range for " + e.Capability
}

// DigitalInput reads a single boolean port; never fails.
type DigitalInput interface {
	Get(port int) bool
}

// DigitalOutput drives a single boolean port; never fails.
type DigitalOutput interface {
	Set(port int, value bool)
	Get(port int) bool
}

// AnalogInput reads a signed 16-bit raw value and its physical
// (voltage/current) interpretation, plus a wiring-error flag surfacing
// an out-of-range sensor.
type AnalogInput interface {
	GetRaw(port int) int16
	GetPotential(port int) units.Potential
	GetWiringError(port int) bool
}

// AnalogOutput maps the full int16 span onto the terminal's configured
// voltage/current range; never fails.
type AnalogOutput interface {
	Set(port int, value int16)
}

// TemperatureInput reads a temperature channel plus a wiring-error flag
// surfacing a broken or shorted probe.
type TemperatureInput interface {
	GetTemperature(port int) units.Temperature
	GetWiringError(port int) bool
}

// EncoderInput reads a free-running counter and, where the preset
// provides them, frequency and period. Methods return an error
// (ErrUnsupported) rather than a bool/Option pair, the idiomatic Go
// shape for "value or absent".
type EncoderInput interface {
	GetCounter(port int) (uint32, error)
	GetFrequency(port int) (units.Frequency, error)
	GetPeriod(port int) (time.Duration, error)
	SetCounter(port int, value uint32) error
}

// StepperVelocity is a velocity-mode stepper channel: a speed setpoint
// in steps per second plus a software-extended position counter.
type StepperVelocity interface {
	SetEnabled(enabled bool)
	SetSpeed(stepsPerSecond float64) error
	GetSpeed() float64
	GetPosition() int64
	SetPosition(steps int64)
}

// PulseTrainOutput is an EL2521-shaped pulse-train channel: frequency
// and target-counter setpoints out, position and over/underflow flags
// in.
type PulseTrainOutput interface {
	SetFrequency(hz float64)
	SetTargetCounter(value uint32)
	GetPosition() uint32
	GetOverflow() bool
	GetUnderflow() bool
}

// Serial is a PDO-mediated mailbox channel (e.g. EL6021), the transport
// internal/modbus.Transport is implemented against.
type Serial interface {
	Initialize() bool
	GetBaudrate() (uint32, bool)
	GetSerialEncoding() (SerialEncoding, bool)
	HasMessage() bool
	ReadMessage() ([]byte, bool)
	// WriteMessage returns whether the write completed transmission by
	// this cycle; a subsequent empty-write call polls for tx complete.
	WriteMessage(data []byte) (bool, error)
}

// SerialEncoding mirrors internal/modbus.SerialEncoding's shape without
// internal/hal importing internal/modbus, avoiding a cycle (modbus
// imports hal-shaped interfaces structurally, not this package).
type SerialEncoding struct {
	DataBits int
	Parity   byte // 'N','E','O','S','M'
	StopBits int
}
