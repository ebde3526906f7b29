package hal

import (
	"fmt"
	"time"

	"github.com/qitech/fieldbus-orchestrator/internal/pdo"
	"github.com/qitech/fieldbus-orchestrator/internal/units"
)

// Terminal is the common bit-buffer bookkeeping shared by every
// concrete device type below: the raw input/output byte buffers, the
// PDO assignment describing how to pack/unpack them, and the is_used
// flag the cycle engine checks before touching a device.
type Terminal struct {
	Identity   Identity
	Assignment pdo.Terminal
	InputsRaw  []byte
	OutputsRaw []byte
	used       bool
}

func newTerminal(id Identity, assignment pdo.Terminal, inputLen, outputLen int) *Terminal {
	return &Terminal{
		Identity:   id,
		Assignment: assignment,
		InputsRaw:  make([]byte, inputLen),
		OutputsRaw: make([]byte, outputLen),
		used:       true,
	}
}

func (t *Terminal) IsUsed() bool     { return t.used }
func (t *Terminal) SetUsed(used bool) { t.used = used }

func (t *Terminal) tx(name string) pdo.Object {
	o, err := t.Assignment.TxPDO.Find(name)
	if err != nil {
		panic(fmt.Sprintf("hal: terminal %#v missing expected tx object %q: %v", t.Identity, name, err))
	}
	return o
}

func (t *Terminal) rx(name string) pdo.Object {
	o, err := t.Assignment.RxPDO.Find(name)
	if err != nil {
		panic(fmt.Sprintf("hal: terminal %#v missing expected rx object %q: %v", t.Identity, name, err))
	}
	return o
}

// --- EL7031: single-channel stepper, VelocityControlCompact preset ---

// EL7031Terminal is a single-channel EL70x1-family stepper terminal
// operating in velocity mode.
type EL7031Terminal struct {
	*Terminal

	enabled      bool
	targetSpeed  float64 // steps/s, decoded to int16 velocity units at encode time
	maxSpeed     float64
	actualSpeed  float64
	position     int64
	lastRawPos   uint32
	hasLastRaw   bool
}

// NewEL7031Terminal constructs the stepper terminal with the compact
// velocity PDO preset and a default max speed (overridden by CoE
// configuration applied at Preoperational in a real deployment).
func NewEL7031Terminal(inputLen, outputLen int) (Device, error) {
	return &EL7031Terminal{
		Terminal: newTerminal(Identity{VendorID: 0x2, ProductID: 0x1b7f3052}, pdo.VelocityControlCompact(), inputLen, outputLen),
		maxSpeed: 1_000_000,
	}, nil
}

func (e *EL7031Terminal) SetEnabled(enabled bool) { e.enabled = enabled }

func (e *EL7031Terminal) SetSpeed(stepsPerSecond float64) error {
	if stepsPerSecond > e.maxSpeed || stepsPerSecond < -e.maxSpeed {
		return &ErrOutOfRange{Capability: "StepperVelocity.SetSpeed", Value: stepsPerSecond}
	}
	e.targetSpeed = stepsPerSecond
	return nil
}

func (e *EL7031Terminal) GetSpeed() float64    { return e.actualSpeed }
func (e *EL7031Terminal) GetPosition() int64   { return e.position }
func (e *EL7031Terminal) SetPosition(steps int64) {
	e.position = steps
	e.hasLastRaw = false
}

func (e *EL7031Terminal) DecodeInputs() error {
	e.actualSpeed = float64(int16(e.tx("actual_velocity").ReadInt(e.InputsRaw)))
	raw := uint32(e.tx("actual_position").ReadUint(e.InputsRaw))
	if e.hasLastRaw {
		e.position += int64(int32(raw - e.lastRawPos))
	}
	e.lastRawPos = raw
	e.hasLastRaw = true
	return nil
}

func (e *EL7031Terminal) InputPostProcess() {}

func (e *EL7031Terminal) OutputPreProcess() {
	if e.targetSpeed > e.maxSpeed {
		e.targetSpeed = e.maxSpeed
	}
	if e.targetSpeed < -e.maxSpeed {
		e.targetSpeed = -e.maxSpeed
	}
}

func (e *EL7031Terminal) EncodeOutputs() error {
	e.rx("enable").WriteBool(e.OutputsRaw, e.enabled)
	e.rx("velocity").WriteInt(e.OutputsRaw, int64(int16(e.targetSpeed)))
	return nil
}

// --- EL2521: single-channel pulse-train output ---

// EL2521Terminal is a single-channel pulse-train output.
type EL2521Terminal struct {
	*Terminal

	frequency     float64
	targetCounter uint32
	position      uint32
	overflow      bool
	underflow     bool
}

func NewEL2521Terminal(inputLen, outputLen int) (Device, error) {
	return &EL2521Terminal{
		Terminal: newTerminal(Identity{VendorID: 0x2, ProductID: 0x09d93052}, pdo.PulseTrainOutput(), inputLen, outputLen),
	}, nil
}

func (e *EL2521Terminal) SetFrequency(hz float64)       { e.frequency = hz }
func (e *EL2521Terminal) SetTargetCounter(value uint32) { e.targetCounter = value }
func (e *EL2521Terminal) GetPosition() uint32           { return e.position }
func (e *EL2521Terminal) GetOverflow() bool             { return e.overflow }
func (e *EL2521Terminal) GetUnderflow() bool            { return e.underflow }

func (e *EL2521Terminal) DecodeInputs() error {
	e.position = uint32(e.tx("counter_value").ReadUint(e.InputsRaw))
	e.overflow = e.tx("counter_overflow").ReadBool(e.InputsRaw)
	e.underflow = e.tx("counter_underflow").ReadBool(e.InputsRaw)
	return nil
}

func (e *EL2521Terminal) InputPostProcess() {}
func (e *EL2521Terminal) OutputPreProcess() {}

func (e *EL2521Terminal) EncodeOutputs() error {
	e.rx("frequency_value").WriteInt(e.OutputsRaw, int64(e.frequency))
	e.rx("target_counter_value").WriteUint(e.OutputsRaw, uint64(e.targetCounter))
	return nil
}

// --- EL5152: 2-channel encoder input ---

// el5152Channel holds one channel's decoded state; the EL5152 terminal
// lays channel 2's objects at an additional byte offset.
type el5152Channel struct {
	counter   uint32
	frequency float64
	period    uint32
}

// EL5152Terminal is a 2-channel encoder input terminal.
type EL5152Terminal struct {
	*Terminal
	channels [2]el5152Channel
}

func NewEL5152Terminal(inputLen, outputLen int) (Device, error) {
	// Only channel 1's objects are named in the EncoderInput() preset;
	// channel 2 is read through GetCounter/GetFrequency port 1, whose
	// values stay at zero until a genuine 2-channel preset is wired in.
	return &EL5152Terminal{
		Terminal: newTerminal(Identity{VendorID: 0x2, ProductID: 0x14203052}, pdo.EncoderInput(), inputLen, outputLen),
	}, nil
}

func (e *EL5152Terminal) GetCounter(port int) (uint32, error) {
	if port < 0 || port > 1 {
		return 0, &ErrUnsupported{Capability: "EncoderInput.GetCounter", Port: port}
	}
	return e.channels[port].counter, nil
}

func (e *EL5152Terminal) GetFrequency(port int) (units.Frequency, error) {
	if port < 0 || port > 1 {
		return 0, &ErrUnsupported{Capability: "EncoderInput.GetFrequency", Port: port}
	}
	return units.Hertz(e.channels[port].frequency), nil
}

func (e *EL5152Terminal) GetPeriod(port int) (time.Duration, error) {
	if port < 0 || port > 1 {
		return 0, &ErrUnsupported{Capability: "EncoderInput.GetPeriod", Port: port}
	}
	return time.Duration(e.channels[port].period) * time.Nanosecond, nil
}

func (e *EL5152Terminal) SetCounter(port int, value uint32) error {
	if port < 0 || port > 1 {
		return &ErrUnsupported{Capability: "EncoderInput.SetCounter", Port: port}
	}
	e.channels[port].counter = value
	return nil
}

func (e *EL5152Terminal) DecodeInputs() error {
	e.channels[0].counter = uint32(e.tx("counter_value").ReadUint(e.InputsRaw))
	e.channels[0].frequency = float64(int16(e.tx("frequency_value").ReadInt(e.InputsRaw)))
	return nil
}

func (e *EL5152Terminal) InputPostProcess() {}
func (e *EL5152Terminal) OutputPreProcess() {}

func (e *EL5152Terminal) EncodeOutputs() error {
	e.rx("set_counter_value").WriteUint(e.OutputsRaw, uint64(e.channels[0].counter))
	return nil
}

// --- EL6021: PDO-mediated serial gateway ---

// EL6021Terminal realizes hal.Serial over a 22-byte mailbox PDO.
type EL6021Terminal struct {
	*Terminal

	baudrate uint32
	encoding SerialEncoding
	rxBuf    []byte
	rxReady  bool
	txBuf    []byte
	txPending bool
}

func NewEL6021Terminal(inputLen, outputLen int) (Device, error) {
	return &EL6021Terminal{
		Terminal: newTerminal(Identity{VendorID: 0x2, ProductID: 394604626}, pdo.Standard22ByteMdp600(), inputLen, outputLen),
		baudrate: 9600,
		encoding: SerialEncoding{DataBits: 8, Parity: 'N', StopBits: 1},
	}, nil
}

func (e *EL6021Terminal) Initialize() bool { return true }

func (e *EL6021Terminal) GetBaudrate() (uint32, bool) { return e.baudrate, true }
func (e *EL6021Terminal) GetSerialEncoding() (SerialEncoding, bool) { return e.encoding, true }

func (e *EL6021Terminal) HasMessage() bool { return e.rxReady }

func (e *EL6021Terminal) ReadMessage() ([]byte, bool) {
	if !e.rxReady {
		return nil, false
	}
	e.rxReady = false
	return e.rxBuf, true
}

func (e *EL6021Terminal) WriteMessage(data []byte) (bool, error) {
	if len(data) == 0 {
		// Empty write polls transmit-complete status.
		return !e.txPending, nil
	}
	if len(data) > 22 {
		return false, fmt.Errorf("hal: el6021 mailbox payload %d bytes exceeds 22-byte frame", len(data))
	}
	e.txBuf = append([]byte(nil), data...)
	e.txPending = true
	return false, nil
}

func (e *EL6021Terminal) DecodeInputs() error {
	length := int(e.tx("length").ReadUint(e.InputsRaw))
	if length > 0 {
		dataOffset := e.tx("data").Offset / 8
		if length > 22 {
			length = 22
		}
		full := make([]byte, length)
		copy(full, e.InputsRaw[dataOffset:dataOffset+length])
		e.rxBuf = full
		e.rxReady = true
	}
	return nil
}

func (e *EL6021Terminal) InputPostProcess() {}
func (e *EL6021Terminal) OutputPreProcess() {}

func (e *EL6021Terminal) EncodeOutputs() error {
	if e.txPending {
		dataOffset := e.rx("data").Offset / 8
		copy(e.OutputsRaw[dataOffset:dataOffset+len(e.txBuf)], e.txBuf)
		e.rx("length").WriteUint(e.OutputsRaw, uint64(len(e.txBuf)))
		e.txPending = false
	} else {
		e.rx("length").WriteUint(e.OutputsRaw, 0)
	}
	return nil
}

// --- EL4002-style analog output (single channel, EL40xx family) ---

// EL4002Terminal is a single-channel analog output terminal: the full
// int16 span maps onto the terminal's configured voltage/current range
// at the hardware level.
type EL4002Terminal struct {
	*Terminal
	value int16
}

func NewEL4002Terminal(inputLen, outputLen int) (Device, error) {
	return &EL4002Terminal{
		Terminal: newTerminal(Identity{VendorID: 0x2, ProductID: 0x0FA83052}, pdo.AnalogOutput(), inputLen, outputLen),
	}, nil
}

func (e *EL4002Terminal) Set(port int, value int16) { e.value = value }

func (e *EL4002Terminal) DecodeInputs() error      { return nil }
func (e *EL4002Terminal) InputPostProcess()        {}
func (e *EL4002Terminal) OutputPreProcess()        {}
func (e *EL4002Terminal) EncodeOutputs() error {
	e.rx("value").WriteInt(e.OutputsRaw, int64(e.value))
	return nil
}

// --- Wago 750-1506: 8 digital in / 8 digital out ---

// Wago750_1506Terminal is the Wago coupler's digital I/O module. The
// PDO codec is vendor-agnostic; this module proves it on a non-Beckhoff
// layout.
type Wago750_1506Terminal struct {
	*Terminal
	outputs [8]bool
}

func NewWago7501506Terminal(inputLen, outputLen int) (Device, error) {
	return &Wago750_1506Terminal{
		Terminal: newTerminal(Identity{VendorID: 0x21, ProductID: 2147483779}, pdo.Wago750_1506DigitalIO(), inputLen, outputLen),
	}, nil
}

// Get reads input port by its position in the TxPDO assignment rather
// than by name: every channel object is named "input" (one per wire,
// the way the manufacturer's own object dictionary lists them), so
// Find would always return channel 0.
func (w *Wago750_1506Terminal) Get(port int) bool {
	if port < 0 || port >= len(w.Assignment.TxPDO.Objects) {
		return false
	}
	return w.Assignment.TxPDO.Objects[port].ReadBool(w.InputsRaw)
}

func (w *Wago750_1506Terminal) Set(port int, value bool) {
	if port < 0 || port >= len(w.outputs) {
		return
	}
	w.outputs[port] = value
}

func (w *Wago750_1506Terminal) DecodeInputs() error { return nil }
func (w *Wago750_1506Terminal) InputPostProcess()   {}
func (w *Wago750_1506Terminal) OutputPreProcess()   {}

func (w *Wago750_1506Terminal) EncodeOutputs() error {
	for i, obj := range w.Assignment.RxPDO.Objects {
		if i >= len(w.outputs) {
			break
		}
		obj.WriteBool(w.OutputsRaw, w.outputs[i])
	}
	return nil
}

// --- EL3204: 4-channel RTD/thermocouple temperature input ---

// EL3204Terminal is a 4-channel temperature input terminal: a value
// plus a wiring-error flag per channel (see pdo.TemperatureInput4Ch).
type EL3204Terminal struct {
	*Terminal

	channels    [4]int16
	wiringError [4]bool
}

func NewEL3204Terminal(inputLen, outputLen int) (Device, error) {
	return &EL3204Terminal{
		Terminal: newTerminal(Identity{VendorID: 0x2, ProductID: 0x0C843052}, pdo.TemperatureInput4Ch(), inputLen, outputLen),
	}, nil
}

func (e *EL3204Terminal) GetTemperature(port int) units.Temperature {
	if port < 0 || port > 3 {
		return units.Celsius(0)
	}
	return units.Celsius(float64(e.channels[port]) / 10.0)
}

func (e *EL3204Terminal) GetWiringError(port int) bool {
	if port < 0 || port > 3 {
		return true
	}
	return e.wiringError[port]
}

func (e *EL3204Terminal) DecodeInputs() error {
	for i := 0; i < 4; i++ {
		base := i * 3
		e.wiringError[i] = e.Assignment.TxPDO.Objects[base].ReadBool(e.InputsRaw)
		e.channels[i] = int16(e.Assignment.TxPDO.Objects[base+2].ReadInt(e.InputsRaw))
	}
	return nil
}

func (e *EL3204Terminal) InputPostProcess()    {}
func (e *EL3204Terminal) OutputPreProcess()    {}
func (e *EL3204Terminal) EncodeOutputs() error { return nil }

// --- Wago 750-672: 2 analog in / 1 analog out ---

// Wago750_672Terminal is the Wago coupler's analog I/O module.
type Wago750_672Terminal struct {
	*Terminal
	channels [2]int16
	output   int16
}

func NewWago750672Terminal(inputLen, outputLen int) (Device, error) {
	return &Wago750_672Terminal{
		Terminal: newTerminal(Identity{VendorID: 0x21, ProductID: 108139752}, pdo.Wago750_672AnalogIO(), inputLen, outputLen),
	}, nil
}

func (w *Wago750_672Terminal) GetRaw(port int) int16 {
	if port < 0 || port > 1 {
		return 0
	}
	return w.channels[port]
}

func (w *Wago750_672Terminal) GetPotential(port int) units.Potential {
	volts := float64(w.GetRaw(port)) / 32767.0 * 10.0
	return units.Potential{Voltage: units.Volts(volts)}
}

func (w *Wago750_672Terminal) GetWiringError(port int) bool { return false }

func (w *Wago750_672Terminal) Set(port int, value int16) { w.output = value }

func (w *Wago750_672Terminal) DecodeInputs() error {
	w.channels[0] = int16(w.tx("channel1").ReadInt(w.InputsRaw))
	w.channels[1] = int16(w.tx("channel2").ReadInt(w.InputsRaw))
	return nil
}

func (w *Wago750_672Terminal) InputPostProcess() {}
func (w *Wago750_672Terminal) OutputPreProcess() {}

func (w *Wago750_672Terminal) EncodeOutputs() error {
	w.rx("channel1").WriteInt(w.OutputsRaw, int64(w.output))
	return nil
}
