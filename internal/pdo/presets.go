package pdo

// Preset names a predefined PDO assignment, selecting one TxPDO set and
// one RxPDO set in a single configuration write.
type Preset int

const (
	PresetVelocityControlCompact Preset = iota
	PresetPositionInterface
	PresetFrequency
	PresetPeriod
	PresetStandard22ByteMdp600
	PresetEL2521PulseTrain
	PresetEL5152Encoder
	PresetEL40xxAnalogOutput
	PresetWago7501506DigitalIO
	PresetWago750672AnalogIO
	PresetEL3204Temperature
)

// Terminal bundles the TxPDO (device->host) and RxPDO (host->device)
// assignments selected by one preset write.
type Terminal struct {
	Preset Preset
	TxPDO  Assignment // inputs, decoded each cycle
	RxPDO  Assignment // outputs, encoded each cycle
}

// VelocityControlCompact is the RxPDO/TxPDO pair for the "Velocity
// Control Compact" preset on the EL70xx stepper family (EL7031,
// EL7031-0030, EL7041-0052).
// The compact velocity preset carries a 16-bit signed velocity setpoint
// out, and actual position/velocity plus status flags in.
func VelocityControlCompact() Terminal {
	rx := Layout("VelocityControlCompact.rx", []Object{
		{Name: "enable", BitWidth: 1, IsBoolean: true},
		{Name: "reserved_rx_1", BitWidth: 7},
		{Name: "velocity", BitWidth: 16},
	})
	tx := Layout("VelocityControlCompact.tx", []Object{
		{Name: "ready_to_enable", BitWidth: 1, IsBoolean: true},
		{Name: "ready", BitWidth: 1, IsBoolean: true},
		{Name: "warning", BitWidth: 1, IsBoolean: true},
		{Name: "error", BitWidth: 1, IsBoolean: true},
		{Name: "reserved_tx_1", BitWidth: 4},
		{Name: "actual_velocity", BitWidth: 16},
		{Name: "actual_position", BitWidth: 32},
	})
	return Terminal{Preset: PresetVelocityControlCompact, TxPDO: tx, RxPDO: rx}
}

// PositionInterface adds an absolute target-position RxPDO entry on top
// of the compact velocity layout, grounded on el7031_0030/pdo.rs's
// position-interface preset.
func PositionInterface() Terminal {
	rx := Layout("PositionInterface.rx", []Object{
		{Name: "enable", BitWidth: 1, IsBoolean: true},
		{Name: "reserved_rx_1", BitWidth: 7},
		{Name: "target_position", BitWidth: 32},
		{Name: "velocity", BitWidth: 16},
	})
	tx := Layout("PositionInterface.tx", []Object{
		{Name: "ready_to_enable", BitWidth: 1, IsBoolean: true},
		{Name: "ready", BitWidth: 1, IsBoolean: true},
		{Name: "warning", BitWidth: 1, IsBoolean: true},
		{Name: "error", BitWidth: 1, IsBoolean: true},
		{Name: "in_target_position", BitWidth: 1, IsBoolean: true},
		{Name: "reserved_tx_1", BitWidth: 3},
		{Name: "actual_velocity", BitWidth: 16},
		{Name: "actual_position", BitWidth: 32},
	})
	return Terminal{Preset: PresetPositionInterface, TxPDO: tx, RxPDO: rx}
}

// Frequency and Period are the two encoder-input preset variants, each
// laying out a single channel.
func Frequency() Terminal {
	tx := Layout("Frequency.tx", []Object{
		{Name: "counter_underflow", BitWidth: 1, IsBoolean: true},
		{Name: "counter_overflow", BitWidth: 1, IsBoolean: true},
		{Name: "reserved_1", BitWidth: 2},
		{Name: "set_counter_done", BitWidth: 1, IsBoolean: true},
		{Name: "counter_value", BitWidth: 32},
		{Name: "frequency_value", BitWidth: 16},
	})
	rx := Layout("Frequency.rx", []Object{
		{Name: "set_counter", BitWidth: 1, IsBoolean: true},
		{Name: "reserved_rx_1", BitWidth: 7},
		{Name: "set_counter_value", BitWidth: 32},
	})
	return Terminal{Preset: PresetFrequency, TxPDO: tx, RxPDO: rx}
}

func Period() Terminal {
	tx := Layout("Period.tx", []Object{
		{Name: "counter_underflow", BitWidth: 1, IsBoolean: true},
		{Name: "counter_overflow", BitWidth: 1, IsBoolean: true},
		{Name: "reserved_1", BitWidth: 2},
		{Name: "set_counter_done", BitWidth: 1, IsBoolean: true},
		{Name: "counter_value", BitWidth: 32},
		{Name: "period_value", BitWidth: 32},
	})
	rx := Layout("Period.rx", []Object{
		{Name: "set_counter", BitWidth: 1, IsBoolean: true},
		{Name: "reserved_rx_1", BitWidth: 7},
		{Name: "set_counter_value", BitWidth: 32},
	})
	return Terminal{Preset: PresetPeriod, TxPDO: tx, RxPDO: rx}
}

// PulseTrainOutput is the EL2521 1-channel pulse-train-output preset,
// grounded on el2521.rs's PtoControl/PtoStatus/PtoTarget/EncControl/
// EncStatus PDO objects.
func PulseTrainOutput() Terminal {
	rx := Layout("EL2521.rx", []Object{
		{Name: "disble_ramp", BitWidth: 1, IsBoolean: true}, // spelling kept from the manufacturer's own object name
		{Name: "reserved_rx_1", BitWidth: 7},
		{Name: "frequency_value", BitWidth: 16},
		{Name: "target_counter_value", BitWidth: 32},
		{Name: "set_counter", BitWidth: 1, IsBoolean: true},
		{Name: "reserved_rx_2", BitWidth: 7},
		{Name: "set_counter_value", BitWidth: 32},
	})
	tx := Layout("EL2521.tx", []Object{
		{Name: "select_end_counter", BitWidth: 1, IsBoolean: true},
		{Name: "ramp_active", BitWidth: 1, IsBoolean: true},
		{Name: "input_t", BitWidth: 1, IsBoolean: true},
		{Name: "input_z", BitWidth: 1, IsBoolean: true},
		{Name: "error", BitWidth: 1, IsBoolean: true},
		{Name: "sync_error", BitWidth: 1, IsBoolean: true},
		{Name: "reserved_tx_1", BitWidth: 2},
		{Name: "counter_underflow", BitWidth: 1, IsBoolean: true},
		{Name: "counter_overflow", BitWidth: 1, IsBoolean: true},
		{Name: "reserved_tx_2", BitWidth: 5},
		{Name: "set_counter_done", BitWidth: 1, IsBoolean: true},
		{Name: "counter_value", BitWidth: 32},
	})
	return Terminal{Preset: PresetEL2521PulseTrain, TxPDO: tx, RxPDO: rx}
}

// EncoderInput is the EL5152 2-channel encoder preset's per-channel
// status+value layout. Only channel 1's objects are laid out; the EL5152
// terminal in internal/hal decodes channel 1 only.
func EncoderInput() Terminal {
	tx := Layout("EL5152.tx", []Object{
		{Name: "counter_underflow", BitWidth: 1, IsBoolean: true},
		{Name: "counter_overflow", BitWidth: 1, IsBoolean: true},
		{Name: "reserved_1", BitWidth: 2},
		{Name: "set_counter_done", BitWidth: 1, IsBoolean: true},
		{Name: "counter_value", BitWidth: 32},
		{Name: "frequency_value", BitWidth: 16},
		{Name: "period_value", BitWidth: 32},
	})
	rx := Layout("EL5152.rx", []Object{
		{Name: "set_counter", BitWidth: 1, IsBoolean: true},
		{Name: "reserved_rx_1", BitWidth: 7},
		{Name: "set_counter_value", BitWidth: 32},
	})
	return Terminal{Preset: PresetEL5152Encoder, TxPDO: tx, RxPDO: rx}
}

// AnalogOutput is the EL40xx family's single-channel analog output
// preset, grounded on pdo/el40xx.rs's AnalogOutput{value: i16}.
func AnalogOutput() Terminal {
	rx := Layout("EL40xx.rx", []Object{
		{Name: "value", BitWidth: 16},
	})
	return Terminal{Preset: PresetEL40xxAnalogOutput, RxPDO: rx, TxPDO: Assignment{Name: "EL40xx.tx"}}
}

// Standard22ByteMdp600 is the EL6021 serial-gateway preset: a status/ctrl
// byte, a length byte, and a 22-byte mailbox payload, grounded on
// el6021.rs's Standard22ByteMdp600Input/Output structs.
func Standard22ByteMdp600() Terminal {
	rx := Layout("EL6021.rx", []Object{
		{Name: "control", BitWidth: 8},
		{Name: "length", BitWidth: 8},
		{Name: "data", BitWidth: 22 * 8},
	})
	tx := Layout("EL6021.tx", []Object{
		{Name: "status", BitWidth: 8},
		{Name: "length", BitWidth: 8},
		{Name: "data", BitWidth: 22 * 8},
	})
	return Terminal{Preset: PresetStandard22ByteMdp600, TxPDO: tx, RxPDO: rx}
}

// Wago750_1506DigitalIO is the Wago 750-1506 coupler's digital I/O
// preset, grounded on wago_modules/wago_750_1506.rs -- kept to show the
// codec is vendor-agnostic rather than EtherCAT/Beckhoff-only: 8 digital
// inputs and 8 digital outputs, bit-packed one byte each.
func Wago750_1506DigitalIO() Terminal {
	var rxObjs, txObjs []Object
	for i := 0; i < 8; i++ {
		txObjs = append(txObjs, Object{Name: "input", BitWidth: 1, IsBoolean: true})
		rxObjs = append(rxObjs, Object{Name: "output", BitWidth: 1, IsBoolean: true})
	}
	return Terminal{
		Preset: PresetWago7501506DigitalIO,
		TxPDO:  Layout("Wago750-1506.tx", txObjs),
		RxPDO:  Layout("Wago750-1506.rx", rxObjs),
	}
}

// TemperatureInput4Ch is the EL3204-family 4-channel RTD/thermocouple
// input preset: each channel gets a wiring-error bit (the terminal's own
// broken-sensor/out-of-range detection) and a signed 0.1°C-resolution
// value, the standard Beckhoff EL32xx scaling. No el3204.rs PDO file
// survived filtering -- extruder1/new.rs names EL3204 as the concrete
// terminal behind the TemperatureInput capability, so the per-channel
// shape here is reconstructed from that capability's contract
// (GetTemperature, GetWiringError) rather than ported from a PDO
// object list. Objects are read by index, not by name, since all four
// channels reuse the same two object names (the same reason
// Wago750_1506Terminal.Get reads by index instead of Find).
func TemperatureInput4Ch() Terminal {
	var txObjs []Object
	for i := 0; i < 4; i++ {
		txObjs = append(txObjs,
			Object{Name: "wiring_error", BitWidth: 1, IsBoolean: true},
			Object{Name: "reserved", BitWidth: 7},
			Object{Name: "value", BitWidth: 16},
		)
	}
	return Terminal{Preset: PresetEL3204Temperature, TxPDO: Layout("EL3204.tx", txObjs)}
}

// Wago750_672AnalogIO is the Wago 750-672 analog I/O terminal's preset,
// grounded on wago_modules/wago_750_672.rs: two analog input channels in,
// one analog output channel out, each a signed 16-bit value.
func Wago750_672AnalogIO() Terminal {
	tx := Layout("Wago750-672.tx", []Object{
		{Name: "channel1", BitWidth: 16},
		{Name: "channel2", BitWidth: 16},
	})
	rx := Layout("Wago750-672.rx", []Object{
		{Name: "channel1", BitWidth: 16},
	})
	return Terminal{Preset: PresetWago750672AnalogIO, TxPDO: tx, RxPDO: rx}
}
