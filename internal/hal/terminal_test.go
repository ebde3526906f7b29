package hal

import (
	"testing"

	"github.com/qitech/fieldbus-orchestrator/internal/pdo"
)

func TestEL7031StepperVelocityRoundTrip(t *testing.T) {
	dev, err := NewEL7031Terminal(2, 3)
	if err != nil {
		t.Fatalf("NewEL7031Terminal: %v", err)
	}
	stepper, ok := dev.(StepperVelocity)
	if !ok {
		t.Fatal("EL7031Terminal does not implement StepperVelocity")
	}
	stepper.SetEnabled(true)
	if err := stepper.SetSpeed(1200); err != nil {
		t.Fatalf("SetSpeed: %v", err)
	}
	if err := dev.EncodeOutputs(); err != nil {
		t.Fatalf("EncodeOutputs: %v", err)
	}

	term := dev.(*EL7031Terminal)
	got := term.rx("velocity").ReadInt(term.OutputsRaw)
	if got != 1200 {
		t.Fatalf("encoded velocity = %d, want 1200", got)
	}
	if !term.rx("enable").ReadBool(term.OutputsRaw) {
		t.Fatal("enable bit not set after SetEnabled(true)")
	}
}

func TestEL7031StepperVelocityOutOfRange(t *testing.T) {
	dev, _ := NewEL7031Terminal(2, 2)
	stepper := dev.(StepperVelocity)
	if err := stepper.SetSpeed(2_000_000); err == nil {
		t.Fatal("expected an out-of-range error for a speed above maxSpeed")
	}
}

func TestEL7031PositionAccumulatesAcrossWraparound(t *testing.T) {
	dev, _ := NewEL7031Terminal(8, 2)
	term := dev.(*EL7031Terminal)

	term.tx("actual_position").WriteUint(term.InputsRaw, 0xFFFFFFF0)
	if err := dev.DecodeInputs(); err != nil {
		t.Fatalf("DecodeInputs: %v", err)
	}
	term.tx("actual_position").WriteUint(term.InputsRaw, 0x10)
	if err := dev.DecodeInputs(); err != nil {
		t.Fatalf("DecodeInputs: %v", err)
	}

	stepper := dev.(StepperVelocity)
	if got := stepper.GetPosition(); got != 0x20 {
		t.Fatalf("position after wraparound = %d, want 32", got)
	}
}

func TestEL2521PulseTrainOutputRoundTrip(t *testing.T) {
	dev, err := NewEL2521Terminal(6, 7)
	if err != nil {
		t.Fatalf("NewEL2521Terminal: %v", err)
	}
	pto, ok := dev.(PulseTrainOutput)
	if !ok {
		t.Fatal("EL2521Terminal does not implement PulseTrainOutput")
	}
	pto.SetFrequency(500)
	pto.SetTargetCounter(1000)
	if err := dev.EncodeOutputs(); err != nil {
		t.Fatalf("EncodeOutputs: %v", err)
	}

	term := dev.(*EL2521Terminal)
	if got := term.rx("frequency_value").ReadInt(term.OutputsRaw); got != 500 {
		t.Fatalf("frequency_value = %d, want 500", got)
	}
	if got := term.rx("target_counter_value").ReadUint(term.OutputsRaw); got != 1000 {
		t.Fatalf("target_counter_value = %d, want 1000", got)
	}
}

func TestEL5152EncoderInputDecode(t *testing.T) {
	dev, err := NewEL5152Terminal(7, 5)
	if err != nil {
		t.Fatalf("NewEL5152Terminal: %v", err)
	}
	term := dev.(*EL5152Terminal)
	term.tx("counter_value").WriteUint(term.InputsRaw, 4242)

	if err := dev.DecodeInputs(); err != nil {
		t.Fatalf("DecodeInputs: %v", err)
	}

	enc, ok := dev.(EncoderInput)
	if !ok {
		t.Fatal("EL5152Terminal does not implement EncoderInput")
	}
	got, err := enc.GetCounter(0)
	if err != nil {
		t.Fatalf("GetCounter: %v", err)
	}
	if got != 4242 {
		t.Fatalf("GetCounter(0) = %d, want 4242", got)
	}
	if _, err := enc.GetCounter(2); err == nil {
		t.Fatal("expected ErrUnsupported for out-of-range port")
	}
}

func TestEL6021SerialRoundTrip(t *testing.T) {
	dev, err := NewEL6021Terminal(24, 24)
	if err != nil {
		t.Fatalf("NewEL6021Terminal: %v", err)
	}
	serial, ok := dev.(Serial)
	if !ok {
		t.Fatal("EL6021Terminal does not implement Serial")
	}

	payload := []byte("hello modbus")
	if _, err := serial.WriteMessage(payload); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	if err := dev.EncodeOutputs(); err != nil {
		t.Fatalf("EncodeOutputs: %v", err)
	}

	term := dev.(*EL6021Terminal)
	// Loop the encoded output back into the input buffer, standing in
	// for the bus round trip.
	copy(term.InputsRaw, term.OutputsRaw)

	if err := dev.DecodeInputs(); err != nil {
		t.Fatalf("DecodeInputs: %v", err)
	}
	if !serial.HasMessage() {
		t.Fatal("expected HasMessage() after looped-back decode")
	}
	got, ok := serial.ReadMessage()
	if !ok {
		t.Fatal("ReadMessage returned ok=false")
	}
	if string(got) != string(payload) {
		t.Fatalf("ReadMessage = %q, want %q", got, payload)
	}
	if serial.HasMessage() {
		t.Fatal("HasMessage should be false after the message is consumed")
	}
}

func TestWago7501506DigitalIORoundTrip(t *testing.T) {
	dev, err := NewWago7501506Terminal(1, 1)
	if err != nil {
		t.Fatalf("NewWago7501506Terminal: %v", err)
	}
	term := dev.(*Wago750_1506Terminal)
	term.Assignment.TxPDO.Objects[3].WriteBool(term.InputsRaw, true)

	in, ok := dev.(DigitalInput)
	if !ok {
		t.Fatal("Wago750_1506Terminal does not implement DigitalInput")
	}
	if !in.Get(3) {
		t.Fatal("Get(3) = false, want true")
	}
	if in.Get(4) {
		t.Fatal("Get(4) = true, want false")
	}

	out, ok := dev.(DigitalOutput)
	if !ok {
		t.Fatal("Wago750_1506Terminal does not implement DigitalOutput")
	}
	out.Set(5, true)
	if err := dev.EncodeOutputs(); err != nil {
		t.Fatalf("EncodeOutputs: %v", err)
	}
	if !term.Assignment.RxPDO.Objects[5].ReadBool(term.OutputsRaw) {
		t.Fatal("output bit 5 not set after Set(5, true) + EncodeOutputs")
	}
}

func TestWago750672AnalogIORoundTrip(t *testing.T) {
	dev, err := NewWago750672Terminal(4, 2)
	if err != nil {
		t.Fatalf("NewWago750672Terminal: %v", err)
	}
	term := dev.(*Wago750_672Terminal)
	term.tx("channel1").WriteInt(term.InputsRaw, 16000)

	if err := dev.DecodeInputs(); err != nil {
		t.Fatalf("DecodeInputs: %v", err)
	}

	in, ok := dev.(AnalogInput)
	if !ok {
		t.Fatal("Wago750_672Terminal does not implement AnalogInput")
	}
	if got := in.GetRaw(0); got != 16000 {
		t.Fatalf("GetRaw(0) = %d, want 16000", got)
	}
	if p := in.GetPotential(0); p.Voltage.Volts() <= 0 {
		t.Fatalf("GetPotential(0) = %+v, want a positive voltage", p)
	}

	out, ok := dev.(AnalogOutput)
	if !ok {
		t.Fatal("Wago750_672Terminal does not implement AnalogOutput")
	}
	out.Set(0, -5000)
	if err := dev.EncodeOutputs(); err != nil {
		t.Fatalf("EncodeOutputs: %v", err)
	}
	if got := term.rx("channel1").ReadInt(term.OutputsRaw); got != -5000 {
		t.Fatalf("encoded channel1 = %d, want -5000", got)
	}
}

func TestDefaultRegistryKnowsEveryBuiltInIdentity(t *testing.T) {
	r := DefaultRegistry()
	ids := []Identity{
		{VendorID: 0x2, ProductID: 0x1b7f3052},
		{VendorID: 0x2, ProductID: 0x09d93052},
		{VendorID: 0x2, ProductID: 0x14203052},
		{VendorID: 0x2, ProductID: 394604626},
		{VendorID: 0x2, ProductID: 0x0FA83052},
		{VendorID: 0x21, ProductID: 2147483779},
		{VendorID: 0x21, ProductID: 108139752},
		{VendorID: 0x2, ProductID: 0x0C843052},
	}
	for _, id := range ids {
		if !r.Known(id) {
			t.Errorf("DefaultRegistry does not know identity %+v", id)
		}
	}
	if r.Known(Identity{VendorID: 0xBAD, ProductID: 0xBAD}) {
		t.Fatal("unexpected identity reported as known")
	}
}

func TestTerminalIsUsedDefaultsTrueAndToggles(t *testing.T) {
	dev, err := NewEL4002Terminal(0, 2)
	if err != nil {
		t.Fatalf("NewEL4002Terminal: %v", err)
	}
	if !dev.IsUsed() {
		t.Fatal("a freshly built terminal should be used by default")
	}
	term := dev.(*EL4002Terminal)
	term.SetUsed(false)
	if dev.IsUsed() {
		t.Fatal("IsUsed() should report false after SetUsed(false)")
	}
}

func TestEL3204TemperatureInputDecode(t *testing.T) {
	dev, err := NewEL3204Terminal(byteLenForTest(pdo.TemperatureInput4Ch().TxPDO), 0)
	if err != nil {
		t.Fatalf("NewEL3204Terminal: %v", err)
	}
	term := dev.(*EL3204Terminal)
	term.Assignment.TxPDO.Objects[3*2].WriteBool(term.InputsRaw, true) // channel 2's wiring_error bit
	term.Assignment.TxPDO.Objects[3*1+2].WriteInt(term.InputsRaw, 1234) // channel 1's value, 0.1C units

	if err := dev.DecodeInputs(); err != nil {
		t.Fatalf("DecodeInputs: %v", err)
	}

	ti, ok := dev.(TemperatureInput)
	if !ok {
		t.Fatal("EL3204Terminal does not implement TemperatureInput")
	}
	if got := ti.GetTemperature(1); got.Celsius() != 123.4 {
		t.Fatalf("GetTemperature(1) = %v, want 123.4", got.Celsius())
	}
	if !ti.GetWiringError(2) {
		t.Fatal("GetWiringError(2) = false, want true")
	}
	if ti.GetWiringError(1) {
		t.Fatal("GetWiringError(1) = true, want false")
	}
	if !ti.GetWiringError(9) {
		t.Fatal("GetWiringError for an out-of-range port should report true (fail safe)")
	}
}

func byteLenForTest(a pdo.Assignment) int { return pdo.ByteLen(a.TotalBits()) }

func TestRegistryBuildUnknownIdentity(t *testing.T) {
	r := DefaultRegistry()
	_, err := r.Build(Identity{VendorID: 0xDEAD, ProductID: 0xBEEF}, 1, 1)
	if err == nil {
		t.Fatal("expected ErrUnknownIdentity for an unregistered identity")
	}
	if _, ok := err.(*ErrUnknownIdentity); !ok {
		t.Fatalf("expected *ErrUnknownIdentity, got %T", err)
	}
}
