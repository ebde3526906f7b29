package cycle

import (
	"context"
	"testing"
	"time"
)

type countingDevice struct {
	used               bool
	decodes, encodes   int
	posts, pres        int
	failDecode         bool
}

func (d *countingDevice) IsUsed() bool { return d.used }
func (d *countingDevice) DecodeInputs() error {
	d.decodes++
	return nil
}
func (d *countingDevice) InputPostProcess()  { d.posts++ }
func (d *countingDevice) OutputPreProcess()  { d.pres++ }
func (d *countingDevice) EncodeOutputs() error {
	d.encodes++
	return nil
}

type countingMachine struct {
	id   MachineID
	acts int
}

func (m *countingMachine) ID() MachineID   { return m.id }
func (m *countingMachine) Act(now time.Time) { m.acts++ }

type cycleCountingBus struct {
	n      int
	target int
	cancel context.CancelFunc
}

func (b *cycleCountingBus) TxRx(ctx context.Context) error {
	b.n++
	if b.n >= b.target {
		b.cancel()
	}
	return nil
}

// TestEngineCycleInvariant is property P8: across N cycles with no
// tx_rx error, every used device sees exactly N decodes and N encodes,
// interleaved with exactly N act() calls per machine.
func TestEngineCycleInvariant(t *testing.T) {
	const n = 25

	eng := New(Config{CycleTarget: time.Microsecond, Core: -1})

	ctx, cancel := context.WithCancel(context.Background())
	bus := &cycleCountingBus{target: n, cancel: cancel}
	dev := &countingDevice{used: true}
	mach := &countingMachine{id: MachineID{Vendor: 1, Machine: 1, Serial: 1}}

	eng.RegisterDevices([]Device{dev})
	eng.Send(AddEtherCatSetup{Bus: bus})
	eng.Send(AddMachines{Machines: []Machine{mach}})

	if err := eng.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if dev.decodes != n || dev.encodes != n {
		t.Fatalf("decodes=%d encodes=%d, want %d each", dev.decodes, dev.encodes, n)
	}
	if dev.posts != n || dev.pres != n {
		t.Fatalf("posts=%d pres=%d, want %d each", dev.posts, dev.pres, n)
	}
	if mach.acts != n {
		t.Fatalf("acts=%d, want %d", mach.acts, n)
	}
	if eng.Cycles() != uint64(n) {
		t.Fatalf("Cycles()=%d, want %d", eng.Cycles(), n)
	}
}

// TestEngineUnusedDeviceSkipped checks a device with IsUsed()==false is
// never decoded or encoded.
func TestEngineUnusedDeviceSkipped(t *testing.T) {
	const n = 5
	eng := New(Config{CycleTarget: time.Microsecond, Core: -1})
	ctx, cancel := context.WithCancel(context.Background())
	bus := &cycleCountingBus{target: n, cancel: cancel}
	dev := &countingDevice{used: false}
	eng.RegisterDevices([]Device{dev})
	eng.Send(AddEtherCatSetup{Bus: bus})

	if err := eng.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if dev.decodes != 0 || dev.encodes != 0 {
		t.Fatalf("unused device should never be decoded/encoded, got decodes=%d encodes=%d", dev.decodes, dev.encodes)
	}
}

// TestEngineNoBusRunsMachinesOnly checks that with no bus installed the
// engine still runs machines every cycle (using the yielding sleep
// path), never touching devices.
func TestEngineNoBusRunsMachinesOnly(t *testing.T) {
	eng := New(Config{CycleTarget: 2 * time.Millisecond, Core: -1})
	mach := &countingMachine{id: MachineID{Vendor: 9}}
	eng.Send(AddMachines{Machines: []Machine{mach}})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := eng.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if mach.acts == 0 {
		t.Fatal("expected at least one act() with no bus present")
	}
}

// TestEngineDeleteMachine checks a DeleteMachine message removes a
// machine so its Act is no longer called.
func TestEngineDeleteMachine(t *testing.T) {
	const n = 10
	eng := New(Config{CycleTarget: time.Microsecond, Core: -1})
	ctx, cancel := context.WithCancel(context.Background())
	bus := &cycleCountingBus{target: n, cancel: cancel}
	id := MachineID{Vendor: 1}
	mach := &countingMachine{id: id}

	eng.Send(AddEtherCatSetup{Bus: bus})
	eng.Send(AddMachines{Machines: []Machine{mach}})
	eng.Send(DeleteMachine{ID: id})

	if err := eng.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if mach.acts != 0 {
		t.Fatalf("deleted machine should never act, got %d calls", mach.acts)
	}
}

// TestEngineTxRxErrorHalts checks a tx_rx failure stops the loop and
// returns an error.
func TestEngineTxRxErrorHalts(t *testing.T) {
	eng := New(Config{CycleTarget: time.Microsecond, Core: -1})
	failing := failingBus{}
	eng.Send(AddEtherCatSetup{Bus: failing})

	err := eng.Run(context.Background())
	if err == nil {
		t.Fatal("expected an error from a failing tx_rx")
	}
	if eng.Cycles() != 0 {
		t.Fatalf("no cycle should have completed, got %d", eng.Cycles())
	}
}

type failingBus struct{}

func (failingBus) TxRx(ctx context.Context) error { return errBusDown }

var errBusDown = errDown{}

type errDown struct{}

func (errDown) Error() string { return "bus down" }
