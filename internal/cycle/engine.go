// Package cycle implements the real-time cycle engine: a single
// dedicated thread that performs one EtherCAT PDU exchange per
// iteration, lifts raw process data into typed device state, runs every
// machine's Act once, lowers device state back into raw process data,
// and sleeps to a target cycle period.
package cycle

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/qitech/fieldbus-orchestrator/internal/logging"
)

// MachineID identifies a machine for add/remove/lookup purposes,
// mirroring machine.IdentificationUnique without this package needing
// to import internal/machine (accept interfaces, avoid cycles).
type MachineID struct {
	Vendor  uint32
	Machine uint32
	Serial  uint32
}

// Bus is the EtherCAT main-device driver contract the engine depends
// on: one bounded async frame exchange per cycle.
type Bus interface {
	TxRx(ctx context.Context) error
}

// Device is one used terminal's decode/encode contract around a single
// cycle's act() pass: exactly one input decode and one output encode
// per used device, around act().
type Device interface {
	IsUsed() bool
	DecodeInputs() error
	InputPostProcess()
	OutputPreProcess()
	EncodeOutputs() error
}

// Machine is the cycle engine's view of a machine: one synchronous,
// bounded call per cycle.
type Machine interface {
	ID() MachineID
	Act(now time.Time)
}

// Config configures one Engine.
type Config struct {
	CycleTarget time.Duration
	// AsyncDeadline bounds the per-cycle async fan-out (tx_rx plus any
	// terminal async setters); a hang surfaces as a bounded error
	// instead of blocking the real-time thread indefinitely.
	AsyncDeadline time.Duration
	// Core, if non-negative, is the CPU core the cycle thread should be
	// pinned to (best-effort; see affinity_linux.go/affinity_other.go).
	Core int
	Log  *logging.Logger
}

// Engine is the real-time cycle loop. All of its state is touched only
// from the goroutine running Run; no machine method is ever called
// from another thread.
type Engine struct {
	cfg     Config
	log     *logging.Logger
	inbox   chan Message

	bus      Bus
	devices  []Device
	machines []Machine

	cycles       uint64
	lastCycleErr error
}

// New builds an Engine with no bus and no machines; both are added via
// the inbox (AddEtherCatSetup, AddMachines).
func New(cfg Config) *Engine {
	if cfg.CycleTarget <= 0 {
		cfg.CycleTarget = 300 * time.Microsecond
	}
	if cfg.AsyncDeadline <= 0 {
		cfg.AsyncDeadline = cfg.CycleTarget * 4
	}
	l := cfg.Log
	if l == nil {
		l = logging.New(logging.Config{Level: logging.LevelInfo})
	}
	return &Engine{
		cfg:   cfg,
		log:   l.With("cycle"),
		inbox: make(chan Message, 64),
	}
}

// Send enqueues a message for the engine to process at the top of its
// next iteration. Safe to call from any goroutine.
func (e *Engine) Send(m Message) {
	e.inbox <- m
}

// RegisterDevices replaces the engine's device list. Intended for setup
// before Run, or from within a message handler running on the engine's
// own goroutine.
func (e *Engine) RegisterDevices(devices []Device) {
	e.devices = devices
}

// Cycles reports how many iterations have completed, for tests and
// diagnostics.
func (e *Engine) Cycles() uint64 { return e.cycles }

// Run locks the calling goroutine to its OS thread (the closest Go gets
// to "one dedicated, pinned, real-time-scheduled thread"), attempts
// best-effort core pinning, and runs the loop (inbox, tx_rx, decode,
// act, encode, sleep) until ctx is done or a tx_rx error occurs. A
// tx_rx error stops the loop and is returned
// to the caller, which is expected to exit the process so an external
// supervisor can restart it.
func (e *Engine) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if e.cfg.Core >= 0 {
		if err := setAffinity(e.cfg.Core); err != nil {
			e.log.Warn("core pinning failed (continuing unpinned): %v", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		e.drainInbox()

		cycleStart := time.Now()

		if e.bus != nil {
			if err := e.txRx(ctx); err != nil {
				e.lastCycleErr = err
				e.log.Error("tx_rx failed, halting cycle engine: %v", err)
				return fmt.Errorf("cycle: tx_rx: %w", err)
			}
			for _, d := range e.devices {
				if !d.IsUsed() {
					continue
				}
				if err := d.DecodeInputs(); err != nil {
					e.log.Error("decode inputs failed, halting: %v", err)
					return fmt.Errorf("cycle: decode inputs: %w", err)
				}
				d.InputPostProcess()
			}
		}

		for _, m := range e.machines {
			m.Act(cycleStart)
		}

		if e.bus != nil {
			for _, d := range e.devices {
				if !d.IsUsed() {
					continue
				}
				d.OutputPreProcess()
				if err := d.EncodeOutputs(); err != nil {
					e.log.Error("encode outputs failed, halting: %v", err)
					return fmt.Errorf("cycle: encode outputs: %w", err)
				}
			}
		}

		e.cycles++
		e.sleepUntil(cycleStart.Add(e.cfg.CycleTarget))
	}
}

// txRx runs the bus exchange inside a bounded errgroup so a hanging
// driver call surfaces as a deadline error rather than blocking the
// real-time thread forever; any async work inside a device driver must
// complete within a small bounded time.
func (e *Engine) txRx(ctx context.Context) error {
	deadline, cancel := context.WithTimeout(ctx, e.cfg.AsyncDeadline)
	defer cancel()

	g, gctx := errgroup.WithContext(deadline)
	g.Go(func() error {
		return e.bus.TxRx(gctx)
	})
	return g.Wait()
}

// sleepUntil spin-sleeps when a bus is present (CPU burn traded for
// determinism) and yielding-sleeps otherwise, letting the CPU idle
// when there is no bus to pace.
func (e *Engine) sleepUntil(deadline time.Time) {
	if e.bus != nil {
		for time.Now().Before(deadline) {
			runtime.Gosched()
		}
		return
	}
	if d := time.Until(deadline); d > 0 {
		time.Sleep(d)
	}
}

func (e *Engine) drainInbox() {
	for {
		select {
		case msg := <-e.inbox:
			e.handle(msg)
		default:
			return
		}
	}
}

func (e *Engine) handle(msg Message) {
	switch m := msg.(type) {
	case AddEtherCatSetup:
		e.bus = m.Bus
	case AddMachines:
		for _, nm := range m.Machines {
			e.upsertMachine(nm)
		}
	case DeleteMachine:
		e.deleteMachine(m.ID)
	case WriteMachineDeviceInfo:
		e.log.Warn("device identity write for position %d ignored: the running cycle engine never writes EEPROM", m.DevicePosition)
	case MutateMachine:
		target, ok := e.findMachine(m.ID)
		if !ok {
			e.log.Warn("mutate: no machine with id %+v", m.ID)
			return
		}
		if err := m.Apply(target); err != nil {
			e.log.Warn("mutate: machine %+v rejected command: %v", m.ID, err)
		}
	default:
		e.log.Warn("unknown inbox message %T", msg)
	}
}

func (e *Engine) upsertMachine(nm Machine) {
	for i, existing := range e.machines {
		if existing.ID() == nm.ID() {
			e.machines[i] = nm
			return
		}
	}
	e.machines = append(e.machines, nm)
}

func (e *Engine) findMachine(id MachineID) (Machine, bool) {
	for _, existing := range e.machines {
		if existing.ID() == id {
			return existing, true
		}
	}
	return nil, false
}

func (e *Engine) deleteMachine(id MachineID) {
	for i, existing := range e.machines {
		if existing.ID() == id {
			e.machines = append(e.machines[:i], e.machines[i+1:]...)
			return
		}
	}
}
