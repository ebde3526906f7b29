// Machine construction from configuration: cfg.Machines names the
// machines a fixed installation wants running without a live bus scan,
// but carries no terminal-level wiring, so each device here is a
// standalone hal.Terminal sized off its own preset. These machines run
// for real, driving in-memory terminals, until a platform build
// installs a concrete Bus and a real EtherCAT scan replaces this path.
package main

import (
	"fmt"

	"github.com/qitech/fieldbus-orchestrator/internal/config"
	"github.com/qitech/fieldbus-orchestrator/internal/cycle"
	"github.com/qitech/fieldbus-orchestrator/internal/hal"
	"github.com/qitech/fieldbus-orchestrator/internal/machine"
	"github.com/qitech/fieldbus-orchestrator/internal/modbus"
	"github.com/qitech/fieldbus-orchestrator/internal/pdo"
	"github.com/qitech/fieldbus-orchestrator/internal/registry"
	"github.com/qitech/fieldbus-orchestrator/internal/units"
)

// screwModbusBaud/screwSlaveID/screwMotorPoles are the default VFD
// link parameters assumed for a standalone-built extruder's screw
// drive.
const (
	screwModbusBaud  = 9600
	screwSlaveID     = 1
	screwMotorPoles  = 4.0
)

// spoolStepsPerRev is the default full-step count per revolution
// assumed for every stepper built by this file.
const spoolStepsPerRev = 200.0

// pullWheelDiameterMM is the default drive-wheel diameter assumed for every
// linear-motion stepper (puller, buffer, gluetex addon) built by this
// file, in the absence of a per-machine wheel geometry field in
// config.MachineConfig.
const pullWheelDiameterMM = 40.0

func newLinearConverter() (units.LinearStepConverter, error) {
	angular, err := units.NewAngularStepConverter(spoolStepsPerRev)
	if err != nil {
		return units.LinearStepConverter{}, err
	}
	circular := units.CircularConverterFromDiameter(units.Millimeters(pullWheelDiameterMM))
	return units.NewLinearStepConverter(angular, circular), nil
}

func byteLen(a pdo.Assignment) int { return pdo.ByteLen(a.TotalBits()) }

func newStepper() (hal.StepperVelocity, error) {
	p := pdo.VelocityControlCompact()
	dev, err := hal.NewEL7031Terminal(byteLen(p.TxPDO), byteLen(p.RxPDO))
	if err != nil {
		return nil, err
	}
	return dev.(hal.StepperVelocity), nil
}

func newDigitalIO() (*digitalIODevice, error) {
	p := pdo.Wago750_1506DigitalIO()
	dev, err := hal.NewWago7501506Terminal(byteLen(p.TxPDO), byteLen(p.RxPDO))
	if err != nil {
		return nil, err
	}
	return &digitalIODevice{dev.(hal.DigitalInput), dev.(hal.DigitalOutput)}, nil
}

// digitalIODevice bundles the one Wago750_1506Terminal instance's two
// capability faces so callers can hand out either without constructing a
// second terminal for the same physical coupler module.
type digitalIODevice struct {
	hal.DigitalInput
	hal.DigitalOutput
}

func newAnalogInput() (hal.AnalogInput, error) {
	p := pdo.Wago750_672AnalogIO()
	dev, err := hal.NewWago750672Terminal(byteLen(p.TxPDO), byteLen(p.RxPDO))
	if err != nil {
		return nil, err
	}
	return dev.(hal.AnalogInput), nil
}

func newAnalogOutput() (hal.AnalogOutput, error) {
	p := pdo.AnalogOutput()
	dev, err := hal.NewEL4002Terminal(byteLen(p.TxPDO), byteLen(p.RxPDO))
	if err != nil {
		return nil, err
	}
	return dev.(hal.AnalogOutput), nil
}

func newTemperatureInput() (hal.TemperatureInput, error) {
	p := pdo.TemperatureInput4Ch()
	dev, err := hal.NewEL3204Terminal(byteLen(p.TxPDO), byteLen(p.RxPDO))
	if err != nil {
		return nil, err
	}
	return dev.(hal.TemperatureInput), nil
}

func machineID(mc config.MachineConfig) cycle.MachineID {
	return cycle.MachineID{Vendor: mc.Vendor, Machine: mc.Machine, Serial: mc.Serial}
}

// findPeer returns the first configured machine's ID of the given
// kind, for the cross-machine weak references a fixed installation
// needs wired (puller speed into a winder's spool controller, and so
// on). cfg.Machines carries no explicit topology graph beyond kind, so
// "the first configured machine of that kind" stands in for it --
// correct for every single-line installation.
func findPeer(machines []config.MachineConfig, kind string) (cycle.MachineID, bool) {
	for _, mc := range machines {
		if mc.Kind == kind {
			return machineID(mc), true
		}
	}
	return cycle.MachineID{}, false
}

// buildMachine constructs one real, standalone-terminal-backed machine
// for mc, per mc.Kind.
func buildMachine(mc config.MachineConfig, cfg []config.MachineConfig, reg *registry.Registry) (machine.Machine, error) {
	id := machineID(mc)

	switch mc.Kind {
	case "winder":
		spool, err := newStepper()
		if err != nil {
			return nil, err
		}
		traverseMotor, err := newStepper()
		if err != nil {
			return nil, err
		}
		io, err := newDigitalIO()
		if err != nil {
			return nil, err
		}
		analogIn, err := newAnalogInput()
		if err != nil {
			return nil, err
		}
		tensionArm := machine.NewTensionArm(analogIn, 0, -32767, 32767, units.Degrees(20), units.Degrees(90))
		pullerID, _ := findPeer(cfg, "puller")
		return machine.NewWinder(id, spool, spoolStepsPerRev, traverseMotor, io.DigitalInput, tensionArm, reg.WeakRef(pullerID)), nil

	case "puller":
		motor, err := newStepper()
		if err != nil {
			return nil, err
		}
		linear, err := newLinearConverter()
		if err != nil {
			return nil, err
		}
		return machine.NewPuller(id, motor, linear), nil

	case "extruder":
		var zones [4]*machine.TemperatureZone
		var watts [4]float64
		for i := range zones {
			sensor, err := newTemperatureInput()
			if err != nil {
				return nil, err
			}
			heater, err := newAnalogOutput()
			if err != nil {
				return nil, err
			}
			zones[i] = machine.NewTemperatureZone(sensor, 0, heater, 0)
			watts[i] = 1500
		}
		pressureSensor, err := newAnalogInput()
		if err != nil {
			return nil, err
		}
		client := modbus.NewClient(screwModbusBaud, modbus.Coding7E1)
		screw := machine.NewScrewSpeedController(client, screwSlaveID, pressureSensor, 0, screwMotorPoles, units.NewFixedTransmission(1, 1))
		return machine.NewExtruder(id, zones, watts, screw), nil

	case "buffer":
		motor, err := newStepper()
		if err != nil {
			return nil, err
		}
		io, err := newDigitalIO()
		if err != nil {
			return nil, err
		}
		linear, err := newLinearConverter()
		if err != nil {
			return nil, err
		}
		upstreamID, _ := findPeer(cfg, "extruder")
		downstreamID, _ := findPeer(cfg, "puller")
		return machine.NewBuffer(id, motor, io.DigitalInput, linear, units.Millimeters(500), reg.WeakRef(upstreamID), reg.WeakRef(downstreamID)), nil

	case "gluetex":
		motor, err := newStepper()
		if err != nil {
			return nil, err
		}
		io, err := newDigitalIO()
		if err != nil {
			return nil, err
		}
		linear, err := newLinearConverter()
		if err != nil {
			return nil, err
		}
		pullerID, _ := findPeer(cfg, "puller")
		return machine.NewGluetexAddonMotor(id, motor, io.DigitalInput, linear, reg.WeakRef(pullerID)), nil

	case "aquapath":
		io, err := newDigitalIO()
		if err != nil {
			return nil, err
		}
		sensor, err := newTemperatureInput()
		if err != nil {
			return nil, err
		}
		heater, err := newAnalogOutput()
		if err != nil {
			return nil, err
		}
		zone := machine.NewTemperatureZone(sensor, 0, heater, 0)
		return machine.NewAquapath(id, io.DigitalOutput, 0, zone), nil

	default:
		return nil, fmt.Errorf("machines: unknown kind %q for vendor=%d machine=%d serial=%d", mc.Kind, mc.Vendor, mc.Machine, mc.Serial)
	}
}

// buildConfiguredMachines builds every machine named in cfg.Machines,
// registers each in reg, and returns the cycle.Machine slice the engine
// should be handed via one AddMachines message.
func buildConfiguredMachines(cfg []config.MachineConfig, reg *registry.Registry) ([]cycle.Machine, []error) {
	var built []cycle.Machine
	var errs []error
	for _, mc := range cfg {
		m, err := buildMachine(mc, cfg, reg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		reg.Add(m)
		built = append(built, m)
	}
	return built, errs
}
