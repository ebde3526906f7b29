// Command fieldbus-orchestrator is the composition root: it loads
// configuration, wires the event namespace, the cross-machine registry
// and the real-time cycle engine together, and runs the engine until
// signaled to stop: load config, connect MQTT, build the machines,
// start the cycle loop.
//
// The EtherCAT main-device driver itself is an external collaborator
// -- only the Bus interface's contract lives here, not an
// implementation. This entrypoint runs the cycle engine in its no-bus
// mode (yielding sleep) until a concrete Bus is installed via
// cycle.Engine.Send(cycle.AddEtherCatSetup{...}),
// which a platform-specific build can do from its own init path without
// touching this file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qitech/fieldbus-orchestrator/internal/config"
	"github.com/qitech/fieldbus-orchestrator/internal/cycle"
	"github.com/qitech/fieldbus-orchestrator/internal/eventbus"
	"github.com/qitech/fieldbus-orchestrator/internal/hal"
	"github.com/qitech/fieldbus-orchestrator/internal/logging"
	"github.com/qitech/fieldbus-orchestrator/internal/machine"
	"github.com/qitech/fieldbus-orchestrator/internal/registry"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the orchestrator's YAML configuration file")
	flag.Parse()

	cfg := config.LoadConfig(*configPath)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "fieldbus-orchestrator: invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{Level: parseLevel(cfg.Logging.Level)})
	log := logger.With("main")

	sink := buildSink(cfg, logger)
	defer closeSink(sink)

	// reg holds the machines buildConfiguredMachines builds from
	// cfg.Machines.
	// terminalRegistry is the (vendor,product,revision)->constructor
	// table a bus scan step consults for every discovered terminal.
	reg := registry.New()
	terminalRegistry := hal.DefaultRegistry()
	log.Info("terminal registry ready (%d known identities); %d configured machines to build",
		terminalRegistry.Count(), len(cfg.Machines))

	engine := cycle.New(cycle.Config{
		CycleTarget:   time.Duration(cfg.Cycle.TargetMicros) * time.Microsecond,
		AsyncDeadline: time.Duration(cfg.Cycle.AsyncDeadlineMicros) * time.Microsecond,
		Core:          cfg.Cycle.Core,
		Log:           logger,
	})

	built, buildErrs := buildConfiguredMachines(cfg.Machines, reg)
	for _, berr := range buildErrs {
		log.Error("machine construction failed: %v", berr)
	}
	if len(built) > 0 {
		// Each machine publishes State/LiveValues through its own
		// per-identity namespace over the shared sink.
		for _, m := range built {
			if ev, ok := m.(interface{ SetEvents(machine.EventSink) }); ok {
				id := m.ID()
				ev.SetEvents(eventbus.New(sink, id.Vendor, id.Machine, id.Serial))
			}
		}
		engine.Send(cycle.AddMachines{Machines: built})
		log.Info("sent %d constructed machines to the cycle engine", len(built))
	}

	if mqttSink, ok := sink.(*eventbus.MQTTSink); ok {
		if err := mqttSink.SubscribeCommands(func(vendor, machineNo, serial uint32, payload []byte) {
			dispatchCommand(engine, logger, vendor, machineNo, serial, payload)
		}); err != nil {
			log.Warn("command subscription unavailable: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting cycle engine (target=%dus, core=%d)", cfg.Cycle.TargetMicros, cfg.Cycle.Core)
	if err := engine.Run(ctx); err != nil {
		log.Error("cycle engine stopped: %v", err)
		os.Exit(1)
	}
	log.Info("cycle engine stopped cleanly after %d cycles", engine.Cycles())
}

// buildSink connects to the configured MQTT broker, falling back to a
// NoopSink (logged, not fatal) if the broker is unreachable -- the
// orchestrator's control loop must never fail to start just because
// the UI-facing event sink is down.
func buildSink(cfg *config.Config, logger *logging.Logger) eventbus.Sink {
	mqttSink, err := eventbus.NewMQTTSink(eventbus.MQTTConfig{
		BrokerURL: cfg.EventBus.BrokerURL,
		ClientID:  cfg.EventBus.ClientID,
		Username:  cfg.EventBus.Username,
		Password:  cfg.EventBus.Password,
		Site:      cfg.EventBus.Site,
		Device:    cfg.EventBus.Device,
	}, cfg.EventBus.QueueCapacity, logger)
	if err != nil {
		logger.With("main").Warn("event sink unavailable, falling back to no-op sink: %v", err)
		return eventbus.NoopSink{}
	}
	return mqttSink
}

func closeSink(sink eventbus.Sink) {
	if mqttSink, ok := sink.(*eventbus.MQTTSink); ok {
		mqttSink.Close()
	}
}

func parseLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
