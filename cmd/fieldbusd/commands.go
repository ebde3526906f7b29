// Inbound command dispatch: decodes a command payload addressed to one
// machine identity and hands it to the cycle engine as a MutateMachine
// message, so the Mutate call itself runs on the cycle thread
// alongside every other machine touch.
package main

import (
	"fmt"

	"github.com/qitech/fieldbus-orchestrator/internal/cycle"
	"github.com/qitech/fieldbus-orchestrator/internal/logging"
	"github.com/qitech/fieldbus-orchestrator/internal/machine"
)

// dispatchCommand decodes payload into a Mutation and enqueues a
// MutateMachine message addressed to vendor/machine/serial. Called on the
// MQTT client's own callback goroutine, so it only decodes and enqueues --
// it never touches a machine directly.
func dispatchCommand(engine *cycle.Engine, log *logging.Logger, vendor, machineNo, serial uint32, payload []byte) {
	mutation, err := machine.DecodeMutation(payload)
	if err != nil {
		log.Warn("cmd: undecodable payload for vendor=%d machine=%d serial=%d: %v", vendor, machineNo, serial, err)
		return
	}

	id := cycle.MachineID{Vendor: vendor, Machine: machineNo, Serial: serial}
	engine.Send(cycle.MutateMachine{
		ID: id,
		Apply: func(m cycle.Machine) error {
			mm, ok := m.(machine.Machine)
			if !ok {
				return fmt.Errorf("machine %+v does not accept mutations", id)
			}
			return mm.Mutate(mutation)
		},
	})
}
