package eeprom

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/qitech/fieldbus-orchestrator/internal/pdo"
)

// HazardAck is an explicit, non-default-constructible acknowledgement
// that the caller understands WriteDangerous can corrupt a terminal's
// EEPROM if interrupted mid-write. There is no way to obtain one except
// by calling AcknowledgeHazard with the exact confirmation phrase --
// there is deliberately no "just do it" shortcut.
type HazardAck struct{ ok bool }

const hazardPhrase = "I understand this can corrupt terminal EEPROM"

// AcknowledgeHazard returns a HazardAck if phrase matches exactly,
// otherwise an error. Intended to be called once, interactively, by the
// offline configuration CLI this package's write path is restricted to
// -- never by the cycle engine.
func AcknowledgeHazard(phrase string) (HazardAck, error) {
	if phrase != hazardPhrase {
		return HazardAck{}, fmt.Errorf("eeprom: hazard not acknowledged (expected exact phrase %q)", hazardPhrase)
	}
	return HazardAck{ok: true}, nil
}

// WriteDangerous writes the 4-word identity tuple to the terminal at
// position, in vendor, serial, machine, role order. Requires a
// HazardAck obtained from
// AcknowledgeHazard; the control loop never calls this.
func WriteDangerous(ctx context.Context, client SDOClient, position int, base uint16, id Identity, ack HazardAck) error {
	if !ack.ok {
		return fmt.Errorf("eeprom: write to position %d refused: no hazard acknowledgement", position)
	}
	words := [4]uint32{id.Vendor, id.Serial, id.Machine, id.Role}
	for i, w := range words {
		if w > 0xFFFF {
			return fmt.Errorf("eeprom: word %d value %d does not fit in 16 bits", i, w)
		}
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, uint16(w))
		err := client.Download(ctx, position, pdo.DownloadRequest{ConfigWrite: pdo.ConfigWrite{
			Index:    base + uint16(i),
			Subindex: 0,
			Value:    buf,
		}})
		if err != nil {
			return fmt.Errorf("eeprom: write word %d at position %d: %w", i, position, err)
		}
	}
	return nil
}
