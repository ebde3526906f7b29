// Package eeprom implements device-identification-via-EEPROM (C9):
// reading a fixed-address 4-word identity tuple from each scanned
// terminal and grouping terminals into machines by that tuple. Writes
// use the hazard-gated "write dangerously" SDO route (WriteDangerous),
// which the cycle engine never calls.
package eeprom

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/qitech/fieldbus-orchestrator/internal/hal"
	"github.com/qitech/fieldbus-orchestrator/internal/pdo"
)

// BaseAddress is the default EEPROM word address of the first identity
// word (vendor); a terminal may override it.
const BaseAddress uint16 = 0x0028

// SDOClient is the CoE/SDO request/response contract eeprom reads and
// writes ride on, satisfied by whatever EtherCAT main-device binding the
// bus driver exposes. Named narrowly so this package never needs to know
// about the bus driver's concrete type.
type SDOClient interface {
	Upload(ctx context.Context, position int, req pdo.UploadRequest) ([]byte, error)
	Download(ctx context.Context, position int, req pdo.DownloadRequest) error
}

// Identity is the 4-word tuple read from a terminal's EEPROM: vendor,
// serial, machine, and this terminal's role within that machine.
type Identity struct {
	Vendor  uint32
	Serial  uint32
	Machine uint32
	Role    uint32
}

// IsUnidentified reports whether vendor, serial, and machine are all
// zero -- such a terminal is excluded from machine grouping.
func (id Identity) IsUnidentified() bool {
	return id.Vendor == 0 && id.Serial == 0 && id.Machine == 0
}

// Key is the (vendor, serial, machine) triple that is a machine's unique
// key; Role is deliberately excluded so every terminal belonging to one
// machine maps to the same Key.
type Key struct {
	Vendor  uint32
	Serial  uint32
	Machine uint32
}

func (id Identity) key() Key {
	return Key{Vendor: id.Vendor, Serial: id.Serial, Machine: id.Machine}
}

// Read reads the 4 little-endian 16-bit words at base (default
// BaseAddress) from the terminal at bus position, in vendor, serial,
// machine, role order, and widens each to uint32 -- EEPROM words are
// 16-bit but the identity tuple's fields are 32-bit, so a bus
// coupler's own role (0) and every other terminal's role compare
// without truncation surprises.
func Read(ctx context.Context, client SDOClient, position int, base uint16) (Identity, error) {
	words := make([]uint16, 4)
	for i := range words {
		data, err := client.Upload(ctx, position, pdo.UploadRequest{Index: base + uint16(i), Subindex: 0})
		if err != nil {
			return Identity{}, fmt.Errorf("eeprom: read word %d at position %d: %w", i, position, err)
		}
		if len(data) < 2 {
			return Identity{}, fmt.Errorf("eeprom: short read (%d bytes) for word %d at position %d", len(data), i, position)
		}
		words[i] = binary.LittleEndian.Uint16(data[:2])
	}
	return Identity{
		Vendor:  uint32(words[0]),
		Serial:  uint32(words[1]),
		Machine: uint32(words[2]),
		Role:    uint32(words[3]),
	}, nil
}

// ScannedTerminal pairs a bus position with the identity read from it,
// the unit Group operates over.
type ScannedTerminal struct {
	Position int
	Identity Identity
}

// Group is one machine's worth of terminals: its unique key and the
// position->role mapping of every terminal sharing that key.
type Group struct {
	Key   Key
	Roles map[uint32]int // role -> bus position
}

// Coupler returns the bus position of this group's bus coupler (role 0)
// and whether one was found.
func (g Group) Coupler() (int, bool) {
	p, ok := g.Roles[0]
	return p, ok
}

// ErrDuplicateRole is returned by Group when two terminals in the same
// machine claim the same role; role must be unique per machine.
type ErrDuplicateRole struct {
	Key  Key
	Role uint32
}

func (e *ErrDuplicateRole) Error() string {
	return fmt.Sprintf("eeprom: duplicate role %d within machine vendor=%d serial=%d machine=%d",
		e.Role, e.Key.Vendor, e.Key.Serial, e.Key.Machine)
}

// GroupTerminals groups scanned terminals into machines by their
// (vendor, serial, machine) key, skipping unidentified terminals.
// Groups are returned in the order their key first appears in scanned.
func GroupTerminals(scanned []ScannedTerminal) ([]Group, error) {
	order := make([]Key, 0, len(scanned))
	byKey := make(map[Key]*Group)

	for _, st := range scanned {
		if st.Identity.IsUnidentified() {
			continue
		}
		k := st.Identity.key()
		g, ok := byKey[k]
		if !ok {
			g = &Group{Key: k, Roles: make(map[uint32]int)}
			byKey[k] = g
			order = append(order, k)
		}
		if existingPos, taken := g.Roles[st.Identity.Role]; taken && existingPos != st.Position {
			return nil, &ErrDuplicateRole{Key: k, Role: st.Identity.Role}
		}
		g.Roles[st.Identity.Role] = st.Position
	}

	groups := make([]Group, 0, len(order))
	for _, k := range order {
		groups = append(groups, *byKey[k])
	}
	return groups, nil
}

// UnknownIdentityError wraps hal.ErrUnknownIdentity with the bus
// position it was scanned at, so the dump-EEPROM-and-abort path can
// report where on the bus the terminal sits.
type UnknownIdentityError struct {
	Position int
	Identity hal.Identity
	Dump     Identity
}

func (e *UnknownIdentityError) Error() string {
	return fmt.Sprintf(
		"eeprom: terminal at position %d has unknown identity vendor=%#x product=%#x revision=%#x; eeprom dump: vendor=%d serial=%d machine=%d role=%d",
		e.Position, e.Identity.VendorID, e.Identity.ProductID, e.Identity.Revision,
		e.Dump.Vendor, e.Dump.Serial, e.Dump.Machine, e.Dump.Role,
	)
}
