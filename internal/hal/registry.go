package hal

import "fmt"

// Identity is a terminal's (vendor, product, revision) triple, the key
// used both to pick a constructor at scan time and to group terminals
// into machines via their EEPROM identity.
type Identity struct {
	VendorID   uint32
	ProductID  uint32
	Revision   uint32
}

// Constructor builds a Device for one scanned device, given its raw
// input/output buffer lengths (in bytes) as reported by the bus scan.
// It returns the concrete capability-bearing wrapper (e.g.
// *EL7031Terminal), not the bare embedded *Terminal, so callers can
// type-assert the result to the capability interfaces it implements.
type Constructor func(inputLen, outputLen int) (Device, error)

// Registry maps (vendor,product,revision) to the constructor for that
// terminal type. An EtherCAT scan must support an arbitrary terminal
// mix, so construction is keyed rather than hardcoded.
type Registry struct {
	byIdentity map[Identity]Constructor
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{byIdentity: make(map[Identity]Constructor)}
}

// Register associates a terminal constructor with an identity triple.
// Registering the same identity twice replaces the earlier constructor.
func (r *Registry) Register(id Identity, ctor Constructor) {
	r.byIdentity[id] = ctor
}

// ErrUnknownIdentity is returned when a scanned terminal's identity
// triple has no registered constructor. The scan dumps the terminal's
// EEPROM and aborts rather than guessing a layout.
type ErrUnknownIdentity struct {
	Identity Identity
}

func (e *ErrUnknownIdentity) Error() string {
	return fmt.Sprintf("hal: no terminal constructor registered for vendor=%#x product=%#x revision=%#x",
		e.Identity.VendorID, e.Identity.ProductID, e.Identity.Revision)
}

// Build looks up and invokes the constructor for id.
func (r *Registry) Build(id Identity, inputLen, outputLen int) (Device, error) {
	ctor, ok := r.byIdentity[id]
	if !ok {
		return nil, &ErrUnknownIdentity{Identity: id}
	}
	return ctor(inputLen, outputLen)
}

// Known reports whether an identity triple has a registered
// constructor, without building anything.
func (r *Registry) Known(id Identity) bool {
	_, ok := r.byIdentity[id]
	return ok
}

// Count reports how many identities have a registered constructor.
func (r *Registry) Count() int {
	return len(r.byIdentity)
}

// DefaultRegistry returns a Registry pre-populated with every concrete
// terminal type this repository implements (terminal.go), keyed by its
// manufacturer identity triple.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	const beckhoffVendor = 0x2

	r.Register(Identity{VendorID: beckhoffVendor, ProductID: 0x1b7f3052, Revision: 0}, NewEL7031Terminal)
	r.Register(Identity{VendorID: beckhoffVendor, ProductID: 0x09d93052, Revision: 0}, NewEL2521Terminal)
	r.Register(Identity{VendorID: beckhoffVendor, ProductID: 0x14203052, Revision: 0}, NewEL5152Terminal)
	r.Register(Identity{VendorID: beckhoffVendor, ProductID: 394604626, Revision: 0}, NewEL6021Terminal)
	r.Register(Identity{VendorID: beckhoffVendor, ProductID: 0x0FA83052, Revision: 0}, NewEL4002Terminal)
	r.Register(Identity{VendorID: 0x21, ProductID: 2147483779, Revision: 0}, NewWago7501506Terminal)
	r.Register(Identity{VendorID: 0x21, ProductID: 108139752, Revision: 0}, NewWago750672Terminal)
	r.Register(Identity{VendorID: beckhoffVendor, ProductID: 0x0C843052, Revision: 0}, NewEL3204Terminal)

	return r
}
