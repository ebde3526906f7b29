// Package registry implements cross-machine wiring: a central map from
// a machine's identity to the machine itself, and weak references that
// peers use to read each other's state for the duration of a single
// act() call, never longer.
package registry

import (
	"sync"

	"github.com/qitech/fieldbus-orchestrator/internal/cycle"
)

// Machine is anything the registry can hold and hand back through a
// WeakRef: the cycle engine's own Machine contract, since registry holds
// exactly the same machines the engine drives.
type Machine = cycle.Machine

// Registry holds every machine currently configured on the bus, keyed by
// its identity, behind a single RWMutex. Reads (Upgrade) are expected to
// vastly outnumber writes (Add/Remove), which only happen on
// configuration changes.
type Registry struct {
	mu       sync.RWMutex
	machines map[cycle.MachineID]Machine
}

// New builds an empty registry.
func New() *Registry {
	return &Registry{machines: make(map[cycle.MachineID]Machine)}
}

// Add registers a machine under its own ID, replacing any prior machine
// at that ID.
func (r *Registry) Add(m Machine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.machines[m.ID()] = m
}

// Remove drops the machine at id, if any. Any WeakRef already issued for
// id simply fails to Upgrade from this point on -- it never resurrects
// the removed machine, per invariant I3.
func (r *Registry) Remove(id cycle.MachineID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.machines, id)
}

// Get returns the machine at id without creating a WeakRef, for the
// engine's own per-cycle Act fan-out (not for peer-to-peer reads, which
// must go through WeakRef.Upgrade so the "released after one read"
// contract is enforced uniformly).
func (r *Registry) Get(id cycle.MachineID) (Machine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.machines[id]
	return m, ok
}

// WeakRef returns a handle that looks id up fresh on every Upgrade,
// instead of holding the machine itself.
func (r *Registry) WeakRef(id cycle.MachineID) WeakRef {
	return WeakRef{registry: r, id: id}
}

// Count reports how many machines are currently registered.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.machines)
}
