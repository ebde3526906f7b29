package registry

import "github.com/qitech/fieldbus-orchestrator/internal/cycle"

// WeakRef is a non-owning handle to a peer machine, identified by its
// ID rather than held by pointer: upgraded inside act() for the
// duration of a single peer read and immediately released. Go has no
// native weak-pointer/finalizer primitive suited to this contract, so
// Upgrade performs a fresh map
// lookup every call instead: once a machine is removed from its
// Registry, every WeakRef pointing at it reports ok=false from that
// moment on, which is exactly invariant I3 ("weak machine references
// never resurrect a dropped machine") without needing runtime.AddCleanup
// or unsafe weak pointers.
type WeakRef struct {
	registry *Registry
	id       cycle.MachineID
}

// Upgrade resolves the reference to its current machine, if it still
// exists in the registry. The caller must not retain the returned
// Machine beyond the current act() call, and must not mutate the peer;
// only read its exposed accessors.
func (w WeakRef) Upgrade() (Machine, bool) {
	if w.registry == nil {
		return nil, false
	}
	return w.registry.Get(w.id)
}

// ID reports the identity this reference resolves against, without
// touching the registry.
func (w WeakRef) ID() cycle.MachineID { return w.id }
