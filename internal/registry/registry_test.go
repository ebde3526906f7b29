package registry

import (
	"testing"
	"time"

	"github.com/qitech/fieldbus-orchestrator/internal/cycle"
)

// fakeMachine is the smallest cycle.Machine double: an identity and a
// counter of Act calls, enough to exercise Add/Remove/WeakRef without
// pulling in any real machine type.
type fakeMachine struct {
	id   cycle.MachineID
	acts int
}

func (f *fakeMachine) ID() cycle.MachineID { return f.id }
func (f *fakeMachine) Act(time.Time)       { f.acts++ }

func TestRegistryAddGet(t *testing.T) {
	r := New()
	m := &fakeMachine{id: cycle.MachineID{Vendor: 1, Machine: 2, Serial: 3}}
	r.Add(m)

	got, ok := r.Get(m.id)
	if !ok {
		t.Fatal("Get: not found after Add")
	}
	if got.ID() != m.id {
		t.Fatalf("Get returned wrong machine: %+v", got.ID())
	}
	if r.Count() != 1 {
		t.Fatalf("Count = %d, want 1", r.Count())
	}
}

func TestRegistryAddReplacesSameID(t *testing.T) {
	r := New()
	id := cycle.MachineID{Vendor: 1, Machine: 2, Serial: 3}
	first := &fakeMachine{id: id}
	second := &fakeMachine{id: id}

	r.Add(first)
	r.Add(second)

	if r.Count() != 1 {
		t.Fatalf("Count = %d, want 1 after replacing the same ID", r.Count())
	}
	got, _ := r.Get(id)
	if got != second {
		t.Fatal("Add did not replace the prior machine at the same ID")
	}
}

func TestRegistryRemove(t *testing.T) {
	r := New()
	id := cycle.MachineID{Vendor: 1, Machine: 2, Serial: 3}
	r.Add(&fakeMachine{id: id})

	r.Remove(id)

	if _, ok := r.Get(id); ok {
		t.Fatal("Get found a machine after Remove")
	}
	if r.Count() != 0 {
		t.Fatalf("Count = %d, want 0 after Remove", r.Count())
	}
}

// TestWeakRefUpgrade exercises the normal path: a WeakRef issued while the
// machine is present resolves to it.
func TestWeakRefUpgrade(t *testing.T) {
	r := New()
	id := cycle.MachineID{Vendor: 1, Machine: 2, Serial: 3}
	m := &fakeMachine{id: id}
	r.Add(m)

	ref := r.WeakRef(id)
	got, ok := ref.Upgrade()
	if !ok {
		t.Fatal("Upgrade: not found")
	}
	if got != m {
		t.Fatal("Upgrade returned a different machine than was registered")
	}
	if ref.ID() != id {
		t.Fatalf("ID() = %+v, want %+v", ref.ID(), id)
	}
}

// TestWeakRefUpgradeBeforeAdd exercises issuing a reference before the
// peer has been added: Upgrade simply reports not-found, rather than
// erroring, since Upgrade performs a fresh lookup on every call.
func TestWeakRefUpgradeBeforeAdd(t *testing.T) {
	r := New()
	id := cycle.MachineID{Vendor: 9, Machine: 9, Serial: 9}

	ref := r.WeakRef(id)
	if _, ok := ref.Upgrade(); ok {
		t.Fatal("Upgrade succeeded before the peer was ever added")
	}

	r.Add(&fakeMachine{id: id})
	if _, ok := ref.Upgrade(); !ok {
		t.Fatal("Upgrade failed to resolve once the peer was added")
	}
}

// TestWeakRefNeverResurrectsAfterRemove is invariant I3: once a machine is
// removed, every WeakRef pointing at it must report ok=false forever after,
// even though Upgrade performs a fresh lookup rather than caching the
// original resolution.
func TestWeakRefNeverResurrectsAfterRemove(t *testing.T) {
	r := New()
	id := cycle.MachineID{Vendor: 4, Machine: 5, Serial: 6}
	m := &fakeMachine{id: id}
	r.Add(m)

	ref := r.WeakRef(id)
	if _, ok := ref.Upgrade(); !ok {
		t.Fatal("Upgrade failed before Remove")
	}

	r.Remove(id)

	if _, ok := ref.Upgrade(); ok {
		t.Fatal("Upgrade resurrected a removed machine")
	}

	// Upgrade is keyed purely on id, not on the machine instance originally
	// resolved, so re-adding a different machine under the same ID makes
	// the same WeakRef resolve to the new instance -- there is no cached
	// "dropped forever" state, only "not currently present".
	replacement := &fakeMachine{id: id}
	r.Add(replacement)
	got, ok := ref.Upgrade()
	if !ok || got != replacement {
		t.Fatal("Upgrade did not resolve to the machine now registered under id")
	}
}

func TestWeakRefZeroValue(t *testing.T) {
	var ref WeakRef
	if _, ok := ref.Upgrade(); ok {
		t.Fatal("zero-value WeakRef.Upgrade() should never succeed")
	}
}

func TestRegistryUpgradeAcrossMultipleMachines(t *testing.T) {
	r := New()
	winderID := cycle.MachineID{Vendor: 1, Machine: 1, Serial: 1}
	pullerID := cycle.MachineID{Vendor: 1, Machine: 2, Serial: 1}
	r.Add(&fakeMachine{id: winderID})
	r.Add(&fakeMachine{id: pullerID})

	if r.Count() != 2 {
		t.Fatalf("Count = %d, want 2", r.Count())
	}

	pullerRef := r.WeakRef(pullerID)
	got, ok := pullerRef.Upgrade()
	if !ok || got.ID() != pullerID {
		t.Fatal("WeakRef resolved to the wrong machine among multiple registered")
	}
}
