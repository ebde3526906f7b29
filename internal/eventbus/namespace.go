package eventbus

import "sync"

// Namespace is one machine's outbound event surface: a latched State
// cache (last value only) and a continuous LiveValues cache that keeps
// the first value seen since construction alongside the latest one, so
// a client that connects after the stream has been running can still
// recover both the machine's starting point and its current value.
type Namespace struct {
	mu sync.Mutex

	sink    Sink
	vendor  uint32
	machine uint32
	serial  uint32

	lastState   []byte
	firstLive   []byte
	haveFirstLV bool
	lastLive    []byte
	isDefault   bool
}

// New builds a Namespace publishing through sink for one machine
// identity. IsDefaultState is true until the first PublishState call.
func New(sink Sink, vendor, machine, serial uint32) *Namespace {
	return &Namespace{sink: sink, vendor: vendor, machine: machine, serial: serial, isDefault: true}
}

// IsDefaultState reports whether PublishState has never been called on
// this Namespace.
func (n *Namespace) IsDefaultState() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.isDefault
}

// PublishState emits a latched state snapshot: the cache is replaced
// by payload and the replaced value is discarded.
func (n *Namespace) PublishState(payload []byte) {
	n.mu.Lock()
	n.lastState = payload
	n.isDefault = false
	n.mu.Unlock()

	n.sink.Publish(Event{MachineVendor: n.vendor, MachineMachine: n.machine, MachineSerial: n.serial, Name: "state", Payload: payload})
}

// LastState returns the most recently published state payload, or nil
// if PublishState has never been called.
func (n *Namespace) LastState() []byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastState
}

// PublishLiveValues emits a continuous live-values snapshot. The cache
// keeps the first payload ever published (unchanged thereafter) plus
// the most recent one.
func (n *Namespace) PublishLiveValues(payload []byte) {
	n.mu.Lock()
	if !n.haveFirstLV {
		n.firstLive = payload
		n.haveFirstLV = true
	}
	n.lastLive = payload
	n.mu.Unlock()

	n.sink.Publish(Event{MachineVendor: n.vendor, MachineMachine: n.machine, MachineSerial: n.serial, Name: "live_values", Payload: payload})
}

// FirstAndLastLiveValues returns the cached first and most recent
// live-values payloads, and whether any have been published yet.
func (n *Namespace) FirstAndLastLiveValues() (first, last []byte, ok bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.firstLive, n.lastLive, n.haveFirstLV
}
