// Package eventbus is the outbound event/pub-sub namespace machines
// publish their state through: a non-blocking, bounded channel the
// engine thread only ever writes to, drained by an I/O-thread-side
// sink, with events dropped (configurably) when the channel fills
// rather than blocking the real-time thread.
package eventbus

import "sync/atomic"

// Event is one outbound message: a machine identity, an event name
// ("state" or the name of a live-values snapshot), and an opaque
// payload the caller has already encoded (typically JSON).
type Event struct {
	MachineVendor  uint32
	MachineMachine uint32
	MachineSerial  uint32
	Name           string
	Payload        []byte
}

// Sink is what the cycle engine and machines depend on to emit events.
// Publish must never block -- a full sink drops the event (and counts
// the drop) rather than stalling the caller.
type Sink interface {
	Publish(ev Event)
	Dropped() uint64
}

// Bus is a bounded, non-blocking Sink: Publish either enqueues onto a
// buffered channel or, if it is full, increments a drop counter and
// returns immediately. A background goroutine (started by whichever
// concrete sink wraps this, e.g. MQTTSink) drains Events and forwards
// them to the real transport.
type Bus struct {
	events  chan Event
	dropped atomic.Uint64
}

// NewBus builds a Bus with the given channel capacity. A capacity of 0
// falls back to 256.
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = 256
	}
	return &Bus{events: make(chan Event, capacity)}
}

// Publish enqueues ev without blocking, dropping it and incrementing
// Dropped() if the channel is full.
func (b *Bus) Publish(ev Event) {
	select {
	case b.events <- ev:
	default:
		b.dropped.Add(1)
	}
}

// Dropped reports how many events have been dropped for back-pressure
// since construction.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Events exposes the receive side for a drain loop (e.g. MQTTSink's
// forwarding goroutine, or a test harness).
func (b *Bus) Events() <-chan Event { return b.events }

// Close closes the underlying channel; only safe once no further
// Publish calls will occur (i.e. after the cycle engine has stopped).
func (b *Bus) Close() { close(b.events) }
