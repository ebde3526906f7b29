package machine

import "encoding/json"

// EventSink is what a machine needs from the outbound event namespace:
// a latched State publish and a continuous LiveValues publish, each
// already JSON-encoded. Satisfied by *eventbus.Namespace; named here
// rather than importing internal/eventbus so this package doesn't take
// on that dependency just to embed one method set, the same structural-
// interface avoidance internal/hal uses for its own SerialEncoding.
type EventSink interface {
	PublishState(payload []byte)
	PublishLiveValues(payload []byte)
}

// eventsMixin gives an embedding machine an optional outbound event
// sink. SetEvents wires one in once the machine has been registered
// (the cycle engine itself has no opinion on event publishing -- this
// is purely between a machine and whatever eventbus.Namespace was built
// for its identity); publishState/publishLiveValues are no-ops until
// then, so machines built without a sink (e.g. in unit tests) behave
// exactly as if this mixin weren't present.
type eventsMixin struct {
	sink EventSink
}

// SetEvents installs the sink this machine publishes State and
// LiveValues snapshots through.
func (e *eventsMixin) SetEvents(sink EventSink) { e.sink = sink }

func (e *eventsMixin) publishState(v any) {
	if e.sink == nil {
		return
	}
	if b, err := json.Marshal(v); err == nil {
		e.sink.PublishState(b)
	}
}

func (e *eventsMixin) publishLiveValues(v any) {
	if e.sink == nil {
		return
	}
	if b, err := json.Marshal(v); err == nil {
		e.sink.PublishLiveValues(b)
	}
}
