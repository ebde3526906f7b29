package eventbus

// NoopSink discards every event. Useful for local development and for
// the cmd entrypoint's fallback when no MQTT broker is reachable at
// startup -- the cycle engine and machines never need to know which
// Sink they were handed.
type NoopSink struct{}

func (NoopSink) Publish(Event)    {}
func (NoopSink) Dropped() uint64 { return 0 }
