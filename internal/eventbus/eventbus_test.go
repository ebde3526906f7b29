package eventbus

import "testing"

func TestBusDropsWhenFull(t *testing.T) {
	b := NewBus(1)
	b.Publish(Event{Name: "a"})
	b.Publish(Event{Name: "b"}) // channel full, should drop
	if b.Dropped() != 1 {
		t.Fatalf("dropped = %d want 1", b.Dropped())
	}
	ev := <-b.Events()
	if ev.Name != "a" {
		t.Fatalf("first queued event = %q want %q", ev.Name, "a")
	}
}

func TestNamespaceStateIsLatched(t *testing.T) {
	b := NewBus(8)
	ns := New(b, 1, 2, 3)
	if !ns.IsDefaultState() {
		t.Fatal("expected IsDefaultState true before first publish")
	}

	ns.PublishState([]byte("one"))
	if ns.IsDefaultState() {
		t.Fatal("expected IsDefaultState false after first publish")
	}
	ns.PublishState([]byte("two"))
	if got := string(ns.LastState()); got != "two" {
		t.Fatalf("LastState() = %q want %q", got, "two")
	}

	<-b.Events()
	<-b.Events()
}

func TestNamespaceLiveValuesCachesFirstAndLast(t *testing.T) {
	b := NewBus(8)
	ns := New(b, 1, 2, 3)

	ns.PublishLiveValues([]byte("first"))
	ns.PublishLiveValues([]byte("middle"))
	ns.PublishLiveValues([]byte("last"))

	first, last, ok := ns.FirstAndLastLiveValues()
	if !ok {
		t.Fatal("expected ok=true after publishing")
	}
	if string(first) != "first" {
		t.Fatalf("first = %q want %q", first, "first")
	}
	if string(last) != "last" {
		t.Fatalf("last = %q want %q", last, "last")
	}

	for i := 0; i < 3; i++ {
		<-b.Events()
	}
}
