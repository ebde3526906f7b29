package pid

import (
	"testing"
	"time"
)

// TestControllerProportionalOnly checks a pure-P controller (Ki=Kd=0)
// responds instantaneously and without memory.
func TestControllerProportionalOnly(t *testing.T) {
	c := New(Config{Kp: 2, MinOutput: -1000, MaxOutput: 1000})
	now := time.Now()
	got := c.Update(3, now)
	if got != 6 {
		t.Fatalf("got %v want 6", got)
	}
	got = c.Update(-1, now.Add(time.Second))
	if got != -2 {
		t.Fatalf("got %v want -2", got)
	}
}

// TestControllerOutputClamp checks the final output is clamped even
// when P+I+D would exceed the configured range.
func TestControllerOutputClamp(t *testing.T) {
	c := New(Config{Kp: 100, MinOutput: -10, MaxOutput: 10})
	got := c.Update(5, time.Now())
	if got != 10 {
		t.Fatalf("got %v want 10 (clamped)", got)
	}
}

// TestControllerAntiWindup is property P6: once the output is
// saturated, continuing to feed a same-sign error must not keep
// growing the integral term -- so when the error then reverses sign,
// the controller should unwind quickly rather than staying pinned at
// the opposite rail from accumulated integral.
func TestControllerAntiWindup(t *testing.T) {
	c := New(Config{Kp: 1, Ki: 10, MinOutput: -10, MaxOutput: 10})
	now := time.Now()

	// Drive with a large positive error for many steps: output should
	// saturate at MaxOutput and stay there, not run away.
	for i := 0; i < 50; i++ {
		now = now.Add(100 * time.Millisecond)
		out := c.Update(100, now)
		if out > 10 {
			t.Fatalf("output exceeded MaxOutput: %v", out)
		}
	}
	integralAfterSaturation := c.integral

	// Now reverse the error sign: a wound-up integral would keep the
	// output pinned near MaxOutput for a long time before responding.
	now = now.Add(100 * time.Millisecond)
	out := c.Update(-100, now)
	if out >= 10 {
		t.Fatalf("controller did not respond to reversed error promptly (anti-windup failed): out=%v", out)
	}
	if c.integral > integralAfterSaturation {
		t.Fatalf("integral kept growing while saturated: before=%v after=%v", integralAfterSaturation, c.integral)
	}
}

// TestControllerReset clears integral and derivative memory.
func TestControllerReset(t *testing.T) {
	c := New(Config{Kp: 1, Ki: 1, MinOutput: -100, MaxOutput: 100})
	now := time.Now()
	c.Update(5, now)
	c.Update(5, now.Add(time.Second))
	if c.integral == 0 {
		t.Fatal("expected nonzero integral before reset")
	}
	c.Reset()
	if c.integral != 0 || c.hasLast {
		t.Fatal("Reset did not clear controller memory")
	}
}
