package machine

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/qitech/fieldbus-orchestrator/internal/cycle"
	"github.com/qitech/fieldbus-orchestrator/internal/units"
)

// captureSink is the smallest EventSink double: it records every
// published payload so a test can decode what a machine emitted.
type captureSink struct {
	states []json.RawMessage
	lives  []json.RawMessage
}

func (c *captureSink) PublishState(payload []byte)      { c.states = append(c.states, payload) }
func (c *captureSink) PublishLiveValues(payload []byte) { c.lives = append(c.lives, payload) }

func testLinearConverter(t *testing.T) units.LinearStepConverter {
	t.Helper()
	angular, err := units.NewAngularStepConverter(200)
	if err != nil {
		t.Fatalf("NewAngularStepConverter: %v", err)
	}
	return units.NewLinearStepConverter(angular, units.CircularConverterFromDiameter(units.Millimeters(40)))
}

// TestPullerPublishesStateAndLiveValues checks a machine with a sink
// installed emits one State and one LiveValues snapshot per Act, and
// that the snapshots reflect the machine's actual settings.
func TestPullerPublishesStateAndLiveValues(t *testing.T) {
	motor := &fakeStepper{}
	p := NewPuller(cycle.MachineID{Vendor: 1, Machine: 2, Serial: 3}, motor, testLinearConverter(t))

	sink := &captureSink{}
	p.SetEvents(sink)

	p.SetEnabled(true)
	p.SetTargetSpeed(units.MillimetersPerSecond(25))

	now := time.Unix(0, 0)
	p.Act(now)
	p.Act(now.Add(time.Millisecond))

	if len(sink.states) != 2 || len(sink.lives) != 2 {
		t.Fatalf("expected 2 state and 2 live-values events, got %d and %d", len(sink.states), len(sink.lives))
	}

	var st pullerState
	if err := json.Unmarshal(sink.states[1], &st); err != nil {
		t.Fatalf("decoding state payload: %v", err)
	}
	if !st.Enabled {
		t.Error("published state should report the puller enabled")
	}
	if st.RegulationMode != "speed" {
		t.Errorf("published regulation mode = %q, want %q", st.RegulationMode, "speed")
	}

	var lv pullerLiveValues
	if err := json.Unmarshal(sink.lives[1], &lv); err != nil {
		t.Fatalf("decoding live-values payload: %v", err)
	}
	if lv.SpeedMMs <= 0 {
		t.Errorf("published speed = %v, want > 0 for an enabled puller with a positive setpoint", lv.SpeedMMs)
	}
}

// TestPullerWithoutSinkIsSilent checks the zero-value mixin is a no-op:
// a machine built without SetEvents must run Act without publishing or
// panicking.
func TestPullerWithoutSinkIsSilent(t *testing.T) {
	motor := &fakeStepper{}
	p := NewPuller(cycle.MachineID{Vendor: 1, Machine: 2, Serial: 3}, motor, testLinearConverter(t))
	p.SetEnabled(true)
	p.Act(time.Unix(0, 0))
}
