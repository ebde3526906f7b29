package machine

import (
	"testing"
	"time"

	"github.com/qitech/fieldbus-orchestrator/internal/units"
)

// fakeStepper is the smallest hal.StepperVelocity double: tracks the last
// commanded speed and a settable position, standing in for a real EL70x1
// terminal's decoded actual_position/velocity registers.
type fakeStepper struct {
	enabled     bool
	lastSpeed   float64
	position    int64
}

func (f *fakeStepper) SetEnabled(v bool)         { f.enabled = v }
func (f *fakeStepper) SetSpeed(v float64) error  { f.lastSpeed = v; return nil }
func (f *fakeStepper) GetSpeed() float64         { return f.lastSpeed }
func (f *fakeStepper) GetPosition() int64        { return f.position }
func (f *fakeStepper) SetPosition(steps int64)   { f.position = steps }

// fakeDigitalInput is the smallest hal.DigitalInput double: one settable
// boolean port, standing in for a real limit switch terminal.
type fakeDigitalInput struct {
	state bool
}

func (f *fakeDigitalInput) Get(int) bool { return f.state }

// TestTraverseHomingSequenceIsS5 is S5: starting with the endstop
// triggered, homing transitions Initialize -> EscapeEndstop; once the
// endstop clears, the controller steps through FineDistancing then Fine
// (moving back into the endstop at the slow fine speed); once the
// endstop re-triggers, position is zeroed and Validate is armed for
// now+100ms; once that time elapses with position settled at zero, the
// traverse reaches Idle.
func TestTraverseHomingSequenceIsS5(t *testing.T) {
	motor := &fakeStepper{}
	limitSwitch := &fakeDigitalInput{state: true}
	tr := NewTraverse(motor, limitSwitch)
	tr.SetEnabled(true)
	tr.GotoHome()

	now := time.Unix(0, 0)

	// Initialize -> EscapeEndstop, since the endstop starts triggered.
	tr.Update(now, units.RevolutionsPerSecond(0))
	if tr.homing != homingEscapeEndstop {
		t.Fatalf("homing state = %v, want EscapeEndstop", tr.homing)
	}

	// Endstop clears -> FineDistancing.
	limitSwitch.state = false
	now = now.Add(10 * time.Millisecond)
	tr.Update(now, units.RevolutionsPerSecond(0))
	if tr.homing != homingFindEndstopFineDistancing {
		t.Fatalf("homing state = %v, want FindEndstopFineDistancing", tr.homing)
	}

	// Still clear -> Fine (moving back toward the endstop).
	now = now.Add(10 * time.Millisecond)
	tr.Update(now, units.RevolutionsPerSecond(0))
	if tr.homing != homingFindEndstopFine {
		t.Fatalf("homing state = %v, want FindEndstopFine", tr.homing)
	}

	// Endstop re-triggers -> position zeroed, Validate armed.
	limitSwitch.state = true
	now = now.Add(10 * time.Millisecond)
	tr.Update(now, units.RevolutionsPerSecond(0))
	if tr.homing != homingValidate {
		t.Fatalf("homing state = %v, want Validate", tr.homing)
	}
	if motor.position != 0 {
		t.Fatalf("motor position = %d, want 0 after the fine endstop hit", motor.position)
	}

	// Before the 100ms validation window elapses, state stays Validate.
	now = now.Add(10 * time.Millisecond)
	tr.Update(now, units.RevolutionsPerSecond(0))
	if tr.state != TraverseHoming || tr.homing != homingValidate {
		t.Fatalf("state = %v/%v, want still Homing/Validate before the window elapses", tr.state, tr.homing)
	}

	// Once 100ms have elapsed and the (zeroed) position is within
	// tolerance, the traverse reaches Idle.
	now = now.Add(100 * time.Millisecond)
	tr.Update(now, units.RevolutionsPerSecond(0))
	if tr.state != TraverseIdle {
		t.Fatalf("state = %v, want Idle once the validation window elapses at position 0", tr.state)
	}
	if !tr.IsHomed() {
		t.Fatal("IsHomed() should be true once traversal leaves TraverseNotHomed")
	}
}

func TestTraverseDisabledDoesNothing(t *testing.T) {
	motor := &fakeStepper{}
	limitSwitch := &fakeDigitalInput{}
	tr := NewTraverse(motor, limitSwitch)
	tr.GotoHome()

	tr.Update(time.Unix(0, 0), units.RevolutionsPerSecond(0))
	if tr.homing != homingInitialize {
		t.Fatal("a disabled traverse should not advance its homing state machine")
	}
}
