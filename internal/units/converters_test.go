package units

import (
	"math"
	"testing"
)

// P1: angle_to_steps(steps_to_angle(steps)) == steps, same for velocity and
// acceleration converters, for all steps_per_rev > 0.
func TestStepConverterRoundTrip(t *testing.T) {
	cases := []float64{1, 2.5, 200, 400.1, 1000}
	for _, spr := range cases {
		conv, err := NewAngularStepConverter(spr)
		if err != nil {
			t.Fatalf("unexpected error for spr=%v: %v", spr, err)
		}
		for _, steps := range []float64{0, 1, -1, 123.456, 1e6} {
			got := conv.AngleToSteps(conv.StepsToAngle(steps))
			if math.Abs(got-steps) > 1e-9 {
				t.Errorf("spr=%v steps=%v: round trip = %v", spr, steps, got)
			}
			gotV := conv.AngularVelocityToSteps(conv.StepsToAngularVelocity(steps))
			if math.Abs(gotV-steps) > 1e-9 {
				t.Errorf("spr=%v steps=%v: velocity round trip = %v", spr, steps, gotV)
			}
			gotA := conv.AngularAccelerationToSteps(conv.StepsToAngularAcceleration(steps))
			if math.Abs(gotA-steps) > 1e-9 {
				t.Errorf("spr=%v steps=%v: acceleration round trip = %v", spr, steps, gotA)
			}
		}
	}
}

func TestStepConverterInvalidSteps(t *testing.T) {
	if _, err := NewAngularStepConverter(0); err != ErrInvalidSteps {
		t.Fatalf("expected ErrInvalidSteps, got %v", err)
	}
}

// B6: AngularStepConverter::new(200).steps_to_angular_acceleration(200) == 2*pi rad/s^2.
func TestAngularStepConverterBoundary(t *testing.T) {
	conv := MustNewAngularStepConverter(200)
	got := conv.StepsToAngularAcceleration(200).RadiansPerSecondSquared()
	want := 2 * math.Pi
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("got %v want %v", got, want)
	}
}

// P2: decode(encode(a)) == a (mod 360) for all flip_x, flip_y, clockwise, a.
func TestAngleFrameConverterRoundTrip(t *testing.T) {
	flags := []bool{false, true}
	angles := []float64{0, 1, 90, 179.5, 180, 270, 359.999, -45, 400, 720.25}
	for _, fx := range flags {
		for _, fy := range flags {
			for _, cw := range flags {
				c := AngleFrameConverter{FlipX: fx, FlipY: fy, Clockwise: cw}
				for _, a := range angles {
					enc := c.DegreesEncode(a)
					dec := c.DegreesDecode(enc)
					want := NormalizeDegrees(a)
					if math.Abs(dec-want) > 1e-9 {
						t.Errorf("fx=%v fy=%v cw=%v a=%v: decode(encode(a))=%v want %v", fx, fy, cw, a, dec, want)
					}
				}
			}
		}
	}
}

// B5: AngleConverter::screen().degrees_encode(90.0) == 270.0 and decode(270.0) == 90.0 exactly.
func TestAngleFrameConverterScreenBoundary(t *testing.T) {
	s := Screen()
	if got := s.DegreesEncode(90.0); got != 270.0 {
		t.Fatalf("encode(90) = %v, want 270", got)
	}
	if got := s.DegreesDecode(270.0); got != 90.0 {
		t.Fatalf("decode(270) = %v, want 90", got)
	}
}

func TestCircularConverterShapes(t *testing.T) {
	fromRadius := CircularConverterFromRadius(Millimeters(10))
	fromDiameter := CircularConverterFromDiameter(Millimeters(20))
	fromCircumference := CircularConverterFromCircumference(Millimeters(20 * math.Pi))

	for _, c := range []CircularConverter{fromRadius, fromDiameter, fromCircumference} {
		if math.Abs(c.Radius().Millimeters()-10) > 1e-6 {
			t.Errorf("radius mismatch: %v", c.Radius())
		}
	}
}

func TestLinearStepConverterRoundTrip(t *testing.T) {
	angular := MustNewAngularStepConverter(200)
	circular := CircularConverterFromRadius(Millimeters(15))
	lin := NewLinearStepConverter(angular, circular)

	v := MillimetersPerSecond(42)
	steps := lin.VelocityToStepsPerSecond(v)
	back := lin.StepsPerSecondToVelocity(steps)
	if math.Abs(back.MillimetersPerSecond()-42) > 1e-9 {
		t.Fatalf("round trip velocity = %v", back)
	}
}

func TestFixedTransmission(t *testing.T) {
	tr := NewFixedTransmission(2, 1) // 2:1 step-up
	out := tr.AngularOutput(RevolutionsPerSecond(3))
	if out.RevolutionsPerSecond() != 6 {
		t.Fatalf("got %v want 6", out.RevolutionsPerSecond())
	}
	in := tr.AngularInput(out)
	if math.Abs(in.RevolutionsPerSecond()-3) > 1e-9 {
		t.Fatalf("got %v want 3", in.RevolutionsPerSecond())
	}
}
