package units

import "math"

// AngleFrameConverter is a presentation-only converter between a canonical
// (mathematical) angle and a presentation frame that may be flipped on
// either axis and/or run clockwise. Grounded on
// control-core/src/converters/angle_converter.rs. Every operation here is
// an involution, so Decode(Encode(a)) == a (mod 360) for any combination of
// flags — see converters_test.go for the property check (P2).
type AngleFrameConverter struct {
	FlipX     bool
	FlipY     bool
	Clockwise bool
}

// Screen returns the preset used to present angles on a screen whose Y axis
// increases downward: encode(90°) == 270°, decode(270°) == 90°.
func Screen() AngleFrameConverter {
	return AngleFrameConverter{FlipX: false, FlipY: true, Clockwise: false}
}

// Identity returns the no-op frame: encode and decode are both the identity
// modulo normalization to [0, 360).
func Identity() AngleFrameConverter {
	return AngleFrameConverter{}
}

// NormalizeDegrees folds any degree value into [0, 360).
func NormalizeDegrees(deg float64) float64 {
	const full = 360.0
	r := math.Mod(deg, full)
	if r < 0 {
		r += full
	}
	return r
}

// DegreesEncode maps a canonical angle (degrees) into the presentation
// frame.
func (c AngleFrameConverter) DegreesEncode(deg float64) float64 {
	a := deg
	if c.Clockwise {
		a = -a
	}
	if c.FlipX {
		a = 180 - a
	}
	if c.FlipY {
		a = -a
	}
	return NormalizeDegrees(a)
}

// DegreesDecode maps a presentation-frame angle (degrees) back to the
// canonical angle; the exact inverse of DegreesEncode, applying the same
// involutions in reverse order.
func (c AngleFrameConverter) DegreesDecode(deg float64) float64 {
	a := deg
	if c.FlipY {
		a = -a
	}
	if c.FlipX {
		a = 180 - a
	}
	if c.Clockwise {
		a = -a
	}
	return NormalizeDegrees(a)
}

// Encode/Decode operate on Angle values directly.
func (c AngleFrameConverter) Encode(a Angle) Angle { return Degrees(c.DegreesEncode(a.Degrees())) }
func (c AngleFrameConverter) Decode(a Angle) Angle { return Degrees(c.DegreesDecode(a.Degrees())) }
