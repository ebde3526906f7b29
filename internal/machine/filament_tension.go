package machine

import (
	"github.com/qitech/fieldbus-orchestrator/internal/units"
)

// tensionClamp reports whether a tension-arm angle fell within its
// configured band or had to be clamped to one end of it.
type tensionClamp int

const (
	tensionWithin tensionClamp = iota
	tensionClampMin
	tensionClampMax
)

// FilamentTensionCalculator maps a tension-arm angle onto a normalized
// filament tension in [0,1]; 1.0 means maximum tension (low angle,
// low speed).
type FilamentTensionCalculator struct {
	maxAngle, minAngle units.Angle
}

// NewFilamentTensionCalculator builds a calculator over the arm's loosest
// (maxAngle) and tightest (minAngle) swing.
func NewFilamentTensionCalculator(maxAngle, minAngle units.Angle) FilamentTensionCalculator {
	return FilamentTensionCalculator{maxAngle: maxAngle, minAngle: minAngle}
}

func (f FilamentTensionCalculator) MaxAngle() units.Angle { return f.maxAngle }
func (f FilamentTensionCalculator) MinAngle() units.Angle { return f.minAngle }

// CalcFilamentTension turns a clamp-revolution fraction (0 at the
// tightest angle, 1 at the loosest) into a normalized tension.
func (f FilamentTensionCalculator) CalcFilamentTension(fraction float64) float64 {
	return 1 - fraction
}

// clampRevolution normalizes angle onto [0,1] between lower and upper,
// reporting whether it had to clamp: 0/Min at the tight end, 1/Max at
// the loose end.
func clampRevolution(angle, upper, lower units.Angle) (float64, tensionClamp) {
	a, u, l := angle.Degrees(), upper.Degrees(), lower.Degrees()
	if a <= l {
		return 0, tensionClampMin
	}
	if a >= u {
		return 1, tensionClampMax
	}
	return (a - l) / (u - l), tensionWithin
}

// scale linearly interpolates t (expected in [0,1]) onto [min, max].
func scale(t, min, max float64) float64 {
	return min + t*(max-min)
}
