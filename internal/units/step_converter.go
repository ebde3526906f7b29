package units

import "errors"

// ErrInvalidSteps is returned when a converter is constructed with
// zero steps per revolution.
var ErrInvalidSteps = errors.New("units: steps_per_rev must be nonzero")

// AngularStepConverter converts between stepper steps and angular
// quantities (revolutions, radians) for a motor with a fixed number of
// full/micro steps per revolution. Grounded on
// control-core/src/converters/angular_step_converter.rs.
type AngularStepConverter struct {
	stepsPerRev float64
}

// NewAngularStepConverter builds a converter; returns ErrInvalidSteps when
// stepsPerRev is zero.
func NewAngularStepConverter(stepsPerRev float64) (AngularStepConverter, error) {
	if stepsPerRev == 0 {
		return AngularStepConverter{}, ErrInvalidSteps
	}
	return AngularStepConverter{stepsPerRev: stepsPerRev}, nil
}

// MustNewAngularStepConverter panics instead of returning an error; used at
// startup where stepsPerRev comes from static configuration.
func MustNewAngularStepConverter(stepsPerRev float64) AngularStepConverter {
	c, err := NewAngularStepConverter(stepsPerRev)
	if err != nil {
		panic(err)
	}
	return c
}

func (c AngularStepConverter) StepsToAngle(steps float64) Angle {
	return Revolutions(steps / c.stepsPerRev)
}

func (c AngularStepConverter) AngleToSteps(a Angle) float64 {
	return a.Revolutions() * c.stepsPerRev
}

func (c AngularStepConverter) StepsToAngularVelocity(stepsPerSecond float64) AngularVelocity {
	return RevolutionsPerSecond(stepsPerSecond / c.stepsPerRev)
}

func (c AngularStepConverter) AngularVelocityToSteps(v AngularVelocity) float64 {
	return v.RevolutionsPerSecond() * c.stepsPerRev
}

func (c AngularStepConverter) StepsToAngularAcceleration(stepsPerSecondSquared float64) AngularAcceleration {
	return RevolutionsPerSecondSquared(stepsPerSecondSquared / c.stepsPerRev)
}

func (c AngularStepConverter) AngularAccelerationToSteps(a AngularAcceleration) float64 {
	return a.RevolutionsPerSecondSquared() * c.stepsPerRev
}
