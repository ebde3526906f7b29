package units

// LinearStepConverter composes a CircularConverter with an
// AngularStepConverter to convert directly between stepper steps and
// linear distance/velocity, for a stepper driving a wheel/capstan.
// Grounded on control-core/src/converters/step_converter.rs.
type LinearStepConverter struct {
	angular  AngularStepConverter
	circular CircularConverter
}

func NewLinearStepConverter(angular AngularStepConverter, circular CircularConverter) LinearStepConverter {
	return LinearStepConverter{angular: angular, circular: circular}
}

func (c LinearStepConverter) StepsToDistance(steps float64) Length {
	return c.circular.AngleToDistance(c.angular.StepsToAngle(steps))
}

func (c LinearStepConverter) DistanceToSteps(d Length) float64 {
	return c.angular.AngleToSteps(c.circular.DistanceToAngle(d))
}

func (c LinearStepConverter) VelocityToStepsPerSecond(v Velocity) float64 {
	return c.angular.AngularVelocityToSteps(c.circular.VelocityToAngularVelocity(v))
}

func (c LinearStepConverter) StepsPerSecondToVelocity(stepsPerSecond float64) Velocity {
	return c.circular.AngularVelocityToVelocity(c.angular.StepsToAngularVelocity(stepsPerSecond))
}
