package units

import "math"

// CircularConverter converts angular quantities of a rotating wheel of
// radius r into linear quantities along its rim (distance, velocity,
// acceleration). Grounded on
// control-core/src/converters/circular_converter.rs; constructable from
// radius, diameter, or circumference, three equivalent shapes.
type CircularConverter struct {
	radiusMM float64
}

func CircularConverterFromRadius(radius Length) CircularConverter {
	return CircularConverter{radiusMM: radius.Millimeters()}
}

func CircularConverterFromDiameter(diameter Length) CircularConverter {
	return CircularConverter{radiusMM: diameter.Millimeters() / 2}
}

func CircularConverterFromCircumference(circumference Length) CircularConverter {
	return CircularConverter{radiusMM: circumference.Millimeters() / (2 * math.Pi)}
}

func (c CircularConverter) Radius() Length { return Millimeters(c.radiusMM) }

func (c CircularConverter) AngleToDistance(a Angle) Length {
	return Millimeters(a.Radians() * c.radiusMM)
}

func (c CircularConverter) DistanceToAngle(d Length) Angle {
	if c.radiusMM == 0 {
		return 0
	}
	return Radians(d.Millimeters() / c.radiusMM)
}

func (c CircularConverter) AngularVelocityToVelocity(v AngularVelocity) Velocity {
	return MillimetersPerSecond(v.RadiansPerSecond() * c.radiusMM)
}

func (c CircularConverter) VelocityToAngularVelocity(v Velocity) AngularVelocity {
	if c.radiusMM == 0 {
		return 0
	}
	return RadiansPerSecond(v.MillimetersPerSecond() / c.radiusMM)
}

func (c CircularConverter) AngularAccelerationToAcceleration(a AngularAcceleration) Acceleration {
	return MillimetersPerSecondSquared(a.RadiansPerSecondSquared() * c.radiusMM)
}

func (c CircularConverter) AccelerationToAngularAcceleration(a Acceleration) AngularAcceleration {
	if c.radiusMM == 0 {
		return 0
	}
	return RadiansPerSecondSquared(a.MillimetersPerSecondSquared() / c.radiusMM)
}
