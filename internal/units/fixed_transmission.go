package units

// FixedTransmission is a constant gear/belt ratio output/input, applied
// identically to linear and angular quantities. Grounded on
// control-core/src/converters/step_converter.rs's gear-ratio handling.
type FixedTransmission struct {
	ratio float64 // output / input
}

func NewFixedTransmission(outputTurns, inputTurns float64) FixedTransmission {
	return FixedTransmission{ratio: outputTurns / inputTurns}
}

func (t FixedTransmission) Ratio() float64 { return t.ratio }

func (t FixedTransmission) LinearOutput(in Velocity) Velocity {
	return MillimetersPerSecond(in.MillimetersPerSecond() * t.ratio)
}

func (t FixedTransmission) LinearInput(out Velocity) Velocity {
	return MillimetersPerSecond(out.MillimetersPerSecond() / t.ratio)
}

func (t FixedTransmission) AngularOutput(in AngularVelocity) AngularVelocity {
	return RevolutionsPerSecond(in.RevolutionsPerSecond() * t.ratio)
}

func (t FixedTransmission) AngularInput(out AngularVelocity) AngularVelocity {
	return RevolutionsPerSecond(out.RevolutionsPerSecond() / t.ratio)
}
