package machine

import (
	"encoding/json"

	"github.com/qitech/fieldbus-orchestrator/internal/cycle"
)

// MutationKind discriminates the tagged union carried by Mutation. An
// unexported marker would hide the field from JSON, so instead the
// Kind string is the one field every machine's Mutate switch dispatches
// on, and every other field is simply ignored when it doesn't apply to
// that Kind.
type MutationKind string

const (
	MutationSetMode               MutationKind = "set_mode"
	MutationSetEnabled             MutationKind = "set_enabled"
	MutationSetTargetSpeed         MutationKind = "set_target_speed"
	MutationSetTargetDiameter      MutationKind = "set_target_diameter"
	MutationSetTargetTemperature   MutationKind = "set_target_temperature"
	MutationSetTargetPressure      MutationKind = "set_target_pressure"
	MutationSetRegulationMode      MutationKind = "set_regulation_mode"
	MutationSetTraverseLimits      MutationKind = "set_traverse_limits"
	MutationSetSpoolTunables       MutationKind = "set_spool_tunables"
	MutationSetPattern             MutationKind = "set_pattern"
	MutationGotoHome               MutationKind = "goto_home"
	MutationGotoLimitInner         MutationKind = "goto_limit_inner"
	MutationGotoLimitOuter         MutationKind = "goto_limit_outer"
)

// mutationPayload is the wire shape: every field but Kind is an
// optional pointer, present only when the caller actually sets it
// (json:",omitempty" pointer fields).
type mutationPayload struct {
	Kind MutationKind `json:"kind"`

	Mode *string `json:"mode,omitempty"`
	Zone *string `json:"zone,omitempty"` // which temperature zone/channel a setpoint targets

	Enabled *bool `json:"enabled,omitempty"`

	TargetSpeed       *float64 `json:"target_speed,omitempty"`        // mm/s or RPM depending on machine
	TargetDiameter    *float64 `json:"target_diameter,omitempty"`     // mm
	TargetTemperature *float64 `json:"target_temperature,omitempty"`  // Celsius
	TargetPressure    *float64 `json:"target_pressure,omitempty"`     // bar

	RegulationMode *string `json:"regulation_mode,omitempty"` // "direct" | "closed_loop" | "speed" | "diameter"

	LimitInner *float64 `json:"limit_inner,omitempty"` // mm
	LimitOuter *float64 `json:"limit_outer,omitempty"` // mm
	StepSize   *float64 `json:"step_size,omitempty"`   // mm
	Padding    *float64 `json:"padding,omitempty"`     // mm

	TensionTarget                   *float64 `json:"tension_target,omitempty"`
	RadiusLearningRate              *float64 `json:"radius_learning_rate,omitempty"`
	MaxSpeedMultiplier              *float64 `json:"max_speed_multiplier,omitempty"`
	AccelerationFactor              *float64 `json:"acceleration_factor,omitempty"`
	DeaccelerationUrgencyMultiplier *float64 `json:"deacceleration_urgency_multiplier,omitempty"`

	KonturlaengeMM *float64 `json:"konturlaenge_mm,omitempty"`
	PauseMM        *float64 `json:"pause_mm,omitempty"`
}

// Mutation is the decoded, internal form of a command addressed to a
// machine: every optional field resolved to its zero value when absent,
// plus a Present set a machine's Mutate can consult when "absent" and
// "explicitly zero" must be told apart.
type Mutation struct {
	Kind MutationKind

	Mode string
	Zone string

	Enabled bool

	TargetSpeed       float64
	TargetDiameter    float64
	TargetTemperature float64
	TargetPressure    float64

	RegulationMode string

	LimitInner float64
	LimitOuter float64
	StepSize   float64
	Padding    float64

	TensionTarget                   float64
	RadiusLearningRate              float64
	MaxSpeedMultiplier              float64
	AccelerationFactor              float64
	DeaccelerationUrgencyMultiplier float64

	KonturlaengeMM float64
	PauseMM        float64

	present map[string]bool
}

// Has reports whether field was present in the wire payload, for
// Mutate implementations that need to distinguish "not sent" from
// "sent as the zero value" (e.g. TargetSpeed: 0 meaning "stop").
func (m Mutation) Has(field string) bool { return m.present[field] }

// DecodeMutation parses a JSON command payload into a Mutation: wire
// payload with pointer fields first, then a resolved internal struct.
func DecodeMutation(data []byte) (Mutation, error) {
	var p mutationPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return Mutation{}, err
	}

	m := Mutation{Kind: p.Kind, present: make(map[string]bool)}

	set := func(field string, ok bool) {
		if ok {
			m.present[field] = true
		}
	}

	if p.Mode != nil {
		m.Mode = *p.Mode
	}
	set("Mode", p.Mode != nil)
	if p.Zone != nil {
		m.Zone = *p.Zone
	}
	set("Zone", p.Zone != nil)
	if p.Enabled != nil {
		m.Enabled = *p.Enabled
	}
	set("Enabled", p.Enabled != nil)
	if p.TargetSpeed != nil {
		m.TargetSpeed = *p.TargetSpeed
	}
	set("TargetSpeed", p.TargetSpeed != nil)
	if p.TargetDiameter != nil {
		m.TargetDiameter = *p.TargetDiameter
	}
	set("TargetDiameter", p.TargetDiameter != nil)
	if p.TargetTemperature != nil {
		m.TargetTemperature = *p.TargetTemperature
	}
	set("TargetTemperature", p.TargetTemperature != nil)
	if p.TargetPressure != nil {
		m.TargetPressure = *p.TargetPressure
	}
	set("TargetPressure", p.TargetPressure != nil)
	if p.RegulationMode != nil {
		m.RegulationMode = *p.RegulationMode
	}
	set("RegulationMode", p.RegulationMode != nil)
	if p.LimitInner != nil {
		m.LimitInner = *p.LimitInner
	}
	set("LimitInner", p.LimitInner != nil)
	if p.LimitOuter != nil {
		m.LimitOuter = *p.LimitOuter
	}
	set("LimitOuter", p.LimitOuter != nil)
	if p.StepSize != nil {
		m.StepSize = *p.StepSize
	}
	set("StepSize", p.StepSize != nil)
	if p.Padding != nil {
		m.Padding = *p.Padding
	}
	set("Padding", p.Padding != nil)
	if p.TensionTarget != nil {
		m.TensionTarget = *p.TensionTarget
	}
	set("TensionTarget", p.TensionTarget != nil)
	if p.RadiusLearningRate != nil {
		m.RadiusLearningRate = *p.RadiusLearningRate
	}
	set("RadiusLearningRate", p.RadiusLearningRate != nil)
	if p.MaxSpeedMultiplier != nil {
		m.MaxSpeedMultiplier = *p.MaxSpeedMultiplier
	}
	set("MaxSpeedMultiplier", p.MaxSpeedMultiplier != nil)
	if p.AccelerationFactor != nil {
		m.AccelerationFactor = *p.AccelerationFactor
	}
	set("AccelerationFactor", p.AccelerationFactor != nil)
	if p.DeaccelerationUrgencyMultiplier != nil {
		m.DeaccelerationUrgencyMultiplier = *p.DeaccelerationUrgencyMultiplier
	}
	set("DeaccelerationUrgencyMultiplier", p.DeaccelerationUrgencyMultiplier != nil)
	if p.KonturlaengeMM != nil {
		m.KonturlaengeMM = *p.KonturlaengeMM
	}
	set("KonturlaengeMM", p.KonturlaengeMM != nil)
	if p.PauseMM != nil {
		m.PauseMM = *p.PauseMM
	}
	set("PauseMM", p.PauseMM != nil)

	return m, nil
}

// Machine is the contract every machine type in this package
// implements, layering the API-facing Mutate over the cycle engine's
// own ID/Act contract.
type Machine interface {
	cycle.Machine
	Mutate(m Mutation) error
}
