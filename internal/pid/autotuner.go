package pid

import (
	"math"
	"time"
)

// AutoTuneState is the auto-tuner's lifecycle, ported from
// pid_autotuner.rs's AutoTuneState enum (its Failed(String) variant
// becomes a Failed state plus a separate FailReason field, since Go
// enums don't carry payloads).
type AutoTuneState int

const (
	AutoTuneIdle AutoTuneState = iota
	AutoTuneMeasuring
	AutoTuneCompleted
	AutoTuneFailed
)

func (s AutoTuneState) String() string {
	switch s {
	case AutoTuneIdle:
		return "idle"
	case AutoTuneMeasuring:
		return "measuring"
	case AutoTuneCompleted:
		return "completed"
	case AutoTuneFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// AutoTuneConfig configures the relay auto-tuner's setpoint, relay
// amplitude and stopping conditions.
type AutoTuneConfig struct {
	Target          float64
	Hysteresis      float64
	RelayAmplitude  float64
	ApproachOutput  float64
	MinOscillations int
	MinCycleSecs    float64
	MaxDurationSecs float64
}

// DefaultAutoTuneConfig mirrors pid_autotuner.rs's Default impl: a
// 150-unit setpoint (originally a temperature), 5 units of hysteresis,
// 5 oscillation cycles required, and a 40-minute timeout.
func DefaultAutoTuneConfig() AutoTuneConfig {
	return AutoTuneConfig{
		Target:          150.0,
		Hysteresis:      5.0,
		RelayAmplitude:  1.0,
		ApproachOutput:  1.0,
		MinOscillations: 5,
		MinCycleSecs:    4.0,
		MaxDurationSecs: 2400.0,
	}
}

// AutoTuneResult carries the Tyreus-Luyben gains computed from the
// observed ultimate gain and period.
type AutoTuneResult struct {
	Kp, Ki, Kd             float64
	UltimateGain           float64
	UltimatePeriod         float64
}

type cycleSample struct {
	period    float64
	amplitude float64
}

// AutoTuner drives a relay (bang-bang) experiment around Config.Target
// and, once enough stable oscillation cycles have been observed,
// computes PID gains via the Tyreus-Luyben rules -- grounded exactly on
// pid_autotuner.rs's PidAutoTuner, satisfying property P7 and end-to-end
// scenario S6.
type AutoTuner struct {
	state      AutoTuneState
	failReason string
	cfg        AutoTuneConfig

	startTime time.Time
	hasStart  bool

	lastRelayHigh     bool
	targetReachedOnce bool
	initialError      float64
	hasInitialError   bool

	completedCycles int
	prevPeakTime     float64
	hasPrevPeakTime  bool
	lastPeakTime     float64
	hasLastPeakTime  bool
	lastPeakValue    float64
	lastValleyTime   float64
	hasLastValleyTime bool
	lastValleyValue  float64
	cycleSamples     []cycleSample

	progressPercent float64
	Result          *AutoTuneResult
}

// NewAutoTuner builds an idle auto-tuner with the given configuration.
func NewAutoTuner(cfg AutoTuneConfig) *AutoTuner {
	return &AutoTuner{cfg: cfg, state: AutoTuneIdle}
}

// Start resets all measurement state and begins the relay experiment at
// the given Instant, heating (relay high) first.
func (t *AutoTuner) Start(now time.Time) {
	t.state = AutoTuneMeasuring
	t.startTime = now
	t.hasStart = true
	t.lastRelayHigh = true
	t.targetReachedOnce = false
	t.hasInitialError = false
	t.completedCycles = 0
	t.hasPrevPeakTime = false
	t.hasLastPeakTime = false
	t.hasLastValleyTime = false
	t.cycleSamples = nil
	t.progressPercent = 0
	t.Result = nil
	t.failReason = ""
}

// Stop aborts the experiment and returns to idle.
func (t *AutoTuner) Stop() {
	t.state = AutoTuneIdle
	t.hasStart = false
}

func (t *AutoTuner) IsActive() bool    { return t.state == AutoTuneMeasuring }
func (t *AutoTuner) IsCompleted() bool { return t.state == AutoTuneCompleted }
func (t *AutoTuner) IsFailed() bool    { return t.state == AutoTuneFailed }
func (t *AutoTuner) State() AutoTuneState { return t.state }
func (t *AutoTuner) FailReason() string   { return t.failReason }
func (t *AutoTuner) CompletedCycles() int { return t.completedCycles }
func (t *AutoTuner) RequiredCycles() int  { return t.cfg.MinOscillations }

// Update feeds the current process value into the relay experiment and
// returns the control output to apply plus whether the experiment has
// finished (successfully or not).
func (t *AutoTuner) Update(currentValue float64, now time.Time) (float64, bool) {
	if !t.hasStart {
		return 0, false
	}

	elapsed := now.Sub(t.startTime).Seconds()
	if elapsed > t.cfg.MaxDurationSecs {
		t.state = AutoTuneFailed
		t.failReason = "timeout - auto-tuning took too long"
		return 0, true
	}

	switch t.state {
	case AutoTuneMeasuring:
		if !t.hasInitialError {
			ie := math.Abs(t.cfg.Target - currentValue)
			if ie < 1.0 {
				ie = 1.0
			}
			t.initialError = ie
			t.hasInitialError = true
		}

		highThreshold := t.cfg.Target + t.cfg.Hysteresis
		lowThreshold := t.cfg.Target - t.cfg.Hysteresis

		var output float64
		switch {
		case t.lastRelayHigh && currentValue > highThreshold:
			t.lastRelayHigh = false
			t.recordPeak(elapsed, currentValue)
			if !t.targetReachedOnce {
				t.targetReachedOnce = true
			} else {
				t.updateCycleCount()
			}
			output = 0.0
		case !t.lastRelayHigh && currentValue < lowThreshold:
			t.lastRelayHigh = true
			t.recordValley(elapsed, currentValue)
			if t.targetReachedOnce {
				output = t.cfg.RelayAmplitude
			} else {
				output = t.cfg.ApproachOutput
			}
		default:
			if t.lastRelayHigh {
				if t.targetReachedOnce {
					output = t.cfg.RelayAmplitude
				} else {
					output = t.cfg.ApproachOutput
				}
			} else {
				output = 0.0
			}
		}

		t.updateProgress(currentValue)

		if t.shouldFinish() {
			if result := t.analyzeOscillations(); result != nil {
				t.Result = result
				t.state = AutoTuneCompleted
				return 0, true
			}
		}

		return output, false

	default:
		return 0, true
	}
}

func (t *AutoTuner) recordPeak(elapsed, value float64) {
	t.prevPeakTime, t.hasPrevPeakTime = t.lastPeakTime, t.hasLastPeakTime
	t.lastPeakTime = elapsed
	t.hasLastPeakTime = true
	t.lastPeakValue = value
}

func (t *AutoTuner) recordValley(elapsed, value float64) {
	t.lastValleyTime = elapsed
	t.hasLastValleyTime = true
	t.lastValleyValue = value
}

func (t *AutoTuner) updateCycleCount() {
	if !t.hasLastPeakTime || !t.hasPrevPeakTime || !t.hasLastValleyTime {
		return
	}
	if t.lastValleyTime <= t.prevPeakTime || t.lastValleyTime >= t.lastPeakTime {
		return
	}

	period := t.lastPeakTime - t.prevPeakTime
	if period < t.cfg.MinCycleSecs {
		return
	}

	amplitude := math.Abs(t.lastPeakValue-t.lastValleyValue) / 2.0
	if amplitude > 0 {
		t.cycleSamples = append(t.cycleSamples, cycleSample{period: period, amplitude: amplitude})
		t.completedCycles = len(t.cycleSamples)
	}
}

func (t *AutoTuner) updateProgress(currentValue float64) {
	if !t.targetReachedOnce {
		if !t.hasInitialError {
			t.progressPercent = 0
			return
		}
		errAbs := math.Abs(t.cfg.Target - currentValue)
		ratio := errAbs / t.initialError
		if ratio > 1 {
			ratio = 1
		}
		approach := (1.0 - ratio) * 20.0
		t.progressPercent = clamp(approach, 0, 20)
		return
	}
	cycleProgress := float64(t.completedCycles) / float64(t.cfg.MinOscillations)
	extra := cycleProgress * 80.0
	if extra > 80.0 {
		extra = 80.0
	}
	t.progressPercent = 20.0 + extra
}

func (t *AutoTuner) shouldFinish() bool {
	if t.completedCycles >= t.cfg.MinOscillations {
		return true
	}
	if len(t.cycleSamples) < 3 {
		return false
	}

	window := t.cycleSamples[len(t.cycleSamples)-3:]
	var meanPeriod, meanAmp float64
	for _, s := range window {
		meanPeriod += s.period
		meanAmp += s.amplitude
	}
	meanPeriod /= 3
	meanAmp /= 3
	if meanPeriod <= 0 || meanAmp <= 0 {
		return false
	}

	var maxPeriodDev, maxAmpDev float64
	for _, s := range window {
		if d := math.Abs(s.period-meanPeriod) / meanPeriod; d > maxPeriodDev {
			maxPeriodDev = d
		}
		if d := math.Abs(s.amplitude-meanAmp) / meanAmp; d > maxAmpDev {
			maxAmpDev = d
		}
	}
	return maxPeriodDev < 0.2 && maxAmpDev < 0.2
}

// analyzeOscillations computes the ultimate gain/period from the last
// (up to 5) oscillation cycles and derives Tyreus-Luyben gains -- very
// conservative, minimal overshoot, suited to thermal processes with
// high inertia and dead time.
func (t *AutoTuner) analyzeOscillations() *AutoTuneResult {
	if len(t.cycleSamples) < 2 {
		return nil
	}

	window := t.cycleSamples
	if len(window) > 5 {
		window = window[len(window)-5:]
	}

	var periodSum, ampSum float64
	for _, s := range window {
		periodSum += s.period
		ampSum += s.amplitude
	}
	n := float64(len(window))
	ultimatePeriod := periodSum / n
	amplitude := ampSum / n

	if amplitude < 0.1 || ultimatePeriod <= 0 {
		return nil
	}

	relayAmplitude := t.cfg.RelayAmplitude
	if relayAmplitude < 0.01 {
		relayAmplitude = 0.01
	}
	// Ku = 4d / (pi * a): relay-method ultimate gain formula.
	ultimateGain := (4.0 * relayAmplitude) / (math.Pi * amplitude)

	// Tyreus-Luyben: Kp = Ku/3.2, Ti = 2.2*Tu, Td = Tu/6.3.
	kp := ultimateGain / 3.2
	ki := kp / (2.2 * ultimatePeriod)
	kd := kp * ultimatePeriod / 6.3

	return &AutoTuneResult{
		Kp: kp, Ki: ki, Kd: kd,
		UltimateGain:   ultimateGain,
		UltimatePeriod: ultimatePeriod,
	}
}

// ProgressPercent reports auto-tuning progress in [0,100].
func (t *AutoTuner) ProgressPercent() float64 {
	switch t.state {
	case AutoTuneIdle, AutoTuneFailed:
		return 0
	case AutoTuneCompleted:
		return 100
	default:
		return t.progressPercent
	}
}
