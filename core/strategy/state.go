package strategy

import "time"

// Kind is the closed set of controller families the selector can execute.
type Kind string

const (
	KindPID      Kind = "pid"
	KindFuzzy    Kind = "fuzzy"
	KindMPC      Kind = "model_predictive"
	KindAdaptive Kind = "adaptive"
)

func (k Kind) String() string { return string(k) }

// ControlState is the selector's internal memory. It is mutated once per
// sample and persists across samples.
type ControlState struct {
	Current          Kind
	AdaptationLevel  float64 // 0..1
	PerformanceScore float64
	StabilityIndex   float64
	ResponseTime     time.Duration
	LastAdaptation   time.Time
}

// PIDGains are the tunable gains of the PID executor.
type PIDGains struct {
	Kp float64
	Ki float64
	Kd float64
}

// pidState carries the integrator and derivative memory between samples.
type pidState struct {
	gains    PIDGains
	integral float64
	prevErr  float64
	primed   bool
}

// mpcState carries the receding-horizon length, clamped to [5,20].
type mpcState struct {
	horizon int
}

// adaptiveState carries the on-line learning rate, kept in [0.01,0.5].
type adaptiveState struct {
	learningRate float64
	weight       float64 // learned balance-correction weight
}

// Result is the outcome of executing one controller family for a sample.
type Result struct {
	Strategy           Kind
	BalanceCorrectionW float64 // signed adjustment suggested for storage setpoints
	AdaptationLevel    float64
	Performance        float64
	Stability          float64
	ResponseTime       time.Duration
}
