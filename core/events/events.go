package events

import (
	"time"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/model"
)

// StateTransitionEvent is published whenever the controller changes
// operating state.
type StateTransitionEvent struct {
	From   model.OperatingState
	To     model.OperatingState
	Reason string
	Time   time.Time
}

// SafetyEvent carries the violations that tripped the safety gate.
type SafetyEvent struct {
	Violations []string
	Time       time.Time
}

// AdaptationEvent is emitted when the adaptive strategy retunes itself or
// switches controller family. Action can be "adapted", "decayed" or
// "selected".
type AdaptationEvent struct {
	Strategy    string
	Action      string
	Performance float64
	Stability   float64
	Time        time.Time
}

// CorrectionEvent is emitted when a real-time correction is created, applied
// or purged. Action is one of "created", "applied", "expired".
type CorrectionEvent struct {
	CorrectionID string
	Type         string
	Target       string
	Action       string
	Time         time.Time
}

// OptimizationEvent reports the outcome of one optimization attempt.
// Action can be "applied", "rejected", "skipped" or "failed".
type OptimizationEvent struct {
	Algorithm      string
	Action         string
	ImprovementPct float64
	Iterations     int
	Elapsed        time.Duration
	Time           time.Time
}
