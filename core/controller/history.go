package controller

import (
	"time"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/model"
)

const (
	maxCycleHistory      = 1000
	maxTransitionHistory = 100
)

// CycleRecord is one processed sample kept for diagnostics.
type CycleRecord struct {
	Time        time.Time
	Inputs      model.Inputs
	Outputs     model.Outputs
	Performance float64
}

// TransitionRecord is one operating-state change.
type TransitionRecord struct {
	From   model.OperatingState
	To     model.OperatingState
	Reason string
	Time   time.Time
}

type history struct {
	cycles      []CycleRecord
	transitions []TransitionRecord
}

func (h *history) recordCycle(rec CycleRecord) {
	h.cycles = append(h.cycles, rec)
	if len(h.cycles) > maxCycleHistory {
		h.cycles = h.cycles[len(h.cycles)-maxCycleHistory:]
	}
}

func (h *history) recordTransition(rec TransitionRecord) {
	h.transitions = append(h.transitions, rec)
	if len(h.transitions) > maxTransitionHistory {
		h.transitions = h.transitions[len(h.transitions)-maxTransitionHistory:]
	}
}
