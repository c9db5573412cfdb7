package metrics

import (
	"time"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/events"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/model"
)

// CycleEvent summarizes one processed control cycle.
type CycleEvent struct {
	State          model.OperatingState
	Balance        model.EnergyBalance
	GenerationW    float64
	ConsumptionW   float64
	StorageNetW    float64
	VehicleShareW  float64
	OverallHealth  float64
	WarningCount   int
	ComponentCount int
	Elapsed        time.Duration
	Time           time.Time
}

// NewCycleEvent builds a CycleEvent from one (inputs, outputs) pair.
func NewCycleEvent(in model.Inputs, out model.Outputs, elapsed time.Duration) CycleEvent {
	return CycleEvent{
		State:          out.Status.OperatingState,
		Balance:        out.Status.EnergyBalance,
		GenerationW:    out.TotalSourceSetpointW(),
		ConsumptionW:   out.TotalLoadAllocationW(),
		StorageNetW:    out.TotalStorageChargeW(),
		VehicleShareW:  out.Vehicle.EnergyShareRequestW,
		OverallHealth:  out.Status.OverallHealth,
		WarningCount:   len(out.Warnings),
		ComponentCount: in.ComponentCount(),
		Elapsed:        elapsed,
		Time:           out.Timestamp,
	}
}

// MetricsSink records control cycles for observability purposes.
type MetricsSink interface {
	RecordCycle(ev CycleEvent) error
}

// StateTransitionRecorder records operating-state changes.
type StateTransitionRecorder interface {
	RecordStateTransition(ev events.StateTransitionEvent) error
}

// SafetyRecorder records safety-gate trips.
type SafetyRecorder interface {
	RecordSafety(ev events.SafetyEvent) error
}

// CorrectionRecorder records real-time correction lifecycle events.
type CorrectionRecorder interface {
	RecordCorrection(ev events.CorrectionEvent) error
}

// OptimizationRecorder records optimization run outcomes.
type OptimizationRecorder interface {
	RecordOptimization(ev events.OptimizationEvent) error
}

// AdaptationRecorder records strategy adaptation events.
type AdaptationRecorder interface {
	RecordAdaptation(ev events.AdaptationEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordCycle(CycleEvent) error                          { return nil }
func (NopSink) RecordStateTransition(events.StateTransitionEvent) error { return nil }
func (NopSink) RecordSafety(events.SafetyEvent) error                 { return nil }
func (NopSink) RecordCorrection(events.CorrectionEvent) error         { return nil }
func (NopSink) RecordOptimization(events.OptimizationEvent) error     { return nil }
func (NopSink) RecordAdaptation(events.AdaptationEvent) error         { return nil }
