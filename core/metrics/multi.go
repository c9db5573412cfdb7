package metrics

import "github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/events"

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordCycle forwards the cycle to all sinks, returning the first error
// encountered.
func (m *MultiSink) RecordCycle(ev CycleEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordCycle(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordStateTransition forwards state changes to sinks that support them.
func (m *MultiSink) RecordStateTransition(ev events.StateTransitionEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(StateTransitionRecorder); ok {
			if err := rec.RecordStateTransition(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordSafety forwards safety trips to sinks that support them.
func (m *MultiSink) RecordSafety(ev events.SafetyEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(SafetyRecorder); ok {
			if err := rec.RecordSafety(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordCorrection forwards correction events to sinks that support them.
func (m *MultiSink) RecordCorrection(ev events.CorrectionEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(CorrectionRecorder); ok {
			if err := rec.RecordCorrection(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordOptimization forwards optimization outcomes to sinks that support
// them.
func (m *MultiSink) RecordOptimization(ev events.OptimizationEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(OptimizationRecorder); ok {
			if err := rec.RecordOptimization(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordAdaptation forwards adaptation events to sinks that support them.
func (m *MultiSink) RecordAdaptation(ev events.AdaptationEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(AdaptationRecorder); ok {
			if err := rec.RecordAdaptation(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
