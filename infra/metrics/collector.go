package metrics

import (
	"context"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/events"
	coremetrics "github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/metrics"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for
// published events. It stops when the context is canceled.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				switch e := ev.(type) {
				case events.StateTransitionEvent:
					if r, ok := sink.(coremetrics.StateTransitionRecorder); ok {
						_ = r.RecordStateTransition(e)
					}
				case events.SafetyEvent:
					if r, ok := sink.(coremetrics.SafetyRecorder); ok {
						_ = r.RecordSafety(e)
					}
				case events.CorrectionEvent:
					if r, ok := sink.(coremetrics.CorrectionRecorder); ok {
						_ = r.RecordCorrection(e)
					}
				case events.OptimizationEvent:
					if r, ok := sink.(coremetrics.OptimizationRecorder); ok {
						_ = r.RecordOptimization(e)
					}
				case events.AdaptationEvent:
					if r, ok := sink.(coremetrics.AdaptationRecorder); ok {
						_ = r.RecordAdaptation(e)
					}
				}
			}
		}
	}()
}
