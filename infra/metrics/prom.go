package metrics

import (
	coremetrics "github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/metrics"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/events"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records control-cycle events in Prometheus metrics.
type PromSink struct {
	cycles      *prometheus.CounterVec
	latency     prometheus.Histogram
	generation  prometheus.Gauge
	consumption prometheus.Gauge
	storageNet  prometheus.Gauge
	health      prometheus.Gauge
	transitions *prometheus.CounterVec
	corrections *prometheus.CounterVec
	optRuns     *prometheus.CounterVec
	optGain     prometheus.Gauge
}

// NewPromSink registers control metrics on the default Prometheus registerer.
// The Prometheus server should be started separately by the service.
func NewPromSink() (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "energy_control_cycles_total",
			Help: "Total number of processed control cycles",
		}, []string{"state", "balance"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "energy_control_cycle_seconds",
			Help:    "Control cycle processing time",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "energy_generation_watts",
			Help: "Total committed source power of the last cycle",
		}),
		consumption: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "energy_consumption_watts",
			Help: "Total load allocation of the last cycle",
		}),
		storageNet: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "energy_storage_net_watts",
			Help: "Net storage charge setpoint of the last cycle, positive charging",
		}),
		health: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "energy_system_health",
			Help: "Mean component health of the last cycle",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "energy_state_transitions_total",
			Help: "Operating-state transitions",
		}, []string{"from", "to"}),
		corrections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "energy_corrections_total",
			Help: "Real-time correction lifecycle events",
		}, []string{"type", "action"}),
		optRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "energy_optimization_runs_total",
			Help: "Optimization runs by algorithm and outcome",
		}, []string{"algorithm", "action"}),
		optGain: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "energy_optimization_improvement_pct",
			Help: "Improvement of the last applied optimization run",
		}),
	}

	collectors := []prometheus.Collector{
		s.cycles, s.latency, s.generation, s.consumption, s.storageNet,
		s.health, s.transitions, s.corrections, s.optRuns, s.optGain,
	}
	for i, c := range collectors {
		if err := reg.Register(c); err != nil {
			are, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				return nil, err
			}
			collectors[i] = are.ExistingCollector
		}
	}
	s.cycles = collectors[0].(*prometheus.CounterVec)
	s.latency = collectors[1].(prometheus.Histogram)
	s.generation = collectors[2].(prometheus.Gauge)
	s.consumption = collectors[3].(prometheus.Gauge)
	s.storageNet = collectors[4].(prometheus.Gauge)
	s.health = collectors[5].(prometheus.Gauge)
	s.transitions = collectors[6].(*prometheus.CounterVec)
	s.corrections = collectors[7].(*prometheus.CounterVec)
	s.optRuns = collectors[8].(*prometheus.CounterVec)
	s.optGain = collectors[9].(prometheus.Gauge)
	return s, nil
}

// RecordCycle updates the per-cycle counters and gauges.
func (s *PromSink) RecordCycle(ev coremetrics.CycleEvent) error {
	s.cycles.WithLabelValues(ev.State.String(), ev.Balance.String()).Inc()
	s.latency.Observe(ev.Elapsed.Seconds())
	s.generation.Set(ev.GenerationW)
	s.consumption.Set(ev.ConsumptionW)
	s.storageNet.Set(ev.StorageNetW)
	s.health.Set(ev.OverallHealth)
	return nil
}

// RecordStateTransition increments the transition counter.
func (s *PromSink) RecordStateTransition(ev events.StateTransitionEvent) error {
	s.transitions.WithLabelValues(ev.From.String(), ev.To.String()).Inc()
	return nil
}

// RecordCorrection increments the correction counter.
func (s *PromSink) RecordCorrection(ev events.CorrectionEvent) error {
	s.corrections.WithLabelValues(ev.Type, ev.Action).Inc()
	return nil
}

// RecordOptimization counts the run and tracks the last applied improvement.
func (s *PromSink) RecordOptimization(ev events.OptimizationEvent) error {
	s.optRuns.WithLabelValues(ev.Algorithm, ev.Action).Inc()
	if ev.Action == "applied" {
		s.optGain.Set(ev.ImprovementPct)
	}
	return nil
}
