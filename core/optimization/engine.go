package optimization

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/events"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/logger"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/model"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/internal/eventbus"
)

// Config controls the optimization engine.
type Config struct {
	Enabled              bool    `json:"enabled"`
	Algorithm            string  `json:"algorithm"` // "auto" dispatches per problem shape
	UpdateIntervalS      float64 `json:"update_interval_s"`
	ConvergenceThreshold float64 `json:"convergence_threshold"`
	MaxExecutionTimeMS   int     `json:"max_execution_time_ms"`
	MaxTemperatureC      float64 `json:"max_temperature_c"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Algorithm == "" {
		c.Algorithm = AlgAuto
	}
	if c.UpdateIntervalS <= 0 {
		c.UpdateIntervalS = 60
	}
	if c.ConvergenceThreshold <= 0 {
		c.ConvergenceThreshold = 1e-4
	}
	if c.MaxExecutionTimeMS <= 0 {
		c.MaxExecutionTimeMS = 100
	}
	if c.MaxTemperatureC <= 0 {
		c.MaxTemperatureC = 80
	}
}

// Validate rejects unknown algorithm names.
func (c Config) Validate() error {
	switch c.Algorithm {
	case AlgAuto, AlgGenetic, AlgParticleSwarm, AlgAnnealing, AlgNeural:
		return nil
	default:
		return fmt.Errorf("unknown optimization algorithm: %s", c.Algorithm)
	}
}

// RunRecord summarizes one optimization run for the dispatch heuristics.
type RunRecord struct {
	Algorithm      string
	Applied        bool
	ImprovementPct float64
	Iterations     int
	Elapsed        time.Duration
	Time           time.Time
}

const (
	maxRunHistory         = 50
	maxConvergenceHistory = 100
)

// Engine formulates the allocation problem and dispatches it to one solver.
// isOptimizing is a mutual-exclusion flag: a request arriving while a solve
// is in flight is a no-op, never queued.
type Engine struct {
	cfg        Config
	optimizing atomic.Bool

	mu          sync.Mutex
	algorithms  map[string]Algorithm
	neural      *Neural
	runs        []RunRecord
	convergence []float64

	log logger.Logger
	bus eventbus.EventBus
}

// NewEngine creates an engine with all built-in solvers registered.
func NewEngine(cfg Config, log logger.Logger, bus eventbus.EventBus) (*Engine, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop{}
	}
	neural := NewNeural()
	e := &Engine{
		cfg: cfg,
		algorithms: map[string]Algorithm{
			AlgAnnealing:     NewAnnealer(),
			AlgGenetic:       NewGenetic(),
			AlgParticleSwarm: NewParticleSwarm(),
			AlgNeural:        neural,
		},
		neural: neural,
		log:    log,
		bus:    bus,
	}
	return e, nil
}

// Register adds or replaces a solver. Any implementation of the Algorithm
// contract can be substituted without touching dispatch.
func (e *Engine) Register(alg Algorithm) {
	e.mu.Lock()
	e.algorithms[alg.Name()] = alg
	e.mu.Unlock()
}

// IsOptimizing reports whether a solve is currently in flight.
func (e *Engine) IsOptimizing() bool { return e.optimizing.Load() }

// Enabled reports whether the engine participates in the pipeline.
func (e *Engine) Enabled() bool { return e.cfg.Enabled }

// UpdateInterval returns the period of the background optimization tick.
func (e *Engine) UpdateInterval() time.Duration {
	return time.Duration(e.cfg.UpdateIntervalS * float64(time.Second))
}

// RunCount returns the number of recorded optimization runs.
func (e *Engine) RunCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.runs)
}

// Optimize formulates the problem from the sample, dispatches one solver and
// applies the result when it converged with constraints satisfied. The
// returned bool reports whether the outputs were modified. When a solve is
// already in flight the inputs pass through unchanged.
func (e *Engine) Optimize(ctx context.Context, in model.Inputs, out model.Outputs) (model.Outputs, bool) {
	if !e.optimizing.CompareAndSwap(false, true) {
		e.log.Debugf("optimization already in flight, skipping")
		return out, false
	}
	defer e.optimizing.Store(false)

	maxExec := time.Duration(e.cfg.MaxExecutionTimeMS) * time.Millisecond
	p := Formulate(in, e.cfg.MaxTemperatureC, maxExec, e.cfg.ConvergenceThreshold)
	if len(p.Variables) == 0 {
		return out, false
	}

	alg := e.selectAlgorithm(p)
	res, err := alg.Solve(ctx, p)
	now := time.Now()
	if err != nil {
		e.log.Warnf("%s solve failed: %v", alg.Name(), err)
		e.record(RunRecord{Algorithm: alg.Name(), Time: now}, 0)
		e.publish(alg.Name(), "failed", nil)
		return out, false
	}

	applied := res.Success && res.Converged && res.ConstraintsSatisfied
	e.record(RunRecord{
		Algorithm:      alg.Name(),
		Applied:        applied,
		ImprovementPct: res.ImprovementPct,
		Iterations:     res.Iterations,
		Elapsed:        res.Elapsed,
		Time:           now,
	}, res.ImprovementPct)

	if !applied {
		// Non-converged results are discarded: no change beats an
		// unvalidated change.
		e.publish(alg.Name(), "rejected", res)
		return out, false
	}

	e.neural.Learn(p, res)
	e.publish(alg.Name(), "applied", res)
	return e.apply(p, res, out), true
}

// selectAlgorithm implements the dispatch policy; order matters.
func (e *Engine) selectAlgorithm(p *Problem) Algorithm {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cfg.Algorithm != AlgAuto {
		if alg, ok := e.algorithms[e.cfg.Algorithm]; ok {
			return alg
		}
	}
	complexity := p.Complexity()
	switch {
	case len(p.Objectives) > 3 && complexity > 0.7:
		return e.algorithms[AlgGenetic]
	case p.MaxExecTime < 50*time.Millisecond && complexity < 0.5:
		return e.algorithms[AlgParticleSwarm]
	case len(e.runs) >= 10:
		return e.algorithms[AlgNeural]
	default:
		return e.algorithms[AlgAnnealing]
	}
}

// apply overwrites only the allocation fields named in the solution map and
// appends a human-readable summary to the recommendations.
func (e *Engine) apply(p *Problem, res *Result, out model.Outputs) model.Outputs {
	next := out.Clone()
	for _, v := range p.Variables {
		alloc, ok := res.Allocations[v.Name]
		if !ok {
			continue
		}
		id := v.ComponentID
		switch v.Kind {
		case VarSource:
			sc := next.SourceControls[id]
			sc.PowerSetpointW = alloc
			next.SourceControls[id] = sc
		case VarStorage:
			st := next.StorageControls[id]
			st.PowerSetpointW = alloc
			switch {
			case alloc > 0:
				st.Mode = model.StorageModeCharge
			case alloc < 0:
				st.Mode = model.StorageModeDischarge
			default:
				st.Mode = model.StorageModeStandby
			}
			next.StorageControls[id] = st
		case VarLoad:
			lc := next.LoadControls[id]
			lc.AllocatedPowerW = alloc
			next.LoadControls[id] = lc
		}
	}
	next.Recommendations = append(next.Recommendations, fmt.Sprintf(
		"optimization: %.1f%% improvement, converged in %d iterations, %dms",
		res.ImprovementPct, res.Iterations, res.Elapsed.Milliseconds()))
	return next
}

func (e *Engine) record(rec RunRecord, convergenceSample float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runs = append(e.runs, rec)
	if len(e.runs) > maxRunHistory {
		e.runs = e.runs[len(e.runs)-maxRunHistory:]
	}
	e.convergence = append(e.convergence, convergenceSample)
	if len(e.convergence) > maxConvergenceHistory {
		e.convergence = e.convergence[len(e.convergence)-maxConvergenceHistory:]
	}
}

func (e *Engine) publish(alg, action string, res *Result) {
	if e.bus == nil {
		return
	}
	ev := events.OptimizationEvent{Algorithm: alg, Action: action, Time: time.Now()}
	if res != nil {
		ev.ImprovementPct = res.ImprovementPct
		ev.Iterations = res.Iterations
		ev.Elapsed = res.Elapsed
	}
	e.bus.Publish(ev)
}

// History returns a copy of the recorded runs, newest last.
func (e *Engine) History() []RunRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]RunRecord(nil), e.runs...)
}
