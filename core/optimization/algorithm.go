package optimization

import (
	"context"
	"errors"
	"time"
)

// Result is the common solver contract output. Any algorithm producing this
// shape can be substituted without touching the dispatch logic.
type Result struct {
	Success              bool
	Converged            bool
	Iterations           int
	ImprovementPct       float64
	Allocations          map[string]float64 // keyed by Variable.Name
	ObjectiveValues      map[ObjectiveKind]float64
	ConstraintsSatisfied bool
	Elapsed              time.Duration
}

// Algorithm solves one allocation problem.
type Algorithm interface {
	Name() string
	Solve(ctx context.Context, p *Problem) (*Result, error)
}

// ErrInfeasible indicates the solver found no vector satisfying the
// constraints.
var ErrInfeasible = errors.New("optimization infeasible")

// Algorithm names used by dispatch and configuration.
const (
	AlgGenetic       = "genetic"
	AlgParticleSwarm = "particle_swarm"
	AlgAnnealing     = "simulated_annealing"
	AlgNeural        = "neural_network"
	AlgAuto          = "auto"
)

// resultFrom packages the solver bookkeeping into a Result.
func resultFrom(p *Problem, best []float64, initialScore, bestScore float64, iters int, converged bool, start time.Time) *Result {
	alloc := make(map[string]float64, len(p.Variables))
	for i, v := range p.Variables {
		alloc[v.Name] = best[i]
	}
	improvement := 0.0
	if initialScore != 0 {
		improvement = (bestScore - initialScore) / absf(initialScore) * 100
	} else if bestScore > 0 {
		improvement = 100
	}
	return &Result{
		Success:              true,
		Converged:            converged,
		Iterations:           iters,
		ImprovementPct:       improvement,
		Allocations:          alloc,
		ObjectiveValues:      p.objectiveValues(best),
		ConstraintsSatisfied: p.ConstraintsSatisfied(best),
		Elapsed:              time.Since(start),
	}
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
