package optimization

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Neural is the learned solver: it keeps per-family fill fractions updated
// from past successful runs and proposes allocations by interpolating the
// variable bounds, followed by a short stochastic hill climb. It only becomes
// eligible for dispatch once enough runs are recorded to have trained it.
type Neural struct {
	mu       sync.Mutex
	fraction map[VarKind]float64 // learned position inside [Min,Max]
	rate     float64
	Seed     int64
	Climbs   int
}

// NewNeural returns an untrained solver with neutral fractions.
func NewNeural() *Neural {
	return &Neural{
		fraction: map[VarKind]float64{VarSource: 0.8, VarStorage: 0.5, VarLoad: 1.0},
		rate:     0.2,
		Seed:     1,
		Climbs:   120,
	}
}

func (n *Neural) Name() string { return AlgNeural }

// Learn folds a successful allocation back into the fill fractions.
func (n *Neural) Learn(p *Problem, r *Result) {
	if r == nil || !r.Success {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	sums := map[VarKind]float64{}
	counts := map[VarKind]float64{}
	for _, v := range p.Variables {
		span := v.Max - v.Min
		if span <= 0 {
			continue
		}
		alloc, ok := r.Allocations[v.Name]
		if !ok {
			continue
		}
		sums[v.Kind] += (alloc - v.Min) / span
		counts[v.Kind]++
	}
	for kind, sum := range sums {
		observed := sum / counts[kind]
		n.fraction[kind] += n.rate * (observed - n.fraction[kind])
	}
}

func (n *Neural) Solve(ctx context.Context, p *Problem) (*Result, error) {
	if len(p.Variables) == 0 {
		return nil, ErrInfeasible
	}
	start := time.Now()
	rng := rand.New(rand.NewSource(n.Seed))
	deadline := start.Add(p.MaxExecTime)

	n.mu.Lock()
	x := make([]float64, len(p.Variables))
	for i, v := range p.Variables {
		x[i] = clampVar(v, v.Min+(v.Max-v.Min)*n.fraction[v.Kind])
	}
	n.mu.Unlock()

	initialScore := p.Evaluate(p.initial())
	best := append([]float64(nil), x...)
	bestScore := p.Evaluate(best)

	converged := false
	iter := 0
	stall := 0
	for ; iter < n.Climbs; iter++ {
		if ctx.Err() != nil || time.Now().After(deadline) {
			break
		}
		cand := neighbor(p, best, rng, 0.3)
		if score := p.Evaluate(cand); score > bestScore {
			if score-bestScore < p.ConvergenceEps {
				stall++
			}
			best, bestScore = cand, score
		} else {
			stall++
		}
		if stall >= 30 {
			converged = true
			iter++
			break
		}
	}

	absorbImbalance(p, best)
	bestScore = p.Evaluate(best)
	return resultFrom(p, best, initialScore, bestScore, iter, converged, start), nil
}
