package optimization

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Annealer implements simulated annealing over the allocation vector with an
// LP refinement of the source split on the best candidate.
type Annealer struct {
	MaxIterations int
	InitialTemp   float64
	CoolingRate   float64
	Seed          int64
}

// NewAnnealer returns an annealer with the default schedule.
func NewAnnealer() *Annealer {
	return &Annealer{MaxIterations: 400, InitialTemp: 100, CoolingRate: 0.97, Seed: 1}
}

func (a *Annealer) Name() string { return AlgAnnealing }

func (a *Annealer) Solve(ctx context.Context, p *Problem) (*Result, error) {
	if len(p.Variables) == 0 {
		return nil, ErrInfeasible
	}
	start := time.Now()
	rng := rand.New(rand.NewSource(a.Seed))
	deadline := start.Add(p.MaxExecTime)

	current := p.initial()
	best := append([]float64(nil), current...)
	initialScore := p.Evaluate(current)
	currentScore := initialScore
	bestScore := initialScore

	temp := a.InitialTemp
	converged := false
	stall := 0
	iters := 0
	for ; iters < a.MaxIterations; iters++ {
		if iters%16 == 0 {
			if ctx.Err() != nil || time.Now().After(deadline) {
				break
			}
		}
		cand := neighbor(p, current, rng, temp/a.InitialTemp)
		score := p.Evaluate(cand)
		if score > currentScore || rng.Float64() < math.Exp((score-currentScore)/math.Max(temp, 1e-9)) {
			current, currentScore = cand, score
		}
		if score > bestScore {
			if score-bestScore < p.ConvergenceEps {
				stall++
			} else {
				stall = 0
			}
			best = append(best[:0], cand...)
			bestScore = score
		} else {
			stall++
		}
		if stall >= 50 {
			converged = true
			iters++
			break
		}
		temp *= a.CoolingRate
	}

	refineSourcesLP(p, best)
	absorbImbalance(p, best)
	bestScore = p.Evaluate(best)
	return resultFrom(p, best, initialScore, bestScore, iters, converged, start), nil
}

// neighbor perturbs one random variable proportionally to the remaining
// temperature fraction.
func neighbor(p *Problem, x []float64, rng *rand.Rand, scale float64) []float64 {
	cand := append([]float64(nil), x...)
	i := rng.Intn(len(cand))
	v := p.Variables[i]
	span := (v.Max - v.Min) * (0.05 + 0.25*scale)
	cand[i] = clampVar(v, cand[i]+(rng.Float64()*2-1)*span)
	return cand
}
