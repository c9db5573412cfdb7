package optimization

import (
	"context"
	"math/rand"
	"sort"
	"time"
)

// Genetic implements a real-coded genetic algorithm: tournament selection,
// uniform crossover, gaussian mutation, single-elite survival.
type Genetic struct {
	PopulationSize int
	Generations    int
	MutationRate   float64
	Seed           int64
}

// NewGenetic returns a GA sized for small allocation problems.
func NewGenetic() *Genetic {
	return &Genetic{PopulationSize: 24, Generations: 60, MutationRate: 0.15, Seed: 1}
}

func (g *Genetic) Name() string { return AlgGenetic }

func (g *Genetic) Solve(ctx context.Context, p *Problem) (*Result, error) {
	if len(p.Variables) == 0 {
		return nil, ErrInfeasible
	}
	start := time.Now()
	rng := rand.New(rand.NewSource(g.Seed))
	deadline := start.Add(p.MaxExecTime)

	type individual struct {
		genes []float64
		score float64
	}
	pop := make([]individual, g.PopulationSize)
	seed := p.initial()
	initialScore := p.Evaluate(seed)
	for i := range pop {
		genes := append([]float64(nil), seed...)
		if i > 0 {
			for j, v := range p.Variables {
				genes[j] = clampVar(v, genes[j]+(rng.Float64()*2-1)*(v.Max-v.Min)*0.3)
			}
		}
		pop[i] = individual{genes: genes, score: p.Evaluate(genes)}
	}

	rank := func() {
		sort.Slice(pop, func(i, j int) bool { return pop[i].score > pop[j].score })
	}
	rank()
	best := append([]float64(nil), pop[0].genes...)
	bestScore := pop[0].score

	tournament := func() individual {
		a, b := pop[rng.Intn(len(pop))], pop[rng.Intn(len(pop))]
		if a.score >= b.score {
			return a
		}
		return b
	}

	converged := false
	gen := 0
	for ; gen < g.Generations; gen++ {
		if ctx.Err() != nil || time.Now().After(deadline) {
			break
		}
		next := make([]individual, 0, len(pop))
		next = append(next, pop[0]) // elite
		for len(next) < len(pop) {
			ma, pa := tournament(), tournament()
			child := make([]float64, len(p.Variables))
			for j, v := range p.Variables {
				if rng.Float64() < 0.5 {
					child[j] = ma.genes[j]
				} else {
					child[j] = pa.genes[j]
				}
				if rng.Float64() < g.MutationRate {
					child[j] = clampVar(v, child[j]+rng.NormFloat64()*(v.Max-v.Min)*0.1)
				}
			}
			next = append(next, individual{genes: child, score: p.Evaluate(child)})
		}
		pop = next
		rank()
		if pop[0].score > bestScore {
			if pop[0].score-bestScore < p.ConvergenceEps {
				converged = true
				best = append(best[:0], pop[0].genes...)
				bestScore = pop[0].score
				gen++
				break
			}
			best = append(best[:0], pop[0].genes...)
			bestScore = pop[0].score
		}
	}

	absorbImbalance(p, best)
	bestScore = p.Evaluate(best)
	return resultFrom(p, best, initialScore, bestScore, gen, converged, start), nil
}
