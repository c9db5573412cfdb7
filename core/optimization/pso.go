package optimization

import (
	"context"
	"math/rand"
	"time"
)

// ParticleSwarm implements standard PSO with inertia and cognitive/social
// pulls. It is the fast path for small problems under a tight time budget.
type ParticleSwarm struct {
	Particles  int
	Iterations int
	Inertia    float64
	Cognitive  float64
	Social     float64
	Seed       int64
}

// NewParticleSwarm returns a swarm with canonical coefficients.
func NewParticleSwarm() *ParticleSwarm {
	return &ParticleSwarm{Particles: 16, Iterations: 80, Inertia: 0.7, Cognitive: 1.5, Social: 1.5, Seed: 1}
}

func (s *ParticleSwarm) Name() string { return AlgParticleSwarm }

func (s *ParticleSwarm) Solve(ctx context.Context, p *Problem) (*Result, error) {
	if len(p.Variables) == 0 {
		return nil, ErrInfeasible
	}
	start := time.Now()
	rng := rand.New(rand.NewSource(s.Seed))
	deadline := start.Add(p.MaxExecTime)
	n := len(p.Variables)

	pos := make([][]float64, s.Particles)
	vel := make([][]float64, s.Particles)
	pBest := make([][]float64, s.Particles)
	pBestScore := make([]float64, s.Particles)

	seed := p.initial()
	initialScore := p.Evaluate(seed)
	gBest := append([]float64(nil), seed...)
	gBestScore := initialScore

	for i := range pos {
		pos[i] = make([]float64, n)
		vel[i] = make([]float64, n)
		for j, v := range p.Variables {
			if i == 0 {
				pos[i][j] = seed[j]
			} else {
				pos[i][j] = v.Min + rng.Float64()*(v.Max-v.Min)
			}
			vel[i][j] = (rng.Float64()*2 - 1) * (v.Max - v.Min) * 0.1
		}
		pBest[i] = append([]float64(nil), pos[i]...)
		pBestScore[i] = p.Evaluate(pos[i])
		if pBestScore[i] > gBestScore {
			gBest = append(gBest[:0], pos[i]...)
			gBestScore = pBestScore[i]
		}
	}

	converged := false
	iter := 0
	for ; iter < s.Iterations; iter++ {
		if ctx.Err() != nil || time.Now().After(deadline) {
			break
		}
		improved := 0.0
		for i := range pos {
			for j, v := range p.Variables {
				r1, r2 := rng.Float64(), rng.Float64()
				vel[i][j] = s.Inertia*vel[i][j] +
					s.Cognitive*r1*(pBest[i][j]-pos[i][j]) +
					s.Social*r2*(gBest[j]-pos[i][j])
				pos[i][j] = clampVar(v, pos[i][j]+vel[i][j])
			}
			score := p.Evaluate(pos[i])
			if score > pBestScore[i] {
				pBest[i] = append(pBest[i][:0], pos[i]...)
				pBestScore[i] = score
			}
			if score > gBestScore {
				improved += score - gBestScore
				gBest = append(gBest[:0], pos[i]...)
				gBestScore = score
			}
		}
		if improved < p.ConvergenceEps {
			converged = true
			iter++
			break
		}
	}

	absorbImbalance(p, gBest)
	gBestScore = p.Evaluate(gBest)
	return resultFrom(p, gBest, initialScore, gBestScore, iter, converged, start), nil
}
