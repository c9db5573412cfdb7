package optimization

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// refineSourcesLP re-solves the source split with a linear program: maximize
// the efficiency-weighted allocation subject to per-source caps and the total
// demand the candidate vector committed to. Solver failures leave the vector
// untouched.
func refineSourcesLP(p *Problem, x []float64) {
	var srcIdx []int
	var demand float64
	for i, v := range p.Variables {
		switch v.Kind {
		case VarSource:
			srcIdx = append(srcIdx, i)
		case VarLoad:
			demand += x[i]
		case VarStorage:
			demand += x[i]
		}
	}
	if len(srcIdx) == 0 || demand <= 0 {
		return
	}
	scores := make([]float64, len(srcIdx))
	caps := make([]float64, len(srcIdx))
	var capacity float64
	for j, i := range srcIdx {
		v := p.Variables[i]
		scores[j] = p.in.Sources[v.ComponentID].Efficiency
		caps[j] = v.Max
		capacity += v.Max
	}
	if demand > capacity {
		demand = capacity
	}
	sol, err := lpSolve(scores, caps, demand)
	if err != nil {
		return
	}
	for j, i := range srcIdx {
		x[i] = clampVar(p.Variables[i], sol[j])
	}
}

// solveLP runs the simplex algorithm to maximise the weighted score subject
// to capacity constraints and a fixed total.
func solveLP(scores, caps []float64, target float64) ([]float64, error) {
	c := make([]float64, len(scores))
	for i, s := range scores {
		c[i] = -s
	}

	g := mat.NewDense(len(caps), len(caps), nil)
	h := make([]float64, len(caps))
	for i, cap := range caps {
		g.Set(i, i, 1)
		h[i] = cap
	}

	a := mat.NewDense(1, len(caps), nil)
	for i := range caps {
		a.Set(0, i, 1)
	}
	b := []float64{target}

	cStd, aStd, bStd := lp.Convert(c, g, h, a, b)
	_, sol, err := lp.Simplex(cStd, aStd, bStd, 1e-7, nil)
	if err != nil {
		return nil, err
	}
	return sol[:len(caps)], nil
}

// lpSolve points to the LP solver. Tests override it to simulate failures.
var lpSolve = solveLP

// absorbImbalance nudges storage variables inside their bounds so the power
// balance lands within tolerance. Residual imbalance is absorbed by trimming
// load allocations toward their lower bounds.
func absorbImbalance(p *Problem, x []float64) {
	residual := p.balance(x) // positive: excess generation, push into storage
	for i, v := range p.Variables {
		if v.Kind != VarStorage || residual == 0 {
			continue
		}
		lo, hi := p.storageSoCBounds(v)
		want := x[i] + residual
		adj := math.Min(math.Max(want, lo), hi)
		residual -= adj - x[i]
		x[i] = adj
	}
	if residual >= 0 {
		return
	}
	// Generation short: shed flexible load down to the lower bound.
	for i, v := range p.Variables {
		if v.Kind != VarLoad || residual >= 0 {
			continue
		}
		cut := math.Min(x[i]-v.Min, -residual)
		if cut <= 0 {
			continue
		}
		x[i] -= cut
		residual += cut
	}
}

// storageSoCBounds intersects the variable box with the SOC band [10,95]
// projected one hour ahead at the candidate setpoint.
func (p *Problem) storageSoCBounds(v Variable) (float64, float64) {
	st := p.in.Storage[v.ComponentID]
	lo := (p.SoCMin - st.SoC) / 100 * st.CapacityWh
	hi := (p.SoCMax - st.SoC) / 100 * st.CapacityWh
	if lo < v.Min {
		lo = v.Min
	}
	if hi > v.Max {
		hi = v.Max
	}
	if lo > hi {
		lo, hi = 0, 0
	}
	return lo, hi
}
