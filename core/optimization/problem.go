package optimization

import (
	"math"
	"sort"
	"time"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/model"
)

// VarKind tells which component family a decision variable controls.
type VarKind string

const (
	VarSource  VarKind = "source"
	VarStorage VarKind = "storage"
	VarLoad    VarKind = "load"
)

// Variable is one continuous decision variable with box bounds.
type Variable struct {
	Name        string // "<kind>:<component id>"
	Kind        VarKind
	ComponentID string
	Min         float64
	Max         float64
}

// ObjectiveKind enumerates the fixed objective list.
type ObjectiveKind string

const (
	ObjMaximizeEfficiency  ObjectiveKind = "maximize_efficiency"
	ObjMinimizeLoss        ObjectiveKind = "minimize_loss"
	ObjMaximizeOutput      ObjectiveKind = "maximize_output"
	ObjMinimizeCost        ObjectiveKind = "minimize_cost"
	ObjMaximizeReliability ObjectiveKind = "maximize_reliability"
)

// Objective is one weighted term of the composite objective.
type Objective struct {
	Kind     ObjectiveKind
	Weight   float64
	Priority int
}

// Problem is a constrained multi-objective allocation problem built from the
// current inputs and outputs. The embedded input snapshot is what the
// objective evaluation reads.
type Problem struct {
	Variables         []Variable
	Objectives        []Objective
	BalanceToleranceW float64
	MinEfficiency     float64
	MaxTemperatureC   float64
	SoCMin            float64
	SoCMax            float64
	MaxExecTime       time.Duration
	ConvergenceEps    float64

	in model.Inputs
}

// Formulate builds the optimization problem for one sample: one variable per
// source (bounds [0, power]), per storage unit (bounds [-0.5C, +0.5C]) and
// per load (bounds [power x (1-flexibility), power]).
func Formulate(in model.Inputs, maxTempC float64, maxExec time.Duration, eps float64) *Problem {
	p := &Problem{
		Objectives: []Objective{
			{Kind: ObjMaximizeEfficiency, Weight: 0.30, Priority: 1},
			{Kind: ObjMinimizeLoss, Weight: 0.20, Priority: 2},
			{Kind: ObjMaximizeOutput, Weight: 0.20, Priority: 3},
			{Kind: ObjMinimizeCost, Weight: 0.15, Priority: 4},
			{Kind: ObjMaximizeReliability, Weight: 0.15, Priority: 5},
		},
		BalanceToleranceW: 10,
		MinEfficiency:     0.5,
		MaxTemperatureC:   maxTempC,
		SoCMin:            10,
		SoCMax:            95,
		MaxExecTime:       maxExec,
		ConvergenceEps:    eps,
		in:                in,
	}
	ids := make([]string, 0, len(in.Sources))
	for id := range in.Sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		src := in.Sources[id]
		max := src.PowerW
		if src.TemperatureC > maxTempC || src.Status == model.StatusFault {
			max = 0
		}
		p.Variables = append(p.Variables, Variable{
			Name: string(VarSource) + ":" + id, Kind: VarSource, ComponentID: id, Min: 0, Max: max,
		})
	}
	ids = ids[:0]
	for id := range in.Storage {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		st := in.Storage[id]
		halfC := 0.5 * st.CapacityWh
		p.Variables = append(p.Variables, Variable{
			Name: string(VarStorage) + ":" + id, Kind: VarStorage, ComponentID: id, Min: -halfC, Max: halfC,
		})
	}
	ids = ids[:0]
	for id := range in.Loads {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		l := in.Loads[id]
		p.Variables = append(p.Variables, Variable{
			Name: string(VarLoad) + ":" + id, Kind: VarLoad, ComponentID: id,
			Min: l.PowerW * (1 - l.Flexibility), Max: l.PowerW,
		})
	}
	return p
}

// Complexity normalizes problem size for the dispatch heuristics.
func (p *Problem) Complexity() float64 {
	c := float64(len(p.Variables)) / 20
	if c > 1 {
		return 1
	}
	return c
}

// initial returns a feasible starting vector: sources at their efficiency-
// weighted output, storage idle, loads at full demand.
func (p *Problem) initial() []float64 {
	x := make([]float64, len(p.Variables))
	for i, v := range p.Variables {
		switch v.Kind {
		case VarSource:
			x[i] = v.Max * p.in.Sources[v.ComponentID].Efficiency
		case VarStorage:
			x[i] = 0
		case VarLoad:
			x[i] = v.Max
		}
		x[i] = clampVar(v, x[i])
	}
	return x
}

func clampVar(v Variable, val float64) float64 {
	if val < v.Min {
		return v.Min
	}
	if val > v.Max {
		return v.Max
	}
	return val
}

// balance computes source output minus load allocation minus storage charge
// for a candidate vector.
func (p *Problem) balance(x []float64) float64 {
	var src, load, charge float64
	for i, v := range p.Variables {
		switch v.Kind {
		case VarSource:
			src += x[i]
		case VarLoad:
			load += x[i]
		case VarStorage:
			charge += x[i]
		}
	}
	return src - load - charge
}

// Evaluate scores a candidate vector: the weighted objective composite minus
// a balance-violation penalty. Higher is better.
func (p *Problem) Evaluate(x []float64) float64 {
	objs := p.objectiveValues(x)
	var score float64
	for _, o := range p.Objectives {
		score += o.Weight * objs[o.Kind]
	}
	if excess := math.Abs(p.balance(x)) - p.BalanceToleranceW; excess > 0 {
		score -= excess / 1000
	}
	return score
}

// objectiveValues computes each normalized objective term in [0,1].
func (p *Problem) objectiveValues(x []float64) map[ObjectiveKind]float64 {
	var srcPower, weightedEff, cost, reliability, loadAlloc, loadMax float64
	var nSrc int
	for i, v := range p.Variables {
		switch v.Kind {
		case VarSource:
			src := p.in.Sources[v.ComponentID]
			srcPower += x[i]
			weightedEff += x[i] * src.Efficiency
			cost += x[i] * sourceCost(src.Kind)
			reliability += x[i] * srcReliability(src)
			nSrc++
		case VarLoad:
			loadAlloc += x[i]
			loadMax += v.Max
		}
	}
	eff := 0.0
	rel := 0.0
	if srcPower > 0 {
		eff = weightedEff / srcPower
		rel = reliability / srcPower
	}
	output := 0.0
	if loadMax > 0 {
		output = loadAlloc / loadMax
	}
	normCost := 0.0
	if srcPower > 0 {
		normCost = cost / (srcPower * 0.08) // 0.08 is the costliest source family
		if normCost > 1 {
			normCost = 1
		}
	}
	return map[ObjectiveKind]float64{
		ObjMaximizeEfficiency:  eff,
		ObjMinimizeLoss:        eff, // loss is the complement of efficiency
		ObjMaximizeOutput:      output,
		ObjMinimizeCost:        1 - normCost,
		ObjMaximizeReliability: rel,
	}
}

// ConstraintsSatisfied checks balance tolerance, minimum efficiency,
// temperature ceilings and the storage SOC band for a candidate vector.
func (p *Problem) ConstraintsSatisfied(x []float64) bool {
	if math.Abs(p.balance(x)) > p.BalanceToleranceW {
		return false
	}
	objs := p.objectiveValues(x)
	if objs[ObjMaximizeEfficiency] > 0 && objs[ObjMaximizeEfficiency] < p.MinEfficiency {
		return false
	}
	for i, v := range p.Variables {
		switch v.Kind {
		case VarSource:
			if x[i] > 0 && p.in.Sources[v.ComponentID].TemperatureC > p.MaxTemperatureC {
				return false
			}
		case VarStorage:
			st := p.in.Storage[v.ComponentID]
			// Projected SOC after one hour at the candidate setpoint.
			soc := st.SoC + x[i]/st.CapacityWh*100
			if soc < p.SoCMin || soc > p.SoCMax {
				return false
			}
		}
	}
	return true
}

func sourceCost(k model.SourceKind) float64 {
	switch k {
	case model.SourceElectromagnetic:
		return 0.02
	case model.SourceMechanical:
		return 0.03
	case model.SourceThermal:
		return 0.05
	case model.SourcePiezoelectric:
		return 0.08
	default:
		return 0.05
	}
}

func srcReliability(src model.Source) float64 {
	r := src.Efficiency
	if src.Status != model.StatusActive {
		r *= 0.5
	}
	if src.TemperatureC > 60 {
		r *= 0.8
	}
	return r
}
