package distribution

import (
	"sort"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/model"
)

// Strategy names accepted by the configuration surface.
const (
	StrategyPriorityBased       = "priority_based"
	StrategyLoadBalancing       = "load_balancing"
	StrategyEfficiencyOptimized = "efficiency_optimized"
	StrategyCostMinimized       = "cost_minimized"
	StrategyReliabilityFocused  = "reliability_focused"
	StrategyAdaptive            = "adaptive"
)

// Strategy realizes a flow matrix into concrete allocation decisions.
type Strategy interface {
	Name() string
	Distribute(in model.Inputs, flow FlowControl) Result
}

// PriorityBased allocates loads in descending priority order, then routes any
// source surplus to the storage unit scoring highest on SOC headroom, health
// and capacity.
type PriorityBased struct{}

func (PriorityBased) Name() string { return StrategyPriorityBased }

func (PriorityBased) Distribute(in model.Inputs, flow FlowControl) Result {
	s := newAllocState(in, flow)
	allocateByPriority(s)
	routeSurplus(s)
	return s.result(StrategyPriorityBased)
}

// allocateByPriority serves loads from direct source edges first, then from
// storage discharge edges, finally covering the rest from the vehicle bus.
func allocateByPriority(s *allocState) {
	bySoC := func(a, b model.Storage) bool { return a.SoC > b.SoC }
	byEff := func(a, b model.Source) bool { return a.Efficiency > b.Efficiency }
	for _, lid := range loadsByPriority(s.in, true) {
		for _, sid := range s.sourceIDsBy(byEff) {
			if s.need[lid] <= 0 {
				break
			}
			s.takeFromSource(sid, lid, "priority allocation from source")
		}
		for _, stid := range s.storageIDsBy(bySoC) {
			if s.need[lid] <= 0 {
				break
			}
			s.takeFromStorage(stid, lid, "priority allocation from storage")
		}
		s.fillFromGrid(lid, "vehicle bus covers residual demand")
	}
}

// routeSurplus sends leftover source power to storage, best scoring unit
// first: 0.4 x SOC headroom + 0.4 x health + 0.2 x normalized capacity.
func routeSurplus(s *allocState) {
	var maxCap float64
	for _, st := range s.in.Storage {
		if st.CapacityWh > maxCap {
			maxCap = st.CapacityWh
		}
	}
	score := func(st model.Storage) float64 {
		normCap := 0.0
		if maxCap > 0 {
			normCap = st.CapacityWh / maxCap
		}
		return 0.4*(1-st.SoC/100) + 0.4*st.Health + 0.2*normCap
	}
	byEff := func(a, b model.Source) bool { return a.Efficiency > b.Efficiency }
	for _, sid := range s.sourceIDsBy(byEff) {
		targets := make([]string, 0, len(s.flow.SourceToStorage[sid]))
		for stid := range s.flow.SourceToStorage[sid] {
			targets = append(targets, stid)
		}
		sort.Slice(targets, func(i, j int) bool {
			a, b := score(s.in.Storage[targets[i]]), score(s.in.Storage[targets[j]])
			if a != b {
				return a > b
			}
			return targets[i] < targets[j]
		})
		for _, stid := range targets {
			if s.srcRemaining[sid] <= 0 {
				break
			}
			s.chargeStorage(sid, stid, "surplus charging")
		}
	}
}

// LoadBalancing sheds demand starting from the lowest priority load when the
// system is in deficit, each load reduced by at most its flexibility
// allowance, then allocates the reduced demands.
type LoadBalancing struct{}

func (LoadBalancing) Name() string { return StrategyLoadBalancing }

func (LoadBalancing) Distribute(in model.Inputs, flow FlowControl) Result {
	s := newAllocState(in, flow)
	var available float64
	for _, w := range s.srcRemaining {
		available += w
	}
	for _, w := range s.stRemaining {
		available += w
	}
	required := in.TotalLoadPowerW()
	if deficit := required - available; deficit > 0 {
		remaining := deficit
		for _, lid := range loadsByPriority(in, false) {
			if remaining <= 0 {
				break
			}
			remaining -= s.shedLoad(lid, remaining)
		}
	}
	allocateByPriority(s)
	routeSurplus(s)
	return s.result(StrategyLoadBalancing)
}
