package distribution

import (
	"sort"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/model"
)

// pathKind distinguishes candidate edges when ranking feasible paths.
type pathKind int

const (
	pathSourceLoad pathKind = iota
	pathStorageLoad
)

type candidatePath struct {
	kind       pathKind
	fromID     string
	loadID     string
	efficiency float64
	cost       float64
	priority   int
}

// feasiblePaths enumerates every edge of the flow matrix that can still carry
// power to a load.
func feasiblePaths(s *allocState) []candidatePath {
	var paths []candidatePath
	for sid, edges := range s.flow.SourceToLoad {
		src := s.in.Sources[sid]
		for lid := range edges {
			paths = append(paths, candidatePath{
				kind:       pathSourceLoad,
				fromID:     sid,
				loadID:     lid,
				efficiency: src.Efficiency,
				cost:       kindCost(src.Kind),
				priority:   s.in.Loads[lid].Priority,
			})
		}
	}
	for stid, edges := range s.flow.StorageToLoad {
		for lid := range edges {
			paths = append(paths, candidatePath{
				kind:       pathStorageLoad,
				fromID:     stid,
				loadID:     lid,
				efficiency: chargeEfficiency,
				cost:       storageDischargeCost,
				priority:   s.in.Loads[lid].Priority,
			})
		}
	}
	return paths
}

func allocatePaths(s *allocState, paths []candidatePath, reason string) {
	for _, p := range paths {
		if s.need[p.loadID] <= 0 {
			continue
		}
		switch p.kind {
		case pathSourceLoad:
			s.takeFromSource(p.fromID, p.loadID, reason)
		case pathStorageLoad:
			s.takeFromStorage(p.fromID, p.loadID, reason)
		}
	}
	for _, lid := range loadsByPriority(s.in, true) {
		s.fillFromGrid(lid, "vehicle bus covers residual demand")
	}
}

// EfficiencyOptimized ranks all feasible paths by conversion efficiency and
// allocates greedily along the ranking.
type EfficiencyOptimized struct{}

func (EfficiencyOptimized) Name() string { return StrategyEfficiencyOptimized }

func (EfficiencyOptimized) Distribute(in model.Inputs, flow FlowControl) Result {
	s := newAllocState(in, flow)
	paths := feasiblePaths(s)
	sort.Slice(paths, func(i, j int) bool {
		if paths[i].efficiency != paths[j].efficiency {
			return paths[i].efficiency > paths[j].efficiency
		}
		return pathLess(paths[i], paths[j])
	})
	allocatePaths(s, paths, "efficiency-ranked allocation")
	routeSurplus(s)
	return s.result(StrategyEfficiencyOptimized)
}

// CostMinimized ranks all feasible paths by cost and allocates greedily along
// the ranking.
type CostMinimized struct{}

func (CostMinimized) Name() string { return StrategyCostMinimized }

func (CostMinimized) Distribute(in model.Inputs, flow FlowControl) Result {
	s := newAllocState(in, flow)
	paths := feasiblePaths(s)
	sort.Slice(paths, func(i, j int) bool {
		if paths[i].cost != paths[j].cost {
			return paths[i].cost < paths[j].cost
		}
		return pathLess(paths[i], paths[j])
	})
	allocatePaths(s, paths, "cost-ranked allocation")
	routeSurplus(s)
	return s.result(StrategyCostMinimized)
}

// ReliabilityFocused serves critical loads first from the most reliable
// sources. Reliability weighs source efficiency by the component health the
// controller derives from temperature and status. The shared allocState
// capacity tracker prevents the same source watts from being committed to
// two loads.
type ReliabilityFocused struct{}

func (ReliabilityFocused) Name() string { return StrategyReliabilityFocused }

func (ReliabilityFocused) Distribute(in model.Inputs, flow FlowControl) Result {
	s := newAllocState(in, flow)
	reliability := func(src model.Source) float64 {
		r := src.Efficiency
		if src.TemperatureC > 60 {
			r *= 0.8
		}
		if src.Status != model.StatusActive {
			r *= 0.5
		}
		return r
	}
	byReliability := func(a, b model.Source) bool { return reliability(a) > reliability(b) }
	byHealth := func(a, b model.Storage) bool { return a.Health > b.Health }

	critical := make([]string, 0, len(in.Loads))
	rest := make([]string, 0, len(in.Loads))
	for _, lid := range loadsByPriority(in, true) {
		if in.Loads[lid].Kind == model.LoadCritical {
			critical = append(critical, lid)
		} else {
			rest = append(rest, lid)
		}
	}
	for _, lid := range append(critical, rest...) {
		for _, sid := range s.sourceIDsBy(byReliability) {
			if s.need[lid] <= 0 {
				break
			}
			s.takeFromSource(sid, lid, "reliability-ranked source")
		}
		for _, stid := range s.storageIDsBy(byHealth) {
			if s.need[lid] <= 0 {
				break
			}
			s.takeFromStorage(stid, lid, "reliability-ranked storage")
		}
		s.fillFromGrid(lid, "vehicle bus covers residual demand")
	}
	routeSurplus(s)
	return s.result(StrategyReliabilityFocused)
}

func pathLess(a, b candidatePath) bool {
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	if a.fromID != b.fromID {
		return a.fromID < b.fromID
	}
	return a.loadID < b.loadID
}
