package distribution

import (
	"fmt"
	"math"
	"sort"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/model"
)

const (
	chargeEfficiency     = 0.95
	storageDischargeCost = 0.10
	gridImportCost       = 0.25
)

// kindCost is the relative cost of drawing one watt from a source family.
func kindCost(k model.SourceKind) float64 {
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

// allocState tracks remaining capacities while a strategy realizes the flow
// matrix into decisions. It is the remaining-capacity tracker that keeps any
// strategy from committing the same source watts twice.
type allocState struct {
	in   model.Inputs
	flow FlowControl

	srcRemaining map[string]float64 // deliverable watts per source
	stRemaining  map[string]float64 // dischargeable watts per storage unit
	need         map[string]float64 // outstanding demand per load
	edgeUsed     map[string]float64 // watts already committed per edge

	decisions  []Decision
	violations []string
	gridImport float64
}

func newAllocState(in model.Inputs, flow FlowControl) *allocState {
	s := &allocState{
		in:           in,
		flow:         flow,
		srcRemaining: make(map[string]float64, len(in.Sources)),
		stRemaining:  make(map[string]float64, len(in.Storage)),
		need:         make(map[string]float64, len(in.Loads)),
		edgeUsed:     make(map[string]float64),
	}
	for id, src := range in.Sources {
		if src.Status == model.StatusActive {
			s.srcRemaining[id] = src.PowerW * src.Efficiency
		}
	}
	for id, st := range in.Storage {
		if st.CanDischarge() {
			s.stRemaining[id] = (st.SoC - 10) / 100 * st.CapacityWh
		}
	}
	for id, l := range in.Loads {
		s.need[id] = l.PowerW
	}
	return s
}

// sourceIDsBy returns active source IDs sorted by the given less function,
// with a stable ID tiebreak.
func (s *allocState) sourceIDsBy(less func(a, b model.Source) bool) []string {
	ids := make([]string, 0, len(s.srcRemaining))
	for id := range s.srcRemaining {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := s.in.Sources[ids[i]], s.in.Sources[ids[j]]
		if less(a, b) {
			return true
		}
		if less(b, a) {
			return false
		}
		return ids[i] < ids[j]
	})
	return ids
}

// storageIDsBy returns dischargeable storage IDs sorted by the given less
// function, with a stable ID tiebreak.
func (s *allocState) storageIDsBy(less func(a, b model.Storage) bool) []string {
	ids := make([]string, 0, len(s.stRemaining))
	for id := range s.stRemaining {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := s.in.Storage[ids[i]], s.in.Storage[ids[j]]
		if less(a, b) {
			return true
		}
		if less(b, a) {
			return false
		}
		return ids[i] < ids[j]
	})
	return ids
}

// loadsByPriority returns load IDs ordered by priority (descending when
// desc is true), with a stable ID tiebreak.
func loadsByPriority(in model.Inputs, desc bool) []string {
	ids := make([]string, 0, len(in.Loads))
	for id := range in.Loads {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := in.Loads[ids[i]], in.Loads[ids[j]]
		if a.Priority != b.Priority {
			if desc {
				return a.Priority > b.Priority
			}
			return a.Priority < b.Priority
		}
		return ids[i] < ids[j]
	})
	return ids
}

// takeFromSource allocates up to want watts from the source along its direct
// edge to the load, returns the amount actually taken.
func (s *allocState) takeFromSource(sid, lid, reason string) float64 {
	edge, ok := s.flow.SourceToLoad[sid][lid]
	if !ok {
		return 0
	}
	key := "sl:" + sid + ":" + lid
	load := s.in.Loads[lid]
	take := math.Min(s.need[lid], math.Min(edge.MaxW-s.edgeUsed[key], s.srcRemaining[sid]))
	if take <= 0 {
		return 0
	}
	src := s.in.Sources[sid]
	s.edgeUsed[key] += take
	s.srcRemaining[sid] -= take
	s.need[lid] -= take
	s.decisions = append(s.decisions, Decision{
		SourceID:   sid,
		TargetID:   lid,
		TargetType: TargetLoad,
		PowerW:     take,
		Priority:   load.Priority,
		Efficiency: src.Efficiency,
		Cost:       kindCost(src.Kind),
		Reason:     reason,
	})
	return take
}

// takeFromStorage allocates up to want watts from the storage unit along its
// discharge edge to the load, returns the amount actually taken.
func (s *allocState) takeFromStorage(stid, lid, reason string) float64 {
	edge, ok := s.flow.StorageToLoad[stid][lid]
	if !ok {
		return 0
	}
	key := "tl:" + stid + ":" + lid
	load := s.in.Loads[lid]
	take := math.Min(s.need[lid], math.Min(edge.MaxW-s.edgeUsed[key], s.stRemaining[stid]))
	if take <= 0 {
		return 0
	}
	s.edgeUsed[key] += take
	s.stRemaining[stid] -= take
	s.need[lid] -= take
	s.decisions = append(s.decisions, Decision{
		SourceID:   stid,
		TargetID:   lid,
		TargetType: TargetLoad,
		PowerW:     take,
		Priority:   load.Priority,
		Efficiency: chargeEfficiency,
		Cost:       storageDischargeCost,
		Reason:     reason,
	})
	return take
}

// fillFromGrid covers the outstanding demand of a load from the vehicle bus.
func (s *allocState) fillFromGrid(lid, reason string) float64 {
	remaining := s.need[lid]
	if remaining <= 0 {
		return 0
	}
	load := s.in.Loads[lid]
	s.need[lid] = 0
	s.gridImport += remaining
	s.decisions = append(s.decisions, Decision{
		SourceID:   GridSource,
		TargetID:   lid,
		TargetType: TargetLoad,
		PowerW:     remaining,
		Priority:   load.Priority,
		Efficiency: 1,
		Cost:       gridImportCost,
		Reason:     reason,
	})
	return remaining
}

// chargeStorage routes surplus source watts into the storage unit, bounded by
// the charging edge, and returns the amount routed.
func (s *allocState) chargeStorage(sid, stid, reason string) float64 {
	edge, ok := s.flow.SourceToStorage[sid][stid]
	if !ok {
		return 0
	}
	key := "ss:" + sid + ":" + stid
	take := math.Min(edge.MaxW-s.edgeUsed[key], s.srcRemaining[sid])
	if take <= 0 {
		return 0
	}
	src := s.in.Sources[sid]
	s.edgeUsed[key] += take
	s.srcRemaining[sid] -= take
	s.decisions = append(s.decisions, Decision{
		SourceID:   sid,
		TargetID:   stid,
		TargetType: TargetStorage,
		PowerW:     take,
		Priority:   5,
		Efficiency: src.Efficiency * chargeEfficiency,
		Cost:       kindCost(src.Kind),
		Reason:     reason,
	})
	return take
}

// shedLoad reduces the outstanding demand of a load by up to its flexibility
// allowance and records the reduction as a priority violation.
func (s *allocState) shedLoad(lid string, wantW float64) float64 {
	load := s.in.Loads[lid]
	reduction := math.Min(wantW, load.SheddableW())
	reduction = math.Min(reduction, s.need[lid])
	if reduction <= 0 {
		return 0
	}
	s.need[lid] -= reduction
	s.violations = append(s.violations,
		fmt.Sprintf("load %s shed by %.1fW (priority %d, flexibility %.0f%%)",
			lid, reduction, load.Priority, load.Flexibility*100))
	return reduction
}

func (s *allocState) result(strategy string) Result {
	sortDecisions(s.decisions)
	return Result{Strategy: strategy, Decisions: s.decisions, Violations: s.violations}
}
