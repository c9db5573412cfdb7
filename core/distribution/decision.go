package distribution

import "sort"

// TargetType tells whether a decision routes power to a storage unit, a load
// or the vehicle bus.
type TargetType string

const (
	TargetStorage TargetType = "storage"
	TargetLoad    TargetType = "load"
	TargetGrid    TargetType = "grid"
)

// GridSource is the pseudo source ID used when a load draws from the vehicle
// bus instead of a harvesting source or storage unit.
const GridSource = "grid"

// Decision is one proposed power allocation edge.
type Decision struct {
	SourceID   string
	TargetID   string
	TargetType TargetType
	PowerW     float64
	Priority   int
	Efficiency float64
	Cost       float64
	Reason     string
}

// Result is the outcome of one distribution pass.
type Result struct {
	Strategy   string
	Decisions  []Decision
	Violations []string
}

// LoadAllocationW sums allocations targeting the given load.
func (r Result) LoadAllocationW(loadID string) float64 {
	var total float64
	for _, d := range r.Decisions {
		if d.TargetType == TargetLoad && d.TargetID == loadID {
			total += d.PowerW
		}
	}
	return total
}

// sortDecisions orders decisions by descending priority, then by source and
// target ID so results are deterministic across map iteration orders.
func sortDecisions(ds []Decision) {
	sort.Slice(ds, func(i, j int) bool {
		if ds[i].Priority != ds[j].Priority {
			return ds[i].Priority > ds[j].Priority
		}
		if ds[i].SourceID != ds[j].SourceID {
			return ds[i].SourceID < ds[j].SourceID
		}
		return ds[i].TargetID < ds[j].TargetID
	})
}
