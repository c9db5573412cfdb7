package distribution

import (
	"math"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/model"
)

// FlowLimit bounds the feasible power on one edge of the flow graph.
type FlowLimit struct {
	MinW          float64
	MaxW          float64
	Bidirectional bool
}

// FlowControl is the matrix of feasible power paths for one sample. It is
// built fresh every cycle and discarded after the decisions are realized.
type FlowControl struct {
	SourceToStorage map[string]map[string]FlowLimit
	SourceToLoad    map[string]map[string]FlowLimit
	StorageToLoad   map[string]map[string]FlowLimit
	GridImportW     float64
	GridExportW     float64
}

// NewFlowControl returns a FlowControl with all edge maps allocated.
func NewFlowControl() FlowControl {
	return FlowControl{
		SourceToStorage: make(map[string]map[string]FlowLimit),
		SourceToLoad:    make(map[string]map[string]FlowLimit),
		StorageToLoad:   make(map[string]map[string]FlowLimit),
	}
}

// AnalyzeFlow computes the feasible power paths between every source,
// storage unit and load for the current sample.
func (m *Manager) AnalyzeFlow(in model.Inputs) FlowControl {
	flow := NewFlowControl()
	for sid, src := range in.Sources {
		if src.Status != model.StatusActive {
			continue
		}
		for stid, st := range in.Storage {
			if !st.CanCharge() {
				continue
			}
			limit := chargeFlowLimit(src, st, in.Vehicle.DrivingMode)
			if limit <= 0 {
				continue
			}
			if flow.SourceToStorage[sid] == nil {
				flow.SourceToStorage[sid] = make(map[string]FlowLimit)
			}
			flow.SourceToStorage[sid][stid] = FlowLimit{MaxW: limit}
		}
		for lid, load := range in.Loads {
			if load.Kind != model.LoadCritical {
				continue
			}
			limit := src.PowerW * src.Efficiency * 0.95
			if limit <= 0 {
				continue
			}
			if flow.SourceToLoad[sid] == nil {
				flow.SourceToLoad[sid] = make(map[string]FlowLimit)
			}
			flow.SourceToLoad[sid][lid] = FlowLimit{MaxW: limit}
		}
	}
	for stid, st := range in.Storage {
		if !st.CanDischarge() {
			continue
		}
		for lid, load := range in.Loads {
			limit := dischargeFlowLimit(st, load)
			if limit <= 0 {
				continue
			}
			if flow.StorageToLoad[stid] == nil {
				flow.StorageToLoad[stid] = make(map[string]FlowLimit)
			}
			flow.StorageToLoad[stid][lid] = FlowLimit{MaxW: limit, Bidirectional: st.Kind == model.StorageBattery}
		}
	}
	net := in.NetBalanceW()
	if net > 0 {
		flow.GridExportW = net
	} else {
		flow.GridImportW = -net
	}
	return flow
}

// chargeFlowLimit bounds a source-to-storage charging path. The base bound is
// min(0.8 x source power, 0.1C, voltage x 10), then scaled by SOC band,
// driving mode and a thermal derate above 40 degC.
func chargeFlowLimit(src model.Source, st model.Storage, mode model.DrivingMode) float64 {
	limit := math.Min(0.8*src.PowerW, math.Min(0.1*st.CapacityWh, src.Voltage*10))
	switch {
	case st.SoC > 80:
		limit *= 0.5
	case st.SoC < 20:
		limit *= 1.2
	}
	switch mode {
	case model.ModeEco:
		limit *= 1.1
	case model.ModeSport:
		limit *= 0.8
	}
	if t := math.Max(src.TemperatureC, st.TemperatureC); t > 40 {
		derate := 1 - 0.02*(t-40)
		if derate < 0 {
			derate = 0
		}
		limit *= derate
	}
	return limit
}

// dischargeFlowLimit bounds a storage-to-load discharge path. The base bound
// is min(0.2 x stored energy per hour, voltage x 20, load demand), boosted for
// high-priority loads, reduced for low-priority ones and at low SOC. The
// result never plans a discharge below SOC 10.
func dischargeFlowLimit(st model.Storage, load model.Load) float64 {
	limit := math.Min(0.2*st.StoredEnergyWh(), math.Min(st.Voltage*20, load.PowerW))
	if load.Priority >= 8 {
		limit *= 1.2
	} else if load.Priority <= 3 {
		limit *= 0.6
	}
	if st.SoC < 30 {
		limit *= 0.7
	}
	// One hour at this power must keep the unit at or above SOC 10.
	if floor := (st.SoC - 10) / 100 * st.CapacityWh; limit > floor {
		limit = floor
	}
	if limit < 0 {
		limit = 0
	}
	return limit
}
