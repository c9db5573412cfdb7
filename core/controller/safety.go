package controller

import (
	"fmt"
	"sort"
	"time"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/model"
)

// minSystemHealth is the aggregate health below which the safety gate trips.
const minSystemHealth = 0.3

// safetyViolations evaluates the hard limits against one sample. The result
// is sorted so repeated calls with the same sample produce identical output.
func safetyViolations(in model.Inputs, limits SafetyLimits, overall float64) []string {
	var violations []string

	for _, id := range sourceIDs(in) {
		src := in.Sources[id]
		if src.TemperatureC > limits.MaxTemperatureC {
			violations = append(violations, fmt.Sprintf(
				"source %s temperature %.1fC exceeds limit %.1fC",
				id, src.TemperatureC, limits.MaxTemperatureC))
		}
	}
	for _, id := range storageIDs(in) {
		st := in.Storage[id]
		if st.TemperatureC > limits.MaxTemperatureC {
			violations = append(violations, fmt.Sprintf(
				"storage %s temperature %.1fC exceeds limit %.1fC",
				id, st.TemperatureC, limits.MaxTemperatureC))
		}
		if st.Kind == model.StorageBattery &&
			(st.SoC < limits.MinBatterySoC || st.SoC > limits.MaxBatterySoC) {
			violations = append(violations, fmt.Sprintf(
				"battery %s soc %.1f%% outside safe band [%.0f,%.0f]",
				id, st.SoC, limits.MinBatterySoC, limits.MaxBatterySoC))
		}
	}
	if total := in.TotalSourcePowerW(); total > limits.MaxPowerTransferW {
		violations = append(violations, fmt.Sprintf(
			"total source power %.1fW exceeds max transfer %.1fW",
			total, limits.MaxPowerTransferW))
	}
	if overall < minSystemHealth {
		violations = append(violations, fmt.Sprintf(
			"system health %.2f below %.2f", overall, minSystemHealth))
	}
	return violations
}

// safeOutputs is the deterministic emergency shape: every source disabled,
// every storage unit in standby, only critical loads powered (from the
// vehicle bus) and thermal management requested.
func safeOutputs(in model.Inputs, now time.Time, health map[string]float64, overall float64, warnings []string) model.Outputs {
	out := model.NewOutputs(now)
	for id, src := range in.Sources {
		out.SourceControls[id] = model.SourceControl{
			VoltageSetpoint:  src.Voltage,
			EnableHarvesting: false,
			Mode:             model.SourceModeDisabled,
		}
	}
	for id, st := range in.Storage {
		out.StorageControls[id] = model.StorageControl{
			VoltageLimitV: st.Voltage,
			Mode:          model.StorageModeStandby,
		}
	}
	var criticalW float64
	for id, load := range in.Loads {
		if load.Kind == model.LoadCritical {
			out.LoadControls[id] = model.LoadControl{AllocatedPowerW: load.PowerW, EnableLoad: true}
			criticalW += load.PowerW
		} else {
			out.LoadControls[id] = model.LoadControl{}
		}
	}
	out.Vehicle = model.VehicleCommands{
		EnergyShareRequestW:      criticalW,
		ThermalManagementRequest: true,
	}
	out.Status = model.SystemStatus{
		OperatingState:    model.StateFault,
		EnergyBalance:     model.BalanceCritical,
		TotalGenerationW:  in.TotalSourcePowerW(),
		TotalConsumptionW: in.TotalLoadPowerW(),
		NetBalanceW:       in.NetBalanceW(),
		OverallHealth:     overall,
		ComponentHealth:   health,
	}
	out.Warnings = append(out.Warnings, warnings...)
	return out
}

// classifyBalance grades the generation/consumption ratio of one sample.
func classifyBalance(in model.Inputs) model.EnergyBalance {
	gen := in.TotalSourcePowerW()
	con := in.TotalLoadPowerW()
	if con <= 0 {
		if gen > 0 {
			return model.BalanceSurplus
		}
		return model.BalanceBalanced
	}
	switch ratio := gen / con; {
	case ratio < 0.5:
		return model.BalanceCritical
	case ratio < 0.8:
		return model.BalanceDeficit
	case ratio > 1.5:
		return model.BalanceSurplus
	default:
		return model.BalanceBalanced
	}
}

func sourceIDs(in model.Inputs) []string {
	ids := make([]string, 0, len(in.Sources))
	for id := range in.Sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func storageIDs(in model.Inputs) []string {
	ids := make([]string, 0, len(in.Storage))
	for id := range in.Storage {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
