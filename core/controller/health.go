package controller

import (
	"sort"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/model"
)

// sourceHealth grades one source from temperature, efficiency and status.
// Each condition applies a penalty multiplier, so health never rises above 1.
func sourceHealth(s model.Source) float64 {
	h := 1.0
	switch {
	case s.TemperatureC > 80:
		h *= 0.4
	case s.TemperatureC > 65:
		h *= 0.7
	case s.TemperatureC > 50:
		h *= 0.9
	}
	if s.Efficiency < 0.5 {
		h *= 0.7
	} else if s.Efficiency < 0.7 {
		h *= 0.9
	}
	switch s.Status {
	case model.StatusFault:
		h *= 0.2
	case model.StatusStandby:
		h *= 0.9
	}
	return h
}

// storageHealth grades one storage unit. The reported health of the unit is
// the starting point; temperature, SOC extremes and status penalize it.
func storageHealth(s model.Storage) float64 {
	h := s.Health
	if h <= 0 || h > 1 {
		h = 1.0
	}
	switch {
	case s.TemperatureC > 60:
		h *= 0.6
	case s.TemperatureC > 45:
		h *= 0.85
	}
	if s.SoC < 10 || s.SoC > 95 {
		h *= 0.8
	}
	if s.Status == model.StatusFault {
		h *= 0.2
	}
	return h
}

// healthMap recomputes per-component health for one sample. Sources and
// storage units are tracked; loads carry no degradation signal.
func healthMap(in model.Inputs) map[string]float64 {
	health := make(map[string]float64, len(in.Sources)+len(in.Storage))
	for id, s := range in.Sources {
		health[id] = sourceHealth(s)
	}
	for id, s := range in.Storage {
		health[id] = storageHealth(s)
	}
	return health
}

// overallHealth is the arithmetic mean across all tracked components.
func overallHealth(health map[string]float64) float64 {
	if len(health) == 0 {
		return 1.0
	}
	// Sum in sorted key order: float addition is not associative, so map
	// iteration order would otherwise make the mean non-deterministic.
	ids := make([]string, 0, len(health))
	for id := range health {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var sum float64
	for _, id := range ids {
		sum += health[id]
	}
	return sum / float64(len(health))
}
