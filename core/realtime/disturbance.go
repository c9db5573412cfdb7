package realtime

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// DisturbanceType classifies an abnormal transient.
type DisturbanceType string

const (
	DisturbancePowerSpike     DisturbanceType = "power_spike"
	DisturbanceLoadSurge      DisturbanceType = "load_surge"
	DisturbanceEfficiencyDrop DisturbanceType = "efficiency_drop"
	DisturbanceTempRise       DisturbanceType = "temperature_rise"
	DisturbanceVoltageFluct   DisturbanceType = "voltage_fluctuation"
)

// Severity grades a disturbance by how far it exceeds its threshold.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Disturbance is one detected abnormal transient. It is generated and
// consumed within a single correction cycle.
type Disturbance struct {
	ID                string
	Type              DisturbanceType
	Severity          Severity
	AffectedComponent string
	Confidence        float64 // 0..1
	EstimatedDuration time.Duration
	ObservedChange    float64
	Time              time.Time
}

// detection thresholds and lookback windows per disturbance type.
type detectionRule struct {
	threshold float64 // relative, except temperature (absolute degC)
	absolute  bool
	lookback  time.Duration
}

var detectionRules = map[DisturbanceType]detectionRule{
	DisturbancePowerSpike:     {threshold: 0.20, lookback: 100 * time.Millisecond},
	DisturbanceLoadSurge:      {threshold: 0.30, lookback: 100 * time.Millisecond},
	DisturbanceEfficiencyDrop: {threshold: 0.10, lookback: 200 * time.Millisecond},
	DisturbanceTempRise:       {threshold: 5, absolute: true, lookback: time.Second},
	DisturbanceVoltageFluct:   {threshold: 0.15, lookback: 100 * time.Millisecond},
}

// severityFor grades the observed/threshold ratio.
func severityFor(ratio float64) Severity {
	switch {
	case ratio < 1.5:
		return SeverityLow
	case ratio < 2.5:
		return SeverityMedium
	case ratio < 4.0:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

// detect compares the latest reading against the oldest one inside each
// rule's lookback window and emits a disturbance per offending component.
func (c *Controller) detect() []Disturbance {
	latest, ok := c.ring.latest()
	if !ok {
		return nil
	}
	var found []Disturbance
	check := func(dt DisturbanceType, latestVals, oldVals map[string]float64, rising bool) {
		rule := detectionRules[dt]
		for id, now := range latestVals {
			was, ok := oldVals[id]
			if !ok {
				continue
			}
			var change float64
			if rule.absolute {
				change = now - was
			} else if was != 0 {
				change = (now - was) / math.Abs(was)
			}
			if !rising {
				change = -change
			}
			if change <= rule.threshold {
				continue
			}
			ratio := change / rule.threshold
			found = append(found, Disturbance{
				ID:                uuid.NewString(),
				Type:              dt,
				Severity:          severityFor(ratio),
				AffectedComponent: id,
				Confidence:        math.Min(ratio, 1),
				EstimatedDuration: rule.lookback * 5,
				ObservedChange:    change,
				Time:              latest.Time,
			})
		}
	}

	if old, ok := c.ring.oldestWithin(detectionRules[DisturbancePowerSpike].lookback); ok {
		check(DisturbancePowerSpike, latest.SourcePowerW, old.SourcePowerW, true)
		check(DisturbanceVoltageFluct, latest.Voltage, old.Voltage, true)
	}
	if old, ok := c.ring.oldestWithin(detectionRules[DisturbanceLoadSurge].lookback); ok {
		check(DisturbanceLoadSurge, latest.LoadPowerW, old.LoadPowerW, true)
	}
	if old, ok := c.ring.oldestWithin(detectionRules[DisturbanceEfficiencyDrop].lookback); ok {
		check(DisturbanceEfficiencyDrop, latest.Efficiency, old.Efficiency, false)
	}
	if old, ok := c.ring.oldestWithin(detectionRules[DisturbanceTempRise].lookback); ok {
		check(DisturbanceTempRise, latest.TemperatureC, old.TemperatureC, true)
	}
	return found
}
