package realtime

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/model"
)

// CorrectionType classifies a real-time override.
type CorrectionType string

const (
	CorrectionPowerAdjustment   CorrectionType = "power_adjustment"
	CorrectionLoadShedding      CorrectionType = "load_shedding"
	CorrectionEmergencyResponse CorrectionType = "emergency_response"
	CorrectionEfficiencyBoost   CorrectionType = "efficiency_boost"
	CorrectionVoltageRegulation CorrectionType = "voltage_regulation"
)

// Correction is a time-bounded override of a control setpoint. It expires
// once Duration has elapsed since Created, independent of sample arrival.
type Correction struct {
	ID             string
	Type           CorrectionType
	Target         string // component ID
	TargetKind     string // "source" or "load"
	OriginalValue  float64
	CorrectedValue float64
	Priority       int
	Duration       time.Duration
	Created        time.Time
	Note           string
}

// Expired reports whether the correction has outlived its duration.
func (c Correction) Expired(now time.Time) bool {
	return now.Sub(c.Created) >= c.Duration
}

// corrections maps disturbances to severity-scaled overrides.
func (c *Controller) corrections(d Disturbance, in model.Inputs, out model.Outputs, now time.Time) []Correction {
	switch d.Type {
	case DisturbancePowerSpike:
		sc, ok := out.SourceControls[d.AffectedComponent]
		if !ok {
			return nil
		}
		reduction := map[Severity]float64{
			SeverityLow: 0.10, SeverityMedium: 0.20, SeverityHigh: 0.30, SeverityCritical: 0.30,
		}[d.Severity]
		return []Correction{{
			ID:             uuid.NewString(),
			Type:           CorrectionPowerAdjustment,
			Target:         d.AffectedComponent,
			TargetKind:     "source",
			OriginalValue:  sc.PowerSetpointW,
			CorrectedValue: sc.PowerSetpointW * (1 - reduction),
			Priority:       5,
			Duration:       d.EstimatedDuration,
			Created:        now,
		}}
	case DisturbanceLoadSurge:
		if d.Severity != SeverityHigh && d.Severity != SeverityCritical {
			return nil
		}
		load, ok := in.Loads[d.AffectedComponent]
		if !ok {
			return nil
		}
		lc := out.LoadControls[d.AffectedComponent]
		shed := 0.20
		if d.Severity == SeverityCritical {
			shed = 0.40
		}
		reduction := load.PowerW * shed
		if allowance := load.SheddableW(); reduction > allowance {
			reduction = allowance
		}
		corrected := lc.AllocatedPowerW - reduction
		if corrected < 0 {
			corrected = 0
		}
		return []Correction{{
			ID:             uuid.NewString(),
			Type:           CorrectionLoadShedding,
			Target:         d.AffectedComponent,
			TargetKind:     "load",
			OriginalValue:  lc.AllocatedPowerW,
			CorrectedValue: corrected,
			Priority:       7,
			Duration:       d.EstimatedDuration,
			Created:        now,
		}}
	case DisturbanceEfficiencyDrop:
		sc, ok := out.SourceControls[d.AffectedComponent]
		if !ok {
			return nil
		}
		return []Correction{{
			ID:             uuid.NewString(),
			Type:           CorrectionEfficiencyBoost,
			Target:         d.AffectedComponent,
			TargetKind:     "source",
			OriginalValue:  sc.PowerSetpointW,
			CorrectedValue: sc.PowerSetpointW * 0.90,
			Priority:       4,
			Duration:       d.EstimatedDuration,
			Created:        now,
			Note:           "max_efficiency",
		}}
	case DisturbanceTempRise:
		sc, ok := out.SourceControls[d.AffectedComponent]
		if !ok {
			return nil
		}
		reduction := map[Severity]float64{
			SeverityLow: 0.15, SeverityMedium: 0.30, SeverityHigh: 0.50, SeverityCritical: 0.50,
		}[d.Severity]
		priority := 6
		if d.Severity == SeverityCritical {
			priority = 9
		}
		return []Correction{{
			ID:             uuid.NewString(),
			Type:           CorrectionEmergencyResponse,
			Target:         d.AffectedComponent,
			TargetKind:     "source",
			OriginalValue:  sc.PowerSetpointW,
			CorrectedValue: sc.PowerSetpointW * (1 - reduction),
			Priority:       priority,
			Duration:       d.EstimatedDuration,
			Created:        now,
		}}
	case DisturbanceVoltageFluct:
		sc, ok := out.SourceControls[d.AffectedComponent]
		if !ok {
			return nil
		}
		// Voltage regulation has no numeric actuation path yet; the record
		// is kept so operators can see the event.
		// TODO: wire a regulation magnitude once the DC bus model lands.
		return []Correction{{
			ID:             uuid.NewString(),
			Type:           CorrectionVoltageRegulation,
			Target:         d.AffectedComponent,
			TargetKind:     "source",
			OriginalValue:  sc.PowerSetpointW,
			CorrectedValue: sc.PowerSetpointW,
			Priority:       2,
			Duration:       d.EstimatedDuration,
			Created:        now,
			Note: fmt.Sprintf("voltage regulation not implemented for %s",
				d.AffectedComponent),
		}}
	}
	return nil
}
