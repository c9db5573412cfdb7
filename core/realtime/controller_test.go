package realtime

import (
	"testing"
	"time"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/model"
)

func rtInputs(sourcePowerW float64) model.Inputs {
	return model.Inputs{
		Timestamp: time.Now(),
		Sources: map[string]model.Source{
			"em1": {ID: "em1", PowerW: sourcePowerW, Voltage: 12, Efficiency: 0.9, TemperatureC: 35, Status: model.StatusActive},
		},
		Storage: map[string]model.Storage{},
		Loads: map[string]model.Load{
			"ecu": {ID: "ecu", Kind: model.LoadCritical, PowerW: 100, Priority: 10, Flexibility: 0.3},
		},
	}
}

func baseOutputs() model.Outputs {
	out := model.NewOutputs(time.Now())
	out.SourceControls["em1"] = model.SourceControl{PowerSetpointW: 100, EnableHarvesting: true, Mode: model.SourceModeNormal}
	out.LoadControls["ecu"] = model.LoadControl{AllocatedPowerW: 100, EnableLoad: true}
	return out
}

func TestCorrectionExpiry(t *testing.T) {
	c := New(nil, nil)
	base := time.Unix(1000, 0)
	now := base
	c.SetClock(func() time.Time { return now })

	c.Inject(Correction{
		ID: "c1", Type: CorrectionPowerAdjustment, Target: "em1", TargetKind: "source",
		Priority: 5, Duration: 500 * time.Millisecond, Created: base,
	})

	now = base.Add(100 * time.Millisecond)
	if got := c.ActiveCorrections(); len(got) != 1 {
		t.Fatalf("correction must be active at +100ms, got %d", len(got))
	}
	now = base.Add(600 * time.Millisecond)
	if got := c.ActiveCorrections(); len(got) != 0 {
		t.Fatalf("correction must be purged at +600ms, got %d", len(got))
	}
}

func TestExpiryIndependentOfSamples(t *testing.T) {
	c := New(nil, nil)
	base := time.Unix(2000, 0)
	now := base
	c.SetClock(func() time.Time { return now })
	c.Inject(Correction{
		ID: "c1", Type: CorrectionPowerAdjustment, Target: "em1", TargetKind: "source",
		Priority: 5, Duration: 50 * time.Millisecond, Created: base,
	})
	// Only the monitoring tick runs; no pipeline sample arrives.
	now = base.Add(time.Second)
	c.Observe(rtInputs(100))
	c.mu.Lock()
	n := len(c.active)
	c.mu.Unlock()
	if n != 0 {
		t.Fatalf("expired correction must be purged by the monitoring tick")
	}
}

func TestPowerSpikeDetection(t *testing.T) {
	c := New(nil, nil)
	base := time.Unix(3000, 0)
	now := base
	c.SetClock(func() time.Time { return now })

	c.Observe(rtInputs(100))
	now = base.Add(50 * time.Millisecond)
	c.Observe(rtInputs(150)) // +50% in 50ms, above the 20%/100ms threshold

	found := c.detect()
	var spike *Disturbance
	for i := range found {
		if found[i].Type == DisturbancePowerSpike {
			spike = &found[i]
		}
	}
	if spike == nil {
		t.Fatalf("expected a power spike disturbance, got %v", found)
	}
	// ratio = 0.5/0.2 = 2.5 -> high
	if spike.Severity != SeverityHigh {
		t.Errorf("expected high severity, got %s", spike.Severity)
	}
	if spike.Confidence != 1 {
		t.Errorf("confidence should clamp at 1, got %.2f", spike.Confidence)
	}
}

func TestNoDetectionOnStableSignal(t *testing.T) {
	c := New(nil, nil)
	base := time.Unix(4000, 0)
	now := base
	c.SetClock(func() time.Time { return now })
	for i := 0; i < 20; i++ {
		now = base.Add(time.Duration(i) * 10 * time.Millisecond)
		c.Observe(rtInputs(100))
	}
	if found := c.detect(); len(found) != 0 {
		t.Fatalf("stable signal must not trigger detection: %v", found)
	}
}

func TestApplyCorrectionsReducesSpikedSource(t *testing.T) {
	c := New(nil, nil)
	base := time.Unix(5000, 0)
	now := base
	c.SetClock(func() time.Time { return now })

	c.Observe(rtInputs(100))
	now = base.Add(50 * time.Millisecond)
	in := rtInputs(150)
	c.Observe(in)

	out := c.ApplyCorrections(in, baseOutputs())
	// High severity -> 30% reduction of the 100W setpoint.
	if got := out.SourceControls["em1"].PowerSetpointW; got != 70 {
		t.Errorf("expected spiked source reduced to 70W, got %.1f", got)
	}
}

func TestHigherPriorityWinsPerTarget(t *testing.T) {
	c := New(nil, nil)
	base := time.Unix(6000, 0)
	now := base
	c.SetClock(func() time.Time { return now })
	c.Observe(rtInputs(100))

	c.Inject(Correction{
		ID: "low", Type: CorrectionPowerAdjustment, Target: "em1", TargetKind: "source",
		CorrectedValue: 90, Priority: 3, Duration: time.Second, Created: now,
	})
	c.Inject(Correction{
		ID: "high", Type: CorrectionEmergencyResponse, Target: "em1", TargetKind: "source",
		CorrectedValue: 40, Priority: 9, Duration: time.Second, Created: now,
	})

	out := c.ApplyCorrections(rtInputs(100), baseOutputs())
	if got := out.SourceControls["em1"].PowerSetpointW; got != 40 {
		t.Errorf("higher priority correction must win, got %.1f", got)
	}
}

func TestLoadSurgeShedCappedByFlexibility(t *testing.T) {
	c := New(nil, nil)
	in := rtInputs(100)
	load := in.Loads["ecu"]
	load.Flexibility = 0.1 // allowance 10W, below the 40% shed
	in.Loads["ecu"] = load

	d := Disturbance{
		Type: DisturbanceLoadSurge, Severity: SeverityCritical,
		AffectedComponent: "ecu", EstimatedDuration: time.Second,
	}
	corrs := c.corrections(d, in, baseOutputs(), time.Unix(7000, 0))
	if len(corrs) != 1 {
		t.Fatalf("expected one shedding correction")
	}
	if got := corrs[0].CorrectedValue; got != 90 {
		t.Errorf("shed must cap at the flexibility allowance: got %.1f", got)
	}
}

func TestLoadSurgeIgnoredBelowHighSeverity(t *testing.T) {
	c := New(nil, nil)
	d := Disturbance{Type: DisturbanceLoadSurge, Severity: SeverityMedium, AffectedComponent: "ecu"}
	if corrs := c.corrections(d, rtInputs(100), baseOutputs(), time.Now()); len(corrs) != 0 {
		t.Errorf("medium load surge must not shed")
	}
}

func TestVoltageFluctuationIsFlaggedNotActuated(t *testing.T) {
	c := New(nil, nil)
	base := time.Unix(8000, 0)
	c.SetClock(func() time.Time { return base })
	c.Observe(rtInputs(100))
	c.Inject(Correction{
		ID: "v1", Type: CorrectionVoltageRegulation, Target: "em1", TargetKind: "source",
		OriginalValue: 100, CorrectedValue: 100, Priority: 2, Duration: time.Second,
		Created: base, Note: "voltage regulation not implemented for em1",
	})
	out := c.ApplyCorrections(rtInputs(100), baseOutputs())
	if got := out.SourceControls["em1"].PowerSetpointW; got != 100 {
		t.Errorf("voltage regulation must have no numeric effect, got %.1f", got)
	}
	if len(out.Warnings) == 0 {
		t.Errorf("voltage regulation gap must surface as a warning")
	}
}

func TestRingBufferBounded(t *testing.T) {
	c := New(nil, nil)
	base := time.Unix(9000, 0)
	now := base
	c.SetClock(func() time.Time { return now })
	for i := 0; i < ringCapacity+200; i++ {
		now = now.Add(10 * time.Millisecond)
		c.Observe(rtInputs(100))
	}
	if n := c.BufferLen(); n != ringCapacity {
		t.Errorf("ring must cap at %d samples, got %d", ringCapacity, n)
	}
}
