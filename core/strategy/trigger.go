package strategy

import (
	"math"
	"time"
)

// TriggerType identifies one adaptation trigger family.
type TriggerType string

const (
	TriggerLoadChange        TriggerType = "load_change"
	TriggerEfficiencyDrop    TriggerType = "efficiency_drop"
	TriggerTemperatureChange TriggerType = "temperature_change"
	TriggerDrivingPattern    TriggerType = "driving_pattern"
)

// smoothing factor for the exponentially weighted observation.
const smoothingAlpha = 0.3

// Trigger is a threshold-crossing detector. It compares a smoothed current
// value against a stored baseline; once fired it stays sticky until the next
// successful adaptation resets it.
type Trigger struct {
	Type      TriggerType
	Threshold float64
	Absolute  bool // compare absolute delta instead of relative
	Baseline  float64
	Smoothed  float64
	Triggered bool
	Timestamp time.Time

	initialized bool
}

// Observe folds a new reading into the smoothed value and fires the trigger
// when the delta against the baseline exceeds the threshold.
func (t *Trigger) Observe(value float64, now time.Time) {
	if !t.initialized {
		t.Baseline = value
		t.Smoothed = value
		t.initialized = true
		return
	}
	t.Smoothed = (1-smoothingAlpha)*t.Smoothed + smoothingAlpha*value
	delta := math.Abs(t.Smoothed - t.Baseline)
	if !t.Absolute {
		if t.Baseline == 0 {
			return
		}
		delta /= math.Abs(t.Baseline)
	}
	if delta > t.Threshold && !t.Triggered {
		t.Triggered = true
		t.Timestamp = now
	}
}

// Reset clears the trigger and re-bases it on the current smoothed value.
// Called after each successful adaptation.
func (t *Trigger) Reset() {
	t.Baseline = t.Smoothed
	t.Triggered = false
}

// defaultTriggers returns the four detectors with their fixed thresholds:
// load 20 percent, efficiency 10 percent, temperature 10 degC absolute,
// driving-pattern score 30 percent.
func defaultTriggers() map[TriggerType]*Trigger {
	return map[TriggerType]*Trigger{
		TriggerLoadChange:        {Type: TriggerLoadChange, Threshold: 0.20},
		TriggerEfficiencyDrop:    {Type: TriggerEfficiencyDrop, Threshold: 0.10},
		TriggerTemperatureChange: {Type: TriggerTemperatureChange, Threshold: 10, Absolute: true},
		TriggerDrivingPattern:    {Type: TriggerDrivingPattern, Threshold: 0.30},
	}
}
