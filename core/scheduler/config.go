package scheduler

import (
	"fmt"
	"time"
)

// Config defines the loop cadences.
type Config struct {
	UpdateFrequencyHz float64 `json:"update_frequency_hz" yaml:"update_frequency_hz"`
	RealtimeTickMS    int     `json:"realtime_tick_ms" yaml:"realtime_tick_ms"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.UpdateFrequencyHz <= 0 {
		c.UpdateFrequencyHz = 10
	}
	if c.RealtimeTickMS <= 0 {
		c.RealtimeTickMS = 10
	}
}

// Validate rejects cadences that cannot drive a loop.
func (c Config) Validate() error {
	if c.UpdateFrequencyHz <= 0 {
		return fmt.Errorf("update_frequency_hz must be positive")
	}
	if c.RealtimeTickMS <= 0 {
		return fmt.Errorf("realtime_tick_ms must be positive")
	}
	return nil
}

// SamplePeriod converts the update frequency into a ticker period.
func (c Config) SamplePeriod() time.Duration {
	return time.Duration(float64(time.Second) / c.UpdateFrequencyHz)
}

// RealtimeTick returns the monitoring tick period.
func (c Config) RealtimeTick() time.Duration {
	return time.Duration(c.RealtimeTickMS) * time.Millisecond
}
