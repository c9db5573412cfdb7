package controller

import "fmt"

// SafetyLimits are the hard bounds enforced by the safety gate on every
// valid sample.
type SafetyLimits struct {
	MaxTemperatureC   float64 `json:"max_temperature_c"`
	MaxPowerTransferW float64 `json:"max_power_transfer_w"`
	MinBatterySoC     float64 `json:"min_battery_soc"`
	MaxBatterySoC     float64 `json:"max_battery_soc"`
}

// Config controls the controller's validation and safety behavior.
type Config struct {
	Strategy string       `json:"strategy"`
	Safety   SafetyLimits `json:"safety"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Strategy == "" {
		c.Strategy = "priority_based"
	}
	if c.Safety.MaxTemperatureC == 0 {
		c.Safety.MaxTemperatureC = 80
	}
	if c.Safety.MaxPowerTransferW == 0 {
		c.Safety.MaxPowerTransferW = 10000
	}
	if c.Safety.MinBatterySoC == 0 {
		c.Safety.MinBatterySoC = 10
	}
	if c.Safety.MaxBatterySoC == 0 {
		c.Safety.MaxBatterySoC = 95
	}
}

// Validate rejects limits that could never pass a sample. Construction-time
// failures abort startup; there is no degraded mode for a bad configuration.
func (c Config) Validate() error {
	if c.Safety.MaxTemperatureC <= 0 {
		return fmt.Errorf("safety: max temperature must be positive")
	}
	if c.Safety.MaxPowerTransferW <= 0 {
		return fmt.Errorf("safety: max power transfer must be positive")
	}
	if c.Safety.MinBatterySoC < 0 || c.Safety.MaxBatterySoC > 100 ||
		c.Safety.MinBatterySoC >= c.Safety.MaxBatterySoC {
		return fmt.Errorf("safety: battery soc band [%.1f,%.1f] is invalid",
			c.Safety.MinBatterySoC, c.Safety.MaxBatterySoC)
	}
	return nil
}
