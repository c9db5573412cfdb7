package config

import (
	"fmt"
	"time"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/infra/mqtt"
)

// VehicleBusConfig wires the MQTT vehicle bus. Disabled means the integrator
// runs without delivery, which is the right mode for bench runs.
type VehicleBusConfig struct {
	Enabled       bool        `json:"enabled"`
	MQTT          mqtt.Config `json:"mqtt"`
	StatusMaxAgeS float64     `json:"status_max_age_s"`
	SendTimeoutMS int         `json:"send_timeout_ms"`
}

// SetDefaults applies sane defaults.
func (c *VehicleBusConfig) SetDefaults() {
	if c.StatusMaxAgeS <= 0 {
		c.StatusMaxAgeS = 2
	}
	if c.SendTimeoutMS <= 0 {
		c.SendTimeoutMS = 100
	}
}

// Validate checks mandatory fields.
func (c VehicleBusConfig) Validate() error {
	if c.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt broker is required when the bus is enabled")
	}
	return nil
}

// StatusMaxAge returns the snapshot freshness window.
func (c VehicleBusConfig) StatusMaxAge() time.Duration {
	return time.Duration(c.StatusMaxAgeS * float64(time.Second))
}

// SendTimeout bounds one command delivery.
func (c VehicleBusConfig) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutMS) * time.Millisecond
}

// APIConfig exposes the read-only status API. An empty listen address
// disables the server; an empty token disables authentication.
type APIConfig struct {
	ListenAddr string `json:"listen_addr"`
	Token      string `json:"token"`
}

// SimulatorConfig selects the synthetic input profile. An empty path selects
// the built-in city-drive profile.
type SimulatorConfig struct {
	ProfilePath string `json:"profile_path"`
}

// SetDefaults is a no-op; present for section symmetry.
func (c *SimulatorConfig) SetDefaults() {}
