package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/controller"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/metrics"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/optimization"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/scheduler"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/strategy"
)

// Config is the full service configuration. Every section carries its own
// SetDefaults and Validate; a section that fails validation aborts startup.
type Config struct {
	Controller   controller.Config   `json:"controller"`
	Strategy     strategy.Config     `json:"strategy"`
	Scheduler    scheduler.Config    `json:"scheduler"`
	Optimization optimization.Config `json:"optimization"`
	Metrics      metrics.Config      `json:"metrics"`
	Vehicle      VehicleBusConfig    `json:"vehicle"`
	API          APIConfig           `json:"api"`
	Simulator    SimulatorConfig     `json:"simulator"`
}

// Load reads a JSON or YAML file, applies SCEV_ environment overrides and
// validates every section.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides, SCEV_CONTROLLER__STRATEGY=...
	if err := k.Load(env.Provider("SCEV_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "scev_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Finalize applies defaults and validates every section.
func (c *Config) Finalize() error {
	c.Controller.SetDefaults()
	c.Strategy.SetDefaults()
	c.Scheduler.SetDefaults()
	c.Optimization.SetDefaults()
	c.Vehicle.SetDefaults()
	c.Simulator.SetDefaults()

	if err := c.Controller.Validate(); err != nil {
		return fmt.Errorf("controller: %w", err)
	}
	if err := c.Scheduler.Validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if err := c.Optimization.Validate(); err != nil {
		return fmt.Errorf("optimization: %w", err)
	}
	if err := c.Vehicle.Validate(); err != nil {
		return fmt.Errorf("vehicle: %w", err)
	}
	return nil
}
