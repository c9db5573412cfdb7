package config

import (
	"os"
	"path/filepath"
	"testing"
)

//nolint:gocyclo
func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `controller:
  strategy: "load_balancing"
  safety:
    max_temperature_c: 75
    max_power_transfer_w: 8000
scheduler:
  update_frequency_hz: 20
  realtime_tick_ms: 5
optimization:
  enabled: true
  algorithm: "genetic"
  update_interval_s: 30
metrics:
  sinks:
    - type: "nop"
vehicle:
  enabled: true
  status_max_age_s: 1.5
  mqtt:
    broker: "tcp://localhost:1883"
    client_id: "scev"
    status_topic: "scev/vehicle/status"
simulator:
  profile_path: "profiles/city.yaml"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"strategy", cfg.Controller.Strategy, "load_balancing"},
		{"max_temperature_c", cfg.Controller.Safety.MaxTemperatureC, 75.0},
		{"max_power_transfer_w", cfg.Controller.Safety.MaxPowerTransferW, 8000.0},
		{"update_frequency_hz", cfg.Scheduler.UpdateFrequencyHz, 20.0},
		{"realtime_tick_ms", cfg.Scheduler.RealtimeTickMS, 5},
		{"optimization.enabled", cfg.Optimization.Enabled, true},
		{"optimization.algorithm", cfg.Optimization.Algorithm, "genetic"},
		{"update_interval_s", cfg.Optimization.UpdateIntervalS, 30.0},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Kind == "nop", true},
		{"vehicle.enabled", cfg.Vehicle.Enabled, true},
		{"status_max_age_s", cfg.Vehicle.StatusMaxAgeS, 1.5},
		{"broker", cfg.Vehicle.MQTT.Broker, "tcp://localhost:1883"},
		{"status_topic", cfg.Vehicle.MQTT.StatusTopic, "scev/vehicle/status"},
		{"profile_path", cfg.Simulator.ProfilePath, "profiles/city.yaml"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
	// Sections not present in the file fall back to defaults.
	if cfg.Controller.Safety.MinBatterySoC != 10 || cfg.Controller.Safety.MaxBatterySoC != 95 {
		t.Errorf("soc band defaults not applied: %+v", cfg.Controller.Safety)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := "controller:\n  strategy: \"priority_based\"\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SCEV_CONTROLLER__STRATEGY", "efficiency_optimized")
	t.Setenv("SCEV_SCHEDULER__UPDATE_FREQUENCY_HZ", "25")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Controller.Strategy != "efficiency_optimized" {
		t.Fatalf("env override ignored: %s", cfg.Controller.Strategy)
	}
	if cfg.Scheduler.UpdateFrequencyHz != 25 {
		t.Fatalf("numeric env override ignored: %v", cfg.Scheduler.UpdateFrequencyHz)
	}
}

func TestLoadRejectsInvalidSection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := "controller:\n  safety:\n    min_battery_soc: 90\n    max_battery_soc: 20\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestManagerReplaceKeepsOldOnError(t *testing.T) {
	var base Config
	if err := base.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	m := NewManager(base)

	bad := base
	bad.Controller.Safety.MinBatterySoC = 90
	bad.Controller.Safety.MaxBatterySoC = 20
	if err := m.Replace(bad); err == nil {
		t.Fatal("expected rejection")
	}
	if got := m.Current().Controller.Safety.MaxBatterySoC; got != 95 {
		t.Fatalf("active config clobbered: %v", got)
	}

	next := base
	next.Controller.Strategy = "load_balancing"
	if err := m.Replace(next); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if got := m.Current().Controller.Strategy; got != "load_balancing" {
		t.Fatalf("replace not applied: %s", got)
	}
}
