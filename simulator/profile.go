package simulator

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SourceProfile parameterizes one synthetic harvesting source. Power follows
// a sinusoid around BasePowerW plus bounded noise.
type SourceProfile struct {
	ID           string  `json:"id" yaml:"id"`
	Kind         string  `json:"kind" yaml:"kind"`
	BasePowerW   float64 `json:"base_power_w" yaml:"base_power_w"`
	AmplitudeW   float64 `json:"amplitude_w" yaml:"amplitude_w"`
	PeriodS      float64 `json:"period_s" yaml:"period_s"`
	Voltage      float64 `json:"voltage" yaml:"voltage"`
	Efficiency   float64 `json:"efficiency" yaml:"efficiency"`
	TemperatureC float64 `json:"temperature_c" yaml:"temperature_c"`
}

// StorageProfile parameterizes one synthetic storage unit.
type StorageProfile struct {
	ID           string  `json:"id" yaml:"id"`
	Kind         string  `json:"kind" yaml:"kind"`
	CapacityWh   float64 `json:"capacity_wh" yaml:"capacity_wh"`
	InitialSoC   float64 `json:"initial_soc" yaml:"initial_soc"`
	Voltage      float64 `json:"voltage" yaml:"voltage"`
	TemperatureC float64 `json:"temperature_c" yaml:"temperature_c"`
	Health       float64 `json:"health" yaml:"health"`
}

// LoadSpec parameterizes one synthetic consumer.
type LoadSpec struct {
	ID          string  `json:"id" yaml:"id"`
	Kind        string  `json:"kind" yaml:"kind"`
	PowerW      float64 `json:"power_w" yaml:"power_w"`
	VariationW  float64 `json:"variation_w" yaml:"variation_w"`
	Priority    int     `json:"priority" yaml:"priority"`
	Flexibility float64 `json:"flexibility" yaml:"flexibility"`
}

// VehicleProfile parameterizes the synthetic drive cycle.
type VehicleProfile struct {
	CruiseSpeedKmh    float64 `json:"cruise_speed_kmh" yaml:"cruise_speed_kmh"`
	MainBatterySoC    float64 `json:"main_battery_soc" yaml:"main_battery_soc"`
	PowertrainDemandW float64 `json:"powertrain_demand_w" yaml:"powertrain_demand_w"`
	AuxiliaryDemandW  float64 `json:"auxiliary_demand_w" yaml:"auxiliary_demand_w"`
	BrakingChance     float64 `json:"braking_chance" yaml:"braking_chance"`
	DrivingMode       string  `json:"driving_mode" yaml:"driving_mode"`
}

// EnvironmentProfile parameterizes ambient conditions.
type EnvironmentProfile struct {
	AmbientTempC  float64 `json:"ambient_temp_c" yaml:"ambient_temp_c"`
	Vibration     float64 `json:"vibration" yaml:"vibration"`
	RoadRoughness float64 `json:"road_roughness" yaml:"road_roughness"`
}

// Profile describes a complete synthetic scenario.
type Profile struct {
	Seed        int64              `json:"seed" yaml:"seed"`
	Sources     []SourceProfile    `json:"sources" yaml:"sources"`
	Storage     []StorageProfile   `json:"storage" yaml:"storage"`
	Loads       []LoadSpec         `json:"loads" yaml:"loads"`
	Vehicle     VehicleProfile     `json:"vehicle" yaml:"vehicle"`
	Environment EnvironmentProfile `json:"environment" yaml:"environment"`
}

// DefaultProfile returns a city drive with all four harvesting technologies.
func DefaultProfile() Profile {
	return Profile{
		Seed: 1,
		Sources: []SourceProfile{
			{ID: "em1", Kind: "electromagnetic", BasePowerW: 120, AmplitudeW: 40, PeriodS: 8, Voltage: 12, Efficiency: 0.85, TemperatureC: 45},
			{ID: "pz1", Kind: "piezoelectric", BasePowerW: 25, AmplitudeW: 15, PeriodS: 3, Voltage: 12, Efficiency: 0.6, TemperatureC: 40},
			{ID: "th1", Kind: "thermal", BasePowerW: 60, AmplitudeW: 10, PeriodS: 30, Voltage: 12, Efficiency: 0.7, TemperatureC: 65},
			{ID: "mc1", Kind: "mechanical", BasePowerW: 80, AmplitudeW: 50, PeriodS: 5, Voltage: 24, Efficiency: 0.75, TemperatureC: 50},
		},
		Storage: []StorageProfile{
			{ID: "bat1", Kind: "battery", CapacityWh: 2000, InitialSoC: 60, Voltage: 48, TemperatureC: 30, Health: 0.95},
			{ID: "sc1", Kind: "supercapacitor", CapacityWh: 50, InitialSoC: 50, Voltage: 48, TemperatureC: 30, Health: 0.99},
		},
		Loads: []LoadSpec{
			{ID: "ecu", Kind: "critical", PowerW: 150, Priority: 10, Flexibility: 0},
			{ID: "hvac", Kind: "essential", PowerW: 300, VariationW: 80, Priority: 6, Flexibility: 0.4},
			{ID: "infotainment", Kind: "optional", PowerW: 90, VariationW: 30, Priority: 3, Flexibility: 0.8},
		},
		Vehicle: VehicleProfile{
			CruiseSpeedKmh:    50,
			MainBatterySoC:    70,
			PowertrainDemandW: 8000,
			AuxiliaryDemandW:  450,
			BrakingChance:     0.1,
			DrivingMode:       "normal",
		},
		Environment: EnvironmentProfile{AmbientTempC: 22, Vibration: 0.4, RoadRoughness: 0.3},
	}
}

// LoadProfile loads a Profile from a JSON or YAML file.
func LoadProfile(path string) (Profile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	var p Profile
	switch ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &p)
	case ".json":
		err = json.Unmarshal(b, &p)
	default:
		return Profile{}, fmt.Errorf("unsupported profile format: %s", ext)
	}
	return p, err
}

// DecodeProfile reads from r to decode a Profile.
func DecodeProfile(r io.Reader, format string) (Profile, error) {
	var p Profile
	switch strings.ToLower(format) {
	case "yaml", "yml":
		dec := yaml.NewDecoder(r)
		if err := dec.Decode(&p); err != nil {
			return p, err
		}
	case "json":
		dec := json.NewDecoder(r)
		if err := dec.Decode(&p); err != nil {
			return p, err
		}
	default:
		return p, fmt.Errorf("unsupported format: %s", format)
	}
	return p, nil
}
