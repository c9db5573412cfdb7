package model

import (
	"errors"
	"time"
)

// DrivingMode is the vehicle drive profile reported by the vehicle bus.
type DrivingMode string

const (
	ModeEco    DrivingMode = "eco"
	ModeNormal DrivingMode = "normal"
	ModeSport  DrivingMode = "sport"
)

// VehicleState mirrors the vehicle-side quantities relevant to energy
// management.
type VehicleState struct {
	SpeedKmh          float64
	Acceleration      float64 // m/s^2, signed
	DrivingMode       DrivingMode
	MainBatterySoC    float64 // percent
	PowertrainDemandW float64
	AuxiliaryDemandW  float64
	RegenPowerW       float64
	Braking           bool
}

// Environment carries ambient conditions used by strategy selection.
type Environment struct {
	AmbientTempC  float64
	Vibration     float64 // normalized 0..1
	RoadRoughness float64 // normalized 0..1
}

// Predictions holds short-horizon forecasts supplied by the harvesting layer.
// Slices may be empty when no forecast is available.
type Predictions struct {
	LoadForecastW       []float64
	GenerationForecastW []float64
	HorizonSteps        int
	PatternScore        float64 // driving-pattern volatility, 0..1
}

// Inputs is one per-cycle snapshot of every source, storage unit and load,
// plus vehicle and environment context.
type Inputs struct {
	Timestamp   time.Time
	Sources     map[string]Source
	Storage     map[string]Storage
	Loads       map[string]Load
	Vehicle     VehicleState
	Environment Environment
	Predictions Predictions
}

// ErrInvalidInput is returned when a sample fails validation before any
// state mutation.
var ErrInvalidInput = errors.New("invalid input sample")

// TotalSourcePowerW sums raw generation across all sources.
func (in Inputs) TotalSourcePowerW() float64 {
	var total float64
	for _, s := range in.Sources {
		total += s.PowerW
	}
	return total
}

// TotalLoadPowerW sums demand across all loads.
func (in Inputs) TotalLoadPowerW() float64 {
	var total float64
	for _, l := range in.Loads {
		total += l.PowerW
	}
	return total
}

// NetBalanceW is generation minus demand for this sample.
func (in Inputs) NetBalanceW() float64 {
	return in.TotalSourcePowerW() - in.TotalLoadPowerW()
}

// AvgSourceEfficiency returns the mean efficiency over all sources, or zero
// when there are none.
func (in Inputs) AvgSourceEfficiency() float64 {
	if len(in.Sources) == 0 {
		return 0
	}
	var sum float64
	for _, s := range in.Sources {
		sum += s.Efficiency
	}
	return sum / float64(len(in.Sources))
}

// MaxComponentTempC returns the hottest source or storage temperature.
func (in Inputs) MaxComponentTempC() float64 {
	max := -273.15
	for _, s := range in.Sources {
		if s.TemperatureC > max {
			max = s.TemperatureC
		}
	}
	for _, st := range in.Storage {
		if st.TemperatureC > max {
			max = st.TemperatureC
		}
	}
	return max
}

// ComponentCount is the number of tracked sources, storage units and loads.
func (in Inputs) ComponentCount() int {
	return len(in.Sources) + len(in.Storage) + len(in.Loads)
}
