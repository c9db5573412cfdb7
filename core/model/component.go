package model

import (
	"fmt"
	"time"
)

// ComponentStatus describes the operational state of a source or storage unit.
type ComponentStatus string

const (
	StatusActive  ComponentStatus = "active"
	StatusStandby ComponentStatus = "standby"
	StatusFault   ComponentStatus = "fault"
)

func (s ComponentStatus) String() string { return string(s) }

// SourceKind identifies the harvesting technology of an energy source.
type SourceKind string

const (
	SourceElectromagnetic SourceKind = "electromagnetic"
	SourcePiezoelectric   SourceKind = "piezoelectric"
	SourceThermal         SourceKind = "thermal"
	SourceMechanical      SourceKind = "mechanical"
)

// Source is one energy-producing unit. The harvesting layer supplies a fresh
// snapshot every sample; the core never mutates it.
type Source struct {
	ID           string
	Kind         SourceKind
	PowerW       float64
	Voltage      float64
	Current      float64
	Efficiency   float64 // 0..1
	TemperatureC float64
	Status       ComponentStatus
}

// Validate checks that the source snapshot is physically sound.
func (s Source) Validate() error {
	if s.PowerW < 0 {
		return fmt.Errorf("source %s: power must be non-negative", s.ID)
	}
	if s.Efficiency < 0 || s.Efficiency > 1 {
		return fmt.Errorf("source %s: efficiency out of range", s.ID)
	}
	return nil
}

// StorageKind identifies the buffering technology of a storage unit.
type StorageKind string

const (
	StorageBattery        StorageKind = "battery"
	StorageSupercapacitor StorageKind = "supercapacitor"
	StorageFlywheel       StorageKind = "flywheel"
)

// Storage is one buffering unit. SOC and health evolve externally; the core
// only issues setpoints.
type Storage struct {
	ID           string
	Kind         StorageKind
	CapacityWh   float64
	SoC          float64 // percent, 0..100
	PowerW       float64 // signed: positive charging, negative discharging
	Voltage      float64
	TemperatureC float64
	Health       float64 // 0..1
	Status       ComponentStatus
}

// Validate checks that the storage snapshot is sound. CapacityWh must be
// positive and SoC must stay inside [0,100].
func (s Storage) Validate() error {
	if s.CapacityWh <= 0 {
		return fmt.Errorf("storage %s: capacity must be positive", s.ID)
	}
	if s.SoC < 0 || s.SoC > 100 {
		return fmt.Errorf("storage %s: soc %.1f outside [0,100]", s.ID, s.SoC)
	}
	return nil
}

// StoredEnergyWh returns the energy currently held by the unit.
func (s Storage) StoredEnergyWh() float64 {
	return s.CapacityWh * s.SoC / 100
}

// CanDischarge reports whether the unit may supply loads this cycle.
func (s Storage) CanDischarge() bool {
	return s.Status != StatusFault && s.SoC >= 15
}

// CanCharge reports whether the unit may accept charge this cycle.
func (s Storage) CanCharge() bool {
	return s.Status != StatusFault && s.SoC < 95
}

// LoadKind classifies a consumer by service criticality.
type LoadKind string

const (
	LoadCritical  LoadKind = "critical"
	LoadEssential LoadKind = "essential"
	LoadOptional  LoadKind = "optional"
)

// TimeWindow bounds the period during which a load requires service.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// Load is one power consumer.
type Load struct {
	ID          string
	Kind        LoadKind
	PowerW      float64
	Priority    int     // 1..10, higher is more important
	Flexibility float64 // 0..1 fraction of power that may be shed
	Window      *TimeWindow
}

// Validate checks load parameters.
func (l Load) Validate() error {
	if l.PowerW < 0 {
		return fmt.Errorf("load %s: power must be non-negative", l.ID)
	}
	if l.Priority < 1 || l.Priority > 10 {
		return fmt.Errorf("load %s: priority %d outside [1,10]", l.ID, l.Priority)
	}
	if l.Flexibility < 0 || l.Flexibility > 1 {
		return fmt.Errorf("load %s: flexibility out of range", l.ID)
	}
	return nil
}

// SheddableW returns the maximum power that may be shed from the load
// without violating its service requirement.
func (l Load) SheddableW() float64 {
	return l.PowerW * l.Flexibility
}
