package model

import "time"

// OperatingState is the controller's global mode.
type OperatingState string

const (
	StateStartup      OperatingState = "startup"
	StateNormal       OperatingState = "normal"
	StateOptimization OperatingState = "optimization"
	StateFault        OperatingState = "fault"
	StateShutdown     OperatingState = "shutdown"
)

func (s OperatingState) String() string { return string(s) }

// EnergyBalance classifies the net generation/consumption ratio.
type EnergyBalance string

const (
	BalanceSurplus  EnergyBalance = "surplus"
	BalanceBalanced EnergyBalance = "balanced"
	BalanceDeficit  EnergyBalance = "deficit"
	BalanceCritical EnergyBalance = "critical"
)

func (b EnergyBalance) String() string { return string(b) }

// SourceMode selects the operating point of a harvesting source.
type SourceMode string

const (
	SourceModeNormal        SourceMode = "normal"
	SourceModeMaxEfficiency SourceMode = "max_efficiency"
	SourceModeMaxPower      SourceMode = "max_power"
	SourceModeDisabled      SourceMode = "disabled"
)

// StorageMode selects the operating point of a storage unit.
type StorageMode string

const (
	StorageModeCharge    StorageMode = "charge"
	StorageModeDischarge StorageMode = "discharge"
	StorageModeStandby   StorageMode = "standby"
)

// SourceControl is the per-source command emitted each cycle.
type SourceControl struct {
	PowerSetpointW   float64
	VoltageSetpoint  float64
	EnableHarvesting bool
	Mode             SourceMode
}

// StorageControl is the per-storage command emitted each cycle. PowerSetpointW
// is signed: positive charges the unit, negative discharges it.
type StorageControl struct {
	PowerSetpointW float64
	CurrentLimitA  float64
	VoltageLimitV  float64
	Mode           StorageMode
}

// LoadControl is the per-load command emitted each cycle.
type LoadControl struct {
	AllocatedPowerW float64
	EnableLoad      bool
}

// VehicleCommands is the fixed vocabulary exchanged with the vehicle bus.
type VehicleCommands struct {
	EnergyShareRequestW      float64 // signed watts
	RegenBrakingLevel        float64 // 0..100 percent
	ThermalManagementRequest bool
	ChargingEnable           bool
	ChargingPowerW           float64
}

// SystemStatus aggregates the controller's view of the system for downstream
// consumers.
type SystemStatus struct {
	OperatingState    OperatingState
	EnergyBalance     EnergyBalance
	TotalGenerationW  float64
	TotalConsumptionW float64
	NetBalanceW       float64
	OverallHealth     float64
	ComponentHealth   map[string]float64
}

// Outputs is the full decision set produced by one control cycle.
type Outputs struct {
	Timestamp        time.Time
	SourceControls   map[string]SourceControl
	StorageControls  map[string]StorageControl
	LoadControls     map[string]LoadControl
	Vehicle          VehicleCommands
	Status           SystemStatus
	Recommendations  []string
	Warnings         []string
	NextOptimization time.Time
}

// NewOutputs returns an Outputs with all control maps allocated.
func NewOutputs(ts time.Time) Outputs {
	return Outputs{
		Timestamp:       ts,
		SourceControls:  make(map[string]SourceControl),
		StorageControls: make(map[string]StorageControl),
		LoadControls:    make(map[string]LoadControl),
		Status:          SystemStatus{ComponentHealth: make(map[string]float64)},
	}
}

// Clone returns a deep copy so a pipeline stage can overlay fields without
// aliasing the previous stage's maps.
func (o Outputs) Clone() Outputs {
	c := o
	c.SourceControls = make(map[string]SourceControl, len(o.SourceControls))
	for k, v := range o.SourceControls {
		c.SourceControls[k] = v
	}
	c.StorageControls = make(map[string]StorageControl, len(o.StorageControls))
	for k, v := range o.StorageControls {
		c.StorageControls[k] = v
	}
	c.LoadControls = make(map[string]LoadControl, len(o.LoadControls))
	for k, v := range o.LoadControls {
		c.LoadControls[k] = v
	}
	c.Status.ComponentHealth = make(map[string]float64, len(o.Status.ComponentHealth))
	for k, v := range o.Status.ComponentHealth {
		c.Status.ComponentHealth[k] = v
	}
	c.Recommendations = append([]string(nil), o.Recommendations...)
	c.Warnings = append([]string(nil), o.Warnings...)
	return c
}

// TotalSourceSetpointW sums enabled source setpoints.
func (o Outputs) TotalSourceSetpointW() float64 {
	var total float64
	for _, sc := range o.SourceControls {
		if sc.EnableHarvesting {
			total += sc.PowerSetpointW
		}
	}
	return total
}

// TotalLoadAllocationW sums allocations of enabled loads.
func (o Outputs) TotalLoadAllocationW() float64 {
	var total float64
	for _, lc := range o.LoadControls {
		if lc.EnableLoad {
			total += lc.AllocatedPowerW
		}
	}
	return total
}

// TotalStorageChargeW sums signed storage setpoints (charge positive).
func (o Outputs) TotalStorageChargeW() float64 {
	var total float64
	for _, sc := range o.StorageControls {
		total += sc.PowerSetpointW
	}
	return total
}
