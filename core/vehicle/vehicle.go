package vehicle

import (
	"context"
	"time"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/model"
)

// EnergyStatus is the snapshot the vehicle publishes on its bus. It is the
// vehicle's own view of the traction net, which may lag or disagree with the
// harvesting-side sample.
type EnergyStatus struct {
	MainBatterySoC    float64   `json:"main_battery_soc"`
	PowertrainDemandW float64   `json:"powertrain_demand_w"`
	AuxiliaryDemandW  float64   `json:"auxiliary_demand_w"`
	RegenPowerW       float64   `json:"regen_power_w"`
	AvailableShareW   float64   `json:"available_share_w"`
	Timestamp         time.Time `json:"timestamp"`
}

// DemandW is the total vehicle-side consumption reported by the snapshot.
func (s EnergyStatus) DemandW() float64 {
	return s.PowertrainDemandW + s.AuxiliaryDemandW
}

// Bus abstracts the transport that carries commands to the vehicle and
// status snapshots back. The MQTT adapter lives in infra/mqtt.
type Bus interface {
	// SendCommands delivers one command set. Implementations honor the
	// context deadline.
	SendCommands(ctx context.Context, cmds model.VehicleCommands) error
	// StatusUpdates returns the stream of vehicle snapshots. The channel
	// is closed by Close.
	StatusUpdates() <-chan EnergyStatus
	Close() error
}
