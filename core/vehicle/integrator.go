package vehicle

import (
	"context"
	"sync"
	"time"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/logger"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/model"
)

// DefaultSendTimeout bounds one command delivery on the bus.
const DefaultSendTimeout = 100 * time.Millisecond

// Integrator is the pipeline stage that reconciles the controller's vehicle
// commands against the vehicle's own reported state and pushes the result
// onto the bus. A stale snapshot disables discretionary charging; the
// energy-share request is left untouched so the power books stay balanced.
type Integrator struct {
	bus     Bus
	cache   *StatusCache
	log     logger.Logger
	timeout time.Duration

	mu       sync.Mutex
	lastSent model.VehicleCommands
	haveSent bool
}

// NewIntegrator builds the stage. bus may be nil, which turns the stage into
// a pure reconciliation step with no delivery.
func NewIntegrator(bus Bus, cache *StatusCache, timeout time.Duration, log logger.Logger) *Integrator {
	if cache == nil {
		cache = NewStatusCache(0)
	}
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	if log == nil {
		log = logger.Nop{}
	}
	return &Integrator{bus: bus, cache: cache, log: log, timeout: timeout}
}

// Cache exposes the status cache so the service can run Watch on it.
func (g *Integrator) Cache() *StatusCache { return g.cache }

// LastSent returns the last command set that was delivered successfully.
func (g *Integrator) LastSent() (model.VehicleCommands, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastSent, g.haveSent
}

// Integrate implements controller.Integrator.
func (g *Integrator) Integrate(in model.Inputs, out model.Outputs) model.Outputs {
	out = out.Clone()
	st, stale := g.cache.Snapshot()

	switch {
	case stale:
		// Without a trustworthy snapshot, discretionary charging is off.
		if out.Vehicle.ChargingEnable {
			out.Vehicle.ChargingEnable = false
			out.Vehicle.ChargingPowerW = 0
			out.Warnings = append(out.Warnings, "vehicle status stale, charging disabled")
		}
	default:
		if st.MainBatterySoC >= 95 && out.Vehicle.ChargingEnable {
			out.Vehicle.ChargingEnable = false
			out.Vehicle.ChargingPowerW = 0
		}
		if out.Vehicle.ChargingEnable && st.AvailableShareW > 0 && out.Vehicle.ChargingPowerW > st.AvailableShareW {
			out.Vehicle.ChargingPowerW = st.AvailableShareW
		}
		if !in.Vehicle.Braking && st.RegenPowerW <= 0 {
			out.Vehicle.RegenBrakingLevel = 0
		}
	}

	g.send(out.Vehicle, &out)
	return out
}

// send pushes the commands onto the bus. Delivery failure does not alter the
// decision: the vehicle keeps executing the last set it received, so we
// report that instead of pretending the new one landed.
func (g *Integrator) send(cmds model.VehicleCommands, out *model.Outputs) {
	if g.bus == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()
	if err := g.bus.SendCommands(ctx, cmds); err != nil {
		g.log.Warnf("vehicle bus send failed: %v", err)
		out.Warnings = append(out.Warnings, "vehicle bus unreachable, last commands remain in effect")
		return
	}
	g.mu.Lock()
	g.lastSent = cmds
	g.haveSent = true
	g.mu.Unlock()
}
