package controller

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/distribution"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/events"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/logger"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/model"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/optimization"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/realtime"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/strategy"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/internal/eventbus"
)

// ErrStopped is returned by Process after Shutdown until Restart is called.
var ErrStopped = errors.New("controller stopped")

// Integrator merges vehicle-side demand into the outputs and emits commands
// to the vehicle bus. Implemented by core/vehicle; nil skips the stage.
type Integrator interface {
	Integrate(in model.Inputs, out model.Outputs) model.Outputs
}

// Controller owns the operating-state machine and runs the control pipeline
// on every accepted sample. All entry points are safe for concurrent use.
type Controller struct {
	cfg Config

	dist       *distribution.Manager
	strat      *strategy.Selector
	opt        *optimization.Engine
	integrator Integrator
	rt         *realtime.Controller

	mu         stateMu
	log        logger.Logger
	bus        eventbus.EventBus
	clock      func() time.Time
}

// stateMu groups the mutable state behind one mutex so the pipeline and the
// background ticks never observe a half-updated cycle.
type stateMu struct {
	sync.Mutex
	state      model.OperatingState
	forced     bool
	lastSample time.Time
	health     map[string]float64
	overall    float64
	nextOpt    time.Time
	hist       history
}

// New builds a controller. The distribution manager, strategy selector and
// optimization engine are required; integrator and realtime controller may
// be nil, which skips their pipeline stages.
func New(cfg Config, dist *distribution.Manager, strat *strategy.Selector, opt *optimization.Engine, integrator Integrator, rt *realtime.Controller, log logger.Logger, bus eventbus.EventBus) (*Controller, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("controller config: %w", err)
	}
	if dist == nil || strat == nil {
		return nil, fmt.Errorf("controller: distribution manager and strategy selector are required")
	}
	if log == nil {
		log = logger.Nop{}
	}
	c := &Controller{
		cfg:        cfg,
		dist:       dist,
		strat:      strat,
		opt:        opt,
		integrator: integrator,
		rt:         rt,
		log:        log,
		bus:        bus,
		clock:      time.Now,
	}
	c.mu.state = model.StateStartup
	c.mu.overall = 1.0
	return c, nil
}

// SetClock overrides the time source. Intended for tests.
func (c *Controller) SetClock(clock func() time.Time) {
	c.mu.Lock()
	c.clock = clock
	c.mu.Unlock()
}

// State returns the current operating state.
func (c *Controller) State() model.OperatingState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mu.state
}

// Health returns the per-component health map of the last processed sample
// and the overall mean.
func (c *Controller) Health() (map[string]float64, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	health := make(map[string]float64, len(c.mu.health))
	for k, v := range c.mu.health {
		health[k] = v
	}
	return health, c.mu.overall
}

// History returns the retained cycle records, oldest first.
func (c *Controller) History() []CycleRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]CycleRecord(nil), c.mu.hist.cycles...)
}

// Transitions returns the retained state-transition records, oldest first.
func (c *Controller) Transitions() []TransitionRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]TransitionRecord(nil), c.mu.hist.transitions...)
}

// Process validates one sample, runs the safety gate and, if it passes, the
// full pipeline. Only validation failures surface as errors; everything else
// degrades to a safe or unchanged output so the loop always produces a
// decision.
func (c *Controller) Process(ctx context.Context, in model.Inputs) (model.Outputs, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mu.state == model.StateShutdown {
		return model.Outputs{}, ErrStopped
	}
	if err := c.validate(in); err != nil {
		return model.Outputs{}, err
	}
	c.mu.lastSample = in.Timestamp
	now := c.clock()

	c.mu.health = healthMap(in)
	c.mu.overall = overallHealth(c.mu.health)

	if c.mu.forced {
		out := safeOutputs(in, now, c.mu.health, c.mu.overall,
			[]string{"emergency stop active, awaiting restart"})
		c.mu.hist.recordCycle(CycleRecord{Time: now, Inputs: in, Outputs: out})
		return out, nil
	}

	if violations := safetyViolations(in, c.cfg.Safety, c.mu.overall); len(violations) > 0 {
		c.transitionLocked(model.StateFault, strings.Join(violations, "; "), now)
		if c.bus != nil {
			c.bus.Publish(events.SafetyEvent{Violations: violations, Time: now})
		}
		out := safeOutputs(in, now, c.mu.health, c.mu.overall, violations)
		c.mu.hist.recordCycle(CycleRecord{Time: now, Inputs: in, Outputs: out})
		return out, nil
	}
	if c.mu.state == model.StateStartup {
		c.transitionLocked(model.StateNormal, "first valid sample", now)
	} else if c.mu.state == model.StateFault {
		c.transitionLocked(model.StateNormal, "safety violations cleared", now)
	}

	out, perf, err := c.runPipeline(ctx, in, now)
	if err != nil {
		c.log.Errorf("pipeline stage failed: %v", err)
		out = safeOutputs(in, now, c.mu.health, c.mu.overall,
			[]string{fmt.Sprintf("stage failure: %v", err)})
		out.Status.OperatingState = c.mu.state
	}
	c.mu.hist.recordCycle(CycleRecord{Time: now, Inputs: in, Outputs: out, Performance: perf})
	return out, nil
}

// EmergencyStop forces the fault state immediately and latches it: cycles
// keep producing safe outputs, and a healthy sample does not clear the fault.
// Only Restart returns the controller to service.
func (c *Controller) EmergencyStop(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mu.forced = true
	c.transitionLocked(model.StateFault, "emergency stop: "+reason, c.clock())
}

// Shutdown moves to the terminal state. Process rejects samples until
// Restart is called.
func (c *Controller) Shutdown(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transitionLocked(model.StateShutdown, reason, c.clock())
}

// Restart re-enters startup from fault or shutdown. Calling it from any
// other state is a no-op, so it is safe to invoke repeatedly.
func (c *Controller) Restart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mu.state != model.StateFault && c.mu.state != model.StateShutdown {
		return
	}
	c.mu.forced = false
	c.transitionLocked(model.StateStartup, "restart", c.clock())
}

// validate rejects malformed or out-of-order samples before any state
// mutation.
func (c *Controller) validate(in model.Inputs) error {
	if !in.Timestamp.After(c.mu.lastSample) {
		return fmt.Errorf("%w: timestamp %s is not after last processed sample %s",
			model.ErrInvalidInput, in.Timestamp.Format(time.RFC3339Nano),
			c.mu.lastSample.Format(time.RFC3339Nano))
	}
	if len(in.Sources) == 0 || len(in.Storage) == 0 || len(in.Loads) == 0 {
		return fmt.Errorf("%w: sources, storage and loads must all be present", model.ErrInvalidInput)
	}
	for _, id := range sourceIDs(in) {
		if in.Sources[id].PowerW < 0 {
			return fmt.Errorf("%w: source %s power is negative", model.ErrInvalidInput, id)
		}
	}
	for _, id := range storageIDs(in) {
		if soc := in.Storage[id].SoC; soc < 0 || soc > 100 {
			return fmt.Errorf("%w: storage %s soc %.1f outside [0,100]", model.ErrInvalidInput, id, soc)
		}
	}
	return nil
}

// runPipeline executes distribution, strategy, optimization, vehicle
// integration and real-time correction in fixed order. A panic in any stage
// is recovered here and reported as a stage error.
func (c *Controller) runPipeline(ctx context.Context, in model.Inputs, now time.Time) (out model.Outputs, perf float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage panic: %v", r)
		}
	}()

	flow := c.dist.AnalyzeFlow(in)
	res := c.dist.Distribute(in, flow)
	out = c.outputsFrom(in, res, now)

	stratRes := c.strat.Execute(in, in.NetBalanceW())
	out = applyCorrection(out, stratRes, in)
	perf = stratRes.Performance

	if c.opt != nil && c.opt.Enabled() {
		if !now.Before(c.mu.nextOpt) {
			optimized, applied := c.opt.Optimize(ctx, in, out)
			if applied {
				c.transitionLocked(model.StateOptimization, "optimized allocation applied", now)
				c.transitionLocked(model.StateNormal, "optimization complete", now)
			}
			out = optimized
			c.mu.nextOpt = now.Add(c.opt.UpdateInterval())
		}
		out.NextOptimization = c.mu.nextOpt
	}
	if c.integrator != nil {
		out = c.integrator.Integrate(in, out)
	}
	if c.rt != nil {
		out = c.rt.ApplyCorrections(in, out)
	}
	out.Status.OperatingState = c.mu.state
	return out, perf, nil
}

// outputsFrom realizes the distribution decisions into per-component
// controls. Unserved demand is requested from the vehicle bus so the power
// books stay balanced.
func (c *Controller) outputsFrom(in model.Inputs, res distribution.Result, now time.Time) model.Outputs {
	out := model.NewOutputs(now)

	srcAlloc := make(map[string]float64, len(in.Sources))
	stCharge := make(map[string]float64, len(in.Storage))
	stDischarge := make(map[string]float64, len(in.Storage))
	var gridImportW float64
	for _, d := range res.Decisions {
		switch {
		case d.SourceID == distribution.GridSource:
			gridImportW += d.PowerW
		default:
			if _, ok := in.Sources[d.SourceID]; ok {
				srcAlloc[d.SourceID] += d.PowerW
			} else {
				stDischarge[d.SourceID] += d.PowerW
			}
		}
		if d.TargetType == distribution.TargetStorage {
			stCharge[d.TargetID] += d.PowerW
		}
	}

	for id, src := range in.Sources {
		active := src.Status == model.StatusActive
		mode := model.SourceModeNormal
		if !active {
			mode = model.SourceModeDisabled
		}
		out.SourceControls[id] = model.SourceControl{
			PowerSetpointW:   srcAlloc[id],
			VoltageSetpoint:  src.Voltage,
			EnableHarvesting: active,
			Mode:             mode,
		}
	}
	for id, st := range in.Storage {
		net := stCharge[id] - stDischarge[id]
		mode := model.StorageModeStandby
		switch {
		case net > 1e-9:
			mode = model.StorageModeCharge
		case net < -1e-9:
			mode = model.StorageModeDischarge
		}
		ctl := model.StorageControl{
			PowerSetpointW: net,
			VoltageLimitV:  st.Voltage,
			Mode:           mode,
		}
		if st.Voltage > 0 {
			ctl.CurrentLimitA = math.Abs(net) / st.Voltage
		}
		out.StorageControls[id] = ctl
	}
	for id := range in.Loads {
		alloc := res.LoadAllocationW(id)
		out.LoadControls[id] = model.LoadControl{AllocatedPowerW: alloc, EnableLoad: alloc > 0}
	}

	out.Vehicle.EnergyShareRequestW = gridImportW
	if in.Vehicle.Braking {
		out.Vehicle.RegenBrakingLevel = 80
	}

	balance := classifyBalance(in)
	if balance == model.BalanceSurplus && in.Vehicle.MainBatterySoC < 80 {
		if spare := in.TotalSourcePowerW() - sumValues(srcAlloc); spare > 0 {
			out.Vehicle.ChargingEnable = true
			out.Vehicle.ChargingPowerW = spare
		}
	}
	switch balance {
	case model.BalanceDeficit, model.BalanceCritical:
		out.Recommendations = append(out.Recommendations,
			"generation below demand: consider shedding optional loads")
	}

	out.Warnings = append(out.Warnings, res.Violations...)
	out.Status = model.SystemStatus{
		OperatingState:    c.mu.state,
		EnergyBalance:     balance,
		TotalGenerationW:  in.TotalSourcePowerW(),
		TotalConsumptionW: in.TotalLoadPowerW(),
		NetBalanceW:       in.NetBalanceW(),
		OverallHealth:     c.mu.overall,
		ComponentHealth:   c.mu.health,
	}
	return out
}

// applyCorrection folds the strategy's balance correction into the storage
// setpoints. A positive correction discharges storage harder; the vehicle
// share request moves by the same amount so the overall balance is
// preserved. The adjustment never plans a projected SOC outside [10,95].
func applyCorrection(out model.Outputs, res strategy.Result, in model.Inputs) model.Outputs {
	remaining := res.BalanceCorrectionW
	if remaining == 0 {
		return out
	}
	for _, id := range storageIDs(in) {
		if remaining == 0 {
			break
		}
		st := in.Storage[id]
		ctl := out.StorageControls[id]
		var step float64
		if remaining > 0 {
			// Discharge headroom down to the SOC floor.
			floor := -(st.SoC - 10) / 100 * st.CapacityWh
			if room := ctl.PowerSetpointW - floor; room > 0 {
				step = math.Min(remaining, room)
			}
		} else {
			// Charge headroom up to the SOC ceiling.
			ceil := (95 - st.SoC) / 100 * st.CapacityWh
			if room := ceil - ctl.PowerSetpointW; room > 0 {
				step = math.Max(remaining, -room)
			}
		}
		if step == 0 {
			continue
		}
		ctl.PowerSetpointW -= step
		switch {
		case ctl.PowerSetpointW > 1e-9:
			ctl.Mode = model.StorageModeCharge
		case ctl.PowerSetpointW < -1e-9:
			ctl.Mode = model.StorageModeDischarge
		default:
			ctl.Mode = model.StorageModeStandby
		}
		if st.Voltage > 0 {
			ctl.CurrentLimitA = math.Abs(ctl.PowerSetpointW) / st.Voltage
		}
		out.StorageControls[id] = ctl
		out.Vehicle.EnergyShareRequestW -= step
		remaining -= step
	}
	return out
}

// transitionLocked records and publishes one state change. Must be called
// with the state mutex held.
func (c *Controller) transitionLocked(to model.OperatingState, reason string, now time.Time) {
	from := c.mu.state
	if from == to {
		return
	}
	c.mu.state = to
	c.mu.hist.recordTransition(TransitionRecord{From: from, To: to, Reason: reason, Time: now})
	c.log.Infof("state %s -> %s: %s", from, to, reason)
	if c.bus != nil {
		c.bus.Publish(events.StateTransitionEvent{From: from, To: to, Reason: reason, Time: now})
	}
}

func sumValues(m map[string]float64) float64 {
	var total float64
	for _, v := range m {
		total += v
	}
	return total
}
