package distribution

import (
	"fmt"
	"sync"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/logger"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/model"
)

// Manager analyzes the energy flow graph and realizes it into allocation
// decisions under a selectable strategy. It is a pure function of the current
// sample: no state survives between cycles apart from the selected strategy
// name.
type Manager struct {
	mu         sync.Mutex
	strategies map[string]Strategy
	current    string
	log        logger.Logger
}

// NewManager creates a Manager with all built-in strategies registered.
// Unknown strategy names are rejected at construction time.
func NewManager(strategyName string, log logger.Logger) (*Manager, error) {
	if log == nil {
		log = logger.Nop{}
	}
	m := &Manager{
		strategies: map[string]Strategy{
			StrategyPriorityBased:       PriorityBased{},
			StrategyLoadBalancing:       LoadBalancing{},
			StrategyEfficiencyOptimized: EfficiencyOptimized{},
			StrategyCostMinimized:       CostMinimized{},
			StrategyReliabilityFocused:  ReliabilityFocused{},
		},
		log: log,
	}
	if err := m.SetStrategy(strategyName); err != nil {
		return nil, err
	}
	return m, nil
}

// SetStrategy switches the active strategy. "adaptive" re-evaluates the
// choice on every sample.
func (m *Manager) SetStrategy(name string) error {
	if name == "" {
		name = StrategyPriorityBased
	}
	if name != StrategyAdaptive {
		if _, ok := m.strategies[name]; !ok {
			return fmt.Errorf("unknown distribution strategy: %s", name)
		}
	}
	m.mu.Lock()
	m.current = name
	m.mu.Unlock()
	return nil
}

// CurrentStrategy returns the configured strategy name.
func (m *Manager) CurrentStrategy() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Distribute realizes the flow matrix into decisions using the configured
// strategy. When the strategy is adaptive, the effective strategy is chosen
// from the sample's energy balance and driving mode.
func (m *Manager) Distribute(in model.Inputs, flow FlowControl) Result {
	m.mu.Lock()
	name := m.current
	m.mu.Unlock()

	if name == StrategyAdaptive {
		name = m.selectAdaptive(in)
		m.log.Debugf("adaptive distribution selected %s", name)
	}
	res := m.strategies[name].Distribute(in, flow)
	if name != res.Strategy {
		res.Strategy = name
	}
	return res
}

// selectAdaptive picks the effective strategy for one sample: deficit falls
// back to priority allocation, eco mode prefers efficiency, large surplus
// rebalances loads.
func (m *Manager) selectAdaptive(in model.Inputs) string {
	generation := in.TotalSourcePowerW()
	consumption := in.TotalLoadPowerW()
	balance := generation - consumption
	ratio := 0.0
	if consumption > 0 {
		ratio = generation / consumption
	}
	switch {
	case balance < -200 || (consumption > 0 && ratio < 0.8):
		return StrategyPriorityBased
	case in.Vehicle.DrivingMode == model.ModeEco:
		return StrategyEfficiencyOptimized
	case ratio > 1.5:
		return StrategyLoadBalancing
	default:
		return StrategyPriorityBased
	}
}
