package mqtt

import (
	"context"
	"fmt"
	"sync"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/model"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/vehicle"
)

// MockBus is an in-memory vehicle.Bus used in tests and by the simulator.
type MockBus struct {
	mu       sync.Mutex
	sent     []model.VehicleCommands
	failSend bool
	statusCh chan vehicle.EnergyStatus
	once     sync.Once
}

// NewMockBus creates a MockBus with a buffered status stream.
func NewMockBus() *MockBus {
	return &MockBus{statusCh: make(chan vehicle.EnergyStatus, 16)}
}

// FailSend makes subsequent SendCommands calls return an error.
func (m *MockBus) FailSend(fail bool) {
	m.mu.Lock()
	m.failSend = fail
	m.mu.Unlock()
}

// SendCommands records the command set or fails when configured to.
func (m *MockBus) SendCommands(_ context.Context, cmds model.VehicleCommands) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSend {
		return fmt.Errorf("publish failed")
	}
	m.sent = append(m.sent, cmds)
	return nil
}

// Sent returns a copy of all recorded command sets.
func (m *MockBus) Sent() []model.VehicleCommands {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.VehicleCommands(nil), m.sent...)
}

// PushStatus injects a snapshot into the status stream.
func (m *MockBus) PushStatus(st vehicle.EnergyStatus) {
	m.statusCh <- st
}

// StatusUpdates returns the injected snapshot stream.
func (m *MockBus) StatusUpdates() <-chan vehicle.EnergyStatus {
	return m.statusCh
}

// Close closes the status stream.
func (m *MockBus) Close() error {
	m.once.Do(func() { close(m.statusCh) })
	return nil
}
