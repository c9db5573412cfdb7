package vehicle

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/model"
)

type stubBus struct {
	mu      sync.Mutex
	sent    []model.VehicleCommands
	fail    bool
	updates chan EnergyStatus
}

func newStubBus() *stubBus {
	return &stubBus{updates: make(chan EnergyStatus, 4)}
}

func (b *stubBus) SendCommands(_ context.Context, cmds model.VehicleCommands) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errors.New("broker unreachable")
	}
	b.sent = append(b.sent, cmds)
	return nil
}

func (b *stubBus) StatusUpdates() <-chan EnergyStatus { return b.updates }

func (b *stubBus) Close() error {
	close(b.updates)
	return nil
}

func (b *stubBus) sentCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sent)
}

func freshCache(st EnergyStatus) *StatusCache {
	c := NewStatusCache(0)
	c.Update(st)
	return c
}

func chargingOutputs() model.Outputs {
	out := model.NewOutputs(time.Unix(1000, 0))
	out.Vehicle = model.VehicleCommands{
		EnergyShareRequestW: 120,
		ChargingEnable:      true,
		ChargingPowerW:      300,
	}
	return out
}

func hasWarning(out model.Outputs, substr string) bool {
	for _, w := range out.Warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

func TestCacheStaleness(t *testing.T) {
	now := time.Unix(2000, 0)
	c := NewStatusCache(2 * time.Second)
	c.SetClock(func() time.Time { return now })

	if _, stale := c.Snapshot(); !stale {
		t.Fatal("empty cache must be stale")
	}
	c.Update(EnergyStatus{MainBatterySoC: 50})
	if _, stale := c.Snapshot(); stale {
		t.Fatal("fresh snapshot flagged stale")
	}
	now = now.Add(3 * time.Second)
	st, stale := c.Snapshot()
	if !stale {
		t.Fatal("aged snapshot not flagged stale")
	}
	if st.MainBatterySoC != 50 {
		t.Fatalf("last value lost: soc = %v", st.MainBatterySoC)
	}
}

func TestWatchConsumesUpdates(t *testing.T) {
	bus := newStubBus()
	c := NewStatusCache(0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		c.Watch(ctx, bus, nil)
		close(done)
	}()

	bus.updates <- EnergyStatus{MainBatterySoC: 72}
	deadline := time.Now().Add(2 * time.Second)
	for {
		st, stale := c.Snapshot()
		if !stale && st.MainBatterySoC == 72 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("update never reached the cache")
		}
		time.Sleep(time.Millisecond)
	}

	bus.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not exit on stream close")
	}
}

func TestIntegrateDisablesChargingWhenStale(t *testing.T) {
	bus := newStubBus()
	g := NewIntegrator(bus, NewStatusCache(0), 0, nil)

	out := g.Integrate(model.Inputs{}, chargingOutputs())
	if out.Vehicle.ChargingEnable || out.Vehicle.ChargingPowerW != 0 {
		t.Fatalf("charging not disabled: %+v", out.Vehicle)
	}
	if out.Vehicle.EnergyShareRequestW != 120 {
		t.Fatalf("energy share changed: %v", out.Vehicle.EnergyShareRequestW)
	}
	if !hasWarning(out, "stale") {
		t.Fatalf("missing staleness warning: %v", out.Warnings)
	}
}

func TestIntegrateClampsChargingToAvailableShare(t *testing.T) {
	cache := freshCache(EnergyStatus{MainBatterySoC: 60, AvailableShareW: 150})
	g := NewIntegrator(newStubBus(), cache, 0, nil)

	out := g.Integrate(model.Inputs{}, chargingOutputs())
	if !out.Vehicle.ChargingEnable {
		t.Fatal("charging disabled despite fresh status")
	}
	if out.Vehicle.ChargingPowerW != 150 {
		t.Fatalf("charging power = %v, want 150", out.Vehicle.ChargingPowerW)
	}
}

func TestIntegrateFullBatteryStopsCharging(t *testing.T) {
	cache := freshCache(EnergyStatus{MainBatterySoC: 96})
	g := NewIntegrator(newStubBus(), cache, 0, nil)

	out := g.Integrate(model.Inputs{}, chargingOutputs())
	if out.Vehicle.ChargingEnable || out.Vehicle.ChargingPowerW != 0 {
		t.Fatalf("charging not stopped at full battery: %+v", out.Vehicle)
	}
}

func TestRegenClearedWhenNotBraking(t *testing.T) {
	cache := freshCache(EnergyStatus{MainBatterySoC: 60})
	g := NewIntegrator(newStubBus(), cache, 0, nil)

	out := model.NewOutputs(time.Unix(1000, 0))
	out.Vehicle.RegenBrakingLevel = 80
	got := g.Integrate(model.Inputs{}, out)
	if got.Vehicle.RegenBrakingLevel != 0 {
		t.Fatalf("regen level = %v, want 0", got.Vehicle.RegenBrakingLevel)
	}

	in := model.Inputs{Vehicle: model.VehicleState{Braking: true}}
	out.Vehicle.RegenBrakingLevel = 80
	got = g.Integrate(in, out)
	if got.Vehicle.RegenBrakingLevel != 80 {
		t.Fatalf("regen level = %v, want 80 while braking", got.Vehicle.RegenBrakingLevel)
	}
}

func TestSendFailureKeepsLastCommands(t *testing.T) {
	bus := newStubBus()
	cache := freshCache(EnergyStatus{MainBatterySoC: 60, AvailableShareW: 500})
	g := NewIntegrator(bus, cache, 0, nil)

	first := g.Integrate(model.Inputs{}, chargingOutputs())
	if bus.sentCount() != 1 {
		t.Fatalf("sent = %d, want 1", bus.sentCount())
	}

	bus.mu.Lock()
	bus.fail = true
	bus.mu.Unlock()

	out := g.Integrate(model.Inputs{}, chargingOutputs())
	if !hasWarning(out, "unreachable") {
		t.Fatalf("missing delivery warning: %v", out.Warnings)
	}
	last, ok := g.LastSent()
	if !ok || last != first.Vehicle {
		t.Fatalf("last sent = %+v, want %+v", last, first.Vehicle)
	}
}
