package distribution

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/model"
)

func TestPriorityBasedNeverExceedsDemand(t *testing.T) {
	m, _ := NewManager(StrategyPriorityBased, nil)
	in := testInputs()
	flow := m.AnalyzeFlow(in)
	res := m.Distribute(in, flow)
	if got := res.LoadAllocationW("ecu"); got > in.Loads["ecu"].PowerW+1e-9 {
		t.Errorf("load allocated %.2fW above its %.2fW demand", got, in.Loads["ecu"].PowerW)
	}
	for _, d := range res.Decisions {
		if d.PowerW < 0 {
			t.Errorf("negative allocation on %s->%s", d.SourceID, d.TargetID)
		}
	}
}

func TestPriorityBasedServesHighPriorityFirst(t *testing.T) {
	m, _ := NewManager(StrategyPriorityBased, nil)
	in := testInputs()
	in.Sources["em1"] = model.Source{ID: "em1", Kind: model.SourceElectromagnetic, PowerW: 50, Voltage: 12, Efficiency: 1, TemperatureC: 30, Status: model.StatusActive}
	delete(in.Storage, "bat1")
	in.Loads = map[string]model.Load{
		"ecu":   {ID: "ecu", Kind: model.LoadCritical, PowerW: 40, Priority: 10},
		"pump":  {ID: "pump", Kind: model.LoadCritical, PowerW: 40, Priority: 4},
		"radio": {ID: "radio", Kind: model.LoadOptional, PowerW: 40, Priority: 1},
	}
	flow := m.AnalyzeFlow(in)
	res := m.Distribute(in, flow)
	// 50W deliverable: the priority-10 load is fully served from the source,
	// the rest falls back to the vehicle bus.
	var ecuFromSource float64
	for _, d := range res.Decisions {
		if d.TargetID == "ecu" && d.SourceID == "em1" {
			ecuFromSource += d.PowerW
		}
		if d.TargetID == "pump" && d.SourceID == "em1" && d.PowerW > 10+1e-9 {
			t.Errorf("low priority load took %.2fW from the source before high priority was served", d.PowerW)
		}
	}
	if math.Abs(ecuFromSource-40) > 1e-9 {
		t.Errorf("expected 40W from source to priority-10 load, got %.2f", ecuFromSource)
	}
}

func TestPriorityBasedSurplusGoesToBestStorage(t *testing.T) {
	m, _ := NewManager(StrategyPriorityBased, nil)
	in := testInputs()
	delete(in.Loads, "ecu")
	in.Storage["bat2"] = model.Storage{ID: "bat2", Kind: model.StorageBattery, CapacityWh: 1000, SoC: 20, Voltage: 48, Health: 0.95, TemperatureC: 30, Status: model.StatusActive}
	flow := m.AnalyzeFlow(in)
	res := m.Distribute(in, flow)
	var toLow, toMid float64
	for _, d := range res.Decisions {
		if d.TargetType != TargetStorage {
			continue
		}
		switch d.TargetID {
		case "bat2":
			toLow += d.PowerW
		case "bat1":
			toMid += d.PowerW
		}
	}
	if toLow <= 0 {
		t.Fatalf("expected surplus to charge the emptier unit first")
	}
	if toMid > 0 && toLow < toMid {
		t.Errorf("lower SOC unit should score higher: low=%.1f mid=%.1f", toLow, toMid)
	}
}

func TestLoadBalancingShedsWithinFlexibility(t *testing.T) {
	m, _ := NewManager(StrategyLoadBalancing, nil)
	in := testInputs()
	in.Sources["em1"] = model.Source{ID: "em1", Kind: model.SourceElectromagnetic, PowerW: 50, Voltage: 12, Efficiency: 1, TemperatureC: 30, Status: model.StatusActive}
	delete(in.Storage, "bat1")
	in.Loads = map[string]model.Load{
		"heater": {ID: "heater", Kind: model.LoadEssential, PowerW: 500, Priority: 5, Flexibility: 0.2},
	}
	flow := m.AnalyzeFlow(in)
	res := m.Distribute(in, flow)
	if got := res.LoadAllocationW("heater"); math.Abs(got-400) > 1e-9 {
		t.Errorf("expected load shed down to 400W, got %.2f", got)
	}
	if len(res.Violations) != 1 || !strings.Contains(res.Violations[0], "heater") {
		t.Errorf("expected one priority violation for heater, got %v", res.Violations)
	}
}

func TestLoadBalancingShedsLowestPriorityFirst(t *testing.T) {
	m, _ := NewManager(StrategyLoadBalancing, nil)
	in := testInputs()
	in.Sources["em1"] = model.Source{ID: "em1", Kind: model.SourceElectromagnetic, PowerW: 100, Voltage: 12, Efficiency: 1, TemperatureC: 30, Status: model.StatusActive}
	delete(in.Storage, "bat1")
	in.Loads = map[string]model.Load{
		"hi": {ID: "hi", Kind: model.LoadEssential, PowerW: 100, Priority: 9, Flexibility: 0.5},
		"lo": {ID: "lo", Kind: model.LoadOptional, PowerW: 100, Priority: 2, Flexibility: 0.5},
	}
	flow := m.AnalyzeFlow(in)
	res := m.Distribute(in, flow)
	if len(res.Violations) == 0 {
		t.Fatalf("expected shedding violations")
	}
	if !strings.Contains(res.Violations[0], "lo") {
		t.Errorf("lowest priority load must shed first: %v", res.Violations)
	}
}

func TestReliabilityFocusedDoesNotOvercommitSource(t *testing.T) {
	m, _ := NewManager(StrategyReliabilityFocused, nil)
	in := testInputs()
	in.Sources["em1"] = model.Source{ID: "em1", Kind: model.SourceElectromagnetic, PowerW: 100, Voltage: 48, Efficiency: 1, TemperatureC: 30, Status: model.StatusActive}
	delete(in.Storage, "bat1")
	in.Loads = map[string]model.Load{
		"c1": {ID: "c1", Kind: model.LoadCritical, PowerW: 80, Priority: 10},
		"c2": {ID: "c2", Kind: model.LoadCritical, PowerW: 80, Priority: 9},
	}
	flow := m.AnalyzeFlow(in)
	res := m.Distribute(in, flow)
	var fromSource float64
	for _, d := range res.Decisions {
		if d.SourceID == "em1" {
			fromSource += d.PowerW
		}
	}
	if fromSource > 100+1e-9 {
		t.Errorf("source committed %.2fW above its 100W capacity", fromSource)
	}
}

func TestAdaptiveSelection(t *testing.T) {
	m, _ := NewManager(StrategyAdaptive, nil)
	cases := []struct {
		name    string
		genW    float64
		loadW   float64
		mode    model.DrivingMode
		expects string
	}{
		{"deficit", 100, 400, model.ModeNormal, StrategyPriorityBased},
		{"eco", 300, 280, model.ModeEco, StrategyEfficiencyOptimized},
		{"surplus", 600, 300, model.ModeNormal, StrategyLoadBalancing},
		{"default", 300, 280, model.ModeNormal, StrategyPriorityBased},
	}
	for _, tc := range cases {
		in := model.Inputs{
			Timestamp: time.Now(),
			Sources: map[string]model.Source{
				"s": {ID: "s", PowerW: tc.genW, Voltage: 12, Efficiency: 0.9, Status: model.StatusActive},
			},
			Storage: map[string]model.Storage{},
			Loads: map[string]model.Load{
				"l": {ID: "l", Kind: model.LoadEssential, PowerW: tc.loadW, Priority: 5, Flexibility: 0.1},
			},
			Vehicle: model.VehicleState{DrivingMode: tc.mode},
		}
		res := m.Distribute(in, m.AnalyzeFlow(in))
		if res.Strategy != tc.expects {
			t.Errorf("%s: expected %s got %s", tc.name, tc.expects, res.Strategy)
		}
	}
}

func TestManagerRejectsUnknownStrategy(t *testing.T) {
	if _, err := NewManager("round_robin", nil); err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
}
