package strategy

import (
	"testing"
	"time"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/model"
)

func TestSelectKindIsDeterministic(t *testing.T) {
	cases := []struct {
		active                           int
		uncertainty, complexity, dynamic float64
		want                             Kind
	}{
		{3, 0, 0, 0, KindAdaptive},
		{0, 0.8, 0, 0, KindAdaptive},
		{0, 0.2, 0.9, 0.7, KindMPC},
		{0, 0.2, 0.9, 0.5, KindFuzzy}, // dynamics too low for MPC, complexity>0.5
		{0, 0.2, 0.6, 0.2, KindFuzzy},
		{0, 0.2, 0.3, 0.2, KindPID},
	}
	for _, tc := range cases {
		for i := 0; i < 3; i++ {
			got := SelectKind(tc.active, tc.uncertainty, tc.complexity, tc.dynamic)
			if got != tc.want {
				t.Errorf("SelectKind(%d,%.1f,%.1f,%.1f) = %s, want %s",
					tc.active, tc.uncertainty, tc.complexity, tc.dynamic, got, tc.want)
			}
		}
	}
}

func TestTriggerFiresAndSticks(t *testing.T) {
	tr := &Trigger{Type: TriggerLoadChange, Threshold: 0.20}
	now := time.Now()
	tr.Observe(100, now) // baseline
	for i := 0; i < 20; i++ {
		tr.Observe(150, now.Add(time.Duration(i)*time.Second))
	}
	if !tr.Triggered {
		t.Fatalf("50%% load change should fire the 20%% trigger")
	}
	// A return to baseline does not clear it.
	tr.Observe(100, now.Add(time.Minute))
	if !tr.Triggered {
		t.Errorf("trigger must stay sticky until reset")
	}
	tr.Reset()
	if tr.Triggered {
		t.Errorf("reset must clear the trigger")
	}
}

func TestTemperatureTriggerIsAbsolute(t *testing.T) {
	tr := &Trigger{Type: TriggerTemperatureChange, Threshold: 10, Absolute: true}
	now := time.Now()
	tr.Observe(30, now)
	for i := 0; i < 30; i++ {
		tr.Observe(45, now.Add(time.Duration(i)*time.Second))
	}
	if !tr.Triggered {
		t.Fatalf("15 degC rise should fire the 10 degC trigger")
	}
}

func smallInputs(loadW float64) model.Inputs {
	return model.Inputs{
		Timestamp: time.Now(),
		Sources: map[string]model.Source{
			"s1": {ID: "s1", PowerW: loadW, Voltage: 12, Efficiency: 0.9, TemperatureC: 30, Status: model.StatusActive},
		},
		Storage: map[string]model.Storage{},
		Loads: map[string]model.Load{
			"l1": {ID: "l1", Kind: model.LoadCritical, PowerW: loadW, Priority: 10},
		},
		Vehicle: model.VehicleState{DrivingMode: model.ModeNormal},
	}
}

func TestExecuteSelectsPIDForSimpleSystem(t *testing.T) {
	s := New(Config{}, nil, nil)
	res := s.Execute(smallInputs(100), 0)
	if res.Strategy != KindPID {
		t.Errorf("small balanced system should run pid, got %s", res.Strategy)
	}
}

func TestAdaptationCooldown(t *testing.T) {
	s := New(Config{AdaptationRate: 0.1, CooldownS: 5}, nil, nil)
	now := time.Unix(1000, 0)
	s.clock = func() time.Time { return now }

	// Poor performance forces an adaptation on the first eligible sample.
	in := smallInputs(100)
	s.Execute(in, 900) // |balance| 900 => low performance
	first := s.State().LastAdaptation
	if first.IsZero() {
		t.Fatalf("expected an adaptation")
	}

	// Within the cooldown window nothing adapts again.
	now = now.Add(2 * time.Second)
	s.Execute(in, 900)
	if got := s.State().LastAdaptation; !got.Equal(first) {
		t.Errorf("adapted during cooldown")
	}

	// After the cooldown it may adapt again.
	now = now.Add(4 * time.Second)
	s.Execute(in, 900)
	if got := s.State().LastAdaptation; got.Equal(first) {
		t.Errorf("expected a second adaptation after cooldown")
	}
}

func TestAdaptationScalesGains(t *testing.T) {
	s := New(Config{}, nil, nil)
	before := s.Gains()
	s.Execute(smallInputs(100), 900) // performance < 0.7
	after := s.Gains()
	if after.Kp <= before.Kp || after.Ki <= before.Ki {
		t.Errorf("low performance should scale kp/ki up: before=%+v after=%+v", before, after)
	}
}

func TestAdaptationLevelDecaysWhenHealthy(t *testing.T) {
	s := New(Config{AdaptationRate: 0.1}, nil, nil)
	s.state.AdaptationLevel = 0.5
	// Healthy sample: high efficiency, tiny balance.
	in := smallInputs(100)
	src := in.Sources["s1"]
	src.Efficiency = 0.95
	in.Sources["s1"] = src
	s.Execute(in, 0)
	if lvl := s.State().AdaptationLevel; lvl >= 0.5 {
		t.Errorf("adaptation level should decay when no adaptation is needed, got %.3f", lvl)
	}
}

func TestMPCHorizonStaysClamped(t *testing.T) {
	s := New(Config{}, nil, nil)
	now := time.Unix(0, 0)
	s.clock = func() time.Time { return now }
	for i := 0; i < 50; i++ {
		now = now.Add(10 * time.Second)
		s.Execute(smallInputs(100), 900)
	}
	if h := s.Horizon(); h < 5 || h > 20 {
		t.Errorf("horizon %d escaped [5,20]", h)
	}
}
