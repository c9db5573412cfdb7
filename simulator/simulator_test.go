package simulator

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestNextProducesValidSamples(t *testing.T) {
	src := New(DefaultProfile(), 100*time.Millisecond)
	ctx := context.Background()

	var last time.Time
	for i := 0; i < 50; i++ {
		in, err := src.Next(ctx)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if !in.Timestamp.After(last) {
			t.Fatalf("timestamp did not advance at step %d", i)
		}
		last = in.Timestamp
		for id, s := range in.Sources {
			if err := s.Validate(); err != nil {
				t.Fatalf("source %s: %v", id, err)
			}
		}
		for id, st := range in.Storage {
			if err := st.Validate(); err != nil {
				t.Fatalf("storage %s: %v", id, err)
			}
		}
		for id, l := range in.Loads {
			if err := l.Validate(); err != nil {
				t.Fatalf("load %s: %v", id, err)
			}
		}
		if in.Predictions.HorizonSteps != forecastHorizon {
			t.Fatalf("prediction horizon = %d", in.Predictions.HorizonSteps)
		}
	}
}

func TestDeterministicForSeed(t *testing.T) {
	a := New(DefaultProfile(), 100*time.Millisecond)
	b := New(DefaultProfile(), 100*time.Millisecond)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		ia, _ := a.Next(ctx)
		ib, _ := b.Next(ctx)
		for id := range ia.Sources {
			if ia.Sources[id].PowerW != ib.Sources[id].PowerW {
				t.Fatalf("runs diverged at step %d source %s", i, id)
			}
		}
	}
}

func TestNextHonorsContext(t *testing.T) {
	src := New(DefaultProfile(), time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.Next(ctx); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestDecodeProfileYAML(t *testing.T) {
	doc := `
seed: 7
sources:
  - id: em1
    kind: electromagnetic
    base_power_w: 100
    efficiency: 0.8
storage:
  - id: bat1
    kind: battery
    capacity_wh: 500
    initial_soc: 40
loads:
  - id: ecu
    kind: critical
    power_w: 120
    priority: 10
`
	p, err := DecodeProfile(strings.NewReader(doc), "yaml")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Seed != 7 || len(p.Sources) != 1 || p.Sources[0].BasePowerW != 100 {
		t.Fatalf("unexpected profile: %+v", p)
	}
	if p.Storage[0].InitialSoC != 40 || p.Loads[0].Priority != 10 {
		t.Fatalf("unexpected profile: %+v", p)
	}
}

func TestDecodeProfileUnsupportedFormat(t *testing.T) {
	if _, err := DecodeProfile(strings.NewReader("{}"), "toml"); err == nil {
		t.Fatal("expected format error")
	}
}
