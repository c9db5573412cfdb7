package realtime

import (
	"time"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/model"
)

// Sample is one monitoring observation of per-component power, efficiency,
// temperature and voltage.
type Sample struct {
	Time         time.Time
	SourcePowerW map[string]float64
	Efficiency   map[string]float64
	TemperatureC map[string]float64
	Voltage      map[string]float64
	LoadPowerW   map[string]float64
}

// sampleFrom snapshots the monitored signals of one input sample.
func sampleFrom(in model.Inputs, now time.Time) Sample {
	s := Sample{
		Time:         now,
		SourcePowerW: make(map[string]float64, len(in.Sources)),
		Efficiency:   make(map[string]float64, len(in.Sources)),
		TemperatureC: make(map[string]float64, len(in.Sources)+len(in.Storage)),
		Voltage:      make(map[string]float64, len(in.Sources)),
		LoadPowerW:   make(map[string]float64, len(in.Loads)),
	}
	for id, src := range in.Sources {
		s.SourcePowerW[id] = src.PowerW
		s.Efficiency[id] = src.Efficiency
		s.TemperatureC[id] = src.TemperatureC
		s.Voltage[id] = src.Voltage
	}
	for id, st := range in.Storage {
		s.TemperatureC[id] = st.TemperatureC
	}
	for id, l := range in.Loads {
		s.LoadPowerW[id] = l.PowerW
	}
	return s
}

// ringBuffer holds the most recent monitoring samples; at the 10ms cadence
// its 1000 slots cover roughly ten seconds of history.
type ringBuffer struct {
	buf  []Sample
	head int
	size int
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{buf: make([]Sample, capacity)}
}

func (r *ringBuffer) push(s Sample) {
	r.buf[r.head] = s
	r.head = (r.head + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

// latest returns the most recent sample.
func (r *ringBuffer) latest() (Sample, bool) {
	if r.size == 0 {
		return Sample{}, false
	}
	return r.buf[(r.head-1+len(r.buf))%len(r.buf)], true
}

// oldestWithin returns the oldest sample not older than the lookback window
// relative to the most recent sample.
func (r *ringBuffer) oldestWithin(lookback time.Duration) (Sample, bool) {
	latest, ok := r.latest()
	if !ok {
		return Sample{}, false
	}
	cutoff := latest.Time.Add(-lookback)
	for i := r.size - 1; i >= 0; i-- {
		idx := (r.head - 1 - i + 2*len(r.buf)) % len(r.buf)
		s := r.buf[idx]
		if !s.Time.Before(cutoff) {
			return s, true
		}
	}
	return latest, true
}

func (r *ringBuffer) len() int { return r.size }
