package simulator

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/model"
)

// forecastHorizon is the number of steps the synthetic predictions cover.
const forecastHorizon = 5

// Source generates synthetic harvesting samples from a Profile. It
// implements the scheduler input-source contract and is deterministic for a
// given seed.
type Source struct {
	profile Profile
	rng     *rand.Rand
	step    time.Duration
	now     time.Time
	elapsed float64
	soc     map[string]float64
}

// New builds a generator stepping sample timestamps by step.
func New(p Profile, step time.Duration) *Source {
	if step <= 0 {
		step = 100 * time.Millisecond
	}
	soc := make(map[string]float64, len(p.Storage))
	for _, st := range p.Storage {
		soc[st.ID] = st.InitialSoC
	}
	return &Source{
		profile: p,
		rng:     rand.New(rand.NewSource(p.Seed)),
		step:    step,
		now:     time.Now(),
		soc:     soc,
	}
}

// Next produces one sample. It never blocks; the context is only consulted
// for cancellation.
func (s *Source) Next(ctx context.Context) (model.Inputs, error) {
	if err := ctx.Err(); err != nil {
		return model.Inputs{}, err
	}
	s.now = s.now.Add(s.step)
	s.elapsed += s.step.Seconds()

	in := model.Inputs{
		Timestamp: s.now,
		Sources:   make(map[string]model.Source, len(s.profile.Sources)),
		Storage:   make(map[string]model.Storage, len(s.profile.Storage)),
		Loads:     make(map[string]model.Load, len(s.profile.Loads)),
	}

	var genW float64
	for _, sp := range s.profile.Sources {
		p := s.sourcePower(sp)
		genW += p * sp.Efficiency
		in.Sources[sp.ID] = model.Source{
			ID:           sp.ID,
			Kind:         model.SourceKind(sp.Kind),
			PowerW:       p,
			Voltage:      sp.Voltage,
			Current:      current(p, sp.Voltage),
			Efficiency:   sp.Efficiency,
			TemperatureC: sp.TemperatureC + 4*s.rng.Float64(),
			Status:       model.StatusActive,
		}
	}

	var loadW float64
	for _, lp := range s.profile.Loads {
		p := lp.PowerW
		if lp.VariationW > 0 {
			p += lp.VariationW * (s.rng.Float64() - 0.5)
		}
		if p < 0 {
			p = 0
		}
		loadW += p
		in.Loads[lp.ID] = model.Load{
			ID:          lp.ID,
			Kind:        model.LoadKind(lp.Kind),
			PowerW:      p,
			Priority:    lp.Priority,
			Flexibility: lp.Flexibility,
		}
	}

	s.integrate(genW - loadW)
	for _, st := range s.profile.Storage {
		in.Storage[st.ID] = model.Storage{
			ID:           st.ID,
			Kind:         model.StorageKind(st.Kind),
			CapacityWh:   st.CapacityWh,
			SoC:          s.soc[st.ID],
			Voltage:      st.Voltage,
			TemperatureC: st.TemperatureC + 2*s.rng.Float64(),
			Health:       st.Health,
			Status:       model.StatusActive,
		}
	}

	in.Vehicle = s.vehicleState()
	in.Environment = model.Environment{
		AmbientTempC:  s.profile.Environment.AmbientTempC,
		Vibration:     s.profile.Environment.Vibration,
		RoadRoughness: s.profile.Environment.RoadRoughness,
	}
	in.Predictions = s.predictions()
	return in, nil
}

// sourcePower is the sinusoid plus bounded noise, scaled by the drive state
// for motion-coupled technologies.
func (s *Source) sourcePower(sp SourceProfile) float64 {
	p := sp.BasePowerW
	if sp.PeriodS > 0 {
		p += sp.AmplitudeW * math.Sin(2*math.Pi*s.elapsed/sp.PeriodS)
	}
	p += 0.05 * sp.BasePowerW * (s.rng.Float64() - 0.5)
	switch model.SourceKind(sp.Kind) {
	case model.SourceElectromagnetic, model.SourceMechanical:
		if s.profile.Vehicle.CruiseSpeedKmh > 0 {
			p *= 0.5 + 0.5*math.Min(s.profile.Vehicle.CruiseSpeedKmh/100, 1)
		}
	case model.SourcePiezoelectric:
		p *= 0.5 + s.profile.Environment.RoadRoughness
	}
	if p < 0 {
		p = 0
	}
	return p
}

// integrate advances storage SoC by the net harvested energy of one step,
// spread evenly across units.
func (s *Source) integrate(netW float64) {
	if len(s.profile.Storage) == 0 {
		return
	}
	hours := s.step.Hours()
	perUnit := netW * hours / float64(len(s.profile.Storage))
	for _, st := range s.profile.Storage {
		if st.CapacityWh <= 0 {
			continue
		}
		soc := s.soc[st.ID] + perUnit/st.CapacityWh*100
		s.soc[st.ID] = math.Min(98, math.Max(5, soc))
	}
}

func (s *Source) vehicleState() model.VehicleState {
	v := s.profile.Vehicle
	braking := s.rng.Float64() < v.BrakingChance
	state := model.VehicleState{
		SpeedKmh:          v.CruiseSpeedKmh * (0.9 + 0.2*s.rng.Float64()),
		DrivingMode:       model.DrivingMode(v.DrivingMode),
		MainBatterySoC:    v.MainBatterySoC,
		PowertrainDemandW: v.PowertrainDemandW,
		AuxiliaryDemandW:  v.AuxiliaryDemandW,
		Braking:           braking,
	}
	if braking {
		state.Acceleration = -2.5
		state.RegenPowerW = 0.3 * v.PowertrainDemandW
	}
	return state
}

func (s *Source) predictions() model.Predictions {
	loads := make([]float64, forecastHorizon)
	gen := make([]float64, forecastHorizon)
	for i := range loads {
		t := s.elapsed + float64(i+1)*s.step.Seconds()
		for _, lp := range s.profile.Loads {
			loads[i] += lp.PowerW
		}
		for _, sp := range s.profile.Sources {
			p := sp.BasePowerW
			if sp.PeriodS > 0 {
				p += sp.AmplitudeW * math.Sin(2*math.Pi*t/sp.PeriodS)
			}
			gen[i] += math.Max(0, p) * sp.Efficiency
		}
	}
	return model.Predictions{
		LoadForecastW:       loads,
		GenerationForecastW: gen,
		HorizonSteps:        forecastHorizon,
		PatternScore:        s.profile.Environment.RoadRoughness,
	}
}

func current(powerW, voltage float64) float64 {
	if voltage <= 0 {
		return 0
	}
	return powerW / voltage
}
