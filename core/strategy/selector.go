package strategy

import (
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/events"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/logger"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/model"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/internal/eventbus"
)

// Config tunes the adaptation behaviour of the selector.
type Config struct {
	AdaptationRate float64       `json:"adaptation_rate"`
	Cooldown       time.Duration `json:"-"`
	CooldownS      float64       `json:"cooldown_s"`
}

// SetDefaults fills unset fields with sensible values.
func (c *Config) SetDefaults() {
	if c.AdaptationRate <= 0 {
		c.AdaptationRate = 0.1
	}
	if c.CooldownS <= 0 {
		c.CooldownS = 5
	}
	c.Cooldown = time.Duration(c.CooldownS * float64(time.Second))
}

// Selector owns the ControlState, evaluates the adaptation triggers every
// sample and executes exactly one controller family.
type Selector struct {
	mu       sync.Mutex
	cfg      Config
	state    ControlState
	triggers map[TriggerType]*Trigger
	pid      pidState
	mpc      mpcState
	adp      adaptiveState
	rtAvgMs  float64 // running average response time
	rtCount  int

	clock func() time.Time
	log   logger.Logger
	bus   eventbus.EventBus
}

// New creates a Selector with default executor parameters.
func New(cfg Config, log logger.Logger, bus eventbus.EventBus) *Selector {
	cfg.SetDefaults()
	if log == nil {
		log = logger.Nop{}
	}
	return &Selector{
		cfg:      cfg,
		state:    ControlState{Current: KindPID},
		triggers: defaultTriggers(),
		pid:      pidState{gains: PIDGains{Kp: 0.8, Ki: 0.05, Kd: 0.1}},
		mpc:      mpcState{horizon: 10},
		adp:      adaptiveState{learningRate: 0.1},
		clock:    time.Now,
		log:      log,
		bus:      bus,
	}
}

// State returns a copy of the selector's internal memory.
func (s *Selector) State() ControlState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Gains returns the current PID gains.
func (s *Selector) Gains() PIDGains {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pid.gains
}

// Horizon returns the current MPC horizon length.
func (s *Selector) Horizon() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mpc.horizon
}

// Execute evaluates the triggers, selects one controller family, runs it and
// retunes parameters when the adaptation conditions are met.
func (s *Selector) Execute(in model.Inputs, balanceAfterDistribution float64) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	start := now
	s.observeTriggers(in, now)

	active := s.activeTriggerCount()
	uncertainty := computeUncertainty(in)
	complexity := computeComplexity(in)
	dynamics := computeDynamics(in)
	kind := SelectKind(active, uncertainty, complexity, dynamics)
	s.state.Current = kind

	var correction float64
	switch kind {
	case KindPID:
		correction = s.executePID(in)
	case KindFuzzy:
		correction = s.executeFuzzy(in)
	case KindMPC:
		correction = s.executeMPC(in)
	case KindAdaptive:
		correction = s.executeAdaptive(in)
	}

	rt := s.clock().Sub(start)
	if rt <= 0 {
		rt = time.Microsecond
	}
	s.state.ResponseTime = rt
	s.state.PerformanceScore = performanceScore(in.AvgSourceEfficiency(), balanceAfterDistribution)
	s.state.StabilityIndex = s.stabilityIndex(rt)

	s.maybeAdapt(now)

	return Result{
		Strategy:           kind,
		BalanceCorrectionW: correction,
		AdaptationLevel:    s.state.AdaptationLevel,
		Performance:        s.state.PerformanceScore,
		Stability:          s.state.StabilityIndex,
		ResponseTime:       rt,
	}
}

func (s *Selector) observeTriggers(in model.Inputs, now time.Time) {
	s.triggers[TriggerLoadChange].Observe(in.TotalLoadPowerW(), now)
	s.triggers[TriggerEfficiencyDrop].Observe(in.AvgSourceEfficiency(), now)
	s.triggers[TriggerTemperatureChange].Observe(in.MaxComponentTempC(), now)
	s.triggers[TriggerDrivingPattern].Observe(in.Predictions.PatternScore, now)
}

func (s *Selector) activeTriggerCount() int {
	n := 0
	for _, t := range s.triggers {
		if t.Triggered {
			n++
		}
	}
	return n
}

// SelectKind is the strategy selection rule, evaluated in order. It is a pure
// function: identical inputs always select the identical family.
func SelectKind(activeTriggers int, uncertainty, complexity, dynamics float64) Kind {
	switch {
	case activeTriggers > 2:
		return KindAdaptive
	case uncertainty > 0.7:
		return KindAdaptive
	case complexity > 0.8 && dynamics > 0.6:
		return KindMPC
	case complexity > 0.5:
		return KindFuzzy
	default:
		return KindPID
	}
}

// computeUncertainty averages environment vibration, prediction sparsity and
// the inverse of the mean source health.
func computeUncertainty(in model.Inputs) float64 {
	sparsity := 1.0
	if in.Predictions.HorizonSteps > 0 {
		cover := float64(len(in.Predictions.LoadForecastW)) / float64(in.Predictions.HorizonSteps)
		sparsity = clamp01(1 - cover)
	}
	var health float64
	if len(in.Sources) > 0 {
		for _, src := range in.Sources {
			health += sourceHealth(src)
		}
		health /= float64(len(in.Sources))
	}
	return clamp01((clamp01(in.Environment.Vibration) + sparsity + (1 - health)) / 3)
}

// computeComplexity normalizes the tracked component count against 20.
func computeComplexity(in model.Inputs) float64 {
	return clamp01(float64(in.ComponentCount()) / 20)
}

// computeDynamics combines acceleration, source power variance and the load
// flexibility composite.
func computeDynamics(in model.Inputs) float64 {
	accel := clamp01(math.Abs(in.Vehicle.Acceleration) / 5)

	powers := make([]float64, 0, len(in.Sources))
	for _, src := range in.Sources {
		powers = append(powers, src.PowerW)
	}
	variance := 0.0
	if len(powers) > 1 {
		mean := stat.Mean(powers, nil)
		if mean > 0 {
			variance = clamp01(math.Sqrt(stat.Variance(powers, nil)) / mean)
		}
	}

	var flex float64
	if len(in.Loads) > 0 {
		for _, l := range in.Loads {
			flex += l.Flexibility
		}
		flex /= float64(len(in.Loads))
	}
	return clamp01((accel + variance + flex) / 3)
}

func sourceHealth(src model.Source) float64 {
	h := 1.0
	switch src.Status {
	case model.StatusStandby:
		h = 0.7
	case model.StatusFault:
		h = 0.1
	}
	if src.TemperatureC > 60 {
		h *= 0.8
	}
	return h
}

// performanceScore is efficiency x (1 - min(|balance|/1000, 1)).
func performanceScore(efficiency, balanceW float64) float64 {
	return efficiency * (1 - math.Min(math.Abs(balanceW)/1000, 1))
}

// stabilityIndex is 1 - |rt - avg|/avg, clamped at zero, with avg maintained
// as a running mean of observed response times.
func (s *Selector) stabilityIndex(rt time.Duration) float64 {
	ms := float64(rt.Microseconds()) / 1000
	s.rtCount++
	if s.rtCount == 1 {
		s.rtAvgMs = ms
		return 1
	}
	s.rtAvgMs += (ms - s.rtAvgMs) / float64(s.rtCount)
	if s.rtAvgMs == 0 {
		return 1
	}
	idx := 1 - math.Abs(ms-s.rtAvgMs)/s.rtAvgMs
	if idx < 0 {
		idx = 0
	}
	return idx
}

// maybeAdapt retunes the executor parameters at most once per cooldown
// window; outside an adaptation the adaptation level decays.
func (s *Selector) maybeAdapt(now time.Time) {
	perf := s.state.PerformanceScore
	stab := s.state.StabilityIndex
	needed := s.activeTriggerCount() > 0 || perf < 0.7 || stab < 0.8 ||
		s.state.ResponseTime > 100*time.Millisecond
	inCooldown := !s.state.LastAdaptation.IsZero() &&
		now.Sub(s.state.LastAdaptation) < s.cfg.Cooldown

	if !needed || inCooldown {
		s.state.AdaptationLevel = math.Max(0, s.state.AdaptationLevel-0.1*s.cfg.AdaptationRate)
		return
	}

	if perf < 0.8 {
		s.pid.gains.Kp = math.Min(s.pid.gains.Kp*1.1, 5)
		s.pid.gains.Ki = math.Min(s.pid.gains.Ki*1.1, 2)
	}
	if stab < 0.8 {
		s.pid.gains.Kd = math.Min(s.pid.gains.Kd*1.1, 2)
	}
	if s.state.ResponseTime > 50*time.Millisecond {
		s.mpc.horizon -= 2
	}
	if perf < 0.8 {
		s.mpc.horizon += 2
	}
	if s.mpc.horizon < 5 {
		s.mpc.horizon = 5
	} else if s.mpc.horizon > 20 {
		s.mpc.horizon = 20
	}
	if perf < 0.8 {
		s.adp.learningRate = math.Min(s.adp.learningRate*1.1, 0.5)
	} else {
		s.adp.learningRate = math.Max(s.adp.learningRate*0.95, 0.01)
	}

	for _, t := range s.triggers {
		t.Reset()
	}
	s.state.AdaptationLevel = math.Min(1, s.state.AdaptationLevel+s.cfg.AdaptationRate)
	s.state.LastAdaptation = now
	s.log.Debugw("strategy adapted", map[string]any{
		"strategy":    string(s.state.Current),
		"performance": perf,
		"stability":   stab,
	})
	if s.bus != nil {
		s.bus.Publish(events.AdaptationEvent{
			Strategy:    string(s.state.Current),
			Action:      "adapted",
			Performance: perf,
			Stability:   stab,
			Time:        now,
		})
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
