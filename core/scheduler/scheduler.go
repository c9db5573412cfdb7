package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/controller"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/logger"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/metrics"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/model"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/realtime"
)

// InputSource supplies one sensor sample per cycle. Implementations block
// until a sample is available or the context is cancelled.
type InputSource interface {
	Next(ctx context.Context) (model.Inputs, error)
}

// Scheduler drives the controller at the configured sample frequency and
// feeds the real-time monitor between samples. When the input source fails
// the last known sample is replayed so the pipeline keeps producing safe,
// consistent outputs instead of freezing.
type Scheduler struct {
	cfg   Config
	ctrl  *controller.Controller
	rt    *realtime.Controller
	src   InputSource
	sink  metrics.MetricsSink
	log   logger.Logger
	clock func() time.Time

	mu      sync.Mutex
	lastIn  model.Inputs
	lastOut model.Outputs
	have    bool

	stop     chan struct{}
	stopOnce sync.Once
}

// New builds a scheduler. The controller and input source are required; the
// realtime controller and metrics sink may be nil.
func New(cfg Config, ctrl *controller.Controller, rt *realtime.Controller, src InputSource, sink metrics.MetricsSink, log logger.Logger) (*Scheduler, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scheduler config: %w", err)
	}
	if ctrl == nil || src == nil {
		return nil, fmt.Errorf("scheduler: controller and input source are required")
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if log == nil {
		log = logger.Nop{}
	}
	return &Scheduler{
		cfg:   cfg,
		ctrl:  ctrl,
		rt:    rt,
		src:   src,
		sink:  sink,
		log:   log,
		clock: time.Now,
		stop:  make(chan struct{}),
	}, nil
}

// SetClock overrides the time source used for held samples. Intended for
// tests.
func (s *Scheduler) SetClock(clock func() time.Time) {
	s.mu.Lock()
	s.clock = clock
	s.mu.Unlock()
}

// Last returns the most recent sample and outputs. The bool is false until
// the first cycle completes.
func (s *Scheduler) Last() (model.Inputs, model.Outputs, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastIn, s.lastOut, s.have
}

// Run executes cycles until the context is cancelled, Stop is called or the
// controller is shut down. It owns the only goroutine that touches the
// pipeline, so callers must not invoke Process concurrently.
func (s *Scheduler) Run(ctx context.Context) error {
	sample := time.NewTicker(s.cfg.SamplePeriod())
	defer sample.Stop()

	monitor := time.NewTicker(s.cfg.RealtimeTick())
	defer monitor.Stop()

	s.log.Infof("scheduler running at %.1f Hz", s.cfg.UpdateFrequencyHz)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		case <-monitor.C:
			s.observe()
		case <-sample.C:
			if err := s.cycle(ctx); err != nil {
				if errors.Is(err, controller.ErrStopped) {
					s.log.Infof("controller stopped, scheduler exiting")
					return nil
				}
				return err
			}
		}
	}
}

// Stop ends Run after the current cycle. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// EmergencyStop forces the controller into its fault state immediately.
// Cycles keep running and produce safe outputs until Restart is called.
func (s *Scheduler) EmergencyStop(reason string) {
	s.log.Warnf("emergency stop: %s", reason)
	s.ctrl.EmergencyStop(reason)
}

// Restart asks the controller to leave its fault or shutdown state.
func (s *Scheduler) Restart() {
	s.ctrl.Restart()
}

// cycle pulls one sample, runs the pipeline and records the outcome.
// Validation failures are logged and skipped rather than ending the run: a
// single bad sample must not take the control loop down.
func (s *Scheduler) cycle(ctx context.Context) error {
	in, err := s.src.Next(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.mu.Lock()
		have := s.have
		in = s.lastIn
		in.Timestamp = s.clock()
		s.mu.Unlock()
		if !have {
			s.log.Warnf("input source failed before first sample: %v", err)
			return nil
		}
		s.log.Warnf("input source failed, holding last sample: %v", err)
	}

	start := time.Now()
	out, err := s.ctrl.Process(ctx, in)
	if err != nil {
		if errors.Is(err, controller.ErrStopped) {
			return err
		}
		s.log.Warnf("cycle rejected: %v", err)
		return nil
	}
	elapsed := time.Since(start)

	s.mu.Lock()
	s.lastIn = in
	s.lastOut = out
	s.have = true
	s.mu.Unlock()

	if s.rt != nil {
		s.rt.Observe(in)
	}
	if err := s.sink.RecordCycle(metrics.NewCycleEvent(in, out, elapsed)); err != nil {
		s.log.Warnf("record cycle: %v", err)
	}
	return nil
}

// observe replays the latest sample into the monitor so correction expiry
// advances between control cycles.
func (s *Scheduler) observe() {
	if s.rt == nil {
		return
	}
	s.mu.Lock()
	in, ok := s.lastIn, s.have
	s.mu.Unlock()
	if ok {
		s.rt.Observe(in)
	}
}
