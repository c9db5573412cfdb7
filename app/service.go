package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/api/status"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/config"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/controller"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/distribution"
	coremetrics "github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/metrics"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/model"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/optimization"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/realtime"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/scheduler"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/strategy"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/vehicle"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/infra/logger"
	inframetrics "github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/infra/metrics"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/infra/mqtt"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/internal/eventbus"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/simulator"
)

// Service wires the control core, the input source, the vehicle bus and the
// observability adapters from one configuration.
type Service struct {
	Controller *controller.Controller
	Scheduler  *scheduler.Scheduler

	src      scheduler.InputSource
	bus      eventbus.EventBus
	sink     coremetrics.MetricsSink
	vbus     vehicle.Bus
	cache    *vehicle.StatusCache
	log      logger.Logger
	promAddr string
	api      config.APIConfig
}

// New creates a Service from the configuration. Any section that fails to
// construct aborts startup; there is no degraded mode for bad wiring.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	bus := eventbus.New()

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	dist, err := distribution.NewManager(cfg.Controller.Strategy, logger.New("distribution"))
	if err != nil {
		return nil, fmt.Errorf("distribution manager: %w", err)
	}
	sel := strategy.New(cfg.Strategy, logger.New("strategy"), bus)
	eng, err := optimization.NewEngine(cfg.Optimization, logger.New("optimization"), bus)
	if err != nil {
		return nil, fmt.Errorf("optimization engine: %w", err)
	}
	rt := realtime.New(logger.New("realtime"), bus)

	var vbus vehicle.Bus
	if cfg.Vehicle.Enabled {
		vbus, err = mqtt.NewBus(cfg.Vehicle.MQTT)
		if err != nil {
			return nil, fmt.Errorf("vehicle bus: %w", err)
		}
	}
	cache := vehicle.NewStatusCache(cfg.Vehicle.StatusMaxAge())
	integ := vehicle.NewIntegrator(vbus, cache, cfg.Vehicle.SendTimeout(), logger.New("vehicle"))

	ctrl, err := controller.New(cfg.Controller, dist, sel, eng, integ, rt, logger.New("controller"), bus)
	if err != nil {
		return nil, fmt.Errorf("controller: %w", err)
	}

	profile := simulator.DefaultProfile()
	if cfg.Simulator.ProfilePath != "" {
		profile, err = simulator.LoadProfile(cfg.Simulator.ProfilePath)
		if err != nil {
			return nil, fmt.Errorf("simulator profile: %w", err)
		}
	}
	src := simulator.New(profile, cfg.Scheduler.SamplePeriod())

	sched, err := scheduler.New(cfg.Scheduler, ctrl, rt, src, sink, logger.New("scheduler"))
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}

	return &Service{
		Controller: ctrl,
		Scheduler:  sched,
		src:        src,
		bus:        bus,
		sink:       sink,
		vbus:       vbus,
		cache:      cache,
		log:        logg,
		promAddr:   promAddr(cfg.Metrics),
		api:        cfg.API,
	}, nil
}

// promAddr extracts the listen address of the prometheus sink, if one is
// configured.
func promAddr(cfg coremetrics.Config) string {
	for _, s := range cfg.Sinks {
		if s.Kind != "prometheus" {
			continue
		}
		if port, ok := s.Options["prometheus_port"].(string); ok && port != "" {
			if !strings.Contains(port, ":") {
				port = ":" + port
			}
			return port
		}
	}
	return ""
}

// Run starts the background collaborators and blocks in the control loop
// until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	inframetrics.StartEventCollector(ctx, s.bus, s.sink)
	if s.vbus != nil {
		go s.cache.Watch(ctx, s.vbus, logger.New("status-cache"))
	}
	if s.promAddr != "" {
		go func() {
			if err := inframetrics.StartPromServer(ctx, s.promAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.api.ListenAddr != "" {
		go func() {
			if err := s.serveAPI(ctx); err != nil {
				s.log.Errorf("status api: %v", err)
			}
		}()
	}
	return s.Scheduler.Run(ctx)
}

// serveAPI runs the read-only status API until the context is cancelled.
func (s *Service) serveAPI(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/api/status", status.NewStatusHandler(s.Controller, s.api.Token))
	mux.Handle("/api/transitions", status.NewTransitionsHandler(s.Controller, s.api.Token))
	srv := &http.Server{Addr: s.api.ListenAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("status api shutdown: %v", err)
		}
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// ProcessOnce runs a single control cycle and returns its outputs. Used by
// the one-shot CLI command.
func (s *Service) ProcessOnce(ctx context.Context) (model.Outputs, error) {
	in, err := s.src.Next(ctx)
	if err != nil {
		return model.Outputs{}, fmt.Errorf("input source: %w", err)
	}
	return s.Controller.Process(ctx, in)
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var firstErr error
	if s.vbus != nil {
		if err := s.vbus.Close(); err != nil {
			firstErr = err
		}
	}
	if c, ok := s.sink.(io.Closer); ok {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.bus.Close()
	return firstErr
}
