package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/events"
	coremetrics "github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/metrics"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/infra/logger"
)

// InfluxSink writes control-cycle events to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close shuts the underlying client down.
func (s *InfluxSink) Close() {
	s.client.Close()
}

// RecordCycle writes one control cycle as line protocol.
func (s *InfluxSink) RecordCycle(ev coremetrics.CycleEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("control_cycle").
		AddTag("state", ev.State.String()).
		AddTag("balance", ev.Balance.String()).
		AddTag("component", "controller").
		AddField("generation_w", round3(ev.GenerationW)).
		AddField("consumption_w", round3(ev.ConsumptionW)).
		AddField("storage_net_w", round3(ev.StorageNetW)).
		AddField("vehicle_share_w", round3(ev.VehicleShareW)).
		AddField("health", round3(ev.OverallHealth)).
		AddField("warnings", ev.WarningCount).
		AddField("cycle_ms", round3(ev.Elapsed.Seconds()*1000)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordStateTransition persists one operating-state change.
func (s *InfluxSink) RecordStateTransition(ev events.StateTransitionEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("state_transition").
		AddTag("from", ev.From.String()).
		AddTag("to", ev.To.String()).
		AddTag("component", "controller").
		AddField("reason", ev.Reason).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordCorrection persists a real-time correction lifecycle event.
func (s *InfluxSink) RecordCorrection(ev events.CorrectionEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("realtime_correction").
		AddTag("type", ev.Type).
		AddTag("action", ev.Action).
		AddTag("component", "realtime_controller").
		AddField("target", ev.Target).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordOptimization persists an optimization run outcome.
func (s *InfluxSink) RecordOptimization(ev events.OptimizationEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("optimization_run").
		AddTag("algorithm", ev.Algorithm).
		AddTag("action", ev.Action).
		AddTag("component", "optimization_engine").
		AddField("improvement_pct", round3(ev.ImprovementPct)).
		AddField("iterations", ev.Iterations).
		AddField("elapsed_ms", round3(ev.Elapsed.Seconds()*1000)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordAdaptation persists a strategy adaptation event.
func (s *InfluxSink) RecordAdaptation(ev events.AdaptationEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("strategy_adaptation").
		AddTag("strategy", ev.Strategy).
		AddTag("action", ev.Action).
		AddTag("component", "strategy_selector").
		AddField("performance", round3(ev.Performance)).
		AddField("stability", round3(ev.Stability)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
