package metrics

// Package metrics defines interfaces and implementations for collecting
// control-cycle metrics. Sinks like PromSink and InfluxSink record events
// such as state transitions or optimization outcomes and can be combined
// with NewMultiSink. The factory helpers return a MultiSink automatically
// when multiple sinks are configured. Helper functions expose Prometheus
// metrics and collect events from the internal event bus.
