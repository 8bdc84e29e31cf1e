package framegate

import "context"

// MetricsCollector receives monitor telemetry. Implementations for
// Prometheus, OpenTelemetry and Datadog live under metrics/.
//
// To disable collection:
//
//	framegate.New(framegate.WithMetrics(framegate.NoOpMetrics{}))
type MetricsCollector interface {
	// RecordSnapshot is called once per aggregation tick with the snapshot
	// that was just published. source names the monitor, e.g. "local" or
	// "beacon". It is low cardinality and safe to use as a label.
	RecordSnapshot(ctx context.Context, source string, snap Snapshot)

	// RecordModeTransition is called when low performance mode switches.
	RecordModeTransition(source string, active bool)

	// RecordDispatcherStats reports subscriber deliveries since the
	// previous call, so counts from many monitors can simply be added.
	RecordDispatcherStats(dropped, total uint64)

	// RecordSessions reports the number of live remote sessions.
	RecordSessions(active int)
}

// NoOpMetrics discards all metrics.
type NoOpMetrics struct{}

// RecordSnapshot implements MetricsCollector.
func (NoOpMetrics) RecordSnapshot(ctx context.Context, source string, snap Snapshot) {}

// RecordModeTransition implements MetricsCollector.
func (NoOpMetrics) RecordModeTransition(source string, active bool) {}

// RecordDispatcherStats implements MetricsCollector.
func (NoOpMetrics) RecordDispatcherStats(dropped, total uint64) {}

// RecordSessions implements MetricsCollector.
func (NoOpMetrics) RecordSessions(active int) {}

// Tracer instruments aggregation ticks. The tracing package wraps an
// OpenTelemetry tracer.
type Tracer interface {
	TraceTick(ctx context.Context, source string, snap Snapshot)
}

// NoOpTracer does nothing.
type NoOpTracer struct{}

// TraceTick implements Tracer.
func (NoOpTracer) TraceTick(ctx context.Context, source string, snap Snapshot) {}
