// Package opentelemetry provides an OpenTelemetry implementation of the
// framegate.MetricsCollector interface.
//
// Example usage:
//
//	import (
//	    "go.opentelemetry.io/otel"
//	    otelmetrics "github.com/mushtruk/framegate/metrics/opentelemetry"
//	)
//
//	metrics, err := otelmetrics.NewMetrics(otel.Meter("framegate"))
//	if err != nil {
//	    return err
//	}
//	m := framegate.New(framegate.WithMetrics(metrics))
package opentelemetry

import (
	"context"

	"github.com/mushtruk/framegate"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics implements framegate.MetricsCollector using OpenTelemetry.
type Metrics struct {
	ticksTotal      metric.Int64Counter
	fpsHistogram    metric.Float64Histogram
	score           metric.Float64Gauge
	memory          metric.Float64Gauge
	frameTimeP95    metric.Float64Gauge
	transitions     metric.Int64Counter
	sessions        metric.Int64Gauge
	dispatcherDrops metric.Int64Counter
	dispatcherTotal metric.Int64Counter
}

// NewMetrics creates a new OpenTelemetry metrics collector.
// The provided meter is used to create all metric instruments.
//
// Use otel.Meter("framegate") to create a meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	ticksTotal, err := meter.Int64Counter(
		"framegate.ticks",
		metric.WithDescription("Aggregation ticks by performance level and device tier"),
		metric.WithUnit("{tick}"),
	)
	if err != nil {
		return nil, err
	}

	fpsHistogram, err := meter.Float64Histogram(
		"framegate.fps",
		metric.WithDescription("Distribution of rolling average frames per second"),
		metric.WithUnit("{frame}/s"),
		metric.WithExplicitBucketBoundaries(10, 20, 30, 40, 45, 50, 55, 60, 90, 120),
	)
	if err != nil {
		return nil, err
	}

	score, err := meter.Float64Gauge(
		"framegate.performance.score",
		metric.WithDescription("Performance score in [0, 1] at the last tick"),
	)
	if err != nil {
		return nil, err
	}

	memory, err := meter.Float64Gauge(
		"framegate.memory.usage",
		metric.WithDescription("Heap usage at the last tick, when the platform reports it"),
		metric.WithUnit("MBy"),
	)
	if err != nil {
		return nil, err
	}

	frameTimeP95, err := meter.Float64Gauge(
		"framegate.frame_time.p95",
		metric.WithDescription("95th percentile of recent per-frame durations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	transitions, err := meter.Int64Counter(
		"framegate.mode.transitions",
		metric.WithDescription("Low performance mode switches by direction"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	sessions, err := meter.Int64Gauge(
		"framegate.beacon.sessions",
		metric.WithDescription("Number of live beacon sessions"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, err
	}

	dispatcherDrops, err := meter.Int64Counter(
		"framegate.dispatcher.drops",
		metric.WithDescription("Total number of snapshots dropped by the subscriber dispatcher due to buffer overflow"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	dispatcherTotal, err := meter.Int64Counter(
		"framegate.dispatcher.events",
		metric.WithDescription("Total number of snapshots emitted to subscribers"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ticksTotal:      ticksTotal,
		fpsHistogram:    fpsHistogram,
		score:           score,
		memory:          memory,
		frameTimeP95:    frameTimeP95,
		transitions:     transitions,
		sessions:        sessions,
		dispatcherDrops: dispatcherDrops,
		dispatcherTotal: dispatcherTotal,
	}, nil
}

// RecordSnapshot implements framegate.MetricsCollector.
func (m *Metrics) RecordSnapshot(ctx context.Context, source string, snap framegate.Snapshot) {
	device := attribute.String("device", snap.Metrics.DeviceTier.String())
	src := metric.WithAttributes(attribute.String("source", source))

	m.ticksTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("level", snap.Level.String()),
		device,
	))
	m.fpsHistogram.Record(ctx, snap.Metrics.AverageFPS, metric.WithAttributes(device))
	m.score.Record(ctx, float64(snap.Score), src)
	if snap.Metrics.MemorySupported {
		m.memory.Record(ctx, snap.Metrics.MemoryUsageMB, src)
	}
	if snap.Metrics.Jitter.P95 > 0 {
		m.frameTimeP95.Record(ctx, snap.Metrics.Jitter.P95.Seconds(), src)
	}
}

// RecordModeTransition implements framegate.MetricsCollector.
func (m *Metrics) RecordModeTransition(source string, active bool) {
	mode := "normal"
	if active {
		mode = "low"
	}
	m.transitions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("mode", mode),
	))
}

// RecordDispatcherStats implements framegate.MetricsCollector.
func (m *Metrics) RecordDispatcherStats(dropped, total uint64) {
	ctx := context.Background()
	if dropped > 0 {
		m.dispatcherDrops.Add(ctx, int64(dropped))
	}
	if total > 0 {
		m.dispatcherTotal.Add(ctx, int64(total))
	}
}

// RecordSessions implements framegate.MetricsCollector.
func (m *Metrics) RecordSessions(active int) {
	m.sessions.Record(context.Background(), int64(active))
}
