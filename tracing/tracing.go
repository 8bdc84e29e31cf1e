// Package tracing provides OpenTelemetry tracing of framegate aggregation
// ticks. Each published snapshot becomes a short internal span carrying the
// measured metrics, so frame-rate drops can be lined up with whatever else
// the process was doing at the time.
//
// Example usage:
//
//	import (
//	    "go.opentelemetry.io/otel"
//	    "github.com/mushtruk/framegate/tracing"
//	)
//
//	m := framegate.New(framegate.WithTracer(tracing.NewTracer(otel.Tracer("myservice"))))
package tracing

import (
	"context"
	"strconv"

	"github.com/mushtruk/framegate"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SpanName is the name of the span recorded per tick.
const SpanName = "framegate.tick"

// Tracer wraps an OpenTelemetry tracer for tick instrumentation.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new tracer wrapper.
func NewTracer(tracer trace.Tracer) *Tracer {
	return &Tracer{tracer: tracer}
}

// TraceTick implements framegate.Tracer.
func (t *Tracer) TraceTick(ctx context.Context, source string, snap framegate.Snapshot) {
	_, span := t.tracer.Start(ctx, SpanName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithTimestamp(snap.At),
		trace.WithAttributes(
			attribute.String("component", "framegate"),
			attribute.String("framegate.source", source),
			attribute.Int64("framegate.tick", int64(snap.Tick)),
		),
	)
	defer span.End(trace.WithTimestamp(snap.At))

	RecordSnapshot(span, snap)
}

// RecordSnapshot sets the snapshot's metrics as attributes on span. A tick
// below the low-performance limits marks the span as an error.
func RecordSnapshot(span trace.Span, snap framegate.Snapshot) {
	m := snap.Metrics
	span.SetAttributes(
		attribute.Float64("framegate.fps", m.AverageFPS),
		attribute.Float64("framegate.frame_time_ms", m.AverageFrameTimeMs),
		attribute.Float64("framegate.score", float64(snap.Score)),
		attribute.String("framegate.level", snap.Level.String()),
		attribute.String("framegate.device", m.DeviceTier.String()),
		attribute.String("framegate.network", m.NetworkTier.String()),
		attribute.Bool("framegate.low_performance_mode", snap.LowPerformanceMode),
		attribute.Float64("framegate.frame_time.p95", m.Jitter.P95.Seconds()),
		attribute.Float64("framegate.frame_time.p99", m.Jitter.P99.Seconds()),
	)
	if m.MemorySupported {
		span.SetAttributes(attribute.Float64("framegate.memory_mb", m.MemoryUsageMB))
	}

	if snap.LowPerformance {
		span.SetStatus(codes.Error, "performance below threshold")
		span.RecordError(ErrLowPerformance{FPS: m.AverageFPS, MemoryMB: m.MemoryUsageMB})
	}
}

// ErrLowPerformance is recorded on ticks below the low-performance limits.
type ErrLowPerformance struct {
	FPS      float64
	MemoryMB float64
}

func (e ErrLowPerformance) Error() string {
	return "low performance: " + strconv.FormatFloat(e.FPS, 'f', 1, 64) + " fps, " +
		strconv.FormatFloat(e.MemoryMB, 'f', 1, 64) + " MB"
}
