package tracing

import (
	"context"
	"testing"
	"time"

	"github.com/mushtruk/framegate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecorder(t *testing.T) (*Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return NewTracer(tp.Tracer("test")), rec
}

func attrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracer_TraceTick(t *testing.T) {
	tracer, rec := newRecorder(t)

	snap := framegate.DefaultSnapshot()
	snap.Tick = 3
	snap.At = time.Unix(100, 0)
	tracer.TraceTick(context.Background(), "local", snap)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, SpanName, span.Name())
	assert.Equal(t, snap.At, span.StartTime())
	assert.Equal(t, codes.Unset, span.Status().Code)

	a := attrs(span)
	assert.Equal(t, "local", a["framegate.source"].AsString())
	assert.Equal(t, int64(3), a["framegate.tick"].AsInt64())
	assert.Equal(t, 60.0, a["framegate.fps"].AsFloat64())
	assert.Equal(t, "high", a["framegate.level"].AsString())
	_, hasMem := a["framegate.memory_mb"]
	assert.False(t, hasMem)
}

func TestTracer_LowPerformanceIsError(t *testing.T) {
	tracer, rec := newRecorder(t)

	snap := framegate.DefaultSnapshot()
	snap.Tick = 1
	snap.Metrics.AverageFPS = 22
	snap.Metrics.MemorySupported = true
	snap.Metrics.MemoryUsageMB = 40
	snap.LowPerformance = true
	tracer.TraceTick(context.Background(), "local", snap)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
	assert.Equal(t, 40.0, attrs(spans[0])["framegate.memory_mb"].AsFloat64())
}

func TestTracer_FromMonitor(t *testing.T) {
	tracer, rec := newRecorder(t)

	sched := framegate.NewManualScheduler(time.Unix(0, 0))
	m := framegate.New(framegate.WithScheduler(sched), framegate.WithTracer(tracer))
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	sched.Frames(3*63, 16*time.Millisecond)
	assert.Len(t, rec.Ended(), 3)
}

func TestErrLowPerformance(t *testing.T) {
	err := ErrLowPerformance{FPS: 28.44, MemoryMB: 120}
	assert.Equal(t, "low performance: 28.4 fps, 120.0 MB", err.Error())
}
