package prometheus

import (
	"context"
	"testing"
	"time"

	"github.com/mushtruk/framegate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slowSnapshot() framegate.Snapshot {
	snap := framegate.DefaultSnapshot()
	snap.Tick = 1
	snap.Metrics.AverageFPS = 20
	snap.Metrics.MemorySupported = true
	snap.Metrics.MemoryUsageMB = 64
	snap.Metrics.DeviceTier = framegate.Tablet
	snap.Metrics.Jitter.P95 = 48 * time.Millisecond
	snap.Score = 0.45
	snap.Level = framegate.LevelMedium
	snap.LowPerformanceMode = true
	return snap
}

func TestMetrics_RecordSnapshot(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordSnapshot(context.Background(), "local", slowSnapshot())
	m.RecordSnapshot(context.Background(), "local", framegate.DefaultSnapshot())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ticksTotal.WithLabelValues("medium", "tablet")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ticksTotal.WithLabelValues("high", "desktop")))
	assert.Equal(t, 60.0, testutil.ToFloat64(m.fps.WithLabelValues("local")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.score.WithLabelValues("local")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.lowMode.WithLabelValues("local")))

	// Unsupported memory and empty jitter leave the previous readings.
	assert.Equal(t, 64.0, testutil.ToFloat64(m.memory.WithLabelValues("local")))
	assert.InDelta(t, 0.048, testutil.ToFloat64(m.frameTimeP95.WithLabelValues("local")), 1e-9)

	assert.Equal(t, 2, testutil.CollectAndCount(m.fpsHistogram))
}

func TestMetrics_Transitions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordModeTransition("beacon", true)
	m.RecordModeTransition("beacon", false)
	m.RecordModeTransition("beacon", true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("beacon", "low")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("beacon", "normal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lowMode.WithLabelValues("beacon")))
}

func TestMetrics_DispatcherAndSessions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordDispatcherStats(1, 10)
	m.RecordDispatcherStats(0, 5)
	m.RecordSessions(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatcherDrops))
	assert.Equal(t, 15.0, testutil.ToFloat64(m.dispatcherTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.sessions))
}

func TestMetrics_FromMonitor(t *testing.T) {
	reg := prometheus.NewRegistry()
	sched := framegate.NewManualScheduler(time.Unix(0, 0))
	mon := framegate.New(
		framegate.WithScheduler(sched),
		framegate.WithMetrics(NewMetrics(reg)),
	)
	require.NoError(t, mon.Start(context.Background()))
	defer mon.Stop()

	sched.Frames(63, 16*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["framegate_ticks_total"])
	assert.True(t, names["framegate_average_fps"])
	assert.True(t, names["framegate_performance_score"])
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}
