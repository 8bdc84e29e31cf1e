package framegate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestMonitor(t *testing.T, opts ...Option) (*Monitor, *ManualScheduler) {
	t.Helper()
	sched := NewManualScheduler(epoch)
	opts = append([]Option{
		WithScheduler(sched),
		WithUpdateInterval(time.Second),
		WithViewportSource(StaticViewport{Width: 1440}),
	}, opts...)
	m := New(opts...)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(m.Stop)
	return m, sched
}

func TestMonitor_DefaultSnapshotBeforeFirstTick(t *testing.T) {
	defer goleak.VerifyNone(t)

	m, sched := newTestMonitor(t)
	sched.Frames(10, 16*time.Millisecond)

	snap := m.Store().Load()
	assert.Equal(t, DefaultSnapshot(), snap)
	m.Stop()
}

func TestMonitor_SmoothDesktop(t *testing.T) {
	defer goleak.VerifyNone(t)

	m, sched := newTestMonitor(t)
	sched.Frames(63, 16*time.Millisecond)

	snap := m.Store().Load()
	assert.Equal(t, uint64(1), snap.Tick)
	assert.InDelta(t, 62.5, snap.Metrics.AverageFPS, 1e-9)
	assert.InDelta(t, 16.0, snap.Metrics.AverageFrameTimeMs, 1e-9)
	assert.False(t, snap.LowPerformance)
	assert.Equal(t, Desktop, snap.Metrics.DeviceTier)
	assert.Equal(t, NetworkUnknown, snap.Metrics.NetworkTier)
	assert.False(t, snap.Metrics.MemorySupported)
	assert.InDelta(t, 1.0, float64(snap.Score), 1e-9)
	assert.Equal(t, LevelHigh, snap.Level)

	f := snap.Features
	assert.True(t, f.EnableAnimations && f.Enable3D && f.EnableParticles && f.EnableFluidEffects)
	assert.Equal(t, QualityHigh, f.ImageQuality)
	m.Stop()
}

func TestMonitor_SlowFrames(t *testing.T) {
	defer goleak.VerifyNone(t)

	m, sched := newTestMonitor(t, WithMemorySource(StaticMemory{UsedMB: 0}))
	sched.Frames(20, 50*time.Millisecond)

	snap := m.Store().Load()
	assert.InDelta(t, 20.0, snap.Metrics.AverageFPS, 1e-9)
	assert.True(t, snap.LowPerformance)
	assert.True(t, snap.Metrics.MemorySupported)
	assert.False(t, snap.Features.EnableAnimations)
	assert.False(t, snap.Features.Enable3D)
	assert.Equal(t, QualityLow, snap.Features.AnimationQuality)
	m.Stop()
}

func TestMonitor_MobileNeverGetsFluid(t *testing.T) {
	defer goleak.VerifyNone(t)

	m, sched := newTestMonitor(t,
		WithViewportSource(StaticViewport{Width: 375, UserAgent: "iPhone"}))
	sched.Frames(50, 20*time.Millisecond)

	snap := m.Store().Load()
	require.Equal(t, uint64(1), snap.Tick)
	assert.Equal(t, Mobile, snap.Metrics.DeviceTier)
	assert.InDelta(t, 50.0, snap.Metrics.AverageFPS, 1e-9)
	assert.True(t, snap.Features.EnableAnimations)
	assert.False(t, snap.Features.EnableFluidEffects)
	assert.False(t, snap.Features.Enable3D)
	m.Stop()
}

func TestMonitor_TicksAreMonotonic(t *testing.T) {
	defer goleak.VerifyNone(t)

	m, sched := newTestMonitor(t, WithSampleSize(5))

	var last uint64
	var lastAt time.Time
	for i := 0; i < 20; i++ {
		sched.Frames(30, 40*time.Millisecond)
		snap := m.Store().Load()
		assert.Greater(t, snap.Tick, last)
		assert.True(t, snap.At.After(lastAt))
		last, lastAt = snap.Tick, snap.At
	}
	m.Stop()
}

func TestMonitor_StopHaltsPublishing(t *testing.T) {
	defer goleak.VerifyNone(t)

	m, sched := newTestMonitor(t)
	sched.Frames(63, 16*time.Millisecond)
	require.Equal(t, StateRunning, m.State())
	require.Equal(t, 1, sched.Pending())

	m.Stop()
	stoppedAt := sched.Now()
	before := m.Store().Load()

	assert.Equal(t, StateStopped, m.State())
	assert.Zero(t, sched.Pending(), "pending frame must be cancelled on stop")

	sched.Frames(200, 16*time.Millisecond)
	after := m.Store().Load()
	assert.Equal(t, before.Tick, after.Tick)
	assert.False(t, after.At.After(stoppedAt))

	assert.ErrorIs(t, m.Start(context.Background()), ErrMonitorStopped)
	m.Stop()
}

func TestMonitor_StartTwice(t *testing.T) {
	defer goleak.VerifyNone(t)

	m, _ := newTestMonitor(t)
	assert.ErrorIs(t, m.Start(context.Background()), ErrMonitorRunning)
	m.Stop()
}

func TestMonitor_ContextCancelStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	sched := NewManualScheduler(epoch)
	m := New(WithScheduler(sched))
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, m.Start(ctx))

	sched.Frames(62, 16*time.Millisecond)
	require.Zero(t, m.Store().Load().Tick)

	cancel()
	sched.Frames(2, 16*time.Millisecond)
	assert.Zero(t, m.Store().Load().Tick, "no snapshot after the context is done")
	assert.Zero(t, sched.Pending())

	assert.Eventually(t, func() bool { return m.State() == StateStopped }, time.Second, 5*time.Millisecond)
}

func TestMonitor_NoSchedulerIsNoOp(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := New()
	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, StateRunning, m.State())
	assert.Equal(t, DefaultSnapshot(), m.Store().Load())
	m.Stop()
	assert.Equal(t, StateStopped, m.State())
}

type panickyCapability struct{}

func (panickyCapability) ReadMemory() MemoryReading {
	panic("heap stats gone")
}

func (panickyCapability) Reclaim() {
	panic("no gc")
}

func (panickyCapability) NetworkHint() NetworkHint {
	panic("no connection api")
}

func (panickyCapability) Viewport() (Viewport, bool) {
	panic("no window")
}

func TestMonitor_CapabilityFailuresAreContained(t *testing.T) {
	defer goleak.VerifyNone(t)

	m, sched := newTestMonitor(t,
		WithMemorySource(panickyCapability{}),
		WithNetworkSource(panickyCapability{}),
		WithViewportSource(panickyCapability{}),
		WithWatchdog(time.Second, 1.5))

	assert.NotPanics(t, func() { sched.Frames(63, 16*time.Millisecond) })

	snap := m.Store().Load()
	assert.Equal(t, uint64(1), snap.Tick)
	assert.False(t, snap.Metrics.MemorySupported)
	assert.Equal(t, NetworkUnknown, snap.Metrics.NetworkTier)
	assert.Equal(t, Desktop, snap.Metrics.DeviceTier)
	m.Stop()
}

func TestMonitor_ViewportRetriedUntilMeasurable(t *testing.T) {
	defer goleak.VerifyNone(t)

	vp := &switchableViewport{}
	m, sched := newTestMonitor(t, WithViewportSource(vp))

	sched.Frames(63, 16*time.Millisecond)
	assert.Equal(t, Desktop, m.Store().Metrics().DeviceTier)

	vp.set(Viewport{Width: 600})
	sched.Frames(63, 16*time.Millisecond)
	assert.Equal(t, Tablet, m.Store().Metrics().DeviceTier)

	m.Resize(Viewport{Width: 320})
	sched.Frames(63, 16*time.Millisecond)
	assert.Equal(t, Mobile, m.Store().Metrics().DeviceTier)
	m.Stop()
}

type switchableViewport struct {
	mu sync.Mutex
	vp Viewport
}

func (s *switchableViewport) set(vp Viewport) {
	s.mu.Lock()
	s.vp = vp
	s.mu.Unlock()
}

func (s *switchableViewport) Viewport() (Viewport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vp, s.vp.Width > 0
}

type countingMemory struct {
	mu       sync.Mutex
	usedMB   float64
	reclaims int
}

func (c *countingMemory) ReadMemory() MemoryReading {
	c.mu.Lock()
	defer c.mu.Unlock()
	return MemoryReading{Supported: true, UsedMB: c.usedMB}
}

func (c *countingMemory) Reclaim() {
	c.mu.Lock()
	c.reclaims++
	c.mu.Unlock()
}

func TestMonitor_WatchdogReclaimsUnderPressure(t *testing.T) {
	defer goleak.VerifyNone(t)

	mem := &countingMemory{usedMB: 200}
	m, sched := newTestMonitor(t, WithMemorySource(mem), WithWatchdog(5*time.Second, 1.5))

	sched.Frames(10*63, 16*time.Millisecond)

	mem.mu.Lock()
	reclaims := mem.reclaims
	mem.mu.Unlock()
	assert.Equal(t, 2, reclaims)

	snap := m.Store().Load()
	assert.True(t, snap.LowPerformance)
	assert.False(t, snap.Features.EnableParticles)
	assert.InDelta(t, 0.7, float64(snap.Score), 0.01)
	m.Stop()
}

func TestMonitor_LowPerformanceModeLatches(t *testing.T) {
	defer goleak.VerifyNone(t)

	m, sched := newTestMonitor(t, WithLatch(LatchConfig{EnterAfter: 2, ExitAfter: 2}), WithSampleSize(1))

	sched.Frames(20, 50*time.Millisecond)
	assert.True(t, m.Store().Load().LowPerformance)
	assert.False(t, m.Store().Load().LowPerformanceMode)

	sched.Frames(20, 50*time.Millisecond)
	assert.True(t, m.Store().Load().LowPerformanceMode)

	sched.Frames(63, 16*time.Millisecond)
	assert.False(t, m.Store().Load().LowPerformance)
	assert.True(t, m.Store().Load().LowPerformanceMode)

	sched.Frames(63, 16*time.Millisecond)
	assert.False(t, m.Store().Load().LowPerformanceMode)
	m.Stop()
}

func TestMonitor_SubscribersReceiveSnapshots(t *testing.T) {
	defer goleak.VerifyNone(t)

	m, sched := newTestMonitor(t, WithDispatcherBuffer(8))

	got := make(chan Snapshot, 8)
	unsubscribe := m.Store().Subscribe(ObserverFunc[Snapshot](func(s Snapshot) { got <- s }))

	sched.Frames(63, 16*time.Millisecond)
	select {
	case s := <-got:
		assert.Equal(t, uint64(1), s.Tick)
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}

	unsubscribe()
	unsubscribe()
	sched.Frames(63, 16*time.Millisecond)
	select {
	case s := <-got:
		t.Fatalf("unexpected delivery after unsubscribe: tick %d", s.Tick)
	case <-time.After(50 * time.Millisecond):
	}
	m.Stop()
}

func TestMonitor_TickerScheduler(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := New(
		WithScheduler(NewTickerScheduler(120)),
		WithUpdateInterval(100*time.Millisecond),
		WithMemorySource(RuntimeMemory{}),
	)
	got := make(chan Snapshot, 1)
	m.Store().Subscribe(ObserverFunc[Snapshot](func(s Snapshot) {
		select {
		case got <- s:
		default:
		}
	}))

	require.NoError(t, m.Start(context.Background()))
	select {
	case s := <-got:
		assert.Greater(t, s.Metrics.AverageFPS, 0.0)
		assert.True(t, s.Metrics.MemorySupported)
	case <-time.After(2 * time.Second):
		t.Fatal("ticker scheduler produced no snapshot")
	}
	m.Stop()
}

func BenchmarkMonitor_Frame(b *testing.B) {
	sched := NewManualScheduler(epoch)
	m := New(WithScheduler(sched))
	_ = m.Start(context.Background())
	defer m.Stop()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		sched.Advance(16 * time.Millisecond)
	}
}
