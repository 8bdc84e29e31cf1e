package framegate

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrMonitorStopped is returned by Start once a monitor has been stopped.
	// A stopped monitor cannot be restarted; create a new one.
	ErrMonitorStopped = errors.New("framegate: monitor stopped")
	// ErrMonitorRunning is returned by Start on a running monitor.
	ErrMonitorRunning = errors.New("framegate: monitor already running")
)

// State is the lifecycle state of a Monitor.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Monitor samples frames from a FrameScheduler, aggregates them on a fixed
// interval and publishes a new Snapshot to its Store on every tick.
//
// The frame callback, aggregation and publish all run under one mutex, so
// Stop is synchronous: once it returns no further snapshot is published.
type Monitor struct {
	cfg   monitorConfig
	store *Store
	latch *Latch

	mu           sync.Mutex
	state        State
	ctx          context.Context
	stopAfter    func() bool
	gen          uint64
	pending      FrameHandle
	hasPending   bool
	frames       int
	lastTick     time.Time
	lastFrame    time.Time
	lastWatchdog time.Time
	tick         uint64
	aggregator   *Aggregator
	jitter       *jitterTracker
	device       DeviceTier
	deviceKnown  bool

	lastDropped uint64
	lastTotal   uint64
}

// New creates an idle monitor.
func New(opts ...Option) *Monitor {
	cfg := defaultMonitorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Monitor{
		cfg:        cfg,
		store:      NewStore(cfg.dispatcherBuffer, cfg.logger),
		latch:      NewLatch(cfg.latch),
		state:      StateIdle,
		ctx:        context.Background(),
		aggregator: NewAggregator(cfg.sampleSize),
		jitter:     newJitterTracker(cfg.jitterAlpha, cfg.jitterWindow, cfg.jitterPercentile),
		device:     Desktop,
	}
}

// Store returns the snapshot store the monitor writes to.
func (m *Monitor) Store() *Store { return m.store }

// Source returns the monitor's name.
func (m *Monitor) Source() string { return m.cfg.source }

// State returns the lifecycle state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start begins frame sampling. The monitor stops by itself when ctx is done.
// Without a scheduler Start succeeds but nothing is sampled and the store
// keeps serving the default snapshot.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateStopped:
		return ErrMonitorStopped
	case StateRunning:
		return ErrMonitorRunning
	}

	m.state = StateRunning
	m.ctx = ctx
	m.store.open()
	m.classifyDeviceLocked()
	m.stopAfter = context.AfterFunc(ctx, m.Stop)

	if m.cfg.scheduler == nil {
		m.cfg.logger.DebugContext(ctx, "frame scheduler unavailable, serving default snapshot",
			"source", m.cfg.source)
		return nil
	}

	now := m.cfg.scheduler.Now()
	m.lastTick = now
	m.lastFrame = now
	m.lastWatchdog = now
	m.requestFrameLocked()
	return nil
}

// Stop cancels the pending frame and stops publishing. It is safe to call
// more than once and from any goroutine except a subscriber's Process,
// since Stop waits for subscriber delivery to wind down.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.state == StateStopped {
		m.mu.Unlock()
		return
	}
	m.state = StateStopped
	if m.hasPending {
		m.cfg.scheduler.CancelFrame(m.pending)
		m.hasPending = false
	}
	stopAfter := m.stopAfter
	m.stopAfter = nil
	ctx := m.ctx
	m.mu.Unlock()

	if stopAfter != nil {
		stopAfter()
	}
	m.store.close()
	m.cfg.logger.DebugContext(ctx, "monitor stopped", "source", m.cfg.source)
}

// Resize reclassifies the device tier from a new viewport. It takes effect
// on the next tick.
func (m *Monitor) Resize(vp Viewport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyViewportLocked(vp, true)
}

func (m *Monitor) requestFrameLocked() {
	m.gen++
	gen := m.gen
	m.pending = m.cfg.scheduler.RequestFrame(func(now time.Time) {
		m.onFrame(gen, now)
	})
	m.hasPending = true
}

func (m *Monitor) onFrame(gen uint64, now time.Time) {
	m.mu.Lock()
	if m.state != StateRunning || gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.hasPending = false
	// A done context counts as stopped even before the deferred Stop runs.
	if m.ctx.Err() != nil {
		m.mu.Unlock()
		return
	}

	m.frames++
	m.jitter.Process(now.Sub(m.lastFrame))
	m.lastFrame = now

	var (
		snap        Snapshot
		published   bool
		modeChanged bool
	)
	if now.Sub(m.lastTick) >= m.cfg.updateInterval {
		snap, modeChanged = m.aggregateLocked(now)
		published = m.store.publish(snap)
	}
	reclaim := m.watchdogDueLocked(now)

	m.requestFrameLocked()
	ctx := m.ctx
	m.mu.Unlock()

	if reclaim {
		m.reclaim(ctx)
	}
	if published {
		m.report(ctx, snap, modeChanged)
	}
}

func (m *Monitor) aggregateLocked(now time.Time) (Snapshot, bool) {
	avgFPS, avgFrameTime := m.aggregator.Fold(m.frames, now.Sub(m.lastTick))
	m.frames = 0
	m.lastTick = now

	if !m.deviceKnown {
		m.classifyDeviceLocked()
	}
	mem := m.readMemory()
	usedMB := 0.0
	if mem.Supported {
		usedMB = mem.UsedMB
	}

	metrics := Metrics{
		AverageFPS:         avgFPS,
		AverageFrameTimeMs: avgFrameTime,
		MemoryUsageMB:      usedMB,
		MemorySupported:    mem.Supported,
		DeviceTier:         m.device,
		NetworkTier:        ClassifyNetwork(m.readNetwork()),
		Jitter:             m.jitter.Stats(),
	}

	snap := Evaluate(metrics, m.cfg.thresholds, m.cfg.featureThresholds, m.cfg.levelBounds)
	state, changed := m.latch.Observe(snap.LowPerformance, now)

	m.tick++
	snap.Tick = m.tick
	snap.At = now
	snap.LowPerformanceMode = state != LatchNormal
	return snap, changed
}

func (m *Monitor) classifyDeviceLocked() {
	vp, ok := m.readViewport()
	if !ok {
		m.cfg.logger.DebugContext(m.ctx, "viewport not measurable, retrying next tick",
			"source", m.cfg.source)
		return
	}
	m.applyViewportLocked(vp, false)
}

func (m *Monitor) applyViewportLocked(vp Viewport, resized bool) {
	tier, ok := ClassifyDevice(vp.Width, vp.UserAgent, m.cfg.deviceThresholds)
	if !ok {
		m.cfg.logger.DebugContext(m.ctx, "viewport has no size, keeping device tier",
			"source", m.cfg.source, "tier", m.device.String())
		return
	}
	if resized && tier != m.device {
		m.cfg.logger.DebugContext(m.ctx, "device tier changed",
			"source", m.cfg.source, "from", m.device.String(), "to", tier.String())
	}
	m.device = tier
	m.deviceKnown = true
}

func (m *Monitor) report(ctx context.Context, snap Snapshot, modeChanged bool) {
	src := m.cfg.source
	m.cfg.metrics.RecordSnapshot(ctx, src, snap)
	m.cfg.tracer.TraceTick(ctx, src, snap)

	dropped, total := m.store.DispatcherStats()
	m.mu.Lock()
	droppedDelta, totalDelta := dropped-m.lastDropped, total-m.lastTotal
	m.lastDropped, m.lastTotal = dropped, total
	m.mu.Unlock()
	if droppedDelta > 0 || totalDelta > 0 {
		m.cfg.metrics.RecordDispatcherStats(droppedDelta, totalDelta)
	}

	if modeChanged {
		m.cfg.metrics.RecordModeTransition(src, snap.LowPerformanceMode)
		msg := "low performance mode off"
		if snap.LowPerformanceMode {
			msg = "low performance mode on"
		}
		m.cfg.logger.InfoContext(ctx, msg,
			"source", src,
			"fps", snap.Metrics.AverageFPS,
			"memory_mb", snap.Metrics.MemoryUsageMB,
			"score", float64(snap.Score))
	}

	m.cfg.logger.DebugContext(ctx, "performance tick",
		"source", src,
		"tick", snap.Tick,
		"fps", snap.Metrics.AverageFPS,
		"frame_ms", snap.Metrics.AverageFrameTimeMs,
		"score", float64(snap.Score),
		"level", snap.Level.String(),
		"device", snap.Metrics.DeviceTier.String(),
		"network", snap.Metrics.NetworkTier.String())
}
