package framegate

import "time"

type monitorConfig struct {
	source         string
	sampleSize     int
	updateInterval time.Duration

	thresholds        Thresholds
	featureThresholds FeatureThresholds
	deviceThresholds  DeviceThresholds
	levelBounds       LevelBounds
	latch             LatchConfig

	jitterAlpha      float32
	jitterWindow     int
	jitterPercentile int

	watchdogInterval time.Duration
	watchdogFactor   float64

	dispatcherBuffer int

	scheduler FrameScheduler
	memory    MemorySource
	network   NetworkSource
	viewport  ViewportSource

	logger  Logger
	metrics MetricsCollector
	tracer  Tracer
}

func defaultMonitorConfig() monitorConfig {
	return monitorConfig{
		source:            "local",
		sampleSize:        60,
		updateInterval:    time.Second,
		thresholds:        DefaultThresholds(),
		featureThresholds: DefaultFeatureThresholds(),
		deviceThresholds:  DefaultDeviceThresholds(),
		levelBounds:       DefaultLevelBounds(),
		latch:             DefaultLatchConfig(),
		jitterAlpha:       0.1,
		jitterWindow:      20,
		jitterPercentile:  240,
		watchdogInterval:  5 * time.Second,
		watchdogFactor:    1.5,
		dispatcherBuffer:  16,
		memory:            UnsupportedMemory{},
		network:           UnsupportedNetwork{},
		viewport:          NoViewport{},
		logger:            NoOpLogger{},
		metrics:           NoOpMetrics{},
		tracer:            NoOpTracer{},
	}
}

// Option configures a Monitor.
type Option func(*monitorConfig)

// WithSource names the monitor in logs and metrics.
func WithSource(name string) Option {
	return func(c *monitorConfig) {
		if name != "" {
			c.source = name
		}
	}
}

// WithSampleSize sets the rolling window capacity. Values outside [1, 600]
// are clamped.
func WithSampleSize(n int) Option {
	n = clampWindowSize(n)
	return func(c *monitorConfig) {
		c.sampleSize = n
	}
}

// WithUpdateInterval sets how much frame time must elapse between
// aggregation ticks. Values below 50ms are clamped to 50ms.
func WithUpdateInterval(d time.Duration) Option {
	if d < 50*time.Millisecond {
		d = 50 * time.Millisecond
	}
	return func(c *monitorConfig) {
		c.updateInterval = d
	}
}

// WithThresholds sets score weights and low-performance limits.
func WithThresholds(t Thresholds) Option {
	return func(c *monitorConfig) {
		c.thresholds = t
	}
}

// WithFeatureThresholds sets the feature derivation cut-offs.
func WithFeatureThresholds(t FeatureThresholds) Option {
	return func(c *monitorConfig) {
		c.featureThresholds = t
	}
}

// WithDeviceThresholds sets the device breakpoints.
func WithDeviceThresholds(t DeviceThresholds) Option {
	return func(c *monitorConfig) {
		c.deviceThresholds = t
	}
}

// WithLevelBounds sets the score-to-level split.
func WithLevelBounds(b LevelBounds) Option {
	return func(c *monitorConfig) {
		c.levelBounds = b
	}
}

// WithLatch configures low performance mode hysteresis.
func WithLatch(cfg LatchConfig) Option {
	return func(c *monitorConfig) {
		c.latch = cfg
	}
}

// WithJitter configures frame-time tracking. alpha is the EMA smoothing
// factor, window the number of EMA values kept for trend detection and
// percentiles the raw sample ring size (0 disables percentiles).
func WithJitter(alpha float32, window, percentiles int) Option {
	return func(c *monitorConfig) {
		c.jitterAlpha = alpha
		c.jitterWindow = window
		c.jitterPercentile = percentiles
	}
}

// WithWatchdog sets how often memory pressure is checked and the multiple
// of the memory threshold that triggers a reclaim. An interval of zero
// disables the watchdog.
func WithWatchdog(interval time.Duration, factor float64) Option {
	return func(c *monitorConfig) {
		c.watchdogInterval = interval
		if factor > 0 {
			c.watchdogFactor = factor
		}
	}
}

// WithDispatcherBuffer sets the subscriber delivery buffer size.
func WithDispatcherBuffer(n int) Option {
	return func(c *monitorConfig) {
		c.dispatcherBuffer = n
	}
}

// WithScheduler sets the frame scheduler. A nil scheduler makes the
// monitor a no-op that keeps serving the default snapshot.
func WithScheduler(s FrameScheduler) Option {
	return func(c *monitorConfig) {
		c.scheduler = s
	}
}

// WithMemorySource sets the heap statistics capability.
func WithMemorySource(p MemorySource) Option {
	return func(c *monitorConfig) {
		if p != nil {
			c.memory = p
		}
	}
}

// WithNetworkSource sets the connection hint capability.
func WithNetworkSource(p NetworkSource) Option {
	return func(c *monitorConfig) {
		if p != nil {
			c.network = p
		}
	}
}

// WithViewportSource sets the viewport capability.
func WithViewportSource(p ViewportSource) Option {
	return func(c *monitorConfig) {
		if p != nil {
			c.viewport = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(c *monitorConfig) {
		c.logger = loggerOrNoOp(l)
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m MetricsCollector) Option {
	return func(c *monitorConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracer sets the tick tracer.
func WithTracer(t Tracer) Option {
	return func(c *monitorConfig) {
		if t != nil {
			c.tracer = t
		}
	}
}
