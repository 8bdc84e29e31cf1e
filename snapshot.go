package framegate

import "time"

// Score is the continuous performance score in [0, 1].
type Score float64

// FrameStats summarises per-frame durations between aggregation ticks.
type FrameStats struct {
	EMA          time.Duration `json:"ema"`
	Slope        time.Duration `json:"slope"`
	Drift        time.Duration `json:"drift"`
	PercentDrift float64       `json:"percentDrift"`

	P50 time.Duration `json:"p50"`
	P95 time.Duration `json:"p95"`
	P99 time.Duration `json:"p99"`
}

// Metrics is a point-in-time view of the aggregated frame timings and the
// static platform signals.
type Metrics struct {
	AverageFPS         float64     `json:"averageFps"`
	AverageFrameTimeMs float64     `json:"averageFrameTimeMs"`
	MemoryUsageMB      float64     `json:"memoryUsageMb"`
	MemorySupported    bool        `json:"memorySupported"`
	DeviceTier         DeviceTier  `json:"deviceTier"`
	NetworkTier        NetworkTier `json:"networkTier"`
	Jitter             FrameStats  `json:"jitter"`
}

// FeatureConfig holds the switches consumers use to pick a render path.
type FeatureConfig struct {
	EnableAnimations   bool    `json:"enableAnimations"`
	Enable3D           bool    `json:"enable3D"`
	EnableParticles    bool    `json:"enableParticles"`
	EnableFluidEffects bool    `json:"enableFluidEffects"`
	ImageQuality       Quality `json:"imageQuality"`
	AnimationQuality   Quality `json:"animationQuality"`
}

// Snapshot is the unit published by a Monitor. Published snapshots are
// never modified; a new tick replaces the whole value.
type Snapshot struct {
	Tick               uint64        `json:"tick"`
	At                 time.Time     `json:"at"`
	Metrics            Metrics       `json:"metrics"`
	Score              Score         `json:"score"`
	Level              Level         `json:"level"`
	LowPerformance     bool          `json:"lowPerformance"`
	LowPerformanceMode bool          `json:"lowPerformanceMode"`
	Features           FeatureConfig `json:"features"`
}

// DefaultSnapshot is what readers see before the first tick lands.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		Metrics: Metrics{
			AverageFPS:         defaultFPS,
			AverageFrameTimeMs: defaultFrameTimeMs,
			DeviceTier:         Desktop,
			NetworkTier:        NetworkUnknown,
		},
		Score: 1,
		Level: LevelHigh,
		Features: FeatureConfig{
			EnableAnimations:   true,
			Enable3D:           true,
			EnableParticles:    true,
			EnableFluidEffects: true,
			ImageQuality:       QualityHigh,
			AnimationQuality:   QualityHigh,
		},
	}
}

const (
	defaultFPS         = 60
	defaultFrameTimeMs = 16.67
)
