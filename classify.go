package framegate

import (
	"math"
	"strings"
)

// Thresholds configures the score and the low-performance predicate.
// The defaults are product tuning values, not measured limits.
type Thresholds struct {
	TargetFPS         float64
	FPSThreshold      float64
	MemoryThresholdMB float64
	FPSWeight         float64
	MemoryWeight      float64
}

// DefaultThresholds returns 60 fps target, 45 fps / 100MB low-performance
// limits and a 0.7 / 0.3 fps / memory weighting.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TargetFPS:         60,
		FPSThreshold:      45,
		MemoryThresholdMB: 100,
		FPSWeight:         0.7,
		MemoryWeight:      0.3,
	}
}

// DeviceThresholds configures device classification.
type DeviceThresholds struct {
	MobileWidth int
	TabletWidth int
	// MobileHints are matched case-insensitively against the user agent.
	MobileHints []string
}

// DefaultDeviceThresholds returns the 480 / 768 px breakpoints.
func DefaultDeviceThresholds() DeviceThresholds {
	return DeviceThresholds{
		MobileWidth: 480,
		TabletWidth: 768,
		MobileHints: []string{"mobile", "android", "iphone", "ipad", "tablet"},
	}
}

// ComputeScore combines normalised fps and memory headroom into a Score.
// A memoryMB of zero (unsupported platform) yields full memory headroom.
func ComputeScore(fps, memoryMB float64, t Thresholds) Score {
	target := t.TargetFPS
	if target <= 0 {
		target = defaultFPS
	}
	fpsScore := math.Min(math.Max(fps, 0)/target, 1)

	memoryScore := 1.0
	if t.MemoryThresholdMB > 0 {
		memoryScore = math.Max(1-memoryMB/t.MemoryThresholdMB, 0)
	}

	return Score(clamp01(fpsScore*t.FPSWeight + memoryScore*t.MemoryWeight))
}

// IsLowPerformance reports whether fps or memory cross their limits.
func IsLowPerformance(fps, memoryMB float64, t Thresholds) bool {
	return fps < t.FPSThreshold || memoryMB > t.MemoryThresholdMB
}

// Evaluate scores m and derives its features as a single tick would.
// Tick, At and LowPerformanceMode are left to the caller.
func Evaluate(m Metrics, t Thresholds, f FeatureThresholds, b LevelBounds) Snapshot {
	score := ComputeScore(m.AverageFPS, m.MemoryUsageMB, t)
	return Snapshot{
		Metrics:        m,
		Score:          score,
		Level:          score.LevelWithBounds(b),
		LowPerformance: IsLowPerformance(m.AverageFPS, m.MemoryUsageMB, t),
		Features:       DeriveFeatures(m, f),
	}
}

// ClassifyDevice maps a viewport width and user agent to a DeviceTier.
// A width of zero or less means the viewport is not laid out yet; the
// result is Desktop and ok is false so callers can retry later.
func ClassifyDevice(width int, userAgent string, t DeviceThresholds) (tier DeviceTier, ok bool) {
	if width <= 0 {
		return Desktop, false
	}

	if width < t.TabletWidth || matchesAny(strings.ToLower(userAgent), t.MobileHints) {
		if width < t.MobileWidth {
			return Mobile, true
		}
		return Tablet, true
	}
	return Desktop, true
}

func matchesAny(s string, hints []string) bool {
	for _, h := range hints {
		if h != "" && strings.Contains(s, h) {
			return true
		}
	}
	return false
}

// ClassifyNetwork maps a connection hint to a NetworkTier.
func ClassifyNetwork(hint NetworkHint) NetworkTier {
	if !hint.Supported {
		return NetworkUnknown
	}
	switch strings.ToLower(hint.EffectiveType) {
	case "slow-2g", "2g", "3g":
		return NetworkSlow
	case "":
		return NetworkUnknown
	default:
		return NetworkFast
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
