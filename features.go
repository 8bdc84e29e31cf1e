package framegate

import "time"

// FeatureThresholds are the fps and memory cut-offs used to derive a
// FeatureConfig. Every flag is a strict "greater than" step in fps, so a
// higher frame rate never produces a more conservative config.
type FeatureThresholds struct {
	AnimationsFPS     float64
	ThreeDFPS         float64
	ParticlesFPS      float64
	ParticlesMemoryMB float64
	FluidFPS          float64
	HighQualityFPS    float64
	MediumQualityFPS  float64
}

// DefaultFeatureThresholds returns the stock cut-offs.
func DefaultFeatureThresholds() FeatureThresholds {
	return FeatureThresholds{
		AnimationsFPS:     30,
		ThreeDFPS:         45,
		ParticlesFPS:      50,
		ParticlesMemoryMB: 100,
		FluidFPS:          40,
		HighQualityFPS:    50,
		MediumQualityFPS:  30,
	}
}

// DeriveFeatures maps metrics to feature flags.
func DeriveFeatures(m Metrics, t FeatureThresholds) FeatureConfig {
	fps := m.AverageFPS
	quality := qualityFor(fps, t)

	return FeatureConfig{
		EnableAnimations:   fps > t.AnimationsFPS,
		Enable3D:           fps > t.ThreeDFPS && m.DeviceTier == Desktop,
		EnableParticles:    fps > t.ParticlesFPS && m.MemoryUsageMB < t.ParticlesMemoryMB,
		EnableFluidEffects: fps > t.FluidFPS && m.DeviceTier != Mobile,
		ImageQuality:       quality,
		AnimationQuality:   quality,
	}
}

func qualityFor(fps float64, t FeatureThresholds) Quality {
	switch {
	case fps > t.HighQualityFPS:
		return QualityHigh
	case fps > t.MediumQualityFPS:
		return QualityMedium
	default:
		return QualityLow
	}
}

// ImageQualityPercent returns the encoder quality to request for an image.
// High quality keeps the caller's preferred value.
func ImageQualityPercent(q Quality, preferred int) int {
	switch q {
	case QualityHigh:
		return preferred
	case QualityMedium:
		return 60
	default:
		return 40
	}
}

// MeshSegments returns width and height segment counts for a procedural
// mesh at the given score.
func MeshSegments(s Score) (width, height int) {
	switch {
	case s < 0.5:
		return 24, 12
	case s < 0.8:
		return 32, 16
	default:
		return 64, 32
	}
}

// PointerThrottle returns how often pointer-driven effects should update.
func PointerThrottle(s Score) time.Duration {
	if s > 0.7 {
		return 16 * time.Millisecond
	}
	return 32 * time.Millisecond
}
