package framegate

import (
	"slices"
	"time"
)

const scale = 1024

// jitterTracker folds per-frame durations into an EMA, a short history of
// EMA values for trend detection, and an optional ring of raw samples for
// percentiles. It is owned by a single Monitor and not safe for concurrent use.
type jitterTracker struct {
	alpha      int64
	alphaComp  int64
	windowSize int
	emaSlice   []int64
	emaNanos   int64

	slope        int64
	drift        int64
	percentDrift float64

	percentileEnabled bool
	samples           []int64
	sampleSize        int
	sampleIndex       int
	sortBuffer        []int64
}

func newJitterTracker(alpha float32, windowSize, sampleSize int) *jitterTracker {
	alpha = clampAlpha(alpha)
	if windowSize < 4 {
		windowSize = 4
	}

	t := &jitterTracker{
		alpha:      int64(alpha * scale),
		windowSize: windowSize,
		emaSlice:   make([]int64, 0, windowSize),
	}
	t.alphaComp = scale - t.alpha

	if sampleSize > 0 {
		if sampleSize < 10 {
			sampleSize = 10
		}
		t.percentileEnabled = true
		t.sampleSize = sampleSize
		t.samples = make([]int64, 0, sampleSize)
		t.sortBuffer = make([]int64, sampleSize)
	}
	return t
}

func clampAlpha(alpha float32) float32 {
	if alpha <= 0 {
		return 0.01
	}
	if alpha >= 1 {
		return 0.99
	}
	return alpha
}

// Process records the duration of one frame.
func (t *jitterTracker) Process(frame time.Duration) {
	if frame <= 0 {
		return
	}
	v := frame.Nanoseconds()

	if len(t.emaSlice) == 0 {
		t.emaNanos = v
	} else {
		t.emaNanos = (t.alpha*v + t.alphaComp*t.emaNanos) >> 10
	}

	if len(t.emaSlice) < t.windowSize {
		t.emaSlice = append(t.emaSlice, t.emaNanos)
	} else {
		copy(t.emaSlice[0:t.windowSize-1], t.emaSlice[1:t.windowSize])
		t.emaSlice[t.windowSize-1] = t.emaNanos
	}

	if t.percentileEnabled {
		if len(t.samples) < t.sampleSize {
			t.samples = append(t.samples, v)
		} else {
			t.samples[t.sampleIndex] = v
			t.sampleIndex = (t.sampleIndex + 1) % t.sampleSize
		}
	}
}

// Stats computes trend and percentiles. It is called once per aggregation
// tick, not per frame.
func (t *jitterTracker) Stats() FrameStats {
	t.calculateTrend()

	stats := FrameStats{
		EMA:          time.Duration(t.emaNanos),
		Slope:        time.Duration(t.slope),
		Drift:        time.Duration(t.drift),
		PercentDrift: t.percentDrift,
	}
	stats.P50, stats.P95, stats.P99 = t.percentiles()
	return stats
}

func (t *jitterTracker) calculateTrend() {
	n := len(t.emaSlice)
	if n < 4 {
		t.slope, t.drift, t.percentDrift = 0, 0, 0
		return
	}

	t.slope = (t.emaSlice[n-1] - t.emaSlice[0]) / int64(n-1)

	mid := n >> 1
	var oldSum, newSum int64
	for _, v := range t.emaSlice[:mid] {
		oldSum += v
	}
	for _, v := range t.emaSlice[mid:] {
		newSum += v
	}

	historical := oldSum / int64(mid)
	recent := newSum / int64(n-mid)
	t.drift = recent - historical

	if historical != 0 {
		t.percentDrift = float64(t.drift) / float64(historical) * 100
	} else {
		t.percentDrift = 0
	}
}

func (t *jitterTracker) percentiles() (p50, p95, p99 time.Duration) {
	n := len(t.samples)
	if !t.percentileEnabled || n < 10 {
		return 0, 0, 0
	}

	sorted := t.sortBuffer[:n]
	copy(sorted, t.samples)
	slices.Sort(sorted)

	at := func(pct int) time.Duration {
		i := n * pct / 100
		if i >= n {
			i = n - 1
		}
		return time.Duration(sorted[i])
	}
	return at(50), at(95), at(99)
}
