package framegate

import "time"

// Aggregator folds a frame count over an elapsed interval into rolling
// fps and frame-time windows.
type Aggregator struct {
	fps       *RollingWindow
	frameTime *RollingWindow
}

// NewAggregator creates an aggregator whose windows hold sampleSize ticks.
func NewAggregator(sampleSize int) *Aggregator {
	return &Aggregator{
		fps:       NewRollingWindow(sampleSize),
		frameTime: NewRollingWindow(sampleSize),
	}
}

// Fold records one interval and returns the window averages. An interval
// with no frames or no elapsed time is not recorded; the averages then
// come from earlier intervals, or the 60 fps defaults when there are none.
func (a *Aggregator) Fold(frames int, elapsed time.Duration) (avgFPS, avgFrameTimeMs float64) {
	elapsedMs := float64(elapsed) / float64(time.Millisecond)
	if frames > 0 && elapsedMs > 0 {
		a.fps.Push(float64(frames) * 1000 / elapsedMs)
		a.frameTime.Push(elapsedMs / float64(frames))
	}
	return a.Averages()
}

// Averages returns the current window averages without recording.
func (a *Aggregator) Averages() (avgFPS, avgFrameTimeMs float64) {
	if a.fps.Len() == 0 {
		return defaultFPS, defaultFrameTimeMs
	}
	return a.fps.Mean(), a.frameTime.Mean()
}

// Len returns the number of intervals currently in the window.
func (a *Aggregator) Len() int { return a.fps.Len() }
