package framegate

import "strconv"

// RootClasses returns the document-level class names describing snap,
// in a stable order: performance level, device tier, network tier (omitted
// when unknown) and the low-performance-mode marker when the latch is active.
func RootClasses(snap Snapshot) []string {
	classes := make([]string, 0, 4)
	classes = append(classes, "performance-"+snap.Level.String())
	classes = append(classes, "device-"+snap.Metrics.DeviceTier.String())
	if snap.Metrics.NetworkTier != NetworkUnknown {
		classes = append(classes, "network-"+snap.Metrics.NetworkTier.String())
	}
	if snap.LowPerformanceMode {
		classes = append(classes, "low-performance-mode")
	}
	return classes
}

// RootVariables returns custom properties exposing the score and fps.
func RootVariables(snap Snapshot) map[string]string {
	return map[string]string{
		"--performance-level": strconv.FormatFloat(float64(snap.Score), 'f', -1, 64),
		"--fps":               strconv.Itoa(int(snap.Metrics.AverageFPS + 0.5)),
	}
}
