package framegate

// Gate decides whether an expensive component should render in full or
// fall back to its static variant.
type Gate struct {
	MinScore       Score
	RequireDesktop bool
	Require3D      bool
}

// DefaultGate requires a score of 0.3 and nothing else.
func DefaultGate() Gate {
	return Gate{MinScore: 0.3}
}

// Allow reports whether the full render path may be used for snap.
func (g Gate) Allow(snap Snapshot) bool {
	if snap.Score < g.MinScore {
		return false
	}
	if g.RequireDesktop && snap.Metrics.DeviceTier != Desktop {
		return false
	}
	if g.Require3D && !snap.Features.Enable3D {
		return false
	}
	return true
}

// Choose returns full when the gate allows snap, fallback otherwise.
func Choose[T any](g Gate, snap Snapshot, full, fallback T) T {
	if g.Allow(snap) {
		return full
	}
	return fallback
}
