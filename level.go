package framegate

import "fmt"

// Level is the coarse performance bucket derived from a Score.
type Level int

const (
	LevelHigh Level = iota
	LevelMedium
	LevelLow
)

func (l Level) String() string {
	switch l {
	case LevelHigh:
		return "high"
	case LevelMedium:
		return "medium"
	case LevelLow:
		return "low"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(b []byte) error {
	switch string(b) {
	case "high":
		*l = LevelHigh
	case "medium":
		*l = LevelMedium
	case "low":
		*l = LevelLow
	default:
		return fmt.Errorf("framegate: unknown level %q", b)
	}
	return nil
}

// LevelBounds splits the score range into levels. Scores below Low map to
// LevelLow, scores below Medium map to LevelMedium, the rest to LevelHigh.
type LevelBounds struct {
	Low    float64
	Medium float64
}

// DefaultLevelBounds returns the 0.4 / 0.7 split.
func DefaultLevelBounds() LevelBounds {
	return LevelBounds{Low: 0.4, Medium: 0.7}
}

// Level buckets the score using default bounds.
func (s Score) Level() Level {
	return s.LevelWithBounds(DefaultLevelBounds())
}

// LevelWithBounds buckets the score using custom bounds.
func (s Score) LevelWithBounds(b LevelBounds) Level {
	switch {
	case float64(s) < b.Low:
		return LevelLow
	case float64(s) < b.Medium:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// DeviceTier is a coarse device class derived from viewport and device hints.
type DeviceTier int

const (
	Desktop DeviceTier = iota
	Tablet
	Mobile
)

func (d DeviceTier) String() string {
	switch d {
	case Desktop:
		return "desktop"
	case Tablet:
		return "tablet"
	case Mobile:
		return "mobile"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d DeviceTier) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DeviceTier) UnmarshalText(b []byte) error {
	switch string(b) {
	case "desktop":
		*d = Desktop
	case "tablet":
		*d = Tablet
	case "mobile":
		*d = Mobile
	default:
		return fmt.Errorf("framegate: unknown device tier %q", b)
	}
	return nil
}

// NetworkTier is a coarse connection class. NetworkUnknown is used whenever
// the platform does not expose a connection hint.
type NetworkTier int

const (
	NetworkUnknown NetworkTier = iota
	NetworkSlow
	NetworkFast
)

func (n NetworkTier) String() string {
	switch n {
	case NetworkSlow:
		return "slow"
	case NetworkFast:
		return "fast"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (n NetworkTier) MarshalText() ([]byte, error) { return []byte(n.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *NetworkTier) UnmarshalText(b []byte) error {
	switch string(b) {
	case "slow":
		*n = NetworkSlow
	case "fast":
		*n = NetworkFast
	case "unknown", "":
		*n = NetworkUnknown
	default:
		return fmt.Errorf("framegate: unknown network tier %q", b)
	}
	return nil
}

// Quality is a three-step fidelity setting for images and animations.
type Quality int

const (
	QualityLow Quality = iota
	QualityMedium
	QualityHigh
)

func (q Quality) String() string {
	switch q {
	case QualityLow:
		return "low"
	case QualityMedium:
		return "medium"
	case QualityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (q Quality) MarshalText() ([]byte, error) { return []byte(q.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (q *Quality) UnmarshalText(b []byte) error {
	switch string(b) {
	case "low":
		*q = QualityLow
	case "medium":
		*q = QualityMedium
	case "high":
		*q = QualityHigh
	default:
		return fmt.Errorf("framegate: unknown quality %q", b)
	}
	return nil
}
