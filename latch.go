package framegate

import (
	"sync"
	"time"
)

// LatchState is the state of the low-performance-mode latch.
type LatchState int

const (
	LatchNormal LatchState = iota
	LatchDegraded
	LatchRecovering
)

func (s LatchState) String() string {
	switch s {
	case LatchNormal:
		return "normal"
	case LatchDegraded:
		return "degraded"
	case LatchRecovering:
		return "recovering"
	default:
		return "unknown"
	}
}

// LatchConfig configures hysteresis for low performance mode.
type LatchConfig struct {
	// EnterAfter consecutive low ticks switch the mode on.
	EnterAfter int
	// ExitAfter consecutive healthy ticks switch it off again.
	ExitAfter int
	// MinDwell is the minimum time between two transitions.
	MinDwell time.Duration
}

// DefaultLatchConfig enters after 2 low ticks and exits after 3 healthy ones.
func DefaultLatchConfig() LatchConfig {
	return LatchConfig{
		EnterAfter: 2,
		ExitAfter:  3,
		MinDwell:   2 * time.Second,
	}
}

// Latch debounces the per-tick low-performance predicate into a stable
// mode so that consumers and logs do not flap on a single noisy tick.
type Latch struct {
	mu sync.RWMutex

	state         LatchState
	lowCount      int
	goodCount     int
	lastStateTime time.Time

	cfg LatchConfig
}

// NewLatch creates a latch in LatchNormal.
func NewLatch(cfg LatchConfig) *Latch {
	if cfg.EnterAfter < 1 {
		cfg.EnterAfter = 1
	}
	if cfg.ExitAfter < 1 {
		cfg.ExitAfter = 1
	}
	return &Latch{state: LatchNormal, cfg: cfg}
}

// Observe feeds one tick's predicate and returns the resulting state and
// whether low performance mode was switched on or off by it.
func (l *Latch) Observe(low bool, now time.Time) (LatchState, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.state
	dwellOK := l.lastStateTime.IsZero() || now.Sub(l.lastStateTime) >= l.cfg.MinDwell

	switch l.state {
	case LatchNormal:
		if !low {
			l.lowCount = 0
			break
		}
		l.lowCount++
		if l.lowCount >= l.cfg.EnterAfter && dwellOK {
			l.transition(LatchDegraded, now)
		}

	case LatchDegraded:
		if low {
			break
		}
		l.goodCount = 1
		if l.goodCount >= l.cfg.ExitAfter && dwellOK {
			l.transition(LatchNormal, now)
		} else {
			l.state = LatchRecovering
		}

	case LatchRecovering:
		if low {
			l.state = LatchDegraded
			l.goodCount = 0
			break
		}
		l.goodCount++
		if l.goodCount >= l.cfg.ExitAfter && dwellOK {
			l.transition(LatchNormal, now)
		}
	}

	return l.state, (l.state != LatchNormal) != (prev != LatchNormal)
}

func (l *Latch) transition(to LatchState, now time.Time) {
	l.state = to
	l.lowCount = 0
	l.goodCount = 0
	l.lastStateTime = now
}

// State returns the current state.
func (l *Latch) State() LatchState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Active reports whether low performance mode is on. Recovering counts as
// on until enough healthy ticks have been seen.
func (l *Latch) Active() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state != LatchNormal
}

// Reset returns the latch to LatchNormal.
func (l *Latch) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = LatchNormal
	l.lowCount = 0
	l.goodCount = 0
	l.lastStateTime = time.Time{}
}
