package framegate

const (
	minWindowSize = 1
	maxWindowSize = 600
)

// RollingWindow is a fixed-capacity FIFO of the most recent samples.
// It is not safe for concurrent use; the Monitor owns its windows.
type RollingWindow struct {
	values []float64
	size   int
}

// NewRollingWindow creates a window holding at most size samples.
// Sizes outside [1, 600] are clamped.
func NewRollingWindow(size int) *RollingWindow {
	size = clampWindowSize(size)
	return &RollingWindow{
		values: make([]float64, 0, size),
		size:   size,
	}
}

func clampWindowSize(size int) int {
	if size < minWindowSize {
		return minWindowSize
	}
	if size > maxWindowSize {
		return maxWindowSize
	}
	return size
}

// Push appends v, evicting the oldest sample once the window is full.
func (w *RollingWindow) Push(v float64) {
	if len(w.values) < w.size {
		w.values = append(w.values, v)
		return
	}

	copy(w.values[0:w.size-1], w.values[1:w.size])
	w.values[w.size-1] = v
}

// Len returns the number of samples currently held.
func (w *RollingWindow) Len() int { return len(w.values) }

// Cap returns the configured capacity.
func (w *RollingWindow) Cap() int { return w.size }

// Mean returns the arithmetic mean of the window, or 0 when empty.
func (w *RollingWindow) Mean() float64 {
	n := len(w.values)
	if n == 0 {
		return 0
	}
	var sum float64
	for _, v := range w.values {
		sum += v
	}
	return sum / float64(n)
}

// Values returns a copy of the samples, oldest first.
func (w *RollingWindow) Values() []float64 {
	out := make([]float64, len(w.values))
	copy(out, w.values)
	return out
}

// Reset drops all samples.
func (w *RollingWindow) Reset() {
	w.values = w.values[:0]
}
