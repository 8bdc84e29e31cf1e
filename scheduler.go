package framegate

import (
	"sync"
	"time"
)

// FrameFunc is invoked once per frame with the frame timestamp.
type FrameFunc func(now time.Time)

// FrameHandle identifies a pending frame request.
type FrameHandle uint64

// FrameScheduler is the "call me before the next repaint" primitive.
// A request fires at most once; callers re-request from inside the callback.
type FrameScheduler interface {
	Now() time.Time
	RequestFrame(fn FrameFunc) FrameHandle
	CancelFrame(h FrameHandle)
}

// DefaultFrameRate is the repaint rate TickerScheduler emulates.
const DefaultFrameRate = 60

// TickerScheduler drives frame callbacks from a time.Ticker on its own
// goroutine. Callbacks run serially on that goroutine. The goroutine only
// runs while at least one request is pending.
type TickerScheduler struct {
	interval time.Duration

	mu      sync.Mutex
	nextID  FrameHandle
	pending map[FrameHandle]FrameFunc
	running bool
}

// NewTickerScheduler creates a scheduler firing at fps frames per second.
func NewTickerScheduler(fps int) *TickerScheduler {
	if fps <= 0 {
		fps = DefaultFrameRate
	}
	return &TickerScheduler{
		interval: time.Second / time.Duration(fps),
		pending:  make(map[FrameHandle]FrameFunc),
	}
}

// Now implements FrameScheduler.
func (s *TickerScheduler) Now() time.Time { return time.Now() }

// RequestFrame implements FrameScheduler.
func (s *TickerScheduler) RequestFrame(fn FrameFunc) FrameHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.pending[id] = fn

	if !s.running {
		s.running = true
		go s.loop()
	}
	return id
}

// CancelFrame implements FrameScheduler.
func (s *TickerScheduler) CancelFrame(h FrameHandle) {
	s.mu.Lock()
	delete(s.pending, h)
	s.mu.Unlock()
}

func (s *TickerScheduler) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for now := range ticker.C {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}
		due := s.pending
		s.pending = make(map[FrameHandle]FrameFunc, len(due))
		s.mu.Unlock()

		for _, fn := range due {
			fn(now)
		}
	}
}

// ManualScheduler fires frames only when told to. It is used in tests and
// for monitors fed by frames reported from elsewhere.
type ManualScheduler struct {
	mu      sync.Mutex
	now     time.Time
	nextID  FrameHandle
	pending map[FrameHandle]FrameFunc
}

// NewManualScheduler creates a scheduler whose clock starts at start.
func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{
		now:     start,
		pending: make(map[FrameHandle]FrameFunc),
	}
}

// Now implements FrameScheduler.
func (s *ManualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// RequestFrame implements FrameScheduler.
func (s *ManualScheduler) RequestFrame(fn FrameFunc) FrameHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.pending[s.nextID] = fn
	return s.nextID
}

// CancelFrame implements FrameScheduler.
func (s *ManualScheduler) CancelFrame(h FrameHandle) {
	s.mu.Lock()
	delete(s.pending, h)
	s.mu.Unlock()
}

// Pending returns the number of outstanding frame requests.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Advance moves the clock forward by d and fires pending frames at the new
// time. It returns the number of callbacks invoked.
func (s *ManualScheduler) Advance(d time.Duration) int {
	s.mu.Lock()
	s.now = s.now.Add(d)
	now := s.now
	s.mu.Unlock()
	return s.fire(now)
}

// Frames advances n times by d, i.e. delivers n frames of duration d.
func (s *ManualScheduler) Frames(n int, d time.Duration) {
	for i := 0; i < n; i++ {
		s.Advance(d)
	}
}

func (s *ManualScheduler) fire(now time.Time) int {
	s.mu.Lock()
	due := s.pending
	s.pending = make(map[FrameHandle]FrameFunc, len(due))
	s.mu.Unlock()

	for _, fn := range due {
		fn(now)
	}
	return len(due)
}
