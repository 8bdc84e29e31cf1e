package framegate

import (
	"context"
	"sync"
	"sync/atomic"
)

// Store holds the latest Snapshot. It has exactly one writer, the Monitor
// that owns it, and any number of readers. Each publish swaps in a whole new
// snapshot, so readers never see a partially updated value.
type Store struct {
	current atomic.Pointer[Snapshot]

	mu          sync.RWMutex
	subscribers map[uint64]Observer[Snapshot]
	nextID      uint64

	bufSize    int
	logger     Logger
	dispatcher *Dispatcher[Snapshot]
	cancel     context.CancelFunc
}

// NewStore creates a store seeded with DefaultSnapshot.
func NewStore(bufSize int, logger Logger) *Store {
	s := &Store{
		subscribers: make(map[uint64]Observer[Snapshot]),
		bufSize:     bufSize,
		logger:      loggerOrNoOp(logger),
	}
	def := DefaultSnapshot()
	s.current.Store(&def)
	return s
}

// Load returns the latest snapshot. It never blocks and never returns a
// zero value: before the first tick it returns DefaultSnapshot.
func (s *Store) Load() Snapshot {
	return *s.current.Load()
}

// Metrics returns the metrics of the latest snapshot.
func (s *Store) Metrics() Metrics {
	return s.current.Load().Metrics
}

// Features returns the feature config of the latest snapshot.
func (s *Store) Features() FeatureConfig {
	return s.current.Load().Features
}

// Subscribe registers o for future snapshots. Delivery is asynchronous and
// lossy under pressure; call Load for the authoritative value. The returned
// function removes the subscription.
func (s *Store) Subscribe(o Observer[Snapshot]) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subscribers[id] = o
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
		})
	}
}

// DispatcherStats returns cumulative dropped and total deliveries.
func (s *Store) DispatcherStats() (dropped, total uint64) {
	s.mu.RLock()
	d := s.dispatcher
	s.mu.RUnlock()
	if d == nil {
		return 0, 0
	}
	return d.DroppedCount(), d.TotalCount()
}

func (s *Store) open() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dispatcher != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.dispatcher = NewDispatcher[Snapshot](ctx, s.bufSize, s.logger)
	s.cancel = cancel
}

func (s *Store) close() {
	s.mu.Lock()
	d, cancel := s.dispatcher, s.cancel
	s.mu.Unlock()
	if d == nil {
		return
	}
	cancel()
	<-d.Done()
}

// publish installs snap if its tick advances the sequence. It reports
// whether snap was accepted.
func (s *Store) publish(snap Snapshot) bool {
	if snap.Tick <= s.current.Load().Tick {
		return false
	}
	s.current.Store(&snap)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dispatcher == nil {
		return true
	}
	for _, o := range s.subscribers {
		s.dispatcher.Emit(o, snap)
	}
	return true
}
