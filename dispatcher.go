package framegate

import (
	"context"
	"sync/atomic"
)

// Observer receives values delivered by a Dispatcher.
type Observer[T any] interface {
	Process(T)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc[T any] func(T)

// Process implements Observer.
func (f ObserverFunc[T]) Process(v T) { f(v) }

type Event[T any] struct {
	Target Observer[T]
	Value  T
}

// Dispatcher asynchronously delivers values to observers so the producer
// never waits on a slow consumer.
type Dispatcher[T any] struct {
	inputCh      chan Event[T]
	done         chan struct{}
	logger       Logger
	droppedCount atomic.Uint64
	totalCount   atomic.Uint64
}

// NewDispatcher starts a delivery goroutine that runs until ctx is done.
func NewDispatcher[T any](ctx context.Context, bufSize int, logger Logger) *Dispatcher[T] {
	if bufSize < 1 {
		bufSize = 1
	}
	d := &Dispatcher[T]{
		inputCh: make(chan Event[T], bufSize),
		done:    make(chan struct{}),
		logger:  loggerOrNoOp(logger),
	}
	go d.run(ctx)
	return d
}

// Emit submits a value to be processed. Drops if buffer is full.
func (d *Dispatcher[T]) Emit(target Observer[T], value T) {
	d.totalCount.Add(1)
	select {
	case d.inputCh <- Event[T]{Target: target, Value: value}:
	default:
		dropped := d.droppedCount.Add(1)
		if dropped%100 == 1 {
			d.logger.DebugContext(context.Background(), "dispatcher buffer full",
				"dropped", dropped,
				"total", d.totalCount.Load(),
				"drop_rate", d.DropRate())
		}
	}
}

func (d *Dispatcher[T]) DroppedCount() uint64 {
	return d.droppedCount.Load()
}

func (d *Dispatcher[T]) TotalCount() uint64 {
	return d.totalCount.Load()
}

func (d *Dispatcher[T]) DropRate() float64 {
	total := d.totalCount.Load()
	if total == 0 {
		return 0
	}
	return float64(d.droppedCount.Load()) / float64(total) * 100
}

// Done is closed once the delivery goroutine has exited.
func (d *Dispatcher[T]) Done() <-chan struct{} {
	return d.done
}

func (d *Dispatcher[T]) run(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.inputCh:
			d.deliver(ctx, ev)
		}
	}
}

func (d *Dispatcher[T]) deliver(ctx context.Context, ev Event[T]) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.DebugContext(ctx, "observer panicked", "panic", r)
		}
	}()
	ev.Target.Process(ev.Value)
}
