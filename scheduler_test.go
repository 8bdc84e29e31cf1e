package framegate

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestManualScheduler_FiresOnce(t *testing.T) {
	s := NewManualScheduler(epoch)

	var calls []time.Time
	s.RequestFrame(func(now time.Time) { calls = append(calls, now) })
	assert.Equal(t, 1, s.Pending())

	assert.Equal(t, 1, s.Advance(16*time.Millisecond))
	assert.Equal(t, 0, s.Advance(16*time.Millisecond))
	assert.Equal(t, []time.Time{epoch.Add(16 * time.Millisecond)}, calls)
	assert.Equal(t, epoch.Add(32*time.Millisecond), s.Now())
}

func TestManualScheduler_Cancel(t *testing.T) {
	s := NewManualScheduler(epoch)

	fired := false
	h := s.RequestFrame(func(time.Time) { fired = true })
	s.CancelFrame(h)
	s.CancelFrame(h)

	assert.Zero(t, s.Pending())
	assert.Zero(t, s.Advance(time.Millisecond))
	assert.False(t, fired)
}

func TestManualScheduler_RequestFromCallback(t *testing.T) {
	s := NewManualScheduler(epoch)

	count := 0
	var fn FrameFunc
	fn = func(time.Time) {
		count++
		s.RequestFrame(fn)
	}
	s.RequestFrame(fn)

	s.Frames(10, 16*time.Millisecond)
	assert.Equal(t, 10, count)
	assert.Equal(t, 1, s.Pending())
}

func TestTickerScheduler_LoopExitsWhenIdle(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewTickerScheduler(200)
	var fired atomic.Int32
	done := make(chan struct{})
	s.RequestFrame(func(time.Time) {
		fired.Add(1)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("frame never fired")
	}
	assert.Equal(t, int32(1), fired.Load())
}

func TestTickerScheduler_CancelBeforeFire(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewTickerScheduler(10)
	var fired atomic.Bool
	h := s.RequestFrame(func(time.Time) { fired.Store(true) })
	s.CancelFrame(h)

	time.Sleep(250 * time.Millisecond)
	assert.False(t, fired.Load())
}

func TestNewTickerScheduler_DefaultRate(t *testing.T) {
	s := NewTickerScheduler(0)
	assert.Equal(t, time.Second/DefaultFrameRate, s.interval)
}
