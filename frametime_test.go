package framegate

import (
	"testing"
	"time"
)

func TestJitterTracker_BasicUsage(t *testing.T) {
	tracker := newJitterTracker(0.25, 20, 100)

	for i := 1; i <= 100; i++ {
		tracker.Process(time.Duration(i) * time.Millisecond)
	}

	stats := tracker.Stats()

	if stats.EMA <= 0 {
		t.Errorf("Expected positive EMA, got %v", stats.EMA)
	}
	if stats.Slope <= 0 {
		t.Errorf("Expected positive slope for rising frame times, got %v", stats.Slope)
	}
	if stats.P95 < 90*time.Millisecond || stats.P95 > 100*time.Millisecond {
		t.Errorf("Expected P95 near 95ms, got %v", stats.P95)
	}
	if stats.P99 < stats.P95 || stats.P95 < stats.P50 {
		t.Errorf("Expected ordered percentiles, got p50=%v p95=%v p99=%v", stats.P50, stats.P95, stats.P99)
	}
}

func TestJitterTracker_SteadyFrames(t *testing.T) {
	tracker := newJitterTracker(0.1, 10, 0)

	for i := 0; i < 50; i++ {
		tracker.Process(16 * time.Millisecond)
	}

	stats := tracker.Stats()
	if stats.EMA != 16*time.Millisecond {
		t.Errorf("Expected EMA of 16ms, got %v", stats.EMA)
	}
	if stats.Slope != 0 || stats.Drift != 0 {
		t.Errorf("Expected flat trend, got slope=%v drift=%v", stats.Slope, stats.Drift)
	}
	if stats.P95 != 0 {
		t.Errorf("Expected no percentiles when disabled, got %v", stats.P95)
	}
}

func TestJitterTracker_IgnoresNonPositive(t *testing.T) {
	tracker := newJitterTracker(0.5, 4, 10)
	tracker.Process(0)
	tracker.Process(-time.Millisecond)

	if got := tracker.Stats().EMA; got != 0 {
		t.Errorf("Expected zero EMA, got %v", got)
	}
}

func BenchmarkJitterTracker_Process(b *testing.B) {
	tracker := newJitterTracker(0.1, 20, 240)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		tracker.Process(16 * time.Millisecond)
	}
}

func BenchmarkJitterTracker_Stats(b *testing.B) {
	tracker := newJitterTracker(0.1, 20, 240)
	for i := 0; i < 240; i++ {
		tracker.Process(time.Duration(10+i%20) * time.Millisecond)
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = tracker.Stats()
	}
}
