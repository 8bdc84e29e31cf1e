package framegate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGate_Allow(t *testing.T) {
	full := DefaultSnapshot()

	low := DefaultSnapshot()
	low.Score = 0.2

	phone := DefaultSnapshot()
	phone.Metrics.DeviceTier = Mobile

	no3D := DefaultSnapshot()
	no3D.Features.Enable3D = false

	tests := []struct {
		name string
		gate Gate
		snap Snapshot
		want bool
	}{
		{"default allows full", DefaultGate(), full, true},
		{"default blocks low score", DefaultGate(), low, false},
		{"desktop only blocks phone", Gate{RequireDesktop: true}, phone, false},
		{"3d required", Gate{Require3D: true}, no3D, false},
		{"3d present", Gate{Require3D: true}, full, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.gate.Allow(tt.snap))
		})
	}

	assert.Equal(t, "scene", Choose(DefaultGate(), full, "scene", "poster"))
	assert.Equal(t, "poster", Choose(DefaultGate(), low, "scene", "poster"))
}

func TestRootClasses(t *testing.T) {
	snap := DefaultSnapshot()
	assert.Equal(t, []string{"performance-high", "device-desktop"}, RootClasses(snap))

	snap.Level = LevelLow
	snap.Metrics.DeviceTier = Mobile
	snap.Metrics.NetworkTier = NetworkSlow
	snap.LowPerformanceMode = true
	assert.Equal(t,
		[]string{"performance-low", "device-mobile", "network-slow", "low-performance-mode"},
		RootClasses(snap))
}

func TestRootVariables(t *testing.T) {
	snap := DefaultSnapshot()
	snap.Score = 0.5
	snap.Metrics.AverageFPS = 47.6

	vars := RootVariables(snap)
	assert.Equal(t, "0.5", vars["--performance-level"])
	assert.Equal(t, "48", vars["--fps"])
}

func TestContext_RoundTrip(t *testing.T) {
	ctx := context.Background()
	_, ok := FromContext(ctx)
	assert.False(t, ok)
	assert.Equal(t, DefaultSnapshot(), FromContextOrDefault(ctx))

	snap := DefaultSnapshot()
	snap.Tick = 7
	ctx = NewContext(ctx, snap)
	got, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, uint64(7), got.Tick)
}
