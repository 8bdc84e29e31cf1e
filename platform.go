package framegate

import (
	"runtime/debug"
	"runtime/metrics"
)

// MemoryReading is the result of a best-effort heap query. When Supported is
// false UsedMB is meaningless and treated as zero.
type MemoryReading struct {
	Supported bool
	UsedMB    float64
}

// MemorySource exposes heap statistics where the platform has them.
type MemorySource interface {
	ReadMemory() MemoryReading
	// Reclaim asks the platform to release memory. It may do nothing.
	Reclaim()
}

// NetworkHint is an optional connection hint, e.g. "4g" or "slow-2g".
type NetworkHint struct {
	Supported     bool
	EffectiveType string
}

// NetworkSource exposes a connection hint where the platform has one.
type NetworkSource interface {
	NetworkHint() NetworkHint
}

// Viewport describes the rendering surface.
type Viewport struct {
	Width     int
	Height    int
	UserAgent string
}

// ViewportSource returns the current viewport. ok is false when the surface
// has not been laid out yet.
type ViewportSource interface {
	Viewport() (vp Viewport, ok bool)
}

// UnsupportedMemory is the neutral MemorySource.
type UnsupportedMemory struct{}

// ReadMemory implements MemorySource.
func (UnsupportedMemory) ReadMemory() MemoryReading { return MemoryReading{} }

// Reclaim implements MemorySource.
func (UnsupportedMemory) Reclaim() {}

// StaticMemory reports a fixed heap size, e.g. one sent by a remote client.
type StaticMemory struct {
	UsedMB float64
}

// ReadMemory implements MemorySource.
func (s StaticMemory) ReadMemory() MemoryReading {
	return MemoryReading{Supported: true, UsedMB: s.UsedMB}
}

// Reclaim implements MemorySource.
func (StaticMemory) Reclaim() {}

const heapObjectsMetric = "/memory/classes/heap/objects:bytes"

// RuntimeMemory reads the Go heap through runtime/metrics.
type RuntimeMemory struct{}

// ReadMemory implements MemorySource.
func (RuntimeMemory) ReadMemory() MemoryReading {
	sample := []metrics.Sample{{Name: heapObjectsMetric}}
	metrics.Read(sample)
	if sample[0].Value.Kind() != metrics.KindUint64 {
		return MemoryReading{}
	}
	return MemoryReading{
		Supported: true,
		UsedMB:    float64(sample[0].Value.Uint64()) / (1024 * 1024),
	}
}

// Reclaim implements MemorySource.
func (RuntimeMemory) Reclaim() { debug.FreeOSMemory() }

// UnsupportedNetwork is the neutral NetworkSource.
type UnsupportedNetwork struct{}

// NetworkHint implements NetworkSource.
func (UnsupportedNetwork) NetworkHint() NetworkHint { return NetworkHint{} }

// StaticNetwork reports a fixed effective connection type.
type StaticNetwork string

// NetworkHint implements NetworkSource.
func (s StaticNetwork) NetworkHint() NetworkHint {
	if s == "" {
		return NetworkHint{}
	}
	return NetworkHint{Supported: true, EffectiveType: string(s)}
}

// StaticViewport reports a fixed viewport.
type StaticViewport Viewport

// Viewport implements ViewportSource.
func (s StaticViewport) Viewport() (Viewport, bool) {
	return Viewport(s), s.Width > 0
}

// NoViewport is the neutral ViewportSource.
type NoViewport struct{}

// Viewport implements ViewportSource.
func (NoViewport) Viewport() (Viewport, bool) { return Viewport{}, false }
