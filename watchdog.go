package framegate

import (
	"context"
	"time"
)

// watchdogDueLocked reports whether heap usage is far enough over the
// memory threshold that the platform should be asked to reclaim memory.
// It piggybacks on the frame loop instead of running its own timer.
func (m *Monitor) watchdogDueLocked(now time.Time) bool {
	if m.cfg.watchdogInterval <= 0 || now.Sub(m.lastWatchdog) < m.cfg.watchdogInterval {
		return false
	}
	m.lastWatchdog = now

	mem := m.readMemory()
	return mem.Supported && mem.UsedMB > m.cfg.thresholds.MemoryThresholdMB*m.cfg.watchdogFactor
}

func (m *Monitor) reclaim(ctx context.Context) {
	defer m.recoverCapability(ctx, "memory reclaim")
	m.cfg.logger.DebugContext(ctx, "memory over watchdog limit, reclaiming",
		"source", m.cfg.source,
		"limit_mb", m.cfg.thresholds.MemoryThresholdMB*m.cfg.watchdogFactor)
	m.cfg.memory.Reclaim()
}

// The readers below never let a capability failure escape the frame loop.

func (m *Monitor) readMemory() (r MemoryReading) {
	defer m.recoverCapability(m.ctx, "memory read")
	return m.cfg.memory.ReadMemory()
}

func (m *Monitor) readNetwork() (h NetworkHint) {
	defer m.recoverCapability(m.ctx, "network read")
	return m.cfg.network.NetworkHint()
}

func (m *Monitor) readViewport() (vp Viewport, ok bool) {
	defer m.recoverCapability(m.ctx, "viewport read")
	return m.cfg.viewport.Viewport()
}

func (m *Monitor) recoverCapability(ctx context.Context, what string) {
	if r := recover(); r != nil {
		m.cfg.logger.DebugContext(ctx, what+" failed, using neutral value",
			"source", m.cfg.source, "panic", r)
	}
}
