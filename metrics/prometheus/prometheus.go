// Package prometheus provides a Prometheus implementation of the
// framegate.MetricsCollector interface.
//
// Example usage:
//
//	reg := prometheus.NewRegistry()
//	m := framegate.New(framegate.WithMetrics(fgprom.NewMetrics(reg)))
//
//	// Expose metrics endpoint
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package prometheus

import (
	"context"

	"github.com/mushtruk/framegate"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics implements framegate.MetricsCollector using Prometheus.
//
// Gauges labelled by source hold the most recent tick of any monitor with
// that source; the fps histogram and tick counter aggregate all of them.
type Metrics struct {
	ticksTotal      *prometheus.CounterVec
	fpsHistogram    *prometheus.HistogramVec
	fps             *prometheus.GaugeVec
	score           *prometheus.GaugeVec
	memory          *prometheus.GaugeVec
	frameTimeP95    *prometheus.GaugeVec
	lowMode         *prometheus.GaugeVec
	transitions     *prometheus.CounterVec
	sessions        prometheus.Gauge
	dispatcherDrops prometheus.Counter
	dispatcherTotal prometheus.Counter
}

// NewMetrics creates a new Prometheus metrics collector.
// The provided registerer is used to register all metrics.
//
// Use prometheus.DefaultRegisterer for the global registry, or create a new
// registry with prometheus.NewRegistry() for isolation.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ticksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "framegate",
				Name:      "ticks_total",
				Help:      "Aggregation ticks by performance level and device tier",
			},
			[]string{"level", "device"},
		),
		fpsHistogram: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "framegate",
				Name:      "fps",
				Help:      "Distribution of rolling average frames per second",
				Buckets:   []float64{10, 20, 30, 40, 45, 50, 55, 60, 90, 120},
			},
			[]string{"device"},
		),
		fps: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "framegate",
				Name:      "average_fps",
				Help:      "Rolling average frames per second at the last tick",
			},
			[]string{"source"},
		),
		score: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "framegate",
				Name:      "performance_score",
				Help:      "Performance score in [0, 1] at the last tick",
			},
			[]string{"source"},
		),
		memory: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "framegate",
				Name:      "memory_usage_megabytes",
				Help:      "Heap usage at the last tick, when the platform reports it",
			},
			[]string{"source"},
		),
		frameTimeP95: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "framegate",
				Name:      "frame_time_p95_seconds",
				Help:      "95th percentile of recent per-frame durations",
			},
			[]string{"source"},
		),
		lowMode: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "framegate",
				Name:      "low_performance_mode",
				Help:      "1 while low performance mode is on",
			},
			[]string{"source"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "framegate",
				Name:      "mode_transitions_total",
				Help:      "Low performance mode switches by direction",
			},
			[]string{"source", "mode"},
		),
		sessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "framegate",
				Name:      "beacon_sessions",
				Help:      "Number of live beacon sessions",
			},
		),
		dispatcherDrops: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "framegate",
				Name:      "dispatcher_drops_total",
				Help:      "Total number of snapshots dropped by the subscriber dispatcher due to buffer overflow",
			},
		),
		dispatcherTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "framegate",
				Name:      "dispatcher_events_total",
				Help:      "Total number of snapshots emitted to subscribers",
			},
		),
	}

	reg.MustRegister(
		m.ticksTotal,
		m.fpsHistogram,
		m.fps,
		m.score,
		m.memory,
		m.frameTimeP95,
		m.lowMode,
		m.transitions,
		m.sessions,
		m.dispatcherDrops,
		m.dispatcherTotal,
	)

	return m
}

// RecordSnapshot implements framegate.MetricsCollector.
func (m *Metrics) RecordSnapshot(ctx context.Context, source string, snap framegate.Snapshot) {
	device := snap.Metrics.DeviceTier.String()
	m.ticksTotal.WithLabelValues(snap.Level.String(), device).Inc()
	m.fpsHistogram.WithLabelValues(device).Observe(snap.Metrics.AverageFPS)

	m.fps.WithLabelValues(source).Set(snap.Metrics.AverageFPS)
	m.score.WithLabelValues(source).Set(float64(snap.Score))
	if snap.Metrics.MemorySupported {
		m.memory.WithLabelValues(source).Set(snap.Metrics.MemoryUsageMB)
	}
	if snap.Metrics.Jitter.P95 > 0 {
		m.frameTimeP95.WithLabelValues(source).Set(snap.Metrics.Jitter.P95.Seconds())
	}
	m.lowMode.WithLabelValues(source).Set(boolGauge(snap.LowPerformanceMode))
}

// RecordModeTransition implements framegate.MetricsCollector.
func (m *Metrics) RecordModeTransition(source string, active bool) {
	mode := "normal"
	if active {
		mode = "low"
	}
	m.transitions.WithLabelValues(source, mode).Inc()
	m.lowMode.WithLabelValues(source).Set(boolGauge(active))
}

// RecordDispatcherStats implements framegate.MetricsCollector.
func (m *Metrics) RecordDispatcherStats(dropped, total uint64) {
	if dropped > 0 {
		m.dispatcherDrops.Add(float64(dropped))
	}
	if total > 0 {
		m.dispatcherTotal.Add(float64(total))
	}
}

// RecordSessions implements framegate.MetricsCollector.
func (m *Metrics) RecordSessions(active int) {
	m.sessions.Set(float64(active))
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
