// Package datadog provides a Datadog implementation of the
// framegate.MetricsCollector interface using the DogStatsD client.
//
// Example usage:
//
//	import (
//	    "github.com/DataDog/datadog-go/v5/statsd"
//	    ddmetrics "github.com/mushtruk/framegate/metrics/datadog"
//	)
//
//	client, _ := statsd.New("localhost:8125")
//	defer client.Close()
//
//	metrics := ddmetrics.NewMetrics(client, ddmetrics.WithNamespace("myapp"))
//	m := framegate.New(framegate.WithMetrics(metrics))
package datadog

import (
	"context"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/mushtruk/framegate"
)

// Metrics implements framegate.MetricsCollector using Datadog DogStatsD.
type Metrics struct {
	client    statsd.ClientInterface
	namespace string
	tags      []string
}

// Option configures Datadog metrics.
type Option func(*Metrics)

// WithNamespace sets a namespace prefix for all metrics.
// Example: WithNamespace("myapp") produces "myapp.framegate.ticks"
func WithNamespace(ns string) Option {
	return func(m *Metrics) {
		m.namespace = ns
	}
}

// WithTags adds global tags to all metrics.
// Example: WithTags("env:prod", "service:web")
func WithTags(tags ...string) Option {
	return func(m *Metrics) {
		m.tags = append(m.tags, tags...)
	}
}

// NewMetrics creates a new Datadog metrics collector.
// The provided client is used to send metrics via DogStatsD.
func NewMetrics(client statsd.ClientInterface, opts ...Option) *Metrics {
	m := &Metrics{
		client: client,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// metricName builds the full metric name with optional namespace.
func (m *Metrics) metricName(name string) string {
	if m.namespace != "" {
		return m.namespace + ".framegate." + name
	}
	return "framegate." + name
}

// mergeTags combines global tags with metric-specific tags.
func (m *Metrics) mergeTags(tags ...string) []string {
	if len(m.tags) == 0 {
		return tags
	}
	merged := make([]string, 0, len(m.tags)+len(tags))
	merged = append(merged, m.tags...)
	merged = append(merged, tags...)
	return merged
}

// RecordSnapshot implements framegate.MetricsCollector.
func (m *Metrics) RecordSnapshot(ctx context.Context, source string, snap framegate.Snapshot) {
	device := "device:" + snap.Metrics.DeviceTier.String()
	src := "source:" + source

	_ = m.client.Incr(m.metricName("ticks"), m.mergeTags("level:"+snap.Level.String(), device), 1.0)
	_ = m.client.Distribution(m.metricName("fps"), snap.Metrics.AverageFPS, m.mergeTags(device), 1.0)

	srcTags := m.mergeTags(src)
	_ = m.client.Gauge(m.metricName("performance.score"), float64(snap.Score), srcTags, 1.0)
	_ = m.client.Gauge(m.metricName("low_performance_mode"), boolGauge(snap.LowPerformanceMode), srcTags, 1.0)
	if snap.Metrics.MemorySupported {
		_ = m.client.Gauge(m.metricName("memory.usage_mb"), snap.Metrics.MemoryUsageMB, srcTags, 1.0)
	}
	if snap.Metrics.Jitter.P95 > 0 {
		_ = m.client.Timing(m.metricName("frame_time.p95"), snap.Metrics.Jitter.P95, srcTags, 1.0)
	}
}

// RecordModeTransition implements framegate.MetricsCollector.
func (m *Metrics) RecordModeTransition(source string, active bool) {
	mode := "normal"
	if active {
		mode = "low"
	}
	_ = m.client.Incr(m.metricName("mode.transitions"), m.mergeTags("source:"+source, "mode:"+mode), 1.0)
}

// RecordDispatcherStats implements framegate.MetricsCollector.
func (m *Metrics) RecordDispatcherStats(dropped, total uint64) {
	tags := m.mergeTags()
	if dropped > 0 {
		_ = m.client.Count(m.metricName("dispatcher.drops"), int64(dropped), tags, 1.0)
	}
	if total > 0 {
		_ = m.client.Count(m.metricName("dispatcher.events"), int64(total), tags, 1.0)
	}
}

// RecordSessions implements framegate.MetricsCollector.
func (m *Metrics) RecordSessions(active int) {
	_ = m.client.Gauge(m.metricName("beacon.sessions"), float64(active), m.mergeTags(), 1.0)
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
