package datadog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/mushtruk/framegate"
	"github.com/stretchr/testify/assert"
)

type sample struct {
	kind  string
	name  string
	value float64
	tags  []string
}

type recordingClient struct {
	statsd.NoOpClient

	mu      sync.Mutex
	samples []sample
}

func (c *recordingClient) add(kind, name string, value float64, tags []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples = append(c.samples, sample{kind: kind, name: name, value: value, tags: tags})
	return nil
}

func (c *recordingClient) Gauge(name string, value float64, tags []string, rate float64) error {
	return c.add("gauge", name, value, tags)
}

func (c *recordingClient) Count(name string, value int64, tags []string, rate float64) error {
	return c.add("count", name, float64(value), tags)
}

func (c *recordingClient) Incr(name string, tags []string, rate float64) error {
	return c.add("count", name, 1, tags)
}

func (c *recordingClient) Distribution(name string, value float64, tags []string, rate float64) error {
	return c.add("distribution", name, value, tags)
}

func (c *recordingClient) Timing(name string, value time.Duration, tags []string, rate float64) error {
	return c.add("timing", name, value.Seconds(), tags)
}

func (c *recordingClient) find(name string) []sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []sample
	for _, s := range c.samples {
		if s.name == name {
			out = append(out, s)
		}
	}
	return out
}

func TestMetrics_RecordSnapshot(t *testing.T) {
	client := &recordingClient{}
	m := NewMetrics(client, WithNamespace("web"), WithTags("env:test"))

	snap := framegate.DefaultSnapshot()
	snap.Metrics.DeviceTier = framegate.Mobile
	snap.Metrics.AverageFPS = 41
	snap.Metrics.Jitter.P95 = 30 * time.Millisecond
	snap.Score = 0.62
	snap.Level = framegate.LevelMedium
	m.RecordSnapshot(context.Background(), "local", snap)

	ticks := client.find("web.framegate.ticks")
	if assert.Len(t, ticks, 1) {
		assert.Equal(t, []string{"env:test", "level:medium", "device:mobile"}, ticks[0].tags)
	}

	fps := client.find("web.framegate.fps")
	if assert.Len(t, fps, 1) {
		assert.Equal(t, "distribution", fps[0].kind)
		assert.Equal(t, 41.0, fps[0].value)
	}

	score := client.find("web.framegate.performance.score")
	if assert.Len(t, score, 1) {
		assert.Equal(t, 0.62, score[0].value)
		assert.Equal(t, []string{"env:test", "source:local"}, score[0].tags)
	}

	assert.Empty(t, client.find("web.framegate.memory.usage_mb"), "memory unsupported")
	assert.Len(t, client.find("web.framegate.frame_time.p95"), 1)
}

func TestMetrics_CountersAndGauges(t *testing.T) {
	client := &recordingClient{}
	m := NewMetrics(client)

	m.RecordModeTransition("beacon", true)
	m.RecordDispatcherStats(0, 7)
	m.RecordSessions(12)

	tr := client.find("framegate.mode.transitions")
	if assert.Len(t, tr, 1) {
		assert.Equal(t, []string{"source:beacon", "mode:low"}, tr[0].tags)
	}
	assert.Empty(t, client.find("framegate.dispatcher.drops"))
	if ev := client.find("framegate.dispatcher.events"); assert.Len(t, ev, 1) {
		assert.Equal(t, 7.0, ev[0].value)
	}
	if s := client.find("framegate.beacon.sessions"); assert.Len(t, s, 1) {
		assert.Equal(t, 12.0, s[0].value)
	}
}

func TestMetrics_ImplementsCollector(t *testing.T) {
	var _ framegate.MetricsCollector = NewMetrics(&statsd.NoOpClient{})
}
