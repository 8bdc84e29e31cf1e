package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/mushtruk/framegate"
)

// BeaconConfig holds configuration for the beacon endpoint.
type BeaconConfig struct {
	CacheSize       int
	CacheTTL        time.Duration
	MaxBodyBytes    int64
	MaxFrames       int
	MaxFrameMs      float64
	EnableMetrics   bool
	MetricsInterval time.Duration

	// AllowedOrigins lists the Origin hosts accepted by the stream
	// endpoint. Empty means same host only.
	AllowedOrigins  []string
	StreamPongWait  time.Duration
	StreamWriteWait time.Duration

	Logger  framegate.Logger
	Metrics framegate.MetricsCollector

	// MonitorOptions are applied to every session monitor after the
	// beacon's own options.
	MonitorOptions []framegate.Option
}

// DefaultBeaconConfig returns sensible default configuration.
func DefaultBeaconConfig() BeaconConfig {
	return BeaconConfig{
		CacheSize:       1024,
		CacheTTL:        5 * time.Minute,
		MaxBodyBytes:    64 << 10,
		MaxFrames:       600,
		MaxFrameMs:      1000,
		EnableMetrics:   true,
		MetricsInterval: time.Minute,
		StreamPongWait:  60 * time.Second,
		StreamWriteWait: 10 * time.Second,
		Logger:          framegate.NoOpLogger{},
		Metrics:         framegate.NoOpMetrics{},
	}
}

// Report is a batch of frame durations sent by a remote rendering client.
// Frames are per-frame durations in milliseconds, oldest first. A nil
// MemoryMB means the client has no heap statistics. Viewport and user agent
// are remembered per session, so later reports may omit them; a user agent
// without any known width can only demote the tier from Desktop.
type Report struct {
	Session        string    `json:"session,omitempty"`
	Frames         []float64 `json:"frames"`
	ViewportWidth  int       `json:"viewportWidth,omitempty"`
	ViewportHeight int       `json:"viewportHeight,omitempty"`
	UserAgent      string    `json:"userAgent,omitempty"`
	EffectiveType  string    `json:"effectiveType,omitempty"`
	MemoryMB       *float64  `json:"memoryMB,omitempty"`
}

var (
	errNoFrames      = errors.New("report has no frames")
	errBadSession    = errors.New("session must be a UUID")
	errBadMemory     = errors.New("memoryMB must not be negative")
	errBeaconStopped = errors.New("beacon stopped")
)

func (r Report) validate(maxFrames int, maxFrameMs float64) error {
	if len(r.Frames) == 0 {
		return errNoFrames
	}
	if len(r.Frames) > maxFrames {
		return fmt.Errorf("report has %d frames, limit is %d", len(r.Frames), maxFrames)
	}
	for i, ms := range r.Frames {
		if !(ms > 0 && ms <= maxFrameMs) {
			return fmt.Errorf("frame %d: duration %gms outside (0, %g]", i, ms, maxFrameMs)
		}
	}
	if r.MemoryMB != nil && *r.MemoryMB < 0 {
		return errBadMemory
	}
	if r.Session != "" {
		if _, err := uuid.Parse(r.Session); err != nil {
			return errBadSession
		}
	}
	return nil
}

// Beacon runs one framegate.Monitor per remote session. Each session's
// monitor is driven by a ManualScheduler whose clock advances by the
// reported frame durations, so aggregation follows the client's timeline
// rather than request arrival. Sessions live in an expiring LRU; evicted
// sessions have their monitor stopped.
type Beacon struct {
	ctx    context.Context
	cfg    BeaconConfig
	logger framegate.Logger

	mu       sync.Mutex
	registry *expirable.LRU[string, *session]
	upgrader websocket.Upgrader
}

// NewBeacon creates a beacon. All session monitors stop when ctx is done.
func NewBeacon(ctx context.Context, cfg BeaconConfig) *Beacon {
	if cfg.Logger == nil {
		cfg.Logger = framegate.NoOpLogger{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = framegate.NoOpMetrics{}
	}
	if cfg.StreamPongWait <= 0 {
		cfg.StreamPongWait = 60 * time.Second
	}
	if cfg.StreamWriteWait <= 0 {
		cfg.StreamWriteWait = 10 * time.Second
	}
	b := &Beacon{
		ctx:      ctx,
		cfg:      cfg,
		logger:   cfg.Logger,
		upgrader: newUpgrader(cfg.AllowedOrigins),
	}
	b.registry = expirable.NewLRU[string, *session](
		cfg.CacheSize,
		func(id string, s *session) {
			s.monitor.Stop()
			b.logger.DebugContext(ctx, "beacon session closed", "session", id)
		},
		cfg.CacheTTL,
	)

	if cfg.EnableMetrics && cfg.MetricsInterval > 0 {
		go b.reportLoop()
	}
	return b
}

func (b *Beacon) reportLoop() {
	ticker := time.NewTicker(b.cfg.MetricsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			n := b.registry.Len()
			b.cfg.Metrics.RecordSessions(n)
			if n > 0 {
				b.logger.DebugContext(b.ctx, "beacon sessions",
					"active", n,
					"capacity", b.cfg.CacheSize,
					"fill_pct", float64(n)/float64(b.cfg.CacheSize)*100)
			}
		}
	}
}

// Len returns the number of live sessions.
func (b *Beacon) Len() int { return b.registry.Len() }

// Close stops every session monitor.
func (b *Beacon) Close() { b.registry.Purge() }

// ServeHTTP accepts a JSON Report by POST and answers with the session's
// latest snapshot.
func (b *Beacon) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var rep Report
	body := http.MaxBytesReader(w, r.Body, b.cfg.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&rep); err != nil {
		http.Error(w, "invalid report: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := rep.validate(b.cfg.MaxFrames, b.cfg.MaxFrameMs); err != nil {
		http.Error(w, "invalid report: "+err.Error(), http.StatusBadRequest)
		return
	}

	id, snap, err := b.Report(rep)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, NewSnapshotResponse(id, snap))
}

// Report feeds rep into its session, creating the session when needed, and
// returns the session id and snapshot. rep is assumed valid.
func (b *Beacon) Report(rep Report) (string, framegate.Snapshot, error) {
	s, err := b.session(rep.Session)
	if err != nil {
		return "", framegate.Snapshot{}, err
	}
	return s.id, s.report(rep), nil
}

func (b *Beacon) session(id string) (*session, error) {
	if b.ctx.Err() != nil {
		return nil, errBeaconStopped
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if id != "" {
		if s, ok := b.registry.Get(id); ok {
			b.registry.Add(id, s)
			return s, nil
		}
	} else {
		id = uuid.NewString()
	}

	s := newSession(id)
	opts := append([]framegate.Option{
		framegate.WithSource("beacon"),
		framegate.WithScheduler(s.sched),
		framegate.WithMemorySource(s.client),
		framegate.WithNetworkSource(s.client),
		framegate.WithWatchdog(0, 0),
		framegate.WithLogger(b.logger),
		framegate.WithMetrics(b.cfg.Metrics),
	}, b.cfg.MonitorOptions...)
	s.monitor = framegate.New(opts...)
	if err := s.monitor.Start(b.ctx); err != nil {
		return nil, fmt.Errorf("start session monitor: %w", err)
	}

	b.registry.Add(id, s)
	b.logger.DebugContext(b.ctx, "beacon session opened", "session", id)
	return s, nil
}

type session struct {
	id      string
	sched   *framegate.ManualScheduler
	client  *remoteClient
	monitor *framegate.Monitor

	mu       sync.Mutex
	viewport framegate.Viewport
}

// uaOnlyWidth stands in for an unknown width. It is past any breakpoint,
// leaving the user agent as the only mobile signal.
const uaOnlyWidth = math.MaxInt32

func newSession(id string) *session {
	return &session{
		id:     id,
		sched:  framegate.NewManualScheduler(time.Now()),
		client: &remoteClient{},
	}
}

func (s *session) report(rep Report) framegate.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.client.update(rep)
	if rep.ViewportWidth > 0 || rep.UserAgent != "" {
		if rep.ViewportWidth > 0 {
			s.viewport.Width = rep.ViewportWidth
			s.viewport.Height = rep.ViewportHeight
		}
		if rep.UserAgent != "" {
			s.viewport.UserAgent = rep.UserAgent
		}
		vp := s.viewport
		if vp.Width == 0 {
			vp.Width = uaOnlyWidth
		}
		s.monitor.Resize(vp)
	}
	for _, ms := range rep.Frames {
		s.sched.Advance(time.Duration(ms * float64(time.Millisecond)))
	}
	return s.monitor.Store().Load()
}

// remoteClient holds the capabilities a client last reported.
type remoteClient struct {
	mu            sync.Mutex
	memoryMB      *float64
	effectiveType string
}

func (c *remoteClient) update(rep Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rep.MemoryMB != nil {
		mb := *rep.MemoryMB
		c.memoryMB = &mb
	}
	if rep.EffectiveType != "" {
		c.effectiveType = rep.EffectiveType
	}
}

func (c *remoteClient) ReadMemory() framegate.MemoryReading {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.memoryMB == nil {
		return framegate.MemoryReading{}
	}
	return framegate.MemoryReading{Supported: true, UsedMB: *c.memoryMB}
}

// Reclaim is a no-op: the heap belongs to the remote client.
func (c *remoteClient) Reclaim() {}

func (c *remoteClient) NetworkHint() framegate.NetworkHint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return framegate.StaticNetwork(c.effectiveType).NetworkHint()
}
