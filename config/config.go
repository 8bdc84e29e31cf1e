// Package config loads framegate service configuration from a YAML file
// with FRAMEGATE_* environment overrides, validates it, and watches the
// file for changes.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mushtruk/framegate"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FRAMEGATE_"

const (
	minUpdateInterval = 50 * time.Millisecond
	maxSampleSize     = 600
)

// Config is the complete service configuration.
type Config struct {
	Monitor Monitor `yaml:"monitor"`
	HTTP    HTTP    `yaml:"http"`
	GRPC    GRPC    `yaml:"grpc"`
	Beacon  Beacon  `yaml:"beacon"`
	Metrics Metrics `yaml:"metrics"`
	Tracing Tracing `yaml:"tracing"`
	Log     Log     `yaml:"log"`
}

// Monitor configures the local frame monitor.
type Monitor struct {
	Source         string        `yaml:"source"`
	FrameRate      int           `yaml:"frame_rate"`
	SampleSize     int           `yaml:"sample_size"`
	UpdateInterval time.Duration `yaml:"update_interval"`
	// Memory selects the heap source: "runtime" or "none".
	Memory string `yaml:"memory"`

	TargetFPS         float64 `yaml:"target_fps"`
	FPSThreshold      float64 `yaml:"fps_threshold"`
	MemoryThresholdMB float64 `yaml:"memory_threshold_mb"`
	FPSWeight         float64 `yaml:"fps_weight"`
	MemoryWeight      float64 `yaml:"memory_weight"`

	MobileWidth int     `yaml:"mobile_width"`
	TabletWidth int     `yaml:"tablet_width"`
	LevelLow    float64 `yaml:"level_low"`
	LevelMedium float64 `yaml:"level_medium"`

	Latch    Latch    `yaml:"latch"`
	Watchdog Watchdog `yaml:"watchdog"`
}

// Latch configures low performance mode hysteresis.
type Latch struct {
	EnterAfter int           `yaml:"enter_after"`
	ExitAfter  int           `yaml:"exit_after"`
	MinDwell   time.Duration `yaml:"min_dwell"`
}

// Watchdog configures the memory pressure watchdog.
type Watchdog struct {
	Interval time.Duration `yaml:"interval"`
	Factor   float64       `yaml:"factor"`
}

// HTTP configures the HTTP listener.
type HTTP struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// GRPC configures the gRPC listener.
type GRPC struct {
	Enabled       bool   `yaml:"enabled"`
	Addr          string `yaml:"addr"`
	HealthService string `yaml:"health_service"`
}

// Beacon configures the remote session endpoint.
type Beacon struct {
	Enabled    bool          `yaml:"enabled"`
	CacheSize  int           `yaml:"cache_size"`
	SessionTTL time.Duration `yaml:"session_ttl"`
	MaxFrames  int           `yaml:"max_frames"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	// Backend is one of "prometheus", "otel", "datadog" or "none".
	Backend     string        `yaml:"backend"`
	Namespace   string        `yaml:"namespace"`
	DatadogAddr string        `yaml:"datadog_addr"`
	Interval    time.Duration `yaml:"interval"`
}

// Tracing configures OTLP span export. An empty endpoint disables tracing.
type Tracing struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
}

// Log configures service logging.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	t := framegate.DefaultThresholds()
	d := framegate.DefaultDeviceThresholds()
	b := framegate.DefaultLevelBounds()
	l := framegate.DefaultLatchConfig()

	return &Config{
		Monitor: Monitor{
			Source:            "local",
			FrameRate:         framegate.DefaultFrameRate,
			SampleSize:        60,
			UpdateInterval:    time.Second,
			Memory:            "runtime",
			TargetFPS:         t.TargetFPS,
			FPSThreshold:      t.FPSThreshold,
			MemoryThresholdMB: t.MemoryThresholdMB,
			FPSWeight:         t.FPSWeight,
			MemoryWeight:      t.MemoryWeight,
			MobileWidth:       d.MobileWidth,
			TabletWidth:       d.TabletWidth,
			LevelLow:          b.Low,
			LevelMedium:       b.Medium,
			Latch: Latch{
				EnterAfter: l.EnterAfter,
				ExitAfter:  l.ExitAfter,
				MinDwell:   l.MinDwell,
			},
			Watchdog: Watchdog{
				Interval: 5 * time.Second,
				Factor:   1.5,
			},
		},
		HTTP: HTTP{Enabled: true, Addr: ":8080"},
		GRPC: GRPC{Enabled: false, Addr: ":9090"},
		Beacon: Beacon{
			Enabled:    true,
			CacheSize:  1024,
			SessionTTL: 5 * time.Minute,
			MaxFrames:  600,
		},
		Metrics: Metrics{
			Backend:     "prometheus",
			Namespace:   "",
			DatadogAddr: "localhost:8125",
			Interval:    time.Minute,
		},
		Log: Log{Level: "info", Format: "json"},
	}
}

// configErrors aggregates multiple configuration errors
type configErrors struct {
	errors []error
}

func (ce *configErrors) add(err error) {
	if err != nil {
		ce.errors = append(ce.errors, err)
	}
}

func (ce *configErrors) hasErrors() bool {
	return len(ce.errors) > 0
}

func (ce *configErrors) Error() string {
	if len(ce.errors) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("configuration errors:")
	for _, err := range ce.errors {
		sb.WriteString("\n  - ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Unwrap lets errors.Is and errors.As see every aggregated error.
func (ce *configErrors) Unwrap() []error { return ce.errors }

// Load reads path (if not empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *Config) error {
	errs := &configErrors{}
	m := &cfg.Monitor

	m.Source = getEnvString("SOURCE", m.Source)
	m.Memory = getEnvString("MEMORY", m.Memory)

	var err error
	m.SampleSize, err = getEnvInt("SAMPLE_SIZE", m.SampleSize)
	errs.add(err)
	m.UpdateInterval, err = getEnvDuration("UPDATE_INTERVAL", m.UpdateInterval)
	errs.add(err)
	m.FPSThreshold, err = getEnvFloat("FPS_THRESHOLD", m.FPSThreshold)
	errs.add(err)
	m.MemoryThresholdMB, err = getEnvFloat("MEMORY_THRESHOLD_MB", m.MemoryThresholdMB)
	errs.add(err)

	cfg.HTTP.Addr = getEnvString("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.GRPC.Addr = getEnvString("GRPC_ADDR", cfg.GRPC.Addr)
	cfg.GRPC.Enabled, err = getEnvBool("GRPC_ENABLED", cfg.GRPC.Enabled)
	errs.add(err)

	cfg.Beacon.CacheSize, err = getEnvInt("BEACON_CACHE_SIZE", cfg.Beacon.CacheSize)
	errs.add(err)
	cfg.Beacon.SessionTTL, err = getEnvDuration("BEACON_SESSION_TTL", cfg.Beacon.SessionTTL)
	errs.add(err)

	cfg.Metrics.Backend = getEnvString("METRICS_BACKEND", cfg.Metrics.Backend)
	cfg.Metrics.DatadogAddr = getEnvString("DATADOG_ADDR", cfg.Metrics.DatadogAddr)
	cfg.Tracing.OTLPEndpoint = getEnvString("OTLP_ENDPOINT", cfg.Tracing.OTLPEndpoint)
	cfg.Log.Level = getEnvString("LOG_LEVEL", cfg.Log.Level)

	if errs.hasErrors() {
		return errs
	}
	return nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	errs := &configErrors{}
	m := c.Monitor

	if m.SampleSize < 1 || m.SampleSize > maxSampleSize {
		errs.add(fmt.Errorf("monitor.sample_size = %d, must be in [1, %d]", m.SampleSize, maxSampleSize))
	}
	if m.UpdateInterval < minUpdateInterval {
		errs.add(fmt.Errorf("monitor.update_interval = %v, must be at least %v", m.UpdateInterval, minUpdateInterval))
	}
	if m.FrameRate < 1 {
		errs.add(fmt.Errorf("monitor.frame_rate = %d, must be positive", m.FrameRate))
	}
	switch m.Memory {
	case "runtime", "none":
	default:
		errs.add(fmt.Errorf("monitor.memory = %q, must be runtime or none", m.Memory))
	}

	if m.TargetFPS <= 0 {
		errs.add(fmt.Errorf("monitor.target_fps = %v, must be positive", m.TargetFPS))
	}
	if m.FPSThreshold <= 0 || m.FPSThreshold > m.TargetFPS {
		errs.add(fmt.Errorf("monitor.fps_threshold = %v, must be in (0, target_fps]", m.FPSThreshold))
	}
	if m.MemoryThresholdMB <= 0 {
		errs.add(fmt.Errorf("monitor.memory_threshold_mb = %v, must be positive", m.MemoryThresholdMB))
	}
	if m.FPSWeight < 0 || m.MemoryWeight < 0 || m.FPSWeight+m.MemoryWeight <= 0 {
		errs.add(fmt.Errorf("monitor.fps_weight = %v, monitor.memory_weight = %v, must be non-negative with a positive sum",
			m.FPSWeight, m.MemoryWeight))
	}
	if m.MobileWidth <= 0 || m.MobileWidth >= m.TabletWidth {
		errs.add(fmt.Errorf("monitor.mobile_width (%d) must be positive and below tablet_width (%d)", m.MobileWidth, m.TabletWidth))
	}
	if !(0 < m.LevelLow && m.LevelLow < m.LevelMedium && m.LevelMedium < 1) {
		errs.add(fmt.Errorf("monitor.level_low (%v) and level_medium (%v) must satisfy 0 < low < medium < 1", m.LevelLow, m.LevelMedium))
	}
	if m.Latch.EnterAfter < 1 || m.Latch.ExitAfter < 1 {
		errs.add(fmt.Errorf("monitor.latch enter_after (%d) and exit_after (%d) must be at least 1", m.Latch.EnterAfter, m.Latch.ExitAfter))
	}
	if m.Latch.MinDwell < 0 {
		errs.add(fmt.Errorf("monitor.latch.min_dwell = %v, cannot be negative", m.Latch.MinDwell))
	}
	if m.Watchdog.Interval < 0 {
		errs.add(fmt.Errorf("monitor.watchdog.interval = %v, cannot be negative", m.Watchdog.Interval))
	}
	if m.Watchdog.Interval > 0 && m.Watchdog.Factor < 1 {
		errs.add(fmt.Errorf("monitor.watchdog.factor = %v, must be at least 1", m.Watchdog.Factor))
	}

	if c.HTTP.Enabled && c.HTTP.Addr == "" {
		errs.add(errors.New("http.addr is required when http is enabled"))
	}
	if c.GRPC.Enabled && c.GRPC.Addr == "" {
		errs.add(errors.New("grpc.addr is required when grpc is enabled"))
	}
	if c.Beacon.Enabled {
		if !c.HTTP.Enabled {
			errs.add(errors.New("beacon requires http to be enabled"))
		}
		if c.Beacon.CacheSize < 1 {
			errs.add(fmt.Errorf("beacon.cache_size = %d, must be positive", c.Beacon.CacheSize))
		}
		if c.Beacon.SessionTTL <= 0 {
			errs.add(fmt.Errorf("beacon.session_ttl = %v, must be positive", c.Beacon.SessionTTL))
		}
		if c.Beacon.MaxFrames < 1 {
			errs.add(fmt.Errorf("beacon.max_frames = %d, must be positive", c.Beacon.MaxFrames))
		}
	}

	switch c.Metrics.Backend {
	case "prometheus", "otel", "none":
	case "datadog":
		if c.Metrics.DatadogAddr == "" {
			errs.add(errors.New("metrics.datadog_addr is required for the datadog backend"))
		}
	default:
		errs.add(fmt.Errorf("metrics.backend = %q, must be prometheus, otel, datadog or none", c.Metrics.Backend))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs.add(fmt.Errorf("log.level = %q, must be debug, info, warn or error", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs.add(fmt.Errorf("log.format = %q, must be json or console", c.Log.Format))
	}

	if errs.hasErrors() {
		return errs
	}
	return nil
}

// ScoringOptions converts the thresholds, windows and latch of the monitor
// section. Beacon sessions use these so remote clients are judged like
// the local monitor.
func (m Monitor) ScoringOptions() []framegate.Option {
	thresholds := framegate.Thresholds{
		TargetFPS:         m.TargetFPS,
		FPSThreshold:      m.FPSThreshold,
		MemoryThresholdMB: m.MemoryThresholdMB,
		FPSWeight:         m.FPSWeight,
		MemoryWeight:      m.MemoryWeight,
	}
	devices := framegate.DefaultDeviceThresholds()
	devices.MobileWidth = m.MobileWidth
	devices.TabletWidth = m.TabletWidth

	features := framegate.DefaultFeatureThresholds()
	features.ParticlesMemoryMB = m.MemoryThresholdMB

	return []framegate.Option{
		framegate.WithSampleSize(m.SampleSize),
		framegate.WithUpdateInterval(m.UpdateInterval),
		framegate.WithThresholds(thresholds),
		framegate.WithFeatureThresholds(features),
		framegate.WithDeviceThresholds(devices),
		framegate.WithLevelBounds(framegate.LevelBounds{Low: m.LevelLow, Medium: m.LevelMedium}),
		framegate.WithLatch(framegate.LatchConfig{
			EnterAfter: m.Latch.EnterAfter,
			ExitAfter:  m.Latch.ExitAfter,
			MinDwell:   m.Latch.MinDwell,
		}),
	}
}

// Options converts the monitor section to options for the local monitor.
func (m Monitor) Options() []framegate.Option {
	opts := append(m.ScoringOptions(),
		framegate.WithSource(m.Source),
		framegate.WithWatchdog(m.Watchdog.Interval, m.Watchdog.Factor),
	)
	if m.Memory == "runtime" {
		opts = append(opts, framegate.WithMemorySource(framegate.RuntimeMemory{}))
	}
	return opts
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(EnvPrefix + key)
	if value == "" {
		return defaultValue, nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue, fmt.Errorf("invalid int value for %s%s: %q", EnvPrefix, key, value)
	}
	return i, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(EnvPrefix + key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid float value for %s%s: %q", EnvPrefix, key, value)
	}
	return f, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(EnvPrefix + key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return defaultValue, fmt.Errorf("invalid bool value for %s%s: %q", EnvPrefix, key, value)
	}
	return b, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(EnvPrefix + key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return defaultValue, fmt.Errorf("invalid duration value for %s%s: %q", EnvPrefix, key, value)
	}
	return d, nil
}
