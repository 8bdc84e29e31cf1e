// Package grpc provides gRPC interceptors that carry the current framegate
// snapshot into handler contexts and response metadata, gate expensive
// methods on render capacity, and mirror the performance level into the
// standard health service.
package grpc

import (
	"context"
	"strconv"
	"strings"

	"github.com/mushtruk/framegate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	md "google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Config holds configuration for the snapshot interceptors.
type Config struct {
	SkipMethods []string

	// LevelKey and DeviceKey name the header metadata keys. An empty key
	// disables that entry.
	LevelKey  string
	DeviceKey string

	// GatedMethods are method prefixes that are refused with
	// ResourceExhausted while Gate does not allow the current snapshot.
	GatedMethods []string
	Gate         framegate.Gate

	// RetryAfter is sent as a trailer on gated refusals (seconds).
	RetryAfter int

	Logger framegate.Logger
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		SkipMethods: []string{
			"/grpc.health.",
			"/grpc.reflection.",
		},
		LevelKey:   "x-performance-level",
		DeviceKey:  "x-device-tier",
		Gate:       framegate.DefaultGate(),
		RetryAfter: 5,
		Logger:     framegate.NoOpLogger{},
	}
}

type interceptor struct {
	store      *framegate.Store
	cfg        Config
	logger     framegate.Logger
	retryAfter md.MD
}

func newInterceptor(store *framegate.Store, cfg Config) *interceptor {
	logger := cfg.Logger
	if logger == nil {
		logger = framegate.NoOpLogger{}
	}
	return &interceptor{
		store:  store,
		cfg:    cfg,
		logger: logger,
		// Pre-allocate metadata to avoid allocation on hot path
		retryAfter: md.Pairs("retry-after", strconv.Itoa(cfg.RetryAfter)),
	}
}

func hasPrefix(method string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(method, p) {
			return true
		}
	}
	return false
}

// admit returns ctx carrying the current snapshot, or an error when the
// method is gated and the snapshot does not pass the gate.
func (i *interceptor) admit(ctx context.Context, method string) (context.Context, framegate.Snapshot, error) {
	snap := i.store.Load()
	if hasPrefix(method, i.cfg.GatedMethods) && !i.cfg.Gate.Allow(snap) {
		i.logger.DebugContext(ctx, "gated method refused",
			"method", method,
			"score", float64(snap.Score),
			"device", snap.Metrics.DeviceTier.String())
		return nil, snap, status.Errorf(codes.ResourceExhausted,
			"render capacity too low for %s (level %s)", method, snap.Level)
	}
	return framegate.NewContext(ctx, snap), snap, nil
}

func (i *interceptor) header(snap framegate.Snapshot) md.MD {
	pairs := make([]string, 0, 4)
	if i.cfg.LevelKey != "" {
		pairs = append(pairs, i.cfg.LevelKey, snap.Level.String())
	}
	if i.cfg.DeviceKey != "" {
		pairs = append(pairs, i.cfg.DeviceKey, snap.Metrics.DeviceTier.String())
	}
	return md.Pairs(pairs...)
}

// UnaryServerInterceptor attaches the store's snapshot to each call.
func UnaryServerInterceptor(store *framegate.Store, cfg Config) grpc.UnaryServerInterceptor {
	ic := newInterceptor(store, cfg)
	skipMethods := cfg.SkipMethods

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if hasPrefix(info.FullMethod, skipMethods) {
			return handler(ctx, req)
		}

		sctx, snap, err := ic.admit(ctx, info.FullMethod)
		if err != nil {
			_ = grpc.SetTrailer(ctx, ic.retryAfter)
			return nil, err
		}
		if h := ic.header(snap); len(h) > 0 {
			_ = grpc.SetHeader(ctx, h)
		}
		return handler(sctx, req)
	}
}

// StreamServerInterceptor attaches the store's snapshot, taken when the
// stream opens, to the stream context.
func StreamServerInterceptor(store *framegate.Store, cfg Config) grpc.StreamServerInterceptor {
	ic := newInterceptor(store, cfg)
	skipMethods := cfg.SkipMethods

	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if hasPrefix(info.FullMethod, skipMethods) {
			return handler(srv, ss)
		}

		sctx, snap, err := ic.admit(ss.Context(), info.FullMethod)
		if err != nil {
			ss.SetTrailer(ic.retryAfter)
			return err
		}
		if h := ic.header(snap); len(h) > 0 {
			_ = ss.SetHeader(h)
		}
		return handler(srv, &snapshotStream{ServerStream: ss, ctx: sctx})
	}
}

type snapshotStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *snapshotStream) Context() context.Context { return s.ctx }
