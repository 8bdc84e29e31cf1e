package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/mushtruk/framegate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func mockHandler(ctx context.Context, req any) (any, error) {
	return "response", nil
}

func mockInfo(method string) *grpc.UnaryServerInfo {
	return &grpc.UnaryServerInfo{
		FullMethod: method,
	}
}

// driven returns a running monitor and its scheduler.
func driven(t testing.TB) (*framegate.Monitor, *framegate.ManualScheduler) {
	t.Helper()
	sched := framegate.NewManualScheduler(time.Unix(0, 0))
	m := framegate.New(framegate.WithScheduler(sched))
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start monitor: %v", err)
	}
	t.Cleanup(m.Stop)
	return m, sched
}

func BenchmarkInterceptor_NormalPath(b *testing.B) {
	ctx := context.Background()
	interceptor := UnaryServerInterceptor(framegate.NewStore(1, nil), DefaultConfig())
	info := mockInfo("/test.Service/Method")

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, _ = interceptor(ctx, nil, info, mockHandler)
	}
}

func BenchmarkInterceptor_SkippedMethod(b *testing.B) {
	ctx := context.Background()
	interceptor := UnaryServerInterceptor(framegate.NewStore(1, nil), DefaultConfig())
	info := mockInfo("/grpc.health.v1/Check")

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, _ = interceptor(ctx, nil, info, mockHandler)
	}
}

func TestInterceptor_BasicFlow(t *testing.T) {
	interceptor := UnaryServerInterceptor(framegate.NewStore(1, nil), DefaultConfig())

	var got framegate.Snapshot
	var ok bool
	resp, err := interceptor(context.Background(), nil, mockInfo("/render.Scene/Load"),
		func(ctx context.Context, req any) (any, error) {
			got, ok = framegate.FromContext(ctx)
			return "response", nil
		})

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if resp != "response" {
		t.Fatalf("Expected 'response', got %v", resp)
	}
	if !ok {
		t.Fatal("Expected snapshot in handler context")
	}
	if got.Level != framegate.LevelHigh {
		t.Fatalf("Expected level high, got %s", got.Level)
	}
}

func TestInterceptor_SkipMethods(t *testing.T) {
	interceptor := UnaryServerInterceptor(framegate.NewStore(1, nil), DefaultConfig())

	for _, method := range []string{"/grpc.health.v1.Health/Check", "/grpc.reflection.v1.ServerReflection/Info"} {
		_, err := interceptor(context.Background(), nil, mockInfo(method),
			func(ctx context.Context, req any) (any, error) {
				if _, ok := framegate.FromContext(ctx); ok {
					t.Fatalf("Expected %s to be skipped", method)
				}
				return nil, nil
			})
		if err != nil {
			t.Fatalf("Expected no error for %s, got %v", method, err)
		}
	}
}

func TestInterceptor_GatedMethod(t *testing.T) {
	m, sched := driven(t)
	cfg := DefaultConfig()
	cfg.GatedMethods = []string{"/render.Scene/"}
	cfg.Gate = framegate.Gate{MinScore: 0.6}
	interceptor := UnaryServerInterceptor(m.Store(), cfg)

	if _, err := interceptor(context.Background(), nil, mockInfo("/render.Scene/Stream"), mockHandler); err != nil {
		t.Fatalf("Expected default snapshot to pass the gate, got %v", err)
	}

	// 20 fps: score 0.533
	sched.Frames(20, 50*time.Millisecond)

	_, err := interceptor(context.Background(), nil, mockInfo("/render.Scene/Stream"), mockHandler)
	if status.Code(err) != codes.ResourceExhausted {
		t.Fatalf("Expected ResourceExhausted, got %v", err)
	}

	if _, err := interceptor(context.Background(), nil, mockInfo("/render.Assets/List"), mockHandler); err != nil {
		t.Fatalf("Expected ungated method to pass, got %v", err)
	}
}

type mockStream struct {
	grpc.ServerStream
	ctx     context.Context
	header  metadata.MD
	trailer metadata.MD
}

func (s *mockStream) Context() context.Context {
	return s.ctx
}

func (s *mockStream) SetHeader(h metadata.MD) error {
	s.header = metadata.Join(s.header, h)
	return nil
}

func (s *mockStream) SetTrailer(tr metadata.MD) {
	s.trailer = metadata.Join(s.trailer, tr)
}

func TestStreamInterceptor(t *testing.T) {
	m, sched := driven(t)
	sched.Frames(20, 50*time.Millisecond)

	interceptor := StreamServerInterceptor(m.Store(), DefaultConfig())
	ss := &mockStream{ctx: context.Background()}

	var tick uint64
	err := interceptor(nil, ss, &grpc.StreamServerInfo{FullMethod: "/render.Scene/Watch"},
		func(srv any, stream grpc.ServerStream) error {
			snap, ok := framegate.FromContext(stream.Context())
			if !ok {
				t.Fatal("Expected snapshot in stream context")
			}
			tick = snap.Tick
			return nil
		})

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if tick != 1 {
		t.Fatalf("Expected tick 1, got %d", tick)
	}
	if got := ss.header.Get("x-performance-level"); len(got) != 1 || got[0] != "medium" {
		t.Fatalf("Expected level header medium, got %v", got)
	}
	if got := ss.header.Get("x-device-tier"); len(got) != 1 || got[0] != "desktop" {
		t.Fatalf("Expected device header desktop, got %v", got)
	}
}

func TestStreamInterceptor_GatedSetsRetryAfter(t *testing.T) {
	m, sched := driven(t)
	sched.Frames(20, 50*time.Millisecond)

	cfg := DefaultConfig()
	cfg.GatedMethods = []string{"/render."}
	cfg.Gate = framegate.Gate{Require3D: true}
	interceptor := StreamServerInterceptor(m.Store(), cfg)
	ss := &mockStream{ctx: context.Background()}

	err := interceptor(nil, ss, &grpc.StreamServerInfo{FullMethod: "/render.Scene/Watch"},
		func(srv any, stream grpc.ServerStream) error {
			t.Fatal("handler must not run")
			return nil
		})

	if status.Code(err) != codes.ResourceExhausted {
		t.Fatalf("Expected ResourceExhausted, got %v", err)
	}
	if got := ss.trailer.Get("retry-after"); len(got) != 1 || got[0] != "5" {
		t.Fatalf("Expected retry-after 5, got %v", got)
	}
}

func TestHealthReporter(t *testing.T) {
	m, sched := driven(t)
	hs := health.NewServer()
	r := NewHealthReporter(m.Store(), hs, "render")
	defer r.Close()

	check := func() healthpb.HealthCheckResponse_ServingStatus {
		resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "render"})
		if err != nil {
			t.Fatalf("health check: %v", err)
		}
		return resp.GetStatus()
	}

	if got := check(); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("Expected SERVING, got %s", got)
	}

	// 5 fps: 5/60*0.7 + 0.3 = 0.358
	sched.Frames(5, 200*time.Millisecond)
	if m.Store().Load().Level != framegate.LevelLow {
		t.Fatalf("Expected level low, got %s", m.Store().Load().Level)
	}

	deadline := time.Now().Add(2 * time.Second)
	for check() != healthpb.HealthCheckResponse_NOT_SERVING {
		if time.Now().After(deadline) {
			t.Fatal("Expected NOT_SERVING after the level dropped")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHealthReporter_IgnoresStaleSnapshots(t *testing.T) {
	m, _ := driven(t)
	hs := health.NewServer()
	r := NewHealthReporter(m.Store(), hs, "")
	defer r.Close()

	r.Process(framegate.Snapshot{Tick: 2, Level: framegate.LevelLow})
	r.Process(framegate.Snapshot{Tick: 1, Level: framegate.LevelHigh})

	resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if got := resp.GetStatus(); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("Expected NOT_SERVING from the newer snapshot, got %s", got)
	}
}
