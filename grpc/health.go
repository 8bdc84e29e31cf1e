package grpc

import (
	"sync"

	"github.com/mushtruk/framegate"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthReporter mirrors a store's performance level into a gRPC health
// server: a service is NOT_SERVING while the level is low and SERVING
// otherwise.
type HealthReporter struct {
	server      *health.Server
	service     string
	unsubscribe func()

	mu   sync.Mutex
	tick uint64
}

// NewHealthReporter sets the initial status of service from the store's
// current snapshot and keeps it in sync until Close. An empty service name
// reports the server-wide status.
func NewHealthReporter(store *framegate.Store, server *health.Server, service string) *HealthReporter {
	r := &HealthReporter{server: server, service: service}
	r.unsubscribe = store.Subscribe(r)
	r.Process(store.Load())
	return r
}

// Process implements framegate.Observer. Snapshots older than the last one
// applied are ignored.
func (r *HealthReporter) Process(snap framegate.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if snap.Tick < r.tick {
		return
	}
	r.tick = snap.Tick
	r.server.SetServingStatus(r.service, servingStatus(snap))
}

// Close stops following the store. The last status is kept.
func (r *HealthReporter) Close() { r.unsubscribe() }

func servingStatus(snap framegate.Snapshot) healthpb.HealthCheckResponse_ServingStatus {
	if snap.Level == framegate.LevelLow {
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
	return healthpb.HealthCheckResponse_SERVING
}
