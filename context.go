package framegate

import "context"

type snapshotKey struct{}

// NewContext returns a copy of ctx carrying snap.
func NewContext(ctx context.Context, snap Snapshot) context.Context {
	return context.WithValue(ctx, snapshotKey{}, snap)
}

// FromContext returns the snapshot stored by NewContext. Callers that only
// need a value can use FromContextOrDefault.
func FromContext(ctx context.Context) (Snapshot, bool) {
	snap, ok := ctx.Value(snapshotKey{}).(Snapshot)
	return snap, ok
}

// FromContextOrDefault returns the snapshot in ctx or DefaultSnapshot.
func FromContextOrDefault(ctx context.Context) Snapshot {
	if snap, ok := FromContext(ctx); ok {
		return snap
	}
	return DefaultSnapshot()
}
