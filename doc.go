// Package framegate adapts rendering fidelity to measured frame throughput.
//
// A Monitor samples frames from a FrameScheduler, folds them into rolling
// fps and frame-time windows on a fixed interval, classifies the result
// into a Score, a Level and device/network tiers, and derives a
// FeatureConfig that decorative consumers use to choose between a full and
// a degraded render path. Each tick replaces the Store's Snapshot as a
// whole; readers call Store.Load or Subscribe and never see a partial update.
//
//	m := framegate.New(
//	    framegate.WithScheduler(framegate.NewTickerScheduler(60)),
//	    framegate.WithMemorySource(framegate.RuntimeMemory{}),
//	)
//	if err := m.Start(ctx); err != nil {
//	    return err
//	}
//	defer m.Stop()
//
//	if m.Store().Features().Enable3D {
//	    renderScene()
//	}
package framegate
