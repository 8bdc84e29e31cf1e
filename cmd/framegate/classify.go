package main

import (
	"encoding/json"
	"errors"
	"math"

	"github.com/mushtruk/framegate"
	framegatehttp "github.com/mushtruk/framegate/http"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type classifyOptions struct {
	fps       float64
	memoryMB  float64
	width     int
	userAgent string
	network   string
}

func newClassifyCmd(c *cli) *cobra.Command {
	opts := &classifyOptions{}

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Score a single set of readings and print the derived snapshot",
		Long: `Runs one classification pass over the given readings and prints the
snapshot as JSON, together with the root classes and variables a page
would apply.

Example:
  framegate classify --fps 55 --memory 20 --width 375`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := opts.evaluate(c.logger)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(framegatehttp.NewSnapshotResponse("", snap))
		},
	}

	cmd.Flags().Float64Var(&opts.fps, "fps", 60, "Average frames per second")
	cmd.Flags().Float64Var(&opts.memoryMB, "memory", -1, "Heap usage in MB (negative when unsupported)")
	cmd.Flags().IntVar(&opts.width, "width", 1280, "Viewport width in CSS pixels")
	cmd.Flags().StringVar(&opts.userAgent, "ua", "", "User agent string")
	cmd.Flags().StringVar(&opts.network, "network", "", "Effective connection type, e.g. 4g or slow-2g")
	return cmd
}

func (o *classifyOptions) evaluate(logger *zap.Logger) (framegate.Snapshot, error) {
	if math.IsNaN(o.fps) || math.IsInf(o.fps, 0) || o.fps < 0 {
		return framegate.Snapshot{}, errors.New("--fps must be a finite, non-negative number")
	}
	if math.IsNaN(o.memoryMB) || math.IsInf(o.memoryMB, 0) {
		return framegate.Snapshot{}, errors.New("--memory must be a finite number")
	}

	device, ok := framegate.ClassifyDevice(o.width, o.userAgent, framegate.DefaultDeviceThresholds())
	if !ok {
		logger.Debug("viewport has no size, assuming desktop", zap.Int("width", o.width))
	}

	m := framegate.Metrics{
		AverageFPS:  o.fps,
		DeviceTier:  device,
		NetworkTier: framegate.ClassifyNetwork(framegate.StaticNetwork(o.network).NetworkHint()),
	}
	if o.fps > 0 {
		m.AverageFrameTimeMs = 1000 / o.fps
	}
	if o.memoryMB >= 0 {
		m.MemoryUsageMB = o.memoryMB
		m.MemorySupported = true
	}

	snap := framegate.Evaluate(m, framegate.DefaultThresholds(),
		framegate.DefaultFeatureThresholds(), framegate.DefaultLevelBounds())
	snap.LowPerformanceMode = snap.LowPerformance
	return snap, nil
}
