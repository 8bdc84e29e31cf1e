package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mushtruk/framegate"
	"github.com/mushtruk/framegate/logging"
	"github.com/spf13/cobra"
)

type simulateOptions struct {
	fps        float64
	recoverFPS float64
	duration   time.Duration
	width      int
	userAgent  string
	memoryMB   float64
	network    string
	json       bool
}

func newSimulateCmd(c *cli) *cobra.Command {
	opts := &simulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a synthetic frame rate through the monitor",
		Long: `Feeds frames at a fixed rate into a monitor driven by a virtual clock
and prints every snapshot it publishes. With --recover-fps the rate
switches halfway through, which shows the low performance latch
entering and leaving.

Example:
  framegate simulate --fps 30 --duration 5s
  framegate simulate --fps 20 --recover-fps 60 --duration 10s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}

			sched := framegate.NewManualScheduler(time.Now())
			m := framegate.New(opts.monitorOptions(sched, logging.NewZapAdapter(c.logger))...)
			if err := m.Start(cmd.Context()); err != nil {
				return err
			}
			defer m.Stop()

			out := newSnapshotPrinter(cmd.OutOrStdout(), opts.json)
			var last uint64
			for _, phase := range opts.phases() {
				for i := 0; i < phase.frames; i++ {
					sched.Frames(1, phase.interval)
					if snap := m.Store().Load(); snap.Tick != last {
						last = snap.Tick
						if err := out.print(snap); err != nil {
							return err
						}
					}
				}
			}
			return out.flush()
		},
	}

	cmd.Flags().Float64Var(&opts.fps, "fps", 30, "Frames per second to simulate")
	cmd.Flags().Float64Var(&opts.recoverFPS, "recover-fps", 0, "Frame rate for the second half of the run (0 keeps --fps)")
	cmd.Flags().DurationVar(&opts.duration, "duration", 5*time.Second, "Simulated run length")
	cmd.Flags().IntVar(&opts.width, "width", 1280, "Viewport width in CSS pixels")
	cmd.Flags().StringVar(&opts.userAgent, "ua", "", "User agent string")
	cmd.Flags().Float64Var(&opts.memoryMB, "memory", -1, "Heap usage in MB (negative when unsupported)")
	cmd.Flags().StringVar(&opts.network, "network", "", "Effective connection type, e.g. 4g or slow-2g")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print one JSON snapshot per line")
	return cmd
}

// maxSimulatedFPS keeps frame intervals at or above one millisecond.
const maxSimulatedFPS = 1000

func (o *simulateOptions) validate() error {
	if err := checkRate("--fps", o.fps); err != nil {
		return err
	}
	if o.recoverFPS != 0 {
		if err := checkRate("--recover-fps", o.recoverFPS); err != nil {
			return err
		}
	}
	if o.duration <= 0 {
		return errors.New("--duration must be positive")
	}
	return nil
}

func checkRate(flag string, fps float64) error {
	if math.IsNaN(fps) || math.IsInf(fps, 0) {
		return fmt.Errorf("%s must be a finite number", flag)
	}
	if fps <= 0 || fps > maxSimulatedFPS {
		return fmt.Errorf("%s must be in (0, %d]", flag, maxSimulatedFPS)
	}
	return nil
}

func (o *simulateOptions) monitorOptions(sched framegate.FrameScheduler, logger framegate.Logger) []framegate.Option {
	var mem framegate.MemorySource = framegate.UnsupportedMemory{}
	if o.memoryMB >= 0 {
		mem = framegate.StaticMemory{UsedMB: o.memoryMB}
	}
	return []framegate.Option{
		framegate.WithSource("simulate"),
		framegate.WithScheduler(sched),
		framegate.WithMemorySource(mem),
		framegate.WithNetworkSource(framegate.StaticNetwork(o.network)),
		framegate.WithViewportSource(framegate.StaticViewport{Width: o.width, UserAgent: o.userAgent}),
		framegate.WithWatchdog(0, 0),
		framegate.WithLogger(logger),
	}
}

type phase struct {
	frames   int
	interval time.Duration
}

func (o *simulateOptions) phases() []phase {
	at := func(fps float64, d time.Duration) phase {
		interval := time.Duration(float64(time.Second) / fps)
		return phase{frames: int(d / interval), interval: interval}
	}
	if o.recoverFPS == 0 {
		return []phase{at(o.fps, o.duration)}
	}
	half := o.duration / 2
	return []phase{at(o.fps, half), at(o.recoverFPS, o.duration-half)}
}

type snapshotPrinter struct {
	json bool
	enc  *json.Encoder
	tw   *tabwriter.Writer
}

func newSnapshotPrinter(w io.Writer, asJSON bool) *snapshotPrinter {
	if asJSON {
		return &snapshotPrinter{json: true, enc: json.NewEncoder(w)}
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TICK\tFPS\tP95\tSCORE\tLEVEL\tMODE\tDEVICE\tFEATURES")
	return &snapshotPrinter{tw: tw}
}

func (p *snapshotPrinter) print(snap framegate.Snapshot) error {
	if p.json {
		return p.enc.Encode(snap)
	}
	mode := "-"
	if snap.LowPerformanceMode {
		mode = "low"
	}
	_, err := fmt.Fprintf(p.tw, "%d\t%.1f\t%v\t%.2f\t%s\t%s\t%s\t%s\n",
		snap.Tick,
		snap.Metrics.AverageFPS,
		snap.Metrics.Jitter.P95,
		snap.Score,
		snap.Level,
		mode,
		snap.Metrics.DeviceTier,
		featureList(snap.Features))
	return err
}

func (p *snapshotPrinter) flush() error {
	if p.json {
		return nil
	}
	return p.tw.Flush()
}

func featureList(f framegate.FeatureConfig) string {
	var parts []string
	if f.EnableAnimations {
		parts = append(parts, "animations")
	}
	if f.Enable3D {
		parts = append(parts, "3d")
	}
	if f.EnableParticles {
		parts = append(parts, "particles")
	}
	if f.EnableFluidEffects {
		parts = append(parts, "fluid")
	}
	parts = append(parts, "images="+f.ImageQuality.String())
	return strings.Join(parts, ",")
}
