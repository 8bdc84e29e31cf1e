// Command framegate runs the frame monitor as a simulation, classifies a
// single set of readings, or serves snapshots over HTTP and gRPC.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// cli holds state shared by every subcommand.
type cli struct {
	verbose bool
	level   zap.AtomicLevel
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{level: zap.NewAtomicLevelAt(zapcore.InfoLevel)}

	root := &cobra.Command{
		Use:   "framegate",
		Short: "Frame-rate driven performance scoring and feature gating",
		Long: `framegate samples frame timings, folds them into a performance score
and derives which expensive features (3D, particles, fluid effects) a
renderer should enable.

Use "simulate" to replay a synthetic frame rate, "classify" to score a
single set of readings, and "serve" to run the monitor as a service.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.verbose {
				c.level.SetLevel(zapcore.DebugLevel)
			}
			logger, err := buildLogger("json", c.level)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			c.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable verbose logging")

	root.AddCommand(newSimulateCmd(c))
	root.AddCommand(newClassifyCmd(c))
	root.AddCommand(newServeCmd(c))
	return root
}

// buildLogger creates a production zap logger writing format ("json" or
// "console") at the given level.
func buildLogger(format string, level zap.AtomicLevel) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Level = level
	if format == "console" {
		config.Encoding = "console"
		config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	return config.Build()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
