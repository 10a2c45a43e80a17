// Command simulator is the writer-side process: it owns the shared-memory
// ring buffer and the control channel, and publishes synthetic vitals and
// waveform frames (spec §1, §2).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/z-monitor/sensorcore/internal/config"
	"github.com/z-monitor/sensorcore/internal/logging"
	"github.com/z-monitor/sensorcore/internal/simulator"
	"github.com/z-monitor/sensorcore/internal/xcmd"
)

var cmd struct {
	ConfigPath string
}

var rootCmd = &cobra.Command{
	Use:   "sensor-simulator",
	Short: "Simulated bedside sensor producer (ring buffer writer)",
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := run(cmd.ConfigPath); err != nil {
			var interrupted xcmd.Interrupted
			if errors.As(err, &interrupted) {
				return nil
			}
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVarP(&cmd.ConfigPath, "config", "c", "", "Path to the configuration file (optional; defaults apply)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, _, err := logging.Init(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer log.Sync()

	sim, err := simulator.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize simulator: %w", err)
	}
	defer sim.Close()

	ctx := context.Background()
	wg, ctx := errgroup.WithContext(ctx)
	wg.Go(func() error {
		return sim.Run(ctx)
	})
	wg.Go(func() error {
		err := xcmd.WaitInterrupted(ctx)
		log.Infof("caught signal: %v", err)
		return err
	})

	return wg.Wait()
}
