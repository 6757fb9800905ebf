package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/gophertribe/devtool/test"
	"github.com/spf13/cobra"
)

// packages sharing the bus between goroutines; they run under the race detector
var racePackages = []string{"./i2c/...", "./environment/...", "./accel/...", "./sim/..."}

// cli invocations exercised against the simulated board
var simRuns = [][]string{
	{"baro", "read"},
	{"baro", "read", "--mode", "ultra-high-resolution"},
	{"baro", "calibration"},
	{"imu", "accel"},
	{"imu", "mag"},
	{"imu", "compass"},
	{"imu", "config"},
	{"monitor", "--interval", "100ms", "--count", "3"},
	{"config", "show"},
}

func TestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run unit tests",
		RunE: func(cmd *cobra.Command, args []string) error {
			race, err := cmd.Flags().GetBool("race")
			if err != nil {
				return fmt.Errorf("could not get race flag: %w", err)
			}
			if race {
				return goTool(cmd.Context(), append([]string{"test", "-race", "-count=1"}, racePackages...)...)
			}
			if err := test.Test(); err != nil {
				return fmt.Errorf("failed to run tests: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().Bool("race", false, "only run the bus and driver packages with the race detector")
	return cmd
}

func LintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Run linting",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := test.Lint()
			if err != nil {
				return fmt.Errorf("failed to run linting: %w", err)
			}
			return nil
		},
	}
	return cmd
}

func IntegrationTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integration-test",
		Short: "Run the cli against the simulated board, then the integration suite",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, run := range simRuns {
				argv := append([]string{"run", "./cmd/sensors", "--adapter", "sim"}, run...)
				if err := goTool(cmd.Context(), argv...); err != nil {
					return fmt.Errorf("sim run %v failed: %w", run, err)
				}
			}
			simOnly, err := cmd.Flags().GetBool("sim-only")
			if err != nil {
				return fmt.Errorf("could not get sim-only flag: %w", err)
			}
			if simOnly {
				return nil
			}
			if err := test.Integ(); err != nil {
				return fmt.Errorf("failed to run integration testing: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().Bool("sim-only", false, "skip the integration suite, which needs a board attached")
	return cmd
}

func goTool(ctx context.Context, args ...string) error {
	slog.Info("running go", "args", args)
	c := exec.CommandContext(ctx, "go", args...)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	return c.Run()
}
