package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"f1telemetry/internal/api"
	"f1telemetry/internal/config"
	"f1telemetry/internal/provider"
)

// NewRootCmd builds the f1telemetry command tree.
func NewRootCmd(version string) *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "f1telemetry",
		Short:         "Racing lines, driver overlays and sector deltas from lap telemetry",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	opts.bind(root)

	root.AddCommand(
		newYearsCmd(),
		newScheduleCmd(opts),
		newRacingLineCmd(opts),
		newCompareCmd(opts),
		newSectorsCmd(opts),
		newQualVsRaceCmd(opts),
		newServeCmd(opts, version),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute(version string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root := NewRootCmd(version)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", errorMessage(err))
		return 1
	}
	return 0
}

func newYearsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "years",
		Short: "list seasons with telemetry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, y := range provider.AvailableYears(time.Now()) {
				fmt.Fprintln(cmd.OutOrStdout(), y)
			}
			return nil
		},
	}
}

func newServeCmd(opts *globalOptions, version string) *cobra.Command {
	var reload time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := opts.open(ctx, cmd, os.Stdout)
			if err != nil {
				return err
			}
			defer rt.Close()
			if !rt.cfg.Get().API.Enabled {
				return errors.New("api is disabled in the config")
			}
			srv := api.Start(ctx, rt.cfg, rt.analyzer, rt.cache, rt.logger, version)
			if srv == nil {
				return errors.New("api did not start")
			}

			stop := make(chan struct{})
			go rt.cfg.Watch(reload, func(cfg *config.Config) {
				rt.analyzer.UpdateConfig(cfg)
				rt.logger.Info("config reloaded", "path", rt.cfg.Path())
			}, func(err error) {
				rt.logger.Warn("config reload failed", "err", err)
			}, stop)

			<-ctx.Done()
			close(stop)
			rt.logger.Info("shutting down")
			return nil
		},
	}
	cmd.Flags().DurationVar(&reload, "reload-interval", 3*time.Second, "how often to check the config file for changes")
	return cmd
}
