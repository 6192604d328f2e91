// Command flightrisk serves flight cancellation and delay predictions and
// offers operator subcommands for one-off predictions, distance lookups and
// load runs.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/okian/flightrisk/internal/config"
	"github.com/okian/flightrisk/pkg/logger"
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "flightrisk",
		Short:        "Flight cancellation and delay prediction service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}
	root.AddCommand(newServeCmd(), newPredictCmd(), newDistanceCmd(), newLoadgenCmd())
	return root
}

// setup initializes logging and loads configuration
// (defaults -> .env -> optional file -> env).
func setup(ctx context.Context) (*config.Config, error) {
	if err := logger.Init(); err != nil {
		return nil, err
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return nil, err
	}
	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}
