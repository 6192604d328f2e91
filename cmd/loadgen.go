package main

import (
	"github.com/spf13/cobra"

	"github.com/okian/flightrisk/internal/loadgen"
	"github.com/okian/flightrisk/pkg/logger"
)

func newLoadgenCmd() *cobra.Command {
	cfg := loadgen.DefaultConfig()
	var format string

	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Drive a running server with random flights",
		Example: `  flightrisk loadgen --requests 5000 --workers 16
  flightrisk loadgen --url http://localhost:8080 --batch 100 --output flights.json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(logger.WithFormat(format)); err != nil {
				return err
			}
			if cfg.Verbose {
				_ = logger.SetLevelString("debug")
			}
			st, err := loadgen.Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"submitted":    st.Submitted,
				"succeeded":    st.Succeeded,
				"failed":       st.Failed,
				"stage_errors": st.StageErrors,
				"statuses":     st.Statuses,
				"p50_ms":       st.LatencyP50.Milliseconds(),
				"p95_ms":       st.LatencyP95.Milliseconds(),
				"p99_ms":       st.LatencyP99.Milliseconds(),
				"success_rate": st.SuccessRate(),
				"per_second":   st.Throughput(),
			})
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "base URL of the service")
	fl.IntVar(&cfg.Requests, "requests", cfg.Requests, "number of flights to generate and submit")
	fl.IntVar(&cfg.Workers, "workers", cfg.Workers, "number of concurrent workers")
	fl.IntVar(&cfg.BatchSize, "batch", 0, "flights per /predict/batch call; 0 posts to /predict")
	fl.IntVar(&cfg.Year, "year", 0, "year stamped on generated flights")
	fl.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP request timeout")
	fl.StringVar(&cfg.OutputFile, "output", "", "write the generated flights to this JSON file")
	fl.BoolVarP(&cfg.Verbose, "verbose", "v", false, "log every failed request")
	fl.StringVar(&format, "log-format", string(logger.FormatText), "text or json")
	return cmd
}
