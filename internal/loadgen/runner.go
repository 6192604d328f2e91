// Package loadgen drives a running flightrisk server with random flights and
// summarizes status codes and latencies.
package loadgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/flightrisk/internal/domain/model"
	"github.com/okian/flightrisk/pkg/logger"
)

const (
	directoryPermission = 0750
	filePermission      = 0600
)

// ErrUnhealthy is returned when the target server does not report ready.
var ErrUnhealthy = errors.New("loadgen: service not healthy")

// Run executes a complete load run.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	if config.Requests <= 0 {
		return nil, fmt.Errorf("loadgen: requests must be positive, got %d", config.Requests)
	}
	st := &Stats{
		Statuses:  make(map[int]int),
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting flightrisk load run",
		logger.String("baseURL", config.BaseURL),
		logger.Int("requests", config.Requests),
		logger.Int("workers", config.Workers),
		logger.Int("batchSize", config.BatchSize),
		logger.String("timeout", config.Timeout.String()))

	if err := checkServiceHealth(ctx, config); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	flights, err := Generate(ctx, config.Requests, config.Year)
	if err != nil {
		return nil, fmt.Errorf("flight generation failed: %w", err)
	}
	st.Generated = len(flights)

	if config.OutputFile != "" {
		if err := saveFlightsToFile(ctx, config.OutputFile, flights); err != nil {
			logger.Get().Warn(ctx, "failed to save flights to file", logger.Error(err))
		}
	}

	submitFlights(ctx, config, flights, st)

	st.EndTime = time.Now()
	st.Duration = st.EndTime.Sub(st.StartTime)
	displayFinalStats(ctx, st)

	if err := ctx.Err(); err != nil {
		return st, fmt.Errorf("load run interrupted: %w", err)
	}
	return st, nil
}

// checkServiceHealth verifies the service is running and ready.
func checkServiceHealth(ctx context.Context, config *Config) error {
	client := newHTTPClient(config.Timeout)
	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveFlightsToFile writes the generated flights as a JSON array.
func saveFlightsToFile(ctx context.Context, filename string, flights []model.FlightRequest) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(flights, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal flights: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	logger.Get().Info(ctx, "flights saved to file", logger.String("filename", filename))
	return nil
}

func displayFinalStats(ctx context.Context, st *Stats) {
	statuses := make(map[string]int, len(st.Statuses))
	for code, n := range st.Statuses {
		statuses[fmt.Sprint(code)] = n
	}
	logger.Get().Info(ctx, "final statistics",
		logger.Int("generated", st.Generated),
		logger.Int("submitted", st.Submitted),
		logger.Int("succeeded", st.Succeeded),
		logger.Int("failed", st.Failed),
		logger.Int("stageErrors", st.StageErrors),
		logger.Any("statuses", statuses),
		logger.String("p50", st.LatencyP50.String()),
		logger.String("p95", st.LatencyP95.String()),
		logger.String("p99", st.LatencyP99.String()),
		logger.String("max", st.LatencyMax.String()),
		logger.String("duration", st.Duration.String()),
		logger.Float64("successRate", st.SuccessRate()),
		logger.Float64("flightsPerSecond", st.Throughput()))
}
