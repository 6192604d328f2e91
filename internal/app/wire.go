package service

import (
	"fmt"

	"github.com/okian/flightrisk/internal/adapters/artifacts"
	"github.com/okian/flightrisk/internal/config"
	"github.com/okian/flightrisk/internal/domain/distance"
	"github.com/okian/flightrisk/internal/domain/features"
	"github.com/okian/flightrisk/internal/domain/interval"
	"github.com/okian/flightrisk/internal/domain/model"
	"github.com/okian/flightrisk/internal/registry"
	"github.com/okian/flightrisk/pkg/logger"
)

// FromConfig assembles a Service and its collaborators from configuration.
// Extra options are applied last.
func FromConfig(cfg *config.Config, opts ...Option) (*Service, error) {
	src, err := artifacts.New(cfg.Artifacts)
	if err != nil {
		return nil, fmt.Errorf("artifact source: %w", err)
	}

	reg := registry.New(src, cfg.Models, registry.WithLogger(logger.Get().Named("registry")))
	a := cfg.Airports

	base := []Option{
		WithDispatcher(registry.NewDispatcher(reg)),
		WithCatalog(reg),
		WithDistanceResolver(distance.NewResolver(cfg.DistanceTable)),
		WithEngine(features.NewEngine(features.NewAirports(a.Hubs, a.WestCoast, a.EastCoast, a.Central))),
		WithSynthesizer(interval.New(
			interval.WithTable(model.KindDeparture, cfg.RMSETable(config.KindDeparture)),
			interval.WithTable(model.KindArrival, cfg.RMSETable(config.KindArrival)),
			interval.WithDefaultRMSE(cfg.RMSEDefault),
		)),
		WithStageTimeouts(StageTimeouts{
			Cancellation: cfg.StageTimeouts.Cancellation,
			Departure:    cfg.StageTimeouts.Departure,
			Arrival:      cfg.StageTimeouts.Arrival,
		}),
		WithConfidence(cfg.Confidence),
		WithWorkerCount(cfg.WorkerCount),
		WithQueueSize(cfg.QueueSize),
		WithMaxBatchSize(cfg.MaxBatchSize),
		WithDefaultAirline(cfg.DefaultAirline),
	}
	return New(append(base, opts...)...), nil
}
