package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	service "github.com/okian/flightrisk/internal/app"
	"github.com/okian/flightrisk/internal/domain/distance"
	"github.com/okian/flightrisk/internal/domain/model"
	"github.com/okian/flightrisk/pkg/logger"
)

type predictFlags struct {
	raw          string
	year         int
	week         string
	airline      string
	flightNumber string
	depTime      float64
	arrTime      float64
	distance     float64
	rainfall     float64
	destRainfall float64
	extreme      int
	destExtreme  int
	at           string
}

func newPredictCmd() *cobra.Command {
	var f predictFlags
	cmd := &cobra.Command{
		Use:   "predict ORIGIN DESTINATION",
		Short: "Run the prediction pipeline once and print the result as JSON",
		Example: `  flightrisk predict JFK LAX --dep-time 1345 --week Fri
  flightrisk predict --json '{"from":"ATL","to":"ORD","rainfall":0.4}'`,
		Args: cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request(cmd, args)
			if err != nil {
				return err
			}
			if err := validator.New().Struct(req); err != nil {
				return fmt.Errorf("%w: %w", service.ErrInvalidRequest, err)
			}

			cfg, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			svc, err := service.FromConfig(cfg, service.WithLogger(logger.Named("service")))
			if err != nil {
				return fmt.Errorf("build service: %w", err)
			}

			res, err := svc.Predict(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.raw, "json", "", "flight request as JSON; positional airports are ignored when set")
	fl.IntVar(&f.year, "year", 0, "model year; defaults to the current year")
	fl.StringVar(&f.week, "week", "", "day of week as 0-6 (Sunday=0) or a three-letter name")
	fl.StringVar(&f.airline, "airline", "", "carrier code")
	fl.StringVar(&f.flightNumber, "flight", "", "flight number such as DL1234")
	fl.Float64Var(&f.depTime, "dep-time", 0, "scheduled departure as HHMM")
	fl.Float64Var(&f.arrTime, "arr-time", 0, "scheduled arrival as HHMM")
	fl.Float64Var(&f.distance, "distance", 0, "miles; looked up when omitted")
	fl.Float64Var(&f.rainfall, "rainfall", 0, "origin rainfall")
	fl.Float64Var(&f.destRainfall, "dest-rainfall", 0, "destination rainfall")
	fl.IntVar(&f.extreme, "extreme-weather", 0, "origin extreme weather flag (0 or 1)")
	fl.IntVar(&f.destExtreme, "dest-extreme-weather", 0, "destination extreme weather flag (0 or 1)")
	fl.StringVar(&f.at, "time", "", "scheduled departure timestamp, e.g. 2024-05-15T13:45")
	return cmd
}

// request builds the flight from --json or from positional airports and flags.
func (f *predictFlags) request(cmd *cobra.Command, args []string) (*model.FlightRequest, error) {
	var req model.FlightRequest
	if f.raw != "" {
		if err := json.Unmarshal([]byte(f.raw), &req); err != nil {
			return nil, fmt.Errorf("parse --json: %w", err)
		}
		return &req, nil
	}
	if len(args) != 2 {
		return nil, fmt.Errorf("%w: ORIGIN and DESTINATION are required", service.ErrInvalidRequest)
	}

	req.Origin, req.Destination = args[0], args[1]
	req.Year = f.year
	req.Airline = f.airline
	req.FlightNumber = f.flightNumber
	req.Distance = f.distance
	req.Time = f.at
	if f.week != "" {
		if err := req.Week.UnmarshalJSON([]byte(strconv.Quote(f.week))); err != nil {
			return nil, fmt.Errorf("parse --week: %w", err)
		}
	}

	changed := cmd.Flags().Changed
	if changed("dep-time") {
		req.DepTime = &f.depTime
	}
	if changed("arr-time") {
		req.ArrTime = &f.arrTime
	}
	if changed("rainfall") {
		req.Rainfall = &f.rainfall
	}
	if changed("dest-rainfall") {
		req.DestRainfall = &f.destRainfall
	}
	if changed("extreme-weather") {
		req.ExtremeWeather = &f.extreme
	}
	if changed("dest-extreme-weather") {
		req.DestExtremeWeather = &f.destExtreme
	}
	return &req, nil
}

func newDistanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "distance ORIGIN DESTINATION",
		Short: "Look up the mileage between two airports",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			r := distance.NewResolver(cfg.DistanceTable, distance.WithLogger(logger.Named("distance")))
			miles := r.Resolve(cmd.Context(), args[0], args[1])
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"from":     strings.ToUpper(args[0]),
				"to":       strings.ToUpper(args[1]),
				"distance": miles,
				"known":    miles != distance.Unknown,
			})
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
