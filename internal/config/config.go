// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() returns a Config populated with defaults.
// - Load layers .env, YAML and environment values on top of the defaults.
// - Validation errors wrap ErrInvalidConfig and name the offending key.
package config

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Model kinds served by the registry.
const (
	KindCancellation = "cancellation"
	KindDeparture    = "departure"
	KindArrival      = "arrival"
)

// Artifact roles within a model kind.
const (
	RoleModel        = "model"
	RoleClassifier   = "classifier"
	RoleRegressor    = "regressor"
	RolePreprocessor = "preprocessor"
)

// Artifact source types.
const (
	SourceFile = "file"
	SourceHTTP = "http"
)

// YearPlaceholder is replaced with the resolved model year in path templates.
const YearPlaceholder = "{year}"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Confidence is the two-sided level used for delay intervals.
	Confidence float64 `koanf:"confidence"`

	// WorkerCount sets the number of batch prediction workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the in-memory batch job queue.
	QueueSize int `koanf:"queue_size"`

	// MaxBatchSize caps the number of flights accepted per batch request.
	MaxBatchSize int `koanf:"max_batch_size"`

	StageTimeouts StageTimeouts `koanf:"stage_timeouts"`

	// DistanceTable is the path of the Origin,Destination,Distance CSV.
	DistanceTable string `koanf:"distance_table"`

	Artifacts Artifacts `koanf:"artifacts"`
	Models    Models    `koanf:"models"`
	RMSE      RMSE      `koanf:"rmse"`

	// RMSEDefault applies to years missing from the RMSE tables.
	RMSEDefault float64 `koanf:"rmse_default"`

	Airports Airports `koanf:"airports"`

	// DefaultAirline is the carrier used when neither airline nor flight number is supplied.
	DefaultAirline string `koanf:"default_airline"`

	// WarmModels loads every configured model at startup instead of on first use.
	WarmModels bool `koanf:"warm_models"`
}

// StageTimeouts time-boxes each prediction stage.
type StageTimeouts struct {
	Cancellation time.Duration `koanf:"cancellation"`
	Departure    time.Duration `koanf:"departure"`
	Arrival      time.Duration `koanf:"arrival"`
}

// Artifacts configures where trained models are read from.
type Artifacts struct {
	Source          string        `koanf:"source"`
	Root            string        `koanf:"root"`
	BaseURL         string        `koanf:"base_url"`
	Timeout         time.Duration `koanf:"timeout"`
	MaxRetries      int           `koanf:"max_retries"`
	BackoffInitial  time.Duration `koanf:"backoff_initial"`
	BackoffMax      time.Duration `koanf:"backoff_max"`
	BreakerFailures int           `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

// ModelSet lists the years and artifact path templates of one model kind.
type ModelSet struct {
	Years []int             `koanf:"years"`
	Paths map[string]string `koanf:"paths"`
	// PreprocessorYear pins the fitted preprocessor shared by every year.
	PreprocessorYear int `koanf:"preprocessor_year"`
}

// Models groups the three model kinds.
type Models struct {
	Cancellation ModelSet `koanf:"cancellation"`
	Departure    ModelSet `koanf:"departure"`
	Arrival      ModelSet `koanf:"arrival"`
}

// RMSE holds per-year residual error tables keyed by the year as a string.
type RMSE struct {
	Departure map[string]float64 `koanf:"departure"`
	Arrival   map[string]float64 `koanf:"arrival"`
}

// Airports holds the hub and region IATA sets.
type Airports struct {
	Hubs      []string `koanf:"hubs"`
	WestCoast []string `koanf:"west_coast"`
	EastCoast []string `koanf:"east_coast"`
	Central   []string `koanf:"central"`
}

var defaultYears = []int{2021, 2022, 2023, 2024}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:     "info",
		LogFormat:    "text",
		Addr:         ":9080",
		Confidence:   0.95,
		WorkerCount:  runtime.NumCPU() * 2,
		QueueSize:    1024,
		MaxBatchSize: 500,
		StageTimeouts: StageTimeouts{
			Cancellation: 5 * time.Second,
			Departure:    3 * time.Second,
			Arrival:      3 * time.Second,
		},
		DistanceTable: "models/top30_airport_distances.csv",
		Artifacts: Artifacts{
			Source:          SourceFile,
			Root:            "models",
			Timeout:         10 * time.Second,
			MaxRetries:      3,
			BackoffInitial:  200 * time.Millisecond,
			BackoffMax:      2 * time.Second,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Models: Models{
			Cancellation: ModelSet{
				Years: append([]int(nil), defaultYears...),
				Paths: map[string]string{
					RoleModel: "cancelled_prob/cancel_model_{year}.json",
				},
			},
			Departure: ModelSet{
				Years: append([]int(nil), defaultYears...),
				Paths: map[string]string{
					RoleClassifier:   "dep_delay_nn/year_{year}/models_{year}/resnet_classifier_{year}.json",
					RoleRegressor:    "dep_delay_nn/year_{year}/models_{year}/resnet_regressor_{year}.json",
					RolePreprocessor: "dep_delay_nn/year_{year}/resnet_preprocessor_{year}.json",
				},
				PreprocessorYear: 2021,
			},
			Arrival: ModelSet{
				Years: append([]int(nil), defaultYears...),
				Paths: map[string]string{
					RoleClassifier: "arr_delay_rf/year_{year}/arr_delay_class_model_{year}.json",
					RoleRegressor:  "arr_delay_rf/year_{year}/arr_delay_reg_model_{year}.json",
				},
			},
		},
		RMSE: RMSE{
			Departure: map[string]float64{
				"2021": 28.70781707763672,
				"2022": 38.48480987548828,
				"2023": 37.411659240722656,
				"2024": 49.193267822265625,
			},
			Arrival: map[string]float64{
				"2021": 27.22,
				"2022": 28.18,
				"2023": 29.37,
				"2024": 38.35,
			},
		},
		RMSEDefault: 40.0,
		Airports: Airports{
			Hubs:      []string{"ATL", "DFW", "ORD", "LAX", "DEN", "CLT", "LAS", "PHX", "MCO", "SEA"},
			WestCoast: []string{"LAX", "SFO", "SEA", "PDX", "SAN", "LAS"},
			EastCoast: []string{"JFK", "LGA", "EWR", "BOS", "DCA", "IAD", "MIA", "FLL", "ATL", "CLT"},
			Central:   []string{"ORD", "MDW", "DFW", "IAH", "DEN", "MSP", "DTW", "STL"},
		},
		DefaultAirline: "AA",
	}
}

// ModelSet returns the configuration of the given kind.
func (c *Config) ModelSet(kind string) (ModelSet, bool) {
	switch kind {
	case KindCancellation:
		return c.Models.Cancellation, true
	case KindDeparture:
		return c.Models.Departure, true
	case KindArrival:
		return c.Models.Arrival, true
	default:
		return ModelSet{}, false
	}
}

// RMSETable converts the string-keyed table of a delay kind into year keys.
func (c *Config) RMSETable(kind string) map[int]float64 {
	var src map[string]float64
	switch kind {
	case KindDeparture:
		src = c.RMSE.Departure
	case KindArrival:
		src = c.RMSE.Arrival
	}
	out := make(map[int]float64, len(src))
	for k, v := range src {
		year, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			continue
		}
		out[year] = v
	}
	return out
}

// Path renders the artifact path of a role for the given year.
func (m ModelSet) Path(role string, year int) (string, bool) {
	tmpl, ok := m.Paths[role]
	if !ok || tmpl == "" {
		return "", false
	}
	return strings.ReplaceAll(tmpl, YearPlaceholder, strconv.Itoa(year)), true
}

var requiredRoles = map[string][]string{
	KindCancellation: {RoleModel},
	KindDeparture:    {RoleClassifier, RoleRegressor, RolePreprocessor},
	KindArrival:      {RoleClassifier, RoleRegressor},
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return invalid("addr", "must not be empty")
	}
	if c.Confidence <= 0 || c.Confidence >= 1 {
		return invalid("confidence", "must be within (0, 1)")
	}
	if c.WorkerCount <= 0 {
		return invalid("worker_count", "must be positive")
	}
	if c.QueueSize <= 0 {
		return invalid("queue_size", "must be positive")
	}
	if c.MaxBatchSize <= 0 {
		return invalid("max_batch_size", "must be positive")
	}
	if c.StageTimeouts.Cancellation <= 0 || c.StageTimeouts.Departure <= 0 || c.StageTimeouts.Arrival <= 0 {
		return invalid("stage_timeouts", "every stage needs a positive timeout")
	}
	switch c.Artifacts.Source {
	case SourceFile:
		if c.Artifacts.Root == "" {
			return invalid("artifacts.root", "required for the file source")
		}
	case SourceHTTP:
		if c.Artifacts.BaseURL == "" {
			return invalid("artifacts.base_url", "required for the http source")
		}
	default:
		return invalid("artifacts.source", fmt.Sprintf("unknown source %q", c.Artifacts.Source))
	}
	for _, kind := range []string{KindCancellation, KindDeparture, KindArrival} {
		set, _ := c.ModelSet(kind)
		if len(set.Years) == 0 {
			return invalid("models."+kind+".years", "must list at least one year")
		}
		for _, role := range requiredRoles[kind] {
			if _, ok := set.Path(role, 0); !ok {
				return invalid("models."+kind+".paths."+role, "missing path template")
			}
		}
	}
	if c.RMSEDefault <= 0 {
		return invalid("rmse_default", "must be positive")
	}
	return nil
}

func invalid(key, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidConfig, key, reason)
}
