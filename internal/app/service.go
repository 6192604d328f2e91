// Package service runs the prediction pipeline: distance resolution, the
// fatal cancellation stage and the best-effort departure and arrival delay
// stages. It also serves batches through the job queue and worker pool.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	eventqueue "github.com/okian/flightrisk/internal/adapters/mq/queue"
	workerpool "github.com/okian/flightrisk/internal/adapters/mq/worker"
	"github.com/okian/flightrisk/internal/domain/distance"
	"github.com/okian/flightrisk/internal/domain/features"
	"github.com/okian/flightrisk/internal/domain/interval"
	"github.com/okian/flightrisk/internal/domain/model"
	"github.com/okian/flightrisk/internal/registry"
	"github.com/okian/flightrisk/pkg/logger"
	"github.com/okian/flightrisk/pkg/metrics"
)

// Dispatcher routes feature vectors to trained models.
type Dispatcher interface {
	Predict(ctx context.Context, kind model.Kind, year int, vec *features.Vector) (registry.Outcome, error)
	ResolveYear(kind model.Kind, year int) (int, error)
}

// Catalog describes the models a dispatcher can serve.
type Catalog interface {
	AvailableYears(kind model.Kind) []int
	Loaded() []registry.LoadedModel
}

// DistanceResolver returns the mileage between two airports. It never fails.
type DistanceResolver interface {
	Resolve(ctx context.Context, origin, destination string) float64
}

// Service implements the prediction API.
type Service struct {
	mu sync.RWMutex

	// Core components
	dispatcher  Dispatcher
	catalog     Catalog
	resolver    DistanceResolver
	engine      *features.Engine
	synthesizer *interval.Synthesizer
	jobQueue    eventqueue.Queue
	workerPool  *workerpool.Pool

	// Configuration
	workerCount    int
	queueSize      int
	maxBatchSize   int
	confidence     float64
	defaultAirline string
	timeouts       StageTimeouts
	now            func() time.Time

	// State
	started bool

	logger logger.Logger
}

// StageTimeouts time-boxes each pipeline stage.
type StageTimeouts struct {
	Cancellation time.Duration
	Departure    time.Duration
	Arrival      time.Duration
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDispatcher sets the model dispatcher.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

// WithCatalog sets the model catalog reported by Models.
func WithCatalog(c Catalog) Option {
	return func(s *Service) { s.catalog = c }
}

// WithDistanceResolver sets the airport distance resolver.
func WithDistanceResolver(r DistanceResolver) Option {
	return func(s *Service) { s.resolver = r }
}

// WithEngine sets the feature engine.
func WithEngine(e *features.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithSynthesizer sets the confidence interval synthesizer.
func WithSynthesizer(syn *interval.Synthesizer) Option {
	return func(s *Service) {
		if syn != nil {
			s.synthesizer = syn
		}
	}
}

// WithStageTimeouts sets the per-stage time boxes. Zero values keep the defaults.
func WithStageTimeouts(t StageTimeouts) Option {
	return func(s *Service) {
		if t.Cancellation > 0 {
			s.timeouts.Cancellation = t.Cancellation
		}
		if t.Departure > 0 {
			s.timeouts.Departure = t.Departure
		}
		if t.Arrival > 0 {
			s.timeouts.Arrival = t.Arrival
		}
	}
}

// WithConfidence sets the confidence level of delay intervals.
func WithConfidence(c float64) Option {
	return func(s *Service) { s.confidence = c }
}

// WithWorkerCount sets the number of batch worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the batch job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithMaxBatchSize caps the number of flights per batch.
func WithMaxBatchSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.maxBatchSize = size
		}
	}
}

// WithDefaultAirline sets the carrier used when none can be derived.
func WithDefaultAirline(code string) Option {
	return func(s *Service) {
		if code != "" {
			s.defaultAirline = code
		}
	}
}

// WithClock sets the time source used to default an absent request year.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:    runtime.NumCPU() * 2,
		queueSize:      1024,
		maxBatchSize:   500,
		confidence:     interval.DefaultConfidence,
		defaultAirline: "AA",
		timeouts: StageTimeouts{
			Cancellation: 5 * time.Second,
			Departure:    3 * time.Second,
			Arrival:      3 * time.Second,
		},
		synthesizer: interval.New(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.engine == nil {
		s.engine = features.NewEngine(features.Airports{})
	}
	if s.catalog == nil {
		if c, ok := s.dispatcher.(interface{ Registry() *registry.Registry }); ok {
			s.catalog = c.Registry()
		}
	}
	return s
}

// Start creates the batch queue and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.dispatcher == nil {
		return fmt.Errorf("%w: no model dispatcher", ErrNotConfigured)
	}

	s.jobQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.workerPool = workerpool.NewPool(s.workerCount, s.jobQueue, s)
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "prediction service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("maxBatchSize", s.maxBatchSize),
	)
	return nil
}

// Stop drains the batch queue and stops the workers.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping prediction service...")

	if s.workerPool != nil {
		_ = s.workerPool.Shutdown(ctx)
	}
	s.started = false
	s.logger.Info(ctx, "prediction service stopped")
}

// IsReady reports whether the service has been started.
func (s *Service) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Predict runs the full pipeline for one flight. Only a cancellation stage
// failure is returned as an error; delay stage failures are reported on the
// result.
func (s *Service) Predict(ctx context.Context, in *model.FlightRequest) (*model.Result, error) {
	start := time.Now()
	res, err := s.predict(ctx, in)
	outcome := "success"
	switch {
	case err != nil:
		outcome = "error"
	case res.DelayError != "" || res.ArrivalDelayError != "":
		outcome = "partial"
	}
	metrics.RecordPrediction("single", outcome, float64(time.Since(start).Microseconds())/1000)
	return res, err
}

func (s *Service) predict(ctx context.Context, in *model.FlightRequest) (*model.Result, error) {
	if s.dispatcher == nil {
		return nil, ErrNotConfigured
	}
	if in == nil {
		return nil, ErrInvalidRequest
	}
	req := *in
	id, ok := model.RequestIDFrom(ctx)
	if !ok {
		id = uuid.NewString()
	}
	res := &model.Result{
		RequestID:  id,
		ModelYears: make(map[model.Kind]int, len(model.Kinds)),
	}
	log := s.logger.With(logger.String("request_id", res.RequestID))

	s.prepare(ctx, log, &req)

	// Cancellation is the primary signal; its failure aborts the request.
	cancelVec := s.engine.Cancellation(&req)
	s.logDefaults(ctx, log, model.KindCancellation, cancelVec)
	res.ModelInput = cancelVec.Map()

	out, err := s.stage(ctx, log, model.StageCancellation, model.KindCancellation, req.Year, s.timeouts.Cancellation, cancelVec)
	if out.Year != 0 {
		res.ModelYears[model.KindCancellation] = out.Year
	}
	if err != nil {
		return nil, err
	}
	res.CancellationProbability = out.Probability
	res.CancellationOutput = out.Output
	res.IsRedeye = cancelVec.Bool("IS_REDEYE")
	res.IsWeekend = cancelVec.Bool("IS_WEEKEND")
	res.IsPeakHour = cancelVec.Bool("IS_MORNING_PEAK") || cancelVec.Bool("IS_EVENING_PEAK")

	depVec := s.engine.Departure(&req)
	s.logDefaults(ctx, log, model.KindDeparture, depVec)
	res.DelayModelInput = depVec.Map()

	dep, err := s.stage(ctx, log, model.StageDeparture, model.KindDeparture, req.Year, s.timeouts.Departure, depVec)
	if dep.Year != 0 {
		res.ModelYears[model.KindDeparture] = dep.Year
	}
	if err != nil {
		res.DelayError = err.Error()
		return res, nil
	}
	prob, minutes := dep.Probability, dep.Minutes
	iv := s.synthesizer.Interval(model.KindDeparture, minutes, dep.Year, s.confidence)
	res.DelayProbability = &prob
	res.PredictedDelayMinutes = &minutes
	res.DelayConfidenceInterval = &iv

	arrVec := s.engine.Arrival(&req, minutes)
	s.logDefaults(ctx, log, model.KindArrival, arrVec)
	res.ArrivalModelInput = arrVec.Map()

	arr, err := s.stage(ctx, log, model.StageArrival, model.KindArrival, req.Year, s.timeouts.Arrival, arrVec)
	if arr.Year != 0 {
		res.ModelYears[model.KindArrival] = arr.Year
	}
	if err != nil {
		res.ArrivalDelayError = err.Error()
		return res, nil
	}
	arrIv := s.synthesizer.Interval(model.KindArrival, arr.Minutes, arr.Year, s.confidence)
	res.ArrivalDelay = &model.ArrivalDelay{
		DelayPredicted:     arr.Delayed,
		DelayProbability:   arr.Probability,
		DelayMinutes:       arr.Minutes,
		DelayLowerBound:    arrIv.Lower,
		DelayUpperBound:    arrIv.Upper,
		IsWeekend:          arrVec.Bool("IS_WEEKEND"),
		IsLateNightArrival: arrVec.Bool("IS_LATE_NIGHT_ARR"),
		IsMorningRush:      arrVec.Bool("IS_MORNING_RUSH_ARR"),
		IsEveningRush:      arrVec.Bool("IS_EVENING_RUSH_ARR"),
	}
	return res, nil
}

// prepare normalizes the request, defaults an absent year to the current
// one and resolves a missing distance.
func (s *Service) prepare(ctx context.Context, log logger.Logger, req *model.FlightRequest) {
	for _, f := range req.Normalize(s.defaultAirline) {
		s.degraded(ctx, log, "request", f)
	}
	if req.Year == 0 {
		req.Year = s.now().Year()
		s.degraded(ctx, log, "request", "year")
	}
	if !distance.Valid(req.Distance) {
		req.Distance = 0
		if s.resolver != nil {
			req.Distance = s.resolver.Resolve(ctx, req.Origin, req.Destination)
		}
		if !distance.Valid(req.Distance) || req.Distance == distance.Unknown {
			req.Distance = distance.Unknown
			s.degraded(ctx, log, "request", "distance")
		}
	}
}

func (s *Service) logDefaults(ctx context.Context, log logger.Logger, kind model.Kind, vec *features.Vector) {
	for _, f := range vec.Defaulted() {
		s.degraded(ctx, log, string(kind), f)
	}
}

func (s *Service) degraded(ctx context.Context, log logger.Logger, pipeline, field string) {
	metrics.RecordDegradedInput(pipeline, field)
	log.Debug(ctx, "input defaulted",
		logger.String("pipeline", pipeline),
		logger.String("field", field))
}

// stage runs one dispatch under its own time box and scopes any failure
// to the stage.
func (s *Service) stage(
	ctx context.Context,
	log logger.Logger,
	stage model.Stage,
	kind model.Kind,
	year int,
	timeout time.Duration,
	vec *features.Vector,
) (registry.Outcome, error) {
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	out, err := s.dispatcher.Predict(sctx, kind, year, vec)
	if err == nil {
		// A result that arrived after the deadline is discarded.
		err = sctx.Err()
	}
	if err != nil && ctx.Err() == nil && errors.Is(sctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s", model.ErrStageTimeout, timeout)
	}
	latency := float64(time.Since(start).Microseconds()) / 1000

	if err == nil {
		metrics.RecordStage(string(stage), "", latency)
		log.Debug(ctx, "stage completed",
			logger.String("stage", string(stage)),
			logger.Int("year", out.Year),
			logger.Float64("latency_ms", latency))
		return out, nil
	}

	path := registry.PathOf(err)
	if path == "" {
		path = strings.Join(out.Paths, ",")
	}
	serr := &model.StageError{Stage: stage, Kind: kind, Year: out.Year, Path: path, Err: err}
	metrics.RecordStage(string(stage), model.ErrorType(err), latency)

	fields := []logger.Field{
		logger.String("stage", string(stage)),
		logger.String("kind", string(kind)),
		logger.Int("requested_year", year),
		logger.Int("year", out.Year),
		logger.String("path", path),
		logger.Any("features", vec.Map()),
		logger.Error(err),
	}
	if stage == model.StageCancellation {
		log.Error(ctx, "stage failed", fields...)
	} else {
		log.Warn(ctx, "stage failed", fields...)
	}
	return out, serr
}

// ModelInfo describes one model kind for the models endpoint.
type ModelInfo struct {
	Kind   model.Kind             `json:"kind"`
	Years  []int                  `json:"years"`
	Loaded []registry.LoadedModel `json:"loaded"`
}

// Warm preloads every configured model when the catalog supports it.
// Failures are joined; models that load stay cached.
func (s *Service) Warm(ctx context.Context) error {
	w, ok := s.catalog.(interface{ Warm(context.Context) error })
	if !ok {
		return nil
	}
	return w.Warm(ctx)
}

// Models reports the available years and loaded artifacts of every kind.
func (s *Service) Models() []ModelInfo {
	out := make([]ModelInfo, 0, len(model.Kinds))
	var loaded []registry.LoadedModel
	if s.catalog != nil {
		loaded = s.catalog.Loaded()
	}
	for _, kind := range model.Kinds {
		info := ModelInfo{Kind: kind, Years: []int{}, Loaded: []registry.LoadedModel{}}
		if s.catalog != nil {
			if years := s.catalog.AvailableYears(kind); years != nil {
				info.Years = years
			}
		}
		for _, m := range loaded {
			if m.Kind == kind {
				info.Loaded = append(info.Loaded, m)
			}
		}
		out = append(out, info)
	}
	return out
}
