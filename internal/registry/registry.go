// Package registry resolves, loads and caches trained model artifacts by
// kind and year, and dispatches feature vectors to them.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/okian/flightrisk/internal/adapters/artifacts"
	"github.com/okian/flightrisk/internal/config"
	"github.com/okian/flightrisk/internal/domain/model"
	"github.com/okian/flightrisk/internal/inference"
	"github.com/okian/flightrisk/pkg/logger"
	"github.com/okian/flightrisk/pkg/metrics"
)

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

type key struct {
	kind model.Kind
	year int
}

func (k key) String() string { return string(k.kind) + "/" + strconv.Itoa(k.year) }

type entry struct {
	model    Model
	loadedAt time.Time
}

// LoadedModel describes a cached artifact handle.
type LoadedModel struct {
	Kind     model.Kind `json:"kind"`
	Year     int        `json:"year"`
	Paths    []string   `json:"paths"`
	LoadedAt time.Time  `json:"loaded_at"`
}

// Registry is a process-wide cache of immutable model handles. Handles are
// loaded lazily on first use, at most one load per key is in flight, and
// nothing is evicted.
type Registry struct {
	src  artifacts.Source
	sets map[model.Kind]config.ModelSet
	log  logger.Logger

	group singleflight.Group
	mu    sync.RWMutex
	cache map[key]entry
}

// New creates a registry reading artifacts from src according to the
// configured model sets.
func New(src artifacts.Source, models config.Models, opts ...Option) *Registry {
	r := &Registry{
		src: src,
		sets: map[model.Kind]config.ModelSet{
			model.KindCancellation: models.Cancellation,
			model.KindDeparture:    models.Departure,
			model.KindArrival:      models.Arrival,
		},
		log:   logger.Get().Named("registry"),
		cache: make(map[key]entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AvailableYears returns the sorted trained years of a kind.
func (r *Registry) AvailableYears(kind model.Kind) []int {
	set, ok := r.sets[kind]
	if !ok {
		return nil
	}
	years := slices.Clone(set.Years)
	slices.Sort(years)
	return slices.Compact(years)
}

// Paths returns the artifact locations a kind and year resolve to.
func (r *Registry) Paths(kind model.Kind, year int) ([]string, error) {
	names, err := r.names(kind, year)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = r.src.Describe(n)
	}
	return out, nil
}

// names returns the relative artifact names of a kind and year in role order.
func (r *Registry) names(kind model.Kind, year int) ([]string, error) {
	set, ok := r.sets[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	var roles []string
	switch kind {
	case model.KindCancellation:
		roles = []string{config.RoleModel}
	case model.KindDeparture:
		roles = []string{config.RolePreprocessor, config.RoleClassifier, config.RoleRegressor}
	case model.KindArrival:
		roles = []string{config.RoleClassifier, config.RoleRegressor}
	}
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		y := year
		if role == config.RolePreprocessor && set.PreprocessorYear > 0 {
			y = set.PreprocessorYear
		}
		p, ok := set.Path(role, y)
		if !ok {
			return nil, fmt.Errorf("%w: no %s path for %s", model.ErrModelNotFound, role, kind)
		}
		out = append(out, p)
	}
	return out, nil
}

// Get returns the handle for (kind, year), loading it on first use.
// Concurrent callers for the same key share one load. A caller whose
// context ends stops waiting but the load itself completes and is cached.
func (r *Registry) Get(ctx context.Context, kind model.Kind, year int) (Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	k := key{kind: kind, year: year}

	r.mu.RLock()
	e, ok := r.cache[k]
	r.mu.RUnlock()
	if ok {
		metrics.RecordModelCache(true)
		return e.model, nil
	}
	metrics.RecordModelCache(false)

	ch := r.group.DoChan(k.String(), func() (any, error) {
		r.mu.RLock()
		e, ok := r.cache[k]
		r.mu.RUnlock()
		if ok {
			return e.model, nil
		}

		start := time.Now()
		m, err := r.load(context.WithoutCancel(ctx), k)
		ms := float64(time.Since(start).Microseconds()) / 1000
		if err != nil {
			metrics.RecordModelLoad(string(kind), model.ErrorType(err), ms)
			r.log.Error(ctx, "model load failed",
				logger.String("kind", string(kind)),
				logger.Int("year", year),
				logger.String("path", PathOf(err)),
				logger.Error(err))
			return nil, err
		}
		metrics.RecordModelLoad(string(kind), "ok", ms)

		r.mu.Lock()
		r.cache[k] = entry{model: m, loadedAt: time.Now()}
		n := len(r.cache)
		r.mu.Unlock()
		metrics.UpdateModelsLoaded(n)

		r.log.Info(ctx, "model loaded",
			logger.String("kind", string(kind)),
			logger.Int("year", year),
			logger.Any("paths", m.Paths()),
			logger.Float64("latency_ms", ms))
		return m, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		m, ok := res.Val.(Model)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected handle type %T", model.ErrModelLoad, res.Val)
		}
		return m, nil
	}
}

// Loaded lists the cached handles ordered by kind and year.
func (r *Registry) Loaded() []LoadedModel {
	r.mu.RLock()
	out := make([]LoadedModel, 0, len(r.cache))
	for k, e := range r.cache {
		out = append(out, LoadedModel{Kind: k.kind, Year: k.year, Paths: e.model.Paths(), LoadedAt: e.loadedAt})
	}
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b LoadedModel) int {
		if a.Kind != b.Kind {
			return slices.Index(model.Kinds, a.Kind) - slices.Index(model.Kinds, b.Kind)
		}
		return a.Year - b.Year
	})
	return out
}

// Invalidate drops every cached handle.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	r.cache = make(map[key]entry)
	r.mu.Unlock()
	metrics.UpdateModelsLoaded(0)
}

// Warm loads every configured year of every kind and returns the joined
// failures. Handles that load are cached even when others fail.
func (r *Registry) Warm(ctx context.Context) error {
	var errs []error
	for _, kind := range model.Kinds {
		for _, year := range r.AvailableYears(kind) {
			if _, err := r.Get(ctx, kind, year); err != nil {
				errs = append(errs, fmt.Errorf("%s %d: %w", kind, year, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) load(ctx context.Context, k key) (Model, error) {
	names, err := r.names(k.kind, k.year)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = r.src.Describe(n)
	}

	switch k.kind {
	case model.KindCancellation:
		f, err := r.forest(ctx, names[0])
		if err != nil {
			return nil, err
		}
		return &forestModel{forest: f, paths: paths}, nil

	case model.KindArrival:
		c, err := r.forest(ctx, names[0])
		if err != nil {
			return nil, err
		}
		if c.Task != inference.TaskClassifier {
			return nil, r.loadErr(names[0], fmt.Errorf("%w: expected a classifier", inference.ErrInvalidArtifact))
		}
		reg, err := r.forest(ctx, names[1])
		if err != nil {
			return nil, err
		}
		if reg.Task != inference.TaskRegressor {
			return nil, r.loadErr(names[1], fmt.Errorf("%w: expected a regressor", inference.ErrInvalidArtifact))
		}
		return &forestPair{classifier: c, regressor: reg, paths: paths}, nil

	case model.KindDeparture:
		pre, err := decode(ctx, r, names[0], inference.LoadPreprocessor)
		if err != nil {
			return nil, err
		}
		c, err := decode(ctx, r, names[1], inference.LoadNetwork)
		if err != nil {
			return nil, err
		}
		reg, err := decode(ctx, r, names[2], inference.LoadNetwork)
		if err != nil {
			return nil, err
		}
		for i, n := range []*inference.Network{c, reg} {
			if n.InputDim != pre.Width() {
				return nil, r.loadErr(names[i+1], fmt.Errorf("%w: network expects %d inputs, preprocessor emits %d",
					inference.ErrWidthMismatch, n.InputDim, pre.Width()))
			}
		}
		return &neuralPair{pre: pre, classifier: c, regressor: reg, paths: paths}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, k.kind)
}

func (r *Registry) forest(ctx context.Context, name string) (*inference.Forest, error) {
	return decode(ctx, r, name, inference.LoadForest)
}

func (r *Registry) loadErr(name string, err error) error {
	return &ArtifactError{Path: r.src.Describe(name), Err: fmt.Errorf("%w: %w", model.ErrModelLoad, err)}
}

// decode opens one artifact and parses it, mapping absence to
// ErrModelNotFound and every other failure to ErrModelLoad.
func decode[T any](ctx context.Context, r *Registry, name string, parse func(io.Reader) (T, error)) (T, error) {
	var zero T
	rc, err := r.src.Open(ctx, name)
	if err != nil {
		if errors.Is(err, artifacts.ErrNotFound) {
			return zero, &ArtifactError{Path: r.src.Describe(name), Err: fmt.Errorf("%w: %w", model.ErrModelNotFound, err)}
		}
		return zero, r.loadErr(name, err)
	}
	defer rc.Close()

	v, err := parse(rc)
	if err != nil {
		return zero, r.loadErr(name, err)
	}
	return v, nil
}
