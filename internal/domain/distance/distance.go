// Package distance resolves great-circle mileage between two airports from a
// static Origin,Destination,Distance table.
package distance

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/gocarina/gocsv"

	"github.com/okian/flightrisk/pkg/logger"
	"github.com/okian/flightrisk/pkg/metrics"
)

// Unknown is returned whenever a distance cannot be resolved.
const Unknown = 1.0

type row struct {
	Origin      string `csv:"Origin"`
	Destination string `csv:"Destination"`
	Distance    string `csv:"Distance"`
}

type pair struct{ a, b string }

func key(origin, destination string) pair {
	origin = strings.ToUpper(strings.TrimSpace(origin))
	destination = strings.ToUpper(strings.TrimSpace(destination))
	if destination < origin {
		origin, destination = destination, origin
	}
	return pair{origin, destination}
}

// Table is an immutable symmetric distance lookup.
type Table struct {
	// values keeps the raw cell of the first row seen for each unordered pair.
	values map[pair]string
}

// Parse reads a CSV table with an Origin,Destination,Distance header.
func Parse(r io.Reader) (*Table, error) {
	var rows []row
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("parse distance table: %w", err)
	}
	t := &Table{values: make(map[pair]string, len(rows))}
	for _, rw := range rows {
		k := key(rw.Origin, rw.Destination)
		if _, seen := t.values[k]; seen {
			continue
		}
		t.values[k] = strings.TrimSpace(rw.Distance)
	}
	return t, nil
}

// Lookup returns the distance for the pair in either direction. It reports
// false when the pair is absent or the stored value is empty or malformed.
func (t *Table) Lookup(origin, destination string) (float64, bool) {
	if t == nil {
		return Unknown, false
	}
	raw, ok := t.values[key(origin, destination)]
	if !ok || raw == "" {
		return Unknown, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || !Valid(v) {
		return Unknown, false
	}
	return v, true
}

// Valid reports whether v is a usable mileage: finite and positive.
func Valid(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

// Len returns the number of distinct airport pairs.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.values)
}

// Resolver lazily loads a table from disk and never fails its callers.
type Resolver struct {
	path   string
	once   sync.Once
	table  *Table
	logger logger.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used to report an unreadable table.
func WithLogger(l logger.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithTable installs an already parsed table and skips disk loading.
func WithTable(t *Table) Option {
	return func(r *Resolver) {
		r.table = t
		r.once.Do(func() {})
	}
}

// NewResolver creates a resolver reading the table at path on first use.
func NewResolver(path string, opts ...Option) *Resolver {
	r := &Resolver{path: path}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("distance")
	}
	return r
}

func (r *Resolver) load(ctx context.Context) *Table {
	r.once.Do(func() {
		f, err := os.Open(r.path)
		if err != nil {
			r.logger.Warn(ctx, "distance table unreadable", logger.String("path", r.path), logger.Error(err))
			return
		}
		defer func() { _ = f.Close() }()
		t, err := Parse(f)
		if err != nil {
			r.logger.Warn(ctx, "distance table malformed", logger.String("path", r.path), logger.Error(err))
			return
		}
		r.table = t
		r.logger.Info(ctx, "distance table loaded", logger.String("path", r.path), logger.Int("pairs", t.Len()))
	})
	return r.table
}

// Resolve returns the mileage between two airports, or Unknown.
func (r *Resolver) Resolve(ctx context.Context, origin, destination string) float64 {
	v, ok := r.load(ctx).Lookup(origin, destination)
	if !ok {
		metrics.RecordDistanceFallback()
		r.logger.Debug(ctx, "distance defaulted",
			logger.String("origin", origin),
			logger.String("destination", destination),
			logger.Float64("distance", Unknown),
		)
	}
	return v
}
