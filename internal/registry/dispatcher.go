package registry

import (
	"context"
	"fmt"

	"github.com/okian/flightrisk/internal/domain/features"
	"github.com/okian/flightrisk/internal/domain/model"
)

// Dispatcher resolves the model year and routes a feature vector to the
// matching artifact.
type Dispatcher struct {
	reg *Registry
}

// NewDispatcher creates a dispatcher over reg.
func NewDispatcher(reg *Registry) *Dispatcher {
	return &Dispatcher{reg: reg}
}

// Registry returns the underlying registry.
func (d *Dispatcher) Registry() *Registry { return d.reg }

// ResolveYear returns the year that a request for the given kind and year
// would be served by.
func (d *Dispatcher) ResolveYear(kind model.Kind, year int) (int, error) {
	years := d.reg.AvailableYears(kind)
	if len(years) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoYears, kind)
	}
	return ResolveYear(year, years), nil
}

// Predict runs vec through the (kind, resolved year) model. The returned
// outcome carries the resolved year and artifact paths even on failure so
// callers can report what was attempted.
func (d *Dispatcher) Predict(ctx context.Context, kind model.Kind, year int, vec *features.Vector) (Outcome, error) {
	out := Outcome{Kind: kind}
	resolved, err := d.ResolveYear(kind, year)
	if err != nil {
		return out, err
	}
	out.Year = resolved
	if paths, err := d.reg.Paths(kind, resolved); err == nil {
		out.Paths = paths
	}

	m, err := d.reg.Get(ctx, kind, resolved)
	if err != nil {
		return out, err
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	res, err := m.Predict(vec)
	if err != nil {
		return out, err
	}
	res.Kind, res.Year, res.Paths = kind, resolved, out.Paths
	return res, nil
}
