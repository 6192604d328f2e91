// Package interval synthesizes symmetric confidence intervals around delay
// point predictions from per-year residual error tables.
package interval

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/okian/flightrisk/internal/domain/model"
)

// Default synthesis constants.
const (
	DefaultConfidence = 0.95
	DefaultRMSE       = 40.0
)

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithTable sets the year to RMSE table of a delay kind.
func WithTable(kind model.Kind, table map[int]float64) Option {
	return func(s *Synthesizer) {
		cp := make(map[int]float64, len(table))
		for year, rmse := range table {
			if rmse > 0 {
				cp[year] = rmse
			}
		}
		s.tables[kind] = cp
	}
}

// WithDefaultRMSE sets the error used for years missing from a table.
func WithDefaultRMSE(rmse float64) Option {
	return func(s *Synthesizer) {
		if rmse > 0 {
			s.fallback = rmse
		}
	}
}

// Synthesizer computes intervals. It is read-only after construction.
type Synthesizer struct {
	tables   map[model.Kind]map[int]float64
	fallback float64
}

// New creates a synthesizer. Without tables every year uses the default RMSE.
func New(opts ...Option) *Synthesizer {
	s := &Synthesizer{
		tables:   make(map[model.Kind]map[int]float64),
		fallback: DefaultRMSE,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RMSE returns the residual error of a kind and year.
func (s *Synthesizer) RMSE(kind model.Kind, year int) float64 {
	if rmse, ok := s.tables[kind][year]; ok {
		return rmse
	}
	return s.fallback
}

// Z returns the two-sided standard normal critical value of a confidence
// level. Levels outside (0, 1) use DefaultConfidence.
func Z(confidence float64) float64 {
	if !(confidence > 0 && confidence < 1) {
		confidence = DefaultConfidence
	}
	return distuv.UnitNormal.Quantile(1 - (1-confidence)/2)
}

// Interval returns [max(0, point - z*rmse), point + z*rmse].
func (s *Synthesizer) Interval(kind model.Kind, point float64, year int, confidence float64) model.Interval {
	if !(confidence > 0 && confidence < 1) {
		confidence = DefaultConfidence
	}
	margin := Z(confidence) * s.RMSE(kind, year)
	return model.Interval{
		Lower:      math.Max(0, point-margin),
		Upper:      point + margin,
		Confidence: confidence,
	}
}
