// Package inference evaluates exported model artifacts: tree ensembles,
// a fitted preprocessor and feed-forward residual networks. Artifacts are
// immutable after loading and safe for concurrent evaluation.
package inference

import (
	"fmt"

	"github.com/okian/flightrisk/internal/domain/features"
)

// Feature type tags used by artifact feature lists.
const (
	TypeNumeric     = "numeric"
	TypeCategorical = "categorical"
)

// FeatureSpec declares one artifact input column.
type FeatureSpec struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Categories []string `json:"categories,omitempty"`
}

// width returns the number of encoded columns the feature occupies.
func (f FeatureSpec) width() int {
	if f.Type == TypeCategorical {
		return len(f.Categories)
	}
	return 1
}

func (f FeatureSpec) validate() error {
	switch f.Type {
	case TypeNumeric:
	case TypeCategorical:
		if len(f.Categories) == 0 {
			return fmt.Errorf("%w: categorical feature %q has no categories", ErrInvalidArtifact, f.Name)
		}
	default:
		return fmt.Errorf("%w: feature %q has unknown type %q", ErrInvalidArtifact, f.Name, f.Type)
	}
	if f.Name == "" {
		return fmt.Errorf("%w: unnamed feature", ErrInvalidArtifact)
	}
	return nil
}

// encode appends the column values of one feature to dst. Categories are
// one-hot in declared order and an unseen category encodes as all zeros.
func (f FeatureSpec) encode(dst []float64, v features.Value) ([]float64, error) {
	if f.Type == TypeNumeric {
		if v.IsCat {
			return nil, fmt.Errorf("%w: %s expects a number, got %q", ErrFeatureType, f.Name, v.Cat)
		}
		return append(dst, v.Num), nil
	}
	label := v.String()
	for _, c := range f.Categories {
		if c == label {
			dst = append(dst, 1)
			continue
		}
		dst = append(dst, 0)
	}
	return dst, nil
}

func specNames(specs []FeatureSpec) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.Name
	}
	return out
}
