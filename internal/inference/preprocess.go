package inference

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/okian/flightrisk/internal/domain/features"
)

// ScaledFeature is a standard-scaled numeric column.
type ScaledFeature struct {
	Name  string  `json:"name"`
	Mean  float64 `json:"mean"`
	Scale float64 `json:"scale"`
}

// CategoricalFeature is a one-hot encoded column.
type CategoricalFeature struct {
	Name       string   `json:"name"`
	Categories []string `json:"categories"`
}

// Preprocessor standard-scales numeric features and then one-hot encodes
// categorical ones, mirroring the column layout the networks were trained on.
type Preprocessor struct {
	Numeric     []ScaledFeature      `json:"numeric"`
	Categorical []CategoricalFeature `json:"categorical"`

	specs []FeatureSpec
	width int
}

// LoadPreprocessor decodes and validates a preprocessor artifact.
func LoadPreprocessor(r io.Reader) (*Preprocessor, error) {
	var p Preprocessor
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode preprocessor: %w", err)
	}
	if err := p.init(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Preprocessor) init() error {
	if len(p.Numeric)+len(p.Categorical) == 0 {
		return fmt.Errorf("%w: preprocessor has no features", ErrInvalidArtifact)
	}
	p.specs = p.specs[:0]
	p.width = 0
	for i := range p.Numeric {
		if p.Numeric[i].Scale == 0 {
			p.Numeric[i].Scale = 1
		}
		p.specs = append(p.specs, FeatureSpec{Name: p.Numeric[i].Name, Type: TypeNumeric})
	}
	for _, c := range p.Categorical {
		p.specs = append(p.specs, FeatureSpec{Name: c.Name, Type: TypeCategorical, Categories: c.Categories})
	}
	for _, s := range p.specs {
		if err := s.validate(); err != nil {
			return err
		}
		p.width += s.width()
	}
	return nil
}

// FeatureNames lists the input names in transform order.
func (p *Preprocessor) FeatureNames() []string { return specNames(p.specs) }

// Width returns the transformed row width.
func (p *Preprocessor) Width() int { return p.width }

// Transform converts feature values in FeatureNames order into a network input row.
func (p *Preprocessor) Transform(vals []features.Value) ([]float64, error) {
	if len(vals) != len(p.specs) {
		return nil, fmt.Errorf("%w: got %d features, want %d", ErrWidthMismatch, len(vals), len(p.specs))
	}
	row := make([]float64, 0, p.width)
	var err error
	for i, spec := range p.specs {
		if i < len(p.Numeric) {
			v := vals[i]
			if v.IsCat {
				return nil, fmt.Errorf("%w: %s expects a number, got %q", ErrFeatureType, spec.Name, v.Cat)
			}
			n := p.Numeric[i]
			row = append(row, (v.Num-n.Mean)/n.Scale)
			continue
		}
		if row, err = spec.encode(row, vals[i]); err != nil {
			return nil, err
		}
	}
	return row, nil
}
