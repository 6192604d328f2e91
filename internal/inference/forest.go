package inference

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/okian/flightrisk/internal/domain/features"
)

// Forest tasks and output semantics.
const (
	TaskClassifier = "classifier"
	TaskRegressor  = "regressor"

	OutputProbability = "probability"
	OutputScalar      = "scalar"
)

// A Node represents a split of the form "x[FeatureIndex] <= Threshold ?".
type Node struct {
	FeatureIndex int     `json:"feature_index"`
	Threshold    float64 `json:"threshold"`
	LeftChild    int     `json:"left_child"`
	LeftIsLeaf   bool    `json:"left_is_leaf"`
	RightChild   int     `json:"right_child"`
	RightIsLeaf  bool    `json:"right_is_leaf"`
}

// Tree is one estimator of the ensemble. A tree without nodes is a single leaf.
type Tree struct {
	Nodes []Node `json:"nodes"`
	// Values holds one row per leaf: class weights for classifiers, a single
	// value for regressors.
	Values [][]float64 `json:"values"`
	Depth  int         `json:"depth"`
}

// leaf drops an encoded row down the tree and returns the leaf index.
func (t *Tree) leaf(x []float64) (int, error) {
	if len(t.Nodes) == 0 {
		return 0, nil
	}
	cur := 0
	for steps := 0; steps <= len(t.Nodes); steps++ {
		n := t.Nodes[cur]
		var next int
		var isLeaf bool
		if x[n.FeatureIndex] <= n.Threshold {
			next, isLeaf = n.LeftChild, n.LeftIsLeaf
		} else {
			next, isLeaf = n.RightChild, n.RightIsLeaf
		}
		if isLeaf {
			return next, nil
		}
		cur = next
	}
	return 0, fmt.Errorf("%w: tree traversal did not terminate", ErrInvalidArtifact)
}

// Forest is a bagged tree ensemble with its input encoding.
type Forest struct {
	Type     string        `json:"type"`
	Task     string        `json:"task"`
	Output   string        `json:"output"`
	Features []FeatureSpec `json:"features"`
	Classes  []float64     `json:"classes"`
	Trees    []Tree        `json:"trees"`

	width    int
	positive int
}

// ForestPrediction is the ensemble answer for one row.
type ForestPrediction struct {
	// Probability is the positive-class score of a classifier.
	Probability float64
	// Class is the argmax class label of a classifier.
	Class float64
	// Value is the mean estimate of a regressor.
	Value float64
}

// LoadForest decodes and validates a forest artifact.
func LoadForest(r io.Reader) (*Forest, error) {
	var f Forest
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode forest: %w", err)
	}
	if err := f.init(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *Forest) init() error {
	if f.Type != "" && f.Type != "forest" {
		return fmt.Errorf("%w: artifact type %q is not a forest", ErrInvalidArtifact, f.Type)
	}
	switch f.Task {
	case TaskClassifier:
		if f.Output == "" {
			f.Output = OutputProbability
		}
		if f.Output != OutputProbability && f.Output != OutputScalar {
			return fmt.Errorf("%w: unknown output %q", ErrInvalidArtifact, f.Output)
		}
		if len(f.Classes) == 0 {
			f.Classes = []float64{0, 1}
		}
		f.positive = len(f.Classes) - 1
		for i, c := range f.Classes {
			if c == 1 {
				f.positive = i
			}
		}
	case TaskRegressor:
		f.Output = OutputScalar
	default:
		return fmt.Errorf("%w: unknown task %q", ErrInvalidArtifact, f.Task)
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("%w: forest has no trees", ErrInvalidArtifact)
	}

	f.width = 0
	for _, spec := range f.Features {
		if err := spec.validate(); err != nil {
			return err
		}
		f.width += spec.width()
	}

	valueWidth := 1
	if f.Task == TaskClassifier {
		valueWidth = len(f.Classes)
	}
	for ti, t := range f.Trees {
		leaves := 0
		for _, n := range t.Nodes {
			if n.FeatureIndex < 0 || n.FeatureIndex >= f.width {
				return fmt.Errorf("%w: tree %d splits on column %d of %d", ErrInvalidArtifact, ti, n.FeatureIndex, f.width)
			}
			for _, c := range []struct {
				idx  int
				leaf bool
			}{{n.LeftChild, n.LeftIsLeaf}, {n.RightChild, n.RightIsLeaf}} {
				if c.leaf && c.idx < 0 {
					return fmt.Errorf("%w: tree %d references leaf %d", ErrInvalidArtifact, ti, c.idx)
				}
				if c.leaf {
					leaves = max(leaves, c.idx+1)
				} else if c.idx <= 0 || c.idx >= len(t.Nodes) {
					return fmt.Errorf("%w: tree %d references node %d", ErrInvalidArtifact, ti, c.idx)
				}
			}
		}
		if len(t.Nodes) == 0 {
			leaves = 1
		}
		if len(t.Values) < leaves {
			return fmt.Errorf("%w: tree %d has %d leaf values, needs %d", ErrInvalidArtifact, ti, len(t.Values), leaves)
		}
		for _, row := range t.Values {
			if len(row) != valueWidth {
				return fmt.Errorf("%w: tree %d leaf width %d, want %d", ErrInvalidArtifact, ti, len(row), valueWidth)
			}
		}
	}
	return nil
}

// FeatureNames lists the input names in artifact order.
func (f *Forest) FeatureNames() []string { return specNames(f.Features) }

// Width returns the encoded row width.
func (f *Forest) Width() int { return f.width }

// Encode converts feature values in artifact order into a numeric row.
func (f *Forest) Encode(vals []features.Value) ([]float64, error) {
	if len(vals) != len(f.Features) {
		return nil, fmt.Errorf("%w: got %d features, want %d", ErrWidthMismatch, len(vals), len(f.Features))
	}
	row := make([]float64, 0, f.width)
	var err error
	for i, spec := range f.Features {
		if row, err = spec.encode(row, vals[i]); err != nil {
			return nil, err
		}
	}
	return row, nil
}

// Predict evaluates feature values given in artifact order.
func (f *Forest) Predict(vals []features.Value) (ForestPrediction, error) {
	row, err := f.Encode(vals)
	if err != nil {
		return ForestPrediction{}, err
	}
	return f.Evaluate(row)
}

// Evaluate runs an encoded row through every tree and averages the leaves.
func (f *Forest) Evaluate(row []float64) (ForestPrediction, error) {
	if len(row) != f.width {
		return ForestPrediction{}, fmt.Errorf("%w: got %d columns, want %d", ErrWidthMismatch, len(row), f.width)
	}
	if f.Task == TaskRegressor {
		var sum float64
		for i := range f.Trees {
			leaf, err := f.Trees[i].leaf(row)
			if err != nil {
				return ForestPrediction{}, err
			}
			sum += f.Trees[i].Values[leaf][0]
		}
		return ForestPrediction{Value: sum / float64(len(f.Trees))}, nil
	}

	dist := make([]float64, len(f.Classes))
	for i := range f.Trees {
		leaf, err := f.Trees[i].leaf(row)
		if err != nil {
			return ForestPrediction{}, err
		}
		weights := f.Trees[i].Values[leaf]
		total := 1.0
		if f.Output == OutputProbability {
			total = 0
			for _, w := range weights {
				total += w
			}
			if total == 0 {
				total = 1
			}
		}
		for c, w := range weights {
			dist[c] += w / total
		}
	}
	best := 0
	for c := range dist {
		dist[c] /= float64(len(f.Trees))
		if dist[c] > dist[best] {
			best = c
		}
	}
	return ForestPrediction{
		Probability: dist[f.positive],
		Class:       f.Classes[best],
		Value:       dist[f.positive],
	}, nil
}
