package registry

import (
	"fmt"

	"github.com/okian/flightrisk/internal/domain/features"
	"github.com/okian/flightrisk/internal/domain/model"
	"github.com/okian/flightrisk/internal/inference"
)

// delayThreshold separates delayed from on-time for probability networks.
const delayThreshold = 0.5

// Outcome is the uniform answer of every model kind.
type Outcome struct {
	Kind  model.Kind
	Year  int
	Paths []string

	// Probability is the positive-class score. For scalar cancellation
	// artifacts it carries the raw model output.
	Probability float64
	// Output is "probability" or "scalar".
	Output string

	Delayed    bool
	Minutes    float64
	HasMinutes bool
}

// Model is a loaded, immutable predictor.
type Model interface {
	Predict(vec *features.Vector) (Outcome, error)
	Paths() []string
}

func inferenceError(err error) error {
	return fmt.Errorf("%w: %w", model.ErrInference, err)
}

// forestModel is a single classifier used for cancellation.
type forestModel struct {
	forest *inference.Forest
	paths  []string
}

func (m *forestModel) Paths() []string { return m.paths }

func (m *forestModel) Predict(vec *features.Vector) (Outcome, error) {
	vals, err := vec.Project(m.forest.FeatureNames())
	if err != nil {
		return Outcome{}, err
	}
	p, err := m.forest.Predict(vals)
	if err != nil {
		return Outcome{}, inferenceError(err)
	}
	return Outcome{
		Probability: p.Probability,
		Output:      m.forest.Output,
		Delayed:     p.Class == 1,
	}, nil
}

// forestPair is a classifier and regressor trained on the same features.
type forestPair struct {
	classifier *inference.Forest
	regressor  *inference.Forest
	paths      []string
}

func (m *forestPair) Paths() []string { return m.paths }

func (m *forestPair) Predict(vec *features.Vector) (Outcome, error) {
	cvals, err := vec.Project(m.classifier.FeatureNames())
	if err != nil {
		return Outcome{}, err
	}
	rvals, err := vec.Project(m.regressor.FeatureNames())
	if err != nil {
		return Outcome{}, err
	}
	c, err := m.classifier.Predict(cvals)
	if err != nil {
		return Outcome{}, inferenceError(err)
	}
	r, err := m.regressor.Predict(rvals)
	if err != nil {
		return Outcome{}, inferenceError(err)
	}
	return Outcome{
		Probability: c.Probability,
		Output:      inference.OutputProbability,
		Delayed:     c.Class == 1,
		Minutes:     r.Value,
		HasMinutes:  true,
	}, nil
}

// neuralPair runs the fitted preprocessor and then both network heads.
type neuralPair struct {
	pre        *inference.Preprocessor
	classifier *inference.Network
	regressor  *inference.Network
	paths      []string
}

func (m *neuralPair) Paths() []string { return m.paths }

func (m *neuralPair) Predict(vec *features.Vector) (Outcome, error) {
	vals, err := vec.Project(m.pre.FeatureNames())
	if err != nil {
		return Outcome{}, err
	}
	x, err := m.pre.Transform(vals)
	if err != nil {
		return Outcome{}, inferenceError(err)
	}
	prob, err := m.classifier.Forward(x)
	if err != nil {
		return Outcome{}, inferenceError(err)
	}
	minutes, err := m.regressor.Forward(x)
	if err != nil {
		return Outcome{}, inferenceError(err)
	}
	return Outcome{
		Probability: prob,
		Output:      inference.OutputProbability,
		Delayed:     prob >= delayThreshold,
		Minutes:     minutes,
		HasMinutes:  true,
	}, nil
}
