// Package registrytest writes small deterministic model artifacts laid out
// the way the registry expects, for tests of packages that dispatch models.
package registrytest

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/okian/flightrisk/internal/config"
	"github.com/okian/flightrisk/internal/domain/features"
	"github.com/okian/flightrisk/internal/inference"
)

// Fixture model answers.
const (
	CancellationBase   = 0.1
	CancellationRedeye = 0.4

	ArrivalSplit        = 15.0
	ArrivalProbLow      = 0.2
	ArrivalProbHigh     = 0.7
	ArrivalMinutesLow   = 5.0
	ArrivalMinutesHigh  = 40.0
	departureProbWeight = 0.001
	departureMinWeight  = 0.01
	departureMinBias    = 2.0
)

// DepartureProbability returns the fixture classifier output for a
// departure at the given minutes past midnight.
func DepartureProbability(timeMins float64) float64 {
	return 1 / (1 + math.Exp(-departureProbWeight*timeMins))
}

// DepartureMinutes returns the fixture regressor output.
func DepartureMinutes(timeMins float64) float64 {
	return departureMinWeight*timeMins + departureMinBias
}

var categories = map[string][]string{
	"MKT_AIRLINE":         {"AA", "DL", "UA", "WN"},
	"ORIGIN_IATA":         {"ATL", "LAX", "JFK", "ORD"},
	"DEST_IATA":           {"ATL", "LAX", "JFK", "ORD"},
	"TIME_BLOCK":          {"Morning (6-9)", "Mid-Day (9-12)", "Afternoon (12-15)", "Evening (15-18)"},
	"DAY_NAME":            {"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"},
	"DISTANCE_CAT":        {"Very Short", "Short", "Medium", "Long", "Very Long"},
	"ARR_TIME_BLOCK":      {"Morning (6-9)", "Mid-Day (9-12)", "Afternoon (12-15)", "Evening (15-18)"},
	"FLIGHT_DISTANCE_CAT": {"Short (300-600 mi)", "Medium (600-1000 mi)", "Very Long (>1500 mi)"},
}

func specs(s features.Schema) []inference.FeatureSpec {
	out := make([]inference.FeatureSpec, len(s.Fields))
	for i, f := range s.Fields {
		if f.Type == features.Numeric {
			out[i] = inference.FeatureSpec{Name: f.Name, Type: inference.TypeNumeric}
			continue
		}
		cats, ok := categories[f.Name]
		if !ok {
			cats = []string{"0", "1"}
		}
		out[i] = inference.FeatureSpec{Name: f.Name, Type: inference.TypeCategorical, Categories: cats}
	}
	return out
}

// column returns the encoded column of a numeric feature, or of the given
// category of a categorical one.
func column(specs []inference.FeatureSpec, name, category string) int {
	col := 0
	for _, s := range specs {
		if s.Name == name {
			if s.Type == inference.TypeNumeric {
				return col
			}
			for i, c := range s.Categories {
				if c == category {
					return col + i
				}
			}
		}
		if s.Type == inference.TypeNumeric {
			col++
		} else {
			col += len(s.Categories)
		}
	}
	panic(fmt.Sprintf("registrytest: no column %s %s", name, category))
}

func split(col int, threshold float64, left, right []float64) inference.Tree {
	return inference.Tree{
		Nodes: []inference.Node{{
			FeatureIndex: col, Threshold: threshold,
			LeftChild: 0, LeftIsLeaf: true,
			RightChild: 1, RightIsLeaf: true,
		}},
		Values: [][]float64{left, right},
		Depth:  1,
	}
}

// CancellationForest answers CancellationBase, or CancellationRedeye for redeye flights.
func CancellationForest() inference.Forest {
	fs := specs(features.CancellationSchema)
	return inference.Forest{
		Type: "forest", Task: inference.TaskClassifier, Output: inference.OutputProbability,
		Features: fs, Classes: []float64{0, 1},
		Trees: []inference.Tree{split(column(fs, "IS_REDEYE", ""), 0.5,
			[]float64{1 - CancellationBase, CancellationBase},
			[]float64{1 - CancellationRedeye, CancellationRedeye})},
	}
}

// ArrivalForests split on the departure delay fed into the arrival pipeline.
func ArrivalForests() (classifier, regressor inference.Forest) {
	fs := specs(features.ArrivalSchema)
	col := column(fs, "DEP_DELAY", "")
	classifier = inference.Forest{
		Type: "forest", Task: inference.TaskClassifier, Output: inference.OutputProbability,
		Features: fs, Classes: []float64{0, 1},
		Trees: []inference.Tree{split(col, ArrivalSplit,
			[]float64{1 - ArrivalProbLow, ArrivalProbLow},
			[]float64{1 - ArrivalProbHigh, ArrivalProbHigh})},
	}
	regressor = inference.Forest{
		Type: "forest", Task: inference.TaskRegressor,
		Features: fs,
		Trees:    []inference.Tree{split(col, ArrivalSplit, []float64{ArrivalMinutesLow}, []float64{ArrivalMinutesHigh})},
	}
	return classifier, regressor
}

// DepartureNetworks returns an identity preprocessor and two linear heads
// reading TIME_MINS.
func DepartureNetworks() (pre inference.Preprocessor, classifier, regressor inference.Network) {
	fs := specs(features.DepartureSchema)
	for _, s := range fs {
		if s.Type == inference.TypeNumeric {
			pre.Numeric = append(pre.Numeric, inference.ScaledFeature{Name: s.Name, Mean: 0, Scale: 1})
			continue
		}
		pre.Categorical = append(pre.Categorical, inference.CategoricalFeature{Name: s.Name, Categories: s.Categories})
	}

	// Numeric columns come first after preprocessing.
	timeCol := -1
	for i, n := range pre.Numeric {
		if n.Name == "TIME_MINS" {
			timeCol = i
		}
	}
	width := len(pre.Numeric)
	for _, c := range pre.Categorical {
		width += len(c.Categories)
	}

	head := func(w, b float64) []inference.Layer {
		row := make([]float64, width)
		row[timeCol] = w
		return []inference.Layer{{Weight: [][]float64{row}, Bias: []float64{b}}}
	}
	classifier = inference.Network{InputDim: width, Head: head(departureProbWeight, 0), Output: inference.NetworkSigmoid}
	regressor = inference.Network{InputDim: width, Head: head(departureMinWeight, departureMinBias), Output: inference.NetworkLinear}
	return pre, classifier, regressor
}

// Write stores artifacts for every kind and the given years below root,
// following the path templates of models.
func Write(root string, models config.Models, years ...int) error {
	cancel := CancellationForest()
	arrC, arrR := ArrivalForests()
	pre, depC, depR := DepartureNetworks()

	for _, year := range years {
		items := []struct {
			set  config.ModelSet
			role string
			year int
			v    any
		}{
			{models.Cancellation, config.RoleModel, year, cancel},
			{models.Arrival, config.RoleClassifier, year, arrC},
			{models.Arrival, config.RoleRegressor, year, arrR},
			{models.Departure, config.RoleClassifier, year, depC},
			{models.Departure, config.RoleRegressor, year, depR},
			{models.Departure, config.RolePreprocessor, preprocessorYear(models.Departure, year), pre},
		}
		for _, it := range items {
			p, ok := it.set.Path(it.role, it.year)
			if !ok {
				return fmt.Errorf("registrytest: no path for role %s", it.role)
			}
			if err := WriteJSON(filepath.Join(root, filepath.FromSlash(p)), it.v); err != nil {
				return err
			}
		}
	}
	return nil
}

func preprocessorYear(set config.ModelSet, year int) int {
	if set.PreprocessorYear > 0 {
		return set.PreprocessorYear
	}
	return year
}

// WriteJSON marshals v into path, creating parent directories.
func WriteJSON(path string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return WriteFile(path, b)
}

// WriteFile writes raw bytes into path, creating parent directories.
func WriteFile(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
