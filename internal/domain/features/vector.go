// Package features derives the model-ready feature vectors of the three
// prediction pipelines from a raw flight request.
package features

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/okian/flightrisk/internal/domain/model"
)

// Value is a single feature: a number or a category label.
type Value struct {
	Num   float64
	Cat   string
	IsCat bool
}

// Num builds a numeric value.
func Num(v float64) Value { return Value{Num: v} }

// Cat builds a categorical value.
func Cat(s string) Value { return Value{Cat: s, IsCat: true} }

// Flag builds a 0/1 numeric value.
func Flag(b bool) Value {
	if b {
		return Value{Num: 1}
	}
	return Value{Num: 0}
}

// String renders the value as a category label. Numbers use their shortest
// decimal form so 0/1 indicators match categories such as "0" and "1".
func (v Value) String() string {
	if v.IsCat {
		return v.Cat
	}
	return strconv.FormatFloat(v.Num, 'f', -1, 64)
}

// Any returns the value as a float64 or a string.
func (v Value) Any() any {
	if v.IsCat {
		return v.Cat
	}
	return v.Num
}

// Vector is an insertion-ordered feature mapping that remembers which
// entries were filled by a default policy rather than derived from input.
type Vector struct {
	order     []string
	values    map[string]Value
	defaulted []string
}

// NewVector creates an empty vector.
func NewVector() *Vector {
	return &Vector{values: make(map[string]Value)}
}

// Set stores a feature, keeping its first insertion position.
func (v *Vector) Set(name string, val Value) {
	if _, ok := v.values[name]; !ok {
		v.order = append(v.order, name)
	}
	v.values[name] = val
}

// Default stores a feature and records that it was defaulted.
func (v *Vector) Default(name string, val Value) {
	v.Set(name, val)
	v.defaulted = append(v.defaulted, name)
}

// Get returns a feature.
func (v *Vector) Get(name string) (Value, bool) {
	val, ok := v.values[name]
	return val, ok
}

// Number returns a numeric feature or zero.
func (v *Vector) Number(name string) float64 {
	return v.values[name].Num
}

// Bool reports whether a 0/1 indicator is set.
func (v *Vector) Bool(name string) bool {
	val, ok := v.values[name]
	return ok && !val.IsCat && val.Num != 0
}

// Has reports whether a feature is present.
func (v *Vector) Has(name string) bool {
	_, ok := v.values[name]
	return ok
}

// Len returns the number of features.
func (v *Vector) Len() int { return len(v.order) }

// Names returns feature names in insertion order.
func (v *Vector) Names() []string {
	return append([]string(nil), v.order...)
}

// Defaulted returns the names filled by a default policy.
func (v *Vector) Defaulted() []string {
	return append([]string(nil), v.defaulted...)
}

// Project returns the values of fields in the given order. Every absent
// field is reported in a single ErrMissingFeatures error.
func (v *Vector) Project(fields []string) ([]Value, error) {
	out := make([]Value, len(fields))
	var missing []string
	for i, f := range fields {
		val, ok := v.values[f]
		if !ok {
			missing = append(missing, f)
			continue
		}
		out[i] = val
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", model.ErrMissingFeatures, strings.Join(missing, ", "))
	}
	return out, nil
}

// Map returns a plain map for JSON echoing.
func (v *Vector) Map() map[string]any {
	m := make(map[string]any, len(v.values))
	for k, val := range v.values {
		m[k] = val.Any()
	}
	return m
}

// MarshalJSON encodes the vector as an object.
func (v *Vector) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Map())
}
