package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Sentinel errors of the prediction domain.
var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrMissingFeatures  = errors.New("missing features")
	ErrModelNotFound    = errors.New("model not found")
	ErrModelLoad        = errors.New("model load failed")
	ErrInference        = errors.New("inference failed")
	ErrDateConstruction = errors.New("invalid calendar date")
	ErrStageTimeout     = errors.New("stage timed out")
)

// Stage names a step of the prediction pipeline.
type Stage string

// Pipeline stages.
const (
	StageCancellation Stage = "cancellation"
	StageDeparture    Stage = "departure"
	StageArrival      Stage = "arrival"
)

// StageError scopes a failure to one stage with the context needed to reproduce it.
type StageError struct {
	Stage Stage
	Kind  Kind
	Year  int
	Path  string
	Err   error
}

func (e *StageError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Stage))
	b.WriteString(" stage failed")
	var ctx []string
	if e.Kind != "" {
		ctx = append(ctx, "kind="+string(e.Kind))
	}
	if e.Year != 0 {
		ctx = append(ctx, "year="+strconv.Itoa(e.Year))
	}
	if e.Path != "" {
		ctx = append(ctx, "path="+e.Path)
	}
	if len(ctx) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(ctx, " "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *StageError) Unwrap() error { return e.Err }

// ErrorType maps an error onto a short label for metrics.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrStageTimeout):
		return "timeout"
	case errors.Is(err, ErrMissingFeatures):
		return "missing_features"
	case errors.Is(err, ErrModelNotFound):
		return "model_not_found"
	case errors.Is(err, ErrModelLoad):
		return "model_load"
	case errors.Is(err, ErrInference):
		return "inference"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return "internal"
	}
}
