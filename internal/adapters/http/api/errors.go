package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest       = errors.New("bad request")
	ErrBackpressure     = errors.New("backpressure")
	ErrPrediction       = errors.New("prediction failed")
	ErrUnavailable      = errors.New("service unavailable")
	ErrMethodNotAllowed = errors.New("method not allowed")
)

// kindError tags an underlying error with an API kind and the operation
// that produced it.
type kindError struct {
	op   string
	kind error
	err  error
}

func (e *kindError) Error() string {
	if e.err == nil {
		return e.op + ": " + e.kind.Error()
	}
	return e.op + ": " + e.kind.Error() + ": " + e.err.Error()
}

func (e *kindError) Unwrap() []error {
	if e.err == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.err}
}

// NewKind returns an error of the given kind raised by op.
func NewKind(op string, kind error) error {
	return &kindError{op: op, kind: kind}
}

// WrapKind tags err with kind and op. errors.Is matches both.
func WrapKind(op string, kind, err error) error {
	return &kindError{op: op, kind: kind, err: err}
}
