package registry

import (
	"errors"
	"fmt"
)

// Sentinel errors of the registry.
var (
	ErrUnknownKind = errors.New("unknown model kind")
	ErrNoYears     = errors.New("no model years available")
)

// ArtifactError attaches the attempted artifact location to a load failure.
// The location is reported separately by callers, so Error omits it.
type ArtifactError struct {
	Path string
	Err  error
}

func (e *ArtifactError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("artifact %s failed", e.Path)
	}
	return e.Err.Error()
}

func (e *ArtifactError) Unwrap() error { return e.Err }

// PathOf returns the artifact location carried by err, if any.
func PathOf(err error) string {
	var ae *ArtifactError
	if errors.As(err, &ae) {
		return ae.Path
	}
	return ""
}
