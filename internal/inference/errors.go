package inference

import "errors"

// Sentinel errors for artifact decoding and evaluation.
var (
	// ErrInvalidArtifact indicates an artifact that decoded but is structurally unusable.
	ErrInvalidArtifact = errors.New("invalid artifact")

	// ErrWidthMismatch indicates an input whose width differs from what the artifact expects.
	ErrWidthMismatch = errors.New("input width mismatch")

	// ErrFeatureType indicates a numeric artifact feature that received a category.
	ErrFeatureType = errors.New("feature type mismatch")
)
