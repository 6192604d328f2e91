package service

import "errors"

// Service errors.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrNotConfigured  = errors.New("service not configured")
	ErrEmptyBatch     = errors.New("batch is empty")
	ErrBatchTooLarge  = errors.New("batch exceeds maximum size")
	ErrBackpressure   = errors.New("batch queue is full")
	ErrInvalidRequest = errors.New("invalid flight request")
)
