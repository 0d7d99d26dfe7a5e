package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks an upload rejected before any state changes.
	ErrValidation = errors.New("validation failed")
	// ErrRead marks an upload whose bytes could not be read.
	ErrRead = errors.New("failed to read image")
	// ErrBackendUnavailable marks a missing primary store; the fallback tier takes over.
	ErrBackendUnavailable = errors.New("primary store unavailable")
	// ErrWrite marks a write lost on both storage tiers.
	ErrWrite = errors.New("failed to persist on any tier")

	ErrNotFound      = errors.New("photo not found")
	ErrInvalidFilter = errors.New("invalid category filter")
	ErrInvalidSort   = errors.New("invalid sort mode")
	ErrInvalidView   = errors.New("invalid view mode")
)

// ValidationError carries the user-facing reason an upload was rejected.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InvalidValueError reports an unknown enumerated view-state value.
type InvalidValueError struct {
	Kind  error
	Value string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("%v: %q", e.Kind, e.Value)
}

func (e *InvalidValueError) Unwrap() error { return e.Kind }
