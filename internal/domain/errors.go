package domain

import (
	"errors"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
type HTTPError interface {
	error
	StatusCode() int
}

type (
	// NotFoundError indicates a resource was not found
	NotFoundError struct {
		Message string
	}

	// ValidationError indicates invalid input
	ValidationError struct {
		Message string
	}

	// UnauthorizedError indicates authentication failure
	UnauthorizedError struct {
		Message string
	}

	// ConflictError indicates a state conflict, e.g. an illegal status
	// transition or a duplicate resource
	ConflictError struct {
		Message string
	}
)

func (e *NotFoundError) Error() string     { return e.Message }
func (e *ValidationError) Error() string   { return e.Message }
func (e *UnauthorizedError) Error() string { return e.Message }
func (e *ConflictError) Error() string     { return e.Message }

func (e *NotFoundError) StatusCode() int     { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int   { return http.StatusBadRequest }
func (e *UnauthorizedError) StatusCode() int { return http.StatusUnauthorized }
func (e *ConflictError) StatusCode() int     { return http.StatusConflict }

func (e *NotFoundError) Is(target error) bool     { return target == ErrNotFound }
func (e *ValidationError) Is(target error) bool   { return target == ErrValidation }
func (e *UnauthorizedError) Is(target error) bool { return target == ErrUnauthorized }
func (e *ConflictError) Is(target error) bool     { return target == ErrConflict }

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNoText indicates that extraction produced no usable text
	// (empty or whitespace-only document).
	ErrNoText = errors.New("no text found in document")

	// ErrNoActiveModel indicates the detector was invoked while no
	// model is marked active. This is a configuration error for the
	// invocation and is propagated, not swallowed.
	ErrNoActiveModel = errors.New("no active detection model configured")

	// ErrInsufficientData indicates a training run collected fewer
	// examples than the configured minimum. Expected outcome, not a
	// failure.
	ErrInsufficientData = errors.New("not enough training data")

	// ErrTrainingInFlight indicates another training run is already
	// executing. Soft skip, not an error surfaced to operators.
	ErrTrainingInFlight = errors.New("training already in progress")
)
