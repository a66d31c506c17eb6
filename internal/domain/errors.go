package domain

import (
	"errors"
	"fmt"
)

// Domain errors.
var (
	ErrValidation     = errors.New("validation failed")
	ErrUnauthorized   = errors.New("actor does not own this task")
	ErrConflict       = errors.New("concurrent modification conflict")
	ErrRetryLater     = errors.New("the series was modified concurrently, please retry")
	ErrCapExceeded    = errors.New("rule exceeds the maximum number of occurrences")
	ErrTaskNotFound   = errors.New("task not found")
	ErrNotInitialized = errors.New("store not initialized (run 'taskcal init' first)")
	ErrNoActor        = errors.New("no authenticated actor")
	ErrEmptyFile      = errors.New("file is empty")
	ErrNoSeriesInFile = errors.New("no series found in file")
	ErrConfigExists   = errors.New("config file already exists")
)

// ValidationError reports a rejected input field.
// It matches ErrValidation with errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// FieldOf returns the offending field of a validation error, or "".
func FieldOf(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Field
	}
	return ""
}
