// Package domain defines core types, interfaces, and errors for the
// identity synchronization engine.
package domain

import "fmt"

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError indicates a conflict (e.g., duplicate resource).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// AmbiguousMatchError indicates a lookup that was expected to identify at
// most one object matched several. The engine never picks one silently.
type AmbiguousMatchError struct {
	Message string
}

func (e *AmbiguousMatchError) Error() string { return e.Message }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ErrAmbiguousMatch creates an AmbiguousMatchError with a formatted message.
func ErrAmbiguousMatch(format string, args ...interface{}) *AmbiguousMatchError {
	return &AmbiguousMatchError{Message: fmt.Sprintf(format, args...)}
}
