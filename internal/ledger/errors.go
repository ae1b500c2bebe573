package ledger

import (
	"errors"
	"fmt"

	"bizrent_ledger/internal/identity"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrNotOwner            = errors.New("resource belongs to another account")
	ErrInvalidState        = errors.New("operation not allowed in current state")
	ErrAlreadyProcessed    = errors.New("payment has already been processed")
	ErrEmptyBatch          = errors.New("no occupied units to invoice")
	ErrDuplicateGeneration = errors.New("invoice already exists for this period")
	ErrValidation          = errors.New("validation failed")
	ErrFileValidation      = errors.New("file validation failed")

	ErrUnauthenticated = identity.ErrUnauthenticated
	ErrForbidden       = identity.ErrForbidden
)

// ValidationError reports malformed input on a single field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// FileValidationError reports an upload that violates size or type limits
type FileValidationError struct {
	Reason  string // "too_large", "unsupported_type" or "empty"
	Message string
}

func (e *FileValidationError) Error() string { return e.Message }

func (e *FileValidationError) Is(target error) bool { return target == ErrFileValidation }

func stateError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

func notFound(what string, id uint) error {
	return fmt.Errorf("%w: %s %d", ErrNotFound, what, id)
}
