package core

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates a payload the sanitizer refused.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates an operation targeted a missing popup id.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates the stored collection changed since it was loaded.
	ErrConflict = errors.New("version conflict")
	// ErrStorage indicates the persisted collection could not be read or written.
	ErrStorage = errors.New("storage error")
)

// ValidationError reports the field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NotFoundError carries the id that did not resolve.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("popup %q does not exist", e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ConflictError reports the version mismatch detected at save time.
type ConflictError struct {
	Expected int64
	Current  int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version conflict: expected %d, stored %d", e.Expected, e.Current)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// StorageError wraps an error returned by a persistence backend.
func StorageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}
