package contentstore

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is wrapped by every *ValidationError.
	ErrValidation = errors.New("invalid section")

	// ErrColumn is returned when a query names a column, function or
	// operator outside the allowed set.
	ErrColumn = errors.New("invalid query column")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("content store closed")
)

// ValidationError reports a section row missing mandatory metadata.
type ValidationError struct {
	ID    string
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("section %q: missing %s", e.ID, e.Field)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
