package repositories

import (
	"errors"
	"fmt"
)

// ErrNotFound is the sentinel wrapped by NotFoundError.
var ErrNotFound = errors.New("repository: not found")

// NotFoundError reports a missing record from a non-Firestore backend.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// Unwrap lets callers match ErrNotFound.
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func (e *NotFoundError) IsNotFound() bool    { return true }
func (e *NotFoundError) IsUnavailable() bool { return false }

var _ RepositoryError = (*NotFoundError)(nil)
