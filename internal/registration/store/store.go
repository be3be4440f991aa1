// Package store persists registration records. Records are append-only: there is
// no update or delete, and callers always receive copies.
package store

import (
	"fmt"

	"formintake/pkg/platform/sentinel"
)

// Logical key names reported by DuplicateKeyError.
const (
	KeyID              = "id"
	KeyReferenceNumber = "referenceNumber"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = sentinel.ErrNotFound

// DuplicateKeyError reports a rejected insert because id or referenceNumber is
// already held. It matches sentinel.ErrConflict.
type DuplicateKeyError struct {
	Field string
	Err   error
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key %s", e.Field)
}

func (e *DuplicateKeyError) Is(target error) bool {
	return target == sentinel.ErrConflict
}

func (e *DuplicateKeyError) Unwrap() error {
	return e.Err
}

// unavailable marks an I/O failure so services can tell it apart from absence
// or conflict.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
}
