// Package domain holds identifier primitives shared across modules.
//
// Identifiers are parsed once at trust boundaries (HTTP path params) and passed
// around as typed values so a raw string never reaches a store.
package domain

import (
	"github.com/google/uuid"

	dErrors "formintake/pkg/domain-errors"
)

// canonicalUUIDLen is the length of the grouped 8-4-4-4-12 textual form.
const canonicalUUIDLen = 36

// RegistrationID identifies a registration record.
type RegistrationID uuid.UUID

// NewRegistrationID returns a fresh random (v4) registration ID.
func NewRegistrationID() RegistrationID {
	return RegistrationID(uuid.New())
}

// ParseRegistrationID accepts only the canonical grouped hex form, case-insensitive.
// uuid.Parse on its own also accepts urn:uuid:, braced and ungrouped forms; those
// are rejected here so the public id shape stays fixed.
func ParseRegistrationID(s string) (RegistrationID, error) {
	if len(s) != canonicalUUIDLen {
		return RegistrationID{}, dErrors.New(dErrors.CodeBadRequest, "invalid registration id")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return RegistrationID{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid registration id")
	}
	return RegistrationID(parsed), nil
}

func (id RegistrationID) String() string {
	return uuid.UUID(id).String()
}

func (id RegistrationID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

// MarshalText renders the canonical lowercase form.
func (id RegistrationID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses with the same rules as ParseRegistrationID.
func (id *RegistrationID) UnmarshalText(b []byte) error {
	parsed, err := ParseRegistrationID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
