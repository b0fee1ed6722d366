// Package domain provides typed identifiers shared across the module.
//
// Distinct ID types make cross-entity assignment a compile error: an
// IdentityID can never be passed where a ChangeRequestID is expected.
package domain

import (
	"github.com/google/uuid"

	dErrors "shiftgate/pkg/domain-errors"
)

// IdentityID identifies an employee or admin identity.
type IdentityID uuid.UUID

// ChangeRequestID identifies a device change request.
type ChangeRequestID uuid.UUID

// PunchID identifies an attendance punch record.
type PunchID uuid.UUID

func NewIdentityID() IdentityID           { return IdentityID(uuid.New()) }
func NewChangeRequestID() ChangeRequestID { return ChangeRequestID(uuid.New()) }
func NewPunchID() PunchID                 { return PunchID(uuid.New()) }

// ParseIdentityID parses and validates an identity id from its string form.
// Empty strings, malformed input and the nil UUID are rejected.
func ParseIdentityID(s string) (IdentityID, error) {
	u, err := parseUUID(s, "identity id")
	if err != nil {
		return IdentityID{}, err
	}
	return IdentityID(u), nil
}

// ParseChangeRequestID parses and validates a change request id.
func ParseChangeRequestID(s string) (ChangeRequestID, error) {
	u, err := parseUUID(s, "change request id")
	if err != nil {
		return ChangeRequestID{}, err
	}
	return ChangeRequestID(u), nil
}

// ParsePunchID parses and validates a punch id.
func ParsePunchID(s string) (PunchID, error) {
	u, err := parseUUID(s, "punch id")
	if err != nil {
		return PunchID{}, err
	}
	return PunchID(u), nil
}

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" must not be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" must not be the nil UUID")
	}
	return u, nil
}

func (i IdentityID) String() string      { return uuid.UUID(i).String() }
func (i ChangeRequestID) String() string { return uuid.UUID(i).String() }
func (i PunchID) String() string         { return uuid.UUID(i).String() }

func (i IdentityID) IsZero() bool      { return uuid.UUID(i) == uuid.Nil }
func (i ChangeRequestID) IsZero() bool { return uuid.UUID(i) == uuid.Nil }
func (i PunchID) IsZero() bool         { return uuid.UUID(i) == uuid.Nil }

// Text marshalling keeps the UUID string form on the wire and in JSON.

func (i IdentityID) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

func (i *IdentityID) UnmarshalText(b []byte) error {
	parsed, err := ParseIdentityID(string(b))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

func (i ChangeRequestID) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

func (i *ChangeRequestID) UnmarshalText(b []byte) error {
	parsed, err := ParseChangeRequestID(string(b))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

func (i PunchID) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

func (i *PunchID) UnmarshalText(b []byte) error {
	parsed, err := ParsePunchID(string(b))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
