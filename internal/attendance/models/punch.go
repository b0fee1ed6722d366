package models

import (
	"time"

	id "shiftgate/pkg/domain"
	dErrors "shiftgate/pkg/domain-errors"
)

// Kind distinguishes the two punch directions.
type Kind string

const (
	KindIn  Kind = "in"
	KindOut Kind = "out"
)

func (k Kind) IsValid() bool {
	return k == KindIn || k == KindOut
}

// Punch is a single accepted attendance event. The device id and network
// address observed at punch time are recorded for audit.
type Punch struct {
	ID         id.PunchID    `json:"id"`
	IdentityID id.IdentityID `json:"identity_id"`
	Kind       Kind          `json:"kind"`
	DeviceID   string        `json:"device_id"`
	ClientIP   string        `json:"client_ip"`
	At         time.Time     `json:"at"`
}

// NewPunch creates a Punch with domain invariant validation.
func NewPunch(punchID id.PunchID, identityID id.IdentityID, kind Kind, deviceID, clientIP string, now time.Time) (*Punch, error) {
	if punchID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "punch id is required")
	}
	if identityID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "identity id is required")
	}
	if !kind.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "punch kind must be in or out")
	}
	return &Punch{
		ID:         punchID,
		IdentityID: identityID,
		Kind:       kind,
		DeviceID:   deviceID,
		ClientIP:   clientIP,
		At:         now,
	}, nil
}
