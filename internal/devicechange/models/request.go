package models

import (
	"strings"
	"time"

	id "shiftgate/pkg/domain"
	dErrors "shiftgate/pkg/domain-errors"
)

// Status is the lifecycle state of a change request.
//
// State machine: pending -> approved (terminal), pending -> rejected
// (terminal). No transition leaves a terminal state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// DeviceMeta describes the device an employee wants to bind, captured at
// request time for the admin review screen.
type DeviceMeta struct {
	Label     string `json:"label"`
	UserAgent string `json:"user_agent,omitempty"`
}

// ChangeRequest is an employee's request to bind a new device.
//
// Invariants:
//   - at most one pending request per identity at any time
//   - a request enters pending via NewChangeRequest only and leaves it
//     exactly once, via approval or rejection
//   - terminal requests are immutable
type ChangeRequest struct {
	ID                id.ChangeRequestID `json:"id"`
	IdentityID        id.IdentityID      `json:"identity_id"`
	RequestedDeviceID string             `json:"requested_device_id"`
	Meta              DeviceMeta         `json:"meta"`
	Status            Status             `json:"status"`
	RequestedAt       time.Time          `json:"requested_at"`
	ReviewedBy        *id.IdentityID     `json:"reviewed_by,omitempty"`
	ReviewedAt        *time.Time         `json:"reviewed_at,omitempty"`
	AdminNote         string             `json:"admin_note,omitempty"`
}

// NewChangeRequest creates a pending ChangeRequest with domain invariant
// validation.
func NewChangeRequest(requestID id.ChangeRequestID, identityID id.IdentityID, deviceID string, meta DeviceMeta, now time.Time) (*ChangeRequest, error) {
	deviceID = strings.TrimSpace(deviceID)
	if requestID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "request id is required")
	}
	if identityID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "identity id is required")
	}
	if deviceID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "device id cannot be empty")
	}
	return &ChangeRequest{
		ID:                requestID,
		IdentityID:        identityID,
		RequestedDeviceID: deviceID,
		Meta:              meta,
		Status:            StatusPending,
		RequestedAt:       now,
	}, nil
}

// CanReview checks that the request still accepts a review decision.
func (r *ChangeRequest) CanReview() error {
	if r.Status.IsTerminal() {
		return dErrors.New(dErrors.CodeInvariantViolation, "change request already reviewed")
	}
	return nil
}

// ApplyApproval transitions the request to approved. Callers must check
// CanReview first; stores enforce the same guard at write time.
func (r *ChangeRequest) ApplyApproval(reviewer id.IdentityID, now time.Time) {
	r.Status = StatusApproved
	r.ReviewedBy = &reviewer
	r.ReviewedAt = &now
}

// ApplyRejection transitions the request to rejected with an optional note.
func (r *ChangeRequest) ApplyRejection(reviewer id.IdentityID, note string, now time.Time) {
	r.Status = StatusRejected
	r.ReviewedBy = &reviewer
	r.ReviewedAt = &now
	r.AdminNote = note
}

// IsOwnedBy reports whether the request belongs to the given identity.
func (r *ChangeRequest) IsOwnedBy(identityID id.IdentityID) bool {
	return r.IdentityID == identityID
}
