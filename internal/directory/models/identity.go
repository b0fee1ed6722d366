package models

import (
	"strings"
	"time"

	id "shiftgate/pkg/domain"
	dErrors "shiftgate/pkg/domain-errors"
)

// Role distinguishes the two trust levels in the system.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

// IsValid checks if the role is one of the supported enum values.
func (r Role) IsValid() bool {
	return r == RoleEmployee || r == RoleAdmin
}

// DeviceBinding is the single currently-trusted device of an identity.
//
// Invariants:
//   - at most one binding per identity at any time
//   - created or replaced only by review approval or admin immediate bind,
//     never implicitly by a punch
//   - presence of a binding authorizes nothing by itself; the presented
//     device id must match DeviceID exactly
type DeviceBinding struct {
	DeviceID string    `json:"device_id"`
	Label    string    `json:"label"`
	BoundAt  time.Time `json:"bound_at"`
}

// Identity is an employee or admin account as this core sees it. The account
// subsystem owns the record; this core reads role, networks, and binding, and
// writes only AllowedNetworks and Binding.
//
// AllowedNetworks is an ordered list of CIDR blocks or single IP literals.
// A non-empty list completely overrides the company allowlist; it is never
// merged with it.
type Identity struct {
	ID              id.IdentityID  `json:"id"`
	Email           string         `json:"email"`
	Name            string         `json:"name"`
	Role            Role           `json:"role"`
	AllowedNetworks []string       `json:"allowed_networks,omitempty"`
	Binding         *DeviceBinding `json:"binding,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// IsAdmin reports whether the identity holds the admin role.
func (i *Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// NewIdentity creates an Identity with domain invariant validation.
func NewIdentity(identityID id.IdentityID, email, name string, role Role, now time.Time) (*Identity, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	name = strings.TrimSpace(name)
	if identityID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "identity id is required")
	}
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "email cannot be empty")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "name cannot be empty")
	}
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid role")
	}
	return &Identity{
		ID:        identityID,
		Email:     email,
		Name:      name,
		Role:      role,
		CreatedAt: now,
	}, nil
}

// NewDeviceBinding creates a DeviceBinding with domain invariant validation.
func NewDeviceBinding(deviceID, label string, now time.Time) (*DeviceBinding, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "device id cannot be empty")
	}
	if label == "" {
		label = "unnamed device"
	}
	return &DeviceBinding{DeviceID: deviceID, Label: label, BoundAt: now}, nil
}
