// Package store persists identity records and their device bindings.
//
// Binding replacement is atomic: both implementations swap the whole binding
// in one step (single-row update in Postgres, pointer swap under lock in
// memory), so a reader can never observe a half-written binding.
package store

import (
	"context"

	"shiftgate/internal/directory/models"
	id "shiftgate/pkg/domain"
)

// Store is the persistence boundary for identities.
//
// Implementations return sentinel.ErrNotFound for missing identities and
// sentinel.ErrConflict for duplicate emails; services translate these into
// domain errors.
type Store interface {
	// Create inserts a new identity with its credential hash.
	Create(ctx context.Context, identity *models.Identity, credentialHash string) error

	// FindByID returns the identity including networks and binding.
	FindByID(ctx context.Context, identityID id.IdentityID) (*models.Identity, error)

	// List returns all identities, newest first.
	List(ctx context.Context) ([]*models.Identity, error)

	// SetAllowedNetworks replaces the per-identity network override.
	SetAllowedNetworks(ctx context.Context, identityID id.IdentityID, networks []string) error

	// Binding returns the current device binding, or nil when none is set.
	Binding(ctx context.Context, identityID id.IdentityID) (*models.DeviceBinding, error)

	// Rebind atomically replaces the identity's device binding.
	Rebind(ctx context.Context, identityID id.IdentityID, binding *models.DeviceBinding) error
}
