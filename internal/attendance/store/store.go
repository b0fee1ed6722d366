// Package store persists accepted attendance punches.
package store

import (
	"context"
	"time"

	"shiftgate/internal/attendance/models"
	id "shiftgate/pkg/domain"
)

// Store is the append-mostly punch log.
type Store interface {
	Append(ctx context.Context, punch *models.Punch) error

	// ListByIdentity returns the identity's punches within [from, to),
	// newest first, capped at limit.
	ListByIdentity(ctx context.Context, identityID id.IdentityID, from, to time.Time, limit int) ([]*models.Punch, error)
}
