// Package store persists device change requests.
//
// Both implementations enforce the two write-time invariants:
//   - Create admits at most one pending request per identity, atomically
//     with respect to concurrent creates (ErrDuplicatePending)
//   - Transition moves a request out of pending exactly once; a losing
//     concurrent reviewer gets ErrAlreadyReviewed
package store

import (
	"context"
	"errors"
	"time"

	"shiftgate/internal/devicechange/models"
	id "shiftgate/pkg/domain"
)

// Store sentinels, translated into domain errors at the service boundary.
var (
	ErrDuplicatePending = errors.New("identity already has a pending change request")
	ErrAlreadyReviewed  = errors.New("change request was already reviewed")
)

// Ledger is the persistence boundary for change requests.
// Missing requests surface as sentinel.ErrNotFound.
type Ledger interface {
	// Create inserts a pending request, enforcing pending-uniqueness per
	// identity at write time.
	Create(ctx context.Context, request *models.ChangeRequest) error

	FindByID(ctx context.Context, requestID id.ChangeRequestID) (*models.ChangeRequest, error)

	// ListByIdentity returns the identity's requests, newest first.
	ListByIdentity(ctx context.Context, identityID id.IdentityID) ([]*models.ChangeRequest, error)

	// ListPending returns all pending requests, oldest first, so reviewers
	// work through a FIFO queue.
	ListPending(ctx context.Context) ([]*models.ChangeRequest, error)

	// Transition conditionally moves a pending request to a terminal status
	// and returns the updated request. The status check and the write are one
	// atomic step.
	Transition(ctx context.Context, requestID id.ChangeRequestID, to models.Status, reviewer id.IdentityID, note string, now time.Time) (*models.ChangeRequest, error)

	// Delete removes a request outright. Ownership checks belong to the
	// service.
	Delete(ctx context.Context, requestID id.ChangeRequestID) error
}
