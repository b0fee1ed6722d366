package audit

import (
	"context"

	id "shiftgate/pkg/domain"
)

// Store is an append-only sink for audit events.
type Store interface {
	Append(ctx context.Context, event Event) error

	// ListBySubject returns events about an identity, newest first.
	ListBySubject(ctx context.Context, subject id.IdentityID) ([]Event, error)
}
