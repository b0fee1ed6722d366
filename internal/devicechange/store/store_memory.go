package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"shiftgate/internal/devicechange/models"
	id "shiftgate/pkg/domain"
	"shiftgate/pkg/platform/sentinel"
)

// MemoryLedger keeps change requests in process memory. The pending index is
// maintained under the same lock as the request map, so pending-uniqueness
// holds for concurrent creates exactly as the partial unique index does in
// Postgres.
type MemoryLedger struct {
	mu       sync.Mutex
	requests map[id.ChangeRequestID]*models.ChangeRequest
	pending  map[id.IdentityID]id.ChangeRequestID
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		requests: make(map[id.ChangeRequestID]*models.ChangeRequest),
		pending:  make(map[id.IdentityID]id.ChangeRequestID),
	}
}

func (l *MemoryLedger) Create(_ context.Context, request *models.ChangeRequest) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.pending[request.IdentityID]; exists {
		return ErrDuplicatePending
	}
	if _, exists := l.requests[request.ID]; exists {
		return sentinel.ErrConflict
	}
	stored := *request
	l.requests[request.ID] = &stored
	l.pending[request.IdentityID] = request.ID
	return nil
}

func (l *MemoryLedger) FindByID(_ context.Context, requestID id.ChangeRequestID) (*models.ChangeRequest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	request, ok := l.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *request
	return &out, nil
}

func (l *MemoryLedger) ListByIdentity(_ context.Context, identityID id.IdentityID) ([]*models.ChangeRequest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []*models.ChangeRequest
	for _, request := range l.requests {
		if request.IdentityID == identityID {
			c := *request
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RequestedAt.After(out[j].RequestedAt)
	})
	return out, nil
}

func (l *MemoryLedger) ListPending(_ context.Context) ([]*models.ChangeRequest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []*models.ChangeRequest
	for _, request := range l.requests {
		if request.Status == models.StatusPending {
			c := *request
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RequestedAt.Before(out[j].RequestedAt)
	})
	return out, nil
}

func (l *MemoryLedger) Transition(_ context.Context, requestID id.ChangeRequestID, to models.Status, reviewer id.IdentityID, note string, now time.Time) (*models.ChangeRequest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	request, ok := l.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if request.Status != models.StatusPending {
		return nil, ErrAlreadyReviewed
	}

	switch to {
	case models.StatusApproved:
		request.ApplyApproval(reviewer, now)
		request.AdminNote = note
	case models.StatusRejected:
		request.ApplyRejection(reviewer, note, now)
	default:
		return nil, sentinel.ErrInvalidState
	}
	delete(l.pending, request.IdentityID)

	out := *request
	return &out, nil
}

func (l *MemoryLedger) Delete(_ context.Context, requestID id.ChangeRequestID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	request, ok := l.requests[requestID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if l.pending[request.IdentityID] == requestID {
		delete(l.pending, request.IdentityID)
	}
	delete(l.requests, requestID)
	return nil
}
