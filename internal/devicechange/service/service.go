// Package service implements the device change workflow: employees queue a
// change request, admins review it, and an approval rebinds the device as
// one atomic unit with the ledger transition.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mssola/useragent"

	"shiftgate/internal/audit"
	"shiftgate/internal/devicechange/models"
	"shiftgate/internal/devicechange/store"
	dirmodels "shiftgate/internal/directory/models"
	dirstore "shiftgate/internal/directory/store"
	"shiftgate/internal/platform/metrics"
	id "shiftgate/pkg/domain"
	dErrors "shiftgate/pkg/domain-errors"
	"shiftgate/pkg/platform/sentinel"
	"shiftgate/pkg/requestcontext"
)

// ChangeService owns the change request lifecycle. Rebinding happens here
// only inside Approve and the admin immediate path; nothing else mutates
// bindings through this service.
type ChangeService struct {
	ledger     store.Ledger
	identities dirstore.Store
	audit      *audit.Publisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	tx         StoreTx
}

// Option configures optional ChangeService collaborators.
type Option func(*ChangeService)

// WithStoreTx overrides the transactional runner. Production wiring passes a
// database-backed runner; the default serializes with an in-process lock.
func WithStoreTx(tx StoreTx) Option {
	return func(s *ChangeService) { s.tx = tx }
}

func NewChangeService(ledger store.Ledger, identities dirstore.Store, auditPublisher *audit.Publisher, m *metrics.Metrics, logger *slog.Logger, opts ...Option) *ChangeService {
	s := &ChangeService{
		ledger:     ledger,
		identities: identities,
		audit:      auditPublisher,
		metrics:    m,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = newInMemoryStoreTx()
	}
	return s
}

// RequestChange submits a device change for the authenticated identity.
//
// Admins never queue themselves for admin approval: an admin submission
// rebinds immediately and returns an already-approved request reviewed by
// the admin. This self-service path is intentional for the trusted role and
// is always audited.
func (s *ChangeService) RequestChange(ctx context.Context, deviceID, label string) (*models.ChangeRequest, error) {
	identityID := requestcontext.IdentityID(ctx)
	if identityID.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	identity, err := s.identities.FindByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "identity store failure")
	}

	now := requestcontext.Now(ctx)
	rawUA := requestcontext.UserAgent(ctx)
	if label == "" {
		label = labelFromUserAgent(rawUA)
	}
	meta := models.DeviceMeta{Label: label, UserAgent: rawUA}

	request, err := models.NewChangeRequest(id.NewChangeRequestID(), identityID, deviceID, meta, now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if identity.IsAdmin() {
		return s.adminSelfBind(ctx, request, now)
	}

	if err := s.ledger.Create(ctx, request); err != nil {
		if errors.Is(err, store.ErrDuplicatePending) {
			s.metrics.IncrementChangeRequests("duplicate")
			return nil, dErrors.New(dErrors.CodeConflict, "a pending change request already exists, wait for review or cancel it")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create change request")
	}

	s.metrics.IncrementChangeRequests("created")
	s.audit.Emit(ctx, audit.Event{
		Actor:   identityID,
		Subject: identityID,
		Action:  audit.ActionChangeRequested,
		Detail:  request.RequestedDeviceID,
	})
	return request, nil
}

// adminSelfBind rebinds the admin's device directly, skipping the ledger.
func (s *ChangeService) adminSelfBind(ctx context.Context, request *models.ChangeRequest, now time.Time) (*models.ChangeRequest, error) {
	binding, err := dirmodels.NewDeviceBinding(request.RequestedDeviceID, request.Meta.Label, now)
	if err != nil {
		return nil, err
	}
	if err := s.identities.Rebind(ctx, request.IdentityID, binding); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to rebind device")
	}
	request.ApplyApproval(request.IdentityID, now)

	s.metrics.IncrementImmediateBinds()
	s.audit.Emit(ctx, audit.Event{
		Actor:   request.IdentityID,
		Subject: request.IdentityID,
		Action:  audit.ActionDeviceBoundImmediate,
		Detail:  request.RequestedDeviceID,
	})
	s.logger.InfoContext(ctx, "admin self-bind applied",
		"identity_id", request.IdentityID.String(),
	)
	return request, nil
}

// ListMine returns the caller's requests, newest first.
func (s *ChangeService) ListMine(ctx context.Context) ([]*models.ChangeRequest, error) {
	identityID := requestcontext.IdentityID(ctx)
	if identityID.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	requests, err := s.ledger.ListByIdentity(ctx, identityID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list change requests")
	}
	return requests, nil
}

// ListFor returns any identity's requests, newest first. Admin surface; the
// ownership check of ListMine does not apply.
func (s *ChangeService) ListFor(ctx context.Context, identityID id.IdentityID) ([]*models.ChangeRequest, error) {
	requests, err := s.ledger.ListByIdentity(ctx, identityID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list change requests")
	}
	return requests, nil
}

// ListPending returns all pending requests, oldest first.
func (s *ChangeService) ListPending(ctx context.Context) ([]*models.ChangeRequest, error) {
	requests, err := s.ledger.ListPending(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list pending requests")
	}
	return requests, nil
}

// Approve transitions the request to approved and rebinds the subject's
// device inside one transactional unit. If the transition loses a review
// race, the rebind never happens.
func (s *ChangeService) Approve(ctx context.Context, requestID id.ChangeRequestID) (*models.ChangeRequest, error) {
	reviewer := requestcontext.IdentityID(ctx)
	if reviewer.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	var approved *models.ChangeRequest
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		updated, err := s.ledger.Transition(txCtx, requestID, models.StatusApproved, reviewer, "", now)
		if err != nil {
			return translateReviewErr(err)
		}
		binding, err := dirmodels.NewDeviceBinding(updated.RequestedDeviceID, updated.Meta.Label, now)
		if err != nil {
			return err
		}
		if err := s.identities.Rebind(txCtx, updated.IdentityID, binding); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to rebind device")
		}
		approved = updated
		return nil
	})
	if err != nil {
		s.metrics.IncrementReviews("approve", "failure")
		return nil, err
	}

	s.metrics.IncrementReviews("approve", "success")
	s.audit.Emit(ctx, audit.Event{
		Actor:   reviewer,
		Subject: approved.IdentityID,
		Action:  audit.ActionChangeApproved,
		Detail:  approved.RequestedDeviceID,
	})
	return approved, nil
}

// Reject transitions the request to rejected with an optional note. No
// binding change.
func (s *ChangeService) Reject(ctx context.Context, requestID id.ChangeRequestID, note string) (*models.ChangeRequest, error) {
	reviewer := requestcontext.IdentityID(ctx)
	if reviewer.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	rejected, err := s.ledger.Transition(ctx, requestID, models.StatusRejected, reviewer, note, requestcontext.Now(ctx))
	if err != nil {
		s.metrics.IncrementReviews("reject", "failure")
		return nil, translateReviewErr(err)
	}

	s.metrics.IncrementReviews("reject", "success")
	s.audit.Emit(ctx, audit.Event{
		Actor:   reviewer,
		Subject: rejected.IdentityID,
		Action:  audit.ActionChangeRejected,
		Detail:  rejected.RequestedDeviceID,
	})
	return rejected, nil
}

// Delete removes a request. Only the owning identity or an admin may delete;
// this is an administrative action, not a lifecycle transition.
func (s *ChangeService) Delete(ctx context.Context, requestID id.ChangeRequestID) error {
	requester := requestcontext.IdentityID(ctx)
	if requester.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	request, err := s.ledger.FindByID(ctx, requestID)
	if err != nil {
		return translateReviewErr(err)
	}
	isAdmin := requestcontext.Role(ctx) == string(dirmodels.RoleAdmin)
	if !request.IsOwnedBy(requester) && !isAdmin {
		return dErrors.New(dErrors.CodeForbidden, "only the owner or an admin may delete a change request")
	}

	if err := s.ledger.Delete(ctx, requestID); err != nil {
		return translateReviewErr(err)
	}

	s.audit.Emit(ctx, audit.Event{
		Actor:   requester,
		Subject: request.IdentityID,
		Action:  audit.ActionChangeDeleted,
		Detail:  request.RequestedDeviceID,
	})
	return nil
}

func translateReviewErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "change request not found")
	case errors.Is(err, store.ErrAlreadyReviewed):
		return dErrors.New(dErrors.CodeConflict, "change request was already reviewed")
	case dErrors.HasCode(err, dErrors.CodeTimeout):
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "change request store failure")
	}
}

// labelFromUserAgent derives a human-readable device label from the raw
// User-Agent, e.g. "Chrome on Windows 10".
func labelFromUserAgent(raw string) string {
	if raw == "" {
		return ""
	}
	parsed := useragent.New(raw)
	browser, _ := parsed.Browser()
	os := parsed.OSInfo().FullName
	switch {
	case browser != "" && os != "":
		return browser + " on " + os
	case browser != "":
		return browser
	default:
		return os
	}
}
