// Package service orchestrates identity administration: employee accounts,
// per-identity network overrides, and the device binding each identity holds.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"shiftgate/internal/audit"
	"shiftgate/internal/directory/models"
	"shiftgate/internal/directory/store"
	"shiftgate/internal/platform/metrics"
	id "shiftgate/pkg/domain"
	dErrors "shiftgate/pkg/domain-errors"
	"shiftgate/pkg/platform/secrets"
	"shiftgate/pkg/platform/sentinel"
	"shiftgate/pkg/requestcontext"
)

// DirectoryService manages identity records. Device bindings are mutated here
// only through AdminImmediateBind; the review workflow drives the other
// rebind path.
type DirectoryService struct {
	identities store.Store
	audit      *audit.Publisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewDirectoryService(identities store.Store, auditPublisher *audit.Publisher, m *metrics.Metrics, logger *slog.Logger) *DirectoryService {
	return &DirectoryService{
		identities: identities,
		audit:      auditPublisher,
		metrics:    m,
		logger:     logger,
	}
}

// CreateEmployeeInput carries the admin-supplied fields for a new account.
type CreateEmployeeInput struct {
	Email  string
	Name   string
	Role   models.Role
	Secret string
}

// CreateEmployee provisions a new identity. When no secret is supplied one is
// generated and returned exactly once; only its hash is stored.
func (s *DirectoryService) CreateEmployee(ctx context.Context, in CreateEmployeeInput) (*models.Identity, string, error) {
	identity, err := models.NewIdentity(id.NewIdentityID(), in.Email, in.Name, in.Role, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, "", dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, "", err
	}

	secret := in.Secret
	var generated string
	if secret == "" {
		secret, err = secrets.Generate()
		if err != nil {
			return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate credential")
		}
		generated = secret
	}
	hash, err := secrets.Hash(secret)
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash credential")
	}

	if err := s.identities.Create(ctx, identity, hash); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, "", dErrors.New(dErrors.CodeConflict, "email is already registered")
		}
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to create identity")
	}

	s.audit.Emit(ctx, audit.Event{
		Actor:   requestcontext.IdentityID(ctx),
		Subject: identity.ID,
		Action:  audit.ActionEmployeeCreated,
		Detail:  identity.Email,
	})
	return identity, generated, nil
}

func (s *DirectoryService) GetIdentity(ctx context.Context, identityID id.IdentityID) (*models.Identity, error) {
	if identityID.IsZero() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "identity id is required")
	}
	identity, err := s.identities.FindByID(ctx, identityID)
	if err != nil {
		return nil, wrapIdentityErr(err)
	}
	return identity, nil
}

func (s *DirectoryService) ListIdentities(ctx context.Context) ([]*models.Identity, error) {
	identities, err := s.identities.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list identities")
	}
	return identities, nil
}

// SetAllowedNetworks replaces the identity's network override. An empty list
// clears the override so the company allowlist applies again. Entries are
// stored as given after trimming; unparseable rules are tolerated here and
// skipped at match time.
func (s *DirectoryService) SetAllowedNetworks(ctx context.Context, identityID id.IdentityID, networks []string) error {
	if identityID.IsZero() {
		return dErrors.New(dErrors.CodeBadRequest, "identity id is required")
	}
	cleaned := make([]string, 0, len(networks))
	for _, rule := range networks {
		rule = strings.TrimSpace(rule)
		if rule != "" {
			cleaned = append(cleaned, rule)
		}
	}
	if err := s.identities.SetAllowedNetworks(ctx, identityID, cleaned); err != nil {
		return wrapIdentityErr(err)
	}

	s.metrics.IncrementAllowlistUpdates()
	s.audit.Emit(ctx, audit.Event{
		Actor:   requestcontext.IdentityID(ctx),
		Subject: identityID,
		Action:  audit.ActionAllowlistUpdated,
		Detail:  strings.Join(cleaned, ","),
	})
	return nil
}

// GetBinding returns the identity's current device binding, nil when unbound.
func (s *DirectoryService) GetBinding(ctx context.Context, identityID id.IdentityID) (*models.DeviceBinding, error) {
	if identityID.IsZero() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "identity id is required")
	}
	binding, err := s.identities.Binding(ctx, identityID)
	if err != nil {
		return nil, wrapIdentityErr(err)
	}
	return binding, nil
}

// AdminImmediateBind replaces the target's binding without a review cycle.
// The actor is recorded in the audit trail, including when admins bind their
// own account.
func (s *DirectoryService) AdminImmediateBind(ctx context.Context, targetID id.IdentityID, deviceID, label string) (*models.DeviceBinding, error) {
	if targetID.IsZero() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "identity id is required")
	}
	binding, err := models.NewDeviceBinding(deviceID, label, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	if err := s.identities.Rebind(ctx, targetID, binding); err != nil {
		return nil, wrapIdentityErr(err)
	}

	actor := requestcontext.IdentityID(ctx)
	s.metrics.IncrementImmediateBinds()
	s.audit.Emit(ctx, audit.Event{
		Actor:   actor,
		Subject: targetID,
		Action:  audit.ActionDeviceBoundImmediate,
		Detail:  binding.DeviceID,
	})
	s.logger.InfoContext(ctx, "device bound immediately",
		"actor", actor.String(),
		"subject", targetID.String(),
	)
	return binding, nil
}

func wrapIdentityErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "identity not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "identity store failure")
}
