// Package service records attendance punches after the gate has allowed them.
package service

import (
	"context"
	"log/slog"
	"time"

	"shiftgate/internal/attendance/models"
	"shiftgate/internal/attendance/store"
	"shiftgate/internal/gate"
	id "shiftgate/pkg/domain"
	dErrors "shiftgate/pkg/domain-errors"
	"shiftgate/pkg/requestcontext"
)

// History requests are capped regardless of what the client asks for.
const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 500
	maxHistoryWindow    = 366 * 24 * time.Hour
)

// PunchResult carries the gate decision and, when allowed, the recorded punch.
type PunchResult struct {
	Decision gate.Decision
	Punch    *models.Punch
}

// AttendanceService gates and records punches.
type AttendanceService struct {
	punches store.Store
	gate    *gate.Gate
	logger  *slog.Logger
}

func NewAttendanceService(punches store.Store, g *gate.Gate, logger *slog.Logger) *AttendanceService {
	return &AttendanceService{punches: punches, gate: g, logger: logger}
}

// Punch runs the authorization gate and appends a punch record only on an
// allowance. A denial is an expected outcome carried in the result, not an
// error; infrastructure failures return an error and nothing is recorded.
func (s *AttendanceService) Punch(ctx context.Context, kind models.Kind) (*PunchResult, error) {
	identityID := requestcontext.IdentityID(ctx)
	if identityID.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if !kind.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "punch kind must be in or out")
	}

	deviceID := requestcontext.DeviceID(ctx)
	clientAddr := requestcontext.ClientIP(ctx)

	decision, err := s.gate.Authorize(ctx, identityID, deviceID, clientAddr)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return &PunchResult{Decision: decision}, nil
	}

	punch, err := models.NewPunch(id.NewPunchID(), identityID, kind, deviceID, clientAddr, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.punches.Append(ctx, punch); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record punch")
	}

	s.logger.InfoContext(ctx, "punch recorded",
		"identity_id", identityID.String(),
		"kind", string(kind),
	)
	return &PunchResult{Decision: decision, Punch: punch}, nil
}

// History returns the caller's punches within the window, newest first. A
// zero window defaults to the last 31 days.
func (s *AttendanceService) History(ctx context.Context, from, to time.Time, limit int) ([]*models.Punch, error) {
	identityID := requestcontext.IdentityID(ctx)
	if identityID.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	now := requestcontext.Now(ctx)
	if to.IsZero() {
		to = now
	}
	if from.IsZero() {
		from = to.Add(-31 * 24 * time.Hour)
	}
	if !from.Before(to) {
		return nil, dErrors.New(dErrors.CodeValidation, "history window start must precede its end")
	}
	if to.Sub(from) > maxHistoryWindow {
		return nil, dErrors.New(dErrors.CodeValidation, "history window exceeds one year")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	punches, err := s.punches.ListByIdentity(ctx, identityID, from, to, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list punches")
	}
	return punches, nil
}
