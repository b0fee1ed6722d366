package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"shiftgate/internal/devicechange/models"
	id "shiftgate/pkg/domain"
	"shiftgate/pkg/platform/sentinel"
	"shiftgate/pkg/platform/tx"
)

// Name of the partial unique index enforcing one pending request per
// identity. Must match the schema.
const pendingUniqueIndex = "uq_device_change_requests_pending"

// PostgresLedger persists change requests in PostgreSQL.
//
// Pending-uniqueness rides on a partial unique index over (identity_id)
// WHERE status = 'pending', so concurrent creates race at the database
// rather than in application code. Transitions are conditional single-row
// updates on status = 'pending'.
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (l *PostgresLedger) q(ctx context.Context) querier {
	if t := tx.From(ctx); t != nil {
		return t
	}
	return l.db
}

const requestColumns = `id, identity_id, requested_device_id, device_label, device_user_agent, status, requested_at, reviewed_by, reviewed_at, admin_note`

func (l *PostgresLedger) Create(ctx context.Context, request *models.ChangeRequest) error {
	query := `
		INSERT INTO device_change_requests (id, identity_id, requested_device_id, device_label, device_user_agent, status, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := l.q(ctx).ExecContext(ctx, query,
		request.ID.String(),
		request.IdentityID.String(),
		request.RequestedDeviceID,
		request.Meta.Label,
		request.Meta.UserAgent,
		string(request.Status),
		request.RequestedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			if pqErr.Constraint == pendingUniqueIndex {
				return ErrDuplicatePending
			}
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create change request: %w", err)
	}
	return nil
}

func (l *PostgresLedger) FindByID(ctx context.Context, requestID id.ChangeRequestID) (*models.ChangeRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM device_change_requests WHERE id = $1`
	request, err := scanRequest(l.q(ctx).QueryRowContext(ctx, query, requestID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find change request: %w", err)
	}
	return request, nil
}

func (l *PostgresLedger) ListByIdentity(ctx context.Context, identityID id.IdentityID) ([]*models.ChangeRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM device_change_requests
		WHERE identity_id = $1
		ORDER BY requested_at DESC
	`
	return l.list(ctx, query, identityID.String())
}

func (l *PostgresLedger) ListPending(ctx context.Context) ([]*models.ChangeRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM device_change_requests
		WHERE status = 'pending'
		ORDER BY requested_at ASC
	`
	return l.list(ctx, query)
}

func (l *PostgresLedger) list(ctx context.Context, query string, args ...any) ([]*models.ChangeRequest, error) {
	rows, err := l.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list change requests: %w", err)
	}
	defer rows.Close()

	var out []*models.ChangeRequest
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan change request: %w", err)
		}
		out = append(out, request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate change requests: %w", err)
	}
	return out, nil
}

// Transition performs the status check and the write as one conditional
// UPDATE, so exactly one of two concurrent reviewers can win.
func (l *PostgresLedger) Transition(ctx context.Context, requestID id.ChangeRequestID, to models.Status, reviewer id.IdentityID, note string, now time.Time) (*models.ChangeRequest, error) {
	if to != models.StatusApproved && to != models.StatusRejected {
		return nil, sentinel.ErrInvalidState
	}
	query := `
		UPDATE device_change_requests
		SET status = $2, reviewed_by = $3, reviewed_at = $4, admin_note = $5
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + requestColumns
	request, err := scanRequest(l.q(ctx).QueryRowContext(ctx, query,
		requestID.String(), string(to), reviewer.String(), now, note,
	))
	if err == nil {
		return request, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transition change request: %w", err)
	}

	// Nothing matched: distinguish a missing request from a lost review race.
	var exists bool
	if err := l.q(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM device_change_requests WHERE id = $1)`,
		requestID.String(),
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check change request existence: %w", err)
	}
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return nil, ErrAlreadyReviewed
}

func (l *PostgresLedger) Delete(ctx context.Context, requestID id.ChangeRequestID) error {
	result, err := l.q(ctx).ExecContext(ctx, `DELETE FROM device_change_requests WHERE id = $1`, requestID.String())
	if err != nil {
		return fmt.Errorf("delete change request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete change request rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type requestRow interface {
	Scan(dest ...any) error
}

func scanRequest(row requestRow) (*models.ChangeRequest, error) {
	var request models.ChangeRequest
	var rawID, rawIdentity, status string
	var reviewedBy sql.NullString
	var reviewedAt sql.NullTime
	var note sql.NullString
	if err := row.Scan(
		&rawID,
		&rawIdentity,
		&request.RequestedDeviceID,
		&request.Meta.Label,
		&request.Meta.UserAgent,
		&status,
		&request.RequestedAt,
		&reviewedBy,
		&reviewedAt,
		&note,
	); err != nil {
		return nil, err
	}

	requestID, err := id.ParseChangeRequestID(rawID)
	if err != nil {
		return nil, err
	}
	identityID, err := id.ParseIdentityID(rawIdentity)
	if err != nil {
		return nil, err
	}
	request.ID = requestID
	request.IdentityID = identityID
	request.Status = models.Status(status)
	if reviewedBy.Valid {
		reviewer, err := id.ParseIdentityID(reviewedBy.String)
		if err != nil {
			return nil, err
		}
		request.ReviewedBy = &reviewer
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		request.ReviewedAt = &t
	}
	if note.Valid {
		request.AdminNote = note.String
	}
	return &request, nil
}
