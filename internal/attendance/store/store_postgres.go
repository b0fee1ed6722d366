package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"shiftgate/internal/attendance/models"
	id "shiftgate/pkg/domain"
)

// PostgresStore persists punches in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, punch *models.Punch) error {
	query := `
		INSERT INTO punches (id, identity_id, kind, device_id, client_ip, punched_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		punch.ID.String(),
		punch.IdentityID.String(),
		string(punch.Kind),
		punch.DeviceID,
		punch.ClientIP,
		punch.At,
	)
	if err != nil {
		return fmt.Errorf("append punch: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByIdentity(ctx context.Context, identityID id.IdentityID, from, to time.Time, limit int) ([]*models.Punch, error) {
	query := `
		SELECT id, identity_id, kind, device_id, client_ip, punched_at
		FROM punches
		WHERE identity_id = $1 AND punched_at >= $2 AND punched_at < $3
		ORDER BY punched_at DESC
		LIMIT $4
	`
	rows, err := s.db.QueryContext(ctx, query, identityID.String(), from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("list punches: %w", err)
	}
	defer rows.Close()

	var out []*models.Punch
	for rows.Next() {
		var punch models.Punch
		var rawID, rawIdentity, kind string
		if err := rows.Scan(&rawID, &rawIdentity, &kind, &punch.DeviceID, &punch.ClientIP, &punch.At); err != nil {
			return nil, fmt.Errorf("scan punch: %w", err)
		}
		punchID, err := id.ParsePunchID(rawID)
		if err != nil {
			return nil, err
		}
		owner, err := id.ParseIdentityID(rawIdentity)
		if err != nil {
			return nil, err
		}
		punch.ID = punchID
		punch.IdentityID = owner
		punch.Kind = models.Kind(kind)
		out = append(out, &punch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate punches: %w", err)
	}
	return out, nil
}
