package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"shiftgate/internal/directory/models"
	id "shiftgate/pkg/domain"
	"shiftgate/pkg/platform/sentinel"
	"shiftgate/pkg/platform/tx"
)

// PostgresStore persists identities in PostgreSQL.
// This store is pure I/O; role checks and binding policy belong in the service.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed identity store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// querier lets store methods run inside an ambient transaction when one is
// carried in the context, falling back to the pool otherwise.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if t := tx.From(ctx); t != nil {
		return t
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, identity *models.Identity, credentialHash string) error {
	query := `
		INSERT INTO identities (id, email, name, role, credential_hash, allowed_networks, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		identity.ID.String(),
		identity.Email,
		identity.Name,
		string(identity.Role),
		credentialHash,
		pq.Array(identity.AllowedNetworks),
		identity.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create identity: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, identityID id.IdentityID) (*models.Identity, error) {
	query := `
		SELECT id, email, name, role, allowed_networks, device_id, device_label, device_bound_at, created_at
		FROM identities
		WHERE id = $1
	`
	identity, err := scanIdentity(s.q(ctx).QueryRowContext(ctx, query, identityID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}
	return identity, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Identity, error) {
	query := `
		SELECT id, email, name, role, allowed_networks, device_id, device_label, device_bound_at, created_at
		FROM identities
		ORDER BY created_at DESC
	`
	rows, err := s.q(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var out []*models.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		out = append(out, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) SetAllowedNetworks(ctx context.Context, identityID id.IdentityID, networks []string) error {
	query := `UPDATE identities SET allowed_networks = $2 WHERE id = $1`
	result, err := s.q(ctx).ExecContext(ctx, query, identityID.String(), pq.Array(networks))
	if err != nil {
		return fmt.Errorf("set allowed networks: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set allowed networks rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Binding(ctx context.Context, identityID id.IdentityID) (*models.DeviceBinding, error) {
	query := `SELECT device_id, device_label, device_bound_at FROM identities WHERE id = $1`
	var deviceID, label sql.NullString
	var boundAt sql.NullTime
	err := s.q(ctx).QueryRowContext(ctx, query, identityID.String()).Scan(&deviceID, &label, &boundAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get binding: %w", err)
	}
	if !deviceID.Valid {
		return nil, nil
	}
	return &models.DeviceBinding{
		DeviceID: deviceID.String,
		Label:    label.String,
		BoundAt:  boundAt.Time,
	}, nil
}

// Rebind replaces the binding columns in a single-row UPDATE, so concurrent
// readers see either the old binding or the new one, never a mix.
func (s *PostgresStore) Rebind(ctx context.Context, identityID id.IdentityID, binding *models.DeviceBinding) error {
	query := `
		UPDATE identities
		SET device_id = $2, device_label = $3, device_bound_at = $4
		WHERE id = $1
	`
	result, err := s.q(ctx).ExecContext(ctx, query,
		identityID.String(),
		binding.DeviceID,
		binding.Label,
		binding.BoundAt,
	)
	if err != nil {
		return fmt.Errorf("rebind device: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rebind rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type identityRow interface {
	Scan(dest ...any) error
}

func scanIdentity(row identityRow) (*models.Identity, error) {
	var identity models.Identity
	var rawID, role string
	var networks pq.StringArray
	var deviceID, deviceLabel sql.NullString
	var boundAt sql.NullTime
	if err := row.Scan(&rawID, &identity.Email, &identity.Name, &role, &networks, &deviceID, &deviceLabel, &boundAt, &identity.CreatedAt); err != nil {
		return nil, err
	}
	parsed, err := id.ParseIdentityID(rawID)
	if err != nil {
		return nil, err
	}
	identity.ID = parsed
	identity.Role = models.Role(role)
	identity.AllowedNetworks = []string(networks)
	if deviceID.Valid {
		identity.Binding = &models.DeviceBinding{
			DeviceID: deviceID.String,
			Label:    deviceLabel.String,
			BoundAt:  boundAt.Time,
		}
	}
	return &identity, nil
}
