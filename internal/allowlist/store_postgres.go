package allowlist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// PostgresCompanyStore persists the company allowlist as a single row.
type PostgresCompanyStore struct {
	db *sql.DB
}

func NewPostgresCompanyStore(db *sql.DB) *PostgresCompanyStore {
	return &PostgresCompanyStore{db: db}
}

func (s *PostgresCompanyStore) Networks(ctx context.Context) ([]string, error) {
	var networks pq.StringArray
	err := s.db.QueryRowContext(ctx, `SELECT networks FROM company_allowlist WHERE id = 1`).Scan(&networks)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get company allowlist: %w", err)
	}
	return []string(networks), nil
}

// Replace upserts the single allowlist row so the swap is atomic for readers.
func (s *PostgresCompanyStore) Replace(ctx context.Context, networks []string) error {
	query := `
		INSERT INTO company_allowlist (id, networks, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET
			networks = EXCLUDED.networks,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, pq.Array(networks)); err != nil {
		return fmt.Errorf("replace company allowlist: %w", err)
	}
	return nil
}
