package audit

import (
	"context"
	"database/sql"
	"fmt"

	id "shiftgate/pkg/domain"
)

// PostgresStore persists audit events in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	query := `
		INSERT INTO audit_events (occurred_at, actor_id, subject_id, action, detail)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.Timestamp,
		event.Actor.String(),
		event.Subject.String(),
		event.Action,
		event.Detail,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subject id.IdentityID) ([]Event, error) {
	query := `
		SELECT occurred_at, actor_id, subject_id, action, detail
		FROM audit_events
		WHERE subject_id = $1
		ORDER BY occurred_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, subject.String())
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var event Event
		var rawActor, rawSubject string
		if err := rows.Scan(&event.Timestamp, &rawActor, &rawSubject, &event.Action, &event.Detail); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		actor, err := id.ParseIdentityID(rawActor)
		if err != nil {
			return nil, err
		}
		subj, err := id.ParseIdentityID(rawSubject)
		if err != nil {
			return nil, err
		}
		event.Actor = actor
		event.Subject = subj
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return out, nil
}
