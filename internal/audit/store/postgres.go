package store

import (
	"context"
	"database/sql"
	"fmt"

	"sarathi/internal/audit"
)

// PostgresStore appends the trail to a single table, one row per event.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_events (
			id BIGSERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			identity_token TEXT NOT NULL DEFAULT '',
			application_id TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL,
			stage TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT '',
			actor TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS audit_events_identity_token_idx
			ON audit_events (identity_token, id)
	`)
	if err != nil {
		return fmt.Errorf("migrate audit_events: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, event audit.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (ts, identity_token, application_id, action, stage, detail, actor)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.Timestamp, event.IdentityToken, event.AppNumber,
		string(event.Action), event.Stage, event.Detail, event.Actor,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByToken(ctx context.Context, identityToken string) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, identity_token, application_id, action, stage, detail, actor
		FROM audit_events
		WHERE identity_token = $1
		ORDER BY id`,
		identityToken,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	out := make([]audit.Event, 0)
	for rows.Next() {
		var event audit.Event
		var action string
		if err := rows.Scan(&event.Timestamp, &event.IdentityToken, &event.AppNumber,
			&action, &event.Stage, &event.Detail, &event.Actor); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Action = audit.Action(action)
		out = append(out, event)
	}
	return out, rows.Err()
}
