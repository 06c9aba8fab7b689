package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sarathi/internal/assessment"
	"sarathi/pkg/platform/sentinel"
)

// PostgresSequenceStore allocates credential ordinals from a counter table.
// The upsert-returning form takes a row lock on the counter, so concurrent
// issuers are serialized and every ordinal is handed out exactly once.
type PostgresSequenceStore struct {
	db *sql.DB
}

func NewPostgresSequenceStore(db *sql.DB) *PostgresSequenceStore {
	return &PostgresSequenceStore{db: db}
}

// Migrate creates the counter table if it does not exist.
func (s *PostgresSequenceStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS credential_sequences (
			credential_type TEXT NOT NULL,
			year INT NOT NULL,
			last_ordinal INT NOT NULL DEFAULT 0,
			PRIMARY KEY (credential_type, year)
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate credential sequences: %w", err)
	}
	return nil
}

func (s *PostgresSequenceStore) Next(ctx context.Context, credentialType string, year int) (int, error) {
	var ordinal int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO credential_sequences (credential_type, year, last_ordinal)
		VALUES ($1, $2, 1)
		ON CONFLICT (credential_type, year) DO UPDATE SET
			last_ordinal = credential_sequences.last_ordinal + 1
		RETURNING last_ordinal
	`, credentialType, year).Scan(&ordinal)
	if err != nil {
		return 0, fmt.Errorf("allocate credential ordinal: %w", err)
	}
	return ordinal, nil
}

// PostgresAttemptStore persists submission records.
type PostgresAttemptStore struct {
	db *sql.DB
}

func NewPostgresAttemptStore(db *sql.DB) *PostgresAttemptStore {
	return &PostgresAttemptStore{db: db}
}

func (s *PostgresAttemptStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS assessment_attempts (
			id BIGSERIAL PRIMARY KEY,
			identity_token TEXT NOT NULL,
			assessment_type TEXT NOT NULL,
			attempt_number INT NOT NULL,
			score INT NOT NULL,
			total INT NOT NULL,
			passed BOOLEAN NOT NULL,
			violations INT NOT NULL,
			time_taken_ms BIGINT NOT NULL,
			completed_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_attempts_token_type
			ON assessment_attempts (identity_token, assessment_type)
	`)
	if err != nil {
		return fmt.Errorf("migrate assessment attempts: %w", err)
	}
	return nil
}

func (s *PostgresAttemptStore) Record(ctx context.Context, attempt assessment.Attempt) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assessment_attempts
			(identity_token, assessment_type, attempt_number, score, total, passed, violations, time_taken_ms, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, attempt.IdentityToken, string(attempt.Type), attempt.Number, attempt.Score, attempt.Total,
		attempt.Passed, attempt.Violations, attempt.TimeTaken.Milliseconds(), attempt.CompletedAt)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

func (s *PostgresAttemptStore) Count(ctx context.Context, identityToken string, typ assessment.Type) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM assessment_attempts
		WHERE identity_token = $1 AND assessment_type = $2
	`, identityToken, string(typ)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return count, nil
}

func (s *PostgresAttemptStore) Latest(ctx context.Context, identityToken string, typ assessment.Type) (*assessment.Attempt, error) {
	var (
		attempt     assessment.Attempt
		timeTakenMS int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT attempt_number, score, total, passed, violations, time_taken_ms, completed_at
		FROM assessment_attempts
		WHERE identity_token = $1 AND assessment_type = $2
		ORDER BY attempt_number DESC
		LIMIT 1
	`, identityToken, string(typ)).Scan(
		&attempt.Number, &attempt.Score, &attempt.Total, &attempt.Passed,
		&attempt.Violations, &timeTakenMS, &attempt.CompletedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load latest attempt: %w", err)
	}
	attempt.IdentityToken = identityToken
	attempt.Type = typ
	attempt.TimeTaken = time.Duration(timeTakenMS) * time.Millisecond
	return &attempt, nil
}
