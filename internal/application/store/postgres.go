package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"sarathi/internal/application/models"
	"sarathi/pkg/platform/sentinel"
)

// PostgresStore persists the application aggregate in one row per identity
// token. The unique constraint on identity_token backs the one-application
// invariant.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS applications (
			id UUID PRIMARY KEY,
			identity_token TEXT NOT NULL UNIQUE,
			full_name TEXT NOT NULL,
			date_of_birth TIMESTAMPTZ NOT NULL,
			gender TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL,
			email TEXT NOT NULL,
			address TEXT NOT NULL,
			pin_code TEXT NOT NULL,
			vehicle_category TEXT NOT NULL,
			stage TEXT NOT NULL,
			color_vision_date TIMESTAMPTZ,
			learner_test_date TIMESTAMPTZ,
			payment_completed BOOLEAN NOT NULL DEFAULT FALSE,
			payment_amount INT NOT NULL DEFAULT 0,
			color_vision_score INT NOT NULL DEFAULT 0,
			color_vision_passed BOOLEAN NOT NULL DEFAULT FALSE,
			color_vision_attempts INT NOT NULL DEFAULT 0,
			learner_test_score INT NOT NULL DEFAULT 0,
			learner_test_passed BOOLEAN NOT NULL DEFAULT FALSE,
			learner_test_attempts INT NOT NULL DEFAULT 0,
			learner_pass_date TIMESTAMPTZ,
			credential_number TEXT NOT NULL DEFAULT '',
			credential_issue_date TIMESTAMPTZ,
			credential_expiry_date TIMESTAMPTZ,
			road_test_date TIMESTAMPTZ,
			road_test_slot TEXT NOT NULL DEFAULT '',
			road_test_verified BOOLEAN NOT NULL DEFAULT FALSE,
			road_test_aggregate INT NOT NULL DEFAULT 0,
			road_test_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
			road_test_result TEXT NOT NULL DEFAULT '',
			road_test_attempts INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate applications: %w", err)
	}
	return nil
}

const applicationColumns = `
	id, identity_token, full_name, date_of_birth, gender, phone, email,
	address, pin_code, vehicle_category, stage,
	color_vision_date, learner_test_date,
	payment_completed, payment_amount,
	color_vision_score, color_vision_passed, color_vision_attempts,
	learner_test_score, learner_test_passed, learner_test_attempts, learner_pass_date,
	credential_number, credential_issue_date, credential_expiry_date,
	road_test_date, road_test_slot, road_test_verified,
	road_test_aggregate, road_test_percent, road_test_result, road_test_attempts,
	created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, app *models.Application) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO applications (`+applicationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29,
			$30, $31, $32, $33, $34)
	`, writeArgs(app)...)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, identityToken string) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+applicationColumns+` FROM applications WHERE identity_token = $1
	`, identityToken)
	app, err := scanApplication(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get application: %w", err)
	}
	return app, nil
}

func (s *PostgresStore) ListByStage(ctx context.Context, stage models.Stage) ([]*models.Application, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+applicationColumns+` FROM applications WHERE stage = $1 ORDER BY updated_at
	`, string(stage))
	if err != nil {
		return nil, fmt.Errorf("list applications by stage: %w", err)
	}
	defer rows.Close()

	var out []*models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("list applications by stage: %w", err)
		}
		out = append(out, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list applications by stage: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Update(ctx context.Context, app *models.Application) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE applications SET
			full_name = $2, date_of_birth = $3, gender = $4, phone = $5,
			email = $6, address = $7, pin_code = $8, vehicle_category = $9,
			stage = $10, color_vision_date = $11, learner_test_date = $12,
			payment_completed = $13, payment_amount = $14,
			color_vision_score = $15, color_vision_passed = $16, color_vision_attempts = $17,
			learner_test_score = $18, learner_test_passed = $19, learner_test_attempts = $20,
			learner_pass_date = $21, credential_number = $22,
			credential_issue_date = $23, credential_expiry_date = $24,
			road_test_date = $25, road_test_slot = $26, road_test_verified = $27,
			road_test_aggregate = $28, road_test_percent = $29, road_test_result = $30,
			road_test_attempts = $31, updated_at = $32
		WHERE identity_token = $1
	`,
		app.IdentityToken, app.FullName, app.DateOfBirth, app.Gender, app.Phone,
		app.Email, app.Address, app.PINCode, string(app.Category),
		string(app.Stage), app.ColorVisionDate, app.LearnerTestDate,
		app.PaymentCompleted, app.PaymentAmount,
		app.ColorVisionScore, app.ColorVisionPassed, app.ColorVisionAttempts,
		app.LearnerTestScore, app.LearnerTestPassed, app.LearnerTestAttempts,
		app.LearnerPassDate, app.CredentialNumber,
		app.CredentialIssueDate, app.CredentialExpiryDate,
		app.RoadTestDate, app.RoadTestSlot, app.RoadTestVerified,
		app.RoadTestAggregate, app.RoadTestPercent, string(app.RoadTestResult),
		app.RoadTestAttempts, app.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func writeArgs(app *models.Application) []any {
	return []any{
		app.ID, app.IdentityToken, app.FullName, app.DateOfBirth, app.Gender,
		app.Phone, app.Email, app.Address, app.PINCode, string(app.Category),
		string(app.Stage), app.ColorVisionDate, app.LearnerTestDate,
		app.PaymentCompleted, app.PaymentAmount,
		app.ColorVisionScore, app.ColorVisionPassed, app.ColorVisionAttempts,
		app.LearnerTestScore, app.LearnerTestPassed, app.LearnerTestAttempts,
		app.LearnerPassDate, app.CredentialNumber,
		app.CredentialIssueDate, app.CredentialExpiryDate,
		app.RoadTestDate, app.RoadTestSlot, app.RoadTestVerified,
		app.RoadTestAggregate, app.RoadTestPercent, string(app.RoadTestResult),
		app.RoadTestAttempts, app.CreatedAt, app.UpdatedAt,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*models.Application, error) {
	var (
		app      models.Application
		category string
		stage    string
		result   string
	)
	err := row.Scan(
		&app.ID, &app.IdentityToken, &app.FullName, &app.DateOfBirth, &app.Gender,
		&app.Phone, &app.Email, &app.Address, &app.PINCode, &category, &stage,
		&app.ColorVisionDate, &app.LearnerTestDate,
		&app.PaymentCompleted, &app.PaymentAmount,
		&app.ColorVisionScore, &app.ColorVisionPassed, &app.ColorVisionAttempts,
		&app.LearnerTestScore, &app.LearnerTestPassed, &app.LearnerTestAttempts,
		&app.LearnerPassDate, &app.CredentialNumber,
		&app.CredentialIssueDate, &app.CredentialExpiryDate,
		&app.RoadTestDate, &app.RoadTestSlot, &app.RoadTestVerified,
		&app.RoadTestAggregate, &app.RoadTestPercent, &result, &app.RoadTestAttempts,
		&app.CreatedAt, &app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	app.Category = models.VehicleCategory(category)
	app.Stage = models.Stage(stage)
	app.RoadTestResult = models.RoadTestResult(result)
	return &app, nil
}
