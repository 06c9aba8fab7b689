package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sarathi/internal/capacity/models"
	"sarathi/pkg/platform/sentinel"
)

// PostgresSlotStore persists slot counters in Postgres. Reserve serializes
// per key by taking the slot row lock, so two concurrent callers can never
// both pass the capacity check.
type PostgresSlotStore struct {
	pool *pgxpool.Pool
}

func NewPostgresSlotStore(pool *pgxpool.Pool) *PostgresSlotStore {
	return &PostgresSlotStore{pool: pool}
}

// Migrate creates the ledger tables when absent.
func (s *PostgresSlotStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS capacity_slots (
    day            date NOT NULL,
    category       text NOT NULL,
    capacity       int  NOT NULL,
    reserved       int  NOT NULL DEFAULT 0,
    is_holiday     boolean NOT NULL DEFAULT false,
    holiday_reason text,
    PRIMARY KEY (day, category),
    CHECK (reserved >= 0 AND reserved <= capacity)
);
CREATE TABLE IF NOT EXISTS slot_holders (
    day            date NOT NULL,
    category       text NOT NULL,
    identity_token text NOT NULL,
    PRIMARY KEY (day, category, identity_token)
);`)
	if err != nil {
		return fmt.Errorf("migrate capacity schema: %w", err)
	}
	return nil
}

// ensure inserts the slot row at full capacity if the key was never seen.
// ON CONFLICT makes concurrent first touches converge on a single row.
func (s *PostgresSlotStore) ensure(ctx context.Context, tx pgx.Tx, day string, category models.TestCategory) error {
	_, err := tx.Exec(ctx, `
INSERT INTO capacity_slots (day, category, capacity)
VALUES ($1, $2, $3)
ON CONFLICT (day, category) DO NOTHING`,
		day, string(category), models.CapacityPerDay)
	return err
}

func (s *PostgresSlotStore) Get(ctx context.Context, day string, category models.TestCategory) (*models.Slot, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	slot := &models.Slot{Day: day, Category: category, Capacity: models.CapacityPerDay}
	var reason *string
	err := s.pool.QueryRow(ctx, `
SELECT capacity, reserved, is_holiday, holiday_reason
FROM capacity_slots WHERE day = $1 AND category = $2`,
		day, string(category)).Scan(&slot.Capacity, &slot.Reserved, &slot.IsHoliday, &reason)
	if errors.Is(err, pgx.ErrNoRows) {
		return slot, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load slot: %w", err)
	}
	if reason != nil {
		slot.HolidayReason = *reason
	}

	rows, err := s.pool.Query(ctx, `
SELECT identity_token FROM slot_holders WHERE day = $1 AND category = $2`,
		day, string(category))
	if err != nil {
		return nil, fmt.Errorf("load slot holders: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("scan slot holder: %w", err)
		}
		slot.Holders = append(slot.Holders, token)
	}
	return slot, rows.Err()
}

func (s *PostgresSlotStore) Reserve(ctx context.Context, day string, category models.TestCategory, identityToken string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reserve: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.ensure(ctx, tx, day, category); err != nil {
		return fmt.Errorf("ensure slot: %w", err)
	}

	var reserved, capacity int
	var isHoliday bool
	err = tx.QueryRow(ctx, `
SELECT reserved, capacity, is_holiday FROM capacity_slots
WHERE day = $1 AND category = $2
FOR UPDATE`,
		day, string(category)).Scan(&reserved, &capacity, &isHoliday)
	if err != nil {
		return fmt.Errorf("lock slot: %w", err)
	}

	if isHoliday {
		return sentinel.ErrBlocked
	}

	var exists bool
	err = tx.QueryRow(ctx, `
SELECT EXISTS (
    SELECT 1 FROM slot_holders
    WHERE day = $1 AND category = $2 AND identity_token = $3
)`, day, string(category), identityToken).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check holder: %w", err)
	}
	if exists {
		return sentinel.ErrAlreadyUsed
	}

	if reserved >= capacity {
		return sentinel.ErrExhausted
	}

	if _, err = tx.Exec(ctx, `
UPDATE capacity_slots SET reserved = reserved + 1
WHERE day = $1 AND category = $2`,
		day, string(category)); err != nil {
		return fmt.Errorf("increment slot: %w", err)
	}
	if _, err = tx.Exec(ctx, `
INSERT INTO slot_holders (day, category, identity_token) VALUES ($1, $2, $3)`,
		day, string(category), identityToken); err != nil {
		return fmt.Errorf("append holder: %w", err)
	}

	return tx.Commit(ctx)
}

// Release removes the holder and decrements the counter in one statement
// pair; releasing a token that holds nothing is a no-op.
func (s *PostgresSlotStore) Release(ctx context.Context, day string, category models.TestCategory, identityToken string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin release: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
DELETE FROM slot_holders
WHERE day = $1 AND category = $2 AND identity_token = $3`,
		day, string(category), identityToken)
	if err != nil {
		return fmt.Errorf("delete holder: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	if _, err = tx.Exec(ctx, `
UPDATE capacity_slots SET reserved = reserved - 1
WHERE day = $1 AND category = $2 AND reserved > 0`,
		day, string(category)); err != nil {
		return fmt.Errorf("decrement slot: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresSlotStore) MarkHoliday(ctx context.Context, day string, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	for _, category := range []models.TestCategory{models.CategoryColorVision, models.CategoryLearnerTest, models.CategoryRoadTest} {
		_, err := s.pool.Exec(ctx, `
INSERT INTO capacity_slots (day, category, capacity, is_holiday, holiday_reason)
VALUES ($1, $2, $3, true, $4)
ON CONFLICT (day, category) DO UPDATE SET is_holiday = true, holiday_reason = EXCLUDED.holiday_reason`,
			day, string(category), models.CapacityPerDay, reason)
		if err != nil {
			return fmt.Errorf("mark holiday: %w", err)
		}
	}
	return nil
}

func (s *PostgresSlotStore) Range(ctx context.Context, from, to time.Time) ([]*models.Slot, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
SELECT day, category, capacity, reserved, is_holiday, holiday_reason
FROM capacity_slots
WHERE day BETWEEN $1 AND $2
ORDER BY day, category`,
		models.DayKey(from), models.DayKey(to))
	if err != nil {
		return nil, fmt.Errorf("range slots: %w", err)
	}
	defer rows.Close()

	var out []*models.Slot
	for rows.Next() {
		slot := &models.Slot{}
		var day time.Time
		var category string
		var reason *string
		if err := rows.Scan(&day, &category, &slot.Capacity, &slot.Reserved, &slot.IsHoliday, &reason); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slot.Day = models.DayKey(day)
		slot.Category = models.TestCategory(category)
		if reason != nil {
			slot.HolidayReason = *reason
		}
		out = append(out, slot)
	}
	return out, rows.Err()
}
