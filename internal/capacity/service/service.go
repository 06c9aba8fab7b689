// Package service implements the capacity ledger: per-(date, category) slot
// counters with atomic reserve/release and holiday administration.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sarathi/internal/audit"
	"sarathi/internal/capacity/models"
	"sarathi/internal/platform/metrics"
	"sarathi/pkg/domerrors"
	"sarathi/pkg/platform/sentinel"
)

// SlotStore is the ledger's persistence port. Reserve must be atomic per
// key: read-check-increment-append as one indivisible step.
type SlotStore interface {
	Get(ctx context.Context, day string, category models.TestCategory) (*models.Slot, error)
	Reserve(ctx context.Context, day string, category models.TestCategory, identityToken string) error
	Release(ctx context.Context, day string, category models.TestCategory, identityToken string) error
	MarkHoliday(ctx context.Context, day string, reason string) error
	Range(ctx context.Context, from, to time.Time) ([]*models.Slot, error)
}

// AuditPublisher records holiday administration.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service owns slot counters and holiday flags.
type Service struct {
	store   SlotStore
	logger  *slog.Logger
	metrics *metrics.Metrics
	auditor AuditPublisher
	now     func() time.Time
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditor(a AuditPublisher) Option {
	return func(s *Service) { s.auditor = a }
}

func New(store SlotStore, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{store: store, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckAvailability reports remaining capacity for a (date, category) key.
func (s *Service) CheckAvailability(ctx context.Context, date time.Time, category models.TestCategory) (*models.Availability, error) {
	slot, err := s.store.Get(ctx, models.DayKey(date), category)
	if err != nil {
		s.logger.Error("availability lookup failed", "day", models.DayKey(date), "category", category, "err", err)
		return nil, domerrors.Wrap(err, domerrors.CodeInternal, "failed to check availability")
	}
	if slot.IsHoliday {
		reason := slot.HolidayReason
		if reason == "" {
			reason = "holiday"
		}
		return &models.Availability{Available: false, Remaining: 0, Reason: reason}, nil
	}
	remaining := slot.Remaining()
	return &models.Availability{Available: remaining > 0, Remaining: remaining}, nil
}

// Reserve books one slot for the identity token. The store guarantees the
// check-and-increment is indivisible; this layer translates outcomes into
// the domain error taxonomy.
func (s *Service) Reserve(ctx context.Context, date time.Time, category models.TestCategory, identityToken string) error {
	day := models.DayKey(date)
	err := s.store.Reserve(ctx, day, category, identityToken)
	switch {
	case err == nil:
		if s.metrics != nil {
			s.metrics.SlotsReserved.WithLabelValues(category.String()).Inc()
		}
		return nil
	case errors.Is(err, sentinel.ErrBlocked):
		s.countRejection("holiday")
		return domerrors.Newf(domerrors.CodeHolidayBlocked, "%s is a holiday", day)
	case errors.Is(err, sentinel.ErrExhausted):
		s.countRejection("capacity")
		return domerrors.Newf(domerrors.CodeCapacityExhausted, "no %s slots remaining on %s", category, day)
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		s.countRejection("duplicate")
		return domerrors.Newf(domerrors.CodeDuplicateReservation, "already reserved for %s on %s", category, day)
	default:
		s.logger.Error("reservation failed", "day", day, "category", category, "err", err)
		return domerrors.Wrap(err, domerrors.CodeInternal, "failed to reserve slot")
	}
}

// Release undoes a reservation, used to unwind a partially completed
// multi-slot booking. Idempotent.
func (s *Service) Release(ctx context.Context, date time.Time, category models.TestCategory, identityToken string) error {
	if err := s.store.Release(ctx, models.DayKey(date), category, identityToken); err != nil {
		s.logger.Error("release failed", "day", models.DayKey(date), "category", category, "err", err)
		return domerrors.Wrap(err, domerrors.CodeInternal, "failed to release slot")
	}
	return nil
}

// MarkHoliday blocks all categories on a day. The actor is the supervisor id
// recorded on the trail.
func (s *Service) MarkHoliday(ctx context.Context, date time.Time, reason, actor string) error {
	if reason == "" {
		return domerrors.New(domerrors.CodeValidation, "holiday reason is required")
	}
	day := models.DayKey(date)
	if err := s.store.MarkHoliday(ctx, day, reason); err != nil {
		return domerrors.Wrap(err, domerrors.CodeInternal, "failed to mark holiday")
	}
	if s.auditor != nil {
		err := s.auditor.Emit(ctx, audit.Event{
			Timestamp: s.now(),
			Action:    audit.ActionHolidayMarked,
			Detail:    fmt.Sprintf("%s: %s", day, reason),
			Actor:     actor,
		})
		if err != nil {
			s.logger.Warn("audit emit failed", "action", audit.ActionHolidayMarked, "err", err)
		}
	}
	return nil
}

// Calendar returns per-day availability over [from, to]. Weekends show as
// holidays in the view; the ledger itself only blocks flagged days.
func (s *Service) Calendar(ctx context.Context, from, to time.Time) ([]models.DayStatus, error) {
	if to.Before(from) {
		return nil, domerrors.New(domerrors.CodeValidation, "calendar range end before start")
	}
	slots, err := s.store.Range(ctx, from, to)
	if err != nil {
		return nil, domerrors.Wrap(err, domerrors.CodeInternal, "failed to load calendar")
	}

	byDay := make(map[string][]*models.Slot)
	for _, slot := range slots {
		byDay[slot.Day] = append(byDay[slot.Day], slot)
	}

	var out []models.DayStatus
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		day := models.DayKey(d)
		status := models.DayStatus{
			Day: day,
			Remaining: map[models.TestCategory]int{
				models.CategoryColorVision: models.CapacityPerDay,
				models.CategoryLearnerTest: models.CapacityPerDay,
				models.CategoryRoadTest:    models.CapacityPerDay,
			},
		}
		switch d.Weekday() {
		case time.Saturday, time.Sunday:
			status.IsHoliday = true
			status.HolidayReason = d.Weekday().String()
		}
		for _, slot := range byDay[day] {
			status.Remaining[slot.Category] = slot.Remaining()
			if slot.IsHoliday {
				status.IsHoliday = true
				status.HolidayReason = slot.HolidayReason
			}
		}
		out = append(out, status)
	}
	return out, nil
}

func (s *Service) countRejection(reason string) {
	if s.metrics != nil {
		s.metrics.ReservationsRejected.WithLabelValues(reason).Inc()
	}
}
