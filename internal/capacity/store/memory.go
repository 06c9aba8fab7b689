package store

import (
	"context"
	"sync"
	"time"

	"sarathi/internal/capacity/models"
	"sarathi/pkg/platform/sentinel"
)

type slotKey struct {
	day      string
	category models.TestCategory
}

// InMemorySlotStore keeps slot counters in a mutex-guarded map. Reserve runs
// its read-check-increment-append sequence entirely under the lock, so
// concurrent callers on the same key serialize and first touch of an unseen
// key cannot race a second creator.
type InMemorySlotStore struct {
	mu    sync.Mutex
	slots map[slotKey]*models.Slot
}

func NewInMemorySlotStore() *InMemorySlotStore {
	return &InMemorySlotStore{slots: make(map[slotKey]*models.Slot)}
}

// getOrCreate returns the slot record for a key, creating it at full
// capacity. Must be called while holding s.mu.
func (s *InMemorySlotStore) getOrCreate(day string, category models.TestCategory) *models.Slot {
	key := slotKey{day: day, category: category}
	if slot := s.slots[key]; slot != nil {
		return slot
	}
	slot := &models.Slot{
		Day:      day,
		Category: category,
		Capacity: models.CapacityPerDay,
	}
	s.slots[key] = slot
	return slot
}

// Get returns a copy of the slot record, or a fresh full-capacity view for
// an unseen key.
func (s *InMemorySlotStore) Get(_ context.Context, day string, category models.TestCategory) (*models.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := slotKey{day: day, category: category}
	slot := s.slots[key]
	if slot == nil {
		return &models.Slot{Day: day, Category: category, Capacity: models.CapacityPerDay}, nil
	}
	copied := *slot
	copied.Holders = append([]string{}, slot.Holders...)
	return &copied, nil
}

// Reserve appends the identity token to the slot as one indivisible step.
// Returns sentinel.ErrBlocked on holidays, sentinel.ErrAlreadyUsed when the
// token already holds the key, sentinel.ErrExhausted at capacity.
func (s *InMemorySlotStore) Reserve(_ context.Context, day string, category models.TestCategory, identityToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot := s.getOrCreate(day, category)
	if slot.IsHoliday {
		return sentinel.ErrBlocked
	}
	if slot.Holds(identityToken) {
		return sentinel.ErrAlreadyUsed
	}
	if slot.Reserved >= slot.Capacity {
		return sentinel.ErrExhausted
	}

	slot.Reserved++
	slot.Holders = append(slot.Holders, identityToken)
	return nil
}

// Release undoes a reservation. Idempotent: releasing a token that holds
// nothing is a no-op.
func (s *InMemorySlotStore) Release(_ context.Context, day string, category models.TestCategory, identityToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot := s.slots[slotKey{day: day, category: category}]
	if slot == nil {
		return nil
	}
	for i, h := range slot.Holders {
		if h == identityToken {
			slot.Holders = append(slot.Holders[:i], slot.Holders[i+1:]...)
			slot.Reserved--
			return nil
		}
	}
	return nil
}

// MarkHoliday flags a day across every category. Existing reservations stay
// recorded; new ones are blocked.
func (s *InMemorySlotStore) MarkHoliday(_ context.Context, day string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, category := range []models.TestCategory{models.CategoryColorVision, models.CategoryLearnerTest, models.CategoryRoadTest} {
		slot := s.getOrCreate(day, category)
		slot.IsHoliday = true
		slot.HolidayReason = reason
	}
	return nil
}

// Range returns slot records for every seen key in [from, to]. Days never
// touched are omitted; callers treat them as full capacity.
func (s *InMemorySlotStore) Range(_ context.Context, from, to time.Time) ([]*models.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fromKey, toKey := models.DayKey(from), models.DayKey(to)
	var out []*models.Slot
	for _, slot := range s.slots {
		if slot.Day < fromKey || slot.Day > toKey {
			continue
		}
		copied := *slot
		copied.Holders = append([]string{}, slot.Holders...)
		out = append(out, &copied)
	}
	return out, nil
}
