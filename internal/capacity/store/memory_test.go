package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"sarathi/internal/capacity/models"
	"sarathi/pkg/platform/sentinel"
)

type SlotStoreSuite struct {
	suite.Suite
	store *InMemorySlotStore
	ctx   context.Context
}

func (s *SlotStoreSuite) SetupTest() {
	s.store = NewInMemorySlotStore()
	s.ctx = context.Background()
}

func TestSlotStoreSuite(t *testing.T) {
	suite.Run(t, new(SlotStoreSuite))
}

const day = "2026-03-02"

func (s *SlotStoreSuite) TestReserve() {
	s.Run("unseen key starts at full capacity", func() {
		slot, err := s.store.Get(s.ctx, day, models.CategoryColorVision)
		s.Require().NoError(err)
		s.Equal(models.CapacityPerDay, slot.Remaining())
	})

	s.Run("reserve decrements remaining and records holder", func() {
		s.Require().NoError(s.store.Reserve(s.ctx, day, models.CategoryColorVision, "DL-1001"))

		slot, err := s.store.Get(s.ctx, day, models.CategoryColorVision)
		s.Require().NoError(err)
		s.Equal(models.CapacityPerDay-1, slot.Remaining())
		s.True(slot.Holds("DL-1001"))
	})

	s.Run("same token cannot reserve the same key twice", func() {
		err := s.store.Reserve(s.ctx, day, models.CategoryColorVision, "DL-1001")
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("same token may hold a different category on the same day", func() {
		s.Require().NoError(s.store.Reserve(s.ctx, day, models.CategoryLearnerTest, "DL-1001"))
	})

	s.Run("reserve past capacity fails", func() {
		for i := 0; i < models.CapacityPerDay-1; i++ {
			token := "DL-2" + string(rune('0'+i))
			s.Require().NoError(s.store.Reserve(s.ctx, day, models.CategoryColorVision, token))
		}
		err := s.store.Reserve(s.ctx, day, models.CategoryColorVision, "DL-3000")
		s.Require().ErrorIs(err, sentinel.ErrExhausted)
	})
}

func (s *SlotStoreSuite) TestHoliday() {
	s.Require().NoError(s.store.MarkHoliday(s.ctx, day, "Republic Day"))

	err := s.store.Reserve(s.ctx, day, models.CategoryLearnerTest, "DL-1001")
	s.Require().ErrorIs(err, sentinel.ErrBlocked)

	slot, err := s.store.Get(s.ctx, day, models.CategoryLearnerTest)
	s.Require().NoError(err)
	s.True(slot.IsHoliday)
	s.Equal(0, slot.Remaining())
}

func (s *SlotStoreSuite) TestRelease() {
	s.Require().NoError(s.store.Reserve(s.ctx, day, models.CategoryRoadTest, "DL-1001"))

	s.Run("release frees the slot", func() {
		s.Require().NoError(s.store.Release(s.ctx, day, models.CategoryRoadTest, "DL-1001"))
		slot, err := s.store.Get(s.ctx, day, models.CategoryRoadTest)
		s.Require().NoError(err)
		s.Equal(models.CapacityPerDay, slot.Remaining())
		s.False(slot.Holds("DL-1001"))
	})

	s.Run("release is idempotent", func() {
		s.Require().NoError(s.store.Release(s.ctx, day, models.CategoryRoadTest, "DL-1001"))
		s.Require().NoError(s.store.Release(s.ctx, day, models.CategoryRoadTest, "never-held"))
		slot, err := s.store.Get(s.ctx, day, models.CategoryRoadTest)
		s.Require().NoError(err)
		s.Equal(models.CapacityPerDay, slot.Remaining())
	})
}

func (s *SlotStoreSuite) TestRangeFiltersByDay() {
	s.Require().NoError(s.store.Reserve(s.ctx, "2026-03-02", models.CategoryColorVision, "DL-1001"))
	s.Require().NoError(s.store.Reserve(s.ctx, "2026-04-02", models.CategoryColorVision, "DL-1001"))

	from, _ := time.Parse("2006-01-02", "2026-03-01")
	to, _ := time.Parse("2006-01-02", "2026-03-31")
	slots, err := s.store.Range(s.ctx, from, to)
	s.Require().NoError(err)
	s.Require().Len(slots, 1)
	s.Equal("2026-03-02", slots[0].Day)
}

// TestConcurrentReservations launches capacity+k concurrent reserves for one
// key and expects exactly capacity successes, regardless of arrival order.
func TestConcurrentReservations(t *testing.T) {
	store := NewInMemorySlotStore()
	ctx := context.Background()

	const extra = 20
	total := models.CapacityPerDay + extra

	results := make([]error, total)
	var g errgroup.Group
	for i := 0; i < total; i++ {
		g.Go(func() error {
			token := "DL-" + time.Now().Format("150405") + "-" + string(rune('A'+i%26)) + string(rune('A'+i/26))
			results[i] = store.Reserve(ctx, day, models.CategoryColorVision, token)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("errgroup wait: %v", err)
	}

	var ok, exhausted int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case err == sentinel.ErrExhausted:
			exhausted++
		default:
			t.Fatalf("unexpected reserve error: %v", err)
		}
	}
	if ok != models.CapacityPerDay {
		t.Fatalf("expected %d successful reserves, got %d", models.CapacityPerDay, ok)
	}
	if exhausted != extra {
		t.Fatalf("expected %d exhausted reserves, got %d", extra, exhausted)
	}

	slot, err := store.Get(ctx, day, models.CategoryColorVision)
	if err != nil {
		t.Fatalf("get slot: %v", err)
	}
	if slot.Reserved > slot.Capacity {
		t.Fatalf("reserved %d exceeds capacity %d", slot.Reserved, slot.Capacity)
	}
	if len(slot.Holders) != slot.Reserved {
		t.Fatalf("holder list length %d disagrees with reserved %d", len(slot.Holders), slot.Reserved)
	}
}
