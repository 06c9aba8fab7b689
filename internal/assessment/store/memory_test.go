package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"sarathi/internal/assessment"
	"sarathi/pkg/platform/sentinel"
)

func TestAttemptHistory(t *testing.T) {
	s := NewInMemoryAttemptStore()
	ctx := context.Background()

	count, err := s.Count(ctx, "DL-0001", assessment.TypeLearnerTest)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = s.Latest(ctx, "DL-0001", assessment.TypeLearnerTest)
	require.True(t, errors.Is(err, sentinel.ErrNotFound))

	for n := 1; n <= 3; n++ {
		require.NoError(t, s.Record(ctx, assessment.Attempt{
			IdentityToken: "DL-0001",
			Type:          assessment.TypeLearnerTest,
			Number:        n,
			Score:         18 + n,
			Total:         30,
			Passed:        18+n >= 21,
			CompletedAt:   time.Date(2026, 3, n, 10, 0, 0, 0, time.UTC),
		}))
	}

	count, err = s.Count(ctx, "DL-0001", assessment.TypeLearnerTest)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	latest, err := s.Latest(ctx, "DL-0001", assessment.TypeLearnerTest)
	require.NoError(t, err)
	assert.Equal(t, 3, latest.Number)
	assert.True(t, latest.Passed)

	// Colour vision history is tracked separately.
	count, err = s.Count(ctx, "DL-0001", assessment.TypeColorVision)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSequenceOrdinalsAreGapFree(t *testing.T) {
	s := NewInMemorySequenceStore()
	ctx := context.Background()

	for want := 1; want <= 5; want++ {
		got, err := s.Next(ctx, "LL", 2026)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	// A new year starts its own sequence.
	got, err := s.Next(ctx, "LL", 2027)
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestSequenceConcurrentAllocation(t *testing.T) {
	s := NewInMemorySequenceStore()
	ctx := context.Background()

	const workers = 50
	var (
		mu       sync.Mutex
		ordinals []int
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			n, err := s.Next(gctx, "LL", 2026)
			if err != nil {
				return err
			}
			mu.Lock()
			ordinals = append(ordinals, n)
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.Len(t, ordinals, workers)
	sort.Ints(ordinals)
	for i, n := range ordinals {
		assert.Equal(t, i+1, n, "duplicate or skipped ordinal")
	}
}
