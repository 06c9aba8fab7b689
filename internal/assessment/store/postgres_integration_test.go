//go:build integration

package store

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"sarathi/internal/assessment"
	"sarathi/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg        *containers.PostgresContainer
	sequences *PostgresSequenceStore
	attempts  *PostgresAttemptStore
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.sequences = NewPostgresSequenceStore(s.pg.DB)
	s.attempts = NewPostgresAttemptStore(s.pg.DB)
	ctx := context.Background()
	s.Require().NoError(s.sequences.Migrate(ctx))
	s.Require().NoError(s.attempts.Migrate(ctx))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(context.Background(),
		"credential_sequences", "assessment_attempts"))
}

func (s *PostgresStoreSuite) TestSequenceGapFree() {
	ctx := context.Background()
	for want := 1; want <= 4; want++ {
		got, err := s.sequences.Next(ctx, "LL", 2026)
		s.Require().NoError(err)
		s.Equal(want, got)
	}

	got, err := s.sequences.Next(ctx, "LL", 2027)
	s.Require().NoError(err)
	s.Equal(1, got)
}

func (s *PostgresStoreSuite) TestSequenceConcurrentAllocation() {
	ctx := context.Background()

	const workers = 30
	var (
		mu       sync.Mutex
		ordinals []int
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			n, err := s.sequences.Next(gctx, "LL", 2026)
			if err != nil {
				return err
			}
			mu.Lock()
			ordinals = append(ordinals, n)
			mu.Unlock()
			return nil
		})
	}
	s.Require().NoError(g.Wait())

	s.Require().Len(ordinals, workers)
	sort.Ints(ordinals)
	for i, n := range ordinals {
		s.Require().Equal(i+1, n, "duplicate or skipped ordinal")
	}
}

func (s *PostgresStoreSuite) TestAttemptRoundTrip() {
	ctx := context.Background()

	_, err := s.attempts.Latest(ctx, "DL-0001", assessment.TypeLearnerTest)
	s.Require().Error(err)

	attempt := assessment.Attempt{
		IdentityToken: "DL-0001",
		Type:          assessment.TypeLearnerTest,
		Number:        1,
		Score:         23,
		Total:         30,
		Passed:        true,
		Violations:    1,
		TimeTaken:     14 * time.Minute,
		CompletedAt:   time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC),
	}
	s.Require().NoError(s.attempts.Record(ctx, attempt))

	count, err := s.attempts.Count(ctx, "DL-0001", assessment.TypeLearnerTest)
	s.Require().NoError(err)
	s.Equal(1, count)

	latest, err := s.attempts.Latest(ctx, "DL-0001", assessment.TypeLearnerTest)
	s.Require().NoError(err)
	s.Equal(23, latest.Score)
	s.Equal(14*time.Minute, latest.TimeTaken)
	s.True(latest.CompletedAt.Equal(attempt.CompletedAt))
}
