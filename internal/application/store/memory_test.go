package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sarathi/internal/application/models"
	"sarathi/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
}

func (s *InMemoryStoreSuite) newApp(token string) *models.Application {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	app := models.NewApplication(token, now)
	app.FullName = "Asha Raman"
	app.Category = models.CategoryTwoWheeler
	return app
}

func (s *InMemoryStoreSuite) TestCreateAndGet() {
	ctx := context.Background()
	app := s.newApp("DL-0001")
	s.Require().NoError(s.store.Create(ctx, app))

	got, err := s.store.Get(ctx, "DL-0001")
	s.Require().NoError(err)
	s.Equal(app.ID, got.ID)
	s.Equal(models.StageRegistered, got.Stage)
}

func (s *InMemoryStoreSuite) TestCreateDuplicateConflicts() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newApp("DL-0001")))

	err := s.store.Create(ctx, s.newApp("DL-0001"))
	s.Require().True(errors.Is(err, sentinel.ErrConflict))
}

func (s *InMemoryStoreSuite) TestGetUnknownToken() {
	_, err := s.store.Get(context.Background(), "DL-0404")
	s.Require().True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *InMemoryStoreSuite) TestUpdateDoesNotAliasCaller() {
	ctx := context.Background()
	app := s.newApp("DL-0001")
	s.Require().NoError(s.store.Create(ctx, app))

	app.Stage = models.StageSlotsBooked
	s.Require().NoError(s.store.Update(ctx, app))

	// Mutating the caller's copy after Update must not leak into the store.
	app.Stage = models.StageRoadTestPassed

	got, err := s.store.Get(ctx, "DL-0001")
	s.Require().NoError(err)
	s.Equal(models.StageSlotsBooked, got.Stage)
}

func (s *InMemoryStoreSuite) TestUpdateUnknownToken() {
	err := s.store.Update(context.Background(), s.newApp("DL-0404"))
	s.Require().True(errors.Is(err, sentinel.ErrNotFound))
}
