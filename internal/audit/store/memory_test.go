package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sarathi/internal/audit"
)

func TestInMemoryStoreListsByToken(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.Append(ctx, audit.Event{Timestamp: base, IdentityToken: "DL-0001", Action: audit.ActionApplicationRegistered}))
	require.NoError(t, s.Append(ctx, audit.Event{Timestamp: base.Add(time.Minute), IdentityToken: "DL-0002", Action: audit.ActionApplicationRegistered}))
	require.NoError(t, s.Append(ctx, audit.Event{Timestamp: base.Add(2 * time.Minute), IdentityToken: "DL-0001", Action: audit.ActionSlotsReserved}))

	events, err := s.ListByToken(ctx, "DL-0001")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, audit.ActionApplicationRegistered, events[0].Action)
	require.Equal(t, audit.ActionSlotsReserved, events[1].Action)
}

func TestInMemoryStoreUnknownTokenIsEmpty(t *testing.T) {
	s := NewInMemoryStore()

	events, err := s.ListByToken(context.Background(), "DL-0404")
	require.NoError(t, err)
	require.Empty(t, events)
}
