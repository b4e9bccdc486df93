package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/cohort-metrics/internal/domain/session"
	"github.com/alem-hub/cohort-metrics/internal/domain/shared"
)

func TestListSessions_FiltersAndOrders(t *testing.T) {
	f := newFixture()
	f.record(t, session.TrackPrepa, session.StageWorkshop2, "lyon", date(2024, 3, 1), session.Counts{Enrolled: 4, Present: 3})
	f.record(t, session.TrackPrepa, session.StageInfoCollective, "lyon", date(2024, 1, 5), session.Counts{Prescriptions: 9, Present: 7})
	f.record(t, session.TrackPrepa, session.StageWorkshop1, "lyon", date(2023, 12, 31), session.Counts{Enrolled: 2})
	f.record(t, session.TrackInsertion, session.StageWorkshop1, "lyon", date(2024, 2, 1), session.Counts{Enrolled: 2})
	f.record(t, session.TrackPrepa, session.StageWorkshop1, "paris", date(2024, 2, 1), session.Counts{Enrolled: 2})

	h := NewListSessionsHandler(f.sessions)
	res, err := h.Handle(context.Background(), ListSessionsQuery{Track: session.TrackPrepa, CenterID: "lyon", Year: 2024})
	require.NoError(t, err)

	require.Equal(t, 2, res.Count)
	assert.Equal(t, "info_collective", res.Sessions[0].Stage)
	assert.Equal(t, "2024-01-05", res.Sessions[0].Date)
	assert.Equal(t, 2, res.Sessions[0].Absent)
	assert.Equal(t, "workshop_2", res.Sessions[1].Stage)
	assert.Equal(t, 1, res.Sessions[1].Absent)
}

func TestListSessions_UnknownCenterBucket(t *testing.T) {
	f := newFixture()
	f.record(t, session.TrackAteliers, session.StageWorkshop3, "", time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), session.Counts{Enrolled: 5, Present: 5})

	res, err := NewListSessionsHandler(f.sessions).Handle(context.Background(),
		ListSessionsQuery{Track: session.TrackAteliers, Year: 2024})
	require.NoError(t, err)
	require.Len(t, res.Sessions, 1)
	assert.Empty(t, res.Sessions[0].CenterID)
}

func TestListSessions_Validation(t *testing.T) {
	h := NewListSessionsHandler(newFakeSessions())

	_, err := h.Handle(context.Background(), ListSessionsQuery{Track: "bootcamp", Year: 2024})
	assert.ErrorIs(t, err, shared.ErrUnknownTrack)
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(context.Background(), ListSessionsQuery{Track: session.TrackPrepa, Year: 1800})
	assert.ErrorIs(t, err, shared.ErrInvalidYear)
}
