package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/cohort-metrics/internal/domain/center"
	"github.com/alem-hub/cohort-metrics/internal/domain/objective"
	"github.com/alem-hub/cohort-metrics/internal/domain/session"
	"github.com/alem-hub/cohort-metrics/internal/domain/shared"
	"github.com/alem-hub/cohort-metrics/pkg/timeutil"
)

func newMockConnection(t *testing.T) (*Connection, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return newConnection(mock, 0), mock
}

func strPtr(s string) *string { return &s }

var sessionColumnNames = []string{
	"id", "track", "stage", "session_date", "center_id",
	"places_opened", "prescriptions", "present", "absent", "adhesions", "enrolled",
	"created_at", "updated_at",
}

const sumPredicate = `AND center_id IS NOT DISTINCT FROM $3 AND session_date >= $4::date AND session_date < $5::date`

// ──────────────────────────────────────────────────────────────────────────────
// Sessions
// ──────────────────────────────────────────────────────────────────────────────

func TestSessionRepository_SaveNormalizesBeforeUpsert(t *testing.T) {
	conn, mock := newMockConnection(t)
	repo := NewSessionRepository(conn)
	day := timeutil.Date(2024, 3, 15)

	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (id) DO UPDATE SET`)).
		WithArgs("s1", "prepa", "info_collective", day, strPtr("lyon"),
			10, 8, 6, 2, 4, 0,
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec := &session.Record{
		ID: "s1", Track: session.TrackPrepa, Stage: session.StageInfoCollective,
		Date: day, CenterID: "lyon",
		Counts: session.Counts{PlacesOpened: 10, Prescriptions: 8, Present: 6, Absent: 99, Adhesions: 4, Enrolled: 5},
	}
	require.NoError(t, repo.Save(context.Background(), rec))
	assert.Equal(t, 2, rec.Absent)
}

func TestSessionRepository_SaveMapsConstraintErrors(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(t *testing.T, err error)
	}{
		{"foreign key", &pgconn.PgError{Code: "23503"}, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, shared.ErrCenterNotFound)
			assert.True(t, shared.IsNotFound(err))
		}},
		{"check constraint", &pgconn.PgError{Code: "23514"}, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, shared.ErrNegativeCount)
			assert.True(t, shared.IsValidation(err))
		}},
		{"other", errors.New("connection reset"), func(t *testing.T, err error) {
			assert.False(t, shared.IsValidation(err))
			assert.False(t, shared.IsNotFound(err))
			assert.Contains(t, err.Error(), "connection reset")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, mock := newMockConnection(t)
			mock.ExpectExec(`INSERT INTO session_records`).WillReturnError(tt.err)

			err := NewSessionRepository(conn).Save(context.Background(), &session.Record{
				ID: "s1", Track: session.TrackAteliers, Stage: session.StageWorkshop1,
				Date: timeutil.Date(2024, 1, 8), CenterID: "ghost",
				Counts: session.Counts{Enrolled: 3, Present: 3},
			})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestSessionRepository_SumFamilyUnknownBucket(t *testing.T) {
	conn, mock := newMockConnection(t)
	from, to := timeutil.YearBounds(2024)

	stages := make([]string, 0, 7)
	for _, s := range session.FamilyWorkshop.Stages() {
		stages = append(stages, string(s))
	}

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE track = $1 AND stage = ANY($2) `+sumPredicate)).
		WithArgs("prepa", stages, (*string)(nil), from, to).
		WillReturnRows(pgxmock.NewRows([]string{"po", "pr", "present", "absent", "ad", "en"}).
			AddRow(0, 0, 17, 3, 0, 20))

	counts, err := NewSessionRepository(conn).SumFamily(context.Background(), session.FamilyFilter{
		Track: session.TrackPrepa, Family: session.FamilyWorkshop, Year: 2024,
	})
	require.NoError(t, err)
	assert.Equal(t, session.Counts{Present: 17, Absent: 3, Enrolled: 20}, counts)
}

func TestSessionRepository_SumStage(t *testing.T) {
	conn, mock := newMockConnection(t)
	from, to := timeutil.YearBounds(2023)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE track = $1 AND stage = $2 `+sumPredicate)).
		WithArgs("ateliers", "workshop_1", strPtr("metz"), from, to).
		WillReturnRows(pgxmock.NewRows([]string{"po", "pr", "present", "absent", "ad", "en"}).
			AddRow(0, 0, 5, 1, 0, 6))

	counts, err := NewSessionRepository(conn).SumStage(context.Background(), session.StageFilter{
		Track: session.TrackAteliers, Stage: session.StageWorkshop1, CenterID: "metz", Year: 2023,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, counts.Present)
	assert.Equal(t, 6, counts.Enrolled)
}

func TestSessionRepository_Get(t *testing.T) {
	t.Run("null center is the unknown bucket", func(t *testing.T) {
		conn, mock := newMockConnection(t)
		day := timeutil.Date(2024, 5, 2)
		mock.ExpectQuery(regexp.QuoteMeta(`FROM session_records WHERE id = $1`)).
			WithArgs("s9").
			WillReturnRows(pgxmock.NewRows(sessionColumnNames).
				AddRow("s9", "insertion", "workshop_2", day, (*string)(nil),
					0, 0, 4, 1, 0, 5, day, day))

		rec, err := NewSessionRepository(conn).Get(context.Background(), "s9")
		require.NoError(t, err)
		assert.Equal(t, session.TrackInsertion, rec.Track)
		assert.Equal(t, session.StageWorkshop2, rec.Stage)
		assert.Empty(t, rec.CenterID)
		assert.Equal(t, 5, rec.Enrolled)
	})

	t.Run("missing", func(t *testing.T) {
		conn, mock := newMockConnection(t)
		mock.ExpectQuery(`FROM session_records`).
			WithArgs("nope").
			WillReturnRows(pgxmock.NewRows(sessionColumnNames))

		_, err := NewSessionRepository(conn).Get(context.Background(), "nope")
		assert.ErrorIs(t, err, shared.ErrRecordNotFound)
	})
}

func TestSessionRepository_ListByCenterYear(t *testing.T) {
	conn, mock := newMockConnection(t)
	from, to := timeutil.YearBounds(2024)
	d1, d2 := timeutil.Date(2024, 1, 5), timeutil.Date(2024, 2, 9)

	mock.ExpectQuery(regexp.QuoteMeta(`AND center_id IS NOT DISTINCT FROM $2`)).
		WithArgs("prepa", strPtr("lyon"), from, to).
		WillReturnRows(pgxmock.NewRows(sessionColumnNames).
			AddRow("a", "prepa", "info_collective", d1, strPtr("lyon"), 10, 9, 7, 2, 3, 0, d1, d1).
			AddRow("b", "prepa", "workshop_1", d2, strPtr("lyon"), 0, 0, 4, 2, 0, 6, d2, d2))

	recs, err := NewSessionRepository(conn).ListByCenterYear(context.Background(), session.TrackPrepa, "lyon", 2024)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].ID)
	assert.Equal(t, "lyon", recs[1].CenterID)
	assert.Equal(t, 6, recs[1].Enrolled)
}

// ──────────────────────────────────────────────────────────────────────────────
// Objectives and centers
// ──────────────────────────────────────────────────────────────────────────────

func TestObjectiveRepository_GetMissingIsZero(t *testing.T) {
	conn, mock := newMockConnection(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM annual_objectives WHERE center_id = $1 AND year = $2`)).
		WithArgs("lyon", 2024).
		WillReturnRows(pgxmock.NewRows([]string{"target_value"}))

	target, found, err := NewObjectiveRepository(conn).Get(context.Background(), "lyon", 2024)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, target)
}

func TestObjectiveRepository_UpsertMapsConstraintErrors(t *testing.T) {
	obj := func() *objective.AnnualObjective {
		return &objective.AnnualObjective{CenterID: "lyon", Year: 2024, TargetValue: 20, UpdatedAt: time.Now()}
	}

	t.Run("check constraint", func(t *testing.T) {
		conn, mock := newMockConnection(t)
		mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (center_id, year)`)).
			WithArgs("lyon", 2024, 20, "", pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: "23514"})

		err := NewObjectiveRepository(conn).Upsert(context.Background(), obj())
		assert.ErrorIs(t, err, shared.ErrNegativeTarget)
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("foreign key", func(t *testing.T) {
		conn, mock := newMockConnection(t)
		mock.ExpectExec(`INSERT INTO annual_objectives`).
			WillReturnError(&pgconn.PgError{Code: "23503"})

		err := NewObjectiveRepository(conn).Upsert(context.Background(), obj())
		assert.ErrorIs(t, err, shared.ErrCenterNotFound)
	})
}

func TestCenterRepository_DeleteMissing(t *testing.T) {
	conn, mock := newMockConnection(t)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM centers WHERE id = $1`)).
		WithArgs("ghost").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := NewCenterRepository(conn).Delete(context.Background(), "ghost")
	assert.ErrorIs(t, err, shared.ErrCenterNotFound)
}

func TestCenterRepository_List(t *testing.T) {
	conn, mock := newMockConnection(t)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM centers ORDER BY id`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "postal_code", "created_at", "updated_at"}).
			AddRow("lyon-1", "Lyon", "69003", now, now).
			AddRow("metz", "Metz", "57000", now, now))

	centers, err := NewCenterRepository(conn).List(context.Background())
	require.NoError(t, err)
	require.Len(t, centers, 2)
	assert.Equal(t, "69", center.Department(centers[0].PostalCode))
	assert.Equal(t, "metz", centers[1].ID)
}

// ──────────────────────────────────────────────────────────────────────────────
// Migrations
// ──────────────────────────────────────────────────────────────────────────────

func TestMigrator_AppliesOnlyPending(t *testing.T) {
	conn, mock := newMockConnection(t)
	applied := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectQuery(`SELECT version, applied_at FROM schema_migrations`).
		WillReturnRows(pgxmock.NewRows([]string{"version", "applied_at"}).
			AddRow(1, applied).
			AddRow(2, applied))
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS annual_objectives`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec(`INSERT INTO schema_migrations`).
		WithArgs(3, "create_annual_objectives").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, NewMigrator(conn).Migrate(context.Background()))
}
