package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/cohort-metrics/internal/domain/session"
	"github.com/alem-hub/cohort-metrics/internal/domain/shared"
	"github.com/alem-hub/cohort-metrics/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// SessionRepository implements session.Repository using PostgreSQL.
type SessionRepository struct {
	conn *Connection
	now  func() time.Time
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(conn *Connection) *SessionRepository {
	return &SessionRepository{conn: conn, now: timeutil.Now}
}

var _ session.Repository = (*SessionRepository)(nil)

const sessionColumns = `
	id, track, stage, session_date, center_id,
	places_opened, prescriptions, present, absent, adhesions, enrolled,
	created_at, updated_at`

// Save normalizes, validates and upserts the record by ID.
func (r *SessionRepository) Save(ctx context.Context, rec *session.Record) error {
	if err := rec.Prepare(r.now()); err != nil {
		return err
	}

	_, err := r.conn.Exec(ctx, `
		INSERT INTO session_records (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			track = EXCLUDED.track,
			stage = EXCLUDED.stage,
			session_date = EXCLUDED.session_date,
			center_id = EXCLUDED.center_id,
			places_opened = EXCLUDED.places_opened,
			prescriptions = EXCLUDED.prescriptions,
			present = EXCLUDED.present,
			absent = EXCLUDED.absent,
			adhesions = EXCLUDED.adhesions,
			enrolled = EXCLUDED.enrolled,
			updated_at = EXCLUDED.updated_at
	`,
		rec.ID, string(rec.Track), string(rec.Stage), rec.Date, nullableCenter(rec.CenterID),
		rec.PlacesOpened, rec.Prescriptions, rec.Present, rec.Absent, rec.Adhesions, rec.Enrolled,
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("save session %s: %w", rec.ID, shared.ErrCenterNotFound)
		}
		if IsCheckViolation(err) {
			return fmt.Errorf("save session %s: %w", rec.ID, shared.ErrNegativeCount)
		}
		return fmt.Errorf("save session %s: %w", rec.ID, err)
	}
	return nil
}

// Get returns a record by ID.
func (r *SessionRepository) Get(ctx context.Context, id string) (*session.Record, error) {
	var rec *session.Record
	err := r.conn.queryRows(ctx, func(rows pgx.Rows) error {
		if !rows.Next() {
			return pgx.ErrNoRows
		}
		var err error
		rec, err = scanRecord(rows)
		return err
	}, `SELECT `+sessionColumns+` FROM session_records WHERE id = $1`, id)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrRecordNotFound
		}
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return rec, nil
}

// SumFamily sums every counter of one stage family in a single statement.
func (r *SessionRepository) SumFamily(ctx context.Context, f session.FamilyFilter) (session.Counts, error) {
	stages := make([]string, 0, 7)
	for _, s := range f.Family.Stages() {
		stages = append(stages, string(s))
	}
	from, to := timeutil.YearBounds(f.Year)

	counts, err := r.sum(ctx, `stage = ANY($2)`, string(f.Track), stages, nullableCenter(f.CenterID), from, to)
	if err != nil {
		return session.Counts{}, fmt.Errorf("sum %s family: %w", f.Family, err)
	}
	return counts, nil
}

// SumStage sums the counters of a single stage.
func (r *SessionRepository) SumStage(ctx context.Context, f session.StageFilter) (session.Counts, error) {
	from, to := timeutil.YearBounds(f.Year)

	counts, err := r.sum(ctx, `stage = $2`, string(f.Track), string(f.Stage), nullableCenter(f.CenterID), from, to)
	if err != nil {
		return session.Counts{}, fmt.Errorf("sum stage %s: %w", f.Stage, err)
	}
	return counts, nil
}

func (r *SessionRepository) sum(ctx context.Context, stagePredicate string, args ...any) (session.Counts, error) {
	query := `
		SELECT
			COALESCE(SUM(places_opened), 0),
			COALESCE(SUM(prescriptions), 0),
			COALESCE(SUM(present), 0),
			COALESCE(SUM(absent), 0),
			COALESCE(SUM(adhesions), 0),
			COALESCE(SUM(enrolled), 0)
		FROM session_records
		WHERE track = $1
		  AND ` + stagePredicate + `
		  AND center_id IS NOT DISTINCT FROM $3
		  AND session_date >= $4::date
		  AND session_date < $5::date`

	var c session.Counts
	err := r.conn.queryRow(ctx, query, args,
		&c.PlacesOpened, &c.Prescriptions, &c.Present, &c.Absent, &c.Adhesions, &c.Enrolled)
	return c, err
}

// ListByCenterYear returns the raw records of a center for a year, by date.
func (r *SessionRepository) ListByCenterYear(ctx context.Context, track session.Track, centerID string, year int) ([]*session.Record, error) {
	from, to := timeutil.YearBounds(year)

	var out []*session.Record
	err := r.conn.queryRows(ctx, func(rows pgx.Rows) error {
		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	}, `
		SELECT `+sessionColumns+`
		FROM session_records
		WHERE track = $1
		  AND center_id IS NOT DISTINCT FROM $2
		  AND session_date >= $3::date
		  AND session_date < $4::date
		ORDER BY session_date, id
	`, string(track), nullableCenter(centerID), from, to)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (*session.Record, error) {
	var (
		rec      session.Record
		track    string
		stage    string
		centerID *string
	)
	err := row.Scan(
		&rec.ID, &track, &stage, &rec.Date, &centerID,
		&rec.PlacesOpened, &rec.Prescriptions, &rec.Present, &rec.Absent, &rec.Adhesions, &rec.Enrolled,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Track = session.Track(track)
	rec.Stage = session.Stage(stage)
	if centerID != nil {
		rec.CenterID = *centerID
	}
	return &rec, nil
}
