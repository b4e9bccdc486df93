package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alem-hub/cohort-metrics/internal/domain/session"
	"github.com/alem-hub/cohort-metrics/internal/domain/shared"
	"github.com/alem-hub/cohort-metrics/pkg/timeutil"
)

// SessionRepository implements session.Repository on SQLite.
type SessionRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSessionRepository creates a SessionRepository over the store.
func NewSessionRepository(s *Store) *SessionRepository {
	return &SessionRepository{db: s.db, now: timeutil.Now}
}

var _ session.Repository = (*SessionRepository)(nil)

const sessionColumns = `id, track, stage, session_date, center_id,
	places_opened, prescriptions, present, absent, adhesions, enrolled,
	created_at, updated_at`

// Save normalizes, validates and upserts the record by ID.
func (r *SessionRepository) Save(ctx context.Context, rec *session.Record) error {
	if err := rec.Prepare(r.now()); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO session_records (`+sessionColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	track = excluded.track,
	stage = excluded.stage,
	session_date = excluded.session_date,
	center_id = excluded.center_id,
	places_opened = excluded.places_opened,
	prescriptions = excluded.prescriptions,
	present = excluded.present,
	absent = excluded.absent,
	adhesions = excluded.adhesions,
	enrolled = excluded.enrolled,
	updated_at = excluded.updated_at
`,
		rec.ID, string(rec.Track), string(rec.Stage), rec.Date.Format(dateLayout), nullableCenter(rec.CenterID),
		rec.PlacesOpened, rec.Prescriptions, rec.Present, rec.Absent, rec.Adhesions, rec.Enrolled,
		toMillis(rec.CreatedAt), toMillis(rec.UpdatedAt),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("save session %s: %w", rec.ID, shared.ErrCenterNotFound)
		}
		return fmt.Errorf("save session %s: %w", rec.ID, err)
	}
	return nil
}

// Get returns a record by ID.
func (r *SessionRepository) Get(ctx context.Context, id string) (*session.Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM session_records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrRecordNotFound
		}
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return rec, nil
}

// SumFamily sums every counter of one stage family in a single statement.
func (r *SessionRepository) SumFamily(ctx context.Context, f session.FamilyFilter) (session.Counts, error) {
	stages := f.Family.Stages()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(stages)), ", ")

	args := []any{string(f.Track)}
	for _, s := range stages {
		args = append(args, string(s))
	}

	counts, err := r.sum(ctx, `stage IN (`+placeholders+`)`, args, f.CenterID, f.Year)
	if err != nil {
		return session.Counts{}, fmt.Errorf("sum %s family: %w", f.Family, err)
	}
	return counts, nil
}

// SumStage sums the counters of a single stage.
func (r *SessionRepository) SumStage(ctx context.Context, f session.StageFilter) (session.Counts, error) {
	counts, err := r.sum(ctx, `stage = ?`, []any{string(f.Track), string(f.Stage)}, f.CenterID, f.Year)
	if err != nil {
		return session.Counts{}, fmt.Errorf("sum stage %s: %w", f.Stage, err)
	}
	return counts, nil
}

func (r *SessionRepository) sum(ctx context.Context, stagePredicate string, args []any, centerID string, year int) (session.Counts, error) {
	from, to := timeutil.YearBounds(year)
	args = append(args, nullableCenter(centerID), from.Format(dateLayout), to.Format(dateLayout))

	var c session.Counts
	err := r.db.QueryRowContext(ctx, `
SELECT
	COALESCE(SUM(places_opened), 0),
	COALESCE(SUM(prescriptions), 0),
	COALESCE(SUM(present), 0),
	COALESCE(SUM(absent), 0),
	COALESCE(SUM(adhesions), 0),
	COALESCE(SUM(enrolled), 0)
FROM session_records
WHERE track = ?
  AND `+stagePredicate+`
  AND center_id IS ?
  AND session_date >= ?
  AND session_date < ?
`, args...).Scan(&c.PlacesOpened, &c.Prescriptions, &c.Present, &c.Absent, &c.Adhesions, &c.Enrolled)
	return c, err
}

// ListByCenterYear returns the raw records of a center for a year, by date.
func (r *SessionRepository) ListByCenterYear(ctx context.Context, track session.Track, centerID string, year int) ([]*session.Record, error) {
	from, to := timeutil.YearBounds(year)

	rows, err := r.db.QueryContext(ctx, `
SELECT `+sessionColumns+`
FROM session_records
WHERE track = ?
  AND center_id IS ?
  AND session_date >= ?
  AND session_date < ?
ORDER BY session_date, id
`, string(track), nullableCenter(centerID), from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*session.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*session.Record, error) {
	var (
		rec        session.Record
		track      string
		stage      string
		date       string
		centerID   sql.NullString
		createdAtM int64
		updatedAtM int64
	)
	err := row.Scan(
		&rec.ID, &track, &stage, &date, &centerID,
		&rec.PlacesOpened, &rec.Prescriptions, &rec.Present, &rec.Absent, &rec.Adhesions, &rec.Enrolled,
		&createdAtM, &updatedAtM,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("parse session date %q: %w", date, err)
	}
	rec.Track = session.Track(track)
	rec.Stage = session.Stage(stage)
	rec.Date = parsed
	rec.CenterID = centerID.String
	rec.CreatedAt = fromMillis(createdAtM)
	rec.UpdatedAt = fromMillis(updatedAtM)
	return &rec, nil
}
