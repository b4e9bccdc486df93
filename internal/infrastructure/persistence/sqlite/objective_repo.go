package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alem-hub/cohort-metrics/internal/domain/objective"
	"github.com/alem-hub/cohort-metrics/internal/domain/shared"
)

// ObjectiveRepository implements objective.Repository on SQLite.
type ObjectiveRepository struct {
	db *sql.DB
}

// NewObjectiveRepository creates an ObjectiveRepository over the store.
func NewObjectiveRepository(s *Store) *ObjectiveRepository {
	return &ObjectiveRepository{db: s.db}
}

var _ objective.Repository = (*ObjectiveRepository)(nil)

// Get returns the target of a center for a year; (0, false, nil) when none is set.
func (r *ObjectiveRepository) Get(ctx context.Context, centerID string, year int) (int, bool, error) {
	var target int
	err := r.db.QueryRowContext(ctx,
		`SELECT target_value FROM annual_objectives WHERE center_id = ? AND year = ?`,
		centerID, year).Scan(&target)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get objective %s/%d: %w", centerID, year, err)
	}
	return target, true, nil
}

// Upsert creates or replaces the objective of (center, year).
func (r *ObjectiveRepository) Upsert(ctx context.Context, o *objective.AnnualObjective) error {
	if err := o.Validate(); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO annual_objectives (center_id, year, target_value, note, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (center_id, year) DO UPDATE SET
	target_value = excluded.target_value,
	note = excluded.note,
	updated_at = excluded.updated_at
`, o.CenterID, o.Year, o.TargetValue, o.Note, toMillis(o.UpdatedAt))
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("upsert objective: %w", shared.ErrCenterNotFound)
		}
		return fmt.Errorf("upsert objective %s/%d: %w", o.CenterID, o.Year, err)
	}
	return nil
}

// ListByYear returns every objective of a year, ordered by center.
func (r *ObjectiveRepository) ListByYear(ctx context.Context, year int) ([]*objective.AnnualObjective, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT center_id, year, target_value, note, updated_at
FROM annual_objectives
WHERE year = ?
ORDER BY center_id
`, year)
	if err != nil {
		return nil, fmt.Errorf("list objectives %d: %w", year, err)
	}
	defer rows.Close()

	var out []*objective.AnnualObjective
	for rows.Next() {
		var (
			o       objective.AnnualObjective
			updated int64
		)
		if err := rows.Scan(&o.CenterID, &o.Year, &o.TargetValue, &o.Note, &updated); err != nil {
			return nil, fmt.Errorf("scan objective: %w", err)
		}
		o.UpdatedAt = fromMillis(updated)
		out = append(out, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate objectives: %w", err)
	}
	return out, nil
}
