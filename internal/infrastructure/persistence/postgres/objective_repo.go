package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/cohort-metrics/internal/domain/objective"
	"github.com/alem-hub/cohort-metrics/internal/domain/shared"
)

// ObjectiveRepository implements objective.Repository using PostgreSQL.
type ObjectiveRepository struct {
	conn *Connection
}

// NewObjectiveRepository creates a new ObjectiveRepository.
func NewObjectiveRepository(conn *Connection) *ObjectiveRepository {
	return &ObjectiveRepository{conn: conn}
}

var _ objective.Repository = (*ObjectiveRepository)(nil)

// Get returns the target of a center for a year; (0, false, nil) when none is set.
func (r *ObjectiveRepository) Get(ctx context.Context, centerID string, year int) (int, bool, error) {
	var target int
	err := r.conn.queryRow(ctx,
		`SELECT target_value FROM annual_objectives WHERE center_id = $1 AND year = $2`,
		[]any{centerID, year}, &target)
	if err != nil {
		if IsNoRows(err) {
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

	_, err := r.conn.Exec(ctx, `
		INSERT INTO annual_objectives (center_id, year, target_value, note, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (center_id, year) DO UPDATE SET
			target_value = EXCLUDED.target_value,
			note = EXCLUDED.note,
			updated_at = EXCLUDED.updated_at
	`, o.CenterID, o.Year, o.TargetValue, o.Note, o.UpdatedAt)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("upsert objective: %w", shared.ErrCenterNotFound)
		}
		if IsCheckViolation(err) {
			return fmt.Errorf("upsert objective %s/%d: %w", o.CenterID, o.Year, shared.ErrNegativeTarget)
		}
		return fmt.Errorf("upsert objective %s/%d: %w", o.CenterID, o.Year, err)
	}
	return nil
}

// ListByYear returns every objective of a year, ordered by center.
func (r *ObjectiveRepository) ListByYear(ctx context.Context, year int) ([]*objective.AnnualObjective, error) {
	var out []*objective.AnnualObjective
	err := r.conn.queryRows(ctx, func(rows pgx.Rows) error {
		for rows.Next() {
			var o objective.AnnualObjective
			if err := rows.Scan(&o.CenterID, &o.Year, &o.TargetValue, &o.Note, &o.UpdatedAt); err != nil {
				return err
			}
			out = append(out, &o)
		}
		return nil
	}, `
		SELECT center_id, year, target_value, note, updated_at
		FROM annual_objectives
		WHERE year = $1
		ORDER BY center_id
	`, year)
	if err != nil {
		return nil, fmt.Errorf("list objectives %d: %w", year, err)
	}
	return out, nil
}
