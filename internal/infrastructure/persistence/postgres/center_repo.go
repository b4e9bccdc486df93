package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/cohort-metrics/internal/domain/center"
	"github.com/alem-hub/cohort-metrics/internal/domain/shared"
)

// CenterRepository implements center.Repository using PostgreSQL.
type CenterRepository struct {
	conn *Connection
}

// NewCenterRepository creates a new CenterRepository.
func NewCenterRepository(conn *Connection) *CenterRepository {
	return &CenterRepository{conn: conn}
}

var _ center.Repository = (*CenterRepository)(nil)

// Upsert creates or replaces a center.
func (r *CenterRepository) Upsert(ctx context.Context, c *center.Center) error {
	if err := c.Validate(); err != nil {
		return err
	}
	_, err := r.conn.Exec(ctx, `
		INSERT INTO centers (id, name, postal_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			postal_code = EXCLUDED.postal_code,
			updated_at = EXCLUDED.updated_at
	`, c.ID, c.Name, c.PostalCode, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert center %s: %w", c.ID, err)
	}
	return nil
}

// Get returns a center by ID.
func (r *CenterRepository) Get(ctx context.Context, id string) (*center.Center, error) {
	var c center.Center
	err := r.conn.queryRow(ctx,
		`SELECT id, name, postal_code, created_at, updated_at FROM centers WHERE id = $1`,
		[]any{id}, &c.ID, &c.Name, &c.PostalCode, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrCenterNotFound
		}
		return nil, fmt.Errorf("get center %s: %w", id, err)
	}
	return &c, nil
}

// List returns all centers ordered by ID.
func (r *CenterRepository) List(ctx context.Context) ([]*center.Center, error) {
	var out []*center.Center
	err := r.conn.queryRows(ctx, func(rows pgx.Rows) error {
		for rows.Next() {
			var c center.Center
			if err := rows.Scan(&c.ID, &c.Name, &c.PostalCode, &c.CreatedAt, &c.UpdatedAt); err != nil {
				return err
			}
			out = append(out, &c)
		}
		return nil
	}, `SELECT id, name, postal_code, created_at, updated_at FROM centers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list centers: %w", err)
	}
	return out, nil
}

// Delete removes a center. ON DELETE SET NULL moves its sessions to the
// unknown-center bucket; its objectives are removed with it.
func (r *CenterRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.conn.Exec(ctx, `DELETE FROM centers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete center %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrCenterNotFound
	}
	return nil
}
