package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alem-hub/cohort-metrics/internal/domain/center"
	"github.com/alem-hub/cohort-metrics/internal/domain/shared"
)

// CenterRepository implements center.Repository on SQLite.
type CenterRepository struct {
	db *sql.DB
}

// NewCenterRepository creates a CenterRepository over the store.
func NewCenterRepository(s *Store) *CenterRepository {
	return &CenterRepository{db: s.db}
}

var _ center.Repository = (*CenterRepository)(nil)

// Upsert creates or replaces a center.
func (r *CenterRepository) Upsert(ctx context.Context, c *center.Center) error {
	if err := c.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO centers (id, name, postal_code, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	name = excluded.name,
	postal_code = excluded.postal_code,
	updated_at = excluded.updated_at
`, c.ID, c.Name, c.PostalCode, toMillis(c.CreatedAt), toMillis(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert center %s: %w", c.ID, err)
	}
	return nil
}

// Get returns a center by ID.
func (r *CenterRepository) Get(ctx context.Context, id string) (*center.Center, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, postal_code, created_at, updated_at FROM centers WHERE id = ?`, id)
	c, err := scanCenter(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrCenterNotFound
		}
		return nil, fmt.Errorf("get center %s: %w", id, err)
	}
	return c, nil
}

// List returns all centers ordered by ID.
func (r *CenterRepository) List(ctx context.Context) ([]*center.Center, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, postal_code, created_at, updated_at FROM centers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list centers: %w", err)
	}
	defer rows.Close()

	var out []*center.Center
	for rows.Next() {
		c, err := scanCenter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan center: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate centers: %w", err)
	}
	return out, nil
}

// Delete removes a center; its sessions fall into the unknown-center bucket.
func (r *CenterRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM centers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete center %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete center %s: %w", id, err)
	}
	if n == 0 {
		return shared.ErrCenterNotFound
	}
	return nil
}

func scanCenter(row rowScanner) (*center.Center, error) {
	var (
		c                  center.Center
		createdAt, updated int64
	)
	if err := row.Scan(&c.ID, &c.Name, &c.PostalCode, &createdAt, &updated); err != nil {
		return nil, err
	}
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updated)
	return &c, nil
}
