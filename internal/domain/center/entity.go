// Package center describes the physical locations where sessions take place.
package center

import (
	"context"
	"strings"
	"time"

	"github.com/alem-hub/cohort-metrics/internal/domain/shared"
)

// Center is a location with a postal code. Sessions reference centers by ID;
// removing a center keeps its sessions under the unknown-center bucket.
type Center struct {
	ID         string
	Name       string
	PostalCode string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UnknownID addresses the unknown-center bucket in URLs, CLI flags and cache
// keys. No registered center may use it.
const UnknownID = "_"

// Validate checks the center in isolation.
func (c *Center) Validate() error {
	id := strings.TrimSpace(c.ID)
	if id == "" {
		return shared.ErrEmptyCenterID
	}
	if id == UnknownID {
		return shared.ErrReservedCenterID
	}
	return nil
}

// Department returns the department code of the center.
func (c *Center) Department() string {
	return Department(c.PostalCode)
}

// Department derives the two-character department code from a postal code.
// Returns "" when the trimmed code is shorter than two characters; such
// centers belong to no department.
func Department(postalCode string) string {
	code := strings.TrimSpace(postalCode)
	if len(code) < 2 {
		return ""
	}
	return code[:2]
}

// Repository is the center directory.
type Repository interface {
	// Upsert creates or replaces a center.
	Upsert(ctx context.Context, c *Center) error

	// Get returns a center or shared.ErrCenterNotFound.
	Get(ctx context.Context, id string) (*Center, error)

	// List returns all centers ordered by ID.
	List(ctx context.Context) ([]*Center, error)

	// Delete removes a center. Its session records keep a NULL center.
	Delete(ctx context.Context, id string) error
}
