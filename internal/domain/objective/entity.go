// Package objective содержит годовые цели центров: сколько участников центр
// должен привести в программу за календарный год.
package objective

import (
	"context"
	"strings"
	"time"

	"github.com/alem-hub/cohort-metrics/internal/domain/shared"
)

const (
	// MinYear / MaxYear - допустимый диапазон календарного года.
	MinYear = 2000
	MaxYear = 2100
)

// AnnualObjective - годовая цель центра. Одна запись на пару (центр, год).
// Цель можно изменить в любой момент; значения всех отчётов пересчитываются.
type AnnualObjective struct {
	CenterID    string
	Year        int
	TargetValue int
	Note        string
	UpdatedAt   time.Time
}

// Validate проверяет цель.
func (o *AnnualObjective) Validate() error {
	if strings.TrimSpace(o.CenterID) == "" {
		return shared.ErrMissingCenterID
	}
	if o.Year < MinYear || o.Year > MaxYear {
		return shared.ErrInvalidYear
	}
	if o.TargetValue < 0 {
		return shared.ErrNegativeTarget
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// Repository - хранилище годовых целей.
type Repository interface {
	// Get возвращает цель центра на год. Отсутствие записи не ошибка:
	// возвращается (0, false, nil).
	Get(ctx context.Context, centerID string, year int) (target int, found bool, err error)

	// Upsert создаёт или заменяет цель. Идемпотентно по (центр, год).
	Upsert(ctx context.Context, objective *AnnualObjective) error

	// ListByYear возвращает все цели года, отсортированные по центру.
	ListByYear(ctx context.Context, year int) ([]*AnnualObjective, error)
}
