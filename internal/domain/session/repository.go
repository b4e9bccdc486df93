package session

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION REPOSITORY INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет контракт хранилища записей сессий.
// Реализация находится в infrastructure слое (PostgreSQL, SQLite).
type Repository interface {
	// Save нормализует (инвариант absent), валидирует и сохраняет запись.
	// Запись с тем же ID полностью заменяется.
	Save(ctx context.Context, record *Record) error

	// Get возвращает запись по ID или shared.ErrRecordNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// SumFamily суммирует все счётчики семейства одним запросом.
	SumFamily(ctx context.Context, filter FamilyFilter) (Counts, error)

	// SumStage суммирует счётчики одного этапа.
	SumStage(ctx context.Context, filter StageFilter) (Counts, error)

	// ListByCenterYear возвращает сырые записи центра за год, по дате.
	ListByCenterYear(ctx context.Context, track Track, centerID string, year int) ([]*Record, error)
}

// FamilyFilter - фильтр суммирования по семейству.
type FamilyFilter struct {
	Track    Track
	Family   Family
	CenterID string // пусто = неизвестный центр
	Year     int
}

// StageFilter - фильтр суммирования по одному этапу.
type StageFilter struct {
	Track    Track
	Stage    Stage
	CenterID string // пусто = неизвестный центр
	Year     int
}
