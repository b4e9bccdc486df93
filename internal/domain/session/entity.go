package session

import (
	"fmt"
	"time"

	"github.com/alem-hub/cohort-metrics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COUNTS
// ══════════════════════════════════════════════════════════════════════════════

// Counts - счётчики сессии. Значимое подмножество зависит от семейства этапа.
type Counts struct {
	// IC family
	PlacesOpened  int `json:"places_opened" validate:"gte=0"`
	Prescriptions int `json:"prescriptions" validate:"gte=0"`
	Adhesions     int `json:"adhesions" validate:"gte=0"`

	// Workshop family
	Enrolled int `json:"enrolled" validate:"gte=0"`

	// Общие для обоих семейств
	Present int `json:"present" validate:"gte=0"`
	Absent  int `json:"absent" validate:"gte=0"`
}

// Add возвращает поэлементную сумму счётчиков.
func (c Counts) Add(o Counts) Counts {
	return Counts{
		PlacesOpened:  c.PlacesOpened + o.PlacesOpened,
		Prescriptions: c.Prescriptions + o.Prescriptions,
		Adhesions:     c.Adhesions + o.Adhesions,
		Enrolled:      c.Enrolled + o.Enrolled,
		Present:       c.Present + o.Present,
		Absent:        c.Absent + o.Absent,
	}
}

// HasNegative возвращает true, если хотя бы один счётчик отрицательный.
func (c Counts) HasNegative() bool {
	return c.PlacesOpened < 0 || c.Prescriptions < 0 || c.Adhesions < 0 ||
		c.Enrolled < 0 || c.Present < 0 || c.Absent < 0
}

// AbsentFor вычисляет отсутствующих: max(0, denominator - present).
func AbsentFor(denominator, present int) int {
	if present >= denominator {
		return 0
	}
	return denominator - present
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION RECORD
// ══════════════════════════════════════════════════════════════════════════════

// Record - одна реальная сессия программы в одном центре в одну дату.
// Исторические записи не удаляются; изменение - только полная замена счётчиков.
type Record struct {
	// ID - идентификатор записи (UUID).
	ID string

	// Track - программа, к которой относится сессия.
	Track Track

	// Stage - этап программы.
	Stage Stage

	// Date - дата сессии.
	Date time.Time

	// CenterID - центр. Пустая строка означает "неизвестный центр"
	// (центр удалён, записи остаются в истории).
	CenterID string

	// Counts - счётчики посещаемости.
	Counts

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Normalize пересчитывает производные поля: absent всегда вычисляется
// заново из знаменателя семейства и present, значение из входа игнорируется.
// Счётчики чужого семейства обнуляются.
func (r *Record) Normalize() {
	switch r.Stage.Family() {
	case FamilyIC:
		r.Enrolled = 0
		r.Absent = AbsentFor(r.Prescriptions, r.Present)
	default:
		r.PlacesOpened = 0
		r.Prescriptions = 0
		r.Adhesions = 0
		r.Absent = AbsentFor(r.Enrolled, r.Present)
	}
	r.Date = time.Date(r.Date.Year(), r.Date.Month(), r.Date.Day(), 0, 0, 0, 0, time.UTC)
}

// Validate проверяет запись в изоляции (без проверок между записями).
func (r *Record) Validate() error {
	spec, err := r.Track.Spec()
	if err != nil {
		return err
	}
	if !r.Stage.IsValid() {
		return shared.ErrUnknownStage
	}
	if !spec.HasStage(r.Stage) {
		return shared.ErrStageNotInTrack
	}
	if r.Date.IsZero() {
		return shared.ErrMissingDate
	}
	if r.Counts.HasNegative() {
		return shared.ErrNegativeCount
	}
	return nil
}

// Prepare валидирует и нормализует запись перед сохранением.
func (r *Record) Prepare(now time.Time) error {
	if r.ID == "" {
		return shared.NewDomainError("session", "Prepare", shared.ErrInvalidID, "record ID is required")
	}
	if err := r.Validate(); err != nil {
		return err
	}
	r.Normalize()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	return nil
}

// Year возвращает год сессии.
func (r *Record) Year() int {
	return r.Date.Year()
}

// String возвращает строковое представление для логирования.
func (r *Record) String() string {
	return fmt.Sprintf(
		"Record{ID: %s, Track: %s, Stage: %s, Center: %q, Date: %s, Present: %d}",
		r.ID, r.Track, r.Stage, r.CenterID, r.Date.Format("2006-01-02"), r.Present,
	)
}
