package query

import (
	"context"
	"fmt"

	"github.com/alem-hub/cohort-metrics/internal/domain/objective"
	"github.com/alem-hub/cohort-metrics/internal/domain/session"
	"github.com/alem-hub/cohort-metrics/internal/domain/shared"
	"github.com/alem-hub/cohort-metrics/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST SESSIONS QUERY
// Сырые записи сессий центра за год - проекция для границы экспорта.
// ══════════════════════════════════════════════════════════════════════════════

// ListSessionsQuery содержит параметры запроса.
type ListSessionsQuery struct {
	Track    session.Track
	CenterID string
	Year     int
}

// Validate проверяет корректность параметров запроса.
func (q *ListSessionsQuery) Validate() error {
	if !q.Track.IsValid() {
		return shared.ErrUnknownTrack
	}
	if q.Year < objective.MinYear || q.Year > objective.MaxYear {
		return shared.ErrInvalidYear
	}
	return nil
}

// SessionDTO - запись сессии для выдачи наружу.
type SessionDTO struct {
	ID            string `json:"id"`
	Track         string `json:"track"`
	Stage         string `json:"stage"`
	Date          string `json:"date"`
	CenterID      string `json:"center_id,omitempty"`
	PlacesOpened  int    `json:"places_opened"`
	Prescriptions int    `json:"prescriptions"`
	Present       int    `json:"present"`
	Absent        int    `json:"absent"`
	Adhesions     int    `json:"adhesions"`
	Enrolled      int    `json:"enrolled"`
}

// ListSessionsResult содержит результат запроса.
type ListSessionsResult struct {
	Sessions []SessionDTO `json:"sessions"`
	Count    int          `json:"count"`
}

// ListSessionsHandler обрабатывает запрос списка сессий.
type ListSessionsHandler struct {
	sessions session.Repository
}

// NewListSessionsHandler создаёт обработчик.
func NewListSessionsHandler(sessions session.Repository) *ListSessionsHandler {
	return &ListSessionsHandler{sessions: sessions}
}

// Handle выполняет запрос.
func (h *ListSessionsHandler) Handle(ctx context.Context, q ListSessionsQuery) (*ListSessionsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	records, err := h.sessions.ListByCenterYear(ctx, q.Track, q.CenterID, q.Year)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	out := make([]SessionDTO, 0, len(records))
	for _, r := range records {
		out = append(out, SessionDTO{
			ID:            r.ID,
			Track:         r.Track.String(),
			Stage:         r.Stage.String(),
			Date:          timeutil.FormatDateStr(r.Date),
			CenterID:      r.CenterID,
			PlacesOpened:  r.PlacesOpened,
			Prescriptions: r.Prescriptions,
			Present:       r.Present,
			Absent:        r.Absent,
			Adhesions:     r.Adhesions,
			Enrolled:      r.Enrolled,
		})
	}

	return &ListSessionsResult{Sessions: out, Count: len(out)}, nil
}
