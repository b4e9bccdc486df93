package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/cohort-metrics/internal/domain/attainment"
	"github.com/alem-hub/cohort-metrics/internal/domain/session"
	"github.com/alem-hub/cohort-metrics/internal/domain/shared"
	"github.com/alem-hub/cohort-metrics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD SESSION COMMAND
// Creates or fully replaces one session record. The absent count is always
// recomputed by the store; the value sent by the caller is ignored.
// ══════════════════════════════════════════════════════════════════════════════

// RecordSessionCommand contains the data of one session.
type RecordSessionCommand struct {
	// ID of the record to replace. Empty means a new record.
	ID string `validate:"omitempty,max=64"`

	Track string    `validate:"required"`
	Stage string    `validate:"required"`
	Date  time.Time `validate:"required"`

	// CenterID is optional: an empty value files the session under the
	// unknown-center bucket.
	CenterID string `validate:"max=64"`

	session.Counts

	// Actor names who triggered the write. Used only for logging.
	Actor string `validate:"max=128"`
}

// RecordSessionResult contains the stored record.
type RecordSessionResult struct {
	Record  *session.Record
	Created bool
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordSessionHandler handles the RecordSessionCommand.
type RecordSessionHandler struct {
	sessions session.Repository
	cache    attainment.AggregateCache // Optional, nil when caching is disabled
	log      *logger.Logger
}

// NewRecordSessionHandler creates a new RecordSessionHandler.
func NewRecordSessionHandler(
	sessions session.Repository,
	cache attainment.AggregateCache,
	log *logger.Logger,
) *RecordSessionHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &RecordSessionHandler{
		sessions: sessions,
		cache:    cache,
		log:      log,
	}
}

// Handle executes the record session command.
func (h *RecordSessionHandler) Handle(ctx context.Context, cmd RecordSessionCommand) (*RecordSessionResult, error) {
	if err := validateCommand("session", "Record", cmd); err != nil {
		return nil, err
	}

	track, err := session.ParseTrack(cmd.Track)
	if err != nil {
		return nil, err
	}
	stage, err := session.ParseStage(cmd.Stage)
	if err != nil {
		return nil, err
	}

	record := &session.Record{
		ID:       cmd.ID,
		Track:    track,
		Stage:    stage,
		Date:     cmd.Date,
		CenterID: cmd.CenterID,
		Counts:   cmd.Counts,
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}

	// Remember where the record used to live so its old aggregate is dropped too.
	var previous *session.Record
	if record.ID == "" {
		record.ID = uuid.NewString()
	} else {
		previous, err = h.sessions.Get(ctx, record.ID)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("record_session: load previous: %w", err)
		}
		if previous != nil {
			record.CreatedAt = previous.CreatedAt
		}
	}

	if err := h.sessions.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("record_session: failed to save: %w", err)
	}

	h.invalidate(ctx, record, previous)

	h.log.Info("session recorded",
		logger.RecordID(record.ID),
		logger.Track(record.Track.String()),
		logger.CenterID(record.CenterID),
		logger.Year(record.Year()),
		logger.String("stage", record.Stage.String()),
		logger.Actor(cmd.Actor),
	)

	return &RecordSessionResult{Record: record, Created: previous == nil}, nil
}

func (h *RecordSessionHandler) invalidate(ctx context.Context, record, previous *session.Record) {
	if h.cache == nil {
		return
	}
	keys := []attainment.CacheKey{attainment.KeyFor(record)}
	if previous != nil && attainment.KeyFor(previous) != keys[0] {
		keys = append(keys, attainment.KeyFor(previous))
	}
	if err := h.cache.Invalidate(ctx, keys...); err != nil {
		h.log.Warn("aggregate cache invalidation failed", logger.RecordID(record.ID), logger.Err(err))
	}
}
