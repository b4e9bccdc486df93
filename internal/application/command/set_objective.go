package command

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/cohort-metrics/internal/domain/objective"
	"github.com/alem-hub/cohort-metrics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SET OBJECTIVE COMMAND
// Sets the annual target of a center. Idempotent on (center, year); the
// target may be changed at any time and every report follows.
// ══════════════════════════════════════════════════════════════════════════════

// SetObjectiveCommand contains the annual target.
type SetObjectiveCommand struct {
	CenterID    string `validate:"required,max=64"`
	Year        int    `validate:"gte=2000,lte=2100"`
	TargetValue int    `validate:"gte=0"`
	Note        string `validate:"max=500"`

	// Actor names who triggered the write. Used only for logging.
	Actor string `validate:"max=128"`
}

// SetObjectiveResult contains the stored objective.
type SetObjectiveResult struct {
	Objective *objective.AnnualObjective

	// PreviousTarget is the target before this write, 0 when none existed.
	PreviousTarget int

	// Created is true when no objective existed for (center, year).
	Created bool
}

// SetObjectiveHandler handles the SetObjectiveCommand.
type SetObjectiveHandler struct {
	objectives objective.Repository
	log        *logger.Logger
}

// NewSetObjectiveHandler creates a new SetObjectiveHandler.
func NewSetObjectiveHandler(objectives objective.Repository, log *logger.Logger) *SetObjectiveHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &SetObjectiveHandler{objectives: objectives, log: log}
}

// Handle executes the set objective command.
func (h *SetObjectiveHandler) Handle(ctx context.Context, cmd SetObjectiveCommand) (*SetObjectiveResult, error) {
	if err := validateCommand("objective", "Set", cmd); err != nil {
		return nil, err
	}

	previous, found, err := h.objectives.Get(ctx, cmd.CenterID, cmd.Year)
	if err != nil {
		return nil, fmt.Errorf("set_objective: load previous: %w", err)
	}

	obj := &objective.AnnualObjective{
		CenterID:    cmd.CenterID,
		Year:        cmd.Year,
		TargetValue: cmd.TargetValue,
		Note:        cmd.Note,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := obj.Validate(); err != nil {
		return nil, err
	}
	if err := h.objectives.Upsert(ctx, obj); err != nil {
		return nil, fmt.Errorf("set_objective: failed to save: %w", err)
	}

	h.log.Info("objective set",
		logger.CenterID(obj.CenterID),
		logger.Year(obj.Year),
		logger.Int("target", obj.TargetValue),
		logger.Int("previous_target", previous),
		logger.Actor(cmd.Actor),
	)

	return &SetObjectiveResult{Objective: obj, PreviousTarget: previous, Created: !found}, nil
}
