package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alem-hub/cohort-metrics/internal/domain/attainment"
	"github.com/alem-hub/cohort-metrics/internal/domain/center"
	"github.com/alem-hub/cohort-metrics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER CENTER COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// RegisterCenterCommand creates or updates a center of the directory.
type RegisterCenterCommand struct {
	ID         string `validate:"required,max=64,ne=_"`
	Name       string `validate:"max=200"`
	PostalCode string `validate:"max=10"`
	Actor      string `validate:"max=128"`
}

// RegisterCenterHandler handles the RegisterCenterCommand.
type RegisterCenterHandler struct {
	centers center.Repository
	log     *logger.Logger
}

// NewRegisterCenterHandler creates a new RegisterCenterHandler.
func NewRegisterCenterHandler(centers center.Repository, log *logger.Logger) *RegisterCenterHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &RegisterCenterHandler{centers: centers, log: log}
}

// Handle executes the register center command.
func (h *RegisterCenterHandler) Handle(ctx context.Context, cmd RegisterCenterCommand) (*center.Center, error) {
	if err := validateCommand("center", "Register", cmd); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	c := &center.Center{
		ID:         strings.TrimSpace(cmd.ID),
		Name:       strings.TrimSpace(cmd.Name),
		PostalCode: strings.TrimSpace(cmd.PostalCode),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := h.centers.Upsert(ctx, c); err != nil {
		return nil, fmt.Errorf("register_center: failed to save: %w", err)
	}

	h.log.Info("center registered",
		logger.CenterID(c.ID),
		logger.Department(c.Department()),
		logger.Actor(cmd.Actor),
	)
	return c, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REMOVE CENTER COMMAND
// Session records of the removed center stay in history under the
// unknown-center bucket.
// ══════════════════════════════════════════════════════════════════════════════

// RemoveCenterCommand removes a center from the directory.
type RemoveCenterCommand struct {
	ID    string `validate:"required,max=64"`
	Actor string `validate:"max=128"`
}

// RemoveCenterHandler handles the RemoveCenterCommand.
type RemoveCenterHandler struct {
	centers center.Repository
	cache   attainment.AggregateCache // Optional
	log     *logger.Logger
}

// NewRemoveCenterHandler creates a new RemoveCenterHandler.
func NewRemoveCenterHandler(centers center.Repository, cache attainment.AggregateCache, log *logger.Logger) *RemoveCenterHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &RemoveCenterHandler{centers: centers, cache: cache, log: log}
}

// Handle executes the remove center command.
func (h *RemoveCenterHandler) Handle(ctx context.Context, cmd RemoveCenterCommand) error {
	if err := validateCommand("center", "Remove", cmd); err != nil {
		return err
	}
	if err := h.centers.Delete(ctx, cmd.ID); err != nil {
		return fmt.Errorf("remove_center: %w", err)
	}

	if h.cache != nil {
		// the removed center's sessions now count under the unknown-center bucket
		for _, id := range []string{cmd.ID, ""} {
			if err := h.cache.InvalidateCenter(ctx, id); err != nil {
				h.log.Warn("aggregate cache invalidation failed", logger.CenterID(id), logger.Err(err))
			}
		}
	}

	h.log.Info("center removed", logger.CenterID(cmd.ID), logger.Actor(cmd.Actor))
	return nil
}
