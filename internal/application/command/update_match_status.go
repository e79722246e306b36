package command

import (
	"context"
	"fmt"
	"time"

	"github.com/skill-ladder/ladder-hub/internal/domain/matching"
	"github.com/skill-ladder/ladder-hub/internal/domain/shared"
	"github.com/skill-ladder/ladder-hub/pkg/logger"
	"github.com/skill-ladder/ladder-hub/pkg/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE MATCH STATUS COMMAND
// Moves a match along pending -> {accepted, cancelled} and
// accepted -> {completed, cancelled}. With enforcement disabled any
// accepted/completed/cancelled target is written as requested.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateMatchStatusCommand requests a status change.
type UpdateMatchStatusCommand struct {
	RequesterID string
	MatchID     string
	Status      string
}

// UpdateMatchStatusHandler handles UpdateMatchStatusCommand.
type UpdateMatchStatusHandler struct {
	matches            matching.Repository
	enforceTransitions bool
	metrics            metrics.Recorder
	log                *logger.Logger
}

// NewUpdateMatchStatusHandler creates the handler.
func NewUpdateMatchStatusHandler(
	matches matching.Repository,
	enforceTransitions bool,
	rec metrics.Recorder,
	log *logger.Logger,
) *UpdateMatchStatusHandler {
	if rec == nil {
		rec = metrics.Noop{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &UpdateMatchStatusHandler{
		matches:            matches,
		enforceTransitions: enforceTransitions,
		metrics:            rec,
		log:                log.With(logger.Component("match_lifecycle")),
	}
}

// Handle checks status, existence, participation and transition, in that
// order, before the single conditional write.
func (h *UpdateMatchStatusHandler) Handle(ctx context.Context, cmd UpdateMatchStatusCommand) (*matching.Match, error) {
	next, ok := matching.ParseStatus(cmd.Status)
	if !ok || !next.IsUpdateTarget() {
		return nil, shared.ErrInvalidMatchStatus
	}

	m, err := h.matches.GetByID(ctx, cmd.MatchID)
	if err != nil {
		return nil, fmt.Errorf("update_match_status: %w", err)
	}
	if !m.IsParticipant(cmd.RequesterID) {
		return nil, shared.ErrNotMatchParticipant
	}
	if h.enforceTransitions && !m.Status.CanTransitionTo(next) {
		return nil, shared.ErrIllegalTransition
	}

	now := time.Now().UTC()
	written, err := h.matches.UpdateStatus(ctx, m.ID, m.Status, next, now)
	if err != nil {
		if shared.IsStore(err) {
			logger.FromContext(ctx, h.log).Error("match status write failed", logger.Operation("update_match_status"), logger.Err(err), logger.MatchID(m.ID))
		}
		return nil, fmt.Errorf("update_match_status: %w", err)
	}
	if !written {
		return nil, shared.ErrMatchStatusChanged
	}

	previous := m.Status
	m.Status = next
	m.UpdatedAt = now

	h.metrics.MatchStatusChanged(string(next))
	logger.FromContext(ctx, h.log).Info("match status changed",
		logger.MatchID(m.ID),
		logger.String("from", string(previous)),
		logger.String("to", string(next)),
		logger.UserID(cmd.RequesterID),
	)
	return m, nil
}
