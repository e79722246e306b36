package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/skill-ladder/ladder-hub/internal/domain/matching"
	"github.com/skill-ladder/ladder-hub/internal/domain/shared"
	"github.com/skill-ladder/ladder-hub/pkg/logger"
)

// CreateSessionCommand schedules a session within an accepted match.
type CreateSessionCommand struct {
	RequesterID     string
	MatchID         string
	SessionDate     time.Time
	DurationMinutes int
	Notes           string
}

// CreateSessionHandler handles CreateSessionCommand.
type CreateSessionHandler struct {
	matches  matching.Repository
	sessions matching.SessionRepository
	log      *logger.Logger
}

// NewCreateSessionHandler creates the handler.
func NewCreateSessionHandler(matches matching.Repository, sessions matching.SessionRepository, log *logger.Logger) *CreateSessionHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &CreateSessionHandler{
		matches:  matches,
		sessions: sessions,
		log:      log.With(logger.Component("sessions")),
	}
}

// Handle inserts a scheduled session.
func (h *CreateSessionHandler) Handle(ctx context.Context, cmd CreateSessionCommand) (*matching.Session, error) {
	m, err := h.matches.GetByID(ctx, cmd.MatchID)
	if err != nil {
		return nil, fmt.Errorf("create_session: %w", err)
	}
	if !m.IsParticipant(cmd.RequesterID) {
		return nil, shared.ErrNotMatchParticipant
	}
	if m.Status != matching.StatusAccepted {
		return nil, shared.ErrMatchNotAccepted
	}

	sess, err := matching.NewSession(matching.NewSessionParams{
		ID:              uuid.NewString(),
		MatchID:         m.ID,
		SessionDate:     cmd.SessionDate,
		DurationMinutes: cmd.DurationMinutes,
		Notes:           cmd.Notes,
		Now:             time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	if err := h.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create_session: %w", err)
	}

	logger.FromContext(ctx, h.log).Info("session scheduled",
		logger.SessionID(sess.ID),
		logger.MatchID(m.ID),
		logger.Int("duration_minutes", sess.DurationMinutes),
	)
	return sess, nil
}
