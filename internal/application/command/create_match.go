package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/skill-ladder/ladder-hub/internal/domain/matching"
	"github.com/skill-ladder/ladder-hub/internal/domain/shared"
	"github.com/skill-ladder/ladder-hub/pkg/logger"
	"github.com/skill-ladder/ladder-hub/pkg/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE MATCH COMMAND
// Opens a pending match between a teacher and a learner for one skill.
// Uniqueness of the active pair is enforced by the store's atomic insert.
// ══════════════════════════════════════════════════════════════════════════════

// CreateMatchCommand contains the data to request a match.
type CreateMatchCommand struct {
	// RequesterID must be the teacher or the learner.
	RequesterID string

	TeacherID string
	LearnerID string
	SkillID   string
}

// CreateMatchHandler handles CreateMatchCommand.
type CreateMatchHandler struct {
	matches matching.Repository
	metrics metrics.Recorder
	log     *logger.Logger
}

// NewCreateMatchHandler creates the handler.
func NewCreateMatchHandler(matches matching.Repository, rec metrics.Recorder, log *logger.Logger) *CreateMatchHandler {
	if rec == nil {
		rec = metrics.Noop{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CreateMatchHandler{
		matches: matches,
		metrics: rec,
		log:     log.With(logger.Component("match_lifecycle")),
	}
}

// Handle validates, authorizes and inserts the match.
func (h *CreateMatchHandler) Handle(ctx context.Context, cmd CreateMatchCommand) (*matching.Match, error) {
	m, err := matching.NewMatch(matching.NewMatchParams{
		ID:        uuid.NewString(),
		TeacherID: cmd.TeacherID,
		LearnerID: cmd.LearnerID,
		SkillID:   cmd.SkillID,
		Now:       time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	if !m.IsParticipant(cmd.RequesterID) {
		return nil, shared.ErrNotMatchParticipant
	}

	log := logger.FromContext(ctx, h.log)
	if err := h.matches.Create(ctx, m); err != nil {
		if shared.IsStore(err) {
			log.Error("match insert failed", logger.Operation("create_match"), logger.Err(err), logger.UserID(cmd.RequesterID))
		}
		return nil, fmt.Errorf("create_match: %w", err)
	}

	h.metrics.MatchCreated()
	log.Info("match created",
		logger.MatchID(m.ID),
		logger.String("teacher_id", m.TeacherID),
		logger.String("learner_id", m.LearnerID),
		logger.SkillID(m.SkillID),
	)
	return m, nil
}
