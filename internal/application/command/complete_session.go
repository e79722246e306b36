package command

import (
	"context"
	"fmt"
	"time"

	"github.com/skill-ladder/ladder-hub/internal/domain/matching"
	"github.com/skill-ladder/ladder-hub/internal/domain/progress"
	"github.com/skill-ladder/ladder-hub/internal/domain/shared"
	"github.com/skill-ladder/ladder-hub/internal/domain/user"
	"github.com/skill-ladder/ladder-hub/pkg/logger"
	"github.com/skill-ladder/ladder-hub/pkg/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE SESSION COMMAND
// Finalizes a session in one transaction: session status and feedback,
// reputation of the rated participants, the learner's progress counter and,
// once the learner reaches the session goal, a ladder evaluation.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteSessionCommand completes a session. Nil fields are left as stored.
type CompleteSessionCommand struct {
	RequesterID string
	SessionID   string

	// TeacherFeedbackRating is the learner's rating of the teacher.
	TeacherFeedbackRating *int

	// LearnerFeedbackRating is the teacher's rating of the learner.
	LearnerFeedbackRating *int

	Notes *string
}

// CompleteSessionResult reports everything the completion changed.
type CompleteSessionResult struct {
	Session         matching.Session      `json:"session"`
	FirstCompletion bool                  `json:"first_completion"`
	Progress        *progress.Progress    `json:"progress,omitempty"`
	Ladder          *EvaluateLadderResult `json:"ladder,omitempty"`
}

// SessionPolicy holds the tunables of session completion.
type SessionPolicy struct {
	// MaxFeedbackRating is the highest accepted rating; the lowest is 1.
	MaxFeedbackRating int

	// DefaultRequiredSessions seeds new progress records.
	DefaultRequiredSessions int
}

// DefaultSessionPolicy returns the default policy.
func DefaultSessionPolicy() SessionPolicy {
	return SessionPolicy{
		MaxFeedbackRating:       10,
		DefaultRequiredSessions: progress.DefaultRequiredSessions,
	}
}

// CompleteSessionHandler handles CompleteSessionCommand.
type CompleteSessionHandler struct {
	tx        shared.Transactor
	sessions  matching.SessionRepository
	users     user.Repository
	progress  progress.Repository
	evaluator *EvaluateLadderHandler
	cache     matching.SuggestionCache
	policy    SessionPolicy
	metrics   metrics.Recorder
	log       *logger.Logger
}

// NewCompleteSessionHandler creates the handler. cache may be nil.
func NewCompleteSessionHandler(
	tx shared.Transactor,
	sessions matching.SessionRepository,
	users user.Repository,
	repo progress.Repository,
	evaluator *EvaluateLadderHandler,
	cache matching.SuggestionCache,
	policy SessionPolicy,
	rec metrics.Recorder,
	log *logger.Logger,
) *CompleteSessionHandler {
	defaults := DefaultSessionPolicy()
	if policy.MaxFeedbackRating <= 0 {
		policy.MaxFeedbackRating = defaults.MaxFeedbackRating
	}
	if policy.DefaultRequiredSessions <= 0 {
		policy.DefaultRequiredSessions = defaults.DefaultRequiredSessions
	}
	if rec == nil {
		rec = metrics.Noop{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CompleteSessionHandler{
		tx:        tx,
		sessions:  sessions,
		users:     users,
		progress:  repo,
		evaluator: evaluator,
		cache:     cache,
		policy:    policy,
		metrics:   rec,
		log:       log.With(logger.Component("session_completion")),
	}
}

// Handle runs the completion workflow. Either every write applies or none.
func (h *CompleteSessionHandler) Handle(ctx context.Context, cmd CompleteSessionCommand) (*CompleteSessionResult, error) {
	log := logger.FromContext(ctx, h.log).With(logger.SessionID(cmd.SessionID))
	result := &CompleteSessionResult{}
	var participants [2]string

	err := h.tx.InTx(ctx, func(ctx context.Context) error {
		sc, err := h.sessions.GetForUpdate(ctx, cmd.SessionID)
		if err != nil {
			return err
		}
		if !sc.IsParticipant(cmd.RequesterID) {
			return shared.ErrNotMatchParticipant
		}
		if err := checkRater(cmd, sc); err != nil {
			return err
		}
		participants = [2]string{sc.TeacherID, sc.LearnerID}

		sess := sc.Session
		outcome, err := sess.Complete(matching.Completion{
			TeacherFeedbackRating: cmd.TeacherFeedbackRating,
			LearnerFeedbackRating: cmd.LearnerFeedbackRating,
			Notes:                 cmd.Notes,
		}, h.policy.MaxFeedbackRating, time.Now().UTC())
		if err != nil {
			return err
		}
		if err := h.sessions.Update(ctx, &sess); err != nil {
			return err
		}
		result.Session = sess
		result.FirstCompletion = outcome.FirstCompletion

		if outcome.TeacherReputationDelta > 0 {
			if err := h.users.AddReputation(ctx, sc.TeacherID, outcome.TeacherReputationDelta); err != nil {
				return err
			}
		}
		if outcome.LearnerReputationDelta > 0 {
			if err := h.users.AddReputation(ctx, sc.LearnerID, outcome.LearnerReputationDelta); err != nil {
				return err
			}
		}

		if !outcome.FirstCompletion {
			return nil
		}

		p, err := h.progress.IncrementSessions(ctx, sc.LearnerID, sc.SkillID, h.policy.DefaultRequiredSessions)
		if err != nil {
			return err
		}
		result.Progress = p

		if p.ReachedSessionGoal() {
			ladder, err := h.evaluator.Handle(ctx, EvaluateLadderCommand{UserID: sc.LearnerID})
			if err != nil {
				return err
			}
			result.Ladder = ladder
		}
		return nil
	})
	if err != nil {
		if shared.IsStore(err) {
			log.Error("session completion rolled back", logger.Operation("complete_session"), logger.Err(err))
		}
		return nil, fmt.Errorf("complete_session: %w", err)
	}

	if h.cache != nil {
		if err := h.cache.Invalidate(ctx, participants[0], participants[1]); err != nil {
			log.Warn("suggestion cache invalidation failed", logger.Operation("complete_session"), logger.Err(err))
		}
	}

	h.metrics.SessionCompleted(result.FirstCompletion)
	fields := []logger.Field{
		logger.UserID(cmd.RequesterID),
		logger.Bool("first_completion", result.FirstCompletion),
	}
	if result.Progress != nil {
		fields = append(fields, logger.Int("sessions_completed", result.Progress.SessionsCompleted))
	}
	if result.Ladder != nil {
		fields = append(fields, logger.Bool("ladder_advanced", result.Ladder.Advanced))
	}
	log.Info("session completed", fields...)
	return result, nil
}

// checkRater rejects ratings a participant would give to themselves.
func checkRater(cmd CompleteSessionCommand, sc *matching.SessionContext) error {
	if cmd.TeacherFeedbackRating != nil && cmd.RequesterID == sc.TeacherID {
		return shared.ErrSelfRating
	}
	if cmd.LearnerFeedbackRating != nil && cmd.RequesterID == sc.LearnerID {
		return shared.ErrSelfRating
	}
	return nil
}
