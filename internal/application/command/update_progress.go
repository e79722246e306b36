package command

import (
	"context"
	"fmt"
	"time"

	"github.com/skill-ladder/ladder-hub/internal/domain/matching"
	"github.com/skill-ladder/ladder-hub/internal/domain/progress"
	"github.com/skill-ladder/ladder-hub/internal/domain/shared"
	"github.com/skill-ladder/ladder-hub/pkg/logger"
)

// UpdateProgressCommand partially updates a progress record.
type UpdateProgressCommand struct {
	RequesterID          string
	ProgressID           string
	CurrentStage         *string
	CompletionPercentage *int
}

// UpdateProgressResult carries the stored record and, when the update
// completed the skill, the ladder evaluation it triggered.
type UpdateProgressResult struct {
	Progress progress.Progress     `json:"progress"`
	Ladder   *EvaluateLadderResult `json:"ladder,omitempty"`
}

// UpdateProgressHandler handles UpdateProgressCommand.
type UpdateProgressHandler struct {
	tx        shared.Transactor
	progress  progress.Repository
	evaluator *EvaluateLadderHandler
	cache     matching.SuggestionCache
	log       *logger.Logger
}

// NewUpdateProgressHandler creates the handler. cache may be nil.
func NewUpdateProgressHandler(
	tx shared.Transactor,
	repo progress.Repository,
	evaluator *EvaluateLadderHandler,
	cache matching.SuggestionCache,
	log *logger.Logger,
) *UpdateProgressHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &UpdateProgressHandler{
		tx:        tx,
		progress:  repo,
		evaluator: evaluator,
		cache:     cache,
		log:       log.With(logger.Component("progress")),
	}
}

// Handle applies the patch. Reaching 100% runs the ladder evaluation for
// the owner in the same transaction. A level change drops the owner's
// cached suggestions once committed.
func (h *UpdateProgressHandler) Handle(ctx context.Context, cmd UpdateProgressCommand) (*UpdateProgressResult, error) {
	log := logger.FromContext(ctx, h.log)
	result := &UpdateProgressResult{}

	err := h.tx.InTx(ctx, func(ctx context.Context) error {
		p, err := h.progress.GetByID(ctx, cmd.ProgressID)
		if err != nil {
			return err
		}
		if p.UserID != cmd.RequesterID {
			return shared.ErrNotProgressOwner
		}

		completed, err := p.Apply(progress.Patch{
			CurrentStage:         cmd.CurrentStage,
			CompletionPercentage: cmd.CompletionPercentage,
		}, time.Now().UTC())
		if err != nil {
			return err
		}
		if err := h.progress.Update(ctx, p); err != nil {
			return err
		}
		result.Progress = *p

		if completed {
			ladder, err := h.evaluator.Handle(ctx, EvaluateLadderCommand{UserID: p.UserID})
			if err != nil {
				return err
			}
			result.Ladder = ladder
		}
		return nil
	})
	if err != nil {
		if shared.IsStore(err) {
			log.Error("progress update rolled back", logger.Operation("update_progress"), logger.Err(err))
		}
		return nil, fmt.Errorf("update_progress: %w", err)
	}

	if h.cache != nil && result.Ladder != nil && result.Ladder.Advanced {
		if err := h.cache.Invalidate(ctx, result.Progress.UserID); err != nil {
			log.Warn("suggestion cache invalidation failed", logger.Operation("update_progress"), logger.Err(err))
		}
	}

	log.Info("progress updated",
		logger.UserID(result.Progress.UserID),
		logger.SkillID(result.Progress.SkillID),
		logger.Int("completion_percentage", result.Progress.CompletionPercentage),
	)
	return result, nil
}
