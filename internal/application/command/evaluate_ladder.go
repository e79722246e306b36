// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"

	"github.com/skill-ladder/ladder-hub/internal/domain/progress"
	"github.com/skill-ladder/ladder-hub/internal/domain/shared"
	"github.com/skill-ladder/ladder-hub/internal/domain/user"
	"github.com/skill-ladder/ladder-hub/pkg/logger"
	"github.com/skill-ladder/ladder-hub/pkg/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATE LADDER COMMAND
// Moves a user from level L to L+1 when reputation reaches 100*L and at
// least 2*L skills are complete. The level write is a compare-and-set on L,
// so repeated evaluation advances at most once per qualifying state.
// ══════════════════════════════════════════════════════════════════════════════

// EvaluateLadderCommand names the user to evaluate.
type EvaluateLadderCommand struct {
	UserID string
}

// EvaluateLadderResult is the outcome of one evaluation.
type EvaluateLadderResult struct {
	UserID        string            `json:"user_id"`
	Advanced      bool              `json:"advanced"`
	PreviousLevel int               `json:"previous_level"`
	NewLevel      int               `json:"new_level"`
	Standing      progress.Standing `json:"standing"`
}

// EvaluateLadderHandler handles EvaluateLadderCommand.
type EvaluateLadderHandler struct {
	tx       shared.Transactor
	users    user.Repository
	progress progress.Repository
	rule     progress.LadderRule
	metrics  metrics.Recorder
	log      *logger.Logger
}

// NewEvaluateLadderHandler creates the handler.
func NewEvaluateLadderHandler(
	tx shared.Transactor,
	users user.Repository,
	repo progress.Repository,
	rule progress.LadderRule,
	rec metrics.Recorder,
	log *logger.Logger,
) *EvaluateLadderHandler {
	if rec == nil {
		rec = metrics.Noop{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &EvaluateLadderHandler{
		tx:       tx,
		users:    users,
		progress: repo,
		rule:     rule,
		metrics:  rec,
		log:      log.With(logger.Component("ladder")),
	}
}

// Handle evaluates the rule for one user. An unknown user is logged and
// reported as not advanced. Called inside an open transaction it joins it.
func (h *EvaluateLadderHandler) Handle(ctx context.Context, cmd EvaluateLadderCommand) (*EvaluateLadderResult, error) {
	log := logger.FromContext(ctx, h.log).With(logger.UserID(cmd.UserID))
	result := &EvaluateLadderResult{UserID: cmd.UserID}

	err := h.tx.InTx(ctx, func(ctx context.Context) error {
		u, err := h.users.GetByID(ctx, cmd.UserID)
		if shared.IsNotFound(err) {
			log.Warn("ladder evaluation skipped: user not found")
			return nil
		}
		if err != nil {
			return err
		}

		completed, err := h.progress.CountCompleted(ctx, u.ID)
		if err != nil {
			return err
		}

		result.PreviousLevel = u.CurrentLevel
		result.NewLevel = u.CurrentLevel
		result.Standing = h.rule.Assess(u.CurrentLevel, u.Reputation, completed)
		if !result.Standing.Eligible {
			return nil
		}

		advanced, err := h.users.AdvanceLevel(ctx, u.ID, u.CurrentLevel)
		if err != nil {
			return err
		}
		if advanced {
			result.Advanced = true
			result.NewLevel = u.CurrentLevel + 1
		}
		return nil
	})
	if err != nil {
		if shared.IsStore(err) {
			log.Error("ladder evaluation failed", logger.Operation("evaluate_ladder"), logger.Err(err))
		}
		return nil, fmt.Errorf("evaluate_ladder: %w", err)
	}

	h.metrics.LadderEvaluated(result.Advanced)
	if result.Advanced {
		log.Info("ladder advanced",
			logger.Int("from_level", result.PreviousLevel),
			logger.Int("to_level", result.NewLevel),
		)
	}
	return result, nil
}
