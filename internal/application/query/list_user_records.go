package query

import (
	"context"
	"fmt"

	"github.com/skill-ladder/ladder-hub/internal/domain/matching"
	"github.com/skill-ladder/ladder-hub/internal/domain/progress"
	"github.com/skill-ladder/ladder-hub/internal/domain/shared"
	"github.com/skill-ladder/ladder-hub/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER LISTINGS
// Self-service listings of a user's matches, sessions and progress records.
// ══════════════════════════════════════════════════════════════════════════════

// ListUserQuery names the user whose records are listed.
type ListUserQuery struct {
	RequesterID string
	UserID      string
}

func (q ListUserQuery) authorize() error {
	if q.RequesterID == "" || q.RequesterID != q.UserID {
		return shared.ErrNotSelf
	}
	return nil
}

// ListUserMatchesHandler lists matches the user takes part in.
type ListUserMatchesHandler struct {
	matches matching.Repository
}

func NewListUserMatchesHandler(matches matching.Repository) *ListUserMatchesHandler {
	return &ListUserMatchesHandler{matches: matches}
}

func (h *ListUserMatchesHandler) Handle(ctx context.Context, q ListUserQuery) ([]matching.MatchDetails, error) {
	if err := q.authorize(); err != nil {
		return nil, err
	}
	list, err := h.matches.ListByParticipant(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("list_matches: %w", err)
	}
	return list, nil
}

// ListUserSessionsHandler lists sessions of the user's matches.
type ListUserSessionsHandler struct {
	sessions matching.SessionRepository
}

func NewListUserSessionsHandler(sessions matching.SessionRepository) *ListUserSessionsHandler {
	return &ListUserSessionsHandler{sessions: sessions}
}

func (h *ListUserSessionsHandler) Handle(ctx context.Context, q ListUserQuery) ([]matching.SessionDetails, error) {
	if err := q.authorize(); err != nil {
		return nil, err
	}
	list, err := h.sessions.ListByParticipant(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("list_sessions: %w", err)
	}
	return list, nil
}

// ListUserProgressHandler lists the user's per-skill progress.
type ListUserProgressHandler struct {
	progress progress.Repository
}

func NewListUserProgressHandler(repo progress.Repository) *ListUserProgressHandler {
	return &ListUserProgressHandler{progress: repo}
}

func (h *ListUserProgressHandler) Handle(ctx context.Context, q ListUserQuery) ([]progress.Progress, error) {
	if err := q.authorize(); err != nil {
		return nil, err
	}
	list, err := h.progress.ListByUser(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("list_progress: %w", err)
	}
	return list, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Ladder status
// ─────────────────────────────────────────────────────────────────────────────

// GetLadderStatusHandler reports where a user stands against the ladder rule.
type GetLadderStatusHandler struct {
	users    user.Repository
	progress progress.Repository
	rule     progress.LadderRule
}

func NewGetLadderStatusHandler(users user.Repository, repo progress.Repository, rule progress.LadderRule) *GetLadderStatusHandler {
	return &GetLadderStatusHandler{users: users, progress: repo, rule: rule}
}

func (h *GetLadderStatusHandler) Handle(ctx context.Context, q ListUserQuery) (*progress.Standing, error) {
	if err := q.authorize(); err != nil {
		return nil, err
	}
	u, err := h.users.GetByID(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("ladder_status: %w", err)
	}
	completed, err := h.progress.CountCompleted(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("ladder_status: %w", err)
	}
	standing := h.rule.Assess(u.CurrentLevel, u.Reputation, completed)
	return &standing, nil
}
