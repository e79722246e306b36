// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/skill-ladder/ladder-hub/internal/domain/matching"
	"github.com/skill-ladder/ladder-hub/internal/domain/shared"
	"github.com/skill-ladder/ladder-hub/internal/domain/user"
	"github.com/skill-ladder/ladder-hub/pkg/logger"
	"github.com/skill-ladder/ladder-hub/pkg/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET SUGGESTIONS QUERY
// Ranks potential teachers and learners for a user by ladder adjacency:
// teachers at or above the user's level for skills the user wants to learn,
// learners at or below for skills the user teaches with verification.
// ══════════════════════════════════════════════════════════════════════════════

// GetSuggestionsQuery requests suggestions for UserID.
type GetSuggestionsQuery struct {
	// RequesterID is the authenticated caller.
	RequesterID string

	// UserID is the user suggestions are computed for.
	UserID string
}

// GetSuggestionsHandler handles GetSuggestionsQuery.
type GetSuggestionsHandler struct {
	users   user.Repository
	finder  matching.CandidateFinder
	cache   matching.SuggestionCache
	metrics metrics.Recorder
	log     *logger.Logger
	limit   int
}

// NewGetSuggestionsHandler creates the handler. cache may be nil.
func NewGetSuggestionsHandler(
	users user.Repository,
	finder matching.CandidateFinder,
	cache matching.SuggestionCache,
	rec metrics.Recorder,
	log *logger.Logger,
	limit int,
) *GetSuggestionsHandler {
	if limit <= 0 {
		limit = matching.DefaultSuggestionLimit
	}
	if rec == nil {
		rec = metrics.Noop{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &GetSuggestionsHandler{
		users:   users,
		finder:  finder,
		cache:   cache,
		metrics: rec,
		log:     log.With(logger.Component("suggestions")),
		limit:   limit,
	}
}

// Handle computes suggestions for a user. Only the user may ask.
func (h *GetSuggestionsHandler) Handle(ctx context.Context, q GetSuggestionsQuery) (*matching.Suggestions, error) {
	if q.RequesterID == "" || q.RequesterID != q.UserID {
		return nil, shared.ErrNotSelf
	}
	log := logger.FromContext(ctx, h.log).With(logger.UserID(q.UserID))

	if h.cache != nil {
		cached, ok, err := h.cache.Get(ctx, q.UserID)
		if err != nil {
			log.Warn("suggestion cache read failed", logger.Operation("get_suggestions"), logger.Err(err))
		} else if ok {
			h.metrics.SuggestionServed(true)
			return cached, nil
		}
	}

	u, err := h.users.GetByID(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_suggestions: %w", err)
	}

	learning, err := h.users.ListSkills(ctx, u.ID, user.RoleLearn, false)
	if err != nil {
		return nil, fmt.Errorf("get_suggestions: learning interests: %w", err)
	}
	teaching, err := h.users.ListSkills(ctx, u.ID, user.RoleTeach, true)
	if err != nil {
		return nil, fmt.Errorf("get_suggestions: teaching capabilities: %w", err)
	}

	res := &matching.Suggestions{
		UserID:               u.ID,
		UserLevel:            u.CurrentLevel,
		LearningInterests:    learning,
		TeachingCapabilities: teaching,
		PotentialTeachers:    []matching.Candidate{},
		PotentialLearners:    []matching.Candidate{},
		GeneratedAt:          time.Now().UTC(),
	}

	if len(learning) > 0 {
		teachers, err := h.finder.FindTeachers(ctx, matching.CandidateQuery{
			SkillIDs:      matching.SkillIDs(learning),
			ExcludeUserID: u.ID,
			Level:         u.CurrentLevel,
			Limit:         h.limit,
		})
		if err != nil {
			return nil, fmt.Errorf("get_suggestions: teachers: %w", err)
		}
		res.PotentialTeachers = matching.RankTeachers(teachers, h.limit)
	}

	if len(teaching) > 0 {
		learners, err := h.finder.FindLearners(ctx, matching.CandidateQuery{
			SkillIDs:      matching.SkillIDs(teaching),
			ExcludeUserID: u.ID,
			Level:         u.CurrentLevel,
			Limit:         h.limit,
		})
		if err != nil {
			return nil, fmt.Errorf("get_suggestions: learners: %w", err)
		}
		res.PotentialLearners = matching.RankLearners(learners, h.limit)
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, res); err != nil {
			log.Warn("suggestion cache write failed", logger.Operation("get_suggestions"), logger.Err(err))
		}
	}

	h.metrics.SuggestionServed(false)
	log.Debug("suggestions computed",
		logger.Int("teachers", len(res.PotentialTeachers)),
		logger.Int("learners", len(res.PotentialLearners)),
	)
	return res, nil
}
