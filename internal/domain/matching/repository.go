package matching

import (
	"context"
	"time"
)

// Repository persists matches.
type Repository interface {
	// Create inserts m atomically. It returns shared.ErrActiveMatchExists when
	// an active match with the same PairKey exists, and
	// shared.ErrSkillNotFound when a referenced user or skill is missing.
	Create(ctx context.Context, m *Match) error

	// GetByID returns shared.ErrMatchNotFound when absent.
	GetByID(ctx context.Context, id string) (*Match, error)

	// UpdateStatus moves the match from one status to another only if it is
	// still in from. It reports false when the guard did not hold.
	UpdateStatus(ctx context.Context, id string, from, to Status, at time.Time) (bool, error)

	// ListByParticipant returns matches where userID is teacher or learner,
	// newest first.
	ListByParticipant(ctx context.Context, userID string) ([]MatchDetails, error)
}

// SessionRepository persists sessions.
type SessionRepository interface {
	Create(ctx context.Context, s *Session) error

	// GetForUpdate returns the session joined with its match. Inside a
	// transaction the row stays locked until commit.
	GetForUpdate(ctx context.Context, id string) (*SessionContext, error)

	Update(ctx context.Context, s *Session) error

	// ListByParticipant returns sessions of matches userID takes part in,
	// ordered by session date descending.
	ListByParticipant(ctx context.Context, userID string) ([]SessionDetails, error)
}

// CandidateFinder looks up suggestion candidates.
type CandidateFinder interface {
	// FindTeachers returns verified and unverified teachers of q.SkillIDs
	// whose level is at least q.Level.
	FindTeachers(ctx context.Context, q CandidateQuery) ([]Candidate, error)

	// FindLearners returns learners of q.SkillIDs whose level is at most
	// q.Level.
	FindLearners(ctx context.Context, q CandidateQuery) ([]Candidate, error)
}

// SuggestionCache stores computed suggestions per user.
type SuggestionCache interface {
	Get(ctx context.Context, userID string) (*Suggestions, bool, error)
	Set(ctx context.Context, s *Suggestions) error
	Invalidate(ctx context.Context, userIDs ...string) error
}
