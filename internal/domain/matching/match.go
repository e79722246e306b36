// Package matching contains the teaching engagement model: matches between a
// teacher and a learner, the sessions held within them, and the ranking rules
// behind match suggestions.
package matching

import (
	"strings"
	"time"

	"github.com/skill-ladder/ladder-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MATCH STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status is the lifecycle state of a match.
type Status string

const (
	// StatusPending - request created, waiting for the counterpart.
	StatusPending Status = "pending"
	// StatusAccepted - engagement running, sessions can be scheduled.
	StatusAccepted Status = "accepted"
	// StatusCompleted - engagement finished.
	StatusCompleted Status = "completed"
	// StatusCancelled - engagement abandoned.
	StatusCancelled Status = "cancelled"
)

// transitions lists the legal successors of each non-terminal state.
var transitions = map[Status][]Status{
	StatusPending:  {StatusAccepted, StatusCancelled},
	StatusAccepted: {StatusCompleted, StatusCancelled},
}

// ParseStatus parses a status name case-insensitively.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	return st, st.IsValid()
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsActive reports whether a match in s blocks another match for the same
// pair and skill.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusAccepted
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// IsUpdateTarget reports whether s may be requested through a status update.
// Pending is only ever the initial state.
func (s Status) IsUpdateTarget() bool {
	return s == StatusAccepted || s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// MATCH
// ══════════════════════════════════════════════════════════════════════════════

// Match pairs a teacher with a learner for one skill.
type Match struct {
	ID        string    `json:"match_id"`
	TeacherID string    `json:"teacher_id"`
	LearnerID string    `json:"learner_id"`
	SkillID   string    `json:"skill_id"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewMatchParams holds the input of NewMatch.
type NewMatchParams struct {
	ID        string
	TeacherID string
	LearnerID string
	SkillID   string
	Now       time.Time
}

// NewMatch validates params and returns a pending match.
func NewMatch(p NewMatchParams) (*Match, error) {
	if p.TeacherID == "" || p.LearnerID == "" || p.SkillID == "" {
		return nil, shared.ErrMissingMatchFields
	}
	if p.TeacherID == p.LearnerID {
		return nil, shared.ErrSelfMatch
	}
	return &Match{
		ID:        p.ID,
		TeacherID: p.TeacherID,
		LearnerID: p.LearnerID,
		SkillID:   p.SkillID,
		Status:    StatusPending,
		CreatedAt: p.Now,
		UpdatedAt: p.Now,
	}, nil
}

// IsParticipant reports whether userID is the teacher or the learner.
func (m *Match) IsParticipant(userID string) bool {
	return userID != "" && (userID == m.TeacherID || userID == m.LearnerID)
}

// PairKey returns the unordered participant pair plus skill. Two matches
// with equal keys must never be active at the same time.
func (m *Match) PairKey() string {
	a, b := m.TeacherID, m.LearnerID
	if b < a {
		a, b = b, a
	}
	return a + "|" + b + "|" + m.SkillID
}

// MatchDetails is a match enriched with display names for listings.
type MatchDetails struct {
	Match
	TeacherUsername string `json:"teacher_username"`
	LearnerUsername string `json:"learner_username"`
	SkillName       string `json:"skill_name"`
}
