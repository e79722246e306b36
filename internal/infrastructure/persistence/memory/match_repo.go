package memory

import (
	"context"
	"sort"
	"time"

	"github.com/skill-ladder/ladder-hub/internal/domain/matching"
	"github.com/skill-ladder/ladder-hub/internal/domain/shared"
)

// MatchRepository implements matching.Repository.
type MatchRepository struct{ s *Store }

var _ matching.Repository = (*MatchRepository)(nil)

// Create inserts m, enforcing referential integrity and the single active
// match per pair and skill.
func (r *MatchRepository) Create(ctx context.Context, m *matching.Match) error {
	defer r.s.lock(ctx)()

	st := r.s.st
	_, teacherOK := st.users[m.TeacherID]
	_, learnerOK := st.users[m.LearnerID]
	_, skillOK := st.skills[m.SkillID]
	if !teacherOK || !learnerOK || !skillOK {
		return shared.ErrSkillNotFound
	}
	if m.Status.IsActive() && r.activeExists(m, "") {
		return shared.ErrActiveMatchExists
	}
	st.matches[m.ID] = *m
	return nil
}

// activeExists reports whether another active match shares m's pair key.
func (r *MatchRepository) activeExists(m *matching.Match, skipID string) bool {
	key := m.PairKey()
	for id, other := range r.s.st.matches {
		if id == skipID || !other.Status.IsActive() {
			continue
		}
		if other.PairKey() == key {
			return true
		}
	}
	return false
}

// GetByID returns a copy of the match.
func (r *MatchRepository) GetByID(ctx context.Context, id string) (*matching.Match, error) {
	defer r.s.lock(ctx)()

	m, ok := r.s.st.matches[id]
	if !ok {
		return nil, shared.ErrMatchNotFound
	}
	return &m, nil
}

// UpdateStatus performs the conditional status write.
func (r *MatchRepository) UpdateStatus(ctx context.Context, id string, from, to matching.Status, at time.Time) (bool, error) {
	defer r.s.lock(ctx)()

	m, ok := r.s.st.matches[id]
	if !ok {
		return false, shared.ErrMatchNotFound
	}
	if m.Status != from {
		return false, nil
	}
	if to.IsActive() && !from.IsActive() && r.activeExists(&m, id) {
		return false, shared.ErrActiveMatchExists
	}
	m.Status = to
	m.UpdatedAt = at
	r.s.st.matches[id] = m
	return true, nil
}

// ListByParticipant returns the user's matches, newest first.
func (r *MatchRepository) ListByParticipant(ctx context.Context, userID string) ([]matching.MatchDetails, error) {
	defer r.s.lock(ctx)()

	st := r.s.st
	out := make([]matching.MatchDetails, 0)
	for _, m := range st.matches {
		if !m.IsParticipant(userID) {
			continue
		}
		out = append(out, matching.MatchDetails{
			Match:           m,
			TeacherUsername: st.users[m.TeacherID].Username,
			LearnerUsername: st.users[m.LearnerID].Username,
			SkillName:       st.skills[m.SkillID].Name,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
