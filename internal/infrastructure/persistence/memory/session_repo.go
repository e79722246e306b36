package memory

import (
	"context"
	"sort"

	"github.com/skill-ladder/ladder-hub/internal/domain/matching"
	"github.com/skill-ladder/ladder-hub/internal/domain/shared"
)

// SessionRepository implements matching.SessionRepository.
type SessionRepository struct{ s *Store }

var _ matching.SessionRepository = (*SessionRepository)(nil)

func (r *SessionRepository) Create(ctx context.Context, sess *matching.Session) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.st.matches[sess.MatchID]; !ok {
		return shared.ErrMatchNotFound
	}
	r.s.st.sessions[sess.ID] = copySession(*sess)
	return nil
}

// GetForUpdate returns the session joined with its match. Row locking is
// implied by the store-wide transaction lock.
func (r *SessionRepository) GetForUpdate(ctx context.Context, id string) (*matching.SessionContext, error) {
	defer r.s.lock(ctx)()

	sess, ok := r.s.st.sessions[id]
	if !ok {
		return nil, shared.ErrSessionNotFound
	}
	m, ok := r.s.st.matches[sess.MatchID]
	if !ok {
		return nil, shared.ErrMatchNotFound
	}
	return &matching.SessionContext{
		Session:   copySession(sess),
		TeacherID: m.TeacherID,
		LearnerID: m.LearnerID,
		SkillID:   m.SkillID,
	}, nil
}

func (r *SessionRepository) Update(ctx context.Context, sess *matching.Session) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.st.sessions[sess.ID]; !ok {
		return shared.ErrSessionNotFound
	}
	r.s.st.sessions[sess.ID] = copySession(*sess)
	return nil
}

func (r *SessionRepository) ListByParticipant(ctx context.Context, userID string) ([]matching.SessionDetails, error) {
	defer r.s.lock(ctx)()

	st := r.s.st
	out := make([]matching.SessionDetails, 0)
	for _, sess := range st.sessions {
		m, ok := st.matches[sess.MatchID]
		if !ok || !m.IsParticipant(userID) {
			continue
		}
		out = append(out, matching.SessionDetails{
			Session:         copySession(sess),
			TeacherUsername: st.users[m.TeacherID].Username,
			LearnerUsername: st.users[m.LearnerID].Username,
			SkillName:       st.skills[m.SkillID].Name,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SessionDate.Equal(out[j].SessionDate) {
			return out[i].SessionDate.After(out[j].SessionDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
