package memory

import (
	"context"

	"github.com/skill-ladder/ladder-hub/internal/domain/matching"
	"github.com/skill-ladder/ladder-hub/internal/domain/user"
)

// CandidateFinder implements matching.CandidateFinder.
type CandidateFinder struct{ s *Store }

var _ matching.CandidateFinder = (*CandidateFinder)(nil)

func (f *CandidateFinder) FindTeachers(ctx context.Context, q matching.CandidateQuery) ([]matching.Candidate, error) {
	defer f.s.lock(ctx)()

	c := f.collect(q, user.RoleTeach, func(level int) bool { return level >= q.Level })
	return matching.RankTeachers(c, q.Limit), nil
}

func (f *CandidateFinder) FindLearners(ctx context.Context, q matching.CandidateQuery) ([]matching.Candidate, error) {
	defer f.s.lock(ctx)()

	c := f.collect(q, user.RoleLearn, func(level int) bool { return level <= q.Level })
	return matching.RankLearners(c, q.Limit), nil
}

func (f *CandidateFinder) collect(q matching.CandidateQuery, role user.Role, levelOK func(int) bool) []matching.Candidate {
	wanted := make(map[string]struct{}, len(q.SkillIDs))
	for _, id := range q.SkillIDs {
		wanted[id] = struct{}{}
	}

	st := f.s.st
	out := make([]matching.Candidate, 0)
	for _, us := range st.userSkills {
		if us.Role != role || us.UserID == q.ExcludeUserID {
			continue
		}
		if _, ok := wanted[us.SkillID]; !ok {
			continue
		}
		u, ok := st.users[us.UserID]
		if !ok || !levelOK(u.CurrentLevel) {
			continue
		}
		out = append(out, matching.Candidate{
			UserID:           u.ID,
			Username:         u.Username,
			Level:            u.CurrentLevel,
			Reputation:       u.Reputation,
			SkillID:          us.SkillID,
			SkillName:        st.skills[us.SkillID].Name,
			ProficiencyLevel: us.ProficiencyLevel,
			IsVerified:       us.IsVerified,
		})
	}
	return out
}
