package postgres

import (
	"context"

	"github.com/skill-ladder/ladder-hub/internal/domain/matching"
)

// CandidateFinder implements matching.CandidateFinder with ranked, limited
// queries over user_skills.
type CandidateFinder struct {
	conn *Connection
}

var _ matching.CandidateFinder = (*CandidateFinder)(nil)

// NewCandidateFinder creates a new CandidateFinder.
func NewCandidateFinder(conn *Connection) *CandidateFinder {
	return &CandidateFinder{conn: conn}
}

const candidateSelect = `
	SELECT u.id, u.username, u.current_level, u.reputation,
	       s.id, s.name, us.proficiency_level, us.is_verified
	FROM user_skills us
	JOIN users u ON u.id = us.user_id
	JOIN skills s ON s.id = us.skill_id
	WHERE us.role = $1
	  AND us.skill_id = ANY($2::uuid[])
	  AND u.id <> $3::uuid
`

// FindTeachers returns teachers at or above q.Level.
func (f *CandidateFinder) FindTeachers(ctx context.Context, q matching.CandidateQuery) ([]matching.Candidate, error) {
	return f.find(ctx, candidateSelect+`
	  AND u.current_level >= $4
	ORDER BY u.reputation DESC, u.current_level ASC, u.id ASC, s.name ASC
	LIMIT $5`, "teach", q)
}

// FindLearners returns learners at or below q.Level.
func (f *CandidateFinder) FindLearners(ctx context.Context, q matching.CandidateQuery) ([]matching.Candidate, error) {
	return f.find(ctx, candidateSelect+`
	  AND u.current_level <= $4
	ORDER BY u.current_level DESC, u.reputation DESC, u.id ASC, s.name ASC
	LIMIT $5`, "learn", q)
}

func (f *CandidateFinder) find(ctx context.Context, query, role string, q matching.CandidateQuery) ([]matching.Candidate, error) {
	out := make([]matching.Candidate, 0)

	skillIDs := make([]string, 0, len(q.SkillIDs))
	for _, id := range q.SkillIDs {
		if validID(id) {
			skillIDs = append(skillIDs, id)
		}
	}
	if len(skillIDs) == 0 || !validID(q.ExcludeUserID) {
		return out, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = matching.DefaultSuggestionLimit
	}

	rows, err := f.conn.q(ctx).Query(ctx, query, role, skillIDs, q.ExcludeUserID, q.Level, limit)
	if err != nil {
		return nil, wrap("suggestion", "FindCandidates", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c matching.Candidate
		if err := rows.Scan(
			&c.UserID, &c.Username, &c.Level, &c.Reputation,
			&c.SkillID, &c.SkillName, &c.ProficiencyLevel, &c.IsVerified,
		); err != nil {
			return nil, wrap("suggestion", "FindCandidates", err)
		}
		out = append(out, c)
	}
	return out, wrap("suggestion", "FindCandidates", rows.Err())
}
