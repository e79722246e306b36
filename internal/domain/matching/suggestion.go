package matching

import (
	"sort"
	"time"

	"github.com/skill-ladder/ladder-hub/internal/domain/user"
)

// DefaultSuggestionLimit caps each candidate list of a suggestion response.
const DefaultSuggestionLimit = 10

// Candidate is a user holding one skill in the role being searched for.
type Candidate struct {
	UserID           string `json:"user_id"`
	Username         string `json:"username"`
	Level            int    `json:"current_level"`
	Reputation       int    `json:"reputation"`
	SkillID          string `json:"skill_id"`
	SkillName        string `json:"skill_name"`
	ProficiencyLevel int    `json:"proficiency_level"`
	IsVerified       bool   `json:"is_verified"`
}

// Suggestions is the read-only recommendation for one user.
type Suggestions struct {
	UserID               string          `json:"user_id"`
	UserLevel            int             `json:"user_level"`
	LearningInterests    []user.SkillRef `json:"learning_interests"`
	TeachingCapabilities []user.SkillRef `json:"teaching_capabilities"`
	PotentialTeachers    []Candidate     `json:"potential_teachers"`
	PotentialLearners    []Candidate     `json:"potential_learners"`
	GeneratedAt          time.Time       `json:"generated_at"`
}

// CandidateQuery selects candidates holding any of SkillIDs, excluding the
// requesting user. Level is the requester's level; finders apply the
// direction (teachers at or above, learners at or below).
type CandidateQuery struct {
	SkillIDs      []string
	ExcludeUserID string
	Level         int
	Limit         int
}

// SkillIDs extracts the ids of refs in order.
func SkillIDs(refs []user.SkillRef) []string {
	ids := make([]string, 0, len(refs))
	for _, r := range refs {
		ids = append(ids, r.SkillID)
	}
	return ids
}

// RankTeachers orders teacher candidates by reputation descending, then level
// ascending, and truncates to limit. User id and skill name break the
// remaining ties so the order is stable across stores.
func RankTeachers(candidates []Candidate, limit int) []Candidate {
	out := append([]Candidate(nil), candidates...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Reputation != b.Reputation {
			return a.Reputation > b.Reputation
		}
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		return tieBreak(a, b)
	})
	return truncate(out, limit)
}

// RankLearners orders learner candidates by level descending, then
// reputation descending, and truncates to limit.
func RankLearners(candidates []Candidate, limit int) []Candidate {
	out := append([]Candidate(nil), candidates...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Level != b.Level {
			return a.Level > b.Level
		}
		if a.Reputation != b.Reputation {
			return a.Reputation > b.Reputation
		}
		return tieBreak(a, b)
	})
	return truncate(out, limit)
}

func tieBreak(a, b Candidate) bool {
	if a.UserID != b.UserID {
		return a.UserID < b.UserID
	}
	return a.SkillName < b.SkillName
}

func truncate(c []Candidate, limit int) []Candidate {
	if limit > 0 && len(c) > limit {
		return c[:limit]
	}
	return c
}
