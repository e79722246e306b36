package progress

// Defaults of the ladder rule.
const (
	DefaultReputationPerLevel = 100
	DefaultSkillsPerLevel     = 2
	DefaultRequiredSessions   = 5
)

// LadderRule decides when a user moves from level L to L+1: reputation must
// reach L*ReputationPerLevel and completed skills must reach
// L*SkillsPerLevel.
type LadderRule struct {
	ReputationPerLevel int
	SkillsPerLevel     int
}

// DefaultLadderRule returns the rule with default thresholds.
func DefaultLadderRule() LadderRule {
	return LadderRule{
		ReputationPerLevel: DefaultReputationPerLevel,
		SkillsPerLevel:     DefaultSkillsPerLevel,
	}
}

// Standing is a user's position against the rule at their current level.
type Standing struct {
	Level               int  `json:"current_level"`
	Reputation          int  `json:"reputation"`
	ReputationThreshold int  `json:"reputation_threshold"`
	CompletedSkills     int  `json:"completed_skills"`
	SkillsNeeded        int  `json:"skills_needed"`
	Eligible            bool `json:"eligible"`
}

// Assess evaluates the rule for the given level, reputation and number of
// completed skills.
func (r LadderRule) Assess(level, reputation, completedSkills int) Standing {
	s := Standing{
		Level:               level,
		Reputation:          reputation,
		ReputationThreshold: level * r.ReputationPerLevel,
		CompletedSkills:     completedSkills,
		SkillsNeeded:        level * r.SkillsPerLevel,
	}
	s.Eligible = s.Reputation >= s.ReputationThreshold && s.CompletedSkills >= s.SkillsNeeded
	return s
}
