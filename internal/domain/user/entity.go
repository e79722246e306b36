// Package user contains the participant model of the skill ladder: users,
// their ladder level and reputation, and the skills they teach or learn.
package user

import "time"

// Role is the side a user takes for a skill.
type Role string

const (
	// RoleTeach marks a skill the user can teach.
	RoleTeach Role = "teach"
	// RoleLearn marks a skill the user wants to learn.
	RoleLearn Role = "learn"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	return r == RoleTeach || r == RoleLearn
}

// MinLevel is the lowest ladder level a user can hold.
const MinLevel = 1

// User is a participant of the ladder. Level is raised only by the ladder
// evaluator; reputation is the running sum of received feedback ratings.
type User struct {
	ID           string    `json:"user_id"`
	Username     string    `json:"username"`
	CurrentLevel int       `json:"current_level"`
	Reputation   int       `json:"reputation"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Skill is immutable catalog data.
type Skill struct {
	ID          string `json:"skill_id"`
	Name        string `json:"skill_name"`
	Description string `json:"description,omitempty"`
}

// SkillRef is the short form of a skill used in listings.
type SkillRef struct {
	SkillID   string `json:"skill_id"`
	SkillName string `json:"skill_name"`
}

// UserSkill links a user to a skill in one role. At most one record exists
// per (user, skill, role).
type UserSkill struct {
	ID               string `json:"user_skill_id"`
	UserID           string `json:"user_id"`
	SkillID          string `json:"skill_id"`
	Role             Role   `json:"role"`
	ProficiencyLevel int    `json:"proficiency_level"`
	IsVerified       bool   `json:"is_verified"`
}
