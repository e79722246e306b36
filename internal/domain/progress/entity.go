// Package progress tracks per-skill learning progress and the ladder rule
// that turns accumulated progress into level advancement.
package progress

import (
	"strings"
	"time"

	"github.com/skill-ladder/ladder-hub/internal/domain/shared"
)

// CompletePercentage marks a skill as finished for ladder purposes.
const CompletePercentage = 100

// Progress is a user's advancement in one skill. At most one record exists
// per (user, skill).
type Progress struct {
	ID                        string    `json:"progress_id"`
	UserID                    string    `json:"user_id"`
	SkillID                   string    `json:"skill_id"`
	SkillName                 string    `json:"skill_name,omitempty"`
	CurrentStage              string    `json:"current_stage"`
	CompletionPercentage      int       `json:"completion_percentage"`
	SessionsCompleted         int       `json:"sessions_completed"`
	RequiredSessionsToAdvance int       `json:"required_sessions_to_advance"`
	CanAdvanceLadder          bool      `json:"can_advance_ladder"`
	CreatedAt                 time.Time `json:"created_at"`
	UpdatedAt                 time.Time `json:"updated_at"`
}

// ReachedSessionGoal reports whether enough sessions were completed to
// trigger a ladder evaluation.
func (p *Progress) ReachedSessionGoal() bool {
	return p.SessionsCompleted >= p.RequiredSessionsToAdvance
}

// IsComplete reports whether the skill counts toward the ladder.
func (p *Progress) IsComplete() bool {
	return p.CompletionPercentage >= CompletePercentage
}

// Patch is a partial update of a progress record. Nil fields are unchanged.
type Patch struct {
	CurrentStage         *string
	CompletionPercentage *int
}

// Validate rejects empty patches and out-of-range percentages.
func (p Patch) Validate() error {
	if p.CurrentStage == nil && p.CompletionPercentage == nil {
		return shared.ErrEmptyProgressPatch
	}
	if p.CompletionPercentage != nil {
		if v := *p.CompletionPercentage; v < 0 || v > CompletePercentage {
			return shared.ErrInvalidPercentage
		}
	}
	return nil
}

// Apply validates patch and writes it into p. It reports whether the record
// became complete with this call.
func (p *Progress) Apply(patch Patch, now time.Time) (bool, error) {
	if err := patch.Validate(); err != nil {
		return false, err
	}
	wasComplete := p.IsComplete()
	if patch.CurrentStage != nil {
		p.CurrentStage = strings.TrimSpace(*patch.CurrentStage)
	}
	if patch.CompletionPercentage != nil {
		p.CompletionPercentage = *patch.CompletionPercentage
	}
	p.UpdatedAt = now
	return !wasComplete && p.IsComplete(), nil
}
