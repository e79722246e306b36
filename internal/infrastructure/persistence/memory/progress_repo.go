package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/skill-ladder/ladder-hub/internal/domain/progress"
	"github.com/skill-ladder/ladder-hub/internal/domain/shared"
)

// ProgressRepository implements progress.Repository.
type ProgressRepository struct{ s *Store }

var _ progress.Repository = (*ProgressRepository)(nil)

// IncrementSessions is the upsert-with-increment on (user, skill).
func (r *ProgressRepository) IncrementSessions(ctx context.Context, userID, skillID string, defaultRequired int) (*progress.Progress, error) {
	defer r.s.lock(ctx)()

	now := r.s.now()
	for id, p := range r.s.st.progress {
		if p.UserID != userID || p.SkillID != skillID {
			continue
		}
		p.SessionsCompleted++
		p.CanAdvanceLadder = p.ReachedSessionGoal()
		p.UpdatedAt = now
		r.s.st.progress[id] = p
		return r.withSkillName(p), nil
	}

	p := progress.Progress{
		ID:                        uuid.NewString(),
		UserID:                    userID,
		SkillID:                   skillID,
		SessionsCompleted:         1,
		RequiredSessionsToAdvance: defaultRequired,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}
	p.CanAdvanceLadder = p.ReachedSessionGoal()
	r.s.st.progress[p.ID] = p
	return r.withSkillName(p), nil
}

func (r *ProgressRepository) GetByID(ctx context.Context, id string) (*progress.Progress, error) {
	defer r.s.lock(ctx)()

	p, ok := r.s.st.progress[id]
	if !ok {
		return nil, shared.ErrProgressNotFound
	}
	return r.withSkillName(p), nil
}

// Update stores stage and percentage; counters are never overwritten.
func (r *ProgressRepository) Update(ctx context.Context, p *progress.Progress) error {
	defer r.s.lock(ctx)()

	stored, ok := r.s.st.progress[p.ID]
	if !ok {
		return shared.ErrProgressNotFound
	}
	stored.CurrentStage = p.CurrentStage
	stored.CompletionPercentage = p.CompletionPercentage
	stored.UpdatedAt = p.UpdatedAt
	r.s.st.progress[p.ID] = stored
	return nil
}

func (r *ProgressRepository) ListByUser(ctx context.Context, userID string) ([]progress.Progress, error) {
	defer r.s.lock(ctx)()

	out := make([]progress.Progress, 0)
	for _, p := range r.s.st.progress {
		if p.UserID == userID {
			out = append(out, *r.withSkillName(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SkillName != out[j].SkillName {
			return out[i].SkillName < out[j].SkillName
		}
		return out[i].SkillID < out[j].SkillID
	})
	return out, nil
}

func (r *ProgressRepository) CountCompleted(ctx context.Context, userID string) (int, error) {
	defer r.s.lock(ctx)()

	n := 0
	for _, p := range r.s.st.progress {
		if p.UserID == userID && p.CompletionPercentage == progress.CompletePercentage {
			n++
		}
	}
	return n, nil
}

func (r *ProgressRepository) withSkillName(p progress.Progress) *progress.Progress {
	p.SkillName = r.s.st.skills[p.SkillID].Name
	return &p
}
