package memory

import (
	"context"
	"sort"

	"github.com/skill-ladder/ladder-hub/internal/domain/shared"
	"github.com/skill-ladder/ladder-hub/internal/domain/user"
)

// UserRepository implements user.Repository.
type UserRepository struct{ s *Store }

var _ user.Repository = (*UserRepository)(nil)

// GetByID returns a copy of the user.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	defer r.s.lock(ctx)()

	u, ok := r.s.st.users[id]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	return &u, nil
}

// AddReputation adds delta to the user's reputation.
func (r *UserRepository) AddReputation(ctx context.Context, id string, delta int) error {
	defer r.s.lock(ctx)()

	u, ok := r.s.st.users[id]
	if !ok {
		return shared.ErrUserNotFound
	}
	u.Reputation += delta
	u.UpdatedAt = r.s.now()
	r.s.st.users[id] = u
	return nil
}

// AdvanceLevel raises the level by one if it still equals fromLevel.
func (r *UserRepository) AdvanceLevel(ctx context.Context, id string, fromLevel int) (bool, error) {
	defer r.s.lock(ctx)()

	u, ok := r.s.st.users[id]
	if !ok {
		return false, shared.ErrUserNotFound
	}
	if u.CurrentLevel != fromLevel {
		return false, nil
	}
	u.CurrentLevel = fromLevel + 1
	u.UpdatedAt = r.s.now()
	r.s.st.users[id] = u
	return true, nil
}

// ListSkills returns the user's skills in role, ordered by name.
func (r *UserRepository) ListSkills(ctx context.Context, userID string, role user.Role, verifiedOnly bool) ([]user.SkillRef, error) {
	defer r.s.lock(ctx)()

	refs := make([]user.SkillRef, 0)
	for _, us := range r.s.st.userSkills {
		if us.UserID != userID || us.Role != role {
			continue
		}
		if verifiedOnly && !us.IsVerified {
			continue
		}
		refs = append(refs, user.SkillRef{
			SkillID:   us.SkillID,
			SkillName: r.s.st.skills[us.SkillID].Name,
		})
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].SkillName != refs[j].SkillName {
			return refs[i].SkillName < refs[j].SkillName
		}
		return refs[i].SkillID < refs[j].SkillID
	})
	return refs, nil
}
