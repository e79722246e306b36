package user

import "context"

// Repository is the user-side contract of the store.
type Repository interface {
	// GetByID returns shared.ErrUserNotFound when the user is absent.
	GetByID(ctx context.Context, id string) (*User, error)

	// AddReputation adds delta to the user's reputation in one atomic write.
	AddReputation(ctx context.Context, id string, delta int) error

	// AdvanceLevel sets current_level to fromLevel+1 only if the stored level
	// still equals fromLevel. It reports whether the row changed.
	AdvanceLevel(ctx context.Context, id string, fromLevel int) (bool, error)

	// ListSkills returns the user's skills in role, ordered by skill name.
	// With verifiedOnly only verified records are returned.
	ListSkills(ctx context.Context, userID string, role Role, verifiedOnly bool) ([]SkillRef, error)
}
