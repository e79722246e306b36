package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/skill-ladder/ladder-hub/internal/domain/shared"
	"github.com/skill-ladder/ladder-hub/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// UserRepository implements user.Repository for PostgreSQL.
type UserRepository struct {
	conn *Connection
}

var _ user.Repository = (*UserRepository)(nil)

// NewUserRepository creates a new UserRepository.
func NewUserRepository(conn *Connection) *UserRepository {
	return &UserRepository{conn: conn}
}

// validID reports whether id can be compared with a UUID column. Anything
// else cannot match a row.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// GetByID returns a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	if !validID(id) {
		return nil, shared.ErrUserNotFound
	}

	query := `
		SELECT id, username, current_level, reputation, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	var u user.User
	err := r.conn.q(ctx).QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Username, &u.CurrentLevel, &u.Reputation, &u.CreatedAt, &u.UpdatedAt,
	)
	if IsNoRows(err) {
		return nil, shared.ErrUserNotFound
	}
	if err != nil {
		return nil, wrap("user", "GetByID", err)
	}
	return &u, nil
}

// AddReputation adds delta to the user's running reputation.
func (r *UserRepository) AddReputation(ctx context.Context, id string, delta int) error {
	if !validID(id) {
		return shared.ErrUserNotFound
	}

	tag, err := r.conn.q(ctx).Exec(ctx, `
		UPDATE users SET reputation = reputation + $2, updated_at = NOW()
		WHERE id = $1
	`, id, delta)
	if err != nil {
		return wrap("user", "AddReputation", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrUserNotFound
	}
	return nil
}

// AdvanceLevel is a compare-and-set from fromLevel to fromLevel+1.
func (r *UserRepository) AdvanceLevel(ctx context.Context, id string, fromLevel int) (bool, error) {
	if !validID(id) {
		return false, shared.ErrUserNotFound
	}

	tag, err := r.conn.q(ctx).Exec(ctx, `
		UPDATE users SET current_level = current_level + 1, updated_at = NOW()
		WHERE id = $1 AND current_level = $2
	`, id, fromLevel)
	if err != nil {
		return false, wrap("user", "AdvanceLevel", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListSkills returns the user's skills in role ordered by name.
func (r *UserRepository) ListSkills(ctx context.Context, userID string, role user.Role, verifiedOnly bool) ([]user.SkillRef, error) {
	refs := make([]user.SkillRef, 0)
	if !validID(userID) {
		return refs, nil
	}

	rows, err := r.conn.q(ctx).Query(ctx, `
		SELECT s.id, s.name
		FROM user_skills us
		JOIN skills s ON s.id = us.skill_id
		WHERE us.user_id = $1 AND us.role = $2 AND ($3 = FALSE OR us.is_verified)
		ORDER BY s.name, s.id
	`, userID, string(role), verifiedOnly)
	if err != nil {
		return nil, wrap("user", "ListSkills", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ref user.SkillRef
		if err := rows.Scan(&ref.SkillID, &ref.SkillName); err != nil {
			return nil, wrap("user", "ListSkills", err)
		}
		refs = append(refs, ref)
	}
	return refs, wrap("user", "ListSkills", rows.Err())
}
