package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/skill-ladder/ladder-hub/internal/domain/progress"
	"github.com/skill-ladder/ladder-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements progress.Repository for PostgreSQL.
type ProgressRepository struct {
	conn *Connection
}

var _ progress.Repository = (*ProgressRepository)(nil)

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

const progressColumns = `p.id, p.user_id, p.skill_id, sk.name, p.current_stage, p.completion_percentage,
	p.sessions_completed, p.required_sessions_to_advance, p.can_advance_ladder, p.created_at, p.updated_at`

func scanProgress(row pgx.Row) (*progress.Progress, error) {
	var p progress.Progress
	err := row.Scan(
		&p.ID, &p.UserID, &p.SkillID, &p.SkillName, &p.CurrentStage, &p.CompletionPercentage,
		&p.SessionsCompleted, &p.RequiredSessionsToAdvance, &p.CanAdvanceLadder, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// IncrementSessions is a single upsert on (user_id, skill_id).
func (r *ProgressRepository) IncrementSessions(ctx context.Context, userID, skillID string, defaultRequired int) (*progress.Progress, error) {
	if !validID(userID) || !validID(skillID) {
		return nil, shared.ErrProgressSubjectNotFound
	}

	row := r.conn.q(ctx).QueryRow(ctx, `
		WITH p AS (
			INSERT INTO progress (user_id, skill_id, sessions_completed, required_sessions_to_advance, can_advance_ladder)
			VALUES ($1, $2, 1, $3::int, 1 >= $3::int)
			ON CONFLICT (user_id, skill_id) DO UPDATE SET
				sessions_completed = progress.sessions_completed + 1,
				can_advance_ladder = progress.sessions_completed + 1 >= progress.required_sessions_to_advance,
				updated_at = NOW()
			RETURNING *
		)
		SELECT `+progressColumns+`
		FROM p
		JOIN skills sk ON sk.id = p.skill_id
	`, userID, skillID, defaultRequired)

	p, err := scanProgress(row)
	if IsForeignKeyViolation(err) {
		return nil, shared.ErrProgressSubjectNotFound
	}
	if err != nil {
		return nil, wrap("progress", "IncrementSessions", err)
	}
	return p, nil
}

// GetByID returns a progress record by ID.
func (r *ProgressRepository) GetByID(ctx context.Context, id string) (*progress.Progress, error) {
	if !validID(id) {
		return nil, shared.ErrProgressNotFound
	}

	p, err := scanProgress(r.conn.q(ctx).QueryRow(ctx, `
		SELECT `+progressColumns+`
		FROM progress p
		JOIN skills sk ON sk.id = p.skill_id
		WHERE p.id = $1
	`, id))
	if IsNoRows(err) {
		return nil, shared.ErrProgressNotFound
	}
	if err != nil {
		return nil, wrap("progress", "GetByID", err)
	}
	return p, nil
}

// Update stores stage and percentage; counters are never written here.
func (r *ProgressRepository) Update(ctx context.Context, p *progress.Progress) error {
	tag, err := r.conn.q(ctx).Exec(ctx, `
		UPDATE progress SET current_stage = $2, completion_percentage = $3, updated_at = $4
		WHERE id = $1
	`, p.ID, p.CurrentStage, p.CompletionPercentage, p.UpdatedAt)
	if err != nil {
		return wrap("progress", "Update", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrProgressNotFound
	}
	return nil
}

// ListByUser returns the user's progress ordered by skill name.
func (r *ProgressRepository) ListByUser(ctx context.Context, userID string) ([]progress.Progress, error) {
	out := make([]progress.Progress, 0)
	if !validID(userID) {
		return out, nil
	}

	rows, err := r.conn.q(ctx).Query(ctx, `
		SELECT `+progressColumns+`
		FROM progress p
		JOIN skills sk ON sk.id = p.skill_id
		WHERE p.user_id = $1
		ORDER BY sk.name, p.skill_id
	`, userID)
	if err != nil {
		return nil, wrap("progress", "ListByUser", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, wrap("progress", "ListByUser", err)
		}
		out = append(out, *p)
	}
	return out, wrap("progress", "ListByUser", rows.Err())
}

// CountCompleted counts the user's records at 100%.
func (r *ProgressRepository) CountCompleted(ctx context.Context, userID string) (int, error) {
	if !validID(userID) {
		return 0, nil
	}

	var n int
	err := r.conn.q(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM progress WHERE user_id = $1 AND completion_percentage = $2
	`, userID, progress.CompletePercentage).Scan(&n)
	if err != nil {
		return 0, wrap("progress", "CountCompleted", err)
	}
	return n, nil
}
