package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/skill-ladder/ladder-hub/internal/domain/matching"
	"github.com/skill-ladder/ladder-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MATCH REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// MatchRepository implements matching.Repository for PostgreSQL. The active
// pair rule is the partial unique index uniq_active_match_pair.
type MatchRepository struct {
	conn *Connection
}

var _ matching.Repository = (*MatchRepository)(nil)

// NewMatchRepository creates a new MatchRepository.
func NewMatchRepository(conn *Connection) *MatchRepository {
	return &MatchRepository{conn: conn}
}

// Create inserts the match in one statement.
func (r *MatchRepository) Create(ctx context.Context, m *matching.Match) error {
	if !validID(m.TeacherID) || !validID(m.LearnerID) || !validID(m.SkillID) {
		return shared.ErrSkillNotFound
	}

	_, err := r.conn.q(ctx).Exec(ctx, `
		INSERT INTO matches (id, teacher_id, learner_id, skill_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, m.ID, m.TeacherID, m.LearnerID, m.SkillID, string(m.Status), m.CreatedAt, m.UpdatedAt)

	switch {
	case err == nil:
		return nil
	case IsUniqueViolation(err):
		return shared.ErrActiveMatchExists
	case IsForeignKeyViolation(err):
		return shared.ErrSkillNotFound
	case isCheckViolation(err):
		return shared.ErrSelfMatch
	default:
		return wrap("match", "Create", err)
	}
}

func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23514"
}

// GetByID returns a match by ID.
func (r *MatchRepository) GetByID(ctx context.Context, id string) (*matching.Match, error) {
	if !validID(id) {
		return nil, shared.ErrMatchNotFound
	}

	var (
		m      matching.Match
		status string
	)
	err := r.conn.q(ctx).QueryRow(ctx, `
		SELECT id, teacher_id, learner_id, skill_id, status, created_at, updated_at
		FROM matches
		WHERE id = $1
	`, id).Scan(&m.ID, &m.TeacherID, &m.LearnerID, &m.SkillID, &status, &m.CreatedAt, &m.UpdatedAt)
	if IsNoRows(err) {
		return nil, shared.ErrMatchNotFound
	}
	if err != nil {
		return nil, wrap("match", "GetByID", err)
	}
	m.Status = matching.Status(status)
	return &m, nil
}

// UpdateStatus writes to only while the row is still in from.
func (r *MatchRepository) UpdateStatus(ctx context.Context, id string, from, to matching.Status, at time.Time) (bool, error) {
	if !validID(id) {
		return false, shared.ErrMatchNotFound
	}

	tag, err := r.conn.q(ctx).Exec(ctx, `
		UPDATE matches SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
	`, id, string(from), string(to), at)
	if IsUniqueViolation(err) {
		return false, shared.ErrActiveMatchExists
	}
	if err != nil {
		return false, wrap("match", "UpdateStatus", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByParticipant returns the user's matches, newest first.
func (r *MatchRepository) ListByParticipant(ctx context.Context, userID string) ([]matching.MatchDetails, error) {
	out := make([]matching.MatchDetails, 0)
	if !validID(userID) {
		return out, nil
	}

	rows, err := r.conn.q(ctx).Query(ctx, `
		SELECT m.id, m.teacher_id, m.learner_id, m.skill_id, m.status, m.created_at, m.updated_at,
		       t.username, l.username, s.name
		FROM matches m
		JOIN users t ON t.id = m.teacher_id
		JOIN users l ON l.id = m.learner_id
		JOIN skills s ON s.id = m.skill_id
		WHERE m.teacher_id = $1 OR m.learner_id = $1
		ORDER BY m.created_at DESC, m.id
	`, userID)
	if err != nil {
		return nil, wrap("match", "ListByParticipant", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			d      matching.MatchDetails
			status string
		)
		if err := rows.Scan(
			&d.ID, &d.TeacherID, &d.LearnerID, &d.SkillID, &status, &d.CreatedAt, &d.UpdatedAt,
			&d.TeacherUsername, &d.LearnerUsername, &d.SkillName,
		); err != nil {
			return nil, wrap("match", "ListByParticipant", err)
		}
		d.Status = matching.Status(status)
		out = append(out, d)
	}
	return out, wrap("match", "ListByParticipant", rows.Err())
}
