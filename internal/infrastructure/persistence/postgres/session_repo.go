package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/skill-ladder/ladder-hub/internal/domain/matching"
	"github.com/skill-ladder/ladder-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// SessionRepository implements matching.SessionRepository for PostgreSQL.
type SessionRepository struct {
	conn *Connection
}

var _ matching.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(conn *Connection) *SessionRepository {
	return &SessionRepository{conn: conn}
}

const sessionColumns = `s.id, s.match_id, s.session_date, s.duration_minutes, s.notes, s.status,
	s.teacher_feedback_rating, s.learner_feedback_rating, s.created_at, s.updated_at`

func scanSession(row pgx.Row, s *matching.Session, extra ...any) error {
	var status string
	dest := append([]any{
		&s.ID, &s.MatchID, &s.SessionDate, &s.DurationMinutes, &s.Notes, &status,
		&s.TeacherFeedbackRating, &s.LearnerFeedbackRating, &s.CreatedAt, &s.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return err
	}
	s.Status = matching.SessionStatus(status)
	return nil
}

// Create inserts a scheduled session.
func (r *SessionRepository) Create(ctx context.Context, s *matching.Session) error {
	_, err := r.conn.q(ctx).Exec(ctx, `
		INSERT INTO sessions (id, match_id, session_date, duration_minutes, notes, status,
			teacher_feedback_rating, learner_feedback_rating, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, s.ID, s.MatchID, s.SessionDate, s.DurationMinutes, s.Notes, string(s.Status),
		s.TeacherFeedbackRating, s.LearnerFeedbackRating, s.CreatedAt, s.UpdatedAt)
	if IsForeignKeyViolation(err) {
		return shared.ErrMatchNotFound
	}
	return wrap("session", "Create", err)
}

// GetForUpdate loads the session with its match and locks the session row
// for the rest of the transaction.
func (r *SessionRepository) GetForUpdate(ctx context.Context, id string) (*matching.SessionContext, error) {
	if !validID(id) {
		return nil, shared.ErrSessionNotFound
	}

	var sc matching.SessionContext
	row := r.conn.q(ctx).QueryRow(ctx, `
		SELECT `+sessionColumns+`, m.teacher_id, m.learner_id, m.skill_id
		FROM sessions s
		JOIN matches m ON m.id = s.match_id
		WHERE s.id = $1
		FOR UPDATE OF s
	`, id)
	err := scanSession(row, &sc.Session, &sc.TeacherID, &sc.LearnerID, &sc.SkillID)
	if IsNoRows(err) {
		return nil, shared.ErrSessionNotFound
	}
	if err != nil {
		return nil, wrap("session", "GetForUpdate", err)
	}
	return &sc, nil
}

// Update stores status, notes and feedback of s.
func (r *SessionRepository) Update(ctx context.Context, s *matching.Session) error {
	tag, err := r.conn.q(ctx).Exec(ctx, `
		UPDATE sessions SET
			status = $2,
			notes = $3,
			teacher_feedback_rating = $4,
			learner_feedback_rating = $5,
			updated_at = $6
		WHERE id = $1
	`, s.ID, string(s.Status), s.Notes, s.TeacherFeedbackRating, s.LearnerFeedbackRating, s.UpdatedAt)
	if err != nil {
		return wrap("session", "Update", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrSessionNotFound
	}
	return nil
}

// ListByParticipant returns sessions of the user's matches, latest first.
func (r *SessionRepository) ListByParticipant(ctx context.Context, userID string) ([]matching.SessionDetails, error) {
	out := make([]matching.SessionDetails, 0)
	if !validID(userID) {
		return out, nil
	}

	rows, err := r.conn.q(ctx).Query(ctx, `
		SELECT `+sessionColumns+`, t.username, l.username, sk.name
		FROM sessions s
		JOIN matches m ON m.id = s.match_id
		JOIN users t ON t.id = m.teacher_id
		JOIN users l ON l.id = m.learner_id
		JOIN skills sk ON sk.id = m.skill_id
		WHERE m.teacher_id = $1 OR m.learner_id = $1
		ORDER BY s.session_date DESC, s.id
	`, userID)
	if err != nil {
		return nil, wrap("session", "ListByParticipant", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d matching.SessionDetails
		if err := scanSession(rows, &d.Session, &d.TeacherUsername, &d.LearnerUsername, &d.SkillName); err != nil {
			return nil, wrap("session", "ListByParticipant", err)
		}
		out = append(out, d)
	}
	return out, wrap("session", "ListByParticipant", rows.Err())
}
