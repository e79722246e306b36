package matching

import (
	"time"

	"github.com/skill-ladder/ladder-hub/internal/domain/shared"
)

// SessionStatus is the state of a single teaching session.
type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "scheduled"
	SessionStatusCompleted SessionStatus = "completed"
)

// Session is one meeting within an accepted match.
//
// TeacherFeedbackRating is given by the learner and feeds the teacher's
// reputation; LearnerFeedbackRating is given by the teacher and feeds the
// learner's reputation. Both stay nil until supplied.
type Session struct {
	ID                    string        `json:"session_id"`
	MatchID               string        `json:"match_id"`
	SessionDate           time.Time     `json:"session_date"`
	DurationMinutes       int           `json:"duration_minutes"`
	Notes                 string        `json:"notes"`
	Status                SessionStatus `json:"status"`
	TeacherFeedbackRating *int          `json:"teacher_feedback_rating"`
	LearnerFeedbackRating *int          `json:"learner_feedback_rating"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
}

// NewSessionParams holds the input of NewSession.
type NewSessionParams struct {
	ID              string
	MatchID         string
	SessionDate     time.Time
	DurationMinutes int
	Notes           string
	Now             time.Time
}

// NewSession validates params and returns a scheduled session.
func NewSession(p NewSessionParams) (*Session, error) {
	if p.SessionDate.IsZero() {
		return nil, shared.ErrInvalidSessionDate
	}
	if p.DurationMinutes <= 0 {
		return nil, shared.ErrInvalidSessionDuration
	}
	return &Session{
		ID:              p.ID,
		MatchID:         p.MatchID,
		SessionDate:     p.SessionDate.UTC(),
		DurationMinutes: p.DurationMinutes,
		Notes:           p.Notes,
		Status:          SessionStatusScheduled,
		CreatedAt:       p.Now,
		UpdatedAt:       p.Now,
	}, nil
}

// Completion carries the optional fields of a completion request. Nil fields
// leave the stored values untouched.
type Completion struct {
	TeacherFeedbackRating *int
	LearnerFeedbackRating *int
	Notes                 *string
}

// CompletionOutcome tells the caller which side effects a completion needs.
type CompletionOutcome struct {
	// FirstCompletion is true when the session moved from scheduled to
	// completed with this call.
	FirstCompletion bool

	// TeacherReputationDelta is the rating newly recorded for the teacher.
	TeacherReputationDelta int

	// LearnerReputationDelta is the rating newly recorded for the learner.
	LearnerReputationDelta int
}

// Complete marks the session completed and records supplied feedback.
// Ratings must lie in 1..maxRating. A rating already recorded may be
// re-supplied with the same value (ignored) but never changed.
func (s *Session) Complete(c Completion, maxRating int, now time.Time) (CompletionOutcome, error) {
	var out CompletionOutcome

	for _, r := range []*int{c.TeacherFeedbackRating, c.LearnerFeedbackRating} {
		if r != nil && (*r < 1 || *r > maxRating) {
			return out, shared.ErrRatingOutOfRange
		}
	}

	teacherNew, err := newRating(s.TeacherFeedbackRating, c.TeacherFeedbackRating)
	if err != nil {
		return out, err
	}
	learnerNew, err := newRating(s.LearnerFeedbackRating, c.LearnerFeedbackRating)
	if err != nil {
		return out, err
	}

	if teacherNew {
		v := *c.TeacherFeedbackRating
		s.TeacherFeedbackRating = &v
		out.TeacherReputationDelta = v
	}
	if learnerNew {
		v := *c.LearnerFeedbackRating
		s.LearnerFeedbackRating = &v
		out.LearnerReputationDelta = v
	}
	if c.Notes != nil {
		s.Notes = *c.Notes
	}

	out.FirstCompletion = s.Status != SessionStatusCompleted
	s.Status = SessionStatusCompleted
	s.UpdatedAt = now
	return out, nil
}

// newRating reports whether supplied should be recorded over stored.
func newRating(stored, supplied *int) (bool, error) {
	if supplied == nil {
		return false, nil
	}
	if stored == nil {
		return true, nil
	}
	if *stored == *supplied {
		return false, nil
	}
	return false, shared.ErrFeedbackAlreadyRecorded
}

// SessionContext is a session together with the participants and skill of
// its match.
type SessionContext struct {
	Session   Session
	TeacherID string
	LearnerID string
	SkillID   string
}

// IsParticipant reports whether userID is the teacher or the learner.
func (sc *SessionContext) IsParticipant(userID string) bool {
	return userID != "" && (userID == sc.TeacherID || userID == sc.LearnerID)
}

// SessionDetails is a session enriched with match data for listings.
type SessionDetails struct {
	Session
	TeacherUsername string `json:"teacher_username"`
	LearnerUsername string `json:"learner_username"`
	SkillName       string `json:"skill_name"`
}
