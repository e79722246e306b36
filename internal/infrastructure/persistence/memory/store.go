// Package memory implements every repository contract in process memory.
// It backs the application tests and the database.driver=memory mode.
//
// All operations are serialized by one mutex. InTx holds that mutex for the
// whole callback and restores a snapshot when the callback fails, so
// transactions are serializable and atomic.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skill-ladder/ladder-hub/internal/domain/matching"
	"github.com/skill-ladder/ladder-hub/internal/domain/progress"
	"github.com/skill-ladder/ladder-hub/internal/domain/user"
)

type txKey struct{}

// state is everything a transaction may need to roll back.
type state struct {
	users      map[string]user.User
	skills     map[string]user.Skill
	userSkills map[string]user.UserSkill
	matches    map[string]matching.Match
	sessions   map[string]matching.Session
	progress   map[string]progress.Progress
}

func newState() *state {
	return &state{
		users:      make(map[string]user.User),
		skills:     make(map[string]user.Skill),
		userSkills: make(map[string]user.UserSkill),
		matches:    make(map[string]matching.Match),
		sessions:   make(map[string]matching.Session),
		progress:   make(map[string]progress.Progress),
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.skills {
		c.skills[k] = v
	}
	for k, v := range st.userSkills {
		c.userSkills[k] = v
	}
	for k, v := range st.matches {
		c.matches[k] = v
	}
	for k, v := range st.sessions {
		c.sessions[k] = copySession(v)
	}
	for k, v := range st.progress {
		c.progress[k] = v
	}
	return c
}

func copySession(s matching.Session) matching.Session {
	if s.TeacherFeedbackRating != nil {
		v := *s.TeacherFeedbackRating
		s.TeacherFeedbackRating = &v
	}
	if s.LearnerFeedbackRating != nil {
		v := *s.LearnerFeedbackRating
		s.LearnerFeedbackRating = &v
	}
	return s
}

// Store is the in-memory database.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		st:  newState(),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// InTx implements shared.Transactor.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	defer func() {
		if p := recover(); p != nil {
			s.st = snapshot
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.st = snapshot
	}
	return err
}

// Ping reports ctx cancellation; the store itself is always available.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// lock acquires the store mutex unless ctx already runs inside InTx.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// ─────────────────────────────────────────────────────────────────────────────
// Seeding
// ─────────────────────────────────────────────────────────────────────────────

// PutUser inserts or replaces a user. Level defaults to user.MinLevel.
func (s *Store) PutUser(u user.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.CurrentLevel < user.MinLevel {
		u.CurrentLevel = user.MinLevel
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
		u.UpdatedAt = u.CreatedAt
	}
	s.st.users[u.ID] = u
}

// PutSkill inserts or replaces a skill.
func (s *Store) PutSkill(sk user.Skill) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.skills[sk.ID] = sk
}

// PutUserSkill inserts a user skill, replacing any record for the same
// (user, skill, role).
func (s *Store) PutUserSkill(us user.UserSkill) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.st.userSkills {
		if existing.UserID == us.UserID && existing.SkillID == us.SkillID && existing.Role == us.Role {
			delete(s.st.userSkills, id)
		}
	}
	if us.ID == "" {
		us.ID = uuid.NewString()
	}
	s.st.userSkills[us.ID] = us
}

// PutProgress inserts or replaces a progress record.
func (s *Store) PutProgress(p progress.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	for id, existing := range s.st.progress {
		if existing.UserID == p.UserID && existing.SkillID == p.SkillID {
			delete(s.st.progress, id)
		}
	}
	s.st.progress[p.ID] = p
}

// ─────────────────────────────────────────────────────────────────────────────
// Repository views
// ─────────────────────────────────────────────────────────────────────────────

// Users returns the user repository view.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// Matches returns the match repository view.
func (s *Store) Matches() *MatchRepository { return &MatchRepository{s: s} }

// Sessions returns the session repository view.
func (s *Store) Sessions() *SessionRepository { return &SessionRepository{s: s} }

// Candidates returns the suggestion candidate finder.
func (s *Store) Candidates() *CandidateFinder { return &CandidateFinder{s: s} }

// Progress returns the progress repository view.
func (s *Store) Progress() *ProgressRepository { return &ProgressRepository{s: s} }
