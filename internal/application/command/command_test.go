package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skill-ladder/ladder-hub/internal/application/query"
	"github.com/skill-ladder/ladder-hub/internal/domain/matching"
	"github.com/skill-ladder/ladder-hub/internal/domain/progress"
	"github.com/skill-ladder/ladder-hub/internal/domain/shared"
	"github.com/skill-ladder/ladder-hub/internal/domain/user"
	"github.com/skill-ladder/ladder-hub/internal/infrastructure/persistence/memory"
	"github.com/skill-ladder/ladder-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// FIXTURE
// ══════════════════════════════════════════════════════════════════════════════

type fixture struct {
	store    *memory.Store
	cache    *mapCache
	create   *CreateMatchHandler
	status   *UpdateMatchStatusHandler
	schedule *CreateSessionHandler
	complete *CompleteSessionHandler
	evaluate *EvaluateLadderHandler
	progress *UpdateProgressHandler
}

func newFixture(t *testing.T, enforce bool) *fixture {
	t.Helper()

	s := memory.New()
	s.PutSkill(user.Skill{ID: "go", Name: "Go"})
	s.PutSkill(user.Skill{ID: "sql", Name: "SQL"})
	s.PutUser(user.User{ID: "A", Username: "ada", CurrentLevel: 1})
	s.PutUser(user.User{ID: "B", Username: "bo", CurrentLevel: 2})
	s.PutUser(user.User{ID: "X", Username: "xena", CurrentLevel: 1})

	cache := &mapCache{entries: map[string]*matching.Suggestions{}}
	eval := NewEvaluateLadderHandler(s, s.Users(), s.Progress(), progress.DefaultLadderRule(), nil, nil)
	return &fixture{
		store:    s,
		cache:    cache,
		create:   NewCreateMatchHandler(s.Matches(), nil, nil),
		status:   NewUpdateMatchStatusHandler(s.Matches(), enforce, nil, nil),
		schedule: NewCreateSessionHandler(s.Matches(), s.Sessions(), nil),
		complete: NewCompleteSessionHandler(s, s.Sessions(), s.Users(), s.Progress(), eval, cache, DefaultSessionPolicy(), nil, nil),
		evaluate: eval,
		progress: NewUpdateProgressHandler(s, s.Progress(), eval, cache, nil),
	}
}

type mapCache struct {
	mu      sync.Mutex
	entries map[string]*matching.Suggestions
}

func (c *mapCache) Get(_ context.Context, userID string) (*matching.Suggestions, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sg, ok := c.entries[userID]
	return sg, ok, nil
}

func (c *mapCache) Set(_ context.Context, sg *matching.Suggestions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sg.UserID] = sg
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, ids ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.entries, id)
	}
	return nil
}

func (c *mapCache) has(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[userID]
	return ok
}

// failingProgress fails every session increment with a store error.
type failingProgress struct {
	progress.Repository
}

func (failingProgress) IncrementSessions(context.Context, string, string, int) (*progress.Progress, error) {
	return nil, shared.StoreFailure("progress", "IncrementSessions", errors.New("connection reset by peer"))
}

// acceptedSession creates an accepted match B teaches A Go plus one session.
func (f *fixture) acceptedSession(t *testing.T) (*matching.Match, *matching.Session) {
	t.Helper()
	ctx := context.Background()

	m, err := f.create.Handle(ctx, CreateMatchCommand{RequesterID: "A", TeacherID: "B", LearnerID: "A", SkillID: "go"})
	require.NoError(t, err)
	_, err = f.status.Handle(ctx, UpdateMatchStatusCommand{RequesterID: "B", MatchID: m.ID, Status: "accepted"})
	require.NoError(t, err)

	sess, err := f.schedule.Handle(ctx, CreateSessionCommand{
		RequesterID:     "A",
		MatchID:         m.ID,
		SessionDate:     time.Date(2025, 5, 1, 18, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
	})
	require.NoError(t, err)
	return m, sess
}

func intp(v int) *int { return &v }

// ══════════════════════════════════════════════════════════════════════════════
// MATCH LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

func TestCreateMatch(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	t.Run("self match is a validation error", func(t *testing.T) {
		_, err := f.create.Handle(ctx, CreateMatchCommand{RequesterID: "A", TeacherID: "A", LearnerID: "A", SkillID: "go"})
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("non participant is forbidden", func(t *testing.T) {
		_, err := f.create.Handle(ctx, CreateMatchCommand{RequesterID: "X", TeacherID: "B", LearnerID: "A", SkillID: "go"})
		assert.True(t, shared.IsForbidden(err))
	})

	t.Run("second active match for the pair conflicts", func(t *testing.T) {
		m, err := f.create.Handle(ctx, CreateMatchCommand{RequesterID: "A", TeacherID: "B", LearnerID: "A", SkillID: "go"})
		require.NoError(t, err)
		assert.Equal(t, matching.StatusPending, m.Status)

		_, err = f.create.Handle(ctx, CreateMatchCommand{RequesterID: "B", TeacherID: "A", LearnerID: "B", SkillID: "go"})
		assert.True(t, shared.IsConflict(err))

		_, err = f.create.Handle(ctx, CreateMatchCommand{RequesterID: "B", TeacherID: "B", LearnerID: "A", SkillID: "sql"})
		assert.NoError(t, err, "another skill is a different triple")
	})

	t.Run("unknown skill is not found", func(t *testing.T) {
		_, err := f.create.Handle(ctx, CreateMatchCommand{RequesterID: "A", TeacherID: "X", LearnerID: "A", SkillID: "cobol"})
		assert.True(t, shared.IsNotFound(err))
	})
}

func TestCreateMatch_ConcurrentRequestsYieldOneSuccess(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	const workers = 32
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cmd := CreateMatchCommand{RequesterID: "A", TeacherID: "B", LearnerID: "A", SkillID: "go"}
			if i%2 == 1 {
				cmd = CreateMatchCommand{RequesterID: "B", TeacherID: "A", LearnerID: "B", SkillID: "go"}
			}
			_, err := f.create.Handle(ctx, cmd)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case shared.IsConflict(err):
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)
}

func TestUpdateMatchStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown match is not found", func(t *testing.T) {
		f := newFixture(t, true)
		_, err := f.status.Handle(ctx, UpdateMatchStatusCommand{RequesterID: "A", MatchID: "missing", Status: "accepted"})
		assert.True(t, shared.IsNotFound(err))
	})

	t.Run("non participant is forbidden and nothing is written", func(t *testing.T) {
		f := newFixture(t, true)
		m, err := f.create.Handle(ctx, CreateMatchCommand{RequesterID: "A", TeacherID: "B", LearnerID: "A", SkillID: "go"})
		require.NoError(t, err)

		_, err = f.status.Handle(ctx, UpdateMatchStatusCommand{RequesterID: "X", MatchID: m.ID, Status: "accepted"})
		assert.True(t, shared.IsForbidden(err))

		stored, err := f.store.Matches().GetByID(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, matching.StatusPending, stored.Status)
	})

	t.Run("invalid status values", func(t *testing.T) {
		f := newFixture(t, true)
		for _, st := range []string{"", "pending", "archived"} {
			_, err := f.status.Handle(ctx, UpdateMatchStatusCommand{RequesterID: "A", MatchID: "whatever", Status: st})
			assert.ErrorIs(t, err, shared.ErrInvalidMatchStatus, st)
		}
	})

	t.Run("transition table is enforced", func(t *testing.T) {
		f := newFixture(t, true)
		m, err := f.create.Handle(ctx, CreateMatchCommand{RequesterID: "A", TeacherID: "B", LearnerID: "A", SkillID: "go"})
		require.NoError(t, err)

		_, err = f.status.Handle(ctx, UpdateMatchStatusCommand{RequesterID: "A", MatchID: m.ID, Status: "completed"})
		assert.ErrorIs(t, err, shared.ErrIllegalTransition)

		updated, err := f.status.Handle(ctx, UpdateMatchStatusCommand{RequesterID: "B", MatchID: m.ID, Status: "Accepted"})
		require.NoError(t, err)
		assert.Equal(t, matching.StatusAccepted, updated.Status)

		_, err = f.status.Handle(ctx, UpdateMatchStatusCommand{RequesterID: "B", MatchID: m.ID, Status: "completed"})
		require.NoError(t, err)

		_, err = f.status.Handle(ctx, UpdateMatchStatusCommand{RequesterID: "B", MatchID: m.ID, Status: "cancelled"})
		assert.ErrorIs(t, err, shared.ErrIllegalTransition)
	})

	t.Run("compatibility mode accepts any target", func(t *testing.T) {
		f := newFixture(t, false)
		m, err := f.create.Handle(ctx, CreateMatchCommand{RequesterID: "A", TeacherID: "B", LearnerID: "A", SkillID: "go"})
		require.NoError(t, err)

		_, err = f.status.Handle(ctx, UpdateMatchStatusCommand{RequesterID: "A", MatchID: m.ID, Status: "completed"})
		require.NoError(t, err)

		updated, err := f.status.Handle(ctx, UpdateMatchStatusCommand{RequesterID: "A", MatchID: m.ID, Status: "accepted"})
		require.NoError(t, err)
		assert.Equal(t, matching.StatusAccepted, updated.Status)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSIONS
// ══════════════════════════════════════════════════════════════════════════════

func TestCreateSession(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	m, err := f.create.Handle(ctx, CreateMatchCommand{RequesterID: "A", TeacherID: "B", LearnerID: "A", SkillID: "go"})
	require.NoError(t, err)

	cmd := CreateSessionCommand{RequesterID: "A", MatchID: m.ID, SessionDate: time.Now(), DurationMinutes: 30}

	_, err = f.schedule.Handle(ctx, cmd)
	assert.ErrorIs(t, err, shared.ErrMatchNotAccepted)

	_, err = f.status.Handle(ctx, UpdateMatchStatusCommand{RequesterID: "B", MatchID: m.ID, Status: "accepted"})
	require.NoError(t, err)

	forbidden := cmd
	forbidden.RequesterID = "X"
	_, err = f.schedule.Handle(ctx, forbidden)
	assert.True(t, shared.IsForbidden(err))

	missing := cmd
	missing.MatchID = "nope"
	_, err = f.schedule.Handle(ctx, missing)
	assert.True(t, shared.IsNotFound(err))

	zero := cmd
	zero.DurationMinutes = 0
	_, err = f.schedule.Handle(ctx, zero)
	assert.ErrorIs(t, err, shared.ErrInvalidSessionDuration)

	sess, err := f.schedule.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, matching.SessionStatusScheduled, sess.Status)
}

func TestCompleteSession_RatesTeacherAndCountsLearnerProgress(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	_, sess := f.acceptedSession(t)

	res, err := f.complete.Handle(ctx, CompleteSessionCommand{
		RequesterID:           "A",
		SessionID:             sess.ID,
		TeacherFeedbackRating: intp(10),
	})
	require.NoError(t, err)
	assert.True(t, res.FirstCompletion)
	assert.Equal(t, matching.SessionStatusCompleted, res.Session.Status)
	require.NotNil(t, res.Progress)
	assert.Equal(t, 1, res.Progress.SessionsCompleted)
	assert.Nil(t, res.Ladder)

	b, err := f.store.Users().GetByID(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, 10, b.Reputation)

	list, err := f.store.Progress().ListByUser(ctx, "A")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "go", list[0].SkillID)
	assert.Equal(t, 1, list[0].SessionsCompleted)
	assert.Equal(t, progress.DefaultRequiredSessions, list[0].RequiredSessionsToAdvance)
}

func TestCompleteSession_RecompletionAddsOnlyMissingFeedback(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	_, sess := f.acceptedSession(t)

	_, err := f.complete.Handle(ctx, CompleteSessionCommand{RequesterID: "A", SessionID: sess.ID, TeacherFeedbackRating: intp(7)})
	require.NoError(t, err)

	notes := "follow up on interfaces"
	res, err := f.complete.Handle(ctx, CompleteSessionCommand{RequesterID: "B", SessionID: sess.ID, LearnerFeedbackRating: intp(9), Notes: &notes})
	require.NoError(t, err)
	assert.False(t, res.FirstCompletion)
	assert.Nil(t, res.Progress)
	require.NotNil(t, res.Session.TeacherFeedbackRating)
	assert.Equal(t, 7, *res.Session.TeacherFeedbackRating, "unset fields keep stored values")
	assert.Equal(t, notes, res.Session.Notes)

	a, _ := f.store.Users().GetByID(ctx, "A")
	b, _ := f.store.Users().GetByID(ctx, "B")
	assert.Equal(t, 9, a.Reputation)
	assert.Equal(t, 7, b.Reputation)

	_, err = f.complete.Handle(ctx, CompleteSessionCommand{RequesterID: "A", SessionID: sess.ID, TeacherFeedbackRating: intp(2)})
	assert.True(t, shared.IsConflict(err))

	list, _ := f.store.Progress().ListByUser(ctx, "A")
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].SessionsCompleted)
}

func TestCompleteSession_Rejections(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	_, sess := f.acceptedSession(t)

	_, err := f.complete.Handle(ctx, CompleteSessionCommand{RequesterID: "A", SessionID: "missing"})
	assert.True(t, shared.IsNotFound(err))

	_, err = f.complete.Handle(ctx, CompleteSessionCommand{RequesterID: "X", SessionID: sess.ID})
	assert.True(t, shared.IsForbidden(err))

	_, err = f.complete.Handle(ctx, CompleteSessionCommand{RequesterID: "B", SessionID: sess.ID, TeacherFeedbackRating: intp(10)})
	assert.ErrorIs(t, err, shared.ErrSelfRating)

	_, err = f.complete.Handle(ctx, CompleteSessionCommand{RequesterID: "A", SessionID: sess.ID, TeacherFeedbackRating: intp(11)})
	assert.ErrorIs(t, err, shared.ErrRatingOutOfRange)

	b, _ := f.store.Users().GetByID(ctx, "B")
	assert.Equal(t, 0, b.Reputation)
	list, _ := f.store.Progress().ListByUser(ctx, "A")
	assert.Empty(t, list, "rejected completions write nothing")
}

func TestCompleteSession_ConcurrentCompletionsDoNotLoseIncrements(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	m, _ := f.acceptedSession(t)

	const n = 12
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		sess, err := f.schedule.Handle(ctx, CreateSessionCommand{
			RequesterID:     "B",
			MatchID:         m.ID,
			SessionDate:     time.Date(2025, 6, i+1, 9, 0, 0, 0, time.UTC),
			DurationMinutes: 45,
		})
		require.NoError(t, err)
		ids = append(ids, sess.ID)
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.complete.Handle(ctx, CompleteSessionCommand{RequesterID: "A", SessionID: id, TeacherFeedbackRating: intp(1)})
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	list, _ := f.store.Progress().ListByUser(ctx, "A")
	require.Len(t, list, 1)
	assert.Equal(t, n, list[0].SessionsCompleted)
	b, _ := f.store.Users().GetByID(ctx, "B")
	assert.Equal(t, n, b.Reputation)
}

func TestCompleteSession_StoreFailureRollsBackEveryWrite(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	_, sess := f.acceptedSession(t)

	var logs bytes.Buffer
	eval := NewEvaluateLadderHandler(f.store, f.store.Users(), f.store.Progress(), progress.DefaultLadderRule(), nil, nil)
	h := NewCompleteSessionHandler(
		f.store, f.store.Sessions(), f.store.Users(), failingProgress{f.store.Progress()},
		eval, f.cache, DefaultSessionPolicy(), nil, logger.New(logger.Options{Output: &logs, Level: logger.LevelInfo}),
	)

	_, err := h.Handle(ctx, CompleteSessionCommand{RequesterID: "A", SessionID: sess.ID, TeacherFeedbackRating: intp(8)})
	require.Error(t, err)
	assert.True(t, shared.IsStore(err))
	assert.Contains(t, logs.String(), `"operation":"complete_session"`)

	b, err := f.store.Users().GetByID(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, 0, b.Reputation, "rating is not applied")

	sc, err := f.store.Sessions().GetForUpdate(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, matching.SessionStatusScheduled, sc.Session.Status)
	assert.Nil(t, sc.Session.TeacherFeedbackRating)

	list, err := f.store.Progress().ListByUser(ctx, "A")
	require.NoError(t, err)
	assert.Empty(t, list)

	res, err := f.complete.Handle(ctx, CompleteSessionCommand{RequesterID: "A", SessionID: sess.ID, TeacherFeedbackRating: intp(8)})
	require.NoError(t, err)
	assert.True(t, res.FirstCompletion, "a retry after the failure is still the first completion")
}

func TestCompleteSession_ReachingGoalEvaluatesLadder(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	_, sess := f.acceptedSession(t)

	// A qualifies for level 2 except for the session goal of the Go record.
	f.store.PutUser(user.User{ID: "A", Username: "ada", CurrentLevel: 1, Reputation: 100})
	f.store.PutProgress(progress.Progress{UserID: "A", SkillID: "sql", CompletionPercentage: 100})
	f.store.PutProgress(progress.Progress{UserID: "A", SkillID: "go", CompletionPercentage: 100, SessionsCompleted: 4, RequiredSessionsToAdvance: 5})

	res, err := f.complete.Handle(ctx, CompleteSessionCommand{RequesterID: "B", SessionID: sess.ID})
	require.NoError(t, err)
	require.NotNil(t, res.Ladder)
	assert.True(t, res.Ladder.Advanced)
	assert.Equal(t, 2, res.Ladder.NewLevel)
	assert.True(t, res.Progress.CanAdvanceLadder)

	a, _ := f.store.Users().GetByID(ctx, "A")
	assert.Equal(t, 2, a.CurrentLevel)
}

// ══════════════════════════════════════════════════════════════════════════════
// LADDER
// ══════════════════════════════════════════════════════════════════════════════

func TestEvaluateLadder_IsIdempotent(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	f.store.PutUser(user.User{ID: "C", Username: "cy", CurrentLevel: 2, Reputation: 200})
	for i := 0; i < 4; i++ {
		skill := fmt.Sprintf("s%d", i)
		f.store.PutSkill(user.Skill{ID: skill, Name: skill})
		f.store.PutProgress(progress.Progress{UserID: "C", SkillID: skill, CompletionPercentage: 100})
	}

	res, err := f.evaluate.Handle(ctx, EvaluateLadderCommand{UserID: "C"})
	require.NoError(t, err)
	assert.True(t, res.Advanced)
	assert.Equal(t, 3, res.NewLevel)

	res, err = f.evaluate.Handle(ctx, EvaluateLadderCommand{UserID: "C"})
	require.NoError(t, err)
	assert.False(t, res.Advanced)
	assert.Equal(t, 3, res.PreviousLevel)

	c, _ := f.store.Users().GetByID(ctx, "C")
	assert.Equal(t, 3, c.CurrentLevel)
}

func TestEvaluateLadder_ConcurrentCallsAdvanceOnce(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	f.store.PutUser(user.User{ID: "C", Username: "cy", CurrentLevel: 1, Reputation: 150})
	f.store.PutProgress(progress.Progress{UserID: "C", SkillID: "go", CompletionPercentage: 100})
	f.store.PutProgress(progress.Progress{UserID: "C", SkillID: "sql", CompletionPercentage: 100})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.evaluate.Handle(ctx, EvaluateLadderCommand{UserID: "C"})
		}()
	}
	wg.Wait()

	c, _ := f.store.Users().GetByID(ctx, "C")
	assert.Equal(t, 2, c.CurrentLevel)
}

func TestEvaluateLadder_UnknownUserIsNoop(t *testing.T) {
	f := newFixture(t, true)

	res, err := f.evaluate.Handle(context.Background(), EvaluateLadderCommand{UserID: "ghost"})
	require.NoError(t, err)
	assert.False(t, res.Advanced)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

func TestUpdateProgress(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	f.store.PutUser(user.User{ID: "A", Username: "ada", CurrentLevel: 1, Reputation: 120})
	f.store.PutProgress(progress.Progress{ID: "p-sql", UserID: "A", SkillID: "sql", CompletionPercentage: 100})
	f.store.PutProgress(progress.Progress{ID: "p-go", UserID: "A", SkillID: "go", CompletionPercentage: 60})

	_, err := f.progress.Handle(ctx, UpdateProgressCommand{RequesterID: "B", ProgressID: "p-go", CompletionPercentage: intp(70)})
	assert.ErrorIs(t, err, shared.ErrNotProgressOwner)

	_, err = f.progress.Handle(ctx, UpdateProgressCommand{RequesterID: "A", ProgressID: "missing", CompletionPercentage: intp(70)})
	assert.True(t, shared.IsNotFound(err))

	_, err = f.progress.Handle(ctx, UpdateProgressCommand{RequesterID: "A", ProgressID: "p-go", CompletionPercentage: intp(-1)})
	assert.ErrorIs(t, err, shared.ErrInvalidPercentage)

	stage := "advanced"
	res, err := f.progress.Handle(ctx, UpdateProgressCommand{RequesterID: "A", ProgressID: "p-go", CurrentStage: &stage})
	require.NoError(t, err)
	assert.Equal(t, 60, res.Progress.CompletionPercentage, "unset percentage is kept")
	assert.Equal(t, "advanced", res.Progress.CurrentStage)
	assert.Nil(t, res.Ladder)

	res, err = f.progress.Handle(ctx, UpdateProgressCommand{RequesterID: "A", ProgressID: "p-go", CompletionPercentage: intp(100)})
	require.NoError(t, err)
	require.NotNil(t, res.Ladder)
	assert.True(t, res.Ladder.Advanced)

	a, _ := f.store.Users().GetByID(ctx, "A")
	assert.Equal(t, 2, a.CurrentLevel)
}

func TestUpdateProgress_LevelAdvanceRefreshesSuggestions(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	f.store.PutUser(user.User{ID: "A", Username: "ada", CurrentLevel: 1, Reputation: 120})
	f.store.PutUser(user.User{ID: "B", Username: "bo", CurrentLevel: 1})
	f.store.PutUserSkill(user.UserSkill{UserID: "A", SkillID: "go", Role: user.RoleLearn})
	f.store.PutUserSkill(user.UserSkill{UserID: "B", SkillID: "go", Role: user.RoleTeach, ProficiencyLevel: 3})
	f.store.PutProgress(progress.Progress{ID: "p-sql", UserID: "A", SkillID: "sql", CompletionPercentage: 100})
	f.store.PutProgress(progress.Progress{ID: "p-go", UserID: "A", SkillID: "go", CompletionPercentage: 40})

	suggestions := query.NewGetSuggestionsHandler(f.store.Users(), f.store.Candidates(), f.cache, nil, nil, 0)

	before, err := suggestions.Handle(ctx, query.GetSuggestionsQuery{RequesterID: "A", UserID: "A"})
	require.NoError(t, err)
	assert.Equal(t, 1, before.UserLevel)
	assert.Len(t, before.PotentialTeachers, 1)
	require.True(t, f.cache.has("A"))

	stage := "intermediate"
	_, err = f.progress.Handle(ctx, UpdateProgressCommand{RequesterID: "A", ProgressID: "p-go", CurrentStage: &stage})
	require.NoError(t, err)
	assert.True(t, f.cache.has("A"), "no level change keeps the cached entry")

	res, err := f.progress.Handle(ctx, UpdateProgressCommand{RequesterID: "A", ProgressID: "p-go", CompletionPercentage: intp(100)})
	require.NoError(t, err)
	require.NotNil(t, res.Ladder)
	require.True(t, res.Ladder.Advanced)
	assert.False(t, f.cache.has("A"))

	after, err := suggestions.Handle(ctx, query.GetSuggestionsQuery{RequesterID: "A", UserID: "A"})
	require.NoError(t, err)
	assert.Equal(t, 2, after.UserLevel)
	assert.Empty(t, after.PotentialTeachers, "a level 1 teacher no longer qualifies")
}
