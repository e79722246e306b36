package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skill-ladder/ladder-hub/internal/application/command"
	"github.com/skill-ladder/ladder-hub/internal/application/query"
	"github.com/skill-ladder/ladder-hub/internal/domain/progress"
	"github.com/skill-ladder/ladder-hub/internal/domain/shared"
	"github.com/skill-ladder/ladder-hub/internal/domain/user"
	"github.com/skill-ladder/ladder-hub/internal/infrastructure/persistence/memory"
	"github.com/skill-ladder/ladder-hub/internal/interface/http/handlers"
	"github.com/skill-ladder/ladder-hub/pkg/logger"
	"github.com/skill-ladder/ladder-hub/pkg/metrics"
)

const testSecret = "test-secret"

type testEnv struct {
	store   *memory.Store
	auth    *Authenticator
	metrics *metrics.Manager
	handler http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s := memory.New()
	s.PutSkill(user.Skill{ID: "go", Name: "Go"})
	s.PutUser(user.User{ID: "A", Username: "ada", CurrentLevel: 1})
	s.PutUser(user.User{ID: "B", Username: "bo", CurrentLevel: 2})
	s.PutUser(user.User{ID: "X", Username: "xena", CurrentLevel: 1})
	s.PutUserSkill(user.UserSkill{UserID: "A", SkillID: "go", Role: user.RoleLearn})
	s.PutUserSkill(user.UserSkill{UserID: "B", SkillID: "go", Role: user.RoleTeach, ProficiencyLevel: 4, IsVerified: true})

	m := metrics.NewManager()
	rule := progress.DefaultLadderRule()
	eval := command.NewEvaluateLadderHandler(s, s.Users(), s.Progress(), rule, m, nil)

	auth := NewAuthenticator(testSecret, "")
	health := handlers.NewCompositeHealthChecker("test")
	health.AddCheck("database", handlers.NewPingCheck(s))

	srv := NewServer(DefaultConfig(), Dependencies{
		GetSuggestions:    query.NewGetSuggestionsHandler(s.Users(), s.Candidates(), nil, m, nil, 10),
		ListUserMatches:   query.NewListUserMatchesHandler(s.Matches()),
		ListUserSessions:  query.NewListUserSessionsHandler(s.Sessions()),
		ListUserProgress:  query.NewListUserProgressHandler(s.Progress()),
		GetLadderStatus:   query.NewGetLadderStatusHandler(s.Users(), s.Progress(), rule),
		CreateMatch:       command.NewCreateMatchHandler(s.Matches(), m, nil),
		UpdateMatchStatus: command.NewUpdateMatchStatusHandler(s.Matches(), true, m, nil),
		CreateSession:     command.NewCreateSessionHandler(s.Matches(), s.Sessions(), nil),
		CompleteSession:   command.NewCompleteSessionHandler(s, s.Sessions(), s.Users(), s.Progress(), eval, nil, command.DefaultSessionPolicy(), m, nil),
		UpdateProgress:    command.NewUpdateProgressHandler(s, s.Progress(), eval, nil, nil),
		Authenticator:     auth,
		Metrics:           m,
		MetricsHandler:    m.Handler(),
		HealthChecker:     health,
		Logger:            logger.Nop(),
	})

	return &testEnv{store: s, auth: auth, metrics: m, handler: srv.Handler()}
}

func (e *testEnv) do(t *testing.T, method, path, caller string, body any) (*httptest.ResponseRecorder, JSONResponse) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if caller != "" {
		token, err := e.auth.IssueToken(caller, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var resp JSONResponse
	if rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func dataField(t *testing.T, resp JSONResponse, key string) any {
	t.Helper()
	m, ok := resp.Data.(map[string]any)
	require.True(t, ok, "data is not an object: %#v", resp.Data)
	return m[key]
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTHENTICATION
// ══════════════════════════════════════════════════════════════════════════════

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t)

	t.Run("missing token", func(t *testing.T) {
		rec, resp := env.do(t, http.MethodGet, "/api/matches/user/A", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "unauthorized", resp.Error.Code)
	})

	t.Run("token signed with another secret", func(t *testing.T) {
		token, err := NewAuthenticator("other", "").IssueToken("A", time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/matches/user/A", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := env.auth.IssueToken("A", -time.Minute)
		require.NoError(t, err)
		_, err = env.auth.Authenticate(token)
		assert.True(t, shared.IsUnauthenticated(err))
	})

	t.Run("issuer is checked when configured", func(t *testing.T) {
		token, err := NewAuthenticator(testSecret, "someone-else").IssueToken("A", time.Hour)
		require.NoError(t, err)
		_, err = NewAuthenticator(testSecret, "ladder").Authenticate(token)
		assert.True(t, shared.IsUnauthenticated(err))
	})

	t.Run("caller id from nested user claim", func(t *testing.T) {
		token, err := env.auth.IssueToken("A", time.Hour)
		require.NoError(t, err)
		id, err := env.auth.Authenticate(token)
		require.NoError(t, err)
		assert.Equal(t, "A", id)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// END TO END FLOW
// ══════════════════════════════════════════════════════════════════════════════

func TestMatchSessionProgressFlow(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, http.MethodPost, "/api/matches", "A", map[string]string{
		"teacher_user_id": "B", "learner_user_id": "A", "skill_id": "go",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.RequestID)
	matchID := dataField(t, resp, "match_id").(string)
	assert.Equal(t, "pending", dataField(t, resp, "status"))

	rec, resp = env.do(t, http.MethodPost, "/api/matches", "B", map[string]string{
		"teacher_id": "A", "learner_id": "B", "skill_id": "go",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", resp.Error.Code)

	rec, _ = env.do(t, http.MethodPut, "/api/matches/"+matchID+"/status", "X", map[string]string{"status": "accepted"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, resp = env.do(t, http.MethodPut, "/api/matches/"+matchID+"/status", "B", map[string]string{"status": "Accepted"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "accepted", dataField(t, resp, "status"))

	rec, resp = env.do(t, http.MethodPost, "/api/sessions", "A", map[string]any{
		"match_id": matchID, "session_date": "2025-05-01T18:00:00Z", "duration_minutes": 60,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sessionID := dataField(t, resp, "session_id").(string)

	rec, resp = env.do(t, http.MethodPut, "/api/sessions/"+sessionID+"/complete", "A", map[string]any{
		"teacher_feedback_rating": 10,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, dataField(t, resp, "first_completion"))

	b, err := env.store.Users().GetByID(context.Background(), "B")
	require.NoError(t, err)
	assert.Equal(t, 10, b.Reputation)

	rec, resp = env.do(t, http.MethodGet, "/api/progress/user/A", "A", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	records, ok := resp.Data.([]any)
	require.True(t, ok)
	require.Len(t, records, 1)
	assert.EqualValues(t, 1, records[0].(map[string]any)["sessions_completed"])
	assert.Equal(t, 1, resp.Meta.TotalCount)

	rec, resp = env.do(t, http.MethodGet, "/api/sessions/user/B", "B", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Data.([]any), 1)

	rec, resp = env.do(t, http.MethodGet, "/api/matches/user/A", "A", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Data.([]any), 1)

	rec, resp = env.do(t, http.MethodGet, "/api/users/A/ladder", "A", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, dataField(t, resp, "current_level"))

	rec, _ = env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `ladder_engine_http_requests_total{method="POST",route="matches.create",status_code="201"} 1`)
	assert.Contains(t, rec.Body.String(), `ladder_engine_matches_created_total 1`)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

func TestErrorMapping(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		caller string
		body   any
		status int
		code   string
	}{
		{"suggestions for someone else", http.MethodGet, "/api/matches/suggestions/B", "A", nil, http.StatusForbidden, "forbidden"},
		{"self match", http.MethodPost, "/api/matches", "A", map[string]string{"teacher_user_id": "A", "learner_user_id": "A", "skill_id": "go"}, http.StatusBadRequest, "validation_error"},
		{"malformed body", http.MethodPost, "/api/matches", "A", "{not json", http.StatusBadRequest, "invalid_request"},
		{"unknown match", http.MethodPut, "/api/matches/nope/status", "A", map[string]string{"status": "accepted"}, http.StatusNotFound, "not_found"},
		{"invalid status", http.MethodPut, "/api/matches/nope/status", "A", map[string]string{"status": "archived"}, http.StatusBadRequest, "validation_error"},
		{"unknown session", http.MethodPut, "/api/sessions/nope/complete", "A", map[string]any{}, http.StatusNotFound, "not_found"},
		{"unknown progress", http.MethodPut, "/api/progress/nope", "A", map[string]any{"completion_percentage": 10}, http.StatusNotFound, "not_found"},
		{"other user's sessions", http.MethodGet, "/api/sessions/user/B", "A", nil, http.StatusForbidden, "forbidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := env.do(t, tt.method, tt.path, tt.caller, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.False(t, resp.Success)
		})
	}
}

type failingUsers struct{ user.Repository }

func (failingUsers) GetByID(context.Context, string) (*user.User, error) {
	return nil, shared.StoreFailure("user", "GetByID", errors.New("connection reset by peer"))
}

func TestStoreFailureIsOpaque(t *testing.T) {
	s := memory.New()
	srv := NewServer(DefaultConfig(), Dependencies{
		GetSuggestions: query.NewGetSuggestionsHandler(failingUsers{}, s.Candidates(), nil, nil, nil, 10),
		Authenticator:  NewAuthenticator(testSecret, ""),
		Logger:         logger.Nop(),
	})
	env := &testEnv{store: s, auth: NewAuthenticator(testSecret, ""), handler: srv.Handler()}

	rec, resp := env.do(t, http.MethodGet, "/api/matches/suggestions/A", "A", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", resp.Error.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, dataField(t, resp, "healthy"))

	rec, _ = env.do(t, http.MethodGet, "/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	defer rl.Stop()

	assert.True(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("1.2.3.4"))
	assert.False(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("5.6.7.8"))
}
