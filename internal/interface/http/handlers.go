package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/skill-ladder/ladder-hub/internal/application/command"
	"github.com/skill-ladder/ladder-hub/internal/application/query"
	"github.com/skill-ladder/ladder-hub/internal/domain/shared"
	"github.com/skill-ladder/ladder-hub/pkg/logger"
)

const maxBodyBytes = 1 << 20

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"name":    "Skill Ladder Hub API",
		"version": s.config.Version,
		"endpoints": map[string]string{
			"health":   "/health",
			"matches":  "/api/matches",
			"sessions": "/api/sessions",
			"progress": "/api/progress",
		},
	})
}

// handleHealth reports store and cache reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, r, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, r, http.StatusOK, status)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": s.config.Version,
	})
}

// handleLive handles the liveness probe endpoint.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// MATCH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetSuggestions handles GET /api/matches/suggestions/{userId}
func (s *Server) handleGetSuggestions(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.GetSuggestions.Handle(r.Context(), query.GetSuggestionsQuery{
		RequesterID: callerID(r.Context()),
		UserID:      r.PathValue("userId"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

type createMatchRequest struct {
	TeacherUserID string `json:"teacher_user_id"`
	LearnerUserID string `json:"learner_user_id"`
	TeacherID     string `json:"teacher_id"`
	LearnerID     string `json:"learner_id"`
	SkillID       string `json:"skill_id"`
}

// handleCreateMatch handles POST /api/matches
func (s *Server) handleCreateMatch(w http.ResponseWriter, r *http.Request) {
	var req createMatchRequest
	if !s.decode(w, r, &req) {
		return
	}

	m, err := s.deps.CreateMatch.Handle(r.Context(), command.CreateMatchCommand{
		RequesterID: callerID(r.Context()),
		TeacherID:   firstNonEmpty(req.TeacherUserID, req.TeacherID),
		LearnerID:   firstNonEmpty(req.LearnerUserID, req.LearnerID),
		SkillID:     req.SkillID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, m)
}

// handleListMatches handles GET /api/matches/user/{userId}
func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := s.deps.ListUserMatches.Handle(r.Context(), s.listQuery(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, matches, &ResponseMeta{TotalCount: len(matches)})
}

type updateMatchStatusRequest struct {
	Status string `json:"status"`
}

// handleUpdateMatchStatus handles PUT /api/matches/{matchId}/status
func (s *Server) handleUpdateMatchStatus(w http.ResponseWriter, r *http.Request) {
	var req updateMatchStatusRequest
	if !s.decode(w, r, &req) {
		return
	}

	m, err := s.deps.UpdateMatchStatus.Handle(r.Context(), command.UpdateMatchStatusCommand{
		RequesterID: callerID(r.Context()),
		MatchID:     r.PathValue("matchId"),
		Status:      req.Status,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, m)
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type createSessionRequest struct {
	MatchID         string    `json:"match_id"`
	SessionDate     time.Time `json:"session_date"`
	DurationMinutes int       `json:"duration_minutes"`
	Notes           string    `json:"notes"`
}

// handleCreateSession handles POST /api/sessions
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !s.decode(w, r, &req) {
		return
	}

	session, err := s.deps.CreateSession.Handle(r.Context(), command.CreateSessionCommand{
		RequesterID:     callerID(r.Context()),
		MatchID:         req.MatchID,
		SessionDate:     req.SessionDate,
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, session)
}

type completeSessionRequest struct {
	TeacherFeedbackRating *int    `json:"teacher_feedback_rating"`
	LearnerFeedbackRating *int    `json:"learner_feedback_rating"`
	Notes                 *string `json:"notes"`
}

// handleCompleteSession handles PUT /api/sessions/{sessionId}/complete
func (s *Server) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	var req completeSessionRequest
	if !s.decode(w, r, &req) {
		return
	}

	result, err := s.deps.CompleteSession.Handle(r.Context(), command.CompleteSessionCommand{
		RequesterID:           callerID(r.Context()),
		SessionID:             r.PathValue("sessionId"),
		TeacherFeedbackRating: req.TeacherFeedbackRating,
		LearnerFeedbackRating: req.LearnerFeedbackRating,
		Notes:                 req.Notes,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleListSessions handles GET /api/sessions/user/{userId}
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.deps.ListUserSessions.Handle(r.Context(), s.listQuery(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, sessions, &ResponseMeta{TotalCount: len(sessions)})
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS & LADDER HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListProgress handles GET /api/progress/user/{userId}
func (s *Server) handleListProgress(w http.ResponseWriter, r *http.Request) {
	records, err := s.deps.ListUserProgress.Handle(r.Context(), s.listQuery(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, records, &ResponseMeta{TotalCount: len(records)})
}

type updateProgressRequest struct {
	CurrentStage         *string `json:"current_stage"`
	CompletionPercentage *int    `json:"completion_percentage"`
}

// handleUpdateProgress handles PUT /api/progress/{progressId}
func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	var req updateProgressRequest
	if !s.decode(w, r, &req) {
		return
	}

	result, err := s.deps.UpdateProgress.Handle(r.Context(), command.UpdateProgressCommand{
		RequesterID:          callerID(r.Context()),
		ProgressID:           r.PathValue("progressId"),
		CurrentStage:         req.CurrentStage,
		CompletionPercentage: req.CompletionPercentage,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleGetLadderStatus handles GET /api/users/{userId}/ladder
func (s *Server) handleGetLadderStatus(w http.ResponseWriter, r *http.Request) {
	standing, err := s.deps.GetLadderStatus.Handle(r.Context(), s.listQuery(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, standing)
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST & ERROR HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) listQuery(r *http.Request) query.ListUserQuery {
	return query.ListUserQuery{
		RequesterID: callerID(r.Context()),
		UserID:      r.PathValue("userId"),
	}
}

// decode reads a JSON body into dst. On failure it writes a 400 and
// returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeJSONErrorWithDetails(w, r, http.StatusBadRequest, "invalid_request", "Request body is not valid JSON", err.Error())
	return false
}

// writeError maps err onto the error taxonomy. Store and unknown failures
// are logged with their cause and reported as an opaque 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	log := s.logger.With(
		logger.String("request_id", getRequestID(r.Context())),
		logger.String("path", r.URL.Path),
	)

	if status == http.StatusInternalServerError {
		log.Error("request failed", logger.Err(err))
		writeJSONError(w, r, status, code, "An unexpected error occurred")
		return
	}

	log.Debug("request rejected", logger.Int("status", status), logger.Err(err))
	msg := shared.UserMessage(err)
	if msg == "" {
		msg = http.StatusText(status)
	}
	writeJSONError(w, r, status, code, msg)
}

func statusFor(err error) (int, string) {
	switch {
	case shared.IsValidation(err):
		return http.StatusBadRequest, "validation_error"
	case shared.IsUnauthenticated(err):
		return http.StatusUnauthorized, "unauthorized"
	case shared.IsForbidden(err):
		return http.StatusForbidden, "forbidden"
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case shared.IsConflict(err):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
