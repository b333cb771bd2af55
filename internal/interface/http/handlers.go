package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/training-hub/training-hub/internal/application/command"
	"github.com/training-hub/training-hub/internal/application/query"
	"github.com/training-hub/training-hub/internal/domain/shared"
	"github.com/training-hub/training-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth reports liveness plus uptime.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": s.Uptime().String(),
	})
}

// handleReady runs every registered dependency check. Any failure makes the
// instance not ready; the per-dependency verdicts are reported either way.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, len(s.deps.HealthChecks))
	ready := true
	for name, check := range s.deps.HealthChecks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, map[string]interface{}{
		"ready":  ready,
		"checks": checks,
	})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// handleEventMetrics exposes event bus counters for debugging.
func (s *Server) handleEventMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.deps.BusMetrics())
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetCampaignProgress returns the derived progress view of one
// enrollment. Unenrolled learners get a valid not-started view, not a 404.
func (s *Server) handleGetCampaignProgress(w http.ResponseWriter, r *http.Request) {
	q := query.GetCampaignProgressQuery{
		CampaignID: r.PathValue("id"),
		UserID:     r.URL.Query().Get("user_id"),
	}
	if q.UserID == "" {
		writeJSONError(w, http.StatusBadRequest, "missing_user_id", "user_id query parameter is required")
		return
	}

	result, err := s.deps.CampaignProgress.Handle(r.Context(), q)
	if err != nil {
		s.writeHandlerError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// moduleFinishedRequest is the completion signal from the player.
type moduleFinishedRequest struct {
	UserID     string    `json:"user_id"`
	CampaignID string    `json:"campaign_id"`
	ModuleID   string    `json:"module_id"`
	Timestamp  time.Time `json:"timestamp,omitempty"`
}

func (s *Server) handleModuleFinished(w http.ResponseWriter, r *http.Request) {
	var req moduleFinishedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	result, err := s.deps.RecordModuleFinished.Handle(r.Context(), command.RecordModuleFinishedCommand{
		UserID:        req.UserID,
		CampaignID:    req.CampaignID,
		ModuleID:      req.ModuleID,
		Timestamp:     req.Timestamp,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeHandlerError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// answerRequest is one accepted quiz answer.
type answerRequest struct {
	UserID     string    `json:"user_id"`
	CampaignID string    `json:"campaign_id"`
	ModuleID   string    `json:"module_id"`
	QuestionID string    `json:"question_id"`
	Timestamp  time.Time `json:"timestamp,omitempty"`
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	result, err := s.deps.RecordAnswer.Handle(r.Context(), command.RecordAnswerCommand{
		UserID:        req.UserID,
		CampaignID:    req.CampaignID,
		ModuleID:      req.ModuleID,
		QuestionID:    req.QuestionID,
		Timestamp:     req.Timestamp,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeHandlerError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// GAMIFICATION
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetUserStats(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.UserStats.Handle(r.Context(), query.GetUserStatsQuery{
		UserID: r.PathValue("id"),
	})
	if err != nil {
		s.writeHandlerError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleGetBadges(w http.ResponseWriter, r *http.Request) {
	earned, err := s.deps.BadgeRepo.EarnedBadges(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeHandlerError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"badges": earned,
		"count":  len(earned),
	})
}

// recalculateBadgesRequest optionally forces past the per-user throttle.
type recalculateBadgesRequest struct {
	SkillLevels map[string]int `json:"skill_levels,omitempty"`
	Force       bool           `json:"force,omitempty"`
}

func (s *Server) handleRecalculateBadges(w http.ResponseWriter, r *http.Request) {
	var req recalculateBadgesRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
			return
		}
	}

	result, err := s.deps.RecalculateBadges.Handle(r.Context(), command.RecalculateBadgesCommand{
		UserID:        r.PathValue("id"),
		SkillLevels:   req.SkillLevels,
		Force:         req.Force,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeHandlerError(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Throttled {
		status = http.StatusAccepted
	}
	writeJSON(w, r, status, result)
}

func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Leaderboard.Handle(r.Context(), query.GetLeaderboardQuery{
		UserID: r.URL.Query().Get("user_id"),
		Limit:  getQueryParamInt(r, "limit", 0),
		Page:   getQueryParamInt(r, "page", 0),
	})
	if err != nil {
		s.writeHandlerError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeHandlerError maps application errors onto HTTP statuses.
func (s *Server) writeHandlerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case shared.IsLoading(err):
		// Not an error state: the snapshot just has not been computed yet.
		// Clients show a loading view and retry.
		w.Header().Set("Retry-After", "1")
		writeJSONError(w, http.StatusServiceUnavailable, "loading", err.Error())
	case shared.IsExternalService(err):
		writeJSONError(w, http.StatusBadGateway, "upstream_unavailable", err.Error())
	case isRequestValidation(err):
		writeJSONError(w, http.StatusBadRequest, "validation_failed", err.Error())
	default:
		s.log.Error("request failed",
			logger.String("path", r.URL.Path),
			logger.String("request_id", getRequestID(r.Context())),
			logger.Err(err),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

// isRequestValidation detects the commands' own field checks, which are
// plain errors rather than the shared taxonomy.
func isRequestValidation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "is required") ||
		strings.Contains(msg, "validation failed") ||
		strings.Contains(msg, "cannot be negative")
}
