package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/soyoon/studylog/internal/middleware"
	"github.com/soyoon/studylog/internal/model"
	"github.com/soyoon/studylog/internal/study"
)

// SessionHandler は学習記録のHTTPハンドラー。
type SessionHandler struct {
	service StudyServiceInterface
	links   LinkChecker
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(service StudyServiceInterface, links LinkChecker) *SessionHandler {
	return &SessionHandler{service: service, links: links}
}

// createSessionRequest は記録作成リクエストのボディ。
type createSessionRequest struct {
	PlanID      *string   `json:"plan_id"`
	Subject     string    `json:"subject"`
	ActualStart time.Time `json:"actual_start"`
	ActualEnd   time.Time `json:"actual_end"`
	DurationMin *int      `json:"duration_min"`
}

// sessionResponse は記録のAPIレスポンス。
type sessionResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	PlanID      *string   `json:"plan_id"`
	Subject     string    `json:"subject"`
	ActualStart time.Time `json:"actual_start"`
	ActualEnd   time.Time `json:"actual_end"`
	DurationMin int       `json:"duration_min"`
}

func toSessionResponse(s *model.Session) sessionResponse {
	return sessionResponse{
		ID:          s.ID,
		UserID:      s.UserID,
		PlanID:      s.PlanID,
		Subject:     s.Subject,
		ActualStart: s.ActualStart,
		ActualEnd:   s.ActualEnd,
		DurationMin: s.Minutes(),
	}
}

// CreateSession は記録作成を処理する。
// POST /api/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidIntervalError())
		return
	}

	session, err := h.service.CreateSession(r.Context(), userID, study.CreateSessionInput{
		PlanID:      req.PlanID,
		Subject:     req.Subject,
		ActualStart: req.ActualStart,
		ActualEnd:   req.ActualEnd,
		DurationMin: req.DurationMin,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, toSessionResponse(session))
}

// DeleteSession は記録削除を処理する。
// DELETE /api/sessions/{id}
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	role, err := middleware.RoleFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.DeleteSession(r.Context(), userID, role, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListSessions は記録一覧を処理する。
// GET /api/sessions?scope=day|week|month&date=YYYY-MM-DD
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	targetID, err := resolveTargetUser(r, h.links)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	scope, err := scopeFromQuery(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	sessions, err := h.service.ListSessions(r.Context(), targetID, scope)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		responses = append(responses, toSessionResponse(s))
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"sessions": responses})
}
