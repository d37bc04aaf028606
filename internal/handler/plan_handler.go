package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/soyoon/studylog/internal/aggregate"
	"github.com/soyoon/studylog/internal/middleware"
	"github.com/soyoon/studylog/internal/model"
	"github.com/soyoon/studylog/internal/study"
)

// StudyServiceInterface は計画・記録ハンドラーが必要とするサービスインターフェース。
type StudyServiceInterface interface {
	CreatePlan(ctx context.Context, userID string, input study.CreatePlanInput) (*model.Plan, error)
	UpdatePlan(ctx context.Context, actorID string, actorRole model.Role, planID string, input study.UpdatePlanInput) (*model.Plan, error)
	DeletePlan(ctx context.Context, actorID string, actorRole model.Role, planID string) error
	ListPlans(ctx context.Context, userID string, scope aggregate.Scope) ([]*model.Plan, error)
	CreateSession(ctx context.Context, userID string, input study.CreateSessionInput) (*model.Session, error)
	DeleteSession(ctx context.Context, actorID string, actorRole model.Role, sessionID string) error
	ListSessions(ctx context.Context, userID string, scope aggregate.Scope) ([]*model.Session, error)
	AggregateScope(ctx context.Context, userID string, scope aggregate.Scope, granularity aggregate.Granularity) (*aggregate.Result, error)
	Heatmap(ctx context.Context, userID string, from, to time.Time) ([]*model.StudyDay, error)
}

// PlanHandler は学習計画のHTTPハンドラー。
type PlanHandler struct {
	service StudyServiceInterface
	links   LinkChecker
}

// NewPlanHandler はPlanHandlerを生成する。
func NewPlanHandler(service StudyServiceInterface, links LinkChecker) *PlanHandler {
	return &PlanHandler{service: service, links: links}
}

// createPlanRequest は計画作成リクエストのボディ。
type createPlanRequest struct {
	Subject string    `json:"subject"`
	Area    string    `json:"area"`
	Content string    `json:"content"`
	Memo    string    `json:"memo"`
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
}

// updatePlanRequest は計画部分更新リクエストのボディ。nilのフィールドは変更しない。
type updatePlanRequest struct {
	Subject *string    `json:"subject"`
	Area    *string    `json:"area"`
	Content *string    `json:"content"`
	Memo    *string    `json:"memo"`
	StartAt *time.Time `json:"start_at"`
	EndAt   *time.Time `json:"end_at"`
}

// planResponse は計画のAPIレスポンス。
type planResponse struct {
	ID      string    `json:"id"`
	UserID  string    `json:"user_id"`
	Subject string    `json:"subject"`
	Area    string    `json:"area"`
	Content string    `json:"content"`
	Memo    string    `json:"memo"`
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
}

func toPlanResponse(p *model.Plan) planResponse {
	return planResponse{
		ID:      p.ID,
		UserID:  p.UserID,
		Subject: p.Subject,
		Area:    p.Area,
		Content: p.Content,
		Memo:    p.Memo,
		StartAt: p.StartAt,
		EndAt:   p.EndAt,
	}
}

// CreatePlan は計画作成を処理する。
// POST /api/plans
func (h *PlanHandler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req createPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidIntervalError())
		return
	}

	plan, err := h.service.CreatePlan(r.Context(), userID, study.CreatePlanInput{
		Subject: req.Subject,
		Area:    req.Area,
		Content: req.Content,
		Memo:    req.Memo,
		StartAt: req.StartAt,
		EndAt:   req.EndAt,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, toPlanResponse(plan))
}

// UpdatePlan は計画の部分更新を処理する。
// PATCH /api/plans/{id}
func (h *PlanHandler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
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

	var req updatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidIntervalError())
		return
	}

	plan, err := h.service.UpdatePlan(r.Context(), userID, role, chi.URLParam(r, "id"), study.UpdatePlanInput{
		Subject: req.Subject,
		Area:    req.Area,
		Content: req.Content,
		Memo:    req.Memo,
		StartAt: req.StartAt,
		EndAt:   req.EndAt,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toPlanResponse(plan))
}

// DeletePlan は計画削除を処理する。
// DELETE /api/plans/{id}
func (h *PlanHandler) DeletePlan(w http.ResponseWriter, r *http.Request) {
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

	if err := h.service.DeletePlan(r.Context(), userID, role, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListPlans は計画一覧を処理する。閲覧対象はuser_idクエリで指定できる
// （閲覧権はresolveTargetUserの規則に従う）。
// GET /api/plans?scope=day|week|month&date=YYYY-MM-DD
func (h *PlanHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
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

	plans, err := h.service.ListPlans(r.Context(), targetID, scope)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]planResponse, 0, len(plans))
	for _, p := range plans {
		responses = append(responses, toPlanResponse(p))
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"plans": responses})
}

// scopeFromQuery はscope/dateクエリから集計スコープを解決する。
// scope未指定はweek、date未指定は現在時刻を基準にする。
func scopeFromQuery(r *http.Request) (aggregate.Scope, error) {
	base := time.Now()
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		parsed, err := parseDateKST(dateStr)
		if err != nil {
			return aggregate.Scope{}, model.NewInvalidScopeError(dateStr)
		}
		base = parsed
	}

	scopeName := r.URL.Query().Get("scope")
	switch scopeName {
	case "day":
		return aggregate.DayScope(base), nil
	case "week", "":
		return aggregate.WeekScope(base), nil
	case "month":
		return aggregate.MonthScope(base), nil
	default:
		return aggregate.Scope{}, model.NewInvalidScopeError(scopeName)
	}
}
