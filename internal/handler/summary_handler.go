package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/soyoon/studylog/internal/aggregate"
	"github.com/soyoon/studylog/internal/middleware"
	"github.com/soyoon/studylog/internal/model"
)

// SummaryServiceInterface は週次要約ハンドラーが必要とするサービスインターフェース。
type SummaryServiceInterface interface {
	// GetOrGenerate はDONEの要約があればそれを返し、なければその場で生成する。
	GetOrGenerate(ctx context.Context, userID string, week aggregate.Scope) (model.SummaryState, *model.WeeklySummary, error)
	// Generate は指定週の要約を生成する。既存DONEは再生成しない。
	Generate(ctx context.Context, userID string, week aggregate.Scope) (model.SummaryState, *model.WeeklySummary, error)
	// ListRecent はユーザーの要約を新しい週から順に最大limit件返す。
	ListRecent(ctx context.Context, userID string, limit int) ([]*model.WeeklySummary, error)
}

// SummaryHandler は週次要約のHTTPハンドラー。
type SummaryHandler struct {
	service SummaryServiceInterface
	links   LinkChecker
}

// NewSummaryHandler はSummaryHandlerを生成する。
func NewSummaryHandler(service SummaryServiceInterface, links LinkChecker) *SummaryHandler {
	return &SummaryHandler{service: service, links: links}
}

// summaryResponse は週次要約のAPIレスポンス。
// stateがdone以外のときsummaryはnullになる。
type summaryResponse struct {
	State   model.SummaryState `json:"state"`
	Summary *summaryBody       `json:"summary"`
}

type summaryBody struct {
	UserID    string `json:"user_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Status    string `json:"status"`
	Summary   string `json:"summary"`
}

func toSummaryBody(s *model.WeeklySummary) *summaryBody {
	if s == nil {
		return nil
	}
	return &summaryBody{
		UserID:    s.UserID,
		StartDate: s.StartDate.In(aggregate.LocationKST).Format("2006-01-02"),
		EndDate:   s.EndDate.In(aggregate.LocationKST).Format("2006-01-02"),
		Status:    string(s.Status),
		Summary:   s.Summary,
	}
}

// weekFromQuery はweek_startクエリから対象週を解決する。
// 未指定の場合は直前の完了したISO週を対象にする。
func weekFromQuery(r *http.Request) (aggregate.Scope, error) {
	weekStart := r.URL.Query().Get("week_start")
	if weekStart == "" {
		return aggregate.PreviousWeekScope(time.Now()), nil
	}
	parsed, err := parseDateKST(weekStart)
	if err != nil {
		return aggregate.Scope{}, model.NewInvalidScopeError(weekStart)
	}
	return aggregate.WeekScope(parsed), nil
}

// GetWeekly は週次要約の取得を処理する。DONEの要約がなければその場で生成する。
// GET /api/summary/weekly?week_start=YYYY-MM-DD
func (h *SummaryHandler) GetWeekly(w http.ResponseWriter, r *http.Request) {
	targetID, err := resolveTargetUser(r, h.links)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	week, err := weekFromQuery(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	state, summary, err := h.service.GetOrGenerate(r.Context(), targetID, week)
	if err != nil {
		if state == model.SummaryStateFailed {
			handleServiceError(w, model.NewGenerationFailedError())
			return
		}
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, summaryResponse{
		State:   state,
		Summary: toSummaryBody(summary),
	})
}

// GenerateForUser は指定ユーザーの要約を手動生成する。管理者専用。
// POST /api/summary/weekly/{userID}/generate
func (h *SummaryHandler) GenerateForUser(w http.ResponseWriter, r *http.Request) {
	role, err := middleware.RoleFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	targetID := chi.URLParam(r, "userID")
	if role != model.RoleAdmin {
		middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError(targetID))
		return
	}

	week, err := weekFromQuery(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	state, summary, err := h.service.Generate(r.Context(), targetID, week)
	if err != nil {
		if state == model.SummaryStateFailed {
			handleServiceError(w, model.NewGenerationFailedError())
			return
		}
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, summaryResponse{
		State:   state,
		Summary: toSummaryBody(summary),
	})
}

// ListWeekly は週次要約の履歴一覧を処理する。
// GET /api/summary/weekly/history
func (h *SummaryHandler) ListWeekly(w http.ResponseWriter, r *http.Request) {
	targetID, err := resolveTargetUser(r, h.links)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	const historyLimit = 12
	summaries, err := h.service.ListRecent(r.Context(), targetID, historyLimit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]*summaryBody, 0, len(summaries))
	for _, s := range summaries {
		responses = append(responses, toSummaryBody(s))
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"summaries": responses})
}
