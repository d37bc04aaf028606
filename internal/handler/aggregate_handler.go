package handler

import (
	"net/http"

	"github.com/soyoon/studylog/internal/aggregate"
	"github.com/soyoon/studylog/internal/model"
)

// AggregateHandler は集計・ヒートマップのHTTPハンドラー。
type AggregateHandler struct {
	service StudyServiceInterface
	links   LinkChecker
}

// NewAggregateHandler はAggregateHandlerを生成する。
func NewAggregateHandler(service StudyServiceInterface, links LinkChecker) *AggregateHandler {
	return &AggregateHandler{service: service, links: links}
}

// bucketResponse は集計バケット1件のAPIレスポンス。
// rate_percentは計画なし（計画0で実績あり）の場合にnullになる。
type bucketResponse struct {
	Label          string `json:"label"`
	PlannedMinutes int    `json:"planned_minutes"`
	ActualMinutes  int    `json:"actual_minutes"`
	RatePercent    *int   `json:"rate_percent"`
}

// aggregateResponse は集計結果のAPIレスポンス。
type aggregateResponse struct {
	Buckets             []bucketResponse `json:"buckets"`
	TotalPlannedMinutes int              `json:"total_planned_minutes"`
	TotalActualMinutes  int              `json:"total_actual_minutes"`
	OverallRatePercent  *int             `json:"overall_rate_percent"`
	SkippedRecords      int              `json:"skipped_records"`
}

// Aggregate は計画対実績の集計を処理する。
// GET /api/aggregate?scope=day|week|month&date=YYYY-MM-DD&granularity=subject|day|hour
func (h *AggregateHandler) Aggregate(w http.ResponseWriter, r *http.Request) {
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

	granularity := aggregate.GranularitySubject
	if g := r.URL.Query().Get("granularity"); g != "" {
		parsed, ok := aggregate.ParseGranularity(g)
		if !ok {
			handleServiceError(w, model.NewInvalidScopeError(g))
			return
		}
		granularity = parsed
	}

	result, err := h.service.AggregateScope(r.Context(), targetID, scope, granularity)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := aggregateResponse{
		Buckets:             make([]bucketResponse, 0, len(result.Buckets)),
		TotalPlannedMinutes: result.TotalPlannedMinutes,
		TotalActualMinutes:  result.TotalActualMinutes,
		OverallRatePercent:  result.OverallRatePercent,
		SkippedRecords:      result.SkippedRecords,
	}
	for _, b := range result.Buckets {
		resp.Buckets = append(resp.Buckets, bucketResponse{
			Label:          b.Label,
			PlannedMinutes: b.PlannedMinutes,
			ActualMinutes:  b.ActualMinutes,
			RatePercent:    b.RatePercent,
		})
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

// heatmapDayResponse はヒートマップ1日分のAPIレスポンス。
type heatmapDayResponse struct {
	Date         string `json:"date"`
	PlanMinutes  int64  `json:"plan_minutes"`
	TotalMinutes int64  `json:"total_minutes"`
}

// Heatmap は日次累積の範囲取得を処理する。
// GET /api/heatmap?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *AggregateHandler) Heatmap(w http.ResponseWriter, r *http.Request) {
	targetID, err := resolveTargetUser(r, h.links)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	from, err := parseDateKST(r.URL.Query().Get("from"))
	if err != nil {
		handleServiceError(w, model.NewInvalidScopeError(r.URL.Query().Get("from")))
		return
	}
	to, err := parseDateKST(r.URL.Query().Get("to"))
	if err != nil {
		handleServiceError(w, model.NewInvalidScopeError(r.URL.Query().Get("to")))
		return
	}
	if to.Before(from) {
		handleServiceError(w, model.NewInvalidIntervalError())
		return
	}

	days, err := h.service.Heatmap(r.Context(), targetID, from, to)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]heatmapDayResponse, 0, len(days))
	for _, d := range days {
		responses = append(responses, heatmapDayResponse{
			Date:         d.Date.Format("2006-01-02"),
			PlanMinutes:  d.PlanSeconds / 60,
			TotalMinutes: d.TotalSeconds / 60,
		})
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"days": responses})
}
