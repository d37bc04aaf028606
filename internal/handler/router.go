package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/soyoon/studylog/internal/metrics"
	"github.com/soyoon/studylog/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	JWTSecret         string
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 閲覧権の解決
	Links LinkChecker

	// ドメインサービス
	StudyService   StudyServiceInterface
	SummaryService SummaryServiceInterface
	ExportService  ExportServiceInterface

	// 観測
	Collector metrics.MetricsCollector
	Gatherer  prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → CORS → Auth → RateLimit(General)
//
// /health と /metrics は認証チェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	planHandler := NewPlanHandler(deps.StudyService, deps.Links)
	sessionHandler := NewSessionHandler(deps.StudyService, deps.Links)
	aggregateHandler := NewAggregateHandler(deps.StudyService, deps.Links)
	summaryHandler := NewSummaryHandler(deps.SummaryService, deps.Links)
	exportHandler := NewExportHandler(deps.ExportService, deps.Links, deps.Collector)

	// --- 認証不要のルート ---

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.JWTSecret))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 集計・ヒートマップ
		r.Get("/api/aggregate", aggregateHandler.Aggregate)
		r.Get("/api/heatmap", aggregateHandler.Heatmap)

		// 計画管理
		r.Route("/api/plans", func(r chi.Router) {
			r.Post("/", planHandler.CreatePlan)
			r.Get("/", planHandler.ListPlans)

			r.Route("/{id}", func(r chi.Router) {
				r.Patch("/", planHandler.UpdatePlan)
				r.Delete("/", planHandler.DeletePlan)
			})
		})

		// 記録管理
		r.Route("/api/sessions", func(r chi.Router) {
			r.Post("/", sessionHandler.CreateSession)
			r.Get("/", sessionHandler.ListSessions)
			r.Delete("/{id}", sessionHandler.DeleteSession)
		})

		// 週次要約
		r.Route("/api/summary/weekly", func(r chi.Router) {
			r.Get("/", summaryHandler.GetWeekly)
			r.Get("/history", summaryHandler.ListWeekly)
			r.Post("/{userID}/generate", summaryHandler.GenerateForUser)
		})

		// エクスポート（専用レート制限を追加）
		r.With(deps.RateLimiter.ExportMiddleware()).
			Get("/api/export/sessions", exportHandler.ExportSessions)
	})

	return r
}
