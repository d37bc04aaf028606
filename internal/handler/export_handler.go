package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/soyoon/studylog/internal/export"
	"github.com/soyoon/studylog/internal/metrics"
	"github.com/soyoon/studylog/internal/model"
)

// ExportServiceInterface はエクスポートハンドラーが必要とするサービスインターフェース。
type ExportServiceInterface interface {
	// ExportSessions は期間内の学習記録のExcelファイルとファイル名を返す。
	ExportSessions(ctx context.Context, userID string, from, to time.Time) (*bytes.Buffer, string, error)
}

// ExportHandler は学習記録エクスポートのHTTPハンドラー。
type ExportHandler struct {
	service   ExportServiceInterface
	links     LinkChecker
	collector metrics.MetricsCollector
}

// NewExportHandler はExportHandlerを生成する。
func NewExportHandler(service ExportServiceInterface, links LinkChecker, collector metrics.MetricsCollector) *ExportHandler {
	return &ExportHandler{service: service, links: links, collector: collector}
}

// ExportSessions は学習記録のExcelエクスポートを処理する。
// GET /api/export/sessions?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *ExportHandler) ExportSessions(w http.ResponseWriter, r *http.Request) {
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

	h.collector.RecordExportRequest()

	// 終端日を含める（toの暦日いっぱいまで）
	buf, filename, err := h.service.ExportSessions(r.Context(), targetID, from, to.AddDate(0, 0, 1))
	if err != nil {
		if errors.Is(err, export.ErrNoSessions) {
			handleServiceError(w, &model.APIError{
				Code:     model.ErrCodeSessionNotFound,
				Message:  "対象期間に学習記録がありません。",
				Category: "session",
				Action:   "期間を変更して再度お試しください。",
			})
			return
		}
		handleServiceError(w, model.NewExportFailedError())
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		// ヘッダー送信後はエラーレスポンスに切り替えられない
		return
	}
}
