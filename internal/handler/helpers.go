// Package handler はHTTP APIのハンドラーを提供する。
// 役割の判定と閲覧権の解決はこの層で完結させ、ドメインサービスには
// 検証済みのユーザーIDのみを渡す。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/soyoon/studylog/internal/aggregate"
	"github.com/soyoon/studylog/internal/middleware"
	"github.com/soyoon/studylog/internal/model"
)

// LinkChecker はviewerと学習者の紐付け確認のためのインターフェース。
// repository.UserRepositoryを直接要求せず、最小限のインターフェースとして定義する。
type LinkChecker interface {
	// IsLinked はviewerが指定学習者の閲覧権を持つ紐付けが存在するかを返す。
	IsLinked(ctx context.Context, viewerID, studentID string) (bool, error)
}

// writeJSONResponse はJSONレスポンスを書き込む。
func writeJSONResponse(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("レスポンスの書き込みに失敗しました", slog.String("error", err.Error()))
	}
}

// statusForAPIError はエラーコードに対応するHTTPステータスを返す。
func statusForAPIError(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeInvalidInterval, model.ErrCodeInvalidScope:
		return http.StatusBadRequest
	case model.ErrCodePlanNotFound, model.ErrCodeSessionNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeGenerationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleServiceError はサービス層のエラーをHTTPレスポンスに変換する。
// APIErrorはコードに応じたステータスで返し、それ以外は詳細をログに残して
// 一般的な500を返す。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, statusForAPIError(apiErr), apiErr)
		return
	}
	slog.Error("リクエスト処理に失敗しました", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// resolveTargetUser は閲覧対象のユーザーIDを解決する。
// user_idクエリ未指定なら本人。他ユーザーの指定は管理者は無条件に、
// 講師・保護者は紐付けが確認できた場合のみ許可する。学習者は本人のみ。
func resolveTargetUser(r *http.Request, links LinkChecker) (string, error) {
	viewerID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		return "", model.NewUnauthorizedError()
	}

	targetID := r.URL.Query().Get("user_id")
	if targetID == "" || targetID == viewerID {
		return viewerID, nil
	}

	role, err := middleware.RoleFromContext(r.Context())
	if err != nil {
		return "", model.NewUnauthorizedError()
	}

	switch role {
	case model.RoleAdmin:
		return targetID, nil
	case model.RoleTeacher, model.RoleParent:
		linked, err := links.IsLinked(r.Context(), viewerID, targetID)
		if err != nil {
			return "", err
		}
		if !linked {
			return "", model.NewForbiddenError(targetID)
		}
		return targetID, nil
	default:
		return "", model.NewForbiddenError(targetID)
	}
}

// parseDateKST は "YYYY-MM-DD" をKSTの暦日0時として解釈する。
func parseDateKST(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, aggregate.LocationKST)
}
