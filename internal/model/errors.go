// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// ErrSummaryDuplicate は同一ユーザー×週の要約が同時に挿入された場合に返る。
// 一意制約違反を「他方が処理中」とみなして良性スキップするために使う。
var ErrSummaryDuplicate = errors.New("weekly summary already exists for this user and week")

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, plan, session, summary, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeInvalidInterval   = "INVALID_INTERVAL"
	ErrCodeInvalidScope      = "INVALID_SCOPE"
	ErrCodePlanNotFound      = "PLAN_NOT_FOUND"
	ErrCodeSessionNotFound   = "SESSION_NOT_FOUND"
	ErrCodeSummaryNotReady   = "SUMMARY_NOT_READY"
	ErrCodeGenerationFailed  = "GENERATION_FAILED"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
	ErrCodeExportFailed      = "EXPORT_FAILED"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError は閲覧権限のないユーザーのデータを要求した場合のエラーを生成する。
func NewForbiddenError(targetUserID string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  fmt.Sprintf("このユーザーのデータを閲覧する権限がありません: %s", targetUserID),
		Category: "auth",
		Action:   "担当の学習者のみ閲覧できます。管理者に紐付けを確認してください。",
	}
}

// NewInvalidIntervalError は開始が終了以降になっている時間区間のエラーを生成する。
func NewInvalidIntervalError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInterval,
		Message:  "時間区間が不正です。開始時刻は終了時刻より前である必要があります。",
		Category: "validation",
		Action:   "開始時刻と終了時刻を確認してください。",
	}
}

// NewInvalidScopeError は無効な集計スコープ指定のエラーを生成する。
func NewInvalidScopeError(scope string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidScope,
		Message:  fmt.Sprintf("無効な集計スコープです: %s", scope),
		Category: "validation",
		Action:   "スコープには day、week、month のいずれかを指定してください。",
	}
}

// NewPlanNotFoundError は計画未検出エラーを生成する。
func NewPlanNotFoundError(planID string) *APIError {
	return &APIError{
		Code:     ErrCodePlanNotFound,
		Message:  fmt.Sprintf("指定された学習計画が見つかりません: %s", planID),
		Category: "plan",
		Action:   "計画IDを確認してください。",
	}
}

// NewSessionNotFoundError はセッション未検出エラーを生成する。
func NewSessionNotFoundError(sessionID string) *APIError {
	return &APIError{
		Code:     ErrCodeSessionNotFound,
		Message:  fmt.Sprintf("指定された学習記録が見つかりません: %s", sessionID),
		Category: "session",
		Action:   "記録IDを確認してください。",
	}
}

// NewGenerationFailedError は週次要約の生成失敗エラーを生成する。
func NewGenerationFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeGenerationFailed,
		Message:  "週次要約の生成に失敗しました。",
		Category: "summary",
		Action:   "しばらく待ってから再度お試しください。次回の定期実行でも自動的に再試行されます。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewExportFailedError はエクスポート生成失敗エラーを生成する。
func NewExportFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeExportFailed,
		Message:  "Excelファイルの生成に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
