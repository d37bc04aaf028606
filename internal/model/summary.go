// Package model はドメインモデルを定義する。
package model

import "time"

// SummaryStatus は週次要約の永続化状態を表す。
type SummaryStatus string

const (
	// SummaryStatusDone は要約生成に成功した状態。再生成は行わない。
	SummaryStatusDone SummaryStatus = "done"
	// SummaryStatusFailed は外部生成サービスの呼び出しに失敗した状態。
	// 次回のスイープで再試行の対象になる。
	SummaryStatusFailed SummaryStatus = "failed"
)

// WeeklySummary はユーザー×ISO週（月〜日、KST）ごとの学習フィードバック要約。
// (UserID, StartDate)で一意。DONEの行は上書きされない。
type WeeklySummary struct {
	ID        string
	UserID    string
	StartDate time.Time // 週の開始日（月曜、KSTの暦日）
	EndDate   time.Time // 週の終了日（日曜、KSTの暦日）
	Status    SummaryStatus
	Summary   string // 失敗時は空文字列。実際の要約文と混同されることはない。
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SummaryState は要約の生成状態を呼び出し元に伝える列挙。
// 永続化されるのはDONE/FAILEDのみで、NO_DATA/PENDINGは導出状態。
type SummaryState string

const (
	// SummaryStateNoData は対象週に学習セッションが存在しない状態。
	SummaryStateNoData SummaryState = "no_data"
	// SummaryStatePending はデータはあるが要約が未生成の状態。
	SummaryStatePending SummaryState = "pending"
	// SummaryStateDone は要約が生成済みの状態。
	SummaryStateDone SummaryState = "done"
	// SummaryStateFailed は直近の生成が失敗した状態。
	SummaryStateFailed SummaryState = "failed"
)

// StudyDay は1ユーザー×1暦日（KST）の累積学習時間。
// ヒートマップ描画用にセッション書き込み時へ逐次加算される実体化テーブル。
type StudyDay struct {
	UserID       string
	Date         time.Time // KSTの暦日（時刻部は0）
	PlanSeconds  int64
	TotalSeconds int64
}
