// Package model はドメインモデルを定義する。
package model

import "time"

// Session は実際に行われた学習の記録を表す。
// PlanIDはnil許容: 計画に紐付かないセッションも科目別集計の対象になる。
type Session struct {
	ID          string
	UserID      string
	PlanID      *string
	Subject     string
	ActualStart time.Time
	ActualEnd   time.Time
	// DurationMin は保存済みの学習時間（分）。保存値が存在する場合は
	// ActualStart/ActualEndからの再計算より保存値を優先する。
	DurationMin *int
	CreatedAt   time.Time
}

// Valid は時間区間が正当（開始 < 終了）かつ保存済み時間が非負かを返す。
// 不正なレコードは集計から除外される。
func (s *Session) Valid() bool {
	if !s.ActualStart.Before(s.ActualEnd) {
		return false
	}
	if s.DurationMin != nil && *s.DurationMin < 0 {
		return false
	}
	return true
}

// Minutes は学習時間を分単位で返す。
// 保存済みのDurationMinがあればそれを、なければ区間長から算出する。
func (s *Session) Minutes() int {
	if s.DurationMin != nil {
		return *s.DurationMin
	}
	return int(s.ActualEnd.Sub(s.ActualStart) / time.Minute)
}
