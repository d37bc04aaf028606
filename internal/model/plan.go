// Package model はドメインモデルを定義する。
package model

import "time"

// Plan はユーザーが立てた学習計画を表す。
// StartAt < EndAt が不変条件。作成者本人（または管理者）のみが変更できる。
type Plan struct {
	ID        string
	UserID    string
	Subject   string
	Area      string
	Content   string
	Memo      string
	StartAt   time.Time
	EndAt     time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Valid は時間区間が正当（開始 < 終了）かを返す。
// 不正な区間のレコードは集計から除外される。
func (p *Plan) Valid() bool {
	return p.StartAt.Before(p.EndAt)
}

// DurationMinutes は計画区間の長さを分単位で返す。
func (p *Plan) DurationMinutes() int {
	return int(p.EndAt.Sub(p.StartAt) / time.Minute)
}
