// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
type User struct {
	ID        string
	Name      string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Role はユーザーの役割を表す閉じた列挙型。
// 役割の判定はアクセス境界（ミドルウェア/ハンドラー層）でのみ行い、
// 集計コアには渡さない。
type Role string

const (
	// RoleStudent は学習者本人。
	RoleStudent Role = "student"
	// RoleTeacher は担当講師。紐付けられた学習者の閲覧のみ可能。
	RoleTeacher Role = "teacher"
	// RoleParent は保護者。紐付けられた学習者の閲覧のみ可能。
	RoleParent Role = "parent"
	// RoleAdmin は管理者。全学習者の閲覧と要約の手動生成が可能。
	RoleAdmin Role = "admin"
)

// ParseRole は文字列をRoleに変換する。未知の値はfalseを返す。
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleStudent, RoleTeacher, RoleParent, RoleAdmin:
		return Role(s), true
	default:
		return "", false
	}
}

// CanViewOthers は他ユーザーのデータを閲覧し得る役割かを返す。
// teacher/parentは紐付けの確認が別途必要。
func (r Role) CanViewOthers() bool {
	switch r {
	case RoleTeacher, RoleParent, RoleAdmin:
		return true
	case RoleStudent:
		return false
	default:
		return false
	}
}
