// Package repository はデータ永続化のインターフェースを定義する。
// 実装はプロセス起動時に1回だけ構築し、依存として明示的に注入する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/soyoon/studylog/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// ListByRole は指定された役割のユーザー一覧を返す。
	// 週次スイープはListByRole(ctx, model.RoleStudent)で対象を列挙する。
	ListByRole(ctx context.Context, role model.Role) ([]*model.User, error)

	// IsLinked はviewerが指定学習者の閲覧権を持つ紐付けが存在するかを返す。
	IsLinked(ctx context.Context, viewerID, studentID string) (bool, error)
}

// PlanRepository は学習計画の永続化インターフェース。
type PlanRepository interface {
	// FindByID は指定IDの計画を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Plan, error)

	// Create は計画を作成する。
	Create(ctx context.Context, plan *model.Plan) error

	// Update は計画を上書き更新する。
	Update(ctx context.Context, plan *model.Plan) error

	// Delete は指定IDの計画を削除する。
	Delete(ctx context.Context, id string) error

	// ListOverlapping は指定ユーザーの計画のうち [start, end) と
	// 半開区間で交差するものをstart_at昇順で返す。
	ListOverlapping(ctx context.Context, userID string, start, end time.Time) ([]*model.Plan, error)
}

// SessionRepository は学習記録の永続化インターフェース。
type SessionRepository interface {
	// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)

	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error

	// Delete は指定IDのセッションを削除する。
	Delete(ctx context.Context, id string) error

	// ListOverlapping は指定ユーザーのセッションのうち [start, end) と
	// 半開区間で交差するものをactual_start昇順で返す。
	ListOverlapping(ctx context.Context, userID string, start, end time.Time) ([]*model.Session, error)
}

// StudyDayRepository は日次累積（ヒートマップ用実体化テーブル）の永続化インターフェース。
type StudyDayRepository interface {
	// RecordStudyTime は指定ユーザー×暦日の累積秒数を加算する。
	// 単一文のUPSERT加算で実行し、同一日の同時書き込みでも更新が失われない。
	RecordStudyTime(ctx context.Context, userID string, date time.Time, totalSec, planSec int64) error

	// ListRange は[from, to]（暦日、両端含む）の累積一覧をdate昇順で返す。
	ListRange(ctx context.Context, userID string, from, to time.Time) ([]*model.StudyDay, error)
}

// WeeklySummaryRepository は週次要約の永続化インターフェース。
type WeeklySummaryRepository interface {
	// FindByUserAndWeek はユーザーID×週開始日で要約を取得する。見つからない場合はnilを返す。
	FindByUserAndWeek(ctx context.Context, userID string, weekStart time.Time) (*model.WeeklySummary, error)

	// ListByUser はユーザーの要約をstart_date降順で最大limit件返す。
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.WeeklySummary, error)

	// UpsertIfNotDone は要約を挿入する。既存行がある場合、statusがfailedの行のみ
	// 上書きし、doneの行は決して上書きしない。上書き対象がなかった場合は
	// model.ErrSummaryDuplicateを返す（同時生成レースの良性スキップ用）。
	UpsertIfNotDone(ctx context.Context, summary *model.WeeklySummary) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
