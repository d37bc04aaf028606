package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/soyoon/studylog/internal/model"
)

// PostgresStudyDayRepo はPostgreSQLを使用した日次累積リポジトリ。
type PostgresStudyDayRepo struct {
	db *sql.DB
}

// NewPostgresStudyDayRepo はPostgresStudyDayRepoを生成する。
func NewPostgresStudyDayRepo(db *sql.DB) *PostgresStudyDayRepo {
	return &PostgresStudyDayRepo{db: db}
}

// RecordStudyTime は指定ユーザー×暦日の累積秒数を加算する。
// 読み取り→書き込みの2段階ではなく単一文のUPSERT加算で実行するため、
// 同一ユーザー×日への同時書き込みでも更新が失われない。
// 負の値は減算（記録削除時の取り消し）として適用し、累積は0未満に下げない。
func (r *PostgresStudyDayRepo) RecordStudyTime(ctx context.Context, userID string, date time.Time, totalSec, planSec int64) error {
	if totalSec == 0 && planSec == 0 {
		return nil
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO study_days (user_id, date, total_seconds, plan_seconds)
		 VALUES ($1, $2, GREATEST($3, 0), GREATEST($4, 0))
		 ON CONFLICT (user_id, date)
		 DO UPDATE SET total_seconds = GREATEST(study_days.total_seconds + $3, 0),
		               plan_seconds  = GREATEST(study_days.plan_seconds  + $4, 0)`,
		userID, date.Format("2006-01-02"), totalSec, planSec,
	)
	if err != nil {
		return fmt.Errorf("日次累積の加算に失敗しました: %w", err)
	}
	return nil
}

// ListRange は[from, to]（暦日、両端含む）の累積一覧をdate昇順で返す。
func (r *PostgresStudyDayRepo) ListRange(ctx context.Context, userID string, from, to time.Time) ([]*model.StudyDay, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, date, plan_seconds, total_seconds
		 FROM study_days
		 WHERE user_id = $1 AND date BETWEEN $2 AND $3
		 ORDER BY date`,
		userID, from.Format("2006-01-02"), to.Format("2006-01-02"),
	)
	if err != nil {
		return nil, fmt.Errorf("日次累積一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var days []*model.StudyDay
	for rows.Next() {
		day := &model.StudyDay{}
		if err := rows.Scan(&day.UserID, &day.Date, &day.PlanSeconds, &day.TotalSeconds); err != nil {
			return nil, fmt.Errorf("日次累積行の読み取りに失敗しました: %w", err)
		}
		days = append(days, day)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("日次累積一覧の走査に失敗しました: %w", err)
	}

	return days, nil
}
