package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/soyoon/studylog/internal/model"
)

// pqUniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const pqUniqueViolation = "23505"

// PostgresWeeklySummaryRepo はPostgreSQLを使用した週次要約リポジトリ。
type PostgresWeeklySummaryRepo struct {
	db *sql.DB
}

// NewPostgresWeeklySummaryRepo はPostgresWeeklySummaryRepoを生成する。
func NewPostgresWeeklySummaryRepo(db *sql.DB) *PostgresWeeklySummaryRepo {
	return &PostgresWeeklySummaryRepo{db: db}
}

// FindByUserAndWeek はユーザーID×週開始日で要約を取得する。見つからない場合はnilを返す。
func (r *PostgresWeeklySummaryRepo) FindByUserAndWeek(ctx context.Context, userID string, weekStart time.Time) (*model.WeeklySummary, error) {
	summary := &model.WeeklySummary{}
	var status string

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, start_date, end_date, status, summary, created_at, updated_at
		 FROM weekly_summaries
		 WHERE user_id = $1 AND start_date = $2`,
		userID, weekStart.Format("2006-01-02"),
	).Scan(
		&summary.ID, &summary.UserID, &summary.StartDate, &summary.EndDate,
		&status, &summary.Summary, &summary.CreatedAt, &summary.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("週次要約の取得に失敗しました: %w", err)
	}

	summary.Status = model.SummaryStatus(status)
	return summary, nil
}

// ListByUser はユーザーの要約をstart_date降順で最大limit件返す。
func (r *PostgresWeeklySummaryRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*model.WeeklySummary, error) {
	if limit <= 0 {
		limit = 12
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, start_date, end_date, status, summary, created_at, updated_at
		 FROM weekly_summaries
		 WHERE user_id = $1
		 ORDER BY start_date DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("週次要約一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var summaries []*model.WeeklySummary
	for rows.Next() {
		summary := &model.WeeklySummary{}
		var status string
		if err := rows.Scan(
			&summary.ID, &summary.UserID, &summary.StartDate, &summary.EndDate,
			&status, &summary.Summary, &summary.CreatedAt, &summary.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("週次要約行の読み取りに失敗しました: %w", err)
		}
		summary.Status = model.SummaryStatus(status)
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("週次要約一覧の走査に失敗しました: %w", err)
	}

	return summaries, nil
}

// UpsertIfNotDone は要約を挿入する。既存行がある場合、statusがfailedの行のみ上書きし、
// doneの行は決して上書きしない。上書き対象がなかった場合（= doneの行が既に存在）は
// model.ErrSummaryDuplicateを返す。
// 同時挿入で一意制約違反（SQLSTATE 23505）が発生した場合も「他方が処理中」とみなして
// model.ErrSummaryDuplicateを返す。
func (r *PostgresWeeklySummaryRepo) UpsertIfNotDone(ctx context.Context, summary *model.WeeklySummary) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO weekly_summaries (id, user_id, start_date, end_date, status, summary, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		 ON CONFLICT ON CONSTRAINT weekly_summaries_user_week_key
		 DO UPDATE SET status = EXCLUDED.status,
		               summary = EXCLUDED.summary,
		               end_date = EXCLUDED.end_date,
		               updated_at = now()
		 WHERE weekly_summaries.status = 'failed'`,
		summary.ID, summary.UserID,
		summary.StartDate.Format("2006-01-02"), summary.EndDate.Format("2006-01-02"),
		string(summary.Status), summary.Summary,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrSummaryDuplicate
		}
		return fmt.Errorf("週次要約の保存に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("週次要約の保存結果の取得に失敗しました: %w", err)
	}
	if affected == 0 {
		// 既存行がdoneのため上書きされなかった
		return model.ErrSummaryDuplicate
	}

	return nil
}

// isUniqueViolation はlib/pqのエラーが一意制約違反かを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pqUniqueViolation
	}
	return false
}
