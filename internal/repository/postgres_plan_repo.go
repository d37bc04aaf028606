package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/soyoon/studylog/internal/model"
)

// PostgresPlanRepo はPostgreSQLを使用した学習計画リポジトリ。
type PostgresPlanRepo struct {
	db *sql.DB
}

// NewPostgresPlanRepo はPostgresPlanRepoを生成する。
func NewPostgresPlanRepo(db *sql.DB) *PostgresPlanRepo {
	return &PostgresPlanRepo{db: db}
}

// FindByID は指定IDの計画を取得する。見つからない場合はnilを返す。
func (r *PostgresPlanRepo) FindByID(ctx context.Context, id string) (*model.Plan, error) {
	plan := &model.Plan{}
	var content, memo sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, subject, area, content, memo, start_at, end_at, created_at, updated_at
		 FROM plans WHERE id = $1`,
		id,
	).Scan(
		&plan.ID, &plan.UserID, &plan.Subject, &plan.Area, &content, &memo,
		&plan.StartAt, &plan.EndAt, &plan.CreatedAt, &plan.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("計画の取得に失敗しました: %w", err)
	}

	plan.Content = nullStringValue(content)
	plan.Memo = nullStringValue(memo)
	return plan, nil
}

// Create は計画を作成する。
func (r *PostgresPlanRepo) Create(ctx context.Context, plan *model.Plan) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO plans (id, user_id, subject, area, content, memo, start_at, end_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())`,
		plan.ID, plan.UserID, plan.Subject, plan.Area,
		nullString(plan.Content), nullString(plan.Memo),
		plan.StartAt, plan.EndAt,
	)
	if err != nil {
		return fmt.Errorf("計画の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は計画を上書き更新する。
func (r *PostgresPlanRepo) Update(ctx context.Context, plan *model.Plan) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE plans
		 SET subject = $2, area = $3, content = $4, memo = $5,
		     start_at = $6, end_at = $7, updated_at = now()
		 WHERE id = $1`,
		plan.ID, plan.Subject, plan.Area,
		nullString(plan.Content), nullString(plan.Memo),
		plan.StartAt, plan.EndAt,
	)
	if err != nil {
		return fmt.Errorf("計画の更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDの計画を削除する。
func (r *PostgresPlanRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM plans WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("計画の削除に失敗しました: %w", err)
	}
	return nil
}

// ListOverlapping は指定ユーザーの計画のうち [start, end) と半開区間で交差するものを返す。
// 交差条件: start_at < $end AND end_at > $start
func (r *PostgresPlanRepo) ListOverlapping(ctx context.Context, userID string, start, end time.Time) ([]*model.Plan, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, subject, area, content, memo, start_at, end_at, created_at, updated_at
		 FROM plans
		 WHERE user_id = $1 AND start_at < $3 AND end_at > $2
		 ORDER BY start_at`,
		userID, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("計画一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var plans []*model.Plan
	for rows.Next() {
		plan := &model.Plan{}
		var content, memo sql.NullString
		if err := rows.Scan(
			&plan.ID, &plan.UserID, &plan.Subject, &plan.Area, &content, &memo,
			&plan.StartAt, &plan.EndAt, &plan.CreatedAt, &plan.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("計画行の読み取りに失敗しました: %w", err)
		}
		plan.Content = nullStringValue(content)
		plan.Memo = nullStringValue(memo)
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("計画一覧の走査に失敗しました: %w", err)
	}

	return plans, nil
}

// nullString は空文字列をNULLに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はNULL許容カラムの値を取り出す。NULLは空文字列になる。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
