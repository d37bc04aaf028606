package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/soyoon/studylog/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用した学習記録リポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	session := &model.Session{}
	var planID, subject sql.NullString
	var durationMin sql.NullInt64

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, plan_id, subject, actual_start, actual_end, duration_min, created_at
		 FROM sessions WHERE id = $1`,
		id,
	).Scan(
		&session.ID, &session.UserID, &planID, &subject,
		&session.ActualStart, &session.ActualEnd, &durationMin, &session.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("学習記録の取得に失敗しました: %w", err)
	}

	applySessionNullables(session, planID, subject, durationMin)
	return session, nil
}

// Create はセッションを作成する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	var planID sql.NullString
	if session.PlanID != nil {
		planID = sql.NullString{String: *session.PlanID, Valid: true}
	}
	var durationMin sql.NullInt64
	if session.DurationMin != nil {
		durationMin = sql.NullInt64{Int64: int64(*session.DurationMin), Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, plan_id, subject, actual_start, actual_end, duration_min, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
		session.ID, session.UserID, planID, nullString(session.Subject),
		session.ActualStart, session.ActualEnd, durationMin,
	)
	if err != nil {
		return fmt.Errorf("学習記録の作成に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDのセッションを削除する。
func (r *PostgresSessionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("学習記録の削除に失敗しました: %w", err)
	}
	return nil
}

// ListOverlapping は指定ユーザーのセッションのうち [start, end) と半開区間で交差するものを返す。
// 交差条件: actual_start < $end AND actual_end > $start
func (r *PostgresSessionRepo) ListOverlapping(ctx context.Context, userID string, start, end time.Time) ([]*model.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, plan_id, subject, actual_start, actual_end, duration_min, created_at
		 FROM sessions
		 WHERE user_id = $1 AND actual_start < $3 AND actual_end > $2
		 ORDER BY actual_start`,
		userID, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("学習記録一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		session := &model.Session{}
		var planID, subject sql.NullString
		var durationMin sql.NullInt64
		if err := rows.Scan(
			&session.ID, &session.UserID, &planID, &subject,
			&session.ActualStart, &session.ActualEnd, &durationMin, &session.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("学習記録行の読み取りに失敗しました: %w", err)
		}
		applySessionNullables(session, planID, subject, durationMin)
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("学習記録一覧の走査に失敗しました: %w", err)
	}

	return sessions, nil
}

// applySessionNullables はNULL許容カラムの値をモデルに反映する。
func applySessionNullables(session *model.Session, planID, subject sql.NullString, durationMin sql.NullInt64) {
	if planID.Valid {
		v := planID.String
		session.PlanID = &v
	}
	session.Subject = nullStringValue(subject)
	if durationMin.Valid {
		v := int(durationMin.Int64)
		session.DurationMin = &v
	}
}
