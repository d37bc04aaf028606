package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/soyoon/studylog/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	var role string

	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, role, created_at, updated_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.Name, &role, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}

	user.Role = model.Role(role)
	return user, nil
}

// ListByRole は指定された役割のユーザー一覧を返す。
func (r *PostgresUserRepo) ListByRole(ctx context.Context, role model.Role) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, role, created_at, updated_at
		 FROM users WHERE role = $1 ORDER BY created_at`,
		string(role),
	)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user := &model.User{}
		var r string
		if err := rows.Scan(&user.ID, &user.Name, &r, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ユーザー行の読み取りに失敗しました: %w", err)
		}
		user.Role = model.Role(r)
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ユーザー一覧の走査に失敗しました: %w", err)
	}

	return users, nil
}

// IsLinked はviewerが指定学習者の閲覧権を持つ紐付けが存在するかを返す。
func (r *PostgresUserRepo) IsLinked(ctx context.Context, viewerID, studentID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM user_links WHERE viewer_id = $1 AND student_id = $2
		 )`,
		viewerID, studentID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("閲覧紐付けの確認に失敗しました: %w", err)
	}
	return exists, nil
}
