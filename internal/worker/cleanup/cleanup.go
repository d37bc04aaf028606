// Package cleanup は学習記録の自動削除ジョブを提供する。
// 保持期間を超過したセッションと、累積が空のstudy_days行を
// 日次バッチで削除する。保持日数0は無効（削除しない）を意味する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CleanupJob は保持期間を超過したセッションの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	db            Executor
	logger        *slog.Logger
	RetentionDays int // セッションの保持日数（0以下: 削除無効）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// retentionDaysが0以下の場合、Runは何も削除しない。
func NewCleanupJob(db Executor, logger *slog.Logger, retentionDays int) *CleanupJob {
	return &CleanupJob{
		db:            db,
		logger:        logger,
		RetentionDays: retentionDays,
	}
}

// Run は保持期間を超過したセッションと空のstudy_days行を削除する。
// actual_endがRetentionDays日前より古いセッションをDELETEし、
// 続けてplan_secondsとtotal_secondsがともに0のstudy_days行を削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	if j.RetentionDays <= 0 {
		j.logger.Info("保持期間が未設定のためセッションクリーンアップをスキップします")
		return nil
	}

	start := time.Now()
	interval := fmt.Sprintf("%d days", j.RetentionDays)

	query := `DELETE FROM sessions WHERE actual_end < now() - $1::interval`
	result, err := j.db.ExecContext(ctx, query, interval)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	pruneQuery := `DELETE FROM study_days WHERE plan_seconds = 0 AND total_seconds = 0`
	pruneResult, err := j.db.ExecContext(ctx, pruneQuery)
	if err != nil {
		j.logger.Error("空のstudy_days行の削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("空のstudy_days行の削除に失敗: %w", err)
	}

	prunedCount, err := pruneResult.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int64("pruned_study_days", prunedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
