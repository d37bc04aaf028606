// Package summarize は週次要約のバックグラウンド生成スイープを提供する。
// 定期ティッカーで全学習者を列挙し、直前のISO週の要約を並列生成する。
package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/soyoon/studylog/internal/aggregate"
	"github.com/soyoon/studylog/internal/metrics"
	"github.com/soyoon/studylog/internal/model"
	"github.com/soyoon/studylog/internal/repository"
)

// SummaryGenerator は1ユーザー×1週の要約生成インターフェース。
type SummaryGenerator interface {
	Generate(ctx context.Context, userID string, week aggregate.Scope) (model.SummaryState, *model.WeeklySummary, error)
}

// Config はスイープの設定パラメータ。環境変数から設定可能。
type Config struct {
	// SweepInterval はスイープサイクルの実行間隔（デフォルト: 1時間）。
	SweepInterval time.Duration
	// APIInterval は外部生成呼び出しのディスパッチ最低間隔（デフォルト: 1秒）。
	APIInterval time.Duration
	// MaxConcurrent は同時生成の最大数（デフォルト: 3）。
	MaxConcurrent int
}

// DefaultConfig はデフォルトのスイープ設定を返す。
func DefaultConfig() Config {
	return Config{
		SweepInterval: time.Hour,
		APIInterval:   time.Second,
		MaxConcurrent: 3,
	}
}

// Sweeper は週次要約スイープのスケジューリングと並列制御を行う。
// semaphoreパターンで最大並列数を、rate.Limiterでディスパッチ間隔を制御する。
// 生成は冪等なため、同じ週へのサイクル再実行は外部呼び出しを発生させない。
type Sweeper struct {
	userRepo  repository.UserRepository
	generator SummaryGenerator
	collector metrics.MetricsCollector
	logger    *slog.Logger
	config    Config
	limiter   *rate.Limiter

	mu                sync.Mutex
	consecutiveErrors int
	backoffUntil      time.Time
}

// NewSweeper はSweeperの新しいインスタンスを生成する。
// 設定のゼロ値はデフォルト値で補完する。
func NewSweeper(
	userRepo repository.UserRepository,
	generator SummaryGenerator,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	config Config,
) *Sweeper {
	def := DefaultConfig()
	if config.SweepInterval <= 0 {
		config.SweepInterval = def.SweepInterval
	}
	if config.APIInterval <= 0 {
		config.APIInterval = def.APIInterval
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = def.MaxConcurrent
	}
	return &Sweeper{
		userRepo:  userRepo,
		generator: generator,
		collector: collector,
		logger:    logger,
		config:    config,
		limiter:   rate.NewLimiter(rate.Every(config.APIInterval), 1),
	}
}

// Start はティッカーでスイープを定期実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	s.logger.Info("週次要約スイープを開始しました",
		slog.Duration("sweep_interval", s.config.SweepInterval),
		slog.Duration("api_interval", s.config.APIInterval),
		slog.Int("max_concurrent", s.config.MaxConcurrent),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("要約スイープサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("週次要約スイープを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("要約スイープサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は1回のスイープサイクルを実行する。
// 学習者を列挙し、直前のISO週の要約をsemaphoreパターンで並列生成する。
// 1ユーザーの失敗は他のユーザーの処理に影響しない。
func (s *Sweeper) RunOnce(ctx context.Context) error {
	start := time.Now()

	// バックオフ中の場合はスキップ
	if until, active := s.backoffActive(); active {
		s.logger.Info("要約スイープはバックオフ中のためスキップします",
			slog.Time("backoff_until", until),
		)
		s.collector.RecordSummarySkipped("backoff")
		return nil
	}

	week := aggregate.PreviousWeekScope(time.Now())

	students, err := s.userRepo.ListByRole(ctx, model.RoleStudent)
	if err != nil {
		return fmt.Errorf("学習者一覧の取得に失敗しました: %w", err)
	}

	if len(students) == 0 {
		s.logger.Info("スイープ対象の学習者はいません")
		return nil
	}

	s.logger.Info("要約スイープサイクルを開始します",
		slog.Int("student_count", len(students)),
		slog.String("week_start", week.Start.Format("2006-01-02")),
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, s.config.MaxConcurrent)
	var wg sync.WaitGroup

	for _, student := range students {
		if ctx.Err() != nil {
			break
		}
		// バックオフがサイクル中に発動したら以降のディスパッチを止める
		if _, active := s.backoffActive(); active {
			break
		}
		// ディスパッチ間隔の制御
		if err := s.limiter.Wait(ctx); err != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(u *model.User) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			s.sweepUser(ctx, u, week)
		}(student)
	}

	wg.Wait()

	duration := time.Since(start)
	s.collector.RecordSweepDuration(duration)
	s.logger.Info("要約スイープサイクルが完了しました",
		slog.Int("student_count", len(students)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// sweepUser は1ユーザー分の要約生成を実行し、結果をメトリクスに記録する。
func (s *Sweeper) sweepUser(ctx context.Context, u *model.User, week aggregate.Scope) {
	genStart := time.Now()
	state, _, err := s.generator.Generate(ctx, u.ID, week)
	s.collector.RecordGenerationLatency(time.Since(genStart))

	if err != nil {
		s.collector.RecordSummaryFailed()
		s.recordFailure()
		s.logger.Error("要約の生成に失敗しました",
			slog.String("user_id", u.ID),
			slog.String("week_start", week.Start.Format("2006-01-02")),
			slog.String("error", err.Error()),
		)
		return
	}

	switch state {
	case model.SummaryStateNoData:
		s.collector.RecordSummarySkipped("no_data")
	case model.SummaryStateDone:
		s.collector.RecordSummaryGenerated()
		s.recordSuccess()
	}
}

// backoffActive は現在バックオフ期間中かを返す。
func (s *Sweeper) backoffActive() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.backoffUntil.IsZero() && time.Now().Before(s.backoffUntil) {
		return s.backoffUntil, true
	}
	return time.Time{}, false
}

// recordFailure は連続エラー回数をインクリメントし、閾値超過でバックオフを設定する。
func (s *Sweeper) recordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.consecutiveErrors++
	backoff := calculateErrorBackoff(s.consecutiveErrors)
	if backoff > 0 {
		s.backoffUntil = time.Now().Add(backoff)
		s.logger.Warn("連続エラーによりバックオフを適用します",
			slog.Int("consecutive_errors", s.consecutiveErrors),
			slog.Duration("backoff_duration", backoff),
		)
	}
}

// recordSuccess は連続エラー回数とバックオフをリセットする。
func (s *Sweeper) recordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveErrors = 0
	s.backoffUntil = time.Time{}
}

// calculateErrorBackoff は連続エラー回数に基づくバックオフ時間を計算する。
// 3回連続: 30分、5回連続: 1時間、10回連続: 6時間。
func calculateErrorBackoff(consecutiveErrors int) time.Duration {
	switch {
	case consecutiveErrors >= 10:
		return 6 * time.Hour
	case consecutiveErrors >= 5:
		return 1 * time.Hour
	case consecutiveErrors >= 3:
		return 30 * time.Minute
	default:
		return 0
	}
}
