package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/soyoon/studylog/internal/aggregate"
	"github.com/soyoon/studylog/internal/model"
	"github.com/soyoon/studylog/internal/repository"
)

// Generator は要約テキストの生成インターフェース。
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Service は週次要約の生成と取得を担うサービス。
// 生成は冪等で、DONEの要約は決して再生成・上書きされない。
type Service struct {
	userRepo    repository.UserRepository
	planRepo    repository.PlanRepository
	sessionRepo repository.SessionRepository
	summaryRepo repository.WeeklySummaryRepository
	generator   Generator
	sanitizer   *bluemonday.Policy
	logger      *slog.Logger
	timeout     time.Duration
}

// NewService はServiceの新しいインスタンスを生成する。
// timeoutは1回の生成呼び出しの上限時間。
func NewService(
	userRepo repository.UserRepository,
	planRepo repository.PlanRepository,
	sessionRepo repository.SessionRepository,
	summaryRepo repository.WeeklySummaryRepository,
	generator Generator,
	logger *slog.Logger,
	timeout time.Duration,
) *Service {
	return &Service{
		userRepo:    userRepo,
		planRepo:    planRepo,
		sessionRepo: sessionRepo,
		summaryRepo: summaryRepo,
		generator:   generator,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger,
		timeout:     timeout,
	}
}

// GetOrGenerate は指定週の要約を返す。DONEの要約があればそれを返し、
// なければ（または前回FAILEDなら）その場で生成を試みる。
func (s *Service) GetOrGenerate(ctx context.Context, userID string, week aggregate.Scope) (model.SummaryState, *model.WeeklySummary, error) {
	existing, err := s.summaryRepo.FindByUserAndWeek(ctx, userID, week.Start)
	if err != nil {
		return "", nil, fmt.Errorf("週次要約の取得に失敗しました: %w", err)
	}
	if existing != nil && existing.Status == model.SummaryStatusDone {
		return model.SummaryStateDone, existing, nil
	}

	return s.Generate(ctx, userID, week)
}

// Generate は指定週の要約を生成して保存する。状態遷移は以下の通り。
//
//	セッションなし               → NO_DATA（生成呼び出しなし、保存なし）
//	既存DONEあり                 → DONE（生成呼び出しなし）
//	生成成功                     → DONE（保存。ただしDONE行は上書きしない）
//	生成失敗                     → FAILED（status='failed'、本文は空で保存）
//
// 同一週への同時生成は一意制約により片方が良性スキップされ、
// 保存済みの要約がそのまま返る。
func (s *Service) Generate(ctx context.Context, userID string, week aggregate.Scope) (model.SummaryState, *model.WeeklySummary, error) {
	existing, err := s.summaryRepo.FindByUserAndWeek(ctx, userID, week.Start)
	if err != nil {
		return "", nil, fmt.Errorf("週次要約の取得に失敗しました: %w", err)
	}
	if existing != nil && existing.Status == model.SummaryStatusDone {
		return model.SummaryStateDone, existing, nil
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return "", nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return "", nil, fmt.Errorf("ユーザーが見つかりません: %s", userID)
	}

	sessions, err := s.sessionRepo.ListOverlapping(ctx, userID, week.Start, week.End)
	if err != nil {
		return "", nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}

	plans, err := s.planRepo.ListOverlapping(ctx, userID, week.Start, week.End)
	if err != nil {
		return "", nil, fmt.Errorf("計画の取得に失敗しました: %w", err)
	}

	stats := BuildWeekStats(user.Name, week, plans, sessions)
	if !stats.HasData() {
		s.logger.Info("対象週にセッションがないため要約生成をスキップします",
			slog.String("user_id", userID),
			slog.String("week_start", week.Start.Format("2006-01-02")),
		)
		return model.SummaryStateNoData, nil, nil
	}

	genCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	text, genErr := s.generator.Generate(genCtx, BuildPrompt(stats))
	if genErr != nil {
		s.logger.Error("要約の生成に失敗しました",
			slog.String("user_id", userID),
			slog.String("week_start", week.Start.Format("2006-01-02")),
			slog.String("error", genErr.Error()),
		)
		if err := s.persist(ctx, userID, week, model.SummaryStatusFailed, ""); err != nil {
			return model.SummaryStateFailed, nil, fmt.Errorf("失敗状態の保存に失敗しました: %w", err)
		}
		return model.SummaryStateFailed, nil, fmt.Errorf("要約の生成に失敗しました: %w", genErr)
	}

	text = strings.TrimSpace(s.sanitizer.Sanitize(text))
	if text == "" {
		if err := s.persist(ctx, userID, week, model.SummaryStatusFailed, ""); err != nil {
			return model.SummaryStateFailed, nil, fmt.Errorf("失敗状態の保存に失敗しました: %w", err)
		}
		return model.SummaryStateFailed, nil, errors.New("生成された要約が空でした")
	}

	if err := s.persist(ctx, userID, week, model.SummaryStatusDone, text); err != nil {
		return model.SummaryStateFailed, nil, fmt.Errorf("要約の保存に失敗しました: %w", err)
	}

	saved, err := s.summaryRepo.FindByUserAndWeek(ctx, userID, week.Start)
	if err != nil {
		return "", nil, fmt.Errorf("保存後の要約の取得に失敗しました: %w", err)
	}
	if saved == nil {
		return "", nil, errors.New("保存した要約が見つかりません")
	}
	if saved.Status == model.SummaryStatusFailed {
		return model.SummaryStateFailed, nil, errors.New("要約の生成に失敗した状態です")
	}

	s.logger.Info("週次要約を生成しました",
		slog.String("user_id", userID),
		slog.String("week_start", week.Start.Format("2006-01-02")),
		slog.Int("total_minutes", stats.TotalMinutes),
	)
	return model.SummaryStateDone, saved, nil
}

// State は指定週の要約の導出状態を返す（生成は行わない）。
func (s *Service) State(ctx context.Context, userID string, week aggregate.Scope) (model.SummaryState, *model.WeeklySummary, error) {
	existing, err := s.summaryRepo.FindByUserAndWeek(ctx, userID, week.Start)
	if err != nil {
		return "", nil, fmt.Errorf("週次要約の取得に失敗しました: %w", err)
	}
	if existing != nil {
		switch existing.Status {
		case model.SummaryStatusDone:
			return model.SummaryStateDone, existing, nil
		case model.SummaryStatusFailed:
			return model.SummaryStateFailed, existing, nil
		}
	}

	sessions, err := s.sessionRepo.ListOverlapping(ctx, userID, week.Start, week.End)
	if err != nil {
		return "", nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}
	for _, sess := range sessions {
		if sess.Valid() {
			return model.SummaryStatePending, nil, nil
		}
	}
	return model.SummaryStateNoData, nil, nil
}

// ListRecent はユーザーの要約を新しい週から順に最大limit件返す。
func (s *Service) ListRecent(ctx context.Context, userID string, limit int) ([]*model.WeeklySummary, error) {
	summaries, err := s.summaryRepo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("週次要約一覧の取得に失敗しました: %w", err)
	}
	return summaries, nil
}

// persist は要約行をUPSERTする。一意制約による重複は良性として握りつぶす
// （先に書き込んだ側の結果が残る）。
func (s *Service) persist(ctx context.Context, userID string, week aggregate.Scope, status model.SummaryStatus, text string) error {
	now := time.Now()
	record := &model.WeeklySummary{
		ID:        uuid.NewString(),
		UserID:    userID,
		StartDate: week.Start,
		EndDate:   week.End.AddDate(0, 0, -1),
		Status:    status,
		Summary:   text,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.summaryRepo.UpsertIfNotDone(ctx, record)
	if errors.Is(err, model.ErrSummaryDuplicate) {
		s.logger.Info("同一週の要約が既に保存されているためスキップします",
			slog.String("user_id", userID),
			slog.String("week_start", week.Start.Format("2006-01-02")),
		)
		return nil
	}
	return err
}
