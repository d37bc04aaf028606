// Package study は学習計画・学習記録のドメイン操作を提供する。
// 作成・更新・削除時に日次累積テーブル（study_days）への加算・取り消しを
// 同じ按分ロジックで行い、ヒートマップ表示との整合を保つ。
package study

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/soyoon/studylog/internal/aggregate"
	"github.com/soyoon/studylog/internal/model"
	"github.com/soyoon/studylog/internal/repository"
)

// Service は計画・記録のCRUDと区間集計を提供する。
type Service struct {
	planRepo     repository.PlanRepository
	sessionRepo  repository.SessionRepository
	studyDayRepo repository.StudyDayRepository
	logger       *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	planRepo repository.PlanRepository,
	sessionRepo repository.SessionRepository,
	studyDayRepo repository.StudyDayRepository,
	logger *slog.Logger,
) *Service {
	return &Service{
		planRepo:     planRepo,
		sessionRepo:  sessionRepo,
		studyDayRepo: studyDayRepo,
		logger:       logger,
	}
}

// CreatePlanInput は計画作成の入力を表す。
type CreatePlanInput struct {
	Subject string
	Area    string
	Content string
	Memo    string
	StartAt time.Time
	EndAt   time.Time
}

// UpdatePlanInput は計画の部分更新の入力を表す。nilのフィールドは変更しない。
type UpdatePlanInput struct {
	Subject *string
	Area    *string
	Content *string
	Memo    *string
	StartAt *time.Time
	EndAt   *time.Time
}

// CreateSessionInput は学習記録作成の入力を表す。
type CreateSessionInput struct {
	PlanID      *string
	Subject     string
	ActualStart time.Time
	ActualEnd   time.Time
	// DurationMin が指定された場合、区間長からの算出より保存値を優先する。
	DurationMin *int
}

// CreatePlan は学習計画を作成し、計画時間を日次累積に加算する。
// 開始≧終了の区間はmodel.ErrCodeInvalidIntervalで拒否する。
func (s *Service) CreatePlan(ctx context.Context, userID string, input CreatePlanInput) (*model.Plan, error) {
	if !input.StartAt.Before(input.EndAt) {
		return nil, model.NewInvalidIntervalError()
	}

	now := time.Now().UTC()
	plan := &model.Plan{
		ID:        uuid.NewString(),
		UserID:    userID,
		Subject:   input.Subject,
		Area:      input.Area,
		Content:   input.Content,
		Memo:      input.Memo,
		StartAt:   input.StartAt,
		EndAt:     input.EndAt,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.planRepo.Create(ctx, plan); err != nil {
		return nil, fmt.Errorf("計画の作成に失敗しました: %w", err)
	}

	s.recordPlanDays(ctx, userID, plan.StartAt, plan.EndAt, 1)
	return plan, nil
}

// UpdatePlan は学習計画を部分更新する。更新できるのは作成者本人と管理者のみ。
// 区間が変わる場合は旧区間の計画時間を日次累積から取り消し、新区間を加算する。
func (s *Service) UpdatePlan(ctx context.Context, actorID string, actorRole model.Role, planID string, input UpdatePlanInput) (*model.Plan, error) {
	plan, err := s.planRepo.FindByID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("計画の取得に失敗しました: %w", err)
	}
	if plan == nil {
		return nil, model.NewPlanNotFoundError(planID)
	}
	if plan.UserID != actorID && actorRole != model.RoleAdmin {
		return nil, model.NewForbiddenError(plan.UserID)
	}

	oldStart, oldEnd := plan.StartAt, plan.EndAt

	if input.Subject != nil {
		plan.Subject = *input.Subject
	}
	if input.Area != nil {
		plan.Area = *input.Area
	}
	if input.Content != nil {
		plan.Content = *input.Content
	}
	if input.Memo != nil {
		plan.Memo = *input.Memo
	}
	if input.StartAt != nil {
		plan.StartAt = *input.StartAt
	}
	if input.EndAt != nil {
		plan.EndAt = *input.EndAt
	}
	if !plan.StartAt.Before(plan.EndAt) {
		return nil, model.NewInvalidIntervalError()
	}
	plan.UpdatedAt = time.Now().UTC()

	if err := s.planRepo.Update(ctx, plan); err != nil {
		return nil, fmt.Errorf("計画の更新に失敗しました: %w", err)
	}

	if !plan.StartAt.Equal(oldStart) || !plan.EndAt.Equal(oldEnd) {
		s.recordPlanDays(ctx, plan.UserID, oldStart, oldEnd, -1)
		s.recordPlanDays(ctx, plan.UserID, plan.StartAt, plan.EndAt, 1)
	}
	return plan, nil
}

// DeletePlan は学習計画を削除し、計画時間を日次累積から取り消す。
// 削除できるのは作成者本人と管理者のみ。
func (s *Service) DeletePlan(ctx context.Context, actorID string, actorRole model.Role, planID string) error {
	plan, err := s.planRepo.FindByID(ctx, planID)
	if err != nil {
		return fmt.Errorf("計画の取得に失敗しました: %w", err)
	}
	if plan == nil {
		return model.NewPlanNotFoundError(planID)
	}
	if plan.UserID != actorID && actorRole != model.RoleAdmin {
		return model.NewForbiddenError(plan.UserID)
	}

	if err := s.planRepo.Delete(ctx, planID); err != nil {
		return fmt.Errorf("計画の削除に失敗しました: %w", err)
	}

	s.recordPlanDays(ctx, plan.UserID, plan.StartAt, plan.EndAt, -1)
	return nil
}

// CreateSession は学習記録を作成し、実績時間を日次累積に加算する。
// 開始≧終了の区間、および負の保存時間はmodel.ErrCodeInvalidIntervalで拒否する。
func (s *Service) CreateSession(ctx context.Context, userID string, input CreateSessionInput) (*model.Session, error) {
	if !input.ActualStart.Before(input.ActualEnd) {
		return nil, model.NewInvalidIntervalError()
	}
	if input.DurationMin != nil && *input.DurationMin < 0 {
		return nil, model.NewInvalidIntervalError()
	}

	session := &model.Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		PlanID:      input.PlanID,
		Subject:     input.Subject,
		ActualStart: input.ActualStart,
		ActualEnd:   input.ActualEnd,
		DurationMin: input.DurationMin,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("学習記録の作成に失敗しました: %w", err)
	}

	s.recordSessionDays(ctx, session, 1)
	return session, nil
}

// DeleteSession は学習記録を削除し、実績時間を日次累積から取り消す。
// 削除できるのは記録者本人と管理者のみ。
func (s *Service) DeleteSession(ctx context.Context, actorID string, actorRole model.Role, sessionID string) error {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("学習記録の取得に失敗しました: %w", err)
	}
	if session == nil {
		return model.NewSessionNotFoundError(sessionID)
	}
	if session.UserID != actorID && actorRole != model.RoleAdmin {
		return model.NewForbiddenError(session.UserID)
	}

	if err := s.sessionRepo.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("学習記録の削除に失敗しました: %w", err)
	}

	s.recordSessionDays(ctx, session, -1)
	return nil
}

// ListPlans は指定ユーザーの計画のうちスコープと交差するものを返す。
func (s *Service) ListPlans(ctx context.Context, userID string, scope aggregate.Scope) ([]*model.Plan, error) {
	plans, err := s.planRepo.ListOverlapping(ctx, userID, scope.Start, scope.End)
	if err != nil {
		return nil, fmt.Errorf("計画一覧の取得に失敗しました: %w", err)
	}
	return plans, nil
}

// ListSessions は指定ユーザーの学習記録のうちスコープと交差するものを返す。
func (s *Service) ListSessions(ctx context.Context, userID string, scope aggregate.Scope) ([]*model.Session, error) {
	sessions, err := s.sessionRepo.ListOverlapping(ctx, userID, scope.Start, scope.End)
	if err != nil {
		return nil, fmt.Errorf("学習記録一覧の取得に失敗しました: %w", err)
	}
	return sessions, nil
}

// AggregateScope はスコープと交差する計画・記録を読み込み、計画対実績の内訳を返す。
func (s *Service) AggregateScope(ctx context.Context, userID string, scope aggregate.Scope, granularity aggregate.Granularity) (*aggregate.Result, error) {
	plans, err := s.ListPlans(ctx, userID, scope)
	if err != nil {
		return nil, err
	}
	sessions, err := s.ListSessions(ctx, userID, scope)
	if err != nil {
		return nil, err
	}
	return aggregate.Aggregate(scope, granularity, plans, sessions), nil
}

// Heatmap は[from, to]（暦日、両端含む）の日次累積一覧を返す。
func (s *Service) Heatmap(ctx context.Context, userID string, from, to time.Time) ([]*model.StudyDay, error) {
	days, err := s.studyDayRepo.ListRange(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("日次累積の取得に失敗しました: %w", err)
	}
	return days, nil
}

// recordPlanDays は計画区間の秒数を暦日ごとに按分し、日次累積のplan_secondsに
// sign=+1で加算、sign=-1で取り消しを記録する。日次累積はヒートマップ用の
// 実体化テーブルであり、書き込み失敗は警告ログに留めて本体の操作は成功させる。
func (s *Service) recordPlanDays(ctx context.Context, userID string, start, end time.Time, sign int64) {
	for _, d := range aggregate.SplitSecondsByDay(start, end) {
		if err := s.studyDayRepo.RecordStudyTime(ctx, userID, d.Date, 0, sign*d.Seconds); err != nil {
			s.logger.Warn("日次累積の更新に失敗しました",
				slog.String("user_id", userID),
				slog.String("date", d.Date.Format("2006-01-02")),
				slog.String("error", err.Error()))
		}
	}
}

// recordSessionDays は学習記録の実績秒数を暦日ごとに按分して日次累積に反映する。
// 保存済みのDurationMinがある場合は、その合計秒数を区間との重なりに比例して
// 累積丸めで配分する（合計は必ず保存値に一致する）。
func (s *Service) recordSessionDays(ctx context.Context, session *model.Session, sign int64) {
	for _, d := range sessionDaySeconds(session) {
		if err := s.studyDayRepo.RecordStudyTime(ctx, session.UserID, d.Date, sign*d.Seconds, 0); err != nil {
			s.logger.Warn("日次累積の更新に失敗しました",
				slog.String("user_id", session.UserID),
				slog.String("date", d.Date.Format("2006-01-02")),
				slog.String("error", err.Error()))
		}
	}
}

// sessionDaySeconds は学習記録が各暦日に寄与する秒数を返す。
// DurationMin未指定なら区間の按分そのもの、指定ありなら保存値を按分比で配分する。
func sessionDaySeconds(session *model.Session) []aggregate.DaySeconds {
	parts := aggregate.SplitSecondsByDay(session.ActualStart, session.ActualEnd)
	if session.DurationMin == nil {
		return parts
	}

	totalSec := int64(*session.DurationMin) * 60
	var intervalSec int64
	for _, p := range parts {
		intervalSec += p.Seconds
	}
	if intervalSec == 0 {
		return nil
	}

	out := make([]aggregate.DaySeconds, 0, len(parts))
	var cum, allocated int64
	for _, p := range parts {
		cum += p.Seconds
		target := int64(math.Round(float64(totalSec) * float64(cum) / float64(intervalSec)))
		out = append(out, aggregate.DaySeconds{Date: p.Date, Seconds: target - allocated})
		allocated = target
	}
	return out
}
