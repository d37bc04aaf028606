package study

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/soyoon/studylog/internal/aggregate"
	"github.com/soyoon/studylog/internal/model"
)

// --- モック ---

type mockPlanRepo struct {
	findByIDFunc        func(ctx context.Context, id string) (*model.Plan, error)
	listOverlappingFunc func(ctx context.Context, userID string, start, end time.Time) ([]*model.Plan, error)
	created             []*model.Plan
	updated             []*model.Plan
	deleted             []string
}

func (m *mockPlanRepo) FindByID(ctx context.Context, id string) (*model.Plan, error) {
	if m.findByIDFunc == nil {
		return nil, nil
	}
	return m.findByIDFunc(ctx, id)
}

func (m *mockPlanRepo) Create(ctx context.Context, plan *model.Plan) error {
	m.created = append(m.created, plan)
	return nil
}

func (m *mockPlanRepo) Update(ctx context.Context, plan *model.Plan) error {
	m.updated = append(m.updated, plan)
	return nil
}

func (m *mockPlanRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockPlanRepo) ListOverlapping(ctx context.Context, userID string, start, end time.Time) ([]*model.Plan, error) {
	if m.listOverlappingFunc == nil {
		return nil, nil
	}
	return m.listOverlappingFunc(ctx, userID, start, end)
}

type mockSessionRepo struct {
	findByIDFunc        func(ctx context.Context, id string) (*model.Session, error)
	listOverlappingFunc func(ctx context.Context, userID string, start, end time.Time) ([]*model.Session, error)
	created             []*model.Session
	deleted             []string
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFunc == nil {
		return nil, nil
	}
	return m.findByIDFunc(ctx, id)
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	m.created = append(m.created, session)
	return nil
}

func (m *mockSessionRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockSessionRepo) ListOverlapping(ctx context.Context, userID string, start, end time.Time) ([]*model.Session, error) {
	if m.listOverlappingFunc == nil {
		return nil, nil
	}
	return m.listOverlappingFunc(ctx, userID, start, end)
}

// recordedStudyTime はRecordStudyTimeの呼び出し1回分を記録する。
type recordedStudyTime struct {
	userID   string
	date     string
	totalSec int64
	planSec  int64
}

type mockStudyDayRepo struct {
	listRangeFunc func(ctx context.Context, userID string, from, to time.Time) ([]*model.StudyDay, error)
	recordErr     error
	records       []recordedStudyTime
}

func (m *mockStudyDayRepo) RecordStudyTime(ctx context.Context, userID string, date time.Time, totalSec, planSec int64) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.records = append(m.records, recordedStudyTime{
		userID:   userID,
		date:     date.In(aggregate.LocationKST).Format("2006-01-02"),
		totalSec: totalSec,
		planSec:  planSec,
	})
	return nil
}

func (m *mockStudyDayRepo) ListRange(ctx context.Context, userID string, from, to time.Time) ([]*model.StudyDay, error) {
	if m.listRangeFunc == nil {
		return nil, nil
	}
	return m.listRangeFunc(ctx, userID, from, to)
}

// --- ヘルパー ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func kst(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, aggregate.LocationKST)
}

type serviceFixture struct {
	plans     *mockPlanRepo
	sessions  *mockSessionRepo
	studyDays *mockStudyDayRepo
	service   *Service
}

func newFixture() *serviceFixture {
	f := &serviceFixture{
		plans:     &mockPlanRepo{},
		sessions:  &mockSessionRepo{},
		studyDays: &mockStudyDayRepo{},
	}
	f.service = NewService(f.plans, f.sessions, f.studyDays, testLogger())
	return f
}

func apiErrorCode(t *testing.T, err error) string {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("APIErrorではない: %v", err)
	}
	return apiErr.Code
}

// --- 計画 ---

// 計画作成で計画時間が日次累積に加算されることを検証
func TestCreatePlan_RecordsPlanSeconds(t *testing.T) {
	f := newFixture()

	plan, err := f.service.CreatePlan(context.Background(), "user-1", CreatePlanInput{
		Subject: "수학",
		StartAt: kst(2025, 1, 6, 10, 0),
		EndAt:   kst(2025, 1, 6, 12, 0),
	})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if plan.ID == "" {
		t.Error("IDが採番されていない")
	}
	if len(f.plans.created) != 1 {
		t.Fatalf("created = %d, want 1", len(f.plans.created))
	}
	if len(f.studyDays.records) != 1 {
		t.Fatalf("records = %d, want 1", len(f.studyDays.records))
	}
	rec := f.studyDays.records[0]
	if rec.date != "2025-01-06" || rec.planSec != 7200 || rec.totalSec != 0 {
		t.Errorf("record = %+v, want 2025-01-06 plan=7200 total=0", rec)
	}
}

// 深夜をまたぐ計画が暦日ごとに按分されることを検証
func TestCreatePlan_SplitsAcrossMidnight(t *testing.T) {
	f := newFixture()

	_, err := f.service.CreatePlan(context.Background(), "user-1", CreatePlanInput{
		StartAt: kst(2025, 1, 6, 23, 0),
		EndAt:   kst(2025, 1, 7, 1, 0),
	})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if len(f.studyDays.records) != 2 {
		t.Fatalf("records = %d, want 2", len(f.studyDays.records))
	}
	if f.studyDays.records[0].date != "2025-01-06" || f.studyDays.records[0].planSec != 3600 {
		t.Errorf("day1 = %+v", f.studyDays.records[0])
	}
	if f.studyDays.records[1].date != "2025-01-07" || f.studyDays.records[1].planSec != 3600 {
		t.Errorf("day2 = %+v", f.studyDays.records[1])
	}
}

// 開始≧終了の計画が拒否されることを検証
func TestCreatePlan_RejectsInvalidInterval(t *testing.T) {
	f := newFixture()

	_, err := f.service.CreatePlan(context.Background(), "user-1", CreatePlanInput{
		StartAt: kst(2025, 1, 6, 12, 0),
		EndAt:   kst(2025, 1, 6, 12, 0),
	})
	if code := apiErrorCode(t, err); code != model.ErrCodeInvalidInterval {
		t.Errorf("code = %s, want %s", code, model.ErrCodeInvalidInterval)
	}
	if len(f.plans.created) != 0 {
		t.Error("不正な区間で計画が作成された")
	}
}

// 日次累積の書き込み失敗が計画作成を失敗させないことを検証
func TestCreatePlan_StudyDayFailureIsNonFatal(t *testing.T) {
	f := newFixture()
	f.studyDays.recordErr = errors.New("db down")

	_, err := f.service.CreatePlan(context.Background(), "user-1", CreatePlanInput{
		StartAt: kst(2025, 1, 6, 10, 0),
		EndAt:   kst(2025, 1, 6, 11, 0),
	})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if len(f.plans.created) != 1 {
		t.Errorf("created = %d, want 1", len(f.plans.created))
	}
}

// 区間変更で旧区間の取り消しと新区間の加算が行われることを検証
func TestUpdatePlan_AdjustsStudyDays(t *testing.T) {
	f := newFixture()
	f.plans.findByIDFunc = func(ctx context.Context, id string) (*model.Plan, error) {
		return &model.Plan{
			ID:      id,
			UserID:  "user-1",
			Subject: "수학",
			StartAt: kst(2025, 1, 6, 10, 0),
			EndAt:   kst(2025, 1, 6, 12, 0),
		}, nil
	}

	newStart := kst(2025, 1, 7, 9, 0)
	newEnd := kst(2025, 1, 7, 10, 0)
	plan, err := f.service.UpdatePlan(context.Background(), "user-1", model.RoleStudent, "plan-1", UpdatePlanInput{
		StartAt: &newStart,
		EndAt:   &newEnd,
	})
	if err != nil {
		t.Fatalf("UpdatePlan: %v", err)
	}
	if !plan.StartAt.Equal(newStart) {
		t.Errorf("StartAt = %v", plan.StartAt)
	}
	if len(f.plans.updated) != 1 {
		t.Fatalf("updated = %d, want 1", len(f.plans.updated))
	}
	if len(f.studyDays.records) != 2 {
		t.Fatalf("records = %d, want 2", len(f.studyDays.records))
	}
	if f.studyDays.records[0].date != "2025-01-06" || f.studyDays.records[0].planSec != -7200 {
		t.Errorf("取り消し = %+v, want 2025-01-06 plan=-7200", f.studyDays.records[0])
	}
	if f.studyDays.records[1].date != "2025-01-07" || f.studyDays.records[1].planSec != 3600 {
		t.Errorf("加算 = %+v, want 2025-01-07 plan=3600", f.studyDays.records[1])
	}
}

// 区間以外の部分更新では日次累積が変化しないことを検証
func TestUpdatePlan_NonIntervalFieldsOnly(t *testing.T) {
	f := newFixture()
	f.plans.findByIDFunc = func(ctx context.Context, id string) (*model.Plan, error) {
		return &model.Plan{
			ID:      id,
			UserID:  "user-1",
			Subject: "수학",
			StartAt: kst(2025, 1, 6, 10, 0),
			EndAt:   kst(2025, 1, 6, 12, 0),
		}, nil
	}

	memo := "복습 위주"
	plan, err := f.service.UpdatePlan(context.Background(), "user-1", model.RoleStudent, "plan-1", UpdatePlanInput{
		Memo: &memo,
	})
	if err != nil {
		t.Fatalf("UpdatePlan: %v", err)
	}
	if plan.Memo != "복습 위주" {
		t.Errorf("Memo = %q", plan.Memo)
	}
	if plan.Subject != "수학" {
		t.Errorf("Subject = %q, want unchanged", plan.Subject)
	}
	if len(f.studyDays.records) != 0 {
		t.Errorf("records = %d, want 0", len(f.studyDays.records))
	}
}

// 他人の計画の更新が禁止されることを検証
func TestUpdatePlan_ForbiddenForNonOwner(t *testing.T) {
	f := newFixture()
	f.plans.findByIDFunc = func(ctx context.Context, id string) (*model.Plan, error) {
		return &model.Plan{
			ID:      id,
			UserID:  "user-2",
			StartAt: kst(2025, 1, 6, 10, 0),
			EndAt:   kst(2025, 1, 6, 12, 0),
		}, nil
	}

	subject := "영어"
	_, err := f.service.UpdatePlan(context.Background(), "user-1", model.RoleTeacher, "plan-1", UpdatePlanInput{
		Subject: &subject,
	})
	if code := apiErrorCode(t, err); code != model.ErrCodeForbidden {
		t.Errorf("code = %s, want %s", code, model.ErrCodeForbidden)
	}
	if len(f.plans.updated) != 0 {
		t.Error("権限のない更新が実行された")
	}
}

// 管理者は他人の計画を削除できることを検証
func TestDeletePlan_AdminCanDeleteOthers(t *testing.T) {
	f := newFixture()
	f.plans.findByIDFunc = func(ctx context.Context, id string) (*model.Plan, error) {
		return &model.Plan{
			ID:      id,
			UserID:  "user-2",
			StartAt: kst(2025, 1, 6, 10, 0),
			EndAt:   kst(2025, 1, 6, 11, 0),
		}, nil
	}

	if err := f.service.DeletePlan(context.Background(), "admin-1", model.RoleAdmin, "plan-1"); err != nil {
		t.Fatalf("DeletePlan: %v", err)
	}
	if len(f.plans.deleted) != 1 {
		t.Fatalf("deleted = %d, want 1", len(f.plans.deleted))
	}
	if len(f.studyDays.records) != 1 || f.studyDays.records[0].planSec != -3600 {
		t.Errorf("records = %+v, want plan=-3600", f.studyDays.records)
	}
	if f.studyDays.records[0].userID != "user-2" {
		t.Errorf("userID = %s, want user-2（計画の所有者）", f.studyDays.records[0].userID)
	}
}

// 存在しない計画の削除がPLAN_NOT_FOUNDになることを検証
func TestDeletePlan_NotFound(t *testing.T) {
	f := newFixture()

	err := f.service.DeletePlan(context.Background(), "user-1", model.RoleStudent, "missing")
	if code := apiErrorCode(t, err); code != model.ErrCodePlanNotFound {
		t.Errorf("code = %s, want %s", code, model.ErrCodePlanNotFound)
	}
}

// --- 学習記録 ---

// 記録作成で実績時間が日次累積に加算されることを検証
func TestCreateSession_RecordsTotalSeconds(t *testing.T) {
	f := newFixture()

	session, err := f.service.CreateSession(context.Background(), "user-1", CreateSessionInput{
		Subject:     "영어",
		ActualStart: kst(2025, 1, 6, 14, 0),
		ActualEnd:   kst(2025, 1, 6, 15, 30),
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if session.ID == "" {
		t.Error("IDが採番されていない")
	}
	if len(f.studyDays.records) != 1 {
		t.Fatalf("records = %d, want 1", len(f.studyDays.records))
	}
	rec := f.studyDays.records[0]
	if rec.date != "2025-01-06" || rec.totalSec != 5400 || rec.planSec != 0 {
		t.Errorf("record = %+v, want 2025-01-06 total=5400 plan=0", rec)
	}
}

// 保存済み時間が区間との重なり比で配分され、合計が保存値に一致することを検証
func TestCreateSession_StoredDurationScaledAcrossDays(t *testing.T) {
	f := newFixture()

	duration := 90 // 区間は2時間だが保存値90分を優先する
	_, err := f.service.CreateSession(context.Background(), "user-1", CreateSessionInput{
		ActualStart: kst(2025, 1, 6, 23, 0),
		ActualEnd:   kst(2025, 1, 7, 1, 0),
		DurationMin: &duration,
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if len(f.studyDays.records) != 2 {
		t.Fatalf("records = %d, want 2", len(f.studyDays.records))
	}
	var sum int64
	for _, rec := range f.studyDays.records {
		sum += rec.totalSec
	}
	if sum != 90*60 {
		t.Errorf("配分合計 = %d, want %d", sum, 90*60)
	}
	if f.studyDays.records[0].totalSec != 2700 || f.studyDays.records[1].totalSec != 2700 {
		t.Errorf("records = %+v, want 2700/2700", f.studyDays.records)
	}
}

// 負の保存時間が拒否されることを検証
func TestCreateSession_RejectsNegativeDuration(t *testing.T) {
	f := newFixture()

	duration := -10
	_, err := f.service.CreateSession(context.Background(), "user-1", CreateSessionInput{
		ActualStart: kst(2025, 1, 6, 10, 0),
		ActualEnd:   kst(2025, 1, 6, 11, 0),
		DurationMin: &duration,
	})
	if code := apiErrorCode(t, err); code != model.ErrCodeInvalidInterval {
		t.Errorf("code = %s, want %s", code, model.ErrCodeInvalidInterval)
	}
	if len(f.sessions.created) != 0 {
		t.Error("不正な記録が作成された")
	}
}

// 記録削除で同じ按分の負値が記録されることを検証
func TestDeleteSession_ReversesStudyDays(t *testing.T) {
	f := newFixture()
	duration := 90
	f.sessions.findByIDFunc = func(ctx context.Context, id string) (*model.Session, error) {
		return &model.Session{
			ID:          id,
			UserID:      "user-1",
			ActualStart: kst(2025, 1, 6, 23, 0),
			ActualEnd:   kst(2025, 1, 7, 1, 0),
			DurationMin: &duration,
		}, nil
	}

	if err := f.service.DeleteSession(context.Background(), "user-1", model.RoleStudent, "session-1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if len(f.sessions.deleted) != 1 {
		t.Fatalf("deleted = %d, want 1", len(f.sessions.deleted))
	}
	if len(f.studyDays.records) != 2 {
		t.Fatalf("records = %d, want 2", len(f.studyDays.records))
	}
	if f.studyDays.records[0].totalSec != -2700 || f.studyDays.records[1].totalSec != -2700 {
		t.Errorf("records = %+v, want -2700/-2700", f.studyDays.records)
	}
}

// 他人の記録の削除が禁止されることを検証
func TestDeleteSession_ForbiddenForNonOwner(t *testing.T) {
	f := newFixture()
	f.sessions.findByIDFunc = func(ctx context.Context, id string) (*model.Session, error) {
		return &model.Session{
			ID:          id,
			UserID:      "user-2",
			ActualStart: kst(2025, 1, 6, 10, 0),
			ActualEnd:   kst(2025, 1, 6, 11, 0),
		}, nil
	}

	err := f.service.DeleteSession(context.Background(), "user-1", model.RoleParent, "session-1")
	if code := apiErrorCode(t, err); code != model.ErrCodeForbidden {
		t.Errorf("code = %s, want %s", code, model.ErrCodeForbidden)
	}
	if len(f.sessions.deleted) != 0 {
		t.Error("権限のない削除が実行された")
	}
}

// --- 集計・ヒートマップ ---

// スコープ集計がリポジトリの計画・記録を結合することを検証
func TestAggregateScope(t *testing.T) {
	f := newFixture()
	f.plans.listOverlappingFunc = func(ctx context.Context, userID string, start, end time.Time) ([]*model.Plan, error) {
		return []*model.Plan{{
			ID:      "plan-1",
			UserID:  userID,
			Subject: "수학",
			StartAt: kst(2025, 1, 6, 10, 0),
			EndAt:   kst(2025, 1, 6, 11, 0),
		}}, nil
	}
	f.sessions.listOverlappingFunc = func(ctx context.Context, userID string, start, end time.Time) ([]*model.Session, error) {
		return []*model.Session{{
			ID:          "session-1",
			UserID:      userID,
			Subject:     "수학",
			ActualStart: kst(2025, 1, 6, 10, 0),
			ActualEnd:   kst(2025, 1, 6, 10, 45),
		}}, nil
	}

	scope := aggregate.DayScope(kst(2025, 1, 6, 12, 0))
	result, err := f.service.AggregateScope(context.Background(), "user-1", scope, aggregate.GranularitySubject)
	if err != nil {
		t.Fatalf("AggregateScope: %v", err)
	}
	if result.TotalPlannedMinutes != 60 || result.TotalActualMinutes != 45 {
		t.Errorf("planned/actual = %d/%d, want 60/45", result.TotalPlannedMinutes, result.TotalActualMinutes)
	}
	if result.OverallRatePercent == nil || *result.OverallRatePercent != 75 {
		t.Errorf("OverallRatePercent = %v, want 75", result.OverallRatePercent)
	}
}

// ヒートマップがリポジトリの範囲取得に委譲することを検証
func TestHeatmap(t *testing.T) {
	f := newFixture()
	f.studyDays.listRangeFunc = func(ctx context.Context, userID string, from, to time.Time) ([]*model.StudyDay, error) {
		return []*model.StudyDay{
			{UserID: userID, Date: kst(2025, 1, 6, 0, 0), TotalSeconds: 5400, PlanSeconds: 7200},
		}, nil
	}

	days, err := f.service.Heatmap(context.Background(), "user-1", kst(2025, 1, 1, 0, 0), kst(2025, 1, 31, 0, 0))
	if err != nil {
		t.Fatalf("Heatmap: %v", err)
	}
	if len(days) != 1 || days[0].TotalSeconds != 5400 {
		t.Errorf("days = %+v", days)
	}
}

// リポジトリ障害がラップされて伝播することを検証
func TestListPlans_WrapsRepositoryError(t *testing.T) {
	f := newFixture()
	repoErr := errors.New("connection refused")
	f.plans.listOverlappingFunc = func(ctx context.Context, userID string, start, end time.Time) ([]*model.Plan, error) {
		return nil, repoErr
	}

	_, err := f.service.ListPlans(context.Background(), "user-1", aggregate.DayScope(kst(2025, 1, 6, 0, 0)))
	if !errors.Is(err, repoErr) {
		t.Errorf("err = %v, want wrapped %v", err, repoErr)
	}
}
