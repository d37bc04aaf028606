package summary

import (
	"strings"
	"testing"
	"time"

	"github.com/soyoon/studylog/internal/aggregate"
	"github.com/soyoon/studylog/internal/model"
)

func kst(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, aggregate.LocationKST)
}

func testSession(subject string, start time.Time, durationMin int) *model.Session {
	return &model.Session{
		ID:          "s-" + start.Format("0102-1504"),
		UserID:      "user-1",
		Subject:     subject,
		ActualStart: start,
		ActualEnd:   start.Add(time.Duration(durationMin) * time.Minute),
	}
}

// 週次統計の主要な項目を検証
func TestBuildWeekStats(t *testing.T) {
	week := aggregate.WeekScope(kst(2025, 1, 8, 12, 0)) // 2025-01-06（月）〜

	plans := []*model.Plan{
		{ID: "p1", UserID: "user-1", Subject: "수학", StartAt: kst(2025, 1, 6, 9, 0), EndAt: kst(2025, 1, 6, 11, 30)},
	}
	sessions := []*model.Session{
		testSession("수학", kst(2025, 1, 6, 9, 0), 60),
		testSession("영어", kst(2025, 1, 6, 14, 0), 30),
		testSession("수학", kst(2025, 1, 7, 20, 0), 30),
	}

	stats := BuildWeekStats("지수", week, plans, sessions)

	if stats.TotalMinutes != 120 {
		t.Errorf("TotalMinutes = %d, want 120", stats.TotalMinutes)
	}
	if stats.StudyDayCount != 2 {
		t.Errorf("StudyDayCount = %d, want 2", stats.StudyDayCount)
	}
	if stats.AvgPerDayMinutes != 60 {
		t.Errorf("AvgPerDayMinutes = %d, want 60", stats.AvgPerDayMinutes)
	}
	if stats.PlanTotalMinutes != 150 {
		t.Errorf("PlanTotalMinutes = %d, want 150", stats.PlanTotalMinutes)
	}
	if stats.PlanAchievementPercent != 80 {
		t.Errorf("PlanAchievementPercent = %d, want 80", stats.PlanAchievementPercent)
	}
	if stats.SubjectRatios != "수학: 75%, 영어: 25%" {
		t.Errorf("SubjectRatios = %q", stats.SubjectRatios)
	}
	if stats.HourPattern != "오전: 50%, 오후: 25%, 야간: 25%" {
		t.Errorf("HourPattern = %q", stats.HourPattern)
	}
	if !strings.HasPrefix(stats.DayPattern, "Mon: 90분, Tue: 30분, Wed: 0분") {
		t.Errorf("DayPattern = %q", stats.DayPattern)
	}
	if stats.MaxStreakDays != 2 {
		t.Errorf("MaxStreakDays = %d, want 2", stats.MaxStreakDays)
	}
	if stats.ConsistencyScore != 28 {
		t.Errorf("ConsistencyScore = %d, want 28", stats.ConsistencyScore)
	}
	if !stats.HasData() {
		t.Error("HasData() = false, want true")
	}
}

// セッションなしの週はHasData()がfalseになることを検証
func TestBuildWeekStats_NoSessions(t *testing.T) {
	week := aggregate.WeekScope(kst(2025, 1, 8, 12, 0))

	stats := BuildWeekStats("지수", week, nil, nil)

	if stats.HasData() {
		t.Error("HasData() = true, want false")
	}
	if stats.TotalMinutes != 0 || stats.AvgPerDayMinutes != 0 {
		t.Errorf("totals = %d/%d, want 0/0", stats.TotalMinutes, stats.AvgPerDayMinutes)
	}
	if stats.SubjectRatios != "" || stats.HourPattern != "" {
		t.Errorf("ratios should be empty, got %q / %q", stats.SubjectRatios, stats.HourPattern)
	}
}

// 科目未設定が「기타」に分類されることを検証
func TestBuildWeekStats_UnspecifiedSubject(t *testing.T) {
	week := aggregate.WeekScope(kst(2025, 1, 8, 12, 0))
	sessions := []*model.Session{
		testSession("", kst(2025, 1, 6, 10, 0), 45),
	}

	stats := BuildWeekStats("지수", week, nil, sessions)

	if stats.SubjectRatios != "기타: 100%" {
		t.Errorf("SubjectRatios = %q, want 기타: 100%%", stats.SubjectRatios)
	}
}

// 不正レコードが除外・計上されることを検証
func TestBuildWeekStats_SkipsMalformed(t *testing.T) {
	week := aggregate.WeekScope(kst(2025, 1, 8, 12, 0))

	inverted := testSession("수학", kst(2025, 1, 6, 10, 0), 60)
	inverted.ActualEnd = inverted.ActualStart.Add(-time.Hour)

	sessions := []*model.Session{
		inverted,
		testSession("영어", kst(2025, 1, 6, 14, 0), 30),
	}
	plans := []*model.Plan{
		{ID: "p1", UserID: "user-1", StartAt: kst(2025, 1, 6, 9, 0), EndAt: kst(2025, 1, 6, 9, 0)},
	}

	stats := BuildWeekStats("지수", week, plans, sessions)

	if stats.SkippedRecords != 2 {
		t.Errorf("SkippedRecords = %d, want 2", stats.SkippedRecords)
	}
	if stats.TotalMinutes != 30 {
		t.Errorf("TotalMinutes = %d, want 30", stats.TotalMinutes)
	}
}

// 保存済みduration_minが区間長より優先されることを検証
func TestBuildWeekStats_StoredDurationWins(t *testing.T) {
	week := aggregate.WeekScope(kst(2025, 1, 8, 12, 0))

	stored := 45
	s := testSession("수학", kst(2025, 1, 6, 9, 0), 60)
	s.DurationMin = &stored

	stats := BuildWeekStats("지수", week, nil, []*model.Session{s})

	if stats.TotalMinutes != 45 {
		t.Errorf("TotalMinutes = %d, want 45 (stored duration)", stats.TotalMinutes)
	}
}

// 最長連続学習日数の計算を検証
func TestMaxStreak(t *testing.T) {
	tests := []struct {
		name  string
		dates []string
		want  int
	}{
		{"empty", nil, 0},
		{"single day", []string{"2025-01-06"}, 1},
		{"three consecutive", []string{"2025-01-06", "2025-01-07", "2025-01-08"}, 3},
		{"gap resets", []string{"2025-01-06", "2025-01-08", "2025-01-09"}, 2},
		{"full week", []string{"2025-01-06", "2025-01-07", "2025-01-08", "2025-01-09", "2025-01-10", "2025-01-11", "2025-01-12"}, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := make(map[string]bool, len(tt.dates))
			for _, d := range tt.dates {
				set[d] = true
			}
			if got := maxStreak(set); got != tt.want {
				t.Errorf("maxStreak() = %d, want %d", got, tt.want)
			}
		})
	}
}

// プロンプトに統計値が埋め込まれることを検証
func TestBuildPrompt(t *testing.T) {
	week := aggregate.WeekScope(kst(2025, 1, 8, 12, 0))
	sessions := []*model.Session{
		testSession("수학", kst(2025, 1, 6, 9, 0), 60),
	}

	stats := BuildWeekStats("지수", week, nil, sessions)
	prompt := BuildPrompt(stats)

	for _, want := range []string{
		"학생 이름: 지수",
		"1월 6일 ~ 1월 12일",
		"총 공부시간: 60분",
		"수학: 100%",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt should contain %q", want)
		}
	}
}
