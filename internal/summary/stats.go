// Package summary は週次学習統計の算出とフィードバック要約の生成を提供する。
package summary

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/soyoon/studylog/internal/aggregate"
	"github.com/soyoon/studylog/internal/model"
)

// 時間帯区分のラベル（プロダクトの表示言語）。
const (
	slotMorning   = "오전" // 〜12時
	slotAfternoon = "오후" // 12〜18時
	slotNight     = "야간" // 18時〜
)

// WeekStats は1ユーザー×1週間の学習統計。プロンプト生成の入力になる。
type WeekStats struct {
	StudentName string
	WeekStart   time.Time
	WeekEnd     time.Time // 週の最終日（日曜、暦日）

	// TotalMinutes は週の合計学習時間（分）。
	TotalMinutes int
	// AvgPerDayMinutes は学習した日あたりの平均（分）。学習日0日のときは0。
	AvgPerDayMinutes int
	// PlanTotalMinutes は週の計画時間の合計（分）。
	PlanTotalMinutes int
	// PlanAchievementPercent は計画に対する実践率（%）。計画0のときは0。
	PlanAchievementPercent int

	// SubjectRatios は科目別比重。"수학: 40%, 영어: 35%, 기타: 25%" の形式。
	SubjectRatios string
	// DayPattern は曜日別の学習量。"Mon: 120분, Tue: 0분, ..." の形式（月〜日）。
	DayPattern string
	// HourPattern は時間帯別の集中度。"오전: 20%, 오후: 50%, 야간: 30%" の形式。
	HourPattern string

	// MaxStreakDays は週内の最長連続学習日数。
	MaxStreakDays int
	// ConsistencyScore は連続学習日数ベースのルーチン安定性指数（最大100）。
	ConsistencyScore int

	// StudyDayCount は学習セッションが存在した日数。
	StudyDayCount int
	// SkippedRecords は不正のため除外したレコード数。
	SkippedRecords int
}

// HasData は統計の元となる有効なセッションが1件でもあったかを返す。
func (s *WeekStats) HasData() bool {
	return s.StudyDayCount > 0
}

// BuildWeekStats は週スコープに属する計画・記録から統計を算出する。
// セッションは開始時刻のKST暦日・時刻で曜日・時間帯に帰属させる。
// 不正なレコードは除外してSkippedRecordsに計上する。
func BuildWeekStats(studentName string, week aggregate.Scope, plans []*model.Plan, sessions []*model.Session) *WeekStats {
	stats := &WeekStats{
		StudentName: studentName,
		WeekStart:   week.Start,
		WeekEnd:     week.End.AddDate(0, 0, -1),
	}

	for _, p := range plans {
		if !p.Valid() {
			stats.SkippedRecords++
			continue
		}
		stats.PlanTotalMinutes += p.DurationMinutes()
	}

	subjectMinutes := make(map[string]int)
	dayMinutes := make([]int, 7) // 月=0 〜 日=6
	slotMinutes := map[string]int{slotMorning: 0, slotAfternoon: 0, slotNight: 0}
	studyDates := make(map[string]bool)

	for _, s := range sessions {
		if !s.Valid() {
			stats.SkippedRecords++
			continue
		}
		minutes := s.Minutes()
		stats.TotalMinutes += minutes

		start := s.ActualStart.In(aggregate.LocationKST)
		studyDates[start.Format("2006-01-02")] = true

		subject := s.Subject
		if subject == "" {
			subject = aggregate.SubjectUnspecified
		}
		subjectMinutes[subject] += minutes

		dayMinutes[(int(start.Weekday())+6)%7] += minutes

		switch {
		case start.Hour() < 12:
			slotMinutes[slotMorning] += minutes
		case start.Hour() < 18:
			slotMinutes[slotAfternoon] += minutes
		default:
			slotMinutes[slotNight] += minutes
		}
	}

	stats.StudyDayCount = len(studyDates)
	if stats.StudyDayCount > 0 {
		stats.AvgPerDayMinutes = int(math.Round(float64(stats.TotalMinutes) / float64(stats.StudyDayCount)))
	}
	if stats.PlanTotalMinutes > 0 {
		stats.PlanAchievementPercent = int(math.Round(float64(stats.TotalMinutes) / float64(stats.PlanTotalMinutes) * 100))
	}

	stats.SubjectRatios = formatSubjectRatios(subjectMinutes, stats.TotalMinutes)
	stats.DayPattern = formatDayPattern(dayMinutes)
	stats.HourPattern = formatSlotRatios(slotMinutes, stats.TotalMinutes)

	stats.MaxStreakDays = maxStreak(studyDates)
	stats.ConsistencyScore = stats.MaxStreakDays * 14
	if stats.ConsistencyScore > 100 {
		stats.ConsistencyScore = 100
	}

	return stats
}

// formatSubjectRatios は科目別比重を時間の多い順に整形する。
func formatSubjectRatios(subjectMinutes map[string]int, total int) string {
	if total == 0 || len(subjectMinutes) == 0 {
		return ""
	}

	type entry struct {
		subject string
		minutes int
	}
	entries := make([]entry, 0, len(subjectMinutes))
	for subj, min := range subjectMinutes {
		entries = append(entries, entry{subj, min})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].minutes != entries[j].minutes {
			return entries[i].minutes > entries[j].minutes
		}
		return entries[i].subject < entries[j].subject
	})

	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = fmt.Sprintf("%s: %d%%", e.subject, int(math.Round(float64(e.minutes)/float64(total)*100)))
	}
	return strings.Join(parts, ", ")
}

// formatDayPattern は月〜日の曜日別学習量を整形する。
func formatDayPattern(dayMinutes []int) string {
	labels := []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
	parts := make([]string, 7)
	for i, m := range dayMinutes {
		parts[i] = fmt.Sprintf("%s: %d분", labels[i], m)
	}
	return strings.Join(parts, ", ")
}

// formatSlotRatios は時間帯別の集中度を整形する。
func formatSlotRatios(slotMinutes map[string]int, total int) string {
	if total == 0 {
		return ""
	}
	parts := make([]string, 0, 3)
	for _, slot := range []string{slotMorning, slotAfternoon, slotNight} {
		parts = append(parts, fmt.Sprintf("%s: %d%%", slot, int(math.Round(float64(slotMinutes[slot])/float64(total)*100))))
	}
	return strings.Join(parts, ", ")
}

// maxStreak は学習日の集合から最長連続日数を返す。
func maxStreak(studyDates map[string]bool) int {
	if len(studyDates) == 0 {
		return 0
	}

	dates := make([]string, 0, len(studyDates))
	for d := range studyDates {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	best, current := 1, 1
	for i := 1; i < len(dates); i++ {
		prev, _ := time.ParseInLocation("2006-01-02", dates[i-1], aggregate.LocationKST)
		curr, _ := time.ParseInLocation("2006-01-02", dates[i], aggregate.LocationKST)
		if curr.Sub(prev) == 24*time.Hour {
			current++
		} else {
			current = 1
		}
		if current > best {
			best = current
		}
	}
	return best
}
