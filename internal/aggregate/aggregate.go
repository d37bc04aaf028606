package aggregate

import (
	"math"
	"sort"
	"time"

	"github.com/soyoon/studylog/internal/model"
)

// SubjectUnspecified は科目未設定のレコードの分類先ラベル。
// プロダクトの表示言語（韓国語）で「その他」。
const SubjectUnspecified = "기타"

// Bucket は1グルーピング単位の計画対実績を表す。
type Bucket struct {
	// Label はバケットの識別子。科目名、"2025-01-06"（日）、"09:00"（時間帯）など。
	Label string
	// PlannedMinutes はこのバケットに帰属する計画時間（分）。
	PlannedMinutes int
	// ActualMinutes はこのバケットに帰属する実績時間（分）。
	ActualMinutes int
	// RatePercent は達成率（%）。計画が0で実績がある場合はnil（「計画なし」）。
	RatePercent *int
}

// Result は集計結果を表す。
type Result struct {
	Buckets             []Bucket
	TotalPlannedMinutes int
	TotalActualMinutes  int
	// OverallRatePercent はスコープ全体の達成率。計画0かつ実績ありの場合はnil。
	OverallRatePercent *int
	// SkippedRecords は不正（終了≦開始、負の保存時間）のため除外したレコード数。
	SkippedRecords int
}

// Aggregate はスコープと交差する計画・記録の集合から計画対実績の内訳を計算する。
// レコードが複数バケットをまたぐ場合、その時間は各バケットとの重なりに比例して
// 按分される（開始バケットへの全量帰属はしない）。不正なレコードは集計から
// 除外され、SkippedRecordsに計上される。純粋関数であり入力を変更しない。
func Aggregate(scope Scope, granularity Granularity, plans []*model.Plan, sessions []*model.Session) *Result {
	result := &Result{}

	if granularity == GranularitySubject {
		aggregateBySubject(result, scope, plans, sessions)
	} else {
		aggregateByTime(result, scope, granularity, plans, sessions)
	}

	for i := range result.Buckets {
		b := &result.Buckets[i]
		b.RatePercent = ratePercent(b.PlannedMinutes, b.ActualMinutes)
		result.TotalPlannedMinutes += b.PlannedMinutes
		result.TotalActualMinutes += b.ActualMinutes
	}
	result.OverallRatePercent = ratePercent(result.TotalPlannedMinutes, result.TotalActualMinutes)

	return result
}

// aggregateBySubject は科目ごとに計画対実績を集計する。
func aggregateBySubject(result *Result, scope Scope, plans []*model.Plan, sessions []*model.Session) {
	planned := make(map[string]int)
	actual := make(map[string]int)

	for _, p := range plans {
		if !p.Valid() {
			result.SkippedRecords++
			continue
		}
		minutes := allocateMinutes(p.StartAt, p.EndAt, p.DurationMinutes(), []Scope{scope})
		if minutes[0] > 0 {
			planned[subjectLabel(p.Subject)] += minutes[0]
		}
	}

	for _, s := range sessions {
		if !s.Valid() {
			result.SkippedRecords++
			continue
		}
		minutes := allocateMinutes(s.ActualStart, s.ActualEnd, s.Minutes(), []Scope{scope})
		if minutes[0] > 0 {
			actual[subjectLabel(s.Subject)] += minutes[0]
		}
	}

	labels := make(map[string]bool)
	for l := range planned {
		labels[l] = true
	}
	for l := range actual {
		labels[l] = true
	}

	for l := range labels {
		result.Buckets = append(result.Buckets, Bucket{
			Label:          l,
			PlannedMinutes: planned[l],
			ActualMinutes:  actual[l],
		})
	}

	// 実績時間の多い順（同値は計画時間の多い順、次いでラベル昇順）
	sort.Slice(result.Buckets, func(i, j int) bool {
		a, b := result.Buckets[i], result.Buckets[j]
		if a.ActualMinutes != b.ActualMinutes {
			return a.ActualMinutes > b.ActualMinutes
		}
		if a.PlannedMinutes != b.PlannedMinutes {
			return a.PlannedMinutes > b.PlannedMinutes
		}
		return a.Label < b.Label
	})
}

// aggregateByTime は暦日または時間帯ごとに計画対実績を集計する。
func aggregateByTime(result *Result, scope Scope, granularity Granularity, plans []*model.Plan, sessions []*model.Session) {
	buckets := timeBuckets(scope, granularity)
	plannedTotals := make([]int, len(buckets))
	actualTotals := make([]int, len(buckets))

	for _, p := range plans {
		if !p.Valid() {
			result.SkippedRecords++
			continue
		}
		for i, m := range allocateMinutes(p.StartAt, p.EndAt, p.DurationMinutes(), buckets) {
			plannedTotals[i] += m
		}
	}

	for _, s := range sessions {
		if !s.Valid() {
			result.SkippedRecords++
			continue
		}
		for i, m := range allocateMinutes(s.ActualStart, s.ActualEnd, s.Minutes(), buckets) {
			actualTotals[i] += m
		}
	}

	for i, b := range buckets {
		result.Buckets = append(result.Buckets, Bucket{
			Label:          bucketLabel(b, scope, granularity),
			PlannedMinutes: plannedTotals[i],
			ActualMinutes:  actualTotals[i],
		})
	}
}

// timeBuckets はスコープをKSTの暦日または1時間単位に分割する。
// 先頭・末尾のバケットはスコープ境界で切り詰められる。
func timeBuckets(scope Scope, granularity Granularity) []Scope {
	var aligned time.Time
	var next func(time.Time) time.Time

	switch granularity {
	case GranularityHour:
		k := scope.Start.In(LocationKST)
		aligned = time.Date(k.Year(), k.Month(), k.Day(), k.Hour(), 0, 0, 0, LocationKST)
		next = func(t time.Time) time.Time { return t.Add(time.Hour) }
	default: // GranularityDay
		aligned = civilDate(scope.Start)
		next = func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }
	}

	var buckets []Scope
	for cur := aligned; cur.Before(scope.End); cur = next(cur) {
		b := Scope{Start: cur, End: next(cur)}
		if b.Start.Before(scope.Start) {
			b.Start = scope.Start
		}
		if b.End.After(scope.End) {
			b.End = scope.End
		}
		buckets = append(buckets, b)
	}
	return buckets
}

// bucketLabel はバケットの表示ラベルを返す。
// 日: "2025-01-06"。時間帯: スコープが1日以内なら "09:00"、それ以上なら日付付き。
func bucketLabel(b Scope, scope Scope, granularity Granularity) string {
	k := b.Start.In(LocationKST)
	if granularity == GranularityHour {
		if scope.Duration() <= 24*time.Hour {
			return k.Format("15:00")
		}
		return k.Format("2006-01-02 15:00")
	}
	return k.Format("2006-01-02")
}

// allocateMinutes はレコード区間 [recStart, recEnd) の合計分数を、
// 各バケットとの重なり秒数に比例して配分する。累積丸め方式のため、
// バケット群がレコードを完全に覆う場合、配分の合計は必ずtotalMinutesに一致する
// （分が失われることも二重計上されることもない）。バケットの外にはみ出した
// 時間は配分されない。
func allocateMinutes(recStart, recEnd time.Time, totalMinutes int, buckets []Scope) []int {
	out := make([]int, len(buckets))
	recSec := recEnd.Sub(recStart).Seconds()
	if recSec <= 0 || totalMinutes <= 0 {
		return out
	}

	var cumSec float64
	var allocated int
	for i, b := range buckets {
		overlap := overlapDuration(recStart, recEnd, b.Start, b.End).Seconds()
		if overlap <= 0 {
			continue
		}
		cumSec += overlap
		target := int(math.Round(float64(totalMinutes) * cumSec / recSec))
		out[i] = target - allocated
		allocated = target
	}
	return out
}

// ratePercent は達成率（%）を計算する。
// 計画>0: round(実績/計画×100)。計画0かつ実績0: 0。計画0かつ実績>0: nil（「計画なし」）。
// ゼロ除算やNaNは発生しない。
func ratePercent(planned, actual int) *int {
	if planned > 0 {
		r := int(math.Round(float64(actual) / float64(planned) * 100))
		return &r
	}
	if actual == 0 {
		r := 0
		return &r
	}
	return nil
}

// subjectLabel は科目名を正規化する。未設定は「기타」（その他）に分類する。
func subjectLabel(subject string) string {
	if subject == "" {
		return SubjectUnspecified
	}
	return subject
}
