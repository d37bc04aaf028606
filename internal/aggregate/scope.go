// Package aggregate は学習計画と学習記録の区間集計を提供する。
// 計画対実績の分単位合計、バケット（科目/日/時間帯）ごとの内訳、
// 計画達成率の算出を1箇所に集約した正規の実装。
package aggregate

import "time"

// LocationKST は全ての暦日・週境界の計算に使う固定タイムゾーン（UTC+9）。
// 保存時刻はUTCのまま扱い、境界計算の時だけKSTに変換する。
// KSTには夏時間がないため固定オフセットで正しい。
var LocationKST = time.FixedZone("KST", 9*60*60)

// Scope は集計対象の半開区間 [Start, End) を表す。
type Scope struct {
	Start time.Time
	End   time.Time
}

// Contains は指定時刻がスコープ内かを返す。
func (s Scope) Contains(t time.Time) bool {
	return !t.Before(s.Start) && t.Before(s.End)
}

// Duration はスコープの長さを返す。
func (s Scope) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Granularity は集計のグルーピング粒度を表す。
type Granularity string

const (
	// GranularitySubject は科目ごとのグルーピング。
	GranularitySubject Granularity = "subject"
	// GranularityDay は暦日（KST）ごとのグルーピング。
	GranularityDay Granularity = "day"
	// GranularityHour は時間帯（KST、1時間刻み）ごとのグルーピング。
	GranularityHour Granularity = "hour"
)

// ParseGranularity は文字列をGranularityに変換する。未知の値はfalseを返す。
func ParseGranularity(s string) (Granularity, bool) {
	switch Granularity(s) {
	case GranularitySubject, GranularityDay, GranularityHour:
		return Granularity(s), true
	default:
		return "", false
	}
}

// civilDate は指定時刻が属するKSTの暦日の0時（KST）を返す。
func civilDate(t time.Time) time.Time {
	k := t.In(LocationKST)
	return time.Date(k.Year(), k.Month(), k.Day(), 0, 0, 0, 0, LocationKST)
}

// DayScope は指定時刻が属するKSTの暦日1日分のスコープを返す。
func DayScope(t time.Time) Scope {
	start := civilDate(t)
	return Scope{Start: start, End: start.AddDate(0, 0, 1)}
}

// WeekScope は指定時刻が属するISO週（月〜日、KST）のスコープを返す。
func WeekScope(t time.Time) Scope {
	d := civilDate(t)
	// time.Weekdayは日曜=0。月曜始まりのオフセットに変換する。
	offset := (int(d.Weekday()) + 6) % 7
	monday := d.AddDate(0, 0, -offset)
	return Scope{Start: monday, End: monday.AddDate(0, 0, 7)}
}

// PreviousWeekScope は指定時刻から見て直前の完了したISO週のスコープを返す。
// 週次スイープは実行時刻のこの値を対象週とする。
func PreviousWeekScope(t time.Time) Scope {
	this := WeekScope(t)
	return Scope{Start: this.Start.AddDate(0, 0, -7), End: this.Start}
}

// MonthScope は指定時刻が属するKSTの暦月のスコープを返す。
func MonthScope(t time.Time) Scope {
	k := t.In(LocationKST)
	start := time.Date(k.Year(), k.Month(), 1, 0, 0, 0, 0, LocationKST)
	return Scope{Start: start, End: start.AddDate(0, 1, 0)}
}

// DaySeconds は1暦日（KST）に帰属する秒数を表す。
type DaySeconds struct {
	Date    time.Time // KSTの暦日0時
	Seconds int64
}

// SplitSecondsByDay は区間 [start, end) をKSTの暦日ごとに分割し、
// 各暦日に帰属する秒数を日付昇順で返す。日をまたぐ区間は境界で按分され、
// 合計は必ず元の区間長に一致する。不正な区間（start >= end）は空を返す。
func SplitSecondsByDay(start, end time.Time) []DaySeconds {
	if !start.Before(end) {
		return nil
	}

	var result []DaySeconds
	day := DayScope(start)
	for day.Start.Before(end) {
		overlap := overlapDuration(start, end, day.Start, day.End)
		if overlap > 0 {
			result = append(result, DaySeconds{
				Date:    day.Start,
				Seconds: int64(overlap / time.Second),
			})
		}
		day = Scope{Start: day.End, End: day.End.AddDate(0, 0, 1)}
	}
	return result
}

// overlapDuration は2つの半開区間の重なりの長さを返す。重ならない場合は0。
// 判定は max(aStart, bStart) < min(aEnd, bEnd)。
func overlapDuration(aStart, aEnd, bStart, bEnd time.Time) time.Duration {
	start := aStart
	if bStart.After(start) {
		start = bStart
	}
	end := aEnd
	if bEnd.Before(end) {
		end = bEnd
	}
	if !start.Before(end) {
		return 0
	}
	return end.Sub(start)
}
