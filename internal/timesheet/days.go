package timesheet

import (
	"time"

	"github.com/hitoshi/tpodo/internal/model"
)

// Day は基準タイムゾーンにおける1日を表す。
// Range は [その日の0時, 翌日の0時) で、夏時間切替日も正しく扱う。
type Day struct {
	Date  time.Time
	Range Range
}

// StartOfDay はlocにおけるtの属する日の0時を返す。
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DayOf はlocにおけるtの属する日を返す。
func DayOf(t time.Time, loc *time.Location) Day {
	start := StartOfDay(t, loc)
	return Day{
		Date:  start,
		Range: Range{From: start, To: start.AddDate(0, 0, 1)},
	}
}

// DayRanges はfirstの属する日から始まるn日分の日を古い順に返す。
func DayRanges(first time.Time, n int, loc *time.Location) []Day {
	if n <= 0 {
		return nil
	}
	start := StartOfDay(first, loc)
	days := make([]Day, n)
	for i := 0; i < n; i++ {
		from := start.AddDate(0, 0, i)
		days[i] = Day{
			Date:  from,
			Range: Range{From: from, To: from.AddDate(0, 0, 1)},
		}
	}
	return days
}

// LastNDays はnowの属する日を最終日とするn日分の日を古い順に返す。
func LastNDays(now time.Time, n int, loc *time.Location) []Day {
	if n <= 0 {
		return nil
	}
	first := StartOfDay(now, loc).AddDate(0, 0, -(n - 1))
	return DayRanges(first, n, loc)
}

// Span は連続する日の全体期間を返す。daysが空ならゼロ値。
func Span(days []Day) Range {
	if len(days) == 0 {
		return Range{}
	}
	return Range{From: days[0].Range.From, To: days[len(days)-1].Range.To}
}

// DayBucket は1日分の集計結果。
type DayBucket struct {
	Date     time.Time
	Duration time.Duration
}

// Hours は集計時間をhoursで返す（丸めなし）。
func (b DayBucket) Hours() float64 {
	return b.Duration.Hours()
}

// AggregateByDay は日ごとの作業時間を集計する。
// 日をまたぐ記録は各日に重なった分だけ加算される。
// 計測中（Endがnil）の記録と不整合な記録は集計から除外する。
// 結果はdaysと同じ順序で、件数もdaysと一致する。
func AggregateByDay(entries []model.TimeEntry, days []Day) []DayBucket {
	buckets := make([]DayBucket, len(days))
	for i, d := range days {
		buckets[i].Date = d.Date
	}

	for i := range entries {
		e := &entries[i]
		if e.IsOpen() || e.IsCorrupt() {
			continue
		}
		for j, d := range days {
			// Endが確定しているためnowは参照されない
			buckets[j].Duration += Clip(e.Start, e.End, d.Range, *e.End)
		}
	}

	return buckets
}
