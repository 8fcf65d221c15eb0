// Package timesheet は作業記録の集計ロジックを提供する。
//
// すべての関数は副作用を持たない純粋関数で、呼び出し側から渡された
// 記録のスナップショットと期間だけを入力とする。時間は内部的に
// time.Durationで扱い、表示境界でのみ時間（hours）に丸める。
package timesheet

import (
	"math"
	"time"
)

// Range は集計対象の期間 [From, To) を表す。
type Range struct {
	From time.Time
	To   time.Time
}

// Contains はtが期間内にあるかを返す。
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}

// Clipped は期間で切り取られた区間を表す。
type Clipped struct {
	Start time.Time
	End   time.Time
}

// Duration は切り取られた区間の長さを返す。
func (c Clipped) Duration() time.Duration {
	return c.End.Sub(c.Start)
}

// ClipInterval は [start, end] を期間rで切り取った区間を返す。
// endがnilの場合はnowを終了時刻とみなす。
// 重なりが無い（長さ0以下）の場合はfalseを返す。
func ClipInterval(start time.Time, end *time.Time, r Range, now time.Time) (Clipped, bool) {
	stop := now
	if end != nil {
		stop = *end
	}

	clipStart := start
	if r.From.After(clipStart) {
		clipStart = r.From
	}
	clipEnd := stop
	if r.To.Before(clipEnd) {
		clipEnd = r.To
	}

	if !clipEnd.After(clipStart) {
		return Clipped{}, false
	}
	return Clipped{Start: clipStart, End: clipEnd}, true
}

// Clip は [start, end] と期間rの重なりの長さを返す。重なりが無ければ0。
func Clip(start time.Time, end *time.Time, r Range, now time.Time) time.Duration {
	c, ok := ClipInterval(start, end, r, now)
	if !ok {
		return 0
	}
	return c.Duration()
}

// RoundHours は時間を小数第2位に丸める。
func RoundHours(h float64) float64 {
	return math.Round(h*100) / 100
}

// Hours はdをhoursに変換し小数第2位に丸める。
func Hours(d time.Duration) float64 {
	return RoundHours(d.Hours())
}
