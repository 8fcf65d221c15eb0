package timesheet

import (
	"sort"
	"time"

	"github.com/hitoshi/tpodo/internal/model"
)

const (
	// OpenEntryDisplayLength は計測中の記録をタイムライン上に描く長さ。
	OpenEntryDisplayLength = 5 * time.Minute
	// MinDisplayHeight はタイムライン項目の最小の高さ。
	MinDisplayHeight = 3 * time.Minute
)

// TimelineItem は1日のタイムライン上の1項目。
type TimelineItem struct {
	EntryID         string
	Title           string
	Start           time.Time
	End             time.Time
	Open            bool
	OffsetMinutes   float64 // 0時からの経過分
	DurationMinutes float64 // 日の範囲で切り取った長さ
	HeightMinutes   float64 // 表示上の高さ（MinDisplayHeight以上）
}

// Timeline は指定日のタイムライン項目を開始時刻順に返す。
// 各記録は日の範囲で切り取る。計測中の記録は開始からOpenEntryDisplayLengthの長さで描く。
func Timeline(entries []model.TimeEntry, day Day) []TimelineItem {
	var items []TimelineItem

	for i := range entries {
		e := &entries[i]
		if e.IsCorrupt() {
			continue
		}

		end := e.End
		if e.IsOpen() {
			displayEnd := e.Start.Add(OpenEntryDisplayLength)
			end = &displayEnd
		}

		c, ok := ClipInterval(e.Start, end, day.Range, *end)
		if !ok {
			continue
		}

		height := c.Duration()
		if height < MinDisplayHeight {
			height = MinDisplayHeight
		}

		items = append(items, TimelineItem{
			EntryID:         e.ID,
			Title:           e.Title,
			Start:           c.Start,
			End:             c.End,
			Open:            e.IsOpen(),
			OffsetMinutes:   c.Start.Sub(day.Range.From).Minutes(),
			DurationMinutes: c.Duration().Minutes(),
			HeightMinutes:   height.Minutes(),
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Start.Before(items[j].Start)
	})
	return items
}
