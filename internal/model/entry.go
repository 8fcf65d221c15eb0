package model

import "time"

// TimeEntry はユーザーが記録した作業時間を表す。
// Endがnilの場合は計測中（終了していない）記録。
type TimeEntry struct {
	ID        string
	UserID    string
	Title     string
	ProjectID *string
	TaskID    *string
	TeamID    *string
	Start     time.Time
	End       *time.Time
	Billable  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsOpen は終了時刻が未設定の計測中記録かどうかを返す。
func (e *TimeEntry) IsOpen() bool {
	return e.End == nil
}

// IsCorrupt は終了時刻が開始時刻より前の不整合な記録かどうかを返す。
func (e *TimeEntry) IsCorrupt() bool {
	if e.Start.IsZero() {
		return true
	}
	return e.End != nil && e.End.Before(e.Start)
}
