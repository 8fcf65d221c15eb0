package timesheet

import (
	"sort"
	"time"

	"github.com/hitoshi/tpodo/internal/model"
)

// UnassignedProject はプロジェクト未設定の記録の集計キー。
const UnassignedProject = "Unassigned"

// ProjectNameFunc はプロジェクトIDから表示名を引く関数。
// 見つからない場合はfalseを返す。
type ProjectNameFunc func(projectID string) (string, bool)

// AggregateByProject はプロジェクト名ごとの作業時間（hours、丸めなし）を集計する。
// プロジェクト未設定の記録は "Unassigned" に、名前を引けないIDはIDそのものをキーに集計する。
// 計測中の記録と不整合な記録は除外する。
func AggregateByProject(entries []model.TimeEntry, lookup ProjectNameFunc) map[string]float64 {
	totals := make(map[string]float64)
	for i := range entries {
		e := &entries[i]
		if e.IsOpen() || e.IsCorrupt() {
			continue
		}
		totals[projectKey(e, lookup)] += e.End.Sub(e.Start).Hours()
	}
	return totals
}

// AggregateByProjectIn はAggregateByProjectと同様だが、各記録を期間rで切り取ってから集計する。
func AggregateByProjectIn(entries []model.TimeEntry, r Range, lookup ProjectNameFunc) map[string]float64 {
	totals := make(map[string]float64)
	for i := range entries {
		e := &entries[i]
		if e.IsOpen() || e.IsCorrupt() {
			continue
		}
		d := Clip(e.Start, e.End, r, *e.End)
		if d <= 0 {
			continue
		}
		totals[projectKey(e, lookup)] += d.Hours()
	}
	return totals
}

func projectKey(e *model.TimeEntry, lookup ProjectNameFunc) string {
	if e.ProjectID == nil || *e.ProjectID == "" {
		return UnassignedProject
	}
	if lookup == nil {
		return *e.ProjectID
	}
	name, ok := lookup(*e.ProjectID)
	if !ok || name == "" {
		return *e.ProjectID
	}
	return name
}

// ProjectTotal はプロジェクト別集計の1行。
type ProjectTotal struct {
	Name  string
	Hours float64
}

// SortProjectTotals は集計結果を時間の降順（同じ時間なら名前順）に並べ、表示用に丸める。
func SortProjectTotals(totals map[string]float64) []ProjectTotal {
	rows := make([]ProjectTotal, 0, len(totals))
	for name, h := range totals {
		rows = append(rows, ProjectTotal{Name: name, Hours: RoundHours(h)})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Hours != rows[j].Hours {
			return rows[i].Hours > rows[j].Hours
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}

// AggregateByTask は指定タスクに紐づく確定済み記録の合計時間を返す。
func AggregateByTask(entries []model.TimeEntry, taskID string) time.Duration {
	var total time.Duration
	for i := range entries {
		e := &entries[i]
		if e.IsOpen() || e.IsCorrupt() {
			continue
		}
		if e.TaskID == nil || *e.TaskID != taskID {
			continue
		}
		total += e.End.Sub(e.Start)
	}
	return total
}

// FilterByTask はtaskIDに紐づく記録だけを返す。
func FilterByTask(entries []model.TimeEntry, taskID string) []model.TimeEntry {
	var out []model.TimeEntry
	for _, e := range entries {
		if e.TaskID != nil && *e.TaskID == taskID {
			out = append(out, e)
		}
	}
	return out
}
