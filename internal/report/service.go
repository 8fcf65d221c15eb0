// Package report はダッシュボード向けの集計（日別・プロジェクト別・タイムライン）を提供する。
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/tpodo/internal/metrics"
	"github.com/hitoshi/tpodo/internal/model"
	"github.com/hitoshi/tpodo/internal/repository"
	"github.com/hitoshi/tpodo/internal/timesheet"
)

const (
	// DefaultDays は日数省略時の集計日数。
	DefaultDays = 7
	// MaxDays は指定できる最大の集計日数。
	MaxDays = 90
	// DateLayout はタイムラインの日付指定の書式。
	DateLayout = "2006-01-02"
)

// ProjectReport はプロジェクト別集計の結果。
type ProjectReport struct {
	Range      timesheet.Range
	Projects   []timesheet.ProjectTotal
	TotalHours float64
}

// TimelineReport は1日分のタイムライン。
type TimelineReport struct {
	Date  time.Time
	Items []timesheet.TimelineItem
}

// Service は集計レポートのサービス層。
type Service struct {
	entries  repository.EntryRepository
	projects repository.ProjectRepository
	metrics  metrics.MetricsCollector
	loc      *time.Location
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// locは日の区切りに使うタイムゾーン。
func NewService(
	entries repository.EntryRepository,
	projects repository.ProjectRepository,
	collector metrics.MetricsCollector,
	loc *time.Location,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		entries:  entries,
		projects: projects,
		metrics:  collector,
		loc:      loc,
		now:      time.Now,
	}
}

// Daily は直近days日の日別作業時間を返す。今日を最終日とする。
// labelが空の場合は7日以下なら曜日、それより長ければ日付のラベルを使う。
func (s *Service) Daily(ctx context.Context, userID string, days int, label string) (*timesheet.Series, error) {
	defer s.observe("daily", time.Now())

	days, err := normalizeDays(days)
	if err != nil {
		return nil, err
	}
	style, err := parseLabel(label, days)
	if err != nil {
		return nil, err
	}

	ranges := timesheet.LastNDays(s.now(), days, s.loc)
	entries, err := s.listEntries(ctx, userID, timesheet.Span(ranges))
	if err != nil {
		return nil, err
	}

	series := timesheet.Summarize(timesheet.AggregateByDay(entries, ranges), style)
	return &series, nil
}

// Projects は直近days日のプロジェクト別作業時間を時間の多い順に返す。
// 期間の境界をまたぐ記録は期間内の分だけを数える。
func (s *Service) Projects(ctx context.Context, userID string, days int) (*ProjectReport, error) {
	defer s.observe("projects", time.Now())

	days, err := normalizeDays(days)
	if err != nil {
		return nil, err
	}

	span := timesheet.Span(timesheet.LastNDays(s.now(), days, s.loc))
	entries, err := s.listEntries(ctx, userID, span)
	if err != nil {
		return nil, err
	}

	names, err := s.projectNames(ctx, userID, entries)
	if err != nil {
		return nil, err
	}
	lookup := func(id string) (string, bool) {
		name, ok := names[id]
		return name, ok
	}

	totals := timesheet.SortProjectTotals(timesheet.AggregateByProjectIn(entries, span, lookup))
	var sum float64
	for _, t := range totals {
		sum += t.Hours
	}
	return &ProjectReport{
		Range:      span,
		Projects:   totals,
		TotalHours: timesheet.RoundHours(sum),
	}, nil
}

// Timeline は指定日（YYYY-MM-DD）のタイムラインを返す。空の場合は今日。
func (s *Service) Timeline(ctx context.Context, userID, date string) (*TimelineReport, error) {
	defer s.observe("timeline", time.Now())

	day := timesheet.DayOf(s.now(), s.loc)
	if date = strings.TrimSpace(date); date != "" {
		t, err := time.ParseInLocation(DateLayout, date, s.loc)
		if err != nil {
			return nil, model.NewInvalidTimestampError("date", date)
		}
		day = timesheet.DayOf(t, s.loc)
	}

	entries, err := s.listEntries(ctx, userID, day.Range)
	if err != nil {
		return nil, err
	}

	items := timesheet.Timeline(entries, day)
	if items == nil {
		items = []timesheet.TimelineItem{}
	}
	return &TimelineReport{Date: day.Date, Items: items}, nil
}

func (s *Service) listEntries(ctx context.Context, userID string, r timesheet.Range) ([]model.TimeEntry, error) {
	entries, err := s.entries.ListByUser(ctx, userID, &r.From, &r.To)
	if err != nil {
		return nil, fmt.Errorf("作業記録の取得に失敗しました: %w", err)
	}
	return entries, nil
}

// projectNames は記録が参照するプロジェクトのID→名前の対応を返す。
// 削除済みのプロジェクトとuserID以外が作成したプロジェクトは含まない。
func (s *Service) projectNames(ctx context.Context, userID string, entries []model.TimeEntry) (map[string]string, error) {
	names := make(map[string]string)
	seen := make(map[string]bool)
	for i := range entries {
		id := entries[i].ProjectID
		if id == nil || *id == "" || seen[*id] {
			continue
		}
		seen[*id] = true

		p, err := s.projects.FindByID(ctx, *id)
		if err != nil {
			return nil, fmt.Errorf("プロジェクトの取得に失敗しました: %w", err)
		}
		if p != nil && p.OwnerID == userID {
			names[*id] = p.Name
		}
	}
	return names, nil
}

func (s *Service) observe(report string, started time.Time) {
	s.metrics.RecordReportLatency(report, time.Since(started))
}

func normalizeDays(days int) (int, error) {
	if days == 0 {
		return DefaultDays, nil
	}
	if days < 0 || days > MaxDays {
		return 0, model.NewValidationError(fmt.Sprintf("days は1以上%d以下で指定してください", MaxDays))
	}
	return days, nil
}

func parseLabel(label string, days int) (timesheet.LabelStyle, error) {
	if label == "" {
		if days <= 7 {
			return timesheet.LabelWeekday, nil
		}
		return timesheet.LabelDate, nil
	}
	style := timesheet.LabelStyle(label)
	if !style.Valid() {
		return "", model.NewValidationError(fmt.Sprintf("label には weekday または date を指定してください: %s", label))
	}
	return style, nil
}
