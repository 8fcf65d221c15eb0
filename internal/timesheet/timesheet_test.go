package timesheet_test

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/hitoshi/tpodo/internal/model"
	"github.com/hitoshi/tpodo/internal/timesheet"
	"github.com/stretchr/testify/require"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func ptr[T any](v T) *T { return &v }

func closedEntry(t *testing.T, id, start, end string) model.TimeEntry {
	t.Helper()
	return model.TimeEntry{
		ID:    id,
		Start: mustTime(t, start),
		End:   ptr(mustTime(t, end)),
	}
}

func TestClip(t *testing.T) {
	window := timesheet.Range{
		From: mustTime(t, "2024-01-01T00:00:00Z"),
		To:   mustTime(t, "2024-01-02T00:00:00Z"),
	}
	now := mustTime(t, "2024-01-01T12:00:00Z")

	tests := []struct {
		name  string
		start string
		end   string // 空なら計測中
		want  time.Duration
	}{
		{"fully inside", "2024-01-01T09:00:00Z", "2024-01-01T11:30:00Z", 150 * time.Minute},
		{"disjoint before", "2023-12-31T09:00:00Z", "2023-12-31T10:00:00Z", 0},
		{"disjoint after", "2024-01-02T01:00:00Z", "2024-01-02T02:00:00Z", 0},
		{"touching boundary", "2023-12-31T23:00:00Z", "2024-01-01T00:00:00Z", 0},
		{"overlaps start", "2023-12-31T23:00:00Z", "2024-01-01T01:00:00Z", time.Hour},
		{"overlaps end", "2024-01-01T23:00:00Z", "2024-01-02T01:00:00Z", time.Hour},
		{"covers window", "2023-12-31T00:00:00Z", "2024-01-03T00:00:00Z", 24 * time.Hour},
		{"open entry ends at now", "2024-01-01T10:00:00Z", "", 2 * time.Hour},
		{"zero length", "2024-01-01T10:00:00Z", "2024-01-01T10:00:00Z", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var end *time.Time
			if tt.end != "" {
				end = ptr(mustTime(t, tt.end))
			}
			got := timesheet.Clip(mustTime(t, tt.start), end, window, now)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestAggregateByDay_CrossMidnightSplitsAcrossBuckets(t *testing.T) {
	days := timesheet.DayRanges(mustTime(t, "2024-01-01T00:00:00Z"), 2, time.UTC)
	entries := []model.TimeEntry{
		closedEntry(t, "e1", "2024-01-01T23:00:00Z", "2024-01-02T01:00:00Z"),
	}

	buckets := timesheet.AggregateByDay(entries, days)

	require.Len(t, buckets, 2)
	require.Equal(t, time.Hour, buckets[0].Duration)
	require.Equal(t, time.Hour, buckets[1].Duration)
	require.Equal(t, 2*time.Hour, buckets[0].Duration+buckets[1].Duration)
}

func TestAggregateByDay_TwentyTwoToTwoUTC(t *testing.T) {
	days := timesheet.DayRanges(mustTime(t, "2024-01-01T00:00:00Z"), 2, time.UTC)
	entries := []model.TimeEntry{
		closedEntry(t, "e1", "2024-01-01T22:00:00Z", "2024-01-02T02:00:00Z"),
	}

	buckets := timesheet.AggregateByDay(entries, days)

	require.Equal(t, 2.0, buckets[0].Hours())
	require.Equal(t, 2.0, buckets[1].Hours())
	require.True(t, buckets[0].Date.Equal(mustTime(t, "2024-01-01T00:00:00Z")))
	require.True(t, buckets[1].Date.Equal(mustTime(t, "2024-01-02T00:00:00Z")))
}

func TestAggregateByDay_SevenDayRange(t *testing.T) {
	now := mustTime(t, "2024-03-10T15:00:00Z")
	days := timesheet.LastNDays(now, 7, time.UTC)
	require.Len(t, days, 7)
	require.True(t, days[0].Date.Equal(mustTime(t, "2024-03-04T00:00:00Z")))
	require.True(t, days[6].Date.Equal(mustTime(t, "2024-03-10T00:00:00Z")))

	entries := []model.TimeEntry{
		closedEntry(t, "a", "2024-03-05T09:00:00Z", "2024-03-05T12:00:00Z"),
		closedEntry(t, "b", "2024-03-07T22:00:00Z", "2024-03-08T03:00:00Z"),
		// 範囲の開始前から始まる記録は範囲内の分だけ数える
		closedEntry(t, "c", "2024-03-03T22:00:00Z", "2024-03-04T02:00:00Z"),
	}

	buckets := timesheet.AggregateByDay(entries, days)
	require.Len(t, buckets, 7)

	var sum time.Duration
	for _, b := range buckets {
		require.GreaterOrEqual(t, b.Duration, time.Duration(0))
		sum += b.Duration
	}

	var touching time.Duration
	for _, e := range entries {
		touching += e.End.Sub(e.Start)
	}
	require.LessOrEqual(t, sum, touching)
	require.Equal(t, 3*time.Hour+5*time.Hour+2*time.Hour, sum)
}

func TestAggregateByDay_OverlappingEntriesAreBothCounted(t *testing.T) {
	days := timesheet.DayRanges(mustTime(t, "2024-01-01T00:00:00Z"), 7, time.UTC)
	entries := []model.TimeEntry{
		closedEntry(t, "a", "2024-01-03T09:00:00Z", "2024-01-03T11:00:00Z"),
		closedEntry(t, "b", "2024-01-03T10:00:00Z", "2024-01-03T12:00:00Z"),
	}

	buckets := timesheet.AggregateByDay(entries, days)

	require.Equal(t, 4*time.Hour, buckets[2].Duration)
}

func TestAggregateByDay_SkipsOpenAndCorruptEntries(t *testing.T) {
	days := timesheet.DayRanges(mustTime(t, "2024-01-01T00:00:00Z"), 1, time.UTC)
	entries := []model.TimeEntry{
		{ID: "open", Start: mustTime(t, "2024-01-01T09:00:00Z")},
		closedEntry(t, "corrupt", "2024-01-01T12:00:00Z", "2024-01-01T10:00:00Z"),
		closedEntry(t, "ok", "2024-01-01T13:00:00Z", "2024-01-01T14:00:00Z"),
	}

	buckets := timesheet.AggregateByDay(entries, days)

	require.Equal(t, time.Hour, buckets[0].Duration)
}

func TestAggregateByDay_UsesReferenceTimezone(t *testing.T) {
	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	// IST 2024-01-01 23:00 〜 2024-01-02 01:00 (UTC 17:30 〜 19:30)
	days := timesheet.DayRanges(time.Date(2024, 1, 1, 12, 0, 0, 0, ist), 2, ist)
	entries := []model.TimeEntry{
		closedEntry(t, "e", "2024-01-01T17:30:00Z", "2024-01-01T19:30:00Z"),
	}

	buckets := timesheet.AggregateByDay(entries, days)

	require.Equal(t, time.Hour, buckets[0].Duration)
	require.Equal(t, time.Hour, buckets[1].Duration)
}

func TestDayRanges_HandlesDSTTransition(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	days := timesheet.DayRanges(time.Date(2024, 3, 10, 0, 0, 0, 0, ny), 1, ny)

	require.Equal(t, 23*time.Hour, days[0].Range.To.Sub(days[0].Range.From))
}

func TestAggregateByProject(t *testing.T) {
	names := map[string]string{"p1": "Website"}
	lookup := func(id string) (string, bool) {
		n, ok := names[id]
		return n, ok
	}

	e1 := closedEntry(t, "a", "2024-01-01T09:00:00Z", "2024-01-01T11:00:00Z")
	e1.ProjectID = ptr("p1")
	e2 := closedEntry(t, "b", "2024-01-01T12:00:00Z", "2024-01-01T12:30:00Z")
	e3 := closedEntry(t, "c", "2024-01-01T13:00:00Z", "2024-01-01T14:00:00Z")
	e3.ProjectID = ptr("deleted-project")
	open := model.TimeEntry{ID: "d", Start: mustTime(t, "2024-01-01T15:00:00Z"), ProjectID: ptr("p1")}

	totals := timesheet.AggregateByProject([]model.TimeEntry{e1, e2, e3, open}, lookup)

	require.Equal(t, map[string]float64{
		"Website":                   2,
		timesheet.UnassignedProject: 0.5,
		"deleted-project":           1,
	}, totals)

	rows := timesheet.SortProjectTotals(totals)
	require.Equal(t, []timesheet.ProjectTotal{
		{Name: "Website", Hours: 2},
		{Name: "deleted-project", Hours: 1},
		{Name: timesheet.UnassignedProject, Hours: 0.5},
	}, rows)
}

func TestAggregateByProjectIn_ClipsToRange(t *testing.T) {
	e := closedEntry(t, "a", "2024-01-01T22:00:00Z", "2024-01-02T02:00:00Z")
	e.ProjectID = ptr("p1")
	r := timesheet.Range{From: mustTime(t, "2024-01-02T00:00:00Z"), To: mustTime(t, "2024-01-03T00:00:00Z")}

	totals := timesheet.AggregateByProjectIn([]model.TimeEntry{e}, r, func(string) (string, bool) { return "P", true })

	require.Equal(t, map[string]float64{"P": 2}, totals)
}

func TestAggregateByTask(t *testing.T) {
	a := closedEntry(t, "a", "2024-01-01T09:00:00Z", "2024-01-01T10:00:00Z")
	a.TaskID = ptr("t1")
	b := closedEntry(t, "b", "2024-01-01T10:00:00Z", "2024-01-01T10:45:00Z")
	b.TaskID = ptr("t1")
	c := closedEntry(t, "c", "2024-01-01T11:00:00Z", "2024-01-01T12:00:00Z")
	c.TaskID = ptr("t2")

	entries := []model.TimeEntry{a, b, c}

	require.Equal(t, 105*time.Minute, timesheet.AggregateByTask(entries, "t1"))
	require.Len(t, timesheet.FilterByTask(entries, "t1"), 2)
}

func TestBuildTeamReport_UnmatchedMemberHasZeroTotal(t *testing.T) {
	members := []model.Member{{ID: "m1", Name: "Ghost", Email: "ghost@example.com"}}
	findUser := func(context.Context, string) (*model.User, error) { return nil, nil }
	listEntries := func(context.Context, string) ([]model.TimeEntry, error) {
		t.Fatal("entries must not be listed for an unmatched member")
		return nil, nil
	}

	now := mustTime(t, "2024-01-01T12:00:00Z")
	reports, err := timesheet.BuildTeamReport(context.Background(), members,
		timesheet.DefaultReportRange(now, time.UTC), findUser, listEntries, now)

	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.Equal(t, int64(0), reports[0].TotalSeconds())
	require.Empty(t, reports[0].Sessions)
	require.NotNil(t, reports[0].Sessions)
}

func TestBuildTeamReport_MatchesEmailCaseInsensitiveAndClipsToNow(t *testing.T) {
	members := []model.Member{
		{ID: "m1", Name: "Alice", Email: "Alice@Example.com"},
		{ID: "m2", Name: "No mail"},
	}
	var lookedUp []string
	findUser := func(_ context.Context, email string) (*model.User, error) {
		lookedUp = append(lookedUp, email)
		if email == "alice@example.com" {
			return &model.User{ID: "u1", Email: "alice@example.com"}, nil
		}
		return nil, nil
	}
	listEntries := func(_ context.Context, userID string) ([]model.TimeEntry, error) {
		require.Equal(t, "u1", userID)
		return []model.TimeEntry{
			// 前日から続く記録は当日0時以降だけ数える
			closedEntry(t, "a", "2023-12-31T23:00:00Z", "2024-01-01T01:00:00Z"),
			// 計測中の記録はnowまで
			{ID: "b", Start: mustTime(t, "2024-01-01T11:00:00Z")},
			// 期間外は含めない
			closedEntry(t, "c", "2023-12-31T10:00:00Z", "2023-12-31T11:00:00Z"),
		}, nil
	}

	now := mustTime(t, "2024-01-01T12:00:00Z")
	reports, err := timesheet.BuildTeamReport(context.Background(), members,
		timesheet.DefaultReportRange(now, time.UTC), findUser, listEntries, now)

	require.NoError(t, err)
	require.Equal(t, []string{"alice@example.com"}, lookedUp)
	require.Len(t, reports, 2)

	alice := reports[0]
	require.Equal(t, "u1", alice.UserID)
	require.Len(t, alice.Sessions, 2)
	require.Equal(t, "a", alice.Sessions[0].ID)
	require.True(t, alice.Sessions[0].Start.Equal(mustTime(t, "2024-01-01T00:00:00Z")))
	require.Equal(t, int64(3600), alice.Sessions[0].Seconds())
	require.Equal(t, "b", alice.Sessions[1].ID)
	require.True(t, alice.Sessions[1].End.Equal(now))
	require.Equal(t, int64(7200), alice.TotalSeconds())
	require.Equal(t, 2.0, alice.TotalHours())

	require.Equal(t, int64(0), reports[1].TotalSeconds())
}

func TestBuildTeamReport_TotalSecondsMatchesSessions(t *testing.T) {
	members := []model.Member{{ID: "m1", Email: "a@example.com"}}
	findUser := func(context.Context, string) (*model.User, error) {
		return &model.User{ID: "u1"}, nil
	}
	listEntries := func(context.Context, string) ([]model.TimeEntry, error) {
		// 1.5秒の区間が3つ。区間ごとに2秒へ丸まる
		return []model.TimeEntry{
			closedEntry(t, "a", "2024-01-01T09:00:00Z", "2024-01-01T09:00:01.5Z"),
			closedEntry(t, "b", "2024-01-01T10:00:00Z", "2024-01-01T10:00:01.5Z"),
			closedEntry(t, "c", "2024-01-01T11:00:00Z", "2024-01-01T11:00:01.5Z"),
		}, nil
	}

	now := mustTime(t, "2024-01-01T12:00:00Z")
	reports, err := timesheet.BuildTeamReport(context.Background(), members,
		timesheet.DefaultReportRange(now, time.UTC), findUser, listEntries, now)
	require.NoError(t, err)
	require.Len(t, reports, 1)

	var sum int64
	for _, s := range reports[0].Sessions {
		require.Equal(t, int64(2), s.Seconds())
		sum += s.Seconds()
	}
	require.Equal(t, sum, reports[0].TotalSeconds())
	require.Equal(t, int64(6), reports[0].TotalSeconds())
}

func TestBuildTeamReport_PropagatesLookupErrors(t *testing.T) {
	members := []model.Member{{ID: "m1", Email: "a@example.com"}}
	boom := errors.New("db down")
	findUser := func(context.Context, string) (*model.User, error) { return nil, boom }

	now := time.Now()
	_, err := timesheet.BuildTeamReport(context.Background(), members,
		timesheet.DefaultReportRange(now, time.UTC), findUser, nil, now)

	require.ErrorIs(t, err, boom)
}

func TestSummarize(t *testing.T) {
	days := timesheet.DayRanges(mustTime(t, "2024-01-01T00:00:00Z"), 3, time.UTC)
	buckets := []timesheet.DayBucket{
		{Date: days[0].Date, Duration: 90 * time.Minute},
		{Date: days[1].Date, Duration: 0},
		{Date: days[2].Date, Duration: 3 * time.Hour},
	}

	weekday := timesheet.Summarize(buckets, timesheet.LabelWeekday)
	require.Equal(t, "Mon", weekday.Points[0].Label)
	require.Equal(t, "Tue", weekday.Points[1].Label)
	require.Equal(t, 1.5, weekday.Points[0].Hours)
	require.Equal(t, 4.5, weekday.TotalHours)
	require.Equal(t, 1.5, weekday.AverageHours)

	date := timesheet.Summarize(buckets, timesheet.LabelDate)
	require.Equal(t, "1. Jan", date.Points[0].Label)
	require.Equal(t, "3. Jan", date.Points[2].Label)
}

func TestSummarize_Empty(t *testing.T) {
	s := timesheet.Summarize(nil, timesheet.LabelDate)
	require.Empty(t, s.Points)
	require.Zero(t, s.AverageHours)
}

func TestRoundHours(t *testing.T) {
	require.Equal(t, 1.33, timesheet.RoundHours(4.0/3.0))
	require.Equal(t, 0.67, timesheet.RoundHours(2.0/3.0))
	require.Equal(t, 1.0, timesheet.Hours(time.Hour))
}

func TestTimeline(t *testing.T) {
	day := timesheet.DayOf(mustTime(t, "2024-01-01T10:00:00Z"), time.UTC)
	entries := []model.TimeEntry{
		closedEntry(t, "late", "2024-01-01T23:30:00Z", "2024-01-02T01:00:00Z"),
		{ID: "open", Title: "running", Start: mustTime(t, "2024-01-01T09:00:00Z")},
		closedEntry(t, "short", "2024-01-01T08:00:00Z", "2024-01-01T08:01:00Z"),
		closedEntry(t, "other-day", "2024-01-02T08:00:00Z", "2024-01-02T09:00:00Z"),
	}

	items := timesheet.Timeline(entries, day)

	require.Len(t, items, 3)

	require.Equal(t, "short", items[0].EntryID)
	require.Equal(t, 480.0, items[0].OffsetMinutes)
	require.Equal(t, 1.0, items[0].DurationMinutes)
	require.Equal(t, 3.0, items[0].HeightMinutes)

	require.Equal(t, "open", items[1].EntryID)
	require.True(t, items[1].Open)
	require.Equal(t, 5.0, items[1].DurationMinutes)

	require.Equal(t, "late", items[2].EntryID)
	require.Equal(t, 30.0, items[2].DurationMinutes)
	require.True(t, items[2].End.Equal(mustTime(t, "2024-01-02T00:00:00Z")))
}
