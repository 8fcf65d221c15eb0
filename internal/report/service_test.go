package report

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/tpodo/internal/model"
	"github.com/hitoshi/tpodo/internal/timesheet"
)

type mockEntryRepo struct {
	mock.Mock
}

func (m *mockEntryRepo) ListByUser(ctx context.Context, userID string, from, to *time.Time) ([]model.TimeEntry, error) {
	args := m.Called(ctx, userID, from, to)
	entries, _ := args.Get(0).([]model.TimeEntry)
	return entries, args.Error(1)
}

func (m *mockEntryRepo) ListByUserAndTask(ctx context.Context, userID, taskID string) ([]model.TimeEntry, error) {
	args := m.Called(ctx, userID, taskID)
	entries, _ := args.Get(0).([]model.TimeEntry)
	return entries, args.Error(1)
}

func (m *mockEntryRepo) FindByID(ctx context.Context, id string) (*model.TimeEntry, error) {
	args := m.Called(ctx, id)
	e, _ := args.Get(0).(*model.TimeEntry)
	return e, args.Error(1)
}

func (m *mockEntryRepo) Create(ctx context.Context, e *model.TimeEntry) error {
	return m.Called(ctx, e).Error(0)
}

func (m *mockEntryRepo) Update(ctx context.Context, e *model.TimeEntry) error {
	return m.Called(ctx, e).Error(0)
}

func (m *mockEntryRepo) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockProjectRepo struct {
	mock.Mock
}

func (m *mockProjectRepo) FindByID(ctx context.Context, id string) (*model.Project, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*model.Project)
	return p, args.Error(1)
}

func (m *mockProjectRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Project, error) {
	args := m.Called(ctx, ownerID)
	ps, _ := args.Get(0).([]*model.Project)
	return ps, args.Error(1)
}

func (m *mockProjectRepo) ListAll(ctx context.Context) ([]*model.Project, error) {
	args := m.Called(ctx)
	ps, _ := args.Get(0).([]*model.Project)
	return ps, args.Error(1)
}

func (m *mockProjectRepo) Create(ctx context.Context, p *model.Project) error {
	return m.Called(ctx, p).Error(0)
}

type mockMetrics struct {
	mock.Mock
}

func (m *mockMetrics) RecordHTTPStatus(int)               {}
func (m *mockMetrics) RecordRequestLatency(time.Duration) {}
func (m *mockMetrics) RecordEntryCreated()                {}
func (m *mockMetrics) RecordOTPIssued()                   {}
func (m *mockMetrics) RecordCleanupDeleted(string, int64) {}

func (m *mockMetrics) RecordReportLatency(report string, d time.Duration) {
	m.Called(report, d)
}

var (
	testNow = time.Date(2024, 1, 3, 15, 0, 0, 0, time.UTC)
	userID  = "user-1"
)

func at(day, hour, minute int) time.Time {
	return time.Date(2024, 1, day, hour, minute, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

func newTestService(t *testing.T, loc *time.Location) (*Service, *mockEntryRepo, *mockProjectRepo, *mockMetrics) {
	t.Helper()
	entries := &mockEntryRepo{}
	projects := &mockProjectRepo{}
	m := &mockMetrics{}
	m.On("RecordReportLatency", mock.Anything, mock.Anything).Return()

	svc := NewService(entries, projects, m, loc)
	svc.now = func() time.Time { return testNow }
	return svc, entries, projects, m
}

// rangeIs はListByUserに渡された期間がwantと一致するかを判定するmatcherを返す。
func rangeIs(want time.Time) interface{} {
	return mock.MatchedBy(func(t *time.Time) bool { return t != nil && t.Equal(want) })
}

func TestDaily_CrossMidnightSplitsAcrossDays(t *testing.T) {
	ctx := context.Background()
	svc, entries, _, m := newTestService(t, time.UTC)

	entries.On("ListByUser", ctx, userID, rangeIs(at(1, 0, 0)), rangeIs(at(4, 0, 0))).
		Return([]model.TimeEntry{
			{ID: "a", Start: at(1, 23, 0), End: ptr(at(2, 1, 0))},
			{ID: "b", Start: at(3, 9, 0), End: ptr(at(3, 9, 30))},
			{ID: "open", Start: at(3, 14, 0)},
		}, nil)

	series, err := svc.Daily(ctx, userID, 3, "")
	require.NoError(t, err)
	require.Len(t, series.Points, 3)

	require.Equal(t, []float64{1, 1, 0.5}, []float64{series.Points[0].Hours, series.Points[1].Hours, series.Points[2].Hours})
	require.Equal(t, "Mon", series.Points[0].Label)
	require.Equal(t, 2.5, series.TotalHours)
	require.Equal(t, 0.83, series.AverageHours)

	entries.AssertExpectations(t)
	m.AssertCalled(t, "RecordReportLatency", "daily", mock.Anything)
}

func TestDaily_LabelStyle(t *testing.T) {
	ctx := context.Background()
	svc, entries, _, _ := newTestService(t, time.UTC)
	entries.On("ListByUser", ctx, userID, mock.Anything, mock.Anything).Return([]model.TimeEntry{}, nil)

	series, err := svc.Daily(ctx, userID, 14, "")
	require.NoError(t, err)
	require.Len(t, series.Points, 14)
	require.Equal(t, "21. Dec", series.Points[0].Label)

	series, err = svc.Daily(ctx, userID, 0, "date")
	require.NoError(t, err)
	require.Len(t, series.Points, DefaultDays)
	require.Equal(t, "3. Jan", series.Points[DefaultDays-1].Label)

	_, err = svc.Daily(ctx, userID, 7, "month")
	var apiErr *model.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, model.ErrCodeValidationFailed, apiErr.Code)

	_, err = svc.Daily(ctx, userID, MaxDays+1, "")
	require.ErrorAs(t, err, &apiErr)
}

func TestDaily_UsesReportTimezone(t *testing.T) {
	ctx := context.Background()
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	svc, entries, _, _ := newTestService(t, loc)

	// 2024-01-02 18:30Z は IST で 2024-01-03 00:00
	entries.On("ListByUser", ctx, userID, mock.Anything, mock.Anything).
		Return([]model.TimeEntry{
			{ID: "a", Start: at(2, 18, 0), End: ptr(at(2, 19, 0))},
		}, nil)

	series, err := svc.Daily(ctx, userID, 2, "")
	require.NoError(t, err)
	require.Equal(t, 0.5, series.Points[0].Hours)
	require.Equal(t, 0.5, series.Points[1].Hours)
}

func TestDaily_RepositoryErrorPropagates(t *testing.T) {
	ctx := context.Background()
	svc, entries, _, _ := newTestService(t, time.UTC)
	boom := errors.New("db down")
	entries.On("ListByUser", ctx, userID, mock.Anything, mock.Anything).Return(nil, boom)

	_, err := svc.Daily(ctx, userID, 7, "")
	require.ErrorIs(t, err, boom)
}

func TestProjects(t *testing.T) {
	ctx := context.Background()
	svc, entries, projects, m := newTestService(t, time.UTC)

	web, gone, foreign := "p-web", "p-gone", "p-foreign"
	entries.On("ListByUser", ctx, userID, mock.Anything, mock.Anything).
		Return([]model.TimeEntry{
			// 期間開始（1/1 0:00）より前の分は数えない
			{ID: "a", ProjectID: &web, Start: time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC), End: ptr(at(1, 2, 0))},
			{ID: "b", ProjectID: &web, Start: at(2, 9, 0), End: ptr(at(2, 10, 0))},
			{ID: "c", ProjectID: &gone, Start: at(2, 11, 0), End: ptr(at(2, 11, 30))},
			{ID: "d", Start: at(3, 8, 0), End: ptr(at(3, 8, 15))},
			{ID: "e", ProjectID: &foreign, Start: at(3, 9, 0), End: ptr(at(3, 9, 45))},
			{ID: "open", ProjectID: &web, Start: at(3, 14, 0)},
		}, nil)
	projects.On("FindByID", ctx, web).Return(&model.Project{ID: web, OwnerID: userID, Name: "Website"}, nil).Once()
	projects.On("FindByID", ctx, gone).Return(nil, nil).Once()
	// 他人のプロジェクト名は出さない
	projects.On("FindByID", ctx, foreign).Return(&model.Project{ID: foreign, OwnerID: "someone-else", Name: "Secret"}, nil).Once()

	report, err := svc.Projects(ctx, userID, 3)
	require.NoError(t, err)
	require.Equal(t, []timesheet.ProjectTotal{
		{Name: "Website", Hours: 3},
		{Name: foreign, Hours: 0.75},
		{Name: gone, Hours: 0.5},
		{Name: timesheet.UnassignedProject, Hours: 0.25},
	}, report.Projects)
	require.Equal(t, 4.5, report.TotalHours)
	require.Equal(t, at(1, 0, 0), report.Range.From)

	projects.AssertExpectations(t)
	m.AssertCalled(t, "RecordReportLatency", "projects", mock.Anything)
}

func TestTimeline(t *testing.T) {
	ctx := context.Background()
	svc, entries, _, m := newTestService(t, time.UTC)

	entries.On("ListByUser", ctx, userID, rangeIs(at(2, 0, 0)), rangeIs(at(3, 0, 0))).
		Return([]model.TimeEntry{
			{ID: "a", Title: "standup", Start: at(2, 9, 0), End: ptr(at(2, 9, 1))},
		}, nil)

	tl, err := svc.Timeline(ctx, userID, "2024-01-02")
	require.NoError(t, err)
	require.Equal(t, at(2, 0, 0), tl.Date)
	require.Len(t, tl.Items, 1)
	require.Equal(t, float64(9*60), tl.Items[0].OffsetMinutes)
	require.Equal(t, timesheet.MinDisplayHeight.Minutes(), tl.Items[0].HeightMinutes)

	m.AssertCalled(t, "RecordReportLatency", "timeline", mock.Anything)
}

func TestTimeline_DefaultsToToday(t *testing.T) {
	ctx := context.Background()
	svc, entries, _, _ := newTestService(t, time.UTC)
	entries.On("ListByUser", ctx, userID, rangeIs(at(3, 0, 0)), rangeIs(at(4, 0, 0))).Return(nil, nil)

	tl, err := svc.Timeline(ctx, userID, "")
	require.NoError(t, err)
	require.Equal(t, at(3, 0, 0), tl.Date)
	require.NotNil(t, tl.Items)
	require.Empty(t, tl.Items)
}

func TestTimeline_InvalidDate(t *testing.T) {
	svc, _, _, _ := newTestService(t, time.UTC)

	_, err := svc.Timeline(context.Background(), userID, "01/02/2024")
	var apiErr *model.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, model.ErrCodeInvalidTimestamp, apiErr.Code)
}
