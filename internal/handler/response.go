package handler

import (
	"time"

	"github.com/hitoshi/tpodo/internal/model"
	"github.com/hitoshi/tpodo/internal/project"
	"github.com/hitoshi/tpodo/internal/report"
	"github.com/hitoshi/tpodo/internal/team"
	"github.com/hitoshi/tpodo/internal/timesheet"
)

// userResponse はユーザー情報のAPIレスポンス。パスワードハッシュは含めない。
type userResponse struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Phone  string `json:"phone,omitempty"`
	Age    *int   `json:"age,omitempty"`
	Gender string `json:"gender,omitempty"`
}

type entryResponse struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	ProjectID *string    `json:"projectId"`
	TaskID    *string    `json:"taskId"`
	TeamID    *string    `json:"teamId"`
	Start     time.Time  `json:"start"`
	End       *time.Time `json:"end"`
	Billable  bool       `json:"billable"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type projectResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

type taskResponse struct {
	ID         string         `json:"id"`
	ProjectID  *string        `json:"projectId"`
	TeamID     *string        `json:"teamId"`
	Title      string         `json:"title"`
	Status     string         `json:"status"`
	AssignedTo model.Assignee `json:"assignedTo"`
	Todos      []model.Todo   `json:"todos"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

type teamResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Color       string         `json:"color"`
	Visibility  string         `json:"visibility"`
	Members     model.Members  `json:"members"`
	Workflow    model.Workflow `json:"workflow"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

type personResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Department string `json:"department"`
}

type pointResponse struct {
	Date  string  `json:"date"`
	Label string  `json:"label"`
	Hours float64 `json:"hours"`
}

type seriesResponse struct {
	Points       []pointResponse `json:"points"`
	TotalHours   float64         `json:"totalHours"`
	AverageHours float64         `json:"averageHours"`
}

type taskSummaryResponse struct {
	Task       taskResponse   `json:"task"`
	TotalHours float64        `json:"totalHours"`
	Daily      seriesResponse `json:"daily"`
}

type sessionResponse struct {
	ID      string    `json:"id"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Seconds int64     `json:"seconds"`
}

type memberReportResponse struct {
	MemberID     string            `json:"memberId"`
	Name         string            `json:"name"`
	Email        string            `json:"email"`
	UserID       string            `json:"userId,omitempty"`
	TotalSeconds int64             `json:"totalSeconds"`
	TotalHours   float64           `json:"totalHours"`
	Sessions     []sessionResponse `json:"sessions"`
}

type teamReportResponse struct {
	TeamID  string                 `json:"teamId"`
	Name    string                 `json:"name"`
	From    time.Time              `json:"from"`
	To      time.Time              `json:"to"`
	Members []memberReportResponse `json:"members"`
}

type projectTotalResponse struct {
	Name  string  `json:"name"`
	Hours float64 `json:"hours"`
}

type projectReportResponse struct {
	From       time.Time              `json:"from"`
	To         time.Time              `json:"to"`
	Projects   []projectTotalResponse `json:"projects"`
	TotalHours float64                `json:"totalHours"`
}

type timelineItemResponse struct {
	EntryID         string    `json:"entryId"`
	Title           string    `json:"title"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	Open            bool      `json:"open"`
	OffsetMinutes   float64   `json:"offsetMinutes"`
	DurationMinutes float64   `json:"durationMinutes"`
	HeightMinutes   float64   `json:"heightMinutes"`
}

type timelineResponse struct {
	Date  string                 `json:"date"`
	Items []timelineItemResponse `json:"items"`
}

// --- 変換 ---

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:     u.ID,
		Email:  u.Email,
		Name:   u.Name,
		Role:   string(u.Role),
		Phone:  u.Phone,
		Age:    u.Age,
		Gender: u.Gender,
	}
}

func toEntryResponse(e *model.TimeEntry) entryResponse {
	return entryResponse{
		ID:        e.ID,
		Title:     e.Title,
		ProjectID: e.ProjectID,
		TaskID:    e.TaskID,
		TeamID:    e.TeamID,
		Start:     e.Start,
		End:       e.End,
		Billable:  e.Billable,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func toProjectResponse(p *model.Project) projectResponse {
	return projectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
	}
}

func toTaskResponse(t *model.Task) taskResponse {
	todos := t.Todos
	if todos == nil {
		todos = []model.Todo{}
	}
	return taskResponse{
		ID:         t.ID,
		ProjectID:  t.ProjectID,
		TeamID:     t.TeamID,
		Title:      t.Title,
		Status:     string(t.Status),
		AssignedTo: t.AssignedTo,
		Todos:      todos,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}

func toTaskResponses(tasks []*model.Task) []taskResponse {
	out := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskResponse(t))
	}
	return out
}

func toTeamResponse(t *model.Team) teamResponse {
	members := t.Members
	if members == nil {
		members = model.Members{}
	}
	return teamResponse{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Color:       t.Color,
		Visibility:  string(t.Visibility),
		Members:     members,
		Workflow:    t.Workflow,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func toPersonResponse(p *model.Person) personResponse {
	return personResponse{
		ID:         p.ID,
		Name:       p.Name,
		Email:      p.Email,
		Role:       p.Role,
		Department: p.Department,
	}
}

func toSeriesResponse(s timesheet.Series) seriesResponse {
	points := make([]pointResponse, 0, len(s.Points))
	for _, p := range s.Points {
		points = append(points, pointResponse{
			Date:  p.Date.Format(report.DateLayout),
			Label: p.Label,
			Hours: p.Hours,
		})
	}
	return seriesResponse{
		Points:       points,
		TotalHours:   s.TotalHours,
		AverageHours: s.AverageHours,
	}
}

func toTaskSummaryResponse(s *project.TaskSummary) taskSummaryResponse {
	return taskSummaryResponse{
		Task:       toTaskResponse(s.Task),
		TotalHours: s.TotalHours,
		Daily:      toSeriesResponse(s.Series),
	}
}

func toTeamReportResponse(rep *team.Report) teamReportResponse {
	members := make([]memberReportResponse, 0, len(rep.Members))
	for _, m := range rep.Members {
		sessions := make([]sessionResponse, 0, len(m.Sessions))
		for _, s := range m.Sessions {
			sessions = append(sessions, sessionResponse{
				ID:      s.ID,
				Start:   s.Start,
				End:     s.End,
				Seconds: s.Seconds(),
			})
		}
		members = append(members, memberReportResponse{
			MemberID:     m.MemberID,
			Name:         m.Name,
			Email:        m.Email,
			UserID:       m.UserID,
			TotalSeconds: m.TotalSeconds(),
			TotalHours:   m.TotalHours(),
			Sessions:     sessions,
		})
	}
	return teamReportResponse{
		TeamID:  rep.Team.ID,
		Name:    rep.Team.Name,
		From:    rep.Range.From,
		To:      rep.Range.To,
		Members: members,
	}
}

func toProjectReportResponse(rep *report.ProjectReport) projectReportResponse {
	projects := make([]projectTotalResponse, 0, len(rep.Projects))
	for _, p := range rep.Projects {
		projects = append(projects, projectTotalResponse{Name: p.Name, Hours: p.Hours})
	}
	return projectReportResponse{
		From:       rep.Range.From,
		To:         rep.Range.To,
		Projects:   projects,
		TotalHours: rep.TotalHours,
	}
}

func toTimelineResponse(tl *report.TimelineReport) timelineResponse {
	items := make([]timelineItemResponse, 0, len(tl.Items))
	for _, it := range tl.Items {
		items = append(items, timelineItemResponse{
			EntryID:         it.EntryID,
			Title:           it.Title,
			Start:           it.Start,
			End:             it.End,
			Open:            it.Open,
			OffsetMinutes:   it.OffsetMinutes,
			DurationMinutes: it.DurationMinutes,
			HeightMinutes:   it.HeightMinutes,
		})
	}
	return timelineResponse{
		Date:  tl.Date.Format(report.DateLayout),
		Items: items,
	}
}
