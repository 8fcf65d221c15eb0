// Package project はプロジェクトとタスクのドメインロジックを提供する。
package project

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/tpodo/internal/model"
	"github.com/hitoshi/tpodo/internal/repository"
	"github.com/hitoshi/tpodo/internal/security"
	"github.com/hitoshi/tpodo/internal/timesheet"
)

const (
	// MaxNameLength はプロジェクト名・タスク名の最大文字数。
	MaxNameLength = 200
	// DefaultSummaryDays はタスク集計の既定日数。
	DefaultSummaryDays = 7
	// MaxSummaryDays はタスク集計で指定できる最大日数。
	MaxSummaryDays = 90
)

// TaskInput はタスク作成の入力。
type TaskInput struct {
	Title      string
	ProjectID  *string
	TeamID     *string
	Status     string
	AssignedTo model.Assignee
	Todos      []model.Todo
}

// TaskUpdate はタスク更新の入力。nilのフィールドは変更しない。
type TaskUpdate struct {
	Title      *string
	Status     *string
	AssignedTo *model.Assignee
	Todos      *[]model.Todo
}

// TaskSummary はタスク詳細画面の集計結果。
type TaskSummary struct {
	Task       *model.Task
	TotalHours float64
	Series     timesheet.Series
}

// Service はプロジェクトとタスクのサービス層。
type Service struct {
	projects  repository.ProjectRepository
	tasks     repository.TaskRepository
	entries   repository.EntryRepository
	users     repository.UserRepository
	sanitizer security.TextSanitizer
	loc       *time.Location
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// locはタスク集計の日の区切りに使うタイムゾーン。
func NewService(
	projects repository.ProjectRepository,
	tasks repository.TaskRepository,
	entries repository.EntryRepository,
	users repository.UserRepository,
	sanitizer security.TextSanitizer,
	loc *time.Location,
) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		projects:  projects,
		tasks:     tasks,
		entries:   entries,
		users:     users,
		sanitizer: sanitizer,
		loc:       loc,
		now:       time.Now,
	}
}

// ListProjects はユーザーのプロジェクト一覧を返す。
func (s *Service) ListProjects(ctx context.Context, userID string) ([]*model.Project, error) {
	projects, err := s.projects.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロジェクト一覧の取得に失敗しました: %w", err)
	}
	return projects, nil
}

// CreateProject はプロジェクトを作成する。説明文は限られたタグのみ許可する。
func (s *Service) CreateProject(ctx context.Context, userID, name, description string) (*model.Project, error) {
	name, err := s.cleanName("name", name)
	if err != nil {
		return nil, err
	}

	p := &model.Project{
		ID:          uuid.NewString(),
		OwnerID:     userID,
		Name:        name,
		Description: s.sanitizer.RichText(description),
		CreatedAt:   s.now(),
	}
	if err := s.projects.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("プロジェクトの作成に失敗しました: %w", err)
	}

	slog.Info("プロジェクトを作成しました",
		slog.String("user_id", userID),
		slog.String("project_id", p.ID),
	)
	return p, nil
}

// ListProjectTasks はプロジェクトに属するタスクを返す。
func (s *Service) ListProjectTasks(ctx context.Context, userID, projectID string) ([]*model.Task, error) {
	if _, err := s.findOwnedProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	tasks, err := s.tasks.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("タスク一覧の取得に失敗しました: %w", err)
	}
	return tasks, nil
}

// ListTasks はタスク一覧を返す。assignedToMeがtrueの場合は
// ユーザーの名前またはメールアドレスで割り当てられたタスクを返す。
func (s *Service) ListTasks(ctx context.Context, userID string, assignedToMe bool) ([]*model.Task, error) {
	if !assignedToMe {
		tasks, err := s.tasks.ListByOwner(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("タスク一覧の取得に失敗しました: %w", err)
		}
		return tasks, nil
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	keys := assigneeKeys(user)
	candidates, err := s.tasks.ListAssignedTo(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("担当タスクの取得に失敗しました: %w", err)
	}

	tasks := make([]*model.Task, 0, len(candidates))
	for _, t := range candidates {
		if t.AssignedTo.Matches(keys...) {
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

// CreateTask はタスクを作成する。
func (s *Service) CreateTask(ctx context.Context, userID string, in TaskInput) (*model.Task, error) {
	title, err := s.cleanName("title", in.Title)
	if err != nil {
		return nil, err
	}
	status, err := parseStatus(in.Status)
	if err != nil {
		return nil, err
	}

	projectID := normalizeRef(in.ProjectID)
	if projectID != nil {
		if _, err := s.findOwnedProject(ctx, userID, *projectID); err != nil {
			return nil, err
		}
	}

	now := s.now()
	t := &model.Task{
		ID:         uuid.NewString(),
		OwnerID:    userID,
		ProjectID:  projectID,
		TeamID:     normalizeRef(in.TeamID),
		Title:      title,
		Status:     status,
		AssignedTo: in.AssignedTo,
		Todos:      s.cleanTodos(in.Todos),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.tasks.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("タスクの作成に失敗しました: %w", err)
	}
	return t, nil
}

// UpdateTask はタスクを部分更新する。作成者と、メールアドレスで割り当てられた担当者が更新できる。
// 名前のみで割り当てられた担当者は閲覧だけができる。
func (s *Service) UpdateTask(ctx context.Context, userID, taskID string, in TaskUpdate) (*model.Task, error) {
	t, err := s.findEditableTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		title, err := s.cleanName("title", *in.Title)
		if err != nil {
			return nil, err
		}
		t.Title = title
	}
	if in.Status != nil {
		status, err := parseStatus(*in.Status)
		if err != nil {
			return nil, err
		}
		t.Status = status
	}
	if in.AssignedTo != nil {
		t.AssignedTo = *in.AssignedTo
	}
	if in.Todos != nil {
		t.Todos = s.cleanTodos(*in.Todos)
	}

	t.UpdatedAt = s.now()
	if err := s.tasks.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("タスクの更新に失敗しました: %w", err)
	}
	return t, nil
}

// DeleteTask はタスクを削除する。作成者のみ削除できる。
func (s *Service) DeleteTask(ctx context.Context, userID, taskID string) error {
	t, err := s.findTask(ctx, taskID)
	if err != nil {
		return err
	}
	if t.OwnerID != userID {
		return model.NewTaskNotFoundError(taskID)
	}
	if err := s.tasks.Delete(ctx, taskID); err != nil {
		return fmt.Errorf("タスクの削除に失敗しました: %w", err)
	}
	return nil
}

// Summary はユーザーがタスクに記録した作業時間の合計と直近days日の日別推移を返す。
func (s *Service) Summary(ctx context.Context, userID, taskID string, days int) (*TaskSummary, error) {
	if days <= 0 {
		days = DefaultSummaryDays
	}
	if days > MaxSummaryDays {
		return nil, model.NewValidationError(fmt.Sprintf("days は%d以下で指定してください", MaxSummaryDays))
	}

	t, err := s.findVisibleTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	entries, err := s.entries.ListByUserAndTask(ctx, userID, taskID)
	if err != nil {
		return nil, fmt.Errorf("作業記録の取得に失敗しました: %w", err)
	}

	buckets := timesheet.AggregateByDay(entries, timesheet.LastNDays(s.now(), days, s.loc))
	return &TaskSummary{
		Task:       t,
		TotalHours: timesheet.Hours(timesheet.AggregateByTask(entries, taskID)),
		Series:     timesheet.Summarize(buckets, timesheet.LabelDate),
	}, nil
}

func (s *Service) findOwnedProject(ctx context.Context, userID, projectID string) (*model.Project, error) {
	if _, err := uuid.Parse(projectID); err != nil {
		return nil, model.NewProjectNotFoundError(projectID)
	}
	p, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("プロジェクトの取得に失敗しました: %w", err)
	}
	if p == nil || p.OwnerID != userID {
		return nil, model.NewProjectNotFoundError(projectID)
	}
	return p, nil
}

func (s *Service) findTask(ctx context.Context, taskID string) (*model.Task, error) {
	if _, err := uuid.Parse(taskID); err != nil {
		return nil, model.NewTaskNotFoundError(taskID)
	}
	t, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}
	if t == nil {
		return nil, model.NewTaskNotFoundError(taskID)
	}
	return t, nil
}

// findVisibleTask は作成者または担当者であるタスクを返す。
func (s *Service) findVisibleTask(ctx context.Context, userID, taskID string) (*model.Task, error) {
	return s.findTaskFor(ctx, userID, taskID, (*model.Task).VisibleTo)
}

// findEditableTask は作成者か、メールアドレスで割り当てられた担当者のタスクを返す。
func (s *Service) findEditableTask(ctx context.Context, userID, taskID string) (*model.Task, error) {
	return s.findTaskFor(ctx, userID, taskID, (*model.Task).EditableBy)
}

func (s *Service) findTaskFor(ctx context.Context, userID, taskID string, allowed func(*model.Task, *model.User) bool) (*model.Task, error) {
	t, err := s.findTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.OwnerID == userID {
		return t, nil
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if !allowed(t, user) {
		return nil, model.NewTaskNotFoundError(taskID)
	}
	return t, nil
}

func (s *Service) cleanName(field, raw string) (string, error) {
	name := s.sanitizer.Text(raw)
	if name == "" {
		return "", model.NewValidationError(field + " は必須です")
	}
	if len([]rune(name)) > MaxNameLength {
		return "", model.NewValidationError(fmt.Sprintf("%s は%d文字以内で指定してください", field, MaxNameLength))
	}
	return name, nil
}

// cleanTodos は空のTODOを除き、IDが無いものに採番する。
func (s *Service) cleanTodos(todos []model.Todo) []model.Todo {
	out := make([]model.Todo, 0, len(todos))
	for _, td := range todos {
		td.Text = s.sanitizer.Text(td.Text)
		if td.Text == "" {
			continue
		}
		if strings.TrimSpace(td.ID) == "" {
			td.ID = uuid.NewString()
		}
		out = append(out, td)
	}
	return out
}

func assigneeKeys(u *model.User) []string {
	return []string{u.Name, u.Email}
}

func parseStatus(raw string) (model.TaskStatus, error) {
	if strings.TrimSpace(raw) == "" {
		return model.TaskStatusOpen, nil
	}
	status := model.TaskStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", model.NewInvalidTaskStatusError(raw)
	}
	return status, nil
}

func normalizeRef(id *string) *string {
	if id == nil {
		return nil
	}
	v := strings.TrimSpace(*id)
	if v == "" {
		return nil
	}
	return &v
}
