package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/tpodo/internal/model"
	"github.com/hitoshi/tpodo/internal/project"
)

// ProjectServiceInterface はプロジェクト・タスクハンドラーが必要とするサービスインターフェース。
type ProjectServiceInterface interface {
	ListProjects(ctx context.Context, userID string) ([]*model.Project, error)
	CreateProject(ctx context.Context, userID, name, description string) (*model.Project, error)
	ListProjectTasks(ctx context.Context, userID, projectID string) ([]*model.Task, error)
	ListTasks(ctx context.Context, userID string, assignedToMe bool) ([]*model.Task, error)
	CreateTask(ctx context.Context, userID string, in project.TaskInput) (*model.Task, error)
	UpdateTask(ctx context.Context, userID, taskID string, in project.TaskUpdate) (*model.Task, error)
	DeleteTask(ctx context.Context, userID, taskID string) error
	Summary(ctx context.Context, userID, taskID string, days int) (*project.TaskSummary, error)
}

// ProjectHandler はプロジェクトとタスクのHTTPハンドラー。
type ProjectHandler struct {
	service ProjectServiceInterface
}

// NewProjectHandler はProjectHandlerを生成する。
func NewProjectHandler(service ProjectServiceInterface) *ProjectHandler {
	return &ProjectHandler{service: service}
}

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type createTaskRequest struct {
	Title      string         `json:"title"`
	ProjectID  *string        `json:"projectId"`
	TeamID     *string        `json:"teamId"`
	Status     string         `json:"status"`
	AssignedTo model.Assignee `json:"assignedTo"`
	Todos      []model.Todo   `json:"todos"`
}

// updateTaskRequest はPATCHのボディ。
// assignedToはnullと省略を区別するためRawMessageで受ける（nullは担当者の解除）。
type updateTaskRequest struct {
	Title      *string         `json:"title"`
	Status     *string         `json:"status"`
	AssignedTo json.RawMessage `json:"assignedTo"`
	Todos      *[]model.Todo   `json:"todos"`
}

// ListProjects はプロジェクト一覧を返す。
// GET /api/projects
func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	projects, err := h.service.ListProjects(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]projectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, toProjectResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": out})
}

// CreateProject はプロジェクトを作成する。
// POST /api/projects
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.CreateProject(r.Context(), userID, req.Name, req.Description)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"project": toProjectResponse(p)})
}

// ListProjectTasks はプロジェクトに属するタスク一覧を返す。
// GET /api/projects/{id}/tasks
func (h *ProjectHandler) ListProjectTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	tasks, err := h.service.ListProjectTasks(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"tasks": toTaskResponses(tasks)})
}

// ListTasks はタスク一覧を返す。assigned=meで自分が担当のタスクに絞る。
// GET /api/tasks?assigned=me
func (h *ProjectHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	assignedToMe := r.URL.Query().Get("assigned") == "me"
	tasks, err := h.service.ListTasks(r.Context(), userID, assignedToMe)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"tasks": toTaskResponses(tasks)})
}

// CreateTask はタスクを作成する。
// POST /api/tasks
func (h *ProjectHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := h.service.CreateTask(r.Context(), userID, project.TaskInput(req))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"task": toTaskResponse(t)})
}

// UpdateTask はタスクを部分更新する。
// PATCH /api/tasks/{id}
func (h *ProjectHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in := project.TaskUpdate{
		Title:  req.Title,
		Status: req.Status,
		Todos:  req.Todos,
	}
	if len(req.AssignedTo) > 0 {
		a := model.NoAssignee()
		if !bytes.Equal(bytes.TrimSpace(req.AssignedTo), []byte("null")) {
			if err := json.Unmarshal(req.AssignedTo, &a); err != nil {
				writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("assignedToの形式が正しくありません"))
				return
			}
		}
		in.AssignedTo = &a
	}

	t, err := h.service.UpdateTask(r.Context(), userID, chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"task": toTaskResponse(t)})
}

// DeleteTask はタスクを削除する。
// DELETE /api/tasks/{id}
func (h *ProjectHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteTask(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TaskSummary はタスクの合計時間と日別の系列を返す。
// GET /api/tasks/{id}/summary?days=N
func (h *ProjectHandler) TaskSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	days, ok := parseDays(w, r)
	if !ok {
		return
	}

	summary, err := h.service.Summary(r.Context(), userID, chi.URLParam(r, "id"), days)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskSummaryResponse(summary))
}

// SetupProjectRoutes はプロジェクト・タスク関連のルーティングを設定したchi.Routerを返す。
func SetupProjectRoutes(service ProjectServiceInterface) http.Handler {
	r := chi.NewRouter()
	NewProjectHandler(service).mount(r)
	return r
}

func (h *ProjectHandler) mount(r chi.Router) {
	r.Route("/api/projects", func(r chi.Router) {
		r.Get("/", h.ListProjects)
		r.Post("/", h.CreateProject)
		r.Get("/{id}/tasks", h.ListProjectTasks)
	})

	r.Route("/api/tasks", func(r chi.Router) {
		r.Get("/", h.ListTasks)
		r.Post("/", h.CreateTask)
		r.Route("/{id}", func(r chi.Router) {
			r.Patch("/", h.UpdateTask)
			r.Delete("/", h.DeleteTask)
			r.Get("/summary", h.TaskSummary)
		})
	})
}

// parseDays はクエリのdaysを読み取る。未指定は0（サービス側の既定値）を返す。
// 数値でない場合は400を書き込みfalseを返す。
func parseDays(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return 0, true
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("daysは0以上の整数で指定してください"))
		return 0, false
	}
	return days, true
}
