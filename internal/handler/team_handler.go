package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/tpodo/internal/model"
	"github.com/hitoshi/tpodo/internal/team"
)

// TeamServiceInterface はチーム・人物名簿ハンドラーが必要とするサービスインターフェース。
type TeamServiceInterface interface {
	ListTeams(ctx context.Context, userID string) ([]*model.Team, error)
	CreateTeam(ctx context.Context, userID string, in team.TeamInput) (*model.Team, error)
	UpdateTeam(ctx context.Context, userID, teamID string, in team.TeamUpdate) (*model.Team, error)
	DeleteTeam(ctx context.Context, userID, teamID string) error
	Report(ctx context.Context, userID, teamID, from, to string) (*team.Report, error)

	ListPeople(ctx context.Context, userID string) ([]*model.Person, error)
	CreatePerson(ctx context.Context, userID string, in team.PersonInput) (*model.Person, error)
	DeletePerson(ctx context.Context, userID, personID string) error
}

// TeamHandler はチームと人物名簿のHTTPハンドラー。
type TeamHandler struct {
	service TeamServiceInterface
}

// NewTeamHandler はTeamHandlerを生成する。
func NewTeamHandler(service TeamServiceInterface) *TeamHandler {
	return &TeamHandler{service: service}
}

// createTeamRequest のmembersは旧形式の文字列要素も受け付ける。
type createTeamRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Color       string         `json:"color"`
	Visibility  string         `json:"visibility"`
	Members     model.Members  `json:"members"`
	Workflow    model.Workflow `json:"workflow"`
}

type updateTeamRequest struct {
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	Color       *string         `json:"color"`
	Visibility  *string         `json:"visibility"`
	Members     *model.Members  `json:"members"`
	Workflow    *model.Workflow `json:"workflow"`
}

type createPersonRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Department string `json:"department"`
}

// ListTeams はチーム一覧を返す。
// GET /api/teams
func (h *TeamHandler) ListTeams(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	teams, err := h.service.ListTeams(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]teamResponse, 0, len(teams))
	for _, t := range teams {
		out = append(out, toTeamResponse(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"teams": out})
}

// CreateTeam はチームを作成する。
// POST /api/teams
func (h *TeamHandler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createTeamRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := h.service.CreateTeam(r.Context(), userID, team.TeamInput(req))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"team": toTeamResponse(t)})
}

// UpdateTeam はチームを部分更新する。
// PATCH /api/teams/{id}
func (h *TeamHandler) UpdateTeam(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateTeamRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := h.service.UpdateTeam(r.Context(), userID, chi.URLParam(r, "id"), team.TeamUpdate(req))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"team": toTeamResponse(t)})
}

// DeleteTeam はチームを削除する。
// DELETE /api/teams/{id}
func (h *TeamHandler) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteTeam(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TeamReport はメンバーごとの作業時間を返す。
// GET /api/teams/{id}/report?from=...&to=...
func (h *TeamHandler) TeamReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	rep, err := h.service.Report(r.Context(), userID, chi.URLParam(r, "id"), q.Get("from"), q.Get("to"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTeamReportResponse(rep))
}

// ListPeople は人物名簿を返す。
// GET /api/people
func (h *TeamHandler) ListPeople(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	people, err := h.service.ListPeople(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]personResponse, 0, len(people))
	for _, p := range people {
		out = append(out, toPersonResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"people": out})
}

// CreatePerson は人物を名簿に登録する。
// POST /api/people
func (h *TeamHandler) CreatePerson(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createPersonRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.CreatePerson(r.Context(), userID, team.PersonInput(req))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"person": toPersonResponse(p)})
}

// DeletePerson は名簿から人物を削除する。
// DELETE /api/people/{id}
func (h *TeamHandler) DeletePerson(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeletePerson(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetupTeamRoutes はチーム・人物名簿関連のルーティングを設定したchi.Routerを返す。
func SetupTeamRoutes(service TeamServiceInterface) http.Handler {
	r := chi.NewRouter()
	NewTeamHandler(service).mount(r)
	return r
}

func (h *TeamHandler) mount(r chi.Router) {
	r.Route("/api/teams", func(r chi.Router) {
		r.Get("/", h.ListTeams)
		r.Post("/", h.CreateTeam)
		r.Route("/{id}", func(r chi.Router) {
			r.Patch("/", h.UpdateTeam)
			r.Delete("/", h.DeleteTeam)
			r.Get("/report", h.TeamReport)
		})
	})

	r.Route("/api/people", func(r chi.Router) {
		r.Get("/", h.ListPeople)
		r.Post("/", h.CreatePerson)
		r.Delete("/{id}", h.DeletePerson)
	})
}
